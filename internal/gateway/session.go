package gateway

import (
	"fmt"
	"net/http"

	"github.com/gorilla/securecookie"
	"github.com/gorilla/sessions"

	"chatgate/internal/auth"
)

const (
	sessionUserKey       = "user_id"
	minSessionSecretSize = 32
	sessionMaxAgeSeconds = 7 * 24 * 60 * 60
)

// IdentitySource derives the caller identity for an inbound request.
// An empty string means the caller is anonymous.
type IdentitySource interface {
	Identity(r *http.Request) string
}

// SessionIdentity reads the caller identity from a signed cookie session.
type SessionIdentity struct {
	store *sessions.CookieStore
	name  string
}

// NewSessionIdentity builds a cookie session store keyed by secret.
func NewSessionIdentity(secret, name string) (*SessionIdentity, error) {
	if len(secret) < minSessionSecretSize {
		return nil, fmt.Errorf("session secret must be at least %d characters long", minSessionSecretSize)
	}
	if name == "" {
		return nil, fmt.Errorf("session name is required")
	}
	store := sessions.NewCookieStore([]byte(secret))
	store.Options.HttpOnly = true
	store.Options.Path = "/"
	store.Options.SameSite = http.SameSiteLaxMode
	store.MaxAge(sessionMaxAgeSeconds)
	return &SessionIdentity{store: store, name: name}, nil
}

// Identity returns the session's user id, or "" when there is no valid session.
func (s *SessionIdentity) Identity(r *http.Request) string {
	if s == nil {
		return ""
	}
	session, err := s.store.Get(r, s.name)
	if err != nil || session.IsNew {
		return ""
	}
	raw, ok := session.Values[sessionUserKey].(string)
	if !ok {
		return ""
	}
	identity, err := auth.NormalizeIdentity(raw)
	if err != nil {
		return ""
	}
	return identity
}

// Login stores userID in the caller's session.
func (s *SessionIdentity) Login(w http.ResponseWriter, r *http.Request, userID string) error {
	identity, err := auth.NormalizeIdentity(userID)
	if err != nil {
		return err
	}
	session, _ := s.store.Get(r, s.name)
	session.Values[sessionUserKey] = identity
	session.Options.Secure = r.URL.Scheme == "https" || r.Header.Get("X-Forwarded-Proto") == "https"
	return session.Save(r, w)
}

// Cookie encodes a session cookie for userID without a request, for
// provisioning clients out of band.
func (s *SessionIdentity) Cookie(userID string) (*http.Cookie, error) {
	identity, err := auth.NormalizeIdentity(userID)
	if err != nil {
		return nil, err
	}
	values := map[any]any{sessionUserKey: identity}
	encoded, err := securecookie.EncodeMulti(s.name, values, s.store.Codecs...)
	if err != nil {
		return nil, err
	}
	return sessions.NewCookie(s.name, encoded, s.store.Options), nil
}
