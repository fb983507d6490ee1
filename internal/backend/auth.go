package backend

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"chatgate/internal/auth"
	"chatgate/internal/blobstore"
)

type ownerContextKey struct{}

func contextWithOwner(ctx context.Context, ownerID string) context.Context {
	return context.WithValue(ctx, ownerContextKey{}, ownerID)
}

func ownerFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	ownerID, ok := ctx.Value(ownerContextKey{}).(string)
	return ownerID, ok && ownerID != ""
}

// withServiceAuth requires the service Basic credentials on every route
// except liveness and signed downloads. With no credentials configured every
// call is accepted. Clients that keep failing are blocked for a while.
func (s *Server) withServiceAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isPublicPath(r.URL.Path) || !s.credentials.Enabled() {
			next.ServeHTTP(w, r)
			return
		}

		now := time.Now()
		client := clientAddress(r)
		if s.authLimiter.Blocked(client, now) {
			w.Header().Set("Retry-After", strconv.Itoa(int(s.authLimiter.block/time.Second)))
			s.writeErrorReq(w, r, http.StatusTooManyRequests, apiError{
				status:  http.StatusTooManyRequests,
				code:    "resource_exhausted",
				errCode: ErrCodeTooManyAuthFailures,
				err:     fmt.Errorf("too many failed service auth attempts; retry later"),
			})
			return
		}

		username, password, ok := r.BasicAuth()
		if !ok || !s.credentials.Verify(username, password) {
			s.authLimiter.Fail(client, now)
			w.Header().Set("WWW-Authenticate", `Basic realm="chatgate"`)
			s.writeErrorReq(w, r, http.StatusUnauthorized, unauthorizedCode(fmt.Errorf("invalid service credentials"), ErrCodeUnauthorized))
			return
		}
		s.authLimiter.Succeed(client)
		next.ServeHTTP(w, r)
	})
}

// withIdentity requires the identity header and scopes the request to it.
func (s *Server) withIdentity(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw := r.Header.Get(s.identityHeader)
		if strings.TrimSpace(raw) == "" {
			s.writeErrorReq(w, r, http.StatusUnauthorized, unauthorizedCode(fmt.Errorf("missing %s header", strings.ToLower(s.identityHeader)), ErrCodeMissingIdentity))
			return
		}
		ownerID, err := auth.NormalizeIdentity(raw)
		if err != nil {
			s.writeErrorReq(w, r, http.StatusUnauthorized, unauthorizedCode(err, ErrCodeMissingIdentity))
			return
		}
		next(w, r.WithContext(contextWithOwner(r.Context(), ownerID)))
	}
}

func isPublicPath(path string) bool {
	return path == "/" || path == "/health" || strings.HasPrefix(path, blobstore.DownloadPathPrefix)
}
