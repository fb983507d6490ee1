package auth

import (
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"
	"unicode"
)

const maxIdentityLength = 256

// ServiceCredentials is the shared service account the gateway presents to the backend.
type ServiceCredentials struct {
	Username     string
	PasswordHash string
}

// Enabled reports whether the backend should demand credentials at all.
func (c ServiceCredentials) Enabled() bool {
	return c.Username != "" || c.PasswordHash != ""
}

// Verify checks a presented username and password pair.
func (c ServiceCredentials) Verify(username, password string) bool {
	if !c.Enabled() {
		return false
	}
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(c.Username)) == 1
	passOK := VerifyPassword(c.PasswordHash, password)
	return userOK && passOK
}

// BasicAuthorization returns the Authorization header value for username and password.
func BasicAuthorization(username, password string) string {
	token := base64.StdEncoding.EncodeToString([]byte(username + ":" + password))
	return "Basic " + token
}

// NormalizeIdentity trims a caller identity and rejects values that cannot travel in a header.
func NormalizeIdentity(raw string) (string, error) {
	identity := strings.TrimSpace(raw)
	if identity == "" {
		return "", fmt.Errorf("identity is required")
	}
	if len(identity) > maxIdentityLength {
		return "", fmt.Errorf("identity too long")
	}
	for _, r := range identity {
		if unicode.IsControl(r) {
			return "", fmt.Errorf("invalid identity")
		}
	}
	return identity, nil
}
