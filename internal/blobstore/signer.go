package blobstore

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/hkdf"
)

const (
	DefaultSignedURLTTL = time.Hour
	DownloadPathPrefix  = "/blobs/"

	expiresParam   = "expires"
	signatureParam = "sig"
	signingKeyInfo = "chatgate blob url v1"
	minSecretBytes = 16
)

var (
	ErrSignatureInvalid = errors.New("invalid url signature")
	ErrSignatureExpired = errors.New("url signature expired")
)

// URLSigner issues and verifies time-bounded download URLs for blob
// locators. URLs have the form {base}/blobs/{locator}?expires={unix}&sig={hex}.
type URLSigner struct {
	base *url.URL
	key  []byte
	now  func() time.Time
}

func NewURLSigner(publicURL, secret string) (*URLSigner, error) {
	base, err := url.Parse(strings.TrimSpace(publicURL))
	if err != nil {
		return nil, fmt.Errorf("parse public url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("public url must be http or https, got %q", publicURL)
	}
	if base.Host == "" {
		return nil, fmt.Errorf("public url host is required")
	}
	if len(secret) < minSecretBytes {
		return nil, fmt.Errorf("signing secret must be at least %d bytes", minSecretBytes)
	}

	key := make([]byte, sha256.Size)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(secret), nil, []byte(signingKeyInfo)), key); err != nil {
		return nil, fmt.Errorf("derive signing key: %w", err)
	}

	base.RawQuery = ""
	base.Fragment = ""
	base.Path = strings.TrimRight(base.Path, "/")
	base.RawPath = ""
	return &URLSigner{base: base, key: key, now: time.Now}, nil
}

// IssueSignedURL returns a URL granting read access to locator until ttl
// elapses. A non-positive ttl selects DefaultSignedURLTTL.
func (s *URLSigner) IssueSignedURL(ctx context.Context, locator string, ttl time.Duration) (string, error) {
	if s == nil {
		return "", fmt.Errorf("url signer is not configured")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := ValidateLocator(locator); err != nil {
		return "", err
	}
	if ttl <= 0 {
		ttl = DefaultSignedURLTTL
	}

	expires := s.now().Add(ttl).Unix()
	u := *s.base
	u.Path = s.base.Path + DownloadPathPrefix + locator
	q := url.Values{}
	q.Set(expiresParam, strconv.FormatInt(expires, 10))
	q.Set(signatureParam, s.sign(locator, expires))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// VerifyRequest checks the expiry and signature query parameters for locator.
func (s *URLSigner) VerifyRequest(locator string, query url.Values) error {
	return s.Verify(locator, query.Get(expiresParam), query.Get(signatureParam), s.now())
}

func (s *URLSigner) Verify(locator, expiresRaw, signature string, now time.Time) error {
	if s == nil {
		return fmt.Errorf("url signer is not configured")
	}
	expires, err := strconv.ParseInt(strings.TrimSpace(expiresRaw), 10, 64)
	if err != nil {
		return fmt.Errorf("%w: bad expiry", ErrSignatureInvalid)
	}
	got, err := hex.DecodeString(strings.TrimSpace(signature))
	if err != nil || len(got) != sha256.Size {
		return fmt.Errorf("%w: bad signature encoding", ErrSignatureInvalid)
	}
	want, _ := hex.DecodeString(s.sign(locator, expires))
	if !hmac.Equal(got, want) {
		return ErrSignatureInvalid
	}
	if now.Unix() > expires {
		return ErrSignatureExpired
	}
	return nil
}

func (s *URLSigner) sign(locator string, expires int64) string {
	mac := hmac.New(sha256.New, s.key)
	mac.Write([]byte(locator))
	mac.Write([]byte("\n"))
	mac.Write([]byte(strconv.FormatInt(expires, 10)))
	return hex.EncodeToString(mac.Sum(nil))
}
