package blobstore

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"testing"
	"time"
)

const testSecret = "0123456789abcdef-test-secret"

func TestURLSignerIssueAndVerify(t *testing.T) {
	signer, err := NewURLSigner("https://files.example.com/base/", testSecret)
	if err != nil {
		t.Fatalf("new signer: %v", err)
	}
	now := time.Unix(1_700_000_000, 0)
	signer.now = func() time.Time { return now }

	locator := "sha256/ab/cd/abcdef"
	raw, err := signer.IssueSignedURL(context.Background(), locator, 0)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse issued url: %v", err)
	}
	if u.Scheme != "https" || u.Host != "files.example.com" {
		t.Fatalf("unexpected origin: %s", raw)
	}
	if u.Path != "/base/blobs/"+locator {
		t.Fatalf("expected path /base/blobs/%s, got %s", locator, u.Path)
	}
	if got := u.Query().Get("expires"); got != "1700003600" {
		t.Fatalf("expected default one hour expiry, got %s", got)
	}

	if err := signer.VerifyRequest(locator, u.Query()); err != nil {
		t.Fatalf("verify: %v", err)
	}
	if err := signer.VerifyRequest("sha256/ab/cd/other", u.Query()); !errors.Is(err, ErrSignatureInvalid) {
		t.Fatalf("expected invalid signature for other locator, got %v", err)
	}

	later := now.Add(time.Hour + time.Second)
	if err := signer.Verify(locator, u.Query().Get("expires"), u.Query().Get("sig"), later); !errors.Is(err, ErrSignatureExpired) {
		t.Fatalf("expected expired signature, got %v", err)
	}
}

func TestURLSignerRejectsTamperedQuery(t *testing.T) {
	signer, err := NewURLSigner("http://127.0.0.1:8000", testSecret)
	if err != nil {
		t.Fatalf("new signer: %v", err)
	}
	raw, err := signer.IssueSignedURL(context.Background(), "sha256/aa/bb/c", time.Minute)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	u, _ := url.Parse(raw)
	q := u.Query()
	q.Set("expires", "9999999999")
	if err := signer.VerifyRequest("sha256/aa/bb/c", q); !errors.Is(err, ErrSignatureInvalid) {
		t.Fatalf("expected tampered expiry rejected, got %v", err)
	}

	q = u.Query()
	q.Set("sig", "zz")
	if err := signer.VerifyRequest("sha256/aa/bb/c", q); !errors.Is(err, ErrSignatureInvalid) {
		t.Fatalf("expected bad encoding rejected, got %v", err)
	}
}

func TestURLSignerKeysDifferBySecret(t *testing.T) {
	a, err := NewURLSigner("http://localhost:8000", testSecret)
	if err != nil {
		t.Fatalf("new signer a: %v", err)
	}
	b, err := NewURLSigner("http://localhost:8000", testSecret+"-other")
	if err != nil {
		t.Fatalf("new signer b: %v", err)
	}
	raw, err := a.IssueSignedURL(context.Background(), "sha256/aa/bb/c", time.Minute)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	u, _ := url.Parse(raw)
	if err := b.VerifyRequest("sha256/aa/bb/c", u.Query()); !errors.Is(err, ErrSignatureInvalid) {
		t.Fatalf("expected foreign signature rejected, got %v", err)
	}
}

func TestNewURLSignerValidation(t *testing.T) {
	tests := []struct {
		name      string
		publicURL string
		secret    string
		wantErr   string
	}{
		{name: "short secret", publicURL: "http://localhost", secret: "short", wantErr: "signing secret"},
		{name: "bad scheme", publicURL: "ftp://localhost", secret: testSecret, wantErr: "http or https"},
		{name: "missing host", publicURL: "https://", secret: testSecret, wantErr: "host"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewURLSigner(tt.publicURL, tt.secret)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestIssueSignedURLRejectsBadLocator(t *testing.T) {
	signer, err := NewURLSigner("http://localhost", testSecret)
	if err != nil {
		t.Fatalf("new signer: %v", err)
	}
	if _, err := signer.IssueSignedURL(context.Background(), "", time.Minute); err == nil {
		t.Fatal("expected empty locator error")
	}
	if _, err := signer.IssueSignedURL(context.Background(), "../x", time.Minute); err == nil {
		t.Fatal("expected escaping locator error")
	}
}
