package backend

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"testing"

	"chatgate/internal/api"
	"chatgate/internal/auth"
	"chatgate/internal/blobstore"
	"chatgate/internal/store"
)

const (
	testServiceUser     = "svc"
	testServicePassword = "service-password"
	testOwner           = "alice"
	testPublicURL       = "http://backend.test"
	testSigningSecret   = "test-signing-secret-0123456789"
)

type testBackend struct {
	srv     *Server
	store   *store.Store
	handler http.Handler
}

func newTestBackend(t *testing.T, configure ...func(*Options)) *testBackend {
	t.Helper()

	st, err := store.Open(filepath.Join(t.TempDir(), "chatgate-test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := st.Close(); err != nil {
			t.Fatalf("close store: %v", err)
		}
	})

	blobs, err := blobstore.NewLocalCAS(filepath.Join(t.TempDir(), "blobs"))
	if err != nil {
		t.Fatalf("open blob store: %v", err)
	}
	signer, err := blobstore.NewURLSigner(testPublicURL, testSigningSecret)
	if err != nil {
		t.Fatalf("new signer: %v", err)
	}
	hash, err := auth.HashPassword(testServicePassword)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}

	opts := Options{
		Addr:        "127.0.0.1:0",
		Store:       st,
		Blobs:       blobs,
		Signer:      signer,
		Credentials: auth.ServiceCredentials{Username: testServiceUser, PasswordHash: hash},
	}
	for _, fn := range configure {
		fn(&opts)
	}

	srv, err := New(opts)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	return &testBackend{srv: srv, store: st, handler: srv.Handler()}
}

func (b *testBackend) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	b.handler.ServeHTTP(w, req)
	return w
}

func authedRequest(method, target string, body *bytes.Buffer, owner string) *http.Request {
	var req *http.Request
	if body == nil {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, body)
	}
	req.SetBasicAuth(testServiceUser, testServicePassword)
	if owner != "" {
		req.Header.Set("userid", owner)
	}
	return req
}

func uploadRequest(t *testing.T, filename string, content []byte, owner, conversationID string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write(content); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}

	req := authedRequest(http.MethodPost, "/api/v1/attachments", &body, owner)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if conversationID != "" {
		req.Header.Set("conversation-id", conversationID)
	}
	return req
}

func (b *testBackend) upload(t *testing.T, filename string, content []byte, owner, conversationID string) api.AttachmentUploadResponse {
	t.Helper()
	w := b.do(t, uploadRequest(t, filename, content, owner, conversationID))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 on upload, got %d (%s)", w.Code, w.Body.String())
	}
	var resp api.AttachmentUploadResponse
	decodeBody(t, w, &resp)
	return resp
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), dst); err != nil {
		t.Fatalf("decode body %q: %v", w.Body.String(), err)
	}
}

func expectError(t *testing.T, w *httptest.ResponseRecorder, status, errorCode int) api.ErrorResponse {
	t.Helper()
	if w.Code != status {
		t.Fatalf("expected %d, got %d (%s)", status, w.Code, w.Body.String())
	}
	var resp api.ErrorResponse
	decodeBody(t, w, &resp)
	if resp.ErrorCode != errorCode {
		t.Fatalf("expected error_code %d, got %d (%s)", errorCode, resp.ErrorCode, w.Body.String())
	}
	return resp
}

// blobPath turns a signed absolute URL into a request target for the handler.
func blobPath(t *testing.T, signed string) string {
	t.Helper()
	u, err := url.Parse(signed)
	if err != nil {
		t.Fatalf("parse signed url: %v", err)
	}
	return u.RequestURI()
}

func TestNewRequiresDependencies(t *testing.T) {
	if _, err := New(Options{}); err == nil {
		t.Fatal("expected error without store")
	}
}

func TestRootAndHealthArePublic(t *testing.T) {
	b := newTestBackend(t)

	w := b.do(t, httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var root api.MessageResponse
	decodeBody(t, w, &root)
	if root.Message != "chatgate backend is running" {
		t.Fatalf("unexpected root message %q", root.Message)
	}

	w = b.do(t, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var health api.HealthResponse
	decodeBody(t, w, &health)
	if health.Status != "healthy" {
		t.Fatalf("expected healthy, got %q", health.Status)
	}
}

func TestServiceAuthRequired(t *testing.T) {
	b := newTestBackend(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/attachments/conversation/c1", nil)
	req.Header.Set("userid", testOwner)
	w := b.do(t, req)
	expectError(t, w, http.StatusUnauthorized, ErrCodeUnauthorized)
	if w.Header().Get("WWW-Authenticate") == "" {
		t.Fatal("expected WWW-Authenticate challenge")
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/attachments/conversation/c1", nil)
	req.SetBasicAuth(testServiceUser, "wrong-password")
	req.Header.Set("userid", testOwner)
	expectError(t, b.do(t, req), http.StatusUnauthorized, ErrCodeUnauthorized)

	w = b.do(t, authedRequest(http.MethodGet, "/api/v1/attachments/conversation/c1", nil, testOwner))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 with credentials, got %d (%s)", w.Code, w.Body.String())
	}
}

func TestServiceAuthOpenWhenUnconfigured(t *testing.T) {
	b := newTestBackend(t, func(o *Options) { o.Credentials = auth.ServiceCredentials{} })

	req := httptest.NewRequest(http.MethodGet, "/api/v1/attachments/conversation/c1", nil)
	req.Header.Set("userid", testOwner)
	w := b.do(t, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 without configured credentials, got %d (%s)", w.Code, w.Body.String())
	}
}

func TestIdentityHeaderRequired(t *testing.T) {
	b := newTestBackend(t)

	for _, owner := range []string{"", "bad\x01id"} {
		req := authedRequest(http.MethodGet, "/api/v1/attachments/conversation/c1", nil, "")
		if owner != "" {
			req.Header.Set("userid", owner)
		}
		expectError(t, b.do(t, req), http.StatusUnauthorized, ErrCodeMissingIdentity)
	}
}

func TestCustomIdentityHeader(t *testing.T) {
	b := newTestBackend(t, func(o *Options) { o.IdentityHeader = "x-user" })

	req := authedRequest(http.MethodGet, "/api/v1/attachments/conversation/c1", nil, testOwner)
	expectError(t, b.do(t, req), http.StatusUnauthorized, ErrCodeMissingIdentity)

	req = authedRequest(http.MethodGet, "/api/v1/attachments/conversation/c1", nil, "")
	req.Header.Set("X-User", testOwner)
	if w := b.do(t, req); w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", w.Code, w.Body.String())
	}
}

func TestIsPublicPath(t *testing.T) {
	cases := map[string]bool{
		"/":                   true,
		"/health":             true,
		"/blobs/sha256/ab/cd": true,
		"/chat":               false,
		"/api/v1/attachments": false,
		"/healthz":            false,
	}
	for path, want := range cases {
		if got := isPublicPath(path); got != want {
			t.Fatalf("isPublicPath(%q): expected %v, got %v", path, want, got)
		}
	}
}
