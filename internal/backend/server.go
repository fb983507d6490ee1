// Package backend is the reference backend service behind the gateway: it
// stores uploaded attachments, serves signed downloads, and answers chat
// requests after resolving attachment references.
package backend

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"chatgate/internal/auth"
	"chatgate/internal/blobstore"
	"chatgate/internal/httplog"
	"chatgate/internal/resolver"
	"chatgate/internal/store"
)

const (
	readHeaderTimeout = 5 * time.Second
	idleTimeout       = 120 * time.Second

	defaultIdentityHeader  = "userid"
	defaultMaxUploadBytes  = 100 << 20 // 100 MiB
	defaultMultipartMemory = 8 << 20   // 8 MiB
)

// URLSigner issues and checks signed blob download URLs.
type URLSigner interface {
	resolver.Signer
	VerifyRequest(locator string, query url.Values) error
}

// Options wire a Server. Store, Blobs and Signer are required.
type Options struct {
	Addr            string
	Store           store.AttachmentStore
	Blobs           blobstore.BlobStore
	Signer          URLSigner
	Model           Model
	Credentials     auth.ServiceCredentials
	IdentityHeader  string
	SignedURLTTL    time.Duration
	ResolveTimeout  time.Duration
	MaxUploadBytes  int64
	MultipartMemory int64
	Logger          *slog.Logger
}

// Server wraps HTTP handlers for the backend API.
type Server struct {
	addr            string
	attachments     *AttachmentService
	signer          URLSigner
	resolver        *resolver.Resolver
	model           Model
	credentials     auth.ServiceCredentials
	authLimiter     *authLimiter
	identityHeader  string
	maxUploadBytes  int64
	multipartMemory int64
	logger          *slog.Logger
}

// New creates a backend server.
func New(opts Options) (*Server, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("attachment store is required")
	}
	if opts.Blobs == nil {
		return nil, fmt.Errorf("blob store is required")
	}
	if opts.Signer == nil {
		return nil, fmt.Errorf("url signer is required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	identityHeader := strings.TrimSpace(opts.IdentityHeader)
	if identityHeader == "" {
		identityHeader = defaultIdentityHeader
	}
	model := opts.Model
	if model == nil {
		model = EchoModel{}
	}
	maxUpload := opts.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = defaultMaxUploadBytes
	}
	multipartMemory := opts.MultipartMemory
	if multipartMemory <= 0 {
		multipartMemory = defaultMultipartMemory
	}

	return &Server{
		addr:        opts.Addr,
		attachments: NewAttachmentService(opts.Store, opts.Blobs, opts.Signer, opts.SignedURLTTL, logger),
		signer:      opts.Signer,
		resolver: resolver.New(opts.Store, opts.Signer, resolver.Options{
			TTL:     opts.SignedURLTTL,
			Timeout: opts.ResolveTimeout,
			Logger:  logger,
		}),
		model:           model,
		credentials:     opts.Credentials,
		authLimiter:     newAuthLimiter(defaultAuthMaxFailures, defaultAuthWindow, defaultAuthBlock),
		identityHeader:  http.CanonicalHeaderKey(identityHeader),
		maxUploadBytes:  maxUpload,
		multipartMemory: multipartMemory,
		logger:          logger,
	}, nil
}

// Handler returns the backend's HTTP handler with auth and request logging.
func (s *Server) Handler() http.Handler {
	return httplog.Middleware(s.log(), s.withServiceAuth(s.routes()))
}

// ListenAndServe starts the HTTP server. Chat responses stream, so no write
// timeout is set.
func (s *Server) ListenAndServe() error {
	if !s.credentials.Enabled() {
		s.log().Warn("service credentials are not configured; backend accepts unauthenticated calls")
	}
	s.log().Info("starting backend", "addr", s.addr, "identity_header", s.identityHeader)
	server := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
		IdleTimeout:       idleTimeout,
	}
	return server.ListenAndServe()
}

func (s *Server) log() *slog.Logger {
	if s != nil && s.logger != nil {
		return s.logger
	}
	return slog.Default()
}
