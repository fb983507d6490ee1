// Package gateway forwards client calls to the backend service, attaching the
// service credentials and the caller's identity, and relays the response
// buffered or streamed to mirror the upstream.
package gateway

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"chatgate/internal/auth"
)

var (
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	ErrMethodNotAllowed    = errors.New("method not allowed")
)

var allowedMethods = map[string]struct{}{
	http.MethodGet:    {},
	http.MethodPost:   {},
	http.MethodPut:    {},
	http.MethodDelete: {},
	http.MethodPatch:  {},
}

var streamingContentTypes = []string{"text/stream", "application/stream", "text/event-stream"}

// Options configure a Gateway.
type Options struct {
	BackendURL      string
	ServiceUsername string
	ServicePassword string
	IdentityHeader  string
	Policy          HeaderPolicy
	Transport       http.RoundTripper
	Logger          *slog.Logger
}

// Request is one inbound call to forward. Path is the escaped path relative to
// the backend root and RawQuery is appended unchanged.
type Request struct {
	Method        string
	Path          string
	RawQuery      string
	Header        http.Header
	Body          io.Reader
	ContentLength int64
	Identity      string
}

// Response is the upstream answer. Body is always non-nil and must be closed.
// When Streaming is true Body reads straight from the upstream connection.
type Response struct {
	Status    int
	Header    http.Header
	Body      io.ReadCloser
	Streaming bool
}

// Gateway forwards requests to one backend.
type Gateway struct {
	backend        *url.URL
	credentials    http.Header
	identityHeader string
	policy         HeaderPolicy
	client         *http.Client
	logger         *slog.Logger
}

// New validates opts and returns a Gateway.
func New(opts Options) (*Gateway, error) {
	backend, err := url.Parse(strings.TrimSpace(opts.BackendURL))
	if err != nil {
		return nil, fmt.Errorf("parse backend url: %w", err)
	}
	if backend.Scheme != "http" && backend.Scheme != "https" {
		return nil, fmt.Errorf("backend url must use http or https")
	}
	if backend.Host == "" {
		return nil, fmt.Errorf("backend url host is required")
	}
	backend.Path = strings.TrimRight(backend.Path, "/")
	backend.RawPath = ""
	backend.RawQuery = ""
	backend.Fragment = ""

	credentials := http.Header{}
	if opts.ServiceUsername != "" || opts.ServicePassword != "" {
		credentials.Set("Authorization", auth.BasicAuthorization(opts.ServiceUsername, opts.ServicePassword))
	}

	transport := opts.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}

	return &Gateway{
		backend:        backend,
		credentials:    credentials,
		identityHeader: http.CanonicalHeaderKey(strings.TrimSpace(opts.IdentityHeader)),
		policy:         opts.Policy,
		client: &http.Client{
			Transport: transport,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		logger: opts.Logger,
	}, nil
}

// Forward sends req upstream and returns the response descriptor.
// Network failures are wrapped in ErrUpstreamUnavailable and never retried.
func (g *Gateway) Forward(ctx context.Context, req Request) (*Response, error) {
	method := strings.ToUpper(req.Method)
	if _, ok := allowedMethods[method]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrMethodNotAllowed, req.Method)
	}

	target := g.targetURL(req.Path, req.RawQuery)
	body := req.Body
	if body == nil {
		body = http.NoBody
	}
	outReq, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	outReq.Header = g.outboundHeaders(req.Header, req.Identity)
	if req.ContentLength > 0 {
		outReq.ContentLength = req.ContentLength
	}

	resp, err := g.client.Do(outReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}

	streaming := IsStreaming(resp)
	g.log().Debug("upstream responded", "method", method, "path", req.Path, "status", resp.StatusCode, "streaming", streaming)
	if streaming {
		return &Response{Status: resp.StatusCode, Header: resp.Header, Body: resp.Body, Streaming: true}, nil
	}

	defer resp.Body.Close()
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, resp.Body); err != nil {
		return nil, fmt.Errorf("%w: read upstream body: %v", ErrUpstreamUnavailable, err)
	}
	return &Response{Status: resp.StatusCode, Header: resp.Header, Body: io.NopCloser(&buf)}, nil
}

// IsStreaming reports whether an upstream response must be relayed live.
func IsStreaming(resp *http.Response) bool {
	contentType := strings.ToLower(resp.Header.Get("Content-Type"))
	for _, marker := range streamingContentTypes {
		if strings.Contains(contentType, marker) {
			return true
		}
	}
	for _, te := range resp.TransferEncoding {
		if strings.EqualFold(te, "chunked") {
			return true
		}
	}
	return strings.EqualFold(strings.TrimSpace(resp.Header.Get("Transfer-Encoding")), "chunked")
}

func (g *Gateway) targetURL(path, rawQuery string) string {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	target := g.backend.Scheme + "://" + g.backend.Host + g.backend.EscapedPath() + path
	if rawQuery != "" {
		target += "?" + rawQuery
	}
	return target
}

func (g *Gateway) log() *slog.Logger {
	if g != nil && g.logger != nil {
		return g.logger
	}
	return slog.Default()
}
