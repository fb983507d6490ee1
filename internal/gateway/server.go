package gateway

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"chatgate/internal/api"
	"chatgate/internal/httplog"
)

const (
	readHeaderTimeout = 5 * time.Second
	idleTimeout       = 120 * time.Second
	relayChunkSize    = 32 * 1024
)

// Server exposes a Gateway over HTTP under a mount prefix.
type Server struct {
	addr     string
	prefix   string
	gateway  *Gateway
	identity IdentitySource
	logger   *slog.Logger
}

// NewServer wires a Gateway behind prefix. identity may be nil.
func NewServer(addr, prefix string, gw *Gateway, identity IdentitySource, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		addr:     addr,
		prefix:   strings.TrimRight(prefix, "/"),
		gateway:  gw,
		identity: identity,
		logger:   logger,
	}
}

// Handler returns the gateway's HTTP handler.
func (s *Server) Handler() http.Handler {
	return httplog.Middleware(s.log(), s.routes())
}

// ListenAndServe starts the HTTP server. No write timeout is set so streams
// may run as long as the client stays connected.
func (s *Server) ListenAndServe() error {
	s.log().Info("starting gateway", "addr", s.addr, "prefix", s.mountPattern(), "policy", s.gateway.policy.String())
	server := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
		IdleTimeout:       idleTimeout,
	}
	return server.ListenAndServe()
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc(s.mountPattern(), s.handleForward)
	return mux
}

func (s *Server) mountPattern() string {
	return s.prefix + "/"
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, api.HealthResponse{Status: "healthy"})
}

func (s *Server) handleForward(w http.ResponseWriter, r *http.Request) {
	if _, ok := allowedMethods[r.Method]; !ok {
		w.Header().Set("Allow", "GET, POST, PUT, DELETE, PATCH")
		writeJSON(w, http.StatusMethodNotAllowed, api.GatewayErrorResponse{Error: "Method not allowed", Message: r.Method})
		return
	}

	identity := ""
	if s.identity != nil {
		identity = s.identity.Identity(r)
	}

	resp, err := s.gateway.Forward(r.Context(), Request{
		Method:        r.Method,
		Path:          s.backendPath(r),
		RawQuery:      r.URL.RawQuery,
		Header:        r.Header,
		Body:          r.Body,
		ContentLength: r.ContentLength,
		Identity:      identity,
	})
	if err != nil {
		if errors.Is(err, ErrMethodNotAllowed) {
			writeJSON(w, http.StatusMethodNotAllowed, api.GatewayErrorResponse{Error: "Method not allowed", Message: r.Method})
			return
		}
		s.log().Warn("proxy request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeJSON(w, http.StatusBadGateway, api.GatewayErrorResponse{Error: "Proxy request failed", Message: err.Error()})
		return
	}

	s.relay(w, r, resp)
}

func (s *Server) backendPath(r *http.Request) string {
	rest := strings.TrimPrefix(r.URL.EscapedPath(), s.prefix)
	if rest == "" {
		return "/"
	}
	return rest
}

// relay writes resp to w. Streaming bodies are copied through a fixed buffer
// and flushed per read, so at most one chunk is held ahead of the client.
func (s *Server) relay(w http.ResponseWriter, r *http.Request, resp *Response) {
	defer resp.Body.Close()

	relayHeaders(w.Header(), resp.Header)
	w.WriteHeader(resp.Status)

	if !resp.Streaming {
		if _, err := io.Copy(w, resp.Body); err != nil {
			s.log().Debug("buffered relay aborted", "path", r.URL.Path, "error", err)
		}
		return
	}

	flusher, _ := w.(http.Flusher)
	if flusher != nil {
		flusher.Flush()
	}

	buf := make([]byte, relayChunkSize)
	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			if _, err := w.Write(buf[:n]); err != nil {
				s.log().Debug("client went away during stream", "path", r.URL.Path, "error", err)
				return
			}
			if flusher != nil {
				flusher.Flush()
			}
		}
		if readErr != nil {
			if !errors.Is(readErr, io.EOF) && r.Context().Err() == nil {
				s.log().Warn("upstream stream interrupted", "path", r.URL.Path, "error", readErr)
			}
			return
		}
	}
}

func (s *Server) log() *slog.Logger {
	if s != nil && s.logger != nil {
		return s.logger
	}
	return slog.Default()
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
