package backend

import (
	"net/http"

	"chatgate/internal/blobstore"
)

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	// Liveness.
	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.HandleFunc("GET /health", s.handleHealth)

	// Attachments.
	mux.HandleFunc("POST /api/v1/attachments", s.withIdentity(s.handleUploadAttachment))
	mux.HandleFunc("GET /api/v1/attachments/{id}", s.withIdentity(s.handleGetAttachment))
	mux.HandleFunc("DELETE /api/v1/attachments/{id}", s.withIdentity(s.handleDeleteAttachment))
	mux.HandleFunc("GET /api/v1/attachments/conversation/{conversation_id}", s.withIdentity(s.handleListConversationAttachments))

	// Signed downloads.
	mux.HandleFunc("GET "+blobstore.DownloadPathPrefix+"{locator...}", s.handleDownloadBlob)

	// Chat.
	mux.HandleFunc("POST /chat", s.withIdentity(s.handleChat))

	return mux
}
