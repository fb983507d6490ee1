package api

import (
	"time"

	"chatgate/internal/models"
)

// ErrorResponse is the backend JSON error wrapper.
type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code,omitempty"`
	ErrorCode int    `json:"error_code,omitempty"`
}

// GatewayErrorResponse is returned by the gateway when the upstream exchange fails.
type GatewayErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// MessageResponse is a plain acknowledgement.
type MessageResponse struct {
	Message string `json:"message"`
}

// HealthResponse is returned by health endpoints.
type HealthResponse struct {
	Status string `json:"status"`
}

// AttachmentUploadResponse is returned after a successful upload.
type AttachmentUploadResponse struct {
	URL      string `json:"url"`
	Filename string `json:"filename"`
	Message  string `json:"message"`
}

// AttachmentDetailResponse describes one attachment with a time-limited download link.
type AttachmentDetailResponse struct {
	ID             string `json:"id"`
	Filename       string `json:"filename"`
	BlobURL        string `json:"blob_url"`
	ConversationID string `json:"conversation_id"`
	ContentType    string `json:"content_type,omitempty"`
	SizeBytes      int64  `json:"size_bytes"`
}

// AttachmentDeleteResponse acknowledges a delete.
type AttachmentDeleteResponse struct {
	Message      string `json:"message"`
	AttachmentID string `json:"attachment_id"`
}

// AttachmentSummary is one row of a conversation attachment listing.
type AttachmentSummary struct {
	ID        string    `json:"id"`
	Filename  string    `json:"filename"`
	CreatedAt time.Time `json:"created_at"`
	URL       string    `json:"url"`
}

// ConversationAttachmentsResponse lists a conversation's attachments.
type ConversationAttachmentsResponse struct {
	ConversationID string              `json:"conversation_id"`
	Attachments    []AttachmentSummary `json:"attachments"`
}

// ChatRequest carries a conversation to the chat endpoint.
type ChatRequest struct {
	Messages       []models.Message `json:"messages"`
	ConversationID string           `json:"conversation_id,omitempty"`
}

// StreamStart is the payload of an f: stream line.
type StreamStart struct {
	MessageID string `json:"messageId"`
}

// StreamUsage reports token accounting on the finish line.
type StreamUsage struct {
	PromptTokens     int `json:"promptTokens"`
	CompletionTokens int `json:"completionTokens"`
}

// StreamFinish is the payload of a d: stream line.
type StreamFinish struct {
	FinishReason string      `json:"finishReason"`
	Usage        StreamUsage `json:"usage"`
}
