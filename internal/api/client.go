package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"chatgate/internal/auth"
	"chatgate/internal/models"
)

const (
	defaultHTTPTimeout   = 10 * time.Second
	httpTimeoutEnvKey    = "CHATGATE_HTTP_TIMEOUT"
	conversationIDHeader = "conversation-id"
)

// ClientOptions configures how a Client authenticates.
type ClientOptions struct {
	Username       string
	Password       string
	IdentityHeader string
	Identity       string
}

// Client talks to the backend attachment and chat API, directly or through the gateway.
type Client struct {
	baseURL string
	http    *http.Client
	opts    ClientOptions
}

// NewClient creates a new API client.
func NewClient(baseURL string, opts ClientOptions) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: httpTimeoutFromEnv()},
		opts:    opts,
	}
}

// Ping checks whether the service is reachable.
func (c *Client) Ping(ctx context.Context) error {
	var resp HealthResponse
	return c.do(ctx, http.MethodGet, "/health", nil, &resp)
}

// UploadAttachment sends one file as multipart field "file".
func (c *Client) UploadAttachment(ctx context.Context, filename string, content io.Reader, conversationID string) (AttachmentUploadResponse, error) {
	var resp AttachmentUploadResponse

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return resp, err
	}
	if _, err := io.Copy(part, content); err != nil {
		return resp, err
	}
	if err := writer.Close(); err != nil {
		return resp, err
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/api/v1/attachments", &body)
	if err != nil {
		return resp, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	if conversationID != "" {
		req.Header.Set(conversationIDHeader, conversationID)
	}
	err = c.send(req, &resp)
	return resp, err
}

// GetAttachment returns attachment details with a signed download link.
func (c *Client) GetAttachment(ctx context.Context, id string) (AttachmentDetailResponse, error) {
	var resp AttachmentDetailResponse
	err := c.do(ctx, http.MethodGet, "/api/v1/attachments/"+url.PathEscape(id), nil, &resp)
	return resp, err
}

// DeleteAttachment removes one attachment.
func (c *Client) DeleteAttachment(ctx context.Context, id string) (AttachmentDeleteResponse, error) {
	var resp AttachmentDeleteResponse
	err := c.do(ctx, http.MethodDelete, "/api/v1/attachments/"+url.PathEscape(id), nil, &resp)
	return resp, err
}

// ListConversationAttachments lists attachments uploaded into one conversation.
func (c *Client) ListConversationAttachments(ctx context.Context, conversationID string) (ConversationAttachmentsResponse, error) {
	var resp ConversationAttachmentsResponse
	err := c.do(ctx, http.MethodGet, "/api/v1/attachments/conversation/"+url.PathEscape(conversationID), nil, &resp)
	return resp, err
}

// Chat posts a conversation and copies the streamed response to w as it arrives.
func (c *Client) Chat(ctx context.Context, messages []models.Message, w io.Writer) error {
	payload, err := json.Marshal(ChatRequest{Messages: messages})
	if err != nil {
		return err
	}
	req, err := c.newRequest(ctx, http.MethodPost, "/chat", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	// Streams outlive the default client timeout; rely on ctx instead.
	streaming := &http.Client{Transport: c.http.Transport}
	resp, err := streaming.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return decodeError(resp)
	}
	_, err = io.Copy(w, resp.Body)
	return err
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := c.newRequest(ctx, method, path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.send(req, out)
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	c.setAuthHeaders(req)
	return req, nil
}

func (c *Client) send(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return decodeError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s response: %w", req.Method, req.URL.Path, err)
	}
	return nil
}

func (c *Client) setAuthHeaders(req *http.Request) {
	if c.opts.Username != "" || c.opts.Password != "" {
		req.Header.Set("Authorization", auth.BasicAuthorization(c.opts.Username, c.opts.Password))
	}
	if c.opts.IdentityHeader != "" && c.opts.Identity != "" {
		req.Header.Set(c.opts.IdentityHeader, c.opts.Identity)
	}
}

func httpTimeoutFromEnv() time.Duration {
	value := strings.TrimSpace(os.Getenv(httpTimeoutEnvKey))
	if value == "" {
		return defaultHTTPTimeout
	}

	if duration, err := time.ParseDuration(value); err == nil && duration > 0 {
		return duration
	}
	if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}

	return defaultHTTPTimeout
}
