package backend

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"path"
	"strings"
	"time"

	"chatgate/internal/blobstore"
	"chatgate/internal/models"
	"chatgate/internal/resolver"
	"chatgate/internal/store"
)

const (
	unknownFilename           = "unknown"
	fallbackContentType       = "application/octet-stream"
	maxFilenameLength         = 255
	maxConversationIDLength   = 128
	attachmentMetaSHA256Field = "sha256"
)

// AttachmentService orchestrates attachment workflows across the registry
// and the blob store. Every operation is scoped to an owner.
type AttachmentService struct {
	store  store.AttachmentStore
	blobs  blobstore.BlobStore
	signer resolver.Signer
	ttl    time.Duration
	logger *slog.Logger
}

// UploadInput describes one uploaded file.
type UploadInput struct {
	OwnerID        string
	ConversationID string
	Filename       string
	ContentType    string
}

// AttachmentDetail is an attachment with a time-limited download URL.
type AttachmentDetail struct {
	Attachment models.Attachment
	BlobURL    string
}

// NewAttachmentService constructs an AttachmentService.
func NewAttachmentService(attachmentStore store.AttachmentStore, blobs blobstore.BlobStore, signer resolver.Signer, ttl time.Duration, logger *slog.Logger) *AttachmentService {
	if ttl <= 0 {
		ttl = blobstore.DefaultSignedURLTTL
	}
	return &AttachmentService{store: attachmentStore, blobs: blobs, signer: signer, ttl: ttl, logger: logger}
}

// Upload persists content and records the attachment.
func (a *AttachmentService) Upload(ctx context.Context, in UploadInput, content io.Reader) (models.Attachment, error) {
	var zero models.Attachment
	if content == nil {
		return zero, badRequestCode(fmt.Errorf("file is required"), ErrCodeMissingRequired)
	}
	if a == nil || a.store == nil || a.blobs == nil {
		return zero, internalError(fmt.Errorf("attachment service is not configured"))
	}

	conversationID := strings.TrimSpace(in.ConversationID)
	if len(conversationID) > maxConversationIDLength {
		return zero, badRequestCode(fmt.Errorf("conversation-id must be at most %d characters", maxConversationIDLength), ErrCodeInvalidID)
	}
	filename := normalizeFilename(in.Filename)
	contentType, err := normalizeContentType(in.ContentType)
	if err != nil {
		return zero, badRequest(err)
	}

	put, err := a.blobs.Put(ctx, content)
	if err != nil {
		return zero, classifyBlobWriteError(err)
	}

	attachment := &models.Attachment{
		OwnerID:        in.OwnerID,
		ConversationID: conversationID,
		Filename:       filename,
		StorageLocator: put.Locator,
		ContentType:    contentType,
		SizeBytes:      put.SizeBytes,
		Meta:           map[string]any{attachmentMetaSHA256Field: put.SHA256},
	}
	if err := a.store.CreateAttachment(ctx, attachment); err != nil {
		a.releaseBlob(ctx, put.Locator)
		return zero, storeFailure(err)
	}

	a.log().Info("attachment uploaded", "attachment_id", attachment.ID, "owner_id", attachment.OwnerID, "conversation_id", conversationID, "size_bytes", attachment.SizeBytes)
	return *attachment, nil
}

// Get returns an owned attachment with a signed download URL.
func (a *AttachmentService) Get(ctx context.Context, id, ownerID string) (AttachmentDetail, error) {
	var zero AttachmentDetail
	attachment, err := a.lookup(ctx, id, ownerID)
	if err != nil {
		return zero, err
	}
	if a.signer == nil {
		return zero, internalError(fmt.Errorf("url signer is not configured"))
	}
	blobURL, err := a.signer.IssueSignedURL(ctx, attachment.StorageLocator, a.ttl)
	if err != nil {
		return zero, internalError(fmt.Errorf("sign attachment url: %w", err))
	}
	return AttachmentDetail{Attachment: *attachment, BlobURL: blobURL}, nil
}

// Delete removes an owned attachment. The stored bytes go too once no other
// record points at them.
func (a *AttachmentService) Delete(ctx context.Context, id, ownerID string) error {
	attachment, err := a.lookup(ctx, id, ownerID)
	if err != nil {
		return err
	}
	deleted, err := a.store.DeleteAttachment(ctx, id, ownerID)
	if err != nil {
		return storeFailure(err)
	}
	if !deleted {
		return notFoundCode(fmt.Errorf("attachment not found: %s", id), ErrCodeAttachmentNotFound)
	}
	a.releaseBlob(ctx, attachment.StorageLocator)
	a.log().Info("attachment deleted", "attachment_id", id, "owner_id", ownerID)
	return nil
}

// ListConversation lists an owner's attachments for one conversation.
func (a *AttachmentService) ListConversation(ctx context.Context, ownerID, conversationID string) ([]models.Attachment, error) {
	if a == nil || a.store == nil {
		return nil, internalError(fmt.Errorf("attachment service is not configured"))
	}
	conversationID = strings.TrimSpace(conversationID)
	if conversationID == "" {
		return nil, badRequestCode(fmt.Errorf("conversation_id is required"), ErrCodeMissingRequired)
	}
	attachments, err := a.store.ListAttachmentsByConversation(ctx, ownerID, conversationID)
	if err != nil {
		return nil, storeFailure(err)
	}
	if attachments == nil {
		attachments = []models.Attachment{}
	}
	return attachments, nil
}

// OpenBlob opens stored bytes by locator.
func (a *AttachmentService) OpenBlob(ctx context.Context, locator string) (io.ReadCloser, error) {
	if a == nil || a.blobs == nil {
		return nil, internalError(fmt.Errorf("blob store is not configured"))
	}
	rc, err := a.blobs.Open(ctx, locator)
	if err != nil {
		if errors.Is(err, blobstore.ErrBlobNotFound) {
			return nil, notFoundCode(fmt.Errorf("blob not found"), ErrCodeBlobNotFound)
		}
		return nil, blobFailure(err)
	}
	return rc, nil
}

func (a *AttachmentService) lookup(ctx context.Context, id, ownerID string) (*models.Attachment, error) {
	if a == nil || a.store == nil {
		return nil, internalError(fmt.Errorf("attachment service is not configured"))
	}
	if !store.ValidAttachmentID(id) {
		return nil, badRequestCode(fmt.Errorf("invalid attachment id"), ErrCodeInvalidID)
	}
	attachment, err := a.store.LookupAttachment(ctx, id, ownerID)
	if err != nil {
		return nil, storeFailure(err)
	}
	if attachment == nil {
		return nil, notFoundCode(fmt.Errorf("attachment not found: %s", id), ErrCodeAttachmentNotFound)
	}
	return attachment, nil
}

// releaseBlob deletes bytes no record references any more. Failures are
// logged, not returned.
func (a *AttachmentService) releaseBlob(ctx context.Context, locator string) {
	count, err := a.store.CountAttachmentsByLocator(ctx, locator)
	if err != nil {
		a.log().Warn("count blob references", "locator", locator, "error", err)
		return
	}
	if count > 0 {
		return
	}
	if err := a.blobs.Delete(ctx, locator); err != nil {
		a.log().Warn("delete unreferenced blob", "locator", locator, "error", err)
	}
}

func (a *AttachmentService) log() *slog.Logger {
	if a != nil && a.logger != nil {
		return a.logger
	}
	return slog.Default()
}

func normalizeFilename(raw string) string {
	name := strings.TrimSpace(path.Base(strings.ReplaceAll(raw, "\\", "/")))
	if name == "" || name == "." || name == ".." || name == "/" {
		return unknownFilename
	}
	if len(name) > maxFilenameLength {
		name = name[:maxFilenameLength]
	}
	return name
}

func normalizeContentType(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallbackContentType, nil
	}
	mediaType, params, err := mime.ParseMediaType(raw)
	if err != nil {
		return "", fmt.Errorf("invalid content type %q", raw)
	}
	return mime.FormatMediaType(mediaType, params), nil
}

func classifyBlobWriteError(err error) error {
	if isBodyTooLarge(err) {
		return badRequestCode(fmt.Errorf("request body too large"), ErrCodeRequestTooLarge)
	}
	return blobFailure(err)
}
