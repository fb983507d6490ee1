package store

import (
	"context"

	"chatgate/internal/models"
)

var _ AttachmentStore = (*Store)(nil)

// AttachmentStore is the registry surface the backend service depends on.
type AttachmentStore interface {
	CreateAttachment(ctx context.Context, attachment *models.Attachment) error
	GetAttachment(ctx context.Context, id string) (*models.Attachment, error)
	LookupAttachment(ctx context.Context, id, ownerID string) (*models.Attachment, error)
	ListAttachmentsByOwner(ctx context.Context, ownerID string) ([]models.Attachment, error)
	ListAttachmentsByConversation(ctx context.Context, ownerID, conversationID string) ([]models.Attachment, error)
	DeleteAttachment(ctx context.Context, id, ownerID string) (bool, error)
	CountAttachmentsByLocator(ctx context.Context, locator string) (int, error)
}
