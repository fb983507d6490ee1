package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"chatgate/internal/models"
	"chatgate/internal/resolver"
)

const attachmentColumns = "id, owner_id, conversation_id, filename, storage_locator, content_type, size_bytes, meta_json, created_at"

var _ resolver.Registry = (*Store)(nil)

// CreateAttachment inserts one attachment row, assigning an id when absent.
func (s *Store) CreateAttachment(ctx context.Context, attachment *models.Attachment) error {
	if attachment == nil {
		return fmt.Errorf("attachment is required")
	}
	attachment.OwnerID = strings.TrimSpace(attachment.OwnerID)
	attachment.StorageLocator = strings.TrimSpace(attachment.StorageLocator)
	if attachment.OwnerID == "" {
		return fmt.Errorf("owner_id is required")
	}
	if attachment.StorageLocator == "" {
		return fmt.Errorf("storage_locator is required")
	}
	if attachment.SizeBytes < 0 {
		return fmt.Errorf("size_bytes must be >= 0")
	}

	if strings.TrimSpace(attachment.ID) == "" {
		id, err := GenerateAttachmentID(func(id string) (bool, error) {
			return s.attachmentIDExists(ctx, id)
		})
		if err != nil {
			return err
		}
		attachment.ID = id
	}
	if attachment.CreatedAt.IsZero() {
		attachment.CreatedAt = time.Now().UTC()
	}

	metaJSON, err := attachmentMetaToJSON(attachment.Meta)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO attachments (
			id, owner_id, conversation_id, filename, storage_locator, content_type, size_bytes, meta_json, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		attachment.ID,
		attachment.OwnerID,
		nullIfEmpty(strings.TrimSpace(attachment.ConversationID)),
		attachment.Filename,
		attachment.StorageLocator,
		nullIfEmpty(strings.TrimSpace(attachment.ContentType)),
		attachment.SizeBytes,
		metaJSON,
		dbFormatTime(attachment.CreatedAt),
	)
	return err
}

// GetAttachment returns one attachment by id regardless of owner, or nil when absent.
func (s *Store) GetAttachment(ctx context.Context, id string) (*models.Attachment, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+attachmentColumns+` FROM attachments WHERE id = ?`, id)
	return scanAttachment(row)
}

// LookupAttachment returns the attachment when it exists and belongs to ownerID.
// Missing and foreign records both yield nil with no error.
func (s *Store) LookupAttachment(ctx context.Context, id, ownerID string) (*models.Attachment, error) {
	if id == "" || ownerID == "" {
		return nil, nil
	}
	row := s.db.QueryRowContext(ctx, `SELECT `+attachmentColumns+` FROM attachments WHERE id = ? AND owner_id = ?`, id, ownerID)
	return scanAttachment(row)
}

// ListAttachmentsByOwner lists an owner's attachments, newest first.
func (s *Store) ListAttachmentsByOwner(ctx context.Context, ownerID string) ([]models.Attachment, error) {
	return s.queryAttachments(ctx, `SELECT `+attachmentColumns+` FROM attachments WHERE owner_id = ? ORDER BY created_at DESC, id ASC`, ownerID)
}

// ListAttachmentsByConversation lists an owner's attachments for one conversation, newest first.
func (s *Store) ListAttachmentsByConversation(ctx context.Context, ownerID, conversationID string) ([]models.Attachment, error) {
	return s.queryAttachments(ctx, `SELECT `+attachmentColumns+` FROM attachments WHERE owner_id = ? AND conversation_id = ? ORDER BY created_at DESC, id ASC`, ownerID, conversationID)
}

// DeleteAttachment deletes one owned attachment row and reports whether a row was removed.
func (s *Store) DeleteAttachment(ctx context.Context, id, ownerID string) (bool, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM attachments WHERE id = ? AND owner_id = ?", id, ownerID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// CountAttachmentsByLocator returns how many rows still point at a stored blob.
func (s *Store) CountAttachmentsByLocator(ctx context.Context, locator string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM attachments WHERE storage_locator = ?", locator).Scan(&count)
	return count, err
}

func (s *Store) queryAttachments(ctx context.Context, query string, args ...any) ([]models.Attachment, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	attachments := []models.Attachment{}
	for rows.Next() {
		attachment, err := scanAttachment(rows)
		if err != nil {
			return nil, err
		}
		if attachment == nil {
			continue
		}
		attachments = append(attachments, *attachment)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return attachments, nil
}

func (s *Store) attachmentIDExists(ctx context.Context, id string) (bool, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, "SELECT 1 FROM attachments WHERE id = ? LIMIT 1", id).Scan(&exists)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func scanAttachment(scanner interface {
	Scan(dest ...any) error
}) (*models.Attachment, error) {
	attachment := models.Attachment{}

	var conversationID, contentType, metaJSON sql.NullString
	var createdAt string

	err := scanner.Scan(
		&attachment.ID,
		&attachment.OwnerID,
		&conversationID,
		&attachment.Filename,
		&attachment.StorageLocator,
		&contentType,
		&attachment.SizeBytes,
		&metaJSON,
		&createdAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	attachment.ConversationID = conversationID.String
	attachment.ContentType = contentType.String

	parsedCreated, err := dbParseTime(createdAt)
	if err != nil {
		return nil, err
	}
	attachment.CreatedAt = parsedCreated

	if metaJSON.Valid && metaJSON.String != "" {
		if err := json.Unmarshal([]byte(metaJSON.String), &attachment.Meta); err != nil {
			return nil, fmt.Errorf("parse attachment meta_json: %w", err)
		}
	}

	return &attachment, nil
}

func attachmentMetaToJSON(meta map[string]any) (any, error) {
	if len(meta) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("marshal attachment meta_json: %w", err)
	}
	return string(data), nil
}

func nullIfEmpty(value string) any {
	if value == "" {
		return nil
	}
	return value
}
