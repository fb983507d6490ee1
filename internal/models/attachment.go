package models

import "time"

// Attachment is the registry record behind an opaque file:// reference.
// StorageLocator never leaves the backend except inside a signed URL.
type Attachment struct {
	ID             string         `json:"id"`
	OwnerID        string         `json:"owner_id"`
	ConversationID string         `json:"conversation_id,omitempty"`
	Filename       string         `json:"filename"`
	StorageLocator string         `json:"-"`
	ContentType    string         `json:"content_type,omitempty"`
	SizeBytes      int64          `json:"size_bytes"`
	Meta           map[string]any `json:"meta,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}

// Reference returns the opaque reference handed to clients.
func (a Attachment) Reference() string {
	return FormatReference(a.ID)
}
