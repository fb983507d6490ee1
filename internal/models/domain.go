package models

import (
	"fmt"
	"strings"
)

// Role identifies the author of a conversation message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// PartKind discriminates the content part union.
type PartKind string

const (
	PartKindText  PartKind = "text"
	PartKindImage PartKind = "image"
	PartKindFile  PartKind = "file"
)

var validRoles = map[Role]struct{}{
	RoleUser:      {},
	RoleAssistant: {},
}

// referenceFields maps attachment-bearing part kinds to the JSON field that
// carries their reference.
var referenceFields = map[PartKind]string{
	PartKindImage: "image",
	PartKindFile:  "data",
}

// ParseRole accepts only the exact role names.
func ParseRole(raw string) (Role, error) {
	value := Role(raw)
	if strings.TrimSpace(raw) == "" {
		return "", fmt.Errorf("message role is required")
	}
	if _, ok := validRoles[value]; !ok {
		return "", fmt.Errorf("invalid message role: %s", value)
	}
	return value, nil
}

// IsAttachmentKind reports whether parts of this kind carry a reference.
func IsAttachmentKind(kind PartKind) bool {
	_, ok := referenceFields[kind]
	return ok
}
