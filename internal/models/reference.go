package models

import "strings"

// ReferenceScheme prefixes every opaque attachment reference.
const ReferenceScheme = "file://"

// FormatReference renders the opaque reference for an attachment id.
func FormatReference(id string) string {
	return ReferenceScheme + id
}

// IsReference reports whether ref has the opaque reference shape.
func IsReference(ref string) bool {
	return strings.HasPrefix(ref, ReferenceScheme)
}

// ParseReference extracts the attachment id from an opaque reference.
// Surrounding whitespace and trailing slashes are dropped from the id. ok is
// false when ref does not start with the scheme; the id may still be empty.
func ParseReference(ref string) (id string, ok bool) {
	if !IsReference(ref) {
		return "", false
	}
	id = strings.TrimSpace(strings.TrimPrefix(ref, ReferenceScheme))
	id = strings.TrimSpace(strings.TrimRight(id, "/"))
	return id, true
}
