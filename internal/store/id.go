package store

import (
	"fmt"

	"github.com/google/uuid"
)

const idMaxAttempts = 5

// GenerateAttachmentID returns a fresh UUIDv4 attachment id, retrying while
// exists reports a collision.
func GenerateAttachmentID(exists func(string) (bool, error)) (string, error) {
	for i := 0; i < idMaxAttempts; i++ {
		u, err := uuid.NewRandom()
		if err != nil {
			return "", err
		}
		id := u.String()
		if exists == nil {
			return id, nil
		}
		taken, err := exists(id)
		if err != nil {
			return "", err
		}
		if !taken {
			return id, nil
		}
	}
	return "", fmt.Errorf("unable to generate unique attachment id")
}

// ValidAttachmentID reports whether raw is a canonical attachment id.
func ValidAttachmentID(raw string) bool {
	u, err := uuid.Parse(raw)
	return err == nil && u.String() == raw
}
