package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ParseConversation decodes either a bare JSON array of messages or an object
// with a "messages" array. Individual messages that fail validation are kept
// as malformed entries rather than failing the whole conversation.
func ParseConversation(data []byte) ([]Message, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("conversation is empty")
	}

	var messages []Message
	switch trimmed[0] {
	case '[':
		if err := json.Unmarshal(trimmed, &messages); err != nil {
			return nil, fmt.Errorf("decode messages: %w", err)
		}
	case '{':
		var envelope struct {
			Messages []Message `json:"messages"`
		}
		if err := json.Unmarshal(trimmed, &envelope); err != nil {
			return nil, fmt.Errorf("decode conversation: %w", err)
		}
		messages = envelope.Messages
	default:
		return nil, fmt.Errorf("conversation must be a list of messages or an object with messages")
	}

	if messages == nil {
		messages = []Message{}
	}
	return messages, nil
}
