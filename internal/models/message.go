package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrMalformedContent marks a message or part that does not match the
// expected shape. Such units are relayed unchanged.
var ErrMalformedContent = errors.New("malformed content")

// ContentPart is one element of structured message content.
//
// Text parts carry Text; image and file parts carry Reference, which is either
// an opaque file:// reference or a resolved URL. Parts of any other kind are
// kept verbatim. Fields not modelled here survive a decode/encode cycle.
type ContentPart struct {
	Kind      PartKind
	Text      string
	Reference string

	fields map[string]json.RawMessage
}

func TextPart(text string) ContentPart {
	return ContentPart{Kind: PartKindText, Text: text}
}

func ImagePart(ref string) ContentPart {
	return ContentPart{Kind: PartKindImage, Reference: ref}
}

func FilePart(ref string) ContentPart {
	return ContentPart{Kind: PartKindFile, Reference: ref}
}

// HasReference reports whether the part carries an attachment reference.
func (p ContentPart) HasReference() bool {
	return IsAttachmentKind(p.Kind)
}

// WithReference returns a copy of p pointing at ref.
func (p ContentPart) WithReference(ref string) ContentPart {
	p.Reference = ref
	return p
}

// Field returns a raw JSON field from the decoded part, if present.
func (p ContentPart) Field(key string) (json.RawMessage, bool) {
	raw, ok := p.fields[key]
	return raw, ok
}

func (p *ContentPart) UnmarshalJSON(data []byte) error {
	fields, err := decodeObject(data, "content part")
	if err != nil {
		return err
	}

	var kind string
	if err := decodeStringField(fields, "type", &kind); err != nil {
		return err
	}
	if strings.TrimSpace(kind) == "" {
		return fmt.Errorf("%w: content part type is required", ErrMalformedContent)
	}

	part := ContentPart{Kind: PartKind(kind), fields: fields}
	switch {
	case part.Kind == PartKindText:
		if err := decodeStringField(fields, "text", &part.Text); err != nil {
			return err
		}
	case IsAttachmentKind(part.Kind):
		field := referenceFields[part.Kind]
		if _, ok := fields[field]; !ok {
			return fmt.Errorf("%w: %s part requires %q", ErrMalformedContent, part.Kind, field)
		}
		if err := decodeStringField(fields, field, &part.Reference); err != nil {
			return err
		}
	}

	*p = part
	return nil
}

func (p ContentPart) MarshalJSON() ([]byte, error) {
	out := make(map[string]json.RawMessage, len(p.fields)+2)
	for k, v := range p.fields {
		out[k] = v
	}
	if err := setStringField(out, "type", string(p.Kind)); err != nil {
		return nil, err
	}

	switch {
	case p.Kind == PartKindText:
		if _, had := p.fields["text"]; had || p.fields == nil || p.Text != "" {
			if err := setStringField(out, "text", p.Text); err != nil {
				return nil, err
			}
		}
	case IsAttachmentKind(p.Kind):
		if err := setStringField(out, referenceFields[p.Kind], p.Reference); err != nil {
			return nil, err
		}
	}
	return json.Marshal(out)
}

// Content is either plain text or an ordered list of parts.
type Content struct {
	Text  string
	Parts []ContentPart

	structured bool
}

func TextContent(text string) Content {
	return Content{Text: text}
}

func PartsContent(parts ...ContentPart) Content {
	return Content{Parts: parts, structured: true}
}

// Structured reports whether the content is a part list.
func (c Content) Structured() bool {
	return c.structured
}

// Clone returns a copy that shares no part slice with c.
func (c Content) Clone() Content {
	if c.Parts != nil {
		c.Parts = append([]ContentPart(nil), c.Parts...)
	}
	return c
}

func (c *Content) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return fmt.Errorf("%w: message content is empty", ErrMalformedContent)
	}
	switch trimmed[0] {
	case '"':
		var text string
		if err := json.Unmarshal(trimmed, &text); err != nil {
			return malformed(err)
		}
		*c = TextContent(text)
		return nil
	case '[':
		var parts []ContentPart
		if err := json.Unmarshal(trimmed, &parts); err != nil {
			return malformed(err)
		}
		if parts == nil {
			parts = []ContentPart{}
		}
		*c = PartsContent(parts...)
		return nil
	default:
		return fmt.Errorf("%w: message content must be a string or a list of parts", ErrMalformedContent)
	}
}

func (c Content) MarshalJSON() ([]byte, error) {
	if !c.structured {
		return json.Marshal(c.Text)
	}
	parts := c.Parts
	if parts == nil {
		parts = []ContentPart{}
	}
	return json.Marshal(parts)
}

// Message is one conversation turn.
//
// Decoding never fails on shape: a message that does not validate keeps its
// raw bytes, reports Malformed, and encodes back to exactly what was read.
type Message struct {
	Role    Role
	Content Content

	fields  map[string]json.RawMessage
	raw     json.RawMessage
	invalid error
}

func NewMessage(role Role, content Content) Message {
	return Message{Role: role, Content: content}
}

// Malformed reports whether the message failed shape validation.
func (m Message) Malformed() bool {
	return m.invalid != nil
}

// Err returns the shape validation error, if any.
func (m Message) Err() error {
	return m.invalid
}

// Clone returns a copy whose content can be rewritten without touching m.
func (m Message) Clone() Message {
	m.Content = m.Content.Clone()
	return m
}

// Text concatenates the message's text, skipping non-text parts.
func (m Message) Text() string {
	if !m.Content.Structured() {
		return m.Content.Text
	}
	var b strings.Builder
	for _, part := range m.Content.Parts {
		if part.Kind != PartKindText || part.Text == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString(" ")
		}
		b.WriteString(part.Text)
	}
	return b.String()
}

func (m *Message) UnmarshalJSON(data []byte) error {
	raw := append(json.RawMessage(nil), data...)
	msg, err := decodeMessage(raw)
	if err != nil {
		*m = Message{raw: raw, invalid: err}
		return nil
	}
	*m = msg
	return nil
}

func (m Message) MarshalJSON() ([]byte, error) {
	if m.invalid != nil && m.raw != nil {
		return m.raw, nil
	}
	out := make(map[string]json.RawMessage, len(m.fields)+2)
	for k, v := range m.fields {
		out[k] = v
	}
	if err := setStringField(out, "role", string(m.Role)); err != nil {
		return nil, err
	}
	content, err := json.Marshal(m.Content)
	if err != nil {
		return nil, err
	}
	out["content"] = content
	return json.Marshal(out)
}

func decodeMessage(data []byte) (Message, error) {
	fields, err := decodeObject(data, "message")
	if err != nil {
		return Message{}, err
	}

	var rawRole string
	if err := decodeStringField(fields, "role", &rawRole); err != nil {
		return Message{}, err
	}
	role, err := ParseRole(rawRole)
	if err != nil {
		return Message{}, malformed(err)
	}

	rawContent, ok := fields["content"]
	if !ok {
		return Message{}, fmt.Errorf("%w: message content is required", ErrMalformedContent)
	}
	var content Content
	if err := json.Unmarshal(rawContent, &content); err != nil {
		return Message{}, malformed(err)
	}

	return Message{Role: role, Content: content, fields: fields}, nil
}

func decodeObject(data []byte, what string) (map[string]json.RawMessage, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil || fields == nil {
		return nil, fmt.Errorf("%w: %s must be an object", ErrMalformedContent, what)
	}
	return fields, nil
}

func decodeStringField(fields map[string]json.RawMessage, key string, dst *string) error {
	raw, ok := fields[key]
	if !ok {
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("%w: field %q must be a string", ErrMalformedContent, key)
	}
	return nil
}

func setStringField(out map[string]json.RawMessage, key, value string) error {
	encoded, err := json.Marshal(value)
	if err != nil {
		return err
	}
	out[key] = encoded
	return nil
}

func malformed(err error) error {
	if errors.Is(err, ErrMalformedContent) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrMalformedContent, err)
}
