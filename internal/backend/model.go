package backend

import (
	"context"
	"fmt"
	"strings"

	"chatgate/internal/models"
)

// Usage is the token accounting for one completion.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
}

// Model produces a streamed completion for a resolved conversation. emit is
// called once per text delta; an error from emit stops generation.
type Model interface {
	Complete(ctx context.Context, messages []models.Message, emit func(delta string) error) (Usage, error)
}

// EchoModel answers with a description of the conversation it received,
// including every attachment link it was handed.
type EchoModel struct{}

func (EchoModel) Complete(ctx context.Context, messages []models.Message, emit func(delta string) error) (Usage, error) {
	var usage Usage
	for _, msg := range messages {
		usage.PromptTokens += len(strings.Fields(msg.Text()))
	}

	words := strings.Fields(describeConversation(messages))
	for i, word := range words {
		if err := ctx.Err(); err != nil {
			return usage, err
		}
		if i < len(words)-1 {
			word += " "
		}
		if err := emit(word); err != nil {
			return usage, err
		}
		usage.CompletionTokens++
	}
	return usage, nil
}

func describeConversation(messages []models.Message) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Received %d message(s).", len(messages))

	if last, ok := lastUserText(messages); ok {
		fmt.Fprintf(&b, " You said: %s", last)
	}

	for i, msg := range messages {
		if msg.Malformed() {
			fmt.Fprintf(&b, " Message %d could not be read.", i+1)
			continue
		}
		if !msg.Content.Structured() {
			continue
		}
		for _, part := range msg.Content.Parts {
			if !part.HasReference() {
				continue
			}
			state := "resolved"
			if models.IsReference(part.Reference) {
				state = "unresolved"
			}
			fmt.Fprintf(&b, " Attachment (%s, %s): %s", part.Kind, state, part.Reference)
		}
	}
	return b.String()
}

func lastUserText(messages []models.Message) (string, bool) {
	for i := len(messages) - 1; i >= 0; i-- {
		msg := messages[i]
		if msg.Malformed() || msg.Role != models.RoleUser {
			continue
		}
		text := strings.TrimSpace(msg.Text())
		if text == "" {
			return "", false
		}
		return text, true
	}
	return "", false
}
