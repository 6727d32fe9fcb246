// Package chat runs a single conversational completion against a session's
// history.
package chat

import (
	"context"
	"fmt"

	"fyuchan/pkg/llm"
	"fyuchan/pkg/session"
)

// CompletionClient is the completion service boundary.
type CompletionClient interface {
	ChatCompletion(ctx context.Context, messages []llm.Message) (string, error)
}

type Completer struct {
	client CompletionClient
}

func NewCompleter(client CompletionClient) *Completer {
	return &Completer{client: client}
}

// Complete sends [system, history..., user] and returns the reply. The user
// message and the reply are appended to history only when the call succeeds.
func (c *Completer) Complete(ctx context.Context, systemPrompt string, history *session.History, userMessage string) (string, error) {
	prior := history.Messages()

	messages := make([]llm.Message, 0, len(prior)+2)
	messages = append(messages, llm.Message{Role: string(session.RoleSystem), Content: systemPrompt})
	for _, m := range prior {
		messages = append(messages, llm.Message{Role: string(m.Role), Content: m.Content})
	}
	messages = append(messages, llm.Message{Role: string(session.RoleUser), Content: userMessage})

	reply, err := c.client.ChatCompletion(ctx, messages)
	if err != nil {
		return "", fmt.Errorf("completion failed: %w", err)
	}

	history.Append(
		session.Message{Role: session.RoleUser, Content: userMessage},
		session.Message{Role: session.RoleAssistant, Content: reply},
	)
	return reply, nil
}
