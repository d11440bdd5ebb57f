package providers

import (
	"context"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const claudeMaxTokens = 4096

// Claude adapts the Anthropic Messages API.
type Claude struct {
	client *anthropic.Client
}

// NewClaude creates a Claude adapter. An empty API key yields an unavailable
// adapter.
func NewClaude(apiKey string) *Claude {
	if apiKey == "" {
		return &Claude{}
	}
	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	return &Claude{client: &client}
}

// Available reports whether an API key was configured.
func (c *Claude) Available() bool {
	return c.client != nil
}

// Complete sends the prompt as a single user message and concatenates the
// text blocks of the reply.
func (c *Claude) Complete(ctx context.Context, modelID, prompt string) (string, error) {
	if c.client == nil {
		return "", callErrf("claude", modelID, "adapter not configured")
	}

	msg, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(modelID),
		MaxTokens:   claudeMaxTokens,
		Temperature: anthropic.Float(0),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(strings.TrimSpace(prompt))),
		},
	})
	if err != nil {
		return "", callErr("claude", modelID, err)
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.AsText().Text)
		}
	}
	if sb.Len() == 0 {
		return "", callErrf("claude", modelID, "response contained no text blocks")
	}
	return sb.String(), nil
}
