package providers

import (
	"context"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// Default endpoints for the OpenAI-compatible backends.
const (
	groqBaseURL    = "https://api.groq.com/openai/v1"
	mistralBaseURL = "https://api.mistral.ai/v1"
)

// OpenAICompatible adapts any chat-completions endpoint that speaks the
// OpenAI wire protocol. Groq, Mistral and LM Studio all do.
type OpenAICompatible struct {
	name   string
	client *openai.Client
}

func newCompatible(name, baseURL, apiKey string) *OpenAICompatible {
	if apiKey == "" {
		return &OpenAICompatible{name: name}
	}
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return &OpenAICompatible{name: name, client: openai.NewClientWithConfig(config)}
}

// NewOpenAI creates an adapter for the hosted OpenAI API.
func NewOpenAI(apiKey string) *OpenAICompatible {
	return newCompatible("openai", "", apiKey)
}

// NewGroq creates an adapter for the Groq API.
func NewGroq(apiKey string) *OpenAICompatible {
	return newCompatible("groq", groqBaseURL, apiKey)
}

// NewMistral creates an adapter for the Mistral API.
func NewMistral(apiKey string) *OpenAICompatible {
	return newCompatible("mistral", mistralBaseURL, apiKey)
}

// NewLMStudio creates an adapter for a local LM Studio server. The server
// ignores API keys, so only the endpoint matters; an empty endpoint yields an
// unavailable adapter.
func NewLMStudio(endpoint string) *OpenAICompatible {
	if endpoint == "" {
		return &OpenAICompatible{name: "lmstudio"}
	}
	return newCompatible("lmstudio", endpoint, "not-needed")
}

// Available reports whether the adapter was configured.
func (p *OpenAICompatible) Available() bool {
	return p.client != nil
}

// Complete sends the prompt as a single user message.
func (p *OpenAICompatible) Complete(ctx context.Context, modelID, prompt string) (string, error) {
	if p.client == nil {
		return "", callErrf(p.name, modelID, "adapter not configured")
	}

	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: modelID,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: strings.TrimSpace(prompt)},
		},
		Temperature: 0,
	})
	if err != nil {
		return "", callErr(p.name, modelID, err)
	}
	if len(resp.Choices) == 0 {
		return "", callErrf(p.name, modelID, "response contained no choices")
	}
	return resp.Choices[0].Message.Content, nil
}
