package providers

import (
	"context"
	"strings"
	"sync"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/googleai"
)

// Gemini adapts the Google generative-language API. The underlying client is
// created lazily on first use because its constructor performs I/O; a
// creation failure marks the adapter unavailable for the rest of the process.
type Gemini struct {
	apiKey string

	once   sync.Once
	client *googleai.GoogleAI
	err    error
}

// NewGemini creates a Gemini adapter. An empty API key yields an unavailable
// adapter.
func NewGemini(apiKey string) *Gemini {
	return &Gemini{apiKey: apiKey}
}

// Available reports whether an API key was configured.
func (g *Gemini) Available() bool {
	return g.apiKey != ""
}

func (g *Gemini) init(ctx context.Context) (*googleai.GoogleAI, error) {
	g.once.Do(func() {
		g.client, g.err = googleai.New(ctx, googleai.WithAPIKey(g.apiKey))
	})
	return g.client, g.err
}

// Complete generates a reply for the prompt.
func (g *Gemini) Complete(ctx context.Context, modelID, prompt string) (string, error) {
	if g.apiKey == "" {
		return "", callErrf("gemini", modelID, "adapter not configured")
	}

	client, err := g.init(ctx)
	if err != nil {
		return "", callErr("gemini", modelID, err)
	}

	text, err := llms.GenerateFromSinglePrompt(ctx, client, strings.TrimSpace(prompt),
		llms.WithModel(modelID),
		llms.WithTemperature(0),
	)
	if err != nil {
		return "", callErr("gemini", modelID, err)
	}
	if text == "" {
		return "", callErrf("gemini", modelID, "response contained no text")
	}
	return text, nil
}
