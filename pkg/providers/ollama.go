package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/lumenlab/axon/pkg/catalog"
)

// Ollama adapts a local Ollama runtime over its HTTP API.
type Ollama struct {
	client  *http.Client
	baseURL string
}

type ollamaGenerateRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	Stream  bool           `json:"stream"`
	Options map[string]any `json:"options,omitempty"`
}

type ollamaGenerateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

type ollamaTagsResponse struct {
	Models []json.RawMessage `json:"models"`
}

// NewOllama creates an Ollama adapter for the given endpoint. An empty
// endpoint yields an unavailable adapter.
func NewOllama(endpoint string) *Ollama {
	if endpoint == "" {
		return &Ollama{}
	}
	return &Ollama{
		client:  &http.Client{Timeout: 5 * time.Minute},
		baseURL: strings.TrimRight(endpoint, "/"),
	}
}

// Available reports whether an endpoint was configured.
func (o *Ollama) Available() bool {
	return o.client != nil
}

// Complete generates a reply for the prompt.
func (o *Ollama) Complete(ctx context.Context, modelID, prompt string) (string, error) {
	if o.client == nil {
		return "", callErrf("ollama", modelID, "adapter not configured")
	}

	reqBody, err := json.Marshal(ollamaGenerateRequest{
		Model:   modelID,
		Prompt:  strings.TrimSpace(prompt),
		Stream:  false,
		Options: map[string]any{"temperature": 0},
	})
	if err != nil {
		return "", callErr("ollama", modelID, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/api/generate", bytes.NewReader(reqBody))
	if err != nil {
		return "", callErr("ollama", modelID, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(httpReq)
	if err != nil {
		return "", callErr("ollama", modelID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", callErrf("ollama", modelID, "API returned status %d", resp.StatusCode)
	}

	var genResp ollamaGenerateResponse
	if err := json.NewDecoder(resp.Body).Decode(&genResp); err != nil {
		return "", callErr("ollama", modelID, err)
	}
	return genResp.Response, nil
}

// Models queries the runtime's model listing for catalog discovery. Each raw
// entry is classified into one of the catalog's tagged variants. An
// unreachable runtime returns an error; callers treat that as "no local
// models", not as a failure.
func (o *Ollama) Models(ctx context.Context) ([]catalog.DiscoveredModel, error) {
	if o.client == nil {
		return nil, fmt.Errorf("ollama adapter not configured")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, o.baseURL+"/api/tags", nil)
	if err != nil {
		return nil, err
	}

	resp, err := o.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ollama API returned status %d", resp.StatusCode)
	}

	var tags ollamaTagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return nil, err
	}

	models := make([]catalog.DiscoveredModel, 0, len(tags.Models))
	for _, raw := range tags.Models {
		models = append(models, classify(raw))
	}
	return models, nil
}

// classify maps one raw listing entry onto a tagged variant.
func classify(raw json.RawMessage) catalog.DiscoveredModel {
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err == nil {
		return catalog.MappingEntry{Fields: fields}
	}
	var name string
	if err := json.Unmarshal(raw, &name); err == nil {
		return catalog.AttributeEntry{Name: name}
	}
	var value any
	_ = json.Unmarshal(raw, &value)
	return catalog.OpaqueEntry{Value: value}
}
