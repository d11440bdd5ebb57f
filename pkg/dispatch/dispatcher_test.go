package dispatch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/lumenlab/axon/pkg/catalog"
	"github.com/lumenlab/axon/pkg/events"
	"github.com/lumenlab/axon/pkg/executor"
	"github.com/lumenlab/axon/pkg/logging"
	"github.com/lumenlab/axon/pkg/meter"
	"github.com/lumenlab/axon/pkg/providers"
	"github.com/lumenlab/axon/pkg/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// wordCounter counts whitespace-separated words. Deterministic and easy to
// reason about in assertions.
type wordCounter struct{}

func (wordCounter) Count(text string) int {
	return len(strings.Fields(text))
}

type fakeAdapter struct {
	mu        sync.Mutex
	available bool
	response  string
	err       error
	delay     time.Duration
	calls     int
}

func (f *fakeAdapter) Available() bool { return f.available }

func (f *fakeAdapter) Complete(ctx context.Context, modelID, prompt string) (string, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

func (f *fakeAdapter) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type harness struct {
	dispatcher *Dispatcher
	capture    *events.Capture
	store      *state.Store
	ledgerPath string
}

func newHarness(t *testing.T, adapters map[catalog.Family]providers.Adapter, model string, timeout time.Duration) *harness {
	t.Helper()

	capture := events.NewCapture()
	logger := logging.NewNop()

	store, err := state.NewStore(filepath.Join(t.TempDir(), "state.db"), capture, logger)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	ledgerPath := filepath.Join(t.TempDir(), "ledger.txt")
	m := meter.New(ledgerPath, meter.DefaultRates(), logger)

	exec := executor.New(capture, logger, executor.WithPollInterval(10*time.Millisecond))

	d := New(Params{
		Catalog:  catalog.New([]catalog.Entry{{DisplayName: "llama3.2", ModelID: "llama3.2"}}),
		Adapters: adapters,
		Executor: exec,
		Meter:    m,
		Counter:  wordCounter{},
		Store:    store,
		Emitter:  capture,
		Logger:   logger,
		Timeout:  timeout,
		Model:    model,
	})

	return &harness{dispatcher: d, capture: capture, store: store, ledgerPath: ledgerPath}
}

func TestRunInferenceSuccess(t *testing.T) {
	adapter := &fakeAdapter{available: true, response: "four words of reply"}
	h := newHarness(t, map[catalog.Family]providers.Adapter{
		catalog.FamilyGoogle: adapter,
	}, "Gemini 2.5 Pro (Preview 05-06)", 5*time.Second)

	response, err := h.dispatcher.RunInference(context.Background(), "three word prompt", "p1")
	require.NoError(t, err)
	assert.Equal(t, "four words of reply", response)
	assert.Equal(t, 1, adapter.callCount())

	// Prompt (3 words) then response (4 words) accumulate on the project.
	usage, err := h.store.GetLatestTokenUsage("p1")
	require.NoError(t, err)
	assert.Equal(t, 7, usage)

	tokenEvents := h.capture.ByTopic(events.TopicTokens)
	require.Len(t, tokenEvents, 2)
	assert.Equal(t, events.TokensPayload{TokenUsage: 3}, tokenEvents[0].Payload)
	assert.Equal(t, events.TokensPayload{TokenUsage: 7}, tokenEvents[1].Payload)

	// GOOGLE is a metered family, so the call lands in the ledger.
	data, err := os.ReadFile(h.ledgerPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Gemini 2.5 Pro (Preview 05-06) | 3 | 4 | 7 |")
}

func TestRunInferenceUnknownModel(t *testing.T) {
	adapter := &fakeAdapter{available: true, response: "never"}
	h := newHarness(t, map[catalog.Family]providers.Adapter{
		catalog.FamilyGoogle: adapter,
	}, "Gpt-4o", 5*time.Second)

	_, err := h.dispatcher.RunInference(context.Background(), "some prompt", "p1")

	var unsupported *UnsupportedModelError
	require.ErrorAs(t, err, &unsupported)
	assert.Equal(t, "Gpt-4o", unsupported.Model)

	// No adapter call, no ledger write, no token-usage update.
	assert.Zero(t, adapter.callCount())
	_, statErr := os.Stat(h.ledgerPath)
	assert.True(t, os.IsNotExist(statErr))
	usage, err := h.store.GetLatestTokenUsage("p1")
	require.NoError(t, err)
	assert.Zero(t, usage)

	// The failure is broadcast before returning.
	errorEvents := h.capture.ByTopic(events.TopicInference)
	require.NotEmpty(t, errorEvents)
	assert.Equal(t, "error", errorEvents[0].Payload.(events.InferencePayload).Type)
}

func TestRunInferenceProviderUnavailable(t *testing.T) {
	adapter := &fakeAdapter{available: false}
	h := newHarness(t, map[catalog.Family]providers.Adapter{
		catalog.FamilyClaude: adapter,
	}, "Claude 3.5 Sonnet", 5*time.Second)

	_, err := h.dispatcher.RunInference(context.Background(), "some prompt", "p1")

	var unavailable *ProviderUnavailableError
	require.ErrorAs(t, err, &unavailable)
	assert.Equal(t, catalog.FamilyClaude, unavailable.Family)
	assert.Zero(t, adapter.callCount())
}

func TestRunInferenceMissingAdapter(t *testing.T) {
	h := newHarness(t, map[catalog.Family]providers.Adapter{}, "GPT-4o", 5*time.Second)

	_, err := h.dispatcher.RunInference(context.Background(), "prompt", "p1")

	var unavailable *ProviderUnavailableError
	require.ErrorAs(t, err, &unavailable)
	assert.Equal(t, catalog.FamilyOpenAI, unavailable.Family)
}

func TestRunInferenceUnmeteredFamilySkipsLedger(t *testing.T) {
	adapter := &fakeAdapter{available: true, response: "local reply"}
	h := newHarness(t, map[catalog.Family]providers.Adapter{
		catalog.FamilyOllama: adapter,
	}, "llama3.2", 5*time.Second)

	_, err := h.dispatcher.RunInference(context.Background(), "hello there", "p1")
	require.NoError(t, err)

	// Project usage is still tracked for unmetered providers.
	usage, err := h.store.GetLatestTokenUsage("p1")
	require.NoError(t, err)
	assert.Equal(t, 4, usage)

	// But the billed-usage ledger is untouched.
	_, statErr := os.Stat(h.ledgerPath)
	assert.True(t, os.IsNotExist(statErr))
}

func TestRunInferenceTimeout(t *testing.T) {
	adapter := &fakeAdapter{available: true, response: "too late", delay: 2 * time.Second}
	h := newHarness(t, map[catalog.Family]providers.Adapter{
		catalog.FamilyGoogle: adapter,
	}, "Gemini 2.0 Flash", 80*time.Millisecond)

	_, err := h.dispatcher.RunInference(context.Background(), "two words", "p1")

	var timeoutErr *executor.TimeoutError
	require.ErrorAs(t, err, &timeoutErr)

	// Prompt tokens were counted before the call; the response never
	// arrived, so the total stays at the prompt count.
	usage, usageErr := h.store.GetLatestTokenUsage("p1")
	require.NoError(t, usageErr)
	assert.Equal(t, 2, usage)

	var sawError bool
	for _, ev := range h.capture.ByTopic(events.TopicInference) {
		if ev.Payload.(events.InferencePayload).Type == "error" {
			sawError = true
		}
	}
	assert.True(t, sawError, "error event broadcast on timeout")
}

func TestRunInferenceAdapterError(t *testing.T) {
	backendErr := &providers.CallError{Provider: "gemini", Model: "gemini-1.5-pro", Err: errors.New("safety block")}
	adapter := &fakeAdapter{available: true, err: backendErr}
	h := newHarness(t, map[catalog.Family]providers.Adapter{
		catalog.FamilyGoogle: adapter,
	}, "Gemini 1.5 Pro", 5*time.Second)

	_, err := h.dispatcher.RunInference(context.Background(), "prompt words", "p1")

	var callErr *providers.CallError
	require.ErrorAs(t, err, &callErr)
	assert.Equal(t, "gemini", callErr.Provider)
}

func TestTokenAccountingDisjointProjects(t *testing.T) {
	adapter := &fakeAdapter{available: true, response: "one reply"}
	h := newHarness(t, map[catalog.Family]providers.Adapter{
		catalog.FamilyOllama: adapter,
	}, "llama3.2", 5*time.Second)

	const rounds = 3
	var wg sync.WaitGroup
	for p := 0; p < 2; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			project := fmt.Sprintf("proj-%d", p)
			for i := 0; i < rounds; i++ {
				_, err := h.dispatcher.RunInference(context.Background(), "a b c", project)
				require.NoError(t, err)
			}
		}(p)
	}
	wg.Wait()

	// Each call adds 3 prompt words and 2 response words, regardless of
	// interleaving with the other project.
	for p := 0; p < 2; p++ {
		usage, err := h.store.GetLatestTokenUsage(fmt.Sprintf("proj-%d", p))
		require.NoError(t, err)
		assert.Equal(t, rounds*5, usage)
	}
}

func TestSetModelSwitchesBackend(t *testing.T) {
	googleAdapter := &fakeAdapter{available: true, response: "from google"}
	ollamaAdapter := &fakeAdapter{available: true, response: "from ollama"}
	h := newHarness(t, map[catalog.Family]providers.Adapter{
		catalog.FamilyGoogle: googleAdapter,
		catalog.FamilyOllama: ollamaAdapter,
	}, "Gemini 2.0 Flash", 5*time.Second)

	first, err := h.dispatcher.RunInference(context.Background(), "hi", "p1")
	require.NoError(t, err)
	assert.Equal(t, "from google", first)

	h.dispatcher.SetModel("llama3.2")
	second, err := h.dispatcher.RunInference(context.Background(), "hi", "p1")
	require.NoError(t, err)
	assert.Equal(t, "from ollama", second)
}

func TestListModelsIncludesDiscoveredEntries(t *testing.T) {
	h := newHarness(t, nil, "GPT-4o", time.Second)

	models := h.dispatcher.ListModels()
	assert.NotEmpty(t, models[catalog.FamilyOpenAI])
	assert.Equal(t, "llama3.2", models[catalog.FamilyOllama][0].DisplayName)
}
