package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/lumenlab/axon/pkg/cache"
	"github.com/lumenlab/axon/pkg/catalog"
	"github.com/lumenlab/axon/pkg/config"
	"github.com/lumenlab/axon/pkg/dispatch"
	"github.com/lumenlab/axon/pkg/events"
	"github.com/lumenlab/axon/pkg/executor"
	"github.com/lumenlab/axon/pkg/guard"
	"github.com/lumenlab/axon/pkg/logging"
	"github.com/lumenlab/axon/pkg/meter"
	"github.com/lumenlab/axon/pkg/metrics"
	"github.com/lumenlab/axon/pkg/providers"
	"github.com/lumenlab/axon/pkg/state"
	"github.com/lumenlab/axon/pkg/tokens"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

func main() {
	modelFlag := flag.String("model", "", "model display name (e.g. \"Claude 3.5 Sonnet\")")
	projectFlag := flag.String("project", "default", "project identifier for state and token accounting")
	listFlag := flag.Bool("list", false, "list available models and exit")
	flag.Parse()

	cfg := config.Load()

	logger, err := logging.NewLogger(logging.Config{Level: cfg.LogLevel, Format: "console", Output: "stderr"})
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to initialize logger:", err)
		os.Exit(1)
	}
	defer logger.Sync()

	bus := events.NewBus(256, logger)
	go drainEvents(bus, logger)

	ollama := providers.NewOllama(cfg.OllamaEndpoint)
	cat := buildCatalog(ollama, logger)

	if *listFlag {
		printModels(cat)
		return
	}
	if *modelFlag == "" {
		fmt.Fprintln(os.Stderr, "usage: axon -model <display name> [-project <id>] <prompt>")
		os.Exit(2)
	}

	prompt, err := readPrompt(flag.Args())
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to read prompt:", err)
		os.Exit(1)
	}

	rates, err := meter.LoadRates(cfg.RatesPath)
	if err != nil {
		logger.Error("failed to load model rates", zap.Error(err))
		os.Exit(1)
	}

	meterOpts := []meter.Option{meter.WithThreshold(cfg.TokenThreshold)}
	if cfg.CostDBPath != "" {
		costStore, err := meter.NewCostStore(cfg.CostDBPath)
		if err != nil {
			logger.Error("failed to open cost store", zap.Error(err))
			os.Exit(1)
		}
		defer costStore.Close()
		meterOpts = append(meterOpts, meter.WithCostStore(costStore))
	}
	m := meter.New(cfg.LedgerPath, rates, logger, meterOpts...)

	store, err := state.NewStore(cfg.StatePath, bus, logger)
	if err != nil {
		logger.Error("failed to open state store", zap.Error(err))
		os.Exit(1)
	}
	defer store.Close()

	promMetrics := metrics.New(prometheus.DefaultRegisterer)

	dispatcher := dispatch.New(dispatch.Params{
		Catalog:    cat,
		Adapters:   buildAdapters(cfg, ollama, promMetrics, logger),
		Executor:   executor.New(bus, logger),
		Meter:      m,
		Counter:    tokens.NewDefault(),
		Store:      store,
		Emitter:    bus,
		Metrics:    promMetrics,
		Logger:     logger,
		Timeout:    cfg.TimeoutInference,
		LogPrompts: cfg.LogPrompts,
		Model:      *modelFlag,
	})

	response, err := dispatcher.RunInference(context.Background(), prompt, *projectFlag)
	if err != nil {
		logger.Error("inference failed", zap.Error(err))
		os.Exit(1)
	}
	fmt.Println(response)
}

// buildCatalog discovers local Ollama models and folds them into the static
// table. An unreachable runtime just means fewer choices.
func buildCatalog(ollama *providers.Ollama, logger *logging.Logger) *catalog.Catalog {
	var entries []catalog.Entry
	if ollama.Available() {
		models, err := ollama.Models(context.Background())
		if err != nil {
			logger.Warn("ollama not reachable, local models unavailable", zap.Error(err))
		} else {
			entries = catalog.Normalize(models)
		}
	}
	return catalog.New(entries)
}

// buildAdapters constructs one adapter per provider family, each wrapped
// with a circuit breaker and, when configured, a rate limit and a response
// cache.
func buildAdapters(cfg *config.Config, ollama *providers.Ollama, m *metrics.Metrics, logger *logging.Logger) map[catalog.Family]providers.Adapter {
	base := map[catalog.Family]providers.Adapter{
		catalog.FamilyClaude:      providers.NewClaude(cfg.ClaudeAPIKey),
		catalog.FamilyOpenAI:      providers.NewOpenAI(cfg.OpenAIAPIKey),
		catalog.FamilyGoogle:      providers.NewGemini(cfg.GeminiAPIKey),
		catalog.FamilyMistral:     providers.NewMistral(cfg.MistralAPIKey),
		catalog.FamilyGroq:        providers.NewGroq(cfg.GroqAPIKey),
		catalog.FamilyOllama:      ollama,
		catalog.FamilyLocalServer: providers.NewLMStudio(cfg.LMStudioEndpoint),
	}

	adapters := make(map[catalog.Family]providers.Adapter, len(base))
	for family, adapter := range base {
		wrapped := providers.Adapter(guard.NewBreaker(string(family), adapter))
		if cfg.MaxRPM > 0 {
			wrapped = guard.NewLimited(wrapped, cfg.MaxRPM)
		}
		if cfg.CacheSize > 0 {
			cached, err := cache.New(wrapped, cfg.CacheSize, m)
			if err != nil {
				logger.Warn("response cache disabled", zap.Error(err))
			} else {
				wrapped = cached
			}
		}
		adapters[family] = wrapped
	}
	return adapters
}

func printModels(cat *catalog.Catalog) {
	for family, entries := range cat.ListModels() {
		if len(entries) == 0 {
			continue
		}
		fmt.Println(family)
		for _, e := range entries {
			fmt.Printf("  %s (%s)\n", e.DisplayName, e.ModelID)
		}
	}
}

func readPrompt(args []string) (string, error) {
	if len(args) > 0 {
		return strings.Join(args, " "), nil
	}
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// drainEvents keeps the bus from filling up and surfaces progress to the
// terminal.
func drainEvents(bus *events.Bus, logger *logging.Logger) {
	for ev := range bus.Events() {
		switch payload := ev.Payload.(type) {
		case events.InferencePayload:
			switch payload.Type {
			case "warning":
				logger.Warn(payload.Message)
			case "error":
				logger.Error(payload.Message)
			default:
				logger.Debug("inference in progress", zap.String("elapsed_s", payload.ElapsedTime))
			}
		case events.TokensPayload:
			logger.Debug("project token usage", zap.Int("total", payload.TokenUsage))
		}
	}
}
