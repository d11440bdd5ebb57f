// Package meter tracks token consumption and estimated cost per metered
// inference call. Metering never fails an otherwise-successful inference.
package meter

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/lumenlab/axon/pkg/logging"
	"go.uber.org/zap"
)

const (
	defaultThreshold = 8000

	ledgerHeader     = "Timestamp | Model Name | Input Tokens | Output Tokens | Total Tokens | Elapsed Time (s) | Estimated Cost\n"
	ledgerTimeFormat = "2006/01/02 15:04:05"
)

// Entry is one metered call, as written to the ledger.
type Entry struct {
	Timestamp      time.Time
	ModelName      string
	InputTokens    int
	OutputTokens   int
	TotalTokens    int
	Elapsed        time.Duration
	EstimatedCost  float64
	CurrencySymbol string
}

// Line renders the entry in the ledger's pipe-delimited format.
func (e Entry) Line() string {
	return fmt.Sprintf("%s | %s | %d | %d | %d | %.2f | %s%.5f\n",
		e.Timestamp.Format(ledgerTimeFormat),
		e.ModelName,
		e.InputTokens,
		e.OutputTokens,
		e.TotalTokens,
		e.Elapsed.Seconds(),
		e.CurrencySymbol,
		e.EstimatedCost,
	)
}

// Meter appends usage entries to a text ledger and warns when a single call
// crosses the token threshold. Writers are serialized so ledger lines are
// never interleaved. An optional CostStore mirrors entries into sqlite for
// aggregate queries.
type Meter struct {
	ledgerPath string
	threshold  int
	rates      map[string]Rates
	store      *CostStore
	logger     *logging.Logger
	clock      func() time.Time

	mu      sync.Mutex
	created bool
}

// Option configures a Meter.
type Option func(*Meter)

// WithThreshold overrides the per-call token warning threshold.
func WithThreshold(n int) Option {
	return func(m *Meter) { m.threshold = n }
}

// WithCostStore mirrors every entry into the given store.
func WithCostStore(store *CostStore) Option {
	return func(m *Meter) { m.store = store }
}

// WithClock overrides the time source. Test hook.
func WithClock(clock func() time.Time) Option {
	return func(m *Meter) { m.clock = clock }
}

// New creates a meter writing to ledgerPath with the given rate table.
func New(ledgerPath string, rates map[string]Rates, logger *logging.Logger, opts ...Option) *Meter {
	if rates == nil {
		rates = DefaultRates()
	}
	m := &Meter{
		ledgerPath: ledgerPath,
		threshold:  defaultThreshold,
		rates:      rates,
		logger:     logger,
		clock:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Rate returns the pricing for a model, falling back to the zero default
// rate with a warning for unrated models.
func (m *Meter) Rate(modelName string) Rates {
	if r, ok := m.rates[modelName]; ok {
		return r
	}
	m.logger.Warn("model not found in rate table, using default rate",
		zap.String("model", modelName))
	return ZeroRate
}

// Cost computes the estimated cost for a call against the model's rate.
func (m *Meter) Cost(modelName string, inputTokens, outputTokens int) float64 {
	r := m.Rate(modelName)
	return float64(inputTokens)*r.InputPerToken + float64(outputTokens)*r.OutputPerToken
}

// LogUsage records one metered call. It always returns the formatted ledger
// line; persistence failures are logged and swallowed.
func (m *Meter) LogUsage(modelName string, inputTokens, outputTokens int, elapsed time.Duration) string {
	r := m.Rate(modelName)
	entry := Entry{
		Timestamp:      m.clock(),
		ModelName:      modelName,
		InputTokens:    inputTokens,
		OutputTokens:   outputTokens,
		TotalTokens:    inputTokens + outputTokens,
		Elapsed:        elapsed,
		EstimatedCost:  float64(inputTokens)*r.InputPerToken + float64(outputTokens)*r.OutputPerToken,
		CurrencySymbol: CurrencySymbol(r.Currency),
	}
	line := entry.Line()

	m.mu.Lock()
	if err := m.append(line); err != nil {
		m.logger.Error("failed to write usage ledger",
			zap.String("path", m.ledgerPath), zap.Error(err))
	}
	m.mu.Unlock()

	if m.store != nil {
		if err := m.store.Record(entry, r.Currency); err != nil {
			m.logger.Error("failed to record cost entry", zap.Error(err))
		}
	}

	if entry.TotalTokens > m.threshold {
		m.logger.Warn("token usage exceeded threshold",
			zap.String("model", modelName),
			zap.Int("total_tokens", entry.TotalTokens),
			zap.Int("threshold", m.threshold),
		)
	}
	return line
}

// append writes the line, creating the ledger with its header first if
// needed. Caller holds the mutex.
func (m *Meter) append(line string) error {
	if !m.created {
		if dir := filepath.Dir(m.ledgerPath); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return err
			}
		}
		if _, err := os.Stat(m.ledgerPath); os.IsNotExist(err) {
			if err := os.WriteFile(m.ledgerPath, []byte(ledgerHeader), 0o644); err != nil {
				return err
			}
		}
		m.created = true
	}

	f, err := os.OpenFile(m.ledgerPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.WriteString(line)
	return err
}
