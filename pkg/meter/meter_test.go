package meter

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/lumenlab/axon/pkg/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMeter(t *testing.T, opts ...Option) (*Meter, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "token_usage_log.txt")
	return New(path, DefaultRates(), logging.NewNop(), opts...), path
}

func TestLogUsageGeminiRates(t *testing.T) {
	m, _ := newTestMeter(t)

	line := m.LogUsage("Gemini 2.5 Pro", 1000, 500, 2500*time.Millisecond)

	// 1000*0.00025 + 500*0.0005 = 0.5
	assert.Contains(t, line, "Gemini 2.5 Pro | 1000 | 500 | 1500 | 2.50 | $0.50000")
	assert.True(t, strings.HasSuffix(line, "\n"))
}

func TestLogUsageUnratedModelZeroCost(t *testing.T) {
	m, _ := newTestMeter(t)

	line := m.LogUsage("some-unknown-model", 300, 200, time.Second)

	assert.Contains(t, line, "some-unknown-model | 300 | 200 | 500 | 1.00 | $0.00000")
}

func TestCostNeverNegative(t *testing.T) {
	m, _ := newTestMeter(t)

	assert.GreaterOrEqual(t, m.Cost("Gemini 2.5 Pro", 1000, 500), 0.0)
	assert.Equal(t, 0.0, m.Cost("unrated", 1000, 500))
}

func TestLedgerHeaderWrittenOnce(t *testing.T) {
	m, path := newTestMeter(t)

	m.LogUsage("Gemini 2.5 Pro", 10, 10, time.Second)
	m.LogUsage("Gemini 2.5 Pro", 20, 20, time.Second)

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, strings.TrimRight(ledgerHeader, "\n"), lines[0])
	assert.Equal(t, 1, strings.Count(string(data), "Timestamp | Model Name"))
}

func TestLedgerSerializesConcurrentWriters(t *testing.T) {
	m, path := newTestMeter(t)

	const writers = 20
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			m.LogUsage(fmt.Sprintf("model-%d", n), n, n, time.Second)
		}(i)
	}
	wg.Wait()

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	require.Len(t, lines, writers+1)
	for _, line := range lines[1:] {
		assert.Equal(t, 6, strings.Count(line, " | "), "line must have all 7 fields: %q", line)
	}
}

func TestLogUsageSurvivesUnwritableLedger(t *testing.T) {
	m := New(filepath.Join(t.TempDir(), "missing", "nested", "x", "ledger.txt"), nil, logging.NewNop())
	// Make the parent unwritable by pointing the ledger inside a file.
	blocker := filepath.Join(t.TempDir(), "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))
	m.ledgerPath = filepath.Join(blocker, "ledger.txt")

	line := m.LogUsage("Gemini 2.5 Pro", 100, 100, time.Second)
	assert.NotEmpty(t, line, "metering must not fail the call on write errors")
}

func TestLogUsageTimestampFormat(t *testing.T) {
	fixed := time.Date(2024, 7, 3, 15, 4, 5, 0, time.UTC)
	m, _ := newTestMeter(t, WithClock(func() time.Time { return fixed }))

	line := m.LogUsage("Gemini 2.5 Pro", 1, 1, time.Second)
	assert.True(t, strings.HasPrefix(line, "2024/07/03 15:04:05 | "))
}

func TestCurrencySymbols(t *testing.T) {
	assert.Equal(t, "$", CurrencySymbol("USD"))
	assert.Equal(t, "NT$", CurrencySymbol("TWD"))
	assert.Equal(t, "€", CurrencySymbol("EUR"))
	assert.Equal(t, "GBP ", CurrencySymbol("GBP"))
}

func TestLoadRatesMergesOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rates.yaml")
	content := `
"GPT-4o":
  input_per_token: 0.0000025
  output_per_token: 0.00001
  currency: USD
"Gemini 2.5 Pro":
  input_per_token: 0.001
  output_per_token: 0.002
  currency: EUR
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	rates, err := LoadRates(path)
	require.NoError(t, err)

	assert.Equal(t, 0.0000025, rates["GPT-4o"].InputPerToken)
	assert.Equal(t, "EUR", rates["Gemini 2.5 Pro"].Currency, "override wins over default")
}

func TestLoadRatesMissingFileUsesDefaults(t *testing.T) {
	rates, err := LoadRates(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Contains(t, rates, "Gemini 2.5 Pro")
}
