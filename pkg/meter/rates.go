package meter

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Rates is the per-token pricing for one model.
type Rates struct {
	InputPerToken  float64 `yaml:"input_per_token"`
	OutputPerToken float64 `yaml:"output_per_token"`
	Currency       string  `yaml:"currency"`
}

// DefaultRates is the built-in rate table. Models absent from the table are
// billed at the zero default rate.
func DefaultRates() map[string]Rates {
	return map[string]Rates{
		"Gemini 2.5 Pro": {
			InputPerToken:  0.00025,
			OutputPerToken: 0.0005,
			Currency:       "USD",
		},
	}
}

// ZeroRate is the fallback for unrated models.
var ZeroRate = Rates{Currency: "USD"}

var currencySymbols = map[string]string{
	"USD": "$",
	"TWD": "NT$",
	"EUR": "€",
}

// CurrencySymbol returns the display symbol for a currency code, or the code
// itself followed by a space when no symbol is known.
func CurrencySymbol(currency string) string {
	if symbol, ok := currencySymbols[currency]; ok {
		return symbol
	}
	return currency + " "
}

// LoadRates reads rate overrides from a YAML file keyed by model name and
// merges them over the defaults. A missing file is not an error; the
// defaults apply unchanged.
func LoadRates(path string) (map[string]Rates, error) {
	rates := DefaultRates()
	if path == "" {
		return rates, nil
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return rates, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read rates file %s: %w", path, err)
	}

	var overrides map[string]Rates
	if err := yaml.Unmarshal(data, &overrides); err != nil {
		return nil, fmt.Errorf("failed to parse rates file %s: %w", path, err)
	}
	for model, r := range overrides {
		rates[model] = r
	}
	return rates, nil
}
