package tokens

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"
)

// Counter counts tokens in text. Counting must be deterministic: the same
// text always yields the same count.
type Counter interface {
	Count(text string) int
}

// TiktokenCounter counts tokens using a tiktoken encoding.
type TiktokenCounter struct {
	encoding *tiktoken.Tiktoken
}

// NewTiktokenCounter creates a counter for the given encoding name.
func NewTiktokenCounter(encodingName string) (*TiktokenCounter, error) {
	encoding, err := tiktoken.GetEncoding(encodingName)
	if err != nil {
		return nil, fmt.Errorf("failed to get encoding %s: %w", encodingName, err)
	}
	return &TiktokenCounter{encoding: encoding}, nil
}

// Count returns the number of tokens in text.
func (c *TiktokenCounter) Count(text string) int {
	return len(c.encoding.Encode(text, nil, nil))
}

// HeuristicCounter estimates roughly 4 characters per token. Used when the
// tiktoken encoding cannot be loaded.
type HeuristicCounter struct{}

// Count returns a character-based estimate, at least 1 for non-empty text.
func (HeuristicCounter) Count(text string) int {
	if len(text) == 0 {
		return 0
	}
	count := len(text) / 4
	if count < 1 {
		count = 1
	}
	return count
}

// NewDefault returns a cl100k_base counter, falling back to the heuristic
// when the encoding is unavailable.
func NewDefault() Counter {
	if c, err := NewTiktokenCounter("cl100k_base"); err == nil {
		return c
	}
	return HeuristicCounter{}
}
