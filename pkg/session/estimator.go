package session

import (
	"fmt"
	"sync"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
)

// TokenEstimator approximates how many model tokens a piece of text costs.
type TokenEstimator interface {
	EstimateTokens(text string) float64
}

// DefaultCharsPerToken is the heuristic ratio used by CharEstimator.
const DefaultCharsPerToken = 4

// CharEstimator counts characters and divides by CharsPerToken.
type CharEstimator struct {
	CharsPerToken int
}

func (c CharEstimator) EstimateTokens(text string) float64 {
	per := c.CharsPerToken
	if per <= 0 {
		per = DefaultCharsPerToken
	}
	return float64(utf8.RuneCountInString(text)) / float64(per)
}

// TiktokenEstimator counts tokens with a BPE encoding.
type TiktokenEstimator struct {
	mu  sync.Mutex
	enc *tiktoken.Tiktoken
}

// NewTiktokenEstimator loads encoding, falling back to cl100k_base when
// encoding is empty.
func NewTiktokenEstimator(encoding string) (*TiktokenEstimator, error) {
	if encoding == "" {
		encoding = "cl100k_base"
	}
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("failed to load tiktoken encoding %s: %w", encoding, err)
	}
	return &TiktokenEstimator{enc: enc}, nil
}

func (t *TiktokenEstimator) EstimateTokens(text string) float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return float64(len(t.enc.Encode(text, nil, nil)))
}
