package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCharEstimator(t *testing.T) {
	assert.Equal(t, 2.5, CharEstimator{CharsPerToken: 4}.EstimateTokens("0123456789"))
	assert.Equal(t, 1.0, CharEstimator{}.EstimateTokens("abcd"))
	// runes, not bytes
	assert.Equal(t, 1.0, CharEstimator{CharsPerToken: 4}.EstimateTokens("ñññn"))
}
