package routing

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsFollowUp(t *testing.T) {
	tests := []struct {
		query string
		want  bool
	}{
		{"What about the marketing department?", true},
		{"Can you tell me more about onboarding policies", true},
		{"Is that also true for contractors in Europe", true},
		{"Show me the previous quarter numbers again", true},
		{"Give me a different breakdown of headcount", true},
		{"thanks", true},
		{"  short query  ", true},
		{"How many engineers joined the company in March", false},
		{"Summarize the quarterly revenue for every region", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			assert.Equal(t, tt.want, IsFollowUp(tt.query))
		})
	}
}
