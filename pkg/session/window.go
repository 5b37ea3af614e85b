package session

import (
	"strings"
	"unicode/utf8"
)

// DefaultMessageOverhead is the per-message cost, in characters, added for
// the role label and separators.
const DefaultMessageOverhead = 20

// slidingWindow returns the longest suffix of msgs whose summed cost fits in
// budget. The newest message is always kept, even when it alone exceeds the
// budget.
func slidingWindow(msgs []Message, budget float64, cost func(Message) float64) []Message {
	if len(msgs) == 0 {
		return nil
	}

	start := len(msgs) - 1
	total := cost(msgs[start])
	for i := start - 1; i >= 0; i-- {
		c := cost(msgs[i])
		if total+c > budget {
			break
		}
		total += c
		start = i
	}
	return msgs[start:]
}

// renderContext formats msgs oldest-first as "ROLE: content" lines.
func renderContext(msgs []Message) string {
	if len(msgs) == 0 {
		return ""
	}
	lines := make([]string, len(msgs))
	for i, m := range msgs {
		lines[i] = strings.ToUpper(string(m.Role)) + ": " + m.Content
	}
	return strings.Join(lines, "\n")
}

func charCost(overhead int) func(Message) float64 {
	return func(m Message) float64 {
		return float64(utf8.RuneCountInString(m.Content) + overhead)
	}
}

func tokenCost(est TokenEstimator, overhead int) func(Message) float64 {
	overheadTokens := float64(overhead) / float64(charsPerToken(est))
	return func(m Message) float64 {
		return est.EstimateTokens(m.Content) + overheadTokens
	}
}

// charsPerToken is the ratio used to price the per-message overhead. BPE
// estimators fall back to the default heuristic.
func charsPerToken(est TokenEstimator) int {
	if c, ok := est.(CharEstimator); ok && c.CharsPerToken > 0 {
		return c.CharsPerToken
	}
	return DefaultCharsPerToken
}
