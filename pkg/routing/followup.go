package routing

import (
	"regexp"
	"strings"
)

var followUpPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\b(it|this|that|these|those|they|them)\b`),
	regexp.MustCompile(`\b(also|additionally|furthermore|moreover|besides)\b`),
	regexp.MustCompile(`\b(same|previous|earlier|before|above|mentioned)\b`),
	regexp.MustCompile(`\b(what about|how about|tell me more|more info|explain|clarify)\b`),
	regexp.MustCompile(`^.{1,20}$`),
	regexp.MustCompile(`\b(another|other|different|similar|like that)\b`),
}

// IsFollowUp reports whether query reads like a continuation of the previous
// exchange: referential pronouns, continuation words, requests for more, very
// short queries and comparisons.
func IsFollowUp(query string) bool {
	q := strings.ToLower(strings.TrimSpace(query))
	for _, p := range followUpPatterns {
		if p.MatchString(q) {
			return true
		}
	}
	return false
}
