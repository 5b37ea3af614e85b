package orchestrator

import (
	"regexp"
	"strings"
)

const fastPathMaxTokens = 5

var generalPattern = regexp.MustCompile(
	`\b(hello|hi|hey|thanks|thank you|what can you do|help|capabilities|how are you|goodbye|bye)\b`,
)

// isFastPath reports whether message is a short greeting, thanks or closing
// that is answered locally without routing.
func isFastPath(message string) bool {
	lower := strings.ToLower(strings.TrimSpace(message))
	if lower == "" || len(strings.Fields(lower)) > fastPathMaxTokens {
		return false
	}
	return generalPattern.MatchString(lower)
}
