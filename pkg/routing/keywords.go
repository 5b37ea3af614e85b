package routing

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

var defaultKeywords = map[string][]string{
	"hr": {
		"employee", "staff", "hire", "hiring", "skill", "skills", "team", "teams",
		"org chart", "organization", "organizational", "personnel", "workforce",
		"onboarding", "offboarding", "recruitment", "recruiting", "interview",
		"performance", "review", "evaluation", "promotion", "termination",
		"salary", "compensation", "benefits", "vacation", "leave", "pto",
		"insurance", "retirement", "401k", "bonus",
		"training", "development", "learning", "course", "certification",
		"mentoring", "coaching", "career",
		"manager", "supervisor", "report", "reporting", "hierarchy",
		"department", "role", "position", "job", "title",
	},
	"analytics": {
		"calculate", "compute", "sum", "total", "average", "mean", "median",
		"percentage", "percent", "ratio", "rate", "count", "number",
		"payroll", "budget", "cost", "expense", "revenue", "profit", "loss",
		"financial", "accounting", "invoice", "payment",
		"analyze", "analysis", "metric", "metrics", "statistics", "stats",
		"data", "report", "reporting", "dashboard", "trend", "trends",
		"forecast", "projection", "comparison", "compare",
		"aggregate", "summarize", "summary", "breakdown", "distribution",
		"maximum", "minimum", "highest", "lowest", "top", "bottom",
	},
	"document": {
		"policy", "policies", "document", "documents", "handbook", "manual",
		"procedure", "procedures", "guideline", "guidelines", "protocol",
		"standard", "standards", "regulation", "regulations",
		"search", "find", "lookup", "look up", "retrieve", "locate",
		"read", "view", "check", "reference", "consult",
		"rule", "rules", "requirement", "requirements", "compliance",
		"code of conduct", "ethics", "legal", "contract", "agreement",
		"form", "forms", "template", "templates",
		"hr policy", "company policy", "employee handbook", "safety",
		"security", "privacy", "confidentiality", "intellectual property",
	},
}

// DefaultKeywords returns a copy of the built-in keyword set for name, matched
// after normalization ("H-R", "h_r" and "hr" are the same agent). The second
// result is false when there is no built-in set.
func DefaultKeywords(name string) ([]string, bool) {
	kw, ok := defaultKeywords[normalizeName(name)]
	if !ok {
		return nil, false
	}
	return append([]string(nil), kw...), true
}

func normalizeName(name string) string {
	return strings.NewReplacer(" ", "", "-", "", "_", "").Replace(strings.ToLower(name))
}

// normalizeKeywords lowercases, trims and dedupes, returning a sorted list.
func normalizeKeywords(keywords []string) []string {
	seen := make(map[string]struct{}, len(keywords))
	out := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw == "" {
			continue
		}
		if _, dup := seen[kw]; dup {
			continue
		}
		seen[kw] = struct{}{}
		out = append(out, kw)
	}
	sort.Strings(out)
	return out
}

// KeywordFile maps agent names to keyword lists.
//
//	hr:
//	  - employee
//	  - org chart
//	analytics: [calculate, average]
type KeywordFile map[string][]string

// LoadKeywordFile reads a YAML keyword file.
func LoadKeywordFile(path string) (KeywordFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &Error{Code: ErrCodeKeywordFile, Message: fmt.Sprintf("failed to read keyword file: %v", err)}
	}
	return ParseKeywordFile(data)
}

func ParseKeywordFile(data []byte) (KeywordFile, error) {
	var kf KeywordFile
	if err := yaml.Unmarshal(data, &kf); err != nil {
		return nil, &Error{Code: ErrCodeKeywordFile, Message: fmt.Sprintf("failed to parse keyword file: %v", err)}
	}
	for name := range kf {
		if strings.TrimSpace(name) == "" {
			return nil, &Error{Code: ErrCodeKeywordFile, Message: "keyword file has an empty agent name"}
		}
	}
	if kf == nil {
		kf = KeywordFile{}
	}
	return kf, nil
}
