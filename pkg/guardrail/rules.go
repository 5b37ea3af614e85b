package guardrail

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// RuleSet holds the term lists the checks match against. Terms are matched
// case-insensitively; terms containing a space match anywhere, single words
// match at the start of a word. Greeting terms match whole words only.
type RuleSet struct {
	FinancialTerms    []string `yaml:"financial_terms"`
	EmployeeNouns     []string `yaml:"employee_nouns"`
	NegativeTerms     []string `yaml:"negative_terms"`
	OrganizationTerms []string `yaml:"organization_terms"`
	OffTopicTerms     []string `yaml:"off_topic_terms"`
	GreetingTerms     []string `yaml:"greeting_terms"`
	// ShortMessageTokens is the length, in whitespace tokens, up to which a
	// greeting is always allowed.
	ShortMessageTokens int `yaml:"short_message_tokens"`
}

// DefaultRuleSet returns the built-in term lists.
func DefaultRuleSet() *RuleSet {
	return &RuleSet{
		FinancialTerms: []string{
			"invest", "investment", "stock", "stocks", "trading", "trade",
			"portfolio", "mutual fund", "etf", "bond", "bonds", "dividend",
			"crypto", "cryptocurrency", "bitcoin", "forex", "options",
			"financial advice", "should i buy", "should i sell", "market",
			"401k", "ira", "retirement fund", "hedge fund", "asset allocation",
		},
		EmployeeNouns: []string{
			"employee", "staff", "worker", "person", "people", "team member",
		},
		NegativeTerms: []string{
			"bad employee", "worst employee", "terrible", "incompetent",
			"useless", "lazy", "stupid", "idiot", "hate", "fire",
			"get rid of", "should be fired", "doesn't deserve", "awful",
			"pathetic", "worthless", "garbage", "trash",
		},
		OrganizationTerms: []string{
			"employee", "staff", "team", "department", "organization",
			"company", "hr", "human resources", "skill", "skills",
			"report", "analytics", "data", "document", "policy",
			"procedure", "guideline", "structure", "hierarchy", "manager",
			"who reports to", "org chart", "capabilities", "what can you do",
		},
		OffTopicTerms: []string{
			"weather", "sports", "recipe", "movie", "music", "game",
			"celebrity", "news", "politics", "religion", "joke",
			"story", "poem", "song", "translate", "definition of",
			"capital of", "population of", "history of", "who invented",
			"super bowl", "world cup", "olympics", "championship",
			"make a cake", "cook", "bake",
		},
		GreetingTerms: []string{
			"hello", "hi", "hey", "thanks", "thank you",
			"what can you do", "help", "capabilities",
			"how are you", "goodbye", "bye",
		},
		ShortMessageTokens: 5,
	}
}

// LoadRuleSet reads a YAML rule file. Lists missing from the file keep their
// default values.
func LoadRuleSet(path string) (*RuleSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rule file: %w", err)
	}
	return ParseRuleSet(data)
}

// ParseRuleSet decodes YAML over DefaultRuleSet.
func ParseRuleSet(data []byte) (*RuleSet, error) {
	rs := DefaultRuleSet()
	if err := yaml.Unmarshal(data, rs); err != nil {
		return nil, fmt.Errorf("failed to parse rule file: %w", err)
	}
	if err := rs.Validate(); err != nil {
		return nil, err
	}
	return rs, nil
}

// Validate rejects empty terms and a negative short message length.
func (rs *RuleSet) Validate() error {
	var errs []error
	lists := map[string][]string{
		"financial_terms":    rs.FinancialTerms,
		"employee_nouns":     rs.EmployeeNouns,
		"negative_terms":     rs.NegativeTerms,
		"organization_terms": rs.OrganizationTerms,
		"off_topic_terms":    rs.OffTopicTerms,
		"greeting_terms":     rs.GreetingTerms,
	}
	for name, terms := range lists {
		for i, term := range terms {
			if strings.TrimSpace(term) == "" {
				errs = append(errs, fmt.Errorf("%s[%d] is empty", name, i))
			}
		}
	}
	if rs.ShortMessageTokens < 0 {
		errs = append(errs, errors.New("short_message_tokens must not be negative"))
	}
	return errors.Join(errs...)
}

// termMatcher finds the first term of a list in lowercased text.
type termMatcher struct {
	re *regexp.Regexp
}

// newTermMatcher builds a matcher for terms. With wholeWord every term must
// also end at a word boundary, so "hi" does not match "history".
func newTermMatcher(terms []string, wholeWord bool) *termMatcher {
	if len(terms) == 0 {
		return &termMatcher{}
	}
	alts := make([]string, 0, len(terms))
	for _, term := range terms {
		term = strings.ToLower(strings.TrimSpace(term))
		if term == "" {
			continue
		}
		switch {
		case wholeWord:
			alts = append(alts, `\b`+regexp.QuoteMeta(term)+`\b`)
		case strings.ContainsAny(term, " \t"):
			alts = append(alts, regexp.QuoteMeta(term))
		default:
			alts = append(alts, `\b`+regexp.QuoteMeta(term))
		}
	}
	if len(alts) == 0 {
		return &termMatcher{}
	}
	return &termMatcher{re: regexp.MustCompile(`(?:` + strings.Join(alts, "|") + `)`)}
}

// find returns the first matched term, or "".
func (m *termMatcher) find(lower string) string {
	if m.re == nil {
		return ""
	}
	return m.re.FindString(lower)
}

// compiledRules is an immutable, ready-to-match RuleSet.
type compiledRules struct {
	financial    *termMatcher
	employee     *termMatcher
	negative     *termMatcher
	organization *termMatcher
	offTopic     *termMatcher
	greeting     *termMatcher
	shortTokens  int
}

func compile(rs *RuleSet) *compiledRules {
	return &compiledRules{
		financial:    newTermMatcher(rs.FinancialTerms, false),
		employee:     newTermMatcher(rs.EmployeeNouns, false),
		negative:     newTermMatcher(rs.NegativeTerms, false),
		organization: newTermMatcher(rs.OrganizationTerms, false),
		offTopic:     newTermMatcher(rs.OffTopicTerms, false),
		greeting:     newTermMatcher(rs.GreetingTerms, true),
		shortTokens:  rs.ShortMessageTokens,
	}
}
