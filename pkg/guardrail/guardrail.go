// Package guardrail is the safety gate every inbound message passes before
// it reaches sessions, routing or agents.
package guardrail

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"unicode"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/pramodthe/enterprise-ai-platform/internal/observability"
)

// Guardrail evaluates messages against the active RuleSet. The rule set can
// be swapped at runtime; Check always sees one consistent set.
type Guardrail struct {
	rules   Rules
	active  atomic.Pointer[compiledRules]
	logger  zerolog.Logger
	enabled bool
}

// Option configures a Guardrail.
type Option func(*Guardrail)

func WithRules(r Rules) Option {
	return func(g *Guardrail) { g.rules = r }
}

func WithRuleSet(rs *RuleSet) Option {
	return func(g *Guardrail) {
		if rs != nil {
			g.active.Store(compile(rs))
		}
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(g *Guardrail) { g.logger = logger }
}

// WithEnabled(false) turns Check into a pass-through.
func WithEnabled(enabled bool) Option {
	return func(g *Guardrail) { g.enabled = enabled }
}

// New creates a guardrail with every rule enabled and the default rule set.
func New(opts ...Option) *Guardrail {
	g := &Guardrail{
		rules:   AllRules(),
		logger:  log.Logger,
		enabled: true,
	}
	g.active.Store(compile(DefaultRuleSet()))
	for _, opt := range opts {
		opt(g)
	}
	g.logger = g.logger.With().Str("component", "guardrail").Logger()

	g.logger.Info().
		Bool("financial", g.rules.Financial).
		Bool("negative_employee", g.rules.NegativeEmployee).
		Bool("out_of_scope", g.rules.OutOfScope).
		Bool("enabled", g.enabled).
		Msg("Guardrail initialized")
	return g
}

// SetRuleSet validates rs and makes it the active rule set.
func (g *Guardrail) SetRuleSet(rs *RuleSet) error {
	if err := rs.Validate(); err != nil {
		return fmt.Errorf("invalid rule set: %w", err)
	}
	g.active.Store(compile(rs))
	return nil
}

// Check evaluates message. Rules run in priority order (financial, negative
// employee, out of scope) and the first match wins. conversationContext is
// currently unused.
func (g *Guardrail) Check(message string, conversationContext string) Result {
	if !g.enabled || strings.TrimSpace(message) == "" {
		return safe()
	}

	rules := g.active.Load()
	lower := strings.ToLower(message)

	if g.rules.Financial {
		if term := rules.financial.find(lower); term != "" {
			return g.block(ViolationFinancialAdvice, fmt.Sprintf("message contains financial term %q", term))
		}
	}

	if g.rules.NegativeEmployee {
		if term := negativeEmployeeTerm(rules, message, lower); term != "" {
			return g.block(ViolationNegativeEmployeeComment, fmt.Sprintf("message pairs a person reference with negative term %q", term))
		}
	}

	if g.rules.OutOfScope {
		if term := offTopicTerm(rules, lower); term != "" {
			return g.block(ViolationOutOfScope, fmt.Sprintf("message is not organization-relevant (%q)", term))
		}
	}

	return safe()
}

// CheckContext is Check plus metrics and, for blocked messages, an audit
// record attributed to actor.
func (g *Guardrail) CheckContext(ctx context.Context, actor, message, conversationContext string) Result {
	result := g.Check(message, conversationContext)
	observability.RecordGuardrailCheck(string(result.ViolationType), result.IsSafe)
	if !result.IsSafe {
		observability.RecordGuardrailAudit(ctx, actor, string(result.ViolationType), result.Reason)
	}
	return result
}

func (g *Guardrail) block(v ViolationType, reason string) Result {
	g.logger.Warn().Str("violation", string(v)).Msg("Guardrail violation detected")
	return blocked(v, reason)
}

// negativeEmployeeTerm returns the negative term when the message refers to
// a person (an employee noun or a capitalized word) and contains one.
func negativeEmployeeTerm(rules *compiledRules, original, lower string) string {
	if rules.employee.find(lower) == "" && !hasNameToken(original) {
		return ""
	}
	return rules.negative.find(lower)
}

// hasNameToken reports whether any whitespace token is purely alphabetic,
// longer than one letter and capitalized.
func hasNameToken(message string) bool {
	for _, word := range strings.Fields(message) {
		if utf8.RuneCountInString(word) < 2 || !isAlpha(word) {
			continue
		}
		first, _ := utf8.DecodeRuneInString(word)
		if unicode.IsUpper(first) {
			return true
		}
	}
	return false
}

func isAlpha(s string) bool {
	for _, r := range s {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return true
}

// offTopicTerm returns the off-topic term that makes lower out of scope, or
// "" when the message is allowed. Unclassified messages are allowed.
func offTopicTerm(rules *compiledRules, lower string) string {
	if len(strings.Fields(lower)) <= rules.shortTokens && rules.greeting.find(lower) != "" {
		return ""
	}
	if rules.organization.find(lower) != "" {
		return ""
	}
	return rules.offTopic.find(lower)
}
