package routing

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/pramodthe/enterprise-ai-platform/internal/observability"
	"github.com/pramodthe/enterprise-ai-platform/pkg/agent"
)

const (
	multiWordWeight  = 2.0
	singleWordWeight = 1.0
	// Raw keyword scores at or above this get the multi-match bonus.
	multiMatchMinimum = 3.0
	multiMatchBonus   = 1.2
	contextBoost      = 1.3
	followUpBoost     = 1.5
	maxFallbacks      = 2
)

var wordPattern = regexp.MustCompile(`\b\w+\b`)

type keyword struct {
	text  string
	multi bool
	// re matches single-word keywords on word boundaries; nil for multi-word.
	re *regexp.Regexp
}

type registration struct {
	handle   agent.Agent
	keywords []keyword
}

// Router holds the agent registry and makes routing decisions.
type Router struct {
	mu        sync.RWMutex
	agents    map[string]*registration
	threshold float64
	scale     float64
	stats     *StatisticsTracker
	logger    zerolog.Logger
}

// Option configures a Router.
type Option func(*Router)

func WithLogger(logger zerolog.Logger) Option {
	return func(r *Router) { r.logger = logger }
}

// WithConfidenceThreshold sets the confidence below which queries go to root.
func WithConfidenceThreshold(threshold float64) Option {
	return func(r *Router) { r.threshold = threshold }
}

// WithConfidenceScale sets the score that maps to confidence 1.0.
func WithConfidenceScale(scale float64) Option {
	return func(r *Router) {
		if scale > 0 {
			r.scale = scale
		}
	}
}

func WithStatistics(stats *StatisticsTracker) Option {
	return func(r *Router) {
		if stats != nil {
			r.stats = stats
		}
	}
}

func New(opts ...Option) *Router {
	r := &Router{
		agents:    make(map[string]*registration),
		threshold: DefaultConfidenceThreshold,
		scale:     DefaultConfidenceScale,
		stats:     NewStatisticsTracker(),
		logger:    log.Logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With().Str("component", "router").Logger()

	r.logger.Info().
		Float64("threshold", r.threshold).
		Float64("scale", r.scale).
		Msg("Agent router initialized")
	return r
}

// Register adds or replaces an agent. Empty keywords fall back to the built-in
// set for the agent's name, if any; an agent with no keywords is registered
// but never scores.
func (r *Router) Register(name string, handle agent.Agent, keywords []string) error {
	if strings.TrimSpace(name) == "" {
		return validationError("agent name is required")
	}
	if name == RootAgent {
		return validationError("agent name %q is reserved", RootAgent)
	}
	if handle == nil {
		return validationError("agent %q has no handle", name)
	}

	if len(keywords) == 0 {
		if defaults, ok := DefaultKeywords(name); ok {
			keywords = defaults
		} else {
			r.logger.Warn().
				Str("agent", name).
				Msg("No keywords provided for agent; it will not receive routed queries")
		}
	}

	reg := &registration{handle: handle, keywords: compileKeywords(keywords)}

	r.mu.Lock()
	r.agents[name] = reg
	r.mu.Unlock()

	r.logger.Info().Str("agent", name).Int("keywords", len(reg.keywords)).Msg("Registered agent")
	return nil
}

// Unregister removes the agent and its keywords together.
func (r *Router) Unregister(name string) bool {
	r.mu.Lock()
	_, ok := r.agents[name]
	delete(r.agents, name)
	r.mu.Unlock()

	if !ok {
		r.logger.Warn().Str("agent", name).Msg("Attempted to unregister unknown agent")
		return false
	}
	r.logger.Info().Str("agent", name).Msg("Unregistered agent")
	return true
}

// SetKeywords replaces the keyword set of a registered agent.
func (r *Router) SetKeywords(name string, keywords []string) error {
	compiled := compileKeywords(keywords)

	r.mu.Lock()
	reg, ok := r.agents[name]
	if ok {
		r.agents[name] = &registration{handle: reg.handle, keywords: compiled}
	}
	r.mu.Unlock()

	if !ok {
		r.logger.Warn().Str("agent", name).Msg("Cannot set keywords for unknown agent")
		return notRegistered(name)
	}
	r.logger.Info().Str("agent", name).Int("keywords", len(compiled)).Msg("Updated agent keywords")
	return nil
}

// ApplyKeywordFile sets keywords for every registered agent named in kf.
// Unknown names are skipped with a warning.
func (r *Router) ApplyKeywordFile(kf KeywordFile) {
	for name, kw := range kf {
		if err := r.SetKeywords(name, kw); err != nil {
			r.logger.Warn().Err(err).Msg("Skipping keywords for unregistered agent")
		}
	}
}

func (r *Router) Agent(name string) (agent.Agent, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	reg, ok := r.agents[name]
	if !ok {
		return nil, false
	}
	return reg.handle, true
}

// Agents returns the registered names, sorted.
func (r *Router) Agents() []string {
	r.mu.RLock()
	names := make([]string, 0, len(r.agents))
	for name := range r.agents {
		names = append(names, name)
	}
	r.mu.RUnlock()

	sort.Strings(names)
	return names
}

func (r *Router) Keywords(name string) ([]string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	reg, ok := r.agents[name]
	if !ok {
		return nil, false
	}
	out := make([]string, len(reg.keywords))
	for i, kw := range reg.keywords {
		out[i] = kw.text
	}
	return out, true
}

func (r *Router) Statistics() *StatisticsTracker { return r.stats }

type scored struct {
	name  string
	score float64
}

// Route decides which agent should handle query. conversationContext is the
// rendered recent history; previousAgent is the agent that answered last.
func (r *Router) Route(query, conversationContext, previousAgent string) Decision {
	r.mu.RLock()
	snapshot := make(map[string][]keyword, len(r.agents))
	for name, reg := range r.agents {
		snapshot[name] = reg.keywords
	}
	r.mu.RUnlock()

	scores := keywordScores(query, snapshot)

	contextAgent := ""
	if conversationContext != "" {
		contextAgent = contextLeader(conversationContext, snapshot)
		if contextAgent != "" {
			scores[contextAgent] *= contextBoost
		}
	}

	followUp := false
	if _, ok := scores[previousAgent]; ok && previousAgent != "" && IsFollowUp(query) {
		followUp = true
		scores[previousAgent] *= followUpBoost
	}

	ranked := make([]scored, 0, len(scores))
	for name, score := range scores {
		ranked = append(ranked, scored{name: name, score: score})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].name < ranked[j].name
	})

	decision := r.decide(ranked, contextAgent, previousAgent, followUp)

	r.stats.RecordDecision(decision, followUp && decision.AgentName == previousAgent)
	observability.RecordRoutingDecision(decision.AgentName, decision.Confidence)

	r.logger.Debug().
		Str("agent", decision.AgentName).
		Float64("confidence", decision.Confidence).
		Strs("fallbacks", decision.FallbackAgents).
		Str("reasoning", decision.Reasoning).
		Msg("Routing decision")
	return decision
}

func (r *Router) decide(ranked []scored, contextAgent, previousAgent string, followUp bool) Decision {
	if len(ranked) == 0 || ranked[0].score <= 0 {
		return Decision{
			AgentName:      RootAgent,
			Confidence:     0,
			Reasoning:      "no specialized agents available",
			FallbackAgents: []string{},
		}
	}

	best := ranked[0]
	confidence := math.Min(best.score/r.scale, 1.0)

	fallbacks := make([]string, 0, maxFallbacks)
	for _, s := range ranked[1:] {
		if len(fallbacks) == maxFallbacks {
			break
		}
		if s.score > 0 {
			fallbacks = append(fallbacks, s.name)
		}
	}

	parts := []string{fmt.Sprintf("keyword match (score: %.2f)", best.score)}
	if contextAgent == best.name {
		parts = append(parts, "context alignment")
	}
	if followUp && previousAgent == best.name {
		parts = append(parts, "follow-up to previous query")
	}
	reasoning := fmt.Sprintf("Selected %s based on: %s", best.name, strings.Join(parts, ", "))

	if confidence < r.threshold {
		r.logger.Info().
			Float64("confidence", confidence).
			Str("candidate", best.name).
			Msg("Low routing confidence, falling back to root agent")
		return Decision{
			AgentName:      RootAgent,
			Confidence:     confidence,
			Reasoning:      "Confidence below threshold. " + reasoning,
			FallbackAgents: append([]string{best.name}, fallbacks...),
		}
	}

	r.logger.Info().Str("agent", best.name).Float64("confidence", confidence).Msg("Routed query")
	return Decision{
		AgentName:      best.name,
		Confidence:     confidence,
		Reasoning:      reasoning,
		FallbackAgents: fallbacks,
	}
}

func compileKeywords(keywords []string) []keyword {
	normalized := normalizeKeywords(keywords)
	out := make([]keyword, 0, len(normalized))
	for _, kw := range normalized {
		if strings.Contains(kw, " ") {
			out = append(out, keyword{text: kw, multi: true})
			continue
		}
		out = append(out, keyword{
			text: kw,
			re:   regexp.MustCompile(`\b` + regexp.QuoteMeta(kw) + `\b`),
		})
	}
	return out
}

// keywordScores scores every agent, including those that score zero.
func keywordScores(query string, agents map[string][]keyword) map[string]float64 {
	lower := strings.ToLower(query)
	words := make(map[string]struct{})
	for _, w := range wordPattern.FindAllString(lower, -1) {
		words[w] = struct{}{}
	}

	scores := make(map[string]float64, len(agents))
	for name, keywords := range agents {
		score := 0.0
		for _, kw := range keywords {
			if kw.multi {
				if strings.Contains(lower, kw.text) {
					score += multiWordWeight
				}
				continue
			}
			if _, ok := words[kw.text]; ok {
				score += singleWordWeight
			}
		}
		if score >= multiMatchMinimum {
			score *= multiMatchBonus
		}
		scores[name] = score
	}
	return scores
}

// contextLeader returns the agent whose keywords occur most in the context,
// or "" when none occur.
func contextLeader(conversationContext string, agents map[string][]keyword) string {
	lower := strings.ToLower(conversationContext)

	leader, leaderScore := "", 0
	for name, keywords := range agents {
		score := 0
		for _, kw := range keywords {
			if kw.multi {
				score += strings.Count(lower, kw.text) * 2
				continue
			}
			score += len(kw.re.FindAllStringIndex(lower, -1))
		}
		if score > leaderScore || (score == leaderScore && score > 0 && name < leader) {
			leader, leaderScore = name, score
		}
	}
	return leader
}
