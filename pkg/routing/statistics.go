package routing

import (
	"sort"
	"sync"
	"time"
)

// AgentStatistics counts how often an agent was picked.
type AgentStatistics struct {
	AgentName string `json:"agent_name"`
	// Selections counts decisions that named the agent directly.
	Selections int64 `json:"selections"`
	// FallbackSelections counts requests the agent served as a fallback.
	FallbackSelections int64   `json:"fallback_selections"`
	AvgConfidence      float64 `json:"avg_confidence"`
	FirstSelected      int64   `json:"first_selected,omitempty"`
	LastSelected       int64   `json:"last_selected,omitempty"`
}

// GlobalStatistics aggregates every decision.
type GlobalStatistics struct {
	TotalDecisions         int64   `json:"total_decisions"`
	RootDecisions          int64   `json:"root_decisions"`
	LowConfidenceDecisions int64   `json:"low_confidence_decisions"`
	FollowUpBoosts         int64   `json:"follow_up_boosts"`
	AvgConfidence          float64 `json:"avg_confidence"`
}

// Snapshot is a point-in-time copy of all statistics.
type Snapshot struct {
	Global GlobalStatistics  `json:"global"`
	Agents []AgentStatistics `json:"agents"`
}

// StatisticsTracker tracks routing decisions.
type StatisticsTracker struct {
	stats       map[string]*AgentStatistics
	globalStats GlobalStatistics
	now         func() time.Time
	mu          sync.RWMutex
}

func NewStatisticsTracker() *StatisticsTracker {
	return &StatisticsTracker{
		stats: make(map[string]*AgentStatistics),
		now:   time.Now,
	}
}

// RecordDecision records one Route outcome.
func (st *StatisticsTracker) RecordDecision(d Decision, followUpBoost bool) {
	st.mu.Lock()
	defer st.mu.Unlock()

	g := &st.globalStats
	g.TotalDecisions++
	g.AvgConfidence += (d.Confidence - g.AvgConfidence) / float64(g.TotalDecisions)
	if followUpBoost {
		g.FollowUpBoosts++
	}

	if d.IsRoot() {
		g.RootDecisions++
		if len(d.FallbackAgents) > 0 {
			g.LowConfidenceDecisions++
		}
		return
	}

	stats := st.getOrCreateStats(d.AgentName)
	stats.Selections++
	stats.AvgConfidence += (d.Confidence - stats.AvgConfidence) / float64(stats.Selections)
	stats.LastSelected = st.now().UnixMilli()
	if stats.FirstSelected == 0 {
		stats.FirstSelected = stats.LastSelected
	}
}

// RecordFallback records that agentName answered after the primary failed.
func (st *StatisticsTracker) RecordFallback(agentName string) {
	st.mu.Lock()
	defer st.mu.Unlock()

	st.getOrCreateStats(agentName).FallbackSelections++
}

// GetAgentStatistics returns a copy, or nil when the agent was never seen.
func (st *StatisticsTracker) GetAgentStatistics(agentName string) *AgentStatistics {
	st.mu.RLock()
	defer st.mu.RUnlock()

	if stats, exists := st.stats[agentName]; exists {
		statsCopy := *stats
		return &statsCopy
	}
	return nil
}

func (st *StatisticsTracker) GetGlobalStatistics() GlobalStatistics {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.globalStats
}

// Snapshot copies everything, agents sorted by name.
func (st *StatisticsTracker) Snapshot() Snapshot {
	st.mu.RLock()
	defer st.mu.RUnlock()

	agents := make([]AgentStatistics, 0, len(st.stats))
	for _, stats := range st.stats {
		agents = append(agents, *stats)
	}
	sort.Slice(agents, func(i, j int) bool { return agents[i].AgentName < agents[j].AgentName })

	return Snapshot{Global: st.globalStats, Agents: agents}
}

// Reset clears one agent, or everything when agentName is empty.
func (st *StatisticsTracker) Reset(agentName string) {
	st.mu.Lock()
	defer st.mu.Unlock()

	if agentName == "" {
		st.stats = make(map[string]*AgentStatistics)
		st.globalStats = GlobalStatistics{}
		return
	}
	delete(st.stats, agentName)
}

func (st *StatisticsTracker) getOrCreateStats(agentName string) *AgentStatistics {
	if stats, exists := st.stats[agentName]; exists {
		return stats
	}
	stats := &AgentStatistics{AgentName: agentName}
	st.stats[agentName] = stats
	return stats
}
