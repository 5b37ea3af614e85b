package routing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatisticsTracker_RecordDecision(t *testing.T) {
	st := NewStatisticsTracker()
	st.now = func() time.Time { return time.UnixMilli(1_700_000_000_000) }

	st.RecordDecision(Decision{AgentName: "hr", Confidence: 0.8}, false)
	st.RecordDecision(Decision{AgentName: "hr", Confidence: 0.6}, true)
	st.RecordDecision(Decision{AgentName: RootAgent, Confidence: 0.2, FallbackAgents: []string{"hr"}}, false)
	st.RecordDecision(Decision{AgentName: RootAgent}, false)
	st.RecordFallback("analytics")

	g := st.GetGlobalStatistics()
	assert.Equal(t, int64(4), g.TotalDecisions)
	assert.Equal(t, int64(2), g.RootDecisions)
	assert.Equal(t, int64(1), g.LowConfidenceDecisions)
	assert.Equal(t, int64(1), g.FollowUpBoosts)
	assert.InDelta(t, 0.4, g.AvgConfidence, 1e-9)

	hr := st.GetAgentStatistics("hr")
	require.NotNil(t, hr)
	assert.Equal(t, int64(2), hr.Selections)
	assert.InDelta(t, 0.7, hr.AvgConfidence, 1e-9)
	assert.Equal(t, int64(1_700_000_000_000), hr.FirstSelected)

	an := st.GetAgentStatistics("analytics")
	require.NotNil(t, an)
	assert.Equal(t, int64(0), an.Selections)
	assert.Equal(t, int64(1), an.FallbackSelections)

	assert.Nil(t, st.GetAgentStatistics("document"))
}

func TestStatisticsTracker_SnapshotIsCopy(t *testing.T) {
	st := NewStatisticsTracker()
	st.RecordDecision(Decision{AgentName: "hr", Confidence: 1}, false)
	st.RecordFallback("analytics")

	snap := st.Snapshot()
	require.Len(t, snap.Agents, 2)
	assert.Equal(t, "analytics", snap.Agents[0].AgentName)
	assert.Equal(t, "hr", snap.Agents[1].AgentName)

	snap.Agents[1].Selections = 99
	assert.Equal(t, int64(1), st.GetAgentStatistics("hr").Selections)
}

func TestStatisticsTracker_Reset(t *testing.T) {
	st := NewStatisticsTracker()
	st.RecordDecision(Decision{AgentName: "hr", Confidence: 1}, false)
	st.RecordDecision(Decision{AgentName: "analytics", Confidence: 1}, false)

	st.Reset("hr")
	assert.Nil(t, st.GetAgentStatistics("hr"))
	assert.NotNil(t, st.GetAgentStatistics("analytics"))
	assert.Equal(t, int64(2), st.GetGlobalStatistics().TotalDecisions)

	st.Reset("")
	assert.Empty(t, st.Snapshot().Agents)
	assert.Equal(t, int64(0), st.GetGlobalStatistics().TotalDecisions)
}
