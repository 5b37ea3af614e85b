package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "eap"

type moduleMetrics struct {
	guardrailChecks *prometheus.CounterVec
	guardrailBlocks *prometheus.CounterVec

	routingDecisions  *prometheus.CounterVec
	routingConfidence prometheus.Histogram

	agentRequests *prometheus.CounterVec
	agentDuration *prometheus.HistogramVec
	agentRetries  *prometheus.CounterVec

	sessionStoreOps      *prometheus.CounterVec
	sessionStoreDuration *prometheus.HistogramVec
	activeSessions       prometheus.Gauge
	sessionsExpired      prometheus.Counter

	llmGenerations   *prometheus.CounterVec
	llmDuration      *prometheus.HistogramVec
	providerCooldown *prometheus.GaugeVec

	orchestratorRequests *prometheus.CounterVec
	orchestratorDuration prometheus.Histogram
}

var (
	metricsOnce sync.Once
	metricsInst *moduleMetrics
)

func getMetrics() *moduleMetrics {
	metricsOnce.Do(func() {
		m := &moduleMetrics{
			guardrailChecks: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: namespace,
					Name:      "guardrail_checks_total",
					Help:      "Total guardrail checks by outcome.",
				},
				[]string{"outcome"},
			),
			guardrailBlocks: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: namespace,
					Name:      "guardrail_blocks_total",
					Help:      "Messages blocked by the guardrail, by violation type.",
				},
				[]string{"violation"},
			),
			routingDecisions: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: namespace,
					Name:      "routing_decisions_total",
					Help:      "Routing decisions by selected agent.",
				},
				[]string{"agent"},
			),
			routingConfidence: prometheus.NewHistogram(
				prometheus.HistogramOpts{
					Namespace: namespace,
					Name:      "routing_confidence",
					Help:      "Distribution of routing confidence values.",
					Buckets:   prometheus.LinearBuckets(0, 0.1, 11),
				},
			),
			agentRequests: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: namespace,
					Name:      "agent_requests_total",
					Help:      "Remote agent queries by agent and outcome.",
				},
				[]string{"agent", "outcome"},
			),
			agentDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Namespace: namespace,
					Name:      "agent_request_duration_seconds",
					Help:      "Remote agent query duration in seconds, retries included.",
					Buckets:   prometheus.DefBuckets,
				},
				[]string{"agent"},
			),
			agentRetries: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: namespace,
					Name:      "agent_retries_total",
					Help:      "Remote agent retry attempts by agent.",
				},
				[]string{"agent"},
			),
			sessionStoreOps: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: namespace,
					Name:      "session_store_operations_total",
					Help:      "Session store operations by backend, operation and outcome.",
				},
				[]string{"backend", "op", "outcome"},
			),
			sessionStoreDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Namespace: namespace,
					Name:      "session_store_duration_seconds",
					Help:      "Session store operation duration in seconds.",
					Buckets:   prometheus.DefBuckets,
				},
				[]string{"backend", "op"},
			),
			activeSessions: prometheus.NewGauge(
				prometheus.GaugeOpts{
					Namespace: namespace,
					Name:      "active_sessions",
					Help:      "Non-expired sessions seen by the last expiry sweep.",
				},
			),
			sessionsExpired: prometheus.NewCounter(
				prometheus.CounterOpts{
					Namespace: namespace,
					Name:      "sessions_expired_total",
					Help:      "Sessions marked expired by the sweeper.",
				},
			),
			llmGenerations: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: namespace,
					Name:      "llm_generations_total",
					Help:      "Local generation calls by provider and outcome.",
				},
				[]string{"provider", "outcome"},
			),
			llmDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Namespace: namespace,
					Name:      "llm_generation_duration_seconds",
					Help:      "Local generation duration in seconds by provider.",
					Buckets:   prometheus.DefBuckets,
				},
				[]string{"provider"},
			),
			providerCooldown: prometheus.NewGaugeVec(
				prometheus.GaugeOpts{
					Namespace: namespace,
					Name:      "llm_provider_cooldown_active",
					Help:      "Provider cooldown active state (1 active, 0 inactive).",
				},
				[]string{"provider"},
			),
			orchestratorRequests: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: namespace,
					Name:      "orchestrator_requests_total",
					Help:      "Processed chat requests by the handler that produced the answer.",
				},
				[]string{"agent_used"},
			),
			orchestratorDuration: prometheus.NewHistogram(
				prometheus.HistogramOpts{
					Namespace: namespace,
					Name:      "orchestrator_request_duration_seconds",
					Help:      "End-to-end chat request duration in seconds.",
					Buckets:   prometheus.DefBuckets,
				},
			),
		}

		prometheus.MustRegister(
			m.guardrailChecks,
			m.guardrailBlocks,
			m.routingDecisions,
			m.routingConfidence,
			m.agentRequests,
			m.agentDuration,
			m.agentRetries,
			m.sessionStoreOps,
			m.sessionStoreDuration,
			m.activeSessions,
			m.sessionsExpired,
			m.llmGenerations,
			m.llmDuration,
			m.providerCooldown,
			m.orchestratorRequests,
			m.orchestratorDuration,
		)

		metricsInst = m
	})

	return metricsInst
}

// EnsureRegistered initializes and registers metrics the first time it is called.
func EnsureRegistered() {
	_ = getMetrics()
}

func MetricsHandler() http.Handler {
	EnsureRegistered()
	return promhttp.Handler()
}

func outcome(success bool) string {
	if success {
		return "success"
	}
	return "error"
}

func RecordGuardrailCheck(violation string, safe bool) {
	m := getMetrics()
	if safe {
		m.guardrailChecks.WithLabelValues("allowed").Inc()
		return
	}
	m.guardrailChecks.WithLabelValues("blocked").Inc()
	m.guardrailBlocks.WithLabelValues(violation).Inc()
}

func RecordRoutingDecision(agent string, confidence float64) {
	m := getMetrics()
	m.routingDecisions.WithLabelValues(agent).Inc()
	m.routingConfidence.Observe(confidence)
}

func RecordAgentRequest(agent string, duration time.Duration, success bool, attempts int) {
	m := getMetrics()
	m.agentRequests.WithLabelValues(agent, outcome(success)).Inc()
	m.agentDuration.WithLabelValues(agent).Observe(duration.Seconds())
	if attempts > 1 {
		m.agentRetries.WithLabelValues(agent).Add(float64(attempts - 1))
	}
}

func RecordSessionStoreOp(backend, op string, duration time.Duration, err error) {
	m := getMetrics()
	m.sessionStoreOps.WithLabelValues(backend, op, outcome(err == nil)).Inc()
	m.sessionStoreDuration.WithLabelValues(backend, op).Observe(duration.Seconds())
}

func SetActiveSessions(count int) {
	getMetrics().activeSessions.Set(float64(count))
}

func RecordSessionsExpired(count int) {
	getMetrics().sessionsExpired.Add(float64(count))
}

func RecordGeneration(provider string, duration time.Duration, success bool) {
	m := getMetrics()
	m.llmGenerations.WithLabelValues(provider, outcome(success)).Inc()
	m.llmDuration.WithLabelValues(provider).Observe(duration.Seconds())
}

func SetProviderCooldown(provider string, active bool) {
	value := 0.0
	if active {
		value = 1.0
	}
	getMetrics().providerCooldown.WithLabelValues(provider).Set(value)
}

func RecordOrchestratorRequest(agentUsed string, duration time.Duration) {
	m := getMetrics()
	m.orchestratorRequests.WithLabelValues(agentUsed).Inc()
	m.orchestratorDuration.Observe(duration.Seconds())
}
