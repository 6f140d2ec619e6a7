package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics is the proxy's Prometheus metric set, registered once at startup
// and threaded through every request-handling component.
//
// Usage:
//
//	metrics := observability.NewMetrics()
//	defer metrics.BackendRequestDuration("ollama-local", "llama3").Observe(time.Since(start).Seconds())
type Metrics struct {
	// BackendRequestCounter counts dispatch attempts by backend, model, and
	// outcome (success|retry|exhausted).
	BackendRequestCounter *prometheus.CounterVec

	// BackendRequestDuration measures backend round-trip latency.
	// Labels: backend, model
	BackendRequestDuration *prometheus.HistogramVec

	// BackendTokensUsed tracks prompt/completion token consumption.
	// Labels: backend, model, type (prompt|completion)
	BackendTokensUsed *prometheus.CounterVec

	// BackendCostUSD tracks the cost-sentinel value consumed per request.
	// Labels: backend, model
	BackendCostUSD *prometheus.CounterVec

	// RoutingDecisionCounter counts which stage resolved each request's
	// route: stickiness, directive, keyword, classifier, arbitrator,
	// fallback.
	RoutingDecisionCounter *prometheus.CounterVec

	// ClassifierConfidence observes the centroid classifier's top1-top2
	// confidence gap, for threshold tuning.
	ClassifierConfidence prometheus.Histogram

	// HookExecutionCounter counts hook runs by stage, name, and outcome.
	HookExecutionCounter *prometheus.CounterVec

	// ToolExecutionCounter counts tool invocations by tool name and status.
	ToolExecutionCounter *prometheus.CounterVec

	// ToolExecutionDuration measures tool execution time in seconds.
	ToolExecutionDuration *prometheus.HistogramVec

	// ErrorCounter tracks errors by component and error type.
	ErrorCounter *prometheus.CounterVec

	// HTTPRequestDuration measures proxy HTTP handler latency.
	// Labels: method, path, status_code
	HTTPRequestDuration *prometheus.HistogramVec

	// HTTPRequestCounter counts HTTP requests.
	HTTPRequestCounter *prometheus.CounterVec

	// StorageQueryDuration measures durable-message-log query latency.
	// Labels: operation, driver (sqlite|postgres)
	StorageQueryDuration *prometheus.HistogramVec

	// VectorIndexSize is a gauge of the number of vectors held in the
	// in-process semantic index.
	VectorIndexSize prometheus.Gauge

	// SessionCacheSize is a gauge of the number of live entries in the
	// routing session stickiness cache.
	SessionCacheSize prometheus.Gauge

	// HarnessRoundCounter counts orchestrator rounds by outcome
	// (completed|capped|error).
	HarnessRoundCounter *prometheus.CounterVec

	// HarnessRunDuration measures full harness run wall-clock time.
	HarnessRunDuration prometheus.Histogram

	// EnsembleVoteCounter counts ensemble verdicts by outcome
	// (agreement|fallback|parse_error).
	EnsembleVoteCounter *prometheus.CounterVec

	// OperatorIterationCounter counts operator-agent loop iterations by
	// outcome (tool_call|final_answer|iteration_cap).
	OperatorIterationCounter *prometheus.CounterVec
}

// NewMetrics creates and registers every Prometheus metric. Call once at
// startup; metrics are served at /metrics via the standard promhttp
// handler.
func NewMetrics() *Metrics {
	return &Metrics{
		BackendRequestCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "beigebox_backend_requests_total",
				Help: "Total backend dispatch attempts by backend, model, and outcome",
			},
			[]string{"backend", "model", "outcome"},
		),
		BackendRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "beigebox_backend_request_duration_seconds",
				Help:    "Backend round-trip latency in seconds",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
			},
			[]string{"backend", "model"},
		),
		BackendTokensUsed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "beigebox_backend_tokens_total",
				Help: "Tokens consumed by backend, model, and token type",
			},
			[]string{"backend", "model", "type"},
		),
		BackendCostUSD: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "beigebox_backend_cost_usd_total",
				Help: "Estimated backend cost in USD, from the cost-sentinel line",
			},
			[]string{"backend", "model"},
		),
		RoutingDecisionCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "beigebox_routing_decisions_total",
				Help: "Requests routed by resolving stage",
			},
			[]string{"stage"},
		),
		ClassifierConfidence: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "beigebox_classifier_confidence",
				Help:    "Centroid classifier top1-top2 confidence gap",
				Buckets: []float64{0.01, 0.02, 0.04, 0.08, 0.15, 0.3, 0.5, 0.8},
			},
		),
		HookExecutionCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "beigebox_hook_executions_total",
				Help: "Hook invocations by stage, name, and outcome",
			},
			[]string{"stage", "name", "outcome"},
		),
		ToolExecutionCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "beigebox_tool_executions_total",
				Help: "Tool invocations by tool name and status",
			},
			[]string{"tool_name", "status"},
		),
		ToolExecutionDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "beigebox_tool_execution_duration_seconds",
				Help:    "Tool execution duration in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
			},
			[]string{"tool_name"},
		),
		ErrorCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "beigebox_errors_total",
				Help: "Errors by component and error type",
			},
			[]string{"component", "error_type"},
		),
		HTTPRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "beigebox_http_request_duration_seconds",
				Help:    "HTTP handler latency in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
			[]string{"method", "path", "status_code"},
		),
		HTTPRequestCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "beigebox_http_requests_total",
				Help: "Total HTTP requests",
			},
			[]string{"method", "path", "status_code"},
		),
		StorageQueryDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "beigebox_storage_query_duration_seconds",
				Help:    "Durable message log query latency in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
			[]string{"operation", "driver"},
		),
		VectorIndexSize: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "beigebox_vector_index_size",
				Help: "Number of vectors held in the semantic index",
			},
		),
		SessionCacheSize: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "beigebox_session_cache_size",
				Help: "Number of live entries in the routing session stickiness cache",
			},
		),
		HarnessRoundCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "beigebox_harness_rounds_total",
				Help: "Harness orchestrator rounds by outcome",
			},
			[]string{"outcome"},
		),
		HarnessRunDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "beigebox_harness_run_duration_seconds",
				Help:    "Full harness run wall-clock duration in seconds",
				Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
			},
		),
		EnsembleVoteCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "beigebox_ensemble_votes_total",
				Help: "Ensemble voter verdicts by outcome",
			},
			[]string{"outcome"},
		),
		OperatorIterationCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "beigebox_operator_iterations_total",
				Help: "Operator-agent loop iterations by outcome",
			},
			[]string{"outcome"},
		),
	}
}

// RecordBackendRequest records one dispatch attempt's outcome, latency,
// tokens, and cost in a single call.
func (m *Metrics) RecordBackendRequest(backend, model, outcome string, durationSeconds float64, promptTokens, completionTokens int, costUSD float64) {
	m.BackendRequestCounter.WithLabelValues(backend, model, outcome).Inc()
	m.BackendRequestDuration.WithLabelValues(backend, model).Observe(durationSeconds)
	if promptTokens > 0 {
		m.BackendTokensUsed.WithLabelValues(backend, model, "prompt").Add(float64(promptTokens))
	}
	if completionTokens > 0 {
		m.BackendTokensUsed.WithLabelValues(backend, model, "completion").Add(float64(completionTokens))
	}
	if costUSD > 0 {
		m.BackendCostUSD.WithLabelValues(backend, model).Add(costUSD)
	}
}

// RecordRoutingDecision increments the counter for the stage that resolved
// routing: "stickiness", "directive", "keyword", "classifier",
// "arbitrator", or "fallback".
func (m *Metrics) RecordRoutingDecision(stage string) {
	m.RoutingDecisionCounter.WithLabelValues(stage).Inc()
}

// RecordHookExecution records one hook's outcome: "ok", "error", or
// "blocked".
func (m *Metrics) RecordHookExecution(stage, name, outcome string) {
	m.HookExecutionCounter.WithLabelValues(stage, name, outcome).Inc()
}

// RecordToolExecution records a tool invocation's status and duration.
func (m *Metrics) RecordToolExecution(toolName, status string, durationSeconds float64) {
	m.ToolExecutionCounter.WithLabelValues(toolName, status).Inc()
	m.ToolExecutionDuration.WithLabelValues(toolName).Observe(durationSeconds)
}

// RecordError increments the error counter for a component and error type.
func (m *Metrics) RecordError(component, errorType string) {
	m.ErrorCounter.WithLabelValues(component, errorType).Inc()
}

// RecordHTTPRequest records an HTTP handler's outcome and latency.
func (m *Metrics) RecordHTTPRequest(method, path, statusCode string, durationSeconds float64) {
	m.HTTPRequestCounter.WithLabelValues(method, path, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path, statusCode).Observe(durationSeconds)
}

// RecordStorageQuery records a durable message log query's latency.
func (m *Metrics) RecordStorageQuery(operation, driver string, durationSeconds float64) {
	m.StorageQueryDuration.WithLabelValues(operation, driver).Observe(durationSeconds)
}

// RecordHarnessRound records one orchestrator round's outcome: "ok",
// "capped", or "error".
func (m *Metrics) RecordHarnessRound(outcome string) {
	m.HarnessRoundCounter.WithLabelValues(outcome).Inc()
}

// RecordEnsembleVote records one ensemble verdict's outcome: "agreement",
// "fallback", or "parse_error".
func (m *Metrics) RecordEnsembleVote(outcome string) {
	m.EnsembleVoteCounter.WithLabelValues(outcome).Inc()
}

// RecordOperatorIteration records one operator loop iteration's outcome:
// "tool_call", "final_answer", or "iteration_cap".
func (m *Metrics) RecordOperatorIteration(outcome string) {
	m.OperatorIterationCounter.WithLabelValues(outcome).Inc()
}
