package openclaw

import (
	"slices"
	"sync"
	"time"
)

// HealthState represents the health of a client connection.
type HealthState string

const (
	// HealthStateHealthy indicates a live, authenticated connection.
	HealthStateHealthy HealthState = "healthy"

	// HealthStateDegraded indicates the client is connecting or reconnecting.
	HealthStateDegraded HealthState = "degraded"

	// HealthStateUnhealthy indicates the client is disconnected or rejected.
	HealthStateUnhealthy HealthState = "unhealthy"
)

// HealthStatus is a point-in-time view of the client's health.
type HealthStatus struct {
	// State is the overall health state.
	State HealthState `json:"state"`

	// Message provides additional context about the health state.
	Message string `json:"message,omitempty"`

	// Details contains structured details such as the connection state.
	Details map[string]interface{} `json:"details,omitempty"`

	// Timestamp is when this status was generated.
	Timestamp time.Time `json:"timestamp"`
}

func newHealthStatus(state HealthState, message string) *HealthStatus {
	return &HealthStatus{
		State:     state,
		Message:   message,
		Timestamp: time.Now(),
		Details:   make(map[string]interface{}),
	}
}

// Healthy creates a healthy status with an optional message.
func Healthy(message string) *HealthStatus {
	return newHealthStatus(HealthStateHealthy, message)
}

// Degraded creates a degraded status with a message.
func Degraded(message string) *HealthStatus {
	return newHealthStatus(HealthStateDegraded, message)
}

// Unhealthy creates an unhealthy status with a message.
func Unhealthy(message string) *HealthStatus {
	return newHealthStatus(HealthStateUnhealthy, message)
}

// WithDetail adds a detail key-value pair.
func (s *HealthStatus) WithDetail(key string, value interface{}) *HealthStatus {
	if s.Details == nil {
		s.Details = make(map[string]interface{})
	}
	s.Details[key] = value
	return s
}

// IsHealthy returns true if the status is healthy.
func (s *HealthStatus) IsHealthy() bool {
	return s.State == HealthStateHealthy
}

// Status summarizes the client's connection health.
func (c *Client) Status() *HealthStatus {
	state := c.State()

	var status *HealthStatus
	switch state {
	case StateConnected:
		status = Healthy("connected to gateway")
	case StateConnecting:
		status = Degraded("connecting to gateway")
	case StateError:
		fatal := c.FatalError()
		status = Unhealthy(fatal.Err().Error()).
			WithDetail("fatal_kind", fatal.Kind.String())
	default:
		status = Unhealthy("disconnected from gateway")
	}

	return status.
		WithDetail("state", string(state)).
		WithDetail("active_runs", c.runs.len())
}

// Metrics reports run counters and latencies.
func (c *Client) Metrics() *MetricsReport {
	return c.metrics.Report()
}

// RunOutcome classifies how an agent run ended.
type RunOutcome string

const (
	RunOutcomeOK        RunOutcome = "ok"
	RunOutcomeError     RunOutcome = "error"
	RunOutcomeTimeout   RunOutcome = "timeout"
	RunOutcomeCancelled RunOutcome = "cancelled"
)

// MetricsReport contains client run metrics.
type MetricsReport struct {
	// RunsTotal is the number of finished runs.
	RunsTotal uint64 `json:"runs_total"`

	// RunsActive is the number of in-flight runs.
	RunsActive uint32 `json:"runs_active"`

	// RunsSucceeded is the number of runs that completed with status ok.
	RunsSucceeded uint64 `json:"runs_succeeded"`

	// RunsErrored is the number of runs that completed with status error.
	RunsErrored uint64 `json:"runs_errored"`

	// RunsTimedOut is the number of runs that hit their deadline.
	RunsTimedOut uint64 `json:"runs_timed_out"`

	// RunsCancelled is the number of streams abandoned by their consumer.
	RunsCancelled uint64 `json:"runs_cancelled"`

	// AverageLatencyMs is the average run latency in milliseconds.
	AverageLatencyMs float64 `json:"average_latency_ms"`

	// P50LatencyMs is the 50th percentile latency in milliseconds.
	P50LatencyMs float64 `json:"p50_latency_ms,omitempty"`

	// P95LatencyMs is the 95th percentile latency in milliseconds.
	P95LatencyMs float64 `json:"p95_latency_ms,omitempty"`

	// P99LatencyMs is the 99th percentile latency in milliseconds.
	P99LatencyMs float64 `json:"p99_latency_ms,omitempty"`

	// UptimeSeconds is the time since the collector was created.
	UptimeSeconds float64 `json:"uptime_seconds"`

	// Timestamp is when these metrics were collected.
	Timestamp time.Time `json:"timestamp"`
}

// maxLatencySamples bounds the latency window used for percentiles.
const maxLatencySamples = 1000

// MetricsCollector collects run metrics over time. It is safe for
// concurrent use.
type MetricsCollector struct {
	mu            sync.Mutex
	startTime     time.Time
	runsTotal     uint64
	runsActive    uint32
	runsSucceeded uint64
	runsErrored   uint64
	runsTimedOut  uint64
	runsCancelled uint64
	latencies     []float64
}

// NewMetricsCollector creates a new metrics collector.
func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{
		startTime: time.Now(),
		latencies: make([]float64, 0, maxLatencySamples),
	}
}

// RunStarted records a run entering flight.
func (c *MetricsCollector) RunStarted() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.runsActive++
}

// RunFinished records a run leaving flight.
func (c *MetricsCollector) RunFinished(outcome RunOutcome, latency time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.runsActive > 0 {
		c.runsActive--
	}
	c.runsTotal++

	switch outcome {
	case RunOutcomeOK:
		c.runsSucceeded++
	case RunOutcomeError:
		c.runsErrored++
	case RunOutcomeTimeout:
		c.runsTimedOut++
	case RunOutcomeCancelled:
		c.runsCancelled++
	}

	c.latencies = append(c.latencies, float64(latency)/float64(time.Millisecond))
	if len(c.latencies) > maxLatencySamples {
		c.latencies = c.latencies[len(c.latencies)-maxLatencySamples:]
	}
}

// Report generates a metrics report.
func (c *MetricsCollector) Report() *MetricsReport {
	c.mu.Lock()
	defer c.mu.Unlock()

	report := &MetricsReport{
		RunsTotal:     c.runsTotal,
		RunsActive:    c.runsActive,
		RunsSucceeded: c.runsSucceeded,
		RunsErrored:   c.runsErrored,
		RunsTimedOut:  c.runsTimedOut,
		RunsCancelled: c.runsCancelled,
		UptimeSeconds: time.Since(c.startTime).Seconds(),
		Timestamp:     time.Now(),
	}

	if len(c.latencies) > 0 {
		var sum float64
		for _, l := range c.latencies {
			sum += l
		}
		report.AverageLatencyMs = sum / float64(len(c.latencies))

		sorted := slices.Clone(c.latencies)
		slices.Sort(sorted)

		report.P50LatencyMs = percentile(sorted, 0.50)
		report.P95LatencyMs = percentile(sorted, 0.95)
		report.P99LatencyMs = percentile(sorted, 0.99)
	}

	return report
}

// percentile calculates the p-th percentile of a sorted slice.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(float64(len(sorted)-1) * p)
	return sorted[idx]
}
