package openclaw

import (
	"testing"
	"time"
)

func TestHealthStatusConstructors(t *testing.T) {
	healthy := Healthy("ok")
	if !healthy.IsHealthy() || healthy.Message != "ok" {
		t.Errorf("unexpected healthy status: %+v", healthy)
	}

	degraded := Degraded("slow")
	if degraded.IsHealthy() || degraded.State != HealthStateDegraded {
		t.Errorf("unexpected degraded status: %+v", degraded)
	}

	unhealthy := Unhealthy("down").WithDetail("attempts", 3)
	if unhealthy.State != HealthStateUnhealthy {
		t.Errorf("expected unhealthy, got %s", unhealthy.State)
	}
	if unhealthy.Details["attempts"] != 3 {
		t.Errorf("expected detail attempts=3, got %v", unhealthy.Details)
	}
	if unhealthy.Timestamp.IsZero() {
		t.Error("expected timestamp to be set")
	}
}

func TestHealthStatus_WithDetailOnZeroValue(t *testing.T) {
	status := &HealthStatus{}
	status.WithDetail("k", "v")
	if status.Details["k"] != "v" {
		t.Errorf("expected detail to be added, got %v", status.Details)
	}
}

func TestClientStatus(t *testing.T) {
	ft := newFakeTransport()
	client := newTestClient(t, ft, time.Second)

	status := client.Status()
	if status.State != HealthStateUnhealthy {
		t.Errorf("expected unhealthy when disconnected, got %s", status.State)
	}
	if status.Details["state"] != "disconnected" {
		t.Errorf("expected state detail, got %v", status.Details)
	}

	ft.running = true
	if client.Status().State != HealthStateDegraded {
		t.Errorf("expected degraded while connecting, got %s", client.Status().State)
	}

	ft.connected = true
	client.runs.acquire("r1")
	status = client.Status()
	if !status.IsHealthy() {
		t.Errorf("expected healthy when connected, got %s", status.State)
	}
	if status.Details["active_runs"] != 1 {
		t.Errorf("expected 1 active run, got %v", status.Details["active_runs"])
	}

	ft.connected = false
	ft.running = false
	ft.fatal = FatalError{Kind: FatalPairingRequired, Message: "approve device"}
	status = client.Status()
	if status.State != HealthStateUnhealthy {
		t.Errorf("expected unhealthy after rejection, got %s", status.State)
	}
	if status.Details["fatal_kind"] != "pairing_required" {
		t.Errorf("expected fatal kind detail, got %v", status.Details)
	}
}

func TestMetricsCollector(t *testing.T) {
	m := NewMetricsCollector()

	for i := 0; i < 4; i++ {
		m.RunStarted()
	}
	m.RunFinished(RunOutcomeOK, 10*time.Millisecond)
	m.RunFinished(RunOutcomeOK, 20*time.Millisecond)
	m.RunFinished(RunOutcomeError, 30*time.Millisecond)

	report := m.Report()
	if report.RunsTotal != 3 {
		t.Errorf("expected 3 runs, got %d", report.RunsTotal)
	}
	if report.RunsActive != 1 {
		t.Errorf("expected 1 active run, got %d", report.RunsActive)
	}
	if report.RunsSucceeded != 2 || report.RunsErrored != 1 {
		t.Errorf("expected 2 ok and 1 error, got %d/%d", report.RunsSucceeded, report.RunsErrored)
	}
	if report.AverageLatencyMs != 20 {
		t.Errorf("expected average 20ms, got %f", report.AverageLatencyMs)
	}
	if report.P50LatencyMs != 20 {
		t.Errorf("expected p50 20ms, got %f", report.P50LatencyMs)
	}
	if report.P99LatencyMs != 20 {
		t.Errorf("expected p99 20ms, got %f", report.P99LatencyMs)
	}

	m.RunFinished(RunOutcomeTimeout, time.Millisecond)
	m.RunFinished(RunOutcomeCancelled, time.Millisecond)
	m.RunFinished(RunOutcomeCancelled, time.Millisecond)

	report = m.Report()
	if report.RunsTimedOut != 1 || report.RunsCancelled != 2 {
		t.Errorf("expected 1 timeout and 2 cancelled, got %d/%d", report.RunsTimedOut, report.RunsCancelled)
	}
	if report.RunsActive != 0 {
		t.Errorf("expected active runs to floor at 0, got %d", report.RunsActive)
	}
}

func TestMetricsCollector_LatencyWindow(t *testing.T) {
	m := NewMetricsCollector()
	for i := 0; i < maxLatencySamples+10; i++ {
		m.RunFinished(RunOutcomeOK, time.Millisecond)
	}

	m.mu.Lock()
	samples := len(m.latencies)
	m.mu.Unlock()
	if samples != maxLatencySamples {
		t.Errorf("expected %d samples, got %d", maxLatencySamples, samples)
	}
}

func TestPercentile(t *testing.T) {
	if percentile(nil, 0.5) != 0 {
		t.Error("expected 0 for empty slice")
	}

	sorted := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	if got := percentile(sorted, 0.5); got != 5 {
		t.Errorf("expected p50 5, got %f", got)
	}
	if got := percentile(sorted, 0.95); got != 9 {
		t.Errorf("expected p95 9, got %f", got)
	}
}
