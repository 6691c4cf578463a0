package openclaw

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"
)

type streamItem struct {
	delta string
	err   error
}

// streamAsync drains a stream into a channel. The channel is closed when
// the sequence ends.
func streamAsync(c *Client, message string, opts ...RequestOption) <-chan streamItem {
	ch := make(chan streamItem)
	go func() {
		defer close(ch)
		for delta, err := range c.StreamAgentRequest(context.Background(), message, opts...) {
			ch <- streamItem{delta: delta, err: err}
		}
	}()
	return ch
}

func nextItem(t *testing.T, ch <-chan streamItem) (streamItem, bool) {
	t.Helper()
	select {
	case item, ok := <-ch:
		return item, ok
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for stream")
		return streamItem{}, false
	}
}

func TestStreamAgentRequest_YieldsDeltas(t *testing.T) {
	ft := newFakeTransport()
	ft.respond = respondRunID("r1")
	client := newTestClient(t, ft, 2*time.Second)

	items := streamAsync(client, "hello")
	waitForRun(t, client, "r1")

	client.handleFrame(agentEvent(`{"runId":"r1","data":{"text":"Hi"}}`))
	if item, _ := nextItem(t, items); item.delta != "Hi" || item.err != nil {
		t.Errorf("expected 'Hi', got %q (err %v)", item.delta, item.err)
	}

	client.handleFrame(agentEvent(`{"runId":"r1","data":{"text":"Hi there"}}`))
	if item, _ := nextItem(t, items); item.delta != " there" || item.err != nil {
		t.Errorf("expected ' there', got %q (err %v)", item.delta, item.err)
	}

	client.handleFrame(agentEvent(`{"runId":"r1","status":"ok"}`))
	if item, ok := nextItem(t, items); ok {
		t.Errorf("expected stream to end, got %+v", item)
	}

	if client.runs.len() != 0 {
		t.Errorf("expected empty registry, got %d entries", client.runs.len())
	}
	if report := client.Metrics(); report.RunsSucceeded != 1 {
		t.Errorf("expected 1 succeeded run, got %d", report.RunsSucceeded)
	}
}

func waitForRefs(t *testing.T, c *Client, runID string, refs int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		c.runs.mu.Lock()
		entry, ok := c.runs.runs[runID]
		got := 0
		if ok {
			got = entry.refs
		}
		c.runs.mu.Unlock()
		if got == refs {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("run %s has %d waiters, expected %d", runID, got, refs)
		}
		time.Sleep(time.Millisecond)
	}
}

func TestStreamAgentRequest_SharedRunReachesEveryStream(t *testing.T) {
	ft := newFakeTransport()
	ft.respond = respondRunID("r1")
	client := newTestClient(t, ft, 2*time.Second)

	first := streamAsync(client, "hello", WithIdempotencyKey("same"))
	second := streamAsync(client, "hello", WithIdempotencyKey("same"))
	waitForRefs(t, client, "r1", 2)

	client.handleFrame(agentEvent(`{"runId":"r1","data":{"text":"Hi"}}`))
	for i, items := range []<-chan streamItem{first, second} {
		if item, _ := nextItem(t, items); item.delta != "Hi" || item.err != nil {
			t.Errorf("stream %d: expected 'Hi', got %q (err %v)", i, item.delta, item.err)
		}
	}

	client.handleFrame(agentEvent(`{"runId":"r1","status":"ok"}`))
	for i, items := range []<-chan streamItem{first, second} {
		if item, ok := nextItem(t, items); ok {
			t.Errorf("stream %d: expected end, got %+v", i, item)
		}
	}
	if client.runs.len() != 0 {
		t.Errorf("expected empty registry, got %d entries", client.runs.len())
	}
}

func TestStreamAgentRequest_SummaryFlushedAtEnd(t *testing.T) {
	ft := newFakeTransport()
	ft.respond = respondRunID("r1")
	client := newTestClient(t, ft, 2*time.Second)

	items := streamAsync(client, "hello")
	waitForRun(t, client, "r1")

	client.handleFrame(agentEvent(`{"runId":"r1","status":"ok","summary":"Done"}`))
	if item, _ := nextItem(t, items); item.delta != "Done" {
		t.Errorf("expected summary 'Done', got %q (err %v)", item.delta, item.err)
	}
	if _, ok := nextItem(t, items); ok {
		t.Error("expected stream to end")
	}
}

func TestStreamAgentRequest_ErrorAfterPartialText(t *testing.T) {
	ft := newFakeTransport()
	ft.respond = respondRunID("r1")
	client := newTestClient(t, ft, 2*time.Second)

	items := streamAsync(client, "hello")
	waitForRun(t, client, "r1")

	client.handleFrame(agentEvent(`{"runId":"r1","output":"partial"}`))
	if item, _ := nextItem(t, items); item.delta != "partial" {
		t.Errorf("expected 'partial', got %q (err %v)", item.delta, item.err)
	}

	client.handleFrame(agentEvent(`{"runId":"r1","status":"error","summary":"boom"}`))
	item, _ := nextItem(t, items)
	if !errors.Is(item.err, ErrExecution) {
		t.Errorf("expected ErrExecution, got %v", item.err)
	}
	if _, ok := nextItem(t, items); ok {
		t.Error("expected stream to end after error")
	}
	if client.runs.len() != 0 {
		t.Errorf("expected empty registry, got %d entries", client.runs.len())
	}
}

func TestStreamAgentRequest_Timeout(t *testing.T) {
	ft := newFakeTransport()
	ft.respond = respondRunID("r1")
	client := newTestClient(t, ft, 20*time.Millisecond)

	var errs []error
	for _, err := range client.StreamAgentRequest(context.Background(), "hello") {
		if err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) != 1 || !errors.Is(errs[0], ErrTimeout) {
		t.Errorf("expected one ErrTimeout, got %v", errs)
	}
	if client.runs.len() != 0 {
		t.Errorf("expected empty registry, got %d entries", client.runs.len())
	}
}

func TestStreamAgentRequest_ConnectionError(t *testing.T) {
	ft := newFakeTransport()
	ft.respond = func(string, interface{}) (json.RawMessage, error) {
		return nil, newError(ErrConnection, "not connected to gateway", nil)
	}
	client := newTestClient(t, ft, time.Second)

	count := 0
	for delta, err := range client.StreamAgentRequest(context.Background(), "hello") {
		count++
		if delta != "" || !errors.Is(err, ErrConnection) {
			t.Errorf("expected ErrConnection, got %q %v", delta, err)
		}
	}
	if count != 1 {
		t.Errorf("expected a single error element, got %d", count)
	}
}

func TestStreamAgentRequest_BreakReleasesRun(t *testing.T) {
	ft := newFakeTransport()
	ft.respond = respondRunID("r1")
	client := newTestClient(t, ft, 2*time.Second)

	stream := client.StreamAgentRequest(context.Background(), "hello")

	done := make(chan struct{})
	go func() {
		defer close(done)
		for delta := range stream {
			if delta == "Hi" {
				break
			}
		}
	}()

	waitForRun(t, client, "r1")
	client.handleFrame(agentEvent(`{"runId":"r1","output":"Hi"}`))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("consumer did not finish")
	}

	if client.runs.len() != 0 {
		t.Errorf("expected break to release the run, got %d entries", client.runs.len())
	}
	if report := client.Metrics(); report.RunsCancelled != 1 {
		t.Errorf("expected 1 cancelled run, got %d", report.RunsCancelled)
	}
}

func TestStreamAgentRequest_SingleUse(t *testing.T) {
	ft := newFakeTransport()
	ft.respond = func(string, interface{}) (json.RawMessage, error) {
		return json.RawMessage(`{}`), nil
	}
	client := newTestClient(t, ft, time.Second)

	stream := client.StreamAgentRequest(context.Background(), "hello")
	for range stream {
	}

	var second error
	for _, err := range stream {
		second = err
	}
	if !errors.Is(second, ErrExecution) {
		t.Errorf("expected ErrExecution on second iteration, got %v", second)
	}
	if ft.requestCount() != 1 {
		t.Errorf("expected one request, got %d", ft.requestCount())
	}
}

func TestDeltaTracker(t *testing.T) {
	var d deltaTracker

	steps := []struct {
		text  string
		delta string
		ok    bool
	}{
		{"", "", false},
		{"Hel", "Hel", true},
		{"Hel", "", false},
		{"Hello", "lo", true},
		{"Help", "", false},
		{"Hello world", " world", true},
	}

	for _, step := range steps {
		delta, ok := d.next(step.text)
		if delta != step.delta || ok != step.ok {
			t.Errorf("next(%q) = %q, %v; expected %q, %v", step.text, delta, ok, step.delta, step.ok)
		}
	}
}
