package openclaw

import (
	"sync"
	"time"
)

// AgentRun is the in-flight state of one agent invocation.
//
// The gateway sends the full text produced so far with every update, so the
// output buffer always holds the latest cumulative value, never a delta.
type AgentRun struct {
	// ID is the gateway-assigned run identifier.
	ID string

	startedAt time.Time

	mu      sync.Mutex
	output  string
	summary string
	status  string

	// changed is closed and replaced on every update; guarded by mu.
	changed chan struct{}
	done    chan struct{}
}

// NewAgentRun creates an incomplete run.
func NewAgentRun(id string) *AgentRun {
	return &AgentRun{
		ID:        id,
		startedAt: time.Now(),
		changed:   make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// SetOutput replaces the buffered output with the new cumulative text.
// Empty text and updates after completion are ignored.
func (r *AgentRun) SetOutput(text string) {
	if text == "" {
		return
	}

	r.mu.Lock()
	if r.isDone() || text == r.output {
		r.mu.Unlock()
		return
	}
	r.output = text
	r.notifyLocked()
	r.mu.Unlock()
}

// Complete marks the run terminal. Only the first call has an effect; it
// returns false for later calls.
func (r *AgentRun) Complete(status, summary string) bool {
	r.mu.Lock()
	if r.isDone() {
		r.mu.Unlock()
		return false
	}
	r.status = status
	r.summary = summary
	close(r.done)
	r.notifyLocked()
	r.mu.Unlock()
	return true
}

// Done is closed when the run reaches a terminal status.
func (r *AgentRun) Done() <-chan struct{} {
	return r.done
}

// Changed returns a channel that is closed by the next change to the
// output or status. Every caller holding the channel observes the change;
// bursts of updates after it closes need a fresh call.
func (r *AgentRun) Changed() <-chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.changed
}

// Status returns "ok", "error", or "" while in flight.
func (r *AgentRun) Status() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// Summary returns the terminal summary.
func (r *AgentRun) Summary() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.summary
}

// Output returns the buffered cumulative text.
func (r *AgentRun) Output() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.output
}

// Response returns the final text of the run: a non-empty summary of a
// successful run wins, otherwise the buffered output, otherwise the summary.
func (r *AgentRun) Response() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.response()
}

func (r *AgentRun) response() string {
	if r.status == RunStatusOK && r.summary != "" {
		return r.summary
	}
	if r.output != "" {
		return r.output
	}
	return r.summary
}

// snapshot returns the current text, status, and whether the run is done.
// The text of a successful run is its final response; otherwise it is the
// buffered output.
func (r *AgentRun) snapshot() (text, status string, done bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.isDone() && r.status == RunStatusOK {
		return r.response(), r.status, true
	}
	return r.output, r.status, r.isDone()
}

// isDone must be called with mu held.
func (r *AgentRun) isDone() bool {
	select {
	case <-r.done:
		return true
	default:
		return false
	}
}

// notifyLocked must be called with mu held.
func (r *AgentRun) notifyLocked() {
	close(r.changed)
	r.changed = make(chan struct{})
}

// runRegistry maps run identifiers to in-flight runs. An entry lives
// exactly as long as at least one operation is waiting on it.
type runRegistry struct {
	mu   sync.Mutex
	runs map[string]*registryEntry
}

type registryEntry struct {
	run  *AgentRun
	refs int
}

func newRunRegistry() *runRegistry {
	return &runRegistry{runs: make(map[string]*registryEntry)}
}

// acquire returns the run for id, creating it if needed. Each acquire must
// be paired with a release.
func (rr *runRegistry) acquire(id string) *AgentRun {
	rr.mu.Lock()
	defer rr.mu.Unlock()

	entry, ok := rr.runs[id]
	if !ok {
		entry = &registryEntry{run: NewAgentRun(id)}
		rr.runs[id] = entry
	}
	entry.refs++
	return entry.run
}

// release drops one reference and removes the entry when none remain.
func (rr *runRegistry) release(id string) {
	rr.mu.Lock()
	defer rr.mu.Unlock()

	entry, ok := rr.runs[id]
	if !ok {
		return
	}
	entry.refs--
	if entry.refs <= 0 {
		delete(rr.runs, id)
	}
}

func (rr *runRegistry) get(id string) *AgentRun {
	rr.mu.Lock()
	defer rr.mu.Unlock()

	if entry, ok := rr.runs[id]; ok {
		return entry.run
	}
	return nil
}

func (rr *runRegistry) len() int {
	rr.mu.Lock()
	defer rr.mu.Unlock()
	return len(rr.runs)
}

func (rr *runRegistry) has(id string) bool {
	return rr.get(id) != nil
}
