package openclaw

import (
	"context"
	"iter"
	"strings"
	"sync/atomic"
	"time"
)

// StreamAgentRequest sends a message to the agent and returns the response
// as a sequence of text deltas. The gateway reports cumulative text; each
// element is only the part appended since the previous one.
//
// The sequence ends after the final delta of a successful run. A failed run
// yields ErrExecution after the text already produced, and an expired
// deadline yields ErrTimeout. The sequence can be iterated once. Breaking
// out of the loop early releases the run.
//
//	for delta, err := range client.StreamAgentRequest(ctx, "hello") {
//	    if err != nil {
//	        return err
//	    }
//	    fmt.Print(delta)
//	}
func (c *Client) StreamAgentRequest(ctx context.Context, message string, opts ...RequestOption) iter.Seq2[string, error] {
	var consumed atomic.Bool

	return func(yield func(string, error) bool) {
		if !consumed.CompareAndSwap(false, true) {
			yield("", newError(ErrExecution, "agent stream already consumed", nil))
			return
		}

		tctx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()

		run, err := c.startRun(tctx, message, opts)
		if err != nil {
			yield("", c.operationError(ctx, MethodAgent, err))
			return
		}
		defer c.runs.release(run.ID)

		c.metrics.RunStarted()
		outcome := RunOutcomeCancelled
		defer func() {
			c.metrics.RunFinished(outcome, time.Since(run.startedAt))
		}()

		d := deltaTracker{}
		for {
			changed := run.Changed()
			text, status, done := run.snapshot()
			if delta, ok := d.next(text); ok {
				if !yield(delta, nil) {
					return
				}
			}

			if done {
				if status == RunStatusOK {
					outcome = RunOutcomeOK
					return
				}
				outcome = RunOutcomeError
				yield("", runFailure(run))
				return
			}

			select {
			case <-changed:
			case <-run.Done():
			case <-tctx.Done():
				outcome = RunOutcomeTimeout
				yield("", c.operationError(ctx, MethodAgent, tctx.Err()))
				return
			}
		}
	}
}

// deltaTracker turns cumulative text into appended suffixes.
type deltaTracker struct {
	emitted string
}

// next returns the text appended since the last call. Text that does not
// extend what was already emitted yields nothing.
func (d *deltaTracker) next(text string) (string, bool) {
	if len(text) <= len(d.emitted) || !strings.HasPrefix(text, d.emitted) {
		return "", false
	}
	delta := text[len(d.emitted):]
	d.emitted = text
	return delta, true
}
