package openclaw

import (
	"encoding/json"
)

// handleFrame routes inbound events. It runs on the transport's read loop,
// one frame at a time.
func (c *Client) handleFrame(frame *Frame) {
	if frame.Type != FrameTypeEvent {
		return
	}

	switch frame.Event {
	case EventAgent:
		c.handleAgentEvent(frame.Payload)
	case EventPresence:
		c.handlePresenceEvent(frame.Payload)
	default:
		c.logger.Trace().Str("event", frame.Event).Msg("Ignoring event")
	}
}

func (c *Client) handleAgentEvent(payload json.RawMessage) {
	var event AgentEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		c.logger.Debug().Err(err).Msg("Dropping malformed agent event")
		return
	}

	run := c.runs.get(event.RunID)
	if run == nil {
		c.logger.Trace().Str("run_id", event.RunID).Msg("Agent event for unknown run")
		return
	}

	applyAgentEvent(run, &event)
}

// applyAgentEvent folds one agent event into its run.
func applyAgentEvent(run *AgentRun, event *AgentEvent) {
	if text := event.Text(); text != "" {
		run.SetOutput(text)
	}

	switch {
	case event.Status != "":
		if status, terminal := terminalStatus(event.Status); terminal {
			run.Complete(status, event.Summary)
		}
	case event.Phase() == PhaseEnd:
		run.Complete(RunStatusOK, event.Summary)
	case event.Phase() == PhaseError:
		diagnostic := event.Data.Error
		if diagnostic == "" {
			diagnostic = event.Summary
		}
		run.Complete(RunStatusError, diagnostic)
	}
}

// terminalStatus normalizes a reported status. Progress statuses such as
// "accepted" or "running" are not terminal.
func terminalStatus(status string) (string, bool) {
	switch status {
	case RunStatusOK:
		return RunStatusOK, true
	case RunStatusError, "failed", "cancelled", "canceled", "timeout":
		return RunStatusError, true
	default:
		return "", false
	}
}

// handlePresenceEvent replaces the presence state. Empty payloads keep the
// last known value.
func (c *Client) handlePresenceEvent(payload json.RawMessage) {
	if len(decodeObject(payload)) == 0 {
		return
	}

	presence := make(json.RawMessage, len(payload))
	copy(presence, payload)

	c.mu.Lock()
	c.presence = presence
	c.mu.Unlock()
}
