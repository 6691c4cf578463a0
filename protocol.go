package openclaw

import (
	"encoding/json"
	"fmt"
)

// Protocol version range spoken by this client.
const (
	ProtocolMinVersion = 3
	ProtocolMaxVersion = 3
)

// MaxFrameSize is the largest inbound frame the client accepts (16MB).
const MaxFrameSize = 16 * 1024 * 1024

// Frame types.
const (
	FrameTypeRequest  = "req"
	FrameTypeResponse = "res"
	FrameTypeEvent    = "event"
)

// Request methods.
const (
	MethodConnect = "connect"
	MethodAgent   = "agent"
	MethodHealth  = "health"
)

// Event names.
const (
	EventAgent            = "agent"
	EventPresence         = "presence"
	EventTick             = "tick"
	EventConnectChallenge = "connect.challenge"
)

// Run statuses reported by agent events.
const (
	RunStatusOK    = "ok"
	RunStatusError = "error"
)

// Agent event phases.
const (
	PhaseEnd   = "end"
	PhaseError = "error"
)

// Frame is a single gateway protocol message.
type Frame struct {
	// Type is "req", "res" or "event".
	Type string `json:"type"`

	// ID correlates a response with its request.
	ID string `json:"id,omitempty"`

	// Method is the request method.
	Method string `json:"method,omitempty"`

	// Params holds request parameters.
	Params json.RawMessage `json:"params,omitempty"`

	// OK reports whether a response succeeded.
	OK *bool `json:"ok,omitempty"`

	// Payload holds the response or event body.
	Payload json.RawMessage `json:"payload,omitempty"`

	// Event is the event name.
	Event string `json:"event,omitempty"`

	// Error is set on failed responses.
	Error *FrameError `json:"error,omitempty"`
}

// FrameError describes a failed response.
type FrameError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Succeeded reports whether a response frame carries ok=true.
func (f *Frame) Succeeded() bool {
	return f.OK != nil && *f.OK
}

// NewRequestFrame builds a request frame with JSON-encoded params.
func NewRequestFrame(id, method string, params interface{}) (*Frame, error) {
	frame := &Frame{
		Type:   FrameTypeRequest,
		ID:     id,
		Method: method,
	}
	if params != nil {
		raw, err := json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal %s params: %w", method, err)
		}
		frame.Params = raw
	}
	return frame, nil
}

// MarshalFrame marshals a Frame to JSON.
func MarshalFrame(frame *Frame) ([]byte, error) {
	return json.Marshal(frame)
}

// UnmarshalFrame parses and validates a Frame.
func UnmarshalFrame(data []byte) (*Frame, error) {
	if len(data) > MaxFrameSize {
		return nil, fmt.Errorf("%w: frame size %d exceeds maximum %d", ErrProtocol, len(data), MaxFrameSize)
	}

	var frame Frame
	if err := json.Unmarshal(data, &frame); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProtocol, err)
	}

	switch frame.Type {
	case FrameTypeResponse:
		if frame.ID == "" {
			return nil, fmt.Errorf("%w: response frame without id", ErrProtocol)
		}
	case FrameTypeEvent:
		if frame.Event == "" {
			return nil, fmt.Errorf("%w: event frame without name", ErrProtocol)
		}
	case FrameTypeRequest:
	default:
		return nil, fmt.Errorf("%w: unknown frame type %q", ErrProtocol, frame.Type)
	}

	return &frame, nil
}

// AgentParams are the params of the agent request.
type AgentParams struct {
	Message        string `json:"message"`
	SessionKey     string `json:"sessionKey"`
	IdempotencyKey string `json:"idempotencyKey"`
}

// agentAccepted is the agent response payload.
type agentAccepted struct {
	RunID string `json:"runId"`
}

// AgentEvent is the payload of an agent event.
type AgentEvent struct {
	// RunID routes the event to its run.
	RunID string `json:"runId"`

	// Data carries streaming output and phase markers.
	Data *AgentEventData `json:"data,omitempty"`

	// Output is the cumulative text under its alternate name.
	Output string `json:"output,omitempty"`

	// Status is "ok" or "error" on the terminal event.
	Status string `json:"status,omitempty"`

	// Summary is the final text, or the diagnostic on error.
	Summary string `json:"summary,omitempty"`
}

// AgentEventData is the nested data of an agent event.
type AgentEventData struct {
	Text  string `json:"text,omitempty"`
	Phase string `json:"phase,omitempty"`
	Error string `json:"error,omitempty"`
}

// UnmarshalJSON decodes an agent event leniently. A field with an
// unexpected JSON type reads as empty and the rest of the event still
// applies.
func (e *AgentEvent) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}

	*e = AgentEvent{
		RunID:   looseString(fields["runId"]),
		Output:  looseString(fields["output"]),
		Status:  looseString(fields["status"]),
		Summary: looseString(fields["summary"]),
	}

	var nested map[string]json.RawMessage
	if raw, ok := fields["data"]; ok && json.Unmarshal(raw, &nested) == nil && nested != nil {
		e.Data = &AgentEventData{
			Text:  looseString(nested["text"]),
			Phase: looseString(nested["phase"]),
			Error: looseString(nested["error"]),
		}
	}
	return nil
}

// looseString reads a JSON string. An object with a string "message" reads
// as that message; any other value reads as "".
func looseString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}

	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}

	var described struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(raw, &described) == nil {
		return described.Message
	}
	return ""
}

// Text returns the cumulative text carried by the event, preferring
// data.text over output.
func (e *AgentEvent) Text() string {
	if e.Data != nil && e.Data.Text != "" {
		return e.Data.Text
	}
	return e.Output
}

// Phase returns data.phase, or "" when absent.
func (e *AgentEvent) Phase() string {
	if e.Data == nil {
		return ""
	}
	return e.Data.Phase
}

// GatewayHealth is the decoded payload of the health method.
type GatewayHealth struct {
	Status      string  `json:"status"`
	Version     string  `json:"version,omitempty"`
	UptimeMs    int64   `json:"uptimeMs,omitempty"`
	MemoryUsage float64 `json:"memoryUsage,omitempty"`
	CPUUsage    float64 `json:"cpuUsage,omitempty"`

	// Raw holds every field reported by the gateway.
	Raw map[string]interface{} `json:"-"`
}

// ParseGatewayHealth decodes a health payload. An empty payload yields a
// zero GatewayHealth.
func ParseGatewayHealth(payload json.RawMessage) (*GatewayHealth, error) {
	health := &GatewayHealth{Raw: map[string]interface{}{}}
	if len(payload) == 0 || string(payload) == "null" {
		return health, nil
	}
	if err := json.Unmarshal(payload, health); err != nil {
		return nil, fmt.Errorf("%w: invalid health payload: %v", ErrProtocol, err)
	}
	if err := json.Unmarshal(payload, &health.Raw); err != nil {
		return nil, fmt.Errorf("%w: invalid health payload: %v", ErrProtocol, err)
	}
	return health, nil
}
