package openclaw

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ConnectParams are sent as the params of the connect request.
type ConnectParams struct {
	// MinProtocol and MaxProtocol bound the accepted protocol versions.
	MinProtocol int `json:"minProtocol"`
	MaxProtocol int `json:"maxProtocol"`

	// Client identifies this client.
	Client *ClientInfo `json:"client"`

	// Role is the requested connection role.
	Role string `json:"role"`

	// Scopes are the requested operator scopes.
	Scopes []string `json:"scopes"`

	// Caps are the capabilities this client offers.
	Caps []string `json:"caps"`

	// Auth carries the bearer token, if any.
	Auth *ConnectAuth `json:"auth,omitempty"`
}

// ConnectAuth holds handshake credentials.
type ConnectAuth struct {
	Token string `json:"token,omitempty"`
}

// NewConnectParams creates connect params for the given client identity.
func NewConnectParams(info *ClientInfo) *ConnectParams {
	if info == nil {
		info = NewClientInfo()
	}
	return &ConnectParams{
		MinProtocol: ProtocolMinVersion,
		MaxProtocol: ProtocolMaxVersion,
		Client:      info,
		Role:        info.Role,
		Scopes:      append([]string{}, info.Scopes...),
		Caps:        append([]string{}, info.Caps...),
	}
}

// WithToken sets the bearer token. An empty token clears Auth.
func (p *ConnectParams) WithToken(token string) *ConnectParams {
	if token == "" {
		p.Auth = nil
		return p
	}
	p.Auth = &ConnectAuth{Token: token}
	return p
}

// FatalKind classifies a permanent handshake rejection.
type FatalKind int

const (
	// FatalNone means no permanent rejection is recorded.
	FatalNone FatalKind = iota

	// FatalAuthRejected means the credentials were rejected.
	FatalAuthRejected

	// FatalPairingRequired means the client awaits operator approval.
	FatalPairingRequired

	// FatalVersionMismatch means no protocol version is shared.
	FatalVersionMismatch
)

func (k FatalKind) String() string {
	switch k {
	case FatalNone:
		return "none"
	case FatalAuthRejected:
		return "auth_rejected"
	case FatalPairingRequired:
		return "pairing_required"
	case FatalVersionMismatch:
		return "version_mismatch"
	default:
		return fmt.Sprintf("FatalKind(%d)", int(k))
	}
}

// FatalError is the permanent handshake failure recorded by the transport.
// The zero value means none.
type FatalError struct {
	Kind    FatalKind
	Code    string
	Message string
}

// IsZero reports whether no fatal error is recorded.
func (f FatalError) IsZero() bool {
	return f.Kind == FatalNone
}

// Err converts the recorded rejection into the error returned by
// Client.Connect. It returns nil for FatalNone.
func (f FatalError) Err() error {
	detail := f.Message
	if detail == "" {
		detail = f.Code
	}

	switch f.Kind {
	case FatalAuthRejected:
		return newError(ErrAuthentication, "authentication failed: "+detail, nil)
	case FatalPairingRequired:
		return newError(ErrPairingRequired, "device pairing required: "+detail, nil)
	case FatalVersionMismatch:
		return newError(ErrConnection, "protocol version mismatch: "+detail, ErrProtocol)
	default:
		return nil
	}
}

// classifyRejection maps a rejected connect response to a fatal kind. The
// code is matched before the message; pairing is matched in either.
// Unrecognized rejections are FatalNone and are retried.
func classifyRejection(code, message string) FatalError {
	fatal := FatalError{Code: code, Message: message}

	if strings.Contains(strings.ToLower(code+" "+message), "pair") {
		fatal.Kind = FatalPairingRequired
		return fatal
	}

	fatal.Kind = rejectionKind(code)
	if fatal.Kind == FatalNone {
		fatal.Kind = rejectionKind(message)
	}
	return fatal
}

func rejectionKind(text string) FatalKind {
	text = strings.ToLower(text)

	switch {
	case strings.Contains(text, "auth"),
		strings.Contains(text, "token"),
		strings.Contains(text, "credential"),
		strings.Contains(text, "forbidden"):
		return FatalAuthRejected
	case strings.Contains(text, "protocol"), strings.Contains(text, "version"):
		return FatalVersionMismatch
	default:
		return FatalNone
	}
}

// helloOK is the part of the accepted connect payload the client inspects.
type helloOK struct {
	Protocol int `json:"protocol"`
}

// parseHello validates the accepted connect payload. A negotiated protocol
// outside the supported range is a version mismatch.
func parseHello(payload json.RawMessage) (*FatalError, error) {
	if len(payload) == 0 || string(payload) == "null" {
		return nil, nil
	}

	var hello helloOK
	if err := json.Unmarshal(payload, &hello); err != nil {
		return nil, fmt.Errorf("%w: invalid hello payload: %v", ErrProtocol, err)
	}
	if hello.Protocol != 0 && (hello.Protocol < ProtocolMinVersion || hello.Protocol > ProtocolMaxVersion) {
		return &FatalError{
			Kind:    FatalVersionMismatch,
			Code:    "PROTOCOL_MISMATCH",
			Message: fmt.Sprintf("gateway selected protocol %d, client supports %d-%d", hello.Protocol, ProtocolMinVersion, ProtocolMaxVersion),
		}, nil
	}

	return nil, nil
}
