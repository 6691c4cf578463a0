package openclaw

import (
	"errors"
	"fmt"
)

// Error kinds. Match them with errors.Is.
var (
	// ErrConnection reports that the gateway is unreachable, the handshake
	// did not complete in time, or the protocol versions do not overlap.
	ErrConnection = errors.New("gateway connection error")

	// ErrAuthentication reports that the gateway rejected the credentials.
	ErrAuthentication = errors.New("gateway authentication error")

	// ErrPairingRequired reports that this client is registered with the
	// gateway but not yet approved by an operator. It also matches
	// ErrAuthentication.
	ErrPairingRequired = errors.New("device pairing required")

	// ErrTimeout reports that an operation's deadline elapsed.
	ErrTimeout = errors.New("gateway operation timed out")

	// ErrExecution reports that the remote operation failed or returned an
	// unusable response.
	ErrExecution = errors.New("agent execution error")

	// ErrProtocol reports a malformed or out-of-contract message.
	ErrProtocol = errors.New("gateway protocol error")
)

// Error is the concrete error returned by client operations.
type Error struct {
	// Kind is one of the Err* sentinels.
	Kind error

	// Message is the human readable detail.
	Message string

	// Err is the underlying cause, if any.
	Err error
}

func newError(kind error, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Err: cause}
}

func (e *Error) Error() string {
	if e.Message == "" {
		if e.Err != nil {
			return fmt.Sprintf("%v: %v", e.Kind, e.Err)
		}
		return e.Kind.Error()
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Is reports pairing errors as authentication errors too.
func (e *Error) Is(target error) bool {
	return target == ErrAuthentication && e.Kind == ErrPairingRequired
}

// ResponseError is returned when the gateway answers a request with ok=false.
type ResponseError struct {
	// Method is the request method that failed.
	Method string

	// Code is the gateway's error code, e.g. "UNAUTHORIZED".
	Code string

	// Message is the gateway's error message.
	Message string
}

func (e *ResponseError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("%s request failed: %s", e.Method, e.Message)
	}
	return fmt.Sprintf("%s request failed: %s (%s)", e.Method, e.Message, e.Code)
}
