// Package transport provides the message-oriented connections used to reach
// an OpenClaw gateway.
//
// Three wire formats are supported:
//   - WebSocket text frames (the gateway's native transport)
//   - gRPC bidirectional streams carrying JSON messages
//   - Length-prefixed frames over a Unix or TCP socket
//
// Each transport yields a Conn that exchanges whole JSON messages. The
// gateway protocol itself lives in the parent package.
package transport

import (
	"context"
	"errors"
)

// ErrClosed is returned by operations on a closed connection.
var ErrClosed = errors.New("transport: connection closed")

// Conn is a bidirectional, message-oriented connection.
//
// ReadMessage is called from a single goroutine. WriteMessage may be called
// concurrently; implementations serialize writes. Close unblocks a pending
// ReadMessage.
type Conn interface {
	// ReadMessage blocks until the next complete message arrives.
	ReadMessage() ([]byte, error)

	// WriteMessage sends one complete message.
	WriteMessage(data []byte) error

	// Close releases the connection. It is safe to call more than once.
	Close() error
}

// Dialer opens new connections to a gateway.
type Dialer interface {
	Dial(ctx context.Context) (Conn, error)
}

// DialerFunc adapts a function to the Dialer interface.
type DialerFunc func(ctx context.Context) (Conn, error)

// Dial calls f(ctx).
func (f DialerFunc) Dial(ctx context.Context) (Conn, error) {
	return f(ctx)
}
