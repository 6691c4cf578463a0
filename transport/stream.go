package transport

import (
	"bufio"
	"context"
	"crypto/tls"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"
)

// MaxMessageSize is the maximum frame size for stream transports (16MB).
const MaxMessageSize = 16 * 1024 * 1024

// ReadFrame reads one length-prefixed frame from a reader.
// Format: [length:4][payload:length]
func ReadFrame(r io.Reader) ([]byte, error) {
	// Read length prefix (4 bytes, big-endian)
	lengthBuf := make([]byte, 4)
	if _, err := io.ReadFull(r, lengthBuf); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("failed to read frame length: %w", err)
	}

	length := binary.BigEndian.Uint32(lengthBuf)
	if length > MaxMessageSize {
		return nil, fmt.Errorf("frame size %d exceeds maximum %d", length, MaxMessageSize)
	}
	if length == 0 {
		return nil, fmt.Errorf("frame length too small: %d", length)
	}

	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, fmt.Errorf("failed to read frame payload: %w", err)
	}
	return payload, nil
}

// WriteFrame writes one length-prefixed frame to a writer.
// Format: [length:4][payload:length]
func WriteFrame(w io.Writer, payload []byte) error {
	if len(payload) == 0 {
		return fmt.Errorf("frame payload is empty")
	}
	if len(payload) > MaxMessageSize {
		return fmt.Errorf("frame size %d exceeds maximum %d", len(payload), MaxMessageSize)
	}

	// Single write so that message-oriented writers see one frame
	buf := make([]byte, 4+len(payload))
	binary.BigEndian.PutUint32(buf[:4], uint32(len(payload)))
	copy(buf[4:], payload)

	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("failed to write frame: %w", err)
	}
	return nil
}

// StreamDialer dials a Unix or TCP socket and frames messages with a
// length prefix.
type StreamDialer struct {
	// Network is "unix" or "tcp".
	Network string

	// Address is the socket path or host:port.
	Address string

	// TLSConfig wraps the socket in TLS when set.
	TLSConfig *tls.Config

	// Timeout bounds the dial and TLS handshake.
	Timeout time.Duration
}

// Dial implements Dialer.
func (d *StreamDialer) Dial(ctx context.Context) (Conn, error) {
	dialer := net.Dialer{Timeout: d.Timeout}
	conn, err := dialer.DialContext(ctx, d.Network, d.Address)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s %s: %w", d.Network, d.Address, err)
	}

	if d.TLSConfig != nil {
		tlsConn := tls.Client(conn, d.TLSConfig)
		if err := tlsConn.HandshakeContext(ctx); err != nil {
			conn.Close()
			return nil, fmt.Errorf("tls handshake failed: %w", err)
		}
		conn = tlsConn
	}

	return NewStreamConn(conn), nil
}

type streamConn struct {
	conn    net.Conn
	reader  *bufio.Reader
	writeMu sync.Mutex

	closeOnce sync.Once
	closeErr  error
}

// NewStreamConn wraps a net.Conn with length-prefixed framing.
func NewStreamConn(conn net.Conn) Conn {
	return &streamConn{
		conn:   conn,
		reader: bufio.NewReader(conn),
	}
}

func (c *streamConn) ReadMessage() ([]byte, error) {
	data, err := ReadFrame(c.reader)
	if err != nil && (errors.Is(err, net.ErrClosed) || errors.Is(err, io.ErrClosedPipe)) {
		return nil, ErrClosed
	}
	return data, err
}

func (c *streamConn) WriteMessage(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	err := WriteFrame(c.conn, data)
	if err != nil && (errors.Is(err, net.ErrClosed) || errors.Is(err, io.ErrClosedPipe)) {
		return ErrClosed
	}
	return err
}

func (c *streamConn) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.conn.Close()
	})
	return c.closeErr
}

// Pipe returns two connected in-memory Conns. Messages written to one are
// read from the other.
func Pipe() (Conn, Conn) {
	a, b := net.Pipe()
	return NewStreamConn(a), NewStreamConn(b)
}
