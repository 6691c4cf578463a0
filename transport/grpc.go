package transport

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	grpcencoding "google.golang.org/grpc/encoding"
)

// gatewayServiceName and connectMethod describe the gateway's streaming
// service:
//
//	service Gateway {
//	  rpc Connect(stream Frame) returns (stream Frame);
//	}
const (
	gatewayServiceName = "openclaw.gateway.v1.Gateway"
	connectMethod      = "/" + gatewayServiceName + "/Connect"
)

// jsonMessage is a raw JSON container used as the gRPC message type.
type jsonMessage struct {
	Data json.RawMessage
}

// jsonCodec implements grpc encoding.Codec by passing raw JSON bytes
// through, so no protoc-generated code is needed.
type jsonCodec struct{}

var _ grpcencoding.Codec = jsonCodec{}

func (jsonCodec) Marshal(v interface{}) ([]byte, error) {
	msg, ok := v.(*jsonMessage)
	if !ok {
		return json.Marshal(v)
	}
	if msg.Data == nil {
		return []byte("{}"), nil
	}
	return []byte(msg.Data), nil
}

func (jsonCodec) Unmarshal(data []byte, v interface{}) error {
	msg, ok := v.(*jsonMessage)
	if !ok {
		return json.Unmarshal(data, v)
	}
	msg.Data = make(json.RawMessage, len(data))
	copy(msg.Data, data)
	return nil
}

func (jsonCodec) Name() string {
	return "json"
}

var connectStreamDesc = grpc.StreamDesc{
	StreamName:    "Connect",
	ServerStreams: true,
	ClientStreams: true,
}

// GRPCDialer opens a Connect stream on a gRPC gateway endpoint.
type GRPCDialer struct {
	// Address is the gRPC target, e.g. "localhost:18790".
	Address string

	// TLSConfig enables transport security when set.
	TLSConfig *tls.Config

	// DialOptions are appended to the client options.
	DialOptions []grpc.DialOption
}

// Dial implements Dialer.
func (d *GRPCDialer) Dial(ctx context.Context) (Conn, error) {
	creds := insecure.NewCredentials()
	if d.TLSConfig != nil {
		creds = credentials.NewTLS(d.TLSConfig)
	}

	opts := []grpc.DialOption{
		grpc.WithTransportCredentials(creds),
		grpc.WithDefaultCallOptions(grpc.ForceCodec(jsonCodec{})),
	}
	opts = append(opts, d.DialOptions...)

	cc, err := grpc.NewClient(d.Address, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create grpc client for %s: %w", d.Address, err)
	}

	// The stream outlives the dial context; Close cancels it.
	streamCtx, cancel := context.WithCancel(context.Background())
	stop := context.AfterFunc(ctx, cancel)

	stream, err := cc.NewStream(streamCtx, &connectStreamDesc, connectMethod)
	stop()
	if err != nil {
		cancel()
		cc.Close()
		return nil, fmt.Errorf("failed to open grpc stream to %s: %w", d.Address, err)
	}

	return &grpcConn{
		cc:     cc,
		stream: stream,
		cancel: cancel,
	}, nil
}

type grpcConn struct {
	cc     *grpc.ClientConn
	stream grpc.ClientStream
	cancel context.CancelFunc
	sendMu sync.Mutex

	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

func (c *grpcConn) ReadMessage() ([]byte, error) {
	var msg jsonMessage
	if err := c.stream.RecvMsg(&msg); err != nil {
		if c.closed.Load() || err == io.EOF {
			return nil, ErrClosed
		}
		return nil, err
	}
	return msg.Data, nil
}

func (c *grpcConn) WriteMessage(data []byte) error {
	if c.closed.Load() {
		return ErrClosed
	}

	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	if err := c.stream.SendMsg(&jsonMessage{Data: data}); err != nil {
		if c.closed.Load() || err == io.EOF {
			return ErrClosed
		}
		return err
	}
	return nil
}

func (c *grpcConn) Close() error {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		c.cancel()
		c.closeErr = c.cc.Close()
	})
	return c.closeErr
}
