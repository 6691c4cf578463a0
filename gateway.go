package openclaw

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/openclaw/gateway-client-go/transport"
)

// errFatalRejection stops the connection loop after a permanent rejection.
var errFatalRejection = errors.New("handshake permanently rejected")

// transportChannel is the connection surface the Client drives.
type transportChannel interface {
	// Connect starts the background connection loop if it is not running.
	// Handshake failures are recorded, never returned.
	Connect(ctx context.Context)

	// Signals returns the ready channel (closed on handshake success) and
	// the failed channel (closed when a permanent rejection stops the loop).
	Signals() (ready, failed <-chan struct{})

	// Disconnect stops the loop and closes the connection. Idempotent.
	Disconnect()

	Connected() bool
	Running() bool
	FatalError() FatalError
	Snapshot() map[string]interface{}
	SetToken(token string)

	// Request sends a request and waits for its response. onResponse runs
	// on the read loop with the payload of a successful response, before
	// the next inbound frame is handled.
	Request(ctx context.Context, method string, params interface{}, onResponse func(json.RawMessage)) (json.RawMessage, error)

	// Subscribe registers fn for every inbound frame. Frames reach
	// subscribers before the matching request is resolved.
	Subscribe(fn func(*Frame)) (unsubscribe func())
}

type gatewayOptions struct {
	dialer               transport.Dialer
	info                 *ClientInfo
	token                string
	handshakeTimeout     time.Duration
	reconnectInterval    time.Duration
	maxReconnectInterval time.Duration
	logger               zerolog.Logger
}

// gateway owns the single connection to the gateway process.
type gateway struct {
	dialer               transport.Dialer
	info                 *ClientInfo
	handshakeTimeout     time.Duration
	reconnectInterval    time.Duration
	maxReconnectInterval time.Duration
	logger               zerolog.Logger

	mu          sync.Mutex
	token       string
	conn        transport.Conn
	connected   bool
	ready       chan struct{}
	failed      chan struct{}
	fatal       FatalError
	snapshot    json.RawMessage
	pending     map[string]*pendingRequest
	cancel      context.CancelFunc
	loopDone    chan struct{}
	subscribers map[uint64]func(*Frame)
	nextSubID   uint64
}

type pendingRequest struct {
	method     string
	result     chan requestResult
	onResponse func(json.RawMessage)
}

type requestResult struct {
	frame *Frame
	err   error
}

func newGateway(opts gatewayOptions) *gateway {
	failed := make(chan struct{})
	return &gateway{
		dialer:               opts.dialer,
		info:                 opts.info,
		token:                opts.token,
		handshakeTimeout:     opts.handshakeTimeout,
		reconnectInterval:    opts.reconnectInterval,
		maxReconnectInterval: opts.maxReconnectInterval,
		logger:               opts.logger.With().Str("component", "transport").Logger(),
		ready:                make(chan struct{}),
		failed:               failed,
		pending:              make(map[string]*pendingRequest),
		subscribers:          make(map[uint64]func(*Frame)),
	}
}

func (g *gateway) Connect(ctx context.Context) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.loopDone != nil {
		return
	}

	select {
	case <-g.ready:
		g.ready = make(chan struct{})
	default:
	}
	g.failed = make(chan struct{})

	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan struct{})
	g.cancel = cancel
	g.loopDone = done

	go g.run(loopCtx, done, g.failed)
}

func (g *gateway) Signals() (<-chan struct{}, <-chan struct{}) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.ready, g.failed
}

func (g *gateway) Disconnect() {
	g.mu.Lock()
	cancel, done, conn := g.cancel, g.loopDone, g.conn
	g.cancel, g.loopDone = nil, nil
	g.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if conn != nil {
		conn.Close()
	}
	if done != nil {
		<-done
	}

	g.mu.Lock()
	wasConnected := g.connected
	g.connected = false
	g.conn = nil
	g.mu.Unlock()

	g.failPending(newError(ErrConnection, "disconnected from gateway", nil))

	if wasConnected || done != nil {
		g.logger.Info().Msg("Disconnected from gateway")
	}
}

func (g *gateway) Connected() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.connected
}

func (g *gateway) Running() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.loopDone != nil
}

func (g *gateway) FatalError() FatalError {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.fatal
}

// Snapshot decodes a fresh copy of the last hello payload.
func (g *gateway) Snapshot() map[string]interface{} {
	g.mu.Lock()
	raw := g.snapshot
	g.mu.Unlock()
	return decodeObject(raw)
}

func (g *gateway) SetToken(token string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.token = token
}

func (g *gateway) Subscribe(fn func(*Frame)) func() {
	g.mu.Lock()
	defer g.mu.Unlock()

	id := g.nextSubID
	g.nextSubID++
	g.subscribers[id] = fn

	return func() {
		g.mu.Lock()
		defer g.mu.Unlock()
		delete(g.subscribers, id)
	}
}

func (g *gateway) Request(ctx context.Context, method string, params interface{}, onResponse func(json.RawMessage)) (json.RawMessage, error) {
	frame, err := NewRequestFrame(uuid.NewString(), method, params)
	if err != nil {
		return nil, err
	}
	data, err := MarshalFrame(frame)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s request: %w", method, err)
	}

	req := &pendingRequest{
		method:     method,
		result:     make(chan requestResult, 1),
		onResponse: onResponse,
	}

	g.mu.Lock()
	conn := g.conn
	if !g.connected || conn == nil {
		g.mu.Unlock()
		return nil, newError(ErrConnection, "not connected to gateway", nil)
	}
	g.pending[frame.ID] = req
	g.mu.Unlock()

	g.logger.Debug().Str("method", method).Str("id", frame.ID).Msg("Sending request")

	if err := conn.WriteMessage(data); err != nil {
		if g.abandon(frame.ID) {
			return nil, newError(ErrConnection, fmt.Sprintf("failed to send %s request", method), err)
		}
		return g.result(<-req.result, method)
	}

	select {
	case res := <-req.result:
		return g.result(res, method)
	case <-ctx.Done():
		if g.abandon(frame.ID) {
			return nil, ctx.Err()
		}
		// Already claimed by the read loop; the result is imminent.
		return g.result(<-req.result, method)
	}
}

// abandon removes a pending request. It returns false if the read loop or
// a disconnect already claimed it.
func (g *gateway) abandon(id string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.pending[id]; !ok {
		return false
	}
	delete(g.pending, id)
	return true
}

func (g *gateway) result(res requestResult, method string) (json.RawMessage, error) {
	if res.err != nil {
		return nil, res.err
	}
	if !res.frame.Succeeded() {
		respErr := &ResponseError{Method: method, Message: "request rejected"}
		if res.frame.Error != nil {
			respErr.Code = res.frame.Error.Code
			respErr.Message = res.frame.Error.Message
		}
		return nil, respErr
	}
	return res.frame.Payload, nil
}

func (g *gateway) failPending(err error) {
	g.mu.Lock()
	pending := g.pending
	g.pending = make(map[string]*pendingRequest)
	g.mu.Unlock()

	for _, req := range pending {
		req.result <- requestResult{err: err}
	}
}

// run dials, handshakes and reads until cancelled or permanently rejected.
func (g *gateway) run(ctx context.Context, done, failed chan struct{}) {
	defer close(done)

	delay := g.reconnectInterval
	for {
		established, err := g.session(ctx)
		if ctx.Err() != nil {
			return
		}

		if errors.Is(err, errFatalRejection) {
			g.mu.Lock()
			if g.loopDone == done {
				g.cancel()
				g.cancel, g.loopDone = nil, nil
			}
			g.mu.Unlock()
			close(failed)
			return
		}

		if established {
			delay = g.reconnectInterval
		}

		g.logger.Warn().Err(err).Dur("retry_in", delay).Msg("Gateway connection lost, reconnecting")

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
		delay = min(delay*2, g.maxReconnectInterval)
	}
}

// session runs one connection from dial to close. It reports whether the
// handshake succeeded.
func (g *gateway) session(ctx context.Context) (bool, error) {
	dialCtx, cancel := context.WithTimeout(ctx, g.handshakeTimeout)
	conn, err := g.dialer.Dial(dialCtx)
	cancel()
	if err != nil {
		return false, fmt.Errorf("dial failed: %w", err)
	}

	// Disconnect cancels ctx; make sure that unblocks every read.
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	hello, fatal, err := g.handshake(ctx, conn)
	if fatal != nil {
		conn.Close()
		g.mu.Lock()
		g.fatal = *fatal
		g.mu.Unlock()

		g.logger.Error().
			Str("kind", fatal.Kind.String()).
			Str("code", fatal.Code).
			Str("message", fatal.Message).
			Msg("Gateway rejected handshake")
		return false, errFatalRejection
	}
	if err != nil {
		conn.Close()
		return false, err
	}

	g.mu.Lock()
	g.conn = conn
	g.connected = true
	g.fatal = FatalError{}
	g.snapshot = hello
	close(g.ready)
	g.mu.Unlock()

	g.logger.Info().Msg("Connected to gateway")

	err = g.readLoop(conn)

	g.mu.Lock()
	if g.conn == conn {
		g.conn = nil
		g.connected = false
	}
	select {
	case <-g.ready:
		g.ready = make(chan struct{})
	default:
	}
	g.mu.Unlock()

	conn.Close()
	g.failPending(newError(ErrConnection, "gateway connection lost", err))
	return true, err
}

// handshake sends the connect request and waits for its response. Events
// that arrive first, such as connect.challenge, are skipped.
func (g *gateway) handshake(ctx context.Context, conn transport.Conn) (json.RawMessage, *FatalError, error) {
	hctx, cancel := context.WithTimeout(ctx, g.handshakeTimeout)
	defer cancel()
	stop := context.AfterFunc(hctx, func() { conn.Close() })
	defer stop()

	g.mu.Lock()
	token := g.token
	g.mu.Unlock()

	params := NewConnectParams(g.info.Clone()).WithToken(token)
	frame, err := NewRequestFrame(uuid.NewString(), MethodConnect, params)
	if err != nil {
		return nil, nil, err
	}
	data, err := MarshalFrame(frame)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal connect request: %w", err)
	}
	if err := conn.WriteMessage(data); err != nil {
		return nil, nil, fmt.Errorf("failed to send connect request: %w", err)
	}

	for {
		raw, err := conn.ReadMessage()
		if err != nil {
			if hctx.Err() != nil && ctx.Err() == nil {
				return nil, nil, fmt.Errorf("handshake timed out after %s", g.handshakeTimeout)
			}
			return nil, nil, fmt.Errorf("failed to read connect response: %w", err)
		}

		resp, err := UnmarshalFrame(raw)
		if err != nil {
			g.logger.Debug().Err(err).Msg("Ignoring malformed frame during handshake")
			continue
		}
		if resp.Type != FrameTypeResponse || resp.ID != frame.ID {
			if resp.Type == FrameTypeEvent {
				g.logger.Debug().Str("event", resp.Event).Msg("Skipping event during handshake")
			}
			continue
		}

		if !resp.Succeeded() {
			var code, message string
			if resp.Error != nil {
				code, message = resp.Error.Code, resp.Error.Message
			}
			fatal := classifyRejection(code, message)
			if fatal.IsZero() {
				return nil, nil, fmt.Errorf("connect rejected: %s (%s)", message, code)
			}
			return nil, &fatal, nil
		}

		fatal, err := parseHello(resp.Payload)
		if err != nil || fatal != nil {
			return nil, fatal, err
		}
		return resp.Payload, nil, nil
	}
}

func (g *gateway) readLoop(conn transport.Conn) error {
	for {
		raw, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		frame, err := UnmarshalFrame(raw)
		if err != nil {
			g.logger.Debug().Err(err).Msg("Dropping malformed frame")
			continue
		}

		g.publish(frame)

		if frame.Type == FrameTypeResponse {
			g.resolve(frame)
		}
	}
}

func (g *gateway) publish(frame *Frame) {
	g.mu.Lock()
	subscribers := make([]func(*Frame), 0, len(g.subscribers))
	for _, fn := range g.subscribers {
		subscribers = append(subscribers, fn)
	}
	g.mu.Unlock()

	for _, fn := range subscribers {
		g.deliver(fn, frame)
	}
}

func (g *gateway) deliver(fn func(*Frame), frame *Frame) {
	defer func() {
		if r := recover(); r != nil {
			g.logger.Error().Interface("panic", r).Str("type", frame.Type).Msg("Frame subscriber panicked")
		}
	}()
	fn(frame)
}

func (g *gateway) resolve(frame *Frame) {
	g.mu.Lock()
	req, ok := g.pending[frame.ID]
	if ok {
		delete(g.pending, frame.ID)
	}
	g.mu.Unlock()

	if !ok {
		g.logger.Debug().Str("id", frame.ID).Msg("Response for unknown request")
		return
	}

	if req.onResponse != nil && frame.Succeeded() {
		func() {
			defer func() {
				if r := recover(); r != nil {
					g.logger.Error().Interface("panic", r).Str("method", req.method).Msg("Response hook panicked")
				}
			}()
			req.onResponse(frame.Payload)
		}()
	}

	req.result <- requestResult{frame: frame}
}

// decodeObject decodes a JSON object into a fresh map. Missing or invalid
// data yields an empty map.
func decodeObject(raw json.RawMessage) map[string]interface{} {
	out := map[string]interface{}{}
	if len(raw) == 0 {
		return out
	}
	if err := json.Unmarshal(raw, &out); err != nil || out == nil {
		return map[string]interface{}{}
	}
	return out
}
