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
	"golang.org/x/time/rate"

	"github.com/openclaw/gateway-client-go/transport"
)

// State is the connection state reported to collaborators.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateError        State = "error"
)

// Client is a persistent connection to an OpenClaw gateway. One Client
// owns one logical connection; it is safe for concurrent use.
type Client struct {
	timeout   time.Duration
	logger    zerolog.Logger
	transport transportChannel
	runs      *runRegistry
	metrics   *MetricsCollector
	limiter   *rate.Limiter

	unsubscribe func()

	mu         sync.RWMutex
	sessionKey string
	presence   json.RawMessage
}

// Option configures a Client.
type Option func(*clientOptions)

type clientOptions struct {
	logger zerolog.Logger
	dialer transport.Dialer
	info   *ClientInfo
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger zerolog.Logger) Option {
	return func(o *clientOptions) {
		o.logger = logger
	}
}

// WithDialer overrides the dialer derived from the configuration.
func WithDialer(dialer transport.Dialer) Option {
	return func(o *clientOptions) {
		o.dialer = dialer
	}
}

// WithClientInfo sets the identity sent in the handshake.
func WithClientInfo(info *ClientInfo) Option {
	return func(o *clientOptions) {
		o.info = info
	}
}

// New creates a disconnected client. Call Connect to open the connection.
func New(config Config, opts ...Option) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	options := clientOptions{
		logger: zerolog.Nop(),
		info:   NewClientInfo(),
	}
	for _, opt := range opts {
		opt(&options)
	}

	if options.dialer == nil {
		dialer, err := config.Dialer()
		if err != nil {
			return nil, err
		}
		options.dialer = dialer
	}

	gw := newGateway(gatewayOptions{
		dialer:               options.dialer,
		info:                 options.info.Clone(),
		token:                config.Token,
		handshakeTimeout:     config.HandshakeTimeout,
		reconnectInterval:    config.ReconnectInterval,
		maxReconnectInterval: config.MaxReconnectInterval,
		logger:               options.logger,
	})

	return newClient(config, gw, options.logger), nil
}

func newClient(config Config, tc transportChannel, logger zerolog.Logger) *Client {
	c := &Client{
		timeout:    config.Timeout,
		logger:     logger.With().Str("component", "client").Logger(),
		transport:  tc,
		runs:       newRunRegistry(),
		metrics:    NewMetricsCollector(),
		sessionKey: config.SessionKey,
	}
	if config.RequestsPerSecond > 0 {
		burst := config.RequestBurst
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(config.RequestsPerSecond), burst)
	}
	c.unsubscribe = tc.Subscribe(c.handleFrame)
	return c
}

// Connect opens the connection and waits, bounded by the configured
// timeout, for the handshake to complete.
//
// A rejected handshake is reported as ErrAuthentication, ErrPairingRequired,
// or ErrConnection wrapping ErrProtocol for a version mismatch. When nothing
// was recorded the error is ErrConnection with "connection timeout". The
// connection keeps retrying in the background after a transient failure.
func (c *Client) Connect(ctx context.Context) error {
	if c.transport.Connected() {
		return nil
	}

	c.transport.Connect(ctx)
	ready, failed := c.transport.Signals()

	timer := time.NewTimer(c.timeout)
	defer timer.Stop()

	select {
	case <-ready:
		c.logger.Info().Msg("Gateway connection ready")
		return nil
	case <-failed:
	case <-timer.C:
	case <-ctx.Done():
		return ctx.Err()
	}

	if c.transport.Connected() {
		return nil
	}
	if err := c.transport.FatalError().Err(); err != nil {
		return err
	}
	return newError(ErrConnection, "connection timeout", nil)
}

// Disconnect closes the connection. It is safe to call in any state.
func (c *Client) Disconnect() {
	c.transport.Disconnect()
}

// Reconnect disconnects and connects again.
func (c *Client) Reconnect(ctx context.Context) error {
	c.transport.Disconnect()
	return c.Connect(ctx)
}

// Close disconnects and detaches the event dispatcher.
func (c *Client) Close() error {
	c.transport.Disconnect()
	if c.unsubscribe != nil {
		c.unsubscribe()
	}
	return nil
}

// Connected reports whether the handshake has completed on a live
// connection.
func (c *Client) Connected() bool {
	return c.transport.Connected()
}

// State reports the connection state.
func (c *Client) State() State {
	switch {
	case c.transport.Connected():
		return StateConnected
	case c.transport.Running():
		return StateConnecting
	case !c.transport.FatalError().IsZero():
		return StateError
	default:
		return StateDisconnected
	}
}

// FatalError returns the recorded permanent handshake rejection.
func (c *Client) FatalError() FatalError {
	return c.transport.FatalError()
}

// ConnectSnapshot returns a copy of the status fields the gateway reported
// at the last successful handshake. It is empty before the first connect.
func (c *Client) ConnectSnapshot() map[string]interface{} {
	return c.transport.Snapshot()
}

// Presence returns a copy of the last non-empty presence payload.
func (c *Client) Presence() map[string]interface{} {
	c.mu.RLock()
	raw := c.presence
	c.mu.RUnlock()
	return decodeObject(raw)
}

// SessionKey returns the default session key.
func (c *Client) SessionKey() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sessionKey
}

// SetSessionKey changes the default session key for later requests.
func (c *Client) SetSessionKey(key string) {
	c.mu.Lock()
	c.sessionKey = key
	c.mu.Unlock()
	c.logger.Info().Str("session_key", key).Msg("Session key updated")
}

// SetToken changes the token used by the next handshake. The current
// connection is kept.
func (c *Client) SetToken(token string) {
	c.transport.SetToken(token)
	c.logger.Info().Msg("Gateway token updated")
}

// Health probes the gateway, bounded by the configured timeout.
func (c *Client) Health(ctx context.Context) (*GatewayHealth, error) {
	tctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	payload, err := c.transport.Request(tctx, MethodHealth, nil, nil)
	if err != nil {
		return nil, c.operationError(ctx, MethodHealth, err)
	}
	return ParseGatewayHealth(payload)
}

// RequestOption configures a single agent request.
type RequestOption func(*requestOptions)

type requestOptions struct {
	idempotencyKey string
	sessionKey     string
}

// WithIdempotencyKey sets the key the gateway uses to deduplicate retried
// sends. A random key is generated otherwise.
func WithIdempotencyKey(key string) RequestOption {
	return func(o *requestOptions) {
		o.idempotencyKey = key
	}
}

// WithSessionKey overrides the client's default session key.
func WithSessionKey(key string) RequestOption {
	return func(o *requestOptions) {
		o.sessionKey = key
	}
}

// SendAgentRequest sends a message to the agent and waits for the final
// response, bounded by the configured timeout.
func (c *Client) SendAgentRequest(ctx context.Context, message string, opts ...RequestOption) (string, error) {
	tctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	run, err := c.startRun(tctx, message, opts)
	if err != nil {
		return "", c.operationError(ctx, MethodAgent, err)
	}
	defer c.runs.release(run.ID)

	c.metrics.RunStarted()
	select {
	case <-run.Done():
	case <-tctx.Done():
		c.metrics.RunFinished(RunOutcomeTimeout, time.Since(run.startedAt))
		return "", c.operationError(ctx, MethodAgent, tctx.Err())
	}

	if run.Status() != RunStatusOK {
		c.metrics.RunFinished(RunOutcomeError, time.Since(run.startedAt))
		return "", runFailure(run)
	}

	c.metrics.RunFinished(RunOutcomeOK, time.Since(run.startedAt))
	return run.Response(), nil
}

// startRun sends the agent request and registers its run. The caller must
// release the returned run.
func (c *Client) startRun(ctx context.Context, message string, opts []RequestOption) (*AgentRun, error) {
	options := requestOptions{sessionKey: c.SessionKey()}
	for _, opt := range opts {
		opt(&options)
	}
	if options.idempotencyKey == "" {
		options.idempotencyKey = uuid.NewString()
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			// The wait would outlast the operation deadline.
			return nil, newError(ErrTimeout, "agent request rate limited", err)
		}
	}

	params := AgentParams{
		Message:        message,
		SessionKey:     options.sessionKey,
		IdempotencyKey: options.idempotencyKey,
	}

	// The run is registered on the read loop, before any of its events can
	// be dispatched.
	var run *AgentRun
	_, err := c.transport.Request(ctx, MethodAgent, params, func(payload json.RawMessage) {
		var accepted agentAccepted
		if json.Unmarshal(payload, &accepted) == nil && accepted.RunID != "" {
			run = c.runs.acquire(accepted.RunID)
		}
	})
	if err != nil {
		if run != nil {
			c.runs.release(run.ID)
		}
		return nil, err
	}
	if run == nil {
		return nil, newError(ErrExecution, "gateway response missing runId", nil)
	}

	c.logger.Debug().
		Str("run_id", run.ID).
		Str("session_key", options.sessionKey).
		Str("idempotency_key", options.idempotencyKey).
		Msg("Agent run started")
	return run, nil
}

// operationError maps request failures onto the client's error kinds. ctx
// is the caller's context; an expired operation deadline becomes ErrTimeout
// while caller cancellation is returned as is.
func (c *Client) operationError(ctx context.Context, method string, err error) error {
	var clientErr *Error
	if errors.As(err, &clientErr) {
		return err
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return newError(ErrTimeout, fmt.Sprintf("%s request timed out after %s", method, c.timeout), nil)
	}

	var respErr *ResponseError
	if errors.As(err, &respErr) {
		return newError(ErrExecution, respErr.Error(), respErr)
	}

	return newError(ErrExecution, fmt.Sprintf("%s request failed", method), err)
}

func runFailure(run *AgentRun) error {
	summary := run.Summary()
	if summary == "" {
		summary = "agent run failed"
	}
	return newError(ErrExecution, summary, nil)
}
