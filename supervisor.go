package openclaw

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Connector is the connection surface a Supervisor watches. *Client
// implements it.
type Connector interface {
	Connected() bool
	Connect(ctx context.Context) error
	Disconnect()
	Health(ctx context.Context) (*GatewayHealth, error)
}

// Supervisor periodically checks the connection and forces a reconnect
// when the gateway stops answering health probes.
type Supervisor struct {
	client   Connector
	interval time.Duration
	logger   zerolog.Logger

	tickMu sync.Mutex

	mu         sync.Mutex
	lastHealth *GatewayHealth
	onHealth   func(*GatewayHealth)
}

// NewSupervisor creates a supervisor that ticks every interval.
func NewSupervisor(client Connector, interval time.Duration) *Supervisor {
	return &Supervisor{
		client:   client,
		interval: interval,
		logger:   zerolog.Nop(),
	}
}

// WithLogger sets the logger.
func (s *Supervisor) WithLogger(logger zerolog.Logger) *Supervisor {
	s.logger = logger.With().Str("component", "supervisor").Logger()
	return s
}

// WithHealthHandler registers fn for every successful health probe.
func (s *Supervisor) WithHealthHandler(fn func(*GatewayHealth)) *Supervisor {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onHealth = fn
	return s
}

// LastHealth returns the result of the last successful probe, or nil.
func (s *Supervisor) LastHealth() *GatewayHealth {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastHealth
}

// Run ticks until ctx is cancelled.
func (s *Supervisor) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info().Dur("interval", s.interval).Msg("Starting connection supervisor")

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("Connection supervisor stopped")
			return ctx.Err()
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick runs one check. It returns false without doing anything if another
// tick is still in progress.
//
// A disconnected client is connected. A connected client is probed, and a
// failed probe is followed by a disconnect and a fresh connect. Connect
// failures are logged, never returned.
func (s *Supervisor) Tick(ctx context.Context) bool {
	if !s.tickMu.TryLock() {
		s.logger.Debug().Msg("Previous health check still running, skipping tick")
		return false
	}
	defer s.tickMu.Unlock()

	if !s.client.Connected() {
		s.logger.Debug().Msg("Not connected, attempting to connect")
		if err := s.client.Connect(ctx); err != nil {
			s.logger.Warn().Err(err).Msg("Reconnect attempt failed")
		}
		return true
	}

	health, err := s.client.Health(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Health check failed, forcing reconnect")
		s.client.Disconnect()
		if err := s.client.Connect(ctx); err != nil {
			s.logger.Warn().Err(err).Msg("Reconnect attempt failed")
		}
		return true
	}

	s.mu.Lock()
	s.lastHealth = health
	onHealth := s.onHealth
	s.mu.Unlock()

	if onHealth != nil {
		onHealth(health)
	}
	return true
}
