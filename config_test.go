package openclaw

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/pflag"

	"github.com/openclaw/gateway-client-go/transport"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if config.Host != "127.0.0.1" || config.Port != 18789 {
		t.Errorf("expected 127.0.0.1:18789, got %s", config.Address())
	}
	if config.Timeout != 30*time.Second {
		t.Errorf("expected 30s timeout, got %s", config.Timeout)
	}
	if config.SessionKey != "main" {
		t.Errorf("expected session key main, got %s", config.SessionKey)
	}
	if config.Transport != TransportWebSocket {
		t.Errorf("expected websocket transport, got %s", config.Transport)
	}
	if err := config.Validate(); err != nil {
		t.Errorf("expected default config to be valid, got %v", err)
	}
}

func TestConfigURL(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"default", func(*Config) {}, "ws://127.0.0.1:18789/"},
		{"tls", func(c *Config) { c.UseTLS = true }, "wss://127.0.0.1:18789/"},
		{"path without slash", func(c *Config) { c.Path = "gateway" }, "ws://127.0.0.1:18789/gateway"},
		{"empty path", func(c *Config) { c.Path = "" }, "ws://127.0.0.1:18789/"},
		{"ipv6", func(c *Config) { c.Host = "::1" }, "ws://[::1]:18789/"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConfig()
			tt.mutate(&config)
			if got := config.URL(); got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"no host", func(c *Config) { c.Host = "" }, "host is required"},
		{"bad port", func(c *Config) { c.Port = 70000 }, "out of range"},
		{"unix without socket", func(c *Config) { c.Transport = TransportUnix; c.SocketPath = "" }, "socket path"},
		{"unknown transport", func(c *Config) { c.Transport = "carrier-pigeon" }, "unsupported transport"},
		{"zero timeout", func(c *Config) { c.Timeout = 0 }, "timeout must be positive"},
		{"backoff inverted", func(c *Config) { c.MaxReconnectInterval = time.Millisecond }, "max reconnect interval"},
		{"negative rate", func(c *Config) { c.RequestsPerSecond = -1 }, "must not be negative"},
		{"no session", func(c *Config) { c.SessionKey = "" }, "session key"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConfig()
			tt.mutate(&config)
			err := config.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestConfigDialer(t *testing.T) {
	config := DefaultConfig()

	dialer, err := config.Dialer()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ws, ok := dialer.(*transport.WebSocketDialer)
	if !ok {
		t.Fatalf("expected WebSocketDialer, got %T", dialer)
	}
	if ws.URL != "ws://127.0.0.1:18789/" {
		t.Errorf("unexpected URL: %s", ws.URL)
	}
	if ws.TLSConfig != nil {
		t.Error("expected no TLS config without TLS")
	}

	config.Transport = TransportGRPC
	config.UseTLS = true
	dialer, _ = config.Dialer()
	grpcDialer, ok := dialer.(*transport.GRPCDialer)
	if !ok {
		t.Fatalf("expected GRPCDialer, got %T", dialer)
	}
	if grpcDialer.TLSConfig == nil || grpcDialer.TLSConfig.ServerName != "127.0.0.1" {
		t.Errorf("expected TLS config for host, got %+v", grpcDialer.TLSConfig)
	}

	config.Transport = TransportUnix
	dialer, _ = config.Dialer()
	stream, ok := dialer.(*transport.StreamDialer)
	if !ok || stream.Network != "unix" || stream.Address != config.SocketPath {
		t.Errorf("expected unix StreamDialer, got %+v", dialer)
	}

	config.Transport = TransportTCP
	dialer, _ = config.Dialer()
	stream, ok = dialer.(*transport.StreamDialer)
	if !ok || stream.Network != "tcp" || stream.Address != "127.0.0.1:18789" {
		t.Errorf("expected tcp StreamDialer, got %+v", dialer)
	}

	config.Transport = "bogus"
	if _, err := config.Dialer(); err == nil {
		t.Error("expected error for unknown transport")
	}
}

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "openclaw.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfigFile(t, `
host: gateway.local
port: 9000
token: from-file
use_tls: true
transport: grpc
timeout: 5s
session_key: kitchen
reconnect_interval: 250ms
`)

	config, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if config.Host != "gateway.local" || config.Port != 9000 {
		t.Errorf("expected gateway.local:9000, got %s", config.Address())
	}
	if config.Token != "from-file" {
		t.Errorf("expected token from file, got %s", config.Token)
	}
	if !config.UseTLS || config.Transport != TransportGRPC {
		t.Errorf("expected TLS over grpc, got %v/%s", config.UseTLS, config.Transport)
	}
	if config.Timeout != 5*time.Second {
		t.Errorf("expected 5s timeout, got %s", config.Timeout)
	}
	if config.ReconnectInterval != 250*time.Millisecond {
		t.Errorf("expected 250ms reconnect interval, got %s", config.ReconnectInterval)
	}
	if config.SessionKey != "kitchen" {
		t.Errorf("expected session key kitchen, got %s", config.SessionKey)
	}
	// Unset fields keep their defaults
	if config.HandshakeTimeout != 10*time.Second {
		t.Errorf("expected default handshake timeout, got %s", config.HandshakeTimeout)
	}
}

func TestLoadConfig_Errors(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}

	path := writeConfigFile(t, "port: [not a number")
	if _, err := LoadConfig(path); err == nil {
		t.Error("expected error for invalid YAML")
	}
}

func TestLoadConfig_TokenFromEnv(t *testing.T) {
	t.Setenv(TokenEnvVar, "from-env")

	config, err := LoadConfig(writeConfigFile(t, "host: example.com\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if config.Token != "from-env" {
		t.Errorf("expected token from env, got %s", config.Token)
	}

	config, _ = LoadConfig(writeConfigFile(t, "token: explicit\n"))
	if config.Token != "explicit" {
		t.Errorf("expected configured token to win, got %s", config.Token)
	}
}

func TestParseFlags(t *testing.T) {
	t.Setenv(TokenEnvVar, "")

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	config, err := ParseFlags(fs, []string{
		"--host", "10.0.0.5",
		"--port", "19000",
		"--transport", "tcp",
		"--timeout", "3s",
		"--rate", "2.5",
		"--session", "office",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if config.Address() != "10.0.0.5:19000" {
		t.Errorf("expected 10.0.0.5:19000, got %s", config.Address())
	}
	if config.Transport != TransportTCP {
		t.Errorf("expected tcp transport, got %s", config.Transport)
	}
	if config.Timeout != 3*time.Second {
		t.Errorf("expected 3s timeout, got %s", config.Timeout)
	}
	if config.RequestsPerSecond != 2.5 {
		t.Errorf("expected rate 2.5, got %f", config.RequestsPerSecond)
	}
	if config.SessionKey != "office" {
		t.Errorf("expected session office, got %s", config.SessionKey)
	}
}

func TestParseFlags_ConfigFileWithOverrides(t *testing.T) {
	path := writeConfigFile(t, `
host: gateway.local
port: 9000
session_key: kitchen
`)

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	config, err := ParseFlags(fs, []string{"--port", "9100", "--config", path})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if config.Host != "gateway.local" {
		t.Errorf("expected host from file, got %s", config.Host)
	}
	if config.Port != 9100 {
		t.Errorf("expected flag to override file port, got %d", config.Port)
	}
	if config.SessionKey != "kitchen" {
		t.Errorf("expected session from file, got %s", config.SessionKey)
	}
}

func TestParseFlags_UnknownFlag(t *testing.T) {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	if _, err := ParseFlags(fs, []string{"--bogus"}); err == nil {
		t.Error("expected error for unknown flag")
	}
}

