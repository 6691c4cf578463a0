package openclaw

import (
	"crypto/tls"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/openclaw/gateway-client-go/transport"
)

// TransportType specifies how the client reaches the gateway.
type TransportType string

const (
	// TransportWebSocket uses the gateway's WebSocket endpoint (default).
	TransportWebSocket TransportType = "websocket"

	// TransportGRPC uses a gRPC bidirectional stream.
	TransportGRPC TransportType = "grpc"

	// TransportUnix uses length-prefixed frames over a Unix socket.
	TransportUnix TransportType = "unix"

	// TransportTCP uses length-prefixed frames over TCP.
	TransportTCP TransportType = "tcp"
)

// TokenEnvVar is read when no token is configured.
const TokenEnvVar = "OPENCLAW_TOKEN"

// Config contains the client configuration.
type Config struct {
	// Host is the gateway host.
	Host string `yaml:"host"`

	// Port is the gateway port.
	Port int `yaml:"port"`

	// Token is the bearer token presented in the handshake.
	Token string `yaml:"token"`

	// UseTLS enables wss:// or TLS on the other transports.
	UseTLS bool `yaml:"use_tls"`

	// InsecureSkipVerify disables certificate verification.
	InsecureSkipVerify bool `yaml:"insecure_skip_verify"`

	// Path is the WebSocket endpoint path.
	Path string `yaml:"path"`

	// Transport specifies the transport type.
	Transport TransportType `yaml:"transport"`

	// SocketPath is the Unix socket path (for unix transport).
	SocketPath string `yaml:"socket_path"`

	// Timeout bounds Connect and each request.
	Timeout time.Duration `yaml:"timeout"`

	// SessionKey is the default agent session.
	SessionKey string `yaml:"session_key"`

	// HandshakeTimeout bounds dialing and the connect handshake.
	HandshakeTimeout time.Duration `yaml:"handshake_timeout"`

	// HealthCheckInterval is how often the supervisor probes the gateway.
	HealthCheckInterval time.Duration `yaml:"health_check_interval"`

	// ReconnectInterval is the first reconnect delay; it doubles up to
	// MaxReconnectInterval.
	ReconnectInterval    time.Duration `yaml:"reconnect_interval"`
	MaxReconnectInterval time.Duration `yaml:"max_reconnect_interval"`

	// RequestsPerSecond limits agent requests. Zero disables the limit.
	RequestsPerSecond float64 `yaml:"requests_per_second"`

	// RequestBurst is the limiter burst size.
	RequestBurst int `yaml:"request_burst"`

	// JSONLogs enables JSON log format.
	JSONLogs bool `yaml:"json_logs"`

	// LogLevel sets the log level.
	LogLevel string `yaml:"log_level"`

	// LogFile enables rotating file logs at this path.
	LogFile string `yaml:"log_file"`

	// LogMaxSizeMB and LogMaxBackups control log rotation.
	LogMaxSizeMB  int `yaml:"log_max_size_mb"`
	LogMaxBackups int `yaml:"log_max_backups"`

	// TLSConfig overrides the generated TLS configuration.
	TLSConfig *tls.Config `yaml:"-"`
}

// DefaultConfig returns the default client configuration.
func DefaultConfig() Config {
	return Config{
		Host:                 "127.0.0.1",
		Port:                 18789,
		Token:                "",
		UseTLS:               false,
		Path:                 "/",
		Transport:            TransportWebSocket,
		SocketPath:           "/tmp/openclaw-gateway.sock",
		Timeout:              30 * time.Second,
		SessionKey:           "main",
		HandshakeTimeout:     10 * time.Second,
		HealthCheckInterval:  30 * time.Second,
		ReconnectInterval:    time.Second,
		MaxReconnectInterval: 30 * time.Second,
		RequestsPerSecond:    0,
		RequestBurst:         1,
		JSONLogs:             false,
		LogLevel:             "info",
		LogMaxSizeMB:         10,
		LogMaxBackups:        3,
	}
}

// LoadConfig reads a YAML file over the defaults.
func LoadConfig(path string) (Config, error) {
	config := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return config, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &config); err != nil {
		return config, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	config.ApplyEnv()
	return config, nil
}

// ApplyEnv fills the token from $OPENCLAW_TOKEN when none is configured.
func (c *Config) ApplyEnv() {
	if c.Token == "" {
		c.Token = os.Getenv(TokenEnvVar)
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	switch c.Transport {
	case TransportWebSocket, TransportGRPC, TransportTCP:
		if c.Host == "" {
			return fmt.Errorf("host is required")
		}
		if c.Port < 1 || c.Port > 65535 {
			return fmt.Errorf("port %d out of range", c.Port)
		}
	case TransportUnix:
		if c.SocketPath == "" {
			return fmt.Errorf("socket path is required for unix transport")
		}
	default:
		return fmt.Errorf("unsupported transport: %s", c.Transport)
	}

	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.HandshakeTimeout <= 0 {
		return fmt.Errorf("handshake timeout must be positive")
	}
	if c.HealthCheckInterval <= 0 {
		return fmt.Errorf("health check interval must be positive")
	}
	if c.ReconnectInterval <= 0 {
		return fmt.Errorf("reconnect interval must be positive")
	}
	if c.MaxReconnectInterval < c.ReconnectInterval {
		return fmt.Errorf("max reconnect interval %s is below reconnect interval %s", c.MaxReconnectInterval, c.ReconnectInterval)
	}
	if c.RequestsPerSecond < 0 {
		return fmt.Errorf("requests per second must not be negative")
	}
	if c.SessionKey == "" {
		return fmt.Errorf("session key is required")
	}
	return nil
}

// Address returns host:port.
func (c Config) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// URL returns the WebSocket endpoint.
func (c Config) URL() string {
	scheme := "ws"
	if c.UseTLS {
		scheme = "wss"
	}
	path := c.Path
	if path == "" {
		path = "/"
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return fmt.Sprintf("%s://%s%s", scheme, c.Address(), path)
}

func (c Config) tlsConfig() *tls.Config {
	if !c.UseTLS {
		return nil
	}
	if c.TLSConfig != nil {
		return c.TLSConfig
	}
	return &tls.Config{
		MinVersion:         tls.VersionTLS12,
		ServerName:         c.Host,
		InsecureSkipVerify: c.InsecureSkipVerify,
	}
}

// Dialer builds the dialer for the configured transport.
func (c Config) Dialer() (transport.Dialer, error) {
	switch c.Transport {
	case TransportWebSocket:
		return &transport.WebSocketDialer{
			URL:              c.URL(),
			TLSConfig:        c.tlsConfig(),
			HandshakeTimeout: c.HandshakeTimeout,
		}, nil
	case TransportGRPC:
		return &transport.GRPCDialer{
			Address:   c.Address(),
			TLSConfig: c.tlsConfig(),
		}, nil
	case TransportUnix:
		return &transport.StreamDialer{
			Network: "unix",
			Address: c.SocketPath,
			Timeout: c.HandshakeTimeout,
		}, nil
	case TransportTCP:
		return &transport.StreamDialer{
			Network:   "tcp",
			Address:   c.Address(),
			TLSConfig: c.tlsConfig(),
			Timeout:   c.HandshakeTimeout,
		}, nil
	default:
		return nil, fmt.Errorf("unsupported transport: %s", c.Transport)
	}
}

// BindFlags registers flags for every configuration field on fs.
func BindFlags(fs *pflag.FlagSet, config *Config) {
	fs.StringVar(&config.Host, "host", config.Host, "Gateway host")
	fs.IntVar(&config.Port, "port", config.Port, "Gateway port")
	fs.StringVar(&config.Token, "token", config.Token, "Gateway token (default $"+TokenEnvVar+")")
	fs.BoolVar(&config.UseTLS, "tls", config.UseTLS, "Use TLS")
	fs.BoolVar(&config.InsecureSkipVerify, "insecure-skip-verify", config.InsecureSkipVerify, "Skip TLS certificate verification")
	fs.StringVar(&config.Path, "path", config.Path, "WebSocket endpoint path")
	fs.StringVar((*string)(&config.Transport), "transport", string(config.Transport), "Transport (websocket, grpc, unix, tcp)")
	fs.StringVar(&config.SocketPath, "socket", config.SocketPath, "Unix socket path (for unix transport)")
	fs.DurationVar(&config.Timeout, "timeout", config.Timeout, "Connect and request timeout")
	fs.StringVar(&config.SessionKey, "session", config.SessionKey, "Agent session key")
	fs.DurationVar(&config.HandshakeTimeout, "handshake-timeout", config.HandshakeTimeout, "Dial and handshake timeout")
	fs.DurationVar(&config.HealthCheckInterval, "health-interval", config.HealthCheckInterval, "Health check interval")
	fs.DurationVar(&config.ReconnectInterval, "reconnect-interval", config.ReconnectInterval, "Initial reconnect delay")
	fs.DurationVar(&config.MaxReconnectInterval, "max-reconnect-interval", config.MaxReconnectInterval, "Maximum reconnect delay")
	fs.Float64Var(&config.RequestsPerSecond, "rate", config.RequestsPerSecond, "Agent requests per second (0 disables)")
	fs.IntVar(&config.RequestBurst, "burst", config.RequestBurst, "Agent request burst")
	fs.BoolVar(&config.JSONLogs, "json-logs", config.JSONLogs, "Enable JSON log format")
	fs.StringVar(&config.LogLevel, "log-level", config.LogLevel, "Log level (debug, info, warn, error)")
	fs.StringVar(&config.LogFile, "log-file", config.LogFile, "Write logs to a rotating file")
}

// ParseFlags parses args into a Config. A --config file is loaded first;
// flags given explicitly override it.
func ParseFlags(fs *pflag.FlagSet, args []string) (Config, error) {
	config := DefaultConfig()
	var configPath string

	BindFlags(fs, &config)
	fs.StringVar(&configPath, "config", "", "YAML configuration file")
	if err := fs.Parse(args); err != nil {
		return config, err
	}

	if configPath != "" {
		loaded, err := LoadConfig(configPath)
		if err != nil {
			return config, err
		}
		if err := OverrideFromFlags(fs, &loaded); err != nil {
			return config, err
		}
		config = loaded
	}

	config.ApplyEnv()
	return config, nil
}

// OverrideFromFlags re-applies the configuration flags explicitly set on fs
// onto config. Flags BindFlags does not know are skipped.
func OverrideFromFlags(fs *pflag.FlagSet, config *Config) error {
	overrides := pflag.NewFlagSet("overrides", pflag.ContinueOnError)
	BindFlags(overrides, config)

	var setErr error
	fs.Visit(func(f *pflag.Flag) {
		if setErr != nil || overrides.Lookup(f.Name) == nil {
			return
		}
		setErr = overrides.Set(f.Name, f.Value.String())
	})
	return setErr
}

// ParseArgs parses the command line into a Config, exiting on bad flags.
func ParseArgs() Config {
	config, err := ParseFlags(pflag.CommandLine, os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	return config
}
