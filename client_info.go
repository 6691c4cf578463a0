package openclaw

import "runtime"

// Default client identity sent in the handshake.
const (
	DefaultClientID          = "gateway-client"
	DefaultClientDisplayName = "OpenClaw Go Client"
	DefaultClientVersion     = "1.0.0"
	DefaultClientMode        = "backend"
	DefaultClientRole        = "operator"
)

// ClientInfo identifies this client to the gateway.
// Use NewClientInfo() and the builder methods to construct it.
//
// Example:
//
//	info := openclaw.NewClientInfo().
//	    WithDisplayName("Kitchen Speaker").
//	    WithScopes("operator.read", "operator.write")
type ClientInfo struct {
	// ID is the client identifier registered with the gateway.
	ID string `json:"id"`

	// DisplayName is shown to operators.
	DisplayName string `json:"displayName"`

	// Version is the client software version.
	Version string `json:"version"`

	// Platform is the client runtime platform.
	Platform string `json:"platform"`

	// Mode is the client mode, e.g. "backend".
	Mode string `json:"mode"`

	// Role is the requested connection role.
	Role string `json:"-"`

	// Scopes are the requested operator scopes.
	Scopes []string `json:"-"`

	// Caps are the capabilities this client offers.
	Caps []string `json:"-"`
}

// NewClientInfo creates a ClientInfo with default values.
func NewClientInfo() *ClientInfo {
	return &ClientInfo{
		ID:          DefaultClientID,
		DisplayName: DefaultClientDisplayName,
		Version:     DefaultClientVersion,
		Platform:    runtime.GOOS,
		Mode:        DefaultClientMode,
		Role:        DefaultClientRole,
		Scopes:      []string{},
		Caps:        []string{},
	}
}

// WithID sets the client identifier.
func (c *ClientInfo) WithID(id string) *ClientInfo {
	c.ID = id
	return c
}

// WithDisplayName sets the display name.
func (c *ClientInfo) WithDisplayName(name string) *ClientInfo {
	c.DisplayName = name
	return c
}

// WithVersion sets the client version.
func (c *ClientInfo) WithVersion(version string) *ClientInfo {
	c.Version = version
	return c
}

// WithPlatform sets the platform.
func (c *ClientInfo) WithPlatform(platform string) *ClientInfo {
	c.Platform = platform
	return c
}

// WithMode sets the client mode.
func (c *ClientInfo) WithMode(mode string) *ClientInfo {
	c.Mode = mode
	return c
}

// WithRole sets the connection role.
func (c *ClientInfo) WithRole(role string) *ClientInfo {
	c.Role = role
	return c
}

// WithScopes adds requested scopes.
func (c *ClientInfo) WithScopes(scopes ...string) *ClientInfo {
	c.Scopes = append(c.Scopes, scopes...)
	return c
}

// WithCaps adds offered capabilities.
func (c *ClientInfo) WithCaps(caps ...string) *ClientInfo {
	c.Caps = append(c.Caps, caps...)
	return c
}

// Clone creates a deep copy.
func (c *ClientInfo) Clone() *ClientInfo {
	clone := *c
	clone.Scopes = append([]string{}, c.Scopes...)
	clone.Caps = append([]string{}, c.Caps...)
	return &clone
}

// HasScope checks if a scope was requested.
func (c *ClientInfo) HasScope(scope string) bool {
	for _, s := range c.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}
