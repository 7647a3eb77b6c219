// Package remotetool manages connections to remote tool-providing endpoints:
// lifecycle, tool catalog aggregation, caching, and invocation routing.
package remotetool

import (
	"context"
	"encoding/json"
	"time"
)

// ConnState is the connection state machine for one endpoint.
type ConnState string

const (
	// StateDisconnected is the initial state; connections are lazy.
	StateDisconnected ConnState = "disconnected"
	// StateConnecting indicates a handshake is in flight.
	StateConnecting ConnState = "connecting"
	// StateConnected indicates the endpoint is usable.
	StateConnected ConnState = "connected"
	// StateReconnecting indicates a backoff retry cycle is in progress.
	StateReconnecting ConnState = "reconnecting"
	// StateFailed indicates the retry budget is exhausted. The endpoint stays
	// failed until an explicit reconnect is requested.
	StateFailed ConnState = "failed"
)

// Default connection policy values.
const (
	DefaultConnectTimeout  = 10 * time.Second
	DefaultRequestTimeout  = 60 * time.Second
	DefaultMaxReconnects   = 5
	DefaultBackoffBase     = time.Second
	DefaultBackoffCeiling  = 30 * time.Second
	DefaultCatalogCacheTTL = 5 * time.Minute
)

// EndpointConfig describes one remote tool-provider endpoint.
type EndpointConfig struct {
	// Name identifies the endpoint and prefixes its tools' namespaced ids.
	Name string `yaml:"name"`
	// Transport is the transport kind, e.g. "http".
	Transport string `yaml:"transport"`
	// URL is the endpoint address.
	URL string `yaml:"url"`
	// AuthToken is an optional bearer token.
	AuthToken string `yaml:"auth_token,omitempty"`
	// Enabled endpoints participate in aggregation. Defaults to true on load.
	Enabled bool `yaml:"enabled"`
	// Priority orders endpoints in aggregate listings (lower first).
	Priority int `yaml:"priority,omitempty"`
	// ConnectTimeout bounds the handshake.
	ConnectTimeout time.Duration `yaml:"connect_timeout,omitempty"`
	// RequestTimeout bounds each request.
	RequestTimeout time.Duration `yaml:"request_timeout,omitempty"`
	// MaxReconnects is the retry budget before the connection turns failed.
	MaxReconnects int `yaml:"max_reconnects,omitempty"`
	// BackoffBase is the first reconnect delay; it doubles per attempt.
	BackoffBase time.Duration `yaml:"backoff_base,omitempty"`
	// BackoffCeiling caps the reconnect delay.
	BackoffCeiling time.Duration `yaml:"backoff_ceiling,omitempty"`
	// CatalogTTL bounds how long the cached tool catalog is served.
	CatalogTTL time.Duration `yaml:"catalog_ttl,omitempty"`
}

// withDefaults fills zero-valued policy fields.
func (c EndpointConfig) withDefaults() EndpointConfig {
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = DefaultConnectTimeout
	}
	if c.RequestTimeout == 0 {
		c.RequestTimeout = DefaultRequestTimeout
	}
	if c.MaxReconnects == 0 {
		c.MaxReconnects = DefaultMaxReconnects
	}
	if c.BackoffBase == 0 {
		c.BackoffBase = DefaultBackoffBase
	}
	if c.BackoffCeiling == 0 {
		c.BackoffCeiling = DefaultBackoffCeiling
	}
	if c.CatalogTTL == 0 {
		c.CatalogTTL = DefaultCatalogCacheTTL
	}
	return c
}

// ToolSpec describes one tool exposed by a remote endpoint.
type ToolSpec struct {
	// Name is the tool's endpoint-local name.
	Name string `json:"name"`
	// Description tells the model what the tool does.
	Description string `json:"description"`
	// InputSchema is the JSON-schema properties map for the input.
	InputSchema map[string]interface{} `json:"input_schema,omitempty"`
	// Required lists mandatory input fields.
	Required []string `json:"required,omitempty"`
}

// RemoteTool is one tool in the aggregated catalog, carrying its
// namespaced id and owning endpoint.
type RemoteTool struct {
	// ID is the namespaced identifier, e.g. "search__web_lookup".
	ID string
	// Endpoint is the owning endpoint's normalized name.
	Endpoint string
	// Spec is the tool definition.
	Spec ToolSpec
}

// Result is the uniform outcome of a remote tool invocation.
// Failed calls are reported here, never as panics across the boundary.
type Result struct {
	Success bool   `json:"success"`
	Output  string `json:"output,omitempty"`
	Error   string `json:"error,omitempty"`
}

// ServerInfo is the identity an endpoint reports during the handshake.
type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// ConnStats is an observability snapshot for one connection.
type ConnStats struct {
	Endpoint   string
	State      ConnState
	Requests   uint64
	Failures   uint64
	AvgLatency time.Duration
	CatalogAge time.Duration
	ServerInfo ServerInfo
}

// Transport is the wire-protocol boundary for one endpoint. The handshake,
// tool listing, and tool invocation formats are a black box behind it.
type Transport interface {
	Connect(ctx context.Context) (ServerInfo, error)
	ListTools(ctx context.Context) ([]ToolSpec, error)
	CallTool(ctx context.Context, name string, args json.RawMessage) (Result, error)
	Close() error
}

// TransportFactory builds a transport for an endpoint. The manager uses it
// so tests can substitute fakes.
type TransportFactory func(cfg EndpointConfig) (Transport, error)

