package remotetool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrEndpointFailed is returned for requests against an endpoint whose
// retry budget is exhausted. Only an explicit Reconnect clears it.
var ErrEndpointFailed = errors.New("endpoint failed; explicit reconnect required")

// Connection owns the state machine for one endpoint: lazy connect,
// exponential-backoff reconnection, catalog caching, and request metrics.
type Connection struct {
	cfg     EndpointConfig
	factory TransportFactory

	mu         sync.Mutex
	state      ConnState
	transport  Transport
	serverInfo ServerInfo
	attempts   int

	catalog     []ToolSpec
	catalogTime time.Time

	requests     uint64
	failures     uint64
	totalLatency time.Duration

	// sleep is swappable for tests.
	sleep func(time.Duration)

	debugLog func(format string, args ...interface{})
}

// NewConnection builds a disconnected connection. No network activity
// happens until the first request.
func NewConnection(cfg EndpointConfig, factory TransportFactory) *Connection {
	return &Connection{
		cfg:      cfg.withDefaults(),
		factory:  factory,
		state:    StateDisconnected,
		sleep:    time.Sleep,
		debugLog: func(format string, args ...interface{}) {},
	}
}

// SetDebugLogger installs a logger for connection lifecycle events.
func (c *Connection) SetDebugLogger(fn func(format string, args ...interface{})) {
	if fn != nil {
		c.mu.Lock()
		c.debugLog = fn
		c.mu.Unlock()
	}
}

// Name returns the endpoint's normalized name.
func (c *Connection) Name() string {
	return NormalizeName(c.cfg.Name)
}

// State returns the current connection state.
func (c *Connection) State() ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// backoffDelay returns the delay before reconnect attempt n (1-based):
// base doubled per attempt, capped at the ceiling.
func (c *Connection) backoffDelay(attempt int) time.Duration {
	d := c.cfg.BackoffBase
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= c.cfg.BackoffCeiling {
			return c.cfg.BackoffCeiling
		}
	}
	if d > c.cfg.BackoffCeiling {
		return c.cfg.BackoffCeiling
	}
	return d
}

// ensureConnected establishes the transport if needed, driving the
// reconnect cycle with backoff. Callers hold no locks.
func (c *Connection) ensureConnected(ctx context.Context) error {
	c.mu.Lock()
	switch c.state {
	case StateConnected:
		c.mu.Unlock()
		return nil
	case StateFailed:
		c.mu.Unlock()
		return fmt.Errorf("endpoint %q: %w", c.cfg.Name, ErrEndpointFailed)
	}
	c.state = StateConnecting
	c.mu.Unlock()

	var lastErr error
	for {
		if err := ctx.Err(); err != nil {
			c.setState(StateDisconnected)
			return err
		}

		transport, err := c.factory(c.cfg)
		if err == nil {
			var info ServerInfo
			info, err = transport.Connect(ctx)
			if err == nil {
				c.mu.Lock()
				c.transport = transport
				c.serverInfo = info
				c.state = StateConnected
				c.attempts = 0
				c.mu.Unlock()
				c.debugLog("[remotetool] connected to %s (%s %s)", c.cfg.Name, info.Name, info.Version)
				return nil
			}
			transport.Close()
		}
		lastErr = err

		c.mu.Lock()
		c.attempts++
		attempt := c.attempts
		if attempt >= c.cfg.MaxReconnects {
			c.state = StateFailed
			c.mu.Unlock()
			c.debugLog("[remotetool] endpoint %s failed after %d attempts: %v", c.cfg.Name, attempt, lastErr)
			return fmt.Errorf("endpoint %q: connect failed after %d attempts: %w", c.cfg.Name, attempt, lastErr)
		}
		c.state = StateReconnecting
		c.mu.Unlock()

		delay := c.backoffDelay(attempt)
		c.debugLog("[remotetool] endpoint %s reconnect %d in %s: %v", c.cfg.Name, attempt, delay, lastErr)
		c.sleep(delay)
	}
}

func (c *Connection) setState(s ConnState) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// Reconnect clears a failed state and re-establishes the connection.
// This is the only path out of StateFailed.
func (c *Connection) Reconnect(ctx context.Context) error {
	c.mu.Lock()
	if c.transport != nil {
		c.transport.Close()
		c.transport = nil
	}
	c.state = StateDisconnected
	c.attempts = 0
	c.catalog = nil
	c.catalogTime = time.Time{}
	c.mu.Unlock()
	return c.ensureConnected(ctx)
}

// onRequestFailure records a failed request and drops the transport so the
// next request goes through the reconnect cycle.
func (c *Connection) onRequestFailure() {
	c.mu.Lock()
	c.failures++
	if c.transport != nil {
		c.transport.Close()
		c.transport = nil
	}
	if c.state == StateConnected {
		c.state = StateDisconnected
	}
	c.mu.Unlock()
}

// Tools returns the endpoint's tool catalog, serving the cached copy while
// it is fresh. A stale or missing cache triggers a live listing.
func (c *Connection) Tools(ctx context.Context) ([]ToolSpec, error) {
	c.mu.Lock()
	if c.catalog != nil && time.Since(c.catalogTime) < c.cfg.CatalogTTL {
		cached := c.catalog
		c.mu.Unlock()
		return cached, nil
	}
	c.mu.Unlock()

	if err := c.ensureConnected(ctx); err != nil {
		return nil, err
	}

	c.mu.Lock()
	transport := c.transport
	c.mu.Unlock()

	start := time.Now()
	tools, err := transport.ListTools(ctx)
	c.recordRequest(time.Since(start))
	if err != nil {
		c.onRequestFailure()
		return nil, fmt.Errorf("endpoint %q: listing tools: %w", c.cfg.Name, err)
	}

	c.mu.Lock()
	c.catalog = tools
	c.catalogTime = time.Now()
	c.mu.Unlock()
	return tools, nil
}

// Call invokes a tool by its endpoint-local name.
func (c *Connection) Call(ctx context.Context, tool string, args json.RawMessage) (Result, error) {
	if err := c.ensureConnected(ctx); err != nil {
		return Result{}, err
	}

	c.mu.Lock()
	transport := c.transport
	timeout := c.cfg.RequestTimeout
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	res, err := transport.CallTool(ctx, tool, args)
	c.recordRequest(time.Since(start))
	if err != nil {
		c.onRequestFailure()
		return Result{}, fmt.Errorf("endpoint %q: calling %s: %w", c.cfg.Name, tool, err)
	}
	return res, nil
}

func (c *Connection) recordRequest(latency time.Duration) {
	c.mu.Lock()
	c.requests++
	c.totalLatency += latency
	c.mu.Unlock()
}

// Stats returns an observability snapshot.
func (c *Connection) Stats() ConnStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := ConnStats{
		Endpoint:   NormalizeName(c.cfg.Name),
		State:      c.state,
		Requests:   c.requests,
		Failures:   c.failures,
		ServerInfo: c.serverInfo,
	}
	if c.requests > 0 {
		s.AvgLatency = c.totalLatency / time.Duration(c.requests)
	}
	if !c.catalogTime.IsZero() {
		s.CatalogAge = time.Since(c.catalogTime)
	}
	return s
}

// Close tears down the transport.
func (c *Connection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.transport != nil {
		err := c.transport.Close()
		c.transport = nil
		c.state = StateDisconnected
		return err
	}
	return nil
}
