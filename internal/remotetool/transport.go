package remotetool

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// httpTransport speaks a minimal JSON request/response protocol over HTTP.
// Each operation is a POST to the endpoint URL with a method discriminator.
type httpTransport struct {
	cfg    EndpointConfig
	client *http.Client
}

// NewHTTPTransport returns a Transport for an "http" endpoint.
func NewHTTPTransport(cfg EndpointConfig) (Transport, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("endpoint %q: url is required", cfg.Name)
	}
	return &httpTransport{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.RequestTimeout},
	}, nil
}

// DefaultTransportFactory builds transports by the config's transport kind.
func DefaultTransportFactory(cfg EndpointConfig) (Transport, error) {
	switch cfg.Transport {
	case "", "http":
		return NewHTTPTransport(cfg)
	default:
		return nil, fmt.Errorf("endpoint %q: unknown transport %q", cfg.Name, cfg.Transport)
	}
}

type rpcRequest struct {
	Method string          `json:"method"`
	Name   string          `json:"name,omitempty"`
	Args   json.RawMessage `json:"arguments,omitempty"`
}

type rpcResponse struct {
	Server *ServerInfo     `json:"server,omitempty"`
	Tools  []ToolSpec      `json:"tools,omitempty"`
	Result *Result         `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
	Raw    json.RawMessage `json:"-"`
}

func (t *httpTransport) Connect(ctx context.Context) (ServerInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, t.cfg.ConnectTimeout)
	defer cancel()
	resp, err := t.call(ctx, rpcRequest{Method: "initialize"})
	if err != nil {
		return ServerInfo{}, err
	}
	if resp.Server == nil {
		return ServerInfo{Name: t.cfg.Name}, nil
	}
	return *resp.Server, nil
}

func (t *httpTransport) ListTools(ctx context.Context) ([]ToolSpec, error) {
	resp, err := t.call(ctx, rpcRequest{Method: "tools/list"})
	if err != nil {
		return nil, err
	}
	return resp.Tools, nil
}

func (t *httpTransport) CallTool(ctx context.Context, name string, args json.RawMessage) (Result, error) {
	resp, err := t.call(ctx, rpcRequest{Method: "tools/call", Name: name, Args: args})
	if err != nil {
		return Result{}, err
	}
	if resp.Result == nil {
		return Result{}, fmt.Errorf("endpoint %q: malformed tool response", t.cfg.Name)
	}
	return *resp.Result, nil
}

func (t *httpTransport) Close() error {
	t.client.CloseIdleConnections()
	return nil
}

func (t *httpTransport) call(ctx context.Context, req rpcRequest) (*rpcResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if t.cfg.AuthToken != "" {
		httpReq.Header.Set("Authorization", "Bearer "+t.cfg.AuthToken)
	}

	start := time.Now()
	httpResp, err := t.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("endpoint %q: %w", t.cfg.Name, err)
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(httpResp.Body, 16<<20))
	if err != nil {
		return nil, fmt.Errorf("endpoint %q: reading response: %w", t.cfg.Name, err)
	}
	if httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("endpoint %q: status %d after %s: %s",
			t.cfg.Name, httpResp.StatusCode, time.Since(start).Round(time.Millisecond), truncate(string(data), 200))
	}

	var resp rpcResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("endpoint %q: decoding response: %w", t.cfg.Name, err)
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("endpoint %q: %s", t.cfg.Name, resp.Error)
	}
	resp.Raw = data
	return &resp, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
