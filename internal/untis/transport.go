package untis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const maxBodyBytes = 8 << 20

// Transport executes single exchanges against the provider. Call speaks
// JSON-RPC 2.0; Get reads the newer REST API under the same web root.
type Transport interface {
	Call(ctx context.Context, method string, params any, creds Credentials) (json.RawMessage, error)
	Get(ctx context.Context, path string, query url.Values, creds Credentials) (json.RawMessage, error)
}

type TransportOptions struct {
	Timeout    time.Duration
	RatePerSec float64
	HTTPClient *http.Client
}

// HTTPTransport is the Transport used in production.
type HTTPTransport struct {
	endpoint string // JSON-RPC url with ?school= set
	restBase string
	client   *http.Client
	limiter  *rate.Limiter
}

type rpcRequest struct {
	ID      string `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params"`
	JSONRPC string `json:"jsonrpc"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func NewHTTPTransport(id Identity, opts TransportOptions) (*HTTPTransport, error) {
	u, err := url.Parse(id.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%w: grade %q has invalid base url %q", ErrConfig, id.Grade, id.BaseURL)
	}

	client := opts.HTTPClient
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 25 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}

	limit := rate.Inf
	if opts.RatePerSec > 0 {
		limit = rate.Limit(opts.RatePerSec)
	}

	rpc := *u
	q := rpc.Query()
	q.Set("school", id.School)
	rpc.RawQuery = q.Encode()

	rest := *u
	rest.RawQuery = ""
	rest.Path = strings.TrimSuffix(strings.TrimSuffix(u.Path, "/"), "/jsonrpc.do")

	return &HTTPTransport{
		endpoint: rpc.String(),
		restBase: strings.TrimSuffix(rest.String(), "/"),
		client:   client,
		limiter:  rate.NewLimiter(limit, 1),
	}, nil
}

func (t *HTTPTransport) Call(ctx context.Context, method string, params any, creds Credentials) (json.RawMessage, error) {
	if params == nil {
		params = map[string]any{}
	}
	body, err := json.Marshal(rpcRequest{ID: "1", Method: method, Params: params, JSONRPC: "2.0"})
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	raw, err := t.do(req, method, creds)
	if err != nil {
		return nil, err
	}

	var res rpcResponse
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, fmt.Errorf("decode %s: %w", method, err)
	}
	if res.Error != nil {
		return nil, &RPCError{Method: method, Code: res.Error.Code, Message: res.Error.Message}
	}
	return res.Result, nil
}

func (t *HTTPTransport) Get(ctx context.Context, path string, query url.Values, creds Credentials) (json.RawMessage, error) {
	target := t.restBase + "/" + strings.TrimPrefix(path, "/")
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	raw, err := t.do(req, "GET "+path, creds)
	if err != nil {
		return nil, err
	}
	if !json.Valid(raw) {
		return nil, fmt.Errorf("decode GET %s: malformed json", path)
	}
	return raw, nil
}

func (t *HTTPTransport) do(req *http.Request, method string, creds Credentials) ([]byte, error) {
	if err := t.limiter.Wait(req.Context()); err != nil {
		return nil, err
	}
	if creds.valid() {
		req.AddCookie(&http.Cookie{Name: "JSESSIONID", Value: creds.SessionID})
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", method, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", method, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &HTTPError{Method: method, Status: resp.StatusCode, Body: snippet(raw)}
	}
	return raw, nil
}

func snippet(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}
