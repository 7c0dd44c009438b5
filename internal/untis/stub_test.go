package untis

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

type rpcHandler func(n int, params any, creds Credentials) (json.RawMessage, error)
type restHandler func(n int, query url.Values, creds Credentials) (json.RawMessage, error)

// stubTransport answers provider calls from per-method handlers and counts
// every call. authenticate hands out sess-1, sess-2, ... unless overridden.
type stubTransport struct {
	mu    sync.Mutex
	calls map[string]int
	rpc   map[string]rpcHandler
	rest  map[string]restHandler
}

func newStub() *stubTransport {
	return &stubTransport{
		calls: make(map[string]int),
		rpc:   make(map[string]rpcHandler),
		rest:  make(map[string]restHandler),
	}
}

func (s *stubTransport) Call(_ context.Context, method string, params any, creds Credentials) (json.RawMessage, error) {
	s.mu.Lock()
	s.calls[method]++
	n := s.calls[method]
	h := s.rpc[method]
	s.mu.Unlock()

	if h != nil {
		return h(n, params, creds)
	}
	if method == "authenticate" {
		return json.RawMessage(fmt.Sprintf(`{"sessionId":"sess-%d","personType":5,"personId":42}`, n)), nil
	}
	return nil, &RPCError{Method: method, Code: -32601, Message: "method not found"}
}

func (s *stubTransport) Get(_ context.Context, path string, query url.Values, creds Credentials) (json.RawMessage, error) {
	key := "GET " + path
	s.mu.Lock()
	s.calls[key]++
	n := s.calls[key]
	h := s.rest[path]
	s.mu.Unlock()

	if h != nil {
		return h(n, query, creds)
	}
	return nil, &HTTPError{Method: key, Status: 404}
}

func (s *stubTransport) count(method string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[method]
}

func (s *stubTransport) on(method string, h rpcHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rpc[method] = h
}

func (s *stubTransport) onGet(path string, h restHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rest[path] = h
}

func (s *stubTransport) reply(method, body string) {
	s.on(method, func(int, any, Credentials) (json.RawMessage, error) {
		return json.RawMessage(body), nil
	})
}

func (s *stubTransport) fail(method string, err error) {
	s.on(method, func(int, any, Credentials) (json.RawMessage, error) {
		return nil, err
	})
}

func testIdentity(grade string) Identity {
	return Identity{
		Grade:       grade,
		BaseURL:     "https://example.webuntis.com/WebUntis/jsonrpc.do",
		School:      "test-school",
		Username:    "user",
		Password:    "secret",
		ElementID:   1234,
		ElementType: ElementStudent,
	}
}

func newTestClient(t *testing.T, grade string, stub *stubTransport) *Client {
	t.Helper()
	c, err := NewClient(testIdentity(grade), ClientOptions{Transport: stub})
	require.NoError(t, err)
	return c
}

func notAuthenticated(method string) error {
	return &RPCError{Method: method, Code: codeNotAuthenticated, Message: "not authenticated"}
}
