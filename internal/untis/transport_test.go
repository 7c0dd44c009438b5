package untis

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTransport(t *testing.T, h http.HandlerFunc) *HTTPTransport {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	id := testIdentity("EF")
	id.BaseURL = srv.URL + "/WebUntis/jsonrpc.do"
	tr, err := NewHTTPTransport(id, TransportOptions{})
	require.NoError(t, err)
	return tr
}

func TestHTTPTransportCall(t *testing.T) {
	tr := newTestTransport(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/WebUntis/jsonrpc.do", r.URL.Path)
		assert.Equal(t, "test-school", r.URL.Query().Get("school"))

		if cookie, err := r.Cookie("JSESSIONID"); assert.NoError(t, err) {
			assert.Equal(t, "abc123", cookie.Value)
		}

		var req rpcRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "2.0", req.JSONRPC)
		assert.Equal(t, "getRooms", req.Method)
		assert.Equal(t, map[string]any{}, req.Params)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":"1","result":[{"id":2,"name":"R104"}]}`))
	})

	res, err := tr.Call(context.Background(), "getRooms", nil, Credentials{SessionID: "abc123"})
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":2,"name":"R104"}]`, string(res))
}

func TestHTTPTransportCallWithoutSessionSendsNoCookie(t *testing.T) {
	tr := newTestTransport(t, func(w http.ResponseWriter, r *http.Request) {
		_, err := r.Cookie("JSESSIONID")
		assert.ErrorIs(t, err, http.ErrNoCookie)
		_, _ = w.Write([]byte(`{"result":{"sessionId":"s"}}`))
	})

	_, err := tr.Call(context.Background(), "authenticate", map[string]string{"user": "u"}, Credentials{})
	require.NoError(t, err)
}

func TestHTTPTransportMapsRPCErrors(t *testing.T) {
	tr := newTestTransport(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"error":{"code":-8520,"message":"not authenticated"}}`))
	})

	_, err := tr.Call(context.Background(), "getTimetable", nil, Credentials{SessionID: "old"})
	require.Error(t, err)
	assert.True(t, IsNotAuthenticated(err))

	var rpcErr *RPCError
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, -8520, rpcErr.Code)
	assert.Equal(t, "getTimetable", rpcErr.Method)
}

func TestHTTPTransportMapsHTTPStatus(t *testing.T) {
	tr := newTestTransport(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "forbidden", http.StatusForbidden)
	})

	_, err := tr.Call(context.Background(), "getExams", nil, Credentials{})
	assert.True(t, IsPermissionDenied(err))

	var httpErr *HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, "forbidden", httpErr.Body)
}

func TestHTTPTransportRejectsMalformedBody(t *testing.T) {
	tr := newTestTransport(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>maintenance</html>`))
	})

	_, err := tr.Call(context.Background(), "getRooms", nil, Credentials{})
	assert.ErrorContains(t, err, "decode getRooms")

	_, err = tr.Get(context.Background(), "api/exams", nil, Credentials{})
	assert.ErrorContains(t, err, "malformed json")
}

func TestHTTPTransportGetUsesWebRoot(t *testing.T) {
	tr := newTestTransport(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/WebUntis/api/exams", r.URL.Path)
		assert.Equal(t, "20240301", r.URL.Query().Get("startDate"))
		if cookie, err := r.Cookie("JSESSIONID"); assert.NoError(t, err) {
			assert.Equal(t, "abc", cookie.Value)
		}
		_, _ = w.Write([]byte(`{"data":{"exams":[]}}`))
	})

	res, err := tr.Get(context.Background(), "/api/exams", map[string][]string{"startDate": {"20240301"}}, Credentials{SessionID: "abc"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"data":{"exams":[]}}`, string(res))
}

func TestNewHTTPTransportRejectsBadURL(t *testing.T) {
	id := testIdentity("EF")
	id.BaseURL = "not a url"
	_, err := NewHTTPTransport(id, TransportOptions{})
	assert.ErrorIs(t, err, ErrConfig)
}

func TestNewHTTPTransportKeepsBaseQuery(t *testing.T) {
	id := testIdentity("EF")
	id.BaseURL = "https://example.org/WebUntis/jsonrpc.do?lang=de&school=stale"
	tr, err := NewHTTPTransport(id, TransportOptions{})
	require.NoError(t, err)

	u, err := url.Parse(tr.endpoint)
	require.NoError(t, err)
	assert.Equal(t, "/WebUntis/jsonrpc.do", u.Path)
	assert.Equal(t, "de", u.Query().Get("lang"))
	assert.Equal(t, []string{"test-school"}, u.Query()["school"])
	assert.Equal(t, "https://example.org/WebUntis", tr.restBase)
}
