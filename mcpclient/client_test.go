package mcpclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/airuntime/core/mcpserver"
	"github.com/airuntime/core/tool"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	s := mcpserver.GetInstance(t.Name(), true)
	s.RegisterTool(tool.New("search", "search stuff").
		WithHandler(func(ctx context.Context, args json.RawMessage) (string, error) { return "found it", nil }))
	return httptest.NewServer(s.Handler(mcpserver.HTTPConfig{}))
}

func TestListTools_Success(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()

	resp := New(srv.URL).ListTools(context.Background())
	require.True(t, resp.Success)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var result struct {
		Tools []struct {
			Name string `json:"name"`
		} `json:"tools"`
	}
	require.NoError(t, resp.Unmarshal(&result))
	require.Len(t, result.Tools, 1)
	assert.Equal(t, "search", result.Tools[0].Name)
}

func TestCallTool_Success(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()

	resp := New(srv.URL).CallTool(context.Background(), "search", map[string]any{"q": "go"})
	require.True(t, resp.Success)

	var result struct {
		Content []struct {
			Text string `json:"text"`
		} `json:"content"`
	}
	require.NoError(t, resp.Unmarshal(&result))
	require.Len(t, result.Content, 1)
	assert.Equal(t, "found it", result.Content[0].Text)
}

func TestSend_NetworkFailure_NeverPanics(t *testing.T) {
	c := New("http://127.0.0.1:1") // nothing listening
	resp := c.Send(context.Background(), "ping", nil)
	assert.False(t, resp.Success)
	assert.NotEmpty(t, resp.Error)
}

func TestOnSuccessOnError_Callbacks(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()

	var succeeded, failed bool
	c := New(srv.URL).
		OnSuccess(func(Response) { succeeded = true }).
		OnError(func(error) { failed = true })

	c.ListTools(context.Background())
	assert.True(t, succeeded)
	assert.False(t, failed)

	New("http://127.0.0.1:1").
		OnError(func(error) { failed = true }).
		Send(context.Background(), "ping", nil)
	assert.True(t, failed)
}

func TestWithBearerToken_SetsAuthorizationHeader(t *testing.T) {
	var gotAuth string
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"jsonrpc":"2.0","id":"1","result":{}}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	New(srv.URL).WithBearerToken("secret-token").Ping(context.Background())
	assert.Equal(t, "Bearer secret-token", gotAuth)
}

func TestWithAuth_SetsBasicAuthHeader(t *testing.T) {
	var gotUser, gotPass string
	var gotOK bool
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		gotUser, gotPass, gotOK = r.BasicAuth()
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"jsonrpc":"2.0","id":"1","result":{}}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	New(srv.URL).WithAuth("alice", "hunter2").Ping(context.Background())
	require.True(t, gotOK)
	assert.Equal(t, "alice", gotUser)
	assert.Equal(t, "hunter2", gotPass)
}
