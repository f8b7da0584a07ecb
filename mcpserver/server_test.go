package mcpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/airuntime/core/tool"
)

func TestGetInstance_SameNameSameInstance(t *testing.T) {
	a := GetInstance("shared", false)
	b := GetInstance("shared", false)
	assert.Same(t, a, b)

	c := GetInstance("other", false)
	assert.NotSame(t, a, c)
}

func TestGetInstance_Force_RebuildsFresh(t *testing.T) {
	a := GetInstance("forceable", false)
	a.RegisterTool(tool.New("search", "search stuff"))

	b := GetInstance("forceable", true)
	assert.NotSame(t, a, b)
	assert.Empty(t, b.tools.Specs())
}

func TestToolsList(t *testing.T) {
	s := GetInstance(t.Name(), true)
	s.RegisterTool(tool.New("search", "search stuff").
		WithHandler(func(ctx context.Context, args json.RawMessage) (string, error) { return "ok", nil }))

	result, rpcErr := s.HandleRequest(context.Background(), &Request{JSONRPC: "2.0", Method: "tools/list"})
	require.Nil(t, rpcErr)

	listed := result.(struct {
		Tools []ToolDescriptor `json:"tools"`
	})
	require.Len(t, listed.Tools, 1)
	assert.Equal(t, "search", listed.Tools[0].Name)
}

func TestHandleRequest_UnknownMethod(t *testing.T) {
	s := GetInstance(t.Name(), true)
	_, rpcErr := s.HandleRequest(context.Background(), &Request{JSONRPC: "2.0", Method: "bogus/method"})
	require.NotNil(t, rpcErr)
	assert.Equal(t, MethodNotFound, rpcErr.Code)
}

func TestHTTP_BodySizeExactlyAtLimit_Allowed(t *testing.T) {
	s := GetInstance(t.Name(), true)
	srv := httptest.NewServer(s.Handler(HTTPConfig{MaxRequestBodySize: 100}))
	defer srv.Close()

	body := `{"jsonrpc":"2.0","method":"ping","id":"1"}`
	body = body + strings.Repeat(" ", 100-len(body))
	require.Equal(t, 100, len(body))

	resp, err := http.Post(srv.URL, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.NotEqual(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
}

func TestHTTP_BodySizeOverLimit_Rejected(t *testing.T) {
	s := GetInstance(t.Name(), true)
	srv := httptest.NewServer(s.Handler(HTTPConfig{MaxRequestBodySize: 100}))
	defer srv.Close()

	body := strings.Repeat("x", 150)
	req, _ := http.NewRequest(http.MethodPost, srv.URL, strings.NewReader(body))
	req.ContentLength = 150
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
	assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))

	var rpcResp Response
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&rpcResp))
	require.NotNil(t, rpcResp.Error)
	assert.Contains(t, rpcResp.Error.Message, "too large")
}

func TestHTTP_ToolsList_ReturnsRegisteredTool(t *testing.T) {
	s := GetInstance(t.Name(), true)
	s.RegisterTool(tool.New("search", "search stuff"))
	srv := httptest.NewServer(s.Handler(HTTPConfig{}))
	defer srv.Close()

	body := `{"jsonrpc":"2.0","method":"tools/list","id":"1"}`
	resp, err := http.Post(srv.URL, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	var rpcResp struct {
		Result struct {
			Tools []ToolDescriptor `json:"tools"`
		} `json:"result"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&rpcResp))
	require.Len(t, rpcResp.Result.Tools, 1)
	assert.Equal(t, "search", rpcResp.Result.Tools[0].Name)
}

func TestOriginAllowed_WildcardSubdomain(t *testing.T) {
	allowed := []string{"*.example.com"}
	assert.True(t, originAllowed("sub.example.com", allowed))
	assert.False(t, originAllowed("example.com", allowed))
	assert.False(t, originAllowed("evilexample.com", allowed))
}

func TestOriginAllowed_Star(t *testing.T) {
	assert.True(t, originAllowed("anything.test", []string{"*"}))
}

func TestHTTP_CORSPreflight(t *testing.T) {
	s := GetInstance(t.Name(), true)
	srv := httptest.NewServer(s.Handler(HTTPConfig{AllowedOrigins: []string{"*.example.com"}}))
	defer srv.Close()

	req, _ := http.NewRequest(http.MethodOptions, srv.URL, nil)
	req.Header.Set("Origin", "app.example.com")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "app.example.com", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestHTTP_BasicAuthRequired(t *testing.T) {
	s := GetInstance(t.Name(), true)
	srv := httptest.NewServer(s.Handler(HTTPConfig{BasicAuthUser: "u", BasicAuthPass: "p"}))
	defer srv.Close()

	resp, err := http.Post(srv.URL, "application/json", strings.NewReader(`{"jsonrpc":"2.0","method":"ping","id":"1"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestStatistics_SuccessRate(t *testing.T) {
	stats := NewStatistics()
	stats.recordRequest()
	stats.recordRequest()
	stats.recordError()
	snap := stats.Snapshot()
	assert.Equal(t, int64(2), snap.TotalRequests)
	assert.Equal(t, int64(1), snap.TotalErrors)
	assert.InDelta(t, 50.0, snap.SuccessRate, 0.001)
}
