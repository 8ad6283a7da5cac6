package admin

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jonwraymond/metatools-mcp/internal/backendmgr"
	"github.com/jonwraymond/metatools-mcp/internal/gwbackend"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	statuses []backendmgr.Status
}

func (f fakeProvider) Statuses() []backendmgr.Status { return f.statuses }
func (f fakeProvider) InFlightCalls() int64          { return 2 }

func doGet(t *testing.T, srv *Server, path, remoteAddr string) *httptest.ResponseRecorder {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, path, nil)
	require.NoError(t, err)
	req.RemoteAddr = remoteAddr

	rec := httptest.NewRecorder()
	srv.http.Handler.ServeHTTP(rec, req)
	return rec
}

func TestServer_StatusRespectsCIDRAllowlist(t *testing.T) {
	srv, err := New(Config{
		Listen:       "127.0.0.1:0",
		AllowedCIDRs: []string{"127.0.0.1/32"},
	}, fakeProvider{statuses: []backendmgr.Status{{Name: "foo", State: gwbackend.StateHealthy}}}, nil)
	require.NoError(t, err)

	rec := doGet(t, srv, "/status", "127.0.0.1:5555")
	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	backends, ok := body["backends"].([]any)
	require.True(t, ok)
	require.Len(t, backends, 1)
}

func TestServer_StatusRejectsOutsideAllowlist(t *testing.T) {
	srv, err := New(Config{
		Listen:       "127.0.0.1:0",
		AllowedCIDRs: []string{"10.0.0.0/8"},
	}, fakeProvider{}, nil)
	require.NoError(t, err)

	rec := doGet(t, srv, "/status", "127.0.0.1:5555")
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestServer_HealthzOkFromAllowedAddress(t *testing.T) {
	srv, err := New(Config{
		Listen:       "127.0.0.1:0",
		AllowedCIDRs: []string{"127.0.0.1/32"},
	}, fakeProvider{}, nil)
	require.NoError(t, err)

	rec := doGet(t, srv, "/healthz", "127.0.0.1:6000")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}
