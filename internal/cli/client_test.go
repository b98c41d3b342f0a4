package cli

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/pairchat/internal/admin"
	"github.com/mcoot/pairchat/internal/model"
	"github.com/mcoot/pairchat/internal/services/session"
	"github.com/mcoot/pairchat/internal/testutil"
)

type connectionCount int

func (c connectionCount) ConnectionCount() int { return int(c) }

func newAdminServer(t *testing.T, registry *session.Registry) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(admin.NewRouter(admin.RouterConfig{
		Logger:   testutil.NopLogger(),
		Relay:    connectionCount(2),
		Registry: registry,
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestClientHealth(t *testing.T) {
	srv := newAdminServer(t, session.NewRegistry(testutil.NopLogger()))

	var result HealthResult
	require.NoError(t, NewClient(srv.URL+"/").Get("/health", &result))
	assert.Equal(t, "ok", result.Status)
}

func TestClientStats(t *testing.T) {
	registry := session.NewRegistry(testutil.NopLogger())
	require.NoError(t, registry.TryLogin(model.ConnID("a"), "alice"))
	_, _, err := registry.EnterPool("a")
	require.NoError(t, err)

	srv := newAdminServer(t, registry)

	var result StatsResult
	require.NoError(t, NewClient(srv.URL).Get("/stats", &result))
	assert.Equal(t, StatsResult{Connections: 2, Sessions: 1, Waiting: 1}, result)
}

func TestClientErrorResponse(t *testing.T) {
	srv := newAdminServer(t, session.NewRegistry(testutil.NopLogger()))

	err := NewClient(srv.URL).Get("/missing", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 404: not found")
}

func TestClientPlainErrorResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	t.Cleanup(srv.Close)

	err := NewClient(srv.URL).Get("/health", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 502")
}

func TestOutputText(t *testing.T) {
	var buf bytes.Buffer
	out := &Output{format: "text", w: &buf}

	out.Print(StatsResult{Connections: 3, Sessions: 2, Waiting: 0, Paired: 1})
	assert.Contains(t, buf.String(), "Connections: 3")
	assert.Contains(t, buf.String(), "Pairs:       1")
}

func TestOutputJSON(t *testing.T) {
	var buf bytes.Buffer
	out := &Output{format: "json", w: &buf}

	out.Print(HealthResult{Status: "ok"})
	assert.JSONEq(t, `{"status":"ok"}`, buf.String())
}

func TestDefaultConfigFromEnv(t *testing.T) {
	t.Setenv("PAIRCHAT_SERVER", "relay.example:9000")
	t.Setenv("PAIRCHAT_ADMIN", "")

	c := DefaultConfig()
	assert.Equal(t, "relay.example:9000", c.ServerAddr)
	assert.Equal(t, "http://localhost:8081", c.AdminURL)
	assert.Equal(t, "text", c.Output)
}
