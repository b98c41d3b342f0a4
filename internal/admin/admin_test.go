package admin_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/pairchat/internal/admin"
	"github.com/mcoot/pairchat/internal/model"
	"github.com/mcoot/pairchat/internal/services/session"
	"github.com/mcoot/pairchat/internal/testutil"
)

type fixedConnections int

func (f fixedConnections) ConnectionCount() int { return int(f) }

func newTestRouter(t *testing.T, registry *session.Registry, conns int) http.Handler {
	t.Helper()
	return admin.NewRouter(admin.RouterConfig{
		Logger:   testutil.NopLogger(),
		Relay:    fixedConnections(conns),
		Registry: registry,
	})
}

func request(h http.Handler, method, path string) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(method, path, nil))
	return rr
}

func TestHealth(t *testing.T) {
	h := newTestRouter(t, session.NewRegistry(testutil.NopLogger()), 0)

	rr := request(h, http.MethodGet, "/health")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())
}

func TestStats(t *testing.T) {
	registry := session.NewRegistry(testutil.NopLogger())
	ids := []model.ConnID{"a", "b", "c"}
	for i, id := range ids {
		require.NoError(t, registry.TryLogin(id, fmt.Sprintf("user%d", i)))
		_, _, err := registry.EnterPool(id)
		require.NoError(t, err)
	}

	h := newTestRouter(t, registry, 4)
	rr := request(h, http.MethodGet, "/stats")
	require.Equal(t, http.StatusOK, rr.Code)

	var resp admin.StatsResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, 4, resp.Connections)
	assert.Equal(t, 3, resp.Sessions)
	assert.Equal(t, 1, resp.Waiting)
	assert.Equal(t, 1, resp.Paired)
}

func TestStatsFieldNames(t *testing.T) {
	h := newTestRouter(t, session.NewRegistry(testutil.NopLogger()), 0)

	rr := request(h, http.MethodGet, "/stats")
	assert.JSONEq(t, `{"connections":0,"sessions":0,"waiting":0,"paired":0}`, rr.Body.String())
}

func TestUnknownRoute(t *testing.T) {
	h := newTestRouter(t, session.NewRegistry(testutil.NopLogger()), 0)

	rr := request(h, http.MethodGet, "/nope")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.JSONEq(t, `{"error":"not found"}`, rr.Body.String())

	rr = request(h, http.MethodPost, "/health")
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func TestServerStartAndShutdown(t *testing.T) {
	registry := session.NewRegistry(testutil.NopLogger())
	cfg := admin.DefaultConfig()
	srv := admin.NewServer(newTestRouter(t, registry, 0), cfg, testutil.NopLogger())

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	served := make(chan error, 1)
	go func() { served <- srv.Serve(ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/health")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, srv.Shutdown(ctx))
	assert.NoError(t, <-served)
}
