package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/block-physics/internal/auth"
	"github.com/annel0/block-physics/internal/collapse"
	"github.com/annel0/block-physics/internal/config"
	"github.com/annel0/block-physics/internal/eventbus"
	"github.com/annel0/block-physics/internal/logging"
	"github.com/annel0/block-physics/internal/registry"
)

type testEnv struct {
	server *RestServer
	svc    *collapse.Service
	bus    eventbus.EventBus
	tokens *auth.TokenIssuer
}

func newTestEnv(t *testing.T, raw map[string]any, withTokens bool) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log := logging.NewWriterLogger("api", &bytes.Buffer{}, logging.DEBUG)
	reg := registry.Vanilla()
	bus := eventbus.NewMemoryBus(16)
	t.Cleanup(func() { _ = bus.Close() })

	svc := collapse.NewService(collapse.NewLoader(reg), config.MapSource(raw), collapse.NewHolder(),
		collapse.WithLogger(log), collapse.WithEventBus(bus))

	env := &testEnv{svc: svc, bus: bus}
	if withTokens {
		secret, err := auth.GenerateSecureSecret()
		require.NoError(t, err)
		env.tokens, err = auth.NewTokenIssuer(secret)
		require.NoError(t, err)
	}

	promReg := prometheus.NewRegistry()
	env.server = NewRestServer(Config{
		Service:    svc,
		Registry:   reg,
		Bus:        bus,
		Tokens:     env.tokens,
		Logger:     log,
		Registerer: promReg,
		Gatherer:   promReg,
	})
	return env
}

func (e *testEnv) do(t *testing.T, method, path, token string) (*httptest.ResponseRecorder, GenericResponse) {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(w, req)

	var resp GenericResponse
	if w.Header().Get("Content-Type") != "" && bytes.HasPrefix(w.Body.Bytes(), []byte("{")) {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	}
	return w, resp
}

// decodeData перекладывает resp.Data в типизированную структуру
func decodeData(t *testing.T, resp GenericResponse, out any) {
	t.Helper()
	raw, err := json.Marshal(resp.Data)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, out))
}

func TestHealthBeforeAndAfterLoad(t *testing.T) {
	env := newTestEnv(t, nil, false)

	w, _ := env.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w, _ = env.do(t, http.MethodGet, "/api/v1/snapshot", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	_, err := env.svc.Reload(context.Background(), collapse.TriggerStartup)
	require.NoError(t, err)

	w, _ = env.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), env.svc.Holder().Current().ID())
}

func TestSnapshotAndLookups(t *testing.T) {
	env := newTestEnv(t, map[string]any{
		collapse.KeyOverwriteBlocks:      []any{"minecraft:glass", "minecraft:sand"},
		collapse.KeyOverwriteBlockValues: []any{7},
		collapse.KeyAllowedDimensions:    []any{"minecraft:overworld", "custom:void"},
	}, false)
	_, err := env.svc.Reload(context.Background(), collapse.TriggerStartup)
	require.NoError(t, err)

	w, resp := env.do(t, http.MethodGet, "/api/v1/snapshot", "")
	require.Equal(t, http.StatusOK, w.Code)
	var view collapse.SnapshotView
	decodeData(t, resp, &view)
	assert.Equal(t, []string{"minecraft:overworld", "custom:void"}, view.AllowedDimensions)
	require.Len(t, view.BlockOverrides, 2)
	assert.Equal(t, collapse.NoOverride, view.BlockOverrides[1].Value)

	t.Run("block", func(t *testing.T) {
		w, resp := env.do(t, http.MethodGet, "/api/v1/blocks/minecraft/glass", "")
		require.Equal(t, http.StatusOK, w.Code)
		var info BlockInfo
		decodeData(t, resp, &info)
		assert.Equal(t, "minecraft:glass", info.Block)
		require.NotNil(t, info.Override)
		assert.Equal(t, 7, *info.Override)
		assert.False(t, info.Indestructible)

		w, resp = env.do(t, http.MethodGet, "/api/v1/blocks/minecraft/bedrock", "")
		require.Equal(t, http.StatusOK, w.Code)
		info = BlockInfo{}
		decodeData(t, resp, &info)
		assert.True(t, info.Indestructible)
		assert.Nil(t, info.Override)

		w, _ = env.do(t, http.MethodGet, "/api/v1/blocks/minecraft/ghost", "")
		assert.Equal(t, http.StatusNotFound, w.Code)

		w, _ = env.do(t, http.MethodGet, "/api/v1/blocks/Bad%20Name/x", "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("tag", func(t *testing.T) {
		w, resp := env.do(t, http.MethodGet, "/api/v1/tags/minecraft/leaves", "")
		require.Equal(t, http.StatusOK, w.Code)
		var info TagInfo
		decodeData(t, resp, &info)
		assert.Equal(t, "minecraft:leaves", info.Tag)
		require.NotNil(t, info.Override)
		assert.Equal(t, 4, *info.Override)

		w, _ = env.do(t, http.MethodGet, "/api/v1/tags/minecraft/mineable/pickaxe", "")
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("dimension", func(t *testing.T) {
		_, resp := env.do(t, http.MethodGet, "/api/v1/dimensions/custom/void", "")
		var info DimensionInfo
		decodeData(t, resp, &info)
		assert.True(t, info.Allowed)
		assert.False(t, info.Known)

		_, resp = env.do(t, http.MethodGet, "/api/v1/dimensions/minecraft/the_end", "")
		info = DimensionInfo{}
		decodeData(t, resp, &info)
		assert.False(t, info.Allowed)
		assert.True(t, info.Known)
	})
}

func TestOptionsReportAndRegistry(t *testing.T) {
	env := newTestEnv(t, map[string]any{collapse.KeyDmgMax: "loud"}, false)
	_, err := env.svc.Reload(context.Background(), collapse.TriggerStartup)
	require.NoError(t, err)

	_, resp := env.do(t, http.MethodGet, "/api/v1/options", "")
	var opts []OptionInfo
	decodeData(t, resp, &opts)
	require.Len(t, opts, 16)
	assert.Equal(t, collapse.KeyIndestructibleBlocks, opts[0].Name)

	_, resp = env.do(t, http.MethodGet, "/api/v1/report", "")
	var report config.Report
	decodeData(t, resp, &report)
	require.Len(t, report.Corrections, 1)
	assert.Equal(t, collapse.KeyDmgMax, report.Corrections[0].Option)

	_, resp = env.do(t, http.MethodGet, "/api/v1/registry", "")
	var stats registry.Stats
	decodeData(t, resp, &stats)
	assert.Equal(t, 3, stats.Dimensions)

	_, resp = env.do(t, http.MethodGet, "/api/v1/registry/dimensions", "")
	var names []string
	decodeData(t, resp, &names)
	assert.Equal(t, []string{"minecraft:overworld", "minecraft:the_end", "minecraft:the_nether"}, names)

	w, _ := env.do(t, http.MethodGet, "/api/v1/registry/items", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, resp = env.do(t, http.MethodGet, "/api/v1/stats", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, resp.Success)
	assert.Contains(t, w.Body.String(), "eventbus")

	w, _ = env.do(t, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "collapse_api_http_request_duration_seconds")
}

func TestReloadRequiresAdminToken(t *testing.T) {
	env := newTestEnv(t, nil, true)

	w, _ := env.do(t, http.MethodPost, "/api/v1/reload", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, _ = env.do(t, http.MethodPost, "/api/v1/reload", "garbage")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	viewer, err := env.tokens.Issue("viewer", false, time.Hour)
	require.NoError(t, err)
	w, _ = env.do(t, http.MethodPost, "/api/v1/reload", viewer)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Nil(t, env.svc.Holder().Current())

	admin, err := env.tokens.Issue("ops", true, time.Hour)
	require.NoError(t, err)
	w, resp := env.do(t, http.MethodPost, "/api/v1/reload", admin)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, resp.Success)
	require.NotNil(t, env.svc.Holder().Current())
}

func TestReloadBroadcastPublishesRequest(t *testing.T) {
	env := newTestEnv(t, nil, false)

	got := make(chan *eventbus.Envelope, 1)
	sub, err := env.bus.Subscribe(context.Background(), eventbus.Filter{Types: []string{eventbus.EventReloadRequested}},
		func(ctx context.Context, ev *eventbus.Envelope) { got <- ev })
	require.NoError(t, err)
	defer sub.Unsubscribe()

	w, resp := env.do(t, http.MethodPost, "/api/v1/reload?broadcast=true", "")
	require.Equal(t, http.StatusAccepted, w.Code)
	assert.True(t, resp.Success)

	select {
	case ev := <-got:
		assert.Equal(t, "api", ev.Source)
		assert.Equal(t, w.Header().Get("X-Trace-Id"), ev.CorrelationID)
	case <-time.After(2 * time.Second):
		t.Fatal("запрос перезагрузки не доставлен")
	}
	assert.Nil(t, env.svc.Holder().Current())
}

func TestFormatUptime(t *testing.T) {
	assert.Equal(t, "42с", formatUptime(42*time.Second))
	assert.Equal(t, "3м 5с", formatUptime(3*time.Minute+5*time.Second))
	assert.Equal(t, "2ч 0м 1с", formatUptime(2*time.Hour+time.Second))
	assert.Equal(t, "1д 1ч 0м 0с", formatUptime(25*time.Hour))
}

func TestStopBeforeStartIsNotLost(t *testing.T) {
	env := newTestEnv(t, nil, false)
	srv := NewRestServer(Config{Port: "127.0.0.1:0", Service: env.svc, Registry: registry.Vanilla()})

	require.NoError(t, srv.Stop(context.Background()))
	assert.NoError(t, srv.Start())
}

func TestStopEndsRunningServer(t *testing.T) {
	env := newTestEnv(t, nil, false)
	srv := NewRestServer(Config{Port: "127.0.0.1:0", Service: env.svc, Registry: registry.Vanilla()})

	done := make(chan error, 1)
	go func() { done <- srv.Start() }()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, srv.Stop(ctx))

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("сервер не остановился")
	}
}
