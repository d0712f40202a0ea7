package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/qubitlab/subisom/internal/backend/simulator"
	"github.com/qubitlab/subisom/internal/cache"
	"github.com/qubitlab/subisom/internal/config"
	"github.com/qubitlab/subisom/internal/events"
)

func testConfig() *config.Config {
	return &config.Config{
		Port:     8020,
		LogLevel: "info",
		Seed:     7,
		Search: config.SearchConfig{
			ShotsPerRound:      32,
			EscalationCeiling:  8,
			MaxRounds:          8,
			MaxPatternVertices: 8,
			Concurrency:        2,
		},
		Cache: config.CacheConfig{MaxAgeHours: 24},
	}
}

func newTestServer(t *testing.T, store *cache.Store) (*Server, *events.Bus) {
	t.Helper()
	bus := events.NewBus(zerolog.Nop())
	srv := New(Config{
		Log:     zerolog.Nop(),
		Config:  testConfig(),
		Backend: simulator.New(11),
		Store:   store,
		Bus:     bus,
		Port:    0,
	})
	return srv, bus
}

func postSearch(t *testing.T, srv *Server, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/search", bytes.NewReader([]byte(body)))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	return rec
}

func TestHandleSearch_Found(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	rec := postSearch(t, srv, `{
		"target":  {"vertices": 4, "edges": [[0,1],[1,2],[2,3],[3,0]]},
		"pattern": {"vertices": 2, "edges": [[0,1]]}
	}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp searchResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "found", resp.Status)
	assert.Len(t, resp.Mapping, 2)
	assert.Equal(t, 1.0, resp.Confidence)
	assert.NotEmpty(t, resp.RunID)
}

func TestHandleSearch_NotFound(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	rec := postSearch(t, srv, `{
		"target":  {"vertices": 4, "edges": [[0,1],[2,3]]},
		"pattern": {"vertices": 3, "edges": [[0,1],[1,2],[2,0]]}
	}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp searchResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "not_found", resp.Status)
	assert.Nil(t, resp.Mapping)
	assert.Greater(t, resp.Confidence, 0.9)
	assert.Greater(t, resp.Rounds, 0)
}

func TestHandleSearch_InvalidBody(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	rec := postSearch(t, srv, `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid request body")
}

func TestHandleSearch_InvalidGraph(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	rec := postSearch(t, srv, `{
		"target":  {"vertices": 2, "edges": [[0,0]]},
		"pattern": {"vertices": 1, "edges": []}
	}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "target")
}

func TestHandleSearch_PatternLargerThanTarget(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	rec := postSearch(t, srv, `{
		"target":  {"vertices": 2, "edges": [[0,1]]},
		"pattern": {"vertices": 3, "edges": [[0,1],[1,2]]}
	}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestHandleSearch_OptionOverrides(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	rec := postSearch(t, srv, `{
		"target":  {"vertices": 4, "edges": [[0,1],[1,2],[2,3],[3,0]]},
		"pattern": {"vertices": 3, "edges": [[0,1],[1,2]]},
		"options": {"max_pattern_vertices": 2}
	}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestHandleHealth(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "subisom")
}

func TestHandleSystemHealth(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/system/health", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp SystemHealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, "statevector-simulator", resp.Backend)
	assert.GreaterOrEqual(t, resp.UptimeSeconds, 0.0)
	assert.Nil(t, resp.CacheHealthy)
}

func TestCacheEndpoints(t *testing.T) {
	store, err := cache.NewStore(filepath.Join(t.TempDir(), "cache.db"), zerolog.Nop())
	require.NoError(t, err)
	defer store.Close()

	srv, _ := newTestServer(t, store)

	// A search populates the cache.
	rec := postSearch(t, srv, `{
		"target":  {"vertices": 4, "edges": [[0,1],[1,2],[2,3],[3,0]]},
		"pattern": {"vertices": 2, "edges": [[0,1]]}
	}`)
	require.Equal(t, http.StatusOK, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/system/cache", nil)
	rec = httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var stats cache.Stats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, int64(1), stats.Entries)

	// Fresh entries survive a prune.
	req = httptest.NewRequest(http.MethodPost, "/api/system/cache/prune", nil)
	rec = httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"deleted":0`)
}

func TestCacheEndpoints_Disabled(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/system/cache", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCachePrune_BadParameter(t *testing.T) {
	store, err := cache.NewStore(filepath.Join(t.TempDir(), "cache.db"), zerolog.Nop())
	require.NoError(t, err)
	defer store.Close()

	srv, _ := newTestServer(t, store)

	req := httptest.NewRequest(http.MethodPost, "/api/system/cache/prune?max_age_hours=zero", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestEventsStream_DeliversEvents(t *testing.T) {
	srv, bus := newTestServer(t, nil)

	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/search/stream"
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")

	// Give the subscription a moment to register.
	require.Eventually(t, func() bool {
		return bus.SubscriberCount() == 1
	}, time.Second, 10*time.Millisecond)

	bus.Publish("search", &events.SearchStartedData{RunID: "run-1", Backend: "statevector"})

	var event events.EventWithData
	require.NoError(t, wsjson.Read(ctx, conn, &event))
	assert.Equal(t, events.SearchStarted, event.Type)

	started, ok := event.Data.(*events.SearchStartedData)
	require.True(t, ok)
	assert.Equal(t, "run-1", started.RunID)
}
