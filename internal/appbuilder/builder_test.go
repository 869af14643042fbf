package appbuilder

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/park285/eternal-chess/internal/autoplay"
	"github.com/park285/eternal-chess/internal/broadcast"
	"github.com/park285/eternal-chess/internal/config"
	"github.com/park285/eternal-chess/pkg/eternaldto"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func testConfig() *config.AppConfig {
	return &config.AppConfig{
		MoveInterval:     time.Millisecond,
		SleepInterval:    time.Millisecond,
		DatabaseURL:      "memory://",
		PersistRetryMax:  2,
		PersistRetryBase: time.Millisecond,
		StoreTimeout:     time.Second,
	}
}

func TestNewWiresMemoryStore(t *testing.T) {
	deps, err := New(context.Background(), testConfig(), nil, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer deps.Close()
	require.Nil(t, deps.Mirror)

	srv := httptest.NewServer(deps.API.Handler())
	defer srv.Close()

	_, err = deps.Scheduler.Step(context.Background())
	require.NoError(t, err)

	resp, err := http.Get(srv.URL + "/api/state")
	require.NoError(t, err)
	defer resp.Body.Close()
	var st eternaldto.StateResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&st))
	require.Equal(t, 1, st.NGameMoves)
	require.Equal(t, "Black", st.Turn)
}

func TestNewMirrorsToRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig()
	cfg.RedisURL = "redis://" + mr.Addr() + "/0"

	deps, err := New(context.Background(), cfg, autoplay.NewUniformSource(7), zaptest.NewLogger(t))
	require.NoError(t, err)
	defer deps.Close()
	require.NotNil(t, deps.Mirror)

	_, err = deps.Scheduler.Step(context.Background())
	require.NoError(t, err)

	raw, err := mr.Get(broadcast.SnapshotKey)
	require.NoError(t, err)
	var ev eternaldto.Event
	require.NoError(t, json.Unmarshal([]byte(raw), &ev))
	require.Equal(t, "move", ev.Event)
	require.Equal(t, 1, ev.Data.NGameMoves)
}

func TestNewRejectsUnknownStore(t *testing.T) {
	cfg := testConfig()
	cfg.DatabaseURL = "sqlite:///tmp/x.db"
	_, err := New(context.Background(), cfg, nil, nil)
	require.Error(t, err)
}
