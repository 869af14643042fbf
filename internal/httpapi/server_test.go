package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/park285/eternal-chess/internal/autoplay"
	"github.com/park285/eternal-chess/internal/broadcast"
	"github.com/park285/eternal-chess/internal/domain"
	"github.com/park285/eternal-chess/internal/msgcat"
	"github.com/park285/eternal-chess/internal/store"
	"github.com/park285/eternal-chess/pkg/eternaldto"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

type script []string

func (s *script) Pick(legal []string) int {
	if len(*s) == 0 {
		return -1
	}
	want := (*s)[0]
	*s = (*s)[1:]
	for i, mv := range legal {
		if mv == want {
			return i
		}
	}
	return -1
}

type env struct {
	sched *autoplay.Scheduler
	srv   *httptest.Server
}

func newEnv(t *testing.T, st store.Store) *env {
	t.Helper()
	logger := zaptest.NewLogger(t)
	catalog := msgcat.MustDefault()
	table := autoplay.NewTable()
	snaps := autoplay.NewSnapshotter(table, st, time.Second)
	hub := broadcast.NewHub(snaps, logger)
	moves := script{"f2f3", "e7e5", "g2g4", "d8h4"}
	sched := autoplay.NewScheduler(table, st, snaps, hub, &moves, catalog, logger, autoplay.Options{
		MoveInterval:  time.Millisecond,
		SleepInterval: time.Millisecond,
	})
	api := New(Deps{Table: table, Snapshots: snaps, Store: st, Stream: hub, Catalog: catalog, Logger: logger})
	srv := httptest.NewServer(api.Handler())
	t.Cleanup(func() {
		hub.Close()
		srv.Close()
	})
	return &env{sched: sched, srv: srv}
}

func (e *env) playFoolsMate(t *testing.T) {
	t.Helper()
	for i := 0; i < 5; i++ {
		_, err := e.sched.Step(context.Background())
		require.NoError(t, err)
	}
	require.Equal(t, autoplay.StateGameOverPause, e.sched.State())
}

func get(t *testing.T, url string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, body
}

func TestHealthz(t *testing.T) {
	e := newEnv(t, store.NewMemory())
	resp, body := get(t, e.srv.URL+"/healthz")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "ok", string(body))
}

func TestStateAtStart(t *testing.T) {
	e := newEnv(t, store.NewMemory())
	resp, body := get(t, e.srv.URL+"/api/state")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var st eternaldto.StateResponse
	require.NoError(t, json.Unmarshal(body, &st))
	require.Equal(t, 1, st.GameID)
	require.Equal(t, "White", st.Turn)
	require.Equal(t, "Game #1 In Progress", st.Headline)
	require.False(t, st.GameOver)
}

func TestViewsAfterRecordedGame(t *testing.T) {
	e := newEnv(t, store.NewMemory())
	e.playFoolsMate(t)

	_, body := get(t, e.srv.URL+"/api/state")
	var st eternaldto.StateResponse
	require.NoError(t, json.Unmarshal(body, &st))
	require.Equal(t, "Game #1 Complete", st.Headline)
	require.True(t, st.GameOver)
	require.Equal(t, 2, st.NMoves)
	require.Equal(t, 2, st.GameID)
	require.Equal(t, 0, st.NGameMoves)

	_, body = get(t, e.srv.URL+"/api/stats")
	var stats eternaldto.Stats
	require.NoError(t, json.Unmarshal(body, &stats))
	require.Equal(t, eternaldto.Stats{Games: 1, BlackWins: 1, TotalMoves: 2}, stats)

	_, body = get(t, e.srv.URL+"/api/games")
	var list eternaldto.GameList
	require.NoError(t, json.Unmarshal(body, &list))
	require.Len(t, list.Games, 1)
	g := list.Games[0]
	require.Equal(t, 1, g.Number)
	require.False(t, g.IsDraw)
	require.NotNil(t, g.Winner)
	require.Equal(t, "black", *g.Winner)
	require.Equal(t, 2, g.NMoves)
	require.WithinDuration(t, time.Now(), g.CompletionDate, time.Minute)

	resp, body := get(t, e.srv.URL+"/api/games/1/pgn")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "application/x-chess-pgn", resp.Header.Get("Content-Type"))
	require.Contains(t, string(body), "2. g4 Qh4#")

	resp, _ = get(t, e.srv.URL+"/api/games/2/pgn")
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp, _ = get(t, e.srv.URL+"/api/games/zero/pgn")
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestBoardPNG(t *testing.T) {
	e := newEnv(t, store.NewMemory())
	_, err := e.sched.Step(context.Background())
	require.NoError(t, err)

	resp, body := get(t, e.srv.URL+"/board.png")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "image/png", resp.Header.Get("Content-Type"))
	_, err = png.Decode(bytes.NewReader(body))
	require.NoError(t, err)
}

type brokenStore struct{ store.Store }

func (brokenStore) Stats(context.Context) (domain.AggregateStats, error) {
	return domain.AggregateStats{}, &store.StorageError{Op: "stats", Err: errors.New("db down")}
}

func (brokenStore) ListAllGames(context.Context) ([]*domain.GameRecord, error) {
	return nil, &store.StorageError{Op: "list_games", Err: errors.New("db down")}
}

func TestStoreFailureIsUnavailable(t *testing.T) {
	e := newEnv(t, brokenStore{Store: store.NewMemory()})
	for _, path := range []string{"/api/state", "/api/stats", "/api/games", "/api/games/1/pgn"} {
		resp, body := get(t, e.srv.URL+path)
		require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode, path)
		require.JSONEq(t, `{"status":"unavailable"}`, string(body), path)
	}
	// the board stays viewable without totals
	resp, _ := get(t, e.srv.URL+"/board.png")
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestWebsocketThroughHandler(t *testing.T) {
	e := newEnv(t, store.NewMemory())
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(e.srv.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")

	var ev eternaldto.Event
	require.NoError(t, wsjson.Read(ctx, conn, &ev))
	require.Equal(t, domain.EventConnectionEstablished, ev.Event)
	require.Equal(t, 1, ev.Data.GameID)
}

func TestHeadlineFallsBackWithoutCatalog(t *testing.T) {
	require.Equal(t, "Game #3 Complete", Headline(nil, domain.Snapshot{GameID: 3, NGameMoves: 40, GameOver: true}))
	// recorded game during the pause: game_id already names the next game
	require.Equal(t, "Game #2 Complete", Headline(nil, domain.Snapshot{GameID: 3, GameOver: true}))
	require.Equal(t, "Game #4 In Progress", Headline(nil, domain.Snapshot{GameID: 4}))
}
