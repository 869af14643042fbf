package watch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/park285/eternal-chess/internal/msgcat"
	"github.com/park285/eternal-chess/pkg/eternaldto"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

func noSleep(context.Context, time.Duration) error { return nil }

func TestClientRetriesUnavailable(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
		require.Equal(t, "/api/stats", r.URL.Path)
		_, _ = w.Write([]byte(`{"n_games":3,"n_white_wins":1,"n_black_wins":1,"n_draws":1,"n_moves":90}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, WithRetry(3))
	c.sleep = noSleep
	st, err := c.Stats(context.Background())
	require.NoError(t, err)
	require.Equal(t, eternaldto.Stats{Games: 3, WhiteWins: 1, BlackWins: 1, Draws: 1, TotalMoves: 90}, *st)
	require.EqualValues(t, 3, calls.Load())
}

func TestClientGivesUpAfterRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, WithRetry(2))
	c.sleep = noSleep
	_, err := c.State(context.Background())
	var se *StatusError
	require.ErrorAs(t, err, &se)
	require.Equal(t, http.StatusBadGateway, se.Code)
	require.EqualValues(t, 2, calls.Load())
}

func TestClientNotFoundAndPGN(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/games/1/pgn" {
			_, _ = w.Write([]byte("1. f3 e5 2. g4 Qh4# 0-1\n"))
			return
		}
		http.NotFound(w, r)
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", WithTimeout(2*time.Second))
	pgn, err := c.GamePGN(context.Background(), 1)
	require.NoError(t, err)
	require.Contains(t, pgn, "Qh4#")

	_, err = c.GamePGN(context.Background(), 2)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestWatcherDeliversEventsAndReconnects(t *testing.T) {
	var conns atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		n := conns.Add(1)
		ev := eternaldto.Event{Event: "connection_established", Data: eternaldto.State{GameID: int(n)}}
		_ = wsjson.Write(r.Context(), c, ev)
		// drop the first connection so the watcher has to redial
		c.Close(websocket.StatusGoingAway, "restart")
	}))
	defer srv.Close()

	w := NewWatcher("ws"+strings.TrimPrefix(srv.URL, "http"), 5, zaptest.NewLogger(t))
	var states []ConnState
	w.OnStateChange(func(s ConnState) { states = append(states, s) })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var got []int
	err := w.Watch(ctx, func(ev eternaldto.Event) {
		got = append(got, ev.Data.GameID)
		if len(got) == 2 {
			cancel()
		}
	})
	require.NoError(t, err)
	require.Equal(t, []int{1, 2}, got)
	require.Contains(t, states, StateReconnecting)
}

func TestWatcherGivesUp(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	w := NewWatcher("ws"+strings.TrimPrefix(srv.URL, "http"), 1, zaptest.NewLogger(t))
	err := w.Watch(context.Background(), func(eternaldto.Event) {})
	require.ErrorIs(t, err, ErrGaveUp)
}

func TestStatusLine(t *testing.T) {
	st := eternaldto.State{GameID: 7, NGameMoves: 12, Turn: "Black", NGames: 6, NWhiteWins: 2, NBlackWins: 3, NDraws: 1}
	line := StatusLine(msgcat.MustDefault(), st)
	require.Equal(t, "game #7 in progress | move 12 | Black to move | W 2 / B 3 / D 1 over 6 games", line)

	st.GameOver = true
	require.Equal(t, "game #7 complete | move 12 | Black to move", StatusLine(nil, st))

	// during the pause game_id already names the next game
	paused := eternaldto.State{GameID: 8, NGames: 7, GameOver: true, Turn: "White"}
	require.Equal(t, "game #7 complete | move 0 | White to move", StatusLine(nil, paused))
}
