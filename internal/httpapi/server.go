package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	nchess "github.com/corentings/chess/v2"
	"github.com/park285/eternal-chess/internal/autoplay"
	"github.com/park285/eternal-chess/internal/broadcast"
	"github.com/park285/eternal-chess/internal/domain"
	"github.com/park285/eternal-chess/internal/msgcat"
	"github.com/park285/eternal-chess/internal/render"
	"github.com/park285/eternal-chess/internal/rules"
	"github.com/park285/eternal-chess/internal/store"
	"github.com/park285/eternal-chess/pkg/eternaldto"
	"go.uber.org/zap"
)

type Deps struct {
	Table     *autoplay.Table
	Snapshots broadcast.SnapshotProvider
	Store     store.Store
	Stream    http.Handler // websocket endpoint
	Renderer  *render.Renderer
	Catalog   *msgcat.Catalog
	Logger    *zap.Logger
	// Timeout bounds each store read made for one request.
	Timeout time.Duration
}

type Server struct {
	table     *autoplay.Table
	snapshots broadcast.SnapshotProvider
	store     store.Store
	stream    http.Handler
	renderer  *render.Renderer
	catalog   *msgcat.Catalog
	logger    *zap.Logger
	timeout   time.Duration
}

func New(d Deps) *Server {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	renderer := d.Renderer
	if renderer == nil {
		renderer = render.NewRenderer()
	}
	timeout := d.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Server{
		table:     d.Table,
		snapshots: d.Snapshots,
		store:     d.Store,
		stream:    d.Stream,
		renderer:  renderer,
		catalog:   d.Catalog,
		logger:    logger.Named("httpapi"),
		timeout:   timeout,
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.health)
	mux.HandleFunc("GET /api/state", s.state)
	mux.HandleFunc("GET /api/stats", s.stats)
	mux.HandleFunc("GET /api/games", s.games)
	mux.HandleFunc("GET /api/games/{n}/pgn", s.gamePGN)
	mux.HandleFunc("GET /board.png", s.boardPNG)
	if s.stream != nil {
		mux.Handle("GET /ws", s.stream)
	}
	return accessLog(s.logger, mux)
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) state(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.requestContext(r)
	defer cancel()

	snap, err := s.snapshots.Snapshot(ctx)
	if err != nil {
		s.unavailable(w, "state", err)
		return
	}
	writeJSON(w, http.StatusOK, eternaldto.StateResponse{
		State:    broadcast.ToWire(snap),
		Headline: Headline(s.catalog, snap),
	})
}

func (s *Server) stats(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.requestContext(r)
	defer cancel()

	st, err := s.store.Stats(ctx)
	if err != nil {
		s.unavailable(w, "stats", err)
		return
	}
	writeJSON(w, http.StatusOK, eternaldto.Stats{
		Games:      st.Games,
		WhiteWins:  st.WhiteWins,
		BlackWins:  st.BlackWins,
		Draws:      st.Draws,
		TotalMoves: st.TotalMoves,
	})
}

func (s *Server) games(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.requestContext(r)
	defer cancel()

	recs, err := s.store.ListAllGames(ctx)
	if err != nil {
		s.unavailable(w, "games", err)
		return
	}
	out := eternaldto.GameList{Games: make([]eternaldto.GameRecord, 0, len(recs))}
	for i, rec := range recs {
		out.Games = append(out.Games, toWireRecord(i+1, rec))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) gamePGN(w http.ResponseWriter, r *http.Request) {
	n, err := strconv.Atoi(r.PathValue("n"))
	if err != nil || n < 1 {
		http.Error(w, "game number must be a positive integer", http.StatusBadRequest)
		return
	}

	ctx, cancel := s.requestContext(r)
	defer cancel()

	recs, err := s.store.ListAllGames(ctx)
	if err != nil {
		s.unavailable(w, "game_pgn", err)
		return
	}
	if n > len(recs) {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/x-chess-pgn")
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=\"eternal-chess-%d.pgn\"", n))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(recs[n-1].PGN))
}

func (s *Server) boardPNG(w http.ResponseWriter, r *http.Request) {
	var (
		board     *nchess.Board
		highlight *render.MoveHighlight
		turn      domain.Side
	)
	// positions are immutable, so the board can be drawn after the guard is released
	s.table.View(func(b *rules.Board) {
		board = b.Squares()
		turn = b.Turn()
		if from, to, ok := b.LastMove(); ok {
			highlight = &render.MoveHighlight{From: from, To: to}
		}
	})

	opts := render.Options{Highlight: highlight, Turn: turnText(turn)}
	ctx, cancel := s.requestContext(r)
	defer cancel()
	if snap, err := s.snapshots.Snapshot(ctx); err == nil {
		opts.Headline = Headline(s.catalog, snap)
		opts.Tally = fmt.Sprintf("W %d  B %d  D %d", snap.NWhiteWins, snap.NBlackWins, snap.NDraws)
	} else {
		s.logger.Warn("http_board_stats_unavailable", zap.String("error_class", "storage"), zap.Error(err))
	}

	raw, err := s.renderer.RenderPNG(ctx, board, opts)
	if err != nil {
		s.logger.Error("http_board_render_failed", zap.Error(err))
		http.Error(w, "render failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(raw)
}

// Headline is the viewer title for a snapshot.
func Headline(c *msgcat.Catalog, snap domain.Snapshot) string {
	if snap.GameOver {
		id := domain.DisplayGameID(snap.GameID, snap.NGameMoves, true)
		return c.RenderOr("headline.complete", map[string]any{"GameID": id}, fmt.Sprintf("Game #%d Complete", id))
	}
	data := map[string]any{"GameID": snap.GameID}
	return c.RenderOr("headline.in_progress", data, fmt.Sprintf("Game #%d In Progress", snap.GameID))
}

func turnText(side domain.Side) string {
	if side == domain.SideBlack {
		return "Black to move"
	}
	return "White to move"
}

func toWireRecord(number int, rec *domain.GameRecord) eternaldto.GameRecord {
	out := eternaldto.GameRecord{
		Number:         number,
		GameID:         rec.ID.String(),
		CompletionDate: rec.CompletedAt.UTC(),
		IsDraw:         rec.IsDraw,
		NMoves:         rec.NMoves,
		PGN:            rec.PGN,
	}
	if !rec.IsDraw {
		winner := string(rec.Winner)
		out.Winner = &winner
	}
	return out
}

func (s *Server) requestContext(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), s.timeout)
}

func (s *Server) unavailable(w http.ResponseWriter, view string, err error) {
	fields := []zap.Field{zap.String("view", view), zap.Error(err)}
	var se *store.StorageError
	if errors.As(err, &se) {
		fields = append(fields, zap.String("error_class", "storage"))
	}
	s.logger.Warn("http_view_unavailable", fields...)
	writeJSON(w, http.StatusServiceUnavailable, eternaldto.StatusResponse{Status: "unavailable"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
