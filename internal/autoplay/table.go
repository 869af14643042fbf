package autoplay

import (
	"context"
	"sync"
	"time"

	"github.com/park285/eternal-chess/internal/domain"
	"github.com/park285/eternal-chess/internal/rules"
	"github.com/park285/eternal-chess/internal/store"
)

// Table owns the shared board. The scheduler is its only writer; every
// other access goes through View or Snapshotter under the read guard.
type Table struct {
	mu       sync.RWMutex
	board    *rules.Board
	recorded bool // terminal game already written to the store
}

func NewTable() *Table {
	return &Table{board: rules.NewBoard()}
}

// View runs fn with the board under the read guard. fn must not retain b.
func (t *Table) View(fn func(b *rules.Board)) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	fn(t.board)
}

func (t *Table) apply(uci string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.board.Apply(uci)
}

// persist runs write under the write guard and marks the board recorded on
// success. write sees the board exactly as readers last saw it.
func (t *Table) persist(write func() error) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := write(); err != nil {
		return err
	}
	t.recorded = true
	return nil
}

func (t *Table) reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.board.Reset()
	t.recorded = false
}

// Snapshotter builds the live view model from the table and the store.
type Snapshotter struct {
	table   *Table
	store   store.Store
	timeout time.Duration
}

// NewSnapshotter bounds each store read by timeout; zero means the caller's context only.
func NewSnapshotter(table *Table, st store.Store, timeout time.Duration) *Snapshotter {
	return &Snapshotter{table: table, store: st, timeout: timeout}
}

// Snapshot holds the read guard across the board read and the store read, so
// the board and the totals always describe the same moment.
func (s *Snapshotter) Snapshot(ctx context.Context) (domain.Snapshot, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	s.table.mu.RLock()
	defer s.table.mu.RUnlock()
	return s.read(ctx)
}

// read builds a snapshot; the caller holds the table guard in either mode.
//
// n_moves is always the stored total plus n_game_moves, and game_id is always
// n_games + 1. Once the finished game is written its moves belong to the
// stored total, so during the pause n_game_moves is 0 and game_id names the
// game that starts after the reset.
func (s *Snapshotter) read(ctx context.Context) (domain.Snapshot, error) {
	b := s.table.board
	snap := domain.Snapshot{
		FEN:        b.FEN(),
		NGameMoves: b.FullMoves(),
		Turn:       turnLabel(b.Turn()),
		GameOver:   b.Terminal(),
	}
	if s.table.recorded {
		snap.NGameMoves = 0
	}

	st, err := s.store.Stats(ctx)
	if err != nil {
		return domain.Snapshot{}, err
	}
	snap.NGames = st.Games
	snap.NWhiteWins = st.WhiteWins
	snap.NBlackWins = st.BlackWins
	snap.NDraws = st.Draws
	snap.NMoves = st.TotalMoves + snap.NGameMoves
	snap.GameID = st.Games + 1
	return snap, nil
}

// unrecord turns a snapshot read after rec was written back into the view
// from just before the write.
func unrecord(snap domain.Snapshot, rec *domain.GameRecord) domain.Snapshot {
	snap.NGames--
	switch {
	case rec.IsDraw:
		snap.NDraws--
	case rec.Winner == domain.SideWhite:
		snap.NWhiteWins--
	case rec.Winner == domain.SideBlack:
		snap.NBlackWins--
	}
	snap.NGameMoves = rec.NMoves
	snap.GameID = snap.NGames + 1
	return snap
}

func turnLabel(s domain.Side) string {
	if s == domain.SideBlack {
		return "Black"
	}
	return "White"
}
