package autoplay

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/park285/eternal-chess/internal/broadcast"
	"github.com/park285/eternal-chess/internal/domain"
	"github.com/park285/eternal-chess/internal/msgcat"
	"github.com/park285/eternal-chess/internal/rules"
	"github.com/park285/eternal-chess/internal/store"
	"go.uber.org/zap"
)

// State of the autoplay loop.
type State int32

const (
	StatePlaying State = iota
	StateGameOverPause
)

func (s State) String() string {
	switch s {
	case StatePlaying:
		return "PLAYING"
	case StateGameOverPause:
		return "GAME_OVER_PAUSE"
	default:
		return "UNKNOWN"
	}
}

type Options struct {
	MoveInterval  time.Duration
	SleepInterval time.Duration

	// RetryMax is the total number of write attempts for one finished game.
	RetryMax  int
	RetryBase time.Duration
	// StoreTimeout bounds each individual store call.
	StoreTimeout time.Duration

	Site string

	Now   func() time.Time
	Sleep func(ctx context.Context, d time.Duration) error
}

func (o *Options) normalize() {
	if o.RetryMax <= 0 {
		o.RetryMax = 5
	}
	if o.RetryBase <= 0 {
		o.RetryBase = 100 * time.Millisecond
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.Sleep == nil {
		o.Sleep = sleepWithContext
	}
}

type Scheduler struct {
	table     *Table
	store     store.Store
	snapshots *Snapshotter
	emitter   broadcast.Emitter
	source    MoveSource
	catalog   *msgcat.Catalog
	logger    *zap.Logger
	opts      Options

	state atomic.Int32
}

func NewScheduler(
	table *Table,
	st store.Store,
	snapshots *Snapshotter,
	emitter broadcast.Emitter,
	source MoveSource,
	catalog *msgcat.Catalog,
	logger *zap.Logger,
	opts Options,
) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if source == nil {
		source = NewUniformSource(0)
	}
	opts.normalize()
	return &Scheduler{
		table:     table,
		store:     st,
		snapshots: snapshots,
		emitter:   emitter,
		source:    source,
		catalog:   catalog,
		logger:    logger.Named("scheduler"),
		opts:      opts,
	}
}

func (s *Scheduler) State() State {
	return State(s.state.Load())
}

// Run ticks until ctx is cancelled or a fatal error stops the loop.
// Cancellation is a clean stop and returns nil.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("autoplay_started",
		zap.Duration("move_interval", s.opts.MoveInterval),
		zap.Duration("sleep_interval", s.opts.SleepInterval),
	)

	timer := time.NewTimer(s.opts.MoveInterval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("autoplay_stopped", zap.String("state", s.State().String()))
			return nil
		case <-timer.C:
		}

		next, err := s.Step(ctx)
		if err != nil {
			if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
				s.logger.Info("autoplay_stopped", zap.String("state", s.State().String()))
				return nil
			}
			s.logFatal(err)
			return err
		}
		timer.Reset(next)
	}
}

// Step performs exactly one transition and returns the delay before the next one.
func (s *Scheduler) Step(ctx context.Context) (time.Duration, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	switch s.State() {
	case StateGameOverPause:
		s.table.reset()
		s.state.Store(int32(StatePlaying))
		s.logger.Info("autoplay_board_reset")
		return s.opts.MoveInterval, nil
	case StatePlaying:
		terminal := false
		s.table.View(func(b *rules.Board) { terminal = b.Terminal() })
		if terminal {
			if err := s.finishGame(ctx); err != nil {
				return 0, err
			}
			s.state.Store(int32(StateGameOverPause))
			return s.opts.SleepInterval, nil
		}
		if err := s.playMove(ctx); err != nil {
			return 0, err
		}
		return s.opts.MoveInterval, nil
	default:
		return 0, &InvariantViolation{Reason: fmt.Sprintf("unknown scheduler state %d", s.State())}
	}
}

func (s *Scheduler) playMove(ctx context.Context) error {
	var legal []string
	s.table.View(func(b *rules.Board) { legal = b.LegalMoves() })
	if len(legal) == 0 {
		return &InvariantViolation{Reason: "no legal moves in a non-terminal position"}
	}

	idx := s.source.Pick(legal)
	if idx < 0 || idx >= len(legal) {
		return &InvariantViolation{Reason: fmt.Sprintf("move source picked index %d of %d", idx, len(legal))}
	}
	uci := legal[idx]
	if err := s.table.apply(uci); err != nil {
		return &InvariantViolation{Reason: "enumerated move rejected", Err: err}
	}
	s.logger.Debug("autoplay_move", zap.String("uci", uci), zap.Int("legal", len(legal)))

	s.emit(ctx, domain.EventMove)
	return nil
}

// finishGame writes the terminal game with bounded retry and then announces it.
// The scheduler only leaves PLAYING once the store has accepted the record.
// The game_over snapshot is taken under the same write guard as the write,
// before it, and sent only once the write succeeded.
func (s *Scheduler) finishGame(ctx context.Context) error {
	rec, err := s.buildRecord(ctx)
	if err != nil {
		return err
	}

	var (
		over     domain.Snapshot
		haveOver bool
	)
	for attempt := 1; ; attempt++ {
		err := s.table.persist(func() error {
			if !haveOver {
				over, haveOver = s.snapshotBeforeWrite(ctx)
			}
			wctx, cancel := s.storeContext(ctx)
			defer cancel()
			return s.store.RecordCompletedGame(wctx, rec)
		})
		if err == nil {
			s.logger.Info("autoplay_game_recorded",
				zap.String("game_id", rec.ID.String()),
				zap.Bool("is_draw", rec.IsDraw),
				zap.String("winner", rec.Winner.String()),
				zap.Int("n_moves", rec.NMoves),
				zap.Int("attempt", attempt),
			)
			break
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.logger.Warn("autoplay_record_failed",
			zap.String("error_class", "storage"),
			zap.String("game_id", rec.ID.String()),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", s.opts.RetryMax),
			zap.Error(err),
		)
		if attempt >= s.opts.RetryMax {
			return err
		}
		if sleepErr := s.opts.Sleep(ctx, backoffDuration(s.opts.RetryBase, attempt)); sleepErr != nil {
			return sleepErr
		}
	}

	if s.emitter == nil {
		return nil
	}
	if !haveOver {
		over, haveOver = s.snapshotAfterWrite(ctx, rec)
	}
	if haveOver {
		s.emitter.Emit(ctx, domain.EventGameOver, over)
	}
	return nil
}

// snapshotBeforeWrite runs inside persist, with the write guard held.
func (s *Scheduler) snapshotBeforeWrite(ctx context.Context) (domain.Snapshot, bool) {
	if s.emitter == nil {
		return domain.Snapshot{}, false
	}
	sctx, cancel := s.storeContext(ctx)
	defer cancel()
	snap, err := s.snapshots.read(sctx)
	if err != nil {
		s.logger.Warn("autoplay_snapshot_failed",
			zap.String("error_class", "storage"),
			zap.String("event", domain.EventGameOver),
			zap.Bool("before_write", true),
			zap.Error(err),
		)
		return domain.Snapshot{}, false
	}
	return snap, true
}

// snapshotAfterWrite rebuilds the pre-write view from the stored totals when no
// snapshot could be taken before the write. The read is tried twice.
func (s *Scheduler) snapshotAfterWrite(ctx context.Context, rec *domain.GameRecord) (domain.Snapshot, bool) {
	var err error
	for i := 0; i < 2; i++ {
		var snap domain.Snapshot
		if snap, err = s.snapshots.Snapshot(ctx); err == nil {
			return unrecord(snap, rec), true
		}
	}
	s.logger.Error("autoplay_snapshot_failed",
		zap.String("error_class", "storage"),
		zap.String("event", domain.EventGameOver),
		zap.String("game_id", rec.ID.String()),
		zap.Error(err),
	)
	return domain.Snapshot{}, false
}

func (s *Scheduler) buildRecord(ctx context.Context) (*domain.GameRecord, error) {
	var (
		res      rules.Result
		finished bool
		nMoves   int
		board    *rules.Board
	)
	s.table.View(func(b *rules.Board) {
		res, finished = b.Result()
		nMoves = b.FullMoves()
		board = b.Clone()
	})
	if !finished {
		return nil, &InvariantViolation{Reason: "terminal board reports no outcome"}
	}

	// round is the number this game will have once stored; 0 when unknown
	round := 0
	sctx, cancel := s.storeContext(ctx)
	games, err := s.store.CountGames(sctx)
	cancel()
	if err != nil {
		s.logger.Warn("autoplay_round_unknown", zap.String("error_class", "storage"), zap.Error(err))
	} else {
		round = games + 1
	}

	now := s.opts.Now()
	rec := &domain.GameRecord{
		ID:          uuid.New(),
		CompletedAt: now.UTC(),
		IsDraw:      res.IsDraw,
		NMoves:      nMoves,
		Winner:      res.Winner,
		PGN:         board.PGN(s.pgnTags(now, round, res)),
	}
	if !rec.Valid() {
		return nil, &InvariantViolation{Reason: "outcome with incoherent winner"}
	}
	return rec, nil
}

func (s *Scheduler) pgnTags(now time.Time, round int, res rules.Result) []rules.Tag {
	site := s.opts.Site
	if site == "" {
		site = "?"
	}
	roundText := "?"
	if round > 0 {
		roundText = strconv.Itoa(round)
	}
	return []rules.Tag{
		{Name: "Event", Value: s.catalog.RenderOr("pgn.event", nil, "Eternal Chess")},
		{Name: "Site", Value: s.catalog.RenderOr("pgn.site", map[string]any{"Site": site}, site)},
		{Name: "Date", Value: now.UTC().Format("2006.01.02")},
		{Name: "Round", Value: roundText},
		{Name: "White", Value: s.catalog.RenderOr("pgn.white", nil, "Random")},
		{Name: "Black", Value: s.catalog.RenderOr("pgn.black", nil, "Random")},
		{Name: "Result", Value: rules.ResultToken(res, true)},
		{Name: "Termination", Value: res.Method},
	}
}

func (s *Scheduler) emit(ctx context.Context, event string) {
	if s.emitter == nil {
		return
	}
	snap, err := s.snapshots.Snapshot(ctx)
	if err != nil {
		s.logger.Warn("autoplay_snapshot_failed",
			zap.String("error_class", "storage"),
			zap.String("event", event),
			zap.Error(err),
		)
		return
	}
	s.emitter.Emit(ctx, event, snap)
}

func (s *Scheduler) storeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.opts.StoreTimeout > 0 {
		return context.WithTimeout(ctx, s.opts.StoreTimeout)
	}
	return context.WithCancel(ctx)
}

func (s *Scheduler) logFatal(err error) {
	var iv *InvariantViolation
	var se *store.StorageError
	switch {
	case errors.As(err, &iv):
		s.logger.Error("autoplay_halted", zap.String("error_class", "invariant"), zap.Error(err))
	case errors.As(err, &se):
		s.logger.Error("autoplay_halted", zap.String("error_class", "storage"), zap.Error(err))
	default:
		s.logger.Error("autoplay_halted", zap.Error(err))
	}
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// backoffDuration doubles base per attempt; attempts past the sixth wait as long as the sixth.
func backoffDuration(base time.Duration, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > 6 {
		attempt = 6
	}
	return time.Duration(1<<uint(attempt-1)) * base
}
