package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	_ "github.com/lib/pq"
	"github.com/park285/eternal-chess/internal/domain"
)

var (
	ErrNilRecord      = errors.New("nil game record")
	ErrInvalidRecord  = errors.New("winner must be set exactly when the game is not a draw")
	ErrUnsupportedURL = errors.New("unsupported storage url")
)

// StorageError wraps every failure surfaced by a Store.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *StorageError
	if errors.As(err, &se) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}

// Store is the append-only record of completed games.
type Store interface {
	// RecordCompletedGame appends one record. Writing the same record ID twice
	// keeps a single row and reports success.
	RecordCompletedGame(ctx context.Context, rec *domain.GameRecord) error
	CountGames(ctx context.Context) (int, error)
	CountWins(ctx context.Context, side domain.Side) (int, error)
	CountDraws(ctx context.Context) (int, error)
	SumMoves(ctx context.Context) (int, error)
	// Stats reads every aggregate counter in one consistent read.
	Stats(ctx context.Context) (domain.AggregateStats, error)
	// ListAllGames returns all records in insertion order.
	ListAllGames(ctx context.Context) ([]*domain.GameRecord, error)
	Close() error
}

func validate(rec *domain.GameRecord) error {
	if rec == nil {
		return ErrNilRecord
	}
	if !rec.Valid() {
		return ErrInvalidRecord
	}
	if rec.NMoves < 0 {
		return fmt.Errorf("negative move count %d", rec.NMoves)
	}
	return nil
}

// Open selects a Store by URL scheme: postgres:// or postgresql:// for the
// database store, memory:// for the in-process store.
func Open(ctx context.Context, rawURL string) (Store, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return nil, fmt.Errorf("parse storage url: %w", err)
	}
	switch strings.ToLower(u.Scheme) {
	case "memory":
		return NewMemory(), nil
	case "postgres", "postgresql":
		db, err := sql.Open("postgres", rawURL)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		db.SetMaxOpenConns(16)
		db.SetMaxIdleConns(8)
		db.SetConnMaxLifetime(30 * time.Minute)

		pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := db.PingContext(pctx); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("ping postgres: %w", err)
		}
		return NewPostgres(db), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedURL, u.Scheme)
	}
}
