package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/park285/eternal-chess/internal/domain"
)

type postgres struct {
	db *sql.DB
}

// NewPostgres builds a Store over an existing connection pool. The caller owns
// pool settings; Close closes the pool.
func NewPostgres(db *sql.DB) Store {
	return &postgres{db: db}
}

func (r *postgres) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

func (r *postgres) RecordCompletedGame(ctx context.Context, rec *domain.GameRecord) error {
	if err := validate(rec); err != nil {
		return wrap("record", err)
	}

	var winner sql.NullString
	if !rec.IsDraw {
		winner = sql.NullString{String: string(rec.Winner), Valid: true}
	}

	const query = `
		INSERT INTO chess_game (
			game_id,
			completion_date,
			is_draw,
			n_moves,
			winner,
			pgn
		)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (game_id) DO NOTHING
		RETURNING id`

	var id sql.NullInt64
	err := r.db.QueryRowContext(
		ctx,
		query,
		rec.ID.String(),
		rec.CompletedAt.UTC(),
		rec.IsDraw,
		rec.NMoves,
		winner,
		rec.PGN,
	).Scan(&id)
	if err == sql.ErrNoRows || (err == nil && !id.Valid) {
		// a previous attempt already committed this game
		return nil
	}
	if err != nil {
		return wrap("record", fmt.Errorf("insert chess game: %w", err))
	}
	return nil
}

func (r *postgres) countWhere(ctx context.Context, op, query string, args ...any) (int, error) {
	var n sql.NullInt64
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, wrap(op, err)
	}
	if !n.Valid {
		return 0, nil
	}
	return int(n.Int64), nil
}

func (r *postgres) CountGames(ctx context.Context) (int, error) {
	return r.countWhere(ctx, "count_games", `SELECT COUNT(*) FROM chess_game`)
}

func (r *postgres) CountWins(ctx context.Context, side domain.Side) (int, error) {
	if side != domain.SideWhite && side != domain.SideBlack {
		return 0, wrap("count_wins", fmt.Errorf("invalid side %q", side))
	}
	return r.countWhere(ctx, "count_wins", `SELECT COUNT(*) FROM chess_game WHERE winner = $1`, string(side))
}

func (r *postgres) CountDraws(ctx context.Context) (int, error) {
	return r.countWhere(ctx, "count_draws", `SELECT COUNT(*) FROM chess_game WHERE is_draw`)
}

func (r *postgres) SumMoves(ctx context.Context) (int, error) {
	return r.countWhere(ctx, "sum_moves", `SELECT COALESCE(SUM(n_moves), 0) FROM chess_game`)
}

func (r *postgres) Stats(ctx context.Context) (domain.AggregateStats, error) {
	const query = `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE winner = 'white'),
			COUNT(*) FILTER (WHERE winner = 'black'),
			COUNT(*) FILTER (WHERE is_draw),
			COALESCE(SUM(n_moves), 0)
		FROM chess_game`

	var st domain.AggregateStats
	err := r.db.QueryRowContext(ctx, query).Scan(
		&st.Games,
		&st.WhiteWins,
		&st.BlackWins,
		&st.Draws,
		&st.TotalMoves,
	)
	if err != nil {
		return domain.AggregateStats{}, wrap("stats", err)
	}
	return st, nil
}

func (r *postgres) ListAllGames(ctx context.Context) ([]*domain.GameRecord, error) {
	const query = `
		SELECT
			game_id,
			completion_date,
			is_draw,
			n_moves,
			winner,
			pgn
		FROM chess_game
		ORDER BY id ASC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, wrap("list_games", fmt.Errorf("select chess games: %w", err))
	}
	defer rows.Close()

	games := make([]*domain.GameRecord, 0)
	for rows.Next() {
		var (
			rec    domain.GameRecord
			gameID string
			winner sql.NullString
		)
		if err := rows.Scan(
			&gameID,
			&rec.CompletedAt,
			&rec.IsDraw,
			&rec.NMoves,
			&winner,
			&rec.PGN,
		); err != nil {
			return nil, wrap("list_games", fmt.Errorf("scan chess game: %w", err))
		}
		id, err := parseGameID(gameID)
		if err != nil {
			return nil, wrap("list_games", err)
		}
		rec.ID = id
		if winner.Valid {
			rec.Winner = domain.Side(winner.String)
		}
		games = append(games, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("list_games", err)
	}
	return games, nil
}
