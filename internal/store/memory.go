package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/park285/eternal-chess/internal/domain"
)

// memory is an in-process Store for development and tests.
type memory struct {
	mu sync.RWMutex

	games []*domain.GameRecord // insertion order
	byID  map[uuid.UUID]struct{}
}

func NewMemory() Store {
	return &memory{byID: make(map[uuid.UUID]struct{})}
}

func (m *memory) Close() error { return nil }

func (m *memory) RecordCompletedGame(ctx context.Context, rec *domain.GameRecord) error {
	if err := validate(rec); err != nil {
		return wrap("record", err)
	}
	if err := ctx.Err(); err != nil {
		return wrap("record", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.byID[rec.ID]; exists {
		return nil
	}
	cp := *rec
	m.games = append(m.games, &cp)
	m.byID[rec.ID] = struct{}{}
	return nil
}

func (m *memory) CountGames(ctx context.Context) (int, error) {
	st, err := m.Stats(ctx)
	return st.Games, err
}

func (m *memory) CountWins(ctx context.Context, side domain.Side) (int, error) {
	if side != domain.SideWhite && side != domain.SideBlack {
		return 0, wrap("count_wins", fmt.Errorf("invalid side %q", side))
	}
	st, err := m.Stats(ctx)
	if side == domain.SideWhite {
		return st.WhiteWins, err
	}
	return st.BlackWins, err
}

func (m *memory) CountDraws(ctx context.Context) (int, error) {
	st, err := m.Stats(ctx)
	return st.Draws, err
}

func (m *memory) SumMoves(ctx context.Context) (int, error) {
	st, err := m.Stats(ctx)
	return st.TotalMoves, err
}

func (m *memory) Stats(ctx context.Context) (domain.AggregateStats, error) {
	if err := ctx.Err(); err != nil {
		return domain.AggregateStats{}, wrap("stats", err)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var st domain.AggregateStats
	for _, g := range m.games {
		st.Games++
		st.TotalMoves += g.NMoves
		switch {
		case g.IsDraw:
			st.Draws++
		case g.Winner == domain.SideWhite:
			st.WhiteWins++
		case g.Winner == domain.SideBlack:
			st.BlackWins++
		}
	}
	return st, nil
}

func (m *memory) ListAllGames(ctx context.Context) ([]*domain.GameRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, wrap("list_games", err)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*domain.GameRecord, len(m.games))
	for i, g := range m.games {
		cp := *g
		out[i] = &cp
	}
	return out, nil
}

func parseGameID(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("parse game id %q: %w", raw, err)
	}
	return id, nil
}
