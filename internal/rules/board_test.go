package rules

import (
	"errors"
	"strings"
	"testing"

	"github.com/park285/eternal-chess/internal/domain"
)

func playAll(t *testing.T, b *Board, moves ...string) {
	t.Helper()
	for _, mv := range moves {
		if err := b.Apply(mv); err != nil {
			t.Fatalf("Apply(%s): %v", mv, err)
		}
	}
}

func TestNewBoardStartPosition(t *testing.T) {
	b := NewBoard()
	if b.FEN() != StartFEN {
		t.Fatalf("unexpected start FEN: %s", b.FEN())
	}
	if b.Turn() != domain.SideWhite {
		t.Fatalf("expected white to move, got %s", b.Turn())
	}
	if got := len(b.LegalMoves()); got != 20 {
		t.Fatalf("expected 20 legal moves at start, got %d", got)
	}
	if b.FullMoves() != 0 || !b.AtStart() {
		t.Fatalf("expected untouched board, fullmoves=%d", b.FullMoves())
	}
}

func TestApplyRejectsIllegal(t *testing.T) {
	b := NewBoard()
	err := b.Apply("e2e5")
	if !errors.Is(err, ErrIllegalMove) {
		t.Fatalf("expected ErrIllegalMove, got %v", err)
	}
	if b.Plies() != 0 {
		t.Fatalf("illegal move must not change the board")
	}
}

func TestFoolsMateOutcome(t *testing.T) {
	b := NewBoard()
	playAll(t, b, "f2f3", "e7e5", "g2g4", "d8h4")

	if !b.Terminal() {
		t.Fatalf("expected terminal position")
	}
	res, ok := b.Result()
	if !ok || res.IsDraw || res.Winner != domain.SideBlack {
		t.Fatalf("unexpected result: %+v ok=%v", res, ok)
	}
	if res.Method != "checkmate" {
		t.Fatalf("expected checkmate method, got %q", res.Method)
	}
	if b.FullMoves() != 2 {
		t.Fatalf("expected 2 full moves, got %d", b.FullMoves())
	}
	if len(b.LegalMoves()) != 0 {
		t.Fatalf("terminal position must not list moves")
	}
}

func TestFullMovesCounting(t *testing.T) {
	b := NewBoard()
	playAll(t, b, "e2e4")
	if b.FullMoves() != 1 {
		t.Fatalf("after 1 ply: %d", b.FullMoves())
	}
	playAll(t, b, "e7e5")
	if b.FullMoves() != 1 {
		t.Fatalf("after 2 plies: %d", b.FullMoves())
	}
	playAll(t, b, "g1f3")
	if b.FullMoves() != 2 {
		t.Fatalf("after 3 plies: %d", b.FullMoves())
	}
}

func TestResetAfterGame(t *testing.T) {
	b := NewBoard()
	playAll(t, b, "f2f3", "e7e5", "g2g4", "d8h4")
	b.Reset()
	if !b.AtStart() || b.Turn() != domain.SideWhite || b.Terminal() {
		t.Fatalf("reset did not restore the start position: %s", b.FEN())
	}
}

func TestPGNIncludesTagsAndMoves(t *testing.T) {
	b := NewBoard()
	playAll(t, b, "f2f3", "e7e5", "g2g4", "d8h4")
	pgn := b.PGN([]Tag{{Name: "Event", Value: "Eternal \"Chess\""}, {Name: "White", Value: "Random"}})

	for _, want := range []string{
		`[Event "Eternal 'Chess'"]`,
		`[White "Random"]`,
		`[Result "0-1"]`,
		"1. f3 e5 2. g4 Qh4#",
	} {
		if !strings.Contains(pgn, want) {
			t.Fatalf("pgn missing %q:\n%s", want, pgn)
		}
	}
	if !strings.HasSuffix(pgn, "0-1") {
		t.Fatalf("pgn must end with result token:\n%s", pgn)
	}
}

func TestLastMove(t *testing.T) {
	b := NewBoard()
	if _, _, ok := b.LastMove(); ok {
		t.Fatalf("no last move expected at start")
	}
	playAll(t, b, "e2e4")
	from, to, ok := b.LastMove()
	if !ok || from.String() != "e2" || to.String() != "e4" {
		t.Fatalf("unexpected last move %s-%s ok=%v", from, to, ok)
	}
}
