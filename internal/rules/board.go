package rules

import (
	"errors"
	"fmt"
	"strings"

	nchess "github.com/corentings/chess/v2"
	"github.com/park285/eternal-chess/internal/domain"
)

var ErrIllegalMove = errors.New("illegal chess move")

// StartFEN is the standard initial position.
const StartFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

// Board wraps a chess game. Not safe for concurrent use; callers guard it.
type Board struct {
	game *nchess.Game
}

func NewBoard() *Board {
	return &Board{game: nchess.NewGame()}
}

// Reset returns the board to the initial position with White to move.
func (b *Board) Reset() {
	b.game = nchess.NewGame()
}

// LegalMoves lists the legal moves of the current position in UCI notation.
func (b *Board) LegalMoves() []string {
	if b.Terminal() {
		return nil
	}
	valid := b.game.ValidMoves()
	out := make([]string, 0, len(valid))
	for i := range valid {
		out = append(out, valid[i].String())
	}
	return out
}

// Apply plays a UCI move. The move must be a member of LegalMoves.
func (b *Board) Apply(uci string) error {
	uci = strings.ToLower(strings.TrimSpace(uci))
	legal := false
	for _, mv := range b.LegalMoves() {
		if mv == uci {
			legal = true
			break
		}
	}
	if !legal {
		return fmt.Errorf("%w: %s", ErrIllegalMove, uci)
	}
	if err := b.game.PushNotationMove(uci, nchess.UCINotation{}, nil); err != nil {
		return fmt.Errorf("apply move %s: %w", uci, err)
	}
	return nil
}

func (b *Board) Terminal() bool {
	return b.game.Outcome() != nchess.NoOutcome
}

func (b *Board) FEN() string {
	return b.game.FEN()
}

// Plies is the number of half-moves played in the current game.
func (b *Board) Plies() int {
	return len(b.game.Moves())
}

// FullMoves counts full moves begun: 0 at the start, 1 after 1. e4, 1 after 1... e5, 2 after 2. Nf3.
func (b *Board) FullMoves() int {
	return (b.Plies() + 1) / 2
}

func (b *Board) Turn() domain.Side {
	if b.game.Position().Turn() == nchess.White {
		return domain.SideWhite
	}
	return domain.SideBlack
}

// AtStart reports whether the board is at the initial position with no moves played.
func (b *Board) AtStart() bool {
	return b.Plies() == 0 && b.FEN() == StartFEN
}

// Result describes how a finished game ended.
type Result struct {
	IsDraw bool
	Winner domain.Side
	Method string
}

// Result returns the outcome; ok is false while the game is still running.
func (b *Board) Result() (Result, bool) {
	method := strings.ToLower(b.game.Method().String())
	switch b.game.Outcome() {
	case nchess.WhiteWon:
		return Result{Winner: domain.SideWhite, Method: method}, true
	case nchess.BlackWon:
		return Result{Winner: domain.SideBlack, Method: method}, true
	case nchess.Draw:
		return Result{IsDraw: true, Winner: domain.SideNone, Method: method}, true
	default:
		return Result{}, false
	}
}

func (b *Board) MovesUCI() []string {
	moves := b.game.Moves()
	out := make([]string, len(moves))
	for i, mv := range moves {
		out[i] = mv.String()
	}
	return out
}

func (b *Board) MovesSAN() []string {
	positions := b.game.Positions()
	moves := b.game.Moves()
	out := make([]string, len(moves))
	notation := nchess.AlgebraicNotation{}
	for i, mv := range moves {
		if i < len(positions) {
			out[i] = notation.Encode(positions[i], mv)
		}
	}
	return out
}

// LastMove returns the squares of the most recent move.
func (b *Board) LastMove() (from, to nchess.Square, ok bool) {
	moves := b.game.Moves()
	if len(moves) == 0 {
		return nchess.NoSquare, nchess.NoSquare, false
	}
	mv := moves[len(moves)-1]
	return mv.S1(), mv.S2(), true
}

// Squares exposes the piece placement for rendering.
func (b *Board) Squares() *nchess.Board {
	return b.game.Position().Board()
}

// Clone returns an independent copy of the board.
func (b *Board) Clone() *Board {
	return &Board{game: b.game.Clone()}
}
