package domain

import (
	"time"

	"github.com/google/uuid"
)

// Side identifies a chess side in stored results.
type Side string

const (
	SideWhite Side = "white"
	SideBlack Side = "black"
	SideNone  Side = ""
)

func (s Side) String() string {
	if s == SideNone {
		return "none"
	}
	return string(s)
}

// GameRecord is one completed game. Immutable once written.
type GameRecord struct {
	ID          uuid.UUID
	CompletedAt time.Time
	IsDraw      bool
	NMoves      int
	Winner      Side
	PGN         string
}

// Valid reports whether the winner/draw pair is coherent.
func (g *GameRecord) Valid() bool {
	if g == nil {
		return false
	}
	if g.IsDraw {
		return g.Winner == SideNone
	}
	return g.Winner == SideWhite || g.Winner == SideBlack
}

type AggregateStats struct {
	Games      int
	WhiteWins  int
	BlackWins  int
	Draws      int
	TotalMoves int
}

// Snapshot is the live view model pushed to viewers.
type Snapshot struct {
	FEN        string `json:"fen"`
	NGames     int    `json:"n_games"`
	NWhiteWins int    `json:"n_white_wins"`
	NBlackWins int    `json:"n_black_wins"`
	NDraws     int    `json:"n_draws"`
	NMoves     int    `json:"n_moves"`
	GameID     int    `json:"game_id"`
	NGameMoves int    `json:"n_game_moves"`
	Turn       string `json:"turn"`
	GameOver   bool   `json:"game_over"`
}

// Event names pushed to viewers.
const (
	EventConnectionEstablished = "connection_established"
	EventMove                  = "move"
	EventGameOver              = "game_over"
)

// DisplayGameID is the game number a viewer should see. During the pause the
// finished game is already counted, so game_id names the next game and the
// finished one is game_id - 1.
func DisplayGameID(gameID, nGameMoves int, gameOver bool) int {
	if gameOver && nGameMoves == 0 && gameID > 1 {
		return gameID - 1
	}
	return gameID
}
