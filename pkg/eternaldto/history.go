package eternaldto

import "time"

type Stats struct {
	Games      int `json:"n_games"`
	WhiteWins  int `json:"n_white_wins"`
	BlackWins  int `json:"n_black_wins"`
	Draws      int `json:"n_draws"`
	TotalMoves int `json:"n_moves"`
}

// GameRecord is one stored game. Winner is nil for draws.
type GameRecord struct {
	Number         int       `json:"number"`
	GameID         string    `json:"game_id"`
	CompletionDate time.Time `json:"completion_date"`
	IsDraw         bool      `json:"is_draw"`
	NMoves         int       `json:"n_moves"`
	Winner         *string   `json:"winner"`
	PGN            string    `json:"pgn"`
}

type GameList struct {
	Games []GameRecord `json:"games"`
}
