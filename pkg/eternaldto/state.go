package eternaldto

// State is the live board view pushed to viewers and served by /api/state.
type State struct {
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

// Event is the websocket and Redis envelope.
type Event struct {
	Event string `json:"event"`
	Data  State  `json:"data"`
}

type StateResponse struct {
	State
	Headline string `json:"headline"`
}

type StatusResponse struct {
	Status string `json:"status"`
}
