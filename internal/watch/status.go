package watch

import (
	"fmt"

	"github.com/park285/eternal-chess/internal/domain"
	"github.com/park285/eternal-chess/internal/msgcat"
	"github.com/park285/eternal-chess/pkg/eternaldto"
)

// StatusLine renders a one-line summary of a state update.
func StatusLine(c *msgcat.Catalog, st eternaldto.State) string {
	status := "in progress"
	if st.GameOver {
		status = "complete"
		st.GameID = domain.DisplayGameID(st.GameID, st.NGameMoves, true)
	}
	data := struct {
		eternaldto.State
		Status string
	}{State: st, Status: status}

	fallback := fmt.Sprintf("game #%d %s | move %d | %s to move", st.GameID, status, st.NGameMoves, st.Turn)
	return c.RenderOr("watch.status", data, fallback)
}
