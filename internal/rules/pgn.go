package rules

import (
	"fmt"
	"strings"

	"github.com/park285/eternal-chess/internal/domain"
)

// Tag is one PGN header pair. Order is preserved on output.
type Tag struct {
	Name  string
	Value string
}

// ResultToken maps a result to the PGN result token.
func ResultToken(r Result, finished bool) string {
	if !finished {
		return "*"
	}
	if r.IsDraw {
		return "1/2-1/2"
	}
	switch r.Winner {
	case domain.SideWhite:
		return "1-0"
	case domain.SideBlack:
		return "0-1"
	default:
		return "*"
	}
}

// PGN serializes the board's move list with the given tags. A Result tag is
// appended from the board outcome when tags do not carry one.
func (b *Board) PGN(tags []Tag) string {
	res, finished := b.Result()
	token := ResultToken(res, finished)

	var sb strings.Builder
	hasResult := false
	for _, t := range tags {
		name := sanitizePGN(t.Name)
		if name == "" {
			continue
		}
		if strings.EqualFold(name, "Result") {
			hasResult = true
		}
		sb.WriteString(fmt.Sprintf("[%s \"%s\"]\n", name, sanitizePGN(t.Value)))
	}
	if !hasResult {
		sb.WriteString(fmt.Sprintf("[Result \"%s\"]\n", token))
	}
	sb.WriteString("\n")

	san := b.MovesSAN()
	for i := 0; i < len(san); i += 2 {
		sb.WriteString(fmt.Sprintf("%d. %s", i/2+1, strings.TrimSpace(san[i])))
		if i+1 < len(san) {
			sb.WriteString(" ")
			sb.WriteString(strings.TrimSpace(san[i+1]))
		}
		sb.WriteString(" ")
	}
	sb.WriteString(token)
	return sb.String()
}

func sanitizePGN(s string) string {
	s = strings.ReplaceAll(s, "\\", " ")
	s = strings.ReplaceAll(s, "\"", "'")
	return strings.TrimSpace(s)
}
