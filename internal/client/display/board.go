package display

import (
	"fmt"
	"io"
	"strings"

	"llmchess/internal/core"
	"llmchess/internal/projection"
)

// Grid is the piece placement of a FEN, indexed [rank 8..1][file a..h]
type Grid [8][8]byte

// ParsePlacement reads the placement field of a FEN
func ParsePlacement(fen string) (Grid, error) {
	var g Grid
	parts := strings.Fields(fen)
	if len(parts) == 0 {
		return g, fmt.Errorf("invalid FEN: empty")
	}

	ranks := strings.Split(parts[0], "/")
	if len(ranks) != 8 {
		return g, fmt.Errorf("invalid FEN: expected 8 ranks")
	}

	for r := 0; r < 8; r++ {
		file := 0
		for _, ch := range ranks[r] {
			if ch >= '1' && ch <= '8' {
				file += int(ch - '0')
				continue
			}
			if file >= 8 {
				return g, fmt.Errorf("invalid FEN: too many pieces in rank %d", 8-r)
			}
			g[r][file] = byte(ch)
			file++
		}
		if file != 8 {
			return g, fmt.Errorf("invalid FEN: rank %d has %d files", 8-r, file)
		}
	}
	return g, nil
}

// PieceAt returns the FEN letter on square, 0 when empty or invalid
func (g Grid) PieceAt(square string) byte {
	if len(square) != 2 {
		return 0
	}
	if square[0] < 'a' || square[0] > 'h' || square[1] < '1' || square[1] > '8' {
		return 0
	}
	return g[int('8'-square[1])][int(square[0]-'a')]
}

// PieceColor returns the side owning the piece on square
func (g Grid) PieceColor(square string) core.Color {
	p := g.PieceAt(square)
	switch {
	case p == 0:
		return core.ColorNone
	case p >= 'A' && p <= 'Z':
		return core.ColorWhite
	default:
		return core.ColorBlack
	}
}

// kingSquare finds the king of side, empty when absent
func (g Grid) kingSquare(side core.Color) string {
	want := byte('k')
	if side == core.ColorWhite {
		want = 'K'
	}
	for r := 0; r < 8; r++ {
		for f := 0; f < 8; f++ {
			if g[r][f] == want {
				return fmt.Sprintf("%c%c", 'a'+f, '8'-r)
			}
		}
	}
	return ""
}

// squares lists board squares top-left to bottom-right as seen by orientation
func squares(orientation core.Color) [8][8]string {
	var out [8][8]string
	for row := 0; row < 8; row++ {
		for col := 0; col < 8; col++ {
			file, rank := col, 7-row
			if orientation == core.ColorBlack {
				file, rank = 7-col, row
			}
			out[row][col] = fmt.Sprintf("%c%c", 'a'+file, '1'+rank)
		}
	}
	return out
}

// ToASCII renders the placement without colors, oriented for the viewer
func (g Grid) ToASCII(orientation core.Color) string {
	var sb strings.Builder
	files := fileLabels(orientation)
	sb.WriteString("  " + files + "\n")
	for _, row := range squares(orientation) {
		rank := row[0][1:]
		sb.WriteString(rank + " ")
		for _, sq := range row {
			if p := g.PieceAt(sq); p != 0 {
				sb.WriteString(fmt.Sprintf("%c ", p))
			} else {
				sb.WriteString(". ")
			}
		}
		sb.WriteString(" " + rank + "\n")
	}
	sb.WriteString("  " + files)
	return sb.String()
}

func fileLabels(orientation core.Color) string {
	if orientation == core.ColorBlack {
		return "h g f e d c b a"
	}
	return "a b c d e f g h"
}

// RenderBoard writes a colored board for the projection. premove, when set,
// is highlighted as a queued move.
func RenderBoard(w io.Writer, p projection.Projection, premove [2]string) {
	g, err := ParsePlacement(p.FEN)
	if err != nil {
		fmt.Fprintf(w, "%s%v%s\n", Red, err, Reset)
		return
	}

	check := ""
	if p.Check {
		check = g.kingSquare(p.SideToMove)
	}
	marked := func(sq string) string {
		switch {
		case sq == check:
			return CheckBg
		case sq == p.LastMove.From || sq == p.LastMove.To:
			return HighlightBg
		case sq == premove[0] || sq == premove[1]:
			return Bold
		}
		return ""
	}

	files := fileLabels(p.Orientation)
	fmt.Fprintf(w, "  %s%s%s\n", Cyan, files, Reset)
	for _, row := range squares(p.Orientation) {
		rank := row[0][1:]
		fmt.Fprintf(w, "%s%s%s ", Cyan, rank, Reset)
		for _, sq := range row {
			bg := marked(sq)
			piece := g.PieceAt(sq)
			switch {
			case piece == 0:
				fmt.Fprintf(w, "%s.%s ", bg, Reset)
			case piece >= 'A' && piece <= 'Z':
				// White pieces - Blue
				fmt.Fprintf(w, "%s%s%c%s ", bg, Blue, piece, Reset)
			default:
				// Black pieces - Red
				fmt.Fprintf(w, "%s%s%c%s ", bg, Red, piece, Reset)
			}
		}
		fmt.Fprintf(w, " %s%s%s\n", Cyan, rank, Reset)
	}
	fmt.Fprintf(w, "  %s%s%s\n", Cyan, files, Reset)
}

// ColorForTurn returns colored turn indicator
func ColorForTurn(turn core.Color) string {
	if turn == core.ColorWhite {
		return Blue + "White" + Reset
	}
	return Red + "Black" + Reset
}

// StatusLine summarizes turn, mode and request state under the board
func StatusLine(p projection.Projection) string {
	var parts []string

	switch {
	case p.Outcome.Over():
		parts = append(parts, Yellow+p.Outcome.String()+Reset)
	case p.Check:
		parts = append(parts, ColorForTurn(p.SideToMove)+" to move, "+Red+"check"+Reset)
	default:
		parts = append(parts, ColorForTurn(p.SideToMove)+" to move")
	}

	parts = append(parts, p.Mode.String())
	if p.Length > 1 {
		parts = append(parts, fmt.Sprintf("ply %d/%d", p.Cursor, p.Length-1))
	}
	if !p.AtLatest() {
		parts = append(parts, Yellow+"browsing history"+Reset)
	}
	if p.Loading {
		parts = append(parts, Magenta+"thinking..."+Reset)
	}
	if p.Mode == core.ModeAutomatedVsAutomated && p.AutoPlayPaused {
		parts = append(parts, "paused")
	}
	return strings.Join(parts, " | ")
}

// NoticeLine formats the active notice, empty when there is none
func NoticeLine(n core.Notice) string {
	switch n.Kind {
	case core.NoticeError:
		return Red + n.Text + Reset
	case core.NoticeGameOver:
		return Green + n.Text + Reset
	case core.NoticeInfo:
		return Cyan + n.Text + Reset
	default:
		return ""
	}
}

// MoveList numbers SAN moves in pairs: "1. e4 e5 2. Nf3"
func MoveList(sans []string) string {
	var sb strings.Builder
	for i, san := range sans {
		if i%2 == 0 {
			if i > 0 {
				sb.WriteByte(' ')
			}
			fmt.Fprintf(&sb, "%d. ", i/2+1)
		} else {
			sb.WriteByte(' ')
		}
		sb.WriteString(san)
	}
	return sb.String()
}
