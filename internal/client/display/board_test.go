package display

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"llmchess/internal/core"
	"llmchess/internal/position"
	"llmchess/internal/projection"
)

func TestParsePlacement(t *testing.T) {
	g, err := ParsePlacement(position.StartingFEN)
	require.NoError(t, err)

	assert.Equal(t, byte('K'), g.PieceAt("e1"))
	assert.Equal(t, byte('q'), g.PieceAt("d8"))
	assert.Equal(t, byte(0), g.PieceAt("e4"))
	assert.Equal(t, byte(0), g.PieceAt("z9"))
	assert.Equal(t, core.ColorWhite, g.PieceColor("a2"))
	assert.Equal(t, core.ColorBlack, g.PieceColor("h7"))
	assert.Equal(t, core.ColorNone, g.PieceColor("c4"))
}

func TestParsePlacementRejectsBadRanks(t *testing.T) {
	for _, fen := range []string{"", "8/8/8 w - - 0 1", "9/8/8/8/8/8/8/8 w - - 0 1", "ppppppppp/8/8/8/8/8/8/8 w - - 0 1"} {
		_, err := ParsePlacement(fen)
		assert.Error(t, err, fen)
	}
}

func TestToASCIIOrientation(t *testing.T) {
	g, err := ParsePlacement(position.StartingFEN)
	require.NoError(t, err)

	white := strings.Split(g.ToASCII(core.ColorWhite), "\n")
	assert.Equal(t, "  a b c d e f g h", white[0])
	assert.Equal(t, "8 r n b q k b n r  8", white[1])
	assert.Equal(t, "1 R N B Q K B N R  1", white[8])

	black := strings.Split(g.ToASCII(core.ColorBlack), "\n")
	assert.Equal(t, "  h g f e d c b a", black[0])
	assert.Equal(t, "1 R N B K Q B N R  1", black[1])
}

func TestRenderBoardHighlightsCheck(t *testing.T) {
	var buf bytes.Buffer
	RenderBoard(&buf, projection.Projection{
		FEN:         "rnb1kbnr/pppp1ppp/8/4p3/6Pq/5P2/PPPPP2P/RNBQKBNR w KQkq - 1 3",
		Orientation: core.ColorWhite,
		SideToMove:  core.ColorWhite,
		Check:       true,
		LastMove:    projection.Highlight{From: "d8", To: "h4"},
	}, [2]string{})

	out := buf.String()
	assert.Contains(t, out, CheckBg+Blue+"K")
	assert.Contains(t, out, HighlightBg+Red+"q")
}

func TestMoveList(t *testing.T) {
	assert.Equal(t, "", MoveList(nil))
	assert.Equal(t, "1. e4", MoveList([]string{"e4"}))
	assert.Equal(t, "1. e4 e5 2. Nf3", MoveList([]string{"e4", "e5", "Nf3"}))
}

func TestStatusLine(t *testing.T) {
	p := projection.Projection{
		SideToMove:     core.ColorBlack,
		Mode:           core.ModeAutomatedVsAutomated,
		AutoPlayPaused: true,
		Loading:        true,
		Cursor:         1,
		Length:         3,
	}
	line := StatusLine(p)
	assert.Contains(t, line, "to move")
	assert.Contains(t, line, "ply 1/2")
	assert.Contains(t, line, "browsing history")
	assert.Contains(t, line, "thinking...")
	assert.Contains(t, line, "paused")
}
