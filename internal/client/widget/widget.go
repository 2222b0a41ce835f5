// Package widget is the terminal board. It renders projections from the
// session and turns typed moves into session events, holding at most one
// premove until its side may move.
package widget

import (
	"errors"
	"fmt"
	"io"
	"slices"
	"sync"

	"llmchess/internal/client/display"
	"llmchess/internal/core"
	"llmchess/internal/position"
	"llmchess/internal/projection"
	"llmchess/internal/session"
)

var (
	ErrNotMovable  = errors.New("the board does not accept moves right now")
	ErrNotYourTurn = errors.New("not your piece to move")
	ErrIllegal     = errors.New("illegal move")
)

type premove struct {
	move position.Move
	side core.Color
}

// Widget implements session.Renderer
type Widget struct {
	mu      sync.Mutex
	out     io.Writer
	post    func(session.Event)
	last    projection.Projection
	shown   bool
	premove *premove
	quiet   bool
}

// New creates a widget writing to out and posting moves through post
func New(out io.Writer, post func(session.Event)) *Widget {
	return &Widget{out: out, post: post}
}

// SetQuiet suppresses board output; moves and premoves still work
func (w *Widget) SetQuiet(quiet bool) {
	w.mu.Lock()
	w.quiet = quiet
	w.mu.Unlock()
}

// Last returns the most recent projection
func (w *Widget) Last() projection.Projection {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.last
}

// Premove returns the queued premove, if any
func (w *Widget) Premove() (position.Move, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.premove == nil {
		return position.Move{}, false
	}
	return w.premove.move, true
}

// Render is called from the session loop for every state change
func (w *Widget) Render(p projection.Projection) {
	w.mu.Lock()
	if p.CancelPremove || !p.PremovesEnabled {
		w.premove = nil
	}
	changed := !w.shown || boardChanged(w.last, p)
	w.last = p
	w.shown = true

	var fire *premove
	if w.premove != nil && p.MovableSide == w.premove.side {
		fire = w.premove
		w.premove = nil
	}
	quiet := w.quiet
	w.mu.Unlock()

	if changed && !quiet {
		w.Show()
	}

	if fire != nil {
		if !legal(p.Destinations, fire.move) {
			w.printf("%sPremove %s dropped: no longer legal%s\n", display.Yellow, fire.move.UCI(), display.Reset)
			return
		}
		// Render runs on the session loop; posting from it must not block
		go w.post(session.UserMoved{From: fire.move.From, To: fire.move.To, Promotion: fire.move.Promotion})
	}
}

// Move submits a typed move. When the side owning the piece may not move
// yet and premoves are armed, the move is queued as a premove.
func (w *Widget) Move(mv position.Move) error {
	w.mu.Lock()
	p := w.last
	grid, err := display.ParsePlacement(p.FEN)
	if err != nil {
		w.mu.Unlock()
		return err
	}
	side := grid.PieceColor(mv.From)

	switch {
	case p.MovableSide != core.ColorNone && side == p.MovableSide:
		w.mu.Unlock()
		if !legal(p.Destinations, mv) {
			return fmt.Errorf("%w: %s", ErrIllegal, mv.UCI())
		}
		w.post(session.UserMoved{From: mv.From, To: mv.To, Promotion: mv.Promotion})
		return nil

	case p.PremovesEnabled && side != core.ColorNone && side != p.SideToMove && humanSide(p, side):
		w.premove = &premove{move: mv, side: side}
		w.mu.Unlock()
		w.printf("%sPremove %s queued%s\n", display.Cyan, mv.UCI(), display.Reset)
		return nil

	default:
		w.mu.Unlock()
		if p.MovableSide == core.ColorNone {
			return ErrNotMovable
		}
		return ErrNotYourTurn
	}
}

// CancelPremove drops the queued premove
func (w *Widget) CancelPremove() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	had := w.premove != nil
	w.premove = nil
	return had
}

// Show prints the board for the last projection
func (w *Widget) Show() {
	w.mu.Lock()
	p := w.last
	var pm [2]string
	if w.premove != nil {
		pm = [2]string{w.premove.move.From, w.premove.move.To}
	}
	w.mu.Unlock()

	fmt.Fprintln(w.out)
	display.RenderBoard(w.out, p, pm)
	fmt.Fprintln(w.out, display.StatusLine(p))
	if len(p.SANs) > 0 {
		fmt.Fprintln(w.out, display.MoveList(p.SANs))
	}
	if line := display.NoticeLine(p.Notice); line != "" {
		fmt.Fprintln(w.out, line)
	}
	if p.CredentialPrompt {
		fmt.Fprintf(w.out, "%sAn API key is required. Use 'key' to enter one.%s\n", display.Yellow, display.Reset)
	}
}

func (w *Widget) printf(format string, args ...any) {
	fmt.Fprintf(w.out, format, args...)
}

// humanSide reports whether side is played from this board
func humanSide(p projection.Projection, side core.Color) bool {
	switch p.Mode {
	case core.ModeHumanVsHuman:
		return true
	case core.ModeHumanVsAutomated:
		return side == p.Orientation
	default:
		return false
	}
}

func legal(dests position.Dests, mv position.Move) bool {
	return slices.Contains(dests[mv.From], mv.To)
}

// boardChanged ignores fields that do not affect what the board shows
func boardChanged(a, b projection.Projection) bool {
	return a.FEN != b.FEN ||
		a.Orientation != b.Orientation ||
		a.MovableSide != b.MovableSide ||
		a.Cursor != b.Cursor ||
		a.Length != b.Length ||
		a.Loading != b.Loading ||
		a.Mode != b.Mode ||
		a.AutoPlayPaused != b.AutoPlayPaused ||
		a.Notice != b.Notice ||
		a.CredentialPrompt != b.CredentialPrompt
}
