// Package position is the rules authority: it validates and applies moves
// against FEN positions and reports game-over conditions.
package position

import (
	"sort"
	"strings"

	"github.com/notnil/chess"
	"github.com/pkg/errors"

	"llmchess/internal/core"
)

const StartingFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

var (
	ErrInvalidFEN    = errors.New("invalid FEN")
	ErrInvalidSquare = errors.New("invalid square")
	ErrIllegalMove   = errors.New("illegal move")
)

// Move is a proposed move as origin and destination squares. Promotion is
// one of "q", "r", "b", "n" or empty for the default choice.
type Move struct {
	From      string `json:"from"`
	To        string `json:"to"`
	Promotion string `json:"promotion,omitempty"`
}

// UCI returns the move in UCI notation
func (m Move) UCI() string {
	return m.From + m.To + m.Promotion
}

// Applied is the result of a validated move
type Applied struct {
	FEN     string
	UCI     string
	SAN     string
	From    string
	To      string
	Turn    core.Color // side to move in the resulting position
	Check   bool       // side to move is in check
	Outcome core.Outcome
}

// Dests maps an origin square to its legal destination squares
type Dests map[string][]string

// Authority owns the legal-move rules for positions
type Authority interface {
	Start() string
	SideToMove(fen string) (core.Color, error)
	LegalDestinations(fen string) (Dests, error)
	Apply(fen string, mv Move) (Applied, error)
	Status(fen string) (core.Outcome, error)
}

// Rules implements Authority on top of notnil/chess
type Rules struct{}

func New() *Rules {
	return &Rules{}
}

func (r *Rules) Start() string {
	return StartingFEN
}

func (r *Rules) load(fen string) (*chess.Game, error) {
	opt, err := chess.FEN(strings.TrimSpace(fen))
	if err != nil {
		return nil, errors.Wrapf(ErrInvalidFEN, "%q: %v", fen, err)
	}
	return chess.NewGame(opt), nil
}

func (r *Rules) SideToMove(fen string) (core.Color, error) {
	g, err := r.load(fen)
	if err != nil {
		return core.ColorNone, err
	}
	return colorOf(g.Position().Turn()), nil
}

func (r *Rules) LegalDestinations(fen string) (Dests, error) {
	g, err := r.load(fen)
	if err != nil {
		return nil, err
	}

	dests := make(Dests)
	for _, m := range g.ValidMoves() {
		from, to := m.S1().String(), m.S2().String()
		// promotions yield one move per piece, same destination
		if !contains(dests[from], to) {
			dests[from] = append(dests[from], to)
		}
	}
	for _, list := range dests {
		sort.Strings(list)
	}
	return dests, nil
}

// LegalMoves returns every legal move in UCI notation, sorted
func (r *Rules) LegalMoves(fen string) ([]string, error) {
	g, err := r.load(fen)
	if err != nil {
		return nil, err
	}

	pos := g.Position()
	moves := make([]string, 0, len(g.ValidMoves()))
	for _, m := range g.ValidMoves() {
		moves = append(moves, chess.UCINotation{}.Encode(pos, m))
	}
	sort.Strings(moves)
	return moves, nil
}

// Apply validates mv against fen and returns the resulting position. An
// unspecified promotion on a promoting move defaults to a queen.
func (r *Rules) Apply(fen string, mv Move) (Applied, error) {
	if !validSquare(mv.From) || !validSquare(mv.To) {
		return Applied{}, errors.Wrapf(ErrInvalidSquare, "%s-%s", mv.From, mv.To)
	}

	g, err := r.load(fen)
	if err != nil {
		return Applied{}, err
	}

	promo, ok := promotionPiece(mv.Promotion)
	if !ok {
		return Applied{}, errors.Wrapf(ErrIllegalMove, "bad promotion %q", mv.Promotion)
	}

	before := g.Position()
	var chosen *chess.Move
	for _, m := range g.ValidMoves() {
		if m.S1().String() != mv.From || m.S2().String() != mv.To {
			continue
		}
		if m.Promo() == promo || (promo == chess.NoPieceType && m.Promo() == chess.Queen) {
			chosen = m
			break
		}
	}
	if chosen == nil {
		return Applied{}, errors.Wrapf(ErrIllegalMove, "%s in %s", mv.UCI(), fen)
	}

	san := chess.AlgebraicNotation{}.Encode(before, chosen)
	uci := chess.UCINotation{}.Encode(before, chosen)
	if err := g.Move(chosen); err != nil {
		return Applied{}, errors.Wrapf(ErrIllegalMove, "%s: %v", uci, err)
	}

	after := g.Position()
	return Applied{
		FEN:     after.String(),
		UCI:     uci,
		SAN:     san,
		From:    mv.From,
		To:      mv.To,
		Turn:    colorOf(after.Turn()),
		Check:   chosen.HasTag(chess.Check),
		Outcome: outcomeOf(g.Outcome(), g.Method()),
	}, nil
}

// ApplyUCI applies a move given in UCI notation
func (r *Rules) ApplyUCI(fen, uci string) (Applied, error) {
	mv, err := ParseUCI(uci)
	if err != nil {
		return Applied{}, err
	}
	return r.Apply(fen, mv)
}

func (r *Rules) Status(fen string) (core.Outcome, error) {
	g, err := r.load(fen)
	if err != nil {
		return core.Outcome{}, err
	}

	if o := outcomeOf(g.Outcome(), g.Method()); o.Over() {
		return o, nil
	}

	switch g.Position().Status() {
	case chess.Checkmate:
		return core.Outcome{
			Termination: core.TerminationCheckmate,
			Winner:      core.OppositeColor(colorOf(g.Position().Turn())),
			Method:      "Checkmate",
		}, nil
	case chess.Stalemate:
		return core.Outcome{Termination: core.TerminationDraw, Method: "Stalemate"}, nil
	}
	return core.Outcome{}, nil
}

// ParseUCI splits a UCI move string like "e7e8q" into a Move
func ParseUCI(s string) (Move, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if len(s) < 4 || len(s) > 5 {
		return Move{}, errors.Wrapf(ErrIllegalMove, "malformed UCI %q", s)
	}
	mv := Move{From: s[0:2], To: s[2:4]}
	if len(s) == 5 {
		mv.Promotion = s[4:]
	}
	if !validSquare(mv.From) || !validSquare(mv.To) {
		return Move{}, errors.Wrapf(ErrInvalidSquare, "malformed UCI %q", s)
	}
	if _, ok := promotionPiece(mv.Promotion); !ok {
		return Move{}, errors.Wrapf(ErrIllegalMove, "malformed UCI %q", s)
	}
	return mv, nil
}

func validSquare(sq string) bool {
	return len(sq) == 2 && sq[0] >= 'a' && sq[0] <= 'h' && sq[1] >= '1' && sq[1] <= '8'
}

func promotionPiece(p string) (chess.PieceType, bool) {
	switch p {
	case "":
		return chess.NoPieceType, true
	case "q":
		return chess.Queen, true
	case "r":
		return chess.Rook, true
	case "b":
		return chess.Bishop, true
	case "n":
		return chess.Knight, true
	default:
		return chess.NoPieceType, false
	}
}

func colorOf(c chess.Color) core.Color {
	switch c {
	case chess.White:
		return core.ColorWhite
	case chess.Black:
		return core.ColorBlack
	default:
		return core.ColorNone
	}
}

func outcomeOf(outcome chess.Outcome, method chess.Method) core.Outcome {
	switch outcome {
	case chess.WhiteWon, chess.BlackWon:
		winner := core.ColorWhite
		if outcome == chess.BlackWon {
			winner = core.ColorBlack
		}
		return core.Outcome{Termination: core.TerminationCheckmate, Winner: winner, Method: methodName(method)}
	case chess.Draw:
		return core.Outcome{Termination: core.TerminationDraw, Method: methodName(method)}
	default:
		return core.Outcome{}
	}
}

func methodName(m chess.Method) string {
	switch m {
	case chess.Checkmate:
		return "Checkmate"
	case chess.Stalemate:
		return "Stalemate"
	case chess.FivefoldRepetition:
		return "FivefoldRepetition"
	case chess.SeventyFiveMoveRule:
		return "SeventyFiveMoveRule"
	case chess.InsufficientMaterial:
		return "InsufficientMaterial"
	default:
		return ""
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
