// Package projection derives what the board shows and accepts from the
// session state. Project is a pure function; widgets render its result and
// nothing else.
package projection

import (
	"llmchess/internal/core"
	"llmchess/internal/ledger"
	"llmchess/internal/policy"
	"llmchess/internal/position"
)

// Highlight is a last-move marker; the zero value means none
type Highlight struct {
	From string `json:"from"`
	To   string `json:"to"`
}

func (h Highlight) IsZero() bool {
	return h.From == "" || h.To == ""
}

type Projection struct {
	FEN             string         `json:"fen"`
	Orientation     core.Color     `json:"orientation"`
	SideToMove      core.Color     `json:"sideToMove"`
	MovableSide     core.Color     `json:"movableSide"`
	Destinations    position.Dests `json:"destinations,omitempty"`
	PremovesEnabled bool           `json:"premovesEnabled"`
	Check           bool           `json:"check"`
	LastMove        Highlight      `json:"lastMove"`
	// CancelPremove asks the widget to drop a queued premove before rendering
	CancelPremove bool `json:"cancelPremove,omitempty"`

	Mode             core.Mode    `json:"mode"`
	Loading          bool         `json:"loading"`
	AutoPlayPaused   bool         `json:"autoPlayPaused"`
	Outcome          core.Outcome `json:"outcome"`
	Notice           core.Notice  `json:"notice"`
	CredentialPrompt bool         `json:"credentialPrompt"`
	Models           core.Models  `json:"models"`
	AvailableModels  []string     `json:"availableModels,omitempty"`

	Cursor int      `json:"cursor"`
	Length int      `json:"length"`
	SANs   []string `json:"sans,omitempty"`
}

// AtLatest reports whether the projected position is the newest one
func (p Projection) AtLatest() bool {
	return p.Cursor == p.Length-1
}

// Input is the slice of session state the projection depends on
type Input struct {
	Ledger           ledger.Ledger
	Mode             core.Mode
	Orientation      core.Color
	AutoPlayPaused   bool
	InFlight         bool
	Notice           core.Notice
	CredentialPrompt bool
	Models           core.Models
	AvailableModels  []string
	CancelPremove    bool

	// JustMoved is set when a move was applied by the current transition
	JustMoved Highlight
	// Previous is the highlight currently on the board
	Previous Highlight
}

// Project computes the board contract. Destinations come from rules for
// the position at the cursor and only when a side may move.
func Project(in Input, rules position.Authority) Projection {
	snap := in.Ledger.Current()
	atLatest := in.Ledger.IsAtLatest()

	p := Projection{
		FEN:              snap.FEN,
		Orientation:      in.Orientation,
		SideToMove:       snap.NextTurnColor,
		PremovesEnabled:  in.Mode != core.ModeAutomatedVsAutomated,
		Check:            snap.Check,
		CancelPremove:    in.CancelPremove,
		Mode:             in.Mode,
		Loading:          in.InFlight,
		AutoPlayPaused:   in.AutoPlayPaused,
		Outcome:          snap.Outcome,
		Notice:           in.Notice,
		CredentialPrompt: in.CredentialPrompt,
		Models:           in.Models,
		AvailableModels:  in.AvailableModels,
		Cursor:           in.Ledger.Cursor(),
		Length:           in.Ledger.Len(),
		SANs:             in.Ledger.SANs(),
	}

	p.LastMove = lastMove(in, snap, atLatest)

	d := policy.Decide(policy.Input{
		Mode:        in.Mode,
		SideToMove:  snap.NextTurnColor,
		Orientation: in.Orientation,
		AtLatest:    atLatest,
		GameOver:    snap.Outcome.Over(),
	})
	if d.Owner == core.OwnerHuman && !in.InFlight {
		p.MovableSide = snap.NextTurnColor
	}

	if p.MovableSide != core.ColorNone && rules != nil {
		if dests, err := rules.LegalDestinations(snap.FEN); err == nil && len(dests) > 0 {
			p.Destinations = dests
		}
	}

	return p
}

func lastMove(in Input, snap ledger.Snapshot, atLatest bool) Highlight {
	if !in.JustMoved.IsZero() {
		return in.JustMoved
	}
	if !atLatest {
		return Highlight{}
	}
	if !in.Previous.IsZero() {
		return in.Previous
	}
	// returning to the latest position after browsing
	if lm, ok := snap.LastMove(); ok {
		return Highlight{From: lm[0], To: lm[1]}
	}
	return Highlight{}
}
