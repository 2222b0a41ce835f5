// Package policy decides who owns the next move under each game mode.
package policy

import (
	"llmchess/internal/core"
)

// Input is everything the turn decision depends on
type Input struct {
	Mode           core.Mode
	SideToMove     core.Color
	Orientation    core.Color
	AutoPlayPaused bool
	AtLatest       bool
	GameOver       bool
	InFlight       bool
	Failed         bool // sticky "last automated move failed"
}

type Decision struct {
	Side  core.Color
	Owner core.Owner
	// Request is set when an automated move request should fire now
	Request bool
}

// OwnerOf returns who drives side under mode, ignoring position state
func OwnerOf(mode core.Mode, side, orientation core.Color) core.Owner {
	switch mode {
	case core.ModeHumanVsHuman:
		return core.OwnerHuman
	case core.ModeHumanVsAutomated:
		if side == orientation {
			return core.OwnerHuman
		}
		return core.OwnerAutomated
	case core.ModeAutomatedVsAutomated:
		return core.OwnerAutomated
	default:
		return core.OwnerNobody
	}
}

// AutomatedSide returns the side driven by the backend in HumanVsAutomated,
// ColorNone in HumanVsHuman and for both sides in AutomatedVsAutomated
func AutomatedSide(mode core.Mode, orientation core.Color) core.Color {
	if mode == core.ModeHumanVsAutomated {
		return core.OppositeColor(orientation)
	}
	return core.ColorNone
}

// Decide returns the owner of the current turn and whether an automated
// request should be issued. Nobody owns the turn while history is being
// browsed or after the game ended.
func Decide(in Input) Decision {
	d := Decision{Side: in.SideToMove, Owner: core.OwnerNobody}
	if !in.AtLatest || in.GameOver {
		return d
	}

	d.Owner = OwnerOf(in.Mode, in.SideToMove, in.Orientation)
	if d.Owner != core.OwnerAutomated {
		return d
	}

	if in.InFlight || in.Failed {
		return d
	}
	if in.Mode == core.ModeAutomatedVsAutomated && in.AutoPlayPaused {
		return d
	}
	d.Request = true
	return d
}

// RequiresBackend reports whether switching to mode needs the automated
// backend to be confirmed first
func RequiresBackend(mode core.Mode, verified bool) bool {
	return mode.Automated() && !verified
}
