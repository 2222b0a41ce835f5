// Package ledger records the positions visited in a game with a navigable
// cursor. A Ledger is a value: every mutating operation returns a new
// Ledger and never touches the receiver's snapshots.
package ledger

import (
	"llmchess/internal/core"
	"llmchess/internal/position"
)

type Snapshot struct {
	FEN           string       `json:"fen"`
	PreviousMove  string       `json:"previousMove,omitempty"` // UCI move that created this position
	SAN           string       `json:"san,omitempty"`
	From          string       `json:"from,omitempty"`
	To            string       `json:"to,omitempty"`
	NextTurnColor core.Color   `json:"nextTurnColor"`
	Check         bool         `json:"check,omitempty"`
	Outcome       core.Outcome `json:"outcome"`
}

// LastMove returns the origin and destination of the move that created the
// snapshot, or false for a starting position
func (s Snapshot) LastMove() ([2]string, bool) {
	if s.From == "" || s.To == "" {
		return [2]string{}, false
	}
	return [2]string{s.From, s.To}, true
}

// FromApplied builds the snapshot recorded after a validated move
func FromApplied(a position.Applied) Snapshot {
	return Snapshot{
		FEN:           a.FEN,
		PreviousMove:  a.UCI,
		SAN:           a.SAN,
		From:          a.From,
		To:            a.To,
		NextTurnColor: a.Turn,
		Check:         a.Check,
		Outcome:       a.Outcome,
	}
}

// Start builds the snapshot for a starting position
func Start(fen string, turn core.Color) Snapshot {
	return Snapshot{FEN: fen, NextTurnColor: turn}
}

type Ledger struct {
	snapshots []Snapshot
	cursor    int
}

// New returns a ledger holding only the starting snapshot
func New(start Snapshot) Ledger {
	return Ledger{snapshots: []Snapshot{start}}
}

// Reset reinitializes to a single starting snapshot with the cursor at 0
func (l Ledger) Reset(start Snapshot) Ledger {
	return New(start)
}

// Commit appends s after the cursor. Snapshots after the cursor are dropped
// first, so the newest committed line replaces any previous future.
func (l Ledger) Commit(s Snapshot) Ledger {
	keep := l.cursor + 1
	if len(l.snapshots) == 0 {
		keep = 0
	}
	snapshots := make([]Snapshot, keep, keep+1)
	copy(snapshots, l.snapshots[:keep])
	snapshots = append(snapshots, s)
	return Ledger{snapshots: snapshots, cursor: len(snapshots) - 1}
}

// Seek moves the cursor to index. Out-of-range indices leave the ledger
// unchanged and report false.
func (l Ledger) Seek(index int) (Ledger, bool) {
	if index < 0 || index >= len(l.snapshots) {
		return l, false
	}
	l.cursor = index
	return l, true
}

func (l Ledger) First() (Ledger, bool) { return l.Seek(0) }

func (l Ledger) Previous() (Ledger, bool) { return l.Seek(l.cursor - 1) }

func (l Ledger) Next() (Ledger, bool) { return l.Seek(l.cursor + 1) }

func (l Ledger) Last() (Ledger, bool) { return l.Seek(len(l.snapshots) - 1) }

// Current returns the snapshot at the cursor
func (l Ledger) Current() Snapshot {
	return l.snapshots[l.cursor]
}

// Latest returns the newest snapshot regardless of the cursor
func (l Ledger) Latest() Snapshot {
	return l.snapshots[len(l.snapshots)-1]
}

// At returns the snapshot at index
func (l Ledger) At(index int) (Snapshot, bool) {
	if index < 0 || index >= len(l.snapshots) {
		return Snapshot{}, false
	}
	return l.snapshots[index], true
}

func (l Ledger) Cursor() int {
	return l.cursor
}

func (l Ledger) Len() int {
	return len(l.snapshots)
}

func (l Ledger) IsAtStart() bool {
	return l.cursor == 0
}

func (l Ledger) IsAtLatest() bool {
	return l.cursor == len(l.snapshots)-1
}

// InitialFEN returns the position the game started from
func (l Ledger) InitialFEN() string {
	return l.snapshots[0].FEN
}

// Moves returns the UCI moves from the start to the latest snapshot
func (l Ledger) Moves() []string {
	moves := []string{}
	for i := 1; i < len(l.snapshots); i++ {
		if l.snapshots[i].PreviousMove != "" {
			moves = append(moves, l.snapshots[i].PreviousMove)
		}
	}
	return moves
}

// SANs returns the SAN moves from the start to the latest snapshot
func (l Ledger) SANs() []string {
	moves := []string{}
	for i := 1; i < len(l.snapshots); i++ {
		if l.snapshots[i].SAN != "" {
			moves = append(moves, l.snapshots[i].SAN)
		}
	}
	return moves
}

// Snapshots returns a copy of every snapshot
func (l Ledger) Snapshots() []Snapshot {
	return append([]Snapshot(nil), l.snapshots...)
}
