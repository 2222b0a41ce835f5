package session

import (
	"llmchess/internal/core"
	"llmchess/internal/requester"
)

// Event is anything the controller reacts to: user gestures, completed
// backend calls and timers
type Event interface {
	isEvent()
}

// Target names a navigation shortcut
type Target int

const (
	TargetFirst Target = iota
	TargetPrevious
	TargetNext
	TargetLast
)

// User gestures

// UserMoved is a move attempted on the board. An empty Promotion takes the
// default promotion piece.
type UserMoved struct {
	From      string
	To        string
	Promotion string
}

type Navigate struct {
	To Target
}

type Seek struct {
	Index int
}

type SwitchMode struct {
	Mode core.Mode
}

type Reset struct{}

type Flip struct{}

// SetPaused pauses or resumes automated play
type SetPaused struct {
	Paused bool
}

// Retry clears a failed automated move so the request fires again
type Retry struct{}

type SelectModel struct {
	Side  core.Color
	Model string
}

type SubmitCredential struct {
	Key string
}

type CancelCredential struct{}

type RefreshModels struct{}

type DismissNotice struct{}

// Completions posted by the controller's own goroutines

type MoveResult struct {
	requester.Result
}

type HealthResult struct {
	Configured bool
	Err        error
}

type CredentialResult struct {
	Err error
}

type ModelsResult struct {
	Models []string
	Err    error
}

type NoticeExpired struct {
	Seq uint64
}

func (UserMoved) isEvent() {}
func (Navigate) isEvent() {}
func (Seek) isEvent() {}
func (SwitchMode) isEvent() {}
func (Reset) isEvent() {}
func (Flip) isEvent() {}
func (SetPaused) isEvent() {}
func (Retry) isEvent() {}
func (SelectModel) isEvent() {}
func (SubmitCredential) isEvent() {}
func (CancelCredential) isEvent() {}
func (RefreshModels) isEvent() {}
func (DismissNotice) isEvent() {}
func (MoveResult) isEvent() {}
func (HealthResult) isEvent() {}
func (CredentialResult) isEvent() {}
func (ModelsResult) isEvent() {}
func (NoticeExpired) isEvent() {}
