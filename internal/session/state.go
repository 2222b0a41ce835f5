package session

import (
	"context"
	"io"
	"log"
	"time"

	"llmchess/internal/core"
	"llmchess/internal/ledger"
	"llmchess/internal/projection"
	"llmchess/internal/requester"
)

const (
	DefaultNoticeTimeout = 5 * time.Second
	DefaultCheckTimeout  = 15 * time.Second
)

// Backend is the automated opponent service as seen by the controller
type Backend interface {
	requester.Backend
	Health(ctx context.Context) (*core.HealthResponse, error)
	Models(ctx context.Context) ([]string, error)
	ConfigureCredential(ctx context.Context, key string) error
}

// Renderer receives every projection the controller computes
type Renderer interface {
	Render(p projection.Projection)
}

// RenderFunc adapts a function to Renderer
type RenderFunc func(p projection.Projection)

func (f RenderFunc) Render(p projection.Projection) {
	f(p)
}

type Config struct {
	Mode        core.Mode // requested at Start
	Orientation core.Color
	Models      core.Models

	NoticeTimeout  time.Duration // error notices auto-dismiss after this
	RequestTimeout time.Duration // automated move requests
	CheckTimeout   time.Duration // health, credential and model calls

	Logger *log.Logger
}

func DefaultConfig() Config {
	return Config{
		Mode:           core.ModeHumanVsHuman,
		Orientation:    core.ColorWhite,
		Models:         core.Models{White: core.DefaultModel, Black: core.DefaultModel},
		NoticeTimeout:  DefaultNoticeTimeout,
		RequestTimeout: requester.DefaultTimeout,
		CheckTimeout:   DefaultCheckTimeout,
		Logger:         log.Default(),
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.Orientation == core.ColorNone {
		c.Orientation = def.Orientation
	}
	if c.Models.White == "" {
		c.Models.White = def.Models.White
	}
	if c.Models.Black == "" {
		c.Models.Black = def.Models.Black
	}
	if c.NoticeTimeout == 0 {
		c.NoticeTimeout = def.NoticeTimeout
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = def.RequestTimeout
	}
	if c.CheckTimeout <= 0 {
		c.CheckTimeout = def.CheckTimeout
	}
	if c.Logger == nil {
		c.Logger = log.New(io.Discard, "", 0)
	}
	return c
}

// State is the whole session. Each event produces a new State value;
// nothing else in the controller carries game state.
type State struct {
	Ledger      ledger.Ledger
	Mode        core.Mode
	Orientation core.Color
	Models      core.Models

	AutoPlayPaused bool

	// Request state
	InFlight   bool
	Ticket     requester.Ticket
	Generation uint64 // bumped whenever an outstanding result must be discarded
	Failed     bool   // sticky until retry, resume, mode switch or reset
	FailedSide core.Color
	LastError  core.ErrorKind

	Notice    core.Notice
	NoticeSeq uint64

	// Backend configuration
	BackendVerified  bool
	Checking         bool
	CredentialPrompt bool
	Submitting       bool
	PendingMode      core.Mode
	HasPendingMode   bool
	AvailableModels  []string

	LastMove projection.Highlight
}

// Turn returns the side to move at the latest position
func (s State) Turn() core.Color {
	return s.Ledger.Latest().NextTurnColor
}

func (s State) GameOver() bool {
	return s.Ledger.Latest().Outcome.Over()
}
