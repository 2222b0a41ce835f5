// Package session wires board gestures, history navigation, mode changes
// and automated move requests into a single event loop.
//
// The controller is single-threaded: Apply, State and Projection must only
// be called from the goroutine that runs Run (or, in tests, the goroutine
// that drives Apply directly). Asynchronous work posts its completion back
// as an Event.
package session

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"llmchess/internal/core"
	"llmchess/internal/ledger"
	"llmchess/internal/opponent"
	"llmchess/internal/policy"
	"llmchess/internal/position"
	"llmchess/internal/projection"
	"llmchess/internal/requester"
)

const eventQueueSize = 64

type Controller struct {
	cfg       Config
	rules     position.Authority
	backend   Backend
	requester *requester.Requester
	renderers []Renderer
	logger    *log.Logger

	events    chan Event
	done      chan struct{}
	closeOnce sync.Once
	ctx       context.Context
	cancel    context.CancelFunc

	state       State
	projection  projection.Projection
	noticeTimer *time.Timer
	effects     []func()
}

// transition carries one event's changes until they are committed
type transition struct {
	s              State
	justMoved      projection.Highlight
	cancelPremove  bool
	clearHighlight bool
}

func New(cfg Config, rules position.Authority, backend Backend, renderers ...Renderer) *Controller {
	cfg = cfg.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())

	c := &Controller{
		cfg:       cfg,
		rules:     rules,
		backend:   backend,
		renderers: renderers,
		logger:    cfg.Logger,
		events:    make(chan Event, eventQueueSize),
		done:      make(chan struct{}),
		ctx:       ctx,
		cancel:    cancel,
	}
	c.requester = requester.New(backend, func(r requester.Result) {
		c.Post(MoveResult{Result: r})
	}, requester.Options{Timeout: cfg.RequestTimeout, Logger: cfg.Logger})

	c.state = State{
		Ledger:      ledger.New(c.startSnapshot()),
		Mode:        core.ModeHumanVsHuman,
		Orientation: cfg.Orientation,
		Models:      cfg.Models,
	}
	c.projection = c.project(&transition{s: c.state})
	return c
}

// AddRenderer registers a renderer; call before Start
func (c *Controller) AddRenderer(r Renderer) {
	c.renderers = append(c.renderers, r)
}

// Start renders the initial board and requests the configured mode
func (c *Controller) Start() projection.Projection {
	if c.cfg.Mode != core.ModeHumanVsHuman {
		return c.Apply(SwitchMode{Mode: c.cfg.Mode})
	}
	c.render()
	return c.projection
}

// Post queues an event for the loop. It never blocks after Close.
func (c *Controller) Post(ev Event) {
	select {
	case c.events <- ev:
	case <-c.done:
	}
}

// Events exposes the queue so tests can deliver completions one at a time
func (c *Controller) Events() <-chan Event {
	return c.events
}

// Run applies queued events until ctx is cancelled
func (c *Controller) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-c.done:
			return nil
		case ev := <-c.events:
			c.Apply(ev)
		}
	}
}

// Close stops timers and abandons outstanding backend calls
func (c *Controller) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
		c.cancel()
		if c.noticeTimer != nil {
			c.noticeTimer.Stop()
		}
	})
	return c.requester.Close(time.Second)
}

func (c *Controller) State() State {
	return c.state
}

func (c *Controller) Projection() projection.Projection {
	return c.projection
}

// Apply runs one event to completion: it computes the next state, fires an
// automated request when the policy calls for one, and renders.
func (c *Controller) Apply(ev Event) projection.Projection {
	t := &transition{s: c.state}

	switch e := ev.(type) {
	case UserMoved:
		c.userMoved(t, e)
	case Navigate:
		c.navigate(t, e.To)
	case Seek:
		c.seek(t, e.Index)
	case SwitchMode:
		c.switchMode(t, e.Mode)
	case Reset:
		c.reset(t)
	case Flip:
		c.flip(t)
	case SetPaused:
		c.setPaused(t, e.Paused)
	case Retry:
		c.retry(t)
	case SelectModel:
		c.selectModel(t, e)
	case SubmitCredential:
		c.submitCredential(t, e.Key)
	case CancelCredential:
		t.s.CredentialPrompt = false
		t.s.HasPendingMode = false
	case RefreshModels:
		c.later(c.fetchModels)
	case DismissNotice:
		t.s.Notice = core.Notice{}
	case MoveResult:
		c.moveResult(t, e.Result)
	case HealthResult:
		c.healthResult(t, e)
	case CredentialResult:
		c.credentialResult(t, e)
	case ModelsResult:
		c.modelsResult(t, e)
	case NoticeExpired:
		if t.s.Notice.Kind == core.NoticeError && t.s.Notice.Seq == e.Seq {
			t.s.Notice = core.Notice{}
		}
	default:
		c.logger.Printf("session: unhandled event %T", ev)
	}

	c.evaluate(t)

	prevNotice := c.state.Notice
	c.state = t.s
	c.syncNoticeTimer(prevNotice)
	c.projection = c.project(t)
	c.state.LastMove = c.projection.LastMove
	c.render()

	effects := c.effects
	c.effects = nil
	for _, fn := range effects {
		fn()
	}
	return c.projection
}

func (c *Controller) render() {
	for _, r := range c.renderers {
		r.Render(c.projection)
	}
}

func (c *Controller) project(t *transition) projection.Projection {
	previous := c.projection.LastMove
	if t.clearHighlight {
		previous = projection.Highlight{}
	}
	return projection.Project(projection.Input{
		Ledger:           t.s.Ledger,
		Mode:             t.s.Mode,
		Orientation:      t.s.Orientation,
		AutoPlayPaused:   t.s.AutoPlayPaused,
		InFlight:         t.s.InFlight,
		Notice:           t.s.Notice,
		CredentialPrompt: t.s.CredentialPrompt,
		Models:           t.s.Models,
		AvailableModels:  t.s.AvailableModels,
		CancelPremove:    t.cancelPremove,
		JustMoved:        t.justMoved,
		Previous:         previous,
	}, c.rules)
}

func (c *Controller) startSnapshot() ledger.Snapshot {
	fen := c.rules.Start()
	turn, err := c.rules.SideToMove(fen)
	if err != nil {
		turn = core.ColorWhite
	}
	return ledger.Start(fen, turn)
}

func (c *Controller) decide(s State) policy.Decision {
	cur := s.Ledger.Current()
	return policy.Decide(policy.Input{
		Mode:           s.Mode,
		SideToMove:     cur.NextTurnColor,
		Orientation:    s.Orientation,
		AutoPlayPaused: s.AutoPlayPaused,
		AtLatest:       s.Ledger.IsAtLatest(),
		GameOver:       cur.Outcome.Over(),
		InFlight:       s.InFlight,
		Failed:         s.Failed,
	})
}

// evaluate issues the automated request for the current turn, if any
func (c *Controller) evaluate(t *transition) {
	s := &t.s
	d := c.decide(*s)
	if !d.Request {
		return
	}
	if !s.BackendVerified {
		s.CredentialPrompt = true
		return
	}

	latest := s.Ledger.Latest()
	issued, err := c.requester.Request(requester.Ticket{
		Generation: s.Generation,
		Ply:        s.Ledger.Len(),
		FEN:        latest.FEN,
		Side:       d.Side,
		Model:      s.Models.For(d.Side),
	})
	if err != nil {
		c.logger.Printf("session: move request for %s suppressed: %v", d.Side, err)
		return
	}
	s.InFlight = true
	s.Ticket = issued
}

// Moves

func (c *Controller) userMoved(t *transition, e UserMoved) {
	d := c.decide(t.s)
	if d.Owner != core.OwnerHuman || t.s.InFlight {
		c.logger.Printf("session: move %s%s ignored, %s owns the turn", e.From, e.To, d.Owner)
		return
	}
	c.applyMove(t, position.Move{From: e.From, To: e.To, Promotion: e.Promotion})
}

// applyMove validates mv against the position at the cursor and commits it.
// A rejected move leaves the ledger untouched; the fresh projection puts the
// board back in sync.
func (c *Controller) applyMove(t *transition, mv position.Move) bool {
	s := &t.s
	res, err := c.rules.Apply(s.Ledger.Current().FEN, mv)
	if err != nil {
		c.logger.Printf("session: move %s rejected: %v", mv.UCI(), err)
		return false
	}

	s.Ledger = s.Ledger.Commit(ledger.FromApplied(res))
	t.justMoved = projection.Highlight{From: res.From, To: res.To}

	if res.Outcome.Over() {
		s.AutoPlayPaused = true
		c.notify(t, core.NoticeGameOver, core.ErrorNone, res.Outcome.String())
		c.logger.Printf("session: game over after %d plies: %s", s.Ledger.Len()-1, res.Outcome)
	}
	return true
}

func (c *Controller) moveResult(t *transition, r requester.Result) {
	s := &t.s
	if !s.InFlight || r.Ticket.ID != s.Ticket.ID {
		c.logger.Printf("session: result for unknown request %q dropped", r.Ticket.ID)
		return
	}
	s.InFlight = false
	s.Ticket = requester.Ticket{}

	tk := r.Ticket
	if !tk.Matches(s.Generation, s.Ledger.Latest().FEN, s.Ledger.Len()) ||
		policy.OwnerOf(s.Mode, tk.Side, s.Orientation) != core.OwnerAutomated {
		c.logger.Printf("session: stale result for %s discarded (mode %s)", tk.Side, s.Mode)
		return
	}

	if r.Err != nil {
		c.fail(t, tk.Side, r.Kind, r.Err)
		return
	}

	c.clearFailure(t)
	if !s.Ledger.IsAtLatest() {
		s.Ledger, _ = s.Ledger.Last()
	}
	if !c.applyMove(t, r.Move) {
		c.fail(t, tk.Side, core.ErrorUnknown, fmt.Errorf("backend move %s is illegal", r.Move.UCI()))
	}
}

// fail records a failed automated move and pauses automated play; recovery
// is always user-initiated
func (c *Controller) fail(t *transition, side core.Color, kind core.ErrorKind, err error) {
	s := &t.s
	s.Failed = true
	s.FailedSide = side
	s.LastError = kind
	s.AutoPlayPaused = true
	c.notify(t, core.NoticeError, kind, kind.Message())

	if kind == core.ErrorUnauthorized {
		s.BackendVerified = false
		s.CredentialPrompt = true
	}
	c.logger.Printf("session: automated move for %s failed (%s): %v", side, kind, err)
}

func (c *Controller) clearFailure(t *transition) {
	s := &t.s
	s.Failed = false
	s.FailedSide = core.ColorNone
	s.LastError = core.ErrorNone
	if s.Notice.Kind == core.NoticeError {
		s.Notice = core.Notice{}
	}
}

// Navigation

func (c *Controller) navigate(t *transition, to Target) {
	l := t.s.Ledger
	var ok bool
	switch to {
	case TargetFirst:
		l, ok = l.First()
	case TargetPrevious:
		l, ok = l.Previous()
	case TargetNext:
		l, ok = l.Next()
	case TargetLast:
		l, ok = l.Last()
	}
	c.moveCursor(t, l, ok)
}

func (c *Controller) seek(t *transition, index int) {
	l, ok := t.s.Ledger.Seek(index)
	c.moveCursor(t, l, ok)
}

func (c *Controller) moveCursor(t *transition, l ledger.Ledger, ok bool) {
	if !ok || l.Cursor() == t.s.Ledger.Cursor() {
		return
	}
	t.s.Ledger = l
	t.cancelPremove = true
}

// Modes

func (c *Controller) switchMode(t *transition, m core.Mode) {
	s := &t.s
	if m == s.Mode {
		s.HasPendingMode = false
		s.CredentialPrompt = false
		return
	}

	if policy.RequiresBackend(m, s.BackendVerified) {
		s.PendingMode = m
		s.HasPendingMode = true
		if !s.Checking {
			s.Checking = true
			c.later(c.checkHealth)
		}
		c.logger.Printf("session: switch to %s waits for backend check", m)
		return
	}
	c.enterMode(t, m)
}

func (c *Controller) enterMode(t *transition, m core.Mode) {
	s := &t.s
	c.logger.Printf("session: mode %s -> %s", s.Mode, m)
	s.Mode = m
	s.Generation++
	s.HasPendingMode = false
	s.CredentialPrompt = false
	s.AutoPlayPaused = m == core.ModeAutomatedVsAutomated
	c.clearFailure(t)
	t.cancelPremove = true
}

func (c *Controller) reset(t *transition) {
	s := &t.s
	s.Ledger = s.Ledger.Reset(c.startSnapshot())
	s.Generation++
	s.AutoPlayPaused = s.Mode == core.ModeAutomatedVsAutomated
	c.clearFailure(t)
	s.Notice = core.Notice{}
	t.clearHighlight = true
	t.cancelPremove = true
	c.logger.Printf("session: reset (%s)", s.Mode)
}

func (c *Controller) flip(t *transition) {
	s := &t.s
	s.Orientation = core.OppositeColor(s.Orientation)
	t.cancelPremove = true
	// the automated side changes with orientation
	if s.Mode == core.ModeHumanVsAutomated {
		s.Generation++
		c.clearFailure(t)
	}
}

// Recovery

func (c *Controller) setPaused(t *transition, paused bool) {
	t.s.AutoPlayPaused = paused
	if !paused && t.s.Failed {
		c.clearFailure(t)
	}
}

func (c *Controller) retry(t *transition) {
	s := &t.s
	if !s.Failed {
		return
	}
	if s.LastError == core.ErrorUnauthorized && !s.BackendVerified {
		s.CredentialPrompt = true
		return
	}
	c.clearFailure(t)
	s.AutoPlayPaused = false
}

func (c *Controller) selectModel(t *transition, e SelectModel) {
	s := &t.s
	s.Models = s.Models.With(e.Side, e.Model)
	c.logger.Printf("session: %s model set to %q", e.Side, e.Model)

	if s.Failed && s.FailedSide == e.Side && s.Ledger.IsAtLatest() && s.Turn() == e.Side {
		c.clearFailure(t)
		s.AutoPlayPaused = false
		c.logger.Printf("session: retrying %s with %q", e.Side, e.Model)
	}
}

// Backend configuration

func (c *Controller) submitCredential(t *transition, key string) {
	s := &t.s
	key = strings.TrimSpace(key)
	if key == "" {
		c.notify(t, core.NoticeInfo, core.ErrorNone, "An API key is required for automated play.")
		return
	}
	if s.Submitting {
		return
	}
	s.Submitting = true
	c.later(func() { c.configureCredential(key) })
}

func (c *Controller) healthResult(t *transition, e HealthResult) {
	s := &t.s
	s.Checking = false
	if e.Err != nil {
		s.HasPendingMode = false
		c.notify(t, core.NoticeError, core.ErrorServiceUnavailable, core.ErrorServiceUnavailable.Message())
		c.logger.Printf("session: health check failed: %v", e.Err)
		return
	}
	if !e.Configured {
		s.CredentialPrompt = true
		return
	}

	s.BackendVerified = true
	c.later(c.fetchModels)
	if s.HasPendingMode {
		c.enterMode(t, s.PendingMode)
	}
}

func (c *Controller) credentialResult(t *transition, e CredentialResult) {
	s := &t.s
	s.Submitting = false
	if e.Err != nil {
		kind := opponent.Classify(e.Err)
		c.notify(t, core.NoticeError, kind, kind.Message())
		c.logger.Printf("session: credential rejected: %v", e.Err)
		return
	}

	s.BackendVerified = true
	s.CredentialPrompt = false
	c.later(c.fetchModels)

	if s.HasPendingMode {
		c.enterMode(t, s.PendingMode)
		return
	}
	if s.Failed && s.LastError == core.ErrorUnauthorized {
		c.clearFailure(t)
		s.AutoPlayPaused = false
	}
}

func (c *Controller) modelsResult(t *transition, e ModelsResult) {
	if e.Err != nil {
		c.logger.Printf("session: model list unavailable: %v", e.Err)
		return
	}
	t.s.AvailableModels = e.Models
}

// Notices

func (c *Controller) notify(t *transition, kind core.NoticeKind, errKind core.ErrorKind, text string) {
	t.s.NoticeSeq++
	t.s.Notice = core.Notice{Kind: kind, Error: errKind, Text: text, Seq: t.s.NoticeSeq}
}

// syncNoticeTimer arms the auto-dismiss timer for a new error notice and
// stops the timer of any notice it superseded
func (c *Controller) syncNoticeTimer(prev core.Notice) {
	n := c.state.Notice
	if n.Seq == prev.Seq && n.Kind == prev.Kind {
		return
	}
	if c.noticeTimer != nil {
		c.noticeTimer.Stop()
		c.noticeTimer = nil
	}
	if n.Kind != core.NoticeError || c.cfg.NoticeTimeout < 0 {
		return
	}
	seq := n.Seq
	c.noticeTimer = time.AfterFunc(c.cfg.NoticeTimeout, func() {
		c.Post(NoticeExpired{Seq: seq})
	})
}

// Asynchronous backend calls. Each runs after the transition that asked for
// it has been committed and posts its completion as an event.

func (c *Controller) later(fn func()) {
	c.effects = append(c.effects, fn)
}

func (c *Controller) checkHealth() {
	go func() {
		ctx, cancel := context.WithTimeout(c.ctx, c.cfg.CheckTimeout)
		defer cancel()
		resp, err := c.backend.Health(ctx)
		ev := HealthResult{Err: err}
		if err == nil {
			ev.Configured = resp.OpenAIKeyConfigured
		}
		c.Post(ev)
	}()
}

func (c *Controller) configureCredential(key string) {
	go func() {
		ctx, cancel := context.WithTimeout(c.ctx, c.cfg.CheckTimeout)
		defer cancel()
		c.Post(CredentialResult{Err: c.backend.ConfigureCredential(ctx, key)})
	}()
}

func (c *Controller) fetchModels() {
	go func() {
		ctx, cancel := context.WithTimeout(c.ctx, c.cfg.CheckTimeout)
		defer cancel()
		models, err := c.backend.Models(ctx)
		c.Post(ModelsResult{Models: models, Err: err})
	}()
}
