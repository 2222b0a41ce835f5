package session

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"llmchess/internal/core"
	"llmchess/internal/opponent"
	"llmchess/internal/position"
	"llmchess/internal/projection"
)

type reply struct {
	move string
	err  error
}

type fakeBackend struct {
	mu         sync.Mutex
	replies    []reply
	fens       []string
	models     []string
	configured bool
	healthErr  error
	keyErr     error
	keys       []string
}

func (b *fakeBackend) Move(ctx context.Context, fen, model string) (*core.MoveResponse, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.fens = append(b.fens, fen)
	b.models = append(b.models, model)
	if len(b.replies) == 0 {
		return nil, errors.New("no scripted reply")
	}
	r := b.replies[0]
	b.replies = b.replies[1:]
	if r.err != nil {
		return nil, r.err
	}
	return &core.MoveResponse{Move: r.move}, nil
}

func (b *fakeBackend) Health(ctx context.Context) (*core.HealthResponse, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.healthErr != nil {
		return nil, b.healthErr
	}
	return &core.HealthResponse{Status: "ok", OpenAIKeyConfigured: b.configured}, nil
}

func (b *fakeBackend) Models(ctx context.Context) ([]string, error) {
	return []string{"gpt-4o", "gpt-4o-mini"}, nil
}

func (b *fakeBackend) ConfigureCredential(ctx context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.keys = append(b.keys, key)
	if b.keyErr != nil {
		return b.keyErr
	}
	b.configured = true
	return nil
}

func (b *fakeBackend) script(replies ...reply) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.replies = append(b.replies, replies...)
}

func (b *fakeBackend) calls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.fens)
}

func (b *fakeBackend) lastModel() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.models) == 0 {
		return ""
	}
	return b.models[len(b.models)-1]
}

func ok(move string) reply { return reply{move: move} }

func status(code int) reply {
	return reply{err: &opponent.StatusError{Status: code, Message: http.StatusText(code)}}
}

type recorder struct {
	got []projection.Projection
}

func (r *recorder) Render(p projection.Projection) {
	r.got = append(r.got, p)
}

func newController(t *testing.T, mode core.Mode, orientation core.Color, backend *fakeBackend) (*Controller, *recorder) {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Mode = mode
	cfg.Orientation = orientation
	cfg.Logger = nil
	cfg.NoticeTimeout = -1

	rec := &recorder{}
	c := New(cfg, position.New(), backend, rec)
	t.Cleanup(func() { _ = c.Close() })

	c.Start()
	if mode != core.ModeHumanVsHuman {
		waitFor[HealthResult](t, c, true)
	}
	return c, rec
}

// waitFor applies queued events until one of type T arrives. The matching
// event is applied too when apply is set.
func waitFor[T Event](t *testing.T, c *Controller, apply bool) T {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-c.Events():
			if match, ok := ev.(T); ok {
				if apply {
					c.Apply(ev)
				}
				return match
			}
			c.Apply(ev)
		case <-deadline:
			var zero T
			t.Fatalf("timed out waiting for %T", zero)
			return zero
		}
	}
}

func move(from, to string) UserMoved {
	return UserMoved{From: from, To: to}
}

func TestHumanMoveHandsOffToAutomatedSide(t *testing.T) {
	backend := &fakeBackend{configured: true}
	backend.script(ok("e7e5"))
	c, _ := newController(t, core.ModeHumanVsAutomated, core.ColorWhite, backend)

	p := c.Projection()
	require.Equal(t, core.ModeHumanVsAutomated, p.Mode)
	assert.Equal(t, core.ColorWhite, p.MovableSide, "human owns white's first move")
	assert.False(t, c.State().InFlight)

	p = c.Apply(move("e2", "e4"))
	assert.True(t, c.State().InFlight, "black is requested automatically")
	assert.Equal(t, core.ColorBlack, c.State().Ticket.Side)
	assert.Equal(t, core.ColorNone, p.MovableSide)
	assert.True(t, p.Loading)

	waitFor[MoveResult](t, c, true)

	s := c.State()
	assert.Equal(t, 3, s.Ledger.Len())
	assert.Equal(t, []string{"e4", "e5"}, s.Ledger.SANs())
	assert.False(t, s.InFlight)
	assert.False(t, s.Failed)

	p = c.Projection()
	assert.Equal(t, core.ColorWhite, p.MovableSide)
	assert.Equal(t, projection.Highlight{From: "e7", To: "e5"}, p.LastMove)
	assert.Equal(t, 1, backend.calls())
}

func TestRateLimitPausesAndLeavesLedger(t *testing.T) {
	backend := &fakeBackend{configured: true}
	backend.script(status(http.StatusTooManyRequests))
	c, _ := newController(t, core.ModeHumanVsAutomated, core.ColorBlack, backend)

	require.True(t, c.State().InFlight, "automated white opens the game")
	waitFor[MoveResult](t, c, true)

	s := c.State()
	assert.Equal(t, 1, s.Ledger.Len())
	assert.Equal(t, core.ErrorRateLimited, s.LastError)
	assert.True(t, s.AutoPlayPaused)
	assert.True(t, s.Failed)
	assert.Equal(t, core.ColorWhite, s.FailedSide)
	assert.False(t, s.InFlight, "no automatic retry")
	assert.Equal(t, core.NoticeError, c.Projection().Notice.Kind)

	backend.script(ok("e2e4"))
	c.Apply(Retry{})
	require.True(t, c.State().InFlight)
	waitFor[MoveResult](t, c, true)

	assert.Equal(t, 2, c.State().Ledger.Len())
	assert.False(t, c.State().Failed)
	assert.False(t, c.Projection().Notice.Active())
}

func TestTwoRapidTriggersReachBackendOnce(t *testing.T) {
	backend := &fakeBackend{configured: true}
	backend.script(ok("e2e4"))
	c, _ := newController(t, core.ModeAutomatedVsAutomated, core.ColorWhite, backend)
	require.True(t, c.State().AutoPlayPaused, "spectator mode starts paused")

	c.Apply(SetPaused{Paused: false})
	c.Apply(SetPaused{Paused: false})
	c.Apply(Retry{})

	res := waitFor[MoveResult](t, c, false)
	assert.NoError(t, res.Err)
	assert.Equal(t, 1, backend.calls())

	// paused first so the applied move does not chain the next request
	c.Apply(SetPaused{Paused: true})
	c.Apply(res)
	assert.Equal(t, 2, c.State().Ledger.Len())
	assert.False(t, c.State().InFlight)
}

func TestResetMidGameRearmsTurn(t *testing.T) {
	backend := &fakeBackend{configured: true}
	backend.script(ok("e2e4"), status(http.StatusServiceUnavailable))
	c, rec := newController(t, core.ModeHumanVsAutomated, core.ColorBlack, backend)

	waitFor[MoveResult](t, c, true)
	c.Apply(move("e7", "e5"))
	waitFor[MoveResult](t, c, true)
	require.True(t, c.State().Failed)
	require.Equal(t, 3, c.State().Ledger.Len())

	backend.script(ok("d2d4"))
	p := c.Apply(Reset{})

	s := c.State()
	assert.Equal(t, 1, s.Ledger.Len())
	assert.Equal(t, 0, s.Ledger.Cursor())
	assert.False(t, s.Failed)
	assert.Equal(t, core.ErrorNone, s.LastError)
	assert.False(t, s.Notice.Active())
	assert.True(t, p.LastMove.IsZero())
	assert.True(t, p.CancelPremove)
	assert.True(t, s.InFlight, "automated white is requested again")
	assert.Equal(t, position.StartingFEN, s.Ticket.FEN)

	waitFor[MoveResult](t, c, true)
	assert.Equal(t, []string{"d4"}, c.State().Ledger.SANs())
	assert.NotEmpty(t, rec.got)
}

func TestSwitchToHumanVsHumanStopsAutomatedPlay(t *testing.T) {
	backend := &fakeBackend{configured: true}
	backend.script(ok("e2e4"), ok("e7e5"))
	c, _ := newController(t, core.ModeAutomatedVsAutomated, core.ColorWhite, backend)

	c.Apply(SetPaused{Paused: false})
	require.True(t, c.State().InFlight)

	p := c.Apply(SwitchMode{Mode: core.ModeHumanVsHuman})
	assert.Equal(t, core.ModeHumanVsHuman, p.Mode)
	assert.True(t, p.PremovesEnabled)

	waitFor[MoveResult](t, c, true)

	s := c.State()
	assert.Equal(t, 1, s.Ledger.Len(), "result from the old mode is discarded")
	assert.False(t, s.InFlight)
	assert.Equal(t, 1, backend.calls())
	assert.Equal(t, core.ColorWhite, c.Projection().MovableSide)
}

func TestResultAfterResetIsDiscarded(t *testing.T) {
	backend := &fakeBackend{configured: true}
	backend.script(ok("e7e5"))
	c, _ := newController(t, core.ModeHumanVsAutomated, core.ColorWhite, backend)

	c.Apply(move("e2", "e4"))
	require.True(t, c.State().InFlight)

	p := c.Apply(Reset{})
	assert.True(t, c.State().InFlight, "the old request still runs to completion")
	assert.Equal(t, core.ColorNone, p.MovableSide)

	waitFor[MoveResult](t, c, true)

	s := c.State()
	assert.Equal(t, 1, s.Ledger.Len())
	assert.False(t, s.InFlight)
	assert.Equal(t, core.ColorWhite, c.Projection().MovableSide)
	assert.Equal(t, 1, backend.calls())
}

func TestModelChangeRetriesFailedSideOnly(t *testing.T) {
	backend := &fakeBackend{configured: true}
	backend.script(status(http.StatusServiceUnavailable))
	c, _ := newController(t, core.ModeHumanVsAutomated, core.ColorWhite, backend)

	c.Apply(move("e2", "e4"))
	waitFor[MoveResult](t, c, true)
	require.Equal(t, core.ErrorServiceUnavailable, c.State().LastError)
	require.Equal(t, core.ColorBlack, c.State().FailedSide)

	c.Apply(SelectModel{Side: core.ColorWhite, Model: "gpt-4o"})
	assert.True(t, c.State().Failed, "white is not the failing side")
	assert.False(t, c.State().InFlight)

	backend.script(ok("c7c5"))
	c.Apply(SelectModel{Side: core.ColorBlack, Model: "gpt-4o"})
	assert.False(t, c.State().Failed)
	require.True(t, c.State().InFlight)

	waitFor[MoveResult](t, c, true)
	assert.Equal(t, "gpt-4o", backend.lastModel())
	assert.Equal(t, []string{"e4", "c5"}, c.State().Ledger.SANs())
}

func TestUnauthorizedReopensCredentialPrompt(t *testing.T) {
	backend := &fakeBackend{configured: true}
	backend.script(status(http.StatusUnauthorized))
	c, _ := newController(t, core.ModeHumanVsAutomated, core.ColorBlack, backend)

	waitFor[MoveResult](t, c, true)

	s := c.State()
	assert.Equal(t, core.ErrorUnauthorized, s.LastError)
	assert.True(t, s.CredentialPrompt)
	assert.True(t, c.Projection().CredentialPrompt)
	assert.True(t, s.AutoPlayPaused)

	backend.script(ok("e2e4"))
	c.Apply(SubmitCredential{Key: "sk-test-0123456789"})
	waitFor[CredentialResult](t, c, true)

	s = c.State()
	assert.False(t, s.CredentialPrompt)
	assert.True(t, s.BackendVerified)
	assert.False(t, s.Failed)
	require.True(t, s.InFlight, "accepted key resumes the failed side")

	waitFor[MoveResult](t, c, true)
	assert.Equal(t, 2, c.State().Ledger.Len())
}

func TestModeSwitchDeferredUntilCredential(t *testing.T) {
	backend := &fakeBackend{}
	c, _ := newController(t, core.ModeHumanVsHuman, core.ColorWhite, backend)

	c.Apply(SwitchMode{Mode: core.ModeHumanVsAutomated})
	assert.Equal(t, core.ModeHumanVsHuman, c.State().Mode)
	assert.True(t, c.State().Checking)

	waitFor[HealthResult](t, c, true)
	s := c.State()
	assert.Equal(t, core.ModeHumanVsHuman, s.Mode, "mode switch is deferred")
	assert.True(t, s.CredentialPrompt)
	assert.True(t, s.HasPendingMode)

	c.Apply(SubmitCredential{Key: "sk-test-0123456789"})
	waitFor[CredentialResult](t, c, true)

	s = c.State()
	assert.Equal(t, core.ModeHumanVsAutomated, s.Mode)
	assert.False(t, s.CredentialPrompt)
	assert.Equal(t, []string{"sk-test-0123456789"}, backend.keys)
}

func TestRejectedCredentialKeepsPrompt(t *testing.T) {
	backend := &fakeBackend{keyErr: &opponent.StatusError{Status: http.StatusUnauthorized}}
	c, _ := newController(t, core.ModeHumanVsHuman, core.ColorWhite, backend)

	c.Apply(SwitchMode{Mode: core.ModeAutomatedVsAutomated})
	waitFor[HealthResult](t, c, true)
	c.Apply(SubmitCredential{Key: "sk-bad-key-000"})
	waitFor[CredentialResult](t, c, true)

	s := c.State()
	assert.True(t, s.CredentialPrompt)
	assert.Equal(t, core.ModeHumanVsHuman, s.Mode)
	assert.Equal(t, core.ErrorUnauthorized, s.Notice.Error)

	c.Apply(CancelCredential{})
	assert.False(t, c.State().CredentialPrompt)
	assert.False(t, c.State().HasPendingMode)
}

func TestUnreachableBackendCancelsModeSwitch(t *testing.T) {
	backend := &fakeBackend{healthErr: &opponent.TransportError{Op: "GET /health", Err: errors.New("refused")}}
	c, _ := newController(t, core.ModeHumanVsHuman, core.ColorWhite, backend)

	c.Apply(SwitchMode{Mode: core.ModeHumanVsAutomated})
	waitFor[HealthResult](t, c, true)

	s := c.State()
	assert.Equal(t, core.ModeHumanVsHuman, s.Mode)
	assert.False(t, s.HasPendingMode)
	assert.Equal(t, core.ErrorServiceUnavailable, s.Notice.Error)
}

func TestIllegalMoveReprojectsUnchangedPosition(t *testing.T) {
	c, rec := newController(t, core.ModeHumanVsHuman, core.ColorWhite, &fakeBackend{})
	before := len(rec.got)

	p := c.Apply(move("e2", "e5"))

	assert.Equal(t, 1, c.State().Ledger.Len())
	assert.Equal(t, position.StartingFEN, p.FEN)
	assert.Equal(t, core.ColorWhite, p.MovableSide)
	assert.Len(t, rec.got, before+1, "board is re-rendered to snap back")
}

func TestHumanVsHumanAlternatesSides(t *testing.T) {
	backend := &fakeBackend{}
	c, _ := newController(t, core.ModeHumanVsHuman, core.ColorWhite, backend)

	p := c.Apply(move("e2", "e4"))
	assert.Equal(t, core.ColorBlack, p.MovableSide)

	p = c.Apply(move("e7", "e5"))
	assert.Equal(t, core.ColorWhite, p.MovableSide)
	assert.Equal(t, 0, backend.calls())
}

func TestGameOverPausesAndStaysVisible(t *testing.T) {
	c, _ := newController(t, core.ModeHumanVsHuman, core.ColorWhite, &fakeBackend{})

	for _, m := range []UserMoved{move("f2", "f3"), move("e7", "e5"), move("g2", "g4"), move("d8", "h4")} {
		c.Apply(m)
	}

	s := c.State()
	p := c.Projection()
	assert.True(t, s.GameOver())
	assert.True(t, s.AutoPlayPaused)
	assert.Equal(t, core.NoticeGameOver, p.Notice.Kind)
	assert.Contains(t, p.Notice.Text, "black wins")
	assert.Equal(t, core.ColorNone, p.MovableSide)
	assert.True(t, p.Check)
	assert.Nil(t, c.noticeTimer)

	c.Apply(Reset{})
	assert.False(t, c.Projection().Notice.Active())
}

func TestNavigationCancelsPremoveAndHidesHighlight(t *testing.T) {
	c, _ := newController(t, core.ModeHumanVsHuman, core.ColorWhite, &fakeBackend{})
	c.Apply(move("e2", "e4"))
	c.Apply(move("e7", "e5"))

	p := c.Apply(Navigate{To: TargetFirst})
	assert.Equal(t, 0, p.Cursor)
	assert.True(t, p.CancelPremove)
	assert.True(t, p.LastMove.IsZero())
	assert.Equal(t, core.ColorNone, p.MovableSide, "browsing disables input")

	p = c.Apply(Navigate{To: TargetPrevious})
	assert.Equal(t, 0, p.Cursor, "previous at start is a no-op")
	assert.False(t, p.CancelPremove)

	p = c.Apply(Seek{Index: 7})
	assert.Equal(t, 0, p.Cursor)
	assert.Equal(t, 3, p.Length)

	p = c.Apply(move("e2", "e4"))
	assert.Equal(t, 3, p.Length, "moves are ignored while browsing")

	p = c.Apply(Navigate{To: TargetLast})
	assert.Equal(t, 2, p.Cursor)
	assert.Equal(t, projection.Highlight{From: "e7", To: "e5"}, p.LastMove)
	assert.Equal(t, core.ColorWhite, p.MovableSide)
}

func TestFlipSwapsAutomatedSide(t *testing.T) {
	backend := &fakeBackend{configured: true}
	backend.script(ok("e2e4"))
	c, _ := newController(t, core.ModeHumanVsAutomated, core.ColorWhite, backend)
	require.False(t, c.State().InFlight)

	p := c.Apply(Flip{})
	assert.Equal(t, core.ColorBlack, p.Orientation)
	assert.True(t, c.State().InFlight, "white is now automated")

	waitFor[MoveResult](t, c, true)
	assert.Equal(t, core.ColorBlack, c.Projection().MovableSide)
}

func TestErrorNoticeAutoDismisses(t *testing.T) {
	backend := &fakeBackend{configured: true}
	backend.script(status(http.StatusTooManyRequests))

	cfg := DefaultConfig()
	cfg.Mode = core.ModeHumanVsAutomated
	cfg.Orientation = core.ColorBlack
	cfg.Logger = nil
	cfg.NoticeTimeout = 20 * time.Millisecond
	c := New(cfg, position.New(), backend)
	t.Cleanup(func() { _ = c.Close() })

	c.Start()
	waitFor[MoveResult](t, c, true)
	require.Equal(t, core.NoticeError, c.Projection().Notice.Kind)

	waitFor[NoticeExpired](t, c, true)
	assert.False(t, c.Projection().Notice.Active())
	assert.True(t, c.State().Failed, "the failure stays sticky")
}

func TestStaleNoticeExpiryIgnored(t *testing.T) {
	c, _ := newController(t, core.ModeHumanVsHuman, core.ColorWhite, &fakeBackend{})
	c.Apply(SubmitCredential{Key: " "})
	seq := c.State().Notice.Seq
	require.Equal(t, core.NoticeInfo, c.State().Notice.Kind)

	c.Apply(NoticeExpired{Seq: seq})
	assert.True(t, c.State().Notice.Active(), "only error notices expire")

	c.Apply(DismissNotice{})
	assert.False(t, c.State().Notice.Active())
}

func TestModelsFetchedAfterVerification(t *testing.T) {
	c, _ := newController(t, core.ModeHumanVsAutomated, core.ColorWhite, &fakeBackend{configured: true})

	waitFor[ModelsResult](t, c, true)
	assert.Equal(t, []string{"gpt-4o", "gpt-4o-mini"}, c.Projection().AvailableModels)
}
