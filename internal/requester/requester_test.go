package requester

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"llmchess/internal/core"
	"llmchess/internal/opponent"
	"llmchess/internal/position"
)

type blockingBackend struct {
	calls   atomic.Int32
	release chan struct{}
	move    string
	err     error
}

func (b *blockingBackend) Move(ctx context.Context, fen, model string) (*core.MoveResponse, error) {
	b.calls.Add(1)
	if b.release != nil {
		select {
		case <-b.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if b.err != nil {
		return nil, b.err
	}
	return &core.MoveResponse{Move: b.move, SAN: "e4"}, nil
}

func collect() (chan Result, func(Result)) {
	ch := make(chan Result, 4)
	return ch, func(r Result) { ch <- r }
}

func wait(t *testing.T, ch chan Result) Result {
	t.Helper()
	select {
	case r := <-ch:
		return r
	case <-time.After(2 * time.Second):
		t.Fatal("no result delivered")
		return Result{}
	}
}

func TestSecondRequestNeverReachesBackend(t *testing.T) {
	backend := &blockingBackend{release: make(chan struct{}), move: "e2e4"}
	results, deliver := collect()
	r := New(backend, deliver, Options{})
	defer r.Close(time.Second)

	first, err := r.Request(Ticket{FEN: position.StartingFEN, Side: core.ColorWhite})
	require.NoError(t, err)
	require.True(t, first.Valid())
	assert.True(t, r.InFlight())

	_, err = r.Request(Ticket{FEN: position.StartingFEN, Side: core.ColorWhite})
	assert.ErrorIs(t, err, ErrInFlight)

	close(backend.release)
	res := wait(t, results)

	assert.Equal(t, int32(1), backend.calls.Load())
	assert.Equal(t, first.ID, res.Ticket.ID)
	assert.Equal(t, position.Move{From: "e2", To: "e4"}, res.Move)
	assert.Equal(t, "e4", res.SAN)
	assert.NoError(t, res.Err)
	assert.False(t, r.InFlight())
}

func TestFailureIsClassified(t *testing.T) {
	backend := &blockingBackend{err: &opponent.StatusError{Status: 429, Message: "slow down"}}
	results, deliver := collect()
	r := New(backend, deliver, Options{})
	defer r.Close(time.Second)

	_, err := r.Request(Ticket{FEN: position.StartingFEN, Side: core.ColorBlack})
	require.NoError(t, err)

	res := wait(t, results)
	require.Error(t, res.Err)
	assert.Equal(t, core.ErrorRateLimited, res.Kind)
}

func TestMalformedMoveIsUnknown(t *testing.T) {
	backend := &blockingBackend{move: "zz"}
	results, deliver := collect()
	r := New(backend, deliver, Options{})
	defer r.Close(time.Second)

	_, err := r.Request(Ticket{FEN: position.StartingFEN})
	require.NoError(t, err)

	res := wait(t, results)
	require.Error(t, res.Err)
	assert.Equal(t, core.ErrorUnknown, res.Kind)
}

func TestTimeoutDeliversFailure(t *testing.T) {
	backend := &blockingBackend{release: make(chan struct{})}
	results, deliver := collect()
	r := New(backend, deliver, Options{Timeout: 20 * time.Millisecond})
	defer r.Close(time.Second)

	_, err := r.Request(Ticket{FEN: position.StartingFEN})
	require.NoError(t, err)

	res := wait(t, results)
	assert.ErrorIs(t, res.Err, context.DeadlineExceeded)
	assert.False(t, r.InFlight())
}

func TestTicketMatches(t *testing.T) {
	tk := Ticket{ID: "x", Generation: 3, Ply: 2, FEN: "fen"}

	assert.True(t, tk.Matches(3, "fen", 2))
	assert.False(t, tk.Matches(4, "fen", 2), "generation bumped")
	assert.False(t, tk.Matches(3, "other", 2), "position moved on")
	assert.False(t, tk.Matches(3, "fen", 1), "history reset")
	assert.False(t, Ticket{}.Matches(0, "", 0), "never issued")
}
