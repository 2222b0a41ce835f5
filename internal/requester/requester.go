// Package requester issues automated move requests to the backend, one at
// a time, and hands results back to the caller's event loop.
package requester

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"llmchess/internal/core"
	"llmchess/internal/opponent"
	"llmchess/internal/position"
)

const DefaultTimeout = 60 * time.Second

var ErrInFlight = errors.New("move request already in flight")

// Backend is the move-selection capability
type Backend interface {
	Move(ctx context.Context, fen, model string) (*core.MoveResponse, error)
}

// Ticket identifies one request and the state it was issued against
type Ticket struct {
	ID         string
	Generation uint64 // controller generation, bumped by reset and mode switches
	Ply        int    // ledger length when issued
	FEN        string
	Side       core.Color
	Model      string
	IssuedAt   time.Time
}

// Valid reports whether the ticket was issued
func (t Ticket) Valid() bool {
	return t.ID != ""
}

// Matches reports whether the ticket still describes the live game
func (t Ticket) Matches(generation uint64, latestFEN string, plies int) bool {
	return t.Valid() && t.Generation == generation && t.FEN == latestFEN && t.Ply == plies
}

// Result is delivered once per issued ticket
type Result struct {
	Ticket  Ticket
	Move    position.Move
	SAN     string
	Err     error
	Kind    core.ErrorKind
	Latency time.Duration
}

type Requester struct {
	backend  Backend
	deliver  func(Result)
	timeout  time.Duration
	logger   *log.Logger
	inFlight atomic.Bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type Options struct {
	Timeout time.Duration
	Logger  *log.Logger
}

// New creates a requester; deliver is called from the request goroutine and
// must hand the result to the owner's event loop without blocking for long
func New(backend Backend, deliver func(Result), opts Options) *Requester {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard, "", 0)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Requester{
		backend: backend,
		deliver: deliver,
		timeout: opts.Timeout,
		logger:  opts.Logger,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// InFlight reports whether a request is outstanding
func (r *Requester) InFlight() bool {
	return r.inFlight.Load()
}

// Request issues t against the backend. It returns ErrInFlight without
// contacting the backend when another request is outstanding.
func (r *Requester) Request(t Ticket) (Ticket, error) {
	if !r.inFlight.CompareAndSwap(false, true) {
		return Ticket{}, ErrInFlight
	}

	t.ID = uuid.NewString()
	t.IssuedAt = time.Now()
	r.logger.Printf("move request %s: %s to move, model %q, ply %d", t.ID[:8], t.Side, t.Model, t.Ply)

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		res := r.run(t)
		// cleared before delivery so the owner can chain the next request
		r.inFlight.Store(false)
		r.deliver(res)
	}()

	return t, nil
}

func (r *Requester) run(t Ticket) Result {
	ctx, cancel := context.WithTimeout(opponent.WithRequestID(r.ctx, t.ID), r.timeout)
	defer cancel()

	res := Result{Ticket: t}
	resp, err := r.backend.Move(ctx, t.FEN, t.Model)
	res.Latency = time.Since(t.IssuedAt)
	if err != nil {
		res.Err = err
		res.Kind = opponent.Classify(err)
		r.logger.Printf("move request %s failed (%s) after %s: %v", t.ID[:8], res.Kind, res.Latency, err)
		return res
	}

	mv, err := position.ParseUCI(resp.Move)
	if err != nil {
		res.Err = fmt.Errorf("backend move %q: %w", resp.Move, err)
		res.Kind = core.ErrorUnknown
		return res
	}

	res.Move = mv
	res.SAN = resp.SAN
	r.logger.Printf("move request %s returned %s after %s", t.ID[:8], resp.Move, res.Latency)
	return res
}

// Close abandons outstanding requests and waits for their goroutines
func (r *Requester) Close(timeout time.Duration) error {
	r.cancel()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("requester shutdown timeout exceeded")
	}
}
