// Package service binds the selector, the process-wide provider key and the
// optional request journal behind the HTTP handlers.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"

	"llmchess/internal/core"
	"llmchess/internal/server/selector"
	"llmchess/internal/server/storage"
)

// Service coordinates move selection, key management, and storage
type Service struct {
	mu       sync.RWMutex
	apiKey   string
	selector *selector.Selector
	store    *storage.Store
	logger   *log.Logger
	now      func() time.Time
}

// New creates a new service instance with optional storage. apiKey seeds
// the process-wide key and may be empty.
func New(sel *selector.Selector, store *storage.Store, apiKey string, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Service{
		apiKey:   apiKey,
		selector: sel,
		store:    store,
		logger:   logger,
		now:      time.Now,
	}
}

// key prefers a per-request key over the configured one
func (s *Service) key(requestKey string) string {
	if requestKey != "" {
		return requestKey
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.apiKey
}

// KeyConfigured reports whether a move request would carry a key
func (s *Service) KeyConfigured(requestKey string) bool {
	return s.key(requestKey) != ""
}

// GetStorageHealth returns the storage component status
func (s *Service) GetStorageHealth() string {
	return s.store.Status()
}

// Health reports provider key and storage state
func (s *Service) Health(requestKey string) core.HealthResponse {
	return core.HealthResponse{
		Status:              "ok",
		OpenAIKeyConfigured: s.KeyConfigured(requestKey),
		Storage:             s.GetStorageHealth(),
	}
}

// ConfigureKey validates apiKey against the provider and makes it the
// process-wide key. A rejected key leaves the previous one in place.
func (s *Service) ConfigureKey(ctx context.Context, apiKey string) error {
	if err := s.selector.Validate(ctx, apiKey); err != nil {
		return err
	}

	s.mu.Lock()
	s.apiKey = apiKey
	s.mu.Unlock()

	s.logger.Printf("service: provider key configured")
	return nil
}

// Models lists selectable models using the effective key
func (s *Service) Models(ctx context.Context, requestKey string) []string {
	return s.selector.Models(ctx, s.key(requestKey))
}

// Move selects a move for req and journals the call under requestID
func (s *Service) Move(ctx context.Context, requestID, requestKey string, req core.MoveRequest) (core.MoveResponse, error) {
	start := s.now()
	model := s.selector.Model(req.Model)

	sel, err := s.selector.Select(ctx, s.key(requestKey), req.FEN, model)
	s.journal(requestID, req.FEN, model, sel, err, start)
	if err != nil {
		return core.MoveResponse{}, err
	}

	return core.MoveResponse{Move: sel.Move, SAN: sel.SAN}, nil
}

func (s *Service) journal(requestID, fen, model string, sel selector.Selection, err error, start time.Time) {
	if s.store == nil {
		return
	}

	record := storage.RequestRecord{
		RequestID:   requestID,
		FEN:         fen,
		Model:       model,
		MoveUCI:     sel.Move,
		MoveSAN:     sel.SAN,
		Status:      StatusOf(err),
		LatencyMs:   s.now().Sub(start).Milliseconds(),
		RequestedAt: start,
	}
	if err != nil {
		record.ErrorCode = selector.Kind(err)
	}

	if err := s.store.RecordRequest(record); err != nil {
		s.logger.Printf("service: journal write failed: %v", err)
	}
}

// StatusOf maps a selection error to the HTTP status returned for it
func StatusOf(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, selector.ErrInvalidFEN), errors.Is(err, selector.ErrGameOver):
		return http.StatusBadRequest
	case errors.Is(err, selector.ErrNoKey):
		return http.StatusPreconditionFailed
	case errors.Is(err, selector.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, selector.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, selector.ErrUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Shutdown gracefully shuts down the service
func (s *Service) Shutdown(timeout time.Duration) error {
	var result *multierror.Error

	if s.store != nil {
		done := make(chan error, 1)
		go func() { done <- s.store.Close() }()

		select {
		case err := <-done:
			if err != nil {
				result = multierror.Append(result, fmt.Errorf("storage: %w", err))
			}
		case <-time.After(timeout):
			result = multierror.Append(result, fmt.Errorf("storage: close timed out after %v", timeout))
		}
	}

	return result.ErrorOrNil()
}
