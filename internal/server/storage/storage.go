// Package storage keeps an optional SQLite journal of move requests served
// by the backend. Writes are queued to a single writer goroutine; a failed
// write marks the store degraded and later writes are dropped.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"sync"
	"sync/atomic"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const (
	writeQueueSize  = 1000
	shutdownTimeout = 2 * time.Second
)

var ErrClosed = errors.New("storage closed")

// writeOp is a queued write, or a flush barrier when flushed is set
type writeOp struct {
	fn      func(*sql.Tx) error
	flushed chan struct{}
}

// Store handles SQLite database operations with async writes
type Store struct {
	db           *sql.DB
	path         string
	writeChan    chan writeOp
	healthStatus atomic.Bool
	closed       atomic.Bool
	logger       *log.Logger
	ctx          context.Context
	cancel       context.CancelFunc
	wg           sync.WaitGroup
	closeOnce    sync.Once
	closeErr     error
}

// NewStore opens the database and starts the async writer. walMode enables
// WAL journaling for concurrent readers.
func NewStore(dataSourceName string, walMode bool, logger *log.Logger) (*Store, error) {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}

	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if walMode {
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	// one writer at a time; sqlite serializes writes anyway
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)

	ctx, cancel := context.WithCancel(context.Background())

	s := &Store{
		db:        db,
		path:      dataSourceName,
		writeChan: make(chan writeOp, writeQueueSize),
		logger:    logger,
		ctx:       ctx,
		cancel:    cancel,
	}
	s.healthStatus.Store(true)

	s.wg.Add(1)
	go s.writerLoop()

	return s, nil
}

// IsHealthy returns true if the storage is operational
func (s *Store) IsHealthy() bool {
	return s.healthStatus.Load() && !s.closed.Load()
}

// Status is reported by the health endpoint
func (s *Store) Status() string {
	if s == nil {
		return "disabled"
	}
	if s.IsHealthy() {
		return "ok"
	}
	return "degraded"
}

// writerLoop processes async write operations
func (s *Store) writerLoop() {
	defer s.wg.Done()

	for {
		select {
		case <-s.ctx.Done():
			// Drain remaining writes with timeout
			deadline := time.After(shutdownTimeout)
			for {
				select {
				case op := <-s.writeChan:
					s.handle(op)
				case <-deadline:
					return
				default:
					return
				}
			}

		case op := <-s.writeChan:
			s.handle(op)
		}
	}
}

func (s *Store) handle(op writeOp) {
	if op.flushed != nil {
		close(op.flushed)
		return
	}
	// Skip if already degraded
	if !s.healthStatus.Load() {
		return
	}
	s.executeWrite(op.fn)
}

// executeWrite runs a transactional write operation
func (s *Store) executeWrite(fn func(*sql.Tx) error) {
	tx, err := s.db.Begin()
	if err != nil {
		s.logger.Printf("Storage degraded: failed to begin transaction: %v", err)
		s.healthStatus.Store(false)
		return
	}

	if err := fn(tx); err != nil {
		tx.Rollback()
		s.logger.Printf("Storage degraded: write operation failed: %v", err)
		s.healthStatus.Store(false)
		return
	}

	if err := tx.Commit(); err != nil {
		s.logger.Printf("Storage degraded: failed to commit: %v", err)
		s.healthStatus.Store(false)
		return
	}
}

// enqueue hands fn to the writer, dropping it when degraded or full
func (s *Store) enqueue(what string, fn func(*sql.Tx) error) error {
	if s.closed.Load() {
		return ErrClosed
	}
	if !s.healthStatus.Load() {
		return nil
	}

	select {
	case s.writeChan <- writeOp{fn: fn}:
		return nil
	default:
		s.logger.Printf("Storage write queue full, dropping %s", what)
		return nil
	}
}

// Flush waits until every write queued before it has been executed
func (s *Store) Flush(ctx context.Context) error {
	if s.closed.Load() {
		return ErrClosed
	}

	done := make(chan struct{})

	select {
	case s.writeChan <- writeOp{flushed: done}:
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close drains pending writes and closes the database
func (s *Store) Close() error {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		s.cancel()

		done := make(chan struct{})
		go func() {
			s.wg.Wait()
			close(done)
		}()

		select {
		case <-done:
		case <-time.After(shutdownTimeout):
			s.logger.Printf("Warning: storage writer shutdown timeout, some writes may be lost")
		}

		s.closeErr = s.db.Close()
	})
	return s.closeErr
}

// InitDB creates the database schema
func (s *Store) InitDB() error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(Schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	return tx.Commit()
}

// DeleteDB closes the store and removes the database file
func (s *Store) DeleteDB() error {
	if err := s.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete database file: %w", err)
	}
	for _, suffix := range []string{"-wal", "-shm"} {
		if err := os.Remove(s.path + suffix); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to delete %s file: %w", suffix, err)
		}
	}

	return nil
}
