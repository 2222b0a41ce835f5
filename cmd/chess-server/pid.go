package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"
)

var errInstanceRunning = errors.New("another instance is running")

// pidFile is a PID file held for the life of the server. With lock set the
// file is flock'ed and a file left by a dead process is taken over.
type pidFile struct {
	path string
	lock bool
	file *os.File
}

// acquirePIDFile creates path and writes the current PID into it
func acquirePIDFile(path string, lock bool) (*pidFile, error) {
	// Open/create PID file with exclusive create first attempt
	file, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		if !os.IsExist(err) {
			return nil, fmt.Errorf("cannot create PID file: %w", err)
		}

		if lock {
			if err := checkStalePID(path); err != nil {
				return nil, err
			}
		}

		// Reopen for writing, truncating the stale content
		file, err = os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
		if err != nil {
			return nil, fmt.Errorf("cannot open PID file: %w", err)
		}
	}

	p := &pidFile{path: path, lock: lock, file: file}

	if lock {
		if err = syscall.Flock(int(file.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
			file.Close()
			if errors.Is(err, syscall.EWOULDBLOCK) {
				return nil, fmt.Errorf("cannot acquire lock: %w", errInstanceRunning)
			}
			return nil, fmt.Errorf("lock failed: %w", err)
		}
	}

	if _, err = fmt.Fprintf(file, "%d\n", os.Getpid()); err != nil {
		p.release()
		return nil, fmt.Errorf("cannot write PID: %w", err)
	}
	if err = file.Sync(); err != nil {
		p.release()
		return nil, fmt.Errorf("cannot sync PID file: %w", err)
	}

	return p, nil
}

// release unlocks and removes the PID file
func (p *pidFile) release() {
	if p == nil || p.file == nil {
		return
	}
	if p.lock {
		syscall.Flock(int(p.file.Fd()), syscall.LOCK_UN)
	}
	p.file.Close()
	os.Remove(p.path)
	p.file = nil
}

// checkStalePID returns nil when the PID file names a process that no
// longer exists
func checkStalePID(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("cannot read existing PID file: %w", err)
	}

	pidStr := strings.TrimSpace(string(data))
	if pidStr == "" {
		return nil
	}
	pid, err := strconv.Atoi(pidStr)
	if err != nil {
		return fmt.Errorf("corrupted PID file (contains: %q)", pidStr)
	}

	// FindProcess never errors on Unix; signal 0 probes for existence
	proc, _ := os.FindProcess(pid)
	if err = proc.Signal(syscall.Signal(0)); err != nil {
		if errors.Is(err, os.ErrProcessDone) || errors.Is(err, syscall.ESRCH) {
			return nil
		}
		return fmt.Errorf("process %d exists but cannot verify ownership: %v", pid, err)
	}

	// a live owner still holds the flock, which fails below
	if pid == os.Getpid() {
		return fmt.Errorf("PID file %s already held by this process", path)
	}
	return nil
}
