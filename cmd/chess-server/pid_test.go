package main

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readPID(t *testing.T, path string) int {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	require.NoError(t, err)
	return pid
}

func TestAcquireWritesAndReleaseRemoves(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.pid")

	p, err := acquirePIDFile(path, false)
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), readPID(t, path))

	p.release()
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	p.release()
}

func TestLockedSecondAcquireFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.pid")

	p, err := acquirePIDFile(path, true)
	require.NoError(t, err)
	defer p.release()

	_, err = acquirePIDFile(path, true)
	assert.Error(t, err)
}

func TestStaleFileIsTakenOver(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.pid")
	// PIDs this large are never allocated on Linux
	require.NoError(t, os.WriteFile(path, []byte("99999999\n"), 0644))

	p, err := acquirePIDFile(path, true)
	require.NoError(t, err)
	defer p.release()

	assert.Equal(t, os.Getpid(), readPID(t, path))
}

func TestCorruptedPIDFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.pid")
	require.NoError(t, os.WriteFile(path, []byte("not-a-pid"), 0644))

	_, err := acquirePIDFile(path, true)
	assert.ErrorContains(t, err, "corrupted PID file")
}
