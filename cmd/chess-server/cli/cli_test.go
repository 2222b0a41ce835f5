package cli

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"llmchess/internal/position"
	"llmchess/internal/server/selector"
	"llmchess/internal/server/storage"
)

func seed(t *testing.T, path string) {
	t.Helper()
	store, err := storage.NewStore(path, false, nil)
	require.NoError(t, err)
	require.NoError(t, store.InitDB())

	at := time.Date(2026, 5, 1, 9, 30, 0, 0, time.UTC)
	require.NoError(t, store.RecordRequest(storage.RequestRecord{
		RequestID: "0f1e2d3c-aaaa-bbbb-cccc-000000000001", FEN: position.StartingFEN,
		Model: "gpt-4o", MoveUCI: "e2e4", MoveSAN: "e4", Status: 200, LatencyMs: 812, RequestedAt: at,
	}))
	require.NoError(t, store.RecordRequest(storage.RequestRecord{
		RequestID: "short", FEN: position.StartingFEN,
		Model: "gpt-4o", Status: 503, ErrorCode: "SERVICE_UNAVAILABLE", RequestedAt: at.Add(time.Second),
	}))
	require.NoError(t, store.Close())
}

func TestInitQueryStatsDelete(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	var out bytes.Buffer

	require.NoError(t, run([]string{"init", "-path", path}, &out))
	assert.Contains(t, out.String(), "Database initialized at: "+path)

	out.Reset()
	require.NoError(t, run([]string{"query", "-path", path}, &out))
	assert.Contains(t, out.String(), "No requests found")

	seed(t, path)

	out.Reset()
	require.NoError(t, run([]string{"query", "-path", path}, &out))
	assert.Contains(t, out.String(), "0f1e2d3c...")
	assert.Contains(t, out.String(), "SERVICE_UNAVAILABLE")
	assert.Contains(t, out.String(), "Found 2 request(s)")

	out.Reset()
	require.NoError(t, run([]string{"query", "-path", path, "-failed"}, &out))
	assert.Contains(t, out.String(), "Found 1 request(s)")

	out.Reset()
	require.NoError(t, run([]string{"stats", "-path", path}, &out))
	assert.Contains(t, out.String(), "gpt-4o")
	assert.Contains(t, out.String(), "406ms")

	out.Reset()
	require.NoError(t, run([]string{"delete", "-path", path}, &out))
	assert.Contains(t, out.String(), "Database deleted")
}

func TestRunErrors(t *testing.T) {
	var out bytes.Buffer
	assert.Error(t, run(nil, &out))
	assert.ErrorContains(t, run([]string{"bogus"}, &out), "unknown subcommand")
	assert.ErrorContains(t, run([]string{"init"}, &out), "database path required")
}

type listClient struct{ err error }

func (c listClient) CreateChatCompletion(context.Context, openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	return openai.ChatCompletionResponse{}, nil
}

func (c listClient) ListModels(context.Context) (openai.ModelsList, error) {
	return openai.ModelsList{Models: []openai.Model{{ID: "gpt-4o"}}}, c.err
}

func TestCheckKey(t *testing.T) {
	ok := selector.New(position.New(), func(string) selector.Client { return listClient{} }, nil)
	var out bytes.Buffer
	require.NoError(t, checkKey(ok, "sk-1", &out))
	assert.Contains(t, out.String(), "1 chat model(s)")

	bad := selector.New(position.New(), func(string) selector.Client {
		return listClient{err: &openai.APIError{HTTPStatusCode: 401}}
	}, nil)
	assert.ErrorIs(t, checkKey(bad, "sk-1", &out), selector.ErrUnauthorized)
	assert.ErrorIs(t, checkKey(bad, "", &out), selector.ErrNoKey)
}
