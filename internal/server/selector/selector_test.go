package selector

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"llmchess/internal/core"
	"llmchess/internal/position"
)

type fakeClient struct {
	reply    string
	err      error
	models   []string
	listErr  error
	requests []openai.ChatCompletionRequest
}

func (f *fakeClient) CreateChatCompletion(_ context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return openai.ChatCompletionResponse{}, f.err
	}
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{Message: openai.ChatCompletionMessage{Content: f.reply}}},
	}, nil
}

func (f *fakeClient) ListModels(context.Context) (openai.ModelsList, error) {
	if f.listErr != nil {
		return openai.ModelsList{}, f.listErr
	}
	var list openai.ModelsList
	for _, id := range f.models {
		list.Models = append(list.Models, openai.Model{ID: id})
	}
	return list, nil
}

func newSelector(fc *fakeClient) (*Selector, *[]string) {
	var keys []string
	return New(position.New(), func(key string) Client {
		keys = append(keys, key)
		return fc
	}, nil), &keys
}

const foolsMate = "rnb1kbnr/pppp1ppp/8/4p3/6Pq/5P2/PPPPP2P/RNBQKBNR w KQkq - 1 3"

func TestSelectReturnsMoveWithSAN(t *testing.T) {
	fc := &fakeClient{reply: `{"reasoning":"central control","move":"e2e4"}`}
	s, keys := newSelector(fc)

	sel, err := s.Select(context.Background(), "sk-test", position.StartingFEN, "")
	require.NoError(t, err)
	assert.Equal(t, "e2e4", sel.Move)
	assert.Equal(t, "e4", sel.SAN)
	assert.Equal(t, DefaultModel, sel.Model)
	assert.Equal(t, 20, sel.Legal)
	assert.Equal(t, []string{"sk-test"}, *keys)

	require.Len(t, fc.requests, 1)
	req := fc.requests[0]
	assert.Equal(t, DefaultModel, req.Model)
	assert.InDelta(t, 0.2, req.Temperature, 1e-6)
	require.Len(t, req.Messages, 2)
	assert.Equal(t, "FEN: "+position.StartingFEN, req.Messages[1].Content)
	require.NotNil(t, req.ResponseFormat)
	assert.True(t, req.ResponseFormat.JSONSchema.Strict)
}

func TestMoveSchemaEnumeratesLegalMoves(t *testing.T) {
	legal := []string{"e2e4", "d2d4"}
	req := moveRequest(position.StartingFEN, "gpt-4o", legal)

	raw, err := json.Marshal(req.ResponseFormat.JSONSchema.Schema)
	require.NoError(t, err)

	var schema struct {
		Properties struct {
			Move struct {
				Enum []string `json:"enum"`
			} `json:"move"`
		} `json:"properties"`
		Required []string `json:"required"`
	}
	require.NoError(t, json.Unmarshal(raw, &schema))

	if diff := cmp.Diff(legal, schema.Properties.Move.Enum); diff != "" {
		t.Errorf("enum mismatch (-want +got):\n%s", diff)
	}
	assert.ElementsMatch(t, []string{"reasoning", "move"}, schema.Required)
}

func TestSelectPositionErrorsBeforeKey(t *testing.T) {
	s, keys := newSelector(&fakeClient{})

	_, err := s.Select(context.Background(), "", "not a fen", "")
	assert.ErrorIs(t, err, ErrInvalidFEN)

	_, err = s.Select(context.Background(), "", foolsMate, "")
	assert.ErrorIs(t, err, ErrGameOver)

	_, err = s.Select(context.Background(), "", position.StartingFEN, "")
	assert.ErrorIs(t, err, ErrNoKey)

	assert.Empty(t, *keys, "no provider call without a usable position and key")
}

func TestSelectRejectsIllegalReply(t *testing.T) {
	tests := []struct {
		name  string
		reply string
	}{
		{"illegal move", `{"reasoning":"x","move":"e2e5"}`},
		{"not json", `e2e4`},
		{"empty move", `{"reasoning":"x"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := newSelector(&fakeClient{reply: tt.reply})
			_, err := s.Select(context.Background(), "k", position.StartingFEN, "gpt-4o")
			assert.ErrorIs(t, err, ErrBadReply)
			assert.Equal(t, core.ErrInternalError, Kind(err))
		})
	}
}

func TestClassify(t *testing.T) {
	other := errors.New("boom")
	tests := []struct {
		name string
		err  error
		want error
		code string
	}{
		{"rate limit", &openai.APIError{HTTPStatusCode: 429, Message: "quota"}, ErrRateLimited, core.ErrRateLimitExceeded},
		{"bad key", &openai.APIError{HTTPStatusCode: 401, Message: "invalid_api_key"}, ErrUnauthorized, core.ErrUnauthorized},
		{"request error", &openai.RequestError{HTTPStatusCode: 503, Err: other}, ErrUnavailable, core.ErrServiceUnavailable},
		{"transport", &url.Error{Op: "Post", URL: "https://api", Err: other}, ErrUnavailable, core.ErrServiceUnavailable},
		{"server error", &openai.APIError{HTTPStatusCode: 500, Message: "oops"}, nil, core.ErrInternalError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.err)
			if tt.want != nil {
				assert.ErrorIs(t, got, tt.want)
			} else {
				assert.Same(t, tt.err, got)
			}
			assert.Equal(t, tt.code, Kind(got))
		})
	}

	assert.NoError(t, Classify(nil))
	assert.ErrorIs(t, Classify(context.Canceled), context.Canceled)
}

func TestSelectProviderError(t *testing.T) {
	s, _ := newSelector(&fakeClient{err: &openai.APIError{HTTPStatusCode: 429}})
	_, err := s.Select(context.Background(), "k", position.StartingFEN, "gpt-4o")
	assert.ErrorIs(t, err, ErrRateLimited)
}

func TestModels(t *testing.T) {
	fc := &fakeClient{models: []string{
		"gpt-4o", "o1-mini", "gpt-4-vision-preview", "gpt-3.5-turbo-instruct",
		"gpt-4o-realtime-preview", "gpt-4o-audio-preview", "dall-e-3", "gpt-4o-mini", "whisper-1",
	}}
	s, _ := newSelector(fc)

	got := s.Models(context.Background(), "k")
	if diff := cmp.Diff([]string{"gpt-4o", "gpt-4o-mini", "o1-mini"}, got); diff != "" {
		t.Errorf("models mismatch (-want +got):\n%s", diff)
	}

	assert.Equal(t, []string{}, s.Models(context.Background(), ""))

	fc.listErr = errors.New("down")
	assert.Equal(t, FallbackModels, s.Models(context.Background(), "k"))
}

func TestValidate(t *testing.T) {
	fc := &fakeClient{}
	s, _ := newSelector(fc)

	assert.NoError(t, s.Validate(context.Background(), "k"))
	assert.ErrorIs(t, s.Validate(context.Background(), ""), ErrNoKey)

	fc.listErr = &openai.APIError{HTTPStatusCode: 401, Message: "Incorrect API key provided"}
	err := s.Validate(context.Background(), "k")
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.Contains(t, err.Error(), "Incorrect API key provided")
}

func TestDefaultModelOverride(t *testing.T) {
	fc := &fakeClient{reply: `{"reasoning":"","move":"d2d4"}`}
	s, _ := newSelector(fc)
	s.SetDefaultModel("gpt-4o")
	s.SetDefaultModel("")

	sel, err := s.Select(context.Background(), "k", position.StartingFEN, "")
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o", sel.Model)
	assert.Equal(t, "o1-mini", s.Model("o1-mini"))
}
