// Package selector asks a language model to pick a move among the legal
// moves of a position. The reply is constrained by a JSON schema whose move
// field is an enum of the legal UCI moves, then re-checked locally.
package selector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"sort"
	"strings"

	"github.com/sashabaranov/go-openai"
	"github.com/sashabaranov/go-openai/jsonschema"

	"llmchess/internal/core"
	"llmchess/internal/position"
)

const (
	DefaultModel = core.DefaultModel
	Temperature  = 0.2

	systemPrompt = "You are a grandmaster chess player. Analyze the given FEN and select the best move from the available legal moves. Provide your reasoning and the chosen move."
)

var (
	ErrInvalidFEN   = errors.New("invalid FEN")
	ErrGameOver     = errors.New("game is over")
	ErrNoKey        = errors.New("provider API key is missing")
	ErrBadReply     = errors.New("unusable model reply")
	ErrRateLimited  = errors.New("provider rate limit reached")
	ErrUnauthorized = errors.New("provider rejected the API key")
	ErrUnavailable  = errors.New("provider unreachable")
)

// FallbackModels is served when the provider's model list cannot be read
var FallbackModels = []string{"gpt-4o-mini", "gpt-4o", "gpt-3.5-turbo"}

// Client is the subset of *openai.Client the selector uses
type Client interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
	ListModels(ctx context.Context) (openai.ModelsList, error)
}

// ClientFactory builds a provider client for an API key
type ClientFactory func(apiKey string) Client

// OpenAI returns a factory for the real provider. An empty baseURL keeps the
// library default.
func OpenAI(baseURL string) ClientFactory {
	return func(apiKey string) Client {
		cfg := openai.DefaultConfig(apiKey)
		if baseURL != "" {
			cfg.BaseURL = baseURL
		}
		return openai.NewClientWithConfig(cfg)
	}
}

// Selection is the outcome of one model call
type Selection struct {
	Move      string
	SAN       string
	Reasoning string
	Model     string
	Legal     int
}

// Selector picks moves with a language model
type Selector struct {
	rules        *position.Rules
	newClient    ClientFactory
	logger       *log.Logger
	defaultModel string
}

func New(rules *position.Rules, factory ClientFactory, logger *log.Logger) *Selector {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Selector{rules: rules, newClient: factory, logger: logger, defaultModel: DefaultModel}
}

// SetDefaultModel changes the model used when a request names none
func (s *Selector) SetDefaultModel(model string) {
	if model != "" {
		s.defaultModel = model
	}
}

// Model resolves a requested model name
func (s *Selector) Model(requested string) string {
	if requested == "" {
		return s.defaultModel
	}
	return requested
}

type moveSelection struct {
	Reasoning string `json:"reasoning"`
	Move      string `json:"move"`
}

// Select validates fen, then asks model for a move using apiKey. Position
// errors are reported before a missing key.
func (s *Selector) Select(ctx context.Context, apiKey, fen, model string) (Selection, error) {
	outcome, err := s.rules.Status(fen)
	if err != nil {
		return Selection{}, fmt.Errorf("%w: %v", ErrInvalidFEN, err)
	}
	if outcome.Over() {
		return Selection{}, ErrGameOver
	}

	legal, err := s.rules.LegalMoves(fen)
	if err != nil {
		return Selection{}, fmt.Errorf("%w: %v", ErrInvalidFEN, err)
	}
	if len(legal) == 0 {
		return Selection{}, ErrGameOver
	}

	if apiKey == "" {
		return Selection{}, ErrNoKey
	}
	model = s.Model(model)

	s.logger.Printf("selector: asking %s, %d legal moves", model, len(legal))

	resp, err := s.newClient(apiKey).CreateChatCompletion(ctx, moveRequest(fen, model, legal))
	if err != nil {
		err = Classify(err)
		s.logger.Printf("selector: %s failed: %v", model, err)
		return Selection{}, err
	}
	if len(resp.Choices) == 0 {
		return Selection{}, fmt.Errorf("%w: no choices", ErrBadReply)
	}

	var picked moveSelection
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), &picked); err != nil {
		return Selection{}, fmt.Errorf("%w: %v", ErrBadReply, err)
	}

	applied, err := s.rules.ApplyUCI(fen, picked.Move)
	if err != nil {
		return Selection{}, fmt.Errorf("%w: %v", ErrBadReply, err)
	}

	return Selection{
		Move:      applied.UCI,
		SAN:       applied.SAN,
		Reasoning: picked.Reasoning,
		Model:     model,
		Legal:     len(legal),
	}, nil
}

func moveRequest(fen, model string, legal []string) openai.ChatCompletionRequest {
	schema := jsonschema.Definition{
		Type: jsonschema.Object,
		Properties: map[string]jsonschema.Definition{
			"reasoning": {Type: jsonschema.String},
			"move":      {Type: jsonschema.String, Enum: legal},
		},
		Required:             []string{"reasoning", "move"},
		AdditionalProperties: false,
	}

	return openai.ChatCompletionRequest{
		Model:       model,
		Temperature: Temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: "FEN: " + fen},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:   "MoveSelection",
				Schema: &schema,
				Strict: true,
			},
		},
	}
}

// Validate checks apiKey by listing the provider's models
func (s *Selector) Validate(ctx context.Context, apiKey string) error {
	if apiKey == "" {
		return ErrNoKey
	}
	if _, err := s.newClient(apiKey).ListModels(ctx); err != nil {
		return Classify(err)
	}
	return nil
}

// Models lists chat models usable for move selection. Without a key the list
// is empty; a provider failure yields FallbackModels.
func (s *Selector) Models(ctx context.Context, apiKey string) []string {
	if apiKey == "" {
		return []string{}
	}

	list, err := s.newClient(apiKey).ListModels(ctx)
	if err != nil {
		s.logger.Printf("selector: listing models failed: %v", Classify(err))
		return append([]string(nil), FallbackModels...)
	}

	models := make([]string, 0, len(list.Models))
	for _, m := range list.Models {
		if chatModel(m.ID) {
			models = append(models, m.ID)
		}
	}
	sort.Strings(models)
	return models
}

func chatModel(id string) bool {
	if !strings.HasPrefix(id, "gpt-") && !strings.HasPrefix(id, "o1-") {
		return false
	}
	for _, excluded := range []string{"-vision", "-instruct", "realtime", "audio"} {
		if strings.Contains(id, excluded) {
			return false
		}
	}
	return true
}

// Classify maps provider errors onto the selector's sentinel errors. Errors
// it does not recognize are returned unchanged.
func Classify(err error) error {
	if err == nil {
		return nil
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if kind := byStatus(apiErr.HTTPStatusCode); kind != nil {
			return fmt.Errorf("%w: %s", kind, apiErr.Message)
		}
		return err
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		if kind := byStatus(reqErr.HTTPStatusCode); kind != nil {
			return fmt.Errorf("%w: %v", kind, reqErr.Err)
		}
		return err
	}

	// anything else never produced an HTTP response
	if errors.Is(err, context.Canceled) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}

func byStatus(status int) error {
	switch status {
	case 429:
		return ErrRateLimited
	case 401, 403:
		return ErrUnauthorized
	case 502, 503, 504:
		return ErrUnavailable
	default:
		return nil
	}
}

// Kind returns the wire error code for a selector error
func Kind(err error) string {
	switch {
	case errors.Is(err, ErrInvalidFEN):
		return core.ErrInvalidFEN
	case errors.Is(err, ErrGameOver):
		return core.ErrGameOver
	case errors.Is(err, ErrNoKey):
		return core.ErrAPIKeyMissing
	case errors.Is(err, ErrRateLimited):
		return core.ErrRateLimitExceeded
	case errors.Is(err, ErrUnauthorized):
		return core.ErrUnauthorized
	case errors.Is(err, ErrUnavailable):
		return core.ErrServiceUnavailable
	default:
		return core.ErrInternalError
	}
}
