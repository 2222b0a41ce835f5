package core

// Request types

type MoveRequest struct {
	FEN   string `json:"fen" validate:"required,max=100"`
	Model string `json:"model,omitempty" validate:"omitempty,max=64"`
}

type APIKeyRequest struct {
	APIKey string `json:"api_key,omitempty" validate:"omitempty,min=8,max=256"`
}

// Response types

type MoveResponse struct {
	Move string `json:"move"`
	SAN  string `json:"san,omitempty"`
}

type HealthResponse struct {
	Status              string `json:"status"`
	OpenAIKeyConfigured bool   `json:"openai_api_key_configured"`
	Storage             string `json:"storage,omitempty"`
}

type APIKeyResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// ErrorResponse carries the error code fields and a human-readable "detail"
// that browser clients display
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code"`
	Details string `json:"details,omitempty"`
	Detail  string `json:"detail,omitempty"`
}

// KeyHeader carries a per-request provider key
const KeyHeader = "X-OpenAI-Key"

// RequestIDHeader correlates client tickets with journal rows
const RequestIDHeader = "X-Request-ID"
