package core

// Error codes
const (
	ErrInvalidFEN         = "INVALID_FEN"
	ErrGameOver           = "GAME_OVER"
	ErrNoLegalMoves       = "NO_LEGAL_MOVES"
	ErrAPIKeyMissing      = "API_KEY_MISSING"
	ErrUnauthorized       = "UNAUTHORIZED"
	ErrRateLimitExceeded  = "RATE_LIMIT_EXCEEDED"
	ErrServiceUnavailable = "SERVICE_UNAVAILABLE"
	ErrInvalidContent     = "INVALID_CONTENT_TYPE"
	ErrInvalidRequest     = "INVALID_REQUEST"
	ErrInternalError      = "INTERNAL_ERROR"
)
