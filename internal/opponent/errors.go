package opponent

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"llmchess/internal/core"
)

// StatusError is a non-2xx backend response
type StatusError struct {
	Status  int
	Code    string
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("backend returned %d %s", e.Status, http.StatusText(e.Status))
	}
	return fmt.Sprintf("backend returned %d: %s", e.Status, e.Message)
}

func newStatusError(status int, body []byte) *StatusError {
	e := &StatusError{Status: status}
	var errResp core.ErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil {
		e.Code = errResp.Code
		e.Message = errResp.Detail
		if e.Message == "" {
			e.Message = errResp.Error
		}
	} else if len(body) > 0 && len(body) < 512 {
		e.Message = string(body)
	}
	return e
}

// TransportError means the backend could not be reached
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Classify maps a backend failure to the kind shown to the user
func Classify(err error) core.ErrorKind {
	if err == nil {
		return core.ErrorNone
	}

	var se *StatusError
	if errors.As(err, &se) {
		switch se.Status {
		case http.StatusTooManyRequests:
			return core.ErrorRateLimited
		case http.StatusUnauthorized, http.StatusPreconditionFailed:
			return core.ErrorUnauthorized
		case http.StatusServiceUnavailable:
			return core.ErrorServiceUnavailable
		default:
			return core.ErrorUnknown
		}
	}

	var te *TransportError
	if errors.As(err, &te) {
		return core.ErrorServiceUnavailable
	}
	return core.ErrorUnknown
}
