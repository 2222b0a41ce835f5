package http

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"llmchess/internal/core"
	"llmchess/internal/server/selector"
)

var validate = validator.New()

// validationMiddleware parses and validates POST bodies, storing the result in
// Locals("validatedBody"). An empty body validates as the zero request.
func validationMiddleware(c *fiber.Ctx) error {
	if c.Method() != fiber.MethodPost {
		return c.Next()
	}

	// Determine request type based on path
	var requestType any
	switch c.Path() {
	case "/move":
		requestType = &core.MoveRequest{}
	case "/config/api-key":
		requestType = &core.APIKeyRequest{}
	default:
		return c.Next() // No validation for unknown endpoints
	}

	if len(c.Body()) > 0 {
		if err := c.BodyParser(requestType); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(core.ErrorResponse{
				Error:   "invalid request body",
				Code:    core.ErrInvalidRequest,
				Details: err.Error(),
			})
		}
	}

	if errs := validate.Struct(requestType); errs != nil {
		var verrs validator.ValidationErrors
		if !errors.As(errs, &verrs) {
			return c.Status(fiber.StatusBadRequest).JSON(core.ErrorResponse{
				Error:   "validation failed",
				Code:    core.ErrInvalidRequest,
				Details: errs.Error(),
			})
		}

		var details strings.Builder
		for _, err := range verrs {
			if details.Len() > 0 {
				details.WriteString("; ")
			}
			switch err.Tag() {
			case "required":
				details.WriteString(fmt.Sprintf("%s is required", err.Field()))
			case "min":
				if err.Type().Kind() == reflect.String {
					details.WriteString(fmt.Sprintf("%s must be at least %s characters", err.Field(), err.Param()))
				} else {
					details.WriteString(fmt.Sprintf("%s must be at least %s", err.Field(), err.Param()))
				}
			case "max":
				if err.Type().Kind() == reflect.String {
					details.WriteString(fmt.Sprintf("%s must be at most %s characters", err.Field(), err.Param()))
				} else {
					details.WriteString(fmt.Sprintf("%s must be at most %s", err.Field(), err.Param()))
				}
			default:
				details.WriteString(fmt.Sprintf("%s failed %s validation", err.Field(), err.Tag()))
			}
		}

		return c.Status(fiber.StatusBadRequest).JSON(core.ErrorResponse{
			Error:   "validation failed",
			Code:    core.ErrInvalidRequest,
			Details: details.String(),
			Detail:  details.String(),
		})
	}

	// Store validated body for handler use
	c.Locals("validatedBody", requestType)
	c.Locals("validated", true)

	return c.Next()
}

// requestIDMiddleware keeps a caller-supplied UUID request id or assigns one
func requestIDMiddleware(c *fiber.Ctx) error {
	id := c.Get(core.RequestIDHeader)
	if !isValidUUID(id) {
		id = uuid.NewString()
	}
	c.Locals("requestID", id)
	c.Set(core.RequestIDHeader, id)
	return c.Next()
}

func isValidUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}

// moveError renders a selection failure
func moveError(err error) core.ErrorResponse {
	resp := core.ErrorResponse{
		Error:   err.Error(),
		Code:    selector.Kind(err),
		Details: err.Error(),
	}

	switch {
	case errors.Is(err, selector.ErrInvalidFEN):
		resp.Detail = "Invalid FEN string"
	case errors.Is(err, selector.ErrGameOver):
		resp.Detail = "Game is over"
	case errors.Is(err, selector.ErrNoKey):
		resp.Detail = "OpenAI API key is missing. Please configure it in the settings."
	case errors.Is(err, selector.ErrRateLimited):
		resp.Detail = "OpenAI API quota exceeded or rate limit reached. Please check your plan limits."
	case errors.Is(err, selector.ErrUnauthorized):
		resp.Detail = "OpenAI API key is invalid or expired. Please check your settings."
	case errors.Is(err, selector.ErrUnavailable):
		resp.Detail = "Failed to connect to OpenAI API. Please check your internet connection."
	default:
		resp.Detail = "Internal server error: " + err.Error()
	}
	return resp
}
