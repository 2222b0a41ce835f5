package http

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"llmchess/internal/core"
	"llmchess/internal/server/service"
)

const (
	moveRateLimit   = 30 // req/min per IP
	providerTimeout = 60 * time.Second
)

// Config tunes the HTTP surface
type Config struct {
	AllowOrigins string    // CORS origins, "*" when empty
	DevMode      bool      // doubles the /move rate limit
	LogOutput    io.Writer // access log destination, stdout when nil
}

// HTTPHandler handles HTTP requests and routes them to the service
type HTTPHandler struct {
	svc *service.Service
}

func NewHTTPHandler(svc *service.Service) *HTTPHandler {
	return &HTTPHandler{svc: svc}
}

func NewFiberApp(svc *service.Service, cfg Config) *fiber.App {
	// Create handler
	h := NewHTTPHandler(svc)

	if cfg.AllowOrigins == "" {
		cfg.AllowOrigins = "*"
	}
	if cfg.LogOutput == nil {
		cfg.LogOutput = os.Stdout
	}

	// Initialize Fiber app; writes wait on the model
	app := fiber.New(fiber.Config{
		ErrorHandler:          customErrorHandler,
		ReadTimeout:           15 * time.Second,
		WriteTimeout:          providerTimeout + 15*time.Second,
		IdleTimeout:           90 * time.Second,
		DisableStartupMessage: true,
	})

	// Global middleware (order matters)
	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format: "${time} ${status} ${method} ${path} ${latency}\n",
		Output: cfg.LogOutput,
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins:  cfg.AllowOrigins,
		AllowMethods:  "GET,POST,OPTIONS",
		AllowHeaders:  "Origin,Content-Type,Accept," + core.KeyHeader + "," + core.RequestIDHeader,
		ExposeHeaders: core.RequestIDHeader,
	}))
	app.Use(requestIDMiddleware)

	// Health check (no rate limit)
	app.Get("/health", h.Health)

	// Content-Type validation for POST requests
	app.Use(contentTypeValidator)

	// Middleware validation for sanitization
	app.Use(validationMiddleware)

	config := app.Group("/config")
	config.Post("/api-key", h.ConfigureKey)
	config.Get("/models", h.Models)

	// Each /move costs a model call
	maxReq := moveRateLimit
	if cfg.DevMode {
		maxReq = moveRateLimit * 2
	}
	app.Post("/move", limiter.New(limiter.Config{
		Max:        maxReq,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			if xff := c.Get("X-Forwarded-For"); xff != "" {
				if idx := strings.Index(xff, ","); idx != -1 {
					return strings.TrimSpace(xff[:idx])
				}
				return xff
			}
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(core.ErrorResponse{
				Error:   "rate limit exceeded",
				Code:    core.ErrRateLimitExceeded,
				Details: fmt.Sprintf("%d move requests per minute allowed", maxReq),
				Detail:  "Too many move requests. Please slow down.",
			})
		},
	}), h.Move)

	return app
}

// contentTypeValidator ensures POST requests have application/json
func contentTypeValidator(c *fiber.Ctx) error {
	if c.Method() == fiber.MethodPost {
		contentType := c.Get("Content-Type")
		if contentType != "" && !strings.HasPrefix(contentType, fiber.MIMEApplicationJSON) {
			return c.Status(fiber.StatusUnsupportedMediaType).JSON(core.ErrorResponse{
				Error:   "unsupported media type",
				Code:    core.ErrInvalidContent,
				Details: "Content-Type must be application/json",
			})
		}
	}
	return c.Next()
}

// customErrorHandler provides consistent error responses
func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	response := core.ErrorResponse{
		Error: "internal server error",
		Code:  core.ErrInternalError,
	}

	// Check if it's a Fiber error
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		response.Error = e.Message

		// Map HTTP status to error codes
		switch code {
		case fiber.StatusNotFound, fiber.StatusBadRequest, fiber.StatusMethodNotAllowed:
			response.Code = core.ErrInvalidRequest
		case fiber.StatusTooManyRequests:
			response.Code = core.ErrRateLimitExceeded
		}
	}
	response.Detail = response.Error

	return c.Status(code).JSON(response)
}

// providerContext bounds calls that reach the model provider
func providerContext(c *fiber.Ctx) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.UserContext(), providerTimeout)
}

// Health check endpoint with key and storage status
func (h *HTTPHandler) Health(c *fiber.Ctx) error {
	return c.JSON(h.svc.Health(c.Get(core.KeyHeader)))
}

// ConfigureKey validates and stores the provider key taken from the header
// or the JSON body
func (h *HTTPHandler) ConfigureKey(c *fiber.Ctx) error {
	key := c.Get(core.KeyHeader)
	if key == "" {
		if req, ok := c.Locals("validatedBody").(*core.APIKeyRequest); ok {
			key = req.APIKey
		}
	}
	if key == "" {
		return c.Status(fiber.StatusBadRequest).JSON(core.ErrorResponse{
			Error:  "api key missing",
			Code:   core.ErrAPIKeyMissing,
			Detail: "Missing " + core.KeyHeader + " header",
		})
	}

	ctx, cancel := providerContext(c)
	defer cancel()

	if err := h.svc.ConfigureKey(ctx, key); err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(core.ErrorResponse{
			Error:  "invalid api key",
			Code:   core.ErrUnauthorized,
			Detail: "Invalid OpenAI API key: " + err.Error(),
		})
	}

	return c.JSON(core.APIKeyResponse{
		Status:  "success",
		Message: "API key validated and updated",
	})
}

// Models lists the chat models usable for move selection
func (h *HTTPHandler) Models(c *fiber.Ctx) error {
	ctx, cancel := providerContext(c)
	defer cancel()

	return c.JSON(h.svc.Models(ctx, c.Get(core.KeyHeader)))
}

// Move asks the model for a move in the posted position
func (h *HTTPHandler) Move(c *fiber.Ctx) error {
	// Ensure middleware validation ran
	validated, ok := c.Locals("validated").(bool)
	if !ok || !validated {
		return c.Status(fiber.StatusInternalServerError).JSON(core.ErrorResponse{
			Error: "validation bypass detected",
			Code:  core.ErrInternalError,
		})
	}
	req, ok := c.Locals("validatedBody").(*core.MoveRequest)
	if !ok {
		return c.Status(fiber.StatusInternalServerError).JSON(core.ErrorResponse{
			Error: "validation data missing",
			Code:  core.ErrInternalError,
		})
	}

	ctx, cancel := providerContext(c)
	defer cancel()

	requestID, _ := c.Locals("requestID").(string)
	resp, err := h.svc.Move(ctx, requestID, c.Get(core.KeyHeader), *req)
	if err != nil {
		return c.Status(service.StatusOf(err)).JSON(moveError(err))
	}

	return c.JSON(resp)
}
