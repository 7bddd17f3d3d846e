// Package api exposes run and dead letter queue administration over HTTP.
//
// Routes are registered on a fiber router so the API can be mounted into an
// existing fiber application or served standalone through [API.App].
package api

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"github.com/xraph/headless"
	"github.com/xraph/headless/engine"
	"github.com/xraph/headless/payload"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// API wires the HTTP handlers to an Engine.
type API struct {
	eng    *engine.Engine
	logger *slog.Logger
}

// Option configures an API.
type Option func(*API)

// WithLogger sets the logger for request failures.
func WithLogger(l *slog.Logger) Option {
	return func(a *API) { a.logger = l }
}

// New creates an API from a headless Engine.
func New(eng *engine.Engine, opts ...Option) *API {
	a := &API{eng: eng, logger: slog.Default()}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// App returns a fiber application with every route registered under /v1.
func (a *API) App() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "headless",
		DisableStartupMessage: true,
		ErrorHandler:          a.ErrorHandler,
	})
	a.RegisterRoutes(app)
	return app
}

// RegisterRoutes registers all routes on router.
func (a *API) RegisterRoutes(router fiber.Router) {
	v1 := router.Group("/v1")

	v1.Get("/runs", a.listRuns)
	v1.Post("/runs", a.startRun)
	v1.Get("/runs/:runId", a.getRun)
	v1.Post("/runs/:runId/cancel", a.cancelRun)

	v1.Get("/dlq", a.listDLQ)
	v1.Get("/dlq/count", a.dlqCount)
	v1.Post("/dlq/purge", a.purgeDLQ)
	v1.Get("/dlq/:entryId", a.getDLQ)
	v1.Post("/dlq/:entryId/replay", a.replayDLQ)

	v1.Get("/tasks", a.listTasks)
	v1.Get("/stats", a.stats)
}

// errorResponse is the body of every non-2xx response.
type errorResponse struct {
	Error string `json:"error"`
}

// ErrorHandler maps headless sentinel errors to HTTP status codes.
func (a *API) ErrorHandler(c *fiber.Ctx, err error) error {
	code := statusFor(err)
	if code >= fiber.StatusInternalServerError {
		a.logger.Error("api: request failed",
			slog.String("method", c.Method()),
			slog.String("path", c.Path()),
			slog.String("error", err.Error()),
		)
	}
	return c.Status(code).JSON(errorResponse{Error: err.Error()})
}

func statusFor(err error) int {
	var fe *fiber.Error
	switch {
	case errors.As(err, &fe):
		return fe.Code
	case errors.Is(err, headless.ErrRunNotFound),
		errors.Is(err, headless.ErrDLQNotFound),
		errors.Is(err, headless.ErrTaskNotRegistered):
		return fiber.StatusNotFound
	case errors.Is(err, headless.ErrForegroundNotAllowed):
		return fiber.StatusForbidden
	case errors.Is(err, headless.ErrThrottled):
		return fiber.StatusTooManyRequests
	case errors.Is(err, headless.ErrEngineStopped):
		return fiber.StatusServiceUnavailable
	case errors.Is(err, headless.ErrRunAlreadyExists):
		return fiber.StatusConflict
	case errors.Is(err, payload.ErrTooDeep),
		errors.Is(err, payload.ErrUnsupportedValue):
		return fiber.StatusUnprocessableEntity
	default:
		return fiber.StatusInternalServerError
	}
}

// page reads limit and offset query parameters.
func page(c *fiber.Ctx) (limit, offset int, err error) {
	limit = c.QueryInt("limit", defaultListLimit)
	offset = c.QueryInt("offset", 0)
	if limit < 1 || limit > maxListLimit {
		return 0, 0, fiber.NewError(fiber.StatusBadRequest, "limit must be between 1 and 500")
	}
	if offset < 0 {
		return 0, 0, fiber.NewError(fiber.StatusBadRequest, "offset must not be negative")
	}
	return limit, offset, nil
}
