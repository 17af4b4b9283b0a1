package main

import (
	"errors"
	"expvar"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/devbrain/devbrain/internal/app/dto"
	"github.com/devbrain/devbrain/internal/app/usecases"
	"github.com/devbrain/devbrain/internal/config"
	"github.com/devbrain/devbrain/internal/core/checkpoint"
	"github.com/devbrain/devbrain/internal/core/errx"
	"github.com/devbrain/devbrain/internal/infrastructure/metrics"
	"github.com/devbrain/devbrain/pkg/flowgraph"
	logx "github.com/devbrain/devbrain/pkg/logger"
)

// chatRequest is the body of /chat and /chat/stream.
type chatRequest struct {
	Message  string `json:"message" validate:"required,max=16000"`
	ThreadID string `json:"threadId" validate:"required,session_id"`
}

type chatResponse struct {
	RunID     string          `json:"runId"`
	ThreadID  string          `json:"threadId"`
	Status    dto.RunStatus   `json:"status"`
	Reply     string          `json:"reply"`
	QueryType string          `json:"queryType"`
	Context   []string        `json:"context"`
	Events    []dto.StepEvent `json:"events"`
}

type errorBody struct {
	Error string        `json:"error"`
	Kind  dto.ErrorKind `json:"kind,omitempty"`
}

func newServer(rt *flowgraph.Runtime, cfg config.ServerConfig) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "devbrain",
		BodyLimit:             cfg.BodyLimit,
		ReadTimeout:           cfg.ReadTimeout,
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler,
	})
	app.Use(recover.New())
	app.Use(cors.New())

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})
	app.Get("/metrics", func(c *fiber.Ctx) error {
		c.Set(fiber.HeaderContentType, "text/plain; version=0.0.4; charset=utf-8")
		metrics.WritePrometheus(c)
		return nil
	})
	app.Get("/debug/vars", adaptor.HTTPHandler(expvar.Handler()))
	app.Get("/stats", func(c *fiber.Ctx) error {
		return c.JSON(rt.Metrics())
	})

	h := &chatHandler{rt: rt}
	h.RegisterRoutes(app)
	return app
}

// errorHandler maps engine and store errors to HTTP statuses.
func errorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return c.Status(fe.Code).JSON(errorBody{Error: fe.Message})
	}
	status, kind := statusOf(err)
	if status >= fiber.StatusInternalServerError {
		logx.Error().Err(err).Str("path", c.Path()).Msg("request failed")
	}
	return c.Status(status).JSON(errorBody{Error: err.Error(), Kind: kind})
}

func statusOf(err error) (int, dto.ErrorKind) {
	switch {
	case errors.Is(err, checkpoint.ErrCheckpointNotFound), errors.Is(err, usecases.ErrRunNotFound):
		return fiber.StatusNotFound, ""
	case errors.Is(err, checkpoint.ErrInvalidSessionID):
		return fiber.StatusBadRequest, dto.KindInvalidRequest
	}
	kind := dto.KindOf(err)
	switch kind {
	case dto.KindInvalidRequest:
		return fiber.StatusBadRequest, kind
	case dto.KindSessionBusy:
		return fiber.StatusConflict, kind
	case dto.KindNodeTimeout:
		return fiber.StatusGatewayTimeout, kind
	case dto.KindNodeCapabilityFailure:
		return fiber.StatusBadGateway, kind
	case dto.KindStoreUnavailable:
		return fiber.StatusServiceUnavailable, kind
	case dto.KindCancelled:
		return fiber.StatusRequestTimeout, kind
	}
	return errx.StatusOf(err), kind
}
