package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"

	"github.com/devbrain/devbrain/pkg/flowgraph"
	logx "github.com/devbrain/devbrain/pkg/logger"
	"github.com/devbrain/devbrain/pkg/validation"
)

type chatHandler struct {
	rt *flowgraph.Runtime
}

func (h *chatHandler) RegisterRoutes(r fiber.Router) {
	r.Post("/chat", validation.ValidateJSON[chatRequest](), h.Chat)
	r.Post("/chat/stream", validation.ValidateJSON[chatRequest](), h.Stream)

	validID := validation.ValidateParams(map[string]string{"id": "session_id"})
	r.Get("/sessions/:id", validID, h.Session)
	r.Delete("/sessions/:id", validID, h.Reset)

	r.Post("/runs/:id/stop", h.Stop)
}

func (h *chatHandler) Chat(c *fiber.Ctx) error {
	body, _ := validation.BodyFrom[chatRequest](c)
	res, err := h.rt.Execute(c.UserContext(), flowgraph.RunRequest{SessionID: body.ThreadID, Message: body.Message})
	if err != nil {
		return err
	}
	return c.JSON(chatResponse{
		RunID:     res.RunID,
		ThreadID:  res.SessionID,
		Status:    res.Status,
		Reply:     res.Reply(),
		QueryType: string(res.State.QueryType),
		Context:   res.State.Context,
		Events:    res.Events,
	})
}

// Stream answers with one server-sent event per step. The run is cancelled
// when the client goes away, detected by a failed flush.
func (h *chatHandler) Stream(c *fiber.Ctx) error {
	body, _ := validation.BodyFrom[chatRequest](c)
	stream, err := h.rt.Stream(context.Background(), flowgraph.RunRequest{SessionID: body.ThreadID, Message: body.Message})
	if err != nil {
		return err
	}

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")
	c.Set("X-Run-Id", stream.RunID())

	streamEvents(c.Context(), stream)
	return nil
}

func (h *chatHandler) Session(c *fiber.Ctx) error {
	cp, err := h.rt.Session(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(cp)
}

func (h *chatHandler) Reset(c *fiber.Ctx) error {
	if err := h.rt.ResetSession(c.UserContext(), c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *chatHandler) Stop(c *fiber.Ctx) error {
	if err := h.rt.Stop(c.UserContext(), c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusAccepted)
}

// streamEvents writes each event as an SSE data frame and closes the
// stream when the writer is done, cancelling the run if it is still going.
func streamEvents(rc *fasthttp.RequestCtx, stream *flowgraph.EventStream) {
	rc.SetBodyStreamWriter(func(w *bufio.Writer) {
		defer stream.Close()
		for ev := range stream.Events() {
			payload, err := json.Marshal(ev)
			if err != nil {
				logx.Error().Err(err).Str("runId", stream.RunID()).Msg("encode event")
				return
			}
			if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
				return
			}
			if err := w.Flush(); err != nil {
				logx.Info().Str("runId", stream.RunID()).Msg("stream client disconnected")
				return
			}
		}
	})
}
