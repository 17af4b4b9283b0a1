package main

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devbrain/devbrain/internal/app/dto"
	"github.com/devbrain/devbrain/internal/app/usecases"
	"github.com/devbrain/devbrain/internal/config"
	"github.com/devbrain/devbrain/internal/core/checkpoint"
	"github.com/devbrain/devbrain/internal/core/state"
	"github.com/devbrain/devbrain/pkg/flowgraph"
)

func newTestApp(t *testing.T, label string) (*flowgraph.Runtime, func(*http.Request) *http.Response) {
	t.Helper()
	cfg, err := config.FromEnv()
	require.NoError(t, err)

	rt, err := flowgraph.New(context.Background(), cfg,
		flowgraph.WithClassifier(usecases.ClassifierFunc(func(context.Context, string) (string, error) { return label, nil })),
		flowgraph.WithGenerator(usecases.GeneratorFunc(func(_ context.Context, _ string, h []state.Message) (string, error) {
			return "re: " + h[len(h)-1].Content, nil
		})),
		flowgraph.WithRetriever(dto.RetrieverFunc(func(context.Context, string) ([]dto.Passage, error) {
			return []dto.Passage{{Content: "checkout lives in services/checkout", Source: "checkout.md"}}, nil
		})),
	)
	require.NoError(t, err)
	t.Cleanup(rt.Close)

	app := newServer(rt, cfg.Server)
	return rt, func(req *http.Request) *http.Response {
		resp, err := app.Test(req, -1)
		require.NoError(t, err)
		return resp
	}
}

func jsonRequest(method, path, body string) *http.Request {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestChat(t *testing.T) {
	_, do := newTestApp(t, "GENERAL")

	resp := do(jsonRequest(http.MethodPost, "/chat", `{"message":"hi","threadId":"t-1"}`))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out chatResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, "re: hi", out.Reply)
	assert.Equal(t, "GENERAL", out.QueryType)
	assert.Equal(t, dto.RunStatusCompleted, out.Status)
	require.Len(t, out.Events, 3)
	assert.Equal(t, dto.EventCompleted, out.Events[2].Type)
}

func TestChat_InvalidBody(t *testing.T) {
	_, do := newTestApp(t, "GENERAL")

	tests := []struct {
		name string
		body string
	}{
		{"missing message", `{"threadId":"t-1"}`},
		{"bad thread id", `{"message":"hi","threadId":"has space"}`},
		{"not json", `{`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := do(jsonRequest(http.MethodPost, "/chat", tt.body))
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	}
}

func TestChatStream(t *testing.T) {
	_, do := newTestApp(t, "WIKI")

	resp := do(jsonRequest(http.MethodPost, "/chat/stream", `{"message":"where is checkout?","threadId":"t-2"}`))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))
	assert.NotEmpty(t, resp.Header.Get("X-Run-Id"))

	var events []dto.StepEvent
	sc := bufio.NewScanner(resp.Body)
	for sc.Scan() {
		line := sc.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var ev dto.StepEvent
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev))
		events = append(events, ev)
	}
	require.Len(t, events, 4)
	assert.Equal(t, "classify", events[0].Node)
	assert.Equal(t, "retrieve", events[1].Node)
	assert.Equal(t, []string{"Source: checkout.md\nContent: checkout lives in services/checkout"}, events[1].Data.Context)
	assert.Equal(t, "generate", events[2].Node)
	assert.Equal(t, dto.EventCompleted, events[3].Type)
}

func TestSessions(t *testing.T) {
	rt, do := newTestApp(t, "GENERAL")
	_, err := rt.Run(context.Background(), "t-3", "hello")
	require.NoError(t, err)

	resp := do(httptest.NewRequest(http.MethodGet, "/sessions/t-3", nil))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var cp checkpoint.Checkpoint
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&cp))
	assert.Equal(t, "t-3", cp.SessionID)
	assert.Len(t, cp.State.Messages, 2)

	resp = do(httptest.NewRequest(http.MethodDelete, "/sessions/t-3", nil))
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = do(httptest.NewRequest(http.MethodGet, "/sessions/t-3", nil))
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = do(httptest.NewRequest(http.MethodGet, "/sessions/bad%20id", nil))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestStopUnknownRun(t *testing.T) {
	_, do := newTestApp(t, "GENERAL")
	resp := do(httptest.NewRequest(http.MethodPost, "/runs/nope/stop", nil))
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestOpsEndpoints(t *testing.T) {
	rt, do := newTestApp(t, "GENERAL")
	_, err := rt.Run(context.Background(), "t-4", "hello")
	require.NoError(t, err)

	resp := do(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = do(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), "devbrain_runs_total")

	resp = do(httptest.NewRequest(http.MethodGet, "/debug/vars", nil))
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = do(httptest.NewRequest(http.MethodGet, "/stats", nil))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestStatusOf(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{checkpoint.ErrSessionBusy, http.StatusConflict},
		{dto.ErrNodeTimeout, http.StatusGatewayTimeout},
		{dto.ErrNodeCapabilityFailure, http.StatusBadGateway},
		{checkpoint.ErrStoreUnavailable, http.StatusServiceUnavailable},
		{dto.ErrInvalidRequest, http.StatusBadRequest},
		{checkpoint.ErrCheckpointNotFound, http.StatusNotFound},
		{io.EOF, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		got, _ := statusOf(tt.err)
		assert.Equal(t, tt.want, got, tt.err.Error())
	}
}
