// Package main runs the devbrain HTTP server: chat, streamed chat over
// server-sent events, session inspection and metrics.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/devbrain/devbrain/internal/config"
	"github.com/devbrain/devbrain/pkg/flowgraph"
	logx "github.com/devbrain/devbrain/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logx.Fatal().Err(err).Msg("load config")
	}
	logx.Init(logx.LoggerOpts{Environment: cfg.Env(), Level: cfg.LogLevel})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := flowgraph.New(ctx, cfg)
	if err != nil {
		logx.Fatal().Err(err).Msg("build runtime")
	}
	defer rt.Close()

	app := newServer(rt, cfg.Server)
	go func() {
		<-ctx.Done()
		logx.Info().Msg("shutting down")
		if err := app.ShutdownWithTimeout(cfg.Server.ShutdownTimeout); err != nil {
			logx.Error().Err(err).Msg("shutdown")
		}
	}()

	logx.Info().Str("addr", cfg.Server.Addr).Msg("devbrain server listening")
	if err := app.Listen(cfg.Server.Addr); err != nil {
		logx.Fatal().Err(err).Msg("server error")
	}
}
