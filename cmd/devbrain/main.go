// Package main provides the devbrain CLI application
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"

	llm "github.com/devbrain/devbrain/internal/adapters/llm/openai"
	"github.com/devbrain/devbrain/internal/adapters/repository/postgres"
	"github.com/devbrain/devbrain/internal/adapters/retrieval/pgvector"
	"github.com/devbrain/devbrain/internal/app/dto"
	"github.com/devbrain/devbrain/internal/config"
	"github.com/devbrain/devbrain/pkg/flowgraph"
	logx "github.com/devbrain/devbrain/pkg/logger"
)

// Version information set during build
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

const usage = `usage: devbrain <command>

commands:
  version        print build information
  dry-run        run a greeting and a wiki question against a mock retriever
  ingest <dir>   embed every .md file in dir into the vector store (skipped when not empty)
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdout))
}

func run(ctx context.Context, args []string, out io.Writer, opts ...flowgraph.Option) int {
	if len(args) == 0 {
		fmt.Fprint(out, usage)
		return 2
	}
	if args[0] == "version" {
		fmt.Fprintf(out, "devbrain %s (commit: %s, built: %s)\n", Version, Commit, BuildTime)
		return 0
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(out, "error: %v\n", err)
		return 1
	}
	logx.Init(logx.LoggerOpts{Environment: cfg.Env(), Level: cfg.LogLevel, Output: os.Stderr})

	switch args[0] {
	case "dry-run":
		err = dryRun(ctx, cfg, out, opts...)
	case "ingest":
		if len(args) < 2 {
			err = errors.New("ingest needs a directory")
			break
		}
		err = ingest(ctx, cfg, args[1], out)
	default:
		fmt.Fprint(out, usage)
		return 2
	}
	if err != nil {
		fmt.Fprintf(out, "error: %v\n", err)
		return 1
	}
	return 0
}

// dryRun exercises both branches of the router with an in-memory store.
func dryRun(ctx context.Context, cfg *config.Config, out io.Writer, opts ...flowgraph.Option) error {
	cfg.Checkpoint.Backend = config.BackendMemory
	cfg.Retrieval.Enabled = false

	mock := dto.RetrieverFunc(func(_ context.Context, query string) ([]dto.Passage, error) {
		fmt.Fprintf(out, "[mock db] searching for: %q\n", query)
		return []dto.Passage{{Content: "Found mock doc about affiliates in /docs/affiliate.md", Source: "affiliate.md"}}, nil
	})
	rt, err := flowgraph.New(ctx, cfg, append([]flowgraph.Option{flowgraph.WithRetriever(mock)}, opts...)...)
	if err != nil {
		return err
	}
	defer rt.Close()

	fmt.Fprintln(out, "Starting dry run...")
	cases := []struct{ title, session, message string }{
		{"General greeting", "dry-run-a", "Hello! How can you help me today?"},
		{"Technical wiki question", "dry-run-b", "Where is the affiliate logic located?"},
	}
	for _, tc := range cases {
		fmt.Fprintf(out, "\n--- %s ---\n", tc.title)
		res, err := rt.Run(ctx, tc.session, tc.message)
		if err != nil {
			return fmt.Errorf("%s: %w", tc.title, err)
		}
		fmt.Fprintf(out, "Result: %s path taken.\n", res.State.QueryType)
		fmt.Fprintf(out, "Docs found: %d\n", len(res.State.Context))
		fmt.Fprintf(out, "Response: %s\n", res.Reply())
	}
	return nil
}

func ingest(ctx context.Context, cfg *config.Config, dir string, out io.Writer) error {
	dsn := cfg.RetrievalDSN()
	if dsn == "" {
		return errors.New("set RETRIEVAL_DATABASE_URL or POSTGRES_DSN to ingest documents")
	}
	pool, err := postgres.NewPool(ctx, dsn, postgres.PoolConfig{MaxConns: cfg.Postgres.MaxConns})
	if err != nil {
		return err
	}
	client := llm.NewClient(llm.Config{
		APIKey:         cfg.LLM.APIKey,
		BaseURL:        cfg.LLM.BaseURL,
		EmbeddingModel: cfg.LLM.EmbeddingModel,
		RequestTimeout: cfg.LLM.RequestTimeout,
	})
	store := pgvector.NewStore(pool, client, pgvector.Config{
		Limit:      cfg.Retrieval.Limit,
		Threshold:  cfg.Retrieval.Threshold,
		Dimensions: cfg.Retrieval.Dimensions,
	})
	defer store.Close()

	if err := store.InitSchema(ctx); err != nil {
		return err
	}
	n, err := pgvector.Bootstrap(ctx, store, dir)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "ingested %d documents\n", n)
	return nil
}
