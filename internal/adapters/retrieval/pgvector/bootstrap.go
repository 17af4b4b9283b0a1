package pgvector

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	logx "github.com/devbrain/devbrain/pkg/logger"
)

// Ingester is the part of Store that Bootstrap needs.
type Ingester interface {
	Count(ctx context.Context) (int64, error)
	IngestDocument(ctx context.Context, content string, metadata map[string]any) (string, error)
}

// Bootstrap ingests every markdown file in dir, one section per file.
// It does nothing when the store already holds documents.
func Bootstrap(ctx context.Context, ing Ingester, dir string) (int, error) {
	n, err := ing.Count(ctx)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		logx.Info().Int64("documents", n).Msg("data already exists, skipping bootstrap")
		return 0, nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("failed to read data directory: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".md") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	ingested := 0
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return ingested, err
		}
		content, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return ingested, fmt.Errorf("failed to read %s: %w", name, err)
		}
		if _, err := ing.IngestDocument(ctx, string(content), map[string]any{"source": name, "type": "documentation"}); err != nil {
			return ingested, fmt.Errorf("ingest %s: %w", name, err)
		}
		ingested++
		logx.Info().Str("file", name).Msg("ingested")
	}
	return ingested, nil
}
