package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/devbrain/devbrain/internal/app/usecases"
	"github.com/devbrain/devbrain/internal/core/state"
	"github.com/devbrain/devbrain/pkg/flowgraph"
)

func TestRun_Version(t *testing.T) {
	tests := []struct {
		name      string
		version   string
		commit    string
		buildTime string
		want      string
	}{
		{
			name:      "version with dev defaults",
			version:   "dev",
			commit:    "unknown",
			buildTime: "unknown",
			want:      "devbrain dev (commit: unknown, built: unknown)\n",
		},
		{
			name:      "version with custom values",
			version:   "v1.0.0",
			commit:    "abc123",
			buildTime: "2024-01-01",
			want:      "devbrain v1.0.0 (commit: abc123, built: 2024-01-01)\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			oldVersion, oldCommit, oldBuildTime := Version, Commit, BuildTime
			defer func() { Version, Commit, BuildTime = oldVersion, oldCommit, oldBuildTime }()
			Version, Commit, BuildTime = tt.version, tt.commit, tt.buildTime

			var out bytes.Buffer
			code := run(context.Background(), []string{"version"}, &out)
			assert.Equal(t, 0, code)
			assert.Equal(t, tt.want, out.String())
		})
	}
}

func TestRun_Usage(t *testing.T) {
	var out bytes.Buffer
	assert.Equal(t, 2, run(context.Background(), nil, &out))
	assert.Contains(t, out.String(), "usage: devbrain")

	out.Reset()
	assert.Equal(t, 2, run(context.Background(), []string{"bogus"}, &out))
}

// keywordClassifier labels questions that mention "logic" as WIKI.
func keywordClassifier() flowgraph.Option {
	return flowgraph.WithClassifier(usecases.ClassifierFunc(func(_ context.Context, text string) (string, error) {
		if strings.Contains(text, "logic") {
			return "WIKI", nil
		}
		return "GENERAL", nil
	}))
}

func TestRun_DryRun(t *testing.T) {
	gen := flowgraph.WithGenerator(usecases.GeneratorFunc(func(_ context.Context, system string, _ []state.Message) (string, error) {
		return system, nil
	}))

	var out bytes.Buffer
	code := run(context.Background(), []string{"dry-run"}, &out, keywordClassifier(), gen)
	assert.Equal(t, 0, code, out.String())

	got := out.String()
	assert.Contains(t, got, "Result: GENERAL path taken.")
	assert.Contains(t, got, "Result: WIKI path taken.")
	assert.Contains(t, got, `[mock db] searching for: "Where is the affiliate logic located?"`)
	assert.Contains(t, got, "Docs found: 1")
	assert.Contains(t, got, "Response: You are a Senior Dev Assistant. Answer generally.")
	assert.Contains(t, got, "Source: affiliate.md")
	assert.Equal(t, 1, strings.Count(got, "[mock db]"), "greeting must not hit the retriever")
}

func TestRun_IngestErrors(t *testing.T) {
	t.Setenv("POSTGRES_DSN", "")
	t.Setenv("RETRIEVAL_DATABASE_URL", "")

	var out bytes.Buffer
	assert.Equal(t, 1, run(context.Background(), []string{"ingest"}, &out))
	assert.Contains(t, out.String(), "ingest needs a directory")

	out.Reset()
	assert.Equal(t, 1, run(context.Background(), []string{"ingest", t.TempDir()}, &out))
	assert.Contains(t, out.String(), "RETRIEVAL_DATABASE_URL")
}
