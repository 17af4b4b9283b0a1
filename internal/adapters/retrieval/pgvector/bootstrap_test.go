package pgvector

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeIngester struct {
	existing int64
	countErr error
	failOn   string
	docs     []map[string]any
	contents []string
}

func (f *fakeIngester) Count(context.Context) (int64, error) { return f.existing, f.countErr }

func (f *fakeIngester) IngestDocument(_ context.Context, content string, metadata map[string]any) (string, error) {
	if metadata["source"] == f.failOn {
		return "", errors.New("insert failed")
	}
	f.docs = append(f.docs, metadata)
	f.contents = append(f.contents, content)
	return "id", nil
}

func writeDocs(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"b-affiliates.md": "affiliate logic",
		"a-checkout.md":   "checkout flow",
		"notes.txt":       "ignored",
	}
	for name, body := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o600))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested.md"), 0o700))
	return dir
}

func TestBootstrap(t *testing.T) {
	ctx := context.Background()

	t.Run("ingests markdown files in name order", func(t *testing.T) {
		ing := &fakeIngester{}
		n, err := Bootstrap(ctx, ing, writeDocs(t))
		require.NoError(t, err)
		assert.Equal(t, 2, n)
		assert.Equal(t, []string{"checkout flow", "affiliate logic"}, ing.contents)
		assert.Equal(t, map[string]any{"source": "a-checkout.md", "type": "documentation"}, ing.docs[0])
	})

	t.Run("skips when data exists", func(t *testing.T) {
		ing := &fakeIngester{existing: 4}
		n, err := Bootstrap(ctx, ing, writeDocs(t))
		require.NoError(t, err)
		assert.Zero(t, n)
		assert.Empty(t, ing.docs)
	})

	t.Run("count failure", func(t *testing.T) {
		_, err := Bootstrap(ctx, &fakeIngester{countErr: errors.New("db down")}, writeDocs(t))
		assert.Error(t, err)
	})

	t.Run("missing directory", func(t *testing.T) {
		_, err := Bootstrap(ctx, &fakeIngester{}, filepath.Join(t.TempDir(), "nope"))
		assert.Error(t, err)
	})

	t.Run("stops at first failure", func(t *testing.T) {
		ing := &fakeIngester{failOn: "b-affiliates.md"}
		n, err := Bootstrap(ctx, ing, writeDocs(t))
		assert.Error(t, err)
		assert.Equal(t, 1, n)
	})
}
