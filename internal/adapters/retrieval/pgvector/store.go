// Package pgvector stores document sections with their embeddings in
// PostgreSQL and serves them back as retrieval passages.
package pgvector

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/devbrain/devbrain/internal/app/dto"
	logx "github.com/devbrain/devbrain/pkg/logger"
)

// Defaults used when Config leaves a field zero.
const (
	DefaultLimit      = 3
	DefaultThreshold  = 0.4
	DefaultDimensions = 384
)

var (
	// ErrDimensionMismatch is returned when an embedding does not fit the column.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
	// ErrEmptyContent is returned when ingesting a blank section.
	ErrEmptyContent = errors.New("document content is empty")
)

// Embedder turns text into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// EmbedderFunc adapts a function to Embedder.
type EmbedderFunc func(ctx context.Context, text string) ([]float32, error)

func (f EmbedderFunc) Embed(ctx context.Context, text string) ([]float32, error) {
	return f(ctx, text)
}

// Config tunes search.
type Config struct {
	Limit      int
	Threshold  float64
	Dimensions int
}

func (c Config) withDefaults() Config {
	if c.Limit <= 0 {
		c.Limit = DefaultLimit
	}
	if c.Threshold <= 0 {
		c.Threshold = DefaultThreshold
	}
	if c.Dimensions <= 0 {
		c.Dimensions = DefaultDimensions
	}
	return c
}

// Store handles document_sections with pgvector.
// It implements dto.Retriever.
type Store struct {
	pool     *pgxpool.Pool
	embedder Embedder
	cfg      Config
}

var _ dto.Retriever = (*Store)(nil)

// NewStore creates a store over an open pool.
func NewStore(pool *pgxpool.Pool, embedder Embedder, cfg Config) *Store {
	return &Store{pool: pool, embedder: embedder, cfg: cfg.withDefaults()}
}

// InitSchema creates the extension, the table and its HNSW index.
func (s *Store) InitSchema(ctx context.Context) error {
	queries := []string{
		"CREATE EXTENSION IF NOT EXISTS vector",
		fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS document_sections (
				id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
				content TEXT NOT NULL,
				metadata JSONB,
				embedding vector(%d)
			)`, s.cfg.Dimensions),
		`CREATE INDEX IF NOT EXISTS document_sections_embedding_idx
			ON document_sections USING hnsw (embedding vector_cosine_ops)`,
	}
	for _, q := range queries {
		if _, err := s.pool.Exec(ctx, q); err != nil {
			return fmt.Errorf("failed to execute schema query: %w", err)
		}
	}
	return nil
}

// IngestDocument embeds content and inserts it, returning the new row id.
func (s *Store) IngestDocument(ctx context.Context, content string, metadata map[string]any) (string, error) {
	if content == "" {
		return "", ErrEmptyContent
	}
	vec, err := s.embed(ctx, content)
	if err != nil {
		return "", err
	}
	if metadata == nil {
		metadata = map[string]any{}
	}
	var id string
	err = s.pool.QueryRow(ctx,
		`INSERT INTO document_sections (content, embedding, metadata) VALUES ($1, $2, $3) RETURNING id::text`,
		content, vec, metadata,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("failed to insert document: %w", err)
	}
	logx.Debug().Str("id", id).Int("bytes", len(content)).Msg("document ingested")
	return id, nil
}

// Count returns the number of stored sections.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM document_sections`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count documents: %w", err)
	}
	return n, nil
}

// Retrieve embeds query and returns the closest sections above the threshold.
func (s *Store) Retrieve(ctx context.Context, query string) ([]dto.Passage, error) {
	vec, err := s.embed(ctx, query)
	if err != nil {
		return nil, err
	}
	return s.search(ctx, vec, s.cfg.Limit, s.cfg.Threshold)
}

// Search runs a similarity search for a precomputed embedding.
func (s *Store) Search(ctx context.Context, embedding []float32, limit int, threshold float64) ([]dto.Passage, error) {
	if len(embedding) != s.cfg.Dimensions {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(embedding), s.cfg.Dimensions)
	}
	return s.search(ctx, pgvector.NewVector(embedding), limit, threshold)
}

func (s *Store) search(ctx context.Context, vec pgvector.Vector, limit int, threshold float64) ([]dto.Passage, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT content, COALESCE(metadata->>'source', ''), 1 - (embedding <=> $1) AS similarity
		FROM document_sections
		WHERE 1 - (embedding <=> $1) > $2
		ORDER BY similarity DESC
		LIMIT $3`, vec, threshold, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to execute similarity search: %w", err)
	}
	defer rows.Close()

	passages := make([]dto.Passage, 0, limit)
	for rows.Next() {
		var p dto.Passage
		if err := rows.Scan(&p.Content, &p.Source, &p.Similarity); err != nil {
			return nil, fmt.Errorf("failed to scan search result: %w", err)
		}
		passages = append(passages, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating search results: %w", err)
	}
	return passages, nil
}

func (s *Store) embed(ctx context.Context, text string) (pgvector.Vector, error) {
	if s.embedder == nil {
		return pgvector.Vector{}, errors.New("no embedder configured")
	}
	raw, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return pgvector.Vector{}, fmt.Errorf("failed to embed text: %w", err)
	}
	if len(raw) != s.cfg.Dimensions {
		return pgvector.Vector{}, fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(raw), s.cfg.Dimensions)
	}
	return pgvector.NewVector(raw), nil
}

// Close releases the pool.
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}
