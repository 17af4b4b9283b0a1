package prebuilt

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	built := &Pipeline{}
	r.Register(NewBuildFunc("b", func(context.Context, any) (*Pipeline, error) { return built, nil }))
	r.Register(NewBuildFunc("a", func(context.Context, any) (*Pipeline, error) { return nil, errors.New("bad config") }))

	assert.Equal(t, []string{"a", "b"}, r.Names())

	p, err := r.Build(context.Background(), "b", nil)
	require.NoError(t, err)
	assert.Same(t, built, p)

	_, err = r.Build(context.Background(), "a", nil)
	assert.EqualError(t, err, "bad config")

	_, err = r.Build(context.Background(), "missing", nil)
	assert.ErrorIs(t, err, ErrUnknownPrebuilt)

	assert.Panics(t, func() {
		r.MustRegister(NewBuildFunc("a", nil))
	})
}
