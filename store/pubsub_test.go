package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryPubSubDeliversInOrder(t *testing.T) {
	ps := NewMemoryPubSub()
	ctx := context.Background()

	var got []string
	require.NoError(t, ps.Subscribe(ctx, "c", func(m []byte) { got = append(got, string(m)) }))

	for _, m := range []string{"1", "2", "3"} {
		require.NoError(t, ps.Publish(ctx, "c", []byte(m)))
	}
	assert.Equal(t, []string{"1", "2", "3"}, got)
}

func TestMemoryPubSubChannelsAreIsolated(t *testing.T) {
	ps := NewMemoryPubSub()
	ctx := context.Background()

	var a, b int
	require.NoError(t, ps.Subscribe(ctx, "a", func([]byte) { a++ }))
	require.NoError(t, ps.Subscribe(ctx, "b", func([]byte) { b++ }))

	require.NoError(t, ps.Publish(ctx, "a", nil))
	require.NoError(t, ps.Publish(ctx, "nobody", nil))

	assert.Equal(t, 1, a)
	assert.Equal(t, 0, b)
}

func TestMemoryPubSubClose(t *testing.T) {
	ps := NewMemoryPubSub()
	ctx := context.Background()

	calls := 0
	require.NoError(t, ps.Subscribe(ctx, "c", func([]byte) { calls++ }))
	require.NoError(t, ps.Close())

	assert.ErrorIs(t, ps.Publish(ctx, "c", nil), ErrClosed)
	assert.ErrorIs(t, ps.Subscribe(ctx, "c", func([]byte) {}), ErrClosed)
	assert.Equal(t, 0, calls)
}
