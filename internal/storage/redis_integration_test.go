package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"

	platformredis "cultivar/internal/platform/redis"
)

// Requires a container runtime; skipped in short mode.
func TestRedisStoreIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping redis integration test in short mode")
	}

	ctx := context.Background()

	container, err := tcredis.Run(ctx, "redis:7-alpine")
	testcontainers.CleanupContainer(t, container)
	require.NoError(t, err)

	url, err := container.ConnectionString(ctx)
	require.NoError(t, err)

	client, err := platformredis.New(url)
	require.NoError(t, err)

	store := NewRedisStore(client)
	t.Cleanup(func() { _ = store.Close() })

	_, err = store.Get(ctx, "missing")
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.Set(ctx, "legal", []byte(`{"accepted":{}}`)))
	value, err := store.Get(ctx, "legal")
	require.NoError(t, err)
	require.Equal(t, `{"accepted":{}}`, string(value))

	require.NoError(t, store.Remove(ctx, "legal"))
	_, err = store.Get(ctx, "legal")
	require.ErrorIs(t, err, ErrNotFound)
}
