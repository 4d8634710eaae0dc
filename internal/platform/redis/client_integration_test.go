//go:build integration

package redis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/WilliamsPJ19/africa-map-tracker/internal/platform/config"
	"github.com/WilliamsPJ19/africa-map-tracker/pkg/testutil/containers"
)

func TestClientAgainstServer(t *testing.T) {
	rc := containers.NewRedisContainer(t)
	ctx := context.Background()

	client, err := New(ctx, config.RedisConfig{URL: rc.URL, PoolSize: 4, DialTimeout: 5 * time.Second})
	require.NoError(t, err)

	assert.NoError(t, client.Health(ctx))
	assert.Equal(t, 4, client.Options().PoolSize)
	assert.Contains(t, client.Target(), "/0")

	require.NoError(t, client.Close())
	assert.Error(t, client.Health(ctx))
}
