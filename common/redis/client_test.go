package redis

import (
	"context"
	"testing"

	"github.com/LsSens/backend-ecommerce/common/config"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnect(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()

	client, err := Connect(ctx, &config.RedisConfig{Addr: mr.Addr()})
	require.NoError(t, err)
	require.NoError(t, client.Set(ctx, "tenant:host:shop.example.com", "{}", 0).Err())
	mr.CheckGet(t, "tenant:host:shop.example.com", "{}")

	require.NoError(t, Close(client))
	assert.Error(t, client.Ping(ctx).Err())
	assert.NoError(t, Close(nil))
}

func TestConnect_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	client, err := Connect(context.Background(), &config.RedisConfig{Addr: addr})
	require.Error(t, err)
	assert.Nil(t, client)
	assert.Contains(t, err.Error(), addr)
}
