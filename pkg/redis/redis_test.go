package redis

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigNew(t *testing.T) {
	mr := miniredis.RunT(t)

	cfg := Config{URL: "redis://" + mr.Addr() + "/0", ReadTimeout: 1, WriteTimeout: 1, DialTimeout: 1, PoolSize: 2}
	client, err := cfg.New(context.Background())
	require.NoError(t, err)
	defer client.Close()

	assert.Equal(t, 2, client.Options().PoolSize)
	assert.NoError(t, client.Set(context.Background(), "k", "v", 0).Err())
}

func TestConfigNewRejectsBadURL(t *testing.T) {
	cfg := Config{URL: "not-a-url"}
	_, err := cfg.New(context.Background())
	assert.Error(t, err)
}
