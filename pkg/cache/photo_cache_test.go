package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupPhotoCache(t *testing.T, ttl time.Duration) (*PhotoCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewPhotoCache(client, ttl), mr
}

func TestPhotoCache_PutGet(t *testing.T) {
	ctx := context.Background()
	c, mr := setupPhotoCache(t, time.Hour)

	url := "http://minio:9000/photos/avatars/a.jpg"
	require.NoError(t, c.Put(ctx, url, []byte{0xff, 0xd8, 0x01}))

	data, ok, err := c.Get(ctx, url)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte{0xff, 0xd8, 0x01}, data)
	assert.True(t, mr.Exists("photo:"+url))
}

func TestPhotoCache_Miss(t *testing.T) {
	c, _ := setupPhotoCache(t, time.Hour)

	data, ok, err := c.Get(context.Background(), "http://nowhere/none.jpg")
	assert.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, data)
}

func TestPhotoCache_Expiry(t *testing.T) {
	ctx := context.Background()
	c, mr := setupPhotoCache(t, time.Minute)

	require.NoError(t, c.Put(ctx, "u", []byte("x")))
	mr.FastForward(2 * time.Minute)

	_, ok, err := c.Get(ctx, "u")
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestPhotoCache_Delete(t *testing.T) {
	ctx := context.Background()
	c, mr := setupPhotoCache(t, time.Hour)

	require.NoError(t, c.Put(ctx, "u", []byte("x")))
	require.NoError(t, c.Delete(ctx, "u"))
	assert.False(t, mr.Exists("photo:u"))

	// Deleting an absent entry is fine.
	assert.NoError(t, c.Delete(ctx, "u"))
}
