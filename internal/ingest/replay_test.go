package ingest

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisReplayCache_RoundTrip(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	cache := NewRedisReplayCache(client, time.Hour)
	ctx := context.Background()

	_, ok, err := cache.Lookup(ctx, "staging:ingest:5:key:k-1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, cache.Remember(ctx, "staging:ingest:5:key:k-1", &Summary{BatchID: "b-1", TotalRecords: 2, AcceptedRecords: 2}))

	got, ok, err := cache.Lookup(ctx, "staging:ingest:5:key:k-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "b-1", got.BatchID)
	assert.Equal(t, 2, got.AcceptedRecords)

	mr.FastForward(2 * time.Hour)
	_, ok, err = cache.Lookup(ctx, "staging:ingest:5:key:k-1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisReplayCache_Commands(t *testing.T) {
	client, mock := redismock.NewClientMock()
	cache := NewRedisReplayCache(client, 24*time.Hour)
	ctx := context.Background()
	key := "staging:ingest:5:key:k-2"

	summary := &Summary{BatchID: "b-2", TotalRecords: 1}
	data, err := json.Marshal(summary)
	require.NoError(t, err)

	mock.ExpectGet(key).RedisNil()
	mock.ExpectSet(key, data, 24*time.Hour).SetVal("OK")

	_, ok, err := cache.Lookup(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)
	require.NoError(t, cache.Remember(ctx, key, summary))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisReplayCache_Errors(t *testing.T) {
	client, mock := redismock.NewClientMock()
	cache := NewRedisReplayCache(client, time.Minute)
	ctx := context.Background()

	mock.ExpectGet("k").SetErr(assert.AnError)
	_, _, err := cache.Lookup(ctx, "k")
	assert.ErrorIs(t, err, assert.AnError)

	mock.ExpectGet("k").SetVal("not json")
	_, _, err = cache.Lookup(ctx, "k")
	assert.Error(t, err)

	assert.NoError(t, mock.ExpectationsWereMet())
}
