package redis

import (
	"context"
	"fmt"
	"strconv"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/packquote-backend/pkg/config"
)

func TestFixedWindowAllow(t *testing.T) {
	ctx := context.Background()
	mock := newMockCmdable()
	client := &Client{store: mock}

	win, err := client.FixedWindowAllow(ctx, "ip:coupon_validate:1.2.3.4", 2, time.Minute)
	require.NoError(t, err)
	assert.True(t, win.Allowed)
	assert.EqualValues(t, 1, win.Count)
	assert.EqualValues(t, 1, win.Remaining())
	assert.Equal(t, time.Minute, win.ResetIn)
	assert.Equal(t, time.Minute, mock.ttl["pq:rate_limit:ip:coupon_validate:1.2.3.4"])

	win, err = client.FixedWindowAllow(ctx, "ip:coupon_validate:1.2.3.4", 2, time.Minute)
	require.NoError(t, err)
	assert.True(t, win.Allowed)
	assert.EqualValues(t, 0, win.Remaining())

	win, err = client.FixedWindowAllow(ctx, "ip:coupon_validate:1.2.3.4", 2, time.Minute)
	require.NoError(t, err)
	assert.False(t, win.Allowed)
	assert.EqualValues(t, 3, win.Count)
	assert.EqualValues(t, 0, win.Remaining())
}

func TestCacheRoundTripAndMiss(t *testing.T) {
	ctx := context.Background()
	client := &Client{store: newMockCmdable()}
	key := client.CacheKey("rates", "2024-01")

	_, err := client.Get(ctx, key)
	assert.True(t, IsMiss(err))

	require.NoError(t, client.Set(ctx, key, `{"version":"2024-01"}`, time.Minute))
	got, err := client.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, `{"version":"2024-01"}`, got)

	require.NoError(t, client.Del(ctx, key))
	_, err = client.Get(ctx, key)
	assert.True(t, IsMiss(err))
}

func TestUninitializedClients(t *testing.T) {
	var zero Client
	assert.ErrorIs(t, zero.Ping(context.Background()), ErrNotInitialized)

	var nilClient *Client
	_, err := nilClient.FixedWindowAllow(context.Background(), "scope", 1, time.Second)
	assert.ErrorIs(t, err, ErrNotInitialized)
	assert.NoError(t, nilClient.Close())
}

func TestKeyBuilders(t *testing.T) {
	client := &Client{}
	assert.Equal(t, "pq:idempotency:scope:id", client.IdempotencyKey("scope", "id"))
	assert.Equal(t, "pq:rate_limit:coupon:1.2.3.4", client.RateLimitKey("coupon:1.2.3.4"))
	assert.Equal(t, "pq:cache:rates", client.CacheKey("rates", " "))
}

func TestOptionsFromConfig(t *testing.T) {
	opts, err := optionsFromConfig(config.RedisConfig{
		URL:         "redis://:secret@cache.internal:6380/2",
		PoolSize:    20,
		DialTimeout: 2 * time.Second,
	})
	require.NoError(t, err)
	assert.Equal(t, "cache.internal:6380", opts.Addr)
	assert.Equal(t, 2, opts.DB)
	assert.Equal(t, "secret", opts.Password)
	assert.Equal(t, 20, opts.PoolSize)
	assert.Equal(t, 2*time.Second, opts.DialTimeout)

	opts, err = optionsFromConfig(config.RedisConfig{Address: "localhost:6379", DB: 3})
	require.NoError(t, err)
	assert.Equal(t, 3, opts.DB)

	_, err = optionsFromConfig(config.RedisConfig{})
	assert.Error(t, err)
}

type mockCmdable struct {
	data map[string]string
	ttl  map[string]time.Duration
}

func newMockCmdable() *mockCmdable {
	return &mockCmdable{data: map[string]string{}, ttl: map[string]time.Duration{}}
}

func (m *mockCmdable) Ping(context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", nil)
}

func (m *mockCmdable) Set(_ context.Context, key string, value any, ttl time.Duration) *redis.StatusCmd {
	m.data[key] = fmt.Sprint(value)
	m.ttl[key] = ttl
	return redis.NewStatusResult("OK", nil)
}

func (m *mockCmdable) Get(_ context.Context, key string) *redis.StringCmd {
	v, ok := m.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (m *mockCmdable) SetNX(_ context.Context, key string, value any, ttl time.Duration) *redis.BoolCmd {
	if _, exists := m.data[key]; exists {
		return redis.NewBoolResult(false, nil)
	}
	m.data[key] = fmt.Sprint(value)
	m.ttl[key] = ttl
	return redis.NewBoolResult(true, nil)
}

func (m *mockCmdable) Incr(_ context.Context, key string) *redis.IntCmd {
	n, _ := strconv.ParseInt(m.data[key], 10, 64)
	n++
	m.data[key] = strconv.FormatInt(n, 10)
	return redis.NewIntResult(n, nil)
}

func (m *mockCmdable) PTTL(_ context.Context, key string) *redis.DurationCmd {
	ttl, ok := m.ttl[key]
	if !ok {
		return redis.NewDurationResult(-2*time.Millisecond, nil)
	}
	return redis.NewDurationResult(ttl, nil)
}

func (m *mockCmdable) Del(_ context.Context, keys ...string) *redis.IntCmd {
	for _, key := range keys {
		delete(m.data, key)
		delete(m.ttl, key)
	}
	return redis.NewIntResult(int64(len(keys)), nil)
}
