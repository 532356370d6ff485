package cache

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubRedis struct {
	store map[string]string
	ttl   map[string]time.Duration
	fail  bool
}

func newStubRedis() *stubRedis {
	return &stubRedis{store: map[string]string{}, ttl: map[string]time.Duration{}}
}

func (s *stubRedis) Get(ctx context.Context, key string) *redis.StringCmd {
	cmd := redis.NewStringCmd(ctx)
	if s.fail {
		cmd.SetErr(errors.New("redis fora"))
		return cmd
	}
	val, ok := s.store[key]
	if !ok {
		cmd.SetErr(redis.Nil)
		return cmd
	}
	cmd.SetVal(val)
	return cmd
}

func (s *stubRedis) Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd {
	cmd := redis.NewStatusCmd(ctx)
	if s.fail {
		cmd.SetErr(errors.New("redis fora"))
		return cmd
	}
	switch v := value.(type) {
	case []byte:
		s.store[key] = string(v)
	case string:
		s.store[key] = v
	}
	s.ttl[key] = expiration
	cmd.SetVal("OK")
	return cmd
}

func (s *stubRedis) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	cmd := redis.NewIntCmd(ctx)
	var n int64
	for _, k := range keys {
		if _, ok := s.store[k]; ok {
			delete(s.store, k)
			n++
		}
	}
	cmd.SetVal(n)
	return cmd
}

func (s *stubRedis) Scan(ctx context.Context, cursor uint64, match string, count int64) *redis.ScanCmd {
	prefix := strings.TrimSuffix(match, "*")
	var keys []string
	for k := range s.store {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	cmd := redis.NewScanCmd(ctx, nil)
	cmd.SetVal(keys, 0)
	return cmd
}

func TestRememberLoadsOnceAndUsesTier(t *testing.T) {
	rdb := newStubRedis()
	c := New(rdb, TTLs{})
	ctx := context.Background()
	calls := 0
	load := func(context.Context) ([]string, error) {
		calls++
		return []string{"COMP-2026-000001"}, nil
	}

	first, err := Remember(ctx, c, "compras:list", TierShort, load)
	require.NoError(t, err)
	second, err := Remember(ctx, c, "compras:list", TierShort, load)
	require.NoError(t, err)

	assert.Equal(t, 1, calls)
	assert.Equal(t, first, second)
	assert.Equal(t, 30*time.Second, rdb.ttl[keyPrefix+"compras:list"])
}

func TestRememberDoesNotCacheErrors(t *testing.T) {
	rdb := newStubRedis()
	c := New(rdb, TTLs{})
	_, err := Remember(context.Background(), c, "k", TierDefault, func(context.Context) (int, error) {
		return 0, errors.New("falhou")
	})
	require.Error(t, err)
	assert.Empty(t, rdb.store)
}

func TestRememberFallsBackWhenRedisFails(t *testing.T) {
	rdb := newStubRedis()
	rdb.fail = true
	c := New(rdb, TTLs{})

	got, err := Remember(context.Background(), c, "k", TierLong, func(context.Context) (int, error) { return 7, nil })
	require.NoError(t, err)
	assert.Equal(t, 7, got)
}

func TestNilCacheAlwaysLoads(t *testing.T) {
	var c *Cache
	got, err := Remember(context.Background(), c, "k", TierDefault, func(context.Context) (int, error) { return 3, nil })
	require.NoError(t, err)
	assert.Equal(t, 3, got)
	assert.NoError(t, c.Invalidate(context.Background(), "x"))
}

func TestInvalidateByPrefix(t *testing.T) {
	rdb := newStubRedis()
	c := New(rdb, TTLs{})
	ctx := context.Background()
	for _, k := range []string{"compras:list:a", "compras:get:1", "rh:list"} {
		_, err := Remember(ctx, c, k, TierDefault, func(context.Context) (int, error) { return 1, nil })
		require.NoError(t, err)
	}

	require.NoError(t, c.Invalidate(ctx, "compras:"))

	assert.Len(t, rdb.store, 1)
	_, ok := rdb.store[keyPrefix+"rh:list"]
	assert.True(t, ok)
}

func TestTTLTiers(t *testing.T) {
	c := New(nil, TTLs{Short: time.Second, Default: 2 * time.Second, Long: 3 * time.Second})
	assert.Equal(t, time.Second, c.TTL(TierShort))
	assert.Equal(t, 2*time.Second, c.TTL(TierDefault))
	assert.Equal(t, 3*time.Second, c.TTL(TierLong))
}
