// Package cache guarda resultados de consultas no Redis com validade por faixa.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Tier faixa de validade.
type Tier int

const (
	TierDefault Tier = iota
	TierShort
	TierLong
)

const keyPrefix = "urbis:cache:"

// TTLs tempos por faixa.
type TTLs struct {
	Short   time.Duration
	Default time.Duration
	Long    time.Duration
}

// DefaultTTLs 30s / 5min / 30min.
var DefaultTTLs = TTLs{Short: 30 * time.Second, Default: 5 * time.Minute, Long: 30 * time.Minute}

type redisCommander interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Scan(ctx context.Context, cursor uint64, match string, count int64) *redis.ScanCmd
}

// Cache fachada sobre o Redis. Um Cache nil não guarda nada.
type Cache struct {
	redis redisCommander
	ttls  TTLs
}

// New cria cache; TTLs zerados usam DefaultTTLs.
func New(client redisCommander, ttls TTLs) *Cache {
	if ttls.Short <= 0 {
		ttls.Short = DefaultTTLs.Short
	}
	if ttls.Default <= 0 {
		ttls.Default = DefaultTTLs.Default
	}
	if ttls.Long <= 0 {
		ttls.Long = DefaultTTLs.Long
	}
	return &Cache{redis: client, ttls: ttls}
}

// TTL tempo da faixa.
func (c *Cache) TTL(tier Tier) time.Duration {
	switch tier {
	case TierShort:
		return c.ttls.Short
	case TierLong:
		return c.ttls.Long
	default:
		return c.ttls.Default
	}
}

// Remember devolve o valor em cache ou executa load e guarda o resultado.
// Falhas do Redis não impedem a consulta; erros de load nunca são guardados.
func Remember[T any](ctx context.Context, c *Cache, key string, tier Tier, load func(context.Context) (T, error)) (T, error) {
	if c == nil || c.redis == nil {
		return load(ctx)
	}

	full := keyPrefix + key
	raw, err := c.redis.Get(ctx, full).Bytes()
	switch {
	case err == nil:
		var cached T
		if jsonErr := json.Unmarshal(raw, &cached); jsonErr == nil {
			return cached, nil
		}
		log.Warn().Str("key", key).Msg("cache: valor corrompido descartado")
	case !errors.Is(err, redis.Nil):
		log.Warn().Err(err).Str("key", key).Msg("cache: leitura falhou")
	}

	value, err := load(ctx)
	if err != nil {
		return value, err
	}

	payload, err := json.Marshal(value)
	if err == nil {
		if setErr := c.redis.Set(ctx, full, payload, c.TTL(tier)).Err(); setErr != nil {
			log.Warn().Err(setErr).Str("key", key).Msg("cache: escrita falhou")
		}
	}
	return value, nil
}

// Invalidate remove todas as chaves com o prefixo (ex.: "compras:").
func (c *Cache) Invalidate(ctx context.Context, prefix string) error {
	if c == nil || c.redis == nil {
		return nil
	}

	var cursor uint64
	pattern := keyPrefix + prefix + "*"
	for {
		keys, next, err := c.redis.Scan(ctx, cursor, pattern, 200).Result()
		if err != nil {
			return err
		}
		if len(keys) > 0 {
			if err := c.redis.Del(ctx, keys...).Err(); err != nil {
				return err
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}

// InvalidateQuietly registra falha em vez de devolvê-la; usado após escritas.
func (c *Cache) InvalidateQuietly(ctx context.Context, prefixes ...string) {
	for _, p := range prefixes {
		if err := c.Invalidate(ctx, p); err != nil {
			log.Warn().Err(err).Str("prefix", p).Msg("cache: invalidação falhou")
		}
	}
}
