package attachment

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const pendingKey = "urbis:uploads:pending"

type redisCommander interface {
	ZAdd(ctx context.Context, key string, members ...redis.Z) *redis.IntCmd
	ZRem(ctx context.Context, key string, members ...any) *redis.IntCmd
	ZRangeByScore(ctx context.Context, key string, opt *redis.ZRangeBy) *redis.StringSliceCmd
}

// PendingSet marca uploads cujo metadado ainda não foi confirmado.
type PendingSet struct {
	redis redisCommander
}

func NewPendingSet(client redisCommander) *PendingSet {
	return &PendingSet{redis: client}
}

// Upload pendente.
type Pending struct {
	Bucket string
	Path   string
}

func (p Pending) member() string { return p.Bucket + "|" + p.Path }

func parseMember(m string) (Pending, bool) {
	bucket, path, ok := strings.Cut(m, "|")
	if !ok || bucket == "" || path == "" {
		return Pending{}, false
	}
	return Pending{Bucket: bucket, Path: path}, true
}

func (s *PendingSet) Mark(ctx context.Context, p Pending, at time.Time) error {
	if s == nil || s.redis == nil {
		return nil
	}
	return s.redis.ZAdd(ctx, pendingKey, redis.Z{Score: float64(at.Unix()), Member: p.member()}).Err()
}

func (s *PendingSet) Clear(ctx context.Context, p Pending) error {
	if s == nil || s.redis == nil {
		return nil
	}
	return s.redis.ZRem(ctx, pendingKey, p.member()).Err()
}

// Older lista marcações anteriores a before.
func (s *PendingSet) Older(ctx context.Context, before time.Time, limit int64) ([]Pending, error) {
	if s == nil || s.redis == nil {
		return nil, nil
	}
	members, err := s.redis.ZRangeByScore(ctx, pendingKey, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatInt(before.Unix(), 10),
		Count: limit,
	}).Result()
	if err != nil {
		return nil, err
	}
	out := make([]Pending, 0, len(members))
	for _, m := range members {
		if p, ok := parseMember(m); ok {
			out = append(out, p)
		}
	}
	return out, nil
}
