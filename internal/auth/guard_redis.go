package auth

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const attemptsKeyPrefix = "auth:attempts:"

// RedisGuard keeps failure timestamps in a sorted set per username so that
// counters survive restarts and are shared between replicas. Redis errors
// fail open: the guard is not the only line of defence.
type RedisGuard struct {
	client    *redis.Client
	threshold int
	window    time.Duration
	log       *zap.Logger
	now       func() time.Time
}

func NewRedisGuard(client *redis.Client, threshold int, window time.Duration, log *zap.Logger) *RedisGuard {
	return &RedisGuard{
		client:    client,
		threshold: threshold,
		window:    window,
		log:       log,
		now:       time.Now,
	}
}

func attemptsKey(username string) string {
	return attemptsKeyPrefix + username
}

// attemptMember is unique per attempt so that failures recorded in the same
// nanosecond by different replicas are counted separately.
func attemptMember(now time.Time) string {
	return strconv.FormatInt(now.UnixNano(), 10) + ":" + uuid.NewString()
}

func (g *RedisGuard) IsBlocked(ctx context.Context, username string) bool {
	key := attemptsKey(username)
	cutoff := g.now().Add(-g.window).UnixNano()

	var count *redis.IntCmd
	_, err := g.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.ZRemRangeByScore(ctx, key, "-inf", strconv.FormatInt(cutoff, 10))
		count = p.ZCard(ctx, key)
		return nil
	})
	if err != nil {
		g.log.Error("lockout check failed, allowing attempt",
			zap.String("username", username),
			zap.Error(err))
		return false
	}
	return int(count.Val()) >= g.threshold
}

func (g *RedisGuard) RecordAttempt(ctx context.Context, username string, succeeded bool) {
	key := attemptsKey(username)

	if succeeded {
		if err := g.client.Del(ctx, key).Err(); err != nil {
			g.log.Error("failed to clear login attempts",
				zap.String("username", username),
				zap.Error(err))
		}
		return
	}

	now := g.now()
	cutoff := now.Add(-g.window).UnixNano()
	_, err := g.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.ZRemRangeByScore(ctx, key, "-inf", strconv.FormatInt(cutoff, 10))
		p.ZAdd(ctx, key, redis.Z{
			Score:  float64(now.UnixNano()),
			Member: attemptMember(now),
		})
		p.Expire(ctx, key, g.window)
		return nil
	})
	if err != nil {
		g.log.Error("failed to record login attempt",
			zap.String("username", username),
			zap.Error(err))
	}
}
