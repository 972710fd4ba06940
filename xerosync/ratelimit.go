package xerosync

import (
	"context"
	"fmt"
	"time"

	"github.com/mjwconsult/accountsync/config"
)

// RateLimitGuard tracks the account-wide API cooldown. Pull and push
// check it before any network call and abort the whole invocation while
// it is active.
type RateLimitGuard interface {
	IsRateLimited(ctx context.Context) (bool, error)
	MarkExceeded(ctx context.Context, retryAfter time.Duration) error
}

// RedisRateLimitGuard stores the cooldown as an expiring redis key, so
// every process syncing the same connector backs off together.
type RedisRateLimitGuard struct {
	key string
}

func NewRedisRateLimitGuard(connectorId int) *RedisRateLimitGuard {
	return &RedisRateLimitGuard{key: fmt.Sprintf("xero_rate_exceeded:%d", connectorId)}
}

func (g *RedisRateLimitGuard) IsRateLimited(_ context.Context) (bool, error) {
	_, exists, err := config.GetRedisValue(g.key)
	if err != nil {
		return false, err
	}
	return exists, nil
}

func (g *RedisRateLimitGuard) MarkExceeded(_ context.Context, retryAfter time.Duration) error {
	if retryAfter <= 0 {
		retryAfter = time.Hour
	}
	return config.SetRedisValue(g.key, time.Now().UTC().Format(time.RFC3339), retryAfter)
}

type noopGuard struct{}

func (noopGuard) IsRateLimited(context.Context) (bool, error) { return false, nil }

func (noopGuard) MarkExceeded(context.Context, time.Duration) error { return nil }

// checkRateLimit converts an active cooldown into ErrRateLimited.
func (s *InvoiceSync) checkRateLimit(ctx context.Context) error {
	limited, err := s.guard.IsRateLimited(ctx)
	if err != nil {
		return err
	}
	if limited {
		return ErrRateLimited
	}
	return nil
}
