package ratelimiter

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	privateChatRate = time.Second
	groupChatRate   = 3 * time.Second
)

// RateLimiter paces outgoing messages per chat so a single chat never
// exceeds the Telegram flood limits.
type RateLimiter struct {
	mu       sync.Mutex
	limiters map[int64]*rate.Limiter
	log      *slog.Logger
}

func New(log *slog.Logger) *RateLimiter {
	return &RateLimiter{
		limiters: make(map[int64]*rate.Limiter),
		log:      log,
	}
}

// Wait blocks until a message may be sent to chatID or ctx is done.
func (rl *RateLimiter) Wait(ctx context.Context, chatID int64) error {
	r := rl.limiter(chatID).Reserve()

	delay := r.Delay()
	if delay <= 0 {
		return nil
	}

	rl.log.DebugContext(ctx, "Rate limiting message",
		"chatID", chatID,
		"delay", delay)

	t := time.NewTimer(delay)
	defer t.Stop()

	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		r.Cancel()

		return ctx.Err()
	}
}

func (rl *RateLimiter) limiter(chatID int64) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	l, ok := rl.limiters[chatID]
	if !ok {
		l = rate.NewLimiter(rate.Every(getRate(chatID)), 1)
		rl.limiters[chatID] = l
	}

	return l
}

func getRate(chatID int64) time.Duration {
	if chatID < 0 {
		return groupChatRate
	}
	return privateChatRate
}
