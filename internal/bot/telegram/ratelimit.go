package telegram

import (
	"sync"

	"golang.org/x/time/rate"
)

// chatLimiters holds one token bucket per chat so a flooding conversation is
// throttled without slowing anyone else down.
type chatLimiters struct {
	mu       sync.Mutex
	limiters map[int64]*rate.Limiter

	limit rate.Limit
	burst int
}

func newChatLimiters(limit rate.Limit, burst int) *chatLimiters {
	return &chatLimiters{
		limiters: make(map[int64]*rate.Limiter),
		limit:    limit,
		burst:    burst,
	}
}

// Allow reports whether the chat may process another event right now.
func (c *chatLimiters) Allow(chatID int64) bool {
	c.mu.Lock()
	l, ok := c.limiters[chatID]
	if !ok {
		l = rate.NewLimiter(c.limit, c.burst)
		c.limiters[chatID] = l
	}
	c.mu.Unlock()

	return l.Allow()
}
