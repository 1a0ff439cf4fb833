package service

import (
	"sync"

	"golang.org/x/time/rate"
)

// limiter is a token bucket per chat.
type limiter struct {
	every rate.Limit
	burst int

	mu sync.Mutex
	m  map[int64]*rate.Limiter
}

// newLimiter allows perMinute commands per chat with the given burst.
// perMinute <= 0 disables limiting.
func newLimiter(perMinute, burst int) *limiter {
	l := &limiter{every: rate.Inf, burst: 1, m: make(map[int64]*rate.Limiter)}
	if perMinute > 0 {
		l.every = rate.Limit(float64(perMinute) / 60)
	}
	if burst > 0 {
		l.burst = burst
	}
	return l
}

func (l *limiter) Allow(chatID int64) bool {
	l.mu.Lock()
	lim, ok := l.m[chatID]
	if !ok {
		lim = rate.NewLimiter(l.every, l.burst)
		l.m[chatID] = lim
	}
	l.mu.Unlock()
	return lim.Allow()
}
