package handler

import (
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"
)

// FrameLimiter throttles pushed frames per session. Buckets of sessions
// that stop pushing expire on their own.
type FrameLimiter struct {
	limit    rate.Limit
	burst    int
	limiters *cache.Cache
}

func NewFrameLimiter(perSecond float64, burst int) *FrameLimiter {
	if burst < 1 {
		burst = 1
	}
	return &FrameLimiter{
		limit:    rate.Limit(perSecond),
		burst:    burst,
		limiters: cache.New(15*time.Minute, 5*time.Minute),
	}
}

func (l *FrameLimiter) Allow(sessionID uuid.UUID) bool {
	key := sessionID.String()

	if v, ok := l.limiters.Get(key); ok {
		return v.(*rate.Limiter).Allow()
	}

	limiter := rate.NewLimiter(l.limit, l.burst)
	if err := l.limiters.Add(key, limiter, cache.DefaultExpiration); err != nil {
		// another request created the bucket first
		if v, ok := l.limiters.Get(key); ok {
			return v.(*rate.Limiter).Allow()
		}
	}
	return limiter.Allow()
}
