package auth

import (
	"context"
	"sync"
	"time"
)

// RateLimiter decides whether a request keyed by key may proceed
type RateLimiter interface {
	Allow(ctx context.Context, key string) (bool, error)
	Reset(ctx context.Context, key string) error
}

// SlidingWindowLimiter admits at most limit requests per key within any
// window of windowSize
type SlidingWindowLimiter struct {
	mu         sync.Mutex
	windows    map[string][]time.Time
	limit      int
	windowSize time.Duration
	now        func() time.Time
}

// NewSlidingWindowLimiter creates a new sliding window rate limiter
func NewSlidingWindowLimiter(limit int, windowSize time.Duration) *SlidingWindowLimiter {
	return &SlidingWindowLimiter{
		windows:    make(map[string][]time.Time),
		limit:      limit,
		windowSize: windowSize,
		now:        time.Now,
	}
}

// Allow records a request for key and reports whether it fits the window
func (l *SlidingWindowLimiter) Allow(ctx context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	requests := l.prune(l.windows[key], now)

	if len(requests) >= l.limit {
		l.windows[key] = requests
		return false, nil
	}

	l.windows[key] = append(requests, now)
	return true, nil
}

// Reset forgets every request recorded for key
func (l *SlidingWindowLimiter) Reset(ctx context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	delete(l.windows, key)
	return nil
}

// StartCleanup drops idle keys every interval until ctx is done
func (l *SlidingWindowLimiter) StartCleanup(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				l.sweep()
			}
		}
	}()
}

func (l *SlidingWindowLimiter) sweep() {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	for key, requests := range l.windows {
		if kept := l.prune(requests, now); len(kept) == 0 {
			delete(l.windows, key)
		} else {
			l.windows[key] = kept
		}
	}
}

// prune keeps the requests newer than the window. requests is sorted.
func (l *SlidingWindowLimiter) prune(requests []time.Time, now time.Time) []time.Time {
	start := now.Add(-l.windowSize)
	i := 0
	for i < len(requests) && !requests[i].After(start) {
		i++
	}
	return requests[i:]
}

// KeyedLimiter namespaces keys so one limiter can be shared by callers
type KeyedLimiter struct {
	limiter *SlidingWindowLimiter
	prefix  string
}

// NewIPRateLimiter limits requests per client IP
func NewIPRateLimiter(requestsPerMinute int) *KeyedLimiter {
	return &KeyedLimiter{limiter: NewSlidingWindowLimiter(requestsPerMinute, time.Minute), prefix: "ip:"}
}

// NewUserRateLimiter limits requests per authenticated user
func NewUserRateLimiter(requestsPerMinute int) *KeyedLimiter {
	return &KeyedLimiter{limiter: NewSlidingWindowLimiter(requestsPerMinute, time.Minute), prefix: "user:"}
}

// Allow checks the namespaced key
func (l *KeyedLimiter) Allow(ctx context.Context, key string) (bool, error) {
	return l.limiter.Allow(ctx, l.prefix+key)
}

// Reset clears the namespaced key
func (l *KeyedLimiter) Reset(ctx context.Context, key string) error {
	return l.limiter.Reset(ctx, l.prefix+key)
}

// StartCleanup sweeps idle keys of the underlying limiter until ctx is done
func (l *KeyedLimiter) StartCleanup(ctx context.Context, interval time.Duration) *KeyedLimiter {
	l.limiter.StartCleanup(ctx, interval)
	return l
}
