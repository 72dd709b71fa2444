package ports

import (
	"context"
	"time"
)

// RateLimitStore keeps fixed-window hit counters.
type RateLimitStore interface {
	// Hit increments key and returns the count inside the current window.
	Hit(ctx context.Context, key string, window time.Duration) (int64, error)
}
