package port

import "context"

type RateLimiter interface {
	// Allow counts one hit for key in the current window, returns false once the limit is exceeded
	Allow(ctx context.Context, key string) (bool, error)
}
