package crawler

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Gate enforces a minimum gap between successive request dispatches. One Gate
// is shared by every worker of a crawl or sitemap resolution. A nil Gate never
// waits.
type Gate struct {
	limiter *rate.Limiter
}

// NewGate returns a Gate spacing requests by interval, or nil when interval is
// not positive.
func NewGate(interval time.Duration) *Gate {
	if interval <= 0 {
		return nil
	}
	return &Gate{limiter: rate.NewLimiter(rate.Every(interval), 1)}
}

// Wait blocks until the next dispatch slot or until ctx is done.
func (g *Gate) Wait(ctx context.Context) error {
	if g == nil {
		return nil
	}
	return g.limiter.Wait(ctx)
}
