package chat

import (
	"context"
	"fmt"
	"time"

	"github.com/jmehdipour/hookrelay/internal/apperr"
	"github.com/jmehdipour/hookrelay/internal/model"
)

const DefaultMaxAttempts = 3

// Retry posts msg up to MaxAttempts times, sending the same body each time.
type Retry struct {
	MaxAttempts int
	Backoff     time.Duration
	// OnAttempt, if set, is called before each attempt (1-based).
	OnAttempt func(attempt int)
}

// Deliver returns nil on the first successful POST, or an apperr.DeliveryFailed wrapping
// the last error once attempts are exhausted or ctx is done.
func (r Retry) Deliver(ctx context.Context, c Client, url string, msg model.ChatMessage) error {
	attempts := r.MaxAttempts
	if attempts < 1 {
		attempts = DefaultMaxAttempts
	}

	var (
		last error
		made int
	)
	for made < attempts {
		made++
		if r.OnAttempt != nil {
			r.OnAttempt(made)
		}
		if err := c.Post(ctx, url, msg); err == nil {
			return nil
		} else {
			last = err
		}

		if made == attempts {
			break
		}
		if err := sleep(ctx, r.Backoff); err != nil {
			last = err
			break
		}
	}

	return apperr.Wrap(apperr.DeliveryFailed, fmt.Sprintf("delivery failed after %d attempts", made), last)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
