package chat

import (
	"context"
	"errors"
	"time"

	"github.com/npezzotti/go-chatsync/internal/database"
)

const (
	defaultRetryAttempts = 3
	defaultRetryBackoff  = 50 * time.Millisecond
	maxRetryBackoff      = time.Second
)

// retryPolicy re-runs storage operations that fail with
// database.ErrTransient, doubling the delay between attempts.
type retryPolicy struct {
	attempts int
	backoff  time.Duration
}

func (p retryPolicy) do(ctx context.Context, op func() error) error {
	attempts := p.attempts
	if attempts <= 0 {
		attempts = 1
	}
	delay := p.backoff

	var err error
	for attempt := 1; ; attempt++ {
		err = op()
		if err == nil || !errors.Is(err, database.ErrTransient) || attempt >= attempts {
			return err
		}

		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return err
		case <-t.C:
		}

		delay *= 2
		if delay > maxRetryBackoff {
			delay = maxRetryBackoff
		}
	}
}
