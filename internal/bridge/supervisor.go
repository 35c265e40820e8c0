package bridge

import (
	"context"
	"time"
)

// Reconnect backoff bounds. The delay doubles after every session and is
// never reset within a process lifetime; only a restart starts again at
// the minimum.
const (
	initialBackoff = 3 * time.Second
	maxBackoff     = 60 * time.Second
)

// Run drives broker sessions in a loop until ctx is cancelled. Each failed
// or prematurely ended session is retried after the current backoff delay.
// Run itself never returns an error; session failures are logged and
// retried indefinitely.
func (b *Bridge) Run(ctx context.Context) error {
	backoff := initialBackoff
	for {
		err := b.runSession(ctx)
		if ctx.Err() != nil {
			b.logger.Info("bridge stopped")
			return nil
		}
		if err != nil {
			b.logger.Error("session ended", "error", err, "retry_in", backoff)
		} else {
			b.logger.Warn("session ended unexpectedly without error", "retry_in", backoff)
		}
		if !sleepCtx(ctx, backoff) {
			b.logger.Info("bridge stopped")
			return nil
		}
		backoff = nextBackoff(backoff)
	}
}

// nextBackoff doubles the delay up to the ceiling.
func nextBackoff(d time.Duration) time.Duration {
	d *= 2
	if d > maxBackoff {
		return maxBackoff
	}
	return d
}
