package poll

import (
	"context"
	"time"

	"go.uber.org/zap"

	"leadboard-engine/internal/scheduler"
)

// StartPoller refreshes on every interval until ctx is done. The returned
// channel closes once the loop has exited. A non-positive interval disables
// polling.
func StartPoller(ctx context.Context, s *Syncer, interval time.Duration) <-chan struct{} {
	done := make(chan struct{})
	if interval <= 0 {
		s.log.Info("background refresh disabled")
		close(done)
		return done
	}

	go func() {
		defer close(done)
		scheduler.Every(ctx, interval, "sheet-refresh", s.log, func(ctx context.Context) error {
			// failures are logged and recorded by RunOnce
			_, _ = s.RunOnce(ctx, TriggerPoll)
			return nil
		})
		s.log.Debug("poller stopped")
	}()
	s.log.Info("background refresh started", zap.Duration("interval", interval))
	return done
}
