package syncer

import (
	"context"
	"errors"
	"time"

	"github.com/julianstephens/habitsync/internal/constants"
	"github.com/julianstephens/habitsync/internal/remote"
)

// Run reacts to the remote until ctx ends: a reconnect replays the queue, a
// change made elsewhere triggers a refetch that is handed to the refresh
// handler, and a replay that left retryable changes behind is retried after
// a growing delay while the remote stays online.
func (e *Engine) Run(ctx context.Context) error {
	events := e.remote.Subscribe(ctx)

	retry := time.NewTimer(time.Hour)
	stopTimer(retry)
	defer retry.Stop()
	backoff := e.retryBackoff

	replay := func() {
		res, err := e.SyncPendingChanges(ctx)
		if err != nil && !e.reportDropped(err) {
			e.log.Warn("replay failed", "error", err)
		}
		stopTimer(retry)
		if res.Requeued == 0 || e.GetConnectionStatus() != remote.StatusOnline {
			backoff = e.retryBackoff
			return
		}
		e.log.Debug("scheduling replay retry", "in", backoff, "pending", res.Remaining)
		retry.Reset(backoff)
		backoff *= 2
		if backoff > constants.MaxRetryBackoff {
			backoff = constants.MaxRetryBackoff
		}
	}

	refresh := func() {
		habits, err := e.GetHabitsWithCompletions(ctx)
		if err != nil {
			if !errors.Is(err, context.Canceled) {
				e.log.Warn("refresh failed", "error", err)
			}
			return
		}
		if e.onRefresh != nil {
			e.onRefresh(habits)
		}
	}

	if e.GetConnectionStatus() == remote.StatusOnline {
		replay()
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-retry.C:
			replay()

		case ev, ok := <-events:
			if !ok {
				return ctx.Err()
			}
			switch ev.Kind {
			case remote.EventConnectivity:
				e.log.Info("connection status changed", "status", ev.Status)
				if ev.Status == remote.StatusOnline {
					backoff = e.retryBackoff
					replay()
					refresh()
				} else {
					stopTimer(retry)
				}
			case remote.EventChange:
				if ev.UserID != "" && ev.UserID != e.userID {
					continue
				}
				refresh()
			}
		}
	}
}

func stopTimer(t *time.Timer) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
}
