package syncer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/julianstephens/habitsync/internal/metrics"
	"github.com/julianstephens/habitsync/internal/models"
	"github.com/julianstephens/habitsync/internal/remote"
)

// SyncResult summarizes one pass over the pending queue
type SyncResult struct {
	Acknowledged int
	Requeued     int
	Dropped      int
	Deferred     int // skipped because an earlier change of the same habit failed
	Remaining    int
	Offline      bool
}

// ackResult is the server's version of what a call created or changed
type ackResult struct {
	habit      *models.Habit
	completion *models.HabitCompletion
}

// callRemote runs fn under the call timeout and records its latency. A call
// still running at the deadline is a transient failure even if it returns
// data afterwards.
func callRemote[T any](e *Engine, ctx context.Context, op string, fn func(context.Context) remote.Result[T]) remote.Result[T] {
	cctx, cancel := context.WithTimeout(ctx, e.callTimeout)
	defer cancel()

	start := time.Now()
	res := fn(cctx)
	if res.Success && cctx.Err() != nil {
		res = remote.Fail[T](fmt.Errorf("%w: %v", remote.ErrUnavailable, cctx.Err()))
	}
	if !res.Success && res.Err == nil {
		res.Err = fmt.Errorf("%s: %w", op, remote.ErrUnavailable)
	}

	class := ""
	switch {
	case res.Success:
	case remote.IsTimeout(res.Err):
		class = "timeout"
	case remote.IsTransient(res.Err):
		class = "transient"
	default:
		class = "permanent"
	}
	e.metrics.ObserveRemote(op, time.Since(start), class)
	return res
}

// send performs the remote call for m
func (e *Engine) send(ctx context.Context, m models.PendingMutation) (*ackResult, error) {
	switch m.Kind {
	case models.MutationCreate, models.MutationUpdate:
		if m.Habit == nil {
			return nil, fmt.Errorf("%w: %s without habit payload", remote.ErrRejected, m.Kind)
		}
		h := *m.Habit
		var res remote.Result[models.Habit]
		if m.Kind == models.MutationCreate {
			res = callRemote(e, ctx, "create_habit", func(ctx context.Context) remote.Result[models.Habit] {
				return e.remote.CreateHabit(ctx, h)
			})
		} else {
			res = callRemote(e, ctx, "update_habit", func(ctx context.Context) remote.Result[models.Habit] {
				return e.remote.UpdateHabit(ctx, h)
			})
		}
		if !res.Success {
			return nil, res.Err
		}
		return &ackResult{habit: &res.Data}, nil

	case models.MutationDelete:
		res := callRemote(e, ctx, "delete_habit", func(ctx context.Context) remote.Result[struct{}] {
			return e.remote.DeleteHabit(ctx, e.userID, m.HabitID)
		})
		return &ackResult{}, res.Err

	case models.MutationComplete:
		if m.Completion == nil {
			return nil, fmt.Errorf("%w: complete without completion payload", remote.ErrRejected)
		}
		c := *m.Completion
		res := callRemote(e, ctx, "create_completion", func(ctx context.Context) remote.Result[models.HabitCompletion] {
			return e.remote.CreateCompletion(ctx, c)
		})
		if !res.Success {
			return nil, res.Err
		}
		return &ackResult{completion: &res.Data}, nil

	case models.MutationUncomplete:
		res := callRemote(e, ctx, "delete_completion", func(ctx context.Context) remote.Result[struct{}] {
			return e.remote.DeleteCompletion(ctx, e.userID, m.CompletionID)
		})
		return &ackResult{}, res.Err
	}
	return nil, fmt.Errorf("%w: unknown change kind %q", remote.ErrRejected, m.Kind)
}

// acknowledge folds the server's answer for m into the snapshot and rewrites
// temporary ids still referenced by the queue.
func (e *Engine) acknowledge(ctx context.Context, m models.PendingMutation, ack *ackResult) error {
	applied := m
	switch m.Kind {
	case models.MutationCreate:
		applied.Habit = ack.habit
		applied.HabitID = ack.habit.ID
	case models.MutationUpdate:
		applied.Habit = ack.habit
	case models.MutationComplete:
		applied.Completion = ack.completion
		applied.CompletionID = ack.completion.ID
	}
	e.base = e.base.Apply(applied)
	e.saveSnapshot(ctx)

	switch {
	case m.Kind == models.MutationCreate && m.HabitID != ack.habit.ID && e.queue.Entries.Has(m.HabitID):
		e.log.Debug("habit acknowledged", "temp_id", m.HabitID, "id", ack.habit.ID)
		return e.mutateQueue(ctx, func(doc *queueDoc) {
			doc.Entries = doc.Entries.Remap(m.HabitID, ack.habit.ID)
		})
	case m.Kind == models.MutationComplete && m.CompletionID != ack.completion.ID:
		return e.mutateQueue(ctx, func(doc *queueDoc) {
			doc.Entries = doc.Entries.RemapCompletion(m.CompletionID, ack.completion.ID)
		})
	}
	return nil
}

// dispatch sends m straight away when nothing of its habit is waiting and
// the remote is online, and queues it otherwise. A transient failure of a
// direct send queues the change; a rejection is returned. The ack is nil
// when the change was queued.
func (e *Engine) dispatch(ctx context.Context, m models.PendingMutation) (*ackResult, error) {
	direct := e.remote.Status() == remote.StatusOnline &&
		!e.queue.Entries.Has(m.HabitID) &&
		(m.Kind == models.MutationCreate || !models.IsTempID(m.HabitID))

	if !direct {
		_, err := e.enqueue(ctx, m)
		return nil, err
	}

	ack, err := e.send(ctx, m)
	switch {
	case err == nil:
		e.metrics.Mutation(string(m.Kind), metrics.OutcomeAcknowledged)
		return ack, e.acknowledge(ctx, m, ack)
	case remote.IsTransient(err):
		e.log.Info("remote unavailable, queued change", "kind", m.Kind, "habit", m.HabitID, "error", err)
		m.Attempts = 1
		m.LastError = err.Error()
		m.Status = models.MutationFailed
		_, qerr := e.enqueue(ctx, m)
		return nil, qerr
	default:
		e.metrics.Mutation(string(m.Kind), metrics.OutcomeDropped)
		return nil, fmt.Errorf("failed to %s habit %s: %w", m.Kind, m.HabitID, err)
	}
}

// SyncPendingChanges replays the queue in order. A change that fails
// transiently is kept and holds back the later changes of its habit until the
// next pass; other habits continue. Changes that are rejected, or that
// exhaust their retries, are dropped and reported in a *SyncError.
func (e *Engine) SyncPendingChanges(ctx context.Context) (SyncResult, error) {
	if _, err := e.lock(); err != nil {
		return SyncResult{}, err
	}
	defer e.mu.Unlock()
	return e.drain(ctx)
}

func (e *Engine) drain(ctx context.Context) (SyncResult, error) {
	var result SyncResult
	if len(e.queue.Entries) == 0 {
		return result, nil
	}
	if e.remote.Status() != remote.StatusOnline {
		result.Offline = true
		result.Remaining = len(e.queue.Entries)
		return result, nil
	}

	e.metrics.DrainStarted()
	var failures []Failure
	blocked := make(map[string]bool)

	ordered := e.queue.Entries.Sorted()
	seqs := make([]int64, len(ordered))
	for i, m := range ordered {
		seqs[i] = m.Seq
	}

	for _, seq := range seqs {
		if ctx.Err() != nil {
			break
		}
		// Looked up again: acknowledgements remap ids and drops cascade.
		m, ok := e.queue.Entries.Find(seq)
		if !ok {
			continue
		}
		if blocked[m.HabitID] {
			result.Deferred++
			continue
		}
		if err := e.limiter.Wait(ctx); err != nil {
			break
		}

		m.Status = models.MutationInFlight
		if err := e.mutateQueue(ctx, func(doc *queueDoc) { doc.Entries = doc.Entries.Replace(m) }); err != nil {
			return result, err
		}

		ack, err := e.send(ctx, m)
		switch {
		case err == nil:
			if err := e.mutateQueue(ctx, func(doc *queueDoc) { doc.Entries = doc.Entries.Without(seq) }); err != nil {
				return result, err
			}
			if err := e.acknowledge(ctx, m, ack); err != nil {
				return result, err
			}
			result.Acknowledged++
			e.metrics.Mutation(string(m.Kind), metrics.OutcomeAcknowledged)

		case remote.IsTransient(err):
			m.Attempts++
			m.LastError = err.Error()
			if m.Attempts >= e.maxRetries {
				cause := fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, m.Attempts, err)
				n, derr := e.drop(ctx, m)
				if derr != nil {
					return result, derr
				}
				result.Dropped += n
				failures = append(failures, Failure{Seq: m.Seq, Kind: m.Kind, HabitID: m.HabitID, Err: cause})
				continue
			}
			m.Status = models.MutationFailed
			if err := e.mutateQueue(ctx, func(doc *queueDoc) { doc.Entries = doc.Entries.Replace(m) }); err != nil {
				return result, err
			}
			blocked[m.HabitID] = true
			result.Requeued++
			e.metrics.Mutation(string(m.Kind), metrics.OutcomeRequeued)
			e.log.Debug("change requeued", "seq", m.Seq, "kind", m.Kind, "attempts", m.Attempts, "error", err)

		default:
			n, derr := e.drop(ctx, m)
			if derr != nil {
				return result, derr
			}
			result.Dropped += n
			failures = append(failures, Failure{Seq: m.Seq, Kind: m.Kind, HabitID: m.HabitID, Err: err})
		}
	}

	result.Remaining = len(e.queue.Entries)
	if len(failures) > 0 {
		for _, f := range failures {
			e.log.Warn("dropped pending change", "seq", f.Seq, "kind", f.Kind, "habit", f.HabitID, "error", f.Err)
		}
		return result, &SyncError{Failures: failures}
	}
	return result, nil
}

// drop removes m. A create takes every later change of its habit with it,
// since they refer to a record the remote will never have.
func (e *Engine) drop(ctx context.Context, m models.PendingMutation) (int, error) {
	dropped := 0
	err := e.mutateQueue(ctx, func(doc *queueDoc) {
		before := len(doc.Entries)
		doc.Entries = doc.Entries.Without(m.Seq)
		if m.Kind == models.MutationCreate {
			doc.Entries, _ = doc.Entries.PruneHabit(m.HabitID)
		}
		dropped = before - len(doc.Entries)
	})
	if err != nil {
		return 0, err
	}
	e.metrics.Mutation(string(m.Kind), metrics.OutcomeDropped)
	return dropped, nil
}

// IsDropped reports whether err says pending changes were lost
func IsDropped(err error) bool {
	var se *SyncError
	return errors.As(err, &se)
}
