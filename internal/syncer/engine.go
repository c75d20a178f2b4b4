// Package syncer keeps a user's habits usable offline. Every change is
// applied to a local view immediately and either sent to the remote service
// or held in a durable queue that is replayed, in order per habit, once the
// service is reachable again.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"

	"github.com/julianstephens/habitsync/internal/logger"
	"github.com/julianstephens/habitsync/internal/metrics"
	"github.com/julianstephens/habitsync/internal/models"
	"github.com/julianstephens/habitsync/internal/remote"
	"github.com/julianstephens/habitsync/internal/stats"
	"github.com/julianstephens/habitsync/internal/storage"
	"github.com/julianstephens/habitsync/internal/utils"
	"github.com/julianstephens/habitsync/internal/validation"
)

// Engine is the sync engine of one user session. All public methods are
// safe for concurrent use; they are serialized by a single mutex that is
// held across remote calls.
type Engine struct {
	userID string
	remote remote.Service
	store  storage.KV

	now          func() time.Time
	loc          *time.Location
	callTimeout  time.Duration
	maxRetries   int
	retryBackoff time.Duration
	limiter      *rate.Limiter
	metrics      *metrics.Metrics
	log          *log.Logger
	ids          IDGenerator
	onRefresh    RefreshHandler
	onDrop       DropHandler

	mu         sync.Mutex
	opened     bool
	base       Snapshot // last known server state
	queue      queueDoc
	lastStatus remote.Status

	pending atomic.Int64
}

// New builds an engine for userID. Call Open before using it.
func New(userID string, svc remote.Service, store storage.KV, opts ...Option) *Engine {
	e := &Engine{
		userID: userID,
		remote: svc,
		store:  store,
	}
	defaults(e)
	for _, opt := range opts {
		opt(e)
	}
	if e.log == nil {
		e.log = logger.Component("syncer")
	}
	return e
}

// Open loads the cached server state and the pending queue. Entries a
// previous process left in flight are returned to the queue.
func (e *Engine) Open(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	snap, err := e.loadSnapshot(ctx)
	if err != nil {
		return err
	}
	e.base = snap

	recovered := 0
	err = e.mutateQueue(ctx, func(doc *queueDoc) {
		for i := range doc.Entries {
			if doc.Entries[i].Status == models.MutationInFlight {
				doc.Entries[i].Status = models.MutationQueued
				recovered++
			}
		}
	})
	if err != nil {
		return err
	}
	if recovered > 0 {
		e.log.Info("requeued interrupted changes", "count", recovered)
	}

	// The first online observation after Open counts as a reconnect.
	e.lastStatus = remote.StatusOffline
	e.opened = true
	return nil
}

func (e *Engine) location() *time.Location {
	if e.loc != nil {
		return e.loc
	}
	return e.now().Location()
}

func (e *Engine) today() time.Time {
	return e.now().In(e.location())
}

func (e *Engine) setPending(n int) {
	e.pending.Store(int64(n))
	e.metrics.SetPending(n)
}

// view is the optimistic state: the server snapshot with the queue replayed
func (e *Engine) view() Snapshot {
	return e.base.Replay(e.queue.Entries)
}

// GetPendingSyncCount returns the number of queued changes without blocking
func (e *Engine) GetPendingSyncCount() int {
	return int(e.pending.Load())
}

// GetConnectionStatus returns the remote's current status without blocking
func (e *Engine) GetConnectionStatus() remote.Status {
	return e.remote.Status()
}

// lock takes the engine lock and records the remote's status. It reports
// whether the remote came back since the previous call.
func (e *Engine) lock() (reconnected bool, err error) {
	e.mu.Lock()
	if !e.opened {
		e.mu.Unlock()
		return false, ErrNotOpen
	}
	status := e.remote.Status()
	reconnected = e.lastStatus == remote.StatusOffline && status == remote.StatusOnline
	e.lastStatus = status
	return reconnected, nil
}

// begin takes the lock and drains the queue when the remote has come back
// since the last call. The caller must unlock.
func (e *Engine) begin(ctx context.Context) error {
	reconnected, err := e.lock()
	if err != nil {
		return err
	}
	if reconnected && len(e.queue.Entries) > 0 {
		e.log.Info("connection restored, replaying pending changes", "pending", len(e.queue.Entries))
		if _, err := e.drain(ctx); err != nil && !e.reportDropped(err) {
			e.log.Warn("replay after reconnect finished with errors", "error", err)
		}
	}
	return nil
}

// reportDropped hands a drain's drops to the drop handler. It reports
// whether err was a drop report.
func (e *Engine) reportDropped(err error) bool {
	var se *SyncError
	if !errors.As(err, &se) {
		return false
	}
	e.log.Warn("pending changes dropped", "count", len(se.Failures), "error", se)
	if e.onDrop != nil {
		e.onDrop(se)
	}
	return true
}

// GetHabitsWithCompletions returns every habit with its derived statistics.
// When the remote is reachable the cached state is refreshed first; when it
// is not, the cache is used. Pending changes are always reflected.
func (e *Engine) GetHabitsWithCompletions(ctx context.Context) ([]models.HabitWithCompletions, error) {
	if err := e.begin(ctx); err != nil {
		return nil, err
	}
	defer e.mu.Unlock()

	e.refresh(ctx)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return e.enrich(e.view()), nil
}

// refresh replaces the server snapshot when both lists can be fetched
func (e *Engine) refresh(ctx context.Context) {
	if e.remote.Status() != remote.StatusOnline {
		e.metrics.CacheFallback()
		return
	}

	habits := callRemote(e, ctx, "list_habits", func(ctx context.Context) remote.Result[[]models.Habit] {
		return e.remote.ListHabits(ctx, e.userID)
	})
	if !habits.Success {
		e.log.Warn("using cached habits", "error", habits.Err)
		e.metrics.CacheFallback()
		return
	}
	completions := callRemote(e, ctx, "list_completions", func(ctx context.Context) remote.Result[[]models.HabitCompletion] {
		return e.remote.ListCompletions(ctx, e.userID)
	})
	if !completions.Success {
		e.log.Warn("using cached habits", "error", completions.Err)
		e.metrics.CacheFallback()
		return
	}

	e.base = Snapshot{
		Habits:      habits.Data,
		Completions: completions.Data,
		FetchedAt:   e.now(),
	}
	e.saveSnapshot(ctx)
}

func (e *Engine) enrich(s Snapshot) []models.HabitWithCompletions {
	today := e.today()
	out := make([]models.HabitWithCompletions, 0, len(s.Habits))
	for _, h := range s.Habits {
		out = append(out, stats.EnrichHabitWithCompletions(h, s.CompletionsFor(h.ID), today))
	}
	return out
}

// CreateHabit validates in and stores it. When the change cannot reach the
// remote the returned habit carries a temporary id that is replaced once the
// queued create is acknowledged.
func (e *Engine) CreateHabit(ctx context.Context, in models.HabitInput) (models.Habit, error) {
	h := models.Habit{
		UserID:       e.userID,
		Title:        strings.TrimSpace(in.Title),
		Description:  in.Description,
		Frequency:    in.Frequency,
		StartDate:    in.StartDate,
		Color:        in.Color,
		Icon:         in.Icon,
		ReminderTime: in.ReminderTime,
		IsActive:     true,
		CreatedAt:    e.now(),
	}
	if h.StartDate == "" {
		h.StartDate = utils.DayKey(e.today(), e.location())
	}
	if err := validation.ValidateHabit(h); err != nil {
		return models.Habit{}, err
	}

	if err := e.begin(ctx); err != nil {
		return models.Habit{}, err
	}
	defer e.mu.Unlock()

	h.ID = e.ids.NewID()
	m := models.PendingMutation{Kind: models.MutationCreate, HabitID: h.ID, Habit: &h}
	ack, err := e.dispatch(ctx, m)
	if err != nil {
		return models.Habit{}, err
	}
	if ack != nil && ack.habit != nil {
		return *ack.habit, nil
	}
	return h, nil
}

// UpdateHabit applies patch to the habit with id
func (e *Engine) UpdateHabit(ctx context.Context, id string, patch models.HabitPatch) (models.Habit, error) {
	if err := validation.ValidatePatchFields(patch); err != nil {
		return models.Habit{}, err
	}
	if err := e.begin(ctx); err != nil {
		return models.Habit{}, err
	}
	defer e.mu.Unlock()

	current, ok := e.view().Habit(id)
	if !ok {
		return models.Habit{}, fmt.Errorf("%w: %s", ErrHabitNotFound, id)
	}
	updated := patch.ApplyTo(current)
	if err := validation.ValidateHabit(updated); err != nil {
		return models.Habit{}, err
	}

	// An unsent create absorbs the edit.
	if models.IsTempID(id) {
		folded := false
		err := e.mutateQueue(ctx, func(doc *queueDoc) {
			for i := range doc.Entries {
				m := &doc.Entries[i]
				if m.Kind == models.MutationCreate && m.HabitID == id && m.Status != models.MutationInFlight {
					h := updated
					m.Habit = &h
					folded = true
				}
			}
		})
		if err != nil {
			return models.Habit{}, err
		}
		if folded {
			e.metrics.Mutation(string(models.MutationUpdate), metrics.OutcomeSuperseded)
			return updated, nil
		}
	}

	m := models.PendingMutation{Kind: models.MutationUpdate, HabitID: id, Habit: &updated}
	ack, err := e.dispatch(ctx, m)
	if err != nil {
		return models.Habit{}, err
	}
	if ack != nil && ack.habit != nil {
		return *ack.habit, nil
	}
	return updated, nil
}

// DeleteHabit removes the habit with id. Queued changes of the habit are
// discarded; a habit that never reached the remote is removed locally only.
func (e *Engine) DeleteHabit(ctx context.Context, id string) error {
	if err := e.begin(ctx); err != nil {
		return err
	}
	defer e.mu.Unlock()

	if _, ok := e.view().Habit(id); !ok {
		return fmt.Errorf("%w: %s", ErrHabitNotFound, id)
	}

	var pruned Queue
	err := e.mutateQueue(ctx, func(doc *queueDoc) {
		pruned = nil
		for _, m := range doc.Entries {
			if m.HabitID == id {
				pruned = append(pruned, m)
			}
		}
		doc.Entries, _ = doc.Entries.PruneHabit(id)
	})
	if err != nil {
		return err
	}
	for _, m := range pruned {
		e.metrics.Mutation(string(m.Kind), metrics.OutcomeSuperseded)
	}
	if len(pruned) > 0 {
		e.log.Debug("discarded queued changes of deleted habit", "habit", id, "count", len(pruned))
	}

	if models.IsTempID(id) {
		return nil
	}

	_, err = e.dispatch(ctx, models.PendingMutation{Kind: models.MutationDelete, HabitID: id})
	return err
}

// ToggleHabitCompletion flips whether habitID is completed on date's
// calendar day (today when date is zero) and returns the new state.
// Uncompleting removes every completion recorded for that day.
func (e *Engine) ToggleHabitCompletion(ctx context.Context, habitID string, date time.Time) (bool, error) {
	if err := e.begin(ctx); err != nil {
		return false, err
	}
	defer e.mu.Unlock()

	view := e.view()
	if _, ok := view.Habit(habitID); !ok {
		return false, fmt.Errorf("%w: %s", ErrHabitNotFound, habitID)
	}

	loc := e.location()
	when := e.now()
	if !date.IsZero() {
		when = date
	}
	day := utils.DayKey(when, loc)

	var sameDay []models.HabitCompletion
	for _, c := range view.CompletionsFor(habitID) {
		if utils.DayKey(c.CompletedAt, loc) == day {
			sameDay = append(sameDay, c)
		}
	}

	if len(sameDay) == 0 {
		c := models.HabitCompletion{
			ID:          e.ids.NewID(),
			HabitID:     habitID,
			UserID:      e.userID,
			CompletedAt: when,
			CreatedAt:   e.now(),
		}
		m := models.PendingMutation{Kind: models.MutationComplete, HabitID: habitID, CompletionID: c.ID, Completion: &c}
		if _, err := e.dispatch(ctx, m); err != nil {
			return false, err
		}
		return true, nil
	}

	for _, c := range sameDay {
		if models.IsTempID(c.ID) {
			// Never sent: cancel the queued complete instead.
			removed := 0
			err := e.mutateQueue(ctx, func(doc *queueDoc) {
				doc.Entries, removed = doc.Entries.PruneCompletion(c.ID)
			})
			if err != nil {
				return true, err
			}
			if removed > 0 {
				e.metrics.Mutation(string(models.MutationComplete), metrics.OutcomeSuperseded)
			}
			continue
		}
		m := models.PendingMutation{Kind: models.MutationUncomplete, HabitID: habitID, CompletionID: c.ID}
		if _, err := e.dispatch(ctx, m); err != nil {
			return true, err
		}
	}
	return false, nil
}
