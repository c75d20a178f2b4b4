package syncer

import (
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"

	"github.com/julianstephens/habitsync/internal/constants"
	"github.com/julianstephens/habitsync/internal/metrics"
	"github.com/julianstephens/habitsync/internal/models"
)

// IDGenerator produces temporary ids for records created offline
type IDGenerator interface {
	NewID() string
}

type tempIDs struct{}

func (tempIDs) NewID() string { return models.NewTempID() }

// RefreshHandler receives the merged view after a remote change event
type RefreshHandler func([]models.HabitWithCompletions)

// DropHandler receives the changes an automatic replay gave up on. It may be
// called with the engine locked, so it must not call back into the Engine.
type DropHandler func(*SyncError)

// Option configures an Engine
type Option func(*Engine)

// WithClock replaces time.Now. The clock's location decides calendar days
// unless WithLocation is also given.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// WithLocation sets the time zone calendar days are read in
func WithLocation(loc *time.Location) Option {
	return func(e *Engine) {
		e.loc = loc
	}
}

// WithCallTimeout bounds every remote call
func WithCallTimeout(d time.Duration) Option {
	return func(e *Engine) {
		e.callTimeout = d
	}
}

// WithMaxRetries sets how many transient failures an entry survives
func WithMaxRetries(n int) Option {
	return func(e *Engine) {
		e.maxRetries = n
	}
}

// WithRetryBackoff sets the first delay before Run retries a failed drain.
// The delay doubles after each failing pass up to one minute.
func WithRetryBackoff(d time.Duration) Option {
	return func(e *Engine) {
		e.retryBackoff = d
	}
}

// WithRateLimit paces replayed calls to perSecond. Zero disables pacing.
func WithRateLimit(perSecond float64) Option {
	return func(e *Engine) {
		if perSecond <= 0 {
			e.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		e.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

func WithLogger(l *log.Logger) Option {
	return func(e *Engine) {
		e.log = l
	}
}

func WithIDGenerator(g IDGenerator) Option {
	return func(e *Engine) {
		e.ids = g
	}
}

// WithRefreshHandler registers the callback Run invokes after refetching
func WithRefreshHandler(fn RefreshHandler) Option {
	return func(e *Engine) {
		e.onRefresh = fn
	}
}

// WithDropHandler registers the callback for changes dropped by a replay the
// caller did not ask for: the reconnect replay inside any operation, and the
// replays Run schedules. SyncPendingChanges returns its drops instead.
func WithDropHandler(fn DropHandler) Option {
	return func(e *Engine) {
		e.onDrop = fn
	}
}

func defaults(e *Engine) {
	e.now = time.Now
	e.callTimeout = constants.DefaultCallTimeout
	e.maxRetries = constants.DefaultMaxRetries
	e.retryBackoff = constants.DefaultRetryBackoff
	e.limiter = rate.NewLimiter(rate.Limit(constants.DefaultSyncRatePerSec), 1)
	e.ids = tempIDs{}
}
