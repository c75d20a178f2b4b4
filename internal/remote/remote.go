// Package remote defines the contract between the sync engine and the
// authoritative habit service, plus the error taxonomy the engine uses to
// decide whether a failed call is retried or dropped.
package remote

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/julianstephens/habitsync/internal/models"
)

// Result is the envelope every remote call returns. Success is true exactly
// when Err is nil.
type Result[T any] struct {
	Data    T
	Err     error
	Success bool
}

// OK wraps a successful value
func OK[T any](data T) Result[T] {
	return Result[T]{Data: data, Success: true}
}

// Fail wraps an error
func Fail[T any](err error) Result[T] {
	return Result[T]{Err: err}
}

// Status is the connectivity state the remote reports
type Status string

const (
	StatusOnline  Status = "online"
	StatusOffline Status = "offline"
)

type EventKind string

const (
	// EventConnectivity signals a change of Status
	EventConnectivity EventKind = "connectivity"
	// EventChange signals that server-side records changed
	EventChange EventKind = "change"
)

// Event is published on the channel returned by Subscribe
type Event struct {
	Kind   EventKind
	Status Status // EventConnectivity only
	Table  string // EventChange only; empty when unknown
	UserID string // EventChange only; empty when unknown
}

// Service is the authoritative habit store. Calls are scoped to userID and
// must honour ctx cancellation. The id passed to a create is the caller's
// client key: creating again with the same key returns the first record
// instead of a duplicate.
type Service interface {
	ListHabits(ctx context.Context, userID string) Result[[]models.Habit]
	CreateHabit(ctx context.Context, h models.Habit) Result[models.Habit]
	UpdateHabit(ctx context.Context, h models.Habit) Result[models.Habit]
	DeleteHabit(ctx context.Context, userID, habitID string) Result[struct{}]

	ListCompletions(ctx context.Context, userID string) Result[[]models.HabitCompletion]
	CreateCompletion(ctx context.Context, c models.HabitCompletion) Result[models.HabitCompletion]
	DeleteCompletion(ctx context.Context, userID, completionID string) Result[struct{}]

	Status() Status
	// Subscribe returns a channel of events that is closed when ctx ends.
	Subscribe(ctx context.Context) <-chan Event
}

var (
	// ErrUnavailable means the service could not be reached. Retried.
	ErrUnavailable = errors.New("remote service unavailable")
	// ErrRejected means the service refused the request. Never retried.
	ErrRejected = errors.New("remote service rejected the request")
	// ErrNotFound is a rejection for a record the service does not know
	ErrNotFound = fmt.Errorf("%w: not found", ErrRejected)
)

// StatusError carries an HTTP-style status code from the service
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("remote service returned status %d", e.Code)
	}
	return fmt.Sprintf("remote service returned status %d: %s", e.Code, e.Message)
}

// IsTransient reports whether a failed call should be retried later.
// Unavailability, timeouts, cancellation and 5xx/429 statuses are transient;
// rejections and other 4xx statuses are not. Unknown errors are treated as
// transient so that no user change is dropped on an unexpected failure.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrRejected) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code >= 500 || se.Code == 429
	}
	return true
}

// IsTimeout reports whether err is a deadline or network timeout
func IsTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
