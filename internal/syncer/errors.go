package syncer

import (
	"errors"
	"fmt"
	"strings"

	"github.com/julianstephens/habitsync/internal/models"
)

var (
	ErrHabitNotFound = errors.New("habit not found")
	ErrNotOpen       = errors.New("sync engine not opened")
	// ErrRetriesExhausted marks an entry dropped after MaxRetries transient failures
	ErrRetriesExhausted = errors.New("retry limit reached")
)

// Failure is one queue entry a drain gave up on
type Failure struct {
	Seq     int64
	Kind    models.MutationKind
	HabitID string
	Err     error
}

// SyncError reports the entries dropped during SyncPendingChanges. The
// drain itself completed; the listed changes are lost.
type SyncError struct {
	Failures []Failure
}

func (e *SyncError) Error() string {
	if len(e.Failures) == 1 {
		f := e.Failures[0]
		return fmt.Sprintf("dropped %s of habit %s: %v", f.Kind, f.HabitID, f.Err)
	}
	parts := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		parts = append(parts, fmt.Sprintf("%s %s: %v", f.Kind, f.HabitID, f.Err))
	}
	return fmt.Sprintf("dropped %d pending changes: %s", len(e.Failures), strings.Join(parts, "; "))
}

// Unwrap exposes the individual causes to errors.Is
func (e *SyncError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failures))
	for _, f := range e.Failures {
		errs = append(errs, f.Err)
	}
	return errs
}
