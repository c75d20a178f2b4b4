package models

import "time"

type MutationKind string

const (
	MutationCreate     MutationKind = "create"
	MutationUpdate     MutationKind = "update"
	MutationDelete     MutationKind = "delete"
	MutationComplete   MutationKind = "complete"
	MutationUncomplete MutationKind = "uncomplete"
)

type MutationStatus string

const (
	MutationQueued   MutationStatus = "queued"
	MutationInFlight MutationStatus = "in_flight"
	MutationFailed   MutationStatus = "failed"
)

// PendingMutation is one user change the remote service has not acknowledged.
// Entries sharing a HabitID are replayed in Seq order.
type PendingMutation struct {
	Seq          int64            `json:"seq"`
	Kind         MutationKind     `json:"kind"`
	HabitID      string           `json:"habit_id"`
	CompletionID string           `json:"completion_id,omitempty"`
	Habit        *Habit           `json:"habit,omitempty"`      // create, update
	Completion   *HabitCompletion `json:"completion,omitempty"` // complete
	EnqueuedAt   time.Time        `json:"enqueued_at"`
	Attempts     int              `json:"attempts"`
	Status       MutationStatus   `json:"status"`
	LastError    string           `json:"last_error,omitempty"`
}
