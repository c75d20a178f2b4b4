package models

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/julianstephens/habitsync/internal/constants"
	"github.com/julianstephens/habitsync/internal/frequency"
)

// Habit represents a recurring practice owned by a single user
type Habit struct {
	ID           string         `json:"id"`
	UserID       string         `json:"user_id"`
	Title        string         `json:"title"`
	Description  string         `json:"description,omitempty"`
	Frequency    frequency.Mask `json:"frequency"`
	StartDate    string         `json:"start_date"` // YYYY-MM-DD format
	Color        string         `json:"color,omitempty"`
	Icon         string         `json:"icon,omitempty"`
	ReminderTime string         `json:"reminder_time,omitempty"` // HH:MM format
	IsActive     bool           `json:"is_active"`
	CreatedAt    time.Time      `json:"created_at"`
}

// HabitCompletion records that a habit was done. The calendar date of
// CompletedAt is what counts for streaks.
type HabitCompletion struct {
	ID          string    `json:"id"`
	HabitID     string    `json:"habit_id"`
	UserID      string    `json:"user_id"`
	CompletedAt time.Time `json:"completed_at"`
	CreatedAt   time.Time `json:"created_at"`
}

// HabitWithCompletions is a habit plus the fields derived from its history.
// It is recomputed on every read and never stored.
type HabitWithCompletions struct {
	Habit
	Completions      []HabitCompletion `json:"completions"`
	CurrentStreak    int               `json:"current_streak"`
	LongestStreak    int               `json:"longest_streak"`
	CompletionRate   int               `json:"completion_rate"` // percent
	LastCompleted    *time.Time        `json:"last_completed,omitempty"`
	IsDueToday       bool              `json:"is_due_today"`
	IsCompletedToday bool              `json:"is_completed_today"`
}

// HabitInput carries the user-supplied fields for a new habit
type HabitInput struct {
	Title        string
	Description  string
	Frequency    frequency.Mask
	StartDate    string // YYYY-MM-DD, defaults to today
	Color        string
	Icon         string
	ReminderTime string
}

// HabitPatch holds optional edits; nil fields are left unchanged
type HabitPatch struct {
	Title        *string
	Description  *string
	Frequency    *frequency.Mask
	StartDate    *string
	Color        *string
	Icon         *string
	ReminderTime *string
	IsActive     *bool
}

// ApplyTo returns a copy of h with the patch applied
func (p HabitPatch) ApplyTo(h Habit) Habit {
	if p.Title != nil {
		h.Title = strings.TrimSpace(*p.Title)
	}
	if p.Description != nil {
		h.Description = *p.Description
	}
	if p.Frequency != nil {
		h.Frequency = *p.Frequency
	}
	if p.StartDate != nil {
		h.StartDate = *p.StartDate
	}
	if p.Color != nil {
		h.Color = *p.Color
	}
	if p.Icon != nil {
		h.Icon = *p.Icon
	}
	if p.ReminderTime != nil {
		h.ReminderTime = *p.ReminderTime
	}
	if p.IsActive != nil {
		h.IsActive = *p.IsActive
	}
	return h
}

// NewTempID returns an identifier for a record the remote service has not
// acknowledged yet.
func NewTempID() string {
	return constants.TempIDPrefix + uuid.New().String()
}

// IsTempID reports whether id was synthesized locally
func IsTempID(id string) bool {
	return strings.HasPrefix(id, constants.TempIDPrefix)
}
