package syncer

import (
	"sort"
	"time"

	"github.com/julianstephens/habitsync/internal/models"
)

// Snapshot is a set of habits and completions: either the last server
// state, or that state with the pending queue replayed over it.
type Snapshot struct {
	Habits      []models.Habit           `json:"habits"`
	Completions []models.HabitCompletion `json:"completions"`
	FetchedAt   time.Time                `json:"fetched_at"`
}

func (s Snapshot) clone() Snapshot {
	out := Snapshot{FetchedAt: s.FetchedAt}
	out.Habits = append(make([]models.Habit, 0, len(s.Habits)), s.Habits...)
	out.Completions = append(make([]models.HabitCompletion, 0, len(s.Completions)), s.Completions...)
	return out
}

// Habit returns the habit with id
func (s Snapshot) Habit(id string) (models.Habit, bool) {
	for _, h := range s.Habits {
		if h.ID == id {
			return h, true
		}
	}
	return models.Habit{}, false
}

// CompletionsFor returns the completions of habitID
func (s Snapshot) CompletionsFor(habitID string) []models.HabitCompletion {
	var out []models.HabitCompletion
	for _, c := range s.Completions {
		if c.HabitID == habitID {
			out = append(out, c)
		}
	}
	return out
}

// Apply returns s with m's effect. It never modifies s.
func (s Snapshot) Apply(m models.PendingMutation) Snapshot {
	out := s.clone()
	switch m.Kind {
	case models.MutationCreate:
		if m.Habit == nil {
			return out
		}
		if _, exists := out.Habit(m.Habit.ID); !exists {
			out.Habits = append(out.Habits, *m.Habit)
		}
	case models.MutationUpdate:
		if m.Habit == nil {
			return out
		}
		for i := range out.Habits {
			if out.Habits[i].ID == m.HabitID {
				out.Habits[i] = *m.Habit
			}
		}
	case models.MutationDelete:
		habits := out.Habits[:0]
		for _, h := range out.Habits {
			if h.ID != m.HabitID {
				habits = append(habits, h)
			}
		}
		out.Habits = habits
		out.Completions = filterCompletions(out.Completions, func(c models.HabitCompletion) bool {
			return c.HabitID != m.HabitID
		})
	case models.MutationComplete:
		if m.Completion == nil {
			return out
		}
		for _, c := range out.Completions {
			if c.ID == m.Completion.ID {
				return out
			}
		}
		out.Completions = append(out.Completions, *m.Completion)
	case models.MutationUncomplete:
		out.Completions = filterCompletions(out.Completions, func(c models.HabitCompletion) bool {
			return c.ID != m.CompletionID
		})
	}
	return out
}

// Replay applies every entry of q in order
func (s Snapshot) Replay(q Queue) Snapshot {
	out := s.clone()
	for _, m := range q.Sorted() {
		out = out.Apply(m)
	}
	return out
}

func filterCompletions(cs []models.HabitCompletion, keep func(models.HabitCompletion) bool) []models.HabitCompletion {
	out := cs[:0]
	for _, c := range cs {
		if keep(c) {
			out = append(out, c)
		}
	}
	return out
}

// Queue is the list of pending mutations. Methods return new queues.
type Queue []models.PendingMutation

// Sorted returns the entries in Seq order
func (q Queue) Sorted() Queue {
	out := append(Queue(nil), q...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out
}

// Find returns the entry with seq
func (q Queue) Find(seq int64) (models.PendingMutation, bool) {
	for _, m := range q {
		if m.Seq == seq {
			return m, true
		}
	}
	return models.PendingMutation{}, false
}

// Has reports whether any entry targets habitID
func (q Queue) Has(habitID string) bool {
	for _, m := range q {
		if m.HabitID == habitID {
			return true
		}
	}
	return false
}

// Replace swaps in m for the entry with the same Seq
func (q Queue) Replace(m models.PendingMutation) Queue {
	out := append(Queue(nil), q...)
	for i := range out {
		if out[i].Seq == m.Seq {
			out[i] = m
		}
	}
	return out
}

// Without drops the entry with seq
func (q Queue) Without(seq int64) Queue {
	return q.filter(func(m models.PendingMutation) bool { return m.Seq != seq })
}

// PruneHabit drops every entry of habitID and returns how many were removed
func (q Queue) PruneHabit(habitID string) (Queue, int) {
	out := q.filter(func(m models.PendingMutation) bool { return m.HabitID != habitID })
	return out, len(q) - len(out)
}

// PruneCompletion drops queued completes of completionID
func (q Queue) PruneCompletion(completionID string) (Queue, int) {
	out := q.filter(func(m models.PendingMutation) bool {
		return !(m.Kind == models.MutationComplete && m.CompletionID == completionID)
	})
	return out, len(q) - len(out)
}

// Remap rewrites every reference to habit oldID as newID
func (q Queue) Remap(oldID, newID string) Queue {
	out := make(Queue, len(q))
	for i, m := range q {
		if m.HabitID == oldID {
			m.HabitID = newID
		}
		if m.Habit != nil && m.Habit.ID == oldID {
			h := *m.Habit
			h.ID = newID
			m.Habit = &h
		}
		if m.Completion != nil && m.Completion.HabitID == oldID {
			c := *m.Completion
			c.HabitID = newID
			m.Completion = &c
		}
		out[i] = m
	}
	return out
}

// RemapCompletion rewrites references to completion oldID as newID
func (q Queue) RemapCompletion(oldID, newID string) Queue {
	out := make(Queue, len(q))
	for i, m := range q {
		if m.CompletionID == oldID {
			m.CompletionID = newID
		}
		if m.Completion != nil && m.Completion.ID == oldID {
			c := *m.Completion
			c.ID = newID
			m.Completion = &c
		}
		out[i] = m
	}
	return out
}

func (q Queue) filter(keep func(models.PendingMutation) bool) Queue {
	out := make(Queue, 0, len(q))
	for _, m := range q {
		if keep(m) {
			out = append(out, m)
		}
	}
	return out
}
