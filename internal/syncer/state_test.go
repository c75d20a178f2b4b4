package syncer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/julianstephens/habitsync/internal/frequency"
	"github.com/julianstephens/habitsync/internal/models"
)

func habit(id, title string) *models.Habit {
	return &models.Habit{ID: id, UserID: "u1", Title: title, Frequency: frequency.Daily, StartDate: "2026-01-01", IsActive: true}
}

func completion(id, habitID string, at time.Time) *models.HabitCompletion {
	return &models.HabitCompletion{ID: id, HabitID: habitID, UserID: "u1", CompletedAt: at}
}

func TestSnapshotApply(t *testing.T) {
	at := time.Date(2026, 1, 15, 9, 0, 0, 0, time.UTC)
	base := Snapshot{
		Habits:      []models.Habit{*habit("h1", "Read")},
		Completions: []models.HabitCompletion{*completion("c1", "h1", at)},
	}

	t.Run("create appends once", func(t *testing.T) {
		m := models.PendingMutation{Kind: models.MutationCreate, HabitID: "h2", Habit: habit("h2", "Run")}
		got := base.Apply(m).Apply(m)
		assert.Len(t, got.Habits, 2)
		assert.Len(t, base.Habits, 1, "Apply must not modify its receiver")
	})

	t.Run("update replaces", func(t *testing.T) {
		got := base.Apply(models.PendingMutation{Kind: models.MutationUpdate, HabitID: "h1", Habit: habit("h1", "Read more")})
		h, ok := got.Habit("h1")
		require.True(t, ok)
		assert.Equal(t, "Read more", h.Title)
		assert.Equal(t, "Read", base.Habits[0].Title)
	})

	t.Run("delete removes habit and completions", func(t *testing.T) {
		got := base.Apply(models.PendingMutation{Kind: models.MutationDelete, HabitID: "h1"})
		assert.Empty(t, got.Habits)
		assert.Empty(t, got.Completions)
		assert.Len(t, base.Completions, 1)
	})

	t.Run("complete and uncomplete", func(t *testing.T) {
		c2 := completion("c2", "h1", at.Add(time.Hour))
		got := base.Apply(models.PendingMutation{Kind: models.MutationComplete, HabitID: "h1", CompletionID: "c2", Completion: c2})
		assert.Len(t, got.CompletionsFor("h1"), 2)

		got = got.Apply(models.PendingMutation{Kind: models.MutationUncomplete, HabitID: "h1", CompletionID: "c1"})
		require.Len(t, got.Completions, 1)
		assert.Equal(t, "c2", got.Completions[0].ID)
	})

	t.Run("payload-less entries are ignored", func(t *testing.T) {
		got := base.Apply(models.PendingMutation{Kind: models.MutationCreate, HabitID: "h9"})
		assert.Equal(t, base.Habits, got.Habits)
	})
}

func TestSnapshotReplay_UsesSeqOrder(t *testing.T) {
	q := Queue{
		{Seq: 2, Kind: models.MutationUpdate, HabitID: "local-1", Habit: habit("local-1", "Second")},
		{Seq: 1, Kind: models.MutationCreate, HabitID: "local-1", Habit: habit("local-1", "First")},
	}
	got := Snapshot{}.Replay(q)
	h, ok := got.Habit("local-1")
	require.True(t, ok)
	assert.Equal(t, "Second", h.Title)
}

func TestQueueRemap(t *testing.T) {
	at := time.Date(2026, 1, 15, 9, 0, 0, 0, time.UTC)
	q := Queue{
		{Seq: 1, Kind: models.MutationCreate, HabitID: "local-h", Habit: habit("local-h", "Read")},
		{Seq: 2, Kind: models.MutationComplete, HabitID: "local-h", CompletionID: "local-c", Completion: completion("local-c", "local-h", at)},
		{Seq: 3, Kind: models.MutationUpdate, HabitID: "local-h", Habit: habit("local-h", "Read daily")},
		{Seq: 4, Kind: models.MutationDelete, HabitID: "other"},
	}

	got := q.Remap("local-h", "srv-1")
	for _, m := range got[:3] {
		assert.Equal(t, "srv-1", m.HabitID)
	}
	assert.Equal(t, "srv-1", got[0].Habit.ID)
	assert.Equal(t, "srv-1", got[1].Completion.HabitID)
	assert.Equal(t, "srv-1", got[2].Habit.ID)
	assert.Equal(t, "other", got[3].HabitID)
	assert.Equal(t, "local-h", q[0].Habit.ID, "Remap must not modify shared payloads")

	got = got.RemapCompletion("local-c", "srv-c")
	assert.Equal(t, "srv-c", got[1].CompletionID)
	assert.Equal(t, "srv-c", got[1].Completion.ID)
	assert.Equal(t, "local-c", q[1].Completion.ID)
}

func TestQueuePrune(t *testing.T) {
	q := Queue{
		{Seq: 1, Kind: models.MutationComplete, HabitID: "a", CompletionID: "c1"},
		{Seq: 2, Kind: models.MutationUpdate, HabitID: "b"},
		{Seq: 3, Kind: models.MutationUncomplete, HabitID: "a", CompletionID: "c0"},
	}

	pruned, n := q.PruneHabit("a")
	assert.Equal(t, 2, n)
	require.Len(t, pruned, 1)
	assert.Equal(t, int64(2), pruned[0].Seq)
	assert.Len(t, q, 3)

	pruned, n = q.PruneCompletion("c1")
	assert.Equal(t, 1, n)
	assert.False(t, pruned.Has("a") && pruned[0].CompletionID == "c1")

	assert.True(t, q.Has("b"))
	assert.False(t, q.Without(2).Has("b"))

	_, ok := q.Find(3)
	assert.True(t, ok)
	_, ok = q.Find(9)
	assert.False(t, ok)

	replaced := q.Replace(models.PendingMutation{Seq: 2, Kind: models.MutationUpdate, HabitID: "b", Attempts: 4})
	assert.Equal(t, 4, replaced[1].Attempts)
	assert.Equal(t, 0, q[1].Attempts)
}
