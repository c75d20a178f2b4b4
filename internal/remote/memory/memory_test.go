package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/julianstephens/habitsync/internal/frequency"
	"github.com/julianstephens/habitsync/internal/models"
	"github.com/julianstephens/habitsync/internal/remote"
)

func newHabit(user string) models.Habit {
	return models.Habit{UserID: user, Title: "Stretch", Frequency: frequency.Daily, StartDate: "2026-01-01", IsActive: true}
}

func TestCreateAndList(t *testing.T) {
	ctx := context.Background()
	s := New()

	res := s.CreateHabit(ctx, newHabit("u1"))
	if !res.Success {
		t.Fatalf("CreateHabit() error = %v", res.Err)
	}
	if res.Data.ID == "" || models.IsTempID(res.Data.ID) {
		t.Errorf("expected a server id, got %q", res.Data.ID)
	}
	s.CreateHabit(ctx, newHabit("u2"))

	list := s.ListHabits(ctx, "u1")
	if !list.Success || len(list.Data) != 1 {
		t.Fatalf("ListHabits() = %+v", list)
	}

	c := s.CreateCompletion(ctx, models.HabitCompletion{HabitID: res.Data.ID, UserID: "u1", CompletedAt: time.Now()})
	if !c.Success {
		t.Fatalf("CreateCompletion() error = %v", c.Err)
	}
	if got := s.Completions("u1"); len(got) != 1 {
		t.Errorf("Completions() = %d, want 1", len(got))
	}

	// Deleting the habit cascades to its completions
	if res := s.DeleteHabit(ctx, "u1", res.Data.ID); !res.Success {
		t.Fatalf("DeleteHabit() error = %v", res.Err)
	}
	if got := s.Completions("u1"); len(got) != 0 {
		t.Errorf("completions survived habit delete: %d", len(got))
	}
}

func TestRejections(t *testing.T) {
	ctx := context.Background()
	s := New()

	bad := newHabit("u1")
	bad.Title = " "
	if res := s.CreateHabit(ctx, bad); !errors.Is(res.Err, remote.ErrRejected) {
		t.Errorf("CreateHabit() with empty title error = %v", res.Err)
	}

	if res := s.UpdateHabit(ctx, models.Habit{ID: "nope", UserID: "u1"}); !errors.Is(res.Err, remote.ErrNotFound) {
		t.Errorf("UpdateHabit() unknown error = %v", res.Err)
	}

	orphan := models.HabitCompletion{HabitID: "local-123", UserID: "u1", CompletedAt: time.Now()}
	if res := s.CreateCompletion(ctx, orphan); remote.IsTransient(res.Err) {
		t.Errorf("completion for unknown habit should be permanent, got %v", res.Err)
	}
}

func TestOfflineAndEvents(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s := New()
	events := s.Subscribe(ctx)

	s.SetOnline(false)
	if s.Status() != remote.StatusOffline {
		t.Fatal("expected offline")
	}
	res := s.ListHabits(ctx, "u1")
	if !errors.Is(res.Err, remote.ErrUnavailable) {
		t.Errorf("ListHabits() offline error = %v", res.Err)
	}

	select {
	case ev := <-events:
		if ev.Kind != remote.EventConnectivity || ev.Status != remote.StatusOffline {
			t.Errorf("unexpected event %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("no connectivity event")
	}

	// No edge, no event
	s.SetOnline(false)
	s.SetOnline(true)
	ev := <-events
	if ev.Status != remote.StatusOnline {
		t.Errorf("expected online event, got %+v", ev)
	}
}

func TestFailNextAndLatency(t *testing.T) {
	ctx := context.Background()
	s := New()
	s.FailNext(OpCreateHabit, remote.ErrUnavailable, &remote.StatusError{Code: 400})

	if res := s.CreateHabit(ctx, newHabit("u1")); !errors.Is(res.Err, remote.ErrUnavailable) {
		t.Errorf("first call error = %v", res.Err)
	}
	if res := s.CreateHabit(ctx, newHabit("u1")); remote.IsTransient(res.Err) {
		t.Errorf("second call should be permanent, got %v", res.Err)
	}
	if res := s.CreateHabit(ctx, newHabit("u1")); !res.Success {
		t.Errorf("third call error = %v", res.Err)
	}
	if s.Calls(OpCreateHabit) != 3 {
		t.Errorf("Calls() = %d, want 3", s.Calls(OpCreateHabit))
	}

	s.SetLatency(time.Second)
	short, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
	defer cancel()
	res := s.ListHabits(short, "u1")
	if !remote.IsTimeout(res.Err) || !remote.IsTransient(res.Err) {
		t.Errorf("slow call error = %v, want transient timeout", res.Err)
	}
}

func TestCreateReplayReturnsFirstRecord(t *testing.T) {
	ctx := context.Background()
	s := New()

	h := newHabit("u1")
	h.ID = models.NewTempID()
	first := s.CreateHabit(ctx, h)
	second := s.CreateHabit(ctx, h)
	if !first.Success || !second.Success {
		t.Fatalf("CreateHabit() errors = %v, %v", first.Err, second.Err)
	}
	if first.Data.ID != second.Data.ID {
		t.Errorf("replayed create got id %s, want %s", second.Data.ID, first.Data.ID)
	}
	if got := s.Habits("u1"); len(got) != 1 {
		t.Errorf("Habits() = %d after replay, want 1", len(got))
	}

	// Keys are per user
	other := h
	other.UserID = "u2"
	if res := s.CreateHabit(ctx, other); res.Data.ID == first.Data.ID {
		t.Error("another user's create reused the first user's record")
	}

	c := models.HabitCompletion{ID: models.NewTempID(), HabitID: first.Data.ID, UserID: "u1", CompletedAt: time.Now()}
	a, b := s.CreateCompletion(ctx, c), s.CreateCompletion(ctx, c)
	if a.Data.ID != b.Data.ID {
		t.Errorf("replayed completion got id %s, want %s", b.Data.ID, a.Data.ID)
	}
	if got := s.Completions("u1"); len(got) != 1 {
		t.Errorf("Completions() = %d after replay, want 1", len(got))
	}
}
