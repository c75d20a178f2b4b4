package remote

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/julianstephens/habitsync/internal/models"
)

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"unavailable", ErrUnavailable, true},
		{"wrapped unavailable", fmt.Errorf("create habit: %w", ErrUnavailable), true},
		{"deadline", context.DeadlineExceeded, true},
		{"server error", &StatusError{Code: 503}, true},
		{"too many requests", &StatusError{Code: 429}, true},
		{"bad request", &StatusError{Code: 400}, false},
		{"rejected", ErrRejected, false},
		{"not found", ErrNotFound, false},
		{"unknown", errors.New("something odd"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTransient(tt.err); got != tt.want {
				t.Errorf("IsTransient(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestIsTimeout(t *testing.T) {
	if !IsTimeout(fmt.Errorf("call: %w", context.DeadlineExceeded)) {
		t.Error("wrapped deadline should be a timeout")
	}
	if IsTimeout(ErrUnavailable) {
		t.Error("ErrUnavailable is not a timeout")
	}
}

func TestResultHelpers(t *testing.T) {
	ok := OK(3)
	if !ok.Success || ok.Err != nil || ok.Data != 3 {
		t.Errorf("OK() = %+v", ok)
	}
	fail := Fail[int](ErrRejected)
	if fail.Success || !errors.Is(fail.Err, ErrRejected) {
		t.Errorf("Fail() = %+v", fail)
	}
}

func TestBroadcaster(t *testing.T) {
	b := NewBroadcaster()
	ctx, cancel := context.WithCancel(context.Background())

	first := b.Subscribe(ctx)
	second := b.Subscribe(context.Background())

	b.Publish(Event{Kind: EventChange, Table: "habits"})

	for _, ch := range []<-chan Event{first, second} {
		select {
		case ev := <-ch:
			if ev.Kind != EventChange || ev.Table != "habits" {
				t.Errorf("unexpected event %+v", ev)
			}
		case <-time.After(time.Second):
			t.Fatal("event not delivered")
		}
	}

	cancel()
	select {
	case _, open := <-first:
		if open {
			t.Error("expected channel to be closed after cancel")
		}
	case <-time.After(time.Second):
		t.Fatal("channel not closed after cancel")
	}

	// Publishing to a full subscriber must not block
	for i := 0; i < subscriberBuffer*2; i++ {
		b.Publish(Event{Kind: EventChange})
	}
}

func TestDisconnected(t *testing.T) {
	var d Disconnected
	if d.Status() != StatusOffline {
		t.Error("Disconnected should be offline")
	}
	res := d.ListHabits(context.Background(), "u1")
	if res.Success || !errors.Is(res.Err, ErrUnavailable) {
		t.Errorf("ListHabits() = %+v", res)
	}
	if !IsTransient(d.CreateHabit(context.Background(), models.Habit{Title: "Read"}).Err) {
		t.Error("Disconnected failures must be transient")
	}
}
