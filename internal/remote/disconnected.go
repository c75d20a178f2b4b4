package remote

import (
	"context"

	"github.com/julianstephens/habitsync/internal/models"
)

// Disconnected is the Service used when no remote is configured: it is
// always offline and every call fails with ErrUnavailable, so every change
// stays in the local queue.
type Disconnected struct{}

var _ Service = Disconnected{}

func (Disconnected) ListHabits(context.Context, string) Result[[]models.Habit] {
	return Fail[[]models.Habit](ErrUnavailable)
}

func (Disconnected) CreateHabit(context.Context, models.Habit) Result[models.Habit] {
	return Fail[models.Habit](ErrUnavailable)
}

func (Disconnected) UpdateHabit(context.Context, models.Habit) Result[models.Habit] {
	return Fail[models.Habit](ErrUnavailable)
}

func (Disconnected) DeleteHabit(context.Context, string, string) Result[struct{}] {
	return Fail[struct{}](ErrUnavailable)
}

func (Disconnected) ListCompletions(context.Context, string) Result[[]models.HabitCompletion] {
	return Fail[[]models.HabitCompletion](ErrUnavailable)
}

func (Disconnected) CreateCompletion(context.Context, models.HabitCompletion) Result[models.HabitCompletion] {
	return Fail[models.HabitCompletion](ErrUnavailable)
}

func (Disconnected) DeleteCompletion(context.Context, string, string) Result[struct{}] {
	return Fail[struct{}](ErrUnavailable)
}

func (Disconnected) Status() Status { return StatusOffline }

func (Disconnected) Subscribe(ctx context.Context) <-chan Event {
	ch := make(chan Event)
	go func() {
		<-ctx.Done()
		close(ch)
	}()
	return ch
}
