// Package memory is an in-process remote.Service. It backs the engine tests
// and the --remote=memory demo mode, and can be switched offline or told to
// fail specific calls.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/julianstephens/habitsync/internal/models"
	"github.com/julianstephens/habitsync/internal/remote"
)

type Op string

const (
	OpListHabits       Op = "list_habits"
	OpCreateHabit      Op = "create_habit"
	OpUpdateHabit      Op = "update_habit"
	OpDeleteHabit      Op = "delete_habit"
	OpListCompletions  Op = "list_completions"
	OpCreateCompletion Op = "create_completion"
	OpDeleteCompletion Op = "delete_completion"
)

type Service struct {
	mu          sync.Mutex
	online      bool
	latency     time.Duration
	habits      map[string]models.Habit
	completions map[string]models.HabitCompletion
	clientKeys  map[string]string // user/client id -> server id
	failures    map[Op][]error
	calls       map[Op]int
	now         func() time.Time
	events      *remote.Broadcaster
}

var _ remote.Service = (*Service)(nil)

// New returns an online service with no records
func New() *Service {
	return &Service{
		online:      true,
		habits:      make(map[string]models.Habit),
		completions: make(map[string]models.HabitCompletion),
		clientKeys:  make(map[string]string),
		failures:    make(map[Op][]error),
		calls:       make(map[Op]int),
		now:         time.Now,
		events:      remote.NewBroadcaster(),
	}
}

// SetOnline flips connectivity and publishes the edge to subscribers
func (s *Service) SetOnline(online bool) {
	s.mu.Lock()
	changed := s.online != online
	s.online = online
	s.mu.Unlock()

	if changed {
		s.events.Publish(remote.Event{Kind: remote.EventConnectivity, Status: s.Status()})
	}
}

// SetLatency delays every call by d, honouring ctx
func (s *Service) SetLatency(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latency = d
}

// FailNext makes the next len(errs) calls of op fail with errs, in order
func (s *Service) FailNext(op Op, errs ...error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[op] = append(s.failures[op], errs...)
}

// Calls returns how many times op reached the service
func (s *Service) Calls(op Op) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[op]
}

// PublishChange simulates a change to userID's rows made by another client
func (s *Service) PublishChange(table, userID string) {
	s.events.Publish(remote.Event{Kind: remote.EventChange, Table: table, UserID: userID})
}

// Seed stores h as if another client had created it, assigning an id when empty
func (s *Service) Seed(h models.Habit) models.Habit {
	s.mu.Lock()
	defer s.mu.Unlock()
	if h.ID == "" {
		h.ID = uuid.NewString()
	}
	if h.CreatedAt.IsZero() {
		h.CreatedAt = s.now()
	}
	s.habits[h.ID] = h
	return h
}

// Habits returns userID's stored habits ordered by creation
func (s *Service) Habits(userID string) []models.Habit {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listHabits(userID)
}

// Completions returns userID's stored completions ordered by date
func (s *Service) Completions(userID string) []models.HabitCompletion {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listCompletions(userID)
}

func (s *Service) Status() remote.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.online {
		return remote.StatusOnline
	}
	return remote.StatusOffline
}

func (s *Service) Subscribe(ctx context.Context) <-chan remote.Event {
	return s.events.Subscribe(ctx)
}

// begin accounts for a call and returns the error it must fail with, if any.
// On success the lock is held and the caller must release it.
func (s *Service) begin(ctx context.Context, op Op) error {
	s.mu.Lock()
	s.calls[op]++
	latency := s.latency
	s.mu.Unlock()

	if latency > 0 {
		select {
		case <-time.After(latency):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	if !s.online {
		s.mu.Unlock()
		return remote.ErrUnavailable
	}
	if queued := s.failures[op]; len(queued) > 0 {
		s.failures[op] = queued[1:]
		s.mu.Unlock()
		return queued[0]
	}
	return nil
}

func (s *Service) ListHabits(ctx context.Context, userID string) remote.Result[[]models.Habit] {
	if err := s.begin(ctx, OpListHabits); err != nil {
		return remote.Fail[[]models.Habit](err)
	}
	defer s.mu.Unlock()
	return remote.OK(s.listHabits(userID))
}

func (s *Service) CreateHabit(ctx context.Context, h models.Habit) remote.Result[models.Habit] {
	if err := s.begin(ctx, OpCreateHabit); err != nil {
		return remote.Fail[models.Habit](err)
	}
	defer s.mu.Unlock()

	if strings.TrimSpace(h.Title) == "" || !h.Frequency.Valid() {
		return remote.Fail[models.Habit](fmt.Errorf("%w: invalid habit", remote.ErrRejected))
	}
	key := clientKey(h.UserID, h.ID)
	if existing, ok := s.habits[s.clientKeys[key]]; ok && key != "" {
		return remote.OK(existing)
	}
	h.ID = uuid.NewString()
	h.CreatedAt = s.now()
	s.habits[h.ID] = h
	if key != "" {
		s.clientKeys[key] = h.ID
	}
	return remote.OK(h)
}

func (s *Service) UpdateHabit(ctx context.Context, h models.Habit) remote.Result[models.Habit] {
	if err := s.begin(ctx, OpUpdateHabit); err != nil {
		return remote.Fail[models.Habit](err)
	}
	defer s.mu.Unlock()

	existing, ok := s.habits[h.ID]
	if !ok || existing.UserID != h.UserID {
		return remote.Fail[models.Habit](fmt.Errorf("habit %s: %w", h.ID, remote.ErrNotFound))
	}
	h.CreatedAt = existing.CreatedAt
	s.habits[h.ID] = h
	return remote.OK(h)
}

func (s *Service) DeleteHabit(ctx context.Context, userID, habitID string) remote.Result[struct{}] {
	if err := s.begin(ctx, OpDeleteHabit); err != nil {
		return remote.Fail[struct{}](err)
	}
	defer s.mu.Unlock()

	if h, ok := s.habits[habitID]; ok && h.UserID == userID {
		delete(s.habits, habitID)
		for id, c := range s.completions {
			if c.HabitID == habitID {
				delete(s.completions, id)
			}
		}
	}
	return remote.OK(struct{}{})
}

func (s *Service) ListCompletions(ctx context.Context, userID string) remote.Result[[]models.HabitCompletion] {
	if err := s.begin(ctx, OpListCompletions); err != nil {
		return remote.Fail[[]models.HabitCompletion](err)
	}
	defer s.mu.Unlock()
	return remote.OK(s.listCompletions(userID))
}

func (s *Service) CreateCompletion(ctx context.Context, c models.HabitCompletion) remote.Result[models.HabitCompletion] {
	if err := s.begin(ctx, OpCreateCompletion); err != nil {
		return remote.Fail[models.HabitCompletion](err)
	}
	defer s.mu.Unlock()

	if h, ok := s.habits[c.HabitID]; !ok || h.UserID != c.UserID {
		return remote.Fail[models.HabitCompletion](fmt.Errorf("habit %s: %w", c.HabitID, remote.ErrNotFound))
	}
	key := clientKey(c.UserID, c.ID)
	if existing, ok := s.completions[s.clientKeys[key]]; ok && key != "" {
		return remote.OK(existing)
	}
	c.ID = uuid.NewString()
	c.CreatedAt = s.now()
	s.completions[c.ID] = c
	if key != "" {
		s.clientKeys[key] = c.ID
	}
	return remote.OK(c)
}

func (s *Service) DeleteCompletion(ctx context.Context, userID, completionID string) remote.Result[struct{}] {
	if err := s.begin(ctx, OpDeleteCompletion); err != nil {
		return remote.Fail[struct{}](err)
	}
	defer s.mu.Unlock()

	if c, ok := s.completions[completionID]; ok && c.UserID == userID {
		delete(s.completions, completionID)
	}
	return remote.OK(struct{}{})
}

// clientKey scopes a caller-supplied id to its user; records created without
// one get no key.
func clientKey(userID, id string) string {
	if id == "" {
		return ""
	}
	return userID + "/" + id
}

func (s *Service) listHabits(userID string) []models.Habit {
	out := make([]models.Habit, 0, len(s.habits))
	for _, h := range s.habits {
		if h.UserID == userID {
			out = append(out, h)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func (s *Service) listCompletions(userID string) []models.HabitCompletion {
	out := make([]models.HabitCompletion, 0, len(s.completions))
	for _, c := range s.completions {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CompletedAt.Equal(out[j].CompletedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CompletedAt.Before(out[j].CompletedAt)
	})
	return out
}
