package postgres

import (
	"context"
	"time"

	"github.com/julianstephens/habitsync/internal/constants"
	"github.com/julianstephens/habitsync/internal/frequency"
	"github.com/julianstephens/habitsync/internal/models"
	"github.com/julianstephens/habitsync/internal/remote"
)

const habitColumns = `id, user_id, title, description, frequency, start_date, color, icon, reminder_time, is_active, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanHabit(row rowScanner) (models.Habit, error) {
	var h models.Habit
	var freq int
	var start time.Time
	err := row.Scan(&h.ID, &h.UserID, &h.Title, &h.Description, &freq, &start,
		&h.Color, &h.Icon, &h.ReminderTime, &h.IsActive, &h.CreatedAt)
	if err != nil {
		return h, err
	}
	h.Frequency = frequency.Mask(freq)
	h.StartDate = start.Format(constants.DateFormat)
	return h, nil
}

func (s *Store) ListHabits(ctx context.Context, userID string) remote.Result[[]models.Habit] {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+habitColumns+" FROM habits WHERE user_id = $1 ORDER BY created_at, id", userID)
	if err != nil {
		return remote.Fail[[]models.Habit](classify("list habits", err))
	}
	defer rows.Close()

	habits := []models.Habit{}
	for rows.Next() {
		h, err := scanHabit(rows)
		if err != nil {
			return remote.Fail[[]models.Habit](classify("scan habit", err))
		}
		habits = append(habits, h)
	}
	if err := rows.Err(); err != nil {
		return remote.Fail[[]models.Habit](classify("list habits", err))
	}
	return remote.OK(habits)
}

func (s *Store) CreateHabit(ctx context.Context, h models.Habit) remote.Result[models.Habit] {
	// The no-op update makes RETURNING yield the row a replayed create
	// already inserted.
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO habits (user_id, title, description, frequency, start_date, color, icon, reminder_time, is_active, client_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NULLIF($10, ''))
		ON CONFLICT (user_id, client_id) DO UPDATE SET client_id = EXCLUDED.client_id
		RETURNING `+habitColumns,
		h.UserID, h.Title, h.Description, int(h.Frequency), h.StartDate,
		h.Color, h.Icon, h.ReminderTime, h.IsActive, h.ID)

	created, err := scanHabit(row)
	if err != nil {
		return remote.Fail[models.Habit](classify("create habit", err))
	}
	return remote.OK(created)
}

func (s *Store) UpdateHabit(ctx context.Context, h models.Habit) remote.Result[models.Habit] {
	row := s.db.QueryRowContext(ctx, `
		UPDATE habits
		SET title = $3, description = $4, frequency = $5, start_date = $6,
		    color = $7, icon = $8, reminder_time = $9, is_active = $10
		WHERE id = $1 AND user_id = $2
		RETURNING `+habitColumns,
		h.ID, h.UserID, h.Title, h.Description, int(h.Frequency), h.StartDate,
		h.Color, h.Icon, h.ReminderTime, h.IsActive)

	updated, err := scanHabit(row)
	if err != nil {
		return remote.Fail[models.Habit](classify("update habit "+h.ID, err))
	}
	return remote.OK(updated)
}

// DeleteHabit is idempotent: deleting a missing habit succeeds.
// Completions go with it through the foreign key cascade.
func (s *Store) DeleteHabit(ctx context.Context, userID, habitID string) remote.Result[struct{}] {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM habits WHERE id = $1 AND user_id = $2", habitID, userID); err != nil {
		return remote.Fail[struct{}](classify("delete habit "+habitID, err))
	}
	return remote.OK(struct{}{})
}
