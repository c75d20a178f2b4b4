package postgres

import (
	"context"

	"github.com/julianstephens/habitsync/internal/models"
	"github.com/julianstephens/habitsync/internal/remote"
)

const completionColumns = `id, habit_id, user_id, completed_at, created_at`

func scanCompletion(row rowScanner) (models.HabitCompletion, error) {
	var c models.HabitCompletion
	err := row.Scan(&c.ID, &c.HabitID, &c.UserID, &c.CompletedAt, &c.CreatedAt)
	return c, err
}

func (s *Store) ListCompletions(ctx context.Context, userID string) remote.Result[[]models.HabitCompletion] {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+completionColumns+" FROM habit_completions WHERE user_id = $1 ORDER BY completed_at, id", userID)
	if err != nil {
		return remote.Fail[[]models.HabitCompletion](classify("list completions", err))
	}
	defer rows.Close()

	completions := []models.HabitCompletion{}
	for rows.Next() {
		c, err := scanCompletion(rows)
		if err != nil {
			return remote.Fail[[]models.HabitCompletion](classify("scan completion", err))
		}
		completions = append(completions, c)
	}
	if err := rows.Err(); err != nil {
		return remote.Fail[[]models.HabitCompletion](classify("list completions", err))
	}
	return remote.OK(completions)
}

// CreateCompletion only inserts when the habit belongs to the same user; a
// foreign habit yields no row and is reported as not found. A repeated
// client id returns the existing completion.
func (s *Store) CreateCompletion(ctx context.Context, c models.HabitCompletion) remote.Result[models.HabitCompletion] {
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO habit_completions (habit_id, user_id, completed_at, client_id)
		SELECT id, user_id, $3, NULLIF($4, '') FROM habits WHERE id = $1 AND user_id = $2
		ON CONFLICT (user_id, client_id) DO UPDATE SET client_id = EXCLUDED.client_id
		RETURNING `+completionColumns,
		c.HabitID, c.UserID, c.CompletedAt, c.ID)

	created, err := scanCompletion(row)
	if err != nil {
		return remote.Fail[models.HabitCompletion](classify("create completion for habit "+c.HabitID, err))
	}
	return remote.OK(created)
}

func (s *Store) DeleteCompletion(ctx context.Context, userID, completionID string) remote.Result[struct{}] {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM habit_completions WHERE id = $1 AND user_id = $2", completionID, userID); err != nil {
		return remote.Fail[struct{}](classify("delete completion "+completionID, err))
	}
	return remote.OK(struct{}{})
}
