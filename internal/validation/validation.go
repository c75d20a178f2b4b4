package validation

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/julianstephens/habitsync/internal/constants"
	"github.com/julianstephens/habitsync/internal/frequency"
	"github.com/julianstephens/habitsync/internal/models"
	"github.com/julianstephens/habitsync/internal/utils"
)

// FieldError describes one invalid field
type FieldError struct {
	Field   string
	Message string
}

// Error is returned when user input fails validation. It is produced before
// any I/O happens, so callers can surface it directly.
type Error struct {
	Problems []FieldError
}

func (e *Error) Error() string {
	if len(e.Problems) == 1 {
		return fmt.Sprintf("invalid %s: %s", e.Problems[0].Field, e.Problems[0].Message)
	}
	parts := make([]string, 0, len(e.Problems))
	for _, p := range e.Problems {
		parts = append(parts, fmt.Sprintf("%s: %s", p.Field, p.Message))
	}
	return "invalid habit: " + strings.Join(parts, "; ")
}

// HasField reports whether the error mentions field
func (e *Error) HasField(field string) bool {
	for _, p := range e.Problems {
		if p.Field == field {
			return true
		}
	}
	return false
}

type collector struct {
	problems []FieldError
}

func (c *collector) add(field, format string, args ...interface{}) {
	c.problems = append(c.problems, FieldError{Field: field, Message: fmt.Sprintf(format, args...)})
}

func (c *collector) err() error {
	if len(c.problems) == 0 {
		return nil
	}
	return &Error{Problems: c.problems}
}

// ValidateHabit checks the fields a habit must satisfy before it is stored
// or sent anywhere.
func ValidateHabit(h models.Habit) error {
	c := &collector{}

	title := strings.TrimSpace(h.Title)
	switch {
	case title == "":
		c.add("title", "must not be empty")
	case utf8.RuneCountInString(title) > constants.MaxTitleLength:
		c.add("title", "must be at most %d characters", constants.MaxTitleLength)
	}

	if utf8.RuneCountInString(h.Description) > constants.MaxDescriptionLength {
		c.add("description", "must be at most %d characters", constants.MaxDescriptionLength)
	}

	if !h.Frequency.Valid() {
		c.add("frequency", "must be between 0 and 127, got %d", int(h.Frequency))
	}

	switch {
	case !utils.ValidateDateFormat(h.StartDate):
		c.add("start_date", "must be a YYYY-MM-DD date, got %q", h.StartDate)
	case h.StartDate < constants.MinStartDate:
		c.add("start_date", "must not be before %s, got %s", constants.MinStartDate, h.StartDate)
	}

	if h.ReminderTime != "" && !utils.ValidateTimeFormat(h.ReminderTime) {
		c.add("reminder_time", "must be HH:MM, got %q", h.ReminderTime)
	}

	if h.Color != "" && !isHexColor(h.Color) {
		c.add("color", "must be a hex color like #33aa66, got %q", h.Color)
	}

	return c.err()
}

// ValidatePatch checks the habit base becomes once p is applied.
func ValidatePatch(base models.Habit, p models.HabitPatch) error {
	return ValidateHabit(p.ApplyTo(base))
}

// ValidatePatchFields checks only the fields p sets, without the habit it
// will be applied to.
func ValidatePatchFields(p models.HabitPatch) error {
	ref := models.Habit{Title: "-", Frequency: frequency.Daily, StartDate: constants.MinStartDate}
	return ValidateHabit(p.ApplyTo(ref))
}

func isHexColor(s string) bool {
	if !strings.HasPrefix(s, "#") {
		return false
	}
	hex := s[1:]
	if len(hex) != 3 && len(hex) != 6 {
		return false
	}
	for _, r := range hex {
		switch {
		case r >= '0' && r <= '9', r >= 'a' && r <= 'f', r >= 'A' && r <= 'F':
		default:
			return false
		}
	}
	return true
}
