package validation

import (
	"errors"
	"strings"
	"testing"

	"github.com/julianstephens/habitsync/internal/frequency"
	"github.com/julianstephens/habitsync/internal/models"
)

func validHabit() models.Habit {
	return models.Habit{
		Title:     "Stretch",
		Frequency: frequency.Weekdays,
		StartDate: "2026-01-01",
		IsActive:  true,
	}
}

func TestValidateHabit(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(h *models.Habit)
		wantField string
	}{
		{"valid", func(h *models.Habit) {}, ""},
		{"empty title", func(h *models.Habit) { h.Title = "" }, "title"},
		{"whitespace title", func(h *models.Habit) { h.Title = "   " }, "title"},
		{"long title", func(h *models.Habit) { h.Title = strings.Repeat("x", 121) }, "title"},
		{"zero mask is allowed", func(h *models.Habit) { h.Frequency = frequency.None }, ""},
		{"frequency too large", func(h *models.Habit) { h.Frequency = 128 }, "frequency"},
		{"negative frequency", func(h *models.Habit) { h.Frequency = -3 }, "frequency"},
		{"bad start date", func(h *models.Habit) { h.StartDate = "01/02/2026" }, "start_date"},
		{"missing start date", func(h *models.Habit) { h.StartDate = "" }, "start_date"},
		{"start date before 1970", func(h *models.Habit) { h.StartDate = "1969-12-31" }, "start_date"},
		{"year one start date", func(h *models.Habit) { h.StartDate = "0001-01-01" }, "start_date"},
		{"earliest start date", func(h *models.Habit) { h.StartDate = "1970-01-01" }, ""},
		{"bad reminder", func(h *models.Habit) { h.ReminderTime = "7pm" }, "reminder_time"},
		{"good reminder", func(h *models.Habit) { h.ReminderTime = "19:00" }, ""},
		{"bad color", func(h *models.Habit) { h.Color = "green" }, "color"},
		{"short color", func(h *models.Habit) { h.Color = "#0f0" }, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := validHabit()
			tt.mutate(&h)
			err := ValidateHabit(h)

			if tt.wantField == "" {
				if err != nil {
					t.Fatalf("ValidateHabit() error = %v, want nil", err)
				}
				return
			}

			var verr *Error
			if !errors.As(err, &verr) {
				t.Fatalf("ValidateHabit() error = %v, want *validation.Error", err)
			}
			if !verr.HasField(tt.wantField) {
				t.Errorf("error %q does not mention field %s", verr.Error(), tt.wantField)
			}
		})
	}
}

func TestValidateHabit_CollectsAllProblems(t *testing.T) {
	h := validHabit()
	h.Title = ""
	h.Frequency = 200

	var verr *Error
	if !errors.As(ValidateHabit(h), &verr) {
		t.Fatal("expected validation error")
	}
	if len(verr.Problems) != 2 {
		t.Errorf("got %d problems, want 2", len(verr.Problems))
	}
	if !strings.Contains(verr.Error(), "title") || !strings.Contains(verr.Error(), "frequency") {
		t.Errorf("Error() = %q, want both fields mentioned", verr.Error())
	}
}

func TestValidatePatch(t *testing.T) {
	empty := ""
	if err := ValidatePatch(validHabit(), models.HabitPatch{Title: &empty}); err == nil {
		t.Error("clearing the title should fail validation")
	}

	newTitle := "Stretch twice"
	if err := ValidatePatch(validHabit(), models.HabitPatch{Title: &newTitle}); err != nil {
		t.Errorf("ValidatePatch() error = %v", err)
	}
}

func TestValidatePatchFields(t *testing.T) {
	empty := ""
	ancient := "0001-01-01"
	weekend := frequency.Weekend
	title := "Stretch twice"

	tests := []struct {
		name      string
		patch     models.HabitPatch
		wantField string
	}{
		{"empty patch", models.HabitPatch{}, ""},
		{"new title", models.HabitPatch{Title: &title, Frequency: &weekend}, ""},
		{"cleared title", models.HabitPatch{Title: &empty}, "title"},
		{"ancient start", models.HabitPatch{StartDate: &ancient}, "start_date"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePatchFields(tt.patch)
			if tt.wantField == "" {
				if err != nil {
					t.Errorf("ValidatePatchFields() error = %v", err)
				}
				return
			}
			var verr *Error
			if !errors.As(err, &verr) || !verr.HasField(tt.wantField) {
				t.Errorf("ValidatePatchFields() error = %v, want a %s problem", err, tt.wantField)
			}
		})
	}
}
