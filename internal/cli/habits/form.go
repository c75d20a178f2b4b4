package habits

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/huh"

	"github.com/julianstephens/habitsync/internal/constants"
	"github.com/julianstephens/habitsync/internal/frequency"
	"github.com/julianstephens/habitsync/internal/utils"
)

// habitForm holds the raw values of the interactive add form
type habitForm struct {
	Title       string
	Description string
	Days        []string
	Custom      string
	Start       string
	Reminder    string
}

const customDays = "custom"

func newHabitForm(fm *habitForm) *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Habit").
				Value(&fm.Title).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return fmt.Errorf("habit title cannot be empty")
					}
					if len([]rune(strings.TrimSpace(s))) > constants.MaxTitleLength {
						return fmt.Errorf("habit title must be at most %d characters", constants.MaxTitleLength)
					}
					return nil
				}),
			huh.NewText().
				Title("Description").
				Value(&fm.Description),
		),
		huh.NewGroup(
			huh.NewMultiSelect[string]().
				Title("Days").
				Options(
					huh.NewOption("Every day", "daily").Selected(true),
					huh.NewOption("Weekdays", "weekdays"),
					huh.NewOption("Weekend", "weekend"),
					huh.NewOption("Pick days", customDays),
				).
				Value(&fm.Days),
			huh.NewInput().
				Title("Custom days").
				Description("Comma-separated, e.g. mon,wed,fri (used with 'Pick days')").
				Value(&fm.Custom).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return nil
					}
					_, err := frequency.ParseDays(s)
					return err
				}),
			huh.NewInput().
				Title("Start date (YYYY-MM-DD)").
				Description("Leave empty to start today").
				Value(&fm.Start).
				Validate(func(s string) error {
					if s == "" || utils.ValidateDateFormat(s) {
						return nil
					}
					return fmt.Errorf("invalid date format, use YYYY-MM-DD")
				}),
			huh.NewInput().
				Title("Reminder (HH:MM)").
				Value(&fm.Reminder).
				Validate(func(s string) error {
					if s == "" || utils.ValidateTimeFormat(s) {
						return nil
					}
					return fmt.Errorf("invalid time format, use HH:MM")
				}),
		),
	).WithTheme(huh.ThemeDracula())
}

// mask combines the selected presets and custom days
func (fm *habitForm) mask() (frequency.Mask, error) {
	var m frequency.Mask
	for _, d := range fm.Days {
		days := d
		if d == customDays {
			days = fm.Custom
		}
		part, err := frequency.ParseDays(days)
		if err != nil {
			return frequency.None, err
		}
		m |= part
	}
	return m, nil
}
