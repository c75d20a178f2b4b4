package habits

import (
	"fmt"

	"github.com/charmbracelet/huh"

	"github.com/julianstephens/habitsync/internal/cli"
	"github.com/julianstephens/habitsync/internal/frequency"
	"github.com/julianstephens/habitsync/internal/models"
)

type HabitCmd struct {
	Add    HabitAddCmd    `cmd:"" help:"Add a new habit."`
	List   HabitListCmd   `cmd:"" help:"List habits."`
	Edit   HabitEditCmd   `cmd:"" help:"Edit a habit."`
	Delete HabitDeleteCmd `cmd:"" help:"Delete a habit and its history."`
	Toggle HabitToggleCmd `cmd:"" help:"Mark or unmark a habit as done for a day."`
}

type HabitAddCmd struct {
	Title       string `arg:"" optional:"" help:"Habit title."`
	Description string `short:"d" help:"Longer description."`
	Days        string `short:"w" help:"Days the habit is due: daily, weekdays, weekend or a list like mon,wed,fri." default:"daily"`
	Start       string `short:"s" help:"Start date (YYYY-MM-DD, default: today)."`
	Color       string `help:"Display color (#RRGGBB)."`
	Icon        string `help:"Display icon."`
	Reminder    string `short:"r" help:"Reminder time (HH:MM)."`
	Interactive bool   `short:"i" help:"Fill in the habit with a form."`
}

func (c *HabitAddCmd) Run(ctx *cli.Context) error {
	in := models.HabitInput{
		Title:        c.Title,
		Description:  c.Description,
		StartDate:    c.Start,
		Color:        c.Color,
		Icon:         c.Icon,
		ReminderTime: c.Reminder,
	}

	if c.Interactive || c.Title == "" {
		fm := &habitForm{Title: c.Title, Description: c.Description, Start: c.Start, Reminder: c.Reminder}
		if err := newHabitForm(fm).Run(); err != nil {
			return err
		}
		mask, err := fm.mask()
		if err != nil {
			return err
		}
		in.Title, in.Description, in.StartDate, in.ReminderTime = fm.Title, fm.Description, fm.Start, fm.Reminder
		in.Frequency = mask
	} else {
		mask, err := frequency.ParseDays(c.Days)
		if err != nil {
			return err
		}
		in.Frequency = mask
	}

	if err := ctx.Load(); err != nil {
		return err
	}
	h, err := ctx.Engine.CreateHabit(ctx.Context(), in)
	if err != nil {
		return err
	}

	if models.IsTempID(h.ID) {
		ctx.Printf("Added habit: %s (%s, will sync when online)\n", h.Title, h.Frequency)
		return nil
	}
	ctx.Printf("Added habit: %s (%s, ID: %s)\n", h.Title, h.Frequency, h.ID)
	return nil
}

type HabitListCmd struct {
	All bool `short:"a" help:"Include paused habits."`
}

func (c *HabitListCmd) Run(ctx *cli.Context) error {
	if err := ctx.Load(); err != nil {
		return err
	}

	habits, err := ctx.Engine.GetHabitsWithCompletions(ctx.Context())
	if err != nil {
		return err
	}

	shown := 0
	for _, h := range habits {
		if !h.IsActive && !c.All {
			continue
		}
		ctx.Println(cli.FormatHabit(h))
		shown++
	}
	if shown == 0 {
		ctx.Println("No habits found.")
	}
	return nil
}

type HabitEditCmd struct {
	Habit       string  `arg:"" help:"Habit id or title."`
	Title       cli.OptionalString `help:"New title."`
	Description cli.OptionalString `short:"d" help:"New description."`
	Days        cli.OptionalString `short:"w" help:"New due days."`
	Start       cli.OptionalString `short:"s" help:"New start date (YYYY-MM-DD)."`
	Color       cli.OptionalString `help:"New display color."`
	Icon        cli.OptionalString `help:"New display icon."`
	Reminder    cli.OptionalString `short:"r" help:"New reminder time (HH:MM), empty to clear."`
	Pause       bool               `help:"Stop the habit from being due." xor:"active"`
	Resume      bool               `help:"Make a paused habit due again." xor:"active"`
}

func (c *HabitEditCmd) patch() (models.HabitPatch, error) {
	p := models.HabitPatch{
		Title:        c.Title.Ptr(),
		Description:  c.Description.Ptr(),
		StartDate:    c.Start.Ptr(),
		Color:        c.Color.Ptr(),
		Icon:         c.Icon.Ptr(),
		ReminderTime: c.Reminder.Ptr(),
	}
	if c.Days.Set {
		mask, err := frequency.ParseDays(c.Days.Value)
		if err != nil {
			return p, err
		}
		p.Frequency = &mask
	}
	if c.Pause || c.Resume {
		active := c.Resume
		p.IsActive = &active
	}
	return p, nil
}

func (c *HabitEditCmd) Run(ctx *cli.Context) error {
	patch, err := c.patch()
	if err != nil {
		return err
	}
	if err := ctx.Load(); err != nil {
		return err
	}

	h, err := ctx.ResolveHabit(c.Habit)
	if err != nil {
		return err
	}
	updated, err := ctx.Engine.UpdateHabit(ctx.Context(), h.ID, patch)
	if err != nil {
		return err
	}
	ctx.Printf("Updated habit: %s (%s)\n", updated.Title, updated.Frequency)
	return nil
}

type HabitDeleteCmd struct {
	Habit string `arg:"" help:"Habit id or title."`
	Yes   bool   `short:"y" help:"Do not ask for confirmation."`
}

func (c *HabitDeleteCmd) Run(ctx *cli.Context) error {
	if err := ctx.Load(); err != nil {
		return err
	}

	h, err := ctx.ResolveHabit(c.Habit)
	if err != nil {
		return err
	}

	if !c.Yes {
		confirmed := false
		err := huh.NewConfirm().
			Title(fmt.Sprintf("Delete %q and its %d completion(s)?", h.Title, len(h.Completions))).
			Value(&confirmed).
			Run()
		if err != nil {
			return err
		}
		if !confirmed {
			ctx.Println("Aborted.")
			return nil
		}
	}

	if err := ctx.Engine.DeleteHabit(ctx.Context(), h.ID); err != nil {
		return err
	}
	ctx.Printf("Deleted habit: %s\n", h.Title)
	return nil
}

type HabitToggleCmd struct {
	Habit string `arg:"" help:"Habit id or title."`
	Date  string `help:"Date in YYYY-MM-DD format (default: today)."`
}

func (c *HabitToggleCmd) Run(ctx *cli.Context) error {
	day, err := ctx.ParseDay(c.Date)
	if err != nil {
		return err
	}
	if err := ctx.Load(); err != nil {
		return err
	}

	h, err := ctx.ResolveHabit(c.Habit)
	if err != nil {
		return err
	}
	done, err := ctx.Engine.ToggleHabitCompletion(ctx.Context(), h.ID, day)
	if err != nil {
		return err
	}

	label := "today"
	if c.Date != "" {
		label = c.Date
	}
	if done {
		ctx.Printf("Marked %q done for %s\n", h.Title, label)
	} else {
		ctx.Printf("Unmarked %q for %s\n", h.Title, label)
	}
	return nil
}
