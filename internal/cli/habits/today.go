package habits

import (
	"fmt"
	"time"

	"github.com/julianstephens/habitsync/internal/cli"
	"github.com/julianstephens/habitsync/internal/stats"
	"github.com/julianstephens/habitsync/internal/utils"
)

type TodayCmd struct{}

func (c *TodayCmd) Run(ctx *cli.Context) error {
	if err := ctx.Load(); err != nil {
		return err
	}

	habits, err := ctx.Engine.GetHabitsWithCompletions(ctx.Context())
	if err != nil {
		return err
	}

	today := utils.DayKey(time.Now(), ctx.Location())
	ctx.Println(cli.HeaderStyle.Render(fmt.Sprintf("Habits for %s", today)))
	ctx.Println()

	due := 0
	for _, h := range habits {
		if !h.IsDueToday {
			continue
		}
		due++
		line := fmt.Sprintf("%s %s", cli.Checkbox(h.IsCompletedToday), h.Title)
		if h.CurrentStreak > 0 {
			line += cli.MutedStyle.Render(fmt.Sprintf("  streak %d", h.CurrentStreak))
		}
		ctx.Println(line)
	}
	if due == 0 {
		ctx.Println("Nothing due today.")
	}

	s := stats.Summarize(habits)
	ctx.Println()
	ctx.Printf("Done: %d/%d · best streak %d · average rate %d%%\n", s.CompletedToday, s.DueToday, s.BestCurrentStreak, s.AverageRate)
	ctx.Println(cli.FormatStatus(ctx.Engine.GetConnectionStatus(), ctx.Engine.GetPendingSyncCount()))
	return nil
}
