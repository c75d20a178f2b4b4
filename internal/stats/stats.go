// Package stats derives due status, streaks and completion rates from a
// habit and its completion history.
//
// Every function is pure: "today" is passed in, and calendar dates are read
// in today's location. Completions are judged against the habit's current
// frequency mask and start date, even if the habit was configured
// differently when they were recorded.
package stats

import (
	"math"
	"sort"
	"time"

	"github.com/julianstephens/habitsync/internal/frequency"
	"github.com/julianstephens/habitsync/internal/models"
	"github.com/julianstephens/habitsync/internal/utils"
)

// Streak holds the current and best run of completed due days
type Streak struct {
	Current int
	Longest int
}

// IsDueOnDate reports whether h should be done on date's calendar day.
func IsDueOnDate(h models.Habit, date time.Time) bool {
	if !h.IsActive {
		return false
	}
	start, err := utils.ParseDateInLocation(h.StartDate, date.Location())
	if err != nil {
		return false
	}
	return dueOn(h, start, date)
}

// dueOn is IsDueOnDate with the start date already parsed in date's location.
func dueOn(h models.Habit, start, date time.Time) bool {
	if utils.StartOfDay(date).Before(start) {
		return false
	}
	return frequency.IsDayInMask(h.Frequency, date.Weekday())
}

// IsCompletedOnDate reports whether any completion falls on date's calendar day.
func IsCompletedOnDate(completions []models.HabitCompletion, date time.Time) bool {
	key := utils.DayKey(date, date.Location())
	for _, c := range completions {
		if utils.DayKey(c.CompletedAt, date.Location()) == key {
			return true
		}
	}
	return false
}

// completedDays de-duplicates completions by calendar date.
func completedDays(completions []models.HabitCompletion, loc *time.Location) map[string]struct{} {
	days := make(map[string]struct{}, len(completions))
	for _, c := range completions {
		days[utils.DayKey(c.CompletedAt, loc)] = struct{}{}
	}
	return days
}

// neverDue short-circuits habits that cannot have a due day.
func neverDue(h models.Habit) bool {
	return !h.IsActive || h.Frequency&frequency.Daily == frequency.None
}

// eachDueDay calls fn for every due day from the start date through today,
// oldest first, with whether that day has a completion.
func eachDueDay(h models.Habit, completions []models.HabitCompletion, today time.Time, fn func(day time.Time, done bool)) {
	if neverDue(h) {
		return
	}
	loc := today.Location()
	start, err := utils.ParseDateInLocation(h.StartDate, loc)
	if err != nil {
		return
	}
	done := completedDays(completions, loc)
	end := utils.StartOfDay(today)

	for day := start; !day.After(end); day = utils.AddDays(day, 1) {
		if !dueOn(h, start, day) {
			continue
		}
		_, ok := done[utils.DayKey(day, loc)]
		fn(day, ok)
	}
}

// CalculateStreak computes the current streak, counted back from today over
// due days only, and the longest streak in the habit's history.
func CalculateStreak(h models.Habit, completions []models.HabitCompletion, today time.Time) Streak {
	var s Streak
	if neverDue(h) {
		return s
	}

	loc := today.Location()
	start, err := utils.ParseDateInLocation(h.StartDate, loc)
	if err != nil {
		return s
	}
	done := completedDays(completions, loc)

	// Non-due days are skipped; the first due day without a completion ends the run.
	for day := utils.StartOfDay(today); !day.Before(start); day = utils.AddDays(day, -1) {
		if !dueOn(h, start, day) {
			continue
		}
		if _, ok := done[utils.DayKey(day, loc)]; !ok {
			break
		}
		s.Current++
	}

	run := 0
	eachDueDay(h, completions, today, func(_ time.Time, ok bool) {
		if !ok {
			run = 0
			return
		}
		run++
		if run > s.Longest {
			s.Longest = run
		}
	})

	if s.Current > s.Longest {
		s.Longest = s.Current
	}
	return s
}

// CalculateCompletionRate returns the share of elapsed due days that were
// completed, as a rounded percentage. It is 0 when no due day has elapsed.
func CalculateCompletionRate(h models.Habit, completions []models.HabitCompletion, today time.Time) int {
	due, completed := 0, 0
	eachDueDay(h, completions, today, func(_ time.Time, ok bool) {
		due++
		if ok {
			completed++
		}
	})
	if due == 0 {
		return 0
	}
	return int(math.Round(float64(completed) * 100 / float64(due)))
}

// EnrichHabitWithCompletions attaches the derived presentation fields.
// completions must belong to h; they are returned newest first.
func EnrichHabitWithCompletions(h models.Habit, completions []models.HabitCompletion, today time.Time) models.HabitWithCompletions {
	sorted := make([]models.HabitCompletion, len(completions))
	copy(sorted, completions)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CompletedAt.After(sorted[j].CompletedAt)
	})

	streak := CalculateStreak(h, sorted, today)
	enriched := models.HabitWithCompletions{
		Habit:            h,
		Completions:      sorted,
		CurrentStreak:    streak.Current,
		LongestStreak:    streak.Longest,
		CompletionRate:   CalculateCompletionRate(h, sorted, today),
		IsDueToday:       IsDueOnDate(h, today),
		IsCompletedToday: IsCompletedOnDate(sorted, today),
	}
	if len(sorted) > 0 {
		last := sorted[0].CompletedAt
		enriched.LastCompleted = &last
	}
	return enriched
}

// Summary aggregates enriched habits for a daily overview
type Summary struct {
	Habits            int
	DueToday          int
	CompletedToday    int
	BestCurrentStreak int
	AverageRate       int
}

// Summarize computes a Summary over active habits.
func Summarize(habits []models.HabitWithCompletions) Summary {
	var s Summary
	rateTotal := 0
	for _, h := range habits {
		if !h.IsActive {
			continue
		}
		s.Habits++
		rateTotal += h.CompletionRate
		if h.IsDueToday {
			s.DueToday++
			if h.IsCompletedToday {
				s.CompletedToday++
			}
		}
		if h.CurrentStreak > s.BestCurrentStreak {
			s.BestCurrentStreak = h.CurrentStreak
		}
	}
	if s.Habits > 0 {
		s.AverageRate = int(math.Round(float64(rateTotal) / float64(s.Habits)))
	}
	return s
}
