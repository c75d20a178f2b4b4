package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/julianstephens/habitsync/internal/models"
	"github.com/julianstephens/habitsync/internal/remote"
)

var (
	HeaderStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Bold(true)

	DoneStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42"))

	PendingStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214"))

	MutedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	OfflineStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)
)

// Checkbox renders a completion mark
func Checkbox(done bool) string {
	if done {
		return DoneStyle.Render("[x]")
	}
	return "[ ]"
}

// ShortID trims server ids for display; temporary ids are marked as unsynced
func ShortID(id string) string {
	if models.IsTempID(id) {
		return PendingStyle.Render("unsynced")
	}
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// FormatHabit renders one habit line for list output
func FormatHabit(h models.HabitWithCompletions) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %-8s %s", Checkbox(h.IsCompletedToday), ShortID(h.ID), h.Title)
	details := []string{h.Frequency.String()}
	if h.CurrentStreak > 0 {
		details = append(details, fmt.Sprintf("streak %d", h.CurrentStreak))
	}
	details = append(details, fmt.Sprintf("best %d", h.LongestStreak), fmt.Sprintf("%d%%", h.CompletionRate))
	if !h.IsActive {
		details = append(details, "paused")
	}
	b.WriteString("  " + MutedStyle.Render(strings.Join(details, " · ")))
	return b.String()
}

// FormatStatus renders the connection status with the pending count
func FormatStatus(status remote.Status, pending int) string {
	label := DoneStyle.Render(string(status))
	if status != remote.StatusOnline {
		label = OfflineStyle.Render(string(status))
	}
	if pending == 0 {
		return label + MutedStyle.Render(" · all changes synced")
	}
	return label + PendingStyle.Render(fmt.Sprintf(" · %d pending change(s)", pending))
}
