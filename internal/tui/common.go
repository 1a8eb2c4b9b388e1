package tui

import (
	"errors"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/sadopc/shiftops/internal/roster"
	"github.com/sadopc/shiftops/internal/store"
	"github.com/sadopc/shiftops/internal/tasks"
)

// viewState represents the currently active view.
type viewState int

const (
	viewDashboard viewState = iota
	viewTasks
	viewRecovery
	viewReports
	viewCatalog
	viewSettings
)

var viewNames = []string{"Dashboard", "Tasks", "Recovery", "Reports", "Catalog", "Settings"}

// --- Messages ---

type signedInMsg struct {
	staff *store.Staff
}

// outcomeMsg reports a state-machine call made from any view.
type outcomeMsg struct {
	op  string
	res tasks.Result
}

// changedMsg asks the app to reload whatever is on screen. A non-empty text
// becomes the status line.
type changedMsg struct {
	text string
}

type statusMsg struct {
	text    string
	isError bool
}

type tickMsg time.Time

type exportDoneMsg struct {
	paths []string
}

// --- Helpers ---

func formatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

func formatMinutes(mins int) string {
	return fmt.Sprintf("%dh%02dm", mins/60, mins%60)
}

func formatClock(t *time.Time, loc *time.Location) string {
	if t == nil {
		return "--:--"
	}
	return t.In(loc).Format("15:04")
}

func statusLabel(st store.Status) string {
	switch st {
	case store.StatusPending:
		return mutedStyle.Render("pending")
	case store.StatusInProgress:
		return highlightStyle.Render("in progress")
	case store.StatusInterrupted:
		return warningStyle.Render("interrupted")
	case store.StatusCompleted:
		return successStyle.Render("completed")
	}
	return string(st)
}

func errorStatus(err error) tea.Msg {
	return statusMsg{text: fmt.Sprintf("Error: %v", err), isError: true}
}

// shiftErrorText turns roster rule violations into a hint for the user.
func shiftErrorText(err error) string {
	switch {
	case errors.Is(err, roster.ErrAlreadyClockedIn):
		return "Already clocked in"
	case errors.Is(err, roster.ErrNotClockedIn):
		return "Clock in first"
	case errors.Is(err, roster.ErrOnBreak):
		return "End your break first"
	case errors.Is(err, roster.ErrNotOnBreak):
		return "Not on break"
	case errors.Is(err, roster.ErrInactive):
		return "Staff member is inactive"
	}
	return ""
}

func outcomeText(op string, res tasks.Result) string {
	if res.Outcome.OK() {
		name := ""
		if res.Instance != nil {
			name = " " + res.Instance.Activity
		}
		return fmt.Sprintf("%s%s: %s", op, name, res.Outcome.Message())
	}
	return fmt.Sprintf("%s: %s", op, res.Outcome.Message())
}
