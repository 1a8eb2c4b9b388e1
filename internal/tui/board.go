package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/sadopc/shiftops/internal/export"
	"github.com/sadopc/shiftops/internal/store"
)

type listKind int

const (
	listHour listKind = iota
	listDay
	listDelinquent
)

// boardModel lists task instances and lets the signed-in staff member claim
// or resume them. The Tasks and Recovery tabs are both boards.
type boardModel struct {
	env    *Deps
	staff  *store.Staff
	width  int
	height int

	kind   listKind
	hour   int
	views  []store.TaskView
	cursor int
}

func newBoardModel(env *Deps, kind listKind) boardModel {
	return boardModel{env: env, kind: kind}
}

func (b *boardModel) setSize(w, h int) {
	b.width = w
	b.height = h
}

func (b *boardModel) setStaff(st *store.Staff) {
	b.staff = st
	b.cursor = 0
}

type boardDataMsg struct {
	kind  listKind
	hour  int
	views []store.TaskView
}

func (b boardModel) refresh() tea.Cmd {
	kind := b.kind
	svc := b.env.Service
	return func() tea.Msg {
		ctx := context.Background()
		today := svc.Today()
		hour := svc.CurrentHour()
		var views []store.TaskView
		var err error
		switch kind {
		case listHour:
			views, err = svc.ListHour(ctx, today, hour)
		case listDay:
			views, err = svc.ListInstances(ctx, today)
		case listDelinquent:
			views, err = svc.ListDelinquent(ctx, today)
		}
		if err != nil {
			return errorStatus(err)
		}
		return boardDataMsg{kind: kind, hour: hour, views: views}
	}
}

func (b boardModel) selected() *store.TaskView {
	if b.cursor < 0 || b.cursor >= len(b.views) {
		return nil
	}
	v := b.views[b.cursor]
	return &v
}

func (b boardModel) update(msg tea.Msg) (boardModel, tea.Cmd) {
	switch msg := msg.(type) {
	case boardDataMsg:
		if msg.kind != b.kind {
			return b, nil
		}
		b.views = msg.views
		b.hour = msg.hour
		if b.cursor >= len(b.views) {
			b.cursor = max(0, len(b.views)-1)
		}
		return b, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Up):
			if b.cursor > 0 {
				b.cursor--
			}
		case key.Matches(msg, keys.Down):
			if b.cursor < len(b.views)-1 {
				b.cursor++
			}
		case key.Matches(msg, keys.AllDay):
			if b.kind == listDelinquent {
				return b, nil
			}
			if b.kind == listHour {
				b.kind = listDay
			} else {
				b.kind = listHour
			}
			b.cursor = 0
			return b, b.refresh()
		case key.Matches(msg, keys.Claim), key.Matches(msg, keys.Enter):
			return b, b.act()
		case key.Matches(msg, keys.Resume):
			if v := b.selected(); v != nil && b.staff != nil {
				return b, transitionCmd(b.env, "Resume", v.ID, b.staff.ID, b.env.Service.Resume)
			}
		}
	}
	return b, nil
}

// act claims a pending task or resumes an interrupted one.
func (b boardModel) act() tea.Cmd {
	v := b.selected()
	if v == nil || b.staff == nil {
		return nil
	}
	svc := b.env.Service
	switch v.Status {
	case store.StatusInterrupted:
		return transitionCmd(b.env, "Resume", v.ID, b.staff.ID, svc.Resume)
	case store.StatusPending:
		return transitionCmd(b.env, "Claim", v.ID, b.staff.ID, svc.Claim)
	}
	return func() tea.Msg {
		return statusMsg{text: fmt.Sprintf("%s is %s", v.Activity, v.Status), isError: true}
	}
}

func (b boardModel) title() string {
	switch b.kind {
	case listHour:
		return fmt.Sprintf("Tasks %02d:00 – %02d:59 and any time", b.hour, b.hour)
	case listDay:
		return "Tasks for today"
	}
	return "Recovery: overdue tasks"
}

func (b boardModel) view() string {
	w := b.width - 4
	title := titleStyle.Render(b.title())
	hint := "  c/enter: claim  r: resume  a: hour/day"
	empty := "Nothing scheduled right now."
	if b.kind == listDelinquent {
		hint = "  c/enter: claim  r: resume"
		empty = "Nothing overdue."
	}

	if len(b.views) == 0 {
		return panelStyle.Width(w).Render(lipgloss.JoinVertical(lipgloss.Left,
			title, "", mutedStyle.Render(empty),
		))
	}

	now := b.env.Service.Now()
	rows := []string{title, ""}
	rows = append(rows, mutedStyle.Render(fmt.Sprintf("  %-7s %-28s %-16s %-12s %s", "Target", "Activity", "Location", "Status", "Claimant")))
	for i, v := range b.views {
		cursor := "  "
		style := normalItemStyle
		if i == b.cursor {
			cursor = "> "
			style = selectedItemStyle
		}
		flag := " "
		if b.env.Service.IsDelinquent(v, now) {
			flag = errorStyle.Render("!")
		}
		line := style.Render(fmt.Sprintf("%s%-7s %-28s %-16s", cursor, targetLabel(v), truncate(v.Activity, 28), truncate(v.LocationName, 16)))
		rows = append(rows, fmt.Sprintf("%s%s %-12s %s", line, flag, statusLabel(v.Status), v.ClaimantName))
	}
	rows = append(rows, "", mutedStyle.Render(hint))

	style := panelStyle
	if b.kind == listDelinquent {
		style = alertPanelStyle
	}
	return style.Width(w).Render(strings.Join(rows, "\n"))
}

func targetLabel(v store.TaskView) string {
	if t := export.FormatTarget(v.TargetHour, v.TargetMinute); t != "" {
		return t
	}
	return "any"
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 1 {
		return string(r[:n])
	}
	return string(r[:n-1]) + "…"
}
