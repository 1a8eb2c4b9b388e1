package tui

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/sadopc/shiftops/internal/store"
	"github.com/sadopc/shiftops/internal/tasks"
	"go.uber.org/zap"
)

type dashboardModel struct {
	env    *Deps
	staff  *store.Staff
	width  int
	height int

	clock    shiftClock
	active   *store.TaskView
	verified bool
	history  []store.Timecard
	overview *tasks.Overview

	// Image path prompt for verify and complete
	formActive bool
	form       *huh.Form
	formOp     string
	formPath   *string
}

func newDashboardModel(env *Deps) dashboardModel {
	path := ""
	d := dashboardModel{
		env:      env,
		clock:    newShiftClock(),
		formPath: &path,
	}
	d.clock.now = env.Service.Now
	return d
}

func (d *dashboardModel) setSize(w, h int) {
	d.width = w
	d.height = h
}

func (d *dashboardModel) setStaff(st *store.Staff) {
	d.staff = st
	d.active = nil
	d.verified = false
	d.history = nil
	d.overview = nil
	d.clock = newShiftClock()
	d.clock.now = d.env.Service.Now
}

type dashboardDataMsg struct {
	clock    shiftClock
	active   *store.TaskView
	verified bool
	history  []store.Timecard
	overview *tasks.Overview
}

func (d dashboardModel) loadData() tea.Cmd {
	if d.staff == nil {
		return nil
	}
	staffID := d.staff.ID
	admin := d.staff.IsAdmin()
	clock := d.clock
	return func() tea.Msg {
		ctx := context.Background()
		svc := d.env.Service
		if err := clock.load(ctx, d.env.Gate, d.env.Store, staffID); err != nil {
			return errorStatus(err)
		}
		active, err := svc.ActiveInstance(ctx, staffID)
		if err != nil {
			return errorStatus(err)
		}
		verified, err := svc.IsVerified(ctx, active, staffID)
		if err != nil {
			return errorStatus(err)
		}
		history, err := d.env.Gate.History(ctx, staffID, 0)
		if err != nil {
			return errorStatus(err)
		}
		msg := dashboardDataMsg{clock: clock, active: active, verified: verified, history: history}
		if admin {
			msg.overview, err = svc.Overview(ctx, svc.Today())
			if err != nil {
				return errorStatus(err)
			}
		}
		return msg
	}
}

func (d dashboardModel) update(msg tea.Msg) (dashboardModel, tea.Cmd) {
	if d.formActive && d.form != nil {
		return d.updateForm(msg)
	}

	switch msg := msg.(type) {
	case dashboardDataMsg:
		d.clock = msg.clock
		d.active = msg.active
		d.verified = msg.verified
		d.history = msg.history
		d.overview = msg.overview
		return d, nil

	case tea.KeyMsg:
		if d.staff == nil {
			return d, nil
		}
		switch {
		case key.Matches(msg, keys.Shift):
			return d, d.toggleShift()
		case key.Matches(msg, keys.Break):
			return d, d.toggleBreak()
		case key.Matches(msg, keys.Cancel):
			if d.active != nil {
				return d, transitionCmd(d.env, "Cancel", d.active.ID, d.staff.ID, d.env.Service.Cancel)
			}
		case key.Matches(msg, keys.Interrupt):
			if d.active != nil {
				return d, transitionCmd(d.env, "Interrupt", d.active.ID, d.staff.ID, d.env.Service.Interrupt)
			}
		case key.Matches(msg, keys.Verify):
			if d.active != nil {
				return d.showImageForm("verify", "Photo of the location code (file path)")
			}
		case key.Matches(msg, keys.Complete):
			if d.active != nil {
				return d.showImageForm("complete", "Completion photo (file path)")
			}
		}
	}
	return d, nil
}

func (d dashboardModel) toggleShift() tea.Cmd {
	staffID := d.staff.ID
	clockedIn := d.clock.onShift()
	gate := d.env.Gate
	return func() tea.Msg {
		ctx := context.Background()
		var err error
		text := "Clocked in"
		if clockedIn {
			_, err = gate.ClockOut(ctx, staffID)
			text = "Clocked out"
		} else {
			_, err = gate.ClockIn(ctx, staffID)
		}
		if err != nil {
			return shiftFailure(err)
		}
		return changedMsg{text: text}
	}
}

func (d dashboardModel) toggleBreak() tea.Cmd {
	staffID := d.staff.ID
	onBreak := d.clock.onBreak()
	gate := d.env.Gate
	return func() tea.Msg {
		ctx := context.Background()
		var err error
		text := "Break started"
		if onBreak {
			_, err = gate.EndBreak(ctx, staffID)
			text = "Break ended"
		} else {
			_, err = gate.StartBreak(ctx, staffID)
		}
		if err != nil {
			return shiftFailure(err)
		}
		return changedMsg{text: text}
	}
}

func shiftFailure(err error) tea.Msg {
	if text := shiftErrorText(err); text != "" {
		return statusMsg{text: text, isError: true}
	}
	return errorStatus(err)
}

// transitionCmd runs a claim-style state-machine call and reports its outcome.
func transitionCmd(env *Deps, op string, instanceID, staffID int64, call func(context.Context, int64, int64) (tasks.Result, error)) tea.Cmd {
	return func() tea.Msg {
		res, err := call(context.Background(), instanceID, staffID)
		if err != nil {
			env.Logger.Error("task transition failed", zap.String("op", op), zap.Int64("instance_id", instanceID), zap.Error(err))
			return errorStatus(err)
		}
		return outcomeMsg{op: op, res: res}
	}
}

func (d dashboardModel) showImageForm(op, title string) (dashboardModel, tea.Cmd) {
	*d.formPath = ""
	d.formOp = op
	d.form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().Title(title).Value(d.formPath).Validate(fileExists),
		),
	).WithShowHelp(true).WithShowErrors(true)
	d.formActive = true
	return d, d.form.Init()
}

func fileExists(path string) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return fmt.Errorf("enter a file path")
	}
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("cannot open %s", path)
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", path)
	}
	return nil
}

func (d dashboardModel) updateForm(msg tea.Msg) (dashboardModel, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		if msg.String() == "esc" {
			d.formActive = false
			d.form = nil
			return d, nil
		}
	}

	form, cmd := d.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		d.form = f
	}

	if d.form.State == huh.StateCompleted {
		d.formActive = false
		if d.active == nil || d.staff == nil {
			return d, nil
		}
		return d, d.submitImage(d.formOp, strings.TrimSpace(*d.formPath), d.active.ID, d.staff.ID)
	}
	return d, cmd
}

func (d dashboardModel) submitImage(op, path string, instanceID, staffID int64) tea.Cmd {
	svc := d.env.Service
	return func() tea.Msg {
		data, err := os.ReadFile(path)
		if err != nil {
			return errorStatus(err)
		}
		ctx := context.Background()
		var res tasks.Result
		label := "Verify"
		if op == "complete" {
			label = "Complete"
			res, err = svc.Complete(ctx, instanceID, staffID, data)
		} else {
			res, err = svc.VerifyLocation(ctx, instanceID, staffID, data)
		}
		if err != nil {
			d.env.Logger.Error("task transition failed", zap.String("op", op), zap.Int64("instance_id", instanceID), zap.Error(err))
			return errorStatus(err)
		}
		return outcomeMsg{op: label, res: res}
	}
}

func (d dashboardModel) view() string {
	if d.width < 20 {
		return "Terminal too small"
	}
	w := d.width - 4

	if d.formActive && d.form != nil {
		title := titleStyle.Render("Scan code")
		if d.formOp == "complete" {
			title = titleStyle.Render("Complete task")
		}
		return activePanelStyle.Width(w).Render(
			lipgloss.JoinVertical(lipgloss.Left, title, "", d.form.View()),
		)
	}

	panels := []string{d.renderShiftPanel(w), d.renderActivePanel(w)}
	if d.overview != nil {
		panels = append(panels, d.renderOverviewPanel(w))
	} else {
		panels = append(panels, d.renderHistoryPanel(w))
	}
	return lipgloss.JoinVertical(lipgloss.Left, panels...)
}

func (d dashboardModel) renderShiftPanel(w int) string {
	loc := d.env.Service.Location()
	var clock, indicator, hint string
	switch {
	case d.clock.onBreak():
		clock = clockBreakStyle.Width(w - 6).Render(formatDuration(d.clock.worked()))
		indicator = warningStyle.Render("⏸  ON BREAK " + formatDuration(d.clock.currentBreak()))
		hint = mutedStyle.Render("b: end break")
	case d.clock.onShift():
		clock = clockWorkingStyle.Width(w - 6).Render(formatDuration(d.clock.worked()))
		in := d.clock.clockIn
		indicator = successStyle.Render("●  ON SHIFT since " + formatClock(&in, loc))
		hint = mutedStyle.Render("s: clock out  b: start break")
	default:
		clock = clockOffStyle.Width(w - 6).Render("00:00:00")
		indicator = mutedStyle.Render("■  OFF DUTY")
		hint = mutedStyle.Render("s: clock in")
	}
	content := lipgloss.JoinVertical(lipgloss.Center, clock, indicator, hint)
	if d.clock.onShift() {
		return activePanelStyle.Width(w).Render(content)
	}
	return panelStyle.Width(w).Render(content)
}

func (d dashboardModel) renderActivePanel(w int) string {
	title := titleStyle.Render("Current task")
	if d.active == nil {
		return panelStyle.Width(w).Render(lipgloss.JoinVertical(lipgloss.Left,
			title,
			mutedStyle.Render("No task claimed. Press 2 to pick one."),
		))
	}
	a := d.active
	loc := d.env.Service.Location()
	target := targetLabel(*a)
	check := warningStyle.Render("✗ location not scanned")
	if d.verified {
		check = successStyle.Render("✓ location verified")
	}
	rows := []string{
		title,
		highlightStyle.Render(a.Activity) + mutedStyle.Render(" @ "+a.LocationName),
		fmt.Sprintf("  target %s  claimed %s", target, formatClock(a.ClaimedAt, loc)),
		"  " + check,
		"",
		mutedStyle.Render("  v: scan code  p: photo & complete  i: interrupt  x: cancel"),
	}
	return activePanelStyle.Width(w).Render(strings.Join(rows, "\n"))
}

func (d dashboardModel) renderHistoryPanel(w int) string {
	title := titleStyle.Render("Recent shifts")
	if len(d.history) == 0 {
		return panelStyle.Width(w).Render(lipgloss.JoinVertical(lipgloss.Left,
			title, mutedStyle.Render("No timecards yet"),
		))
	}
	loc := d.env.Service.Location()
	rows := []string{title}
	for _, tc := range d.history {
		in := tc.ClockInAt
		status := "●"
		if tc.ClockOutAt != nil {
			status = "✓"
		}
		rows = append(rows, fmt.Sprintf("  %s %s  %s – %s", status, tc.WorkDate,
			formatClock(&in, loc), formatClock(tc.ClockOutAt, loc)))
	}
	return panelStyle.Width(w).Render(strings.Join(rows, "\n"))
}

func (d dashboardModel) renderOverviewPanel(w int) string {
	o := d.overview
	rows := []string{
		titleStyle.Render("Today " + o.WorkDate),
		fmt.Sprintf("  working %s  on break %s  outstanding %s  done %s",
			highlightStyle.Render(fmt.Sprint(o.Working)),
			warningStyle.Render(fmt.Sprint(o.OnBreak)),
			highlightStyle.Render(fmt.Sprint(o.Outstanding)),
			successStyle.Render(fmt.Sprint(len(o.Photos)))),
	}
	if len(o.Photos) > 0 {
		rows = append(rows, "", titleStyle.Render("Completed"))
		for _, p := range o.Photos {
			who := p.Instance.ClaimantName
			rows = append(rows, fmt.Sprintf("  ✓ %-24s %-12s %s", p.Instance.Activity, who, mutedStyle.Render(p.URL)))
		}
	}
	if len(o.Delayed) == 0 {
		return panelStyle.Width(w).Render(strings.Join(rows, "\n"))
	}
	rows = append(rows, "", errorStyle.Render(fmt.Sprintf("Delayed (%d)", len(o.Delayed))))
	for _, v := range o.Delayed {
		rows = append(rows, fmt.Sprintf("  ! %s %-24s %s", targetLabel(v), v.Activity, statusLabel(v.Status)))
	}
	return alertPanelStyle.Width(w).Render(strings.Join(rows, "\n"))
}
