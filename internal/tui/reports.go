package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/NimbleMarkets/ntcharts/barchart"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/sadopc/shiftops/internal/store"
)

var (
	completedBarStyle   = lipgloss.NewStyle().Foreground(colorSuccess)
	outstandingBarStyle = lipgloss.NewStyle().Foreground(colorWarning)
)

type reportsModel struct {
	env    *Deps
	width  int
	height int

	offset    int // days back from today (0 = today)
	workDate  string
	summaries []store.HourSummary

	chart barchart.Model
}

func newReportsModel(env *Deps) reportsModel {
	return reportsModel{
		env:   env,
		chart: barchart.New(60, 12),
	}
}

func (r *reportsModel) setSize(w, h int) {
	r.width = w
	r.height = h
}

type reportsDataMsg struct {
	workDate  string
	summaries []store.HourSummary
}

// date returns the work date offset days before today.
func (r reportsModel) date() string {
	svc := r.env.Service
	return svc.WorkDate(svc.Now().In(svc.Location()).AddDate(0, 0, -r.offset))
}

func (r reportsModel) refresh() tea.Cmd {
	workDate := r.date()
	svc := r.env.Service
	s := r.env.Store
	return func() tea.Msg {
		ctx := context.Background()
		// Past days are reported as they were; only today is generated on demand.
		if workDate == svc.Today() {
			if _, err := svc.EnsureInstancesFor(ctx, workDate); err != nil {
				return errorStatus(err)
			}
		}
		summaries, err := s.GetHourSummary(ctx, workDate)
		if err != nil {
			return errorStatus(err)
		}
		return reportsDataMsg{workDate: workDate, summaries: summaries}
	}
}

func (r reportsModel) update(msg tea.Msg) (reportsModel, tea.Cmd) {
	switch msg := msg.(type) {
	case reportsDataMsg:
		r.workDate = msg.workDate
		r.summaries = msg.summaries
		r.buildChart()
		return r, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Left):
			r.offset++
			return r, r.refresh()
		case key.Matches(msg, keys.Right):
			if r.offset > 0 {
				r.offset--
			}
			return r, r.refresh()
		}
	}
	return r, nil
}

func hourLabel(h int) string {
	if h < 0 {
		return "any"
	}
	return fmt.Sprintf("%02d", h)
}

func (r *reportsModel) buildChart() {
	chartWidth := r.width - 8
	if chartWidth < 20 {
		chartWidth = 20
	}
	chartHeight := 12
	if r.height > 30 {
		chartHeight = 16
	}

	r.chart = barchart.New(chartWidth, chartHeight)

	var bars []barchart.BarData
	for _, s := range r.summaries {
		bars = append(bars, barchart.BarData{
			Label: hourLabel(s.Hour),
			Values: []barchart.BarValue{
				{Name: "done", Value: float64(s.Completed), Style: completedBarStyle},
				{Name: "open", Value: float64(s.Outstanding), Style: outstandingBarStyle},
			},
		})
	}
	if len(bars) == 0 {
		bars = []barchart.BarData{{
			Label:  "",
			Values: []barchart.BarValue{{Name: "", Value: 0, Style: lipgloss.NewStyle().Foreground(colorSubtle)}},
		}}
	}

	r.chart.PushAll(bars)
	r.chart.Draw()
}

func (r reportsModel) totals() (completed, outstanding int) {
	for _, s := range r.summaries {
		completed += s.Completed
		outstanding += s.Outstanding
	}
	return completed, outstanding
}

func (r reportsModel) view() string {
	w := r.width - 4

	label := r.workDate
	if t, err := time.Parse(time.DateOnly, r.workDate); err == nil {
		label = t.Format("Mon Jan 02, 2006")
	}
	header := lipgloss.JoinHorizontal(lipgloss.Bottom,
		titleStyle.Render("Reports"), "  ", mutedStyle.Render(label),
	)

	legend := "  " + completedBarStyle.Render("●") + " completed  " + outstandingBarStyle.Render("●") + " outstanding"
	nav := mutedStyle.Render("  ←/→: previous/next day")

	return panelStyle.Width(w).Render(
		lipgloss.JoinVertical(lipgloss.Left,
			header, "", r.chart.View(), "", legend, "", r.renderSummaryTable(w), "", nav,
		),
	)
}

func (r reportsModel) renderSummaryTable(w int) string {
	if len(r.summaries) == 0 {
		return mutedStyle.Render("  No tasks for this day")
	}

	rows := []string{
		mutedStyle.Render(fmt.Sprintf("  %-6s %10s %12s", "Hour", "Completed", "Outstanding")),
		mutedStyle.Render("  " + strings.Repeat("─", min(w-6, 30))),
	}
	for _, s := range r.summaries {
		rows = append(rows, fmt.Sprintf("  %-6s %10d %12d", hourLabel(s.Hour), s.Completed, s.Outstanding))
	}
	done, open := r.totals()
	rows = append(rows, titleStyle.Render(fmt.Sprintf("  %-6s %10d %12d", "total", done, open)))
	return strings.Join(rows, "\n")
}
