package tui

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/sadopc/shiftops/internal/export"
	"github.com/sadopc/shiftops/internal/roster"
	"github.com/sadopc/shiftops/internal/store"
	"github.com/sadopc/shiftops/internal/tasks"
	"go.uber.org/zap"
)

// Deps are the services the terminal works against.
type Deps struct {
	Service   *tasks.Service
	Gate      *roster.Gate
	Store     *store.Store
	Logger    *zap.Logger
	ExportDir string // defaults to the home directory
}

// refreshEvery is how many ticks pass between automatic reloads.
const refreshEvery = 30

var exportFormats = []string{"CSV", "JSON", "XLSX"}

// App is the root Bubble Tea model.
type App struct {
	env    *Deps
	staff  *store.Staff
	width  int
	height int

	activeView    viewState
	showHelp      bool
	exportPicking bool
	exportCursor  int
	ticks         int

	signin    signinModel
	dashboard dashboardModel
	tasks     boardModel
	recovery  boardModel
	reports   reportsModel
	catalog   catalogModel
	settings  settingsModel

	help      help.Model
	status    string
	statusErr bool
}

func NewApp(d Deps) App {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	env := &d
	h := help.New()
	h.ShowAll = false

	return App{
		env:        env,
		activeView: viewDashboard,
		signin:     newSigninModel(env),
		dashboard:  newDashboardModel(env),
		tasks:      newBoardModel(env, listHour),
		recovery:   newBoardModel(env, listDelinquent),
		reports:    newReportsModel(env),
		catalog:    newCatalogModel(env),
		settings:   newSettingsModel(env),
		help:       h,
	}
}

func (a App) Init() tea.Cmd {
	return tea.Batch(
		a.signin.refresh(),
		tickCmd(),
	)
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.help.Width = msg.Width
		contentHeight := a.height - 4 // header + footer
		a.signin.setSize(a.width, contentHeight)
		a.dashboard.setSize(a.width, contentHeight)
		a.tasks.setSize(a.width, contentHeight)
		a.recovery.setSize(a.width, contentHeight)
		a.reports.setSize(a.width, contentHeight)
		a.catalog.setSize(a.width, contentHeight)
		a.settings.setSize(a.width, contentHeight)
		return a, nil

	case tickMsg:
		a.ticks++
		if a.staff != nil && a.ticks%refreshEvery == 0 && !a.isFormActive() {
			return a, tea.Batch(tickCmd(), a.dashboard.loadData(), a.refreshCurrentView())
		}
		return a, tickCmd()

	case signedInMsg:
		a.signIn(msg.staff)
		a.setStatus("Signed in as "+msg.staff.Name, false)
		return a, tea.Batch(a.dashboard.loadData(), a.settings.refresh())

	case statusMsg:
		a.setStatus(msg.text, msg.isError)
		return a, nil

	case outcomeMsg:
		a.setStatus(outcomeText(msg.op, msg.res), !msg.res.Outcome.OK())
		return a, a.reload()

	case changedMsg:
		if msg.text != "" {
			a.setStatus(msg.text, false)
		}
		return a, a.reload()

	case exportDoneMsg:
		a.setStatus("Exported to "+strings.Join(msg.paths, ", "), false)
		a.exportPicking = false
		return a, nil

	case staffDataMsg:
		var cmd tea.Cmd
		a.signin, cmd = a.signin.update(msg)
		return a, cmd
	case dashboardDataMsg:
		var cmd tea.Cmd
		a.dashboard, cmd = a.dashboard.update(msg)
		return a, cmd
	case boardDataMsg:
		var c1, c2 tea.Cmd
		a.tasks, c1 = a.tasks.update(msg)
		a.recovery, c2 = a.recovery.update(msg)
		return a, tea.Batch(c1, c2)
	case reportsDataMsg:
		var cmd tea.Cmd
		a.reports, cmd = a.reports.update(msg)
		return a, cmd
	case locationsDataMsg, definitionsDataMsg:
		var cmd tea.Cmd
		a.catalog, cmd = a.catalog.update(msg)
		return a, cmd
	case settingsDataMsg:
		var cmd tea.Cmd
		a.settings, cmd = a.settings.update(msg)
		return a, cmd

	case tea.KeyMsg:
		if a.staff == nil {
			if msg.String() == "ctrl+c" || msg.String() == "q" {
				return a, tea.Quit
			}
			var cmd tea.Cmd
			a.signin, cmd = a.signin.update(msg)
			return a, cmd
		}

		if a.exportPicking {
			return a.updateExportPicker(msg)
		}

		// If a child view is capturing input (e.g. form), delegate first.
		if a.isFormActive() {
			return a.updateActiveView(msg)
		}

		switch {
		case key.Matches(msg, keys.Export):
			a.exportPicking = true
			a.exportCursor = 0
			return a, nil
		case key.Matches(msg, keys.Quit):
			return a, tea.Quit
		case key.Matches(msg, keys.Help):
			a.showHelp = !a.showHelp
			a.help.ShowAll = a.showHelp
			return a, nil
		case key.Matches(msg, keys.SignOut):
			a.signIn(nil)
			a.setStatus("Signed out", false)
			return a, a.signin.refresh()
		case key.Matches(msg, keys.Tab1):
			return a.switchTo(viewDashboard)
		case key.Matches(msg, keys.Tab2):
			return a.switchTo(viewTasks)
		case key.Matches(msg, keys.Tab3):
			return a.switchTo(viewRecovery)
		case key.Matches(msg, keys.Tab4):
			return a.switchTo(viewReports)
		case key.Matches(msg, keys.Tab5):
			return a.switchTo(viewCatalog)
		case key.Matches(msg, keys.Tab6):
			return a.switchTo(viewSettings)
		case key.Matches(msg, keys.Tab):
			return a.switchTo((a.activeView + 1) % viewState(len(viewNames)))
		}
	}

	if a.staff == nil {
		var cmd tea.Cmd
		a.signin, cmd = a.signin.update(msg)
		return a, cmd
	}
	return a.updateActiveView(msg)
}

// signIn switches the terminal to st, or back to the sign-in screen when st is nil.
func (a *App) signIn(st *store.Staff) {
	a.staff = st
	a.activeView = viewDashboard
	a.exportPicking = false
	a.dashboard.setStaff(st)
	a.tasks.setStaff(st)
	a.recovery.setStaff(st)
	a.catalog.setStaff(st)
	a.settings.setStaff(st)
}

func (a *App) setStatus(text string, isError bool) {
	a.status = text
	a.statusErr = isError
}

func (a App) switchTo(v viewState) (tea.Model, tea.Cmd) {
	a.activeView = v
	return a, a.refreshCurrentView()
}

// reload refreshes the dashboard and the view on screen after a change.
func (a App) reload() tea.Cmd {
	if a.activeView == viewDashboard {
		return a.dashboard.loadData()
	}
	return tea.Batch(a.dashboard.loadData(), a.refreshCurrentView())
}

func (a App) updateActiveView(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch a.activeView {
	case viewDashboard:
		a.dashboard, cmd = a.dashboard.update(msg)
	case viewTasks:
		a.tasks, cmd = a.tasks.update(msg)
	case viewRecovery:
		a.recovery, cmd = a.recovery.update(msg)
	case viewReports:
		a.reports, cmd = a.reports.update(msg)
	case viewCatalog:
		a.catalog, cmd = a.catalog.update(msg)
	case viewSettings:
		a.settings, cmd = a.settings.update(msg)
	}
	return a, cmd
}

func (a App) isFormActive() bool {
	switch a.activeView {
	case viewDashboard:
		return a.dashboard.formActive
	case viewCatalog:
		return a.catalog.formActive
	case viewSettings:
		return a.settings.formActive
	}
	return false
}

func (a App) refreshCurrentView() tea.Cmd {
	switch a.activeView {
	case viewDashboard:
		return a.dashboard.loadData()
	case viewTasks:
		return a.tasks.refresh()
	case viewRecovery:
		return a.recovery.refresh()
	case viewReports:
		return a.reports.refresh()
	case viewCatalog:
		if a.catalog.viewingDefs {
			return tea.Batch(a.catalog.refresh(), a.catalog.refreshDefinitions())
		}
		return a.catalog.refresh()
	case viewSettings:
		return a.settings.refresh()
	}
	return nil
}

func (a App) View() string {
	if a.width == 0 {
		return "Loading..."
	}

	header := a.renderHeader()
	footer := a.renderFooter()

	var content string
	if a.staff == nil {
		content = a.signin.view()
	} else {
		switch a.activeView {
		case viewDashboard:
			content = a.dashboard.view()
		case viewTasks:
			content = a.tasks.view()
		case viewRecovery:
			content = a.recovery.view()
		case viewReports:
			content = a.reports.view()
		case viewCatalog:
			content = a.catalog.view()
		case viewSettings:
			content = a.settings.view()
		}
	}

	headerHeight := lipgloss.Height(header)
	footerHeight := lipgloss.Height(footer)
	contentHeight := a.height - headerHeight - footerHeight
	if contentHeight < 1 {
		contentHeight = 1
	}

	if a.exportPicking {
		content = a.renderExportPicker()
	}

	content = lipgloss.NewStyle().
		Width(a.width).
		Height(contentHeight).
		Render(content)

	return lipgloss.JoinVertical(lipgloss.Left, header, content, footer)
}

func (a App) renderHeader() string {
	title := lipgloss.NewStyle().Bold(true).Foreground(colorPrimary).Render("shiftops")
	if a.staff == nil {
		return headerStyle.Render(title)
	}

	var tabs []string
	for i, name := range viewNames {
		if viewState(i) == a.activeView {
			tabs = append(tabs, activeTabStyle.Render(name))
		} else {
			tabs = append(tabs, inactiveTabStyle.Render(name))
		}
	}
	tabRow := lipgloss.JoinHorizontal(lipgloss.Bottom, tabs...)
	who := mutedStyle.Render(" " + a.staff.Name)

	gap := a.width - lipgloss.Width(title) - lipgloss.Width(who) - lipgloss.Width(tabRow) - 4
	if gap < 1 {
		gap = 1
	}
	spacer := lipgloss.NewStyle().Width(gap).Render("")

	return headerStyle.Render(
		lipgloss.JoinHorizontal(lipgloss.Bottom, title, who, spacer, tabRow),
	)
}

func (a App) renderFooter() string {
	helpView := a.help.View(keys)

	status := ""
	if a.status != "" {
		if a.statusErr {
			status = errorStyle.Render(" " + a.status)
		} else {
			status = mutedStyle.Render(" " + a.status)
		}
	}

	shift := ""
	if c := a.dashboard.clock; a.staff != nil && c.onShift() {
		shift = successStyle.Render(" ● " + formatDuration(c.worked()))
		if c.onBreak() {
			shift = warningStyle.Render(" ⏸ " + formatDuration(c.currentBreak()))
		}
	}

	left := footerStyle.Render(helpView)
	right := shift + status

	gap := a.width - lipgloss.Width(left) - lipgloss.Width(right) - 2
	if gap < 1 {
		gap = 1
	}
	spacer := lipgloss.NewStyle().Width(gap).Render("")

	return lipgloss.JoinHorizontal(lipgloss.Bottom, left, spacer, right)
}

func (a App) renderExportPicker() string {
	rows := []string{titleStyle.Render("Export today"), ""}
	for i, f := range exportFormats {
		cursor := "  "
		style := normalItemStyle
		if i == a.exportCursor {
			cursor = "> "
			style = selectedItemStyle
		}
		rows = append(rows, style.Render(cursor+f))
	}
	rows = append(rows, "", mutedStyle.Render("  enter: export  esc: cancel"))

	w := a.width - 4
	return activePanelStyle.Width(w).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func (a App) updateExportPicker(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Up):
		if a.exportCursor > 0 {
			a.exportCursor--
		}
	case key.Matches(msg, keys.Down):
		if a.exportCursor < len(exportFormats)-1 {
			a.exportCursor++
		}
	case key.Matches(msg, keys.Enter):
		a.exportPicking = false
		return a, a.doExport(exportFormats[a.exportCursor])
	case key.Matches(msg, keys.Back):
		a.exportPicking = false
	}
	return a, nil
}

func (a App) doExport(format string) tea.Cmd {
	env := a.env
	return func() tea.Msg {
		svc := env.Service
		workDate := svc.Today()
		r, err := export.Collect(context.Background(), svc, env.Store, env.Gate, workDate)
		if err != nil {
			env.Logger.Error("export failed", zap.Error(err))
			return errorStatus(err)
		}

		dir := env.ExportDir
		if dir == "" {
			dir, _ = os.UserHomeDir()
		}
		base := filepath.Join(dir, "shiftops-"+workDate)
		paths, err := export.Write(r, format, base)
		if err != nil {
			env.Logger.Error("export failed", zap.String("format", format), zap.Error(err))
			return statusMsg{text: fmt.Sprintf("%s error: %v", format, err), isError: true}
		}
		return exportDoneMsg{paths: paths}
	}
}
