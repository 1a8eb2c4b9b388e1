package tui

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/sadopc/shiftops/internal/store"
)

// signinModel picks who is using the terminal.
type signinModel struct {
	env    *Deps
	width  int
	height int

	staff  []store.Staff
	loaded bool
	form   *huh.Form
	choice *int64
}

func newSigninModel(env *Deps) signinModel {
	var id int64
	return signinModel{env: env, choice: &id}
}

func (m *signinModel) setSize(w, h int) {
	m.width = w
	m.height = h
}

type staffDataMsg struct {
	staff []store.Staff
}

func (m signinModel) refresh() tea.Cmd {
	s := m.env.Store
	return func() tea.Msg {
		staff, err := s.ListStaff(context.Background(), false)
		if err != nil {
			return errorStatus(err)
		}
		return staffDataMsg{staff: staff}
	}
}

func (m signinModel) buildForm() (signinModel, tea.Cmd) {
	*m.choice = 0
	if len(m.staff) == 0 {
		m.form = nil
		return m, nil
	}
	options := make([]huh.Option[int64], len(m.staff))
	for i, st := range m.staff {
		label := fmt.Sprintf("%s (%s)", st.Name, st.Code)
		if st.IsAdmin() {
			label += " · admin"
		}
		options[i] = huh.NewOption(label, st.ID)
	}
	m.form = huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[int64]().Title("Who is working?").Options(options...).Value(m.choice),
		),
	).WithShowHelp(true)
	return m, m.form.Init()
}

func (m signinModel) find(id int64) *store.Staff {
	for i := range m.staff {
		if m.staff[i].ID == id {
			st := m.staff[i]
			return &st
		}
	}
	return nil
}

func (m signinModel) update(msg tea.Msg) (signinModel, tea.Cmd) {
	if msg, ok := msg.(staffDataMsg); ok {
		m.staff = msg.staff
		m.loaded = true
		return m.buildForm()
	}
	if m.form == nil {
		return m, nil
	}

	form, cmd := m.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		m.form = f
	}
	if m.form.State == huh.StateCompleted {
		st := m.find(*m.choice)
		var resetCmd tea.Cmd
		m, resetCmd = m.buildForm()
		if st == nil {
			return m, resetCmd
		}
		return m, tea.Batch(resetCmd, func() tea.Msg { return signedInMsg{staff: st} })
	}
	return m, cmd
}

func (m signinModel) view() string {
	w := m.width - 4
	title := titleStyle.Render("Sign in")
	switch {
	case !m.loaded:
		return panelStyle.Width(w).Render(lipgloss.JoinVertical(lipgloss.Left, title, "", mutedStyle.Render("Loading staff...")))
	case m.form == nil:
		return panelStyle.Width(w).Render(lipgloss.JoinVertical(lipgloss.Left,
			title, "",
			mutedStyle.Render("No active staff. Add someone with: shiftops staff add -code C -name N"),
		))
	}
	return activePanelStyle.Width(w).Render(lipgloss.JoinVertical(lipgloss.Left, title, "", m.form.View()))
}
