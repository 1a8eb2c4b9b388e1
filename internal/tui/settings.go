package tui

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/sadopc/shiftops/internal/store"
)

// settingSpec describes one editable row of the settings table.
type settingSpec struct {
	key      string
	title    string
	fallback string
	min      int
}

var editableSettings = []settingSpec{
	{key: "claim_ttl_minutes", title: "Interrupt claims older than (min, 0 = never)", fallback: "0", min: 0},
	{key: "photo_max_edge", title: "Photo max edge (px)", fallback: "1600", min: 64},
	{key: "history_limit", title: "Timecard history length", fallback: "10", min: 1},
}

type settingsModel struct {
	env    *Deps
	staff  *store.Staff
	width  int
	height int

	settings   []store.Setting
	formActive bool
	form       *huh.Form

	// Form values as pointers (survive value copies)
	values map[string]*string
}

func newSettingsModel(env *Deps) settingsModel {
	values := make(map[string]*string, len(editableSettings))
	for _, spec := range editableSettings {
		v := ""
		values[spec.key] = &v
	}
	return settingsModel{env: env, values: values}
}

func (s *settingsModel) setSize(w, h int) {
	s.width = w
	s.height = h
}

func (s *settingsModel) setStaff(st *store.Staff) { s.staff = st }

type settingsDataMsg struct {
	settings []store.Setting
}

func (s settingsModel) refresh() tea.Cmd {
	st := s.env.Store
	return func() tea.Msg {
		settings, err := st.GetAllSettings(context.Background())
		if err != nil {
			return errorStatus(err)
		}
		return settingsDataMsg{settings: settings}
	}
}

func (s settingsModel) update(msg tea.Msg) (settingsModel, tea.Cmd) {
	if s.formActive && s.form != nil {
		return s.updateForm(msg)
	}

	switch msg := msg.(type) {
	case settingsDataMsg:
		s.settings = msg.settings
		return s, nil

	case tea.KeyMsg:
		if s.staff == nil || !s.staff.IsAdmin() {
			return s, nil
		}
		switch {
		case key.Matches(msg, keys.Enter), key.Matches(msg, keys.New):
			return s.showForm()
		}
	}
	return s, nil
}

func (s settingsModel) showForm() (settingsModel, tea.Cmd) {
	fields := make([]huh.Field, 0, len(editableSettings))
	for _, spec := range editableSettings {
		*s.values[spec.key] = s.getVal(spec.key, spec.fallback)
		fields = append(fields, huh.NewInput().Title(spec.title).Value(s.values[spec.key]).Validate(atLeast(spec.min)))
	}
	s.form = huh.NewForm(huh.NewGroup(fields...).Title("Settings")).WithShowHelp(true).WithShowErrors(true)
	s.formActive = true
	return s, s.form.Init()
}

func atLeast(n int) func(string) error {
	return func(v string) error {
		i, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("enter a whole number")
		}
		if i < n {
			return fmt.Errorf("must be at least %d", n)
		}
		return nil
	}
}

func (s settingsModel) updateForm(msg tea.Msg) (settingsModel, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		if msg.String() == "esc" {
			s.formActive = false
			s.form = nil
			return s, nil
		}
	}

	form, cmd := s.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		s.form = f
	}

	if s.form.State == huh.StateCompleted {
		s.formActive = false
		return s, s.saveSettings()
	}
	return s, cmd
}

func (s settingsModel) saveSettings() tea.Cmd {
	pending := make(map[string]string, len(s.values))
	for k, v := range s.values {
		pending[k] = strings.TrimSpace(*v)
	}
	st := s.env.Store
	return func() tea.Msg {
		ctx := context.Background()
		for _, spec := range editableSettings {
			if err := st.SetSetting(ctx, spec.key, pending[spec.key]); err != nil {
				return errorStatus(err)
			}
		}
		return changedMsg{text: "Settings saved"}
	}
}

func (s settingsModel) getVal(k, fallback string) string {
	for _, setting := range s.settings {
		if setting.Key == k {
			return setting.Value
		}
	}
	return fallback
}

func (s settingsModel) view() string {
	w := s.width - 4
	title := titleStyle.Render("Settings")

	if s.formActive && s.form != nil {
		return panelStyle.Width(w).Render(
			lipgloss.JoinVertical(lipgloss.Left, title, "", s.form.View()),
		)
	}

	rows := []string{title, ""}
	for _, setting := range s.settings {
		label := lipgloss.NewStyle().Width(24).Render(setting.Key)
		value := highlightStyle.Render(formatSettingValue(setting.Key, setting.Value))
		rows = append(rows, fmt.Sprintf("  %s %s", label, value))
	}
	rows = append(rows, "")
	if s.staff != nil && s.staff.IsAdmin() {
		rows = append(rows, mutedStyle.Render("Press enter to edit settings"))
	} else {
		rows = append(rows, mutedStyle.Render("Only admins can change settings"))
	}
	return panelStyle.Width(w).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func formatSettingValue(k, v string) string {
	switch k {
	case "claim_ttl_minutes":
		if mins, err := strconv.Atoi(v); err == nil {
			if mins <= 0 {
				return "off"
			}
			return formatMinutes(mins)
		}
	case "photo_max_edge":
		return v + " px"
	case "history_limit":
		return v + " shifts"
	}
	return v
}
