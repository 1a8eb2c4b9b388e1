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
	"github.com/google/uuid"
	"github.com/sadopc/shiftops/internal/store"
	"github.com/sadopc/shiftops/internal/tasks"
)

// catalogModel is the admin editor for locations and task definitions.
type catalogModel struct {
	env    *Deps
	staff  *store.Staff
	width  int
	height int

	locations   []store.Location
	definitions []store.TaskDefinition // of the selected location
	cursor      int
	defCursor   int
	viewingDefs bool

	formActive bool
	form       *huh.Form
	formType   string // "location", "rotate", "definition", "edit_definition"

	// Form field pointers (survive value copies)
	formName   *string
	formToken  *string
	formHour   *string
	formMinute *string

	editingID int64
}

func newCatalogModel(env *Deps) catalogModel {
	name, token, hour, minute := "", "", "", ""
	return catalogModel{
		env:        env,
		formName:   &name,
		formToken:  &token,
		formHour:   &hour,
		formMinute: &minute,
	}
}

func (c *catalogModel) setSize(w, h int) {
	c.width = w
	c.height = h
}

func (c *catalogModel) setStaff(st *store.Staff) {
	c.staff = st
	c.viewingDefs = false
	c.cursor = 0
}

func (c catalogModel) isAdmin() bool { return c.staff != nil && c.staff.IsAdmin() }

type locationsDataMsg struct {
	locations []store.Location
}

type definitionsDataMsg struct {
	definitions []store.TaskDefinition
}

func (c catalogModel) refresh() tea.Cmd {
	svc := c.env.Service
	return func() tea.Msg {
		locs, err := svc.ListLocations(context.Background())
		if err != nil {
			return errorStatus(err)
		}
		return locationsDataMsg{locations: locs}
	}
}

func (c catalogModel) refreshDefinitions() tea.Cmd {
	if c.cursor >= len(c.locations) {
		return nil
	}
	locID := c.locations[c.cursor].ID
	svc := c.env.Service
	return func() tea.Msg {
		defs, err := svc.ListDefinitions(context.Background())
		if err != nil {
			return errorStatus(err)
		}
		var out []store.TaskDefinition
		for _, d := range defs {
			if d.LocationID == locID && !d.Archived {
				out = append(out, d)
			}
		}
		return definitionsDataMsg{definitions: out}
	}
}

func (c catalogModel) update(msg tea.Msg) (catalogModel, tea.Cmd) {
	if c.formActive && c.form != nil {
		return c.updateForm(msg)
	}

	switch msg := msg.(type) {
	case locationsDataMsg:
		c.locations = msg.locations
		if c.cursor >= len(c.locations) {
			c.cursor = max(0, len(c.locations)-1)
		}
		return c, nil

	case definitionsDataMsg:
		c.definitions = msg.definitions
		if c.defCursor >= len(c.definitions) {
			c.defCursor = max(0, len(c.definitions)-1)
		}
		return c, nil

	case tea.KeyMsg:
		if !c.isAdmin() {
			return c, nil
		}
		if c.viewingDefs {
			return c.updateDefinitionList(msg)
		}
		return c.updateLocationList(msg)
	}
	return c, nil
}

func (c catalogModel) updateLocationList(msg tea.KeyMsg) (catalogModel, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Up):
		if c.cursor > 0 {
			c.cursor--
		}
	case key.Matches(msg, keys.Down):
		if c.cursor < len(c.locations)-1 {
			c.cursor++
		}
	case key.Matches(msg, keys.Enter):
		if len(c.locations) > 0 {
			c.viewingDefs = true
			c.defCursor = 0
			return c, c.refreshDefinitions()
		}
	case key.Matches(msg, keys.New):
		return c.showLocationForm()
	case key.Matches(msg, keys.Rotate):
		if len(c.locations) > 0 {
			return c.showRotateForm()
		}
	}
	return c, nil
}

func (c catalogModel) updateDefinitionList(msg tea.KeyMsg) (catalogModel, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Back):
		c.viewingDefs = false
		return c, nil
	case key.Matches(msg, keys.Up):
		if c.defCursor > 0 {
			c.defCursor--
		}
	case key.Matches(msg, keys.Down):
		if c.defCursor < len(c.definitions)-1 {
			c.defCursor++
		}
	case key.Matches(msg, keys.New):
		return c.showDefinitionForm(nil)
	case key.Matches(msg, keys.Enter):
		if len(c.definitions) > 0 {
			d := c.definitions[c.defCursor]
			return c.showDefinitionForm(&d)
		}
	case key.Matches(msg, keys.Delete):
		if len(c.definitions) > 0 {
			id := c.definitions[c.defCursor].ID
			svc := c.env.Service
			return c, func() tea.Msg {
				if err := svc.ArchiveDefinition(context.Background(), id); err != nil {
					return errorStatus(err)
				}
				return changedMsg{text: "Task archived"}
			}
		}
	}
	return c, nil
}

func (c catalogModel) showLocationForm() (catalogModel, tea.Cmd) {
	*c.formName = ""
	*c.formToken = uuid.NewString()
	c.formType = "location"
	c.form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().Title("Location name").Value(c.formName).Validate(required("name")),
			huh.NewInput().Title("QR token").Value(c.formToken).Validate(required("token")),
		),
	).WithShowHelp(true).WithShowErrors(true)
	c.formActive = true
	return c, c.form.Init()
}

func (c catalogModel) showRotateForm() (catalogModel, tea.Cmd) {
	loc := c.locations[c.cursor]
	*c.formToken = uuid.NewString()
	c.formType = "rotate"
	c.editingID = loc.ID
	c.form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().Title("New QR token for " + loc.Name).
				Description("Printed labels with the old token stop working.").
				Value(c.formToken).Validate(required("token")),
		),
	).WithShowHelp(true).WithShowErrors(true)
	c.formActive = true
	return c, c.form.Init()
}

// showDefinitionForm opens the new-task form, or the edit form when def is set.
func (c catalogModel) showDefinitionForm(def *store.TaskDefinition) (catalogModel, tea.Cmd) {
	*c.formName, *c.formHour, *c.formMinute = "", "", ""
	c.formType = "definition"
	if def != nil {
		c.formType = "edit_definition"
		c.editingID = def.ID
		*c.formName = def.Activity
		*c.formHour = optionalIntText(def.TargetHour)
		*c.formMinute = optionalIntText(def.TargetMinute)
	}
	c.form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().Title("Activity").Value(c.formName).Validate(required("activity")),
			huh.NewInput().Title("Target hour (0-23, blank for any time)").Value(c.formHour).Validate(rangeCheck(0, 23)),
			huh.NewInput().Title("Target minute (0-59)").Value(c.formMinute).Validate(rangeCheck(0, 59)),
		),
	).WithShowHelp(true).WithShowErrors(true)
	c.formActive = true
	return c, c.form.Init()
}

func (c catalogModel) updateForm(msg tea.Msg) (catalogModel, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		if msg.String() == "esc" {
			c.formActive = false
			c.form = nil
			return c, nil
		}
	}

	form, cmd := c.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		c.form = f
	}

	if c.form.State == huh.StateCompleted {
		c.formActive = false
		return c, c.save()
	}
	return c, cmd
}

// save applies the completed form through the catalog service.
func (c catalogModel) save() tea.Cmd {
	svc := c.env.Service
	formType := c.formType
	editingID := c.editingID
	name := strings.TrimSpace(*c.formName)
	token := strings.TrimSpace(*c.formToken)
	hourText, minuteText := *c.formHour, *c.formMinute
	var locationID int64
	if c.cursor < len(c.locations) {
		locationID = c.locations[c.cursor].ID
	}

	return func() tea.Msg {
		ctx := context.Background()
		switch formType {
		case "location":
			if _, err := svc.CreateLocation(ctx, tasks.LocationInput{Name: name, QRToken: token}); err != nil {
				return errorStatus(err)
			}
			return changedMsg{text: "Location created"}
		case "rotate":
			if err := svc.RotateLocationToken(ctx, editingID, token); err != nil {
				return errorStatus(err)
			}
			return changedMsg{text: "QR token replaced, print a new label"}
		}

		hour, err := parseOptionalInt(hourText)
		if err != nil {
			return errorStatus(err)
		}
		minute, err := parseOptionalInt(minuteText)
		if err != nil {
			return errorStatus(err)
		}
		in := tasks.DefinitionInput{LocationID: locationID, Activity: name, TargetHour: hour, TargetMinute: minute}
		if formType == "edit_definition" {
			if err := svc.UpdateDefinition(ctx, editingID, in); err != nil {
				return errorStatus(err)
			}
			return changedMsg{text: "Task updated"}
		}
		if _, err := svc.CreateDefinition(ctx, in); err != nil {
			return errorStatus(err)
		}
		return changedMsg{text: "Task created"}
	}
}

func required(field string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", field)
		}
		return nil
	}
}

func rangeCheck(lo, hi int) func(string) error {
	return func(s string) error {
		v, err := parseOptionalInt(s)
		if err != nil {
			return err
		}
		if v != nil && (*v < lo || *v > hi) {
			return fmt.Errorf("must be between %d and %d", lo, hi)
		}
		return nil
	}
}

// parseOptionalInt reads a blank string as nil.
func parseOptionalInt(s string) (*int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return nil, fmt.Errorf("%q is not a number", s)
	}
	return &v, nil
}

func optionalIntText(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}

func (c catalogModel) view() string {
	w := c.width - 4
	if !c.isAdmin() {
		return panelStyle.Width(w).Render(lipgloss.JoinVertical(lipgloss.Left,
			titleStyle.Render("Catalog"), "", mutedStyle.Render("Only admins can edit the catalog."),
		))
	}

	if c.formActive && c.form != nil {
		var title string
		switch c.formType {
		case "location":
			title = "New Location"
		case "rotate":
			title = "Replace QR Token"
		case "edit_definition":
			title = "Edit Task"
		default:
			title = "New Task"
		}
		return panelStyle.Width(w).Render(
			lipgloss.JoinVertical(lipgloss.Left, titleStyle.Render(title), "", c.form.View()),
		)
	}

	if c.viewingDefs {
		return c.renderDefinitions()
	}
	return c.renderLocations()
}

func (c catalogModel) renderLocations() string {
	w := c.width - 4
	title := titleStyle.Render("Locations")

	if len(c.locations) == 0 {
		return panelStyle.Width(w).Render(lipgloss.JoinVertical(lipgloss.Left,
			title, "", mutedStyle.Render("No locations yet. Press n to create one."),
		))
	}

	rows := []string{title, ""}
	rows = append(rows, mutedStyle.Render(fmt.Sprintf("  %-24s %s", "Name", "QR token")))
	for i, loc := range c.locations {
		cursor := "  "
		style := normalItemStyle
		if i == c.cursor {
			cursor = "> "
			style = selectedItemStyle
		}
		rows = append(rows, style.Render(fmt.Sprintf("%s%-24s", cursor, loc.Name))+" "+mutedStyle.Render(loc.QRToken))
	}
	rows = append(rows, "", mutedStyle.Render("  n: new  t: new token  enter: tasks"))
	return panelStyle.Width(w).Render(strings.Join(rows, "\n"))
}

func (c catalogModel) renderDefinitions() string {
	w := c.width - 4
	loc := c.locations[c.cursor]
	title := titleStyle.Render(loc.Name + " — Tasks")

	if len(c.definitions) == 0 {
		return panelStyle.Width(w).Render(lipgloss.JoinVertical(lipgloss.Left,
			title, "", mutedStyle.Render("No tasks. Press n to add one."),
		))
	}

	rows := []string{title, ""}
	for i, d := range c.definitions {
		cursor := "  "
		style := normalItemStyle
		if i == c.defCursor {
			cursor = "> "
			style = selectedItemStyle
		}
		target := targetLabel(store.TaskView{TargetHour: d.TargetHour, TargetMinute: d.TargetMinute})
		rows = append(rows, style.Render(fmt.Sprintf("%s%-6s %s", cursor, target, d.Activity)))
	}
	rows = append(rows, "", mutedStyle.Render("  n: new task  enter: edit  d: archive  esc: back"))
	return panelStyle.Width(w).Render(strings.Join(rows, "\n"))
}
