// Package tui provides terminal user interface components for ink-ctl
package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/firefly-engineering/ink/internal/instance"
)

// Action represents the action to take after picker selection
type Action int

const (
	ActionNone Action = iota
	ActionNew
	ActionDown
	ActionQuit
)

// PickerResult holds the result of the picker
type PickerResult struct {
	Action   Action
	Instance *instance.Instance
}

// instanceItem implements list.Item for instance display
type instanceItem struct {
	inst      instance.Instance
	now       time.Time
	retention time.Duration
}

func (i instanceItem) Title() string {
	return i.inst.Name
}

func (i instanceItem) Description() string {
	statusIcon := "✓"
	port := fmt.Sprintf("port %d", i.inst.Port)
	if !i.inst.Reachable() {
		statusIcon = "○"
		port = "no port"
	}

	return fmt.Sprintf("%s %s | up %s | expires in %s",
		statusIcon,
		port,
		FormatDuration(i.inst.Age(i.now)),
		FormatDuration(i.retention-i.inst.Age(i.now)),
	)
}

func (i instanceItem) FilterValue() string {
	return i.inst.Name + " " + i.inst.Owner
}

// FormatDuration renders d rounded to minutes, e.g. "1h05m" or "12m".
// Negative durations render as "0m".
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	d = d.Round(time.Minute)
	h := d / time.Hour
	m := (d % time.Hour) / time.Minute
	if h > 0 {
		return fmt.Sprintf("%dh%02dm", h, m)
	}
	return fmt.Sprintf("%dm", m)
}

// Styles
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39")).
			MarginBottom(1)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			MarginTop(1)

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")).
			Bold(true)

	tableHeaderStyle = lipgloss.NewStyle().Bold(true)
)

// Model is the bubbletea model for the instance picker
type Model struct {
	list     list.Model
	result   PickerResult
	quitting bool
	width    int
	height   int
}

// NewPicker creates a new instance picker
func NewPicker(instances []instance.Instance, now time.Time, retention time.Duration) Model {
	items := buildGroupedItems(instances, now, retention)

	l := list.New(items, newGroupedDelegate(), 80, 20)
	l.Title = "ink - Instances"
	l.SetShowStatusBar(true)
	l.SetFilteringEnabled(true)
	l.Styles.Title = titleStyle

	m := Model{list: l}
	skipHeaders(&m.list, 1)
	return m
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.list.SetSize(msg.Width, msg.Height-4)
		return m, nil

	case tea.KeyMsg:
		// Don't handle keys if filtering
		if m.list.FilterState() == list.Filtering {
			break
		}

		switch msg.String() {
		case "n":
			m.result = PickerResult{Action: ActionNew}
			m.quitting = true
			return m, tea.Quit

		case "d":
			if item, ok := m.list.SelectedItem().(instanceItem); ok {
				inst := item.inst
				m.result = PickerResult{
					Action:   ActionDown,
					Instance: &inst,
				}
				m.quitting = true
				return m, tea.Quit
			}

		case "q", "esc":
			m.result = PickerResult{Action: ActionQuit}
			m.quitting = true
			return m, tea.Quit
		}

		var cmd tea.Cmd
		m.list, cmd = m.list.Update(msg)
		skipHeaders(&m.list, navigationDirection(msg))
		return m, cmd
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	help := helpStyle.Render("[n] New  [d] Down  [/] Filter  [q] Quit")

	return m.list.View() + "\n" + help
}

// Result returns the picker result
func (m Model) Result() PickerResult {
	return m.result
}

// RunPicker runs the interactive instance picker
func RunPicker(instances []instance.Instance, retention time.Duration) (PickerResult, error) {
	if len(instances) == 0 {
		return PickerResult{Action: ActionNew}, nil
	}

	m := NewPicker(instances, time.Now(), retention)
	p := tea.NewProgram(m, tea.WithAltScreen())

	finalModel, err := p.Run()
	if err != nil {
		return PickerResult{}, err
	}

	return finalModel.(Model).Result(), nil
}

// Table renders instances as a plain table for non-interactive output
func Table(instances []instance.Instance, now time.Time, retention time.Duration) string {
	var sb strings.Builder

	if len(instances) == 0 {
		sb.WriteString("No instances running.\n")
		sb.WriteString("Create one with: ink-ctl up --owner <id>\n")
		return sb.String()
	}

	sb.WriteString(tableHeaderStyle.Render(fmt.Sprintf("%-28s %-20s %-7s %-8s %s",
		"NAME", "OWNER", "PORT", "AGE", "EXPIRES IN")))
	sb.WriteString("\n")

	for _, inst := range instances {
		port := "-"
		if inst.Reachable() {
			port = fmt.Sprintf("%d", inst.Port)
		}
		sb.WriteString(fmt.Sprintf("%-28s %-20s %-7s %-8s %s\n",
			inst.Name,
			inst.Owner,
			port,
			FormatDuration(inst.Age(now)),
			FormatDuration(retention-inst.Age(now)),
		))
	}

	return sb.String()
}
