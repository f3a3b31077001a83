package tui

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/firefly-engineering/ink/internal/instance"
)

var now = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func testInstances() []instance.Instance {
	return []instance.Instance{
		{Name: "brave-otter", Owner: "42", CreatedAt: now.Add(-65 * time.Minute), Port: 40000},
		{Name: "calm-heron", Owner: "7", CreatedAt: now.Add(-10 * time.Minute), Port: 40001},
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{0, "0m"},
		{-5 * time.Minute, "0m"},
		{12 * time.Minute, "12m"},
		{65 * time.Minute, "1h05m"},
		{2 * time.Hour, "2h00m"},
		{89 * time.Second, "1m"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := FormatDuration(tt.d); got != tt.want {
				t.Errorf("FormatDuration(%v) = %q, want %q", tt.d, got, tt.want)
			}
		})
	}
}

func TestInstanceItemMethods(t *testing.T) {
	item := instanceItem{inst: testInstances()[0], now: now, retention: 2 * time.Hour}

	t.Run("Title", func(t *testing.T) {
		if got := item.Title(); got != "brave-otter" {
			t.Errorf("Title() = %q, want %q", got, "brave-otter")
		}
	})

	t.Run("FilterValue", func(t *testing.T) {
		if got := item.FilterValue(); !strings.Contains(got, "brave-otter") || !strings.Contains(got, "42") {
			t.Errorf("FilterValue() = %q, want name and owner", got)
		}
	})

	t.Run("Description", func(t *testing.T) {
		desc := item.Description()
		for _, want := range []string{"✓", "port 40000", "up 1h05m", "expires in 55m"} {
			if !strings.Contains(desc, want) {
				t.Errorf("Description() = %q, want it to contain %q", desc, want)
			}
		}
	})

	t.Run("Description without port", func(t *testing.T) {
		item := instanceItem{inst: instance.Instance{Name: "x", CreatedAt: now}, now: now, retention: time.Hour}
		desc := item.Description()
		if !strings.Contains(desc, "○") || !strings.Contains(desc, "no port") {
			t.Errorf("Description() = %q", desc)
		}
	})
}

func TestModelKeyHandling(t *testing.T) {
	instances := testInstances()

	t.Run("quit with q", func(t *testing.T) {
		m := NewPicker(instances, now, 2*time.Hour)
		newModel, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
		model := newModel.(Model)

		if model.result.Action != ActionQuit {
			t.Errorf("Action = %v, want ActionQuit", model.result.Action)
		}
		if !model.quitting {
			t.Error("Model should be quitting")
		}
		if cmd == nil {
			t.Error("Should return tea.Quit command")
		}
	})

	t.Run("quit with esc", func(t *testing.T) {
		m := NewPicker(instances, now, 2*time.Hour)
		newModel, _ := m.Update(tea.KeyMsg{Type: tea.KeyEsc})
		model := newModel.(Model)

		if model.result.Action != ActionQuit {
			t.Errorf("Action = %v, want ActionQuit", model.result.Action)
		}
	})

	t.Run("new instance with n", func(t *testing.T) {
		m := NewPicker(instances, now, 2*time.Hour)
		newModel, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'n'}})
		model := newModel.(Model)

		if model.result.Action != ActionNew {
			t.Errorf("Action = %v, want ActionNew", model.result.Action)
		}
	})

	t.Run("down with d selects first instance, not header", func(t *testing.T) {
		m := NewPicker(instances, now, 2*time.Hour)
		newModel, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'d'}})
		model := newModel.(Model)

		if model.result.Action != ActionDown {
			t.Fatalf("Action = %v, want ActionDown", model.result.Action)
		}
		// Owners sort as "42" < "7", so brave-otter's group comes first.
		if model.result.Instance == nil || model.result.Instance.Name != "brave-otter" {
			t.Errorf("Instance = %+v, want brave-otter", model.result.Instance)
		}
	})

	t.Run("window size update", func(t *testing.T) {
		m := NewPicker(instances, now, 2*time.Hour)
		newModel, cmd := m.Update(tea.WindowSizeMsg{Width: 100, Height: 50})
		model := newModel.(Model)

		if model.width != 100 {
			t.Errorf("Width = %d, want 100", model.width)
		}
		if model.height != 50 {
			t.Errorf("Height = %d, want 50", model.height)
		}
		if cmd != nil {
			t.Error("Window size update should not return a command")
		}
	})
}

func TestModelInit(t *testing.T) {
	m := Model{}
	if cmd := m.Init(); cmd != nil {
		t.Error("Init() should return nil")
	}
}

func TestModelView(t *testing.T) {
	t.Run("normal view contains help", func(t *testing.T) {
		m := NewPicker(testInstances(), now, 2*time.Hour)
		view := m.View()

		for _, want := range []string{"[n] New", "[d] Down", "[q] Quit"} {
			if !strings.Contains(view, want) {
				t.Errorf("View should contain %q", want)
			}
		}
	})

	t.Run("quitting view is empty", func(t *testing.T) {
		m := NewPicker(testInstances(), now, 2*time.Hour)
		m.quitting = true
		if view := m.View(); view != "" {
			t.Errorf("Quitting view should be empty, got %q", view)
		}
	})
}

func TestRunPickerEmpty(t *testing.T) {
	result, err := RunPicker(nil, 2*time.Hour)
	if err != nil {
		t.Fatalf("RunPicker with no instances failed: %v", err)
	}
	if result.Action != ActionNew {
		t.Errorf("No instances should return ActionNew, got %v", result.Action)
	}
}

func TestTable(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		output := Table(nil, now, 2*time.Hour)
		if !strings.Contains(output, "No instances running") {
			t.Error("Should indicate no instances")
		}
		if !strings.Contains(output, "ink-ctl up") {
			t.Error("Should show how to create an instance")
		}
	})

	t.Run("with instances", func(t *testing.T) {
		output := Table(testInstances(), now, 2*time.Hour)
		for _, want := range []string{"NAME", "brave-otter", "calm-heron", "40000", "1h05m", "1h50m"} {
			if !strings.Contains(output, want) {
				t.Errorf("Table should contain %q:\n%s", want, output)
			}
		}
	})
}

func TestActionConstants(t *testing.T) {
	actions := []Action{ActionNone, ActionNew, ActionDown, ActionQuit}
	seen := make(map[Action]bool)

	for _, a := range actions {
		if seen[a] {
			t.Errorf("Duplicate action value: %v", a)
		}
		seen[a] = true
	}
}
