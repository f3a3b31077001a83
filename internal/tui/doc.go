// Package tui provides terminal user interface components for ink-ctl.
//
// # Instance Picker
//
// The picker lists running instances grouped by owner:
//
//	result, err := tui.RunPicker(instances, cfg.Instances.Retention)
//	switch result.Action {
//	case tui.ActionNew:
//	    // Create an instance
//	case tui.ActionDown:
//	    // Remove result.Instance
//	case tui.ActionQuit:
//	    // Exit
//	}
//
// Keys: j/k or arrows to move (owner headers are skipped), n (new),
// d (down), / (filter), q (quit).
//
// Table renders the same data for non-interactive output.
//
// # Dependencies
//
// Uses the Charm libraries:
//   - github.com/charmbracelet/bubbletea - TUI framework
//   - github.com/charmbracelet/bubbles - UI components
//   - github.com/charmbracelet/lipgloss - Styling
package tui
