package logging

import (
	"fmt"
	"io"
	"os"
)

// Status marks prefixed to user-facing lines.
const (
	MarkInfo    = "ℹ"
	MarkSuccess = "✓"
	MarkWarning = "⚠"
	MarkError   = "✗"
)

// Printer writes ink-ctl's user-facing messages. Progress and results go to
// Out, problems to Err, so scripted callers can keep stdout clean.
type Printer struct {
	Out io.Writer
	Err io.Writer
}

// NewPrinter returns a Printer over out and errOut, falling back to the
// process streams for nil writers.
func NewPrinter(out, errOut io.Writer) *Printer {
	if out == nil {
		out = os.Stdout
	}
	if errOut == nil {
		errOut = os.Stderr
	}
	return &Printer{Out: out, Err: errOut}
}

func (p *Printer) line(w io.Writer, mark, format string, args ...any) {
	fmt.Fprintf(w, "%s %s\n", mark, fmt.Sprintf(format, args...))
}

func (p *Printer) Info(format string, args ...any) {
	p.line(p.Out, MarkInfo, format, args...)
}

func (p *Printer) Success(format string, args ...any) {
	p.line(p.Out, MarkSuccess, format, args...)
}

func (p *Printer) Warning(format string, args ...any) {
	p.line(p.Err, MarkWarning, format, args...)
}

// Error reports a failed command.
func (p *Printer) Error(err error) {
	p.line(p.Err, MarkError, "%v", err)
}
