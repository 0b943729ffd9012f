// Package printer formats CLI output: colored human text by default, or
// indented JSON when the --json flag is set.
package printer

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"

	"github.com/mesh-intelligence/nitrate/pkg/types"
)

var (
	green  = color.New(color.FgGreen)
	yellow = color.New(color.FgYellow)
	red    = color.New(color.FgRed, color.Bold)
	cyan   = color.New(color.FgCyan)
	faint  = color.New(color.Faint)
)

// Printer writes command output.
type Printer struct {
	Out  io.Writer
	Err  io.Writer
	JSON bool
}

// New returns a Printer writing to out and errOut.
func New(out, errOut io.Writer, jsonMode bool) *Printer {
	return &Printer{Out: out, Err: errOut, JSON: jsonMode}
}

// Success prints a confirmation in green. It prints nothing in JSON mode.
func (p *Printer) Success(format string, a ...any) {
	if p.JSON {
		return
	}
	green.Fprintf(p.Out, "✓ %s\n", fmt.Sprintf(format, a...))
}

// Warning prints a warning in yellow to the error stream.
func (p *Printer) Warning(format string, a ...any) {
	yellow.Fprintf(p.Err, "warning: %s\n", fmt.Sprintf(format, a...))
}

// Step prints progress for multi-step commands such as import or restore.
func (p *Printer) Step(format string, a ...any) {
	if p.JSON {
		return
	}
	cyan.Fprintf(p.Out, "→ %s\n", fmt.Sprintf(format, a...))
}

// Error prints err with a red title and optional hints to the error
// stream.
func (p *Printer) Error(title string, err error, hints ...string) {
	red.Fprintf(p.Err, "%s\n", title)
	if err != nil {
		fmt.Fprintf(p.Err, "  %s\n", err)
	}
	for _, h := range hints {
		faint.Fprintf(p.Err, "  hint: %s\n", h)
	}
}

// Value prints v as JSON in JSON mode, otherwise calls human.
func (p *Printer) Value(v any, human func()) error {
	if p.JSON {
		enc := json.NewEncoder(p.Out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	human()
	return nil
}

// Table prints rows under a header, aligned in columns. In JSON mode v is
// printed instead.
func (p *Printer) Table(v any, header []string, rows [][]string) error {
	return p.Value(v, func() {
		if len(rows) == 0 {
			faint.Fprintln(p.Out, "(none)")
			return
		}
		tw := tabwriter.NewWriter(p.Out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, strings.Join(header, "\t"))
		for _, row := range rows {
			fmt.Fprintln(tw, strings.Join(row, "\t"))
		}
		tw.Flush()
	})
}

// Fields prints "key: value" pairs in order. In JSON mode v is printed
// instead.
func (p *Printer) Fields(v any, pairs ...string) error {
	return p.Value(v, func() {
		tw := tabwriter.NewWriter(p.Out, 0, 4, 1, ' ', 0)
		for i := 0; i+1 < len(pairs); i += 2 {
			fmt.Fprintf(tw, "%s:\t%s\n", pairs[i], pairs[i+1])
		}
		tw.Flush()
	})
}

// Status colors a case-run or case status for terminal output.
func Status(s string) string {
	switch s {
	case types.CaseRunPassed, types.CaseStatusConfirmed:
		return green.Sprint(s)
	case types.CaseRunFailed, types.CaseRunError:
		return red.Sprint(s)
	case types.CaseRunBlocked, types.CaseRunWaived, types.CaseStatusNeedUpdate:
		return yellow.Sprint(s)
	case types.CaseRunRunning, types.CaseRunPaused:
		return cyan.Sprint(s)
	default:
		return s
	}
}
