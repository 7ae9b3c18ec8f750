package output

import (
	"bytes"
	"fmt"
	"text/tabwriter"
)

// PlainFormatter formats output as unstyled text suitable for scripting.
type PlainFormatter struct{}

// Format writes every file line followed by the summary.
func (f *PlainFormatter) Format(w *bytes.Buffer, r *Result) error {
	for _, line := range r.Files {
		f.Line(w, line)
	}
	return f.Summary(w, r)
}

// Line writes the message for one outcome.
func (f *PlainFormatter) Line(w *bytes.Buffer, line FileLine) {
	w.WriteString(Message(line))
	w.WriteString("\n")
}

// Summary writes the outcome counts as an aligned table.
func (f *PlainFormatter) Summary(w *bytes.Buffer, r *Result) error {
	tw := tabwriter.NewWriter(w, 0, 0, 1, ' ', 0)

	if _, err := fmt.Fprintf(tw, "candidates\t%d\n", r.Stats.Candidates); err != nil {
		return err
	}
	for _, c := range summaryCounts(r) {
		if _, err := fmt.Fprintf(tw, "%s\t%d\n", c.label, c.n); err != nil {
			return err
		}
	}
	for _, warning := range r.Warnings {
		if _, err := fmt.Fprintf(tw, "warning\t%s\n", warning); err != nil {
			return err
		}
	}

	return tw.Flush()
}

func init() {
	Register("plain", func() Formatter {
		return &PlainFormatter{}
	})
}

var _ LiveFormatter = (*PlainFormatter)(nil)
