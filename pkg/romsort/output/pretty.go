package output

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/jamesainslie/romsort/pkg/romsort/placement"
)

// PrettyFormatter formats output with colors and styling using lipgloss.
type PrettyFormatter struct{}

// Format writes the header, every file line and the summary.
func (f *PrettyFormatter) Format(w *bytes.Buffer, r *Result) error {
	w.WriteString(f.Header(r))
	w.WriteString("\n")

	if len(r.Files) == 0 {
		w.WriteString(MutedStyle.Render("  Nothing to report"))
		w.WriteString("\n")
	}
	for _, line := range r.Files {
		f.Line(w, line)
	}

	return f.Summary(w, r)
}

// Header renders the box describing the run.
func (f *PrettyFormatter) Header(r *Result) string {
	var lines []string

	lines = append(lines, fmt.Sprintf("%s %s", LabelStyle.Render("Root:"), ValueStyle.Render(r.Root)))

	catalog := r.DAT
	if r.Catalog != "" {
		catalog = fmt.Sprintf("%s (%s)", r.Catalog, r.DAT)
	}
	lines = append(lines, fmt.Sprintf("%s %s", LabelStyle.Render("Catalog:"), ValueStyle.Render(catalog)))

	var modes []string
	if r.Twilight {
		modes = append(modes, SuccessStyle.Render("twilight batches"))
	} else {
		modes = append(modes, MutedStyle.Render("region folders"))
	}
	if r.DryRun {
		modes = append(modes, WarningStyle.Bold(true).Render("dry run"))
	}
	lines = append(lines, fmt.Sprintf("%s %s", LabelStyle.Render("Mode:"), strings.Join(modes, "  ")))

	return HeaderBox.Render(strings.Join(lines, "\n"))
}

// Line writes one styled outcome line.
func (f *PrettyFormatter) Line(w *bytes.Buffer, line FileLine) {
	tag := kindStyle(line.Kind).Render(padRight(line.Kind.String(), 13))

	var body string
	switch line.Kind {
	case placement.Moved:
		body = PathStyle.Render(line.Path) + MutedStyle.Render(" -> ") + PathStyle.Render(line.Dest)
	case placement.MoveFailed, placement.ReadFailed:
		body = PathStyle.Render(line.Path) + ErrorStyle.Render(": "+line.Error)
	default:
		body = PathStyle.Render(line.Path)
	}

	fmt.Fprintf(w, "  %s %s\n", tag, body)
}

// Summary writes the closing box with outcome counts.
func (f *PrettyFormatter) Summary(w *bytes.Buffer, r *Result) error {
	var parts []string
	for _, c := range summaryCounts(r) {
		parts = append(parts, fmt.Sprintf("%s %s", kindStyle(c.kind).Render(humanize.Comma(int64(c.n))), LabelStyle.Render(c.label)))
	}
	if len(parts) == 0 {
		parts = append(parts, MutedStyle.Render("no ROM files found"))
	}

	lines := []string{strings.Join(parts, "  ")}

	detail := fmt.Sprintf("%s candidates, %s moved in %s",
		humanize.Comma(int64(r.Stats.Candidates)),
		humanize.IBytes(uint64(r.MovedBytes())),
		formatDuration(r.Elapsed))
	if r.HistoryID != "" {
		detail += "  history: " + r.HistoryID
	}
	lines = append(lines, MutedStyle.Render(detail))

	for _, warning := range r.Warnings {
		lines = append(lines, WarningStyle.Render(warning))
	}
	if r.Interrupted {
		lines = append(lines, WarningStyle.Bold(true).Render("Run interrupted"))
	}

	box := SuccessBox
	title := SuccessStyle.Bold(true).Render("Process completed successfully")
	if r.Stats.Failed() > 0 || r.Interrupted {
		box = FailureBox
		title = ErrorStyle.Bold(true).Render("Process completed with failures")
	}

	w.WriteString(box.Render(title + "\n" + strings.Join(lines, "\n")))
	w.WriteString("\n")
	return nil
}

// padRight pads s with spaces on the right to width.
func padRight(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}

func init() {
	Register("pretty", func() Formatter {
		return &PrettyFormatter{}
	})
}

var _ LiveFormatter = (*PrettyFormatter)(nil)
