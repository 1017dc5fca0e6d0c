package ui

import (
	"fmt"
	"io"
	"time"
)

// Display handles human-facing terminal output for pipeline stages. It is
// separate from the zerolog diagnostics on stderr: Display is what an
// operator watches, the log is what an operator greps.
type Display struct {
	out io.Writer
}

// NewDisplay creates a display writing to out.
func NewDisplay(out io.Writer) *Display {
	return &Display{out: out}
}

// ShowHeader prints a command header box.
func (d *Display) ShowHeader(command, subject, tool string) {
	header := fmt.Sprintf("%s  %s", StyleTitle.Render(command), StyleMuted.Render(subject))
	if tool != "" {
		header += StyleMuted.Render(fmt.Sprintf("  [%s]", tool))
	}
	fmt.Fprintln(d.out, boxStyle(ColorInfo).Render(header))
}

// ShowInfo prints an informational line.
func (d *Display) ShowInfo(format string, args ...any) {
	fmt.Fprintf(d.out, format, args...)
}

// ShowStep prints a pipeline step marker.
func (d *Display) ShowStep(name string) {
	fmt.Fprintf(d.out, "%s %s\n", StyleInfo.Render("▸"), name)
}

// ShowSuccess prints a success line.
func (d *Display) ShowSuccess(msg string) {
	fmt.Fprintf(d.out, "%s %s\n", StyleSuccess.Render("✓"), msg)
}

// ShowWarning prints a warning line.
func (d *Display) ShowWarning(msg string) {
	fmt.Fprintf(d.out, "%s %s\n", StyleWarning.Render("⚠"), msg)
}

// ShowError prints an error line.
func (d *Display) ShowError(msg string) {
	fmt.Fprintf(d.out, "%s %s\n", StyleError.Render("✗"), msg)
}

// ShowIteration prints an iteration header for the execution loop.
func (d *Display) ShowIteration(current, max int) {
	fmt.Fprintf(d.out, "\n%s\n", StyleTitle.Render(fmt.Sprintf("── iteration %d/%d ──", current, max)))
}

// ShowIterationDone prints the footer of a finished iteration.
func (d *Display) ShowIterationDone(current int, dur time.Duration) {
	fmt.Fprintf(d.out, "%s\n", StyleMuted.Render(fmt.Sprintf("   iteration %d finished (%s)", current, dur.Round(time.Second))))
}
