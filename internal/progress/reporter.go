// Package progress reports long-running CLI work on the terminal.
package progress

import (
	"fmt"
	"io"
	"os"

	"github.com/schollz/progressbar/v3"
)

// Reporter provides progress feedback for imports and generations. A total
// of -1 means the amount of work is unknown and a spinner is shown.
type Reporter interface {
	Start(total int)
	Update(current int, message string)
	Finish()
}

// NewReporter returns a TerminalReporter for interactive use, or a
// CIReporter when the CI environment variable is set. Both write to stderr
// so stdout stays free for command output.
func NewReporter(task string) Reporter {
	if os.Getenv("CI") != "" || os.Getenv("GITHUB_ACTIONS") != "" {
		return &CIReporter{Task: task, Out: os.Stderr}
	}
	return &TerminalReporter{Task: task, Out: os.Stderr}
}

// TerminalReporter displays a progress bar, or a spinner for unknown totals.
type TerminalReporter struct {
	Task string
	Out  io.Writer
	bar  *progressbar.ProgressBar
}

func (r *TerminalReporter) Start(total int) {
	opts := []progressbar.Option{
		progressbar.OptionSetDescription(r.Task),
		progressbar.OptionSetWriter(r.Out),
		progressbar.OptionSetWidth(40),
		progressbar.OptionClearOnFinish(),
	}
	if total < 0 {
		opts = append(opts, progressbar.OptionSpinnerType(14), progressbar.OptionSetElapsedTime(true))
	} else {
		opts = append(opts, progressbar.OptionShowCount())
	}
	r.bar = progressbar.NewOptions(total, opts...)
}

func (r *TerminalReporter) Update(current int, message string) {
	if r.bar == nil {
		return
	}
	r.bar.Describe(message)
	if current < 0 {
		_ = r.bar.Add(1)
		return
	}
	_ = r.bar.Set(current)
}

func (r *TerminalReporter) Finish() {
	if r.bar != nil {
		_ = r.bar.Finish()
	}
}

// CIReporter prints line-by-line progress suitable for CI logs.
type CIReporter struct {
	Task  string
	Out   io.Writer
	total int
}

func (r *CIReporter) Start(total int) {
	r.total = total
	if total < 0 {
		fmt.Fprintf(r.Out, "%s...\n", r.Task)
		return
	}
	fmt.Fprintf(r.Out, "%s: %d items\n", r.Task, total)
}

func (r *CIReporter) Update(current int, message string) {
	if r.total < 0 || current < 0 {
		fmt.Fprintf(r.Out, "%s\n", message)
		return
	}
	fmt.Fprintf(r.Out, "[%d/%d] %s\n", current, r.total, message)
}

func (r *CIReporter) Finish() {
	fmt.Fprintf(r.Out, "%s: done\n", r.Task)
}
