package vnitest

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/newtron-network/vnicheck/pkg/cli"
)

// ProgressReporter receives lifecycle callbacks during a run.
type ProgressReporter interface {
	SetupStart(testbed string, devices int)
	SetupStepEnd(result *StepResult)
	CheckStart(total int)
	StepEnd(result *StepResult, index, total int)
	RunEnd(result *Result)
}

// ConsoleProgress is an append-only terminal progress reporter.
// It never uses ANSI cursor rewriting, so output is safe for pipes, CI,
// and scrollback buffers.
type ConsoleProgress struct {
	W       io.Writer
	Verbose bool

	dotWidth int
}

// NewConsoleProgress creates a ConsoleProgress writing to stdout.
func NewConsoleProgress(verbose bool) *ConsoleProgress {
	return &ConsoleProgress{
		W:        os.Stdout,
		Verbose:  verbose,
		dotWidth: 56,
	}
}

func (p *ConsoleProgress) SetupStart(testbed string, devices int) {
	fmt.Fprintf(p.W, "\nvnicheck: testbed %s, %d devices\n\n", testbed, devices)
}

func (p *ConsoleProgress) SetupStepEnd(result *StepResult) {
	fmt.Fprintf(p.W, "  %s %s  (%s)\n", cli.DotPad(result.Name, p.dotWidth+8), p.colorStatus(result.Status), formatDuration(result.Duration))
	if result.Status != StepStatusPassed && result.Message != "" {
		fmt.Fprintf(p.W, "          %s\n", cli.Dim(result.Message))
	}
}

func (p *ConsoleProgress) CheckStart(total int) {
	fmt.Fprintf(p.W, "\nChecking %d VNIs\n\n", total)
}

func (p *ConsoleProgress) StepEnd(result *StepResult, index, total int) {
	tag := fmt.Sprintf("[%d/%d]", index+1, total)
	fmt.Fprintf(p.W, "  %-7s %s %s\n", tag, cli.DotPad(result.Name, p.dotWidth), p.colorStatus(result.Status))

	if result.Status == StepStatusPassed && !p.Verbose {
		return
	}
	for _, d := range result.Details {
		if d.Status == StepStatusPassed && !p.Verbose {
			continue
		}
		fmt.Fprintf(p.W, "          %s %s: %s\n", p.colorStatus(d.Status), d.IP, cli.Dim(d.Message))
	}
	if result.Message != "" && len(result.Details) == 0 {
		fmt.Fprintf(p.W, "          %s\n", cli.Dim(result.Message))
	}
}

func (p *ConsoleProgress) RunEnd(result *Result) {
	fmt.Fprintf(p.W, "\n---\n")
	if result.SetupError != nil {
		fmt.Fprintf(p.W, "vnicheck: %s  %s\n", cli.Red("ERROR"), result.SetupError)
		return
	}

	s := result.Summary
	verdict := cli.Green("PASS")
	if result.Status != StepStatusPassed {
		verdict = cli.Red(string(result.Status))
	}
	fmt.Fprintf(p.W, "vnicheck: %s  %d/%d IP checks passed", verdict, s.Passed, s.Total)
	if s.Failed() > 0 {
		fmt.Fprintf(p.W, ", %s", cli.Red(fmt.Sprintf("%d failed", s.Failed())))
	}
	fmt.Fprintf(p.W, "  (%s)\n", formatDuration(result.Duration))
}

func (p *ConsoleProgress) colorStatus(s StepStatus) string {
	switch s {
	case StepStatusPassed:
		return cli.Green(string(s))
	case StepStatusSkipped:
		return cli.Yellow(string(s))
	default:
		return cli.Red(string(s))
	}
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return d.Round(100 * time.Millisecond).String()
}
