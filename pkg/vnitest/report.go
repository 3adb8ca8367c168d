package vnitest

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/newtron-network/vnicheck/pkg/evpn"
)

// DateTimeFormat is the timestamp layout used in reports.
const DateTimeFormat = "2006-01-02 15:04:05"

// StepStatus represents the outcome of a step or run.
type StepStatus string

const (
	StepStatusPassed  StepStatus = "PASS"
	StepStatusFailed  StepStatus = "FAIL"
	StepStatusSkipped StepStatus = "SKIP"
	StepStatusError   StepStatus = "ERROR"
)

// Result holds the outcome of one vnicheck run.
type Result struct {
	Name       string // testbed name
	Status     StepStatus
	Started    time.Time
	Duration   time.Duration
	Setup      []StepResult // connect and gather steps
	Steps      []StepResult // one per (layer, device, VNI)
	VNIs       []evpn.VNIResult
	Summary    evpn.Summary
	SetupError error
}

// ExitCode maps the result to a process status: 0 pass, 1 check failure,
// 2 setup error.
func (r *Result) ExitCode() int {
	switch {
	case r.SetupError != nil || r.Status == StepStatusError:
		return 2
	case r.Status == StepStatusFailed:
		return 1
	}
	return 0
}

// StepResult holds the result of a single step.
type StepResult struct {
	Name     string
	Layer    string
	Device   string
	VNI      string
	Status   StepStatus
	Duration time.Duration
	Message  string
	Details  []CheckResult
}

// CheckResult holds the outcome for one IP within a VNI step.
type CheckResult struct {
	IP      string
	Status  StepStatus
	Message string
}

// ReportGenerator produces reports from a run result.
type ReportGenerator struct {
	Result *Result
}

// WriteMarkdown writes a markdown report to the given path.
func (g *ReportGenerator) WriteMarkdown(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	g.writeMarkdown(f)
	return nil
}

func (g *ReportGenerator) writeMarkdown(w io.Writer) {
	r := g.Result
	fmt.Fprintf(w, "# vnicheck Report: %s (%s)\n\n", r.Name, r.Started.Format(DateTimeFormat))
	fmt.Fprintf(w, "Result: **%s**, %d/%d IP checks passed, %s\n\n",
		r.Status, r.Summary.Passed, r.Summary.Total, r.Duration.Round(time.Millisecond))

	if r.SetupError != nil {
		fmt.Fprintf(w, "Setup error: %s\n\n", r.SetupError)
	}

	if len(r.Steps) > 0 {
		fmt.Fprintln(w, "| Layer | Device | VNI | Result | Passed | Note |")
		fmt.Fprintln(w, "|-------|--------|-----|--------|--------|------|")
		for _, s := range r.Steps {
			passed := 0
			for _, d := range s.Details {
				if d.Status == StepStatusPassed {
					passed++
				}
			}
			fmt.Fprintf(w, "| %s | %s | %s | %s | %d/%d | %s |\n",
				s.Layer, s.Device, s.VNI, s.Status, passed, len(s.Details), s.Message)
		}
	}

	hasFailures := false
	for _, s := range append(append([]StepResult{}, r.Setup...), r.Steps...) {
		if s.Status != StepStatusFailed && s.Status != StepStatusError {
			continue
		}
		if !hasFailures {
			fmt.Fprintf(w, "\n## Failures\n\n")
			hasFailures = true
		}
		fmt.Fprintf(w, "### %s\n", s.Name)
		if s.Message != "" {
			fmt.Fprintf(w, "%s\n", s.Message)
		}
		for _, d := range s.Details {
			if d.Status != StepStatusPassed {
				fmt.Fprintf(w, "- %s: %s\n", d.IP, d.Message)
			}
		}
		fmt.Fprintln(w)
	}
}

// WriteJUnit writes a JUnit XML report for CI integration. Setup steps form
// one suite and VNI checks another, one testcase per VNI.
func (g *ReportGenerator) WriteJUnit(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	data, err := xml.MarshalIndent(g.junit(), "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, append([]byte(xml.Header), data...), 0o644)
}

func (g *ReportGenerator) junit() junitTestSuites {
	r := g.Result
	suites := junitTestSuites{}
	suites.Suites = append(suites.Suites,
		junitSuite(r.Name+".setup", "setup", r.Setup),
		junitSuite(r.Name+".vni", "check", r.Steps),
	)
	return suites
}

func junitSuite(name, kind string, steps []StepResult) junitTestSuite {
	suite := junitTestSuite{Name: name}
	for _, s := range steps {
		suite.Tests++
		suite.Time += s.Duration.Seconds()
		tc := junitTestCase{
			Name:      s.Name,
			ClassName: name,
			Time:      s.Duration.Seconds(),
		}

		switch s.Status {
		case StepStatusFailed:
			suite.Failures++
			tc.Failure = &junitFailure{Message: s.Message, Type: kind}
		case StepStatusSkipped:
			suite.Skipped++
			tc.Skipped = &junitSkipped{Message: s.Message}
		case StepStatusError:
			suite.Errors++
			tc.Error = &junitError{Message: s.Message, Type: kind}
		}

		suite.Cases = append(suite.Cases, tc)
	}
	return suite
}

// JUnit XML types

type junitTestSuites struct {
	XMLName xml.Name         `xml:"testsuites"`
	Suites  []junitTestSuite `xml:"testsuite"`
}

type junitTestSuite struct {
	Name     string          `xml:"name,attr"`
	Tests    int             `xml:"tests,attr"`
	Failures int             `xml:"failures,attr"`
	Errors   int             `xml:"errors,attr"`
	Skipped  int             `xml:"skipped,attr"`
	Time     float64         `xml:"time,attr"`
	Cases    []junitTestCase `xml:"testcase"`
}

type junitTestCase struct {
	Name      string        `xml:"name,attr"`
	ClassName string        `xml:"classname,attr"`
	Time      float64       `xml:"time,attr"`
	Failure   *junitFailure `xml:"failure,omitempty"`
	Skipped   *junitSkipped `xml:"skipped,omitempty"`
	Error     *junitError   `xml:"error,omitempty"`
}

type junitFailure struct {
	Message string `xml:"message,attr"`
	Type    string `xml:"type,attr"`
}

type junitSkipped struct {
	Message string `xml:"message,attr"`
}

type junitError struct {
	Message string `xml:"message,attr"`
	Type    string `xml:"type,attr"`
}
