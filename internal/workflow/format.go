package workflow

import (
	"fmt"
	"strings"

	"github.com/deixis/outprobe/internal/report"
)

// FormatRun renders a run for terminal output. With verbose set, the
// captured stdout of every non-passing case is included.
func FormatRun(rr *report.RunResult, verbose bool) string {
	var b []byte
	w := func(format string, args ...any) {
		b = fmt.Appendf(b, format, args...)
	}

	if rr.Passed() {
		w("ok\n")
	} else {
		w("FAIL\n")
	}
	w("run %s\n\n", rr.ID)

	for _, c := range rr.Cases {
		switch c.Status {
		case report.StatusPass:
			w("  %-20s ok\n", c.Name)
		case report.StatusFail:
			w("  %-20s FAIL (exit %d)\n", c.Name, c.ExitCode)
		case report.StatusError:
			w("  %-20s error\n", c.Name)
		case report.StatusSkipped:
			w("  %-20s -\n", c.Name)
		}
	}

	failures := FailureLines(rr)
	if len(failures) > 0 {
		w("\n")
		for _, f := range failures {
			w("  %s\n", f)
		}
	}

	if verbose {
		for _, c := range report.Failures(rr) {
			if c.Stdout == "" {
				continue
			}
			w("\n%s stdout:\n", c.Name)
			for _, line := range strings.Split(strings.TrimRight(c.Stdout, "\n"), "\n") {
				w("    %s\n", line)
			}
		}
	}

	return string(b)
}

// FailureLines returns one line per failed or errored case, naming the
// case and the reason.
func FailureLines(rr *report.RunResult) []string {
	var out []string
	for _, c := range report.Failures(rr) {
		msg := c.Message
		if msg == "" {
			msg = c.Status
		}
		out = append(out, fmt.Sprintf("%s — %s", c.Name, msg))
	}
	return out
}

// FormatCase renders one case of a run with its full captured output.
func FormatCase(rr *report.RunResult, c report.CaseResult) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Run: %s (%s)\n", rr.ID, rr.Kind)
	fmt.Fprintf(&b, "%s: %s\n", c.Name, strings.ToUpper(c.Status))
	fmt.Fprintln(&b)
	fmt.Fprintf(&b, "Path: %s\n", c.Path)
	fmt.Fprintf(&b, "Expect: %q\n", c.Expect)
	if c.Status != report.StatusError && c.Status != report.StatusSkipped {
		fmt.Fprintf(&b, "Exit code: %d\n", c.ExitCode)
		fmt.Fprintf(&b, "Stdout chunks: %d\n", c.Chunks)
	}
	if c.Truncated {
		fmt.Fprintln(&b, "Output was truncated.")
	}
	if c.Message != "" {
		fmt.Fprintf(&b, "Message: %s\n", c.Message)
	}

	if c.Stdout != "" {
		fmt.Fprintln(&b)
		fmt.Fprintln(&b, "Stdout:")
		for _, line := range strings.Split(strings.TrimRight(c.Stdout, "\n"), "\n") {
			fmt.Fprintf(&b, "    %s\n", line)
		}
	}

	return b.String()
}
