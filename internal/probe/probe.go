// Package probe asserts that an executable, run with no arguments,
// writes an expected substring to its standard output.
package probe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/deixis/outprobe/internal/runner"
)

// DefaultExpect is the substring checked for when none is given.
const DefaultExpect = "sees all"

// CommandRunner executes commands within a workspace.
// Implemented by runner.Runner.
type CommandRunner interface {
	Run(ctx context.Context, argv []string, cwd string) (*runner.Result, error)
}

// ExecutionResult is what a single probe observed. Its JSON form is the
// diagnostic embedded in AssertionError.
type ExecutionResult struct {
	Stdout   string `json:"stdout"`
	ExitCode int    `json:"exitCode"`
}

// String renders r as compact JSON without HTML escaping, e.g.
// {"stdout":"hello\n","exitCode":1}.
func (r ExecutionResult) String() string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(r); err != nil {
		return fmt.Sprintf("{stdout:%q exitCode:%d}", r.Stdout, r.ExitCode)
	}
	return strings.TrimSuffix(buf.String(), "\n")
}

// AssertionError reports that the process ran but its stdout did not
// contain the expected substring. It carries the captured output and
// exit code. Truncated is set when the output hit the runner's size cap,
// in which case the substring may have been cut off.
type AssertionError struct {
	Want      string
	Result    ExecutionResult
	Truncated bool
}

func (e *AssertionError) Error() string {
	msg := fmt.Sprintf("expected stdout to contain %q, saw %s", e.Want, e.Result)
	if e.Truncated {
		msg += " (output truncated)"
	}
	return msg
}

// Assert runs path with no arguments and no stdin, waits until the
// process has exited and its stdout has been fully drained, and checks
// the collected stdout for want. The exit code is recorded but does not
// affect the outcome.
//
// A process that cannot be started yields a *runner.LaunchError; output
// lacking want yields an *AssertionError. In both the assertion and the
// success case the ExecutionResult is returned.
func Assert(ctx context.Context, r CommandRunner, path, want string) (*ExecutionResult, error) {
	if want == "" {
		want = DefaultExpect
	}

	// "." is the runner's workspace, or the caller's directory when the
	// runner has none.
	res, err := r.Run(ctx, []string{path}, ".")
	if err != nil {
		return nil, err
	}

	out := &ExecutionResult{Stdout: string(res.Stdout), ExitCode: res.ExitCode}
	if !strings.Contains(out.Stdout, want) {
		return out, &AssertionError{Want: want, Result: *out, Truncated: res.Truncated}
	}
	return out, nil
}
