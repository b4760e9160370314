// Package outprobe runs command-line executables and asserts that what
// they print to standard output contains an expected substring.
//
// A probe launches the executable with no arguments and no stdin,
// collects every stdout chunk until the stream reaches EOF and the
// process has exited, and only then checks the collected text. The exit
// code is captured for diagnostics but does not decide the outcome.
package outprobe

import (
	"context"
	"time"

	"github.com/deixis/outprobe/internal/probe"
	"github.com/deixis/outprobe/internal/runner"
)

// Version is the outprobe release.
const Version = "v0.3.0"

// DefaultExpect is the substring checked for when Expect is called
// with an empty want.
const DefaultExpect = probe.DefaultExpect

type (
	// ExecutionResult holds the collected stdout and exit code of one run.
	ExecutionResult = probe.ExecutionResult
	// AssertionError reports output that lacked the expected substring.
	AssertionError = probe.AssertionError
	// LaunchError reports an executable that could not be started.
	LaunchError = runner.LaunchError
)

// Option configures Expect.
type Option func(*runner.Runner)

// WithDir resolves relative executable paths (those containing a path
// separator) against dir and runs the process there. Without it the
// process runs in the caller's working directory.
func WithDir(dir string) Option {
	return func(r *runner.Runner) { r.Workspace = dir }
}

// WithTimeout kills the process if it has not finished after d.
// By default Expect waits indefinitely.
func WithTimeout(d time.Duration) Option {
	return func(r *runner.Runner) { r.Timeout = d }
}

// WithMaxOutput caps the captured output of each stream at n bytes.
func WithMaxOutput(n int) Option {
	return func(r *runner.Runner) { r.MaxOutput = n }
}

// Expect runs path and returns an error unless its stdout contains want.
// The error is a *LaunchError when the process could not be started and
// an *AssertionError when the output did not match.
func Expect(ctx context.Context, path, want string, opts ...Option) (*ExecutionResult, error) {
	r := &runner.Runner{}
	for _, o := range opts {
		o(r)
	}
	return probe.Assert(ctx, r, path, want)
}
