// Package runner launches executables as child processes and captures
// their output, with workspace bounds and optional timeouts and output
// size limits.
package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// waitDelay bounds how long Wait keeps reading output after a timed-out
// process has been killed, in case a grandchild still holds the pipe.
const waitDelay = 2 * time.Second

// Runner executes commands within a workspace boundary.
type Runner struct {
	Workspace string
	Timeout   time.Duration // 0 waits for the process indefinitely
	MaxOutput int           // bytes per stream; 0 is unbounded
}

// Run executes a command with the given argv. The first element is the
// executable: a bare name is resolved via PATH, a relative path with a
// separator (e.g. ./bin/greet) is resolved against the workspace.
// cwd is resolved relative to the workspace root and must remain within it.
//
// Run returns only once the process has exited and its stdout has
// reached EOF, so every chunk the process (or any child that inherited
// its stdout) wrote is in Result.Stdout. A process that cannot be
// started yields a *LaunchError.
func (r *Runner) Run(ctx context.Context, argv []string, cwd string) (*Result, error) {
	if len(argv) == 0 {
		return nil, fmt.Errorf("empty argv")
	}

	dir, err := r.resolveDir(cwd)
	if err != nil {
		return nil, err
	}

	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	path := r.resolveExecutable(argv[0])
	cmd := exec.CommandContext(ctx, path, argv[1:]...)
	cmd.Dir = dir
	if r.Timeout > 0 {
		cmd.WaitDelay = waitDelay
	}

	stdout := &capture{limit: r.MaxOutput}
	stderr := &capture{limit: r.MaxOutput}
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return nil, &LaunchError{Path: path, Err: err}
	}

	// Wait returns after the exit notification and after the stdout
	// copier has drained the pipe to EOF.
	waitErr := cmd.Wait()
	if waitErr != nil {
		var exitErr *exec.ExitError
		switch {
		case ctx.Err() != nil:
			return nil, fmt.Errorf("running %s: %w", path, ctx.Err())
		case errors.As(waitErr, &exitErr), errors.Is(waitErr, exec.ErrWaitDelay):
		default:
			return nil, fmt.Errorf("waiting for %s: %w", path, waitErr)
		}
	}

	return &Result{
		RunID:     uuid.New().String(),
		ExitCode:  cmd.ProcessState.ExitCode(),
		Stdout:    stdout.buf.Bytes(),
		Stderr:    stderr.buf.Bytes(),
		Chunks:    stdout.chunks,
		Truncated: stdout.truncated || stderr.truncated,
		Duration:  time.Since(start),
	}, nil
}

// resolveExecutable joins relative paths that name a file (rather than a
// PATH lookup) onto the workspace.
func (r *Runner) resolveExecutable(name string) string {
	if r.Workspace == "" || filepath.IsAbs(name) || !strings.ContainsRune(name, filepath.Separator) {
		return name
	}
	return filepath.Join(r.Workspace, name)
}

// resolveDir resolves cwd relative to the workspace and validates it
// is within the workspace boundary.
func (r *Runner) resolveDir(cwd string) (string, error) {
	if cwd == "" || r.Workspace == "" {
		return cwd, nil
	}

	var dir string
	if filepath.IsAbs(cwd) {
		dir = filepath.Clean(cwd)
	} else {
		dir = filepath.Clean(filepath.Join(r.Workspace, cwd))
	}

	rel, err := filepath.Rel(r.Workspace, dir)
	if err != nil {
		return "", fmt.Errorf("resolving cwd: %w", err)
	}
	if strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("cwd %q is outside workspace %q", cwd, r.Workspace)
	}
	return dir, nil
}

// capture accumulates the chunks written to one output stream, in the
// order they arrive. Bytes past limit are counted as consumed but dropped.
// os/exec copies each stream from a single goroutine, so no locking is needed.
type capture struct {
	buf       bytes.Buffer
	limit     int
	chunks    int
	truncated bool
}

func (c *capture) Write(p []byte) (int, error) {
	c.chunks++
	if c.limit <= 0 {
		return c.buf.Write(p)
	}
	remaining := c.limit - c.buf.Len()
	if remaining <= 0 {
		c.truncated = c.truncated || len(p) > 0
		return len(p), nil
	}
	if len(p) > remaining {
		// Report all bytes as consumed to avoid short write errors from io.Copy.
		c.buf.Write(p[:remaining])
		c.truncated = true
		return len(p), nil
	}
	return c.buf.Write(p)
}
