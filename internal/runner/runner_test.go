package runner

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/deixis/outprobe/internal/testutil"
)

func newTestRunner(t *testing.T) *Runner {
	t.Helper()
	return &Runner{
		Workspace: t.TempDir(),
		Timeout:   10 * time.Second,
		MaxOutput: 1 << 20,
	}
}

func TestRun_Success(t *testing.T) {
	r := newTestRunner(t)
	res, err := r.Run(context.Background(), []string{"echo", "hello"}, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.ExitCode != 0 {
		t.Errorf("ExitCode = %d, want 0", res.ExitCode)
	}
	if string(res.Stdout) != "hello\n" {
		t.Errorf("Stdout = %q, want %q", res.Stdout, "hello\n")
	}
	if res.RunID == "" {
		t.Error("RunID is empty")
	}
	if res.Chunks == 0 {
		t.Error("Chunks = 0, want at least one stdout write")
	}
}

func TestRun_NonZeroExit(t *testing.T) {
	r := newTestRunner(t)
	testutil.Script(t, r.Workspace, "bin/greet-broken", `printf 'hello\n'; exit 1`)

	res, err := r.Run(context.Background(), []string{"./bin/greet-broken"}, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.ExitCode != 1 {
		t.Errorf("ExitCode = %d, want 1", res.ExitCode)
	}
	if string(res.Stdout) != "hello\n" {
		t.Errorf("Stdout = %q, want %q", res.Stdout, "hello\n")
	}
}

func TestRun_RelativePathResolvesAgainstWorkspace(t *testing.T) {
	r := newTestRunner(t)
	testutil.Script(t, r.Workspace, "bin/greet", `printf 'hello, it sees all friends\n'`)

	res, err := r.Run(context.Background(), []string{"./bin/greet"}, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(string(res.Stdout), "sees all") {
		t.Errorf("Stdout = %q, want to contain 'sees all'", res.Stdout)
	}
}

func TestRun_BinaryNotFound(t *testing.T) {
	r := newTestRunner(t)
	_, err := r.Run(context.Background(), []string{"nonexistent-binary-xyz-123"}, "")
	if err == nil {
		t.Fatal("expected error for missing binary")
	}
	if !strings.Contains(err.Error(), "nonexistent-binary-xyz-123") {
		t.Errorf("error = %q, want to mention the binary name", err)
	}
	var launchErr *LaunchError
	if !errors.As(err, &launchErr) {
		t.Fatalf("error = %T, want *LaunchError", err)
	}
}

func TestRun_MissingFileIsLaunchError(t *testing.T) {
	r := newTestRunner(t)
	_, err := r.Run(context.Background(), []string{"./bin/absent"}, "")
	var launchErr *LaunchError
	if !errors.As(err, &launchErr) {
		t.Fatalf("error = %v, want *LaunchError", err)
	}
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("error = %v, want to wrap fs.ErrNotExist", err)
	}
	if launchErr.Path != filepath.Join(r.Workspace, "bin", "absent") {
		t.Errorf("Path = %q, want resolved workspace path", launchErr.Path)
	}
}

func TestRun_NotExecutableIsLaunchError(t *testing.T) {
	r := newTestRunner(t)
	path := filepath.Join(r.Workspace, "plain.txt")
	if err := os.WriteFile(path, []byte("sees all\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := r.Run(context.Background(), []string{path}, "")
	var launchErr *LaunchError
	if !errors.As(err, &launchErr) {
		t.Fatalf("error = %v, want *LaunchError", err)
	}
}

func TestRun_EmptyArgv(t *testing.T) {
	r := newTestRunner(t)
	_, err := r.Run(context.Background(), nil, "")
	if err == nil {
		t.Fatal("expected error for empty argv")
	}
}

func TestRun_ChunksConcatenateInOrder(t *testing.T) {
	r := newTestRunner(t)
	testutil.Script(t, r.Workspace, "chunky", `printf 'sees '; sleep 0.1; printf 'all'`)

	res, err := r.Run(context.Background(), []string{"./chunky"}, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(res.Stdout) != "sees all" {
		t.Errorf("Stdout = %q, want %q", res.Stdout, "sees all")
	}
	if res.Chunks < 2 {
		t.Errorf("Chunks = %d, want >= 2", res.Chunks)
	}
}

func TestRun_OutputAfterExitIsCollected(t *testing.T) {
	r := newTestRunner(t)
	// The parent exits first; a background child that inherited stdout
	// writes the second chunk afterwards.
	testutil.Script(t, r.Workspace, "orphan", `(sleep 0.2; printf 'all') & printf 'sees '`)

	res, err := r.Run(context.Background(), []string{"./orphan"}, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(res.Stdout) != "sees all" {
		t.Errorf("Stdout = %q, want %q", res.Stdout, "sees all")
	}
}

func TestRun_StderrCapturedSeparately(t *testing.T) {
	r := newTestRunner(t)
	testutil.Script(t, r.Workspace, "noisy", `echo out; echo err 1>&2`)

	res, err := r.Run(context.Background(), []string{"./noisy"}, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(res.Stdout) != "out\n" {
		t.Errorf("Stdout = %q, want %q", res.Stdout, "out\n")
	}
	if string(res.Stderr) != "err\n" {
		t.Errorf("Stderr = %q, want %q", res.Stderr, "err\n")
	}
}

func TestRun_CWDWithinWorkspace(t *testing.T) {
	r := newTestRunner(t)
	sub := filepath.Join(r.Workspace, "subdir")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	res, err := r.Run(context.Background(), []string{"pwd"}, "subdir")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(string(res.Stdout), "subdir") {
		t.Errorf("Stdout = %q, want to contain 'subdir'", res.Stdout)
	}
}

func TestRun_CWDOutsideWorkspace_Relative(t *testing.T) {
	r := newTestRunner(t)
	_, err := r.Run(context.Background(), []string{"echo"}, "../")
	if err == nil {
		t.Fatal("expected error for cwd outside workspace")
	}
	if !strings.Contains(err.Error(), "outside workspace") {
		t.Errorf("error = %q, want 'outside workspace'", err)
	}
}

func TestRun_CWDOutsideWorkspace_Absolute(t *testing.T) {
	r := newTestRunner(t)
	_, err := r.Run(context.Background(), []string{"echo"}, "/tmp")
	if err == nil {
		t.Fatal("expected error for absolute cwd outside workspace")
	}
	if !strings.Contains(err.Error(), "outside workspace") {
		t.Errorf("error = %q, want 'outside workspace'", err)
	}
}

func TestRun_Timeout(t *testing.T) {
	r := newTestRunner(t)
	r.Timeout = 100 * time.Millisecond

	start := time.Now()
	_, err := r.Run(context.Background(), []string{"sleep", "10"}, "")
	if err == nil {
		t.Fatal("expected error for timed-out process")
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("error = %v, want context.DeadlineExceeded", err)
	}
	if time.Since(start) > 5*time.Second {
		t.Error("Run did not return promptly after the timeout")
	}
}

func TestRun_OutputTruncation(t *testing.T) {
	r := newTestRunner(t)
	r.MaxOutput = 100

	res, err := r.Run(context.Background(), []string{"sh", "-c", "dd if=/dev/zero bs=200 count=1 2>/dev/null"}, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Truncated {
		t.Error("Truncated = false, want true")
	}
	if len(res.Stdout) > r.MaxOutput {
		t.Errorf("len(Stdout) = %d, want <= %d", len(res.Stdout), r.MaxOutput)
	}
}

func TestRun_UnboundedOutput(t *testing.T) {
	r := newTestRunner(t)
	r.MaxOutput = 0

	res, err := r.Run(context.Background(), []string{"sh", "-c", "dd if=/dev/zero bs=1000 count=200 2>/dev/null"}, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Truncated {
		t.Error("Truncated = true, want false")
	}
	if len(res.Stdout) != 200000 {
		t.Errorf("len(Stdout) = %d, want 200000", len(res.Stdout))
	}
}
