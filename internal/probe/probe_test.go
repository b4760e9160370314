package probe

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/deixis/outprobe/internal/runner"
	"github.com/deixis/outprobe/internal/testutil"
)

func newTestRunner(t *testing.T) *runner.Runner {
	t.Helper()
	return &runner.Runner{
		Workspace: t.TempDir(),
		Timeout:   10 * time.Second,
	}
}

func TestAssert_Greet(t *testing.T) {
	r := newTestRunner(t)
	testutil.Script(t, r.Workspace, "bin/greet", `printf 'hello, it sees all friends\n'`)

	got, err := Assert(context.Background(), r, "./bin/greet", "sees all")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := &ExecutionResult{Stdout: "hello, it sees all friends\n", ExitCode: 0}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("result mismatch (-want +got):\n%s", diff)
	}
}

func TestAssert_GreetBroken(t *testing.T) {
	r := newTestRunner(t)
	testutil.Script(t, r.Workspace, "bin/greet-broken", `printf 'hello\n'; exit 1`)

	got, err := Assert(context.Background(), r, "./bin/greet-broken", "sees all")
	var assertErr *AssertionError
	if !errors.As(err, &assertErr) {
		t.Fatalf("error = %v, want *AssertionError", err)
	}
	const wantMsg = `saw {"stdout":"hello\n","exitCode":1}`
	if !strings.Contains(err.Error(), wantMsg) {
		t.Errorf("error = %q, want to contain %q", err, wantMsg)
	}
	want := ExecutionResult{Stdout: "hello\n", ExitCode: 1}
	if diff := cmp.Diff(want, assertErr.Result); diff != "" {
		t.Errorf("diagnostic mismatch (-want +got):\n%s", diff)
	}
	if got == nil || got.ExitCode != 1 {
		t.Errorf("result = %+v, want exit code 1", got)
	}
}

func TestAssert_DefaultExpect(t *testing.T) {
	r := newTestRunner(t)
	testutil.Script(t, r.Workspace, "command1", `echo "the command sees all"`)

	if _, err := Assert(context.Background(), r, "./command1", ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestAssert_LaunchErrorIsNotAssertionError(t *testing.T) {
	r := newTestRunner(t)

	got, err := Assert(context.Background(), r, "./bin/does-not-exist", "sees all")
	if err == nil {
		t.Fatal("expected error for missing executable")
	}
	var launchErr *runner.LaunchError
	if !errors.As(err, &launchErr) {
		t.Errorf("error = %T, want *runner.LaunchError", err)
	}
	var assertErr *AssertionError
	if errors.As(err, &assertErr) {
		t.Error("launch failure must not be reported as an AssertionError")
	}
	if got != nil {
		t.Errorf("result = %+v, want nil", got)
	}
}

func TestAssert_ChunkedOutput(t *testing.T) {
	r := newTestRunner(t)
	testutil.Script(t, r.Workspace, "chunky", `printf 'sees '; sleep 0.1; printf 'all'`)

	got, err := Assert(context.Background(), r, "./chunky", "sees all")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Stdout != "sees all" {
		t.Errorf("Stdout = %q, want %q", got.Stdout, "sees all")
	}
}

func TestAssert_ChunkAfterExit(t *testing.T) {
	r := newTestRunner(t)
	testutil.Script(t, r.Workspace, "late", `(sleep 0.2; printf 'all') & printf 'sees '`)

	if _, err := Assert(context.Background(), r, "./late", "sees all"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestAssert_ExitCodeDoesNotDecide(t *testing.T) {
	r := newTestRunner(t)
	testutil.Script(t, r.Workspace, "grumpy", `echo "it sees all"; exit 3`)

	got, err := Assert(context.Background(), r, "./grumpy", "sees all")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ExitCode != 3 {
		t.Errorf("ExitCode = %d, want 3", got.ExitCode)
	}
}

type fakeRunner struct {
	argv   []string
	cwd    string
	result *runner.Result
	err    error
}

func (f *fakeRunner) Run(_ context.Context, argv []string, cwd string) (*runner.Result, error) {
	f.argv = argv
	f.cwd = cwd
	return f.result, f.err
}

func TestAssert_PassesNoArguments(t *testing.T) {
	f := &fakeRunner{result: &runner.Result{Stdout: []byte("sees all")}}
	if _, err := Assert(context.Background(), f, "/opt/bin/tool", ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := cmp.Diff([]string{"/opt/bin/tool"}, f.argv); diff != "" {
		t.Errorf("argv mismatch (-want +got):\n%s", diff)
	}
	if f.cwd != "." {
		t.Errorf("cwd = %q, want the runner workspace %q", f.cwd, ".")
	}
}

func TestAssert_RunsInWorkspace(t *testing.T) {
	r := newTestRunner(t)
	testutil.Script(t, r.Workspace, "bin/where", `pwd`)

	got, err := Assert(context.Background(), r, "./bin/where", r.Workspace)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Stdout != r.Workspace+"\n" {
		t.Errorf("stdout = %q, want %q", got.Stdout, r.Workspace+"\n")
	}
}

func TestAssert_TruncatedOutputIsReported(t *testing.T) {
	r := newTestRunner(t)
	r.MaxOutput = 8
	testutil.Script(t, r.Workspace, "verbose", `printf 'preamble, then sees all'`)

	_, err := Assert(context.Background(), r, filepath.Join(r.Workspace, "verbose"), "")
	var assertErr *AssertionError
	if !errors.As(err, &assertErr) {
		t.Fatalf("error = %v, want *AssertionError", err)
	}
	if !assertErr.Truncated {
		t.Error("Truncated = false, want true")
	}
	want := `expected stdout to contain "sees all", saw {"stdout":"preamble","exitCode":0} (output truncated)`
	if diff := cmp.Diff(want, err.Error()); diff != "" {
		t.Errorf("message mismatch (-want +got):\n%s", diff)
	}
}

func TestAssert_PropagatesRunnerError(t *testing.T) {
	boom := errors.New("boom")
	f := &fakeRunner{err: boom}
	if _, err := Assert(context.Background(), f, "x", ""); !errors.Is(err, boom) {
		t.Errorf("error = %v, want %v", err, boom)
	}
}

func TestExecutionResult_String(t *testing.T) {
	tests := []struct {
		name string
		in   ExecutionResult
		want string
	}{
		{"newline", ExecutionResult{Stdout: "hello\n", ExitCode: 1}, `{"stdout":"hello\n","exitCode":1}`},
		{"html", ExecutionResult{Stdout: "<a & b>", ExitCode: 0}, `{"stdout":"<a & b>","exitCode":0}`},
		{"quotes", ExecutionResult{Stdout: `say "hi"`, ExitCode: -1}, `{"stdout":"say \"hi\"","exitCode":-1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.in.String(); got != tt.want {
				t.Errorf("String() = %s, want %s", got, tt.want)
			}
		})
	}
}
