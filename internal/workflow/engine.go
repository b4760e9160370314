// Package workflow runs probe suites and single probes and turns their
// outcomes into report.RunResult values. It is consumed by both the MCP
// server and the CLI commands.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/deixis/outprobe/internal/config"
	"github.com/deixis/outprobe/internal/probe"
	"github.com/deixis/outprobe/internal/report"
	"github.com/deixis/outprobe/internal/runner"
)

// Engine holds shared dependencies for all workflow operations.
type Engine struct {
	Config   *config.Config
	Runner   probe.CommandRunner
	RepoRoot string // directory holding .outprobe; case paths resolve here
	Logger   *zap.Logger
}

func (e *Engine) logger() *zap.Logger {
	if e.Logger == nil {
		return zap.NewNop()
	}
	return e.Logger
}

// UnknownCaseError is returned when a requested case is not configured.
type UnknownCaseError struct {
	Names []string
}

func (e UnknownCaseError) Error() string {
	return fmt.Sprintf("unknown case(s): %s", strings.Join(e.Names, ", "))
}

// ResolveCases selects configured cases by name, preserving the order
// in which they were requested. When names is empty every configured
// case is returned in file order.
func (e *Engine) ResolveCases(names []string) ([]config.Case, error) {
	if len(names) == 0 {
		return e.Config.Cases, nil
	}

	byName := make(map[string]config.Case, len(e.Config.Cases))
	for _, c := range e.Config.Cases {
		byName[c.Name] = c
	}

	var (
		out     []config.Case
		unknown []string
	)
	for _, n := range names {
		c, ok := byName[n]
		if !ok {
			unknown = append(unknown, n)
			continue
		}
		out = append(out, c)
	}
	if len(unknown) > 0 {
		return nil, UnknownCaseError{Names: unknown}
	}
	return out, nil
}

// Run probes the selected cases in sequence. Every case runs unless
// failFast is set, in which case the cases after the first non-passing
// one are reported as skipped.
func (e *Engine) Run(ctx context.Context, names []string, failFast bool) (*report.RunResult, error) {
	cases, err := e.ResolveCases(names)
	if err != nil {
		return nil, err
	}
	if len(cases) == 0 {
		return nil, fmt.Errorf("no cases configured in %s", config.FileName)
	}

	rr := &report.RunResult{
		ID:        uuid.New().String(),
		Kind:      report.Suite,
		StartedAt: time.Now().UTC(),
		Cases:     make([]report.CaseResult, 0, len(cases)),
	}
	log := e.logger().With(zap.String("run_id", rr.ID))

	stopped := false
	for _, c := range cases {
		if stopped {
			rr.Cases = append(rr.Cases, report.CaseResult{
				Name:   c.Name,
				Path:   c.Path,
				Expect: c.Want(),
				Status: report.StatusSkipped,
			})
			continue
		}
		cr := e.probeCase(ctx, log, c)
		rr.Cases = append(rr.Cases, cr)
		if failFast && cr.Status != report.StatusPass {
			stopped = true
		}
	}

	counts := rr.Counts()
	log.Info("run finished",
		zap.Int("pass", counts[report.StatusPass]),
		zap.Int("fail", counts[report.StatusFail]),
		zap.Int("error", counts[report.StatusError]),
		zap.Int("skipped", counts[report.StatusSkipped]),
	)
	return rr, nil
}

// Exec probes a single executable outside of any configured suite.
func (e *Engine) Exec(ctx context.Context, path, want string) (*report.RunResult, error) {
	if path == "" {
		return nil, errors.New("path is required")
	}
	c := config.Case{Name: path, Path: path, Expect: want}
	rr := &report.RunResult{
		ID:        uuid.New().String(),
		Kind:      report.Exec,
		StartedAt: time.Now().UTC(),
	}
	rr.Cases = []report.CaseResult{e.probeCase(ctx, e.logger().With(zap.String("run_id", rr.ID)), c)}
	return rr, nil
}

// probeCase runs one case and classifies the outcome. A LaunchError or
// any other runner failure is an error; a missing substring is a fail.
func (e *Engine) probeCase(ctx context.Context, log *zap.Logger, c config.Case) report.CaseResult {
	cr := report.CaseResult{Name: c.Name, Path: c.Path, Expect: c.Want()}

	rec := &recordingRunner{next: e.Runner}
	res, err := probe.Assert(ctx, rec, c.Path, c.Want())
	if res != nil {
		cr.Stdout = res.Stdout
		cr.ExitCode = res.ExitCode
	}
	if rec.last != nil {
		cr.Chunks = rec.last.Chunks
		cr.Truncated = rec.last.Truncated
	}

	var assertErr *probe.AssertionError
	switch {
	case err == nil:
		cr.Status = report.StatusPass
	case errors.As(err, &assertErr):
		cr.Status = report.StatusFail
		cr.Message = err.Error()
	default:
		cr.Status = report.StatusError
		cr.Message = err.Error()
	}

	log.Debug("case finished",
		zap.String("case", c.Name),
		zap.String("path", c.Path),
		zap.String("status", cr.Status),
		zap.Int("exit_code", cr.ExitCode),
		zap.Int("chunks", cr.Chunks),
	)
	var launchErr *runner.LaunchError
	if errors.As(err, &launchErr) {
		log.Warn("case could not be launched", zap.String("case", c.Name), zap.Error(launchErr.Err))
	}
	return cr
}

// recordingRunner keeps the raw runner.Result so that runner-level
// details (chunk count, truncation) reach the report.
type recordingRunner struct {
	next probe.CommandRunner
	last *runner.Result
}

func (r *recordingRunner) Run(ctx context.Context, argv []string, cwd string) (*runner.Result, error) {
	res, err := r.next.Run(ctx, argv, cwd)
	r.last = res
	return res, err
}
