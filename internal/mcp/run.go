package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/deixis/outprobe/internal/config"
	"github.com/deixis/outprobe/internal/report"
	"github.com/deixis/outprobe/internal/workflow"
)

type casesParams struct{}

func (h *handler) casesHandler(ctx context.Context, req *mcp.CallToolRequest, _ casesParams) (*mcp.CallToolResult, any, error) {
	eng := h.current()
	cases := eng.Config.Cases
	if len(cases) == 0 {
		return textResult(fmt.Sprintf("No cases configured. Add them to %s under %s.", config.FileName, eng.RepoRoot))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Root: %s\n", eng.RepoRoot)
	fmt.Fprintf(&b, "Cases (%d):\n", len(cases))
	for _, c := range cases {
		fmt.Fprintf(&b, "  %s: %s (expects %q)\n", c.Name, c.Path, c.Want())
	}
	return textResult(b.String())
}

type runParams struct {
	Cases    []string `json:"cases,omitempty" jsonschema:"names of configured cases to run. Defaults to all cases."`
	FailFast bool     `json:"fail_fast,omitempty" jsonschema:"stop after the first case that does not pass. Default: false."`
}

func (h *handler) runHandler(ctx context.Context, req *mcp.CallToolRequest, params runParams) (*mcp.CallToolResult, any, error) {
	rr, err := h.current().Run(ctx, params.Cases, params.FailFast)
	if err != nil {
		return errorResult(fmt.Sprintf("run failed: %v", err))
	}
	h.save(rr)
	return textResult(formatRun(rr))
}

type execParams struct {
	Path   string `json:"path,omitempty" jsonschema:"path of the executable; relative paths resolve against the project root"`
	Expect string `json:"expect,omitempty" jsonschema:"substring stdout must contain. Default: sees all."`
}

func (h *handler) execHandler(ctx context.Context, req *mcp.CallToolRequest, params execParams) (*mcp.CallToolResult, any, error) {
	if params.Path == "" {
		return errorResult("path is required")
	}
	rr, err := h.current().Exec(ctx, params.Path, params.Expect)
	if err != nil {
		return errorResult(fmt.Sprintf("exec failed: %v", err))
	}
	h.save(rr)
	return textResult(formatRun(rr))
}

// save stores rr for probe_inspect. A failed save only loses drill-down.
func (h *handler) save(rr *report.RunResult) {
	if err := h.store.Save(rr); err != nil {
		h.logger.Warn("saving run", zap.String("run_id", rr.ID), zap.Error(err))
	}
}

func formatRun(rr *report.RunResult) string {
	var b strings.Builder

	if rr.Passed() {
		fmt.Fprintln(&b, "Status: PASS")
	} else {
		fmt.Fprintln(&b, "Status: FAIL")
	}
	fmt.Fprintf(&b, "Run: %s\n", rr.ID)
	fmt.Fprintln(&b)

	fmt.Fprintln(&b, "Cases:")
	for _, c := range rr.Cases {
		fmt.Fprintf(&b, "  %s: %s\n", c.Name, c.Status)
	}
	fmt.Fprintln(&b)

	failures := workflow.FailureLines(rr)
	if len(failures) > 0 {
		fmt.Fprintln(&b, "Failures:")
		for _, f := range failures {
			fmt.Fprintf(&b, "  %s\n", f)
		}
		fmt.Fprintln(&b)
		fmt.Fprintf(&b, "Inspect with probe_inspect(run_id=%q, case=\"<name>\").\n", rr.ID)
	} else {
		fmt.Fprintln(&b, "All cases passed.")
	}

	return b.String()
}
