package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/deixis/outprobe/internal/report"
	"github.com/deixis/outprobe/internal/workflow"
)

type inspectParams struct {
	RunID string `json:"run_id,omitempty" jsonschema:"the run ID from a probe_run or probe_exec result"`
	Case  string `json:"case,omitempty" jsonschema:"case name; for probe_exec runs this is the executable path"`
}

func (h *handler) inspectHandler(ctx context.Context, req *mcp.CallToolRequest, params inspectParams) (*mcp.CallToolResult, any, error) {
	if params.RunID == "" {
		return errorResult("run_id is required")
	}
	if params.Case == "" {
		return errorResult("case is required")
	}

	result, err := h.store.Load(params.RunID)
	if err != nil {
		return errorResult(fmt.Sprintf("Failed to load run %s: %v", params.RunID, err))
	}

	c, ok := report.ByCase(result, params.Case)
	if !ok {
		return textResult(fmt.Sprintf("No case %s in run %s (%s).", params.Case, params.RunID, result.Kind))
	}
	return textResult(workflow.FormatCase(result, c))
}
