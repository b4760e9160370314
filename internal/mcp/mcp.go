// Package mcp provides the outprobe MCP server, registering all tools
// and publishing model instructions.
package mcp

import (
	"context"
	_ "embed"
	"net/url"
	"sync"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/deixis/outprobe"
	"github.com/deixis/outprobe/internal/config"
	"github.com/deixis/outprobe/internal/report"
	"github.com/deixis/outprobe/internal/runner"
	"github.com/deixis/outprobe/internal/workflow"
)

//go:embed instructions.md
var Instructions string

// handler holds shared dependencies for all tool handlers.
// The engine is replaced, never mutated, when a client supplies a root,
// so a tool call keeps the engine it started with.
type handler struct {
	mu     sync.RWMutex
	engine *workflow.Engine

	store  report.Store
	logger *zap.Logger
}

func newHandler(cfg *config.Config, r *runner.Runner, store report.Store, root string, logger *zap.Logger) *handler {
	return &handler{
		engine: &workflow.Engine{
			Config:   cfg,
			Runner:   r,
			RepoRoot: root, // updated via roots
			Logger:   logger,
		},
		store:  store,
		logger: logger,
	}
}

// current returns the engine tool calls should use.
func (h *handler) current() *workflow.Engine {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.engine
}

// useRoot swaps in an engine and runner built from loaded.
func (h *handler) useRoot(loaded *config.LoadResult) {
	eng := &workflow.Engine{
		Config: loaded.Config,
		Runner: &runner.Runner{
			Workspace: loaded.RepoRoot,
			Timeout:   loaded.Config.Timeout(),
			MaxOutput: loaded.Config.MaxOutputBytes(),
		},
		RepoRoot: loaded.RepoRoot,
		Logger:   h.logger,
	}
	h.mu.Lock()
	h.engine = eng
	h.mu.Unlock()
}

// NewServer creates an MCP server with all outprobe tools registered.
func NewServer(cfg *config.Config, r *runner.Runner, store report.Store, workspace string, opts ...ServerOption) *mcp.Server {
	so := serverOptions{logger: zap.NewNop()}
	for _, o := range opts {
		o(&so)
	}

	h := newHandler(cfg, r, store, workspace, so.logger)

	mcpOpts := &mcp.ServerOptions{
		Instructions: Instructions,
		Capabilities: &mcp.ServerCapabilities{
			Tools: &mcp.ToolCapabilities{ListChanged: false},
		},
		InitializedHandler: func(ctx context.Context, req *mcp.InitializedRequest) {
			h.updateWorkspaceFromRoots(ctx, req.Session)
		},
	}
	s := mcp.NewServer(&mcp.Implementation{Name: "outprobe", Version: outprobe.Version}, mcpOpts)

	mcp.AddTool(s, &mcp.Tool{
		Name:        "probe_cases",
		Description: "List the probe cases configured in the project's .outprobe file.",
	}, h.casesHandler)

	mcp.AddTool(s, &mcp.Tool{
		Name: "probe_run",
		Description: `Run configured probe cases and report pass, fail or error for each.

Each case launches an executable with no arguments and checks its stdout for an expected
substring. Results are stored for drill-down via probe_inspect.`,
	}, h.runHandler)

	mcp.AddTool(s, &mcp.Tool{
		Name: "probe_exec",
		Description: `Probe a single executable: run it with no arguments and check that its stdout
contains the expected substring (default "sees all").`,
	}, h.execHandler)

	mcp.AddTool(s, &mcp.Tool{
		Name:        "probe_inspect",
		Description: "Show the captured stdout, exit code and message of one case from a probe_run or probe_exec result.",
	}, h.inspectHandler)

	return s
}

// ServerOption configures the outprobe MCP server.
type ServerOption func(*serverOptions)

type serverOptions struct {
	logger *zap.Logger
}

// WithLogger sets the logger used by the server and its engine.
func WithLogger(l *zap.Logger) ServerOption {
	return func(o *serverOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

// updateWorkspaceFromRoots queries the client for MCP roots and updates the
// handler's engine if a valid root is returned.
// This is called during session initialization, before any tool calls.
func (h *handler) updateWorkspaceFromRoots(ctx context.Context, session *mcp.ServerSession) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	roots, err := session.ListRoots(ctx, &mcp.ListRootsParams{})
	if err != nil || len(roots.Roots) == 0 {
		return
	}

	u, err := url.Parse(roots.Roots[0].URI)
	if err != nil || u.Scheme != "file" {
		return
	}
	workspace := u.Path

	loaded, err := config.Load(workspace)
	if err != nil {
		h.logger.Warn("ignoring client root", zap.String("root", workspace), zap.Error(err))
		return
	}

	h.useRoot(loaded)
	h.logger.Debug("workspace updated from client roots", zap.String("root", loaded.RepoRoot))
}

// textResult is a helper to build a text-only tool result.
func textResult(text string) (*mcp.CallToolResult, any, error) {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}, nil, nil
}

// errorResult is a helper to build an error tool result.
func errorResult(text string) (*mcp.CallToolResult, any, error) {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
		IsError: true,
	}, nil, nil
}
