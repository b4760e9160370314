package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/deixis/outprobe/internal/config"
	probemcp "github.com/deixis/outprobe/internal/mcp"
	"github.com/deixis/outprobe/internal/report"
	"github.com/deixis/outprobe/internal/runner"
	"github.com/deixis/outprobe/internal/workflow"
)

// --- run ---

func (a *app) newRunCmd() *cobra.Command {
	var (
		jsonOut  bool
		verbose  bool
		failFast bool
		timeout  time.Duration
	)
	cmd := &cobra.Command{
		Use:   "run [case...]",
		Short: "Run configured cases (all by default)",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			eng, store, err := a.newEngine(timeout)
			if err != nil {
				return err
			}
			rr, err := eng.Run(ctx, args, failFast)
			if err != nil {
				return fmt.Errorf("run: %w", err)
			}
			return a.finish(cmd.OutOrStdout(), store, rr, jsonOut, verbose)
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "output results as JSON")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "print captured stdout of failing cases")
	cmd.Flags().BoolVar(&failFast, "fail-fast", false, "stop after the first case that does not pass")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "override configured per-case timeout (e.g. 30s)")
	return cmd
}

// --- exec ---

func (a *app) newExecCmd() *cobra.Command {
	var (
		jsonOut bool
		expect  string
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "exec <path>",
		Short: "Probe a single executable",
		Long: `Probe a single executable: run it with no arguments and check that its
stdout contains the expected substring. Relative paths such as ./bin/greet
resolve against the project root (the directory holding .outprobe).`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			eng, store, err := a.newEngine(timeout)
			if err != nil {
				return err
			}
			rr, err := eng.Exec(ctx, args[0], expect)
			if err != nil {
				return fmt.Errorf("exec: %w", err)
			}
			return a.finish(cmd.OutOrStdout(), store, rr, jsonOut, true)
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "output results as JSON")
	cmd.Flags().StringVar(&expect, "expect", "", `substring stdout must contain (default "sees all")`)
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "kill the process after this long (e.g. 30s)")
	return cmd
}

// finish stores and prints rr, and converts a non-passing run into
// errProbeFailed.
func (a *app) finish(w io.Writer, store report.Store, rr *report.RunResult, jsonOut, verbose bool) error {
	if err := store.Save(rr); err != nil {
		a.logger.Warn("saving run", zap.String("run_id", rr.ID), zap.Error(err))
	}

	if jsonOut {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(rr); err != nil {
			return err
		}
	} else {
		fmt.Fprint(w, workflow.FormatRun(rr, verbose))
	}

	if !rr.Passed() {
		return errProbeFailed
	}
	return nil
}

// --- cases ---

func (a *app) newCasesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cases",
		Short: "List configured cases",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := a.load()
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if len(loaded.Config.Cases) == 0 {
				fmt.Fprintf(w, "no cases in %s\n", filepath.Join(loaded.RepoRoot, config.FileName))
				return nil
			}
			for _, c := range loaded.Config.Cases {
				fmt.Fprintf(w, "%-20s %s (expects %q)\n", c.Name, c.Path, c.Want())
			}
			return nil
		},
	}
}

// --- inspect ---

func (a *app) newInspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <run-id> [case]",
		Short: "Show a stored run, or one case of it",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := a.load()
			if err != nil {
				return err
			}
			rr, err := a.diskStore(loaded).Load(args[0])
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if len(args) == 1 {
				fmt.Fprint(w, workflow.FormatRun(rr, true))
				return nil
			}
			c, ok := report.ByCase(rr, args[1])
			if !ok {
				return fmt.Errorf("no case %s in run %s", args[1], rr.ID)
			}
			fmt.Fprint(w, workflow.FormatCase(rr, c))
			return nil
		},
	}
}

// --- mcp ---

func (a *app) newMCPCmd() *cobra.Command {
	var (
		instructions bool
		httpAddr     string
	)
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Start the MCP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if instructions {
				fmt.Fprint(cmd.OutOrStdout(), probemcp.Instructions)
				return nil
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			return a.serve(ctx, httpAddr)
		},
	}
	cmd.Flags().BoolVar(&instructions, "instructions", false, "print model instructions and exit")
	cmd.Flags().StringVar(&httpAddr, "http", "", "start HTTP server on address (e.g. :9090)")
	return cmd
}

func (a *app) serve(ctx context.Context, httpAddr string) error {
	loaded, err := a.load()
	if err != nil {
		return err
	}
	cfg := loaded.Config

	store := report.NewLRUStore(16, report.NewDiskStore(cfg.ReportPath(loaded.RepoRoot)))
	r := &runner.Runner{
		Workspace: loaded.RepoRoot,
		Timeout:   cfg.Timeout(),
		MaxOutput: cfg.MaxOutputBytes(),
	}
	server := probemcp.NewServer(cfg, r, store, loaded.RepoRoot, probemcp.WithLogger(a.logger))

	if httpAddr != "" {
		return a.serveHTTP(ctx, server, httpAddr)
	}
	return server.Run(ctx, &mcpsdk.StdioTransport{})
}

func (a *app) serveHTTP(ctx context.Context, server *mcpsdk.Server, addr string) error {
	handler := mcpsdk.NewStreamableHTTPHandler(
		func(_ *http.Request) *mcpsdk.Server { return server },
		nil,
	)

	httpServer := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	go func() {
		<-ctx.Done()
		_ = httpServer.Close()
	}()

	a.logger.Info("listening", zap.String("addr", addr))
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// --- shared ---

func (a *app) workdir() (string, error) {
	if a.dir != "" {
		return a.dir, nil
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("determining workspace: %w", err)
	}
	return wd, nil
}

func (a *app) load() (*config.LoadResult, error) {
	dir, err := a.workdir()
	if err != nil {
		return nil, err
	}
	loaded, err := config.Load(dir)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return loaded, nil
}

// diskStore keeps CLI reports where later invocations can find them:
// the configured report_dir, else a shared temp directory.
func (a *app) diskStore(loaded *config.LoadResult) *report.DiskStore {
	dir := loaded.Config.ReportPath(loaded.RepoRoot)
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "outprobe-runs")
	}
	return report.NewDiskStore(dir)
}

func (a *app) newEngine(timeoutOverride time.Duration) (*workflow.Engine, report.Store, error) {
	loaded, err := a.load()
	if err != nil {
		return nil, nil, err
	}
	cfg := loaded.Config

	timeout := cfg.Timeout()
	if timeoutOverride > 0 {
		timeout = timeoutOverride
	}

	r := &runner.Runner{
		Workspace: loaded.RepoRoot,
		Timeout:   timeout,
		MaxOutput: cfg.MaxOutputBytes(),
	}

	eng := &workflow.Engine{
		Config:   cfg,
		Runner:   r,
		RepoRoot: loaded.RepoRoot,
		Logger:   a.logger,
	}
	return eng, a.diskStore(loaded), nil
}
