// Command outprobe runs executables and checks what they print.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/deixis/outprobe"
)

// errProbeFailed signals that probes ran but at least one did not pass.
// The results were already printed, so main only sets the exit status.
var errProbeFailed = errors.New("probe failed")

func main() {
	root, a := newRootCmd()
	err := root.Execute()
	if a.logger != nil {
		_ = a.logger.Sync()
	}
	if err != nil {
		if !errors.Is(err, errProbeFailed) {
			fmt.Fprintf(os.Stderr, "outprobe: %v\n", err)
		}
		os.Exit(1)
	}
}

// app carries state shared by all subcommands.
type app struct {
	debug  bool
	dir    string
	logger *zap.Logger
}

func newRootCmd() (*cobra.Command, *app) {
	a := &app{logger: zap.NewNop()}

	root := &cobra.Command{
		Use:   "outprobe",
		Short: "Run executables and check their standard output",
		Long: `outprobe launches command-line executables with no arguments, collects
everything they write to stdout, and checks it for an expected substring
("sees all" unless configured otherwise). Cases are read from a .outprobe
file at the project root.`,
		Version:       outprobe.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newConsoleLogger(a.debug)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			a.logger = logger
			return nil
		},
	}
	root.PersistentFlags().BoolVar(&a.debug, "debug", false, "enable debug logging")
	root.PersistentFlags().StringVarP(&a.dir, "dir", "C", "", "run as if started in `dir`")

	root.AddCommand(
		a.newRunCmd(),
		a.newExecCmd(),
		a.newCasesCmd(),
		a.newInspectCmd(),
		a.newMCPCmd(),
		newVersionCmd(),
	)
	return root, a
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), outprobe.Version)
		},
	}
}

// newConsoleLogger returns a human-friendly console logger on stderr.
// Debug enables per-case logs; otherwise only warnings and errors show.
func newConsoleLogger(debug bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	level := zap.WarnLevel
	if debug {
		level = zap.DebugLevel
	}
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.EncoderConfig = zapcore.EncoderConfig{
		TimeKey:        "ts",
		LevelKey:       "level",
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.CapitalLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
	}
	// stdout carries results; keep logs off it.
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	cfg.DisableCaller = true
	cfg.DisableStacktrace = true
	return cfg.Build()
}
