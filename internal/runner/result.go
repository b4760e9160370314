package runner

import "time"

// Result holds the output of a command execution.
type Result struct {
	RunID     string        // unique identifier for this run
	ExitCode  int           // process exit code; -1 if killed by a signal
	Stdout    []byte        // captured stdout (may be truncated)
	Stderr    []byte        // captured stderr (may be truncated)
	Chunks    int           // number of stdout writes delivered before EOF
	Truncated bool          // true if output exceeded the size cap
	Duration  time.Duration // wall time from start to stdout EOF and exit
}
