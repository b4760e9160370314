// Package report provides structured persistence and retrieval of probe
// run results. Results are stored as typed structs and can be queried
// by case name.
package report

import (
	"fmt"
	"time"
)

// Kind identifies the type of a run.
type Kind string

const (
	// Suite is a run over the cases configured in .outprobe.
	Suite Kind = "suite"
	// Exec is a single ad-hoc probe of one executable.
	Exec Kind = "exec"
)

// Case statuses.
const (
	StatusPass    = "pass"
	StatusFail    = "fail"    // ran, but stdout lacked the expected text
	StatusError   = "error"   // could not be launched, or the run itself failed
	StatusSkipped = "skipped" // not run because an earlier case failed
)

// Store persists and retrieves run results.
type Store interface {
	Save(result *RunResult) error
	Load(runID string) (*RunResult, error)
}

// RunResult holds the structured output from one run.
type RunResult struct {
	ID        string       `json:"id"`
	Kind      Kind         `json:"kind"`
	StartedAt time.Time    `json:"started_at"`
	Cases     []CaseResult `json:"cases"`
}

// CaseResult is the outcome of probing one executable.
type CaseResult struct {
	Name      string `json:"name"`
	Path      string `json:"path"`
	Expect    string `json:"expect"`
	Status    string `json:"status"`
	Stdout    string `json:"stdout,omitempty"`
	ExitCode  int    `json:"exit_code"`
	Chunks    int    `json:"chunks,omitempty"`
	Truncated bool   `json:"truncated,omitempty"`
	Message   string `json:"message,omitempty"` // error text for fail and error
}

// Passed reports whether every case passed. An empty run passes.
func (r *RunResult) Passed() bool {
	for _, c := range r.Cases {
		if c.Status != StatusPass {
			return false
		}
	}
	return true
}

// Counts returns the number of cases per status.
func (r *RunResult) Counts() map[string]int {
	counts := make(map[string]int, 4)
	for _, c := range r.Cases {
		counts[c.Status]++
	}
	return counts
}

// Expect returns an error if the run's Kind does not match want.
func (r *RunResult) Expect(want Kind) error {
	if r.Kind != want {
		return fmt.Errorf("run %s is a %s run, not a %s run", r.ID, r.Kind, want)
	}
	return nil
}

// ByCase returns the named case result.
func ByCase(result *RunResult, name string) (CaseResult, bool) {
	for _, c := range result.Cases {
		if c.Name == name {
			return c, true
		}
	}
	return CaseResult{}, false
}

// Failures returns the cases that failed or errored, in run order.
func Failures(result *RunResult) []CaseResult {
	var out []CaseResult
	for _, c := range result.Cases {
		if c.Status == StatusFail || c.Status == StatusError {
			out = append(out, c)
		}
	}
	return out
}
