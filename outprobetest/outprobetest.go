// Package outprobetest adapts outprobe assertions to the testing package.
package outprobetest

import (
	"context"
	"testing"

	"github.com/deixis/outprobe"
)

// Contains runs path and fails t unless its stdout contains want.
// It returns the execution result on success.
func Contains(t testing.TB, path, want string, opts ...outprobe.Option) *outprobe.ExecutionResult {
	t.Helper()
	res, err := outprobe.Expect(context.Background(), path, want, opts...)
	if err != nil {
		t.Fatalf("%s: %v", path, err)
	}
	return res
}

// SeesAll runs path and fails t unless its stdout contains "sees all".
func SeesAll(t testing.TB, path string, opts ...outprobe.Option) *outprobe.ExecutionResult {
	t.Helper()
	return Contains(t, path, outprobe.DefaultExpect, opts...)
}
