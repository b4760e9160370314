// Package testutil holds helpers shared by package tests that need a
// real executable to launch.
package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

// Script writes an executable /bin/sh script named name into dir and
// returns its absolute path. Parent directories are created as needed,
// so name may be a relative path such as "bin/greet".
func Script(t testing.TB, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}
