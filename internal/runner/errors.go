package runner

import "fmt"

// LaunchError is returned when a process could not be started at all,
// for example because the executable does not exist or is not
// executable. It is distinct from a process that started and exited
// with a non-zero status, which is reported through Result.ExitCode.
type LaunchError struct {
	Path string
	Err  error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("launching %s: %v", e.Path, e.Err)
}

func (e *LaunchError) Unwrap() error { return e.Err }
