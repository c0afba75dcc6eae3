// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package process

import (
	"errors"
	"fmt"
	"io"
	"os"
)

// ExitUsage is the exit code for command-line usage errors.
const ExitUsage = 2

// UsageError reports a malformed command line. Fatal prints it and exits
// with ExitUsage.
type UsageError struct {
	Err error
}

// Usage creates a UsageError from a format string.
func Usage(format string, args ...any) *UsageError {
	return &UsageError{Err: fmt.Errorf(format, args...)}
}

func (e *UsageError) Error() string { return e.Err.Error() }

func (e *UsageError) Unwrap() error { return e.Err }

// Fatal writes "error: err" to stderr and exits. A UsageError exits
// with ExitUsage; anything else exits with code 1.
// Use it in main() for errors from run() where the structured logger
// may not be initialized.
func Fatal(err error) {
	os.Exit(report(os.Stderr, err))
}

// report writes err to w as Fatal would and returns the exit code.
func report(w io.Writer, err error) int {
	fmt.Fprintf(w, "error: %v\n", err)
	var usage *UsageError
	if errors.As(err, &usage) {
		return ExitUsage
	}
	return 1
}
