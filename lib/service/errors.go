// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package service

import (
	"errors"
	"fmt"
)

// Code classifies a failed request on the wire.
type Code string

const (
	// CodeBusy means the resource is held by another session.
	CodeBusy Code = "BUSY"

	// CodeNotFound means the referenced session does not exist.
	CodeNotFound Code = "NOT_FOUND"

	// CodeInvalidInput means the request was malformed.
	CodeInvalidInput Code = "INVALID_INPUT"

	// CodeInternal means the handler failed for a reason the caller
	// cannot fix.
	CodeInternal Code = "INTERNAL"
)

// Error is a handler error carrying a wire code. Handlers construct it
// with Errorf or wrap an existing error with WithCode.
type Error struct {
	Code Code
	Err  error
}

func (e *Error) Error() string { return e.Err.Error() }

func (e *Error) Unwrap() error { return e.Err }

// Errorf formats an error with the given code. The format supports %w.
func Errorf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Err: fmt.Errorf(format, args...)}
}

// WithCode attaches code to err.
func WithCode(code Code, err error) *Error {
	return &Error{Code: code, Err: err}
}

// codeOf returns the code attached to err, or CodeInternal.
func codeOf(err error) Code {
	var coded *Error
	if errors.As(err, &coded) && coded.Code != "" {
		return coded.Code
	}
	return CodeInternal
}
