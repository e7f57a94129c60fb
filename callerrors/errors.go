// Copyright (c) 2020 Uber Technologies, Inc.
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.

// Package callerrors provides the status-code error model used to classify
// remote call failures.
package callerrors

import (
	"bytes"
	"errors"
	"fmt"
)

// Newf returns a new Status.
//
// The Code should never be CodeOK, if it is, this will return nil.
func Newf(code Code, format string, args ...interface{}) *Status {
	if code == CodeOK {
		return nil
	}

	var err error
	if len(args) == 0 {
		err = errors.New(format)
	} else {
		err = fmt.Errorf(format, args...)
	}

	return &Status{
		code: code,
		err:  err,
	}
}

type statusError interface {
	CallStatus() *Status
}

// FromError returns the Status for the provided error.
//
// If the error:
//   - is nil, return nil
//   - is a 'Status', return the 'Status'
//   - has a 'CallStatus() *Status' method, return that 'Status'
//
// Otherwise, return a wrapped error with code 'CodeUnknown'.
func FromError(err error) *Status {
	if err == nil {
		return nil
	}

	if st, ok := fromError(err); ok {
		return st
	}

	return &Status{
		code: CodeUnknown,
		err:  &wrapError{err: err},
	}
}

func fromError(err error) (st *Status, ok bool) {
	// The CallStatus check comes first: a wrapper's own classification takes
	// precedence over any Status buried deeper in its cause chain.
	var serr statusError
	if errors.As(err, &serr) {
		return serr.CallStatus(), true
	}

	if errors.As(err, &st) {
		return st, true
	}
	return nil, false
}

// IsStatus returns whether the provided error carries a status code, either
// directly or through a 'CallStatus() *Status' method. This includes wrapped
// errors.
//
// This is false if the error is nil.
func IsStatus(err error) bool {
	_, ok := fromError(err)
	return ok
}

// ErrorCode returns the Code for the given error, CodeOK if the error is nil,
// or CodeUnknown if the given error is not a status error.
func ErrorCode(err error) Code {
	return FromError(err).Code()
}

// Status represents a classified remote call error.
type Status struct {
	code Code
	err  error
}

// Code returns the error code for this Status.
func (s *Status) Code() Code {
	if s == nil {
		return CodeOK
	}
	return s.code
}

// Message returns the error message for this Status.
func (s *Status) Message() string {
	if s == nil {
		return ""
	}
	return s.err.Error()
}

// Unwrap supports errors.Unwrap.
func (s *Status) Unwrap() error {
	if s == nil {
		return nil
	}
	return errors.Unwrap(s.err)
}

// Error implements the error interface.
func (s *Status) Error() string {
	buffer := bytes.NewBuffer(nil)
	_, _ = buffer.WriteString(`code:`)
	_, _ = buffer.WriteString(s.code.String())
	if s.err != nil && s.err.Error() != "" {
		_, _ = buffer.WriteString(` message:`)
		_, _ = buffer.WriteString(s.err.Error())
	}
	return buffer.String()
}

// wrapError does what it says on the tin.
type wrapError struct {
	err error
}

func (e *wrapError) Error() string {
	if e == nil || e.err == nil {
		return ""
	}
	return e.err.Error()
}

// Unwrap returns the inner error.
func (e *wrapError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.err
}

// DeadlineExceededErrorf returns a new Status with code CodeDeadlineExceeded.
func DeadlineExceededErrorf(format string, args ...interface{}) error {
	return Newf(CodeDeadlineExceeded, format, args...)
}

// InternalErrorf returns a new Status with code CodeInternal.
func InternalErrorf(format string, args ...interface{}) error {
	return Newf(CodeInternal, format, args...)
}

// InvalidArgumentErrorf returns a new Status with code CodeInvalidArgument.
func InvalidArgumentErrorf(format string, args ...interface{}) error {
	return Newf(CodeInvalidArgument, format, args...)
}

// NotFoundErrorf returns a new Status with code CodeNotFound.
func NotFoundErrorf(format string, args ...interface{}) error {
	return Newf(CodeNotFound, format, args...)
}

// UnavailableErrorf returns a new Status with code CodeUnavailable.
func UnavailableErrorf(format string, args ...interface{}) error {
	return Newf(CodeUnavailable, format, args...)
}

// IsDeadlineExceeded returns true if ErrorCode(err) == CodeDeadlineExceeded.
func IsDeadlineExceeded(err error) bool {
	return ErrorCode(err) == CodeDeadlineExceeded
}

// IsUnavailable returns true if ErrorCode(err) == CodeUnavailable.
func IsUnavailable(err error) bool {
	return ErrorCode(err) == CodeUnavailable
}
