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

package callwrap

import (
	"fmt"

	"go.uber.org/callwrap/callerrors"
)

// CallError is the uniform wrapper around recognized transport failures of
// calls that have no retry policy. The original failure is preserved as the
// cause.
type CallError struct {
	cause error
}

func (e *CallError) Error() string {
	return fmt.Sprintf("call failed: %v", e.cause)
}

// Unwrap returns the original transport failure.
func (e *CallError) Unwrap() error {
	return e.cause
}

// CallStatus exposes the cause's classification, so status inspection sees
// through the wrapper.
func (e *CallError) CallStatus() *callerrors.Status {
	return callerrors.FromError(e.cause)
}

// NonRetryableError reports that an attempt failed with an error class that
// is not in the method's transient set. The retry loop surfaces it
// immediately, without sleeping.
type NonRetryableError struct {
	cause error
}

func (e *NonRetryableError) Error() string {
	return fmt.Sprintf("call failed with non-retryable error: %v", e.cause)
}

// Unwrap returns the failure that stopped the retry loop.
func (e *NonRetryableError) Unwrap() error {
	return e.cause
}

// CallStatus exposes the cause's classification.
func (e *NonRetryableError) CallStatus() *callerrors.Status {
	return callerrors.FromError(e.cause)
}

// DeadlineExceededError reports that the retry loop's total timeout elapsed
// without a successful response. The cause is the last transient failure, or
// a placeholder if no attempt ever completed.
type DeadlineExceededError struct {
	cause error
}

func (e *DeadlineExceededError) Error() string {
	return fmt.Sprintf("retry total timeout exceeded: %v", e.cause)
}

// Unwrap returns the last transient failure observed before the deadline.
func (e *DeadlineExceededError) Unwrap() error {
	return e.cause
}

// CallStatus classifies the error as deadline-exceeded regardless of the
// cause: the deadline, not any particular failure, terminated the loop.
func (e *DeadlineExceededError) CallStatus() *callerrors.Status {
	return callerrors.Newf(callerrors.CodeDeadlineExceeded, "retry total timeout exceeded: %v", e.cause)
}

// ConfigError reports inconsistent or missing call configuration. It is
// raised at settings construction or composition time, never at call time.
type ConfigError struct {
	// Reason describes what is wrong with the configuration.
	Reason string

	// Cause holds the underlying validation error, if any.
	Cause error
}

func (e *ConfigError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("invalid call configuration: %s: %v", e.Reason, e.Cause)
	}
	return fmt.Sprintf("invalid call configuration: %s", e.Reason)
}

// Unwrap returns the underlying validation error, if any.
func (e *ConfigError) Unwrap() error {
	return e.Cause
}

// IncompatibleSettingsError reports that a method was configured with both
// page streaming and bundling, which cannot be composed. Wrap rejects the
// combination before any call is made.
type IncompatibleSettingsError struct{}

func (e *IncompatibleSettingsError) Error() string {
	return "incompatible call settings: bundling and page streaming cannot be combined"
}
