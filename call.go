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
	"context"

	"github.com/uber-go/tally"
	"go.uber.org/callwrap/callerrors"
	"go.uber.org/callwrap/internal/clock"
	"go.uber.org/zap"
)

// UnaryCall is a bare remote call: it takes a request value and returns a
// response value. Timeouts reach the callee as context deadlines; enforcement
// of a deadline against a hung call is the callee's responsibility.
type UnaryCall func(ctx context.Context, req interface{}) (interface{}, error)

// WrapOption customizes the behavior of a wrapped call.
type WrapOption interface {
	apply(*wrapOptions)
}

type wrapOptionFunc func(*wrapOptions)

func (f wrapOptionFunc) apply(opts *wrapOptions) { f(opts) }

// wrapOptions enumerates the options for Wrap.
type wrapOptions struct {
	// logger is a zap logger.
	logger *zap.Logger

	// scope is an interface for recording metrics to tally.
	scope tally.Scope

	// clock drives deadline arithmetic and backoff sleeps.
	clock clock.Clock

	// classify maps an arbitrary error to a status code for retry
	// eligibility.
	classify func(error) callerrors.Code

	// recognized reports whether an error belongs to the set of transport
	// errors that the error-wrapping layer rewraps.
	recognized func(error) bool
}

var defaultWrapOptions = wrapOptions{
	logger:     zap.NewNop(),
	scope:      tally.NoopScope,
	clock:      clock.NewReal(),
	classify:   callerrors.ErrorCode,
	recognized: callerrors.IsStatus,
}

// WithLogger sets a zap Logger that will be used to record retry logs.
func WithLogger(logger *zap.Logger) WrapOption {
	return wrapOptionFunc(func(opts *wrapOptions) {
		opts.logger = logger
	})
}

// WithScope sets a Tally scope that will be used to record call metrics.
func WithScope(scope tally.Scope) WrapOption {
	return wrapOptionFunc(func(opts *wrapOptions) {
		opts.scope = scope
	})
}

// WithClock overrides the wall clock used for retry deadlines and sleeps.
func WithClock(c clock.Clock) WrapOption {
	return wrapOptionFunc(func(opts *wrapOptions) {
		opts.clock = c
	})
}

// WithClassifier overrides how errors are mapped to status codes when
// deciding retry eligibility. The default is callerrors.ErrorCode.
func WithClassifier(classify func(error) callerrors.Code) WrapOption {
	return wrapOptionFunc(func(opts *wrapOptions) {
		opts.classify = classify
	})
}

// WithRecognizedErrors overrides which failures the error-wrapping layer
// rewraps as CallError. The default recognizes status-coded errors.
func WithRecognizedErrors(recognized func(error) bool) WrapOption {
	return wrapOptionFunc(func(opts *wrapOptions) {
		opts.recognized = recognized
	})
}

// Wrap converts a bare call into one governed by the given settings.
//
// The result is built by layering decorators onto call: retrying (or plain
// timeout injection when the method has no retry policy), then page streaming
// or bundling if configured, otherwise uniform error wrapping. For most
// settings the result behaves like the original call; page-streaming methods
// return a *ResourceStream or *PageStream as their response, and bundling
// methods return a Future.
//
// Contradictory settings are rejected here, before any call is made: page
// streaming combined with bundling yields an IncompatibleSettingsError, and
// invalid settings values yield a ConfigError.
func Wrap(call UnaryCall, settings *CallSettings, opts ...WrapOption) (UnaryCall, error) {
	options := defaultWrapOptions
	for _, opt := range opts {
		opt.apply(&options)
	}

	if settings == nil {
		return nil, &ConfigError{Reason: "no call settings"}
	}
	if err := settings.validate(); err != nil {
		return nil, &ConfigError{Reason: "invalid call settings", Cause: err}
	}

	pageStreaming := settings.PageDescriptor != nil
	bundling := settings.Bundler != nil && settings.BundleDescriptor != nil
	if pageStreaming && bundling {
		return nil, &IncompatibleSettingsError{}
	}

	var wrapped UnaryCall
	if settings.Retry.enabled() {
		var err error
		wrapped, err = retryable(call, settings.Retry, options)
		if err != nil {
			return nil, err
		}
	} else {
		wrapped = withTimeout(call, settings.Timeout)
	}

	if pageStreaming {
		return pageStreamable(wrapped, settings.PageDescriptor, settings.PageToken, settings.FlattenPages), nil
	}
	if bundling {
		return bundleable(wrapped, settings.BundleDescriptor, settings.Bundler), nil
	}
	return catchErrors(wrapped, options.recognized), nil
}
