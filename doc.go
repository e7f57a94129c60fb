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

// Package callwrap turns a bare remote call into one governed by per-method
// policies: per-attempt timeouts, exponential-backoff retries under a total
// deadline, page streaming, and bundling.
//
// Usage
//
// Build CallSettings for each method, by hand or from a client configuration
// document with the callwrapconfig package, then wrap the bare call:
//
//  wrapped, err := callwrap.Wrap(stub.ListWidgets, settings["list_widgets"])
//  if err != nil {
//      // inconsistent settings: bad backoff values, or page streaming
//      // combined with bundling
//  }
//  resp, err := wrapped(ctx, &ListWidgetsRequest{Parent: "rooms/1"})
//
// For most settings the wrapped call behaves like the original. Methods
// configured for page streaming return a *ResourceStream (or *PageStream
// when FlattenPages is disabled) as their response value; methods configured
// for bundling return a Future.
//
// Retrying
//
// When a method has RetryOptions, each invocation runs attempts until one
// succeeds, an error outside the transient set occurs, or the total timeout
// elapses. Between attempts the loop sleeps a full-jitter exponential
// backoff, and each attempt's timeout grows by the configured multiplier,
// capped by the max timeout and by the time remaining until the deadline.
// Failures surface as *NonRetryableError or *DeadlineExceededError, both
// carrying the underlying cause.
//
// Calls without a retry policy get their configured timeout injected as a
// context deadline, and recognized transport failures are rewrapped as
// *CallError.
package callwrap
