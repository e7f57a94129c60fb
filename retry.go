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
	"errors"
	"time"

	"go.uber.org/callwrap/callerrors"
	"go.uber.org/callwrap/internal/backoff"
)

// retryable returns a call equivalent to the given one that retries on the
// error classes in retry.Codes, backing off with full jitter between attempts
// and growing the per-attempt timeout, until the total timeout elapses.
//
// Each invocation owns its own delay, timeout, and deadline state, so
// concurrent invocations of the returned call do not interfere.
func retryable(call UnaryCall, retry *RetryOptions, options wrapOptions) (UnaryCall, error) {
	settings := retry.Backoff
	strategy, err := backoff.NewExponential(
		backoff.FirstBackoff(settings.InitialRetryDelay),
		backoff.Multiplier(settings.RetryDelayMultiplier),
		backoff.MaxBackoff(settings.MaxRetryDelay),
	)
	if err != nil {
		return nil, &ConfigError{Reason: "invalid backoff settings", Cause: err}
	}

	transient := make(map[callerrors.Code]struct{}, len(retry.Codes))
	for _, code := range retry.Codes {
		transient[code] = struct{}{}
	}

	clk := options.clock
	observer := newRetryObserver(options.logger, options.scope)

	return func(ctx context.Context, req interface{}) (interface{}, error) {
		timeout := settings.InitialRPCTimeout
		deadline := clk.Now().Add(settings.TotalTimeout)
		var lastErr error

		for attempt := uint(0); ; attempt++ {
			now := clk.Now()
			if !now.Before(deadline) {
				break
			}
			// The remaining-deadline cap can drive the timeout to zero or
			// below; issuing a call with a non-positive timeout would expire
			// it before the callee runs, so treat this as deadline expiry.
			if attempt > 0 && timeout <= 0 {
				break
			}

			observer.call()
			if attempt > 0 {
				observer.retry(lastErr)
			}

			resp, err := withTimeout(call, timeout)(ctx, req)
			if err == nil {
				observer.success()
				return resp, nil
			}

			if _, ok := transient[options.classify(err)]; !ok {
				observer.unretryableError(err)
				return nil, &NonRetryableError{cause: err}
			}
			lastErr = err

			clk.Sleep(strategy.Duration(attempt))
			now = clk.Now()
			timeout = minDuration(
				time.Duration(float64(timeout)*settings.RPCTimeoutMultiplier),
				settings.MaxRPCTimeout,
				deadline.Sub(now),
			)
		}

		observer.deadlineError(lastErr)
		if lastErr == nil {
			lastErr = errors.New("no response was received")
		}
		return nil, &DeadlineExceededError{cause: lastErr}
	}, nil
}

func minDuration(ds ...time.Duration) time.Duration {
	min := ds[0]
	for _, d := range ds[1:] {
		if d < min {
			min = d
		}
	}
	return min
}
