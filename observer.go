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
	"github.com/uber-go/tally"
	"go.uber.org/zap"
)

// retryObserver records metrics and logs for the retry loop.
type retryObserver struct {
	logger *zap.Logger

	callCounter        tally.Counter
	retryCounter       tally.Counter
	successCounter     tally.Counter
	unretryableCounter tally.Counter
	deadlineCounter    tally.Counter
}

func newRetryObserver(logger *zap.Logger, scope tally.Scope) *retryObserver {
	return &retryObserver{
		logger:             logger,
		callCounter:        scope.Counter("retry_calls"),
		retryCounter:       scope.Counter("retries"),
		successCounter:     scope.Counter("retry_successes"),
		unretryableCounter: scope.Tagged(map[string]string{"error": "unretryable"}).Counter("retry_failures"),
		deadlineCounter:    scope.Tagged(map[string]string{"error": "deadline"}).Counter("retry_failures"),
	}
}

func (o *retryObserver) call() {
	o.callCounter.Inc(1)
}

func (o *retryObserver) retry(err error) {
	o.retryCounter.Inc(1)
	o.logger.Debug("retrying after transient failure", zap.Error(err))
}

func (o *retryObserver) success() {
	o.successCounter.Inc(1)
}

func (o *retryObserver) unretryableError(err error) {
	o.unretryableCounter.Inc(1)
	o.logger.Debug("aborting retries on non-retryable failure", zap.Error(err))
}

func (o *retryObserver) deadlineError(err error) {
	o.deadlineCounter.Inc(1)
	o.logger.Debug("retry total timeout exceeded", zap.Error(err))
}
