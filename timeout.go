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
	"time"
)

// withTimeout returns a call that supplies d to the callee as a context
// deadline on every invocation. The caller's signature is unchanged; this
// exists so the retry layer can vary the timeout per attempt without the
// caller threading it through. A zero d leaves the context untouched.
func withTimeout(call UnaryCall, d time.Duration) UnaryCall {
	if d == 0 {
		return call
	}
	return func(ctx context.Context, req interface{}) (interface{}, error) {
		subCtx, cancel := context.WithTimeout(ctx, d)
		resp, err := call(subCtx, req)
		cancel() // Clear the new ctx immediately after the call
		return resp, err
	}
}
