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

import "context"

// catchErrors rewraps recognized transport failures in CallError, preserving
// the original as the cause. It is applied only when no retry policy wraps
// the call; the retry layer classifies and wraps failures for itself.
// Failures outside the recognized set propagate unchanged.
func catchErrors(call UnaryCall, recognized func(error) bool) UnaryCall {
	return func(ctx context.Context, req interface{}) (interface{}, error) {
		resp, err := call(ctx, req)
		if err == nil {
			return resp, nil
		}
		if recognized(err) {
			return nil, &CallError{cause: err}
		}
		return nil, err
	}
}
