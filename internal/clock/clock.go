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

// Package clock abstracts wall-clock time so that deadline arithmetic and
// backoff sleeps can be driven programmatically in tests.
package clock

import "time"

// Clock is the subset of wall-clock behavior the retry loop depends on.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// Sleep pauses the caller for the given duration.
	Sleep(d time.Duration)
}

// RealClock implements a real-time clock by simply wrapping the time package
// functions.
type RealClock struct{}

// NewReal returns an instance of a real clock (changing in the very real
// fourth dimension).
func NewReal() RealClock {
	return RealClock{}
}

var _ Clock = (*RealClock)(nil)

// Now returns the current time on the real clock.
func (RealClock) Now() time.Time { return time.Now() }

// Sleep pauses the goroutine for the given duration.
func (RealClock) Sleep(d time.Duration) { time.Sleep(d) }
