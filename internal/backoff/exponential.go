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

// Package backoff provides the full-jitter exponential backoff strategy used
// between retry attempts.
package backoff

import (
	"errors"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/multierr"
)

// ExponentialOption defines options that can be applied to an exponential
// backoff strategy.
type ExponentialOption func(*exponentialOptions)

// exponentialOptions are the configuration options for an exponential backoff.
type exponentialOptions struct {
	first, max time.Duration
	multiplier float64
	newRand    func() *rand.Rand
}

func (e exponentialOptions) validate() (err error) {
	if e.first < 0 {
		err = multierr.Append(err, errors.New("invalid first delay for exponential backoff, need greater than or equal to zero"))
	}
	if e.max < 0 {
		err = multierr.Append(err, errors.New("invalid max delay for exponential backoff, need greater than or equal to zero"))
	}
	if e.multiplier < 1 {
		err = multierr.Append(err, errors.New("invalid multiplier for exponential backoff, need greater than or equal to one"))
	}
	return err
}

func newRand() *rand.Rand {
	return rand.New(rand.NewSource(time.Now().UnixNano()))
}

var defaultExponentialOpts = exponentialOptions{
	first:      10 * time.Millisecond,
	max:        time.Minute,
	multiplier: 2,
	newRand:    newRand,
}

// FirstBackoff sets the envelope the first backoff duration will be selected
// from.
func FirstBackoff(t time.Duration) ExponentialOption {
	return func(options *exponentialOptions) {
		options.first = t
	}
}

// MaxBackoff sets absolute max time that will ever be returned for a backoff.
func MaxBackoff(t time.Duration) ExponentialOption {
	return func(options *exponentialOptions) {
		options.max = t
	}
}

// Multiplier sets the factor by which the backoff envelope grows between
// attempts.
func Multiplier(m float64) ExponentialOption {
	return func(options *exponentialOptions) {
		options.multiplier = m
	}
}

// RandGenerator overrides the source of randomness, for deterministic tests.
func RandGenerator(f func() *rand.Rand) ExponentialOption {
	return func(options *exponentialOptions) {
		options.newRand = f
	}
}

// Exponential is a full-jitter exponential backoff strategy: the duration for
// attempt n is drawn uniformly from [0, envelope(n)], where the envelope
// starts at the configured first delay, grows by the multiplier with each
// attempt, and is capped at the max delay.
// https://www.awsarchitectureblog.com/2015/03/backoff.html
//
// It is safe to use concurrently.
type Exponential struct {
	opts exponentialOptions

	mu   sync.Mutex
	rand *rand.Rand
}

// NewExponential returns a new Exponential backoff strategy.
func NewExponential(opts ...ExponentialOption) (*Exponential, error) {
	options := defaultExponentialOpts
	for _, opt := range opts {
		opt(&options)
	}

	if err := options.validate(); err != nil {
		return nil, err
	}

	return &Exponential{
		opts: options,
		rand: options.newRand(),
	}, nil
}

// Envelope returns the upper bound of the duration range for the given
// attempt number (starting at zero).
func (e *Exponential) Envelope(attempt uint) time.Duration {
	envelope := float64(e.opts.first)
	for i := uint(0); i < attempt; i++ {
		envelope = envelope * e.opts.multiplier
		if envelope >= float64(e.opts.max) {
			return e.opts.max
		}
	}
	if envelope > float64(e.opts.max) {
		return e.opts.max
	}
	return time.Duration(envelope)
}

// Duration takes an attempt number and returns the jittered duration the
// caller should wait, in [0, Envelope(attempt)].
func (e *Exponential) Duration(attempt uint) time.Duration {
	envelope := e.Envelope(attempt)
	if envelope <= 0 {
		return 0
	}
	e.mu.Lock()
	d := time.Duration(e.rand.Int63n(int64(envelope) + 1))
	e.mu.Unlock()
	return d
}
