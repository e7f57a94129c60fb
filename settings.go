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
	"errors"
	"fmt"
	"time"

	"go.uber.org/callwrap/callerrors"
	"go.uber.org/multierr"
)

// BackoffSettings parameterizes the retry loop: how the delay between
// attempts and the per-attempt timeout grow, and how long the whole loop may
// run. All durations are wall-clock time; configuration documents carry
// milliseconds and are converted once by callwrapconfig.
//
// Immutable once handed to Wrap.
type BackoffSettings struct {
	// InitialRetryDelay is the envelope the first backoff duration is drawn
	// from.
	InitialRetryDelay time.Duration

	// RetryDelayMultiplier grows the delay envelope after each attempt. Must
	// be at least 1.
	RetryDelayMultiplier float64

	// MaxRetryDelay caps the delay envelope.
	MaxRetryDelay time.Duration

	// InitialRPCTimeout is the timeout applied to the first attempt.
	InitialRPCTimeout time.Duration

	// RPCTimeoutMultiplier grows the per-attempt timeout after each attempt.
	// Must be at least 1.
	RPCTimeoutMultiplier float64

	// MaxRPCTimeout caps the per-attempt timeout.
	MaxRPCTimeout time.Duration

	// TotalTimeout bounds the wall-clock span of the whole retry loop. The
	// deadline is computed once, when the wrapped call is invoked.
	TotalTimeout time.Duration
}

func (b BackoffSettings) validate() (err error) {
	if b.InitialRetryDelay < 0 {
		err = multierr.Append(err, errors.New("invalid initial retry delay, need greater than or equal to zero"))
	}
	if b.RetryDelayMultiplier < 1 {
		err = multierr.Append(err, errors.New("invalid retry delay multiplier, need greater than or equal to one"))
	}
	if b.MaxRetryDelay < 0 {
		err = multierr.Append(err, errors.New("invalid max retry delay, need greater than or equal to zero"))
	}
	if b.InitialRPCTimeout < 0 {
		err = multierr.Append(err, errors.New("invalid initial rpc timeout, need greater than or equal to zero"))
	}
	if b.RPCTimeoutMultiplier < 1 {
		err = multierr.Append(err, errors.New("invalid rpc timeout multiplier, need greater than or equal to one"))
	}
	if b.MaxRPCTimeout < 0 {
		err = multierr.Append(err, errors.New("invalid max rpc timeout, need greater than or equal to zero"))
	}
	if b.TotalTimeout < 0 {
		err = multierr.Append(err, errors.New("invalid total timeout, need greater than or equal to zero"))
	}
	return err
}

// RetryOptions selects which error codes are transient for a method and how
// to back off between attempts. A nil RetryOptions, or one with no codes,
// means the method is not retried.
type RetryOptions struct {
	// Codes are the error classes considered transient.
	Codes []callerrors.Code

	// Backoff parameterizes the retry loop.
	Backoff BackoffSettings
}

func (r *RetryOptions) enabled() bool {
	return r != nil && len(r.Codes) > 0
}

// PageDescriptor names the request and response fields that carry the
// pagination protocol: the continuation token written into the request, the
// next token read from the response, and the resource collection read from
// the response. Field names refer to exported struct fields.
type PageDescriptor struct {
	// RequestTokenField is the request field the continuation token is
	// written to between calls.
	RequestTokenField string

	// ResponseTokenField is the response field carrying the next token. An
	// empty token ends the stream.
	ResponseTokenField string

	// ResourceField is the response field carrying the page's resources. It
	// must be a slice.
	ResourceField string
}

func (d *PageDescriptor) validate() (err error) {
	if d.RequestTokenField == "" {
		err = multierr.Append(err, errors.New("page descriptor needs a request token field"))
	}
	if d.ResponseTokenField == "" {
		err = multierr.Append(err, errors.New("page descriptor needs a response token field"))
	}
	if d.ResourceField == "" {
		err = multierr.Append(err, errors.New("page descriptor needs a resource field"))
	}
	return err
}

// BundleDescriptor names the request fields a bundle key is derived from and
// the fields that carry the batched payload. The accumulation policy itself
// lives in the external Bundler.
type BundleDescriptor struct {
	// DiscriminatorFields are the request fields whose values, in order,
	// form the bundle key. Requests with equal discriminator values land in
	// the same bundle.
	DiscriminatorFields []string

	// BundledField is the request field carrying the elements to batch.
	BundledField string

	// SubresponseField is the response field carrying per-request results,
	// if the method splits its response. Optional.
	SubresponseField string
}

func (d *BundleDescriptor) validate() (err error) {
	if d.BundledField == "" {
		err = multierr.Append(err, errors.New("bundle descriptor needs a bundled field"))
	}
	return err
}

// CallSettings aggregates every policy that applies to one method: the plain
// timeout, the optional retry options, the optional page descriptor, and the
// optional bundling configuration. One value is built per method per client
// configuration and never mutated afterwards, so concurrent call sites may
// share it freely. The Bundler is a non-owning reference; its lifetime is
// managed by whoever constructed it.
type CallSettings struct {
	// Timeout applies to calls that are not retried. Zero means no timeout.
	Timeout time.Duration

	// Retry enables retrying when non-nil with a non-empty code set.
	Retry *RetryOptions

	// PageDescriptor enables page streaming when non-nil.
	PageDescriptor *PageDescriptor

	// PageToken seeds the first request of a paged stream.
	PageToken string

	// FlattenPages selects between one lazy sequence of resources (true) and
	// page-by-page iteration (false).
	FlattenPages bool

	// BundleDescriptor and Bundler together enable bundling.
	BundleDescriptor *BundleDescriptor
	Bundler          Bundler
}

func (s *CallSettings) validate() error {
	var err error
	if s.Timeout < 0 {
		err = multierr.Append(err, fmt.Errorf("invalid timeout %v, need greater than or equal to zero", s.Timeout))
	}
	if s.Retry.enabled() {
		err = multierr.Append(err, s.Retry.Backoff.validate())
	}
	if s.PageDescriptor != nil {
		err = multierr.Append(err, s.PageDescriptor.validate())
	}
	if s.BundleDescriptor != nil {
		err = multierr.Append(err, s.BundleDescriptor.validate())
	}
	return err
}
