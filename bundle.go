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
	"strings"
	"time"

	"go.uber.org/callwrap/internal/reqfield"
)

// Future is a deferred result handle returned by a bundled call. Its
// resolution is the Bundler's responsibility.
type Future interface {
	// Result blocks until the bundled call completes or the context ends.
	Result(ctx context.Context) (interface{}, error)
}

// Bundler batches many logical calls into fewer physical ones. It is an
// external collaborator: the accumulation policy (element and byte
// thresholds, delay-based flushing) and its concurrency discipline live
// entirely behind this interface, which must be safe for concurrent use.
type Bundler interface {
	// Schedule adds the request to the bundle identified by key and returns
	// a handle to the eventual result.
	Schedule(call UnaryCall, key string, desc *BundleDescriptor, req interface{}) (Future, error)
}

// BundleOptions carries the accumulation thresholds a Bundler is constructed
// with. This package only transports these values from configuration to the
// Bundler factory; it never interprets them.
type BundleOptions struct {
	ElementCountThreshold int
	ElementCountLimit     int
	RequestByteThreshold  int
	RequestByteLimit      int
	DelayThreshold        time.Duration
}

// bundleKeySeparator joins discriminator values. The unit separator keeps
// multi-field keys unambiguous for values that contain printable delimiters.
const bundleKeySeparator = "\x1f"

// bundleable converts a call into one that hands its request to the bundler
// and returns a Future instead of a response. No batching happens here; this
// layer only derives the bundle key and delegates.
func bundleable(call UnaryCall, desc *BundleDescriptor, bundler Bundler) UnaryCall {
	return func(ctx context.Context, req interface{}) (interface{}, error) {
		key, err := BundleKey(req, desc.DiscriminatorFields)
		if err != nil {
			return nil, err
		}
		future, err := bundler.Schedule(call, key, desc, req)
		if err != nil {
			return nil, err
		}
		return future, nil
	}
}

// BundleKey derives a bundle key from the named request fields. The
// derivation is deterministic and order-sensitive: requests with equal values
// in the discriminator fields produce equal keys regardless of any other
// field.
func BundleKey(req interface{}, discriminatorFields []string) (string, error) {
	parts := make([]string, 0, len(discriminatorFields))
	for _, field := range discriminatorFields {
		value, err := reqfield.GetString(req, field)
		if err != nil {
			return "", err
		}
		parts = append(parts, value)
	}
	return strings.Join(parts, bundleKeySeparator), nil
}
