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

// Package callwrapconfig builds per-method CallSettings from a declarative
// client configuration document.
//
// The document is a nested mapping of the form:
//
//  interfaces:
//    some.service.v1.Widgets:
//      retry_codes:
//        idempotent: [UNAVAILABLE, DEADLINE_EXCEEDED]
//        non_idempotent: []
//      retry_params:
//        default:
//          initial_retry_delay_millis: 100
//          retry_delay_multiplier: 1.2
//          max_retry_delay_millis: 1000
//          initial_rpc_timeout_millis: 2000
//          rpc_timeout_multiplier: 1.5
//          max_rpc_timeout_millis: 30000
//          total_timeout_millis: 45000
//      methods:
//        ListWidgets:
//          retry_codes_name: idempotent
//          retry_params_name: default
//        PublishWidgets:
//          retry_codes_name: non_idempotent
//          retry_params_name: default
//          bundling:
//            element_count_threshold: 40
//            delay_threshold_millis: 100
//
// The document may be specified in YAML (see FromYAML) or as any Go-level
// map parsed from another markup format, as long as the information provided
// is the same. All *_millis values are converted to durations once, here;
// nothing downstream sees milliseconds.
package callwrapconfig

import (
	"github.com/uber-go/mapdecode"
)

const _tagName = "config"

// ClientConfig is the root of the configuration document.
type ClientConfig struct {
	// Interfaces maps fully-qualified service names to their configuration.
	Interfaces map[string]ServiceConfig `config:"interfaces"`
}

// ServiceConfig configures the methods of one service.
type ServiceConfig struct {
	// RetryCodes maps names to lists of retryable code names, referenced by
	// methods through retry_codes_name.
	RetryCodes map[string][]string `config:"retry_codes"`

	// RetryParams maps names to backoff parameter sets, referenced by
	// methods through retry_params_name.
	RetryParams map[string]BackoffConfig `config:"retry_params"`

	// Methods maps method names (as spelled in the service definition) to
	// their per-method configuration.
	Methods map[string]MethodConfig `config:"methods"`
}

// MethodConfig configures a single method.
type MethodConfig struct {
	// RetryCodesName references an entry of the service's retry_codes.
	RetryCodesName string `config:"retry_codes_name"`

	// RetryParamsName references an entry of the service's retry_params.
	RetryParamsName string `config:"retry_params_name"`

	// TimeoutMillis overrides the default per-call timeout for this method.
	TimeoutMillis int `config:"timeout_millis"`

	// Bundling, when present, marks the method as bundling-enabled and
	// carries the accumulation thresholds for its dispatcher.
	Bundling *BundlingConfig `config:"bundling"`
}

// BackoffConfig carries retry backoff parameters in document units
// (milliseconds).
type BackoffConfig struct {
	InitialRetryDelayMillis int     `config:"initial_retry_delay_millis"`
	RetryDelayMultiplier    float64 `config:"retry_delay_multiplier"`
	MaxRetryDelayMillis     int     `config:"max_retry_delay_millis"`
	InitialRPCTimeoutMillis int     `config:"initial_rpc_timeout_millis"`
	RPCTimeoutMultiplier    float64 `config:"rpc_timeout_multiplier"`
	MaxRPCTimeoutMillis     int     `config:"max_rpc_timeout_millis"`
	TotalTimeoutMillis      int     `config:"total_timeout_millis"`
}

// BundlingConfig carries bundling thresholds in document units.
type BundlingConfig struct {
	ElementCountThreshold int `config:"element_count_threshold"`
	ElementCountLimit     int `config:"element_count_limit"`
	RequestByteThreshold  int `config:"request_byte_threshold"`
	RequestByteLimit      int `config:"request_byte_limit"`
	DelayThresholdMillis  int `config:"delay_threshold_millis"`
}

// decodeInto decodes the src document into the dst struct using the config
// struct tags.
func decodeInto(dst interface{}, src interface{}) error {
	return mapdecode.Decode(dst, src, mapdecode.TagName(_tagName))
}
