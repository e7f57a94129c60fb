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

package callwrapconfig

import (
	"fmt"
	"time"
	"unicode"

	"go.uber.org/callwrap"
	"go.uber.org/callwrap/callerrors"
)

// BundlerFactory builds the external bundling dispatcher for one method from
// its accumulation thresholds. The returned Bundler's lifetime is the
// caller's to manage; CallSettings only references it.
type BundlerFactory func(callwrap.BundleOptions) callwrap.Bundler

// Params supplies the caller-side inputs to ConstructSettings: the static
// per-method descriptors, the override maps, and the default timeout.
//
// The override maps are tri-state: a method absent from the map inherits the
// document's configuration, a nil value disables the policy for the method,
// and a non-nil value replaces the document-derived configuration wholesale.
// Bundling overrides only adjust methods whose document configuration has a
// bundling section. Keys are canonical (lower_snake) method names.
type Params struct {
	// DefaultTimeout applies to every method that does not override it in
	// the document.
	DefaultTimeout time.Duration

	// RetryOverrides adjusts retry policies per method.
	RetryOverrides map[string]*callwrap.RetryOptions

	// BundlingOverrides adjusts bundling thresholds per method.
	BundlingOverrides map[string]*callwrap.BundleOptions

	// PageDescriptors marks methods as page-streaming and describes their
	// pagination fields. Static metadata, not read from the document.
	PageDescriptors map[string]*callwrap.PageDescriptor

	// BundleDescriptors marks methods as bundling-capable and describes
	// their discriminator and payload fields. Static metadata.
	BundleDescriptors map[string]*callwrap.BundleDescriptor

	// NewBundler builds a dispatcher for each method that ends up with both
	// a bundling configuration and a bundle descriptor. Required iff such a
	// method exists.
	NewBundler BundlerFactory
}

// ConstructSettings builds one CallSettings per method of the named service
// from the configuration document, which may be any value decodable into
// ClientConfig (for example the output of FromYAML).
//
// The returned map is keyed by canonical (lower_snake) method name.
// Inconsistent documents fail here with *callwrap.ConfigError: an unknown
// service, a retry_codes_name or retry_params_name that resolves to nothing,
// or an unknown retry code name.
func ConstructSettings(serviceName string, doc interface{}, params Params) (map[string]*callwrap.CallSettings, error) {
	var cfg ClientConfig
	if err := decodeInto(&cfg, doc); err != nil {
		return nil, &callwrap.ConfigError{Reason: "malformed configuration document", Cause: err}
	}

	service, ok := cfg.Interfaces[serviceName]
	if !ok {
		return nil, &callwrap.ConfigError{Reason: fmt.Sprintf("configuration not found for service %q", serviceName)}
	}

	defaults := make(map[string]*callwrap.CallSettings, len(service.Methods))
	for method, methodConfig := range service.Methods {
		name := toLowerSnake(method)

		retry, err := constructRetry(service, methodConfig, method, params.RetryOverrides, name)
		if err != nil {
			return nil, err
		}

		bundleDescriptor := params.BundleDescriptors[name]
		bundler, err := constructBundler(methodConfig, bundleDescriptor, params, name)
		if err != nil {
			return nil, err
		}

		timeout := params.DefaultTimeout
		if methodConfig.TimeoutMillis > 0 {
			timeout = time.Duration(methodConfig.TimeoutMillis) * time.Millisecond
		}

		settings := &callwrap.CallSettings{
			Timeout: timeout,
			Retry:   retry,
			Bundler: bundler,
		}
		if bundler != nil {
			settings.BundleDescriptor = bundleDescriptor
		}
		if pageDescriptor := params.PageDescriptors[name]; pageDescriptor != nil {
			settings.PageDescriptor = pageDescriptor
			settings.FlattenPages = true
		}
		defaults[name] = settings
	}

	return defaults, nil
}

// constructRetry resolves a method's retry options: the override if one is
// present, otherwise the document's named code set and backoff parameters.
func constructRetry(
	service ServiceConfig,
	methodConfig MethodConfig,
	method string,
	overrides map[string]*callwrap.RetryOptions,
	name string,
) (*callwrap.RetryOptions, error) {
	if override, ok := overrides[name]; ok {
		return override, nil
	}

	var codes []callerrors.Code
	if methodConfig.RetryCodesName != "" {
		codeNames, ok := service.RetryCodes[methodConfig.RetryCodesName]
		if !ok {
			return nil, &callwrap.ConfigError{
				Reason: fmt.Sprintf("method %q references unknown retry_codes_name %q", method, methodConfig.RetryCodesName),
			}
		}
		for _, codeName := range codeNames {
			var code callerrors.Code
			if err := code.UnmarshalText([]byte(codeName)); err != nil {
				return nil, &callwrap.ConfigError{
					Reason: fmt.Sprintf("method %q has unknown retry code %q", method, codeName),
					Cause:  err,
				}
			}
			codes = append(codes, code)
		}
	}

	// A dangling retry_params_name is a document inconsistency even when the
	// method's code set turns out to be empty, so resolve the reference
	// before deciding whether retry is enabled at all.
	var backoffConfig BackoffConfig
	if methodConfig.RetryParamsName != "" {
		var ok bool
		backoffConfig, ok = service.RetryParams[methodConfig.RetryParamsName]
		if !ok {
			return nil, &callwrap.ConfigError{
				Reason: fmt.Sprintf("method %q references unknown retry_params_name %q", method, methodConfig.RetryParamsName),
			}
		}
	}

	if len(codes) == 0 || methodConfig.RetryParamsName == "" {
		return nil, nil
	}

	return &callwrap.RetryOptions{
		Codes:   codes,
		Backoff: backoffSettings(backoffConfig),
	}, nil
}

// constructBundler builds a dispatcher only when the method has both a
// bundling section in the document and a bundle descriptor. Overrides adjust
// or disable a configured policy; they cannot enable bundling for a method
// the document never configured.
func constructBundler(
	methodConfig MethodConfig,
	descriptor *callwrap.BundleDescriptor,
	params Params,
	name string,
) (callwrap.Bundler, error) {
	if descriptor == nil || methodConfig.Bundling == nil {
		return nil, nil
	}

	options := bundleOptions(*methodConfig.Bundling)
	if override, ok := params.BundlingOverrides[name]; ok {
		options = override
	}
	if options == nil {
		return nil, nil
	}

	if params.NewBundler == nil {
		return nil, &callwrap.ConfigError{
			Reason: fmt.Sprintf("method %q is configured for bundling but no bundler factory was provided", name),
		}
	}
	return params.NewBundler(*options), nil
}

func backoffSettings(c BackoffConfig) callwrap.BackoffSettings {
	return callwrap.BackoffSettings{
		InitialRetryDelay:    time.Duration(c.InitialRetryDelayMillis) * time.Millisecond,
		RetryDelayMultiplier: c.RetryDelayMultiplier,
		MaxRetryDelay:        time.Duration(c.MaxRetryDelayMillis) * time.Millisecond,
		InitialRPCTimeout:    time.Duration(c.InitialRPCTimeoutMillis) * time.Millisecond,
		RPCTimeoutMultiplier: c.RPCTimeoutMultiplier,
		MaxRPCTimeout:        time.Duration(c.MaxRPCTimeoutMillis) * time.Millisecond,
		TotalTimeout:         time.Duration(c.TotalTimeoutMillis) * time.Millisecond,
	}
}

func bundleOptions(c BundlingConfig) *callwrap.BundleOptions {
	return &callwrap.BundleOptions{
		ElementCountThreshold: c.ElementCountThreshold,
		ElementCountLimit:     c.ElementCountLimit,
		RequestByteThreshold:  c.RequestByteThreshold,
		RequestByteLimit:      c.RequestByteLimit,
		DelayThreshold:        time.Duration(c.DelayThresholdMillis) * time.Millisecond,
	}
}

// toLowerSnake converts an UpperCamelCase method name to its canonical
// lower_snake form: ListWidgets becomes list_widgets.
func toLowerSnake(s string) string {
	if s == "" {
		return ""
	}
	out := make([]rune, 0, len(s)+4)
	for i, r := range s {
		if unicode.IsUpper(r) {
			if i > 0 {
				out = append(out, '_')
			}
			out = append(out, unicode.ToLower(r))
			continue
		}
		out = append(out, r)
	}
	return string(out)
}
