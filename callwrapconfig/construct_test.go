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
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/callwrap"
	"go.uber.org/callwrap/callerrors"
)

const _serviceName = "some.service.v1.Widgets"

const _configYAML = `
interfaces:
  some.service.v1.Widgets:
    retry_codes:
      idempotent: [UNAVAILABLE, DEADLINE_EXCEEDED]
      non_idempotent: []
    retry_params:
      default:
        initial_retry_delay_millis: 100
        retry_delay_multiplier: 1.2
        max_retry_delay_millis: 1000
        initial_rpc_timeout_millis: 2000
        rpc_timeout_multiplier: 1.5
        max_rpc_timeout_millis: 30000
        total_timeout_millis: 45000
    methods:
      ListWidgets:
        retry_codes_name: idempotent
        retry_params_name: default
      GetWidget:
        retry_codes_name: non_idempotent
        retry_params_name: default
        timeout_millis: 5000
      PublishWidgets:
        retry_codes_name: idempotent
        retry_params_name: default
        bundling:
          element_count_threshold: 40
          delay_threshold_millis: 100
`

func parseConfig(t *testing.T) interface{} {
	doc, err := FromYAML([]byte(_configYAML))
	require.NoError(t, err)
	return doc
}

// fakeBundler satisfies callwrap.Bundler without doing any batching.
type fakeBundler struct {
	options callwrap.BundleOptions
}

func (b *fakeBundler) Schedule(call callwrap.UnaryCall, key string, desc *callwrap.BundleDescriptor, req interface{}) (callwrap.Future, error) {
	return nil, errors.New("not implemented")
}

func newFakeBundler(options callwrap.BundleOptions) callwrap.Bundler {
	return &fakeBundler{options: options}
}

func TestConstructSettings(t *testing.T) {
	settings, err := ConstructSettings(_serviceName, parseConfig(t), Params{
		DefaultTimeout: 30 * time.Second,
	})
	require.NoError(t, err)
	require.Len(t, settings, 3)

	list, ok := settings["list_widgets"]
	require.True(t, ok, "method names must be canonicalized to lower_snake")
	require.NotNil(t, list.Retry)
	assert.Equal(t,
		[]callerrors.Code{callerrors.CodeUnavailable, callerrors.CodeDeadlineExceeded},
		list.Retry.Codes)
	assert.Equal(t, callwrap.BackoffSettings{
		InitialRetryDelay:    100 * time.Millisecond,
		RetryDelayMultiplier: 1.2,
		MaxRetryDelay:        time.Second,
		InitialRPCTimeout:    2 * time.Second,
		RPCTimeoutMultiplier: 1.5,
		MaxRPCTimeout:        30 * time.Second,
		TotalTimeout:         45 * time.Second,
	}, list.Retry.Backoff)
	assert.Equal(t, 30*time.Second, list.Timeout)

	get := settings["get_widget"]
	require.NotNil(t, get)
	assert.Nil(t, get.Retry, "an empty code set disables retry")
	assert.Equal(t, 5*time.Second, get.Timeout, "timeout_millis overrides the default")

	publish := settings["publish_widgets"]
	require.NotNil(t, publish)
	assert.Nil(t, publish.Bundler, "no bundle descriptor means no bundling")
}

func TestConstructSettingsWiresWrap(t *testing.T) {
	settings, err := ConstructSettings(_serviceName, parseConfig(t), Params{
		DefaultTimeout: 30 * time.Second,
	})
	require.NoError(t, err)

	calls := 0
	wrapped, err := callwrap.Wrap(func(ctx context.Context, req interface{}) (interface{}, error) {
		calls++
		return req, nil
	}, settings["get_widget"])
	require.NoError(t, err)

	resp, err := wrapped(context.Background(), "request")
	require.NoError(t, err)
	assert.Equal(t, "request", resp)
	assert.Equal(t, 1, calls)
}

func TestConstructSettingsPageStreaming(t *testing.T) {
	descriptor := &callwrap.PageDescriptor{
		RequestTokenField:  "PageToken",
		ResponseTokenField: "NextPageToken",
		ResourceField:      "Items",
	}
	settings, err := ConstructSettings(_serviceName, parseConfig(t), Params{
		DefaultTimeout:  30 * time.Second,
		PageDescriptors: map[string]*callwrap.PageDescriptor{"list_widgets": descriptor},
	})
	require.NoError(t, err)

	list := settings["list_widgets"]
	assert.Equal(t, descriptor, list.PageDescriptor)
	assert.True(t, list.FlattenPages, "paged methods default to the flattened stream")
	assert.Nil(t, settings["get_widget"].PageDescriptor)
}

func TestConstructSettingsBundling(t *testing.T) {
	descriptor := &callwrap.BundleDescriptor{
		DiscriminatorFields: []string{"Parent"},
		BundledField:        "Items",
	}
	settings, err := ConstructSettings(_serviceName, parseConfig(t), Params{
		DefaultTimeout:    30 * time.Second,
		BundleDescriptors: map[string]*callwrap.BundleDescriptor{"publish_widgets": descriptor},
		NewBundler:        newFakeBundler,
	})
	require.NoError(t, err)

	publish := settings["publish_widgets"]
	require.NotNil(t, publish.Bundler)
	assert.Equal(t, descriptor, publish.BundleDescriptor)

	bundler := publish.Bundler.(*fakeBundler)
	assert.Equal(t, callwrap.BundleOptions{
		ElementCountThreshold: 40,
		DelayThreshold:        100 * time.Millisecond,
	}, bundler.options, "document thresholds reach the bundler factory in duration units")

	assert.Nil(t, settings["list_widgets"].Bundler, "no bundling stanza means no dispatcher")
}

func TestConstructSettingsBundlingWithoutFactory(t *testing.T) {
	descriptor := &callwrap.BundleDescriptor{
		DiscriminatorFields: []string{"Parent"},
		BundledField:        "Items",
	}
	_, err := ConstructSettings(_serviceName, parseConfig(t), Params{
		DefaultTimeout:    30 * time.Second,
		BundleDescriptors: map[string]*callwrap.BundleDescriptor{"publish_widgets": descriptor},
	})
	var configErr *callwrap.ConfigError
	require.True(t, errors.As(err, &configErr))
}

func TestConstructSettingsRetryOverrides(t *testing.T) {
	replacement := &callwrap.RetryOptions{
		Codes: []callerrors.Code{callerrors.CodeAborted},
		Backoff: callwrap.BackoffSettings{
			InitialRetryDelay:    time.Millisecond,
			RetryDelayMultiplier: 2,
			MaxRetryDelay:        time.Second,
			InitialRPCTimeout:    time.Second,
			RPCTimeoutMultiplier: 1,
			MaxRPCTimeout:        time.Second,
			TotalTimeout:         10 * time.Second,
		},
	}
	settings, err := ConstructSettings(_serviceName, parseConfig(t), Params{
		DefaultTimeout: 30 * time.Second,
		RetryOverrides: map[string]*callwrap.RetryOptions{
			"list_widgets":    nil,
			"publish_widgets": replacement,
		},
	})
	require.NoError(t, err)

	assert.Nil(t, settings["list_widgets"].Retry, "a nil override disables retry")
	assert.Equal(t, replacement, settings["publish_widgets"].Retry, "a non-nil override replaces the document policy")
	assert.Nil(t, settings["get_widget"].Retry, "absent methods inherit the document")
}

func TestConstructSettingsBundlingOverrides(t *testing.T) {
	descriptor := &callwrap.BundleDescriptor{
		DiscriminatorFields: []string{"Parent"},
		BundledField:        "Items",
	}
	replacement := &callwrap.BundleOptions{ElementCountThreshold: 5}

	t.Run("disabled", func(t *testing.T) {
		settings, err := ConstructSettings(_serviceName, parseConfig(t), Params{
			DefaultTimeout:    30 * time.Second,
			BundleDescriptors: map[string]*callwrap.BundleDescriptor{"publish_widgets": descriptor},
			BundlingOverrides: map[string]*callwrap.BundleOptions{"publish_widgets": nil},
			NewBundler:        newFakeBundler,
		})
		require.NoError(t, err)
		assert.Nil(t, settings["publish_widgets"].Bundler)
	})

	t.Run("cannot enable unconfigured bundling", func(t *testing.T) {
		settings, err := ConstructSettings(_serviceName, parseConfig(t), Params{
			DefaultTimeout:    30 * time.Second,
			BundleDescriptors: map[string]*callwrap.BundleDescriptor{"list_widgets": descriptor},
			BundlingOverrides: map[string]*callwrap.BundleOptions{"list_widgets": replacement},
			NewBundler:        newFakeBundler,
		})
		require.NoError(t, err)
		assert.Nil(t, settings["list_widgets"].Bundler,
			"an override must not enable bundling for a method without a bundling section")
		assert.Nil(t, settings["list_widgets"].BundleDescriptor)
	})

	t.Run("replaced", func(t *testing.T) {
		settings, err := ConstructSettings(_serviceName, parseConfig(t), Params{
			DefaultTimeout:    30 * time.Second,
			BundleDescriptors: map[string]*callwrap.BundleDescriptor{"publish_widgets": descriptor},
			BundlingOverrides: map[string]*callwrap.BundleOptions{"publish_widgets": replacement},
			NewBundler:        newFakeBundler,
		})
		require.NoError(t, err)
		bundler := settings["publish_widgets"].Bundler.(*fakeBundler)
		assert.Equal(t, *replacement, bundler.options)
	})
}

func TestConstructSettingsErrors(t *testing.T) {
	tests := []struct {
		msg     string
		service string
		doc     string
	}{
		{
			msg:     "unknown service",
			service: "some.service.v1.Gadgets",
			doc:     _configYAML,
		},
		{
			msg:     "unknown retry_codes_name",
			service: _serviceName,
			doc: `
interfaces:
  some.service.v1.Widgets:
    retry_codes:
      idempotent: [UNAVAILABLE]
    retry_params:
      default: {initial_retry_delay_millis: 1, retry_delay_multiplier: 2, max_retry_delay_millis: 10, initial_rpc_timeout_millis: 10, rpc_timeout_multiplier: 1, max_rpc_timeout_millis: 10, total_timeout_millis: 100}
    methods:
      ListWidgets:
        retry_codes_name: no_such_set
        retry_params_name: default
`,
		},
		{
			msg:     "unknown retry_params_name",
			service: _serviceName,
			doc: `
interfaces:
  some.service.v1.Widgets:
    retry_codes:
      idempotent: [UNAVAILABLE]
    retry_params: {}
    methods:
      ListWidgets:
        retry_codes_name: idempotent
        retry_params_name: no_such_params
`,
		},
		{
			msg:     "unknown retry_params_name with empty code set",
			service: _serviceName,
			doc: `
interfaces:
  some.service.v1.Widgets:
    retry_codes:
      non_idempotent: []
    retry_params: {}
    methods:
      ListWidgets:
        retry_codes_name: non_idempotent
        retry_params_name: no_such_params
`,
		},
		{
			msg:     "unknown retry code",
			service: _serviceName,
			doc: `
interfaces:
  some.service.v1.Widgets:
    retry_codes:
      idempotent: [NOT_A_CODE]
    retry_params:
      default: {initial_retry_delay_millis: 1, retry_delay_multiplier: 2, max_retry_delay_millis: 10, initial_rpc_timeout_millis: 10, rpc_timeout_multiplier: 1, max_rpc_timeout_millis: 10, total_timeout_millis: 100}
    methods:
      ListWidgets:
        retry_codes_name: idempotent
        retry_params_name: default
`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			doc, err := FromYAML([]byte(tt.doc))
			require.NoError(t, err)
			_, err = ConstructSettings(tt.service, doc, Params{DefaultTimeout: time.Second})
			var configErr *callwrap.ConfigError
			require.True(t, errors.As(err, &configErr), "got %v", err)
		})
	}
}

func TestConstructSettingsMalformedDocument(t *testing.T) {
	_, err := ConstructSettings(_serviceName, map[string]interface{}{
		"interfaces": "not a mapping",
	}, Params{})
	var configErr *callwrap.ConfigError
	require.True(t, errors.As(err, &configErr))
}

func TestFromYAMLMalformed(t *testing.T) {
	_, err := FromYAML([]byte("interfaces: ["))
	var configErr *callwrap.ConfigError
	require.True(t, errors.As(err, &configErr))
}

func TestToLowerSnake(t *testing.T) {
	tests := []struct {
		give string
		want string
	}{
		{give: "ListWidgets", want: "list_widgets"},
		{give: "Get", want: "get"},
		{give: "getWidget", want: "get_widget"},
		{give: "already_snake", want: "already_snake"},
		{give: "", want: ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, toLowerSnake(tt.give), "toLowerSnake(%q)", tt.give)
	}
}
