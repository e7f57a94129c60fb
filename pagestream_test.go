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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type listRequest struct {
	Parent    string
	PageToken string
}

type listResponse struct {
	Items         []string
	NextPageToken string
}

var widgetPageDescriptor = &PageDescriptor{
	RequestTokenField:  "PageToken",
	ResponseTokenField: "NextPageToken",
	ResourceField:      "Items",
}

// pagedStub serves three pages of sizes 2, 2, 1, keyed by continuation
// token, and counts underlying calls.
type pagedStub struct {
	calls  int
	tokens []string
}

func (s *pagedStub) call(ctx context.Context, req interface{}) (interface{}, error) {
	s.calls++
	r := req.(*listRequest)
	s.tokens = append(s.tokens, r.PageToken)
	switch r.PageToken {
	case "":
		return &listResponse{Items: []string{"a", "b"}, NextPageToken: "p2"}, nil
	case "p2":
		return &listResponse{Items: []string{"c", "d"}, NextPageToken: "p3"}, nil
	case "p3":
		return &listResponse{Items: []string{"e"}}, nil
	default:
		return nil, assertUnknownToken(r.PageToken)
	}
}

func assertUnknownToken(token string) error {
	return &ConfigError{Reason: "unexpected page token " + token}
}

func pageSettings(flatten bool) *CallSettings {
	return &CallSettings{
		Timeout:        time.Second,
		PageDescriptor: widgetPageDescriptor,
		FlattenPages:   flatten,
	}
}

func TestFlattenedPageStream(t *testing.T) {
	stub := &pagedStub{}
	wrapped, err := Wrap(stub.call, pageSettings(true))
	require.NoError(t, err)

	resp, err := wrapped(context.Background(), &listRequest{Parent: "rooms/1"})
	require.NoError(t, err)
	stream, ok := resp.(*ResourceStream)
	require.True(t, ok)

	assert.Equal(t, 0, stub.calls, "no call may be issued before the first pull")

	var items []interface{}
	for {
		item, err := stream.Next()
		if err == ErrStreamDone {
			break
		}
		require.NoError(t, err)
		items = append(items, item)
	}

	assert.Equal(t, []interface{}{"a", "b", "c", "d", "e"}, items)
	assert.Equal(t, 3, stub.calls, "three pages mean exactly three underlying calls")
	assert.Equal(t, []string{"", "p2", "p3"}, stub.tokens, "tokens must thread through the request")

	// Exhausted streams stay exhausted.
	_, err = stream.Next()
	assert.Equal(t, ErrStreamDone, err)
	assert.Equal(t, 3, stub.calls)
}

func TestFlattenedPageStreamIsLazy(t *testing.T) {
	stub := &pagedStub{}
	wrapped, err := Wrap(stub.call, pageSettings(true))
	require.NoError(t, err)

	resp, err := wrapped(context.Background(), &listRequest{})
	require.NoError(t, err)
	stream := resp.(*ResourceStream)

	// Pulling the first two elements needs only the first page.
	for i := 0; i < 2; i++ {
		_, err := stream.Next()
		require.NoError(t, err)
	}
	assert.Equal(t, 1, stub.calls, "consuming the first page must not prefetch the second")
}

func TestPagedStream(t *testing.T) {
	stub := &pagedStub{}
	wrapped, err := Wrap(stub.call, pageSettings(false))
	require.NoError(t, err)

	resp, err := wrapped(context.Background(), &listRequest{})
	require.NoError(t, err)
	stream, ok := resp.(*PageStream)
	require.True(t, ok)

	assert.Equal(t, 0, stub.calls, "no call may be issued before the first pull")

	var pages [][]interface{}
	var tokens []string
	for {
		page, err := stream.Next()
		if err == ErrStreamDone {
			break
		}
		require.NoError(t, err)
		pages = append(pages, page.Elements())
		tokens = append(tokens, page.Token())
		assert.NotNil(t, page.Response())
	}

	require.Len(t, pages, 3, "three pages, no cross-page flattening")
	assert.Equal(t, []interface{}{"a", "b"}, pages[0])
	assert.Equal(t, []interface{}{"c", "d"}, pages[1])
	assert.Equal(t, []interface{}{"e"}, pages[2])
	assert.Equal(t, []string{"p2", "p3", ""}, tokens)
	assert.Equal(t, 3, stub.calls)
}

func TestPagedStreamSeedsInitialToken(t *testing.T) {
	stub := &pagedStub{}
	settings := pageSettings(false)
	settings.PageToken = "p3"
	wrapped, err := Wrap(stub.call, settings)
	require.NoError(t, err)

	resp, err := wrapped(context.Background(), &listRequest{})
	require.NoError(t, err)
	stream := resp.(*PageStream)

	page, err := stream.Next()
	require.NoError(t, err)
	assert.Equal(t, []interface{}{"e"}, page.Elements())

	_, err = stream.Next()
	assert.Equal(t, ErrStreamDone, err)
	assert.Equal(t, []string{"p3"}, stub.tokens, "the configured token must seed the first request")
}

func TestPageStreamMutatesRequestInPlace(t *testing.T) {
	stub := &pagedStub{}
	wrapped, err := Wrap(stub.call, pageSettings(true))
	require.NoError(t, err)

	req := &listRequest{}
	resp, err := wrapped(context.Background(), req)
	require.NoError(t, err)
	stream := resp.(*ResourceStream)

	for i := 0; i < 2; i++ {
		_, err := stream.Next()
		require.NoError(t, err)
	}
	assert.Equal(t, "p2", req.PageToken, "the caller's request carries the token forward")
}

func TestPageStreamSurfacesCallErrors(t *testing.T) {
	wrapped, err := Wrap(func(ctx context.Context, req interface{}) (interface{}, error) {
		return nil, assertUnknownToken("boom")
	}, pageSettings(true))
	require.NoError(t, err)

	resp, err := wrapped(context.Background(), &listRequest{})
	require.NoError(t, err, "wrapping is lazy; errors surface on Next")
	stream := resp.(*ResourceStream)

	_, err = stream.Next()
	assert.Error(t, err)
}
