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
	"errors"

	"go.uber.org/callwrap/internal/reqfield"
)

// ErrStreamDone is returned by Next when a stream has yielded its last
// element or page.
var ErrStreamDone = errors.New("no more items in stream")

// pageStreamable converts a call over a token-paginated protocol into one
// that returns a lazy stream: a *ResourceStream of individual resources when
// flatten is set, otherwise a *PageStream of pages. No underlying call is
// issued until the first Next.
//
// The request is mutated in place to carry the continuation token between
// calls; callers that need the original request must copy it first.
func pageStreamable(call UnaryCall, desc *PageDescriptor, pageToken string, flatten bool) UnaryCall {
	return func(ctx context.Context, req interface{}) (interface{}, error) {
		if flatten {
			return &ResourceStream{ctx: ctx, call: call, desc: desc, req: req}, nil
		}
		if pageToken != "" {
			if err := reqfield.Set(req, desc.RequestTokenField, pageToken); err != nil {
				return nil, err
			}
		}
		return &PageStream{ctx: ctx, call: call, desc: desc, req: req}, nil
	}
}

// ResourceStream is a lazy sequence of individual resources spanning every
// page of a paginated method. It is not safe for concurrent use.
type ResourceStream struct {
	ctx  context.Context
	call UnaryCall
	desc *PageDescriptor
	req  interface{}

	buf  []interface{}
	idx  int
	done bool
}

// Next returns the next resource, issuing underlying calls as pages are
// exhausted. It returns ErrStreamDone after the last resource.
func (s *ResourceStream) Next() (interface{}, error) {
	for {
		if s.idx < len(s.buf) {
			item := s.buf[s.idx]
			s.idx++
			return item, nil
		}
		if s.done {
			return nil, ErrStreamDone
		}

		resp, err := s.call(s.ctx, s.req)
		if err != nil {
			return nil, err
		}
		items, err := reqfield.GetSlice(resp, s.desc.ResourceField)
		if err != nil {
			return nil, err
		}
		token, err := reqfield.GetString(resp, s.desc.ResponseTokenField)
		if err != nil {
			return nil, err
		}
		if token == "" {
			s.done = true
		} else if err := reqfield.Set(s.req, s.desc.RequestTokenField, token); err != nil {
			return nil, err
		}
		s.buf, s.idx = items, 0
	}
}

// PageStream is a lazy sequence of pages of a paginated method. It is not
// safe for concurrent use.
type PageStream struct {
	ctx  context.Context
	call UnaryCall
	desc *PageDescriptor
	req  interface{}

	done bool
}

// Next returns the next page, issuing one underlying call. It returns
// ErrStreamDone after the page whose continuation token was empty.
func (s *PageStream) Next() (*Page, error) {
	if s.done {
		return nil, ErrStreamDone
	}

	resp, err := s.call(s.ctx, s.req)
	if err != nil {
		return nil, err
	}
	elements, err := reqfield.GetSlice(resp, s.desc.ResourceField)
	if err != nil {
		return nil, err
	}
	token, err := reqfield.GetString(resp, s.desc.ResponseTokenField)
	if err != nil {
		return nil, err
	}
	if token == "" {
		s.done = true
	} else if err := reqfield.Set(s.req, s.desc.RequestTokenField, token); err != nil {
		return nil, err
	}
	return &Page{response: resp, elements: elements, token: token}, nil
}

// Page exposes the resource collection of one response.
type Page struct {
	response interface{}
	elements []interface{}
	token    string
}

// Elements returns the page's resources in response order.
func (p *Page) Elements() []interface{} {
	return p.elements
}

// Response returns the raw response the page was extracted from.
func (p *Page) Response() interface{} {
	return p.response
}

// Token returns the continuation token leading to the following page, or the
// empty string on the last page.
func (p *Page) Token() string {
	return p.token
}
