// Licensed under the Apache License, Version 2.0 (the "License"); you may not
// use this file except in compliance with the License. You may obtain a copy of
// the License at
//
//  http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS, WITHOUT
// WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied. See the
// License for the specific language governing permissions and limitations under
// the License.

package couch

import (
	"bytes"
	"context"
	"io"
	"net/http"
)

// ClientTrace is a set of hooks to run at various stages of an outgoing
// request. Any particular hook may be nil. Hooks receive clones, so
// mutating their argument does not affect the request or response in
// flight.
type ClientTrace struct {
	// HTTPRequest is called with a clone of the request, with the body
	// set to nil. If you need the body, use the more expensive
	// HTTPRequestBody.
	HTTPRequest func(*http.Request)

	// HTTPRequestBody is called with a clone of the request, including a
	// replayable copy of the body.
	HTTPRequestBody func(*http.Request)

	// HTTPResponse is called with a clone of the response, with the body
	// set to nil. If you need the body, use the more expensive
	// HTTPResponseBody.
	HTTPResponse func(*http.Response)

	// HTTPResponseBody is called with a clone of the response, including
	// a replayable copy of the body.
	HTTPResponseBody func(*http.Response)
}

type contextKey struct {
	name string
}

func (k *contextKey) String() string { return "couch context value " + k.name }

var clientTraceContextKey = &contextKey{"client trace"}

// ContextClientTrace returns the ClientTrace associated with the provided
// context. If none, it returns nil.
func ContextClientTrace(ctx context.Context) *ClientTrace {
	trace, _ := ctx.Value(clientTraceContextKey).(*ClientTrace)
	return trace
}

// WithClientTrace returns a new context based on the provided parent ctx.
// Requests made with the returned context will use the provided trace
// hooks.
func WithClientTrace(ctx context.Context, trace *ClientTrace) context.Context {
	if trace == nil {
		panic("nil trace")
	}
	return context.WithValue(ctx, clientTraceContextKey, trace)
}

func (t *ClientTrace) httpRequest(r *http.Request) {
	if t.HTTPRequest == nil {
		return
	}
	clone := new(http.Request)
	*clone = *r
	clone.Body = nil
	t.HTTPRequest(clone)
}

func (t *ClientTrace) httpRequestBody(r *http.Request) {
	if t.HTTPRequestBody == nil {
		return
	}
	clone := new(http.Request)
	*clone = *r
	if r.Body != nil {
		clone.Body, r.Body = replayBody(r.Body)
	}
	t.HTTPRequestBody(clone)
}

func (t *ClientTrace) httpResponse(r *http.Response) {
	if t.HTTPResponse == nil || r == nil {
		return
	}
	clone := new(http.Response)
	*clone = *r
	clone.Body = nil
	t.HTTPResponse(clone)
}

func (t *ClientTrace) httpResponseBody(r *http.Response) {
	if t.HTTPResponseBody == nil || r == nil {
		return
	}
	clone := new(http.Response)
	*clone = *r
	if r.Body != nil {
		clone.Body, r.Body = replayBody(r.Body)
	}
	t.HTTPResponseBody(clone)
}

// replayBody consumes body and returns two equivalent copies, which
// reproduce the original's content, read error, and close error.
func replayBody(body io.ReadCloser) (io.ReadCloser, io.ReadCloser) {
	content, readErr := io.ReadAll(body)
	closeErr := body.Close()
	return newReplay(content, readErr, closeErr), newReplay(content, readErr, closeErr)
}

func newReplay(content []byte, readErr, closeErr error) io.ReadCloser {
	if readErr == nil && closeErr == nil {
		return io.NopCloser(bytes.NewReader(content))
	}
	return &replayReadCloser{
		Reader:   bytes.NewReader(content),
		readErr:  readErr,
		closeErr: closeErr,
	}
}

// replayReadCloser replays content, substituting readErr for io.EOF.
type replayReadCloser struct {
	io.Reader
	readErr  error
	closeErr error
}

func (r *replayReadCloser) Read(p []byte) (int, error) {
	c, err := r.Reader.Read(p)
	if err == io.EOF && r.readErr != nil {
		err = r.readErr
	}
	return c, err
}

func (r *replayReadCloser) Close() error {
	return r.closeErr
}
