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

// Package couch is a generic adapter for making HTTP requests to an
// arbitrary JSON loving REST API like CouchDB. Rather than wrapping the
// API in a bunch of one-off methods, it exposes a small, fixed set of
// primitive verbs that can reach any part of the REST API, current or
// future, plus a thin layer of conveniences for the common document
// operations.
//
// Two assumptions keep the adapter simple:
//
//   - Request bodies are empty or JSON, except when you PUT an attachment
//   - Response bodies are JSON, except when you GET an attachment
package couch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"runtime"
	"strings"
)

const typeJSON = "application/json"

// The default UserAgent values
const (
	UserAgent = "couch"
	Version   = "1.0.0"
)

// Client wraps an *http.Client with the resolved environment. All handles
// derived from one client share it, along with its TCP connection pool
// and its *Environment.
type Client struct {
	*http.Client

	env      *Environment
	dsn      *url.URL
	basePath string
}

// NewClient resolves env into a client. A nil env connects to DefaultURL.
//
// The env pointer is retained, not copied: later mutation of the caller's
// Environment is observed by the client on its next request. Credentials
// embedded in the URL are stripped and used as basic credentials of last
// resort.
func NewClient(env *Environment) (*Client, error) {
	if env == nil {
		env = &Environment{}
	}
	dsn, user, err := env.resolveURL()
	if err != nil {
		return nil, err
	}
	var transport http.RoundTripper = http.DefaultTransport
	if dsn.Scheme == "https" {
		tlsCfg, err := env.tlsClientConfig()
		if err != nil {
			return nil, err
		}
		transport = &http.Transport{TLSClientConfig: tlsCfg}
	}
	return &Client{
		Client: &http.Client{
			Transport: &authTransport{env: env, user: user, next: transport},
		},
		env:      env,
		dsn:      dsn,
		basePath: dsn.Path,
	}, nil
}

// NewClientURL is NewClient for a bare URL string.
func NewClientURL(rawurl string) (*Client, error) {
	return NewClient(&Environment{URL: rawurl})
}

// Env returns the Environment shared by every handle on this client.
func (c *Client) Env() *Environment {
	return c.env
}

// URL returns the normalized base URL, which always ends in "/".
func (c *Client) URL() string {
	return c.dsn.Scheme + "://" + c.dsn.Host + c.basePath
}

// requestOptions are the options applied to a single request.
type requestOptions struct {
	Body        io.ReadCloser
	GetBody     func() (io.ReadCloser, error)
	ContentType string
	Accept      string
	Query       url.Values
	Header      http.Header
}

// newRequest returns a new *http.Request to the server for the specified
// path. The path is taken as-is, relative to the server root, and must
// already include the handle's base path.
func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	reqPath, err := url.Parse(path)
	if err != nil {
		return nil, &ConfigError{Reason: fmt.Sprintf("invalid path %q", path), Err: err}
	}
	u := *c.dsn // Make a copy
	u.Path = reqPath.Path
	u.RawQuery = reqPath.RawQuery
	req, err := http.NewRequest(method, u.String(), body)
	if err != nil {
		return nil, &ConfigError{Reason: "invalid request", Err: err}
	}
	req.Header.Add("User-Agent", c.userAgent())
	return req.WithContext(ctx), nil
}

// doReq performs an HTTP request. An error is returned only if there was
// an error processing the request. An error status code, such as 400 or
// 500, does _not_ cause an error to be returned.
func (c *Client) doReq(ctx context.Context, method, path string, opts *requestOptions) (*http.Response, error) {
	if method == "" {
		return nil, errors.New("couch: method required")
	}
	var body io.Reader
	if opts != nil {
		if opts.GetBody != nil {
			var err error
			opts.Body, err = opts.GetBody()
			if err != nil {
				return nil, err
			}
		}
		if opts.Body != nil {
			body = opts.Body
			defer opts.Body.Close() // nolint: errcheck
		}
	}
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return nil, err
	}
	fixPath(req, path)
	setHeaders(req, opts)
	setQuery(req, opts)
	if opts != nil {
		req.GetBody = opts.GetBody
	}

	trace := ContextClientTrace(ctx)
	if trace != nil {
		trace.httpRequest(req)
		trace.httpRequestBody(req)
	}

	response, err := c.Do(req)
	if trace != nil {
		trace.httpResponse(response)
		trace.httpResponseBody(response)
	}
	if err != nil {
		return response, transportError(method, req.URL.String(), err)
	}
	return response, nil
}

// doError is doReq followed by checking the response for an error status.
// It unconditionally consumes and closes the response body.
func (c *Client) doError(ctx context.Context, method, path string, opts *requestOptions) (*http.Response, error) {
	res, err := c.doReq(ctx, method, path, opts)
	if err != nil {
		return res, err
	}
	if res.Body != nil {
		defer closeBody(res.Body)
	}
	err = ResponseError(res)
	return res, err
}

// doJSON combines doReq, ResponseError, and decodeJSON.
func (c *Client) doJSON(ctx context.Context, method, path string, opts *requestOptions, i interface{}) error {
	res, err := c.doReq(ctx, method, path, opts)
	if err != nil {
		return err
	}
	if err := ResponseError(res); err != nil {
		return err
	}
	return decodeJSON(res, i)
}

// decodeJSON unmarshals the response body into i, unless i is nil. This
// function consumes and closes the response body.
func decodeJSON(r *http.Response, i interface{}) error {
	defer closeBody(r.Body)
	if i == nil {
		return nil
	}
	if err := json.NewDecoder(r.Body).Decode(i); err != nil {
		httpErr := &HTTPError{Status: http.StatusBadGateway, Reason: err.Error()}
		if r.Request != nil {
			httpErr.Method = r.Request.Method
			if r.Request.URL != nil {
				httpErr.Path = r.Request.URL.Path
			}
		}
		return httpErr
	}
	return nil
}

// transportError wraps failures from the HTTP client, unwrapping the
// *url.Error clutter added by net/http along the way.
func transportError(method, rawurl string, err error) error {
	if urlErr, ok := err.(*url.Error); ok {
		err = urlErr.Err
	}
	return &TransportError{Method: method, URL: rawurl, Err: err}
}

// fixPath sets the request's URL.RawPath to work with escaped characters
// in paths.
func fixPath(req *http.Request, path string) {
	// Remove any query parameters
	parts := strings.SplitN(path, "?", 2) // nolint:gomnd
	req.URL.RawPath = "/" + strings.TrimPrefix(parts[0], "/")
}

func setHeaders(req *http.Request, opts *requestOptions) {
	accept := typeJSON
	contentType := typeJSON
	if opts != nil {
		if opts.Accept != "" {
			accept = opts.Accept
		}
		if opts.ContentType != "" {
			contentType = opts.ContentType
		}
		for k, v := range opts.Header {
			if _, ok := req.Header[k]; !ok {
				req.Header[k] = v
			}
		}
	}
	req.Header.Add("Accept", accept)
	req.Header.Add("Content-Type", contentType)
}

func setQuery(req *http.Request, opts *requestOptions) {
	if opts == nil || len(opts.Query) == 0 {
		return
	}
	if req.URL.RawQuery == "" {
		req.URL.RawQuery = opts.Query.Encode()
		return
	}
	req.URL.RawQuery = strings.Join([]string{req.URL.RawQuery, opts.Query.Encode()}, "&")
}

// EncodeBody JSON-encodes i to an io.ReadCloser, deterministically: map
// keys sorted, compact separators, non-ASCII emitted literally. If an
// encoding error occurs, it will be returned on the next read. []byte,
// json.RawMessage, and string values are passed through as-is.
func EncodeBody(i interface{}) io.ReadCloser {
	done := make(chan struct{})
	r, w := io.Pipe()
	go func() {
		defer close(done)
		var err error
		switch t := i.(type) {
		case []byte:
			_, err = w.Write(t)
		case json.RawMessage:
			_, err = w.Write(t)
		case string:
			_, err = w.Write([]byte(t))
		default:
			enc := json.NewEncoder(w)
			enc.SetEscapeHTML(false)
			err = enc.Encode(i)
		}
		_ = w.CloseWithError(err)
	}()
	return &ebReader{
		ReadCloser: r,
		done:       done,
	}
}

type ebReader struct {
	io.ReadCloser
	done <-chan struct{}
}

var _ io.ReadCloser = &ebReader{}

func (r *ebReader) Close() error {
	err := r.ReadCloser.Close()
	<-r.done
	return err
}

const maxDrainBytes = 1024 * 1024

// closeBody drains and closes a response body so the underlying
// connection can be reused.
func closeBody(body io.ReadCloser) {
	if body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(body, maxDrainBytes))
	_ = body.Close()
}

// ETag returns the unquoted ETag value, and a bool indicating whether it
// was found.
func ETag(resp *http.Response) (string, bool) {
	if resp == nil {
		return "", false
	}
	etag, ok := resp.Header["Etag"]
	if !ok {
		etag, ok = resp.Header["ETag"] // nolint: staticcheck
	}
	if !ok {
		return "", false
	}
	return strings.Trim(etag[0], `"`), ok
}

func (c *Client) userAgent() string {
	return fmt.Sprintf("%s/%s (Language=%s; Platform=%s/%s)",
		UserAgent, Version, runtime.Version(), runtime.GOARCH, runtime.GOOS)
}
