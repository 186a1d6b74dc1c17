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
	"net/url"
	"strings"
)

const (
	prefixDesign = "_design/"
	prefixLocal  = "_local/"
)

// EncodeDocID encodes a document ID according to CouchDB's path encoding
// rules: a '_design/' or '_local/' prefix is left unaltered, and the rest
// is query-escaped, except that spaces become %20 rather than '+'.
func EncodeDocID(docID string) string {
	for _, prefix := range []string{prefixDesign, prefixLocal} {
		if strings.HasPrefix(docID, prefix) {
			return prefix + encodeDocID(strings.TrimPrefix(docID, prefix))
		}
	}
	return encodeDocID(docID)
}

func encodeDocID(docID string) string {
	docID = url.QueryEscape(docID)
	return strings.ReplaceAll(docID, "+", "%20")
}

// Handle is a REST adapter rooted at a fixed base path on one server. Each
// method performs exactly one synchronous HTTP request; path parts are
// escaped individually and joined below the base path, and opts become the
// query string. A non-nil result receives the decoded JSON response body.
//
// Server and Database embed a Handle, rooted at "/" and "/{name}/".
type Handle struct {
	client *Client
	base   string
}

// Client returns the underlying HTTP client.
func (h *Handle) Client() *Client {
	return h.client
}

func (h *Handle) path(parts []string) string {
	if len(parts) == 0 {
		return h.base
	}
	escaped := make([]string, 0, len(parts))
	for _, part := range parts {
		escaped = append(escaped, EncodeDocID(part))
	}
	return h.base + strings.Join(escaped, "/")
}

func requestOpts(opts Options) (*requestOptions, error) {
	reqOpts := &requestOptions{}
	if len(opts) > 0 {
		query, err := optionsToParams(opts)
		if err != nil {
			return nil, err
		}
		reqOpts.Query = query
	}
	return reqOpts, nil
}

// Put sends a PUT request. A nil obj sends no body, which is how a database
// is created:
//
//	err := client.Put(ctx, nil, []string{"mydb"}, nil, nil)
func (h *Handle) Put(ctx context.Context, obj interface{}, parts []string, opts Options, result interface{}) error {
	reqOpts, err := requestOpts(opts)
	if err != nil {
		return err
	}
	if obj != nil {
		reqOpts.GetBody = func() (io.ReadCloser, error) {
			return EncodeBody(obj), nil
		}
	}
	return h.client.doJSON(ctx, http.MethodPut, h.path(parts), reqOpts, result)
}

// Post sends a POST request with obj as the JSON body. A nil obj sends no
// body.
func (h *Handle) Post(ctx context.Context, obj interface{}, parts []string, opts Options, result interface{}) error {
	reqOpts, err := requestOpts(opts)
	if err != nil {
		return err
	}
	if obj != nil {
		reqOpts.GetBody = func() (io.ReadCloser, error) {
			return EncodeBody(obj), nil
		}
	}
	return h.client.doJSON(ctx, http.MethodPost, h.path(parts), reqOpts, result)
}

// Get sends a GET request and decodes the response into result.
func (h *Handle) Get(ctx context.Context, parts []string, opts Options, result interface{}) error {
	reqOpts, err := requestOpts(opts)
	if err != nil {
		return err
	}
	return h.client.doJSON(ctx, http.MethodGet, h.path(parts), reqOpts, result)
}

// Delete sends a DELETE request. Deleting a document requires its current
// revision in opts:
//
//	err := db.Delete(ctx, []string{"mydoc"}, couch.Options{"rev": rev}, nil)
func (h *Handle) Delete(ctx context.Context, parts []string, opts Options, result interface{}) error {
	reqOpts, err := requestOpts(opts)
	if err != nil {
		return err
	}
	return h.client.doJSON(ctx, http.MethodDelete, h.path(parts), reqOpts, result)
}

// Head sends a HEAD request and returns the response headers. The error
// taxonomy is the same as for the other verbs, so a missing resource is
// reported as ErrNotFound.
func (h *Handle) Head(ctx context.Context, parts []string, opts Options) (http.Header, error) {
	reqOpts, err := requestOpts(opts)
	if err != nil {
		return nil, err
	}
	res, err := h.client.doError(ctx, http.MethodHead, h.path(parts), reqOpts)
	if err != nil {
		return nil, err
	}
	return res.Header, nil
}

// PutAtt uploads data as an attachment with the given MIME content type.
// Attaching to an existing document requires its current revision in opts.
func (h *Handle) PutAtt(ctx context.Context, contentType string, data []byte, parts []string, opts Options, result interface{}) error {
	if contentType == "" {
		return &ConfigError{Reason: "attachment content type required"}
	}
	reqOpts, err := requestOpts(opts)
	if err != nil {
		return err
	}
	reqOpts.ContentType = contentType
	reqOpts.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(data)), nil
	}
	return h.client.doJSON(ctx, http.MethodPut, h.path(parts), reqOpts, result)
}

// GetAtt retrieves an attachment as raw bytes plus its content type.
func (h *Handle) GetAtt(ctx context.Context, parts []string, opts Options) (*Attachment, error) {
	reqOpts, err := requestOpts(opts)
	if err != nil {
		return nil, err
	}
	res, err := h.client.doReq(ctx, http.MethodGet, h.path(parts), reqOpts)
	if err != nil {
		return nil, err
	}
	if err := ResponseError(res); err != nil {
		return nil, err
	}
	defer closeBody(res.Body)
	var method, path string
	if res.Request != nil {
		method = res.Request.Method
		if res.Request.URL != nil {
			path = res.Request.URL.Path
		}
	}
	if _, ok := res.Header["Content-Type"]; !ok {
		return nil, &HTTPError{Status: http.StatusBadGateway, Method: method, Path: path, Reason: "no Content-Type in response"}
	}
	data, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, &HTTPError{Status: http.StatusBadGateway, Method: method, Path: path, Reason: err.Error()}
	}
	return &Attachment{
		ContentType: res.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}
