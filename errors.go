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
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
)

// HTTPError is returned for any response with a status code of 400 or
// greater. The response body is consumed and retained in Data.
type HTTPError struct {
	// Status is the HTTP status code of the response.
	Status int `json:"-"`

	// Method and Path identify the request that produced the response.
	Method string `json:"-"`
	Path   string `json:"-"`

	// Reason is the server-supplied error reason, if the response body
	// was JSON of the form {"error": ..., "reason": ...}.
	Reason string `json:"reason"`

	// Data is the raw response body, for diagnostics.
	Data json.RawMessage `json:"-"`
}

var _ error = &HTTPError{}

func (e *HTTPError) Error() string {
	text := fmt.Sprintf("%d %s", e.Status, http.StatusText(e.Status))
	if e.Method != "" {
		text = fmt.Sprintf("%s: %s %s", text, e.Method, e.Path)
	}
	if e.Reason != "" {
		text += ": " + e.Reason
	}
	return text
}

// HTTPStatus returns the embedded status code.
func (e *HTTPError) HTTPStatus() int {
	return e.Status
}

// Is supports matching against the Err* status sentinels with errors.Is. A
// status matches its own sentinel and its 4xx/5xx family, never a sibling.
func (e *HTTPError) Is(target error) bool {
	if kind, ok := target.(*errorKind); ok {
		return kind.matches(e.Status)
	}
	return false
}

// errorKind is the target type for the Err* sentinels. A zero status
// matches the [lo,hi) family range instead of one exact status.
type errorKind struct {
	status int
	lo, hi int
	text   string
}

func (k *errorKind) Error() string { return k.text }

func (k *errorKind) matches(status int) bool {
	if k.status != 0 {
		return status == k.status
	}
	return status >= k.lo && status < k.hi
}

// Status sentinels, for use with errors.Is. ErrClientError and
// ErrServerError match whole status families, the rest match one status
// each. Statuses with no sentinel of their own, such as 402, match only
// their family.
var (
	ErrBadRequest         error = &errorKind{status: http.StatusBadRequest, text: "bad request"}
	ErrUnauthorized       error = &errorKind{status: http.StatusUnauthorized, text: "unauthorized"}
	ErrForbidden          error = &errorKind{status: http.StatusForbidden, text: "forbidden"}
	ErrNotFound           error = &errorKind{status: http.StatusNotFound, text: "not found"}
	ErrMethodNotAllowed   error = &errorKind{status: http.StatusMethodNotAllowed, text: "method not allowed"}
	ErrNotAcceptable      error = &errorKind{status: http.StatusNotAcceptable, text: "not acceptable"}
	ErrConflict           error = &errorKind{status: http.StatusConflict, text: "conflict"}
	ErrPreconditionFailed error = &errorKind{status: http.StatusPreconditionFailed, text: "precondition failed"}
	ErrBadContentType     error = &errorKind{status: http.StatusUnsupportedMediaType, text: "unsupported media type"}
	ErrBadRangeRequest    error = &errorKind{status: http.StatusRequestedRangeNotSatisfiable, text: "requested range not satisfiable"}
	ErrExpectationFailed  error = &errorKind{status: http.StatusExpectationFailed, text: "expectation failed"}

	ErrClientError error = &errorKind{lo: 400, hi: 500, text: "client error"}
	ErrServerError error = &errorKind{lo: 500, hi: 600, text: "server error"}
)

// TransportError wraps failures that occur before a response is received,
// such as connection failures, TLS handshake errors, and context
// cancellation. It is never matched by the HTTP status sentinels.
type TransportError struct {
	Method string
	URL    string
	Err    error
}

var _ error = &TransportError{}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: %s", e.Method, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ConfigError is returned when an Environment cannot be resolved into a
// usable client configuration.
type ConfigError struct {
	Reason string
	Err    error
}

var _ error = &ConfigError{}

func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("couch: %s: %s", e.Reason, e.Err)
	}
	return "couch: " + e.Reason
}

func (e *ConfigError) Unwrap() error { return e.Err }

// HTTPStatus returns 400 for all configuration errors.
func (e *ConfigError) HTTPStatus() int { return http.StatusBadRequest }

// BulkConflict is returned by [Database.SaveMany] and
// [Database.DeleteMany] when one or more documents could not be saved.
type BulkConflict struct {
	// Conflicts holds the conflicting documents, in input order. They are
	// left exactly as passed in, without updated revisions.
	Conflicts []Doc

	// Rows holds the full per-document results returned by the server.
	Rows []BulkResult
}

var _ error = &BulkConflict{}

func (e *BulkConflict) Error() string {
	if len(e.Conflicts) == 1 {
		return "conflict on 1 doc"
	}
	return fmt.Sprintf("conflict on %d docs", len(e.Conflicts))
}

// HTTPStatus returns 409 for all bulk conflicts.
func (e *BulkConflict) HTTPStatus() int { return http.StatusConflict }

// Is reports a match for ErrConflict, so bulk conflicts and single-document
// conflicts can be handled alike.
func (e *BulkConflict) Is(target error) bool {
	if kind, ok := target.(*errorKind); ok {
		return kind.matches(http.StatusConflict)
	}
	return false
}

// ResponseError returns an error from an *http.Response if the status code
// indicates an error. The response body is consumed and closed.
func ResponseError(resp *http.Response) error {
	if resp.StatusCode < 400 {
		return nil
	}
	httpErr := &HTTPError{
		Status: resp.StatusCode,
	}
	if resp.Request != nil {
		httpErr.Method = resp.Request.Method
		if resp.Request.URL != nil {
			httpErr.Path = resp.Request.URL.Path
		}
	}
	if resp.Body != nil {
		defer closeBody(resp.Body)
		if resp.Request == nil || resp.Request.Method != http.MethodHead {
			if body, err := io.ReadAll(resp.Body); err == nil && len(body) > 0 {
				httpErr.Data = body
				if ct, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type")); ct == typeJSON {
					_ = json.Unmarshal(body, httpErr)
				}
			}
		}
	}
	return httpErr
}
