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
	"io"
	"net/http"
	"strings"
)

type customTransport func(*http.Request) (*http.Response, error)

var _ http.RoundTripper = customTransport(nil)

func (c customTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	return c(req)
}

// newEnvClient returns a client for env whose requests are handled by fn.
// The authentication transport stays in place, so fn sees signed requests.
func newEnvClient(env *Environment, fn func(*http.Request) (*http.Response, error)) *Client {
	c, err := NewClient(env)
	if err != nil {
		panic(err)
	}
	if at, ok := c.Transport.(*authTransport); ok {
		at.next = customTransport(fn)
	} else {
		c.Transport = customTransport(fn)
	}
	return c
}

func newCustomClient(rawurl string, fn func(*http.Request) (*http.Response, error)) *Client {
	if rawurl == "" {
		rawurl = "http://example.com/"
	}
	return newEnvClient(&Environment{URL: rawurl}, fn)
}

func newTestClient(resp *http.Response, err error) *Client {
	return newCustomClient("", func(_ *http.Request) (*http.Response, error) {
		return resp, err
	})
}

func Body(str string) io.ReadCloser {
	return io.NopCloser(strings.NewReader(str))
}
