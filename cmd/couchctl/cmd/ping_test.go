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

package cmd

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"gitlab.com/flimzy/testy"

	"github.com/microcouch/couch/cmd/couchctl/errors"
)

func upServer(t *testing.T) *httptest.Server {
	t.Helper()
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead && r.URL.Path == "/_up" {
			sendJSON(w, http.StatusOK, `{"status":"ok"}`)
			return
		}
		http.NotFound(w, r)
	}))
	t.Cleanup(s.Close)
	return s
}

func Test_ping_RunE(t *testing.T) {
	tests := testy.NewTable()
	tests.Add("server is up", func(t *testing.T) interface{} {
		s := upServer(t)
		return cmdTest{
			args:   []string{"ping", s.URL},
			status: 0,
			stdout: `\A\[ping\] Server is up\n\z`,
		}
	})
	tests.Add("server predates _up", func(t *testing.T) interface{} {
		s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch {
			case r.URL.Path == "/_up":
				w.WriteHeader(http.StatusNotFound)
			case r.Method == http.MethodGet && r.URL.Path == "/":
				sendJSON(w, http.StatusOK, `{"couchdb":"Welcome","version":"1.6.1"}`)
			default:
				http.NotFound(w, r)
			}
		}))
		t.Cleanup(s.Close)
		return cmdTest{
			args:   []string{"ping", s.URL},
			status: 0,
			stdout: `\A\[ping\] Server is up\n\z`,
		}
	})
	tests.Add("maintenance mode", func(t *testing.T) interface{} {
		s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		t.Cleanup(s.Close)
		return cmdTest{
			args:   []string{"ping", s.URL},
			status: errors.ErrUnknown,
			stderr: `503 Service Unavailable`,
		}
	})
	tests.Add("connection refused", cmdTest{
		args:   []string{"ping", "http://127.0.0.1:1/"},
		status: errors.ErrUnavailable,
		stderr: `connection refused`,
	})
	tests.Add("invalid url", cmdTest{
		args:   []string{"ping", "ftp://example.com/"},
		status: errors.ErrBadRequest,
		stderr: `url scheme must be http or https`,
	})
	tests.Add("url from env cmd", func(t *testing.T) interface{} {
		s := upServer(t)
		return cmdTest{
			args:   []string{"--env-cmd", fmt.Sprintf(`echo {"url":%q}`, s.URL), "ping"},
			status: 0,
			stdout: `\A\[ping\] Server is up\n\z`,
		}
	})
	tests.Add("debug output", func(t *testing.T) interface{} {
		s := upServer(t)
		return cmdTest{
			args:   []string{"--debug", "ping", s.URL},
			status: 0,
			stderr: `Debug mode enabled`,
		}
	})
	tests.Add("response header", func(t *testing.T) interface{} {
		s := upServer(t)
		return cmdTest{
			args:   []string{"--header", "ping", s.URL},
			status: 0,
			stdout: `< HTTP/1\.1 200 OK`,
		}
	})
	tests.Add("verbose traffic", func(t *testing.T) interface{} {
		s := upServer(t)
		return cmdTest{
			args:   []string{"--verbose", "ping", s.URL},
			status: 0,
			stdout: `> HEAD /_up HTTP/1\.1`,
		}
	})
	tests.Add("request timeout", func(t *testing.T) interface{} {
		s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			time.Sleep(250 * time.Millisecond)
			w.WriteHeader(http.StatusOK)
		}))
		t.Cleanup(s.Close)
		return cmdTest{
			args:   []string{"--request-timeout", "0.05", "ping", s.URL},
			status: errors.ErrUnavailable,
			stderr: `Client\.Timeout exceeded`,
		}
	})

	tests.Run(t, func(t *testing.T, tt cmdTest) {
		tt.Test(t)
	})
}
