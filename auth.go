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
	"encoding/base64"
	"net/http"
	"net/url"
)

// authTransport signs outbound requests. The strategy is selected per
// request from the live Environment, so credential changes take effect on
// the next request: OAuth wins over Basic, Basic wins over credentials
// embedded in the URL, and exactly one strategy signs any given request.
type authTransport struct {
	env  *Environment
	user *url.Userinfo

	// next is the transport that performs the actual request.
	next http.RoundTripper
}

var _ http.RoundTripper = &authTransport{}

func (a *authTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	switch {
	case a.env.OAuth != nil:
		header, err := oauthSign(a.env.OAuth, req)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", header)
	case a.env.Basic != nil:
		req.SetBasicAuth(a.env.Basic.Username, a.env.Basic.Password)
	case a.user != nil:
		password, _ := a.user.Password()
		req.SetBasicAuth(a.user.Username(), password)
	}
	return a.next.RoundTrip(req)
}

// BasicAuthHeader returns the Authorization header value for the given
// credentials.
func BasicAuthHeader(basic *BasicAuth) string {
	b := []byte(basic.Username + ":" + basic.Password)
	return "Basic " + base64.StdEncoding.EncodeToString(b)
}
