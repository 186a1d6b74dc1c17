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
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

// oauthSign computes the OAuth 1.0a Authorization header for req, using a
// fresh timestamp and nonce.
func oauthSign(creds *OAuthCreds, req *http.Request) (string, error) {
	query, err := url.ParseQuery(req.URL.RawQuery)
	if err != nil {
		return "", err
	}
	baseURL := req.URL.Scheme + "://" + req.URL.Host + req.URL.EscapedPath()
	timestamp := strconv.FormatInt(time.Now().Unix(), 10)
	return oauthHeader(creds, req.Method, baseURL, query, timestamp, RandomID()), nil
}

// oauthHeader renders the OAuth 1.0a Authorization header. The signature
// covers the request method, the base URL without query string, and the
// normalized query parameters including the oauth_* parameters themselves.
func oauthHeader(creds *OAuthCreds, method, baseURL string, query url.Values, timestamp, nonce string) string {
	o := map[string]string{
		"oauth_consumer_key":     creds.ConsumerKey,
		"oauth_token":            creds.Token,
		"oauth_timestamp":        timestamp,
		"oauth_nonce":            nonce,
		"oauth_signature_method": "HMAC-SHA1",
		"oauth_version":          "1.0",
	}
	signed := url.Values{}
	for k, vs := range query {
		signed[k] = vs
	}
	for k, v := range o {
		signed.Set(k, v)
	}
	o["oauth_signature"] = url.QueryEscape(oauthSignature(creds, oauthBaseString(method, baseURL, signed)))
	o["OAuth realm"] = ""

	// "OAuth realm" sorts before the oauth_* keys, putting it first.
	keys := make([]string, 0, len(o))
	for k := range o {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	pairs := make([]string, 0, len(o))
	for _, k := range keys {
		pairs = append(pairs, k+`="`+o[k]+`"`)
	}
	return strings.Join(pairs, ", ")
}

func oauthBaseString(method, baseURL string, query url.Values) string {
	q := query.Encode()
	return strings.Join([]string{method, url.QueryEscape(baseURL), url.QueryEscape(q)}, "&")
}

func oauthSignature(creds *OAuthCreds, baseString string) string {
	key := creds.ConsumerSecret + "&" + creds.TokenSecret
	h := hmac.New(sha1.New, []byte(key))
	h.Write([]byte(baseString))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}
