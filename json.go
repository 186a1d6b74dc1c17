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
	"encoding/json"
	"fmt"
	"net/url"
)

// Options is a set of query options for a request. String values pass
// through unaltered, except for the keys the server expects JSON-encoded,
// such as "key" and "startkey". All non-string values are JSON-encoded.
type Options map[string]interface{}

// jsonKeys lists the query parameters whose values are always
// JSON-encoded, even when given as plain strings.
var jsonKeys = []string{"endkey", "end_key", "key", "startkey", "start_key", "keys", "doc_ids"}

func isJSONKey(key string) bool {
	for _, k := range jsonKeys {
		if k == key {
			return true
		}
	}
	return false
}

// encodeKey JSON-encodes a view key, or similar query value.
func encodeKey(key string, i interface{}) (string, error) {
	if raw, ok := i.(json.RawMessage); ok {
		return string(raw), nil
	}
	raw, err := encodeJSON(i)
	if err != nil {
		return "", fmt.Errorf("couch: encode %q option: %w", key, err)
	}
	return string(raw), nil
}

func optionsToParams(opts Options) (url.Values, error) {
	params := url.Values{}
	for key, i := range opts {
		if isJSONKey(key) {
			value, err := encodeKey(key, i)
			if err != nil {
				return nil, err
			}
			params.Add(key, value)
			continue
		}
		switch v := i.(type) {
		case string:
			params.Add(key, v)
		case []string:
			for _, value := range v {
				params.Add(key, value)
			}
		default:
			value, err := encodeKey(key, i)
			if err != nil {
				return nil, err
			}
			params.Add(key, value)
		}
	}
	return params, nil
}

// encodeJSON encodes i deterministically: map keys sorted, compact
// separators, and non-ASCII and HTML characters emitted literally. Equal
// logical documents always encode to identical bytes.
func encodeJSON(i interface{}) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(i); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// encodeJSONIndent is encodeJSON with indentation, for human-readable
// output.
func encodeJSONIndent(i interface{}, prefix, indent string) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent(prefix, indent)
	if err := enc.Encode(i); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
