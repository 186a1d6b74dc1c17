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
	"testing"

	"gitlab.com/flimzy/testy"
)

func TestOptionsToParams(t *testing.T) {
	type otpTest struct {
		name     string
		input    Options
		expected string
		err      string
	}
	tests := []otpTest{
		{
			name:     "nil options",
			input:    nil,
			expected: "",
		},
		{
			name:     "string pass through",
			input:    Options{"rev": "1-3e812567"},
			expected: "rev=1-3e812567",
		},
		{
			name:     "bool and null",
			input:    Options{"foo": true, "bar": nil},
			expected: "bar=null&foo=true",
		},
		{
			name:     "integer",
			input:    Options{"limit": 50},
			expected: "limit=50",
		},
		{
			name:     "multiple values",
			input:    Options{"foo": []string{"bar", "baz"}},
			expected: "foo=bar&foo=baz",
		},
		{
			name:     "json keys quote strings",
			input:    Options{"key": "foo", "startkey": "bar"},
			expected: "key=%22foo%22&startkey=%22bar%22",
		},
		{
			name:     "json key complex value",
			input:    Options{"endkey": []interface{}{"foo", 0}},
			expected: "endkey=%5B%22foo%22%2C0%5D",
		},
		{
			name:     "raw message",
			input:    Options{"key": json.RawMessage(`"pre-encoded"`)},
			expected: "key=%22pre-encoded%22",
		},
		{
			name:  "unencodable value",
			input: Options{"key": func() {}},
			err:   `couch: encode "key" option: json: unsupported type: func()`,
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			params, err := optionsToParams(test.input)
			testy.Error(t, test.err, err)
			if result := params.Encode(); result != test.expected {
				t.Errorf("Unexpected result: %s", result)
			}
		})
	}
}

func TestEncodeJSON(t *testing.T) {
	tests := []struct {
		name     string
		input    interface{}
		expected string
	}{
		{
			name:     "sorted keys, compact",
			input:    map[string]interface{}{"welcome": "все", "hello": "мир"},
			expected: `{"hello":"мир","welcome":"все"}`,
		},
		{
			name:     "html characters literal",
			input:    map[string]interface{}{"markup": "<b> & </b>"},
			expected: `{"markup":"<b> & </b>"}`,
		},
		{
			name:     "nested",
			input:    map[string]interface{}{"b": []interface{}{1, 2}, "a": map[string]interface{}{"y": false, "x": nil}},
			expected: `{"a":{"x":null,"y":false},"b":[1,2]}`,
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			result, err := encodeJSON(test.input)
			if err != nil {
				t.Fatal(err)
			}
			if string(result) != test.expected {
				t.Errorf("Unexpected result: %s", result)
			}
		})
	}
}

func TestEncodeJSONRoundTrip(t *testing.T) {
	doc := map[string]interface{}{
		"hello":   "мир",
		"welcome": "все",
	}
	first, err := encodeJSON(doc)
	if err != nil {
		t.Fatal(err)
	}
	var decoded map[string]interface{}
	if err := json.Unmarshal(first, &decoded); err != nil {
		t.Fatal(err)
	}
	if d := testy.DiffInterface(doc, decoded); d != nil {
		t.Error(d)
	}
	second, err := encodeJSON(decoded)
	if err != nil {
		t.Fatal(err)
	}
	if string(first) != string(second) {
		t.Errorf("Encoding not byte-stable: %s != %s", first, second)
	}
}

func TestEncodeJSONIndent(t *testing.T) {
	input := map[string]interface{}{
		"hello":   "мир",
		"welcome": "все",
	}
	expected := "{\n    \"hello\": \"мир\",\n    \"welcome\": \"все\"\n}"
	result, err := encodeJSONIndent(input, "", "    ")
	if err != nil {
		t.Fatal(err)
	}
	if string(result) != expected {
		t.Errorf("Unexpected result:\n%s", result)
	}
}
