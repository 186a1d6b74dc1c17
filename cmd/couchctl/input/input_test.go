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

package input

import (
	"bytes"
	"compress/gzip"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/pflag"
	"gitlab.com/flimzy/testy"

	"github.com/microcouch/couch"

	"github.com/microcouch/couch/cmd/couchctl/errors"
)

func tmpFile(t *testing.T, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func gzipped(t *testing.T, content string) []byte {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if _, err := gz.Write([]byte(content)); err != nil {
		t.Fatal(err)
	}
	if err := gz.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestDocs(t *testing.T) {
	type tt struct {
		args     []string
		filename string
		expected []couch.Doc
		status   int
		err      string
	}

	tests := testy.NewTable()
	tests.Add("json", func(t *testing.T) interface{} {
		return tt{
			filename: tmpFile(t, "docs.json", []byte(`[{"_id":"a","n":1},{"_id":"b"}]`)),
			expected: []couch.Doc{
				{"_id": "a", "n": float64(1)},
				{"_id": "b"},
			},
		}
	})
	tests.Add("yaml", func(t *testing.T) interface{} {
		return tt{
			filename: tmpFile(t, "docs.yaml", []byte("- _id: a\n  n: 1\n- _id: b\n  meta:\n    lang: en\n")),
			expected: []couch.Doc{
				{"_id": "a", "n": 1},
				{"_id": "b", "meta": map[string]interface{}{"lang": "en"}},
			},
		}
	})
	tests.Add("yml", func(t *testing.T) interface{} {
		return tt{
			filename: tmpFile(t, "docs.yml", []byte("- _id: a\n")),
			expected: []couch.Doc{{"_id": "a"}},
		}
	})
	tests.Add("uppercase extension", func(t *testing.T) interface{} {
		return tt{
			filename: tmpFile(t, "DOCS.YAML", []byte("- _id: a\n")),
			expected: []couch.Doc{{"_id": "a"}},
		}
	})
	tests.Add("gzipped json", func(t *testing.T) interface{} {
		return tt{
			filename: tmpFile(t, "docs.json.gz", gzipped(t, `[{"_id":"a"}]`)),
			expected: []couch.Doc{{"_id": "a"}},
		}
	})
	tests.Add("gzipped yaml", func(t *testing.T) interface{} {
		return tt{
			filename: tmpFile(t, "docs.yaml.gz", gzipped(t, "- _id: a\n")),
			expected: []couch.Doc{{"_id": "a"}},
		}
	})
	tests.Add("not gzipped", func(t *testing.T) interface{} {
		return tt{
			filename: tmpFile(t, "docs.json.gz", []byte(`[{"_id":"a"}]`)),
			status:   errors.ErrData,
			err:      "gzip: invalid header",
		}
	})
	tests.Add("yaml flag", func(t *testing.T) interface{} {
		return tt{
			args:     []string{"--yaml"},
			filename: tmpFile(t, "docs.txt", []byte("- _id: a\n")),
			expected: []couch.Doc{{"_id": "a"}},
		}
	})
	tests.Add("missing file", tt{
		filename: "/nonexistent/docs.json",
		status:   errors.ErrNoInput,
		err:      "no such file",
	})

	tests.Run(t, func(t *testing.T, tt tt) {
		s := New()
		flags := pflag.NewFlagSet("x", pflag.ContinueOnError)
		s.ConfigFlags(flags)
		if err := flags.Parse(tt.args); err != nil {
			t.Fatal(err)
		}

		docs, err := s.Docs(tt.filename)
		if status := errors.InspectErrorCode(err); status != tt.status {
			t.Errorf("Unexpected error status. Want %d, got %d", tt.status, status)
		}
		if !testy.ErrorMatchesRE(tt.err, err) {
			t.Errorf("Unexpected error: %s", err)
		}
		if err != nil {
			return
		}
		if d := cmp.Diff(tt.expected, docs); d != "" {
			t.Errorf("Unexpected docs (-want +got):\n%s", d)
		}
	})
}

func TestReadDocs(t *testing.T) {
	type tt struct {
		input    string
		isYAML   bool
		expected []couch.Doc
		status   int
		err      string
	}

	tests := testy.NewTable()
	tests.Add("empty array", tt{
		input:    `[]`,
		expected: []couch.Doc{},
	})
	tests.Add("invalid json", tt{
		input:  `{`,
		status: errors.ErrData,
		err:    "unexpected EOF",
	})
	tests.Add("not an array", tt{
		input:  `{"_id":"a"}`,
		status: errors.ErrData,
		err:    "cannot unmarshal object",
	})
	tests.Add("null doc", tt{
		input:  `[{"_id":"a"},null]`,
		status: errors.ErrData,
		err:    "doc 1: not an object",
	})
	tests.Add("non-string id", tt{
		input:  `[{"_id":5}]`,
		status: errors.ErrData,
		err:    "doc 0: _id must be a string, got 5",
	})
	tests.Add("non-string rev", tt{
		input:  `[{"_id":"a","_rev":5}]`,
		status: errors.ErrData,
		err:    "doc 0: _rev must be a string, got 5",
	})
	tests.Add("invalid yaml", tt{
		input:  "- _id: [unclosed",
		isYAML: true,
		status: errors.ErrData,
		err:    "yaml",
	})
	tests.Add("yaml scalar doc", tt{
		input:  "- 5\n",
		isYAML: true,
		status: errors.ErrData,
		err:    "doc 0: not an object",
	})
	tests.Add("yaml nested keys normalized", tt{
		input:  "- _id: a\n  deep:\n    list:\n      - k: v\n",
		isYAML: true,
		expected: []couch.Doc{
			{"_id": "a", "deep": map[string]interface{}{
				"list": []interface{}{map[string]interface{}{"k": "v"}},
			}},
		},
	})
	tests.Add("yaml non-string keys normalized", tt{
		input:  "- _id: a\n  1: one\n",
		isYAML: true,
		expected: []couch.Doc{
			{"_id": "a", "1": "one"},
		},
	})

	tests.Run(t, func(t *testing.T, tt tt) {
		docs, err := ReadDocs(strings.NewReader(tt.input), tt.isYAML)
		if status := errors.InspectErrorCode(err); status != tt.status {
			t.Errorf("Unexpected error status. Want %d, got %d", tt.status, status)
		}
		if !testy.ErrorMatchesRE(tt.err, err) {
			t.Errorf("Unexpected error: %s", err)
		}
		if err != nil {
			return
		}
		if d := cmp.Diff(tt.expected, docs); d != "" {
			t.Errorf("Unexpected docs (-want +got):\n%s", d)
		}
	})
}
