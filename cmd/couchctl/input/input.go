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

// Package input reads document lists for the load command.
package input

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/icza/dyno"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/microcouch/couch"

	"github.com/microcouch/couch/cmd/couchctl/errors"
)

// Source reads the document input for the load command.
type Source struct {
	yaml bool
}

func New() *Source {
	return &Source{}
}

// ConfigFlags registers the input flags on the load command's flag set.
func (s *Source) ConfigFlags(pf *pflag.FlagSet) {
	pf.BoolVar(&s.yaml, "yaml", false, "Treat input as YAML, regardless of the file extension")
}

// Docs reads a list of documents from the named file, or from stdin when
// filename is "-". The input is a JSON array unless the filename ends in
// .yaml or .yml or the --yaml flag is set, in which case it is a YAML
// sequence. A .gz suffix means the input is gzip-compressed, so a file
// written by dump loads as-is.
func (s *Source) Docs(filename string) ([]couch.Doc, error) {
	if filename == "-" {
		return ReadDocs(os.Stdin, s.yaml)
	}
	f, err := os.Open(filename)
	if err != nil {
		return nil, errors.Code(errors.ErrNoInput, err)
	}
	defer f.Close() // nolint: errcheck
	var r io.Reader = f
	name := strings.ToLower(filename)
	if strings.HasSuffix(name, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, errors.Code(errors.ErrData, err)
		}
		defer gz.Close() // nolint: errcheck
		r = gz
		name = strings.TrimSuffix(name, ".gz")
	}
	isYAML := s.yaml || strings.HasSuffix(name, ".yaml") || strings.HasSuffix(name, ".yml")
	return ReadDocs(r, isYAML)
}

// ReadDocs decodes a list of documents from r.
func ReadDocs(r io.Reader, isYAML bool) ([]couch.Doc, error) {
	if isYAML {
		return yamlDocs(r)
	}
	var docs []couch.Doc
	if err := json.NewDecoder(r).Decode(&docs); err != nil {
		return nil, errors.Code(errors.ErrData, err)
	}
	return checkDocs(docs)
}

// yamlDocs decodes a YAML sequence of documents. YAML maps decode with
// interface{} keys, which cannot be re-encoded as JSON, so each document
// is normalized to string keys first.
func yamlDocs(r io.Reader) ([]couch.Doc, error) {
	var raw []interface{}
	if err := yaml.NewDecoder(r).Decode(&raw); err != nil {
		return nil, errors.Code(errors.ErrData, err)
	}
	docs := make([]couch.Doc, len(raw))
	for i, item := range raw {
		doc, ok := dyno.ConvertMapI2MapS(item).(map[string]interface{})
		if !ok {
			return nil, errors.Codef(errors.ErrData, "doc %d: not an object", i)
		}
		docs[i] = doc
	}
	return checkDocs(docs)
}

func checkDocs(docs []couch.Doc) ([]couch.Doc, error) {
	for i, doc := range docs {
		if doc == nil {
			return nil, errors.Codef(errors.ErrData, "doc %d: not an object", i)
		}
		if err := checkReserved(doc); err != nil {
			return nil, errors.Codef(errors.ErrData, "doc %d: %s", i, err)
		}
	}
	return docs, nil
}

// checkReserved validates the reserved members a load is allowed to carry.
func checkReserved(doc couch.Doc) error {
	if id, ok := doc["_id"]; ok {
		if _, isString := id.(string); !isString {
			return fmt.Errorf("_id must be a string, got %v", id)
		}
	}
	if rev, ok := doc["_rev"]; ok {
		if _, isString := rev.(string); !isString {
			return fmt.Errorf("_rev must be a string, got %v", rev)
		}
	}
	return nil
}
