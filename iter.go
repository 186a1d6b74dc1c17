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
	"context"
	"fmt"
)

// minChunk is the smallest allowed page size for iteration. Paging
// restarts from the last document of each page, so every page after the
// first yields chunk-1 new documents, and tiny pages degenerate into one
// request per document.
const minChunk = 10

// DocIter iterates over the documents of a database or view, fetching
// them in pages of chunk rows so that arbitrarily large databases can be
// walked in constant memory. Usage:
//
//	iter := db.AllDocs(ctx, 50)
//	for iter.Next() {
//		doc := iter.Doc()
//		...
//	}
//	if err := iter.Err(); err != nil {
//		...
//	}
//
// Documents created or deleted while iterating may or may not be
// observed. The last document of each page is refetched as the first row
// of the next page and deduplicated, so a page boundary never skips or
// repeats a document that existed for the whole iteration.
type DocIter struct {
	db           *Database
	ctx          context.Context
	design, view string
	key          interface{}
	withKey      bool
	chunk        int

	startDocID string
	rows       []ViewRow
	pos        int
	done       bool
	doc        Doc
	lasterr    error
	closed     bool
}

// AllDocs returns an iterator over every document in the database,
// including design documents, in ID order.
func (d *Database) AllDocs(ctx context.Context, chunk int) *DocIter {
	return d.newIter(ctx, "", "", nil, false, chunk)
}

// ViewIter returns an iterator over the documents emitted by a view for
// one key. The key is JSON-encoded, so a nil key selects rows emitted
// under null.
func (d *Database) ViewIter(ctx context.Context, design, view string, key interface{}, chunk int) *DocIter {
	return d.newIter(ctx, design, view, key, true, chunk)
}

func (d *Database) newIter(ctx context.Context, design, view string, key interface{}, withKey bool, chunk int) *DocIter {
	iter := &DocIter{
		db:      d,
		ctx:     ctx,
		design:  design,
		view:    view,
		key:     key,
		withKey: withKey,
		chunk:   chunk,
	}
	if chunk < minChunk {
		iter.lasterr = &ConfigError{Reason: fmt.Sprintf("chunk size %d below minimum %d", chunk, minChunk)}
		iter.closed = true
	}
	return iter
}

// Next advances to the next document. It returns false when the
// iteration is exhausted or an error occurred; consult Err to tell the
// two apart.
func (iter *DocIter) Next() bool {
	if iter.closed {
		return false
	}
	for iter.pos >= len(iter.rows) {
		if iter.done {
			iter.closed = true
			return false
		}
		if err := iter.fetchPage(); err != nil {
			iter.lasterr = err
			iter.closed = true
			return false
		}
	}
	iter.doc = iter.rows[iter.pos].Doc
	iter.pos++
	return true
}

// Doc returns the document most recently advanced to by Next. It is nil
// for a row whose document no longer exists.
func (iter *DocIter) Doc() Doc {
	return iter.doc
}

// Err returns the error, if any, that ended the iteration early.
func (iter *DocIter) Err() error {
	return iter.lasterr
}

// Close ends the iteration early. It is not required after Next has
// returned false.
func (iter *DocIter) Close() error {
	iter.closed = true
	return nil
}

func (iter *DocIter) fetchPage() error {
	opts := Options{"limit": iter.chunk, "include_docs": true}
	if iter.withKey {
		opts["key"] = iter.key
	}
	if iter.startDocID != "" {
		opts["startkey_docid"] = iter.startDocID
	}
	var result ViewResult
	var err error
	if iter.design == "" {
		err = iter.db.Get(iter.ctx, []string{"_all_docs"}, opts, &result)
	} else {
		err = iter.db.View(iter.ctx, iter.design, iter.view, opts, &result)
	}
	if err != nil {
		return err
	}
	if len(result.Rows) < iter.chunk {
		iter.done = true
	}
	rows := result.Rows
	if iter.startDocID != "" && len(rows) > 0 && rows[0].ID == iter.startDocID {
		rows = rows[1:]
	}
	if len(rows) > 0 {
		iter.startDocID = rows[len(rows)-1].ID
	}
	iter.rows = rows
	iter.pos = 0
	return nil
}
