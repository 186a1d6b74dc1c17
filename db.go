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
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Doc is a schemaless JSON document. The save methods mutate it in place,
// assigning "_id" before a request and "_rev" after a successful write.
type Doc = map[string]interface{}

// BulkResult is the server's result for one written document, either from
// a direct save or as one row of a _bulk_docs response. A row without a
// Rev was not committed; Error and Reason then say why.
type BulkResult struct {
	OK     bool   `json:"ok,omitempty"`
	ID     string `json:"id"`
	Rev    string `json:"rev,omitempty"`
	Error  string `json:"error,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// ViewRow is one row of a view or _all_docs response. Doc is only
// populated when the request asked for include_docs, and stays nil for a
// missing or deleted document.
type ViewRow struct {
	ID    string          `json:"id,omitempty"`
	Key   json.RawMessage `json:"key"`
	Value json.RawMessage `json:"value,omitempty"`
	Doc   Doc             `json:"doc,omitempty"`
	Error string          `json:"error,omitempty"`
}

// ViewResult is a view or _all_docs response.
type ViewResult struct {
	TotalRows int64     `json:"total_rows"`
	Offset    int64     `json:"offset"`
	Rows      []ViewRow `json:"rows"`
}

// Database is a handle rooted at one database on a server.
type Database struct {
	Handle

	// Name is the database name as given, unescaped.
	Name string
}

// NewDatabase returns a handle for the named database on the server
// described by env. The database is not created; see [Database.Ensure].
func NewDatabase(env *Environment, name string) (*Database, error) {
	server, err := NewServer(env)
	if err != nil {
		return nil, err
	}
	return server.Database(name), nil
}

// NewDatabaseURL is NewDatabase for a bare URL string.
func NewDatabaseURL(rawurl, name string) (*Database, error) {
	return NewDatabase(&Environment{URL: rawurl}, name)
}

// Server returns a handle for the server this database lives on, sharing
// the database's client and Environment.
func (d *Database) Server() *Server {
	return ServerFromClient(d.client)
}

// Database returns a handle for another database on the same server.
func (d *Database) Database(name string) *Database {
	return d.Server().Database(name)
}

// Ensure creates the database if it does not already exist, reporting
// whether this call created it. A PreconditionFailed response, meaning
// the database exists, is absorbed; every other error propagates.
func (d *Database) Ensure(ctx context.Context) (bool, error) {
	err := d.Put(ctx, nil, nil, nil, nil)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, ErrPreconditionFailed) {
		return false, nil
	}
	return false, err
}

// assignIDs gives every doc lacking an "_id" a fresh RandomID, in place.
func assignIDs(docs []Doc) {
	for _, doc := range docs {
		if _, ok := doc["_id"]; !ok {
			doc["_id"] = RandomID()
		}
	}
}

// Save writes doc to the database. If doc has no "_id", one is generated
// with RandomID and set in place before the request; on success "_rev" is
// updated in place from the response. On Conflict the error propagates
// unmodified and doc is left untouched, still carrying its stale
// revision.
func (d *Database) Save(ctx context.Context, doc Doc) (*BulkResult, error) {
	if _, ok := doc["_id"]; !ok {
		doc["_id"] = RandomID()
	}
	result := &BulkResult{}
	if err := d.Post(ctx, doc, nil, nil, result); err != nil {
		return nil, err
	}
	doc["_rev"] = result.Rev
	return result, nil
}

// SaveMany writes docs through _bulk_docs with non-atomic semantics: the
// server commits whichever rows it can. Docs lacking an "_id" are
// assigned one in place first. Rows correlate to docs by position; every
// committed row updates its doc's "_rev" in place, while a conflicting
// row leaves its doc exactly as passed in. If any row conflicted, the
// returned error is a *BulkConflict carrying the untouched conflicting
// docs in input order along with all rows.
func (d *Database) SaveMany(ctx context.Context, docs []Doc) ([]BulkResult, error) {
	assignIDs(docs)
	var rows []BulkResult
	if err := d.Post(ctx, map[string]interface{}{"docs": docs}, []string{"_bulk_docs"}, nil, &rows); err != nil {
		return nil, err
	}
	if len(rows) != len(docs) {
		return rows, fmt.Errorf("couch: bulk response has %d rows for %d docs", len(rows), len(docs))
	}
	var conflicts []Doc
	for i, row := range rows {
		doc := docs[i]
		if id, _ := doc["_id"].(string); id != row.ID {
			return rows, fmt.Errorf("couch: bulk row %d reports id %q, want %q", i, row.ID, id)
		}
		if row.Rev == "" {
			conflicts = append(conflicts, doc)
			continue
		}
		doc["_rev"] = row.Rev
	}
	if len(conflicts) > 0 {
		return rows, &BulkConflict{Conflicts: conflicts, Rows: rows}
	}
	return rows, nil
}

// BulkSave writes docs through _bulk_docs with all_or_nothing semantics.
// If the server reports any row failure, no doc is modified and a
// *BulkConflict is returned; on full success every doc's "_rev" is
// updated in place.
func (d *Database) BulkSave(ctx context.Context, docs []Doc) ([]BulkResult, error) {
	assignIDs(docs)
	obj := map[string]interface{}{"docs": docs, "all_or_nothing": true}
	var rows []BulkResult
	if err := d.Post(ctx, obj, []string{"_bulk_docs"}, nil, &rows); err != nil {
		return nil, err
	}
	if len(rows) != len(docs) {
		return rows, fmt.Errorf("couch: bulk response has %d rows for %d docs", len(rows), len(docs))
	}
	var failed []Doc
	for i, row := range rows {
		if id, _ := docs[i]["_id"].(string); id != row.ID {
			return rows, fmt.Errorf("couch: bulk row %d reports id %q, want %q", i, row.ID, id)
		}
		if row.Rev == "" {
			failed = append(failed, docs[i])
		}
	}
	if len(failed) > 0 {
		return rows, &BulkConflict{Conflicts: failed, Rows: rows}
	}
	for i, row := range rows {
		docs[i]["_rev"] = row.Rev
	}
	return rows, nil
}

// DeleteMany marks every doc "_deleted" in place and saves the batch
// through SaveMany. Every doc must already carry an "_id".
func (d *Database) DeleteMany(ctx context.Context, docs []Doc) ([]BulkResult, error) {
	for i, doc := range docs {
		if _, ok := doc["_id"]; !ok {
			return nil, fmt.Errorf("couch: delete doc %d: missing _id", i)
		}
		doc["_deleted"] = true
	}
	return d.SaveMany(ctx, docs)
}

// GetMany fetches multiple documents in one request. The result is
// aligned to ids: position i holds the document for ids[i], or nil if it
// does not exist.
func (d *Database) GetMany(ctx context.Context, ids []string) ([]Doc, error) {
	obj := map[string]interface{}{"keys": ids}
	var result ViewResult
	err := d.Post(ctx, obj, []string{"_all_docs"}, Options{"include_docs": true}, &result)
	if err != nil {
		return nil, err
	}
	if len(result.Rows) != len(ids) {
		return nil, fmt.Errorf("couch: _all_docs returned %d rows for %d ids", len(result.Rows), len(ids))
	}
	docs := make([]Doc, len(ids))
	for i, row := range result.Rows {
		docs[i] = row.Doc
	}
	return docs, nil
}

// View queries a view, a shortcut for spelling out the "_design" and
// "_view" path segments. Unless opts overrides it, reduce=false is
// requested. A "keys" option is sent as a POST body rather than a query
// parameter.
func (d *Database) View(ctx context.Context, design, view string, opts Options, result interface{}) error {
	viewOpts := Options{"reduce": false}
	for k, v := range opts {
		viewOpts[k] = v
	}
	parts := []string{"_design", design, "_view", view}
	if keys, ok := viewOpts["keys"]; ok {
		delete(viewOpts, "keys")
		return d.Post(ctx, map[string]interface{}{"keys": keys}, parts, viewOpts, result)
	}
	return d.Get(ctx, parts, viewOpts, result)
}

// Update applies fn to doc and saves it, retrying once on Conflict: the
// latest revision is fetched, fn is applied to it, and the save is
// attempted again. A Conflict on the retry propagates. The returned doc
// is the one that was saved, which after a retry is not the doc passed
// in, so callers should keep the returned reference.
func (d *Database) Update(ctx context.Context, fn func(Doc) error, doc Doc) (Doc, error) {
	id, _ := doc["_id"].(string)
	if id == "" {
		return nil, errors.New("couch: update requires a doc with an _id")
	}
	if err := fn(doc); err != nil {
		return nil, err
	}
	_, err := d.Save(ctx, doc)
	if err == nil {
		return doc, nil
	}
	if !errors.Is(err, ErrConflict) {
		return nil, err
	}
	fresh := Doc{}
	if err := d.Get(ctx, []string{id}, nil, &fresh); err != nil {
		return nil, err
	}
	if err := fn(fresh); err != nil {
		return nil, err
	}
	if _, err := d.Save(ctx, fresh); err != nil {
		return nil, err
	}
	return fresh, nil
}

// compactDelay is how long WaitForCompact sleeps between polls.
var compactDelay = time.Second

// Compact triggers compaction of the database. The server compacts in
// the background; use WaitForCompact to block until it finishes.
func (d *Database) Compact(ctx context.Context) error {
	return d.Post(ctx, nil, []string{"_compact"}, nil, nil)
}

// WaitForCompact blocks until the database reports that no compaction is
// running, polling once per second, or until ctx is done.
func (d *Database) WaitForCompact(ctx context.Context) error {
	running, err := d.compactRunning(ctx)
	if err != nil || !running {
		return err
	}
	ticker := time.NewTicker(compactDelay)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		running, err := d.compactRunning(ctx)
		if err != nil || !running {
			return err
		}
	}
}

func (d *Database) compactRunning(ctx context.Context) (bool, error) {
	var info struct {
		CompactRunning bool `json:"compact_running"`
	}
	if err := d.Get(ctx, nil, nil, &info); err != nil {
		return false, err
	}
	return info.CompactRunning, nil
}
