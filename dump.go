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
	"bufio"
	"compress/gzip"
	"context"
	"io"
	"os"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

const (
	// dumpBatch is how many document bodies are fetched per request.
	dumpBatch = 50

	// dumpPrefetch is how many fetched batches may be queued ahead of the
	// encoder, so encoding and fetching overlap.
	dumpPrefetch = 2
)

// Dump writes every document whose ID sorts below "_" to filename as a
// human-readable JSON array: sorted keys, 4-space indentation, non-ASCII
// characters emitted literally. All RandomID-generated IDs sort below
// "_", while "_design/" and "_local/" sort above it, so a dump captures
// the data documents and skips the design documents. Each document's
// "_rev" and "_attachments" members are stripped, so a dump can be
// loaded into a fresh database with SaveMany. If filename ends in
// ".json.gz" the output is gzip-compressed as it is written.
//
// Documents are fetched dumpBatch at a time, ahead of the encoder, so
// memory use stays constant regardless of database size.
func (d *Database) Dump(ctx context.Context, filename string) error {
	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	var out io.Writer = f
	var gz *gzip.Writer
	if strings.HasSuffix(strings.ToLower(filename), ".json.gz") {
		gz = gzip.NewWriter(f)
		gz.Header.Name = "docs.json"
		gz.Header.ModTime = time.Unix(1, 0)
		out = gz
	}
	err = d.dumpTo(ctx, out)
	if gz != nil {
		if cerr := gz.Close(); err == nil {
			err = cerr
		}
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return err
}

func (d *Database) dumpTo(ctx context.Context, out io.Writer) error {
	var listing ViewResult
	if err := d.Get(ctx, []string{"_all_docs"}, Options{"endkey": "_"}, &listing); err != nil {
		return err
	}
	ids := make([]string, len(listing.Rows))
	for i, row := range listing.Rows {
		ids[i] = row.ID
	}

	batches := make(chan []Doc, dumpPrefetch)
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(batches)
		for start := 0; start < len(ids); start += dumpBatch {
			end := start + dumpBatch
			if end > len(ids) {
				end = len(ids)
			}
			docs, err := d.GetMany(ctx, ids[start:end])
			if err != nil {
				return err
			}
			select {
			case batches <- docs:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	})
	g.Go(func() error {
		w := bufio.NewWriter(out)
		count := 0
		for docs := range batches {
			for _, doc := range docs {
				if doc == nil {
					// Deleted since the listing was taken.
					continue
				}
				delete(doc, "_rev")
				delete(doc, "_attachments")
				encoded, err := encodeJSONIndent(doc, "    ", "    ")
				if err != nil {
					return err
				}
				if count == 0 {
					_, _ = w.WriteString("[\n")
				} else {
					_, _ = w.WriteString(",\n")
				}
				_, _ = w.WriteString("    ")
				_, _ = w.Write(encoded)
				count++
			}
		}
		if count == 0 {
			_, _ = w.WriteString("[]")
		} else {
			_, _ = w.WriteString("\n]")
		}
		return w.Flush()
	})
	return g.Wait()
}
