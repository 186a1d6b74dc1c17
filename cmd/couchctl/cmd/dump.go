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
	"os"

	"github.com/spf13/cobra"

	"github.com/microcouch/couch/cmd/couchctl/errors"
)

type dump struct {
	*root
}

func dumpCmd(r *root) *cobra.Command {
	c := &dump{
		root: r,
	}

	return &cobra.Command{
		Use:   "dump <db> <file>",
		Short: "Dump a database to a file",
		Long: "Export a database's documents to a readable JSON array, leaving out " +
			"design documents, revisions, and attachments. A <file> ending in .json.gz " +
			"is gzip-compressed.",
		Args: cobra.ExactArgs(2), // nolint:gomnd
		RunE: c.RunE,
	}
}

func (c *dump) RunE(cmd *cobra.Command, args []string) error {
	dbName, filename := args[0], args[1]
	db, err := c.database(dbName)
	if err != nil {
		return err
	}
	return c.retry(func() error {
		if err := db.Dump(cmd.Context(), filename); err != nil {
			var pathErr *os.PathError
			if errors.As(err, &pathErr) {
				// The only file the library touches is the output file.
				return errors.Code(errors.ErrCantCreate, err)
			}
			return err
		}
		c.log.Infof("[dump] Dumped %s to %s", dbName, filename)
		return nil
	})
}
