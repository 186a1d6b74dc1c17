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
	"github.com/spf13/cobra"

	"github.com/microcouch/couch"

	"github.com/microcouch/couch/cmd/couchctl/errors"
	"github.com/microcouch/couch/cmd/couchctl/input"
)

type load struct {
	*root
	input  *input.Source
	create bool
}

func loadCmd(r *root) *cobra.Command {
	c := &load{
		root:  r,
		input: input.New(),
	}

	cmd := &cobra.Command{
		Use:   "load <db> <file>",
		Short: "Load documents from a file into a database",
		Long: "Save the documents in <file> to a database in one batch. The input is " +
			"a JSON array of documents, or a YAML sequence if the file extension is " +
			".yaml or .yml; use - for stdin. Documents that fail with a conflict are " +
			"reported individually, and the rest are still saved.",
		Args: cobra.ExactArgs(2), // nolint:gomnd
		RunE: c.RunE,
	}
	cmd.Flags().BoolVar(&c.create, "create", false, "Create the database if it does not exist")
	c.input.ConfigFlags(cmd.Flags())
	return cmd
}

func (c *load) RunE(cmd *cobra.Command, args []string) error {
	dbName, filename := args[0], args[1]
	docs, err := c.input.Docs(filename)
	if err != nil {
		return err
	}
	if len(docs) == 0 {
		c.log.Infof("[load] Nothing to load from %s", filename)
		return nil
	}
	db, err := c.database(dbName)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if c.create {
		created, err := db.Ensure(ctx)
		if err != nil {
			return err
		}
		if created {
			c.log.Infof("[load] Created database %s", dbName)
		}
	}
	return c.retry(func() error {
		_, err := db.SaveMany(ctx, docs)
		var bulkErr *couch.BulkConflict
		if errors.As(err, &bulkErr) {
			for _, doc := range bulkErr.Conflicts {
				c.log.Errorf("[load] conflict on doc %v", doc["_id"])
			}
			c.log.Infof("[load] Loaded %d of %d documents into %s",
				len(docs)-len(bulkErr.Conflicts), len(docs), dbName)
			return err
		}
		if err != nil {
			return err
		}
		c.log.Infof("[load] Loaded %d documents into %s", len(docs), dbName)
		return nil
	})
}
