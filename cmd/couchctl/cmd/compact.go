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
)

type compact struct {
	*root
	wait bool
}

func compactCmd(r *root) *cobra.Command {
	c := &compact{
		root: r,
	}

	cmd := &cobra.Command{
		Use:   "compact <db>",
		Short: "Compact a database",
		Long:  "Trigger compaction of a database. Compaction runs in the background on the server; pass --wait to block until it finishes.",
		Args:  cobra.ExactArgs(1),
		RunE:  c.RunE,
	}
	cmd.Flags().BoolVar(&c.wait, "wait", false, "Wait for the compaction to finish")
	return cmd
}

func (c *compact) RunE(cmd *cobra.Command, args []string) error {
	dbName := args[0]
	db, err := c.database(dbName)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	return c.retry(func() error {
		if err := db.Compact(ctx); err != nil {
			return err
		}
		c.log.Infof("[compact] Compaction of %s started", dbName)
		if !c.wait {
			return nil
		}
		if err := db.WaitForCompact(ctx); err != nil {
			return err
		}
		c.log.Infof("[compact] Compaction of %s finished", dbName)
		return nil
	})
}
