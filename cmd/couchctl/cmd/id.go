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
)

type id struct {
	*root
	timestamp bool
	count     int
}

func idCmd(r *root) *cobra.Command {
	c := &id{
		root: r,
	}

	cmd := &cobra.Command{
		Use:   "id",
		Short: "Print fresh random document IDs",
		Long:  "Print random document IDs of the same kind the library assigns to documents saved without one",
		Args:  cobra.NoArgs,
		RunE:  c.RunE,
	}
	cmd.Flags().BoolVarP(&c.timestamp, "timestamp", "t", false, "Prefix IDs with the current Unix time, so they sort by creation")
	cmd.Flags().IntVarP(&c.count, "count", "n", 1, "Number of IDs to print")
	return cmd
}

func (c *id) RunE(*cobra.Command, []string) error {
	for i := 0; i < c.count; i++ {
		if c.timestamp {
			c.log.Info(couch.RandomID2())
		} else {
			c.log.Info(couch.RandomID())
		}
	}
	return nil
}
