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
)

type ping struct {
	*root
}

func pingCmd(r *root) *cobra.Command {
	c := &ping{
		root: r,
	}

	return &cobra.Command{
		Use:   "ping [url]",
		Short: "Ping a server",
		Long:  "Ping a server's /_up endpoint to determine availability to serve requests",
		Args:  cobra.MaximumNArgs(1),
		RunE:  c.RunE,
	}
}

func (c *ping) RunE(cmd *cobra.Command, args []string) error {
	if len(args) > 0 {
		c.env = &couch.Environment{URL: args[0]}
	}
	server, err := c.server()
	if err != nil {
		return err
	}
	c.log.Debugf("[ping] Will ping server: %s", server.Client().URL())
	return c.retry(func() error {
		ctx := cmd.Context()
		_, err := server.Head(ctx, []string{"_up"}, nil)
		switch {
		case err == nil:
		case errors.Is(err, couch.ErrNotFound), errors.Is(err, couch.ErrMethodNotAllowed), errors.Is(err, couch.ErrBadRequest):
			// Servers predating /_up still answer the welcome banner.
			if _, err := server.Version(ctx); err != nil {
				return err
			}
		default:
			return err
		}
		c.log.Info("[ping] Server is up")
		return nil
	})
}
