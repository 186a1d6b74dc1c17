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
	"net/url"
)

// Server is a handle rooted at the base URL of a CouchDB server. It adds a
// few server-level niceties on top of the generic Handle verbs.
type Server struct {
	Handle
}

// NewServer returns a server handle for env. A nil env connects to
// DefaultURL.
func NewServer(env *Environment) (*Server, error) {
	client, err := NewClient(env)
	if err != nil {
		return nil, err
	}
	return ServerFromClient(client), nil
}

// NewServerURL is NewServer for a bare URL string.
func NewServerURL(rawurl string) (*Server, error) {
	return NewServer(&Environment{URL: rawurl})
}

// ServerFromClient returns a server handle sharing an existing client.
func ServerFromClient(client *Client) *Server {
	return &Server{Handle{client: client, base: client.basePath}}
}

// Database returns a handle for the named database on this server. The
// returned handle shares this server's client, and therefore its
// Environment identity; no new connection or authentication state is
// created.
func (s *Server) Database(name string) *Database {
	return &Database{
		Handle: Handle{client: s.client, base: s.client.basePath + url.PathEscape(name) + "/"},
		Name:   name,
	}
}

// EnsureDatabase is Database plus Ensure: the database is created if it
// does not already exist.
func (s *Server) EnsureDatabase(ctx context.Context, name string) (*Database, error) {
	db := s.Database(name)
	if _, err := db.Ensure(ctx); err != nil {
		return nil, err
	}
	return db, nil
}

// AllDBs returns the names of all databases on the server.
func (s *Server) AllDBs(ctx context.Context) ([]string, error) {
	var names []string
	if err := s.Get(ctx, []string{"_all_dbs"}, nil, &names); err != nil {
		return nil, err
	}
	return names, nil
}

// ServerInfo is the welcome banner returned by [Server.Version].
type ServerInfo struct {
	CouchDB string `json:"couchdb"`
	Version string `json:"version"`
	Vendor  struct {
		Name    string `json:"name"`
		Version string `json:"version"`
	} `json:"vendor"`
}

// Version fetches the server's welcome banner.
func (s *Server) Version(ctx context.Context) (*ServerInfo, error) {
	info := &ServerInfo{}
	if err := s.Get(ctx, nil, nil, info); err != nil {
		return nil, err
	}
	return info, nil
}
