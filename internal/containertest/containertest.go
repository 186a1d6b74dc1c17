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

// Package containertest starts disposable CouchDB containers for
// integration tests.
package containertest

import (
	"context"
	"fmt"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/microcouch/couch"
)

// DefaultImage is the CouchDB image started when none is given.
const DefaultImage = "couchdb:3.3"

const (
	adminUser     = "admin"
	adminPassword = "abc123"
)

// StartCouchDB starts a CouchDB container and returns an environment
// pointing at it with admin credentials, along with a terminate function
// the caller must run when done. The server is fully initialized: the
// system databases exist, so the server starts quiet, and the replicator
// is configured for short test cycles.
func StartCouchDB(ctx context.Context, image string) (*couch.Environment, func(context.Context) error, error) {
	if image == "" {
		image = DefaultImage
	}
	req := testcontainers.ContainerRequest{
		Image:        image,
		ExposedPorts: []string{"5984/tcp"},
		WaitingFor:   wait.ForHTTP("/").WithPort("5984/tcp").WithStartupTimeout(120 * time.Second),
		Env: map[string]string{
			"COUCHDB_USER":     adminUser,
			"COUCHDB_PASSWORD": adminPassword,
		},
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, nil, err
	}
	terminate := func(ctx context.Context) error {
		return container.Terminate(ctx)
	}
	host, err := container.Host(ctx)
	if err != nil {
		_ = terminate(ctx)
		return nil, nil, err
	}
	port, err := container.MappedPort(ctx, "5984/tcp")
	if err != nil {
		_ = terminate(ctx)
		return nil, nil, err
	}

	env := &couch.Environment{
		URL:   fmt.Sprintf("http://%s:%s/", host, port.Port()),
		Basic: &couch.BasicAuth{Username: adminUser, Password: adminPassword},
	}
	if err := initServer(ctx, env); err != nil {
		_ = terminate(ctx)
		return nil, nil, err
	}
	return env, terminate, nil
}

func initServer(ctx context.Context, env *couch.Environment) error {
	server, err := couch.NewServer(env)
	if err != nil {
		return err
	}
	for _, name := range []string{"_replicator", "_users", "_global_changes"} {
		if _, err := server.Database(name).Ensure(ctx); err != nil {
			return fmt.Errorf("creating %s: %w", name, err)
		}
	}
	config := []struct{ key, value string }{
		{"interval", "1000"},
		{"worker_processes", "1"},
	}
	for _, c := range config {
		parts := []string{"_node", "nonode@nohost", "_config", "replicator", c.key}
		if err := server.Put(ctx, c.value, parts, nil, nil); err != nil {
			return fmt.Errorf("setting replicator %s: %w", c.key, err)
		}
	}
	return nil
}
