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
	"net/url"
)

// replicationKW is the set of options the _replicate endpoint accepts
// alongside source and target.
var replicationKW = map[string]struct{}{
	"cancel":        {},
	"continuous":    {},
	"create_target": {},
	"doc_ids":       {},
	"filter":        {},
	"proxy":         {},
	"query_params":  {},
}

// ReplicationPeer builds the source or target object describing the named
// database in the remote environment. The peer carries the remote
// environment's credentials: OAuth credentials are embedded for the
// server's replicator to sign with, or Basic credentials become a static
// Authorization header. OAuth wins when both are set, matching how a
// client resolved from the environment would authenticate.
func ReplicationPeer(name string, env *Environment) (map[string]interface{}, error) {
	dsn, user, err := env.resolveURL()
	if err != nil {
		return nil, err
	}
	peer := map[string]interface{}{
		"url": dsn.String() + url.PathEscape(name),
	}
	basic := env.Basic
	if basic == nil && user != nil {
		password, _ := user.Password()
		basic = &BasicAuth{Username: user.Username(), Password: password}
	}
	switch {
	case env.OAuth != nil:
		peer["auth"] = map[string]interface{}{"oauth": env.OAuth}
	case basic != nil:
		peer["headers"] = map[string]interface{}{"authorization": BasicAuthHeader(basic)}
	}
	return peer, nil
}

func replicationBody(source, target interface{}, opts Options) (map[string]interface{}, error) {
	body := map[string]interface{}{
		"source": source,
		"target": target,
	}
	for k, v := range opts {
		if _, ok := replicationKW[k]; !ok {
			return nil, &ConfigError{Reason: fmt.Sprintf("unknown replication option %q", k)}
		}
		body[k] = v
	}
	return body, nil
}

// PushReplication builds the object to POST to _replicate for push
// replication, from the named local database to remoteDB in remoteEnv.
// Recognized opts are cancel, continuous, create_target, doc_ids,
// filter, proxy, and query_params.
func PushReplication(localDB, remoteDB string, remoteEnv *Environment, opts Options) (map[string]interface{}, error) {
	target, err := ReplicationPeer(remoteDB, remoteEnv)
	if err != nil {
		return nil, err
	}
	return replicationBody(localDB, target, opts)
}

// PullReplication builds the object to POST to _replicate for pull
// replication, from remoteDB in remoteEnv to the named local database.
// It recognizes the same opts as PushReplication.
func PullReplication(localDB, remoteDB string, remoteEnv *Environment, opts Options) (map[string]interface{}, error) {
	source, err := ReplicationPeer(remoteDB, remoteEnv)
	if err != nil {
		return nil, err
	}
	return replicationBody(source, localDB, opts)
}

// Push asks this server to replicate localDB to remoteDB in remoteEnv.
// The returned doc is the server's replication response; for a normal
// one-shot replication it carries the session history, and for a
// continuous one the "_local_id" of the running replication.
func (s *Server) Push(ctx context.Context, localDB, remoteDB string, remoteEnv *Environment, opts Options) (Doc, error) {
	body, err := PushReplication(localDB, remoteDB, remoteEnv, opts)
	if err != nil {
		return nil, err
	}
	return s.replicate(ctx, body)
}

// Pull asks this server to replicate remoteDB in remoteEnv into localDB.
func (s *Server) Pull(ctx context.Context, localDB, remoteDB string, remoteEnv *Environment, opts Options) (Doc, error) {
	body, err := PullReplication(localDB, remoteDB, remoteEnv, opts)
	if err != nil {
		return nil, err
	}
	return s.replicate(ctx, body)
}

func (s *Server) replicate(ctx context.Context, body map[string]interface{}) (Doc, error) {
	result := Doc{}
	if err := s.Post(ctx, body, []string{"_replicate"}, nil, &result); err != nil {
		return nil, err
	}
	return result, nil
}
