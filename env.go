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
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Well-known local endpoint URLs.
const (
	HTTPIPv4URL  = "http://127.0.0.1:5984/"
	HTTPSIPv4URL = "https://127.0.0.1:6984/"
	HTTPIPv6URL  = "http://[::1]:5984/"
	HTTPSIPv6URL = "https://[::1]:6984/"

	// DefaultURL is the environment used when none is specified.
	DefaultURL = HTTPIPv4URL
)

// BasicAuth holds HTTP Basic credentials.
type BasicAuth struct {
	Username string `json:"username" yaml:"username"`
	Password string `json:"password" yaml:"password"`
}

// OAuthCreds holds the four OAuth 1.0a tokens.
type OAuthCreds struct {
	ConsumerKey    string `json:"consumer_key" yaml:"consumer_key"`
	ConsumerSecret string `json:"consumer_secret" yaml:"consumer_secret"`
	Token          string `json:"token" yaml:"token"`
	TokenSecret    string `json:"token_secret" yaml:"token_secret"`
}

// TLSConfig holds optional TLS settings for an https environment. The zero
// value verifies server certificates against the system trust store, with
// hostname checking enabled.
type TLSConfig struct {
	// CAFile and CAPath name a PEM file, or a directory of PEM files, of
	// trusted certificate authorities. When neither is set the system
	// trust store is used.
	CAFile string `json:"ca_file,omitempty" yaml:"ca_file,omitempty"`
	CAPath string `json:"ca_path,omitempty" yaml:"ca_path,omitempty"`

	// CertFile and KeyFile name a client certificate and key to present
	// to the server. Both must be set together.
	CertFile string `json:"cert_file,omitempty" yaml:"cert_file,omitempty"`
	KeyFile  string `json:"key_file,omitempty" yaml:"key_file,omitempty"`

	// CheckHostname, when set to false, still verifies the server
	// certificate chain but skips matching the certificate against the
	// server hostname.
	CheckHostname *bool `json:"check_hostname,omitempty" yaml:"check_hostname,omitempty"`
}

// Environment describes how to reach and authenticate against one server.
//
// An Environment is shared by reference: every client resolved from it,
// and every handle derived from such a client, observes later mutations.
// In particular, updating OAuth or Basic credentials takes effect on the
// next request. If both are set, OAuth takes precedence.
type Environment struct {
	URL   string      `json:"url" yaml:"url"`
	Basic *BasicAuth  `json:"basic,omitempty" yaml:"basic,omitempty"`
	OAuth *OAuthCreds `json:"oauth,omitempty" yaml:"oauth,omitempty"`
	TLS   *TLSConfig  `json:"ssl,omitempty" yaml:"ssl,omitempty"`
}

// resolveURL validates and normalizes the environment's URL. The base path
// always ends in exactly one "/", so resolution is idempotent. Credentials
// embedded in the URL are returned separately, stripped from the result.
func (env *Environment) resolveURL() (*url.URL, *url.Userinfo, error) {
	rawurl := env.URL
	if rawurl == "" {
		rawurl = DefaultURL
	}
	dsn, err := url.Parse(rawurl)
	if err != nil {
		return nil, nil, &ConfigError{Reason: "invalid url", Err: err}
	}
	if dsn.Scheme != "http" && dsn.Scheme != "https" {
		return nil, nil, &ConfigError{Reason: fmt.Sprintf("url scheme must be http or https; got %q", rawurl)}
	}
	if dsn.Host == "" {
		return nil, nil, &ConfigError{Reason: fmt.Sprintf("bad url: %q", rawurl)}
	}
	user := dsn.User
	dsn.User = nil
	dsn.Path = strings.TrimRight(dsn.Path, "/") + "/"
	dsn.RawQuery = ""
	dsn.Fragment = ""
	return dsn, user, nil
}

// tlsClientConfig builds a *tls.Config from the environment's TLS
// settings.
func (env *Environment) tlsClientConfig() (*tls.Config, error) {
	cfg := &tls.Config{}
	t := env.TLS
	if t == nil {
		return cfg, nil
	}
	if t.CAFile != "" || t.CAPath != "" {
		pool := x509.NewCertPool()
		if t.CAFile != "" {
			pem, err := os.ReadFile(t.CAFile)
			if err != nil {
				return nil, &ConfigError{Reason: "reading ca_file", Err: err}
			}
			if !pool.AppendCertsFromPEM(pem) {
				return nil, &ConfigError{Reason: fmt.Sprintf("no certificates found in ca_file %q", t.CAFile)}
			}
		}
		if t.CAPath != "" {
			entries, err := os.ReadDir(t.CAPath)
			if err != nil {
				return nil, &ConfigError{Reason: "reading ca_path", Err: err}
			}
			found := false
			for _, entry := range entries {
				if entry.IsDir() {
					continue
				}
				pem, err := os.ReadFile(filepath.Join(t.CAPath, entry.Name()))
				if err != nil {
					return nil, &ConfigError{Reason: "reading ca_path", Err: err}
				}
				if pool.AppendCertsFromPEM(pem) {
					found = true
				}
			}
			if !found {
				return nil, &ConfigError{Reason: fmt.Sprintf("no certificates found in ca_path %q", t.CAPath)}
			}
		}
		cfg.RootCAs = pool
	}
	switch {
	case t.CertFile != "" && t.KeyFile != "":
		cert, err := tls.LoadX509KeyPair(t.CertFile, t.KeyFile)
		if err != nil {
			return nil, &ConfigError{Reason: "loading client certificate", Err: err}
		}
		cfg.Certificates = []tls.Certificate{cert}
	case t.CertFile != "" || t.KeyFile != "":
		return nil, &ConfigError{Reason: "cert_file and key_file must be set together"}
	}
	if t.CheckHostname != nil && !*t.CheckHostname {
		// Chain verification still happens, in VerifyPeerCertificate;
		// only the hostname match is skipped.
		cfg.InsecureSkipVerify = true
		cfg.VerifyPeerCertificate = verifyChainOnly(cfg.RootCAs)
	}
	return cfg, nil
}

func verifyChainOnly(roots *x509.CertPool) func([][]byte, [][]*x509.Certificate) error {
	return func(rawCerts [][]byte, _ [][]*x509.Certificate) error {
		certs := make([]*x509.Certificate, len(rawCerts))
		for i, raw := range rawCerts {
			cert, err := x509.ParseCertificate(raw)
			if err != nil {
				return err
			}
			certs[i] = cert
		}
		if len(certs) == 0 {
			return &ConfigError{Reason: "server presented no certificates"}
		}
		opts := x509.VerifyOptions{
			Roots:         roots,
			Intermediates: x509.NewCertPool(),
		}
		for _, cert := range certs[1:] {
			opts.Intermediates.AddCert(cert)
		}
		_, err := certs[0].Verify(opts)
		return err
	}
}

// EnvCommand runs an external command expected to print a JSON environment
// on stdout, and parses the result. Companion tools typically expose a
// "GetEnv" subcommand for this purpose.
func EnvCommand(ctx context.Context, name string, arg ...string) (*Environment, error) {
	out, err := exec.CommandContext(ctx, name, arg...).Output()
	if err != nil {
		return nil, &ConfigError{Reason: fmt.Sprintf("env command %s", name), Err: err}
	}
	env := new(Environment)
	if err := json.Unmarshal(out, env); err != nil {
		return nil, &ConfigError{Reason: fmt.Sprintf("env command %s: invalid JSON", name), Err: err}
	}
	return env, nil
}
