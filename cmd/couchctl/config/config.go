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

// Package config loads the couchctl configuration: a YAML file describing
// the server environment, with COUCHCTL_* environment variable overrides,
// and an optional .env file preloaded into the process environment.
package config

import (
	"os"
	"os/user"
	"path/filepath"
	"strings"

	playgroundValidator "github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/microcouch/couch"

	"github.com/microcouch/couch/cmd/couchctl/errors"
	"github.com/microcouch/couch/cmd/couchctl/log"
)

// DefaultFile is the config file read when --config is not given. A
// leading ~/ is resolved against the current user's home directory.
const DefaultFile = "~/.couchctl.yaml"

const envPrefix = "COUCHCTL"

// envKeys are the configuration keys recognized from the config file and,
// uppercased with underscores (COUCHCTL_URL, COUCHCTL_BASIC_USERNAME, ...),
// from the environment.
var envKeys = []string{
	"url",
	"env_cmd",
	"basic.username",
	"basic.password",
	"oauth.consumer_key",
	"oauth.consumer_secret",
	"oauth.token",
	"oauth.token_secret",
	"ssl.ca_file",
	"ssl.ca_path",
	"ssl.cert_file",
	"ssl.key_file",
}

// Basic is the basic-auth section of the configuration.
type Basic struct {
	Username string `mapstructure:"username" validate:"required"`
	Password string `mapstructure:"password"`
}

// OAuth is the OAuth 1.0a section of the configuration. All four tokens
// are required when the section is present.
type OAuth struct {
	ConsumerKey    string `mapstructure:"consumer_key" validate:"required"`
	ConsumerSecret string `mapstructure:"consumer_secret" validate:"required"`
	Token          string `mapstructure:"token" validate:"required"`
	TokenSecret    string `mapstructure:"token_secret" validate:"required"`
}

// TLS is the ssl section of the configuration. CertFile and KeyFile must
// be given together.
type TLS struct {
	CAFile        string `mapstructure:"ca_file"`
	CAPath        string `mapstructure:"ca_path"`
	CertFile      string `mapstructure:"cert_file" validate:"required_with=KeyFile"`
	KeyFile       string `mapstructure:"key_file" validate:"required_with=CertFile"`
	CheckHostname *bool  `mapstructure:"check_hostname"`
}

// Config is the full couchctl configuration.
type Config struct {
	URL   string `mapstructure:"url" validate:"omitempty,url"`
	Basic *Basic `mapstructure:"basic"`
	OAuth *OAuth `mapstructure:"oauth"`
	TLS   *TLS   `mapstructure:"ssl"`

	// EnvCmd is an external command printing a JSON environment on
	// stdout. When set, it supplies the whole environment, overriding the
	// sections above.
	EnvCmd string `mapstructure:"env_cmd"`
}

var validate = playgroundValidator.New()

// Read loads the configuration from filename, layered under any
// COUCHCTL_* environment variables. A .env file in the working directory
// is loaded into the environment first. A missing config file is not an
// error, since the environment alone may be enough.
func Read(filename string, lg log.Logger) (*Config, error) {
	if err := godotenv.Load(); err == nil {
		lg.Debug("loaded .env")
	}

	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for _, key := range envKeys {
		_ = v.BindEnv(key)
	}

	filename = resolveHome(filename)
	if filename != "" {
		v.SetConfigFile(filename)
		v.SetConfigType("yaml")
		switch err := v.ReadInConfig(); {
		case err == nil:
			lg.Debugf("read config file %q", filename)
		case os.IsNotExist(err):
			lg.Debugf("no config file at %q", filename)
		default:
			return nil, errors.Code(errors.ErrUsage, err)
		}
	}

	cfg := new(Config)
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.Code(errors.ErrUsage, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration's internal consistency: the URL must
// parse as one, OAuth sections must carry all four tokens, and a client
// certificate requires its key.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var invalid *playgroundValidator.InvalidValidationError
		if errors.As(err, &invalid) {
			return err
		}
		fieldErrs := err.(playgroundValidator.ValidationErrors)
		fields := make([]string, len(fieldErrs))
		for i, fe := range fieldErrs {
			fields[i] = configKey(fe.Namespace())
		}
		return errors.Codef(errors.ErrUsage, "invalid config: %s", strings.Join(fields, ", "))
	}
	return nil
}

// configKey converts a validator namespace such as "Config.OAuth.Token" to
// the config file's spelling of the offending key.
func configKey(namespace string) string {
	parts := strings.Split(namespace, ".")[1:]
	for i, part := range parts {
		parts[i] = snakeCase(part)
	}
	return strings.Join(parts, ".")
}

func snakeCase(field string) string {
	switch field {
	case "URL":
		return "url"
	case "TLS":
		return "ssl"
	case "CAFile":
		return "ca_file"
	case "CAPath":
		return "ca_path"
	}
	var b strings.Builder
	for i, r := range field {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Environment converts the configuration into the environment a client is
// resolved from.
func (c *Config) Environment() *couch.Environment {
	env := &couch.Environment{URL: c.URL}
	if c.Basic != nil {
		env.Basic = &couch.BasicAuth{
			Username: c.Basic.Username,
			Password: c.Basic.Password,
		}
	}
	if c.OAuth != nil {
		env.OAuth = &couch.OAuthCreds{
			ConsumerKey:    c.OAuth.ConsumerKey,
			ConsumerSecret: c.OAuth.ConsumerSecret,
			Token:          c.OAuth.Token,
			TokenSecret:    c.OAuth.TokenSecret,
		}
	}
	if c.TLS != nil {
		env.TLS = &couch.TLSConfig{
			CAFile:        c.TLS.CAFile,
			CAPath:        c.TLS.CAPath,
			CertFile:      c.TLS.CertFile,
			KeyFile:       c.TLS.KeyFile,
			CheckHostname: c.TLS.CheckHostname,
		}
	}
	return env
}

func resolveHome(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	usr, err := user.Current()
	if err != nil {
		return path
	}
	return filepath.Join(usr.HomeDir, path[2:])
}
