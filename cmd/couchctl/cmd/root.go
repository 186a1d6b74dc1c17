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
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/spf13/cobra"

	"github.com/microcouch/couch"

	"github.com/microcouch/couch/cmd/couchctl/config"
	"github.com/microcouch/couch/cmd/couchctl/errors"
	"github.com/microcouch/couch/cmd/couchctl/log"
)

type root struct {
	confFile string
	envCmd   string
	debug    bool

	requestTimeout       string
	parsedRequestTimeout time.Duration
	retryCount           int
	retryDelay           string
	retryDelayParsed     time.Duration

	trace      *couch.ClientTrace
	dumpHeader bool
	verbose    bool

	log  log.Logger
	conf *config.Config
	env  *couch.Environment
	cmd  *cobra.Command
}

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main().
func Execute(ctx context.Context) {
	lg := log.New()
	root := rootCmd(lg)
	os.Exit(root.execute(ctx))
}

func (r *root) execute(ctx context.Context) int {
	ctx = couch.WithClientTrace(ctx, r.clientTrace())
	err := r.cmd.ExecuteContext(ctx)
	if err == nil {
		return 0
	}
	return extractExitCode(err)
}

func extractExitCode(err error) int {
	if code := errors.InspectErrorCode(err); code != 0 {
		return code
	}

	// Any unhandled errors are assumed to be from Cobra, so return a
	// "failed to initialize" error
	return errors.ErrUsage
}

func rootCmd(lg log.Logger) *root {
	r := &root{
		log: lg,
	}
	r.cmd = &cobra.Command{
		Use:               "couchctl",
		Short:             "couchctl talks to CouchDB-style REST APIs",
		Long:              "This tool makes it easier to administrate and move data in and out of CouchDB's HTTP API",
		PersistentPreRunE: r.init,
	}

	pf := r.cmd.PersistentFlags()
	pf.StringVar(&r.confFile, "config", config.DefaultFile, "Path to config file")
	pf.StringVar(&r.envCmd, "env-cmd", "", "Command printing a JSON environment on stdout, overriding the config file")
	pf.BoolVar(&r.debug, "debug", false, "Enable debug output")
	pf.IntVar(&r.retryCount, "retry", 0, "In case of transient network error, retry up to this many times. A negative value retries forever.")
	pf.StringVar(&r.retryDelay, "retry-delay", "", "Delay between retry attempts. Disables the default exponential backoff algorithm.")
	pf.StringVar(&r.requestTimeout, "request-timeout", "", "The time limit for each request.")
	pf.BoolVarP(&r.dumpHeader, "header", "H", false, "Output response header")
	pf.BoolVarP(&r.verbose, "verbose", "v", false, "Output bi-directional network traffic")

	r.cmd.AddCommand(pingCmd(r))
	r.cmd.AddCommand(dumpCmd(r))
	r.cmd.AddCommand(loadCmd(r))
	r.cmd.AddCommand(compactCmd(r))
	r.cmd.AddCommand(idCmd(r))

	return r
}

// parseDuration parses a timeout or delay value. A bare number is taken
// as seconds.
func parseDuration(val string) (time.Duration, error) {
	if val == "" {
		return 0, nil
	}
	if d, err := strconv.ParseFloat(val, 64); err == nil {
		if d < 0 {
			return 0, errors.Code(errors.ErrUsage, "negative timeout not permitted")
		}
		return time.Duration(d * float64(time.Second)), nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, errors.Code(errors.ErrUsage, err)
	}
	if d < 0 {
		return 0, errors.Code(errors.ErrUsage, "negative timeout not permitted")
	}
	return d, nil
}

func (r *root) init(cmd *cobra.Command, _ []string) error {
	r.log.SetOut(cmd.OutOrStdout())
	r.log.SetErr(cmd.ErrOrStderr())
	r.log.SetDebug(r.debug)

	r.log.Debug("Debug mode enabled")

	var err error
	r.parsedRequestTimeout, err = parseDuration(r.requestTimeout)
	if err != nil {
		return err
	}
	r.retryDelayParsed, err = parseDuration(r.retryDelay)
	if err != nil {
		return err
	}

	r.conf, err = config.Read(r.confFile, r.log)
	if err != nil {
		return err
	}

	envCmd := r.conf.EnvCmd
	if r.envCmd != "" {
		envCmd = r.envCmd
	}
	if envCmd != "" {
		fields := strings.Fields(envCmd)
		r.log.Debugf("environment from command: %s", envCmd)
		env, err := couch.EnvCommand(cmd.Context(), fields[0], fields[1:]...)
		if err != nil {
			return errors.Code(errors.ErrUsage, err)
		}
		r.env = env
	} else {
		r.env = r.conf.Environment()
	}

	r.setTrace()

	// Past this point errors are operational, not usage mistakes.
	r.cmd.SilenceUsage = true

	return nil
}

// server returns a handle for the resolved environment, with the request
// timeout applied.
func (r *root) server() (*couch.Server, error) {
	server, err := couch.NewServer(r.env)
	if err != nil {
		return nil, err
	}
	server.Client().Timeout = r.parsedRequestTimeout
	r.log.Debugf("server: %s", server.Client().URL())
	return server, nil
}

func (r *root) database(name string) (*couch.Database, error) {
	server, err := r.server()
	if err != nil {
		return nil, err
	}
	return server.Database(name), nil
}

// retry calls fn, retrying transient network failures according to the
// --retry and --retry-delay flags. HTTP status errors are never retried;
// the library reports them faithfully and couchctl treats them as final.
func (r *root) retry(fn func() error) error {
	if r.retryCount == 0 {
		return fn()
	}
	var bo backoff.BackOff
	switch {
	case r.retryDelayParsed == 0 && r.retryDelay != "": // Disables retry delay
		bo = &backoff.ZeroBackOff{}
	case r.retryDelayParsed != 0:
		bo = backoff.NewConstantBackOff(r.retryDelayParsed)
	default:
		bo = backoff.NewExponentialBackOff()
	}
	if r.retryCount >= 0 {
		// WithMaxRetries really means WithMaxTries, so +1
		bo = backoff.WithMaxRetries(bo, uint64(r.retryCount)+1)
	}
	var count int
	var err error
	return backoff.Retry(func() error {
		if count > 0 {
			msg := fmt.Sprintf("Warning: Transient problem: %s.", err)
			switch nbo := bo.NextBackOff(); nbo {
			case backoff.Stop, 0:
			default:
				msg += fmt.Sprintf(" Will retry in %s.", fmtDuration(nbo))
			}
			if remain := r.retryCount - count; remain > 0 {
				msg += fmt.Sprintf(" %d retries left.", remain)
			}
			r.log.Info(msg)
		}
		count++
		err = fn()
		if err != nil {
			var transportErr *couch.TransportError
			if !errors.As(err, &transportErr) {
				return backoff.Permanent(err)
			}
		}
		return err
	}, bo)
}

// nolint:gomnd
func fmtDuration(dur time.Duration) string {
	s := dur.Seconds()
	if s < 60 {
		return fmt.Sprintf("%0.2fs", s)
	}
	m := int(s / 60)
	s -= float64(m) * 60
	if m < 60 {
		return fmt.Sprintf("%dm%ds", m, int(s))
	}
	h := m / 60
	m -= h * 60
	return fmt.Sprintf("%dh%dm", h, m)
}
