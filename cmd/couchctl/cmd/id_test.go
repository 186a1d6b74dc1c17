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
	"testing"

	"gitlab.com/flimzy/testy"

	"github.com/microcouch/couch/cmd/couchctl/errors"
)

func Test_id_RunE(t *testing.T) {
	tests := testy.NewTable()
	tests.Add("single id", cmdTest{
		args:   []string{"id"},
		status: 0,
		stdout: `\A[3-9A-Y]{24}\n\z`,
	})
	tests.Add("several ids", cmdTest{
		args:   []string{"id", "-n", "3"},
		status: 0,
		stdout: `\A([3-9A-Y]{24}\n){3}\z`,
	})
	tests.Add("timestamped", cmdTest{
		args:   []string{"id", "--timestamp"},
		status: 0,
		stdout: `\A\d+-[3-9A-Y]{16}\n\z`,
	})
	tests.Add("no arguments allowed", cmdTest{
		args:   []string{"id", "extra"},
		status: errors.ErrUsage,
		stderr: `unknown command "extra"`,
	})

	tests.Run(t, func(t *testing.T, tt cmdTest) {
		tt.Test(t)
	})
}
