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

package log

import (
	"bytes"
	"testing"

	"gitlab.com/flimzy/testy"
)

func TestDefaultLogger(t *testing.T) {
	var stdout, stderr bytes.Buffer
	lg := New()
	lg.SetOut(&stdout)
	lg.SetErr(&stderr)

	lg.Debug("hidden")
	lg.Debugf("also %s", "hidden")
	lg.Info("hello ", "world")
	lg.Infof("n=%d", 42)
	lg.Error("boom")
	lg.Errorf("pct %d%%", 99)

	lg.SetDebug(true)
	lg.Debug("visible")
	lg.Debugf("d=%d", 7)

	wantOut := "hello world\nn=42\n"
	if got := stdout.String(); got != wantOut {
		t.Errorf("Unexpected stdout:\n%s", got)
	}
	wantErr := "boom\npct 99%\nvisible\nd=7\n"
	if got := stderr.String(); got != wantErr {
		t.Errorf("Unexpected stderr:\n%s", got)
	}
}

func TestTestLogger(t *testing.T) {
	lg := NewTest()
	lg.SetDebug(true) // no-op, debug is always collected
	lg.Debug("d")
	lg.Infof("i=%d", 1)
	lg.Error("e ")

	want := []string{
		"[DEBUG] d",
		"[INFO] i=1",
		"[ERROR] e",
	}
	if d := testy.DiffInterface(want, lg.Logs()); d != nil {
		t.Error(d)
	}
}
