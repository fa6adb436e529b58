// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

package hooks

import (
	"io/ioutil"
	"os"
	fp "path/filepath"
	"strings"
	"testing"

	"github.com/hardenedos/debforge/pkg/log"
	"github.com/hardenedos/debforge/pkg/log/testlog"

	"github.com/stretchr/testify/require"
)

//func (s *Step) Run() (err error)
func TestRun(t *testing.T) {
	var s Step
	var err error
	t.Run("Execute", func(t *testing.T) {
		//test that a command will execute - in this case, printing to stdout
		//also tests ESDontCare + success
		tlog := testlog.NewTestLog(t, true, false)
		s = Step{
			Commands: []StepCmd{{Command: `echo -e 'this\040works'`, ExitStatus: ESDontCare}},
			Verbose:  true,
		}
		err = s.Run()
		if err != nil {
			t.Error(err)
		}
		tlog.Freeze()
		l := tlog.Buf.String()
		if !strings.Contains(l, "040works") {
			//Running [echo -e this\040works]...
			t.Error("has input string been changed? needs to include an escape sequence...")
		}
		if !strings.Contains(l, "command output: this works") {
			t.Errorf("unexpected output '%s'", l)
		}
	})
	t.Run("ShouldFail", func(t *testing.T) {
		//will it catch a command that should fail but doesn't?
		s.Commands[0].ExitStatus = ESMustFail
		tlog := testlog.NewTestLog(t, true, false)
		err = s.Run()
		if err == nil {
			tlog.Freeze()
			t.Log(tlog.Buf.String())
			t.Error("must fail")
		}
	})
	t.Run("DoesFail", func(t *testing.T) {
		//will it accept a command that should fail and does?
		s.Commands[0].Command = `false`
		tlog := testlog.NewTestLog(t, true, false)
		err = s.Run()
		tlog.Freeze()
		if err != nil {
			t.Log(tlog.Buf.String())
			t.Error("must succeed, got", err)
		}
	})
	t.Run("ShouldSucceed", func(t *testing.T) {
		//will it catch a command that should succeed but doesn't?
		s.Commands[0].ExitStatus = ESMustSucceed
		tlog := testlog.NewTestLog(t, true, false)
		err = s.Run()
		tlog.Freeze()
		if err == nil {
			t.Log(tlog.Buf.String())
			t.Error("must fail")
		}
	})
	t.Run("EmptyCommand", func(t *testing.T) {
		//a command that templates away to nothing must error, not panic
		s.Commands[0] = StepCmd{Command: "{{if false}}x{{end}}"}
		tlog := testlog.NewTestLog(t, true, false)
		err = s.Run()
		tlog.Freeze()
		if err == nil {
			t.Error("must fail")
		}
		s.Commands[0] = StepCmd{Command: "false"}
	})
	t.Run("FailsDontCare", func(t *testing.T) {
		//will it accept a command that fails when we don't care about the exit status?
		//success + don't care is checked by Execute test
		s.Commands[0].ExitStatus = ESDontCare
		tlog := testlog.NewTestLog(t, true, false)
		err = s.Run()
		tlog.Freeze()
		if err != nil {
			t.Log(tlog.Buf.String())
			t.Error("must succeed, got", err)
		}
	})
}

//func (s *Step) applyTmpl(in string) (out string, err error)
func TestApplyTmpl(t *testing.T) {
	tlog := testlog.NewTestLog(t, true, false)
	for _, td := range tmplTestData {
		t.Run(td.name, func(t *testing.T) {
			s := Step{tmplData: &CommonTemplateData}
			got, err := s.applyTmpl(td.in)
			if td.expectFailure == (err == nil) {
				if err != nil {
					t.Error(err)
				} else {
					t.Error("expected error, got none")
				}
			}
			if got != td.want {
				t.Errorf("want %s, got %s", td.want, got)
			}
		})
		tlog.Freeze()
		l := tlog.Buf.String()
		if len(l) > 0 {
			t.Log(l)
		}
	}
}

type tmplTestDataS []struct {
	name, in, want string
	expectFailure  bool
}

var tmplTestData tmplTestDataS

func init() {
	log.SetPrefix("test")
	SetTemplateData("/mnt/target", "/etc/debforge", "hardened-abc123", "/dev/sda")

	tmplTestData = tmplTestDataS{
		{"a", "a", "a", false},
		{"b", "{{.TargetDir}}", CommonTemplateData.TargetDir, false},
		{"c", "{{.ConfDir}}", CommonTemplateData.ConfDir, false},
		{"d", "{{.Hostname}}", CommonTemplateData.Hostname, false},
		{"e", "{{.Device}}", CommonTemplateData.Device, false},
		{"f", "{{.asdfss}}", "", true},
	}
}

//func Load(path string, optional bool) (Steps, error)
func TestLoad(t *testing.T) {
	tlog := testlog.NewTestLog(t, true, false)
	defer tlog.Freeze()
	dir, err := ioutil.TempDir("", "hooks")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	j := `{"Hooks":[
{"Name":"report","When":"afterBootstrap","Verbose":true,
 "Commands":[{"Command":"echo {{.Hostname}}","ExitStatus":"dontCare"}]},
{"Name":"wipe check","When":"beforePartition",
 "Commands":[{"Command":"test -b {{.Device}}","ExitStatus":"mustSucceed"}]}
]}`
	path := fp.Join(dir, "hooks.json")
	require.NoError(t, ioutil.WriteFile(path, []byte(j), 0644))

	steps, err := Load(path, false)
	require.NoError(t, err)
	require.Len(t, steps, 2)
	require.Equal(t, RunAfterBootstrap, steps[0].When)
	require.Equal(t, RunBeforePartition, steps[1].When)
	require.Equal(t, ESMustSucceed, steps[1].Commands[0].ExitStatus)

	//missing file
	_, err = Load(fp.Join(dir, "nope.json"), false)
	require.Error(t, err)
	steps, err = Load(fp.Join(dir, "nope.json"), true)
	require.NoError(t, err)
	require.Nil(t, steps)

	//bad When value
	require.NoError(t, ioutil.WriteFile(path, []byte(`{"Hooks":[{"When":"never"}]}`), 0644))
	_, err = Load(path, false)
	require.Error(t, err)
}
