// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

// Package hooks implements user-defined install steps that can be specified
// in a hooks json file. Each step runs one or more commands at a given point
// in the install, and individual command success/failure can be required,
// ignored, or inverted.
//
// Commands first have templating resolved, then are split into args via
// github.com/google/shlex. Commands for a step are executed in order. Steps
// with the same When value are executed in the order listed in json.
package hooks

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io/ioutil"
	"os/exec"
	"strings"
	"text/template"

	"github.com/google/shlex"
	"github.com/hardenedos/debforge/pkg/log"
)

type WhenType int

const (
	RunBeforePartition WhenType = iota
	RunAfterPartition
	RunBeforeBootstrap
	RunAfterBootstrap
	RunAfterInstall
)

func (wt WhenType) String() string {
	switch wt {
	case RunBeforePartition:
		return "beforePartition"
	case RunAfterPartition:
		return "afterPartition"
	case RunBeforeBootstrap:
		return "beforeBootstrap"
	case RunAfterBootstrap:
		return "afterBootstrap"
	case RunAfterInstall:
		return "afterInstall"
	}
	return fmt.Sprintf("WhenType(%d)", int(wt))
}

func (wt *WhenType) UnmarshalJSON(b []byte) error {
	switch strings.ToLower(strings.Trim(string(b), `"`)) {
	case "beforepartition":
		fallthrough
	case "runbeforepartition":
		*wt = RunBeforePartition
	case "afterpartition":
		fallthrough
	case "runafterpartition":
		*wt = RunAfterPartition
	case "beforebootstrap":
		fallthrough
	case "runbeforebootstrap":
		*wt = RunBeforeBootstrap
	case "afterbootstrap":
		fallthrough
	case "runafterbootstrap":
		*wt = RunAfterBootstrap
	case "afterinstall":
		fallthrough
	case "runafterinstall":
		*wt = RunAfterInstall
	default:
		return fmt.Errorf("unable to translate %s into a WhenType", string(b))
	}
	return nil
}

type Steps []Step

func (c Steps) RunApplicable(When WhenType) (success bool) {
	var err error
	for _, s := range c {
		if s.When == When {
			err = s.Run()
			if err != nil {
				log.Logf("Error executing Step %s: %s", s.Name, err)
				return false
			}
		}
	}
	return true
}

//Loads steps from a hooks json file. Missing file is not an error when
//optional is set; an empty path always yields no steps.
func Load(path string, optional bool) (Steps, error) {
	if path == "" {
		return nil, nil
	}
	data, err := ioutil.ReadFile(path)
	if err != nil {
		if optional {
			log.Logf("no hooks file at %s", path)
			return nil, nil
		}
		return nil, err
	}
	var parsed struct{ Hooks Steps }
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("parsing %s: %s", path, err)
	}
	return parsed.Hooks, nil
}

type ExitStatus int

const (
	ESMustSucceed ExitStatus = iota
	ESDontCare
	ESMustFail
)

func (es *ExitStatus) UnmarshalJSON(b []byte) error {
	switch strings.ToLower(strings.Trim(string(b), `"`)) {
	case "mustsucceed":
		fallthrough
	case "esmustsucceed":
		*es = ESMustSucceed
	case "dontcare":
		fallthrough
	case "esdontcare":
		*es = ESDontCare
	case "mustfail":
		fallthrough
	case "esmustfail":
		*es = ESMustFail
	default:
		return fmt.Errorf("unable to translate %s into an exit status type", string(b))
	}
	return nil
}

/* A command to be executed during a Step. Command, AddPath, and AddLibPath are subject
** to template expansion using the values in StepData. Templating is via golang's
** package text/template.
**
** Example: report the target mount
** Command could be "echo 'Installing to {{.TargetDir}}'".
**
** Note that AddPath only applies to additional executables used by Command, and cannot
** be used to search for Command itself. AddLibPath, however, _will_ apply to Command.
 */
type StepCmd struct {
	ExitStatus          ExitStatus
	Command             string
	AddPath, AddLibPath string
}

//Data usable in step templates.
type StepData struct {
	TargetDir string // where the target root fs is mounted
	ConfDir   string // config dir on the installed system
	Hostname  string // hostname being configured
	Device    string // whole-disk device being installed to
}

var CommonTemplateData StepData

//call once the target is known
func SetTemplateData(targetDir, confDir, hostname, device string) {
	CommonTemplateData = StepData{
		TargetDir: targetDir,
		ConfDir:   confDir,
		Hostname:  hostname,
		Device:    device,
	}
}

// A Step specifies a sequence of 1 or more command executions. Commands are
// subject to template expansion.
type Step struct {
	Name     string
	When     WhenType
	Commands []StepCmd
	Verbose  bool
	tmplData *StepData
}

// Run executes a step's commands in order. Any command whose exit code does
// not match the specified value causes Run() to exit with error.
func (s *Step) Run() (err error) {
	s.tmplData = &CommonTemplateData
	for _, c := range s.Commands {
		err = s.runCmd(c)
		if err != nil {
			break
		}
	}
	return
}

var (
	EEXECSUCCESS = fmt.Errorf("Execution succeeded but must fail")
	EEXECFAIL    = fmt.Errorf("Execution failed but must succeed")
)

func (s *Step) runCmd(c StepCmd) error {
	out, err := s.applyTmpl(c.Command)
	if err != nil {
		return err
	}
	args, err := shlex.Split(out)
	if err != nil {
		return err
	}
	if len(args) == 0 {
		return fmt.Errorf("step %s: command %q expands to nothing", s.Name, c.Command)
	}
	cmd := exec.Command(args[0])
	cmd.Args = args
	if c.AddPath != "" {
		p, err := s.applyTmpl(c.AddPath)
		if err != nil {
			return err
		}
		addEnv(cmd, "PATH", p, true)
	}
	if c.AddLibPath != "" {
		l, err := s.applyTmpl(c.AddLibPath)
		if err != nil {
			return err
		}
		addEnv(cmd, "LD_LIBRARY_PATH", l, true)
	}
	out, success := log.Cmd(cmd)
	if success && s.Verbose {
		log.Logf("command output: %s", out)
	}
	if success && c.ExitStatus == ESMustFail {
		err = EEXECSUCCESS
	} else if !success && c.ExitStatus == ESMustSucceed {
		err = EEXECFAIL
	}
	return err
}

func (s *Step) applyTmpl(in string) (out string, err error) {
	var tmpl *template.Template
	tmpl, err = template.New("").Parse(in)
	if err != nil {
		if s.Verbose {
			log.Logf("Step %s: Error parsing templated command %s: %s", s.Name, in, err)
		}
		return
	}
	var buf bytes.Buffer
	err = tmpl.Execute(&buf, s.tmplData)
	if err != nil {
		if s.Verbose {
			log.Logf("Step %s: Error executing templated command %s: %s", s.Name, in, err)
		}
		return
	}
	out = buf.String()
	if s.Verbose {
		log.Logf("Template expansion in %s: %s -> %s", s.Name, in, out)
	}
	return
}

// Add/overwrite/prepend env var. If var doesn't exist it is created, else it is
// overwritten if prepend is false. If prepend is true, content of val is inserted
// at the beginning, followed by a colon and the existing content.
func addEnv(cmd *exec.Cmd, vname, val string, prepend bool) {
	if cmd.Env == nil {
		cmd.Env = []string{vname + "=" + val}
		return
	}
	for i, e := range cmd.Env {
		sp := strings.SplitN(e, "=", 2)
		if len(sp) != 2 {
			continue
		}
		if sp[0] == vname {
			val += ":" + sp[1]
			cmd.Env[i] = vname + "=" + val
			return
		}
	}
	cmd.Env = append(cmd.Env, vname+"="+val)
}
