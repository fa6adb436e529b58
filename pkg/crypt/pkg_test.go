// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

package crypt

import (
	"fmt"
	"io/ioutil"
	"os"
	fp "path/filepath"
	"strings"
	"testing"

	"github.com/hardenedos/debforge/pkg/log/testlog"
)

const testUUID = "0d1b4a3c-51ee-44dc-9d4c-5cf1d4d59afc"

//func Format(dev string, pass []byte, o Options) error
func TestFormat(t *testing.T) {
	tlog := testlog.NewTestLog(t, true, false)
	defer tlog.Freeze()
	key := testlog.CmdKey([]string{
		"cryptsetup", "luksFormat", "--type", "luks2", "--batch-mode",
		"--key-file=-", "--cipher", "aes-xts-plain64", "--key-size", "512",
		"--pbkdf", "argon2id", "--iter-time", "2000", "/dev/sda3",
	})
	m := testlog.CmdMap{key: {NoRun: true, Result: testlog.Result{Success: true}}}
	tlog.UseMappedCmdHijacker(m)
	defer testlog.RestoreCmd()

	o := Options{Cipher: "aes-xts-plain64", KeySize: 512, Pbkdf: "argon2id", IterTimeMs: 2000}
	if err := Format("/dev/sda3", []byte("hunter2"), o); err != nil {
		t.Error(err)
	}
	if m[key].RunCount != 1 {
		t.Errorf("luksFormat run %d times", m[key].RunCount)
	}
}

func TestFormatFail(t *testing.T) {
	tlog := testlog.NewTestLog(t, true, false)
	defer tlog.Freeze()
	key := testlog.CmdKey([]string{
		"cryptsetup", "luksFormat", "--type", "luks2", "--batch-mode",
		"--key-file=-", "/dev/sda3",
	})
	m := testlog.CmdMap{key: {NoRun: true, Result: testlog.Result{Res: "Device /dev/sda3 is in use.", Success: false}}}
	tlog.UseMappedCmdHijacker(m)
	defer testlog.RestoreCmd()

	if err := Format("/dev/sda3", []byte("hunter2"), Options{}); err == nil {
		t.Error("expected error")
	}
}

//point mapperDir at an empty temp dir so tests see a known set of mappings
func testMapperDir(t *testing.T) string {
	t.Helper()
	dir, err := ioutil.TempDir("", "mapper")
	if err != nil {
		t.Fatal(err)
	}
	old := mapperDir
	mapperDir = dir
	t.Cleanup(func() {
		mapperDir = old
		os.RemoveAll(dir)
	})
	return dir
}

//func Open(dev, name string, pass []byte) (mapper string, err error)
func TestOpen(t *testing.T) {
	tlog := testlog.NewTestLog(t, true, false)
	defer tlog.Freeze()
	dir := testMapperDir(t)
	key := testlog.CmdKey([]string{
		"cryptsetup", "open", "--type", "luks2", "--key-file=-", "/dev/sda3", "cryptroot",
	})
	m := testlog.CmdMap{key: {NoRun: true, Result: testlog.Result{Success: true}}}
	tlog.UseMappedCmdHijacker(m)
	defer testlog.RestoreCmd()

	mapper, err := Open("/dev/sda3", "", []byte("hunter2"))
	if err != nil {
		t.Error(err)
	}
	if mapper != fp.Join(dir, "cryptroot") {
		t.Errorf("mapper path %s", mapper)
	}
	if m[key].RunCount != 1 {
		t.Errorf("open run %d times", m[key].RunCount)
	}
}

//a stale mapping holding the default name must not be reused or clobbered
func TestOpenCollision(t *testing.T) {
	tlog := testlog.NewTestLog(t, true, false)
	defer tlog.Freeze()
	dir := testMapperDir(t)
	if err := ioutil.WriteFile(fp.Join(dir, "cryptroot"), nil, 0600); err != nil {
		t.Fatal(err)
	}
	key := testlog.CmdKey([]string{
		"cryptsetup", "open", "--type", "luks2", "--key-file=-", "/dev/sda3", "cryptroot2",
	})
	m := testlog.CmdMap{key: {NoRun: true, Result: testlog.Result{Success: true}}}
	tlog.UseMappedCmdHijacker(m)
	defer testlog.RestoreCmd()

	mapper, err := Open("/dev/sda3", "", []byte("hunter2"))
	if err != nil {
		t.Fatal(err)
	}
	if mapper != fp.Join(dir, "cryptroot2") {
		t.Errorf("mapper path %s", mapper)
	}
	if m[key].RunCount != 1 {
		t.Errorf("open run %d times", m[key].RunCount)
	}

	//with every variant taken, Open must give up rather than guess
	for i := 2; i < 10; i++ {
		f := fp.Join(dir, fmt.Sprintf("cryptroot%d", i))
		if err := ioutil.WriteFile(f, nil, 0600); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := Open("/dev/sda3", "", []byte("hunter2")); err == nil {
		t.Error("expected error with every name taken")
	}
}

//func UUID(dev string) (string, error)
func TestUUID(t *testing.T) {
	tlog := testlog.NewTestLog(t, true, false)
	defer tlog.Freeze()
	key := testlog.CmdKey([]string{"cryptsetup", "luksUUID", "/dev/sda3"})
	m := testlog.CmdMap{key: {NoRun: true, Result: testlog.Result{Res: testUUID + "\n", Success: true}}}
	tlog.UseMappedCmdHijacker(m)
	defer testlog.RestoreCmd()

	u, err := UUID("/dev/sda3")
	if err != nil {
		t.Error(err)
	}
	if u != testUUID {
		t.Errorf("uuid %q", u)
	}
}

//func (c CrypttabEntry) String() string
func TestCrypttab(t *testing.T) {
	e := RootEntry(testUUID, true)
	want := "cryptroot UUID=" + testUUID + " none luks,discard\n"
	if e.String() != want {
		t.Errorf("\nwant %q\ngot  %q", want, e.String())
	}
	e = RootEntry(testUUID, false)
	want = "cryptroot UUID=" + testUUID + " none luks\n"
	if e.String() != want {
		t.Errorf("\nwant %q\ngot  %q", want, e.String())
	}
}

func TestWriteCrypttab(t *testing.T) {
	dir, err := ioutil.TempDir("", "crypttab")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)
	if err := WriteCrypttab(dir, RootEntry(testUUID, false)); err != nil {
		t.Fatal(err)
	}
	data, err := ioutil.ReadFile(fp.Join(dir, "etc", "crypttab"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(data), "cryptroot UUID=") {
		t.Errorf("crypttab content: %q", data)
	}
	fi, _ := os.Stat(fp.Join(dir, "etc", "crypttab"))
	if fi.Mode().Perm() != 0600 {
		t.Errorf("crypttab mode %v", fi.Mode())
	}
}
