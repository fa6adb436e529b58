// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

package firstboot

import (
	"io/ioutil"
	"os"
	fp "path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/hardenedos/debforge/pkg/log/testlog"
)

//func Hostify(id string) string
func TestHostify(t *testing.T) {
	for _, td := range []struct{ in, want string }{
		{"ABC123", "hardened-abc123"},
		{"a_b.c", "hardened-a-b-c"},
		{"xyz-", "hardened-xyz0"},
		{"", "hardened0"},
	} {
		got := Hostify(td.in)
		if got != td.want {
			t.Errorf("%q: want %s, got %s", td.in, td.want, got)
		}
		if !regexp.MustCompile(`^[a-z0-9][a-z0-9-]*[a-z0-9]$`).MatchString(got) {
			t.Errorf("%q: %s not a valid hostname", td.in, got)
		}
	}
}

//func hostInfo(root, hostName string)
func TestHostInfo(t *testing.T) {
	tlog := testlog.NewTestLog(t, true, false)
	defer tlog.Freeze()
	dir, err := ioutil.TempDir("", "firstboot")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)
	if err := os.MkdirAll(fp.Join(dir, "etc"), 0755); err != nil {
		t.Fatal(err)
	}
	//pre-existing hosts file with a localhost line to be rewritten
	hosts := "127.0.0.1 debian localhost\n::1 localhost ip6-localhost\n"
	if err := ioutil.WriteFile(fp.Join(dir, "etc", "hosts"), []byte(hosts), 0644); err != nil {
		t.Fatal(err)
	}

	hostInfo(dir, "hardened-abc123")

	data, err := ioutil.ReadFile(fp.Join(dir, "etc", "hostname"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "hardened-abc123\n" {
		t.Errorf("hostname: %q", data)
	}

	data, err = ioutil.ReadFile(fp.Join(dir, "etc", "hosts"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "127.0.0.1   hardened-abc123 localhost") {
		t.Errorf("hosts: %q", data)
	}
	if strings.Contains(string(data), "debian") {
		t.Errorf("old hosts line not replaced: %q", data)
	}

	tgt, err := os.Readlink(fp.Join(dir, "etc", "localtime"))
	if err != nil {
		t.Fatal(err)
	}
	if tgt != "/usr/share/zoneinfo/Etc/UTC" {
		t.Errorf("localtime: %s", tgt)
	}
}

//func machineId(root string)
func TestMachineId(t *testing.T) {
	tlog := testlog.NewTestLog(t, true, false)
	defer tlog.Freeze()
	dir, err := ioutil.TempDir("", "firstboot")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)
	if err := os.MkdirAll(fp.Join(dir, "etc"), 0755); err != nil {
		t.Fatal(err)
	}
	machineId(dir)
	data, err := ioutil.ReadFile(fp.Join(dir, "etc", "machine-id"))
	if err != nil {
		t.Fatal(err)
	}
	id := strings.TrimSpace(string(data))
	if !regexp.MustCompile(`^[0-9a-f]{32}$`).MatchString(id) {
		t.Errorf("machine-id: %q", id)
	}
	//two runs must differ
	os.Remove(fp.Join(dir, "etc", "machine-id"))
	machineId(dir)
	data2, _ := ioutil.ReadFile(fp.Join(dir, "etc", "machine-id"))
	if string(data) == string(data2) {
		t.Error("machine-id not random")
	}
}

//func macMatches(mac []byte, prefixes [][]byte) bool
func TestMacMatches(t *testing.T) {
	pfxs := [][]byte{
		{0x56, 0x78, 0x90},
		{0x00, 0x1b, 0x21},
	}
	for _, td := range []struct {
		mac  []byte
		want bool
	}{
		{[]byte{0x56, 0x78, 0x90, 0x01, 0x02, 0x03}, true},
		{[]byte{0x00, 0x1b, 0x21, 0xaa, 0xbb, 0xcc}, true},
		{[]byte{0x00, 0x1b, 0x22, 0xaa, 0xbb, 0xcc}, false},
		{[]byte{0x56, 0x78}, false}, //shorter than any prefix
		{nil, false},
	} {
		if got := macMatches(td.mac, pfxs); got != td.want {
			t.Errorf("%s: got %t want %t", fmtMac(td.mac), got, td.want)
		}
	}
	//an empty prefix never matches
	if macMatches([]byte{1, 2, 3, 4, 5, 6}, [][]byte{{}}) {
		t.Error("empty prefix matched")
	}
}
