// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

package config

import (
	"io/ioutil"
	"os"
	fp "path/filepath"
	"reflect"
	"testing"

	"github.com/hardenedos/debforge/pkg/log/testlog"
)

const sampleConf = `
# target machine
TARGET_DISK=/dev/sda
HOSTNAME="hardened-ws1"
DEBIAN_SUITE=trixie
LUKS_KEY_SIZE=256
ESP_SIZE_MB=256
EXTRA_PACKAGES="sudo curl tmux"
MODULE_BLACKLIST=firewire-core,thunderbolt
SYSCTL_HARDENING=yes
GRUB_CMDLINE_EXTRA='mitigations=auto,nosmt'
HOSTNAME=hardened-ws2  # later keys win
`

func writeConf(t *testing.T, content string) string {
	t.Helper()
	tmp, err := ioutil.TempDir("", "go-test-config")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.RemoveAll(tmp) })
	p := fp.Join(tmp, "hardened-os.conf")
	if err := ioutil.WriteFile(p, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return p
}

//func Load(path string) (*Config, error)
func TestLoad(t *testing.T) {
	tlog := testlog.NewTestLog(t, true, false)
	defer tlog.Freeze()
	cfg, err := Load(writeConf(t, sampleConf))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.TargetDisk != "/dev/sda" {
		t.Errorf("disk: %s", cfg.TargetDisk)
	}
	if cfg.Hostname != "hardened-ws2" {
		t.Errorf("later key must win, got %s", cfg.Hostname)
	}
	if cfg.DebianSuite != "trixie" {
		t.Errorf("suite: %s", cfg.DebianSuite)
	}
	if cfg.LuksKeySize != 256 {
		t.Errorf("key size: %d", cfg.LuksKeySize)
	}
	if cfg.EspSizeMB != 256 || cfg.BootSizeMB != 1024 {
		t.Errorf("sizes: %d %d", cfg.EspSizeMB, cfg.BootSizeMB)
	}
	if len(cfg.ExtraPackages) != 3 || cfg.ExtraPackages[2] != "tmux" {
		t.Errorf("packages: %v", cfg.ExtraPackages)
	}
	if len(cfg.ModBlacklist) != 2 || cfg.ModBlacklist[0] != "firewire-core" {
		t.Errorf("blacklist: %v", cfg.ModBlacklist)
	}
	if !cfg.SysctlHarden {
		t.Error("sysctl hardening should be on")
	}
	if cfg.GrubCmdExtra != "mitigations=auto,nosmt" {
		t.Errorf("cmdline: %s", cfg.GrubCmdExtra)
	}
	//untouched keys keep defaults
	if cfg.LuksCipher != "aes-xts-plain64" || cfg.LuksPbkdf != "argon2id" {
		t.Errorf("luks defaults: %s %s", cfg.LuksCipher, cfg.LuksPbkdf)
	}
}

func TestEnvOverride(t *testing.T) {
	tlog := testlog.NewTestLog(t, true, false)
	defer tlog.Freeze()
	os.Setenv("DEBFORGE_HOSTNAME", "from-env")
	os.Setenv("DEBFORGE_BOOT_SIZE_MB", "2048")
	defer os.Unsetenv("DEBFORGE_HOSTNAME")
	defer os.Unsetenv("DEBFORGE_BOOT_SIZE_MB")
	cfg, err := Load(writeConf(t, sampleConf))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Hostname != "from-env" {
		t.Errorf("env must override file, got %s", cfg.Hostname)
	}
	if cfg.BootSizeMB != 2048 {
		t.Errorf("boot size: %d", cfg.BootSizeMB)
	}
}

func TestValidate(t *testing.T) {
	for _, td := range []struct {
		name, line string
		wantErr    error
	}{
		{"badHostname", "HOSTNAME=Not_Valid", EHostname},
		{"hyphenEdge", "HOSTNAME=-leading", EHostname},
		{"zeroEsp", "ESP_SIZE_MB=0", ESize},
		{"badKeySize", "LUKS_KEY_SIZE=384", EKeySize},
		{"badPbkdf", "LUKS_PBKDF=scrypt", EPbkdf},
		{"badFS", "ROOT_FS=btrfs", ERootFS},
		{"goodXfs", "ROOT_FS=xfs", nil},
	} {
		t.Run(td.name, func(t *testing.T) {
			tlog := testlog.NewTestLog(t, true, false)
			defer tlog.Freeze()
			_, err := Load(writeConf(t, td.line+"\n"))
			if err != td.wantErr {
				t.Errorf("want %v, got %v", td.wantErr, err)
			}
		})
	}
}

//func splitList(v string) (out []string)
func TestSplitList(t *testing.T) {
	for _, td := range []struct {
		in   string
		want []string
	}{
		{"a b,c", []string{"a", "b", "c"}},
		{"firewire-core,thunderbolt", []string{"firewire-core", "thunderbolt"}},
		{`pkg-a "b c" pkg-d`, []string{"pkg-a", "b c", "pkg-d"}},
		{`'quoted,comma'`, []string{"quoted,comma"}},
		{"", nil},
	} {
		got := splitList(td.in)
		if !reflect.DeepEqual(got, td.want) {
			t.Errorf("%q: got %v want %v", td.in, got, td.want)
		}
	}
}

//func ValidHostname(h string) bool
func TestValidHostname(t *testing.T) {
	for _, td := range []struct {
		h    string
		want bool
	}{
		{"hardened-ws1", true},
		{"a", true},
		{"", false},
		{"UPPER", false},
		{"with space", false},
		{"trailing-", false},
		{"ok-123", true},
	} {
		if got := ValidHostname(td.h); got != td.want {
			t.Errorf("%q: got %t want %t", td.h, got, td.want)
		}
	}
}
