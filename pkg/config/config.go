// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

// Package config loads and validates hardened-os.conf, the flat KEY=VALUE
// file controlling the installer. The file is shell-sourceable: # comments,
// optional single or double quotes around values, later keys win. Every key
// may be overridden from the environment as DEBFORGE_<KEY>.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/hardenedos/debforge/pkg/common/strs"
	futil "github.com/hardenedos/debforge/pkg/fileutil"
	"github.com/hardenedos/debforge/pkg/log"

	"github.com/google/shlex"
)

//Install configuration, populated from defaults, then file, then env.
type Config struct {
	TargetDisk     string
	Hostname       string
	DebianSuite    string
	DebianMirror   string
	LuksCipher     string
	LuksKeySize    int
	LuksPbkdf      string
	LuksIterTimeMs int
	EspSizeMB      int
	BootSizeMB     int
	RootFS         string
	ExtraPackages  []string
	KernelPackage  string
	SysctlHarden   bool
	ModBlacklist   []string
	GrubCmdExtra   string
	PrebuiltDir    string
	RootfsTar      string
	IsoLabel       string
	IsoOutput      string
	HooksFile      string
	Profile        string
}

//Returns a Config populated with defaults only.
func Defaults() *Config {
	return &Config{
		DebianSuite:    "bookworm",
		DebianMirror:   "https://deb.debian.org/debian",
		LuksCipher:     "aes-xts-plain64",
		LuksKeySize:    512,
		LuksPbkdf:      "argon2id",
		LuksIterTimeMs: 2000,
		EspSizeMB:      512,
		BootSizeMB:     1024,
		RootFS:         "ext4",
		KernelPackage:  "linux-image-amd64",
		SysctlHarden:   true,
		IsoLabel:       "DEBFORGE",
	}
}

const maxConfLines = 512

// Load reads the config file at path (skipped if path is empty), applies env
// overrides, and validates. Unknown keys log a warning but are not fatal, so
// one conf file can serve multiple tool versions.
func Load(path string) (*Config, error) {
	cfg := Defaults()
	if path != "" {
		lines, err := futil.ReadConfigLines(path, maxConfLines)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
		for _, l := range lines {
			k, v, ok := splitKV(l)
			if !ok {
				log.Logf("config: ignoring malformed line %q", l)
				continue
			}
			if err := cfg.set(k, v); err != nil {
				return nil, fmt.Errorf("%s: %w", path, err)
			}
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

//All keys understood by set(), also used for env overrides.
var keys = []string{
	"TARGET_DISK", "HOSTNAME", "DEBIAN_SUITE", "DEBIAN_MIRROR",
	"LUKS_CIPHER", "LUKS_KEY_SIZE", "LUKS_PBKDF", "LUKS_ITER_TIME_MS",
	"ESP_SIZE_MB", "BOOT_SIZE_MB", "ROOT_FS", "EXTRA_PACKAGES",
	"KERNEL_PACKAGE", "SYSCTL_HARDENING", "MODULE_BLACKLIST",
	"GRUB_CMDLINE_EXTRA", "PREBUILT_DIR", "ROOTFS_TAR", "ISO_LABEL", "ISO_OUTPUT",
	"HOOKS_FILE", "PROFILE",
}

func (cfg *Config) applyEnv() error {
	for _, k := range keys {
		v, set := os.LookupEnv(strs.EnvPrefix() + k)
		if !set {
			continue
		}
		if err := cfg.set(k, unquote(v)); err != nil {
			return fmt.Errorf("env %s%s: %w", strs.EnvPrefix(), k, err)
		}
	}
	return nil
}

func splitKV(line string) (k, v string, ok bool) {
	idx := strings.Index(line, "=")
	if idx < 1 {
		return
	}
	k = strings.TrimSpace(line[:idx])
	//tolerate 'export KEY=VAL' since the file is shell-sourceable
	k = strings.TrimSpace(strings.TrimPrefix(k, "export "))
	v = unquote(strings.TrimSpace(line[idx+1:]))
	ok = true
	return
}

func unquote(v string) string {
	if len(v) > 1 {
		if (v[0] == '"' && v[len(v)-1] == '"') || (v[0] == '\'' && v[len(v)-1] == '\'') {
			return v[1 : len(v)-1]
		}
	}
	return v
}

func (cfg *Config) set(k, v string) error {
	var err error
	switch k {
	case "TARGET_DISK":
		cfg.TargetDisk = v
	case "HOSTNAME":
		cfg.Hostname = v
	case "DEBIAN_SUITE":
		cfg.DebianSuite = v
	case "DEBIAN_MIRROR":
		cfg.DebianMirror = v
	case "LUKS_CIPHER":
		cfg.LuksCipher = v
	case "LUKS_KEY_SIZE":
		cfg.LuksKeySize, err = strconv.Atoi(v)
	case "LUKS_PBKDF":
		cfg.LuksPbkdf = v
	case "LUKS_ITER_TIME_MS":
		cfg.LuksIterTimeMs, err = strconv.Atoi(v)
	case "ESP_SIZE_MB":
		cfg.EspSizeMB, err = strconv.Atoi(v)
	case "BOOT_SIZE_MB":
		cfg.BootSizeMB, err = strconv.Atoi(v)
	case "ROOT_FS":
		cfg.RootFS = v
	case "EXTRA_PACKAGES":
		cfg.ExtraPackages = splitList(v)
	case "KERNEL_PACKAGE":
		cfg.KernelPackage = v
	case "SYSCTL_HARDENING":
		cfg.SysctlHarden, err = parseBool(v)
	case "MODULE_BLACKLIST":
		cfg.ModBlacklist = splitList(v)
	case "GRUB_CMDLINE_EXTRA":
		cfg.GrubCmdExtra = v
	case "PREBUILT_DIR":
		cfg.PrebuiltDir = v
	case "ROOTFS_TAR":
		cfg.RootfsTar = v
	case "ISO_LABEL":
		cfg.IsoLabel = v
	case "ISO_OUTPUT":
		cfg.IsoOutput = v
	case "HOOKS_FILE":
		cfg.HooksFile = v
	case "PROFILE":
		cfg.Profile = v
	default:
		log.Logf("config: unknown key %s", k)
	}
	if err != nil {
		return fmt.Errorf("key %s: bad value %q: %s", k, v, err)
	}
	return nil
}

//lists may be comma- or space-separated; quoting protects embedded spaces
func splitList(v string) (out []string) {
	//unquoted commas count as separators
	quote := rune(0)
	b := []rune(v)
	for i, r := range b {
		switch {
		case quote == 0 && (r == '"' || r == '\''):
			quote = r
		case r == quote:
			quote = 0
		case quote == 0 && r == ',':
			b[i] = ' '
		}
	}
	fields, err := shlex.Split(string(b))
	if err != nil {
		log.Logf("config: cannot parse list %q: %s", v, err)
		return strings.Fields(v)
	}
	for _, f := range fields {
		if f != "" {
			out = append(out, f)
		}
	}
	return
}

func parseBool(v string) (bool, error) {
	switch strings.ToLower(v) {
	case "1", "y", "yes", "true", "on":
		return true, nil
	case "0", "n", "no", "false", "off":
		return false, nil
	}
	return false, fmt.Errorf("not a boolean")
}

var (
	EHostname = fmt.Errorf("hostname must be 1-63 chars of [a-z0-9-], not beginning/ending with '-'")
	ESize     = fmt.Errorf("partition sizes must be > 0")
	EKeySize  = fmt.Errorf("LUKS_KEY_SIZE must be 256 or 512")
	EPbkdf    = fmt.Errorf("LUKS_PBKDF must be argon2id, argon2i, or pbkdf2")
	ERootFS   = fmt.Errorf("ROOT_FS must be ext4 or xfs")
)

// Validate sanity-checks the merged config. Note the suite is deliberately
// not whitelisted - derivatives and future suites must work.
func (cfg *Config) Validate() error {
	if cfg.Hostname != "" && !ValidHostname(cfg.Hostname) {
		return EHostname
	}
	if cfg.EspSizeMB <= 0 || cfg.BootSizeMB <= 0 {
		return ESize
	}
	if cfg.LuksKeySize != 256 && cfg.LuksKeySize != 512 {
		return EKeySize
	}
	switch cfg.LuksPbkdf {
	case "argon2id", "argon2i", "pbkdf2":
	default:
		return EPbkdf
	}
	switch cfg.RootFS {
	case "ext4", "xfs":
	default:
		return ERootFS
	}
	if cfg.LuksIterTimeMs <= 0 {
		return fmt.Errorf("LUKS_ITER_TIME_MS must be > 0")
	}
	return nil
}

//RFC 1123 label rules, lowercase only
func ValidHostname(h string) bool {
	if len(h) == 0 || len(h) > 63 {
		return false
	}
	if h[0] == '-' || h[len(h)-1] == '-' {
		return false
	}
	for _, c := range h {
		switch {
		case c >= 'a' && c <= 'z':
		case c >= '0' && c <= '9':
		case c == '-':
		default:
			return false
		}
	}
	return true
}
