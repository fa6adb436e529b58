// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

//Package bootstrap populates the target root filesystem with a minimal
//Debian system via debootstrap.
package bootstrap

import (
	"fmt"
	"io/ioutil"
	"os"
	"os/exec"
	fp "path/filepath"
	"strings"

	"github.com/hardenedos/debforge/pkg/config"
	futil "github.com/hardenedos/debforge/pkg/fileutil"
	"github.com/hardenedos/debforge/pkg/log"
	"github.com/hardenedos/debforge/pkg/prebuilt"
)

//Packages every install needs regardless of config. The kernel package is
//added separately since profiles may override it.
var basePackages = []string{
	"cryptsetup",
	"cryptsetup-initramfs",
	"initramfs-tools",
	"locales",
	"console-setup",
	"systemd-sysv",
	"dbus",
	"sudo",
	"openssh-server",
}

//Packages that depend on how we boot.
func firmwarePackages(efi bool) []string {
	if efi {
		return []string{"grub-efi-amd64", "efibootmgr"}
	}
	return []string{"grub-pc"}
}

//Assemble the --include list: base + firmware + kernel + extras, deduped,
//order preserved.
func includeList(cfg *config.Config, kernelPkg string, efi bool) []string {
	var list []string
	seen := make(map[string]bool)
	add := func(pkgs ...string) {
		for _, p := range pkgs {
			if p == "" || seen[p] {
				continue
			}
			seen[p] = true
			list = append(list, p)
		}
	}
	add(basePackages...)
	add(firmwarePackages(efi)...)
	add(kernelPkg)
	add(cfg.ExtraPackages...)
	return list
}

//Run debootstrap. kernelPkg overrides cfg.KernelPackage when non-empty
//(hardware profiles may require a specific kernel).
func Run(cfg *config.Config, root, kernelPkg string, efi bool) error {
	if kernelPkg == "" {
		kernelPkg = cfg.KernelPackage
	}
	inc := includeList(cfg, kernelPkg, efi)
	args := []string{
		"--arch=amd64",
		"--include=" + strings.Join(inc, ","),
		cfg.DebianSuite,
		root,
		cfg.DebianMirror,
	}
	log.Msgf("bootstrapping %s into %s...", cfg.DebianSuite, root)
	_, success := log.Cmd(exec.Command("debootstrap", args...))
	if !success {
		return fmt.Errorf("debootstrap %s failed", cfg.DebianSuite)
	}
	return Verify(root)
}

//Unpack a prebuilt root filesystem tarball into root, in place of running
//debootstrap over the network. ROOTFS_TAR points the installer at one; isos
//built with --rootfs stage it under live/.
func Unpack(tarball, root string) error {
	if err := prebuilt.Extract(tarball, root); err != nil {
		return err
	}
	return Verify(root)
}

//Sanity checks on a bootstrapped tree. debootstrap can exit zero after
//partial failures in some error paths, so don't trust the exit code alone.
func Verify(root string) error {
	for _, f := range []string{"etc/os-release", "usr/bin/dpkg", "bin/sh"} {
		p := fp.Join(root, f)
		if _, err := os.Stat(p); err != nil {
			return fmt.Errorf("bootstrapped tree incomplete, missing %s", f)
		}
	}
	if futil.IsEmptyDir(fp.Join(root, "var", "lib", "dpkg")) {
		return fmt.Errorf("bootstrapped tree has empty dpkg db")
	}
	return nil
}

//Writes the apt sources for the installed system. The bookworm-and-later
//security suite naming is used for anything that isn't an LTS-era suite.
func WriteSources(root string, cfg *config.Config) error {
	main := fmt.Sprintf("deb %s %s main\n", cfg.DebianMirror, cfg.DebianSuite)
	updates := fmt.Sprintf("deb %s %s-updates main\n", cfg.DebianMirror, cfg.DebianSuite)
	security := fmt.Sprintf("deb https://security.debian.org/debian-security %s-security main\n", cfg.DebianSuite)
	data := main + updates + security
	path := fp.Join(root, "etc", "apt", "sources.list")
	if err := os.MkdirAll(fp.Dir(path), 0755); err != nil {
		return err
	}
	return ioutil.WriteFile(path, []byte(data), 0644)
}
