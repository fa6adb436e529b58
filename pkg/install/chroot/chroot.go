// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

//Package chroot runs commands inside the target root, with the kernel
//filesystems bind-mounted the way package maintainer scripts expect.
package chroot

import (
	"fmt"
	"os"
	"os/exec"
	fp "path/filepath"

	futil "github.com/hardenedos/debforge/pkg/fileutil"
	"github.com/hardenedos/debforge/pkg/hw/uefi"
	"github.com/hardenedos/debforge/pkg/log"

	"github.com/u-root/u-root/pkg/mount"
	"golang.org/x/sys/unix"
)

//A chroot environment. Enter binds the kernel filesystems; Exit unbinds
//them in reverse order. Commands fail fatally only at the caller's option.
type Env struct {
	Root   string
	binds  []string
	active bool
}

func New(root string) *Env {
	return &Env{Root: root}
}

type kmount struct {
	src, rel, fstype string
	flags            uintptr
}

//the order matters: dev before dev/pts, sys before the efivarfs inside it
var kernelMounts = []kmount{
	{"proc", "proc", "proc", 0},
	{"sysfs", "sys", "sysfs", 0},
	{"/dev", "dev", "", unix.MS_BIND},
	{"devpts", "dev/pts", "devpts", 0},
}

//efivarfs is not auto-mounted in a fresh sysfs; without it grub-install
//cannot write the nvram boot entry.
func mountList(efi bool) []kmount {
	if !efi {
		return kernelMounts
	}
	l := kernelMounts[:len(kernelMounts):len(kernelMounts)]
	return append(l, kmount{"efivarfs", "sys/firmware/efi/efivars", "efivarfs", 0})
}

func (e *Env) Enter() error {
	if e.active {
		return nil
	}
	for _, km := range mountList(uefi.BootedUEFI()) {
		tgt := fp.Join(e.Root, km.rel)
		var err error
		if km.flags&unix.MS_BIND != 0 {
			err = unix.Mount(km.src, tgt, "", unix.MS_BIND|unix.MS_REC, "")
		} else {
			_, err = mount.Mount(km.src, tgt, km.fstype, "", km.flags)
		}
		if err != nil {
			e.unwind()
			return fmt.Errorf("mounting %s on %s: %s", km.src, tgt, err)
		}
		e.binds = append(e.binds, tgt)
	}
	copyResolv(e.Root)
	e.active = true
	return nil
}

//maintainer scripts and hooks inside the chroot may resolve hostnames.
//Failure is not fatal - offline installs work without it.
func copyResolv(root string) {
	dest := fp.Join(root, "etc", "resolv.conf")
	if err := futil.CopyFile("/etc/resolv.conf", dest, os.O_TRUNC); err != nil {
		log.Logf("copying resolv.conf: %s", err)
	}
}

func (e *Env) Exit() {
	e.unwind()
	e.active = false
}

func (e *Env) unwind() {
	for i := len(e.binds) - 1; i >= 0; i-- {
		if err := unix.Unmount(e.binds[i], unix.MNT_DETACH); err != nil {
			log.Logf("unmounting %s: %s", e.binds[i], err)
		}
	}
	e.binds = nil
}

//Run a command inside the chroot. Maintainer scripts must not prompt, so
//DEBIAN_FRONTEND is pinned.
func (e *Env) Run(args ...string) (string, error) {
	cargs := append([]string{e.Root}, args...)
	cmd := exec.Command("chroot", cargs...)
	cmd.Env = []string{
		"PATH=/usr/sbin:/usr/bin:/sbin:/bin",
		"DEBIAN_FRONTEND=noninteractive",
		"LC_ALL=C",
	}
	out, success := log.Cmd(cmd)
	if !success {
		return out, fmt.Errorf("chroot %v failed", args)
	}
	return out, nil
}

//Like Run, but failure is fatal. For steps with no sane recovery, e.g.
//update-initramfs on a system that won't boot without it.
func (e *Env) MustRun(args ...string) string {
	out, err := e.Run(args...)
	if err != nil {
		log.Fatalf("%s", err)
	}
	return out
}
