// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

//Package grub writes the bootloader config for the installed system and
//installs grub for whichever firmware we booted under.
package grub

import (
	"bytes"
	"fmt"
	"io/ioutil"
	"os"
	fp "path/filepath"
	"strings"
	"text/template"

	"github.com/hardenedos/debforge/pkg/common/strs"
	"github.com/hardenedos/debforge/pkg/hw/uefi"
	"github.com/hardenedos/debforge/pkg/install/chroot"
	"github.com/hardenedos/debforge/pkg/log"
)

const bootloaderId = "debian"

//Inputs for /etc/default/grub.
type Config struct {
	LuksUUID      string //uuid of the luks container, for the kernel cmdline
	SerialConsole string //e.g. ttyS0,115200n8; empty disables serial
	ExtraCmdline  string //appended last so it can override anything
}

var defaultGrubTmpl = template.Must(template.New("grub").Parse(
	`GRUB_DEFAULT=0
GRUB_TIMEOUT=2
GRUB_DISTRIBUTOR=Debian
GRUB_CMDLINE_LINUX_DEFAULT="quiet"
GRUB_CMDLINE_LINUX="{{.Cmdline}}"
GRUB_ENABLE_CRYPTODISK=y
GRUB_DISABLE_OS_PROBER=true
{{- if .Serial}}
GRUB_TERMINAL="console serial"
GRUB_SERIAL_COMMAND="serial --unit={{.SerialUnit}} --speed={{.SerialSpeed}}"
{{- end}}
`))

type tmplArgs struct {
	Cmdline     string
	Serial      bool
	SerialUnit  string
	SerialSpeed string
}

//Kernel cmdline for a LUKS root. The initramfs cryptsetup hook keys off
//cryptdevice=; root points at the opened mapper device.
func (c Config) Cmdline() string {
	parts := []string{
		fmt.Sprintf("cryptdevice=UUID=%s:%s", c.LuksUUID, strs.LuksName()),
		fmt.Sprintf("root=/dev/mapper/%s", strs.LuksName()),
	}
	if c.SerialConsole != "" {
		parts = append(parts, "console="+c.SerialConsole)
	}
	if c.ExtraCmdline != "" {
		parts = append(parts, c.ExtraCmdline)
	}
	return strings.Join(parts, " ")
}

//Renders /etc/default/grub content.
func (c Config) Render() (string, error) {
	args := tmplArgs{Cmdline: c.Cmdline()}
	if c.SerialConsole != "" {
		args.Serial = true
		args.SerialUnit, args.SerialSpeed = parseSerial(c.SerialConsole)
	}
	buf := &bytes.Buffer{}
	if err := defaultGrubTmpl.Execute(buf, args); err != nil {
		return "", err
	}
	return buf.String(), nil
}

//ttyS0,115200n8 -> unit 0, speed 115200
func parseSerial(con string) (unit, speed string) {
	unit, speed = "0", "115200"
	dev := con
	if i := strings.Index(con, ","); i >= 0 {
		dev = con[:i]
		speed = strings.TrimRight(con[i+1:], "noe12345678")
	}
	if strings.HasPrefix(dev, "ttyS") {
		unit = dev[4:]
	}
	return
}

//Writes /etc/default/grub under root.
func (c Config) WriteDefault(root string) error {
	data, err := c.Render()
	if err != nil {
		return err
	}
	path := fp.Join(root, "etc", "default", "grub")
	if err := os.MkdirAll(fp.Dir(path), 0755); err != nil {
		return err
	}
	return ioutil.WriteFile(path, []byte(data), 0644)
}

//Installs grub inside the chroot and regenerates config and initramfs.
//dev is the whole-disk device, only used for BIOS installs.
func Install(env *chroot.Env, dev string) error {
	if uefi.BootedUEFI() {
		if _, err := env.Run("grub-install", "--target=x86_64-efi",
			"--efi-directory=/boot/efi", "--bootloader-id="+bootloaderId,
			"--recheck"); err != nil {
			return err
		}
	} else {
		if _, err := env.Run("grub-install", "--target=i386-pc", "--recheck", dev); err != nil {
			return err
		}
	}
	if _, err := env.Run("update-grub"); err != nil {
		return err
	}
	if _, err := env.Run("update-initramfs", "-u", "-k", "all"); err != nil {
		return err
	}
	verifyBootEntry()
	return nil
}

//On UEFI, confirm the firmware now knows about our entry. Failure is only
//logged; some firmwares hide entries until reboot.
func verifyBootEntry() {
	if !uefi.BootedUEFI() {
		return
	}
	entries := uefi.AllBootEntryVars().WithDescription(bootloaderId)
	if len(entries) == 0 {
		log.Logf("no %q uefi boot entry found; firmware may create it on reboot", bootloaderId)
		return
	}
	for _, e := range entries {
		log.Logf("uefi boot entry: %s", e)
	}
}
