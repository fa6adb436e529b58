// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

//Package iso assembles the installer ISO on the build host: a staging tree
//with kernel, installer initramfs, rootfs tarball and boot configs, then a
//single xorriso run producing a hybrid BIOS/UEFI image.
package iso

import (
	"bytes"
	"fmt"
	"io/ioutil"
	"os"
	"os/exec"
	fp "path/filepath"
	"text/template"

	"github.com/hardenedos/debforge/pkg/common/strs"
	futil "github.com/hardenedos/debforge/pkg/fileutil"
	"github.com/hardenedos/debforge/pkg/fileutil/kver"
	"github.com/hardenedos/debforge/pkg/log"
)

//Hybrid-boot MBR code, shipped with syslinux. Overridable for odd distros.
var IsohybridMbr = "/usr/share/syslinux/isohdpfx.bin"

//Staging is the directory tree an ISO is built from.
type Staging struct {
	Dir     string
	Label   string
	Cmdline string //kernel args for the installer boot entries
}

func NewStaging(dir, label string) *Staging {
	if label == "" {
		label = strs.IsoLabel()
	}
	return &Staging{Dir: dir, Label: label}
}

//AddKernel copies the installer kernel into the staging tree.
func (s *Staging) AddKernel(src string) error {
	if f, err := os.Open(src); err == nil {
		desc, kerr := kver.GetKDesc(f)
		f.Close()
		if kerr == nil {
			log.Logf("installer kernel: %s", desc)
		} else {
			log.Logf("%s does not look like a kernel: %s", src, kerr)
		}
	}
	return s.add(src, fp.Join("live", strs.IsoKernel()))
}

//AddInitrd copies the installer initramfs into the staging tree.
func (s *Staging) AddInitrd(src string) error {
	return s.add(src, fp.Join("live", strs.IsoInitrd()))
}

//AddRootfs copies a prebuilt rootfs tarball into the staging tree. With
//ROOTFS_TAR pointing at the mounted copy, the installer unpacks it instead
//of running debootstrap against a mirror.
func (s *Staging) AddRootfs(src string) error {
	return s.add(src, fp.Join("live", "rootfs.txz"))
}

//AddIsolinux copies the BIOS boot loader binaries into the staging tree.
//isolinux.bin and ldlinux.c32 live in different dirs on debian.
func (s *Staging) AddIsolinux(isolinuxBin, ldlinux string) error {
	if err := s.add(isolinuxBin, fp.Join("isolinux", "isolinux.bin")); err != nil {
		return err
	}
	return s.add(ldlinux, fp.Join("isolinux", "ldlinux.c32"))
}

func (s *Staging) add(src, rel string) error {
	dest := fp.Join(s.Dir, rel)
	if err := os.MkdirAll(fp.Dir(dest), 0755); err != nil {
		return err
	}
	return futil.CopyFile(src, dest, os.O_EXCL)
}

//WriteBootConfigs renders isolinux.cfg and grub.cfg for the staging tree.
//Both menus boot the same kernel/initrd/cmdline.
func (s *Staging) WriteBootConfigs() error {
	d := bootCfgData{
		Label:   s.Label,
		Kernel:  strs.IsoKernel(),
		Initrd:  strs.IsoInitrd(),
		Cmdline: s.Cmdline,
	}
	for _, c := range []struct {
		rel  string
		tmpl *template.Template
	}{
		{fp.Join("isolinux", "isolinux.cfg"), isolinuxTmpl},
		{fp.Join("boot", "grub", "grub.cfg"), grubTmpl},
	} {
		out := new(bytes.Buffer)
		if err := c.tmpl.Execute(out, d); err != nil {
			return err
		}
		dest := fp.Join(s.Dir, c.rel)
		if err := os.MkdirAll(fp.Dir(dest), 0755); err != nil {
			return err
		}
		if err := ioutil.WriteFile(dest, out.Bytes(), 0644); err != nil {
			return err
		}
	}
	return nil
}

//EfiImage builds the FAT image UEFI firmware boots from, embedding the given
//grub EFI binary as the default boot loader. Uses mtools so no loop mounts
//are needed.
func (s *Staging) EfiImage(bootx64 string) error {
	img := fp.Join(s.Dir, "boot", "grub", "efi.img")
	if err := os.MkdirAll(fp.Dir(img), 0755); err != nil {
		return err
	}
	//4MB, plenty for a grub image
	steps := [][]string{
		{"mkdosfs", "-C", img, "4096"},
		{"mmd", "-i", img, "::/EFI", "::/EFI/BOOT"},
		{"mcopy", "-i", img, bootx64, "::/EFI/BOOT/BOOTX64.EFI"},
	}
	for _, args := range steps {
		out, success := log.Cmd(exec.Command(args[0], args[1:]...))
		if !success {
			return fmt.Errorf("%s: %s", args[0], out)
		}
	}
	return nil
}

//Mkisofs runs xorriso over the staging tree, producing output.
func (s *Staging) Mkisofs(output string) error {
	args := mkisofsArgs(s.Dir, s.Label, output)
	out, success := log.Cmd(exec.Command("xorriso", args...))
	if !success {
		return fmt.Errorf("xorriso: %s", out)
	}
	log.Msgf("wrote %s", output)
	return nil
}

//el torito BIOS boot plus an alternate UEFI entry, hybridized so the image
//also boots when dd'd to a usb stick
func mkisofsArgs(dir, label, output string) []string {
	return []string{
		"-as", "mkisofs",
		"-o", output,
		"-isohybrid-mbr", IsohybridMbr,
		"-c", "isolinux/boot.cat",
		"-b", "isolinux/isolinux.bin",
		"-no-emul-boot", "-boot-load-size", "4", "-boot-info-table",
		"-eltorito-alt-boot",
		"-e", "boot/grub/efi.img",
		"-no-emul-boot", "-isohybrid-gpt-basdat",
		"-volid", label,
		dir,
	}
}

type bootCfgData struct {
	Label   string
	Kernel  string
	Initrd  string
	Cmdline string
}

/* templates
*
* dashes ( `{{-` or `-}}` ) affect whitespace and should be changed with care
 */

var isolinuxTmpl, grubTmpl *template.Template

func init() {
	isolinuxTmpl = template.Must(template.New("isolinux").Parse(isolinuxTxt))
	grubTmpl = template.Must(template.New("grub").Parse(grubTxt))
}

const isolinuxTxt = `DEFAULT install
PROMPT 1
TIMEOUT 50

LABEL install
  MENU LABEL Install {{ .Label }}
  KERNEL /live/{{ .Kernel }}
  APPEND initrd=/live/{{ .Initrd }} {{ .Cmdline }}
`

const grubTxt = `set default=0
set timeout=5

menuentry "Install {{ .Label }}" {
    linux /live/{{ .Kernel }} {{ .Cmdline }}
    initrd /live/{{ .Initrd }}
}
`
