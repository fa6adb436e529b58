// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

//Package block enumerates block devices, filters them, and reads their
//size, model, and filesystem info. Used to locate the install target disk
//and to tell it apart from the boot media.
package block

import (
	"io/ioutil"
	"os"
	fp "path/filepath"
	"strings"

	"github.com/hardenedos/debforge/pkg/hw/ioctl"
	"github.com/hardenedos/debforge/pkg/log"
)

type BlockDev struct {
	Name string //e.g. sda, nvme0n1
	Size uint64 //bytes
}

func (b BlockDev) Device() string {
	return fp.Join("/dev", b.Name)
}

//Returns block devices known to the kernel, ignoring virtual devices
//(loop, ram, device-mapper) unless includeVirtual is set.
func Devices(includeVirtual bool) (devs []BlockDev) {
	names := devices(includeVirtual)
	for _, n := range names {
		devs = append(devs, BlockDev{Name: n, Size: ReadSize(fp.Join("/dev", n))})
	}
	return
}

func devices(includeVirtual bool) (devs []string) {
	entries, err := ioutil.ReadDir("/sys/block")
	if err != nil {
		log.Logf("listing block devices: %s", err)
		return
	}
	for _, e := range entries {
		tgt, err := os.Readlink(fp.Join("/sys/block", e.Name()))
		if err != nil {
			//not a symlink on some kernels; keep it
			devs = append(devs, e.Name())
			continue
		}
		if !includeVirtual && strings.Contains(tgt, "devices/virtual/block") {
			continue
		}
		devs = append(devs, e.Name())
	}
	return
}

//Function filtering block devices. Return true to include.
type DevIncludeFn func(d BlockDev) bool

func FilterBlockDevs(devs []BlockDev, filters ...DevIncludeFn) (out []BlockDev) {
	for _, d := range devs {
		keep := true
		for _, f := range filters {
			if !f(d) {
				keep = false
				break
			}
		}
		if keep {
			out = append(out, d)
		}
	}
	return
}

//Include only devices attached via USB. Useful to exclude (or find) the
//installer's own boot media.
func DFiltOnlyUsb(d BlockDev) bool {
	tgt, err := os.Readlink(fp.Join("/sys/block", d.Name))
	if err != nil {
		return false
	}
	return strings.Contains(tgt, "/usb")
}

func DFiltNotUsb(d BlockDev) bool { return !DFiltOnlyUsb(d) }

//Include devices whose size is within tol percent of want bytes, or any
//device at least want bytes when tol is 0. want of 0 (profile gives no size)
//matches everything.
func SizeToleranceMatch(want, tol uint64) DevIncludeFn {
	return func(d BlockDev) bool {
		if want == 0 {
			return true
		}
		if tol == 0 {
			return d.Size >= want
		}
		delta := want * tol / 100
		return d.Size >= want-delta && d.Size <= want+delta
	}
}

//Read device size in bytes via BLKGETSIZE64.
func ReadSize(dev string) (size uint64) {
	f, err := os.OpenFile(dev, os.O_RDONLY, 0)
	if err != nil {
		log.Logf("open %s: %s", dev, err)
		return
	}
	defer f.Close()
	size, err = ioctl.BlkGetSize64(f)
	if err != nil {
		log.Logf("size of %s: %s", dev, err)
	}
	return
}

//Model string from sysfs, empty if unavailable.
func ReadModel(name string) string {
	return sysAttr(name, "device/model")
}

func ReadVendor(name string) string {
	return sysAttr(name, "device/vendor")
}

func sysAttr(name, attr string) string {
	data, err := ioutil.ReadFile(fp.Join("/sys/block", name, attr))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

//True if dev looks like a whole-disk device node, e.g. /dev/sda or
///dev/nvme0n1 but not /dev/sda1.
func IsDev(dev string) bool {
	base := fp.Base(dev)
	_, err := os.Stat(fp.Join("/sys/block", base))
	return err == nil
}

//True if dev looks like a partition, e.g. /dev/sda1 or /dev/nvme0n1p2.
func IsPart(dev string) bool {
	base := fp.Base(dev)
	matches, _ := fp.Glob(fp.Join("/sys/block/*", base))
	return len(matches) > 0
}

//Partition number, or -1 if dev is not a partition.
func PartNum(dev string) int {
	if !IsPart(dev) {
		return -1
	}
	base := fp.Base(dev)
	i := len(base)
	for i > 0 && base[i-1] >= '0' && base[i-1] <= '9' {
		i--
	}
	if i == len(base) {
		return -1
	}
	n := 0
	for _, c := range base[i:] {
		n = n*10 + int(c-'0')
	}
	return n
}

//Parent device of a partition, e.g. /dev/sda for /dev/sda2.
func PartParent(dev string) string {
	base := fp.Base(dev)
	matches, _ := fp.Glob(fp.Join("/sys/block/*", base))
	if len(matches) == 0 {
		return ""
	}
	return fp.Join("/dev", fp.Base(fp.Dir(matches[0])))
}
