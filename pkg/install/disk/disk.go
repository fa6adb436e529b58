// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

//Package disk locates the install target disk, partitions it, and manages
//the filesystems created on it.
package disk

import (
	"fmt"
	"io"
	"os"
	fp "path/filepath"
	"strings"
	"syscall"

	"github.com/hardenedos/debforge/pkg/common"
	"github.com/hardenedos/debforge/pkg/common/strs"
	"github.com/hardenedos/debforge/pkg/config"
	"github.com/hardenedos/debforge/pkg/hw/block"
	"github.com/hardenedos/debforge/pkg/hw/block/partitioning"
	"github.com/hardenedos/debforge/pkg/log"
)

type Disk struct {
	identifier string //sda, nvme0n1, etc
	size       int64
	numParts   int
}

func (d Disk) SizeBytes() int64 {
	return d.size
}

func (d Disk) Device() string {
	return "/dev/" + d.identifier
}

func (d Disk) Valid() bool {
	return len(d.identifier) != 0
}

//Device node of partition n. Devices whose name ends in a digit (nvme0n1,
//mmcblk0) get a 'p' separator.
func (d Disk) PartDev(n int) string {
	sep := ""
	last := d.identifier[len(d.identifier)-1]
	if last >= '0' && last <= '9' {
		sep = "p"
	}
	return fmt.Sprintf("/dev/%s%s%d", d.identifier, sep, n)
}

func (d Disk) EspDev() string  { return d.PartDev(1) }
func (d Disk) BootDev() string { return d.PartDev(2) }
func (d Disk) LuksDev() string { return d.PartDev(3) }

func DiskFromDev(dev block.BlockDev) *Disk {
	return &Disk{
		identifier: fp.Base(dev.Name),
		size:       int64(dev.Size),
	}
}

//Find the raw disk we'll partition and install to. An explicit TARGET_DISK
//wins; otherwise scan for a non-usb disk meeting the profile's size
//constraints, refusing to guess when more than one qualifies.
func FindTarget(cfg *config.Config, plat common.Profiler) *Disk {
	if cfg.TargetDisk != "" {
		return fromExplicit(cfg.TargetDisk)
	}
	devs := block.FilterBlockDevs(block.Devices(false), block.DFiltNotUsb)
	var candidates dlist
	for _, dev := range devs {
		candidates = append(candidates, DiskFromDev(dev))
	}
	var min, tol uint64
	if p, ok := plat.(interface{ DiskMinSize() uint64 }); ok {
		min = p.DiskMinSize()
	}
	if p, ok := plat.(interface{ DiskTol() uint64 }); ok {
		tol = p.DiskTol()
	}
	matches := candidates.eligible(min, tol)
	switch len(matches) {
	case 1:
		return matches[0]
	case 0:
		log.Fatalf("no eligible disk of ~%d bytes found. Candidates:\n%s\n", min, candidates)
	default:
		log.Fatalf("refusing to choose between %d disks; set %sTARGET_DISK. Candidates:\n%s\n", len(matches), strs.EnvPrefix(), matches)
	}
	return nil
}

func fromExplicit(dev string) *Disk {
	if !block.IsDev(dev) {
		log.Fatalf("%s is not a disk device", dev)
		return nil
	}
	return &Disk{
		identifier: fp.Base(dev),
		size:       int64(block.ReadSize(dev)),
	}
}

type dlist []*Disk

func (dl dlist) String() (s string) {
	if len(dl) == 0 {
		return "(nil)"
	}
	s = "["
	for i, d := range dl {
		s += fmt.Sprintf("%d: %s=%d, ", i, d.identifier, d.size)
	}
	s = s[:len(s)-2] //trailing chars
	s += "]"
	return
}

//Disks the install may land on: sized per the profile, not the media we
//booted the installer from, not holding an open LUKS container (that's a
//disk in use, likely the running system's).
func (dl dlist) eligible(min, tol uint64) (out dlist) {
	szOk := block.SizeToleranceMatch(min, tol)
	for _, d := range dl {
		if !szOk(block.BlockDev{Name: d.identifier, Size: uint64(d.size)}) {
			continue
		}
		if IsInstallMedia(d.Device()) {
			log.Logf("%s is the install media, skipping", d.identifier)
			continue
		}
		if hasOpenLuks(d.Device()) {
			log.Logf("%s holds an open LUKS container, skipping", d.identifier)
			continue
		}
		out = append(out, d)
	}
	return
}

// clears bytes at beginning or end of drive. Whence should be 'io.SeekStart' or 'io.SeekEnd'. NOT a substitute for secure erase.
func (d *Disk) Zero(megs uint, whence int) {
	zero("/dev/"+d.identifier, megs, whence)
}
func zero(dev string, megs uint, whence int) {
	if whence != io.SeekStart && whence != io.SeekEnd {
		panic(fmt.Sprintf("Zero(%d, %d): bad whence", megs, whence))
	}
	blk, err := os.OpenFile(dev, os.O_WRONLY|syscall.O_DIRECT, 0)
	if err != nil {
		log.Logf("Failed to open device %s: %s\n", dev, err)
		return
	}
	defer blk.Close()
	oneM := 1024 * 1024
	zeros := make([]byte, oneM)
	if whence == io.SeekEnd {
		if _, err := blk.Seek(int64(-1*int(megs)*oneM), io.SeekEnd); err != nil {
			log.Logf("seeking: %s", err)
		}
	}
	for i := 0; i < int(megs); i++ {
		if _, err := blk.Write(zeros); err != nil {
			log.Logf("writing zeros: %s", err)
		}
	}
}

//Partition the target: ESP, /boot, and a LUKS container filling the rest.
//Beginning and end of the disk are zeroed first so stale GPT or RAID
//metadata can't confuse anything later.
func (d *Disk) Partition(cfg *config.Config) error {
	d.Zero(16, io.SeekStart)
	//GPT keeps a backup header at the end of the disk, wipe that too
	d.Zero(1, io.SeekEnd)

	pt := partitioning.NewPTable(d.Device())
	pt.Add(uint64(cfg.EspSizeMB), partitioning.ESP, true, strs.EspVolName())
	pt.Add(uint64(cfg.BootSizeMB), partitioning.Linux, false, strs.BootVolName())
	pt.Add(0, partitioning.LinuxLUKS, false, strs.LuksName())
	d.numParts = 3
	if err := pt.Commit(); err != nil {
		return err
	}
	//let the kernel re-read the table
	if err := rereadPartitions(d.Device()); err != nil {
		log.Logf("rereading partition table: %s", err)
	}
	return nil
}

func rereadPartitions(dev string) error {
	f, err := os.OpenFile(dev, os.O_RDONLY, 0)
	if err != nil {
		return err
	}
	defer f.Close()
	//BLKRRPART
	_, _, errno := syscall.Syscall(syscall.SYS_IOCTL, f.Fd(), 0x125f, 0)
	if errno != 0 {
		return errno
	}
	return nil
}

//True if dev looks like the device we booted the installer from.
func IsInstallMedia(dev string) bool {
	for _, bi := range block.GetFilesystems() {
		if !strings.HasPrefix(bi.Device, dev) {
			continue
		}
		if !block.BFiltNotInstallMedia(bi) {
			return true
		}
	}
	return false
}

var sysClassBlock = "/sys/class/block"

//True if any LUKS container on dev is currently mapped. Open containers
//show holders in sysfs; an unopened one (say, a previous install on the
//disk we're about to overwrite) does not.
func hasOpenLuks(dev string) bool {
	for _, bi := range block.GetFilesystems(block.BFiltLuks) {
		if !strings.HasPrefix(bi.Device, dev) {
			continue
		}
		holders, err := fp.Glob(fp.Join(sysClassBlock, fp.Base(bi.Device), "holders", "*"))
		if err == nil && len(holders) > 0 {
			return true
		}
	}
	return false
}
