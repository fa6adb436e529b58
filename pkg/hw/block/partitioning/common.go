// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

//Package partitioning writes GPT or MBR partition tables via sgdisk or
//sfdisk. The table flavor normally follows the firmware: UEFI boots get
//GPT, legacy gets MBR.
package partitioning

import (
	"os/exec"

	"github.com/hardenedos/debforge/pkg/hw/uefi"
	"github.com/hardenedos/debforge/pkg/log"
)

type Partitioner interface {
	//Write the partition table to disk. No partition may be added afterward.
	Commit() error
	//Add a partition. sizeMegs of 0 means use all remaining space; only
	//valid for the last partition.
	Add(sizeMegs uint64, ptype partType, boot bool, name string)
}

//Chooses GPT or MBR to match the firmware we booted from.
func NewPTable(dev string) Partitioner {
	if uefi.BootedUEFI() {
		return NewGpt(dev)
	}
	return NewMbr(dev)
}

type partType int

const (
	Unused partType = iota
	FAT32
	Linux
	LinuxLUKS
	ESP
)

type partition struct {
	num   int
	size  uint64 //megs; 0 = remainder of disk
	ptype partType
	boot  bool
	name  string
}

//List partitions on a device, via 'fdisk -l'.
func List(dev string) (string, bool) {
	return log.Cmd(exec.Command("fdisk", "-l", dev))
}
