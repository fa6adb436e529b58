// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

package block

import (
	"os/exec"
	"strings"

	"github.com/google/shlex"
	"github.com/hardenedos/debforge/pkg/common/strs"
	"github.com/hardenedos/debforge/pkg/log"
)

type FsType int

const (
	FsUnknown FsType = iota
	FsExt4
	FsXfs
	FsFat
	FsIso9660
	FsLuks
)

func FsFromStr(s string) FsType {
	switch strings.ToLower(s) {
	case "ext4":
		return FsExt4
	case "xfs":
		return FsXfs
	case "vfat", "fat32", "fat":
		return FsFat
	case "iso9660":
		return FsIso9660
	case "crypto_luks", "luks":
		return FsLuks
	}
	return FsUnknown
}

func (f FsType) String() string {
	switch f {
	case FsExt4:
		return "ext4"
	case FsXfs:
		return "xfs"
	case FsFat:
		return "vfat"
	case FsIso9660:
		return "iso9660"
	case FsLuks:
		return "crypto_LUKS"
	}
	return "unknown"
}

//True for filesystems we can create or mount during install.
func (f FsType) Recognized() bool { return f != FsUnknown }

type BlkInfo struct {
	FsType    FsType
	UUID      string
	Partition int
	PartUUID  string
	Label     string
	Usage     string
	Device    string
}

//Runs blkid and parses its output. Returns info for all devices with a
//recognizable signature.
func GetInfo() (infos []BlkInfo) {
	out, success := log.Cmd(exec.Command("/sbin/blkid", "-o", "full"))
	if !success {
		return
	}
	return parseBlkidOut(out)
}

func parseBlkidOut(out string) (infos []BlkInfo) {
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		idx := strings.Index(line, ": ")
		if idx < 1 {
			log.Logf("blkid: cannot parse line %q", line)
			continue
		}
		bi := BlkInfo{Device: line[:idx], Partition: -1}
		fields, err := shlex.Split(line[idx+2:])
		if err != nil {
			log.Logf("blkid: %s parsing %q", err, line)
			continue
		}
		for _, f := range fields {
			kv := strings.SplitN(f, "=", 2)
			if len(kv) != 2 {
				continue
			}
			switch kv[0] {
			case "TYPE":
				bi.FsType = FsFromStr(kv[1])
			case "UUID":
				bi.UUID = kv[1]
			case "PARTUUID":
				bi.PartUUID = kv[1]
			case "LABEL":
				bi.Label = kv[1]
			case "USAGE":
				bi.Usage = kv[1]
			}
		}
		if IsPart(bi.Device) {
			bi.Partition = PartNum(bi.Device)
		}
		infos = append(infos, bi)
	}
	return
}

//Filesystem type of a single device.
func DetermineFSType(dev string) FsType {
	out, success := log.Cmd(exec.Command("/sbin/blkid", "-o", "value", "-s", "TYPE", dev))
	if !success {
		return FsUnknown
	}
	return FsFromStr(strings.TrimSpace(out))
}

//Function filtering blkid results. Return true to include.
type BlkIncludeFn func(b BlkInfo) bool

//Exclude filesystems belonging to the installer's own boot media, i.e.
//anything labeled with the iso volume label.
func BFiltNotInstallMedia(b BlkInfo) bool {
	if b.FsType == FsIso9660 {
		return false
	}
	return b.Label != strs.IsoLabel()
}

//Include only LUKS containers.
func BFiltLuks(b BlkInfo) bool { return b.FsType == FsLuks }

func GetFilesystems(filters ...BlkIncludeFn) (out []BlkInfo) {
	infos := GetInfo()
	for _, bi := range infos {
		keep := true
		for _, f := range filters {
			if !f(bi) {
				keep = false
				break
			}
		}
		if keep {
			out = append(out, bi)
		}
	}
	return
}
