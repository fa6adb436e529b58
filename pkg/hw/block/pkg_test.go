// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

package block

import (
	"fmt"
	"os"
	fp "path/filepath"
	"testing"

	"github.com/hardenedos/debforge/pkg/log/testlog"
)

//func parseBlkidOut(out string) (infos []BlkInfo)
func TestBlkIdParse(t *testing.T) {
	blkidOut := `/dev/sda1: LABEL="ESP" UUID="76E6-A61B" TYPE="vfat" PARTUUID="8c0499f5-a0a1-4e29-b0ef-45ee42age8b2"
/dev/sda2: LABEL="BOOT" UUID="76aca7e5-12a1-4a0b-a276-c0b2d48a1b91" TYPE="ext4" PARTUUID="35b80175-1b5c-4154-8bb7-0bb5a211cb28"
/dev/sda3: UUID="0d1b4a3c-51ee-44dc-9d4c-5cf1d4d59afc" TYPE="crypto_LUKS" PARTUUID="6c22a905-61c2-45f7-b2a0-b6b68b1be17c"
/dev/mapper/cryptroot: LABEL="ROOT" UUID="c2e6f4ba-2f59-418a-b2ba-b37ee4e85a4b" TYPE="ext4"
/dev/sr0: LABEL="DEBFORGE" TYPE="iso9660"
`
	want := []BlkInfo{
		{FsType: FsFat, UUID: "76E6-A61B", Partition: -1, PartUUID: "8c0499f5-a0a1-4e29-b0ef-45ee42age8b2", Label: "ESP", Device: "/dev/sda1"},
		{FsType: FsExt4, UUID: "76aca7e5-12a1-4a0b-a276-c0b2d48a1b91", Partition: -1, PartUUID: "35b80175-1b5c-4154-8bb7-0bb5a211cb28", Label: "BOOT", Device: "/dev/sda2"},
		{FsType: FsLuks, UUID: "0d1b4a3c-51ee-44dc-9d4c-5cf1d4d59afc", Partition: -1, PartUUID: "6c22a905-61c2-45f7-b2a0-b6b68b1be17c", Device: "/dev/sda3"},
		{FsType: FsExt4, UUID: "c2e6f4ba-2f59-418a-b2ba-b37ee4e85a4b", Partition: -1, Label: "ROOT", Device: "/dev/mapper/cryptroot"},
		{FsType: FsIso9660, Partition: -1, Label: "DEBFORGE", Device: "/dev/sr0"},
	}
	tlog := testlog.NewTestLog(t, true, false)
	infos := parseBlkidOut(blkidOut)
	tlog.Freeze()
	if len(infos) != len(want) {
		t.Fatalf("want %d entries, got %d: %#v", len(want), len(infos), infos)
	}
	for i, bi := range infos {
		//partition numbers depend on /sys of the test host, ignore
		bi.Partition = -1
		w := fmt.Sprintf("%#v", want[i])
		g := fmt.Sprintf("%#v", bi)
		if w != g {
			t.Errorf("entry %d:\nwant %s\ngot  %s", i, w, g)
		}
	}
}

func TestFilters(t *testing.T) {
	tlog := testlog.NewTestLog(t, true, false)
	defer tlog.Freeze()
	media := BlkInfo{FsType: FsIso9660, Label: "DEBFORGE", Device: "/dev/sr0"}
	target := BlkInfo{FsType: FsExt4, Label: "ROOT", Device: "/dev/sda3"}
	luks := BlkInfo{FsType: FsLuks, Device: "/dev/sda3"}
	if BFiltNotInstallMedia(media) {
		t.Error("install media not excluded")
	}
	if !BFiltNotInstallMedia(target) {
		t.Error("target fs excluded")
	}
	if !BFiltLuks(luks) || BFiltLuks(target) {
		t.Error("luks filter")
	}
}

//find a real block device+partition to test sysfs-based helpers, skip if none
func findBlk(t *testing.T) (dev, part string) {
	matches, _ := fp.Glob("/sys/block/*/*/partition")
	for _, m := range matches {
		part = fp.Base(fp.Dir(m))
		dev = fp.Base(fp.Dir(fp.Dir(m)))
		return
	}
	t.Skip("no partitions found on test host")
	return
}

func TestIsDev(t *testing.T) {
	dev, part := findBlk(t)
	if !IsDev(fp.Join("/dev", dev)) {
		t.Errorf("%s not recognized as device", dev)
	}
	if IsDev(fp.Join("/dev", part)) {
		t.Errorf("%s recognized as device", part)
	}
}

func TestIsPart(t *testing.T) {
	dev, part := findBlk(t)
	if IsPart(fp.Join("/dev", dev)) {
		t.Errorf("%s recognized as partition", dev)
	}
	if !IsPart(fp.Join("/dev", part)) {
		t.Errorf("%s not recognized as partition", part)
	}
}

func TestParent(t *testing.T) {
	dev, part := findBlk(t)
	got := PartParent(fp.Join("/dev", part))
	if got != fp.Join("/dev", dev) {
		t.Errorf("parent of %s: want %s, got %s", part, dev, got)
	}
}

func TestPartNum(t *testing.T) {
	_, part := findBlk(t)
	n := PartNum(fp.Join("/dev", part))
	if n < 1 {
		t.Errorf("partition number of %s: got %d", part, n)
	}
	if os.Getenv("VERBOSE") != "" {
		t.Logf("%s -> %d", part, n)
	}
}

//func SizeToleranceMatch(want, tol uint64) DevIncludeFn
func TestSizeToleranceMatch(t *testing.T) {
	for _, td := range []struct {
		want, tol, size uint64
		match           bool
	}{
		{500e9, 5, 510e9, true},
		{500e9, 5, 474e9, false},
		{500e9, 5, 2e12, false}, //far larger disks are suspect, not a bonus
		{500e9, 0, 2e12, true},  //tol 0 means at-least
		{500e9, 0, 474e9, false},
		{0, 5, 1e9, true}, //no profile size matches anything
		{0, 0, 1e9, true},
	} {
		f := SizeToleranceMatch(td.want, td.tol)
		if got := f(BlockDev{Name: "sda", Size: td.size}); got != td.match {
			t.Errorf("want=%d tol=%d size=%d: got %t", td.want, td.tol, td.size, got)
		}
	}
}
