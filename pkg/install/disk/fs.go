// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

package disk

import (
	"fmt"
	"os"
	"os/exec"
	fp "path/filepath"
	"strings"
	"time"

	futil "github.com/hardenedos/debforge/pkg/fileutil"
	"github.com/hardenedos/debforge/pkg/log"

	"github.com/u-root/u-root/pkg/mount"
)

var mounted []string

type Filesystem struct {
	blkdev               string //absolute path, such as /dev/sda1
	formatted            bool
	mounted              bool
	mountType, mountOpts string
	mountPoint           string //where fs will normally be mounted
	currentMountPoint    string //where fs is currently mounted (if different from mountPoint, else empty)
	fsid                 string //unique identifier for fstab column 0
	label                string //name used during formatting
}

//NewFs describes a not-yet-formatted filesystem on device.
func NewFs(device, mntType, mntOpts string) (fs *Filesystem) {
	fs = new(Filesystem)
	fs.blkdev = device
	fs.mountType = mntType
	fs.mountOpts = mntOpts
	return
}

//ExistingFs creates a Filesystem struct corresponding to a fs that already
// exists. See also: Filesystem.AutoUnmount()
func ExistingFs(device, mntType, mntOpts string, mounted bool) (fs *Filesystem) {
	fs = NewFs(device, mntType, mntOpts)
	fs.formatted = true
	fs.mounted = mounted
	return
}

//Add fs to list for auto-unmount, if it isn't already. For use with ExistingFs().
func (fs *Filesystem) AutoUnmount() {
	if !fs.mounted {
		return
	}
	for _, m := range mounted {
		if m == fs.Path() {
			return
		}
	}
	mounted = append(mounted, fs.Path())
}

func TestFilesystem(dir string) (fs Filesystem) {
	fs.mounted = true
	fs.mountPoint = dir
	return
}

func (fs Filesystem) FstabEntry() (entry string) {
	pass := 2
	if fs.mountPoint == "/" {
		pass = 1
	}
	opts := fs.mountOpts
	if opts == "" {
		opts = "defaults"
	}
	if len(fs.fsid) != 0 {
		entry = fmt.Sprintf("UUID=%s %s %s %s %d %d\n", fs.fsid, fs.mountPoint, fs.mountType, opts, 0, pass)
	} else {
		entry = fmt.Sprintf("%s %s %s %s %d %d\n", fs.blkdev, fs.mountPoint, fs.mountType, opts, 0, pass)
	}
	return
}

//sets the mount point of a fs, before writing fstab. if mounted, mount location is still retrievable via Path()
func (fs *Filesystem) SetMountpoint(pt string) {
	if fs.mounted && len(fs.mountPoint) > 0 {
		fs.currentMountPoint = fs.mountPoint
	}
	fs.mountPoint = pt
}

func (fs Filesystem) IsMounted() bool {
	return fs.mounted
}

//true if it appears that it would be possible to mount the fs - regardless of whether it is mounted at this time
func (fs Filesystem) Valid() bool {
	return len(fs.blkdev) != 0
}

func (fs Filesystem) Device() string {
	return fs.blkdev
}

//returns current mount point, or "/dev/null"
func (fs Filesystem) Path() string {
	if fs.mounted {
		if len(fs.currentMountPoint) > 0 {
			return fs.currentMountPoint
		}
		return fs.mountPoint
	}
	log.Logf("WARNING: fs.Path(): not mounted %#v", fs)
	return "/dev/null"
}

func (fs Filesystem) FstabMountpoint() string { return fs.mountPoint }

func (fs *Filesystem) Format(label string) (err error) {
	if fs.formatted {
		log.Logf("WARNING: we have already formatted %s (label %s), will not reformat with label %s/type %s", fs.blkdev, fs.label, label, fs.mountType)
		return nil
	}
	fs.label = label
	//wait for the block device to appear, apparently it isn't instantaneous
	found := futil.WaitFor(fs.blkdev, 5*time.Second)
	if !found {
		log.Logf("warning - device %s has not appeared", fs.blkdev)
	}
	if len(fs.mountType) == 0 {
		fs.mountType = "ext4"
	}
	log.Logf("formatting %s as %s, label %s", fs.blkdev, fs.mountType, label)
	var cmd string
	var args []string
	var parseUuid bool
	switch fs.mountType {
	case "vfat":
		cmd = "mkdosfs"
		args = []string{"-n", label, fs.blkdev}
	case "xfs":
		cmd = "mkfs.xfs"
		args = []string{"-f", "-L", label, fs.blkdev}
	default:
		args = []string{"-L", label, "-m", "1", "-t", fs.mountType}
		if fs.mountType == "ext4" {
			//make directory encryption usable later
			args = append(args, "-O", "encrypt")
		}
		args = append(args, fs.blkdev)
		cmd = "mke2fs"
		parseUuid = true
	}
	out, success := log.Cmd(exec.Command(cmd, args...))
	if !success {
		fs.mountType = ""
		return fmt.Errorf("formatting %s", fs.blkdev)
	}
	if parseUuid {
		uu := strings.Index(out, "UUID: ")
		nl := -1
		if uu >= 0 {
			nl = strings.Index(out[uu:], "\n")
		}
		if nl < 0 {
			log.Logf("%s %v: can't parse output\n%s", cmd, args, out)
			return os.ErrInvalid
		}
		fs.fsid = out[uu+6 : uu+nl]
	} else {
		//mkdosfs and mkfs.xfs don't print the id, ask blkid
		uuid, success := log.Cmd(exec.Command("/sbin/blkid", "-o", "value", "-s", "UUID", fs.blkdev))
		if success {
			fs.fsid = strings.TrimSpace(uuid)
		}
	}
	fs.formatted = true
	return nil
}

func (fs Filesystem) Fsid() string {
	return fs.fsid
}
func (fs Filesystem) Label() string {
	return fs.label
}

func (fs *Filesystem) Mount() {
	_, err := fs.MountErr()
	if err != nil {
		log.Fatalf("error mounting %s: %s", fs.blkdev, err)
	}
}
func (fs *Filesystem) MountErr() (path string, err error) {
	path = fs.mountPoint
	if len(path) < 1 {
		err = fmt.Errorf("path too short!")
		return
	}
	if fs.mounted {
		return
	}
	err = os.MkdirAll(fs.mountPoint, 0700)
	if err != nil {
		log.Logln(err)
	}

	// we want nofail to be in fstab in some cases, but here we
	// need to know of failures - so don't pass it to mount
	opts := removeOpts(fs.mountOpts, "nofail", "auto", "defaults")

	// Try u-root's Mount(). If it reports an error, retry with the mount
	// binary, which understands helpers like mount.vfat.
	_, err = mount.Mount(fs.blkdev, fs.mountPoint, fs.mountType, opts, 0)
	if err == nil {
		log.Logf("mount %s on %s", fs.blkdev, fs.mountPoint)
		fs.mounted = true
		mounted = append(mounted, fs.mountPoint)
		return
	}
	log.Logf("u-root mount failed with %s, trying binary...", err)
	mnt := exec.Command("mount", fs.blkdev, fs.mountPoint, "-t", fs.mountType)
	if opts != "" {
		mnt.Args = append(mnt.Args, "-o", opts)
	}
	_, success := log.Cmd(mnt)
	if !success {
		return "", fmt.Errorf("mounting %s on %s", fs.blkdev, fs.mountPoint)
	}
	fs.mounted = true
	mounted = append(mounted, fs.mountPoint)
	return path, nil
}

func (fs *Filesystem) Umount() {
	if !fs.mounted {
		log.Logf("umount: %s not mounted", fs.blkdev)
		return
	}
	err := mount.Unmount(fs.blkdev, false, true)
	if err != nil {
		log.Logf("umount %s: %s", fs.blkdev, err)
	} else {
		log.Logf("umount %s", fs.blkdev)
		fs.mounted = false
	}
}

//remove options from comma-separated list. if opt to remove ends with '=', match beginning of an item in opts
func removeOpts(opts string, removes ...string) (cleanOpts string) {
	arr := strings.Split(opts, ",")
	for _, o := range arr {
		skip := false
		for _, r := range removes {
			if r == o || (strings.HasSuffix(r, "=") && strings.HasPrefix(o, r)) {
				skip = true
				break
			}
		}
		if !skip {
			cleanOpts += o + ","
		}
	}
	return strings.Trim(cleanOpts, ",")
}

//Anything with an fstab line: regular filesystems and swap.
type FstabEntrier interface {
	FstabEntry() string
	FstabMountpoint() string
}

func (fs Filesystem) WriteFstab(mounts ...FstabEntrier) {
	fstab, err := os.Create(fp.Join(fs.Path(), "etc", "fstab"))
	if err != nil {
		log.Fatalf("cannot write fstab!")
	}
	defer fstab.Close()
	for _, entry := range mounts {
		if _, err = fstab.WriteString(entry.FstabEntry()); err != nil {
			log.Logf("write fstab: %s", err)
		}
		mp := entry.FstabMountpoint()
		if mp == "" || mp == "none" {
			continue
		}
		err = os.MkdirAll(fp.Join(fs.Path(), mp), 0755)
		if err != nil {
			log.Logf("error creating mountpoint %s: %s", mp, err)
		}
	}
}

/* Find the identifier (e.g. sdb) of the physical device this filesystem is on.
   blkdev is probably a partition (subdevice). Try to find base device by
   removing chars one at a time and checking if a file with that name exists
   in /sys/block.
*/
func (fs *Filesystem) UnderlyingDevice() (dev string) {
	resolved, err := fp.EvalSymlinks(fs.blkdev)
	if err != nil {
		log.Logf("error resolving symlinks in %s, trying as-is", fs.blkdev)
		resolved = fs.blkdev
	}
	dev = fp.Base(resolved)
	for {
		// /sys/block only contains devices, while /sys/class/block contains partitions as well - ??
		if _, err := os.Stat(fp.Join("/sys", "block", dev)); !os.IsNotExist(err) {
			break
		}
		i := len(dev)
		if i < 2 {
			log.Logf("failed to find underlying device for partition %s", fs.blkdev)
			dev = ""
			break
		}
		dev = dev[:i-1]
	}
	return
}

func UnmountAll() {
	log.Logf("Unmount all disks")
	for i := len(mounted) - 1; i >= 0; i-- {
		mnt := mounted[i]
		_, success := log.Cmd(exec.Command("umount", "-lr", mnt))
		if !success {
			log.Logf("umount %s failed", mnt)
		}
	}
	mounted = nil
}
