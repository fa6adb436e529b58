// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

//Package install sequences a full target install: identify the platform,
//select and partition the disk, set up LUKS, bootstrap debian, harden,
//install grub, and configure first boot. Any failure of a required step is
//fatal; optional steps log and continue.
package install

import (
	"os"
	fp "path/filepath"

	"github.com/hardenedos/debforge/pkg/common/strs"
	"github.com/hardenedos/debforge/pkg/config"
	"github.com/hardenedos/debforge/pkg/crypt"
	"github.com/hardenedos/debforge/pkg/hardening"
	"github.com/hardenedos/debforge/pkg/hooks"
	hk "github.com/hardenedos/debforge/pkg/housekeeping"
	"github.com/hardenedos/debforge/pkg/install/bootstrap"
	"github.com/hardenedos/debforge/pkg/install/chroot"
	"github.com/hardenedos/debforge/pkg/install/disk"
	"github.com/hardenedos/debforge/pkg/install/firstboot"
	"github.com/hardenedos/debforge/pkg/install/grub"
	"github.com/hardenedos/debforge/pkg/log"
	logflags "github.com/hardenedos/debforge/pkg/log/flags"
	"github.com/hardenedos/debforge/pkg/platform"
	"github.com/hardenedos/debforge/pkg/prebuilt"
)

var Platform *platform.Profile

const targetMount = "/mnt/target"

//name of the LUKS mapping opened by Run, empty once closed. Open may not
//get the default name if a stale mapping holds it.
var luksMapper string

// Run performs the install described by cfg, encrypting the root partition
// with pass. Does not return on failure; on success the target is left
// unmounted and closed.
func Run(cfg *config.Config, pass []byte) {
	log.AddConsoleLog(logflags.EndUser)
	log.SetFatalAction(log.FailAction{Terminator: installFatal})
	hk.AddExitDefaults(cleanupTarget)

	if len(pass) == 0 {
		log.Fatalf("empty LUKS passphrase")
	}
	var err error
	Platform, err = platform.IdentifyWithFallback(cfg.Profile)
	if err != nil {
		log.Fatalf("unknown platform: %s", err)
	}
	//a wrong-vendor mac on a non-generic platform means we're about to wipe
	//the wrong machine
	if !firstboot.CheckMacPolicy(Platform.MACPrefixes(), !Platform.IsGeneric()) {
		log.Fatalf("mac addresses do not match expected prefixes for %s", Platform.Name())
	}
	serial := Platform.SerNum()
	hostName := cfg.Hostname
	if hostName == "" {
		hostName = firstboot.Hostify(serial)
	}
	steps, err := hooks.Load(cfg.HooksFile, true)
	if err != nil {
		log.Fatalf("loading hooks: %s", err)
	}

	target := disk.FindTarget(cfg, Platform)
	log.Msgf("installing to %s (platform %s, sn %s)", target.Device(), Platform.Name(), serial)

	//hooks and debootstrap may need the network
	if link, err := firstboot.EnsureLinkUp(); err != nil {
		log.Logf("no network link: %s", err)
	} else {
		log.Logf("network link %s up", link)
	}

	hooks.SetTemplateData(targetMount, strs.ConfDir(), hostName, target.Device())
	runHooks(steps, hooks.RunBeforePartition)

	log.Msgf("partitioning %s", target.Device())
	if err = target.Partition(cfg); err != nil {
		log.Fatalf("partitioning %s: %s", target.Device(), err)
	}
	runHooks(steps, hooks.RunAfterPartition)

	log.Msg("encrypting root partition")
	opts := crypt.Options{
		Cipher:     cfg.LuksCipher,
		KeySize:    cfg.LuksKeySize,
		Pbkdf:      cfg.LuksPbkdf,
		IterTimeMs: cfg.LuksIterTimeMs,
	}
	if err = crypt.Format(target.LuksDev(), pass, opts); err != nil {
		log.Fatalf("luksFormat %s: %s", target.LuksDev(), err)
	}
	mapper, err := crypt.Open(target.LuksDev(), strs.LuksName(), pass)
	if err != nil {
		log.Fatalf("luksOpen %s: %s", target.LuksDev(), err)
	}
	luksMapper = fp.Base(mapper)

	root := disk.NewFs(mapper, cfg.RootFS, "defaults")
	boot := disk.NewFs(target.BootDev(), "ext4", "defaults")
	esp := disk.NewFs(target.EspDev(), "vfat", "umask=0077")
	for _, p := range []struct {
		fs    *disk.Filesystem
		label string
	}{
		{root, strs.RootVolName()},
		{boot, strs.BootVolName()},
		{esp, strs.EspVolName()},
	} {
		if err = p.fs.Format(p.label); err != nil {
			log.Fatalf("formatting %s: %s", p.fs.Device(), err)
		}
	}
	root.SetMountpoint(targetMount)
	root.Mount()
	boot.SetMountpoint(fp.Join(root.Path(), "boot"))
	boot.Mount()
	esp.SetMountpoint(fp.Join(root.Path(), "boot", "efi"))
	esp.Mount()

	kernelPkg := cfg.KernelPackage
	if p := Platform.KernelPackage(); p != "" {
		kernelPkg = p
	}
	runHooks(steps, hooks.RunBeforeBootstrap)
	if cfg.RootfsTar != "" {
		log.Msgf("unpacking prebuilt rootfs %s", cfg.RootfsTar)
		if err = bootstrap.Unpack(cfg.RootfsTar, root.Path()); err != nil {
			log.Fatalf("unpacking rootfs: %s", err)
		}
	} else {
		log.Msgf("bootstrapping %s from %s", cfg.DebianSuite, cfg.DebianMirror)
		if err = bootstrap.Run(cfg, root.Path(), kernelPkg, Platform.EFIBoot()); err != nil {
			log.Fatalf("debootstrap: %s", err)
		}
	}
	if err = bootstrap.WriteSources(root.Path(), cfg); err != nil {
		log.Logf("writing sources.list: %s", err)
	}
	runHooks(steps, hooks.RunAfterBootstrap)

	luksUUID, err := crypt.UUID(target.LuksDev())
	if err != nil {
		log.Fatalf("reading luks uuid: %s", err)
	}
	//fstab/crypttab want target-relative mountpoints; Path() still returns
	//the current mount
	root.SetMountpoint("/")
	boot.SetMountpoint("/boot")
	esp.SetMountpoint("/boot/efi")
	root.WriteFstab(root, boot, esp) //root must be first in fstab
	if err = crypt.WriteCrypttab(root.Path(), crypt.RootEntry(luksUUID, Platform.SSD())); err != nil {
		log.Fatalf("writing crypttab: %s", err)
	}

	if err = hardening.Apply(root.Path(), cfg); err != nil {
		log.Fatalf("hardening: %s", err)
	}

	gcfg := grub.Config{
		LuksUUID:      luksUUID,
		SerialConsole: Platform.SerialConsole(),
		ExtraCmdline:  hardening.Cmdline(cfg),
	}
	if err = gcfg.WriteDefault(root.Path()); err != nil {
		log.Fatalf("writing grub defaults: %s", err)
	}
	env := chroot.New(root.Path())
	if err = env.Enter(); err != nil {
		log.Fatalf("chroot setup: %s", err)
	}
	err = grub.Install(env, target.Device())
	env.Exit()
	if err != nil {
		log.Fatalf("installing grub: %s", err)
	}

	firstboot.Configure(root.Path(), serial, hostName)
	if id, err := firstboot.WriteInstallId(root.Path()); err != nil {
		log.Logf("recording install id: %s", err)
	} else {
		log.Logf("install id %s", id)
	}

	if cfg.PrebuiltDir != "" {
		applyPrebuilt(cfg.PrebuiltDir, root.Path())
	}
	runHooks(steps, hooks.RunAfterInstall)

	//write platform info to disk
	Platform.WriteOut(root.Path())

	log.Msg("install complete")
	hk.Exits.Perform(true)
}

func runHooks(steps hooks.Steps, when hooks.WhenType) {
	if len(steps) == 0 {
		return
	}
	if !steps.RunApplicable(when) {
		log.Fatalf("%s hooks failed", when)
	}
}

//Unpack the newest valid archive of every component present in dir.
func applyPrebuilt(dir, root string) {
	seen := make(map[string]bool)
	for _, comp := range prebuilt.List(dir, false) {
		name := prebuilt.Name(comp)
		if seen[name] {
			continue
		}
		seen[name] = true
		found, err := prebuilt.Find(dir, name)
		if err != nil {
			log.Logf("prebuilt %s: %s", name, err)
			continue
		}
		log.Msgf("applying prebuilt %s", name)
		if err = prebuilt.Extract(found, root); err != nil {
			log.Fatalf("extracting %s: %s", found, err)
		}
	}
}

//unmount everything under the target, then close the LUKS mapping
func cleanupTarget(_ bool) {
	disk.UnmountAll()
	if luksMapper != "" {
		if err := crypt.Close(luksMapper); err != nil {
			log.Logf("closing %s: %s", luksMapper, err)
		} else {
			luksMapper = ""
		}
	}
}

func installFatal() {
	hk.Exits.Perform(false)
	os.Exit(1)
}
