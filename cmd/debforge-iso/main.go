// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

// Command debforge-iso assembles the hybrid BIOS/UEFI installer ISO on the
// build host from a kernel, an installer initramfs, and optional prebuilt
// artifacts.
package main

import (
	"fmt"
	"io/ioutil"
	"os"

	"github.com/hardenedos/debforge/pkg/config"
	"github.com/hardenedos/debforge/pkg/iso"
	"github.com/hardenedos/debforge/pkg/log"
	logflags "github.com/hardenedos/debforge/pkg/log/flags"

	"github.com/urfave/cli/v2"
)

var flags []cli.Flag = []cli.Flag{
	&cli.StringFlag{
		Name:  "config",
		Value: "",
		Usage: "path to hardened-os.conf",
	},
	&cli.StringFlag{
		Name:  "output",
		Value: "",
		Usage: "iso file to write, overrides ISO_OUTPUT",
	},
	&cli.StringFlag{
		Name:  "label",
		Value: "",
		Usage: "iso volume label, overrides ISO_LABEL",
	},
	&cli.StringFlag{
		Name:     "kernel",
		Value:    "",
		Usage:    "installer kernel image",
		Required: true,
	},
	&cli.StringFlag{
		Name:  "initrd",
		Value: "",
		Usage: "prebuilt installer initramfs; mutually exclusive with --initramfs-tree",
	},
	&cli.StringFlag{
		Name:  "initramfs-tree",
		Value: "",
		Usage: "directory to pack into the installer initramfs",
	},
	&cli.StringFlag{
		Name:  "init",
		Value: "",
		Usage: "static init binary for --initramfs-tree",
	},
	&cli.StringFlag{
		Name:  "rootfs",
		Value: "",
		Usage: "optional rootfs tarball, installed instead of debootstrap over the network",
	},
	&cli.StringFlag{
		Name:     "bootx64",
		Value:    "",
		Usage:    "grub EFI binary for the UEFI boot path",
		Required: true,
	},
	&cli.StringFlag{
		Name:  "isolinux-bin",
		Value: "/usr/lib/ISOLINUX/isolinux.bin",
		Usage: "isolinux.bin for the BIOS boot path",
	},
	&cli.StringFlag{
		Name:  "ldlinux",
		Value: "/usr/lib/syslinux/modules/bios/ldlinux.c32",
		Usage: "ldlinux.c32 for the BIOS boot path",
	},
	&cli.StringFlag{
		Name:  "cmdline",
		Value: "",
		Usage: "extra kernel args for the installer boot entries",
	},
}

func main() {
	app := &cli.App{
		Name:  "debforge-iso",
		Usage: "assemble the installer iso",
		Flags: flags,
		Action: func(cCtx *cli.Context) error {
			log.AddConsoleLog(logflags.EndUser)
			cfg, err := config.Load(cCtx.String("config"))
			if err != nil {
				return err
			}
			if o := cCtx.String("output"); o != "" {
				cfg.IsoOutput = o
			}
			if cfg.IsoOutput == "" {
				return fmt.Errorf("no output file; set --output or ISO_OUTPUT")
			}
			if l := cCtx.String("label"); l != "" {
				cfg.IsoLabel = l
			}
			return build(cCtx, cfg)
		},
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", err)
		os.Exit(1)
	}
}

func build(cCtx *cli.Context, cfg *config.Config) error {
	stage, err := ioutil.TempDir("", "debforge-iso")
	if err != nil {
		return err
	}
	defer os.RemoveAll(stage)

	s := iso.NewStaging(stage, cfg.IsoLabel)
	s.Cmdline = cCtx.String("cmdline")
	if err := s.AddKernel(cCtx.String("kernel")); err != nil {
		return fmt.Errorf("staging kernel: %w", err)
	}
	if err := addInitrd(cCtx, s, stage); err != nil {
		return err
	}
	if rootfs := cCtx.String("rootfs"); rootfs != "" {
		if err := s.AddRootfs(rootfs); err != nil {
			return fmt.Errorf("staging rootfs: %w", err)
		}
	}
	if err := s.AddIsolinux(cCtx.String("isolinux-bin"), cCtx.String("ldlinux")); err != nil {
		return fmt.Errorf("staging isolinux: %w", err)
	}
	if err := s.WriteBootConfigs(); err != nil {
		return fmt.Errorf("writing boot configs: %w", err)
	}
	if err := s.EfiImage(cCtx.String("bootx64")); err != nil {
		return fmt.Errorf("building efi image: %w", err)
	}
	return s.Mkisofs(cfg.IsoOutput)
}

//stage a prebuilt initramfs, or pack one from a tree and an init binary
func addInitrd(cCtx *cli.Context, s *iso.Staging, stage string) error {
	initrd := cCtx.String("initrd")
	tree := cCtx.String("initramfs-tree")
	switch {
	case initrd != "" && tree != "":
		return fmt.Errorf("--initrd and --initramfs-tree are mutually exclusive")
	case initrd != "":
		if err := s.AddInitrd(initrd); err != nil {
			return fmt.Errorf("staging initramfs: %w", err)
		}
	case tree != "":
		init := cCtx.String("init")
		if init == "" {
			return fmt.Errorf("--initramfs-tree requires --init")
		}
		packed, err := ioutil.TempFile("", "debforge-initrd")
		if err != nil {
			return err
		}
		packed.Close()
		defer os.Remove(packed.Name())
		if err := iso.WriteInitramfs(packed.Name(), tree, init); err != nil {
			return fmt.Errorf("packing initramfs: %w", err)
		}
		if err := s.AddInitrd(packed.Name()); err != nil {
			return fmt.Errorf("staging initramfs: %w", err)
		}
	default:
		return fmt.Errorf("one of --initrd or --initramfs-tree is required")
	}
	return nil
}
