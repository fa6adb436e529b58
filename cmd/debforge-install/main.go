// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

// Command debforge-install installs a hardened debian system onto the target
// disk: partitioning, LUKS2, debootstrap, hardening, grub, first-boot
// configuration. Run from the installer environment, as root.
package main

import (
	"bytes"
	"fmt"
	"io/ioutil"
	"os"

	"github.com/hardenedos/debforge/pkg/config"
	"github.com/hardenedos/debforge/pkg/install"

	"github.com/urfave/cli/v2"
)

var flags []cli.Flag = []cli.Flag{
	&cli.StringFlag{
		Name:  "config",
		Value: "",
		Usage: "path to hardened-os.conf",
	},
	&cli.StringFlag{
		Name:  "disk",
		Value: "",
		Usage: "target disk device, overrides TARGET_DISK",
	},
	&cli.StringFlag{
		Name:  "hostname",
		Value: "",
		Usage: "hostname for the installed system, overrides HOSTNAME",
	},
	&cli.StringFlag{
		Name:  "profile",
		Value: "",
		Usage: "hardware profile to assume when dmi identification fails",
	},
	&cli.BoolFlag{
		Name:  "luks-passphrase-stdin",
		Value: false,
		Usage: "read the LUKS passphrase from stdin (required)",
	},
}

func main() {
	app := &cli.App{
		Name:  "debforge-install",
		Usage: "install a hardened debian system onto the target disk",
		Flags: flags,
		Action: func(cCtx *cli.Context) error {
			cfg, err := config.Load(cCtx.String("config"))
			if err != nil {
				return err
			}
			//flags override config which overrides defaults
			if d := cCtx.String("disk"); d != "" {
				cfg.TargetDisk = d
			}
			if h := cCtx.String("hostname"); h != "" {
				if !config.ValidHostname(h) {
					return fmt.Errorf("invalid hostname %q", h)
				}
				cfg.Hostname = h
			}
			if p := cCtx.String("profile"); p != "" {
				cfg.Profile = p
			}
			if !cCtx.Bool("luks-passphrase-stdin") {
				return fmt.Errorf("the passphrase is only accepted on stdin; pass --luks-passphrase-stdin")
			}
			pass, err := ioutil.ReadAll(os.Stdin)
			if err != nil {
				return fmt.Errorf("reading passphrase: %w", err)
			}
			pass = bytes.TrimRight(pass, "\r\n")
			if len(pass) == 0 {
				return fmt.Errorf("empty passphrase")
			}
			install.Run(cfg, pass)
			return nil
		},
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", err)
		os.Exit(1)
	}
}
