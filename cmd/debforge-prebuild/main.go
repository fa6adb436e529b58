// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

// Command debforge-prebuild creates versioned component archives on the
// build host. The installer unpacks the newest valid archive of each
// component into the target, avoiding per-install compilation and downloads.
package main

import (
	"fmt"
	"os"

	"github.com/hardenedos/debforge/pkg/config"
	"github.com/hardenedos/debforge/pkg/log"
	logflags "github.com/hardenedos/debforge/pkg/log/flags"
	"github.com/hardenedos/debforge/pkg/prebuilt"
	"github.com/hardenedos/debforge/pkg/prebuilt/meta"

	"github.com/urfave/cli/v2"
)

var flags []cli.Flag = []cli.Flag{
	&cli.StringFlag{
		Name:  "config",
		Value: "",
		Usage: "path to hardened-os.conf",
	},
	&cli.StringFlag{
		Name:     "name",
		Value:    "",
		Usage:    "component name, e.g. kernel or rootfs",
		Required: true,
	},
	&cli.StringFlag{
		Name:     "src",
		Value:    "",
		Usage:    "directory whose contents become the component",
		Required: true,
	},
	&cli.StringFlag{
		Name:  "out",
		Value: "",
		Usage: "directory to write the archive to, overrides PREBUILT_DIR",
	},
	&cli.BoolFlag{
		Name:  "list",
		Value: false,
		Usage: "list archives in the output dir (newest first) and exit",
	},
}

func main() {
	app := &cli.App{
		Name:  "debforge-prebuild",
		Usage: "build a prebuilt component archive",
		Flags: flags,
		Action: func(cCtx *cli.Context) error {
			log.AddConsoleLog(logflags.EndUser)
			cfg, err := config.Load(cCtx.String("config"))
			if err != nil {
				return err
			}
			out := cCtx.String("out")
			if out == "" {
				out = cfg.PrebuiltDir
			}
			if out == "" {
				return fmt.Errorf("no output dir; set --out or PREBUILT_DIR")
			}
			if cCtx.Bool("list") {
				for _, c := range prebuilt.List(out, false) {
					fmt.Println(c)
				}
				return nil
			}
			comp, err := prebuilt.Create(out, cCtx.String("name"), cCtx.String("src"),
				&meta.ComponentMeta{Suite: cfg.DebianSuite})
			if err != nil {
				return err
			}
			fmt.Println(comp)
			return nil
		},
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", err)
		os.Exit(1)
	}
}
