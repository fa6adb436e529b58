// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

// Command identify prints the hardware profile for this machine, either
// identified live from dmi data or read from platform_facts.json written at
// install time. Exists for troubleshooting.
package main

import (
	"fmt"
	"os"

	"github.com/hardenedos/debforge/pkg/platform"

	"github.com/urfave/cli/v2"
)

var flags []cli.Flag = []cli.Flag{
	&cli.BoolFlag{
		Name:  "live",
		Value: false,
		Usage: "identify from dmi now instead of reading platform_facts.json",
	},
	&cli.StringFlag{
		Name:  "profile",
		Value: "",
		Usage: "with --live, fallback profile name if dmi identification fails",
	},
	&cli.StringFlag{
		Name:  "profiles-json",
		Value: "",
		Usage: "load profiles from file instead of the embedded set",
	},
}

func main() {
	app := &cli.App{
		Name:  "identify",
		Usage: "print the identified hardware profile",
		Flags: flags,
		Action: func(cCtx *cli.Context) error {
			if f := cCtx.String("profiles-json"); f != "" {
				platform.LoadJson(f)
			}
			var p *platform.Profile
			if cCtx.Bool("live") {
				var err error
				p, err = platform.IdentifyWithFallback(cCtx.String("profile"))
				if err != nil {
					return err
				}
			} else {
				p = platform.Read()
				if p == nil {
					return fmt.Errorf("unknown platform - no info available")
				}
			}
			fmt.Printf("platform=%s\n", p.Name())
			fmt.Printf("serial=%s\n", p.SerNum())
			fmt.Printf("efi=%t\n", p.EFIBoot())
			fmt.Printf("generic=%t\n", p.IsGeneric())
			if platform.IdentifiedViaFallback() {
				fmt.Println("note: identified via fallback profile, not dmi")
			}
			return nil
		},
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", err)
		os.Exit(1)
	}
}
