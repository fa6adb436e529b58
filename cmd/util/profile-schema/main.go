// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

// Command profile-schema validates profile json (or platform_facts json)
// against the embedded schema, for use in CI before shipping a profiles
// file.
package main

import (
	"bytes"
	"fmt"
	"os"

	"github.com/hardenedos/debforge/pkg/platform/schemas"

	"github.com/santhosh-tekuri/jsonschema"
	"github.com/urfave/cli/v2"
)

var flags []cli.Flag = []cli.Flag{
	&cli.BoolFlag{
		Name:  "facts",
		Value: false,
		Usage: "validate against the platform_facts schema rather than the profile schema",
	},
}

func main() {
	app := &cli.App{
		Name:      "profile-schema",
		Usage:     "validate profile json against its schema",
		ArgsUsage: "file...",
		Flags:     flags,
		Action: func(cCtx *cli.Context) error {
			if cCtx.NArg() == 0 {
				return fmt.Errorf("no files given")
			}
			name, data := "profile.json", schemas.Profile
			if cCtx.Bool("facts") {
				name, data = "platform_facts.json", schemas.PlatFacts
			}
			c := jsonschema.NewCompiler()
			if err := c.AddResource(name, bytes.NewReader(data)); err != nil {
				return err
			}
			schema, err := c.Compile(name)
			if err != nil {
				return err
			}
			bad := 0
			for _, f := range cCtx.Args().Slice() {
				doc, err := os.Open(f)
				if err != nil {
					return err
				}
				err = schema.Validate(doc)
				doc.Close()
				if err != nil {
					fmt.Fprintf(os.Stderr, "%s: %s\n", f, err)
					bad++
					continue
				}
				fmt.Printf("%s: ok\n", f)
			}
			if bad != 0 {
				return fmt.Errorf("%d file(s) failed validation", bad)
			}
			return nil
		},
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", err)
		os.Exit(1)
	}
}
