// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

package crypt

import (
	"fmt"
	"io/ioutil"
	"os"
	fp "path/filepath"

	"github.com/hardenedos/debforge/pkg/common/strs"
)

//One line of /etc/crypttab.
type CrypttabEntry struct {
	Name    string //device-mapper name
	UUID    string //luks header uuid
	KeyFile string //"none" prompts at boot
	Opts    []string
}

func (c CrypttabEntry) String() string {
	key := c.KeyFile
	if key == "" {
		key = "none"
	}
	opts := "luks"
	for _, o := range c.Opts {
		opts += "," + o
	}
	return fmt.Sprintf("%s UUID=%s %s %s\n", c.Name, c.UUID, key, opts)
}

//Entry for the root container. discard is only safe to pass on SSDs.
func RootEntry(uuid string, ssd bool) CrypttabEntry {
	e := CrypttabEntry{Name: strs.LuksName(), UUID: uuid}
	if ssd {
		e.Opts = append(e.Opts, "discard")
	}
	return e
}

//Writes /etc/crypttab under root (the mounted target fs).
func WriteCrypttab(root string, entries ...CrypttabEntry) error {
	data := ""
	for _, e := range entries {
		data += e.String()
	}
	path := fp.Join(root, "etc", "crypttab")
	if err := os.MkdirAll(fp.Dir(path), 0755); err != nil {
		return err
	}
	return ioutil.WriteFile(path, []byte(data), 0600)
}
