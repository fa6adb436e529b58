// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

//Package crypt drives cryptsetup to create and open the LUKS2 container
//holding the root filesystem. The passphrase always travels on stdin,
//never on the command line.
package crypt

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	fp "path/filepath"
	"strings"

	"github.com/hardenedos/debforge/pkg/common/strs"
	"github.com/hardenedos/debforge/pkg/log"
)

//LUKS2 format parameters. Zero values fall back to cryptsetup's own
//defaults, so a partially-populated struct is usable.
type Options struct {
	Cipher     string //e.g. aes-xts-plain64
	KeySize    int    //bits; 512 for xts means aes-256
	Pbkdf      string //argon2id, argon2i, pbkdf2
	IterTimeMs int    //pbkdf benchmark target
}

//Creates a LUKS2 container on dev. Destroys existing content.
func Format(dev string, pass []byte, o Options) error {
	args := []string{"luksFormat", "--type", "luks2", "--batch-mode", "--key-file=-"}
	if o.Cipher != "" {
		args = append(args, "--cipher", o.Cipher)
	}
	if o.KeySize > 0 {
		args = append(args, "--key-size", fmt.Sprintf("%d", o.KeySize))
	}
	if o.Pbkdf != "" {
		args = append(args, "--pbkdf", o.Pbkdf)
	}
	if o.IterTimeMs > 0 {
		args = append(args, "--iter-time", fmt.Sprintf("%d", o.IterTimeMs))
	}
	args = append(args, dev)
	cmd := exec.Command("cryptsetup", args...)
	cmd.Stdin = bytes.NewReader(pass)
	_, success := log.Cmd(cmd)
	if !success {
		return fmt.Errorf("luksFormat %s", dev)
	}
	return nil
}

var mapperDir = "/dev/mapper"

//Opens the container on dev under the given device-mapper name, returning
//the mapper path. Empty name uses the default. A stale mapping already
//holding the name is left alone; an unused variant is picked instead.
func Open(dev, name string, pass []byte) (mapper string, err error) {
	if name == "" {
		name = strs.LuksName()
	}
	name, err = freeName(name)
	if err != nil {
		return "", err
	}
	cmd := exec.Command("cryptsetup", "open", "--type", "luks2", "--key-file=-", dev, name)
	cmd.Stdin = bytes.NewReader(pass)
	_, success := log.Cmd(cmd)
	if !success {
		return "", fmt.Errorf("opening luks container on %s", dev)
	}
	return fp.Join(mapperDir, name), nil
}

func freeName(name string) (string, error) {
	for i := 1; i < 10; i++ {
		n := name
		if i > 1 {
			n = fmt.Sprintf("%s%d", name, i)
		}
		if _, err := os.Stat(fp.Join(mapperDir, n)); os.IsNotExist(err) {
			return n, nil
		}
		log.Logf("mapper %s exists, trying another name", n)
	}
	return "", fmt.Errorf("no free mapper name for %s", name)
}

func Close(name string) error {
	if name == "" {
		name = strs.LuksName()
	}
	_, success := log.Cmd(exec.Command("cryptsetup", "close", name))
	if !success {
		return fmt.Errorf("closing luks container %s", name)
	}
	return nil
}

//UUID of the LUKS header on dev. The installed system's crypttab and grub
//cmdline refer to the container by this.
func UUID(dev string) (string, error) {
	out, success := log.Cmd(exec.Command("cryptsetup", "luksUUID", dev))
	if !success {
		return "", fmt.Errorf("reading luks uuid of %s", dev)
	}
	return strings.TrimSpace(out), nil
}

//Verify dev carries a LUKS header.
func IsLuks(dev string) bool {
	_, success := log.Cmd(exec.Command("cryptsetup", "isLuks", dev))
	return success
}
