// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

package meta

import (
	"io"
	"io/ioutil"
	"os"
	"os/exec"

	"github.com/hardenedos/debforge/pkg/log"
	"github.com/ulikunitz/xz"
)

//Unxz reads from path, passing through an xz decompressor. Returned function
//is for cleanup. Prefers the xz executable, falling back to the native impl
//when the executable is absent.
func Unxz(path string) (io.ReadCloser, func(), error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, func() {}, err
	}
	rc, cleanup, err := unxzr(f)
	if err != nil {
		f.Close()
		return nil, func() {}, err
	}
	return rc, func() { cleanup(); f.Close() }, nil
}

// Decompress xz with external executable if present, fall back to native impl.
// Native impl is not optimized and is ~7.5x slower than the executable.
func unxzr(rdr io.Reader) (io.ReadCloser, func(), error) {
	if HaveXz() {
		return externalUnxz(rdr)
	}
	rc, err := nativeUnxz(rdr)
	return rc, func() {}, err
}

// Decompress with xz executable. Returned function is for cleanup.
func externalUnxz(f io.Reader) (io.ReadCloser, func(), error) {
	xzCmd := exec.Command("xz", "-d")
	xzCmd.Stdin = f
	p, err := xzCmd.StdoutPipe()
	if err != nil {
		return nil, func() {}, err
	}
	err = xzCmd.Start()
	if err != nil {
		return nil, func() {}, err
	}
	return p, func() {
		err = xzCmd.Process.Kill()
		if err != nil {
			log.Logf("kill xz: %s", err)
		}
	}, nil
}

// This version uses native xz impl for decompression.
func nativeUnxz(f io.Reader) (io.ReadCloser, error) {
	reader, err := xz.NewReader(f)
	//returned value is a Reader but we want a ReadCloser for consistency.
	return ioutil.NopCloser(reader), err
}

//HaveXz is true if xz or xz.exe exists
func HaveXz() bool {
	_, err := exec.LookPath("xz") // windows impl of LookPath will append .exe
	return err == nil
}
