// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

package iso

import (
	"fmt"
	"io/ioutil"
	"os"
	fp "path/filepath"

	"github.com/u-root/u-root/pkg/cpio"
)

// WriteInitramfs builds a newc cpio archive at out from the contents of tree,
// with init installed as /init. The kernel runs /init directly, so it must be
// a static binary.
func WriteInitramfs(out, tree, init string) error {
	records, err := treeRecords(tree)
	if err != nil {
		return err
	}
	data, err := ioutil.ReadFile(init)
	if err != nil {
		return fmt.Errorf("reading init %s: %w", init, err)
	}
	records = append(records, cpio.StaticFile("init", string(data), 0755))

	f, err := os.Create(out)
	if err != nil {
		return err
	}
	defer f.Close()
	w := cpio.Newc.Writer(f)
	if err := cpio.WriteRecords(w, records); err != nil {
		return err
	}
	return cpio.WriteTrailer(w)
}

//cpio records for everything under tree, paths relative to tree
func treeRecords(tree string) (records []cpio.Record, err error) {
	err = fp.Walk(tree, func(p string, fi os.FileInfo, werr error) error {
		if werr != nil {
			return werr
		}
		rel, err := fp.Rel(tree, p)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		switch {
		case fi.IsDir():
			records = append(records, cpio.Directory(rel, uint64(fi.Mode().Perm())))
		case fi.Mode()&os.ModeSymlink != 0:
			tgt, err := os.Readlink(p)
			if err != nil {
				return err
			}
			records = append(records, cpio.Symlink(rel, tgt))
		case fi.Mode().IsRegular():
			data, err := ioutil.ReadFile(p)
			if err != nil {
				return err
			}
			records = append(records, cpio.StaticFile(rel, string(data), uint64(fi.Mode().Perm())))
		default:
			//device nodes etc are not expected in the staging tree
			return fmt.Errorf("%s: unsupported file type %s", rel, fi.Mode())
		}
		return nil
	})
	return
}
