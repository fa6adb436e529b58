// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

package prebuilt

import (
	"archive/tar"
	"encoding/json"
	"io"
	"os"
	"os/exec"
	fp "path/filepath"
	"time"

	"github.com/hardenedos/debforge/pkg/common/strs"
	"github.com/hardenedos/debforge/pkg/log"
	"github.com/hardenedos/debforge/pkg/prebuilt/meta"
	"github.com/ulikunitz/xz"
)

//Create builds a component archive from the contents of srcDir, returning the
//path of the archive written under outDir. The metadata file is written
//first so readers can stop after one tar entry.
func Create(outDir, name, srcDir string, cm *meta.ComponentMeta) (comp string, err error) {
	if cm.Name == "" {
		cm.Name = name
	}
	if cm.BuildTime == "" {
		cm.BuildTime = time.Now().Format(time.RFC3339)
	}
	if cm.Builder == "" {
		cm.Builder, _ = os.Hostname()
	}
	stamp := time.Now().Format(StampFormat)
	comp = fp.Join(outDir, strs.ComponentPfx()+name+"."+stamp+".txz")

	f, err := os.Create(comp)
	if err != nil {
		return "", err
	}
	defer f.Close()

	w, finish, err := xzWriter(f)
	if err != nil {
		return "", err
	}
	tw := tar.NewWriter(w)
	if err = writeMeta(tw, cm); err != nil {
		return "", err
	}
	if err = addTree(tw, srcDir); err != nil {
		return "", err
	}
	if err = tw.Close(); err != nil {
		return "", err
	}
	if err = finish(); err != nil {
		return "", err
	}
	log.Logf("wrote component %s", comp)
	return comp, nil
}

//Compress through the xz executable when available; the native impl is the
//fallback. Either way the stream carries sha256 checksums, which List and
//Validate require.
func xzWriter(f *os.File) (io.Writer, func() error, error) {
	if meta.HaveXz() {
		xzCmd := exec.Command("xz", "-C", "sha256")
		xzCmd.Stdout = f
		in, err := xzCmd.StdinPipe()
		if err != nil {
			return nil, nil, err
		}
		if err := xzCmd.Start(); err != nil {
			return nil, nil, err
		}
		return in, func() error {
			if err := in.Close(); err != nil {
				return err
			}
			return xzCmd.Wait()
		}, nil
	}
	xzw, err := xz.WriterConfig{CheckSum: xz.SHA256}.NewWriter(f)
	if err != nil {
		return nil, nil, err
	}
	return xzw, xzw.Close, nil
}

func writeMeta(tw *tar.Writer, cm *meta.ComponentMeta) error {
	data, err := json.Marshal(cm)
	if err != nil {
		return err
	}
	hdr := &tar.Header{
		Name:    meta.MetaPath,
		Mode:    0644,
		Size:    int64(len(data)),
		ModTime: time.Now(),
	}
	if err = tw.WriteHeader(hdr); err != nil {
		return err
	}
	_, err = tw.Write(data)
	return err
}

//add srcDir's contents to the archive, paths relative to srcDir
func addTree(tw *tar.Writer, srcDir string) error {
	return fp.Walk(srcDir, func(p string, fi os.FileInfo, werr error) error {
		if werr != nil {
			return werr
		}
		rel, err := fp.Rel(srcDir, p)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		var link string
		if fi.Mode()&os.ModeSymlink != 0 {
			if link, err = os.Readlink(p); err != nil {
				return err
			}
		}
		hdr, err := tar.FileInfoHeader(fi, link)
		if err != nil {
			return err
		}
		hdr.Name = rel
		if fi.IsDir() {
			hdr.Name += "/"
		}
		if err = tw.WriteHeader(hdr); err != nil {
			return err
		}
		if !fi.Mode().IsRegular() {
			return nil
		}
		src, err := os.Open(p)
		if err != nil {
			return err
		}
		defer src.Close()
		_, err = io.Copy(tw, src)
		return err
	})
}
