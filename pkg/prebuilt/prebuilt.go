// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

//Package prebuilt sorts, verifies, and extracts prebuilt component archives
//(xz-compressed tar). Components are built ahead of time on the build host
//so target installs need not compile or download anything.
//Xz defaults to crc64 checksums but can support others such as sha256.
//Component archives *must* use sha256 or they will be considered invalid.
package prebuilt

import (
	"fmt"
	"io"
	"io/ioutil"
	"os/exec"
	"path"
	"strings"

	"github.com/hardenedos/debforge/pkg/common/strs"
	futil "github.com/hardenedos/debforge/pkg/fileutil"
	"github.com/hardenedos/debforge/pkg/log"
	"github.com/hardenedos/debforge/pkg/prebuilt/meta"
)

//StampFormat is the time.Format layout of the build stamp embedded in
//component file names.
const StampFormat = "20060102_1504"

//find components, return a list of them in order of preference (newest first)
func List(dir string, oldestFirst bool) []string {
	entries, err := ioutil.ReadDir(dir)
	if err != nil {
		return nil
	}
	var unsorted []string
	for _, item := range entries {
		if item.IsDir() {
			continue
		}
		fname := item.Name()
		if !strings.HasSuffix(fname, ".txz") {
			log.Logf("list: skipping %s due to suffix", fname)
			continue
		}
		if !strings.HasPrefix(fname, strs.ComponentPfx()) {
			log.Logf("list: skipping %s due to prefix", fname)
			continue
		}
		fpath := path.Join(dir, fname)
		if futil.IsXZSha256(fpath) {
			unsorted = append(unsorted, fpath)
		} else {
			log.Logf("list: skipping %s due to bad signature", fname)
		}
	}
	return sortComponents(unsorted, oldestFirst)
}

func trimmedName(comp string) string {
	comp = path.Base(comp)
	comp = strings.TrimSuffix(comp, ".txz")
	return strings.TrimPrefix(comp, strs.ComponentPfx())
}

//Name returns the component name encoded in an archive's file name, i.e.
//"kernel" for HDOS.DEB.kernel.20250812_1415.txz.
func Name(comp string) string {
	trimmed := trimmedName(comp)
	idx := strings.LastIndex(trimmed, ".")
	if idx < 1 {
		return trimmed
	}
	return trimmed[:idx]
}

//Find searches dir for the newest valid archive of the named component.
//Candidates failing validation are skipped in favor of older builds.
func Find(dir, name string) (comp string, err error) {
	choices := List(dir, false)
	for _, c := range choices {
		if Name(c) != name {
			continue
		}
		trimmed := trimmedName(c)
		cm, merr := meta.Read(c)
		if merr == nil {
			if cm.Name == name {
				log.Logf("%s: metadata matches file name", trimmed)
			} else {
				//don't do anything, just log
				log.Logf("%s: metadata disagrees on name\n%s", c, cm)
			}
		}
		if verr := Validate(c); verr != nil {
			log.Logf("invalid component %s: %s. next...", trimmed, verr)
			continue
		}
		log.Msg("valid: " + trimmed)
		return c, nil
	}
	return "", fmt.Errorf("no valid %s component in %s", name, dir)
}

//Validate decompresses the whole archive, discarding the output. Xz verifies
//the embedded sha256 as it goes.
func Validate(comp string) (err error) {
	compName := path.Base(comp)
	log.Msg("checking " + strings.TrimSuffix(compName, ".txz"))

	if !futil.IsXZSha256(comp) {
		err = fmt.Errorf("%s: wrong checksum", compName)
		log.Logf("%s", err)
		return
	}
	rc, cleanup, err := meta.Unxz(comp)
	if err != nil {
		return
	}
	defer cleanup()
	n, err := io.Copy(ioutil.Discard, rc)
	if err != nil {
		log.Logf("error during decompression of %s: %s", comp, err)
		return
	}
	log.Logf("decompressed valid %dM component %s", n/(1024*1024), comp)
	return nil
}

//Extract unpacks a component archive into dir.
func Extract(comp, dir string) error {
	/* use gnu tar rather than busybox-tar or bsdtar to ensure
	 * permissions, owner, extended attr's, etc are retained
	 *
	 * to be able to extract concatenated archives, need -i option - not
	 * available in busybox tar or bsdtar
	 * xz supports concatenation, so no problem there
	 *
	 * suppress timestamp warnings, seen with debian tarballs.
	 */
	rc, cleanup, err := meta.Unxz(comp)
	if err != nil {
		return err
	}
	defer cleanup()

	untar := exec.Command("tar", "x", "-i", "--xattrs", "--warning=no-timestamp", "-C", dir)
	untar.Stdin = rc
	out, success := log.Cmd(untar)
	if !success {
		return fmt.Errorf("extracting %s: %s", comp, out)
	}
	return nil
}
