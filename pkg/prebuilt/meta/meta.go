// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

//Package meta reads the metadata file embedded at the beginning of a
//component archive (tar.xz). The metadata records what the build host knew
//at archive creation time.
package meta

import (
	"archive/tar"
	"encoding/json"
	"fmt"
	"io"
	fp "path/filepath"
	"strings"

	"github.com/hardenedos/debforge/pkg/common/strs"
	"github.com/hardenedos/debforge/pkg/log"
)

const (
	oneM = 1024 * 1024 //arbitrary data read limit of 1 MB
)

var (
	//remove leading slash because that will not be present in tar
	MetaPath = strings.TrimPrefix(fp.Join(strs.ConfDir(), "component.json"), "/")
)

// ComponentMeta is embedded in a component archive and describes the
// component and the build that produced it.
type ComponentMeta struct {
	Name      string //component name, without prefix or timestamp
	Suite     string //debian suite the component was built against
	BuildTime string //RFC3339
	Builder   string //host name of the build machine
}

func (cm *ComponentMeta) String() string {
	str := fmt.Sprintln("Name:     ", cm.Name)
	str += fmt.Sprintln("Suite:    ", cm.Suite)
	str += fmt.Sprintln("BuildTime:", cm.BuildTime)
	str += fmt.Sprintln("Builder:  ", cm.Builder)
	return str
}

// ReadRaw reads a metadata file embedded at the beginning of a component
// (tar.xz) archive, returning the raw data, which is encoded as json. See
// also: Read()
//
// Ensuring a file comes first in a tarball is as simple as writing it first;
// extraction tolerates it appearing again later in the archive, since the
// second copy merely overwrites the first.
func ReadRaw(comp string) ([]byte, error) {
	xz, cleanup, err := Unxz(comp)
	if err != nil {
		return nil, err
	}
	defer cleanup()
	tr := tar.NewReader(io.LimitReader(xz, oneM))
	var h *tar.Header
	for {
		h, err = tr.Next()
		if err != nil {
			return nil, err
		}
		if h.FileInfo().IsDir() {
			continue
		}
		if strings.HasSuffix(h.Name, MetaPath) {
			log.Logf("meta: found %s", h.Name)
			break
		}
		log.Logf("meta: out-of-order file %s", h.Name)
	}
	buf := make([]byte, oneM)
	n, err := tr.Read(buf)
	if err != nil && err != io.EOF {
		return nil, err
	}
	buf = buf[:n]
	return buf, nil
}

// Read is like ReadRaw but returns a ComponentMeta struct.
func Read(comp string) (*ComponentMeta, error) {
	buf, err := ReadRaw(comp)
	if err != nil {
		return nil, err
	}
	meta := &ComponentMeta{}
	err = json.Unmarshal(buf, meta)
	if err != nil {
		return nil, err
	}
	return meta, nil
}
