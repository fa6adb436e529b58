// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

package partitioning

import (
	"fmt"
	"os/exec"
	"strings"

	"github.com/hardenedos/debforge/pkg/log"
)

type mbr struct {
	device     string
	partitions []partition
	committed  bool
}

var _ Partitioner = (*mbr)(nil)

func NewMbr(dev string) Partitioner {
	return &mbr{device: dev}
}

//sfdisk hex types
var mbrTypes = map[partType]string{
	FAT32:     "0c",
	Linux:     "83",
	LinuxLUKS: "e8",
	ESP:       "ef",
}

func (m *mbr) Add(sizeMegs uint64, ptype partType, boot bool, name string) {
	if m.committed {
		log.Fatalf("cannot add partition %s, table already written", name)
		return
	}
	if len(m.partitions) >= 4 {
		log.Fatalf("too many partitions for mbr, %s would be number %d", name, len(m.partitions)+1)
		return
	}
	//mbr has no partition names; name only appears in logs
	m.partitions = append(m.partitions, partition{
		num:   len(m.partitions) + 1,
		size:  sizeMegs,
		ptype: ptype,
		boot:  boot,
		name:  name,
	})
}

func (m *mbr) Commit() error {
	cmd := exec.Command("sfdisk", "--wipe", "always", "--wipe-partitions", "always", m.device)
	cmd.Stdin = strings.NewReader(m.commands())
	_, success := log.Cmd(cmd)
	if !success {
		return fmt.Errorf("writing mbr to %s", m.device)
	}
	m.committed = true
	return nil
}

//One line per partition: start,size,type,bootable. Start is left blank so
//sfdisk packs them; at most one partition gets the bootable flag.
func (m *mbr) commands() (cmds string) {
	haveBootable := false
	for _, p := range m.partitions {
		size := ""
		if p.size > 0 {
			size = fmt.Sprintf("%dM", p.size)
		}
		boot := ""
		if p.boot && !haveBootable {
			boot = "*"
			haveBootable = true
		}
		cmds += fmt.Sprintf(",%s,%s,%s\n", size, mbrTypes[p.ptype], boot)
	}
	return
}
