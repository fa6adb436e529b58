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

	"github.com/hardenedos/debforge/pkg/log"
)

type gpt struct {
	device     string
	partitions []partition
	committed  bool
}

var _ Partitioner = (*gpt)(nil)

func NewGpt(dev string) Partitioner {
	return &gpt{device: dev}
}

//sgdisk typecodes
var gptTypes = map[partType]string{
	FAT32:     "0c00",
	Linux:     "8300",
	LinuxLUKS: "8309",
	ESP:       "ef00",
}

func (g *gpt) Add(sizeMegs uint64, ptype partType, boot bool, name string) {
	if g.committed {
		log.Fatalf("cannot add partition %s, table already written", name)
		return
	}
	g.partitions = append(g.partitions, partition{
		num:   len(g.partitions) + 1,
		size:  sizeMegs,
		ptype: ptype,
		boot:  boot,
		name:  name,
	})
}

func (g *gpt) Commit() error {
	args := append([]string{"--clear", "--mbrtogpt"}, g.assembleArgs()...)
	args = append(args, g.device)
	_, success := log.Cmd(exec.Command("sgdisk", args...))
	if !success {
		return fmt.Errorf("writing gpt to %s", g.device)
	}
	g.committed = true
	return nil
}

func (g *gpt) assembleArgs() (args []string) {
	warned := false
	for _, p := range g.partitions {
		//UEFI firmware boots the ESP and nothing else, so the boot flag
		//is meaningless unless it lines up with the ESP type.
		if p.boot != (p.ptype == ESP) && !warned {
			log.Logf("WARNING: UEFI always only boots ESP partitions. Ignoring boot flag(s).")
			warned = true
		}
		size := ""
		if p.size > 0 {
			size = fmt.Sprintf("+%dM", p.size)
		}
		args = append(args,
			fmt.Sprintf("--new=%d::%s", p.num, size),
			fmt.Sprintf("--typecode=%d:%s", p.num, gptTypes[p.ptype]),
			fmt.Sprintf("--change-name=%d:%s", p.num, p.name),
		)
	}
	return
}
