// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

// Package platform contains data on the hardware models the installer knows
// about.
//
// This includes sufficient data for identification of a particular model, as
// well as data on its components where differences matter to the install -
// firmware type, serial console wiring, disk expectations, kernel flavor.
//
// Profiles are loaded from embedded json (pd_default in identify.go); a file
// given to LoadJson() overrides the embedded set rather than adding to it.
// One profile may be marked Generic - it matches any hardware and is chosen
// only when nothing else matches.
package platform

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/hardenedos/debforge/pkg/log"
)

//firmware the profile expects; Either defers to runtime detection
type Firmware int //marshalling function in json.go

const (
	FirmwareEither Firmware = iota
	FirmwareUEFI
	FirmwareBIOS
)

//virtualization type
type Virtualization int

const (
	BareMetal Virtualization = iota
	HyperV
	KVM
	Qemu
	VirtualBox
	VMWare
)

//what the profile expects of the target disk
type DiskInfo struct {
	MinSize uint64 `json:",omitempty"` //size in bytes, BLKGETSIZE64; 0 = any
	SizeTol uint64 `json:",omitempty"` //allowable tolerance (percent) between disk and MinSize
	SSD     bool   `json:",omitempty"`
}

// A hidden field of Profile. Hidden/protected because accidental overwrites
// of identified data have bitten before.
type Profile_ struct {
	Name                  string         //lower case, unique. ex: generic, qemu
	DmiMbMfg, DmiProdName string         //mfg & product name from DMI
	DmiProdModelRegex     string         //regex to match the DMI Product Model field (the SKU shown by `dmidecode -t 1`)
	DmiPMOverrideTyp      int            `json:",omitempty"` //override source of product model data; this is a handle type passed with -t to dmidecode
	DmiPMOverrideFld      string         `json:",omitempty"` //override source of product model data; this is the field name in the human-readable output
	CPU                   string         `json:",omitempty"` //fill out if two models are otherwise indistinguishable, otherwise leave blank.
	SerNumField           string         //'dmidecode -s' field name
	Firmware              Firmware       //uefi, bios, either
	SerialConsole         string         `json:",omitempty"` //console= args, e.g. ttyS0,115200n8
	KernelPkg             string         `json:",omitempty"` //overrides KERNEL_PACKAGE from config
	Disk                  DiskInfo       `json:",omitempty"`
	MACPrefix             []string       `json:",omitempty"` //overrides the default prefix from strs.MacOUI(). colon-separated hex.
	Generic               bool           `json:",omitempty"` //matches anything; chosen last
	Virttype              Virtualization `json:",omitempty"`
}

//Profile describes a particular model of target hardware.
type Profile struct {
	/*
		embedding 'Profile_' with an unexported name hides internal variables,
		which can't otherwise be hidden or json marshal/unmarshal won't see them
		https://golang.org/doc/effective_go.html#embedding
	*/
	i                      Profile_
	mfg, prod, sku, serial string
}

var profiles []Profile_
var identifiedProfile *Profile

func (p *Profile) Name() string { return p.i.Name }

func (p *Profile) SerNum() string { return p.serial }

//true unless the profile pins legacy BIOS boot
func (p *Profile) EFIBoot() bool { return p.i.Firmware != FirmwareBIOS }

func (p *Profile) FirmwareType() Firmware { return p.i.Firmware }

func (p *Profile) SerialConsole() string { return p.i.SerialConsole }

func (p *Profile) KernelPackage() string { return p.i.KernelPkg }

func (p *Profile) IsGeneric() bool { return p.i.Generic }

func (p *Profile) SSD() bool { return p.i.Disk.SSD }

func (p *Profile) DiskMinSize() uint64 { return p.i.Disk.MinSize }

func (p *Profile) DiskTol() uint64 {
	if p.i.Disk.SizeTol == 0 {
		//0 is default for variables omitted from json, but we want to default to 5%
		//side effect: minimum value is 1%, not 0%
		return 5
	}
	return p.i.Disk.SizeTol
}

func (p *Profile) Virtual() bool { return p.i.Virttype != BareMetal }

func (p *Profile) VirtType() Virtualization { return p.i.Virttype }

func (p *Profile) Mfg() string  { return p.mfg }
func (p *Profile) Prod() string { return p.prod }
func (p *Profile) SKU() string  { return p.sku }

func (p *Profile) PrettyName() string {
	return fmt.Sprintf("%s %s %s", p.mfg, p.prod, p.sku)
}

func (p *Profile) MACPrefixes() (prefixes [][]byte) {
	if len(p.i.MACPrefix) == 1 && p.i.MACPrefix[0] == "*" {
		// An asterisk in the json means any MAC is acceptable; translate
		// to an empty list, which downstream code treats as "no filter".
		return
	}
outer:
	for _, pfx := range p.i.MACPrefix {
		octets := strings.Split(strings.Trim(pfx, ":"), ":")
		var b []byte
		for _, o := range octets {
			v, err := strconv.ParseUint(o, 16, 8)
			if err != nil {
				log.Logf("parsing %s in MAC prefix %s: %s", o, pfx, err)
				continue outer
			}
			b = append(b, byte(v))
		}
		prefixes = append(prefixes, b)
	}
	return
}
