// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

package platform

import (
	"encoding/json"
	"io/ioutil"
	fp "path/filepath"

	"github.com/hardenedos/debforge/pkg/common/strs"
	"github.com/hardenedos/debforge/pkg/log"
)

// Functions in this file are so that software in the installed system doesn't
// need to query smbios data (which requires root). The installer writes the
// platform's info to a file inside the target once the install succeeds.

type PlatFacts struct {
	Profile_
	Mfg, Prod, SKU, Serial string
}

// Use at the end of install to write the file. Path is the target root.
func (p *Profile) WriteOut(path string) {
	file := fp.Join(path, strs.ConfDir(), "platform_facts.json")
	p.write(file)
}

func (p *Profile) json() []byte {
	s := PlatFacts{
		Serial:   p.serial,
		Mfg:      p.mfg,
		Prod:     p.prod,
		SKU:      p.sku,
		Profile_: p.i,
	}
	data, err := json.Marshal(s)
	if err != nil {
		log.Logf("marshalling platform facts: %s", err)
		log.Fatalf("error creating platform_facts.json")
	}
	return data
}

func (p *Profile) write(file string) {
	data := p.json()
	err := ioutil.WriteFile(file, data, 0644)
	if err != nil {
		log.Fatalf("writing %s: %s", file, err)
	}
	log.Logf("wrote %s", file)
}

// Returns platform info. If platform.Identify() has been called, uses its
// data. Otherwise loads info from platform_facts.json, written at install
// time.
func Read() *Profile {
	if identifiedProfile != nil {
		return identifiedProfile
	}
	return read(fp.Join(strs.ConfDir(), "platform_facts.json"))
}

func read(path string) (p *Profile) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		log.Logf("reading %s: %s", path, err)
		return
	}
	var s PlatFacts
	err = json.Unmarshal(data, &s)
	if err != nil {
		log.Logf("unmarshalling %s: %s", path, err)
	}
	p = new(Profile)
	p.i = s.Profile_
	p.serial = s.Serial
	p.mfg = s.Mfg
	p.prod = s.Prod
	p.sku = s.SKU
	return
}
