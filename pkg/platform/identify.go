// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

package platform

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/hardenedos/debforge/pkg/hw/dmi"
	"github.com/hardenedos/debforge/pkg/log"
)

func init() {
	if strings.Contains(os.Args[0], ".test") {
		//compiled/executed by 'go test', so don't load json
		return
	}
	err := loadJson(getJson())
	if err != nil {
		log.Logf("loading default json: %s", err)
		log.Fatalf("json error")
	}
}

// Identify matches DMI data against the loaded profiles. A Generic profile
// matches only after all specific profiles have been tried. Returns nil if
// nothing matches.
func Identify() *Profile {
	if identifiedProfile != nil {
		return identifiedProfile
	}
	// mfg/sysMfg and prod/sysProd are set by the oem and typically aren't very specific
	// sku is more specific and at times is set by the integrator
	mfg := dmi.String("baseboard-manufacturer")
	prod := dmi.String("baseboard-product-name")
	sku := dmi.Field(1, "SKU Number:") //this is the default field for SKU, may be overridden for particular models

	if p := matchPass(mfg, prod, sku); p != nil {
		identifiedProfile = p
		return p
	}
	log.Logf("attempting alternate identification method...")
	sysMfg := dmi.String("system-manufacturer")
	sysProd := dmi.String("system-product-name")
	if p := matchPass(sysMfg, sysProd, sku); p != nil {
		identifiedProfile = p
		return p
	}
	for _, p := range profiles {
		if p.Generic {
			log.Logf("no exact match; using generic profile %s", p.Name)
			identifiedProfile = &Profile{
				i:      p,
				mfg:    sysMfg,
				prod:   sysProd,
				sku:    sku,
				serial: dmi.String(p.SerNumField),
			}
			return identifiedProfile
		}
	}
	log.Logf("no match for mfg|prod %s | %s (or  %s | %s ), CPU %q\nknown platforms:\n", mfg, prod, sysMfg, sysProd, dmi.String("processor-version"))
	for _, p := range profiles {
		log.Log(p.DiagSummary())
	}
	return nil
}

func matchPass(mfg, prod, sku string) *Profile {
	for _, p := range profiles {
		if p.Generic {
			continue
		}
		if mfg == p.DmiMbMfg && prod == p.DmiProdName {
			overrideSku, success := p.checkModelRe(mfg, prod, sku)
			if !success {
				continue
			}
			if !p.processorMatch() {
				continue
			}
			return &Profile{
				i:      p,
				mfg:    mfg,
				prod:   prod,
				sku:    overrideSku,
				serial: dmi.String(p.SerNumField),
			}
		}
	}
	return nil
}

// Check that the unit's cpus match what the system reports.
func (p *Profile_) processorMatch() bool {
	if len(p.CPU) == 0 {
		return true
	}
	//system with 1 populated socket, 1 empty:
	//Cpu 1\nNot Specified
	//not sure if "Not Specified" comes from dmidecode or is something the vendor chooses
	current := strings.TrimSpace(dmi.String("processor-version"))

	//not sure the cpus will always be in the same order, so loop over them
	pcpus := strings.Split(p.CPU, "\n")
	ccpus := strings.Split(current, "\n")
	for _, pc := range pcpus {
		for i := range ccpus {
			cc := strings.TrimSpace(ccpus[i])
			if cc == pc {
				ccpus = append(ccpus[:i], ccpus[i+1:]...)
				break
			}
		}
	}
	//if it matches, ccpus will be empty
	return len(ccpus) == 0
}

func ReIdentify() *Profile {
	identifiedProfile = nil
	return Identify()
}

func (p *Profile_) checkModelRe(mfg, prod, sku string) (overrideSku string, match bool) {
	re, err := regexp.Compile(p.DmiProdModelRegex)
	if err != nil {
		log.Logf("skipping potential match %s:%s, as regex %s failed to compile - err=%s",
			mfg, prod, p.DmiProdModelRegex, err)
		return "", false
	}
	if p.DmiPMOverrideFld != "" {
		sku = dmi.Field(p.DmiPMOverrideTyp, p.DmiPMOverrideFld)
	}
	if !re.Match([]byte(sku)) {
		log.Logf("skipping potential match %s:%s, as regex %s failed to match %s",
			mfg, prod, p.DmiProdModelRegex, sku)
		return "", false
	}
	log.Logf("+++ device matches %s - %s:%s:%s +++", p.Name, mfg, prod, sku)
	return sku, true
}

//one-line summary
func (p *Profile_) DiagSummary() string {
	s := fmt.Sprintf("  %s | %s | SKU %s   (%s)", p.DmiMbMfg, p.DmiProdName, p.DmiProdModelRegex, p.Name)
	if p.CPU != "" {
		s += fmt.Sprintf(", CPU=%q", p.CPU)
	}
	return s
}

// Call Identify(); if that fails, use the profile stored under 'name' -
// typically PROFILE from hardened-os.conf.
func IdentifyWithFallback(name string) (*Profile, error) {
	Identify()
	if identifiedProfile != nil {
		return identifiedProfile, nil
	}
	if name == "" {
		return nil, fmt.Errorf("hardware not identified and no fallback profile configured")
	}
	usedFallback = true
	for _, p := range profiles {
		var sku string
		if p.Name == name {
			if p.DmiPMOverrideFld != "" {
				sku = dmi.Field(p.DmiPMOverrideTyp, p.DmiPMOverrideFld)
			} else {
				sku = dmi.Field(1, "SKU Number:")
			}
			identifiedProfile = &Profile{
				i:      p,
				mfg:    p.DmiMbMfg,
				prod:   p.DmiProdName,
				sku:    sku,
				serial: dmi.String(p.SerNumField),
			}
			break
		}
	}
	if identifiedProfile == nil {
		return nil, fmt.Errorf("no profile named %q", name)
	}
	return identifiedProfile, nil
}

var usedFallback bool

func IdentifiedViaFallback() bool {
	return usedFallback
}

func Get(name string) *Profile {
	for _, p := range profiles {
		if p.Name == name {
			return &Profile{i: p}
		}
	}
	return nil
}

var pd_default = `{"Profiles":[
{"Name":"qemu","DmiMbMfg":"QEMU","DmiProdName":"Standard PC (i440FX + PIIX, 1996)","DmiProdModelRegex":".*","SerNumField":"system-serial-number","Firmware":"either","SerialConsole":"ttyS0,115200n8","Virttype":3,"Disk":{"MinSize":5368709120,"SizeTol":5,"SSD":true}},
{"Name":"qemu-q35","DmiMbMfg":"QEMU","DmiProdName":"Standard PC (Q35 + ICH9, 2009)","DmiProdModelRegex":".*","SerNumField":"system-serial-number","Firmware":"uefi","SerialConsole":"ttyS0,115200n8","Virttype":3,"Disk":{"MinSize":5368709120,"SizeTol":5,"SSD":true}},
{"Name":"cputest1","DmiMbMfg":"cputest","DmiProdName":"cputest","DmiProdModelRegex":".*","CPU":"someVersion","SerNumField":"system-serial-number","Firmware":"uefi","Disk":{"MinSize":21474836480,"SSD":true}},
{"Name":"cputest2","DmiMbMfg":"cputest","DmiProdName":"cputest","DmiProdModelRegex":".*","CPU":"someOtherVersion","SerNumField":"system-serial-number","Firmware":"uefi","Disk":{"MinSize":21474836480,"SSD":true}},
{"Name":"generic","DmiMbMfg":"","DmiProdName":"","DmiProdModelRegex":".*","SerNumField":"system-serial-number","Firmware":"either","Generic":true}]}`

//embedded data; a file passed to LoadJson overrides this
func getJson() []byte {
	return []byte(pd_default)
}
