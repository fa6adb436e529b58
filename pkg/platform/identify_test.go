// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

package platform

import (
	"testing"

	"github.com/hardenedos/debforge/pkg/hw/dmi"
	"github.com/hardenedos/debforge/pkg/log/testlog"
)

func TestIdentify(t *testing.T) {
	err := loadJson([]byte(pd_default))
	if err != nil {
		t.Error(err)
	}
	testIdent(t, identMocks)
}

func testIdent(t *testing.T, mocks []identTestData) {
	for _, mock := range mocks {
		t.Run(mock.name, func(t *testing.T) {
			tlog := testlog.NewTestLog(t, true, false)
			dmi.TestingMock(mock.sm, mock.tm)
			p := ReIdentify()
			if p == nil && !mock.fail {
				t.Errorf("identify failed for %s/%s", mock.name, mock.profile)
			} else if p != nil && mock.fail {
				t.Errorf("identify should fail for %s/%s but did not\n%+v", mock.name, mock.profile, p)
			} else {
				t.Logf("identify result is as expected for %s/%s: fail=%t", mock.name, mock.profile, mock.fail)
			}
			if p != nil {
				if p.Name() != mock.profile {
					t.Errorf("%s: want profile %s, got  %s", mock.name, mock.profile, p.Name())
				}
				if p.SerNum() != mock.serial {
					t.Errorf("%s: want serial %s, got %s", mock.name, mock.serial, p.SerNum())
				}
			}
			if t.Failed() {
				tlog.Freeze()
				l := tlog.Buf.String()
				t.Logf("log content for %s/%s:\n%s\n", mock.name, mock.profile, l)
			}
		})
	}
}

type identTestData struct {
	sm                    dmi.DmiStrMap
	tm                    dmi.DmiTypeMap
	profile, serial, name string
	cpus                  string
	fail                  bool
}

// The 'generic' profile means nothing ever truly fails to identify, so
// "unknown" hardware resolves to it.
var identMocks = []identTestData{
	{
		name:    "unknown",
		sm:      dmi.DmiStrMap{"system-serial-number": "XYZ"},
		tm:      dmi.DmiTypeMap{},
		profile: "generic",
		serial:  "XYZ",
	},
	{
		name: "qemu-i440fx",
		sm: dmi.DmiStrMap{
			"bios-vendor":             "SeaBIOS",
			"bios-version":            "1.10.2-1.fc27",
			"bios-release-date":       "04/01/2014",
			"system-manufacturer":     "QEMU",
			"system-product-name":     "Standard PC (i440FX + PIIX, 1996)",
			"system-version":          "pc-i440fx-2.11",
			"system-serial-number":    "QEMU01234",
			"system-uuid":             "Not Settable",
			"baseboard-manufacturer":  "",
			"baseboard-product-name":  "",
			"baseboard-version":       "",
			"baseboard-serial-number": "",
			"baseboard-asset-tag":     "",
			"chassis-manufacturer":    "QEMU",
			"chassis-type":            "Other",
			"chassis-version":         "pc-i440fx-2.11",
			"chassis-serial-number":   "Not Specified",
			"chassis-asset-tag":       "Not Specified",
			"processor-family":        "Other",
			"processor-manufacturer":  "QEMU",
			"processor-version":       "pc-i440fx-2.11",
			"processor-frequency":     "2000 MHz",
		},
		tm: dmi.DmiTypeMap{
			1: []byte(`Handle 0x0100, DMI type 1, 27 bytes
System Information
	Manufacturer: QEMU
	Product Name: Standard PC (i440FX + PIIX, 1996)
	Version: pc-i440fx-2.11
	Serial Number: QEMU01234
	UUID: Not Settable
	Wake-up Type: Power Switch
	SKU Number: Not Specified
	Family: Not Specified
`),
		},
		profile: "qemu",
		serial:  "QEMU01234",
	},
	{
		name: "qemu-q35",
		sm: dmi.DmiStrMap{
			"system-manufacturer":  "QEMU",
			"system-product-name":  "Standard PC (Q35 + ICH9, 2009)",
			"system-serial-number": "QEMU99",
		},
		tm: dmi.DmiTypeMap{
			1: []byte("Handle 0x0\nSKU Number: Not Specified\n"),
		},
		profile: "qemu-q35",
		serial:  "QEMU99",
	},
	{
		name: "test-cpu1",
		sm: dmi.DmiStrMap{
			"system-manufacturer":  "cputest",
			"system-product-name":  "cputest",
			"system-serial-number": "abcd",
			"processor-version":    "someVersion",
		},
		tm: dmi.DmiTypeMap{
			1: []byte("Handle 0x0\nSKU Number: Not Specified\n"),
		},
		profile: "cputest1",
		serial:  "abcd",
	},
	{
		name: "test-cpu2",
		sm: dmi.DmiStrMap{
			"system-manufacturer":  "cputest",
			"system-product-name":  "cputest",
			"system-serial-number": "efgh",
			"processor-version":    "someOtherVersion",
		},
		tm: dmi.DmiTypeMap{
			1: []byte("Handle 0x0\nSKU Number: Not Specified\n"),
		},
		profile: "cputest2",
		serial:  "efgh",
	},
	{
		name: "test-badcpu",
		sm: dmi.DmiStrMap{
			"system-manufacturer":  "cputest",
			"system-product-name":  "cputest",
			"system-serial-number": "efgh",
			"processor-version":    "yetAnotherVersion",
		},
		tm: dmi.DmiTypeMap{
			1: []byte("Handle 0x0\nSKU Number: Not Specified\n"),
		},
		//neither cputest profile matches, so the generic one wins
		profile: "generic",
		serial:  "efgh",
	},
}

//func IdentifyWithFallback(name string) (*Profile, error)
func TestFallback(t *testing.T) {
	if err := loadJson(noGeneric()); err != nil {
		t.Fatal(err)
	}
	dmi.TestingMock(dmi.DmiStrMap{}, dmi.DmiTypeMap{})
	identifiedProfile = nil

	p, err := IdentifyWithFallback("qemu-q35")
	if err != nil {
		t.Error(err)
	}
	if p == nil {
		t.Error("profile is nil")
		return
	}
	if p.Name() != "qemu-q35" {
		t.Errorf("got %+v\n", p)
	}
}

//profiles minus the catch-all, so Identify() can fail
func noGeneric() []byte {
	return []byte(`{"Profiles":[
{"Name":"qemu-q35","DmiMbMfg":"QEMU","DmiProdName":"Standard PC (Q35 + ICH9, 2009)","DmiProdModelRegex":".*","SerNumField":"system-serial-number","Firmware":"uefi"}]}`)
}

//func (p *Profile_) processorMatch() bool
func TestProcessorMatch(t *testing.T) {
	gold := "Intel(R) Xeon(R) Gold 5118 CPU @ 2.30GHz"
	old := "Intel(R) Xeon(R) CPU E5-2418L v2 @ 2.00GHz"
	ns := "Not Specified"
	cng := ns + "\n" + gold
	cgn := gold + "\n" + ns
	cgg := gold + "\n" + gold
	con := old + "\n" + ns
	mocks := []identTestData{
		{
			name: "cgn",
			sm:   dmi.DmiStrMap{"processor-version": cgn},
			cpus: cgn,
		},
		{
			name: "cng",
			sm:   dmi.DmiStrMap{"processor-version": cng},
			cpus: cng,
		},
		{
			name: "cgn-swap",
			sm:   dmi.DmiStrMap{"processor-version": cng},
			cpus: cgn,
		},
		{
			name: "cgg",
			sm:   dmi.DmiStrMap{"processor-version": cgg},
			cpus: cgg,
		},
		{
			name: "con",
			sm:   dmi.DmiStrMap{"processor-version": con},
			cpus: con,
		},
		{
			name: "old",
			sm:   dmi.DmiStrMap{"processor-version": old},
			cpus: old,
		},
		{
			name: "gold",
			sm:   dmi.DmiStrMap{"processor-version": gold},
			cpus: gold,
		},
		{
			name: "cgg-fail",
			sm:   dmi.DmiStrMap{"processor-version": cgg},
			cpus: cgn,
			fail: true,
		},
		{
			name: "cgg-fail2",
			sm:   dmi.DmiStrMap{"processor-version": cgg},
			cpus: gold,
			fail: true,
		},
		{
			name: "gold-fail",
			sm:   dmi.DmiStrMap{"processor-version": gold},
			cpus: old,
			fail: true,
		},
		{
			name: "old-fail",
			sm:   dmi.DmiStrMap{"processor-version": old},
			cpus: gold,
			fail: true,
		},
	}
	for _, m := range mocks {
		t.Run(m.name, func(t *testing.T) {
			tlog := testlog.NewTestLog(t, true, false)
			dmi.TestingMock(m.sm, nil)
			p := &Profile_{CPU: m.cpus}
			match := p.processorMatch()
			if match == m.fail {
				t.Error("mismatch")
			}
			tlog.Freeze()
			if t.Failed() {
				t.Log(tlog.Buf.String())
			}
		})
	}
}
