// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

// +build !release

package platform

import (
	"github.com/hardenedos/debforge/pkg/log"
)

// To be used in testing. Allows assignment to normally-unassignable fields of Profile.
func TestSetup(i Profile_, mfg, prod, sku, serial string) (p *Profile) {
	p = &Profile{i: i, mfg: mfg, prod: prod, sku: sku, serial: serial}
	return
}

// Like TestSetup, but uses a profile name and default data rather than Profile_
func TestSetupFrom(name, mfg, prod, sku, serial string) *Profile {
	if profiles == nil {
		//not loaded in tests
		err := loadJson(getJson())
		if err != nil {
			log.Logf("loading default json: %s", err)
			log.Fatalf("json error")
		}
	}
	p := Get(name)
	if p == nil {
		return nil
	}
	return TestSetup(p.i, mfg, prod, sku, serial)
}
