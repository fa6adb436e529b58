// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

package platform

import (
	"encoding/json"
	"fmt"
	"io/ioutil"
	"strings"

	"github.com/hardenedos/debforge/pkg/log"
)

// LoadJson replaces the embedded profiles with those in the given file.
func LoadJson(path string) {
	log.Logf("loading platform json from %s", path)
	data, err := ioutil.ReadFile(path)
	if err != nil {
		log.Fatalf(fmt.Sprintf("bad json path: %s", err))
	}
	err = loadJson(data)
	if err != nil {
		log.Fatalf(fmt.Sprintf("loadJson: unmarshal error %s", err))
	}
}

func loadJson(data []byte) (err error) {
	var loadStruct struct{ Profiles []Profile_ } //necessary because on output, we wrap the Profile array
	err = json.Unmarshal(data, &loadStruct)
	if err == nil {
		profiles = loadStruct.Profiles
	}
	return
}

func DumpDescriptions() {
	m, err := json.MarshalIndent(profiles, "  ", "  ")
	if err != nil {
		fmt.Printf("failed to marshal, err=%s\ndata=\n%#v\n", err, profiles)
	}
	fmt.Printf("{\n  \"Profiles\": %s\n}\n", m)
}

func (f *Firmware) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	switch strings.ToLower(s) {
	case "uefi":
		*f = FirmwareUEFI
	case "bios":
		*f = FirmwareBIOS
	case "either", "":
		*f = FirmwareEither
	default:
		log.Logf("unrecognized value for %T, assuming either: %s", f, s)
		*f = FirmwareEither
	}
	return nil
}
func (f Firmware) MarshalJSON() ([]byte, error) {
	var s string
	switch f {
	case FirmwareUEFI:
		s = "uefi"
	case FirmwareBIOS:
		s = "bios"
	case FirmwareEither:
		s = "either"
	default:
		return nil, fmt.Errorf("failed to marshal %T value %#v", f, f)
	}
	return json.Marshal(s)
}
