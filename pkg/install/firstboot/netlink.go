// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

package firstboot

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/hardenedos/debforge/pkg/common/strs"
	"github.com/hardenedos/debforge/pkg/log"

	"github.com/vishvananda/netlink"
)

//Bring up the first wired link so hooks and prebuilt downloads can reach
//the network during install. Loopback and virtual links are skipped.
func EnsureLinkUp() (name string, err error) {
	links, err := netlink.LinkList()
	if err != nil {
		return "", err
	}
	for _, l := range links {
		attrs := l.Attrs()
		if attrs.EncapType != "ether" {
			continue
		}
		if strings.HasPrefix(attrs.Name, "virbr") || strings.HasPrefix(attrs.Name, "docker") {
			continue
		}
		if err := netlink.LinkSetUp(l); err != nil {
			log.Logf("bringing up %s: %s", attrs.Name, err)
			continue
		}
		return attrs.Name, nil
	}
	return "", fmt.Errorf("no wired link found")
}

//Check each wired link's MAC against the profile's expected prefixes. An
//empty prefix list falls back to the project OUI. Mismatches are logged;
//they only fail the check when required is set (generic profiles accept any
//vendor).
func CheckMacPolicy(prefixes [][]byte, required bool) (ok bool) {
	ok = true
	if len(prefixes) == 0 {
		prefixes = [][]byte{strs.MacOUIBytes()}
	}
	links, err := netlink.LinkList()
	if err != nil {
		log.Logf("listing links: %s", err)
		return !required
	}
	for _, l := range links {
		attrs := l.Attrs()
		if attrs.EncapType != "ether" || len(attrs.HardwareAddr) == 0 {
			continue
		}
		if !macMatches(attrs.HardwareAddr, prefixes) {
			log.Logf("link %s mac %s does not match any expected prefix", attrs.Name, fmtMac(attrs.HardwareAddr))
			if required {
				ok = false
			}
		}
	}
	return
}

func macMatches(mac []byte, prefixes [][]byte) bool {
	for _, p := range prefixes {
		if len(p) > 0 && len(mac) >= len(p) && bytes.HasPrefix(mac, p) {
			return true
		}
	}
	return false
}
