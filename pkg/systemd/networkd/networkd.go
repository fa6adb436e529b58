// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

//Package networkd writes config files for systemd-networkd on the installed
//system. The default is DHCP on all wired links; per-link overrides pin a
//link by MAC.
package networkd

import (
	"bytes"
	"fmt"
	"io/ioutil"
	"net"
	"os"
	fp "path/filepath"
	"strings"
	"text/template"

	"github.com/hardenedos/debforge/pkg/log"
)

type configFile struct {
	name string
	data []byte
}

// Write writes config to files under dir (normally
// <target>/etc/systemd/network).
func Write(dir string, cfgs []configFile) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	for _, c := range cfgs {
		name := fp.Join(dir, c.name)
		err := ioutil.WriteFile(name, c.data, 0644)
		if err != nil {
			log.Logf("failed to write network config file %s: %s", name, err)
			return err
		}
	}
	return nil
}

//DHCP on every wired link. Always first in the generated set; MAC-pinned
//files sort earlier and win.
func DefaultWired() []configFile {
	out := new(bytes.Buffer)
	if err := defTmpl.Execute(out, nil); err != nil {
		log.Logf("default network config: %s", err)
	}
	return []configFile{{name: "80-wired-dhcp.network", data: out.Bytes()}}
}

//Per-link config pinned by MAC.
func ForLink(mac net.HardwareAddr, dhcp bool, addrs []string) []configFile {
	nfs := linkStruct{Mac: strings.ToUpper(mac.String()), DHCP: dhcp, IPs: addrs}
	out := new(bytes.Buffer)
	if err := netTmpl.Execute(out, nfs); err != nil {
		log.Logf("network config for %s: %s", nfs.Mac, err)
	}
	base := strings.ToLower(strings.Replace(mac.String(), ":", "", -1))
	return []configFile{{name: fmt.Sprintf("10-%s.network", base), data: out.Bytes()}}
}

type linkStruct struct {
	Mac  string
	DHCP bool
	IPs  []string
}

/* templates
*
* dashes ( `{{-` or `-}}` ) affect whitespace and should be changed with care
 */

var defTmpl, netTmpl *template.Template

func init() {
	defTmpl = template.Must(template.New("default").Parse(defTxt))
	netTmpl = template.Must(template.New("network").Parse(netTxt))
}

const defTxt = `# written at install time
[Match]
Name=en* eth*

[Network]
DHCP=yes
LLMNR=no
`

const netTxt = `# written at install time
[Match]
MACAddress={{ .Mac }}

[Network]
{{- if .DHCP }}
DHCP=yes
{{- else }}
# no DHCP
{{- end }}
LLMNR=no
{{- range .IPs }}
Address={{ . }}
{{- else }}
# no static IP
{{- end }}
`
