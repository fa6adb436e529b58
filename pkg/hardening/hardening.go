// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

//Package hardening renders the kernel hardening config dropped into the
//target tree: a sysctl fragment, a modprobe blacklist, and kernel cmdline
//additions. Each group can be disabled from config.
package hardening

import (
	"bytes"
	"io/ioutil"
	"os"
	fp "path/filepath"
	"strings"
	"text/template"

	"github.com/hardenedos/debforge/pkg/config"
	"github.com/hardenedos/debforge/pkg/log"
)

const (
	sysctlRelPath   = "etc/sysctl.d/99-hardening.conf"
	modprobeRelPath = "etc/modprobe.d/hardening-blacklist.conf"
)

//Modules blacklisted when the config doesn't name its own list. Rare or
//legacy protocols with a history of exploitable parsers.
var DefaultBlacklist = []string{
	"dccp",
	"sctp",
	"rds",
	"tipc",
	"n-hdlc",
	"ax25",
	"netrom",
	"x25",
	"rose",
	"decnet",
	"econet",
	"af_802154",
	"ipx",
	"appletalk",
	"psnap",
	"p8023",
	"p8022",
	"can",
	"atm",
	"cramfs",
	"freevxfs",
	"jffs2",
	"hfs",
	"hfsplus",
	"udf",
	"usb-storage",
	"firewire-core",
	"thunderbolt",
}

//Cmdline flags appended when sysctl hardening is on. Mitigation toggles
//the kernel can't change after boot.
var CmdlineFlags = []string{
	"slab_nomerge",
	"init_on_alloc=1",
	"init_on_free=1",
	"page_alloc.shuffle=1",
	"pti=on",
	"randomize_kstack_offset=on",
	"vsyscall=none",
	"lockdown=confidentiality",
}

/* templates
*
* dashes ( `{{-` or `-}}` ) affect whitespace and should be changed with care
 */

var sysctlTmpl, modprobeTmpl *template.Template

func init() {
	sysctlTmpl = template.Must(template.New("sysctl").Parse(sysctlTxt))
	modprobeTmpl = template.Must(template.New("modprobe").Parse(modprobeTxt))
}

const sysctlTxt = `# kernel hardening, written at install time
kernel.kptr_restrict=2
kernel.dmesg_restrict=1
kernel.printk=3 3 3 3
kernel.unprivileged_bpf_disabled=1
net.core.bpf_jit_harden=2
kernel.yama.ptrace_scope=2
kernel.kexec_load_disabled=1
kernel.sysrq=4
kernel.unprivileged_userns_clone=0
kernel.perf_event_paranoid=3
vm.mmap_rnd_bits=32
vm.mmap_rnd_compat_bits=16
fs.protected_symlinks=1
fs.protected_hardlinks=1
fs.protected_fifos=2
fs.protected_regular=2
fs.suid_dumpable=0
net.ipv4.tcp_syncookies=1
net.ipv4.tcp_rfc1337=1
net.ipv4.conf.all.rp_filter=1
net.ipv4.conf.default.rp_filter=1
net.ipv4.conf.all.accept_redirects=0
net.ipv4.conf.default.accept_redirects=0
net.ipv4.conf.all.secure_redirects=0
net.ipv4.conf.default.secure_redirects=0
net.ipv6.conf.all.accept_redirects=0
net.ipv6.conf.default.accept_redirects=0
net.ipv4.conf.all.send_redirects=0
net.ipv4.conf.default.send_redirects=0
net.ipv4.icmp_echo_ignore_all=1
net.ipv4.conf.all.accept_source_route=0
net.ipv4.conf.default.accept_source_route=0
net.ipv6.conf.all.accept_source_route=0
net.ipv6.conf.default.accept_source_route=0
net.ipv6.conf.all.accept_ra=0
net.ipv6.conf.default.accept_ra=0
`

const modprobeTxt = `# uncommon modules disabled at install time
{{- range . }}
install {{ . }} /bin/false
blacklist {{ . }}
{{- end }}
`

//Sysctl fragment content. Static; the toggle decides whether it's written
//at all.
func Sysctl() string { return renderTmpl(sysctlTmpl, nil) }

//Modprobe blacklist content for the given modules.
func Modprobe(modules []string) string { return renderTmpl(modprobeTmpl, modules) }

func renderTmpl(t *template.Template, data interface{}) string {
	out := new(bytes.Buffer)
	if err := t.Execute(out, data); err != nil {
		log.Logf("%s template: %s", t.Name(), err)
	}
	return out.String()
}

//Cmdline additions per config: hardening flags plus GRUB_CMDLINE_EXTRA.
func Cmdline(cfg *config.Config) string {
	var parts []string
	if cfg.SysctlHarden {
		parts = append(parts, CmdlineFlags...)
	}
	if cfg.GrubCmdExtra != "" {
		parts = append(parts, cfg.GrubCmdExtra)
	}
	return strings.Join(parts, " ")
}

//Writes the enabled hardening fragments into the target tree.
func Apply(root string, cfg *config.Config) error {
	if cfg.SysctlHarden {
		if err := writeFrag(root, sysctlRelPath, Sysctl()); err != nil {
			return err
		}
	} else {
		log.Logf("sysctl hardening disabled by config")
	}
	modules := cfg.ModBlacklist
	if len(modules) == 0 {
		modules = DefaultBlacklist
	}
	if len(modules) == 1 && modules[0] == "none" {
		log.Logf("module blacklist disabled by config")
		return nil
	}
	return writeFrag(root, modprobeRelPath, Modprobe(modules))
}

func writeFrag(root, rel, content string) error {
	path := fp.Join(root, rel)
	if err := os.MkdirAll(fp.Dir(path), 0755); err != nil {
		return err
	}
	return ioutil.WriteFile(path, []byte(content), 0644)
}
