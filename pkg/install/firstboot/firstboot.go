// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

//Package firstboot performs the identity configuration of the installed
//system: hostname, hosts, machine-id, root account lock, default network
//config, and the flag file consumed on first boot. func names take after
//systemd-firstboot, which is not used because it is completely broken.
package firstboot

import (
	"fmt"
	"io/ioutil"
	"os"
	"os/exec"
	fp "path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/hardenedos/debforge/pkg/common/strs"
	futil "github.com/hardenedos/debforge/pkg/fileutil"
	"github.com/hardenedos/debforge/pkg/log"
	"github.com/hardenedos/debforge/pkg/systemd/networkd"
)

// Hostify converts a string, typically the device serial number, into a string
// that is safe for use as a hostname. It adds strs.HostPrefix() and replaces
// some characters, such that the hostname matches the following regex:
// [a-z0-9][a-z0-9-]*[a-z0-9]
func Hostify(id string) string {
	hostify0 := func(r rune) rune {
		switch {
		case r >= 'A' && r <= 'Z':
			return 'a' - 'A' + r
		case r >= 'a' && r <= 'z':
			return r
		case r >= '0' && r <= '9':
			return r
		}
		return '-'
	}

	hn := strs.HostPrefix() + strings.Map(hostify0, id)
	if len(hn) == 0 {
		hn = "badhost"
	}
	if hn[len(hn)-1] == '-' {
		hn = hn[:len(hn)-1] + "0"
	}
	return hn
}

//Set hostname, machine-id, network defaults, and the first-boot flag file.
func Configure(root, serial, hostName string) {
	futil.MkdirOwned(root, fp.Join("var", "log", "journal"), "root", "systemd-journal", 2755)

	//time zone is set to UTC
	hostInfo(root, hostName)
	machineId(root)
	lockRoot(root)

	err := networkd.Write(fp.Join(root, "etc", "systemd", "network"), networkd.DefaultWired())
	if err != nil {
		log.Logf("writing network defaults: %s", err)
	}

	//write the system serial in config dir, plus the flag file the
	//first-boot unit removes once it has run
	cfgDir := fp.Join(root, strs.ConfDir())
	err = os.MkdirAll(cfgDir, 0755)
	if err != nil {
		log.Logf("Error creating config dir: %s", err)
	}
	err = ioutil.WriteFile(fp.Join(cfgDir, "serial"), []byte(serial), 0644)
	if err != nil {
		log.Logf("Error writing system serial: %s", err)
	}
	err = ioutil.WriteFile(fp.Join(cfgDir, strs.FlagFile()), []byte(hostName+"\n"), 0644)
	if err != nil {
		log.Logf("Error writing flag file: %s", err)
	}
}

//update /etc/hosts, host name, time zone
func hostInfo(root, hostName string) {
	log.Msg("Hostname is " + hostName)
	host, err := os.Create(root + "/etc/hostname")
	if err == nil {
		defer host.Close()
		if _, err := host.Write([]byte(hostName + "\n")); err != nil {
			log.Logf("writing etc/hostname: %s", err)
		}
	} else {
		log.Logf("cannot write /etc/hostname: %s\n", err)
	}

	//update etc/hosts
	localhost := "127.0.0.1   " + hostName + " localhost"
	blocalhost := []byte("\n" + localhost + "\n")
	re := regexp.MustCompile("127.0.0.1.*localhost")
	hosts, err := ioutil.ReadFile(root + "/etc/hosts")
	if err == nil {
		if re.Match(hosts) {
			hosts = re.ReplaceAllLiteral(hosts, []byte(localhost))
		} else {
			hosts = append(hosts, blocalhost...)
		}
	} else {
		if !os.IsNotExist(err) { //don't complain if it simply doesn't exist
			log.Logf("error %s reading etc/hosts", err)
		}
		hosts = blocalhost
	}
	err = ioutil.WriteFile(root+"/etc/hosts", hosts, 0644)
	if err != nil {
		log.Logf("error %s writing etc/hosts", err)
	}

	localtime := fp.Join(root, "/etc/localtime")
	err = os.Remove(localtime)
	if err != nil && !os.IsNotExist(err) {
		log.Logf("error %s removing old tz link", err)
	}
	err = os.Symlink("/usr/share/zoneinfo/Etc/UTC", localtime)
	if err != nil {
		log.Logf("error %s creating tz link", err)
	}
}

//Fresh random machine id. Using the serial would make the id predictable,
//and systemd only requires 32 lowercase hex chars.
func machineId(root string) {
	u := uuid.New()
	mid := strings.Replace(u.String(), "-", "", -1)
	err := ioutil.WriteFile(root+"/etc/machine-id", []byte(mid+"\n"), 0444)
	if err != nil {
		log.Logf("cannot write /etc/machine-id: %s", err)
	}
}

//Lock the root account; console login goes through the admin user added by
//config hooks, or ssh keys.
func lockRoot(root string) {
	_, success := log.Cmd(exec.Command("chroot", root, "passwd", "-l", "root"))
	if !success {
		log.Logf("locking root account failed")
	}
}

//A unique id for this install run, recorded in the install log dir.
func InstallId() string {
	return uuid.New().String()
}

//Record the install id on the target for later correlation with build-host
//logs.
func WriteInstallId(root string) (id string, err error) {
	id = InstallId()
	cfgDir := fp.Join(root, strs.ConfDir())
	if err = os.MkdirAll(cfgDir, 0755); err != nil {
		return
	}
	err = ioutil.WriteFile(fp.Join(cfgDir, "install-id"), []byte(id+"\n"), 0644)
	return
}

func fmtMac(mac []byte) string {
	parts := make([]string, len(mac))
	for i, b := range mac {
		parts[i] = fmt.Sprintf("%02x", b)
	}
	return strings.Join(parts, ":")
}
