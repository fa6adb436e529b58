// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

//Abstraction for strings that implementors will likely wish to change.
package strs

import (
	"github.com/hardenedos/debforge/pkg/log"
)

//Abstraction for strings that implementors will likely wish to change.
type Stringer interface {
	//Dir within the installed system where config data is stored. Likely under /etc.
	ConfDir() string
	//Prefix used for env vars.
	EnvPrefix() string
	//Label of the EFI System Partition.
	EspVolName() string
	//Label of the /boot volume.
	BootVolName() string
	//Label of the root filesystem, inside the LUKS container.
	RootVolName() string
	//Device-mapper name for the opened LUKS container.
	LuksName() string
	//Prefix used in creating hostname. Note hostname charset restrictions.
	HostPrefix() string
	//Name of file whose presence triggers first-boot configuration.
	FlagFile() string
	//Kernel name in the installer ISO staging tree.
	IsoKernel() string
	//Initramfs name in the installer ISO staging tree.
	IsoInitrd() string
	//Volume label of the installer ISO.
	IsoLabel() string
	// Returns prefix for prebuilt component names. 2 sections, 1 dot + 1
	// trailing. Otherwise sort function will fail.
	ComponentPfx() string
	//prefix to require on MAC addresses
	MacOUI() string
	//like MacOUI, but as bytes
	MacOUIBytes() []byte
	//dir on the installed system to use for install logs
	InstallLogDir() string
}

var stringImpl Stringer

//Override defaults.
func SetStringer(b Stringer) {
	if stringImpl != nil {
		log.Log("strs: overriding non-nil impl")
	}
	stringImpl = b
}

//Dir within the installed system where config data is stored. Likely under /etc.
func ConfDir() string {
	if stringImpl != nil {
		return stringImpl.ConfDir()
	}
	return "/etc/debforge"
}

//Prefix used for env vars.
func EnvPrefix() string {
	if stringImpl != nil {
		return stringImpl.EnvPrefix()
	}
	return "DEBFORGE_"
}

//Label of the EFI System Partition.
func EspVolName() string {
	if stringImpl != nil {
		return stringImpl.EspVolName()
	}
	return "ESP"
}

//Label of the /boot volume.
func BootVolName() string {
	if stringImpl != nil {
		return stringImpl.BootVolName()
	}
	return "BOOT"
}

//Label of the root filesystem, inside the LUKS container.
func RootVolName() string {
	if stringImpl != nil {
		return stringImpl.RootVolName()
	}
	return "ROOT"
}

//Device-mapper name for the opened LUKS container.
func LuksName() string {
	if stringImpl != nil {
		return stringImpl.LuksName()
	}
	return "cryptroot"
}

//Prefix used in creating hostname. Note hostname charset restrictions.
func HostPrefix() string {
	if stringImpl != nil {
		return stringImpl.HostPrefix()
	}
	return "hardened-"
}

//Name of file whose presence triggers first-boot configuration.
func FlagFile() string {
	if stringImpl != nil {
		return stringImpl.FlagFile()
	}
	return "firstboot.pending"
}

//Kernel name in the installer ISO staging tree.
func IsoKernel() string {
	if stringImpl != nil {
		return stringImpl.IsoKernel()
	}
	return "vmlinuz"
}

//Initramfs name in the installer ISO staging tree.
func IsoInitrd() string {
	if stringImpl != nil {
		return stringImpl.IsoInitrd()
	}
	return "initrd.img"
}

//Volume label of the installer ISO. Note iso label charset restrictions.
func IsoLabel() string {
	if stringImpl != nil {
		return stringImpl.IsoLabel()
	}
	return "DEBFORGE"
}

// Returns prefix for prebuilt component names. 2 sections, 1 dot + 1
// trailing. Otherwise sort function will fail.
func ComponentPfx() string {
	if stringImpl != nil {
		return stringImpl.ComponentPfx()
	}
	return "HDOS.DEB."
}

//prefix to require on MAC addresses
func MacOUI() string {
	if stringImpl != nil {
		return stringImpl.MacOUI()
	}
	return "56:78:90"
}

//like MacOUI, but as bytes
func MacOUIBytes() []byte {
	if stringImpl != nil {
		return stringImpl.MacOUIBytes()
	}
	return []byte{0x56, 0x78, 0x90}
}

//dir on the installed system to use for install logs
func InstallLogDir() string {
	if stringImpl != nil {
		return stringImpl.InstallLogDir()
	}
	return "/var/log/debforge"
}

func InstallLogPfx() string { return "install" }
func IsoLogPfx() string     { return "isobuild" }
