// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

// Debforge assembles customized, hardened Debian systems. Subpackages contain
// code for use on the build host (installer ISO assembly, prebuilt component
// archives) and on the target being installed (partitioning, LUKS2 full-disk
// encryption, debootstrap, kernel + GRUB install, first-boot configuration).
//
// Three binaries are produced:
//
//    - debforge-install: runs on the target machine. Selects and partitions
//      the target disk, sets up LUKS2, bootstraps a Debian root filesystem,
//      installs kernel and bootloader, applies hardening templates, and
//      configures first boot.
//
//    - debforge-iso: runs on the build host. Stages kernel, installer
//      initramfs, and root filesystem payload, then packages a hybrid
//      BIOS/UEFI bootable installer ISO.
//
//    - debforge-prebuild: runs on the build host. Packages optional
//      components (prebuilt kernels, accelerated crypto/media libraries,
//      driver hardening configs) into versioned xz archives that
//      debforge-install can apply without rebuilding on the target.
//
// Behavior is driven by a flat key=value config file (hardened-os.conf) plus
// embedded hardware profiles; see pkg/config and pkg/platform.
package debforge
