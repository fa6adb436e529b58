// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

package common

type SerNumer interface {
	SerNum() string
}

// Profiler describes the identified hardware profile, from the point of view
// of packages that must not import the platform package.
type Profiler interface {
	SerNumer
	Name() string
	EFIBoot() bool
	SerialConsole() string
	KernelPackage() string
	MACPrefixes() [][]byte
	IsGeneric() bool
}
