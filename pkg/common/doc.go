// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

// Common (and subpackages) contains interfaces that make it easier to avoid
// import cycles, swap out functionality for testing, etc.
//
// In these packages, imports must be strictly limited.
package common
