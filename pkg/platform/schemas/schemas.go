// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

//Package schemas embeds the json schemas describing profile and
//platform_facts documents.
package schemas

import _ "embed"

//go:embed profile.json
var Profile []byte

//go:embed platform_facts.json
var PlatFacts []byte
