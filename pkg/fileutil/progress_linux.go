// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

package fileutil

import (
	"os"
	"time"

	"github.com/hardenedos/debforge/pkg/log"
)

// Called from a goroutine, periodically reports size of a file.
// Use with download or decompress operation; close(done) to stop.
func ShowProgress(done chan struct{}, activityDesc, path string) {
	noErr := true //only log stat error once
	for {
		select {
		case <-done:
			return
		case <-time.After(time.Second):
		}
		fi, err := os.Stat(path)
		if err != nil {
			if noErr {
				log.Logf("ShowProgress: Stat() reports %s", err)
				noErr = false
			}
			log.Msgf("%s...", activityDesc)
			continue
		}
		size := fi.Size()
		if size > 0 {
			log.Msgf("%s... %dM", activityDesc, size/(1024*1024))
		}
	}
}
