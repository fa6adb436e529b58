// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

package prebuilt

/* Sort component names by build stamp, newest first.
 * Names must be in a particular format
 *
 * sort value: yyyymmdd.hhmm (float)
 * pfx1 . pfx2 . name . yyyymmdd_hhmm . txz
 */

import (
	"sort"
	"strconv"
	"strings"
)

type component struct {
	name  string
	stamp float64 //yyyymmdd.hhmm
}
type components []component

func (s components) Less(i, j int) bool { return s[i].stamp < s[j].stamp }
func (s components) Len() int           { return len(s) }
func (s components) Swap(i, j int)      { s[i], s[j] = s[j], s[i] }

/* decode component name for sorting
 * sort value: yyyymmdd.hhmm (float) -- prefers date for sort, but in the event of a collision a later build time wins
 * pfx1.pfx2.name.yyyymmdd_hhmm.txz
 *   0    1    2       3         4
 */
func decode(name string) (c component) {
	c.name = name
	c.stamp = 0.0
	parts := strings.Split(name, ".")
	if (len(parts) != 5) || (len(parts[3]) != 13) {
		return
	}
	stampIn := strings.Split(parts[3], "_")
	if len(stampIn) != 2 {
		return
	}
	for _, s := range stampIn {
		if !allDigits(s) {
			return
		}
	}
	if len(stampIn[0]) != 8 || len(stampIn[1]) != 4 {
		return
	}

	var err error
	//                                20250812 .1415
	c.stamp, err = strconv.ParseFloat(stampIn[0]+"."+stampIn[1], 64)
	if err != nil {
		c.stamp = 0.0
	}
	return
}

func allDigits(s string) bool {
	for _, c := range s {
		if !strings.ContainsRune("0123456789", c) {
			return false
		}
	}
	return true
}

func sortComponents(names []string, oldestFirst bool) (sorted []string) {
	var s components
	for _, name := range names {
		s = append(s, decode(name))
	}
	if oldestFirst {
		sort.Sort(s)
	} else {
		// "normal" sort is actually reversed because we want the most recent (greatest) stamp first
		sort.Sort(sort.Reverse(s))
	}
	for _, c := range s {
		sorted = append(sorted, c.name)
	}
	return
}
