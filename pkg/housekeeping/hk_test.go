// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

package housekeeping

import "testing"

//tasks run last-in first-out, like defer
func TestPerformOrder(t *testing.T) {
	var hl HkList
	var order []string
	add := func(name string) {
		hl.Add(&HkTask{Name: name, Func: func(_ bool) { order = append(order, name) }})
	}
	add("a")
	add("b")
	add("c")
	hl.Perform(true)
	want := []string{"c", "b", "a"}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("want %v, got %v", want, order)
		}
	}
	if len(hl.tasks) != 0 {
		t.Errorf("tasks remain after Perform")
	}
}

//func (hl *HkList) FilterOut(filter HkFilter) HkList
func TestFilterOut(t *testing.T) {
	var hl HkList
	hl.Add(&HkTask{Name: "keep"})
	hl.Add(&HkTask{Name: "drop"})
	hl = hl.FilterOut(func(tsk *HkTask) bool { return tsk.Name == "drop" })
	if len(hl.tasks) != 1 || hl.tasks[0].Name != "keep" {
		t.Errorf("filter result: %#v", hl.tasks)
	}
}

//exit defaults must not accumulate when added repeatedly
func TestExitDefaults(t *testing.T) {
	Exits.Clear()
	AddExitDefaults(nil)
	AddExitDefaults(nil)
	if len(Exits.tasks) != 3 {
		t.Errorf("got %d tasks", len(Exits.tasks))
	}
	Exits.Clear()
}
