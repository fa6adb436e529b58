// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

package uefi

import (
	"encoding/binary"
	"io/ioutil"
	"os"
	fp "path/filepath"
	"testing"
	"unicode/utf16"

	"github.com/hardenedos/debforge/pkg/log/testlog"
)

//populate a fake efivars dir; the real one is only present on uefi boots
func fakeVars(t *testing.T) func() {
	dir, err := ioutil.TempDir("", "efivars")
	if err != nil {
		t.Fatal(err)
	}
	old := efiVarDir
	efiVarDir = dir

	writeVar(t, "BootCurrent", []byte{0x02, 0x00})
	writeVar(t, "BootOrder", []byte{0x02, 0x00, 0x00, 0x00, 0x01, 0x00})
	writeVar(t, "Boot0000", bootEntry("ubuntu"))
	writeVar(t, "Boot0001", bootEntry("UEFI: Built-in EFI Shell"))
	writeVar(t, "Boot0002", bootEntry("debian"))

	return func() {
		efiVarDir = old
		os.RemoveAll(dir)
	}
}

func writeVar(t *testing.T, name string, data []byte) {
	d := fp.Join(efiVarDir, name+"-"+bootUuid)
	if err := os.MkdirAll(d, 0755); err != nil {
		t.Fatal(err)
	}
	if err := ioutil.WriteFile(fp.Join(d, "data"), data, 0644); err != nil {
		t.Fatal(err)
	}
}

//assemble an EFI_LOAD_OPTION with the given description and a dummy path list
func bootEntry(desc string) (data []byte) {
	path := []byte{0x7f, 0xff, 0x04, 0x00} //end-of-path node
	data = make([]byte, 6)
	binary.LittleEndian.PutUint32(data[:4], 1) //LOAD_OPTION_ACTIVE
	binary.LittleEndian.PutUint16(data[4:6], uint16(len(path)))
	for _, u := range utf16.Encode([]rune(desc)) {
		data = append(data, byte(u), byte(u>>8))
	}
	data = append(data, 0, 0)
	data = append(data, path...)
	return
}

//func ReadBootVar(num uint16) (b *BootEntryVar)
func TestReadBootVar(t *testing.T) {
	restore := fakeVars(t)
	defer restore()
	tlog := testlog.NewTestLog(t, true, false)
	defer tlog.Freeze()
	b := ReadBootVar(2)
	if b == nil {
		t.Fatal("nil")
	}
	if b.Description != "debian" {
		t.Errorf("want debian, got %q", b.Description)
	}
	if b.Number != 2 {
		t.Errorf("want 2, got %d", b.Number)
	}
	t.Log(b.String())
}

//func AllBootEntryVars() (list BootEntryVars)
func TestAllBootEntryVars(t *testing.T) {
	restore := fakeVars(t)
	defer restore()
	tlog := testlog.NewTestLog(t, true, false)
	defer tlog.Freeze()
	bevs := AllBootEntryVars()
	if len(bevs) != 3 {
		for i, e := range bevs {
			t.Logf("#%d: %s", i, e)
		}
		t.Errorf("expected 3 boot vars, got %d", len(bevs))
	}
	deb := bevs.WithDescription("Debian")
	if len(deb) != 1 || deb[0].Number != 2 {
		t.Errorf("WithDescription: %v", deb)
	}
}

//func ReadCurrentBootVar() (b *BootEntryVar)
func TestReadCurrentBootVar(t *testing.T) {
	restore := fakeVars(t)
	defer restore()
	tlog := testlog.NewTestLog(t, true, false)
	defer tlog.Freeze()
	v := ReadCurrentBootVar()
	if v == nil {
		t.Fatal("nil")
	}
	if v.Number != 2 {
		t.Errorf("expected 2, got %d", v.Number)
	}
}

//func ReadBootOrder() (order []uint16)
func TestReadBootOrder(t *testing.T) {
	restore := fakeVars(t)
	defer restore()
	tlog := testlog.NewTestLog(t, true, false)
	defer tlog.Freeze()
	order := ReadBootOrder()
	if len(order) != 3 || order[0] != 2 || order[1] != 0 || order[2] != 1 {
		t.Errorf("bad order: %v", order)
	}
}
