// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package auditlink

import (
	"testing"
)

func TestSyscallMaskSetAndTest(t *testing.T) {
	var m SyscallMask
	if !m.Empty() {
		t.Fatal("zero mask should be empty")
	}

	m.Set(135) // personality(2) on x86_64
	if !m.Test(135) {
		t.Error("bit 135 should be set")
	}
	if m.Test(134) || m.Test(136) {
		t.Error("neighboring bits should be clear")
	}
	if m[135>>5] != 1<<(135&31) {
		t.Errorf("bit landed in the wrong word: word %d = %#x", 135>>5, m[135>>5])
	}
	if m.Empty() {
		t.Error("mask with a bit set should not be empty")
	}
}

func TestSyscallMaskOutOfRange(t *testing.T) {
	var m SyscallMask
	m.Set(-1)
	m.Set(MaxSyscalls)
	m.Set(1 << 20)
	if !m.Empty() {
		t.Error("out-of-range syscall numbers must not touch the mask")
	}
	if m.Test(-1) || m.Test(MaxSyscalls) {
		t.Error("out-of-range syscall numbers must test clear")
	}
}

func TestSyscallMaskSelectAll(t *testing.T) {
	var m SyscallMask
	m.SelectAll()
	if !m.All() {
		t.Fatal("SelectAll should set every bit")
	}
	for nr := 0; nr < MaxSyscalls; nr += 97 {
		if !m.Test(nr) {
			t.Errorf("bit %d should be set", nr)
		}
	}
	m.SelectNone()
	if !m.Empty() {
		t.Error("SelectNone should clear every bit")
	}
}

func TestSyscallMaskUnion(t *testing.T) {
	var a, b SyscallMask
	a.Set(2)
	b.Set(59)
	b.Set(322)
	a.Union(b)
	for _, nr := range []int{2, 59, 322} {
		if !a.Test(nr) {
			t.Errorf("bit %d should be set after union", nr)
		}
	}
	if b.Test(2) {
		t.Error("union must not modify the operand")
	}
}
