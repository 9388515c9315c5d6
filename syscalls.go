// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package auditlink

// SyscallMask selects which syscall numbers a rule applies to. It is a
// fixed bit-vector over the kernel's syscall-number space: word i covers
// numbers [32i, 32i+32), bit nr&31 within the word (the kernel's
// AUDIT_WORD/AUDIT_BIT convention). Words serialize little-endian, so
// identical selections always encode byte-identical, which the kernel
// relies on to match delete requests by content.
//
// The zero value selects no syscalls, which is valid: watch and filter
// rules carry an empty mask.
type SyscallMask [bitmaskWords]uint32

// SelectNone clears every bit.
func (m *SyscallMask) SelectNone() {
	*m = SyscallMask{}
}

// SelectAll sets every bit.
func (m *SyscallMask) SelectAll() {
	for i := range m {
		m[i] = 0xffffffff
	}
}

// Set marks syscall nr as selected. Out-of-range numbers are a no-op,
// mirroring the kernel's truncation of the mask.
func (m *SyscallMask) Set(nr int) {
	if nr < 0 || nr >= MaxSyscalls {
		return
	}
	m[nr>>5] |= 1 << (uint(nr) & 31)
}

// Test reports whether syscall nr is selected. Out-of-range numbers
// report false.
func (m *SyscallMask) Test(nr int) bool {
	if nr < 0 || nr >= MaxSyscalls {
		return false
	}
	return m[nr>>5]&(1<<(uint(nr)&31)) != 0
}

// Union merges the bits of other into m.
func (m *SyscallMask) Union(other SyscallMask) {
	for i := range m {
		m[i] |= other[i]
	}
}

// Empty reports whether no syscall is selected.
func (m *SyscallMask) Empty() bool {
	for _, w := range m {
		if w != 0 {
			return false
		}
	}
	return true
}

// All reports whether every syscall is selected. This is a distinct
// state from any partial selection: it is how "no syscall restriction"
// syscall rules are written.
func (m *SyscallMask) All() bool {
	for _, w := range m {
		if w != 0xffffffff {
			return false
		}
	}
	return true
}
