// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

//go:build linux

package auditlink

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"grimm.is/auditlink/internal/errors"
)

// Array offsets inside the fixed part of the wire layout.
const (
	offFieldCount = 8
	offMask       = 12
	offFields     = offMask + 4*bitmaskWords
	offValues     = offFields + 4*maxFields
	offFieldFlags = offValues + 4*maxFields
	offBufLen     = offFieldFlags + 4*maxFields
)

func word(t *testing.T, data []byte, off int) uint32 {
	t.Helper()
	return binary.LittleEndian.Uint32(data[off : off+4])
}

func passwdWatchRule() *Rule {
	r := NewRule(FilterExit, ActionAlways)
	r.Syscalls.SelectAll()
	r.WatchPath("/etc/passwd")
	r.Permissions(PermWrite | PermAttr)
	r.Key("identity")
	return r
}

func TestMarshalWatchRule(t *testing.T) {
	data, err := passwdWatchRule().MarshalBinary()
	require.NoError(t, err)
	require.Len(t, data, ruleFixedLen+len("/etc/passwd")+len("identity"))

	require.Equal(t, uint32(FilterExit), word(t, data, 0))
	require.Equal(t, uint32(ActionAlways), word(t, data, 4))
	require.Equal(t, uint32(3), word(t, data, offFieldCount))

	for i := 0; i < bitmaskWords; i++ {
		require.Equal(t, uint32(0xffffffff), word(t, data, offMask+4*i), "mask word %d", i)
	}

	require.Equal(t, uint32(FieldWatch), word(t, data, offFields))
	require.Equal(t, uint32(FieldPerm), word(t, data, offFields+4))
	require.Equal(t, uint32(FieldFilterKey), word(t, data, offFields+8))

	// String slots carry lengths, the perm slot carries the bit set.
	require.Equal(t, uint32(len("/etc/passwd")), word(t, data, offValues))
	require.Equal(t, PermWrite|PermAttr, word(t, data, offValues+4))
	require.Equal(t, uint32(len("identity")), word(t, data, offValues+8))

	for i := 0; i < 3; i++ {
		require.Equal(t, uint32(OpEqual), word(t, data, offFieldFlags+4*i))
	}

	require.Equal(t, uint32(len("/etc/passwd")+len("identity")), word(t, data, offBufLen))
	require.Equal(t, "/etc/passwdidentity", string(data[ruleFixedLen:]))
}

func TestMarshalSyscallRule(t *testing.T) {
	r := NewRule(FilterExit, ActionAlways)
	r.Architecture(unix.AUDIT_ARCH_X86_64)
	r.Syscalls.Set(135)

	data, err := r.MarshalBinary()
	require.NoError(t, err)
	require.Len(t, data, ruleFixedLen) // no strings, no trailing buffer

	require.Equal(t, uint32(1), word(t, data, offFieldCount))
	require.Equal(t, uint32(FieldArch), word(t, data, offFields))
	require.Equal(t, uint32(unix.AUDIT_ARCH_X86_64), word(t, data, offValues))
	require.Equal(t, uint32(0), word(t, data, offBufLen))

	// Exactly one mask bit, in the word covering syscall 135.
	for i := 0; i < bitmaskWords; i++ {
		want := uint32(0)
		if i == 135>>5 {
			want = 1 << (135 & 31)
		}
		require.Equal(t, want, word(t, data, offMask+4*i), "mask word %d", i)
	}
}

func TestMarshalDeterministic(t *testing.T) {
	r := passwdWatchRule()
	a, err := r.MarshalBinary()
	require.NoError(t, err)
	b, err := r.MarshalBinary()
	require.NoError(t, err)
	require.True(t, bytes.Equal(a, b), "same rule must encode identically")
}

func TestRuleRoundTrip(t *testing.T) {
	cases := map[string]*Rule{
		"watch": passwdWatchRule(),
		"syscall": func() *Rule {
			r := NewRule(FilterExit, ActionAlways)
			r.Architecture(unix.AUDIT_ARCH_X86_64)
			r.AddField(FieldLoginUID, OpGreaterThanOrEqual, Num(1000))
			r.Syscalls.Set(59)
			r.Syscalls.Set(322)
			return r
		}(),
		"exclude": func() *Rule {
			r := NewRule(FilterExclude, ActionAlways)
			r.AddField(FieldMsgType, OpEqual, Num(1100))
			return r
		}(),
		"bare": NewRule(FilterTask, ActionNever),
	}
	for name, rule := range cases {
		t.Run(name, func(t *testing.T) {
			data, err := rule.MarshalBinary()
			require.NoError(t, err)

			var got Rule
			require.NoError(t, got.UnmarshalBinary(data))
			require.Equal(t, *rule, got)

			// A decoded rule re-encodes to the same bytes, so it can be
			// handed back for an exact-match delete.
			again, err := got.MarshalBinary()
			require.NoError(t, err)
			require.Equal(t, data, again)
		})
	}
}

func TestUnmarshalPreservesUnknownFields(t *testing.T) {
	r := NewRule(FilterExit, ActionAlways)
	r.AddField(FieldID(999), OpEqual, Num(42))
	data, err := r.MarshalBinary()
	require.NoError(t, err)

	var got Rule
	require.NoError(t, got.UnmarshalBinary(data))
	require.Equal(t, FieldID(999), got.Fields[0].ID)
	require.Equal(t, Num(42), got.Fields[0].Value)
}

func TestUnmarshalMalformed(t *testing.T) {
	valid, err := passwdWatchRule().MarshalBinary()
	require.NoError(t, err)

	tamper := func(mutate func([]byte)) []byte {
		data := append([]byte(nil), valid...)
		mutate(data)
		return data
	}

	cases := map[string][]byte{
		"truncated": valid[:ruleFixedLen-1],
		"field count over maximum": tamper(func(d []byte) {
			binary.LittleEndian.PutUint32(d[offFieldCount:], maxFields+1)
		}),
		"buffer length mismatch": tamper(func(d []byte) {
			binary.LittleEndian.PutUint32(d[offBufLen:], uint32(len("/etc/passwdidentity")+3))
		}),
		"string overruns buffer": tamper(func(d []byte) {
			binary.LittleEndian.PutUint32(d[offValues:], 200)
		}),
		"unconsumed buffer bytes": tamper(func(d []byte) {
			binary.LittleEndian.PutUint32(d[offValues:], uint32(len("/etc/passwd")-4))
			binary.LittleEndian.PutUint32(d[offValues+8:], uint32(len("identity"))) // key unchanged, 4 bytes dangle
		}),
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			var got Rule
			err := got.UnmarshalBinary(data)
			require.Error(t, err)
			require.Equal(t, errors.KindMalformed, errors.GetKind(err))
		})
	}
}

func TestMarshalValidation(t *testing.T) {
	cases := map[string]*Rule{
		"too many fields": func() *Rule {
			r := NewRule(FilterExit, ActionAlways)
			for i := 0; i <= maxFields; i++ {
				r.AddField(FieldPID, OpEqual, Num(1))
			}
			return r
		}(),
		"string with NUL": func() *Rule {
			r := NewRule(FilterExit, ActionAlways)
			r.Key("bad\x00key")
			return r
		}(),
		"string on numeric field": func() *Rule {
			r := NewRule(FilterExit, ActionAlways)
			r.AddField(FieldPID, OpEqual, Str("1"))
			return r
		}(),
		"number on string field": func() *Rule {
			r := NewRule(FilterExit, ActionAlways)
			r.AddField(FieldFilterKey, OpEqual, Num(7))
			return r
		}(),
		"arch token on other field": func() *Rule {
			r := NewRule(FilterExit, ActionAlways)
			r.AddField(FieldPID, OpEqual, Arch(unix.AUDIT_ARCH_X86_64))
			return r
		}(),
		"missing value": func() *Rule {
			r := NewRule(FilterExit, ActionAlways)
			r.Fields = append(r.Fields, RuleField{ID: FieldPID, Op: OpEqual})
			return r
		}(),
	}
	for name, rule := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := rule.MarshalBinary()
			require.Error(t, err)
			require.Equal(t, errors.KindValidation, errors.GetKind(err))
		})
	}
}
