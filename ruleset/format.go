// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

//go:build linux

package ruleset

import (
	"fmt"
	"strings"

	"grimm.is/auditlink"
)

var fieldNameByID map[auditlink.FieldID]string

var archTokenNames map[uint32]string

func init() {
	// "loginuid" and "auid" alias the same selector; print the short one.
	fieldNameByID = make(map[auditlink.FieldID]string, len(fieldNames))
	for name, id := range fieldNames {
		if name == "loginuid" {
			continue
		}
		fieldNameByID[id] = name
	}
	archTokenNames = make(map[uint32]string, len(archNames))
	for name, token := range archNames {
		archTokenNames[token] = name
	}
}

// Format renders a rule in auditctl's notation, e.g.
//
//	-a always,exit -F arch=x86_64 -S 159,164 -F auid>=1000 -F key=time-change
//
// Unknown selectors and architectures fall back to their numeric form,
// so a rule from a newer kernel still prints.
func Format(r *auditlink.Rule) string {
	var b strings.Builder
	fmt.Fprintf(&b, "-a %s,%s", r.Action, r.Filter)

	if r.Syscalls.All() {
		b.WriteString(" -S all")
	} else if !r.Syscalls.Empty() {
		b.WriteString(" -S ")
		sep := ""
		for nr := 0; nr < auditlink.MaxSyscalls; nr++ {
			if r.Syscalls.Test(nr) {
				fmt.Fprintf(&b, "%s%d", sep, nr)
				sep = ","
			}
		}
	}

	for _, f := range r.Fields {
		name, ok := fieldNameByID[f.ID]
		if !ok {
			name = fmt.Sprintf("f%d", uint32(f.ID))
		}
		fmt.Fprintf(&b, " -F %s%s%s", name, f.Op, formatValue(f.Value))
	}
	return b.String()
}

func formatValue(v auditlink.FieldValue) string {
	switch v := v.(type) {
	case auditlink.Str:
		return string(v)
	case auditlink.Arch:
		if name, ok := archTokenNames[uint32(v)]; ok {
			return name
		}
		return fmt.Sprintf("%#x", uint32(v))
	case auditlink.Num:
		return fmt.Sprintf("%d", uint32(v))
	default:
		return "?"
	}
}
