// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

//go:build linux

package ruleset

import (
	"golang.org/x/sys/unix"

	"grimm.is/auditlink"
	"grimm.is/auditlink/internal/errors"
)

// Name tables follow auditctl's vocabulary so rule files read like the
// audit.rules lines administrators already know.

var filterNames = map[string]auditlink.Filter{
	"user":    auditlink.FilterUser,
	"task":    auditlink.FilterTask,
	"entry":   auditlink.FilterEntry,
	"watch":   auditlink.FilterWatch,
	"exit":    auditlink.FilterExit,
	"exclude": auditlink.FilterExclude,
}

var actionNames = map[string]auditlink.Action{
	"never":    auditlink.ActionNever,
	"possible": auditlink.ActionPossible,
	"always":   auditlink.ActionAlways,
}

var fieldNames = map[string]auditlink.FieldID{
	"pid":           auditlink.FieldPID,
	"uid":           auditlink.FieldUID,
	"euid":          auditlink.FieldEUID,
	"suid":          auditlink.FieldSUID,
	"fsuid":         auditlink.FieldFSUID,
	"gid":           auditlink.FieldGID,
	"egid":          auditlink.FieldEGID,
	"sgid":          auditlink.FieldSGID,
	"fsgid":         auditlink.FieldFSGID,
	"auid":          auditlink.FieldLoginUID,
	"loginuid":      auditlink.FieldLoginUID,
	"pers":          auditlink.FieldPers,
	"arch":          auditlink.FieldArch,
	"msgtype":       auditlink.FieldMsgType,
	"subj_user":     auditlink.FieldSubjUser,
	"subj_role":     auditlink.FieldSubjRole,
	"subj_type":     auditlink.FieldSubjType,
	"subj_sen":      auditlink.FieldSubjSen,
	"subj_clr":      auditlink.FieldSubjClr,
	"ppid":          auditlink.FieldPPID,
	"obj_user":      auditlink.FieldObjUser,
	"obj_role":      auditlink.FieldObjRole,
	"obj_type":      auditlink.FieldObjType,
	"obj_lev_low":   auditlink.FieldObjLevLow,
	"obj_lev_high":  auditlink.FieldObjLevHigh,
	"auid_set":      auditlink.FieldLoginUIDSet,
	"sessionid":     auditlink.FieldSessionID,
	"devmajor":      auditlink.FieldDevMajor,
	"devminor":      auditlink.FieldDevMinor,
	"inode":         auditlink.FieldInode,
	"exit":          auditlink.FieldExit,
	"success":       auditlink.FieldSuccess,
	"path":          auditlink.FieldWatch,
	"perm":          auditlink.FieldPerm,
	"dir":           auditlink.FieldDir,
	"filetype":      auditlink.FieldFiletype,
	"obj_uid":       auditlink.FieldObjUID,
	"obj_gid":       auditlink.FieldObjGID,
	"field_compare": auditlink.FieldCompare,
	"exe":           auditlink.FieldExe,
	"a0":            auditlink.FieldArg0,
	"a1":            auditlink.FieldArg1,
	"a2":            auditlink.FieldArg2,
	"a3":            auditlink.FieldArg3,
	"key":           auditlink.FieldFilterKey,
}

var operatorSymbols = map[string]auditlink.Operator{
	"=":  auditlink.OpEqual,
	"!=": auditlink.OpNotEqual,
	"<":  auditlink.OpLessThan,
	"<=": auditlink.OpLessThanOrEqual,
	">":  auditlink.OpGreaterThan,
	">=": auditlink.OpGreaterThanOrEqual,
	"&":  auditlink.OpBitMask,
	"&=": auditlink.OpBitTest,
}

var archNames = map[string]uint32{
	"x86_64":  unix.AUDIT_ARCH_X86_64,
	"i386":    unix.AUDIT_ARCH_I386,
	"aarch64": unix.AUDIT_ARCH_AARCH64,
	"arm":     unix.AUDIT_ARCH_ARM,
	"ppc64":   unix.AUDIT_ARCH_PPC64,
	"ppc64le": unix.AUDIT_ARCH_PPC64LE,
	"s390x":   unix.AUDIT_ARCH_S390X,
	"riscv64": unix.AUDIT_ARCH_RISCV64,
}

var failureNames = map[string]uint32{
	"silent": auditlink.FailureSilent,
	"printk": auditlink.FailurePrintk,
	"panic":  auditlink.FailurePanic,
}

// FieldByName resolves an auditctl field name.
func FieldByName(name string) (auditlink.FieldID, error) {
	id, ok := fieldNames[name]
	if !ok {
		return 0, errors.Errorf(errors.KindValidation, "unknown field name %q", name)
	}
	return id, nil
}

// OperatorBySymbol resolves a comparison symbol.
func OperatorBySymbol(sym string) (auditlink.Operator, error) {
	op, ok := operatorSymbols[sym]
	if !ok {
		return 0, errors.Errorf(errors.KindValidation, "unknown operator %q", sym)
	}
	return op, nil
}

// ArchByName resolves an architecture name to its ELF machine token.
func ArchByName(name string) (uint32, error) {
	token, ok := archNames[name]
	if !ok {
		return 0, errors.Errorf(errors.KindValidation, "unknown architecture %q", name)
	}
	return token, nil
}

// parsePerms turns an auditctl access string like "wa" into the
// permission bit set.
func parsePerms(letters string) (uint32, error) {
	var perm uint32
	for _, c := range letters {
		switch c {
		case 'r':
			perm |= auditlink.PermRead
		case 'w':
			perm |= auditlink.PermWrite
		case 'x':
			perm |= auditlink.PermExec
		case 'a':
			perm |= auditlink.PermAttr
		default:
			return 0, errors.Errorf(errors.KindValidation, "unknown permission %q in %q", c, letters)
		}
	}
	if perm == 0 {
		return 0, errors.Errorf(errors.KindValidation, "empty permission set")
	}
	return perm, nil
}
