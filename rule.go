// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package auditlink

import (
	"strings"

	"grimm.is/auditlink/internal/errors"
)

// Rule describes one kernel audit rule: a filter list, an action, an
// ordered set of field conditions, and a syscall selection. Field order
// is significant; the kernel evaluates and echoes fields in insertion
// order, and content equality over the encoded form is what matches a
// delete request against an installed rule. Treat a Rule as immutable
// once it has been submitted.
type Rule struct {
	Filter   Filter
	Action   Action
	Fields   []RuleField
	Syscalls SyscallMask
}

// RuleField is one (selector, operator, value) condition.
type RuleField struct {
	ID    FieldID
	Op    Operator
	Value FieldValue
}

// FieldValue is the closed value union for a rule field: a 32-bit
// number, an architecture token, or a bounded NUL-free string. Unknown
// field IDs decoded off the wire carry their raw value as Num.
type FieldValue interface {
	fieldValue()
}

// Num is a numeric field value.
type Num uint32

// Arch is an ELF machine token (AUDIT_ARCH_*, e.g. unix.AUDIT_ARCH_X86_64).
type Arch uint32

// Str is a string field value, carried in the rule's trailing buffer.
type Str string

func (Num) fieldValue()  {}
func (Arch) fieldValue() {}
func (Str) fieldValue()  {}

// NewRule starts an empty rule on the given filter list.
func NewRule(filter Filter, action Action) *Rule {
	return &Rule{Filter: filter, Action: action}
}

// AddField appends a condition. Conditions are evaluated in the order
// they were added.
func (r *Rule) AddField(id FieldID, op Operator, v FieldValue) {
	r.Fields = append(r.Fields, RuleField{ID: id, Op: op, Value: v})
}

// WatchPath adds a filesystem watch condition on path.
func (r *Rule) WatchPath(path string) {
	r.AddField(FieldWatch, OpEqual, Str(path))
}

// Permissions adds an access-type condition; perm is an OR of PermExec,
// PermWrite, PermRead and PermAttr.
func (r *Rule) Permissions(perm uint32) {
	r.AddField(FieldPerm, OpEqual, Num(perm))
}

// Key tags the rule with a filter key, the handle auditd reports when
// the rule fires.
func (r *Rule) Key(key string) {
	r.AddField(FieldFilterKey, OpEqual, Str(key))
}

// Architecture restricts the rule to one syscall ABI. Place it before
// any syscall-dependent condition, as auditctl does.
func (r *Rule) Architecture(token uint32) {
	r.AddField(FieldArch, OpEqual, Arch(token))
}

// validate checks the encodability limits: field count, string sizing
// and NUL-freedom. Exceeding a kernel array is a checked error here,
// never a silent truncation on the wire.
func (r *Rule) validate() error {
	if len(r.Fields) > maxFields {
		return errors.Errorf(errors.KindValidation, "rule has %d fields, kernel maximum is %d", len(r.Fields), maxFields)
	}
	total := 0
	for _, f := range r.Fields {
		if f.Value == nil {
			return errors.Errorf(errors.KindValidation, "field %d has no value", f.ID)
		}
		if _, isArch := f.Value.(Arch); isArch != (f.ID == FieldArch) {
			return errors.Errorf(errors.KindValidation, "architecture tokens belong to the arch field, got field %d", f.ID)
		}
		s, ok := f.Value.(Str)
		if ok != f.ID.IsString() {
			if ok {
				return errors.Errorf(errors.KindValidation, "field %d does not take a string value", f.ID)
			}
			return errors.Errorf(errors.KindValidation, "field %d requires a string value", f.ID)
		}
		if !ok {
			continue
		}
		if strings.ContainsRune(string(s), 0) {
			return errors.Errorf(errors.KindValidation, "field %d value contains NUL", f.ID)
		}
		total += len(s)
	}
	if total > maxStringBytes {
		return errors.Errorf(errors.KindValidation, "rule string values total %d bytes, maximum is %d", total, maxStringBytes)
	}
	return nil
}
