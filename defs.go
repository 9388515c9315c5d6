// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package auditlink

// Kernel ABI values from include/uapi/linux/audit.h. These are fixed
// external data: the numeric IDs are what travels on the wire, and the
// kernel matches delete requests against them byte for byte.

// Filter selects the kernel filter list a rule is attached to.
type Filter uint32

const (
	FilterUser    Filter = 0x00 // user-generated messages
	FilterTask    Filter = 0x01 // task creation, not syscall
	FilterEntry   Filter = 0x02 // syscall entry (obsolete in modern kernels)
	FilterWatch   Filter = 0x03 // filesystem watches
	FilterExit    Filter = 0x04 // syscall exit
	FilterExclude Filter = 0x05 // record-type exclusion at audit_log_start
)

func (f Filter) String() string {
	switch f {
	case FilterUser:
		return "user"
	case FilterTask:
		return "task"
	case FilterEntry:
		return "entry"
	case FilterWatch:
		return "watch"
	case FilterExit:
		return "exit"
	case FilterExclude:
		return "exclude"
	default:
		return "unknown"
	}
}

// Action decides whether a matching event produces an audit record.
type Action uint32

const (
	ActionNever    Action = 0
	ActionPossible Action = 1 // legacy, unused by modern kernels
	ActionAlways   Action = 2
)

func (a Action) String() string {
	switch a {
	case ActionNever:
		return "never"
	case ActionPossible:
		return "possible"
	case ActionAlways:
		return "always"
	default:
		return "unknown"
	}
}

// FieldID identifies a rule field selector.
type FieldID uint32

const (
	FieldPID         FieldID = 0
	FieldUID         FieldID = 1
	FieldEUID        FieldID = 2
	FieldSUID        FieldID = 3
	FieldFSUID       FieldID = 4
	FieldGID         FieldID = 5
	FieldEGID        FieldID = 6
	FieldSGID        FieldID = 7
	FieldFSGID       FieldID = 8
	FieldLoginUID    FieldID = 9
	FieldPers        FieldID = 10
	FieldArch        FieldID = 11
	FieldMsgType     FieldID = 12
	FieldSubjUser    FieldID = 13
	FieldSubjRole    FieldID = 14
	FieldSubjType    FieldID = 15
	FieldSubjSen     FieldID = 16
	FieldSubjClr     FieldID = 17
	FieldPPID        FieldID = 18
	FieldObjUser     FieldID = 19
	FieldObjRole     FieldID = 20
	FieldObjType     FieldID = 21
	FieldObjLevLow   FieldID = 22
	FieldObjLevHigh  FieldID = 23
	FieldLoginUIDSet FieldID = 24
	FieldSessionID   FieldID = 25

	FieldDevMajor FieldID = 100
	FieldDevMinor FieldID = 101
	FieldInode    FieldID = 102
	FieldExit     FieldID = 103
	FieldSuccess  FieldID = 104
	FieldWatch    FieldID = 105
	FieldPerm     FieldID = 106
	FieldDir      FieldID = 107
	FieldFiletype FieldID = 108
	FieldObjUID   FieldID = 109
	FieldObjGID   FieldID = 110
	FieldCompare  FieldID = 111
	FieldExe      FieldID = 112

	FieldArg0      FieldID = 200
	FieldArg1      FieldID = 201
	FieldArg2      FieldID = 202
	FieldArg3      FieldID = 203
	FieldFilterKey FieldID = 210
)

// stringFields are the selectors whose value travels in the trailing
// string buffer rather than in the values array.
var stringFields = map[FieldID]bool{
	FieldSubjUser:   true,
	FieldSubjRole:   true,
	FieldSubjType:   true,
	FieldSubjSen:    true,
	FieldSubjClr:    true,
	FieldObjUser:    true,
	FieldObjRole:    true,
	FieldObjType:    true,
	FieldObjLevLow:  true,
	FieldObjLevHigh: true,
	FieldWatch:      true,
	FieldDir:        true,
	FieldExe:        true,
	FieldFilterKey:  true,
}

// IsString reports whether the field's value is carried in the trailing
// string buffer.
func (id FieldID) IsString() bool {
	return stringFields[id]
}

// Operator compares a field against its value.
type Operator uint32

const (
	OpBitMask            Operator = 0x08000000 // any masked bit set
	OpLessThan           Operator = 0x10000000
	OpGreaterThan        Operator = 0x20000000
	OpNotEqual           Operator = 0x30000000
	OpEqual              Operator = 0x40000000
	OpBitTest            Operator = OpBitMask | OpEqual // all masked bits set
	OpLessThanOrEqual    Operator = OpLessThan | OpEqual
	OpGreaterThanOrEqual Operator = OpGreaterThan | OpEqual
)

func (op Operator) String() string {
	switch op {
	case OpBitMask:
		return "&"
	case OpLessThan:
		return "<"
	case OpGreaterThan:
		return ">"
	case OpNotEqual:
		return "!="
	case OpEqual:
		return "="
	case OpBitTest:
		return "&="
	case OpLessThanOrEqual:
		return "<="
	case OpGreaterThanOrEqual:
		return ">="
	default:
		return "?"
	}
}

// Audit control message types.
const (
	msgGetStatus uint16 = 1000 // AUDIT_GET
	msgSetStatus uint16 = 1001 // AUDIT_SET
	msgAddRule   uint16 = 1011 // AUDIT_ADD_RULE
	msgDelRule   uint16 = 1012 // AUDIT_DEL_RULE
	msgListRules uint16 = 1013 // AUDIT_LIST_RULES
)

// Status mask bits: which attributes a status message carries.
const (
	StatusEnabled         uint32 = 0x001
	StatusFailure         uint32 = 0x002
	StatusPID             uint32 = 0x004
	StatusRateLimit       uint32 = 0x008
	StatusBacklogLimit    uint32 = 0x010
	StatusBacklogWaitTime uint32 = 0x020
	StatusLost            uint32 = 0x040
)

// Failure-to-log actions.
const (
	FailureSilent uint32 = 0
	FailurePrintk uint32 = 1
	FailurePanic  uint32 = 2
)

// Feature bitmap bits reported in the status snapshot.
const (
	FeatureBacklogLimit    uint32 = 0x01
	FeatureBacklogWaitTime uint32 = 0x02
	FeatureExecutablePath  uint32 = 0x04
	FeatureExcludeExtend   uint32 = 0x08
	FeatureSessionIDFilter uint32 = 0x10
	FeatureLostReset       uint32 = 0x20
	FeatureFilterFS        uint32 = 0x40
	FeatureAll             uint32 = 0x7f
)

// Permission bits for FieldPerm values.
const (
	PermExec  uint32 = 1
	PermWrite uint32 = 2
	PermRead  uint32 = 4
	PermAttr  uint32 = 8
)

// Wire-format sizing. audit_rule_data is flags, action, field_count, a
// 64-word syscall mask, three parallel field arrays of 64, a buffer
// length, then the unpadded string buffer.
const (
	bitmaskWords = 64 // AUDIT_BITMASK_SIZE
	maxFields    = 64 // AUDIT_MAX_FIELDS

	// MaxSyscalls is the size of the syscall-number space covered by
	// the selection bitmask.
	MaxSyscalls = bitmaskWords * 32

	maxMessageLength = 8970 // MAX_AUDIT_MESSAGE_LENGTH
	ruleFixedLen     = 4 * (3 + bitmaskWords + 3*maxFields + 1)
	maxStringBytes   = maxMessageLength - ruleFixedLen

	statusLen = 40
)

// NLM_F_NONREC requests an exact-match, non-recursive delete. Not all
// x/sys/unix revisions export it by name; it shares the bit with
// NLM_F_REPLACE, which is meaningless for deletes.
const nlmNonRecursive = 0x100
