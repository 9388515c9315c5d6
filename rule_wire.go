// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package auditlink

import (
	"bytes"
	"encoding/binary"

	"grimm.is/auditlink/internal/errors"
)

// ruleData mirrors struct audit_rule_data. Fixed little-endian arrays
// with an explicit count, then the unpadded string buffer.
type ruleData struct {
	Flags      uint32
	Action     uint32
	FieldCount uint32
	Mask       [bitmaskWords]uint32
	Fields     [maxFields]uint32
	Values     [maxFields]uint32
	FieldFlags [maxFields]uint32
	BufLen     uint32
}

// MarshalBinary encodes the rule into the kernel wire layout. Encoding
// is deterministic: the same rule always yields identical bytes, which
// is what lets the kernel match a delete request against an installed
// rule by content. For string-valued fields the values slot records the
// string's byte length and the bytes are appended, unpadded and in
// field order, to the trailing buffer.
func (r *Rule) MarshalBinary() ([]byte, error) {
	if err := r.validate(); err != nil {
		return nil, err
	}

	var rd ruleData
	rd.Flags = uint32(r.Filter)
	rd.Action = uint32(r.Action)
	rd.FieldCount = uint32(len(r.Fields))
	rd.Mask = r.Syscalls

	var strbuf bytes.Buffer
	for i, f := range r.Fields {
		rd.Fields[i] = uint32(f.ID)
		rd.FieldFlags[i] = uint32(f.Op)
		switch v := f.Value.(type) {
		case Num:
			rd.Values[i] = uint32(v)
		case Arch:
			rd.Values[i] = uint32(v)
		case Str:
			rd.Values[i] = uint32(len(v))
			strbuf.WriteString(string(v))
		}
	}
	rd.BufLen = uint32(strbuf.Len())

	out := bytes.NewBuffer(make([]byte, 0, ruleFixedLen+strbuf.Len()))
	if err := binary.Write(out, binary.LittleEndian, &rd); err != nil {
		return nil, errors.Wrap(err, errors.KindInternal, "encode rule data")
	}
	out.Write(strbuf.Bytes())
	return out.Bytes(), nil
}

// UnmarshalBinary decodes a kernel rule payload. Fields are rebuilt in
// their original order by slicing the trailing buffer sequentially by
// the recorded lengths. Any inconsistency between the field count, the
// array bounds and the buffer length is a decode error. Unknown field
// IDs are preserved as opaque numeric pairs so newer kernels remain
// readable.
func (r *Rule) UnmarshalBinary(data []byte) error {
	if len(data) < ruleFixedLen {
		return errors.Errorf(errors.KindMalformed, "rule payload is %d bytes, need at least %d", len(data), ruleFixedLen)
	}

	var rd ruleData
	if err := binary.Read(bytes.NewReader(data), binary.LittleEndian, &rd); err != nil {
		return errors.Wrap(err, errors.KindMalformed, "decode rule data")
	}
	if rd.FieldCount > maxFields {
		return errors.Errorf(errors.KindMalformed, "rule claims %d fields, kernel maximum is %d", rd.FieldCount, maxFields)
	}

	strbuf := data[ruleFixedLen:]
	if uint32(len(strbuf)) != rd.BufLen {
		return errors.Errorf(errors.KindMalformed, "rule string buffer is %d bytes, header claims %d", len(strbuf), rd.BufLen)
	}

	var fields []RuleField
	off := 0
	for i := 0; i < int(rd.FieldCount); i++ {
		id := FieldID(rd.Fields[i])
		op := Operator(rd.FieldFlags[i])
		var v FieldValue
		switch {
		case id.IsString():
			n := int(rd.Values[i])
			if n < 0 || off+n > len(strbuf) {
				return errors.Errorf(errors.KindMalformed, "string value for field %d overruns buffer", id)
			}
			v = Str(strbuf[off : off+n])
			off += n
		case id == FieldArch:
			v = Arch(rd.Values[i])
		default:
			v = Num(rd.Values[i])
		}
		fields = append(fields, RuleField{ID: id, Op: op, Value: v})
	}
	if off != len(strbuf) {
		return errors.Errorf(errors.KindMalformed, "rule string buffer has %d unconsumed bytes", len(strbuf)-off)
	}

	r.Filter = Filter(rd.Flags)
	r.Action = Action(rd.Action)
	r.Fields = fields
	r.Syscalls = rd.Mask
	return nil
}
