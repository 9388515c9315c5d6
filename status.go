// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package auditlink

import (
	"bytes"
	"encoding/binary"

	"grimm.is/auditlink/internal/errors"
)

// Status is a snapshot of the audit subsystem's operational state,
// mirroring struct audit_status: ten little-endian 32-bit words. On
// reads the kernel populates every attribute; on writes Mask marks
// exactly the attributes the sender intends to change and the kernel
// ignores the rest.
type Status struct {
	Mask            uint32
	Enabled         uint32
	Failure         uint32
	PID             uint32
	RateLimit       uint32
	BacklogLimit    uint32
	Lost            uint32
	Backlog         uint32
	FeatureBitmap   uint32
	BacklogWaitTime uint32
}

// MarshalBinary encodes the snapshot as the fixed kernel record.
func (s *Status) MarshalBinary() ([]byte, error) {
	out := bytes.NewBuffer(make([]byte, 0, statusLen))
	if err := binary.Write(out, binary.LittleEndian, s); err != nil {
		return nil, errors.Wrap(err, errors.KindInternal, "encode status")
	}
	return out.Bytes(), nil
}

// UnmarshalBinary decodes a kernel status record. Trailing bytes are
// tolerated: newer kernels append fields past backlog_wait_time.
func (s *Status) UnmarshalBinary(data []byte) error {
	if len(data) < statusLen {
		return errors.Errorf(errors.KindMalformed, "status payload is %d bytes, need at least %d", len(data), statusLen)
	}
	return binary.Read(bytes.NewReader(data[:statusLen]), binary.LittleEndian, s)
}

// Carries reports whether the snapshot's mask marks attribute bit attr
// as meaningful.
func (s *Status) Carries(attr uint32) bool {
	return s.Mask&attr != 0
}
