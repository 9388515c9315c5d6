// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

//go:build linux

package auditlink

import (
	"fmt"
	"syscall"

	"golang.org/x/sys/unix"

	"grimm.is/auditlink/internal/errors"
)

// NetlinkError is an explicit rejection from the kernel: an NLMSG_ERROR
// datagram with a non-zero code. The payload is kept verbatim; Data
// holds everything after the error code, which is the echoed original
// request when the kernel includes it. These are never retried here.
type NetlinkError struct {
	Errno int32 // negated errno as sent by the kernel
	Data  []byte
}

func (e *NetlinkError) Error() string {
	return fmt.Sprintf("netlink error: %v", unix.Errno(-e.Errno))
}

// UnexpectedMessageError reports a reply that is neither the expected
// silence, a recognized error, nor a valid item for the exchange. The
// raw datagram is attached for diagnostics.
type UnexpectedMessageError struct {
	Header syscall.NlMsghdr
	Data   []byte
}

func (e *UnexpectedMessageError) Error() string {
	return fmt.Sprintf("unexpected netlink message type %d (%d bytes)", e.Header.Type, len(e.Data))
}

// newNetlinkError wraps an NLMSG_ERROR datagram for the caller. A
// payload too short to carry the error code cannot be a rejection; it
// is reported as malformed rather than as a zero-errno NetlinkError.
func newNetlinkError(m syscall.NetlinkMessage) error {
	if len(m.Data) < 4 {
		return errors.Errorf(errors.KindMalformed, "netlink error payload truncated at %d bytes", len(m.Data))
	}
	ne := &NetlinkError{
		Errno: int32(uint32(m.Data[0]) | uint32(m.Data[1])<<8 | uint32(m.Data[2])<<16 | uint32(m.Data[3])<<24),
		Data:  m.Data[4:],
	}
	err := errors.Wrap(ne, errors.KindNetlink, "kernel rejected request")
	return errors.Attr(err, "errno", ne.Errno)
}

// newUnexpectedMessage wraps a protocol-violating datagram.
func newUnexpectedMessage(m syscall.NetlinkMessage) error {
	ue := &UnexpectedMessageError{Header: m.Header, Data: m.Data}
	err := errors.Wrap(ue, errors.KindUnexpected, "unexpected reply")
	return errors.Attr(err, "type", m.Header.Type)
}
