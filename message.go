// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

//go:build linux

package auditlink

import (
	"syscall"

	"golang.org/x/sys/unix"
)

// Request is one tagged control request: the audit message type, the
// netlink header flag bits selecting its semantics, and the payload
// encoded exactly once. Requests are built per call and discarded after
// the exchange.
type Request struct {
	Type  uint16
	Flags uint16
	Data  []byte
}

func newAddRuleRequest(r *Rule) (Request, error) {
	data, err := r.MarshalBinary()
	if err != nil {
		return Request{}, err
	}
	// Create the rule, fail if an identical one exists, confirm with an ack.
	return Request{
		Type:  msgAddRule,
		Flags: unix.NLM_F_REQUEST | unix.NLM_F_ACK | unix.NLM_F_EXCL | unix.NLM_F_CREATE,
		Data:  data,
	}, nil
}

func newDelRuleRequest(r *Rule) (Request, error) {
	data, err := r.MarshalBinary()
	if err != nil {
		return Request{}, err
	}
	// Exact-match delete, non-recursive.
	return Request{
		Type:  msgDelRule,
		Flags: unix.NLM_F_REQUEST | unix.NLM_F_ACK | nlmNonRecursive,
		Data:  data,
	}, nil
}

func newListRulesRequest() Request {
	return Request{
		Type:  msgListRules,
		Flags: unix.NLM_F_REQUEST | unix.NLM_F_DUMP,
	}
}

func newGetStatusRequest() Request {
	return Request{
		Type:  msgGetStatus,
		Flags: unix.NLM_F_REQUEST | unix.NLM_F_DUMP,
	}
}

func newSetStatusRequest(s *Status) (Request, error) {
	data, err := s.MarshalBinary()
	if err != nil {
		return Request{}, err
	}
	return Request{
		Type:  msgSetStatus,
		Flags: unix.NLM_F_REQUEST | unix.NLM_F_ACK,
		Data:  data,
	}, nil
}

// decodeRuleReply classifies one datagram from a rule enumeration.
func decodeRuleReply(m syscall.NetlinkMessage) (*Rule, error) {
	switch m.Header.Type {
	case unix.NLMSG_ERROR:
		return nil, newNetlinkError(m)
	case msgListRules:
		rule := new(Rule)
		if err := rule.UnmarshalBinary(m.Data); err != nil {
			return nil, err
		}
		return rule, nil
	default:
		return nil, newUnexpectedMessage(m)
	}
}

// decodeStatusReply classifies the datagram answering a status read.
func decodeStatusReply(m syscall.NetlinkMessage) (*Status, error) {
	switch m.Header.Type {
	case unix.NLMSG_ERROR:
		return nil, newNetlinkError(m)
	case msgGetStatus:
		status := new(Status)
		if err := status.UnmarshalBinary(m.Data); err != nil {
			return nil, err
		}
		return status, nil
	default:
		return nil, newUnexpectedMessage(m)
	}
}
