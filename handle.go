// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

//go:build linux

package auditlink

import (
	"context"
	"iter"
	"os"
	"syscall"

	"golang.org/x/sys/unix"

	"grimm.is/auditlink/internal/errors"
	"grimm.is/auditlink/internal/logging"
	"grimm.is/auditlink/internal/metrics"
)

// Handle exposes the audit control operations over a Transport. A
// Handle is stateless and safe for concurrent use; correlation lives in
// the transport. Mutating operations need CAP_AUDIT_CONTROL in the
// calling process.
type Handle struct {
	t      Transport
	logger *logging.Logger
	stats  *metrics.Metrics
}

// NewHandle wraps a transport. A nil logger uses the process default.
func NewHandle(t Transport, logger *logging.Logger) *Handle {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handle{
		t:      t,
		logger: logger.WithComponent("handle"),
		stats:  metrics.Default(),
	}
}

// Open dials the audit netlink socket and returns a handle over it.
// Close the returned connection when done.
func Open(logger *logging.Logger) (*Handle, *Conn, error) {
	conn, err := Dial(logger)
	if err != nil {
		return nil, nil, err
	}
	return NewHandle(conn, logger), conn, nil
}

// Operation labels used in logs and metrics.
const (
	opAddRule   = "add_rule"
	opDelRule   = "delete_rule"
	opListRules = "list_rules"
	opGetStatus = "get_status"
	opSetStatus = "set_status"
)

// AddRule installs a rule. The kernel rejects an exact duplicate of an
// existing rule with EEXIST, surfaced as a NetlinkError.
func (h *Handle) AddRule(ctx context.Context, r *Rule) error {
	h.logger.Debug("adding audit rule", "filter", r.Filter, "action", r.Action, "fields", len(r.Fields))
	req, err := newAddRuleRequest(r)
	return h.acked(ctx, opAddRule, req, err)
}

// DeleteRule removes the rule matching r exactly. A rule that does not
// exist is reported by the kernel with ENOENT.
func (h *Handle) DeleteRule(ctx context.Context, r *Rule) error {
	h.logger.Debug("deleting audit rule", "filter", r.Filter, "action", r.Action, "fields", len(r.Fields))
	req, err := newDelRuleRequest(r)
	return h.acked(ctx, opDelRule, req, err)
}

// ListRules enumerates the loaded rules lazily, in kernel order. Each
// step yields either a decoded rule or an error; a malformed record
// yields its error and enumeration continues with the next record,
// while a kernel rejection or a protocol violation ends the sequence
// after its error is yielded. Breaking out early is allowed at any
// point.
func (h *Handle) ListRules(ctx context.Context) iter.Seq2[*Rule, error] {
	return func(yield func(*Rule, error) bool) {
		replies, err := h.t.Exchange(ctx, newListRulesRequest())
		if err != nil {
			h.count(opListRules, err)
			yield(nil, err)
			return
		}
		var failure error
		for {
			select {
			case m, ok := <-replies:
				if !ok {
					h.count(opListRules, failure)
					return
				}
				h.stats.ReplyDatagrams.WithLabelValues(opListRules).Inc()
				rule, derr := decodeRuleReply(m)
				if derr != nil {
					failure = derr
					if !yield(nil, derr) {
						h.count(opListRules, derr)
						go drain(replies)
						return
					}
					continue
				}
				if !yield(rule, nil) {
					h.count(opListRules, failure)
					go drain(replies)
					return
				}
			case <-ctx.Done():
				derr := errors.Wrap(ctx.Err(), errors.KindRequestFailed, "await rule dump")
				h.count(opListRules, derr)
				yield(nil, derr)
				return
			}
		}
	}
}

// GetStatus reads the subsystem's current state. The kernel answers a
// status dump with a single record followed by NLMSG_DONE.
func (h *Handle) GetStatus(ctx context.Context) (*Status, error) {
	replies, err := h.t.Exchange(ctx, newGetStatusRequest())
	if err != nil {
		h.count(opGetStatus, err)
		return nil, err
	}
	var status *Status
	var failure error
	for {
		select {
		case m, ok := <-replies:
			if !ok {
				if failure == nil && status == nil {
					failure = errors.New(errors.KindRequestFailed, "status reply stream ended without a record")
				}
				h.count(opGetStatus, failure)
				if failure != nil {
					return nil, failure
				}
				return status, nil
			}
			h.stats.ReplyDatagrams.WithLabelValues(opGetStatus).Inc()
			if status != nil || failure != nil {
				continue
			}
			status, failure = decodeStatusReply(m)
		case <-ctx.Done():
			failure = errors.Wrap(ctx.Err(), errors.KindRequestFailed, "await status")
			h.count(opGetStatus, failure)
			return nil, failure
		}
	}
}

// SetStatus writes the attributes marked in s.Mask. Unmarked fields are
// ignored by the kernel regardless of their values.
func (h *Handle) SetStatus(ctx context.Context, s *Status) error {
	h.logger.Debug("setting audit status", "mask", s.Mask)
	req, err := newSetStatusRequest(s)
	return h.acked(ctx, opSetStatus, req, err)
}

// SetEnabled turns event generation on or off.
func (h *Handle) SetEnabled(ctx context.Context, enabled bool) error {
	var v uint32
	if enabled {
		v = 1
	}
	return h.SetStatus(ctx, &Status{Mask: StatusEnabled, Enabled: v})
}

// SetPID registers pid as the audit daemon. Zero unregisters.
func (h *Handle) SetPID(ctx context.Context, pid uint32) error {
	return h.SetStatus(ctx, &Status{Mask: StatusPID, PID: pid})
}

// EnableEvents enables the subsystem and claims the daemon role for the
// current process in one message, so no event is generated between the
// two changes.
func (h *Handle) EnableEvents(ctx context.Context) error {
	return h.SetStatus(ctx, &Status{
		Mask:    StatusEnabled | StatusPID,
		Enabled: 1,
		PID:     uint32(os.Getpid()),
	})
}

// SetRateLimit caps event generation at limit messages per second.
// Zero removes the cap.
func (h *Handle) SetRateLimit(ctx context.Context, limit uint32) error {
	return h.SetStatus(ctx, &Status{Mask: StatusRateLimit, RateLimit: limit})
}

// SetBacklogLimit caps the kernel's queue of events awaiting delivery.
func (h *Handle) SetBacklogLimit(ctx context.Context, limit uint32) error {
	return h.SetStatus(ctx, &Status{Mask: StatusBacklogLimit, BacklogLimit: limit})
}

// SetFailure selects the kernel's reaction to undeliverable events:
// FailureSilent, FailurePrintk or FailurePanic.
func (h *Handle) SetFailure(ctx context.Context, action uint32) error {
	if action > FailurePanic {
		return errors.Errorf(errors.KindValidation, "unknown failure action %d", action)
	}
	return h.SetStatus(ctx, &Status{Mask: StatusFailure, Failure: action})
}

// acked runs one acknowledged exchange. Success is the reply stream
// closing without delivering anything: the bare ack is consumed by the
// transport. Any delivered datagram is a failure, classified as a
// kernel rejection or a protocol violation. Encode errors from building
// the request short-circuit without touching the wire.
func (h *Handle) acked(ctx context.Context, op string, req Request, err error) error {
	if err != nil {
		h.count(op, err)
		return err
	}
	replies, err := h.t.Exchange(ctx, req)
	if err != nil {
		h.count(op, err)
		return err
	}
	var failure error
	for {
		select {
		case m, ok := <-replies:
			if !ok {
				h.count(op, failure)
				if failure != nil {
					h.logger.Warn("audit request failed", "operation", op, "error", failure)
				}
				return failure
			}
			h.stats.ReplyDatagrams.WithLabelValues(op).Inc()
			if failure != nil {
				continue
			}
			if m.Header.Type == unix.NLMSG_ERROR {
				failure = newNetlinkError(m)
			} else {
				failure = newUnexpectedMessage(m)
			}
		case <-ctx.Done():
			failure = errors.Wrap(ctx.Err(), errors.KindRequestFailed, "await acknowledgement")
			h.count(op, failure)
			return failure
		}
	}
}

// drain discards the rest of an abandoned reply stream so the transport
// reader never blocks on a full exchange buffer.
func drain(replies <-chan syscall.NetlinkMessage) {
	for range replies {
	}
}

func (h *Handle) count(op string, err error) {
	h.stats.Exchanges.WithLabelValues(op, outcomeLabel(err)).Inc()
}

func outcomeLabel(err error) string {
	if err == nil {
		return "ok"
	}
	switch errors.GetKind(err) {
	case errors.KindNetlink:
		return "netlink_error"
	case errors.KindUnexpected:
		return "unexpected"
	case errors.KindMalformed:
		return "malformed"
	case errors.KindValidation:
		return "validation"
	default:
		return "request_failed"
	}
}
