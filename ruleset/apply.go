// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

//go:build linux

package ruleset

import (
	"context"

	"golang.org/x/sys/unix"

	"grimm.is/auditlink"
	"grimm.is/auditlink/internal/errors"
)

// Apply installs the ruleset: status changes first, then rules in file
// order. A rule the kernel already has (EEXIST) is skipped; any other
// rejection stops the walk and reports which rule failed.
func Apply(ctx context.Context, h *auditlink.Handle, rs *Ruleset) error {
	if rs.Status != nil {
		if err := h.SetStatus(ctx, rs.Status); err != nil {
			return errors.Wrap(err, errors.KindRequestFailed, "apply status settings")
		}
	}
	for i, rule := range rs.Rules {
		err := h.AddRule(ctx, rule)
		if err == nil {
			continue
		}
		var ne *auditlink.NetlinkError
		if errors.As(err, &ne) && ne.Errno == -int32(unix.EEXIST) {
			continue
		}
		return errors.Wrapf(err, errors.KindRequestFailed, "apply rule %d of %d", i+1, len(rs.Rules))
	}
	return nil
}

// Clear removes every loaded rule.
func Clear(ctx context.Context, h *auditlink.Handle) error {
	var rules []*auditlink.Rule
	for rule, err := range h.ListRules(ctx) {
		if err != nil {
			return errors.Wrap(err, errors.KindRequestFailed, "enumerate rules")
		}
		rules = append(rules, rule)
	}
	for _, rule := range rules {
		if err := h.DeleteRule(ctx, rule); err != nil {
			return errors.Wrap(err, errors.KindRequestFailed, "delete rule")
		}
	}
	return nil
}
