// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package auditlink is a control-plane client for the Linux kernel
// audit subsystem, spoken over a NETLINK_AUDIT socket. It manages the
// subsystem's rule list and operational status: installing and removing
// rules, enumerating what is loaded, reading counters and limits, and
// claiming the audit daemon role for a process.
//
// The usual entry point is Open, which dials the socket and returns a
// Handle:
//
//	handle, conn, err := auditlink.Open(nil)
//	if err != nil {
//		return err
//	}
//	defer conn.Close()
//
//	rule := auditlink.NewRule(auditlink.FilterExit, auditlink.ActionAlways)
//	rule.WatchPath("/etc/passwd")
//	rule.Permissions(auditlink.PermWrite | auditlink.PermAttr)
//	rule.Key("identity")
//	if err := handle.AddRule(ctx, rule); err != nil {
//		return err
//	}
//
// Rules and status records serialize to the kernel's fixed wire layout
// byte for byte, so a rule read back from the kernel can be fed to
// DeleteRule unchanged. All mutating operations require
// CAP_AUDIT_CONTROL.
package auditlink
