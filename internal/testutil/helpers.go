// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package testutil

import (
	"os"
	"testing"
)

// RequireKernel skips the test if the AUDITLINK_KERNEL_TEST environment
// variable is not set. This ensures that tests requiring a live
// NETLINK_AUDIT socket (root, CAP_AUDIT_CONTROL) are only run in the
// proper environment.
func RequireKernel(t *testing.T) {
	t.Helper()
	if os.Getenv("AUDITLINK_KERNEL_TEST") == "" {
		t.Skip("Skipping test: requires AUDITLINK_KERNEL_TEST environment")
	}
}
