// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

//go:build linux

// Command auditlinkctl manages kernel audit rules and status from the
// command line. It is a thin CLI over the library: rule files are HCL
// documents understood by the ruleset package.
//
//	auditlinkctl status
//	auditlinkctl list
//	auditlinkctl apply /etc/auditlink/rules.hcl
//	auditlinkctl clear
//	auditlinkctl enable | disable
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"grimm.is/auditlink"
	"grimm.is/auditlink/internal/logging"
	"grimm.is/auditlink/ruleset"
)

func main() {
	verbose := flag.Bool("v", false, "Enable debug logging")
	jsonLog := flag.Bool("json", false, "Log in JSON")
	timeout := flag.Duration("timeout", 10*time.Second, "Per-operation timeout")
	flag.Parse()

	level := logging.LevelInfo
	if *verbose {
		level = logging.LevelDebug
	}
	logging.SetDefault(logging.New(logging.Config{Level: level, JSON: *jsonLog}))

	args := flag.Args()
	if len(args) == 0 {
		usage()
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	if err := run(ctx, args); err != nil {
		fmt.Fprintf(os.Stderr, "auditlinkctl: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	handle, conn, err := auditlink.Open(nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	switch args[0] {
	case "status":
		return runStatus(ctx, handle)
	case "list":
		return runList(ctx, handle)
	case "apply":
		if len(args) < 2 {
			return fmt.Errorf("usage: auditlinkctl apply <rules.hcl>")
		}
		return runApply(ctx, handle, args[1])
	case "clear":
		return ruleset.Clear(ctx, handle)
	case "enable":
		return handle.SetEnabled(ctx, true)
	case "disable":
		return handle.SetEnabled(ctx, false)
	case "rate-limit":
		if len(args) < 2 {
			return fmt.Errorf("usage: auditlinkctl rate-limit <messages-per-second>")
		}
		n, err := strconv.ParseUint(args[1], 10, 32)
		if err != nil {
			return fmt.Errorf("bad rate limit %q", args[1])
		}
		return handle.SetRateLimit(ctx, uint32(n))
	case "backlog-limit":
		if len(args) < 2 {
			return fmt.Errorf("usage: auditlinkctl backlog-limit <events>")
		}
		n, err := strconv.ParseUint(args[1], 10, 32)
		if err != nil {
			return fmt.Errorf("bad backlog limit %q", args[1])
		}
		return handle.SetBacklogLimit(ctx, uint32(n))
	default:
		usage()
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func runStatus(ctx context.Context, h *auditlink.Handle) error {
	s, err := h.GetStatus(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("enabled        %d\n", s.Enabled)
	fmt.Printf("failure        %d\n", s.Failure)
	fmt.Printf("pid            %d\n", s.PID)
	fmt.Printf("rate_limit     %d\n", s.RateLimit)
	fmt.Printf("backlog_limit  %d\n", s.BacklogLimit)
	fmt.Printf("lost           %d\n", s.Lost)
	fmt.Printf("backlog        %d\n", s.Backlog)
	fmt.Printf("backlog_wait   %dms\n", s.BacklogWaitTime)
	return nil
}

func runList(ctx context.Context, h *auditlink.Handle) error {
	n := 0
	for rule, err := range h.ListRules(ctx) {
		if err != nil {
			return err
		}
		fmt.Println(ruleset.Format(rule))
		n++
	}
	if n == 0 {
		fmt.Println("No rules")
	}
	return nil
}

func runApply(ctx context.Context, h *auditlink.Handle, path string) error {
	rs, err := ruleset.Load(path)
	if err != nil {
		return err
	}
	if err := ruleset.Apply(ctx, h, rs); err != nil {
		return err
	}
	fmt.Printf("Applied %d rules from %s\n", len(rs.Rules), path)
	return nil
}

func usage() {
	fmt.Fprintln(os.Stderr, `Usage: auditlinkctl [-v] [-json] [-timeout 10s] <command>

Commands:
  status                  Show audit subsystem status
  list                    List loaded rules in auditctl notation
  apply <rules.hcl>       Install rules from an HCL rule file
  clear                   Delete every loaded rule
  enable | disable        Toggle event generation
  rate-limit <n>          Cap events per second (0 removes the cap)
  backlog-limit <n>       Cap the kernel event backlog`)
}
