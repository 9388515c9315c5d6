// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

//go:build linux

// Package ruleset loads declarative audit rule files written in HCL and
// translates them into wire-ready rules. A file carries optional status
// settings plus any number of labeled rule blocks:
//
//	enabled    = true
//	rate_limit = 100
//
//	rule "identity" {
//	  filter = "exit"
//	  watch  = "/etc/passwd"
//	  perms  = "wa"
//	}
//
//	rule "time-change" {
//	  filter   = "exit"
//	  arch     = "x86_64"
//	  syscalls = [159, 164]
//	  condition {
//	    field = "auid"
//	    op    = ">="
//	    value = "1000"
//	  }
//	}
//
// The block label becomes the rule's filter key. Field names, operator
// symbols and permission letters follow auditctl.
package ruleset

import (
	"os"
	"strconv"

	"github.com/hashicorp/hcl/v2/hclsimple"

	"grimm.is/auditlink"
	"grimm.is/auditlink/internal/errors"
)

// Document is the raw HCL shape of a rule file.
type Document struct {
	Enabled      *bool       `hcl:"enabled"`
	Failure      *string     `hcl:"failure"`
	RateLimit    *uint32     `hcl:"rate_limit"`
	BacklogLimit *uint32     `hcl:"backlog_limit"`
	Rules        []RuleBlock `hcl:"rule,block"`
}

// RuleBlock is one labeled rule declaration.
type RuleBlock struct {
	Key         string           `hcl:"key,label"`
	Filter      string           `hcl:"filter"`
	Action      string           `hcl:"action,optional"`
	Arch        string           `hcl:"arch,optional"`
	Watch       string           `hcl:"watch,optional"`
	Perms       string           `hcl:"perms,optional"`
	Syscalls    []int            `hcl:"syscalls,optional"`
	AllSyscalls bool             `hcl:"all_syscalls,optional"`
	Conditions  []ConditionBlock `hcl:"condition,block"`
}

// ConditionBlock is one field comparison. Op defaults to "=".
type ConditionBlock struct {
	Field string `hcl:"field"`
	Op    string `hcl:"op,optional"`
	Value string `hcl:"value"`
}

// Ruleset is a translated rule file: the status changes it requests, if
// any, and the rules in file order.
type Ruleset struct {
	Status *auditlink.Status
	Rules  []*auditlink.Rule
}

// Load reads and translates a rule file.
func Load(path string) (*Ruleset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.KindInternal, "read rule file")
	}
	return Parse(path, data)
}

// Parse translates rule file source. The filename selects the syntax by
// extension (.hcl or .json) and is used in diagnostics.
func Parse(filename string, data []byte) (*Ruleset, error) {
	var doc Document
	if err := hclsimple.Decode(filename, data, nil, &doc); err != nil {
		return nil, errors.Wrap(err, errors.KindValidation, "decode rule file")
	}
	return build(&doc)
}

func build(doc *Document) (*Ruleset, error) {
	rs := &Ruleset{Status: statusOf(doc)}
	if rs.Status != nil && doc.Failure != nil {
		action, ok := failureNames[*doc.Failure]
		if !ok {
			return nil, errors.Errorf(errors.KindValidation, "unknown failure action %q", *doc.Failure)
		}
		rs.Status.Failure = action
	}
	for _, block := range doc.Rules {
		rule, err := buildRule(&block)
		if err != nil {
			return nil, errors.Wrapf(err, errors.KindValidation, "rule %q", block.Key)
		}
		rs.Rules = append(rs.Rules, rule)
	}
	return rs, nil
}

func statusOf(doc *Document) *auditlink.Status {
	s := &auditlink.Status{}
	if doc.Enabled != nil {
		s.Mask |= auditlink.StatusEnabled
		if *doc.Enabled {
			s.Enabled = 1
		}
	}
	if doc.Failure != nil {
		s.Mask |= auditlink.StatusFailure
	}
	if doc.RateLimit != nil {
		s.Mask |= auditlink.StatusRateLimit
		s.RateLimit = *doc.RateLimit
	}
	if doc.BacklogLimit != nil {
		s.Mask |= auditlink.StatusBacklogLimit
		s.BacklogLimit = *doc.BacklogLimit
	}
	if s.Mask == 0 {
		return nil
	}
	return s
}

// buildRule assembles fields in auditctl's customary order: arch first,
// then syscall selection, explicit conditions, watch and permissions,
// and the filter key last.
func buildRule(block *RuleBlock) (*auditlink.Rule, error) {
	filter, ok := filterNames[block.Filter]
	if !ok {
		return nil, errors.Errorf(errors.KindValidation, "unknown filter list %q", block.Filter)
	}
	action := auditlink.ActionAlways
	if block.Action != "" {
		action, ok = actionNames[block.Action]
		if !ok {
			return nil, errors.Errorf(errors.KindValidation, "unknown action %q", block.Action)
		}
	}
	rule := auditlink.NewRule(filter, action)

	if block.Arch != "" {
		token, err := ArchByName(block.Arch)
		if err != nil {
			return nil, err
		}
		rule.Architecture(token)
	}
	if block.AllSyscalls {
		rule.Syscalls.SelectAll()
	}
	for _, nr := range block.Syscalls {
		rule.Syscalls.Set(nr)
	}
	for _, cond := range block.Conditions {
		if err := addCondition(rule, &cond); err != nil {
			return nil, err
		}
	}
	if block.Watch != "" {
		rule.WatchPath(block.Watch)
		// A watch applies regardless of syscall, as auditctl -w does.
		if rule.Syscalls.Empty() {
			rule.Syscalls.SelectAll()
		}
	}
	if block.Perms != "" {
		perm, err := parsePerms(block.Perms)
		if err != nil {
			return nil, err
		}
		rule.Permissions(perm)
	}
	if block.Key != "" {
		rule.Key(block.Key)
	}
	return rule, nil
}

func addCondition(rule *auditlink.Rule, cond *ConditionBlock) error {
	id, err := FieldByName(cond.Field)
	if err != nil {
		return err
	}
	sym := cond.Op
	if sym == "" {
		sym = "="
	}
	op, err := OperatorBySymbol(sym)
	if err != nil {
		return err
	}
	value, err := fieldValue(id, cond.Value)
	if err != nil {
		return err
	}
	rule.AddField(id, op, value)
	return nil
}

// fieldValue parses a condition value for its field. String-valued
// fields take the text verbatim; the arch field accepts architecture
// names; perm accepts auditctl letters; numeric fields accept decimal,
// hex, negative values (two's complement, as for exit codes) and the
// literal "unset" for the unset login UID.
func fieldValue(id auditlink.FieldID, raw string) (auditlink.FieldValue, error) {
	if id.IsString() {
		return auditlink.Str(raw), nil
	}
	if id == auditlink.FieldArch {
		if token, err := ArchByName(raw); err == nil {
			return auditlink.Arch(token), nil
		}
		n, err := strconv.ParseUint(raw, 0, 32)
		if err != nil {
			return nil, errors.Errorf(errors.KindValidation, "bad architecture value %q", raw)
		}
		return auditlink.Arch(uint32(n)), nil
	}
	if id == auditlink.FieldPerm {
		if n, err := strconv.ParseUint(raw, 0, 32); err == nil {
			return auditlink.Num(uint32(n)), nil
		}
		perm, err := parsePerms(raw)
		if err != nil {
			return nil, err
		}
		return auditlink.Num(perm), nil
	}
	if raw == "unset" {
		return auditlink.Num(0xFFFFFFFF), nil
	}
	if n, err := strconv.ParseUint(raw, 0, 32); err == nil {
		return auditlink.Num(uint32(n)), nil
	}
	if n, err := strconv.ParseInt(raw, 0, 32); err == nil {
		return auditlink.Num(uint32(int32(n))), nil
	}
	return nil, errors.Errorf(errors.KindValidation, "bad numeric value %q for field %d", raw, id)
}
