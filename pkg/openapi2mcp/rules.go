package openapi2mcp

import "strings"

// ToolRule decides whether an operation becomes a tool.
type ToolRule interface {
	// Check reports whether the operation passes the rule.
	Check(path, method string, op Operation) bool
	// IncludeAny marks a whitelist rule: passing it admits the operation
	// regardless of any other rule.
	IncludeAny() bool
}

// CheckToolRules evaluates rules in order. A whitelist rule that passes
// admits the operation immediately. A failing blacklist rule marks the
// operation invalid but evaluation continues, so a later whitelist rule can
// still admit it.
func CheckToolRules(rules []ToolRule, path, method string, op Operation) bool {
	valid := true
	for _, rule := range rules {
		ok := rule.Check(path, method, op)
		if rule.IncludeAny() {
			if ok {
				return true
			}
			continue
		}
		if !ok {
			valid = false
		}
	}
	return valid
}

// MethodRule rejects operations whose HTTP method is blacklisted.
type MethodRule struct {
	blacklist map[string]bool
}

// NewMethodRule returns a MethodRule; methods are matched case-insensitively.
func NewMethodRule(methods []string) *MethodRule {
	r := &MethodRule{blacklist: make(map[string]bool, len(methods))}
	for _, m := range methods {
		r.blacklist[strings.ToLower(m)] = true
	}
	return r
}

func (r *MethodRule) Check(_, method string, _ Operation) bool {
	return !r.blacklist[strings.ToLower(method)]
}

func (r *MethodRule) IncludeAny() bool { return false }

// OperationIDWhiteRule admits operations whose operationId is listed.
type OperationIDWhiteRule struct {
	ids map[string]bool
}

func NewOperationIDWhiteRule(ids []string) *OperationIDWhiteRule {
	return &OperationIDWhiteRule{ids: toSet(ids)}
}

func (r *OperationIDWhiteRule) Check(_, _ string, op Operation) bool {
	return r.ids[op.OperationID]
}

func (r *OperationIDWhiteRule) IncludeAny() bool { return true }

// OperationIDBlackRule rejects operations whose operationId is listed.
type OperationIDBlackRule struct {
	ids map[string]bool
}

func NewOperationIDBlackRule(ids []string) *OperationIDBlackRule {
	return &OperationIDBlackRule{ids: toSet(ids)}
}

func (r *OperationIDBlackRule) Check(_, _ string, op Operation) bool {
	return !r.ids[op.OperationID]
}

func (r *OperationIDBlackRule) IncludeAny() bool { return false }

// PathRule rejects operations on blacklisted paths. Paths are compared after
// {version} substitution.
type PathRule struct {
	paths map[string]bool
}

func NewPathRule(paths []string) *PathRule {
	return &PathRule{paths: toSet(paths)}
}

func (r *PathRule) Check(path, _ string, _ Operation) bool {
	return !r.paths[path]
}

func (r *PathRule) IncludeAny() bool { return false }

// NoDescriptionRule rejects operations with neither a summary nor a description.
type NoDescriptionRule struct{}

func (NoDescriptionRule) Check(_, _ string, op Operation) bool {
	return op.Description != "" || op.Summary != ""
}

func (NoDescriptionRule) IncludeAny() bool { return false }

// RuleOptions lists the rules to build with BuildRules.
type RuleOptions struct {
	MethodBlacklist      []string
	OperationIDWhitelist []string
	OperationIDBlacklist []string
	PathBlacklist        []string
	RequireDescription   bool
}

// BuildRules turns options into a rule list. Blacklists come first and the
// operationId whitelist last, so the whitelist can re-admit anything the
// blacklists rejected.
func BuildRules(opts RuleOptions) []ToolRule {
	var rules []ToolRule
	if len(opts.MethodBlacklist) > 0 {
		rules = append(rules, NewMethodRule(opts.MethodBlacklist))
	}
	if len(opts.OperationIDBlacklist) > 0 {
		rules = append(rules, NewOperationIDBlackRule(opts.OperationIDBlacklist))
	}
	if len(opts.PathBlacklist) > 0 {
		rules = append(rules, NewPathRule(opts.PathBlacklist))
	}
	if opts.RequireDescription {
		rules = append(rules, NoDescriptionRule{})
	}
	if len(opts.OperationIDWhitelist) > 0 {
		rules = append(rules, NewOperationIDWhiteRule(opts.OperationIDWhitelist))
	}
	return rules
}

func toSet(values []string) map[string]bool {
	set := make(map[string]bool, len(values))
	for _, v := range values {
		set[v] = true
	}
	return set
}
