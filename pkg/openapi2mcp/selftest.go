// selftest.go
package openapi2mcp

import (
	"fmt"
	"strings"
)

// SelfTest checks that a parsed tool set is consistent with its document:
// names are legal and unique, every required argument has a schema property,
// and every tool resolves back to an operation the way the caller resolves it.
// It returns one error listing every issue found.
func SelfTest(doc *Document, service string, strategy ToolNameStrategy, rules []ToolRule, tools *Toolset) error {
	if strategy == nil {
		strategy = ShortToolNameStrategy{}
	}
	var issues []string
	seen := map[string]bool{}
	for _, tool := range tools.Tools() {
		if !legalName.MatchString(tool.Name) {
			issues = append(issues, fmt.Sprintf("tool %q has an illegal name", tool.Name))
		}
		if seen[tool.Name] {
			issues = append(issues, fmt.Sprintf("tool %q is defined more than once", tool.Name))
		}
		seen[tool.Name] = true
		for _, req := range tool.InputSchema.Required {
			if _, ok := tool.InputSchema.Properties[req]; !ok {
				issues = append(issues, fmt.Sprintf("tool %q is missing required argument %q in schema", tool.Name, req))
			}
		}
		ref, ok := findOperation(doc, service, strategy, rules, tool.Name)
		if !ok {
			issues = append(issues, fmt.Sprintf("tool %q does not resolve to an operation", tool.Name))
			continue
		}
		if !strings.EqualFold(ref.op.Method, tool.Method) || ref.path != tool.Path {
			issues = append(issues, fmt.Sprintf("tool %q resolves to %s %s, expected %s %s",
				tool.Name, strings.ToUpper(ref.op.Method), ref.path, tool.Method, tool.Path))
		}
	}
	if len(issues) > 0 {
		return fmt.Errorf("self-test failed with %d issues:\n  %s", len(issues), strings.Join(issues, "\n  "))
	}
	return nil
}
