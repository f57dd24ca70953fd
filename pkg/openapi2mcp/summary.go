// summary.go
package openapi2mcp

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
)

// WriteToolSummary writes the tool count and a per-method breakdown.
func WriteToolSummary(w io.Writer, tools *Toolset) {
	methodCount := map[string]int{}
	for _, t := range tools.Tools() {
		methodCount[t.Method]++
	}
	fmt.Fprintf(w, "Total tools: %d\n", tools.Len())
	if len(methodCount) > 0 {
		methods := make([]string, 0, len(methodCount))
		for m := range methodCount {
			methods = append(methods, m)
		}
		sort.Strings(methods)
		fmt.Fprintln(w, "Methods:")
		for _, m := range methods {
			fmt.Fprintf(w, "  %s: %d\n", m, methodCount[m])
		}
	}
}

// WriteToolsJSON writes the tools as an indented JSON array.
func WriteToolsJSON(w io.Writer, tools *Toolset) error {
	list := tools.Tools()
	if list == nil {
		list = []ToolDescriptor{}
	}
	out, err := json.MarshalIndent(list, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(out))
	return err
}

// WriteMarkdownDoc writes Markdown documentation for every tool.
func WriteMarkdownDoc(w io.Writer, doc *Document, tools *Toolset) error {
	var b strings.Builder
	b.WriteString("# MCP Tools Documentation\n\n")
	if doc != nil {
		if doc.Title != "" {
			fmt.Fprintf(&b, "**API Title:** %s\n\n", doc.Title)
		}
		if doc.Version != "" {
			fmt.Fprintf(&b, "**Version:** %s\n\n", doc.Version)
		}
	}
	for _, t := range tools.Tools() {
		fmt.Fprintf(&b, "## %s\n\n", t.Name)
		fmt.Fprintf(&b, "`%s %s`\n\n", t.Method, t.Path)
		if t.Description != "" {
			b.WriteString(t.Description + "\n\n")
		}
		if len(t.InputSchema.Properties) == 0 {
			b.WriteString("_No arguments._\n\n")
			continue
		}
		b.WriteString("| Argument | Type | Required | Description |\n")
		b.WriteString("|---|---|---|---|\n")
		names := make([]string, 0, len(t.InputSchema.Properties))
		for name := range t.InputSchema.Properties {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			prop := t.InputSchema.Properties[name]
			required := ""
			if t.InputSchema.isRequired(name) {
				required = "yes"
			}
			fmt.Fprintf(&b, "| `%s` | %s | %s | %s |\n", name, prop.Type, required, prop.Description)
		}
		b.WriteString("\n")
	}
	_, err := io.WriteString(w, b.String())
	return err
}
