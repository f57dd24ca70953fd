// parser.go
package openapi2mcp

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
)

var toolMethods = map[string]bool{
	"GET": true, "POST": true, "PUT": true, "DELETE": true, "PATCH": true,
}

// IsToolMethod reports whether operations with this method can become tools.
func IsToolMethod(method string) bool {
	return toolMethods[strings.ToUpper(method)]
}

// forEachOperation calls fn for every operation with its {version}
// substituted path, stopping when fn returns false.
func (d *Document) forEachOperation(fn func(item *PathItem, op *Operation, path string, versionInPath bool) bool) {
	if d == nil {
		return
	}
	version := d.DefaultVersion()
	for i := range d.Paths {
		item := &d.Paths[i]
		path, versionInPath := PathWithVersion(item.Path, version)
		for j := range item.Operations {
			if !fn(item, &item.Operations[j], path, versionInPath) {
				return
			}
		}
	}
}

// MergedParameters returns the path-level parameters followed by the
// operation-level ones.
func MergedParameters(item *PathItem, op *Operation) []Parameter {
	merged := make([]Parameter, 0, len(item.Parameters)+len(op.Parameters))
	merged = append(merged, item.Parameters...)
	return append(merged, op.Parameters...)
}

// PathPlaceholders returns the names of the {placeholder} segments of path.
func PathPlaceholders(path string) []string {
	var names []string
	for _, part := range strings.Split(path, "/") {
		if strings.Contains(part, "{") && strings.Contains(part, "}") {
			names = append(names, strings.Trim(part, "{}"))
		}
	}
	return names
}

func toolName(service string, strategy ToolNameStrategy, path string, op *Operation) (string, error) {
	return ToolNameFromOperationID(op.OperationID, RawToolName(service, op.Method, path), strategy)
}

// ToolParser builds the tool list of one service from a Document.
type ToolParser struct {
	doc      *Document
	service  string
	strategy ToolNameStrategy
	rules    []ToolRule
	logger   *zap.Logger
}

// NewToolParser returns a parser. A nil strategy means ShortToolNameStrategy.
func NewToolParser(doc *Document, service string, strategy ToolNameStrategy, rules []ToolRule, logger *zap.Logger) *ToolParser {
	if strategy == nil {
		strategy = ShortToolNameStrategy{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ToolParser{
		doc:      doc,
		service:  service,
		strategy: strategy,
		rules:    rules,
		logger:   logger.Named("parser"),
	}
}

// ParseTools builds one tool per admitted operation. The first operation to
// claim a name wins; later ones are skipped with a warning.
func (p *ToolParser) ParseTools() *Toolset {
	var tools []ToolDescriptor
	seen := map[string]bool{}
	ignored := 0

	if p.doc == nil {
		p.logger.Error("OpenAPI spec is nil")
		return newToolset(nil)
	}
	if len(p.doc.Paths) == 0 {
		p.logger.Error("no paths in OpenAPI spec")
		return newToolset(nil)
	}

	p.doc.forEachOperation(func(item *PathItem, op *Operation, path string, versionInPath bool) bool {
		if !CheckToolRules(p.rules, path, op.Method, *op) {
			p.logger.Debug("skipping operation rejected by rules",
				zap.String("path", path), zap.String("method", op.Method), zap.String("operation_id", op.OperationID))
			ignored++
			return true
		}
		if !IsToolMethod(op.Method) {
			p.logger.Debug("skipping unsupported method", zap.String("path", path), zap.String("method", op.Method))
			ignored++
			return true
		}
		tool, err := p.buildTool(item, op, path, versionInPath)
		if err != nil {
			p.logger.Error("error registering function",
				zap.String("path", path), zap.String("method", strings.ToUpper(op.Method)), zap.Error(err))
			ignored++
			return true
		}
		if seen[tool.Name] {
			p.logger.Warn("function already exists, skipping",
				zap.String("name", tool.Name), zap.String("path", path), zap.String("method", strings.ToUpper(op.Method)))
			ignored++
			return true
		}
		seen[tool.Name] = true
		tools = append(tools, tool)
		p.logger.Debug("registered function",
			zap.String("name", tool.Name),
			zap.String("method", tool.Method),
			zap.String("path", path),
			zap.Any("input_schema", tool.InputSchema))
		return true
	})

	p.logger.Info("parsed OpenAPI spec",
		zap.String("service", p.service), zap.Int("registered", len(tools)), zap.Int("ignored", ignored))
	return newToolset(tools)
}

func (p *ToolParser) buildTool(item *PathItem, op *Operation, path string, versionInPath bool) (ToolDescriptor, error) {
	name, err := toolName(p.service, p.strategy, path, op)
	if err != nil {
		return ToolDescriptor{}, err
	}
	schema, err := buildInputSchema(p.strategy, MergedParameters(item, op), path, versionInPath)
	if err != nil {
		return ToolDescriptor{}, fmt.Errorf("tool %s: %w", name, err)
	}
	return ToolDescriptor{
		Name:        name,
		Description: toolDescription(op, name),
		InputSchema: schema,
		Method:      strings.ToUpper(op.Method),
		Path:        path,
	}, nil
}

// toolDescription prefers the summary, then up to three lines of the
// description, then the operationId or tool name.
func toolDescription(op *Operation, name string) string {
	if op.Summary != "" {
		return op.Summary
	}
	desc := op.Description
	if strings.Contains(desc, "\n") {
		lines := strings.Split(desc, "\n")
		if len(lines) > 3 {
			lines = lines[:3]
		}
		desc = strings.Join(lines, " ")
	}
	if desc != "" {
		return desc
	}
	if op.OperationID != "" {
		return op.OperationID
	}
	return name
}
