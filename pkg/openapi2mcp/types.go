// types.go
package openapi2mcp

import (
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"
)

// Property is one argument in a tool's input schema.
type Property struct {
	Type        string `json:"type"`
	Description string `json:"description"`
}

// InputSchema is the JSON Schema of a tool's arguments.
type InputSchema struct {
	Type                 string              `json:"type"`
	Properties           map[string]Property `json:"properties"`
	Required             []string            `json:"required"`
	AdditionalProperties bool                `json:"additionalProperties"`
}

func newInputSchema() InputSchema {
	return InputSchema{
		Type:       "object",
		Properties: map[string]Property{},
		Required:   []string{},
	}
}

func (s *InputSchema) isRequired(name string) bool {
	for _, r := range s.Required {
		if r == name {
			return true
		}
	}
	return false
}

// ToolDescriptor is a callable tool built from one operation.
type ToolDescriptor struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	InputSchema InputSchema `json:"inputSchema"`
	// Method and Path identify the operation; informational only, the caller
	// always re-derives the operation from the current document.
	Method string `json:"method"`
	Path   string `json:"path"`
}

// MCPTool converts the descriptor into an mcp.Tool.
func (t ToolDescriptor) MCPTool() mcp.Tool {
	schema, _ := json.Marshal(t.InputSchema)
	return mcp.NewToolWithRawSchema(t.Name, t.Description, schema)
}

// Toolset is the immutable result of one parse pass.
type Toolset struct {
	tools  []ToolDescriptor
	byName map[string]int
}

func newToolset(tools []ToolDescriptor) *Toolset {
	ts := &Toolset{tools: tools, byName: make(map[string]int, len(tools))}
	for i, t := range tools {
		ts.byName[t.Name] = i
	}
	return ts
}

// Tools returns the tools in document order.
func (ts *Toolset) Tools() []ToolDescriptor {
	if ts == nil {
		return nil
	}
	out := make([]ToolDescriptor, len(ts.tools))
	copy(out, ts.tools)
	return out
}

// Names returns the tool names in document order.
func (ts *Toolset) Names() []string {
	if ts == nil {
		return nil
	}
	names := make([]string, len(ts.tools))
	for i, t := range ts.tools {
		names[i] = t.Name
	}
	return names
}

// Lookup returns the tool with the given name.
func (ts *Toolset) Lookup(name string) (ToolDescriptor, bool) {
	if ts == nil {
		return ToolDescriptor{}, false
	}
	i, ok := ts.byName[name]
	if !ok {
		return ToolDescriptor{}, false
	}
	return ts.tools[i], true
}

// Len returns the number of tools.
func (ts *Toolset) Len() int {
	if ts == nil {
		return 0
	}
	return len(ts.tools)
}
