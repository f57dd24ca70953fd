// schema.go
package openapi2mcp

import (
	"fmt"
	"strings"
)

// schemaTypes are the JSON Schema types a parameter may declare; anything
// else is exposed as a string.
var schemaTypes = map[string]bool{
	"string": true, "integer": true, "boolean": true, "number": true,
}

// buildInputSchema builds the input schema of one operation.
// Placeholders found in the path become required strings. Declared path and
// query parameters follow, keeping their type when it is a JSON scalar.
func buildInputSchema(strategy ToolNameStrategy, params []Parameter, path string, versionInPath bool) (InputSchema, error) {
	schema := newInputSchema()

	for _, placeholder := range PathPlaceholders(path) {
		if versionInPath && placeholder == DefaultVersionParamName {
			continue
		}
		name, err := strategy.NormalizeToolParameterName(placeholder)
		if err != nil {
			return schema, fmt.Errorf("path parameter %q: %w", placeholder, err)
		}
		schema.Properties[name] = Property{
			Type:        "string",
			Description: fmt.Sprintf("Path parameter %s", placeholder),
		}
		if !schema.isRequired(name) {
			schema.Required = append(schema.Required, name)
		}
	}

	for _, param := range params {
		if param.In != "path" && param.In != "query" {
			continue
		}
		if versionInPath && param.In == "path" && param.Name == DefaultVersionParamName {
			continue
		}
		name, err := strategy.NormalizeToolParameterName(param.Name)
		if err != nil {
			return schema, fmt.Errorf("%s parameter %q: %w", param.In, param.Name, err)
		}
		typ := strings.ToLower(param.Type)
		if !schemaTypes[typ] {
			typ = "string"
		}
		desc := param.Description
		if desc == "" {
			desc = fmt.Sprintf("%s parameter %s", param.In, param.Name)
		}
		schema.Properties[name] = Property{Type: typ, Description: desc}
		if param.Required && !schema.isRequired(name) {
			schema.Required = append(schema.Required, name)
		}
	}
	return schema, nil
}

// declaredArgumentNames maps schema property names back to the parameter
// names the operation declares, for the parameters whose name the strategy
// rewrote. Names that are themselves declared are left alone.
func declaredArgumentNames(strategy ToolNameStrategy, params []Parameter) map[string]string {
	declared := make(map[string]bool, len(params))
	for _, param := range params {
		declared[param.Name] = true
	}
	names := map[string]string{}
	for _, param := range params {
		if param.In != "path" && param.In != "query" {
			continue
		}
		normalized, err := strategy.NormalizeToolParameterName(param.Name)
		if err != nil || normalized == param.Name || declared[normalized] {
			continue
		}
		names[normalized] = param.Name
	}
	return names
}
