package openapi2mcp

import "errors"

var (
	// ErrSpecUnavailable is returned when the API description cannot be read.
	ErrSpecUnavailable = errors.New("openapi spec unavailable")
	// ErrSpecMalformed is returned when the content is neither JSON nor YAML,
	// or does not describe a document.
	ErrSpecMalformed = errors.New("openapi spec malformed")
	// ErrIllegalName is returned when a tool or parameter name cannot be made
	// to satisfy the MCP naming rules.
	ErrIllegalName = errors.New("illegal tool name")
)
