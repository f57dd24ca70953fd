// Package openapi2mcp exposes the operations of an OpenAPI or Swagger
// description as MCP tools and turns tool calls back into HTTP requests
// against the AAP services the description belongs to.
//
// A Document is loaded by a SpecLoader, filtered by ToolRules and named by a
// ToolNameStrategy into a Toolset by the ToolParser. The ToolCaller resolves
// each call back to its operation, builds the request and sends it to the
// URL the service registry picks for the caller's identity.
package openapi2mcp
