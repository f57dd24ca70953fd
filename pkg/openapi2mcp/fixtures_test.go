package openapi2mcp

import (
	"context"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/require"
)

const controllerSpec = `{
  "openapi": "3.0.0",
  "info": {"title": "AAP Controller", "version": "v2"},
  "paths": {
    "/api/{version}/jobs/{id}/": {
      "parameters": [
        {"name": "version", "in": "path", "required": true, "schema": {"type": "string"}}
      ],
      "get": {
        "operationId": "jobs_read",
        "summary": "Retrieve a job",
        "parameters": [
          {"name": "id", "in": "path", "required": true, "schema": {"type": "integer"}},
          {"name": "fields", "in": "query", "schema": {"type": "string"}}
        ]
      },
      "delete": {
        "operationId": "jobs_delete",
        "summary": "Delete a job",
        "parameters": [
          {"name": "id", "in": "path", "required": true, "schema": {"type": "integer"}}
        ]
      }
    },
    "/v2/jobs/{id}/": {
      "get": {
        "summary": "Job by id",
        "parameters": [
          {"name": "id", "in": "path", "required": true, "schema": {"type": "integer"}}
        ]
      }
    },
    "/api/v2/job_templates/{id}/launch/": {
      "post": {
        "description": "Launch a job template.\nRuns it now.\nReturns the job.\nIgnored line.",
        "parameters": [
          {"name": "id", "in": "path", "required": true, "schema": {"type": "string"}}
        ]
      }
    },
    "/api/v2/ping/": {
      "get": {
        "operationId": "ping",
        "summary": "Ping",
        "parameters": [{"$ref": "#/components/parameters/Format"}]
      },
      "options": {"operationId": "ping_options", "summary": "Options"}
    },
    "/api/v2/hosts/{host_id}/": {
      "get": {
        "operationId": "hosts_read",
        "summary": "Retrieve a host",
        "parameters": [
          {"name": "host_id", "in": "path", "required": true, "schema": {"type": "string"}},
          {"name": "inventory", "in": "path", "required": true, "schema": {"type": "string"}}
        ]
      }
    },
    "/api/v2/text/": {"get": {"operationId": "text_read", "summary": "Plain text"}},
    "/api/v2/empty/": {"post": {"operationId": "empty_create", "summary": "Empty"}},
    "/api/v2/broken/": {"get": {"operationId": "broken_read", "summary": "Always fails"}}
  },
  "components": {
    "parameters": {
      "Format": {"name": "format", "in": "query", "schema": {"type": "string", "enum": ["json"]}}
    }
  }
}`

func loadControllerSpec(t *testing.T) *Document {
	t.Helper()
	doc, err := LoadDocumentFromBytes([]byte(controllerSpec))
	require.NoError(t, err)
	return doc
}

func derivedName(t *testing.T, method, path string) string {
	t.Helper()
	name, err := ToolNameFromOperationID("", RawToolName("controller", method, path), ShortToolNameStrategy{})
	require.NoError(t, err)
	return name
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, result)
	require.Len(t, result.Content, 1)
	text, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected text content, got %T", result.Content[0])
	return text.Text
}

type staticLoader struct {
	doc *Document
	err error
}

func (l *staticLoader) Load(context.Context) (*Document, error) {
	return l.doc, l.err
}
