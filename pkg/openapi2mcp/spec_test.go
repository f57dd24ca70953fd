package openapi2mcp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDocumentFromBytes_JSONKeepsOrder(t *testing.T) {
	doc := loadControllerSpec(t)

	assert.Equal(t, "AAP Controller", doc.Title)
	assert.Equal(t, "v2", doc.Version)
	var paths []string
	for _, item := range doc.Paths {
		paths = append(paths, item.Path)
	}
	assert.Equal(t, []string{
		"/api/{version}/jobs/{id}/",
		"/v2/jobs/{id}/",
		"/api/v2/job_templates/{id}/launch/",
		"/api/v2/ping/",
		"/api/v2/hosts/{host_id}/",
		"/api/v2/text/",
		"/api/v2/empty/",
		"/api/v2/broken/",
	}, paths)

	jobs := doc.Paths[0]
	require.Len(t, jobs.Operations, 2)
	assert.Equal(t, "get", jobs.Operations[0].Method)
	assert.Equal(t, "delete", jobs.Operations[1].Method)
	assert.Equal(t, []Parameter{{Name: "version", In: "path", Required: true, Type: "string"}}, jobs.Parameters)
}

func TestLoadDocumentFromBytes_YAML(t *testing.T) {
	doc, err := LoadDocumentFromBytes([]byte(`
openapi: 3.0.0
info:
  title: Gateway
  version: v1
paths:
  /api/gateway/v1/users/:
    post:
      operationId: users_create
      description: Create a user
    get:
      operationId: users_list
      parameters:
        - name: page
          in: query
          required: false
          schema: {type: integer}
`))
	require.NoError(t, err)

	assert.Equal(t, "v1", doc.DefaultVersion())
	require.Len(t, doc.Paths, 1)
	ops := doc.Paths[0].Operations
	require.Len(t, ops, 2)
	assert.Equal(t, "users_create", ops[0].OperationID)
	assert.Equal(t, "Create a user", ops[0].Description)
	assert.Equal(t, "users_list", ops[1].OperationID)
	assert.Equal(t, []Parameter{{Name: "page", In: "query", Type: "integer"}}, ops[1].Parameters)
}

func TestLoadDocumentFromBytes_Malformed(t *testing.T) {
	for _, input := range []string{
		"{not: [valid",
		"just a string",
		"- a\n- b\n",
	} {
		_, err := LoadDocumentFromBytes([]byte(input))
		assert.ErrorIs(t, err, ErrSpecMalformed, "input %q", input)
	}
}

func TestLoadDocumentFromBytes_NoPaths(t *testing.T) {
	doc, err := LoadDocumentFromBytes([]byte(`{"openapi": "3.0.0", "info": {"title": "T", "version": "1.0"}}`))
	require.NoError(t, err)
	assert.Empty(t, doc.Paths)
	assert.Equal(t, "", doc.DefaultVersion())
}

func TestPathWithVersion(t *testing.T) {
	path, ok := PathWithVersion("/api/{version}/me/", "v2")
	assert.True(t, ok)
	assert.Equal(t, "/api/v2/me/", path)

	path, ok = PathWithVersion("/api/{version}/me/", "")
	assert.False(t, ok)
	assert.Equal(t, "/api/{version}/me/", path)

	path, ok = PathWithVersion("/api/v2/me/", "v2")
	assert.False(t, ok)
	assert.Equal(t, "/api/v2/me/", path)
}

func TestDefaultVersion(t *testing.T) {
	tests := map[string]string{
		"v1":     "v1",
		"v2beta": "v2beta",
		"1.0.0":  "",
		"v0":     "",
		"":       "",
	}
	for version, want := range tests {
		assert.Equal(t, want, (&Document{Version: version}).DefaultVersion(), "version %q", version)
	}
	var doc *Document
	assert.Equal(t, "", doc.DefaultVersion())
}

func TestLoadDocumentFromBytes_JSONEscapesYAMLRejects(t *testing.T) {
	doc, err := LoadDocumentFromBytes([]byte(`{
  "openapi": "3.0.0",
  "info": {"title": "Launch \ud83d\ude80", "version": "v2"},
  "paths": {
    "\/api\/v2\/me\/": {"get": {"operationId": "me_read", "summary": "Who am I"}},
    "\/api\/v2\/jobs\/": {"get": {"operationId": "jobs_list", "summary": "Jobs"}}
  }
}`))
	require.NoError(t, err)

	assert.Equal(t, "Launch 🚀", doc.Title)
	require.Len(t, doc.Paths, 2)
	assert.Equal(t, "/api/v2/me/", doc.Paths[0].Path)
	assert.Equal(t, "/api/v2/jobs/", doc.Paths[1].Path)
}
