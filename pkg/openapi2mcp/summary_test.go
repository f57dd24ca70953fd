package openapi2mcp

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteToolSummary(t *testing.T) {
	tools := NewToolParser(loadControllerSpec(t), "controller", nil, nil, nil).ParseTools()

	var buf bytes.Buffer
	WriteToolSummary(&buf, tools)

	assert.Equal(t, "Total tools: 9\nMethods:\n  DELETE: 1\n  GET: 6\n  POST: 2\n", buf.String())
}

func TestWriteToolSummary_Empty(t *testing.T) {
	var buf bytes.Buffer
	WriteToolSummary(&buf, nil)
	assert.Equal(t, "Total tools: 0\n", buf.String())
}

func TestWriteToolsJSON(t *testing.T) {
	tools := NewToolParser(loadControllerSpec(t), "controller", nil, nil, nil).ParseTools()

	var buf bytes.Buffer
	require.NoError(t, WriteToolsJSON(&buf, tools))

	var decoded []ToolDescriptor
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, tools.Tools(), decoded)

	buf.Reset()
	require.NoError(t, WriteToolsJSON(&buf, nil))
	assert.Equal(t, "[]\n", buf.String())
}

func TestWriteMarkdownDoc(t *testing.T) {
	doc := loadControllerSpec(t)
	tools := NewToolParser(doc, "controller", nil, nil, nil).ParseTools()

	var buf bytes.Buffer
	require.NoError(t, WriteMarkdownDoc(&buf, doc, tools))
	out := buf.String()

	assert.True(t, strings.HasPrefix(out, "# MCP Tools Documentation\n\n**API Title:** AAP Controller\n\n**Version:** v2\n\n"))
	assert.Contains(t, out, "## jobs_read\n\n`GET /api/v2/jobs/{id}/`\n\nRetrieve a job\n\n")
	assert.Contains(t, out, "| `id` | integer | yes | path parameter id |\n")
	assert.Contains(t, out, "| `fields` | string |  | query parameter fields |\n")
	assert.Contains(t, out, "## text_read\n\n`GET /api/v2/text/`\n\nPlain text\n\n_No arguments._\n\n")
}
