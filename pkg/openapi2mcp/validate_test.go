package openapi2mcp

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateSpec_OpenAPI3(t *testing.T) {
	err := ValidateSpec(context.Background(), []byte(`
openapi: 3.0.0
info: {title: Gateway, version: v1}
paths:
  /api/gateway/v1/me/:
    get:
      operationId: me_read
      responses:
        "200": {description: OK}
`))
	assert.NoError(t, err)
}

func TestValidateSpec_Swagger2(t *testing.T) {
	err := ValidateSpec(context.Background(), []byte(`{
  "swagger": "2.0",
  "info": {"title": "Controller", "version": "v2"},
  "paths": {
    "/api/v2/jobs/{id}/": {
      "get": {
        "operationId": "jobs_read",
        "parameters": [{"name": "id", "in": "path", "required": true, "type": "integer"}],
        "responses": {"200": {"description": "OK"}}
      }
    }
  }
}`))
	assert.NoError(t, err)
}

func TestValidateSpec_MissingVersionField(t *testing.T) {
	err := ValidateSpec(context.Background(), []byte(`info: {title: T, version: v1}`))
	assert.ErrorIs(t, err, ErrSpecMalformed)
}

func TestValidateSpec_InvalidDocument(t *testing.T) {
	err := ValidateSpec(context.Background(), []byte(`
openapi: 3.0.0
info: {title: T, version: v1}
paths:
  /things/:
    get:
      operationId: things_list
`))
	assert.ErrorContains(t, err, "OpenAPI validation failed")
}
