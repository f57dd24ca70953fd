// validate.go
package openapi2mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/getkin/kin-openapi/openapi2"
	"github.com/getkin/kin-openapi/openapi2conv"
	"github.com/getkin/kin-openapi/openapi3"
	"github.com/invopop/yaml"
)

// ValidateSpec runs full structural validation over a raw API description.
// Swagger 2.0 documents are converted to OpenAPI 3 first. Tool generation
// does not depend on this; it is a diagnostic for spec authors.
func ValidateSpec(ctx context.Context, data []byte) error {
	var probe struct {
		Swagger string `json:"swagger"`
		OpenAPI string `json:"openapi"`
	}
	if err := yaml.Unmarshal(data, &probe); err != nil {
		return fmt.Errorf("%w: %v", ErrSpecMalformed, err)
	}

	var doc *openapi3.T
	switch {
	case strings.HasPrefix(probe.Swagger, "2"):
		var doc2 openapi2.T
		if err := yaml.Unmarshal(data, &doc2); err != nil {
			return fmt.Errorf("%w: %v", ErrSpecMalformed, err)
		}
		converted, err := openapi2conv.ToV3(&doc2)
		if err != nil {
			return fmt.Errorf("converting swagger %s document: %w", probe.Swagger, err)
		}
		doc = converted
	case probe.OpenAPI != "":
		loaded, err := openapi3.NewLoader().LoadFromData(data)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrSpecMalformed, err)
		}
		doc = loaded
	default:
		return fmt.Errorf("%w: neither a swagger nor an openapi version field is present", ErrSpecMalformed)
	}

	if err := doc.Validate(ctx); err != nil {
		return fmt.Errorf("OpenAPI validation failed: %w", err)
	}
	return nil
}
