package openapi

import (
	"context"
	_ "embed"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/pkg/errors"
)

//go:embed openapi.yaml
var openapiYAML []byte

// GetSwagger loads and validates the embedded OpenAPI document.
func GetSwagger() (*openapi3.T, error) {
	loader := openapi3.NewLoader()
	swagger, err := loader.LoadFromData(openapiYAML)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load openapi document")
	}
	if err := swagger.Validate(context.Background()); err != nil {
		return nil, errors.Wrap(err, "invalid openapi document")
	}
	return swagger, nil
}
