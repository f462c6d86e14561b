package internal

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/getkin/kin-openapi/openapi3"
)

//go:embed openapi.yaml
var openapiSpec []byte

const (
	SchemaEventBatch        = "EventBatch"
	SchemaTranscodeResponse = "TranscodeResponse"
)

// API wraps the embedded OpenAPI document.
type API struct {
	doc *openapi3.T
}

// LoadAPI parses and validates the embedded OpenAPI document.
func LoadAPI(ctx context.Context) (*API, error) {
	loader := openapi3.NewLoader()
	loader.Context = ctx
	doc, err := loader.LoadFromData(openapiSpec)
	if err != nil {
		return nil, fmt.Errorf("failed to load openapi document: %w", err)
	}
	if err := doc.Validate(ctx); err != nil {
		return nil, fmt.Errorf("failed to validate openapi document: %w", err)
	}
	return &API{doc: doc}, nil
}

// MustLoadAPI is LoadAPI for package initialization and tests.
func MustLoadAPI() *API {
	api, err := LoadAPI(context.Background())
	if err != nil {
		panic(err)
	}
	return api
}

// Validate checks a decoded JSON value (as produced by json.Unmarshal into
// an any) against the named component schema.
func (a *API) Validate(schema string, value any) error {
	ref, ok := a.doc.Components.Schemas[schema]
	if !ok || ref.Value == nil {
		return fmt.Errorf("unknown schema %q", schema)
	}
	if err := ref.Value.VisitJSON(value); err != nil {
		return fmt.Errorf("%s: %w", schema, err)
	}
	return nil
}
