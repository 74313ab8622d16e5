package schema

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// DocumentValidator checks extracted page records against the schema.
type DocumentValidator struct {
	compiled *jsonschema.Schema
}

// Compile builds a validator for page records produced under s.
func (s *Schema) Compile() (*DocumentValidator, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", bytes.NewReader(s.raw)); err != nil {
		return nil, fmt.Errorf("failed to load extraction schema: %w", err)
	}
	compiled, err := compiler.Compile("schema.json")
	if err != nil {
		return nil, fmt.Errorf("failed to compile extraction schema: %w", err)
	}
	return &DocumentValidator{compiled: compiled}, nil
}

// Validate reports whether doc conforms to the schema.
func (v *DocumentValidator) Validate(doc any) error {
	if err := v.compiled.Validate(doc); err != nil {
		return fmt.Errorf("page record does not match schema: %w", err)
	}
	return nil
}

var (
	validatorMu    sync.Mutex
	validatorCache = map[string]*DocumentValidator{}
)

// ValidateDocument validates doc against s, caching the compiled schema.
func (s *Schema) ValidateDocument(doc any) error {
	key := string(s.raw)

	validatorMu.Lock()
	v, ok := validatorCache[key]
	validatorMu.Unlock()

	if !ok {
		var err error
		v, err = s.Compile()
		if err != nil {
			return err
		}
		validatorMu.Lock()
		validatorCache[key] = v
		validatorMu.Unlock()
	}
	return v.Validate(doc)
}
