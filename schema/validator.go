// Package schema validates request and state payloads against embedded
// JSON Schemas before they reach the store.
package schema

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/vargaseous/sec-mcptest/errors"
)

// Embedded schema names.
const (
	StateDocument = "state_document.schema.json"
	MapUpdate     = "map_update.schema.json"
	Filters       = "filters.schema.json"
)

//go:embed *.schema.json
var schemaFS embed.FS

// Validator validates JSON payloads against one embedded JSON Schema.
type Validator struct {
	name   string
	schema *jsonschema.Schema
}

// NewValidator creates a new schema validator, loading the named embedded schema.
func NewValidator(name string) (*Validator, error) {
	data, err := schemaFS.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("unknown schema %q: %w", name, err)
	}

	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	if err := compiler.AddResource(name, bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("failed to add embedded schema resource: %w", err)
	}

	compiled, err := compiler.Compile(name)
	if err != nil {
		return nil, fmt.Errorf("failed to compile embedded schema: %w", err)
	}

	return &Validator{name: name, schema: compiled}, nil
}

// MustValidator is NewValidator for schemas known to be embedded. It panics
// on failure.
func MustValidator(name string) *Validator {
	v, err := NewValidator(name)
	if err != nil {
		panic(err)
	}
	return v
}

// Source returns the raw schema document.
func (v *Validator) Source() json.RawMessage {
	data, _ := schemaFS.ReadFile(v.name)
	return data
}

// ValidateJSON checks raw against the schema. Malformed JSON and schema
// violations are both reported as validation errors listing every
// offending location.
func (v *Validator) ValidateJSON(raw []byte) error {
	var doc interface{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return errors.Validation("body", fmt.Sprintf("malformed JSON: %v", err))
	}

	if err := v.schema.Validate(doc); err != nil {
		if validationErr, ok := err.(*jsonschema.ValidationError); ok {
			var problems []string
			collectErrors(validationErr, &problems)
			sort.Strings(problems)
			return errors.ValidationProblems(problems)
		}
		return errors.Validation("body", err.Error())
	}
	return nil
}

// collectErrors recursively collects the leaf validation errors
func collectErrors(err *jsonschema.ValidationError, messages *[]string) {
	if len(err.Causes) == 0 {
		location := err.InstanceLocation
		if location == "" {
			location = "/"
		}
		*messages = append(*messages, fmt.Sprintf("%s: %s", location, err.Message))
		return
	}
	for _, cause := range err.Causes {
		collectErrors(cause, messages)
	}
}
