// pkg/recordschema/registry.go
package recordschema

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed schemas/default.json
var defaultRegistry []byte

// EntityTypes every registry must cover.
var EntityTypes = []string{"APPLICANT", "PARCEL"}

func LoadRegistry(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return parse(data)
}

// Default returns the registry compiled into the binary.
func Default() *Registry {
	reg, err := parse(defaultRegistry)
	if err != nil {
		panic(fmt.Sprintf("embedded record schema registry: %v", err))
	}
	return reg
}

func parse(data []byte) (*Registry, error) {
	var reg Registry
	if err := json.Unmarshal(data, &reg); err != nil {
		return nil, fmt.Errorf("parse registry: %w", err)
	}
	return &reg, nil
}

// Check reports the first structural problem of reg: a missing or duplicated
// entity type, or a schema that does not compile.
func Check(reg *Registry) error {
	seen := make(map[string]bool)
	for _, s := range reg.Schemas {
		if s.EntityType == "" {
			return fmt.Errorf("schema missing entityType")
		}
		if seen[s.EntityType] {
			return fmt.Errorf("duplicate schema for %s", s.EntityType)
		}
		seen[s.EntityType] = true
		if _, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(s.Schema)); err != nil {
			return fmt.Errorf("schema for %s: %w", s.EntityType, err)
		}
	}
	for _, t := range EntityTypes {
		if !seen[t] {
			return fmt.Errorf("no schema for %s", t)
		}
	}
	return nil
}

// Validator holds the compiled schemas. It is safe for concurrent use.
type Validator struct {
	schemas map[string]*gojsonschema.Schema
}

func NewValidator(reg *Registry) (*Validator, error) {
	if err := Check(reg); err != nil {
		return nil, err
	}
	v := &Validator{schemas: make(map[string]*gojsonschema.Schema, len(reg.Schemas))}
	for _, s := range reg.Schemas {
		compiled, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(s.Schema))
		if err != nil {
			return nil, fmt.Errorf("schema for %s: %w", s.EntityType, err)
		}
		v.schemas[s.EntityType] = compiled
	}
	return v, nil
}

// Validate checks payload against the schema of entityType. Violations are
// sorted by field so the output is stable.
func (v *Validator) Validate(entityType string, payload map[string]interface{}) ([]Violation, error) {
	schema, ok := v.schemas[entityType]
	if !ok {
		return nil, fmt.Errorf("no schema for %q", entityType)
	}
	if payload == nil {
		payload = map[string]interface{}{}
	}

	result, err := schema.Validate(gojsonschema.NewGoLoader(payload))
	if err != nil {
		return nil, fmt.Errorf("validate %s payload: %w", entityType, err)
	}
	if result.Valid() {
		return nil, nil
	}

	out := make([]Violation, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		out = append(out, Violation{
			Field:   fieldOf(desc),
			Message: desc.Description(),
			Code:    strings.ToUpper(desc.Type()),
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Field < out[j].Field })
	return out, nil
}

// fieldOf names the offending property. Errors raised on the object itself
// (required, additionalProperties) carry the property in their details.
func fieldOf(desc gojsonschema.ResultError) string {
	if prop, ok := desc.Details()["property"].(string); ok && prop != "" {
		return prop
	}
	field := desc.Field()
	if field == gojsonschema.STRING_ROOT_SCHEMA_PROPERTY {
		return ""
	}
	return field
}
