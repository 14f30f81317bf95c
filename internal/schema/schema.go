// Package schema reflects Go types into JSON Schema documents and validates
// decoded JSON values against them.
package schema

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	invopop "github.com/invopop/jsonschema"
	"github.com/kaptinlin/jsonschema"
)

type Schema map[string]any

var reflector = &invopop.Reflector{
	Anonymous:                 true,
	DoNotReference:            true,
	ExpandedStruct:            true,
	AllowAdditionalProperties: false,
}

// Reflect builds the schema for v's type. Struct fields without omitempty are
// required; nested structs are inlined.
func Reflect(v any) (Schema, error) {
	reflected := reflector.Reflect(v)
	bytes, err := json.Marshal(reflected)
	if err != nil {
		return nil, fmt.Errorf("failed to reflect schema: %w", err)
	}
	out := Schema{}
	if err := json.Unmarshal(bytes, &out); err != nil {
		return nil, fmt.Errorf("failed to reflect schema: %w", err)
	}
	delete(out, "$schema")
	return out, nil
}

// MustReflect is Reflect for package-level schema declarations.
func MustReflect(v any) Schema {
	s, err := Reflect(v)
	if err != nil {
		panic(err)
	}
	return s
}

func (s Schema) String() string {
	bytes, err := json.Marshal(s)
	if err != nil {
		return ""
	}
	return string(bytes)
}

// Validator is a compiled schema.
type Validator struct {
	compiled *jsonschema.Schema
}

func (s Schema) Compile() (*Validator, error) {
	if s == nil {
		return nil, fmt.Errorf("failed to compile schema: schema is nil")
	}
	bytes, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema: %w", err)
	}
	compiled, err := jsonschema.NewCompiler().Compile(bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema: %w", err)
	}
	return &Validator{compiled: compiled}, nil
}

// ValidateJSON decodes raw and validates the decoded value.
func (v *Validator) ValidateJSON(raw []byte) error {
	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return fmt.Errorf("output is not valid JSON: %w", err)
	}
	return v.Validate(decoded)
}

func (v *Validator) Validate(value any) error {
	result := v.compiled.Validate(value)
	if result.Valid {
		return nil
	}
	return fmt.Errorf("schema validation failed: %s", describeErrors(result))
}

func describeErrors(result *jsonschema.EvaluationResult) string {
	messages := collectErrors(result, nil)
	sort.Strings(messages)
	if len(messages) == 0 {
		return "value does not match schema"
	}
	return strings.Join(messages, "; ")
}

func collectErrors(result *jsonschema.EvaluationResult, messages []string) []string {
	if result == nil || result.Valid {
		return messages
	}
	location := result.InstanceLocation
	if location == "" {
		location = "/"
	}
	for keyword, evalErr := range result.Errors {
		if evalErr == nil {
			continue
		}
		messages = append(messages, fmt.Sprintf("%s %s: %s", location, keyword, evalErr.Message))
	}
	for _, detail := range result.Details {
		messages = collectErrors(detail, messages)
	}
	return messages
}
