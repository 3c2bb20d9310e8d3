package schema

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Issue is one validation failure: the dotted/indexed location within the
// document ("root" for top-level failures) and a message.
type Issue struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

// Validator validates documents against named schemas from a Registry,
// compiling each schema at most once through the injected Cache.
//
// All three failure kinds - document invalid, schema malformed, schema not
// found - surface as Issues. The returned error is reserved for
// infrastructure failures (for example the registry's backing store being
// unreadable).
type Validator struct {
	registry Registry
	cache    *Cache
}

// NewValidator creates a Validator backed by the given registry and cache.
func NewValidator(registry Registry, cache *Cache) *Validator {
	if cache == nil {
		cache = NewCache()
	}
	return &Validator{registry: registry, cache: cache}
}

// Validate checks doc against the named schema. A nil, nil return means the
// document is valid.
func (v *Validator) Validate(schemaName string, doc any) ([]Issue, error) {
	sch, err := v.cache.GetOrCompile(schemaName, func() (*jsonschema.Schema, error) {
		return v.compile(schemaName)
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return []Issue{{Path: "root", Message: fmt.Sprintf("schema %q not found", schemaName)}}, nil
		}
		var se *jsonschema.SchemaError
		if errors.As(err, &se) {
			return []Issue{{Path: "root", Message: fmt.Sprintf("schema %q is invalid: %v", schemaName, se.Err)}}, nil
		}
		return nil, err
	}

	err = sch.Validate(doc)
	if err == nil {
		return nil, nil
	}
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return nil, fmt.Errorf("validate against %s: %w", schemaName, err)
	}
	return flatten(ve), nil
}

// compile resolves and compiles a schema by name. The resource URL embeds
// the name so compiler diagnostics point at the right schema.
func (v *Validator) compile(name string) (*jsonschema.Schema, error) {
	raw, err := v.registry.Load(name)
	if err != nil {
		return nil, err
	}
	url := "registry:///" + name + ".schema.json"
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(url, bytes.NewReader(raw)); err != nil {
		return nil, &jsonschema.SchemaError{SchemaURL: url, Err: err}
	}
	return compiler.Compile(url)
}

// flatten walks the cause tree and collects leaf failures, so callers get the
// full enumerated set rather than one aggregate message.
func flatten(ve *jsonschema.ValidationError) []Issue {
	if len(ve.Causes) == 0 {
		return []Issue{{Path: pointerToPath(ve.InstanceLocation), Message: ve.Message}}
	}
	var issues []Issue
	for _, cause := range ve.Causes {
		issues = append(issues, flatten(cause)...)
	}
	return issues
}

// pointerToPath converts a JSON pointer like "/steps/0/id" to dotted form
// ("steps.0.id"). The empty pointer maps to "root".
func pointerToPath(ptr string) string {
	trimmed := strings.TrimPrefix(ptr, "/")
	if trimmed == "" {
		return "root"
	}
	return strings.ReplaceAll(trimmed, "/", ".")
}
