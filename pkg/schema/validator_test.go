package schema

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const stepSchema = `{
	"type": "object",
	"required": ["steps"],
	"properties": {
		"steps": {
			"type": "array",
			"minItems": 1,
			"items": {
				"type": "object",
				"required": ["id", "title"],
				"properties": {
					"id": {"type": "string", "minLength": 1},
					"title": {"type": "string"}
				}
			}
		}
	}
}`

// countingRegistry records how many times each schema is loaded.
type countingRegistry struct {
	mu    sync.Mutex
	inner MapRegistry
	loads map[string]int
}

func (r *countingRegistry) Load(name string) ([]byte, error) {
	r.mu.Lock()
	r.loads[name]++
	r.mu.Unlock()
	return r.inner.Load(name)
}

func newTestValidator() (*Validator, *countingRegistry) {
	reg := &countingRegistry{
		inner: MapRegistry{
			"wizard.v1": []byte(stepSchema),
			"broken.v1": []byte(`{"type": 42}`),
		},
		loads: make(map[string]int),
	}
	return NewValidator(reg, NewCache()), reg
}

func TestValidator_ValidDocument(t *testing.T) {
	v, _ := newTestValidator()

	issues, err := v.Validate("wizard.v1", map[string]any{
		"steps": []any{
			map[string]any{"id": "intro", "title": "Welcome"},
		},
	})
	require.NoError(t, err)
	assert.Empty(t, issues)
}

func TestValidator_InvalidDocument(t *testing.T) {
	v, _ := newTestValidator()

	// Two independent violations: both must be enumerated.
	issues, err := v.Validate("wizard.v1", map[string]any{
		"steps": []any{
			map[string]any{"id": "intro"},
			map[string]any{"id": "", "title": "Empty ID"},
		},
	})
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(issues), 2)

	paths := make([]string, len(issues))
	for i, issue := range issues {
		paths[i] = issue.Path
		assert.NotEmpty(t, issue.Message)
	}
	assert.Contains(t, paths, "steps.0")
	assert.Contains(t, paths, "steps.1.id")
}

func TestValidator_TopLevelFailurePath(t *testing.T) {
	v, _ := newTestValidator()

	issues, err := v.Validate("wizard.v1", map[string]any{})
	require.NoError(t, err)
	require.Len(t, issues, 1)
	assert.Equal(t, "root", issues[0].Path)
}

func TestValidator_SchemaNotFound(t *testing.T) {
	v, _ := newTestValidator()

	issues, err := v.Validate("nope.v1", map[string]any{})
	require.NoError(t, err)
	require.Len(t, issues, 1)
	assert.Equal(t, "root", issues[0].Path)
	assert.Contains(t, issues[0].Message, `"nope.v1" not found`)
}

func TestValidator_MalformedSchema(t *testing.T) {
	v, _ := newTestValidator()

	issues, err := v.Validate("broken.v1", map[string]any{})
	require.NoError(t, err)
	require.Len(t, issues, 1)
	assert.Contains(t, issues[0].Message, "broken.v1")
	assert.Contains(t, issues[0].Message, "invalid")
}

func TestValidator_CompilesOnce(t *testing.T) {
	v, reg := newTestValidator()

	for i := 0; i < 5; i++ {
		_, err := v.Validate("wizard.v1", map[string]any{
			"steps": []any{map[string]any{"id": "a", "title": "A"}},
		})
		require.NoError(t, err)
	}
	assert.Equal(t, 1, reg.loads["wizard.v1"])
}

func TestValidator_FailedCompileRetried(t *testing.T) {
	reg := &countingRegistry{
		inner: MapRegistry{},
		loads: make(map[string]int),
	}
	cache := NewCache()
	v := NewValidator(reg, cache)

	_, err := v.Validate("late.v1", map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, 0, cache.Size())

	// The schema shows up later; the next validation compiles and caches it.
	reg.inner["late.v1"] = []byte(`{"type": "object"}`)
	issues, err := v.Validate("late.v1", map[string]any{})
	require.NoError(t, err)
	assert.Empty(t, issues)
	assert.Equal(t, 1, cache.Size())
}

func TestPointerToPath(t *testing.T) {
	tests := []struct {
		ptr, want string
	}{
		{"", "root"},
		{"/steps", "steps"},
		{"/steps/0/id", "steps.0.id"},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, pointerToPath(tc.ptr))
	}
}
