// Package schema validates definition bodies against named, versioned JSON
// schemas. Schemas are data loaded through a Registry and compiled once per
// name into an injected Cache; a schema name like "wizard.v1" is never
// re-resolved after its first successful compile.
package schema

import (
	"fmt"
	"os"
	"path/filepath"
)

// ErrNotFound reports that a named schema does not exist in the registry.
var ErrNotFound = fmt.Errorf("schema not found")

// Registry resolves a schema name to its raw JSON schema document. Results
// are cacheable indefinitely: schemas are versioned by name and never mutated
// in place.
type Registry interface {
	Load(name string) ([]byte, error)
}

// DirRegistry loads schemas from a directory of <name>.schema.json files.
type DirRegistry struct {
	dir string
}

// NewDirRegistry creates a registry rooted at dir.
func NewDirRegistry(dir string) *DirRegistry {
	return &DirRegistry{dir: dir}
}

// Load reads <dir>/<name>.schema.json. Returns ErrNotFound if the file does
// not exist.
func (r *DirRegistry) Load(name string) ([]byte, error) {
	path := filepath.Join(r.dir, name+".schema.json")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return nil, fmt.Errorf("read schema %s: %w", name, err)
	}
	return data, nil
}

// MapRegistry serves schemas from an in-memory map. Used in tests and for
// embedding a fixed schema set.
type MapRegistry map[string][]byte

// Load returns the schema document for name, or ErrNotFound.
func (r MapRegistry) Load(name string) ([]byte, error) {
	doc, ok := r[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return doc, nil
}
