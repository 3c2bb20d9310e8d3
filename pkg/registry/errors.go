package registry

import (
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
)

// NotFoundError reports that a definition, draft, or version is absent.
type NotFoundError struct {
	Kind    Kind
	Key     string
	Version string // empty when the key itself (or its draft) is missing
}

func (e *NotFoundError) Error() string {
	if e.Version == "" {
		return fmt.Sprintf("no draft found for %s %q", e.Kind, e.Key)
	}
	return fmt.Sprintf("%s %q version %q not found", e.Kind, e.Key, e.Version)
}

// ConflictError reports that a draft already exists for a key.
type ConflictError struct {
	Kind Kind
	Key  string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("draft already exists for %s %q", e.Kind, e.Key)
}

// Issue is one structured validation failure: a dotted/indexed path into the
// document and a human-readable message. Path is "root" for top-level issues.
type Issue struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

func (i Issue) String() string { return fmt.Sprintf("%s: %s", i.Path, i.Message) }

// ValidationError carries the complete set of schema violations found in a
// draft body. It is never truncated to the first failure.
type ValidationError struct {
	Issues []Issue
}

func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Issues))
	for i, issue := range e.Issues {
		msgs[i] = issue.String()
	}
	return "schema validation failed: " + strings.Join(msgs, "; ")
}

// ReferenceError carries every broken page reference found in a wizard body,
// so a publisher sees all of them in one round-trip.
type ReferenceError struct {
	Refs []string
}

func (e *ReferenceError) Error() string {
	return "referential integrity check failed: " + strings.Join(e.Refs, "; ")
}

// TransientError wraps a retryable infrastructure failure from the underlying
// store. It never indicates corrupted or partially written state.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient store failure during %s: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// IsNotFound reports whether err is a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// IsConflict reports whether err is a ConflictError.
func IsConflict(err error) bool {
	var c *ConflictError
	return errors.As(err, &c)
}

// isDuplicateKey reports whether err is a unique-constraint violation.
// GORM translates these to ErrDuplicatedKey on drivers that support error
// translation; the string checks cover drivers that do not.
func isDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "Duplicate entry") ||
		strings.Contains(msg, "duplicate key value")
}
