package session

import (
	"errors"
	"fmt"
)

// NotFoundError reports a missing session row.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("session %q not found", e.ID)
}

// ExpiredError reports a session past its expires_at deadline. The row still
// exists but is unusable.
type ExpiredError struct {
	ID string
}

func (e *ExpiredError) Error() string {
	return fmt.Sprintf("session %q has expired", e.ID)
}

// IsNotFound reports whether err is a session NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// IsExpired reports whether err is an ExpiredError.
func IsExpired(err error) bool {
	var ex *ExpiredError
	return errors.As(err, &ex)
}
