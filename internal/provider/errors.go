package provider

import (
	"errors"
	"fmt"
)

var (
	// ErrConstraintViolation marks writes rejected by a uniqueness or
	// foreign key constraint, or by an owning ring of the wrong kind.
	// The store is unchanged; callers treat it as "no effect".
	ErrConstraintViolation = errors.New("constraint violation")

	// ErrNotFound is returned for blob names with no backing file. Errors
	// carrying it also match fs.ErrNotExist.
	ErrNotFound = errors.New("not found")

	// ErrUnsupported is returned for an operation a route does not define,
	// such as deleting through a listing address.
	ErrUnsupported = errors.New("operation not supported for route")

	// ErrInvalidPayload is returned for unknown columns or ill-typed values
	// in a mutation payload, filter, sort or projection.
	ErrInvalidPayload = errors.New("invalid payload")
)

// ConstraintError describes a rejected write.
type ConstraintError struct {
	Address string
	Table   string
	Err     error
}

func (e *ConstraintError) Error() string {
	return fmt.Sprintf("%s on %s (%s): %v", ErrConstraintViolation, e.Table, e.Address, e.Err)
}

func (e *ConstraintError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrConstraintViolation) true.
func (e *ConstraintError) Is(target error) bool { return target == ErrConstraintViolation }

// IsConstraintViolation reports whether err is or wraps a ConstraintError.
func IsConstraintViolation(err error) bool {
	return errors.Is(err, ErrConstraintViolation)
}

// errOwnerKind is wrapped by a ConstraintError when a child row targets a
// ring of the other kind.
var errOwnerKind = errors.New("owning key ring has a different kind")

func invalidPayload(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidPayload, fmt.Sprintf(format, args...))
}
