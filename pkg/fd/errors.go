package fd

import (
	"errors"
	"fmt"
)

var (
	// ErrInconsistent is the failure signal of the store. Every error that
	// means "this branch has no solution" wraps it, so search can tell a
	// dead end from a programming error with IsFailure.
	ErrInconsistent = errors.New("constraint store is inconsistent")

	// ErrDomainEmpty is returned when a narrowing leaves a variable without values.
	ErrDomainEmpty = fmt.Errorf("%w: domain became empty", ErrInconsistent)

	// ErrInvalidArgument reports bad input at construction time.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrNotBound is returned by TryValue on a variable with more than one value.
	ErrNotBound = errors.New("variable is not bound")
)

// IsFailure reports whether err is a propagation failure rather than a
// usage or internal error.
func IsFailure(err error) bool {
	return errors.Is(err, ErrInconsistent)
}

// Fail builds a failure error with a formatted reason.
func Fail(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInconsistent, fmt.Sprintf(format, args...))
}
