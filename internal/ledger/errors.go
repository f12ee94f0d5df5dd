package ledger

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrMalformedInput means the CSV stream itself could not be decoded.
	ErrMalformedInput = errors.New("malformed csv input")
	// ErrPersistence means the trade store rejected a read or a write.
	ErrPersistence = errors.New("trade store failure")
	// ErrInvalidQuery means a balance query carried an unusable cutoff.
	ErrInvalidQuery = errors.New("invalid timestamp")
)

// ValidationError rejects an upload; it carries every failing row in file order.
type ValidationError struct {
	Failures []ValidationFailure
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%d row(s) failed validation", len(e.Failures))
}

// classified tags an underlying error with one of the sentinels above while
// keeping the cause for logging.
type classified struct {
	kind  error
	cause error
}

func (c *classified) Error() string { return c.kind.Error() + ": " + c.cause.Error() }
func (c *classified) Is(target error) bool { return target == c.kind }
func (c *classified) Unwrap() error { return c.cause }

func classify(kind, cause error) error {
	return &classified{kind: kind, cause: cause}
}
