package vault

import (
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// VersionConflictError is returned when a version-creating commit loses the
// compare-and-swap on its parent's version head: another writer advanced the
// lineage between the caller's read and its commit. This is the only
// retryable failure in the commit path; the caller must re-read the parent
// and resubmit. Retry is never automatic.
type VersionConflictError struct {
	ParentID string
	Expected int
	Observed int // 0 when the conflict was detected by the transaction aborting
}

func (e *VersionConflictError) Error() string {
	if e.Observed > 0 {
		return fmt.Sprintf("version conflict on parent %s: expected version %d, observed %d",
			e.ParentID, e.Expected, e.Observed)
	}
	return fmt.Sprintf("version conflict on parent %s: lineage advanced past version %d during commit",
		e.ParentID, e.Expected)
}

// IsVersionConflict returns true if the error is a VersionConflictError.
func IsVersionConflict(err error) bool {
	var conflict *VersionConflictError
	return errors.As(err, &conflict)
}

// NotFoundError indicates a referenced artifact does not exist in either hot
// or cold storage.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("artifact %s not found", e.ID)
}

// IsNotFound returns true if the error indicates a missing record, either a
// typed NotFoundError or a raw Redis key miss (redis.Nil).
func IsNotFound(err error) bool {
	var notFound *NotFoundError
	return errors.As(err, &notFound) || errors.Is(err, redis.Nil)
}
