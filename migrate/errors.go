package migrate

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidCatalog indicates a catalog that can never be applied safely.
	ErrInvalidCatalog = errors.New("invalid migration catalog")

	// ErrLockTimeout indicates another process held the migration lock for too long.
	ErrLockTimeout = errors.New("timed out waiting for migration lock")
)

// VersionParseError reports a malformed dotted version string.
type VersionParseError struct {
	Value   string
	Segment int
	Reason  string
}

func (e *VersionParseError) Error() string {
	return fmt.Sprintf("invalid version %q: %s", e.Value, e.Reason)
}

// UnitError wraps the failure of a single migration unit. The unit's transaction has
// been rolled back and the ledger still holds the previous version.
type UnitError struct {
	Version     string
	Description string
	Err         error
}

func (e *UnitError) Error() string {
	return fmt.Sprintf("migration %s (%s): %v", e.Version, e.Description, e.Err)
}

func (e *UnitError) Unwrap() error {
	return e.Err
}
