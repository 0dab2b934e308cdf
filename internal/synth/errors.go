package synth

import (
	"errors"
	"fmt"
)

// MaxSystemsExceededError is returned when an Enumerate call discovers
// more complete systems than the configured cap. The systems collected
// before the cap was hit are still returned alongside the error.
type MaxSystemsExceededError struct {
	Source  string // the source technology of the search
	Systems int    // systems emitted before aborting
	Limit   int    // the configured cap
}

// Error implements the error interface.
func (e *MaxSystemsExceededError) Error() string {
	return fmt.Sprintf("source %s exceeded max systems cap: %d systems >= %d limit",
		e.Source, e.Systems, e.Limit)
}

// IsMaxSystemsExceededError reports whether err is a
// MaxSystemsExceededError. Uses errors.As to handle wrapped errors.
func IsMaxSystemsExceededError(err error) bool {
	var me *MaxSystemsExceededError
	return errors.As(err, &me)
}
