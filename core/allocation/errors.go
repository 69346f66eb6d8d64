package allocation

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidThrusterID is returned when a reconfiguration names a thruster
	// that is not part of the layout.
	ErrInvalidThrusterID = errors.New("invalid thruster id")
	// ErrRequestRejected is returned for malformed wrench requests.
	ErrRequestRejected = errors.New("wrench request rejected")
	// ErrUnachievable is returned when the solver did not converge within the
	// de-rating budget.
	ErrUnachievable = errors.New("wrench unachievable")
)

// ValidationError reports a malformed layout description. It is fatal at
// startup.
type ValidationError struct {
	Thruster string
	Reason   string
}

func (e *ValidationError) Error() string {
	if e.Thruster == "" {
		return fmt.Sprintf("invalid layout: %s", e.Reason)
	}
	return fmt.Sprintf("invalid layout: thruster %s: %s", e.Thruster, e.Reason)
}
