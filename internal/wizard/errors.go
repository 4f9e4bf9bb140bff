package wizard

import "errors"

var (
	ErrSessionNotFound = errors.New("wizard: session not found")
	ErrConflict        = errors.New("wizard: session was modified concurrently")

	// ErrInvalidStep is returned for a step name outside the flow, or confirm where a selection is expected.
	ErrInvalidStep       = errors.New("wizard: invalid step")
	ErrStepNotReached    = errors.New("wizard: step not reached yet")
	ErrEmptySelection    = errors.New("wizard: selection id is required")
	ErrUnknownOption     = errors.New("wizard: option not offered at this step")
	ErrSelectionRequired = errors.New("wizard: current step has no selection")
	ErrTerminalStep      = errors.New("wizard: confirm is the last step")
	ErrFirstStep         = errors.New("wizard: already at the first step")
	ErrNotReady          = errors.New("wizard: selection incomplete")
	ErrInvalidState      = errors.New("wizard: inconsistent selection state")
	ErrInvalidPolicy     = errors.New("wizard: unknown advance policy")
	ErrBookingRejected   = errors.New("wizard: booking rejected by backend")
)
