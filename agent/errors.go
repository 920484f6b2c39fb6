package agent

import "github.com/pkg/errors"

var (
	// ErrAlreadyRunning rejects a Start while another run is active.
	ErrAlreadyRunning = errors.New("a run is already running")

	// ErrNoActiveRun rejects Cancel and Status when no run exists.
	ErrNoActiveRun = errors.New("no active run")

	// ErrInvalidConfiguration rejects malformed control surface input, such
	// as an interval outside the allowed set.
	ErrInvalidConfiguration = errors.New("invalid configuration")
)
