// Package ledger holds the stateful booking core: admission control,
// waitlist ordering and the per-occurrence mutual exclusion that keeps
// a class from being oversold.  All failures below are expected,
// recoverable outcomes reported to the caller; none of them indicate a
// corrupted ledger.  The one exception is ErrLedgerCorrupted, raised
// when an internal audit finds an invariant violation.
package ledger

import "errors"

// ErrClassFull is returned when the occurrence has no confirmed slot
// left and the waitlist is disabled or full.  No booking is created.
var ErrClassFull = errors.New("class full")

// ErrDuplicateBooking is returned when the member already holds an
// active (confirmed or waitlisted) booking for the same occurrence.
var ErrDuplicateBooking = errors.New("duplicate booking")

// ErrAlreadyCancelled is returned when cancelling a booking that is
// already cancelled.  The state is never mutated further.
var ErrAlreadyCancelled = errors.New("booking already cancelled")

// ErrNotCancellable is returned when cancelling a booking in a terminal
// attendance state (ATTENDED or NO_SHOW).
var ErrNotCancellable = errors.New("booking not cancellable")

// ErrNotConfirmed is returned when checking in a booking that is not in
// the CONFIRMED state.  Reported rather than ignored so operator
// mistakes are visible.
var ErrNotConfirmed = errors.New("booking not confirmed")

// ErrBookingNotFound is returned by Store implementations when no
// booking exists with the requested ID.
var ErrBookingNotFound = errors.New("booking not found")

// ErrBusy is returned when the per-occurrence section could not be
// acquired within the configured timeout.  Transient; callers may retry
// with backoff, the ledger itself never retries.
var ErrBusy = errors.New("occurrence busy")

// ErrLedgerCorrupted is returned after an audit detects an invariant
// violation (capacity overrun, waitlist gap).  Further mutation on the
// poisoned occurrence is refused rather than compounding the damage.
var ErrLedgerCorrupted = errors.New("ledger corrupted")
