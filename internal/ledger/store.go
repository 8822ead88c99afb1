package ledger

import (
    "context"
    "time"

    "github.com/fitdesk/class-booking/internal/model"
)

// Store is the persistence boundary of the ledger.  Implementations
// must apply each call atomically, but need no locking of their own:
// the ledger only invokes mutating methods while holding the
// per-occurrence section, and the contiguous waitlist positions are
// stored as durable facts, never derived on read.
type Store interface {
    // ActiveByOccurrence returns the CONFIRMED and WAITLISTED bookings
    // for one occurrence, waitlisted entries ordered by position.
    ActiveByOccurrence(ctx context.Context, templateID uint64, startsAt time.Time) ([]model.Booking, error)

    // GetBooking returns a booking in any status, or ErrBookingNotFound.
    GetBooking(ctx context.Context, id uint64) (*model.Booking, error)

    // InsertBooking persists a new booking and assigns its ID.
    InsertBooking(ctx context.Context, b *model.Booking) error

    // UpdateBookings persists status, waitlist position and
    // cancellation fields for the given bookings in one atomic batch.
    // A cancellation plus its waitlist promotion commit together or
    // not at all.
    UpdateBookings(ctx context.Context, bs []*model.Booking) error
}
