package model

import "time"

// BookingStatus enumerates the states a booking moves through.  A
// booking is created CONFIRMED or WAITLISTED by admission control;
// CANCELLED and ATTENDED are terminal; NO_SHOW is set by the sweep for
// confirmed bookings whose occurrence passed without a check-in.
type BookingStatus string

const (
    StatusConfirmed  BookingStatus = "CONFIRMED"
    StatusWaitlisted BookingStatus = "WAITLISTED"
    StatusCancelled  BookingStatus = "CANCELLED"
    StatusAttended   BookingStatus = "ATTENDED"
    StatusNoShow     BookingStatus = "NO_SHOW"
)

// Active reports whether the status still occupies a capacity or
// waitlist slot.  Duplicate detection only considers active bookings, so
// a member may re-book after cancelling.
func (s BookingStatus) Active() bool {
    return s == StatusConfirmed || s == StatusWaitlisted
}

// Booking records one member's reservation for one occurrence of a
// class.  The booking ledger owns all bookings exclusively; the member
// is referenced by ID only.
//
// Fields:
//  ID                 - primary key identifier.
//  TemplateID         - class template of the booked occurrence.
//  StartsAt           - start instant of the booked occurrence (UTC).
//  MemberID           - member who booked; identity comes from the token.
//  Status             - see BookingStatus.
//  WaitlistPosition   - 1-based queue position; set only while WAITLISTED.
//  CreatedAt          - creation timestamp.
//  CancelledAt        - when the booking was cancelled (nullable).
//  CancellationReason - caller-supplied reason (nullable).
type Booking struct {
    ID                 uint64        // bookings.id
    TemplateID         uint64        // bookings.template_id
    StartsAt           time.Time     // bookings.starts_at
    MemberID           uint64        // bookings.member_id
    Status             BookingStatus // bookings.status
    WaitlistPosition   *int          // bookings.waitlist_position (nullable)
    CreatedAt          time.Time     // bookings.created_at
    CancelledAt        *time.Time    // bookings.cancelled_at (nullable)
    CancellationReason *string       // bookings.cancellation_reason (nullable)
}

// OccurrenceKey returns the serialization key of the occurrence this
// booking belongs to.
func (b *Booking) OccurrenceKey() string {
    return OccurrenceKey(b.TemplateID, b.StartsAt)
}
