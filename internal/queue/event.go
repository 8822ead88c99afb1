// Package queue defines message payloads exchanged over the message
// broker and the background consumer that records them.  Events are
// published after a ledger operation commits, never inside the
// per-occurrence critical section.
package queue

// Event type identifiers carried in BookingEvent.Event.
const (
    EventBookingConfirmed  = "booking.confirmed"
    EventBookingWaitlisted = "booking.waitlisted"
    EventBookingCancelled  = "booking.cancelled"
    EventWaitlistPromoted  = "waitlist.promoted"
)

// BookingEvent is published on every booking state change.  It carries
// enough information for downstream consumers to log, notify or feed
// analytics without querying the primary database.
type BookingEvent struct {
    Event            string `json:"event"`
    BookingID        uint64 `json:"booking_id"`
    MemberID         uint64 `json:"member_id"`
    TemplateID       uint64 `json:"template_id"`
    ClassName        string `json:"class_name"`
    OccurrenceKey    string `json:"occurrence_key"`
    StartsAt         string `json:"starts_at"`
    EndsAt           string `json:"ends_at"`
    Status           string `json:"status"`
    WaitlistPosition *int   `json:"waitlist_position,omitempty"`
    Reason           string `json:"reason,omitempty"`
    OccurredAt       string `json:"occurred_at"`
}
