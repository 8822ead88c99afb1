package model

import (
    "fmt"
    "time"
)

// Occurrence is one concrete, dated instance of a class template.  It
// is derived by the schedule resolver rather than stored on its own;
// bookings reference it through the (TemplateID, StartsAt) pair.  That
// composite key is also the unit the booking ledger serializes on.
//
// Fields:
//  TemplateID - template this occurrence was resolved from.
//  StartsAt   - concrete start instant in UTC.
//  EndsAt     - concrete end instant in UTC (after StartsAt).
type Occurrence struct {
    TemplateID uint64    // bookings.template_id
    StartsAt   time.Time // bookings.starts_at
    EndsAt     time.Time // derived from the template's end time
}

// OccurrenceKey renders a (templateID, startsAt) pair as a stable string
// key.  The ledger uses it to scope its per-occurrence mutual exclusion
// and the queue events carry it for downstream consumers.
func OccurrenceKey(templateID uint64, startsAt time.Time) string {
    return fmt.Sprintf("%d@%s", templateID, startsAt.UTC().Format(time.RFC3339))
}

// Key returns the occurrence's serialization key.
func (o Occurrence) Key() string {
    return OccurrenceKey(o.TemplateID, o.StartsAt)
}
