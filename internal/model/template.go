package model

import (
    "errors"
    "time"
)

// RecurrenceKind discriminates between the two scheduling modes a class
// template can have.  Exactly one kind is set per template.
type RecurrenceKind string

const (
    // RecurrenceWeekly repeats the class every week on a fixed weekday.
    RecurrenceWeekly RecurrenceKind = "WEEKLY"
    // RecurrenceOneTime runs the class exactly once on a fixed date.
    RecurrenceOneTime RecurrenceKind = "ONE_TIME"
)

// Recurrence is a tagged variant describing when a class runs.  For
// WEEKLY templates DayOfWeek is meaningful and Date is ignored; for
// ONE_TIME templates Date is meaningful and DayOfWeek is ignored.
// Weekday numbering follows Go's time.Weekday (Sunday = 0).  Start and
// end times are minutes after midnight in UTC; the whole system works
// in a single fixed timezone so occurrences never drift per caller.
//
// Fields:
//  Kind        - WEEKLY or ONE_TIME.
//  DayOfWeek   - weekday for WEEKLY templates (Sunday = 0).
//  Date        - calendar date (midnight UTC) for ONE_TIME templates.
//  StartMinute - class start, minutes after midnight UTC.
//  EndMinute   - class end, minutes after midnight UTC (after StartMinute).
type Recurrence struct {
    Kind        RecurrenceKind // class_templates.recurrence_kind
    DayOfWeek   time.Weekday   // class_templates.day_of_week (WEEKLY)
    Date        time.Time      // class_templates.date (ONE_TIME)
    StartMinute int            // class_templates.start_minute
    EndMinute   int            // class_templates.end_minute
}

// ClassTemplate defines a bookable class: its capacity, waitlist policy,
// recurrence rule and the timing windows that gate booking and free
// cancellation.  Templates are created and edited by an administrative
// collaborator; the booking engine only reads them.
//
// Fields:
//  ID                - primary key identifier.
//  Name              - display name of the class.
//  Capacity          - maximum number of CONFIRMED bookings (>= 1).
//  WaitlistEnabled   - whether a waitlist opens once the class is full.
//  WaitlistCapacity  - maximum number of WAITLISTED bookings (>= 0).
//  Recurrence        - weekly rule or one-off date, see Recurrence.
//  BookingWindowDays - how many days in advance a member may book.
//  CancelWindowHours - minimum lead time before start for free cancellation.
//  CreatedAt         - creation timestamp.
//  UpdatedAt         - last update timestamp.
type ClassTemplate struct {
    ID                uint64     // class_templates.id
    Name              string     // class_templates.name
    Capacity          int        // class_templates.capacity
    WaitlistEnabled   bool       // class_templates.waitlist_enabled
    WaitlistCapacity  int        // class_templates.waitlist_capacity
    Recurrence        Recurrence // recurrence columns, see Recurrence
    BookingWindowDays int        // class_templates.booking_window_days
    CancelWindowHours int        // class_templates.cancel_window_hours
    CreatedAt         time.Time  // class_templates.created_at
    UpdatedAt         time.Time  // class_templates.updated_at
}

const minutesPerDay = 24 * 60

// Validate checks the structural invariants of a template: a positive
// capacity, a non-negative waitlist capacity, a sane time range and a
// well-formed recurrence.  It is called before a template is persisted.
func (t *ClassTemplate) Validate() error {
    if t.Name == "" {
        return errors.New("name is required")
    }
    if t.Capacity < 1 {
        return errors.New("capacity must be at least 1")
    }
    if t.WaitlistCapacity < 0 {
        return errors.New("waitlist capacity must not be negative")
    }
    if t.BookingWindowDays < 0 {
        return errors.New("booking window must not be negative")
    }
    if t.CancelWindowHours < 0 {
        return errors.New("cancel window must not be negative")
    }
    r := t.Recurrence
    if r.StartMinute < 0 || r.StartMinute >= minutesPerDay {
        return errors.New("start time out of range")
    }
    if r.EndMinute <= r.StartMinute || r.EndMinute > minutesPerDay {
        return errors.New("end time must be after start time")
    }
    switch r.Kind {
    case RecurrenceWeekly:
        if r.DayOfWeek < time.Sunday || r.DayOfWeek > time.Saturday {
            return errors.New("invalid day of week")
        }
    case RecurrenceOneTime:
        if r.Date.IsZero() {
            return errors.New("date is required for one-time classes")
        }
    default:
        return errors.New("invalid recurrence kind")
    }
    return nil
}
