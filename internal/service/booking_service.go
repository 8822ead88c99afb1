// Package service orchestrates the booking engine: it validates timing
// windows against the schedule resolver, delegates capacity decisions
// to the ledger, and emits domain events after the ledger has
// committed.  Every ledger failure is passed through to the caller
// unchanged; nothing is swallowed or converted to a generic success.
package service

import (
    "context"
    "errors"
    "time"

    "github.com/sirupsen/logrus"

    "github.com/fitdesk/class-booking/internal/ledger"
    "github.com/fitdesk/class-booking/internal/model"
    "github.com/fitdesk/class-booking/internal/queue"
    "github.com/fitdesk/class-booking/internal/repository"
    "github.com/fitdesk/class-booking/internal/schedule"
)

// Validation failure sentinels.  These are caller-fixable and returned
// synchronously; capacity and state failures come from the ledger.
var (
    // ErrInvalidOccurrence is returned when the requested start instant
    // is not an occurrence of the template at all (wrong weekday, wrong
    // time, or wrong date).
    ErrInvalidOccurrence = errors.New("not an occurrence of this template")

    // ErrOccurrenceInPast is returned when the requested occurrence has
    // already started.  A one-time class whose date has passed is
    // reported the same way rather than rolled over.
    ErrOccurrenceInPast = errors.New("occurrence in the past")

    // ErrBookingWindowExceeded is returned when the occurrence lies
    // further ahead than the template's booking window allows.
    ErrBookingWindowExceeded = errors.New("booking window exceeded")

    // ErrCancelWindowClosed is returned when a non-privileged
    // cancellation of a confirmed booking comes too close to start.
    ErrCancelWindowClosed = errors.New("cancel window closed")
)

// TemplateStore is the read-only view of class templates the service
// needs.  *repository.TemplateRepo satisfies it.
type TemplateStore interface {
    GetByID(ctx context.Context, id uint64) (*model.ClassTemplate, error)
}

// BookingReader provides the lock-free read queries the service needs
// outside the ledger.  *repository.BookingRepo satisfies it.
type BookingReader interface {
    GetBooking(ctx context.Context, id uint64) (*model.Booking, error)
    CountByOccurrence(ctx context.Context, templateID uint64, startsAt time.Time) (repository.Occupancy, error)
    PastConfirmedOccurrences(ctx context.Context, now time.Time) ([]model.Occurrence, error)
}

// EventPublisher delivers booking events to the broker.  Publishing
// happens strictly after the ledger commits and failures are ignored by
// the service: side effects never gate a booking.
type EventPublisher interface {
    Publish(ctx context.Context, ev queue.BookingEvent) error
}

// BookingService wires the resolver, the ledger and the event stream
// together behind the boundary operations Book, Cancel, CheckIn and
// Occupancy.
type BookingService struct {
    templates TemplateStore
    bookings  BookingReader
    ledger    *ledger.Ledger
    events    EventPublisher // nil disables event publishing
    log       *logrus.Logger
}

// NewBookingService constructs a BookingService.  events may be nil.
func NewBookingService(templates TemplateStore, bookings BookingReader, l *ledger.Ledger, events EventPublisher, log *logrus.Logger) *BookingService {
    if templates == nil || bookings == nil || l == nil {
        panic("nil dependency passed to NewBookingService")
    }
    if log == nil {
        log = logrus.StandardLogger()
    }
    return &BookingService{templates: templates, bookings: bookings, ledger: l, events: events, log: log}
}

// Book validates the requested occurrence against the template's
// recurrence rule and booking window, then runs ledger admission.  On
// success exactly one booking exists, CONFIRMED or WAITLISTED; on any
// failure nothing was created.
func (s *BookingService) Book(ctx context.Context, templateID, memberID uint64, occurrenceStart, now time.Time) (*model.Booking, error) {
    tmpl, err := s.templates.GetByID(ctx, templateID)
    if err != nil {
        return nil, err
    }
    occ, ok := schedule.At(tmpl, occurrenceStart)
    if !ok {
        return nil, ErrInvalidOccurrence
    }
    now = now.UTC()
    if occ.StartsAt.Before(now) {
        return nil, ErrOccurrenceInPast
    }
    if occ.StartsAt.After(now.AddDate(0, 0, tmpl.BookingWindowDays)) {
        return nil, ErrBookingWindowExceeded
    }
    b, err := s.ledger.Book(ctx, tmpl, occ, memberID, now)
    if err != nil {
        return nil, err
    }
    event := queue.EventBookingConfirmed
    if b.Status == model.StatusWaitlisted {
        event = queue.EventBookingWaitlisted
    }
    s.emit(ctx, event, tmpl, b, "")
    return b, nil
}

// Cancel cancels a booking.  For confirmed bookings the cancel window
// applies unless adminOverride is set; the override bypasses only the
// timing check, never the state machine (a cancelled booking still
// reports AlreadyCancelled to an admin).  When the cancellation frees a
// confirmed slot the ledger promotes the waitlist head in the same
// exclusive section; the promoted booking is returned alongside.
func (s *BookingService) Cancel(ctx context.Context, bookingID uint64, now time.Time, reason string, adminOverride bool) (cancelled, promoted *model.Booking, err error) {
    b, err := s.bookings.GetBooking(ctx, bookingID)
    if err != nil {
        return nil, nil, err
    }
    tmpl, err := s.templates.GetByID(ctx, b.TemplateID)
    if err != nil {
        return nil, nil, err
    }
    now = now.UTC()
    if b.Status == model.StatusConfirmed && !adminOverride {
        if b.StartsAt.Sub(now) < time.Duration(tmpl.CancelWindowHours)*time.Hour {
            return nil, nil, ErrCancelWindowClosed
        }
    }
    cancelled, promoted, err = s.ledger.Cancel(ctx, tmpl, bookingID, now, reason)
    if err != nil {
        return nil, nil, err
    }
    s.emit(ctx, queue.EventBookingCancelled, tmpl, cancelled, reason)
    if promoted != nil {
        s.emit(ctx, queue.EventWaitlistPromoted, tmpl, promoted, "")
    }
    return cancelled, promoted, nil
}

// CheckIn transitions a confirmed booking to attended.
func (s *BookingService) CheckIn(ctx context.Context, bookingID uint64, now time.Time) (*model.Booking, error) {
    b, err := s.bookings.GetBooking(ctx, bookingID)
    if err != nil {
        return nil, err
    }
    tmpl, err := s.templates.GetByID(ctx, b.TemplateID)
    if err != nil {
        return nil, err
    }
    return s.ledger.CheckIn(ctx, tmpl, bookingID, now.UTC())
}

// OccupancyView is what the occupancy endpoint returns: live counts
// plus the template's limits.
type OccupancyView struct {
    ConfirmedCount   int `json:"confirmed_count"`
    WaitlistCount    int `json:"waitlist_count"`
    Capacity         int `json:"capacity"`
    WaitlistCapacity int `json:"waitlist_capacity"`
}

// Occupancy returns the confirmed/waitlist counts for one occurrence.
// Read-only and lock-free; template reads never contend with bookings.
func (s *BookingService) Occupancy(ctx context.Context, templateID uint64, occurrenceStart time.Time) (OccupancyView, error) {
    tmpl, err := s.templates.GetByID(ctx, templateID)
    if err != nil {
        return OccupancyView{}, err
    }
    if _, ok := schedule.At(tmpl, occurrenceStart); !ok {
        return OccupancyView{}, ErrInvalidOccurrence
    }
    counts, err := s.bookings.CountByOccurrence(ctx, templateID, occurrenceStart.UTC())
    if err != nil {
        return OccupancyView{}, err
    }
    return OccupancyView{
        ConfirmedCount:   counts.ConfirmedCount,
        WaitlistCount:    counts.WaitlistCount,
        Capacity:         tmpl.Capacity,
        WaitlistCapacity: tmpl.WaitlistCapacity,
    }, nil
}

// NextOccurrence resolves the template's next occurrence at or after
// now.  ok=false means the template has no future occurrence (a
// one-time class whose date has passed).
func (s *BookingService) NextOccurrence(ctx context.Context, templateID uint64, now time.Time) (model.Occurrence, bool, error) {
    tmpl, err := s.templates.GetByID(ctx, templateID)
    if err != nil {
        return model.Occurrence{}, false, err
    }
    occ, ok := schedule.Next(tmpl, now)
    return occ, ok, nil
}

// SweepNoShows marks still-confirmed bookings of past occurrences as
// no-shows.  Errors on individual occurrences are logged and skipped so
// one poisoned class never stalls the whole sweep.  It returns the
// total number of bookings marked.
func (s *BookingService) SweepNoShows(ctx context.Context, now time.Time) (int, error) {
    occurrences, err := s.bookings.PastConfirmedOccurrences(ctx, now)
    if err != nil {
        return 0, err
    }
    total := 0
    for _, occ := range occurrences {
        tmpl, err := s.templates.GetByID(ctx, occ.TemplateID)
        if err != nil {
            s.log.WithError(err).WithField("template", occ.TemplateID).Warn("no-show sweep: template lookup failed")
            continue
        }
        n, err := s.ledger.MarkNoShows(ctx, tmpl, occ, now)
        if err != nil {
            s.log.WithError(err).WithField("occurrence", occ.Key()).Warn("no-show sweep: mark failed")
            continue
        }
        total += n
    }
    return total, nil
}

// emit publishes one booking event; failures are already logged by the
// publisher and deliberately not propagated.
func (s *BookingService) emit(ctx context.Context, event string, tmpl *model.ClassTemplate, b *model.Booking, reason string) {
    if s.events == nil {
        return
    }
    duration := time.Duration(tmpl.Recurrence.EndMinute-tmpl.Recurrence.StartMinute) * time.Minute
    ev := queue.BookingEvent{
        Event:            event,
        BookingID:        b.ID,
        MemberID:         b.MemberID,
        TemplateID:       b.TemplateID,
        ClassName:        tmpl.Name,
        OccurrenceKey:    b.OccurrenceKey(),
        StartsAt:         b.StartsAt.UTC().Format(time.RFC3339),
        EndsAt:           b.StartsAt.Add(duration).UTC().Format(time.RFC3339),
        Status:           string(b.Status),
        WaitlistPosition: b.WaitlistPosition,
        Reason:           reason,
        OccurredAt:       time.Now().UTC().Format(time.RFC3339),
    }
    _ = s.events.Publish(ctx, ev)
}
