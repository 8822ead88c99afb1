package ledger

import (
    "context"
    "fmt"
    "sort"
    "sync"
    "time"

    "github.com/sirupsen/logrus"

    "github.com/fitdesk/class-booking/internal/model"
)

// Ledger serializes every capacity-affecting operation per occurrence.
// Two concurrent Book calls for the same class can never both observe a
// free slot and both insert; operations on different occurrences run
// fully in parallel.  Callers must not hold an operation open across
// external I/O: event publishing and other side effects happen after a
// ledger call returns.
type Ledger struct {
    store       Store
    locks       *keyedLocks
    lockTimeout time.Duration
    log         *logrus.Logger

    mu       sync.Mutex
    poisoned map[string]bool
}

// New constructs a Ledger over the given store.  lockTimeout bounds how
// long an operation waits for an occurrence's section before failing
// with ErrBusy.
func New(store Store, lockTimeout time.Duration, log *logrus.Logger) *Ledger {
    if store == nil {
        panic("nil store passed to ledger.New")
    }
    if log == nil {
        log = logrus.StandardLogger()
    }
    return &Ledger{
        store:       store,
        locks:       newKeyedLocks(),
        lockTimeout: lockTimeout,
        log:         log,
        poisoned:    make(map[string]bool),
    }
}

// Book runs admission control for one member against one occurrence.
// Inside the occurrence's exclusive section it checks for a duplicate
// active booking, then fills a confirmed slot if one is free, then
// falls back to the waitlist when enabled and not full, and otherwise
// fails with ErrClassFull.  Exactly one booking row is created on
// success; nothing is written on any failure path.
func (l *Ledger) Book(ctx context.Context, tmpl *model.ClassTemplate, occ model.Occurrence, memberID uint64, now time.Time) (*model.Booking, error) {
    key := occ.Key()
    release, err := l.locks.Acquire(ctx, key, l.lockTimeout)
    if err != nil {
        return nil, err
    }
    defer release()
    if err := l.checkPoisoned(key); err != nil {
        return nil, err
    }

    active, err := l.store.ActiveByOccurrence(ctx, occ.TemplateID, occ.StartsAt)
    if err != nil {
        return nil, err
    }
    confirmed, waitlisted := 0, 0
    for _, b := range active {
        if b.MemberID == memberID {
            return nil, ErrDuplicateBooking
        }
        switch b.Status {
        case model.StatusConfirmed:
            confirmed++
        case model.StatusWaitlisted:
            waitlisted++
        }
    }

    booking := &model.Booking{
        TemplateID: occ.TemplateID,
        StartsAt:   occ.StartsAt,
        MemberID:   memberID,
        CreatedAt:  now.UTC(),
    }
    switch {
    case confirmed < tmpl.Capacity:
        booking.Status = model.StatusConfirmed
    case tmpl.WaitlistEnabled && waitlisted < tmpl.WaitlistCapacity:
        // Positions are contiguous from 1, so the next free position is
        // simply the current queue length plus one.
        pos := waitlisted + 1
        booking.Status = model.StatusWaitlisted
        booking.WaitlistPosition = &pos
    default:
        return nil, ErrClassFull
    }
    if err := l.store.InsertBooking(ctx, booking); err != nil {
        return nil, err
    }
    if err := l.audit(ctx, tmpl, occ.StartsAt, key); err != nil {
        return nil, err
    }
    return booking, nil
}

// Cancel transitions a booking to CANCELLED and, when the booking was
// CONFIRMED, synchronously promotes the head of the waitlist inside the
// same exclusive section; there is no observable interval where a slot
// is open but unpromoted.  Cancelling a WAITLISTED booking only
// renumbers the queue behind it.  The promoted booking, if any, is
// returned alongside the cancelled one.
//
// Timing (cancel window) checks are the booking service's concern; the
// ledger enforces only the state machine.
func (l *Ledger) Cancel(ctx context.Context, tmpl *model.ClassTemplate, bookingID uint64, now time.Time, reason string) (cancelled, promoted *model.Booking, err error) {
    // The occurrence key is immutable, so it is safe to look it up
    // before entering the section.
    b, err := l.store.GetBooking(ctx, bookingID)
    if err != nil {
        return nil, nil, err
    }
    key := b.OccurrenceKey()
    release, err := l.locks.Acquire(ctx, key, l.lockTimeout)
    if err != nil {
        return nil, nil, err
    }
    defer release()
    if err := l.checkPoisoned(key); err != nil {
        return nil, nil, err
    }

    // Re-read under the lock; the status may have moved since.
    b, err = l.store.GetBooking(ctx, bookingID)
    if err != nil {
        return nil, nil, err
    }
    switch b.Status {
    case model.StatusCancelled:
        return nil, nil, ErrAlreadyCancelled
    case model.StatusAttended, model.StatusNoShow:
        return nil, nil, ErrNotCancellable
    }
    wasConfirmed := b.Status == model.StatusConfirmed

    active, err := l.store.ActiveByOccurrence(ctx, b.TemplateID, b.StartsAt)
    if err != nil {
        return nil, nil, err
    }
    queue := make([]*model.Booking, 0, len(active))
    for i := range active {
        if active[i].Status == model.StatusWaitlisted && active[i].ID != b.ID {
            queue = append(queue, &active[i])
        }
    }
    sort.Slice(queue, func(i, j int) bool {
        return positionOf(queue[i]) < positionOf(queue[j])
    })

    cancelledAt := now.UTC()
    b.Status = model.StatusCancelled
    b.WaitlistPosition = nil
    b.CancelledAt = &cancelledAt
    if reason != "" {
        r := reason
        b.CancellationReason = &r
    }
    updates := []*model.Booking{b}

    if wasConfirmed && len(queue) > 0 {
        // FIFO: the earliest-waitlisted booking takes the freed slot.
        head := queue[0]
        head.Status = model.StatusConfirmed
        head.WaitlistPosition = nil
        promoted = head
        queue = queue[1:]
    }
    // Re-sequence the remaining queue in original order so positions
    // stay {1..n}.
    for i, w := range queue {
        pos := i + 1
        if positionOf(w) != pos {
            p := pos
            w.WaitlistPosition = &p
            updates = append(updates, w)
        }
    }
    if promoted != nil {
        updates = append(updates, promoted)
    }

    if err := l.store.UpdateBookings(ctx, updates); err != nil {
        return nil, nil, err
    }
    if err := l.audit(ctx, tmpl, b.StartsAt, key); err != nil {
        return nil, nil, err
    }
    return b, promoted, nil
}

// CheckIn transitions a CONFIRMED booking to ATTENDED.  Any other
// current status fails with ErrNotConfirmed; a silent no-op would mask
// operator error at the front desk.
func (l *Ledger) CheckIn(ctx context.Context, tmpl *model.ClassTemplate, bookingID uint64, now time.Time) (*model.Booking, error) {
    b, err := l.store.GetBooking(ctx, bookingID)
    if err != nil {
        return nil, err
    }
    key := b.OccurrenceKey()
    release, err := l.locks.Acquire(ctx, key, l.lockTimeout)
    if err != nil {
        return nil, err
    }
    defer release()
    if err := l.checkPoisoned(key); err != nil {
        return nil, err
    }

    b, err = l.store.GetBooking(ctx, bookingID)
    if err != nil {
        return nil, err
    }
    if b.Status != model.StatusConfirmed {
        return nil, ErrNotConfirmed
    }
    b.Status = model.StatusAttended
    if err := l.store.UpdateBookings(ctx, []*model.Booking{b}); err != nil {
        return nil, err
    }
    if err := l.audit(ctx, tmpl, b.StartsAt, key); err != nil {
        return nil, err
    }
    return b, nil
}

// MarkNoShows transitions every still-CONFIRMED booking of a past
// occurrence to NO_SHOW.  It uses the same exclusive-section discipline
// as Cancel and is driven by the periodic sweep, not the real-time
// booking flow.  It returns the number of bookings marked.
func (l *Ledger) MarkNoShows(ctx context.Context, tmpl *model.ClassTemplate, occ model.Occurrence, now time.Time) (int, error) {
    if occ.StartsAt.After(now.UTC()) {
        return 0, nil
    }
    key := occ.Key()
    release, err := l.locks.Acquire(ctx, key, l.lockTimeout)
    if err != nil {
        return 0, err
    }
    defer release()
    if err := l.checkPoisoned(key); err != nil {
        return 0, err
    }

    active, err := l.store.ActiveByOccurrence(ctx, occ.TemplateID, occ.StartsAt)
    if err != nil {
        return 0, err
    }
    var updates []*model.Booking
    for i := range active {
        if active[i].Status == model.StatusConfirmed {
            active[i].Status = model.StatusNoShow
            updates = append(updates, &active[i])
        }
    }
    if len(updates) == 0 {
        return 0, nil
    }
    if err := l.store.UpdateBookings(ctx, updates); err != nil {
        return 0, err
    }
    if err := l.audit(ctx, tmpl, occ.StartsAt, key); err != nil {
        return 0, err
    }
    return len(updates), nil
}

// checkPoisoned refuses mutation on occurrences where an audit found
// corruption.  Must be called with the occurrence section held.
func (l *Ledger) checkPoisoned(key string) error {
    l.mu.Lock()
    defer l.mu.Unlock()
    if l.poisoned[key] {
        return ErrLedgerCorrupted
    }
    return nil
}

// audit re-reads the occurrence after a mutation and verifies the
// durable invariants: confirmed count within capacity, waitlist count
// within waitlist capacity, and positions forming {1..n}.  A violation
// is a programmer or data-integrity bug, never a user-facing condition:
// it is logged, the occurrence is poisoned against further mutation,
// and the corruption is never silently repaired.
func (l *Ledger) audit(ctx context.Context, tmpl *model.ClassTemplate, startsAt time.Time, key string) error {
    active, err := l.store.ActiveByOccurrence(ctx, tmpl.ID, startsAt)
    if err != nil {
        return err
    }
    confirmed := 0
    positions := make([]int, 0, len(active))
    for i := range active {
        switch active[i].Status {
        case model.StatusConfirmed:
            confirmed++
        case model.StatusWaitlisted:
            positions = append(positions, positionOf(&active[i]))
        }
    }
    violation := ""
    if confirmed > tmpl.Capacity {
        violation = fmt.Sprintf("confirmed count %d exceeds capacity %d", confirmed, tmpl.Capacity)
    } else if len(positions) > tmpl.WaitlistCapacity {
        violation = fmt.Sprintf("waitlist count %d exceeds waitlist capacity %d", len(positions), tmpl.WaitlistCapacity)
    } else {
        sort.Ints(positions)
        for i, p := range positions {
            if p != i+1 {
                violation = fmt.Sprintf("waitlist positions not contiguous: %v", positions)
                break
            }
        }
    }
    if violation == "" {
        return nil
    }
    l.mu.Lock()
    l.poisoned[key] = true
    l.mu.Unlock()
    l.log.WithFields(logrus.Fields{
        "occurrence": key,
        "template":   tmpl.ID,
    }).Errorf("ledger audit failed, occurrence frozen: %s", violation)
    return fmt.Errorf("%w: %s", ErrLedgerCorrupted, violation)
}

// positionOf returns the booking's waitlist position or 0 when unset.
func positionOf(b *model.Booking) int {
    if b.WaitlistPosition == nil {
        return 0
    }
    return *b.WaitlistPosition
}
