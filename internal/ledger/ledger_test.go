package ledger

import (
    "context"
    "sort"
    "sync"
    "testing"
    "time"

    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"

    "github.com/fitdesk/class-booking/internal/model"
)

// memStore is an in-memory Store used to exercise the ledger without a
// database.  It copies bookings on the way in and out so tests observe
// only what was explicitly persisted, mirroring how a real store
// behaves.
type memStore struct {
    mu       sync.Mutex
    nextID   uint64
    bookings map[uint64]*model.Booking
}

func newMemStore() *memStore {
    return &memStore{bookings: make(map[uint64]*model.Booking)}
}

func copyBooking(b *model.Booking) *model.Booking {
    c := *b
    if b.WaitlistPosition != nil {
        p := *b.WaitlistPosition
        c.WaitlistPosition = &p
    }
    if b.CancelledAt != nil {
        t := *b.CancelledAt
        c.CancelledAt = &t
    }
    if b.CancellationReason != nil {
        r := *b.CancellationReason
        c.CancellationReason = &r
    }
    return &c
}

func (s *memStore) ActiveByOccurrence(_ context.Context, templateID uint64, startsAt time.Time) ([]model.Booking, error) {
    s.mu.Lock()
    defer s.mu.Unlock()
    var out []model.Booking
    for _, b := range s.bookings {
        if b.TemplateID == templateID && b.StartsAt.Equal(startsAt) && b.Status.Active() {
            out = append(out, *copyBooking(b))
        }
    }
    sort.Slice(out, func(i, j int) bool {
        if out[i].Status != out[j].Status {
            return out[i].Status == model.StatusConfirmed
        }
        return positionOf(&out[i]) < positionOf(&out[j])
    })
    return out, nil
}

func (s *memStore) GetBooking(_ context.Context, id uint64) (*model.Booking, error) {
    s.mu.Lock()
    defer s.mu.Unlock()
    b, ok := s.bookings[id]
    if !ok {
        return nil, ErrBookingNotFound
    }
    return copyBooking(b), nil
}

func (s *memStore) InsertBooking(_ context.Context, b *model.Booking) error {
    s.mu.Lock()
    defer s.mu.Unlock()
    s.nextID++
    b.ID = s.nextID
    s.bookings[b.ID] = copyBooking(b)
    return nil
}

func (s *memStore) UpdateBookings(_ context.Context, bs []*model.Booking) error {
    s.mu.Lock()
    defer s.mu.Unlock()
    for _, b := range bs {
        s.bookings[b.ID] = copyBooking(b)
    }
    return nil
}

// seed inserts a booking directly, bypassing admission control.
func (s *memStore) seed(b model.Booking) uint64 {
    s.mu.Lock()
    defer s.mu.Unlock()
    s.nextID++
    b.ID = s.nextID
    s.bookings[b.ID] = copyBooking(&b)
    return b.ID
}

var testStart = time.Date(2026, 9, 9, 18, 0, 0, 0, time.UTC)

func testTemplate(capacity, waitlistCapacity int) *model.ClassTemplate {
    return &model.ClassTemplate{
        ID:               7,
        Name:             "HIIT",
        Capacity:         capacity,
        WaitlistEnabled:  waitlistCapacity > 0,
        WaitlistCapacity: waitlistCapacity,
        Recurrence: model.Recurrence{
            Kind:        model.RecurrenceWeekly,
            DayOfWeek:   time.Wednesday,
            StartMinute: 18 * 60,
            EndMinute:   19 * 60,
        },
    }
}

func testOccurrence(tmpl *model.ClassTemplate) model.Occurrence {
    return model.Occurrence{TemplateID: tmpl.ID, StartsAt: testStart, EndsAt: testStart.Add(time.Hour)}
}

func newTestLedger(store Store) *Ledger {
    return New(store, 2*time.Second, nil)
}

func TestBookAdmission(t *testing.T) {
    ctx := context.Background()
    tmpl := testTemplate(2, 1)
    occ := testOccurrence(tmpl)
    store := newMemStore()
    l := newTestLedger(store)
    now := testStart.Add(-24 * time.Hour)

    b1, err := l.Book(ctx, tmpl, occ, 101, now)
    require.NoError(t, err)
    assert.Equal(t, model.StatusConfirmed, b1.Status)
    assert.Nil(t, b1.WaitlistPosition)

    b2, err := l.Book(ctx, tmpl, occ, 102, now)
    require.NoError(t, err)
    assert.Equal(t, model.StatusConfirmed, b2.Status)

    b3, err := l.Book(ctx, tmpl, occ, 103, now)
    require.NoError(t, err)
    assert.Equal(t, model.StatusWaitlisted, b3.Status)
    require.NotNil(t, b3.WaitlistPosition)
    assert.Equal(t, 1, *b3.WaitlistPosition)

    _, err = l.Book(ctx, tmpl, occ, 104, now)
    assert.ErrorIs(t, err, ErrClassFull)

    // Cancelling a confirmed booking promotes the waitlist head and
    // leaves the queue empty.
    cancelled, promoted, err := l.Cancel(ctx, tmpl, b1.ID, now, "schedule conflict")
    require.NoError(t, err)
    assert.Equal(t, model.StatusCancelled, cancelled.Status)
    require.NotNil(t, promoted)
    assert.Equal(t, b3.ID, promoted.ID)
    assert.Equal(t, model.StatusConfirmed, promoted.Status)
    assert.Nil(t, promoted.WaitlistPosition)

    active, err := store.ActiveByOccurrence(ctx, tmpl.ID, testStart)
    require.NoError(t, err)
    for _, b := range active {
        assert.NotEqual(t, model.StatusWaitlisted, b.Status)
    }
}

func TestBookDuplicate(t *testing.T) {
    ctx := context.Background()
    tmpl := testTemplate(2, 1)
    occ := testOccurrence(tmpl)
    store := newMemStore()
    l := newTestLedger(store)
    now := testStart.Add(-24 * time.Hour)

    b, err := l.Book(ctx, tmpl, occ, 101, now)
    require.NoError(t, err)

    _, err = l.Book(ctx, tmpl, occ, 101, now)
    assert.ErrorIs(t, err, ErrDuplicateBooking)

    // A cancelled booking no longer blocks re-booking.
    _, _, err = l.Cancel(ctx, tmpl, b.ID, now, "")
    require.NoError(t, err)
    again, err := l.Book(ctx, tmpl, occ, 101, now)
    require.NoError(t, err)
    assert.Equal(t, model.StatusConfirmed, again.Status)
}

func TestBookWaitlistDisabled(t *testing.T) {
    ctx := context.Background()
    tmpl := testTemplate(1, 0)
    occ := testOccurrence(tmpl)
    l := newTestLedger(newMemStore())
    now := testStart.Add(-time.Hour)

    _, err := l.Book(ctx, tmpl, occ, 101, now)
    require.NoError(t, err)
    _, err = l.Book(ctx, tmpl, occ, 102, now)
    assert.ErrorIs(t, err, ErrClassFull)
}

func TestCancelPromotionFIFO(t *testing.T) {
    ctx := context.Background()
    tmpl := testTemplate(1, 3)
    occ := testOccurrence(tmpl)
    store := newMemStore()
    l := newTestLedger(store)
    now := testStart.Add(-48 * time.Hour)

    conf, err := l.Book(ctx, tmpl, occ, 100, now)
    require.NoError(t, err)
    a, err := l.Book(ctx, tmpl, occ, 101, now)
    require.NoError(t, err)
    b, err := l.Book(ctx, tmpl, occ, 102, now)
    require.NoError(t, err)
    c, err := l.Book(ctx, tmpl, occ, 103, now)
    require.NoError(t, err)
    require.Equal(t, 1, *a.WaitlistPosition)
    require.Equal(t, 2, *b.WaitlistPosition)
    require.Equal(t, 3, *c.WaitlistPosition)

    // A is promoted first, B and C renumber to 1 and 2.
    _, promoted, err := l.Cancel(ctx, tmpl, conf.ID, now, "")
    require.NoError(t, err)
    require.NotNil(t, promoted)
    assert.Equal(t, a.ID, promoted.ID)
    assertPositions(t, store, tmpl, map[uint64]int{b.ID: 1, c.ID: 2})

    // A cancels again before attending: B promotes, C renumbers to 1.
    _, promoted, err = l.Cancel(ctx, tmpl, a.ID, now, "")
    require.NoError(t, err)
    require.NotNil(t, promoted)
    assert.Equal(t, b.ID, promoted.ID)
    assertPositions(t, store, tmpl, map[uint64]int{c.ID: 1})
}

func TestCancelWaitlistedRenumbersOnly(t *testing.T) {
    ctx := context.Background()
    tmpl := testTemplate(1, 3)
    occ := testOccurrence(tmpl)
    store := newMemStore()
    l := newTestLedger(store)
    now := testStart.Add(-48 * time.Hour)

    conf, err := l.Book(ctx, tmpl, occ, 100, now)
    require.NoError(t, err)
    a, err := l.Book(ctx, tmpl, occ, 101, now)
    require.NoError(t, err)
    b, err := l.Book(ctx, tmpl, occ, 102, now)
    require.NoError(t, err)
    c, err := l.Book(ctx, tmpl, occ, 103, now)
    require.NoError(t, err)

    // Cancelling the middle of the queue frees no confirmed slot, so
    // nobody is promoted; the tail shifts up.
    _, promoted, err := l.Cancel(ctx, tmpl, b.ID, now, "")
    require.NoError(t, err)
    assert.Nil(t, promoted)
    assertPositions(t, store, tmpl, map[uint64]int{a.ID: 1, c.ID: 2})

    got, err := store.GetBooking(ctx, conf.ID)
    require.NoError(t, err)
    assert.Equal(t, model.StatusConfirmed, got.Status)
}

func TestCancelTerminalStates(t *testing.T) {
    ctx := context.Background()
    tmpl := testTemplate(2, 0)
    occ := testOccurrence(tmpl)
    store := newMemStore()
    l := newTestLedger(store)
    now := testStart.Add(-time.Hour)

    b, err := l.Book(ctx, tmpl, occ, 101, now)
    require.NoError(t, err)

    _, _, err = l.Cancel(ctx, tmpl, b.ID, now, "first")
    require.NoError(t, err)
    // Idempotent terminal state: repeat cancellation reports
    // AlreadyCancelled and never mutates further.
    _, _, err = l.Cancel(ctx, tmpl, b.ID, now, "second")
    assert.ErrorIs(t, err, ErrAlreadyCancelled)
    got, err := store.GetBooking(ctx, b.ID)
    require.NoError(t, err)
    require.NotNil(t, got.CancellationReason)
    assert.Equal(t, "first", *got.CancellationReason)

    attended, err := l.Book(ctx, tmpl, occ, 102, now)
    require.NoError(t, err)
    _, err = l.CheckIn(ctx, tmpl, attended.ID, now)
    require.NoError(t, err)
    _, _, err = l.Cancel(ctx, tmpl, attended.ID, now, "")
    assert.ErrorIs(t, err, ErrNotCancellable)

    _, _, err = l.Cancel(ctx, tmpl, 9999, now, "")
    assert.ErrorIs(t, err, ErrBookingNotFound)
}

func TestCheckInStateMachine(t *testing.T) {
    ctx := context.Background()
    tmpl := testTemplate(1, 1)
    occ := testOccurrence(tmpl)
    store := newMemStore()
    l := newTestLedger(store)
    now := testStart.Add(-24 * time.Hour)

    conf, err := l.Book(ctx, tmpl, occ, 101, now)
    require.NoError(t, err)
    waited, err := l.Book(ctx, tmpl, occ, 102, now)
    require.NoError(t, err)

    // Waitlisted bookings cannot check in.
    _, err = l.CheckIn(ctx, tmpl, waited.ID, now)
    assert.ErrorIs(t, err, ErrNotConfirmed)

    // After promotion the same booking checks in fine.
    _, promoted, err := l.Cancel(ctx, tmpl, conf.ID, now, "")
    require.NoError(t, err)
    require.NotNil(t, promoted)
    require.Equal(t, waited.ID, promoted.ID)
    got, err := l.CheckIn(ctx, tmpl, waited.ID, now)
    require.NoError(t, err)
    assert.Equal(t, model.StatusAttended, got.Status)

    // Attended is terminal.
    _, err = l.CheckIn(ctx, tmpl, waited.ID, now)
    assert.ErrorIs(t, err, ErrNotConfirmed)
}

func TestMarkNoShows(t *testing.T) {
    ctx := context.Background()
    tmpl := testTemplate(3, 2)
    occ := testOccurrence(tmpl)
    store := newMemStore()
    l := newTestLedger(store)
    before := testStart.Add(-24 * time.Hour)

    conf1, err := l.Book(ctx, tmpl, occ, 101, before)
    require.NoError(t, err)
    conf2, err := l.Book(ctx, tmpl, occ, 102, before)
    require.NoError(t, err)
    _, err = l.CheckIn(ctx, tmpl, conf2.ID, testStart)
    require.NoError(t, err)

    // Future occurrence: the sweep does nothing.
    n, err := l.MarkNoShows(ctx, tmpl, occ, before)
    require.NoError(t, err)
    assert.Zero(t, n)

    after := testStart.Add(2 * time.Hour)
    n, err = l.MarkNoShows(ctx, tmpl, occ, after)
    require.NoError(t, err)
    assert.Equal(t, 1, n)

    got, err := store.GetBooking(ctx, conf1.ID)
    require.NoError(t, err)
    assert.Equal(t, model.StatusNoShow, got.Status)
    got, err = store.GetBooking(ctx, conf2.ID)
    require.NoError(t, err)
    assert.Equal(t, model.StatusAttended, got.Status)
}

func TestConcurrentBookingNeverOversells(t *testing.T) {
    ctx := context.Background()
    tmpl := testTemplate(3, 2)
    occ := testOccurrence(tmpl)
    store := newMemStore()
    l := newTestLedger(store)
    now := testStart.Add(-24 * time.Hour)

    const members = 24
    var wg sync.WaitGroup
    results := make([]error, members)
    for i := 0; i < members; i++ {
        wg.Add(1)
        go func(i int) {
            defer wg.Done()
            _, err := l.Book(ctx, tmpl, occ, uint64(1000+i), now)
            results[i] = err
        }(i)
    }
    wg.Wait()

    confirmed, waitlisted, full := 0, 0, 0
    for _, err := range results {
        switch {
        case err == nil:
            // counted below from the store
        case assert.ErrorIs(t, err, ErrClassFull):
            full++
        }
    }
    active, err := store.ActiveByOccurrence(ctx, tmpl.ID, testStart)
    require.NoError(t, err)
    positions := []int{}
    for _, b := range active {
        switch b.Status {
        case model.StatusConfirmed:
            confirmed++
        case model.StatusWaitlisted:
            waitlisted++
            positions = append(positions, *b.WaitlistPosition)
        }
    }
    assert.Equal(t, tmpl.Capacity, confirmed)
    assert.Equal(t, tmpl.WaitlistCapacity, waitlisted)
    assert.Equal(t, members-tmpl.Capacity-tmpl.WaitlistCapacity, full)
    sort.Ints(positions)
    for i, p := range positions {
        assert.Equal(t, i+1, p)
    }
}

func TestDistinctOccurrencesDoNotContend(t *testing.T) {
    ctx := context.Background()
    tmpl := testTemplate(5, 0)
    store := newMemStore()
    l := newTestLedger(store)
    now := testStart.Add(-24 * time.Hour)

    var wg sync.WaitGroup
    errs := make([]error, 8)
    for week := 0; week < 8; week++ {
        wg.Add(1)
        go func(week int) {
            defer wg.Done()
            starts := testStart.AddDate(0, 0, 7*week)
            occ := model.Occurrence{TemplateID: tmpl.ID, StartsAt: starts, EndsAt: starts.Add(time.Hour)}
            _, errs[week] = l.Book(ctx, tmpl, occ, 101, now)
        }(week)
    }
    wg.Wait()
    for _, err := range errs {
        assert.NoError(t, err)
    }
}

// gatedStore blocks the first ActiveByOccurrence call until released,
// holding the occurrence section open so a second caller times out.
type gatedStore struct {
    *memStore
    gate chan struct{}
    once sync.Once
}

func (s *gatedStore) ActiveByOccurrence(ctx context.Context, templateID uint64, startsAt time.Time) ([]model.Booking, error) {
    s.once.Do(func() { <-s.gate })
    return s.memStore.ActiveByOccurrence(ctx, templateID, startsAt)
}

func TestBookBusyOnLockTimeout(t *testing.T) {
    ctx := context.Background()
    tmpl := testTemplate(5, 0)
    occ := testOccurrence(tmpl)
    store := &gatedStore{memStore: newMemStore(), gate: make(chan struct{})}
    l := New(store, 50*time.Millisecond, nil)
    now := testStart.Add(-24 * time.Hour)

    firstDone := make(chan error, 1)
    go func() {
        _, err := l.Book(ctx, tmpl, occ, 101, now)
        firstDone <- err
    }()

    // Give the first booking time to take the section, then race it.
    time.Sleep(10 * time.Millisecond)
    _, err := l.Book(ctx, tmpl, occ, 102, now)
    assert.ErrorIs(t, err, ErrBusy)

    close(store.gate)
    require.NoError(t, <-firstDone)

    // With the section free again the second member gets in.
    _, err = l.Book(ctx, tmpl, occ, 102, now)
    assert.NoError(t, err)
}

func TestAuditPoisonsOccurrence(t *testing.T) {
    ctx := context.Background()
    tmpl := testTemplate(5, 2)
    occ := testOccurrence(tmpl)
    store := newMemStore()
    l := newTestLedger(store)
    now := testStart.Add(-24 * time.Hour)

    // Seed a corrupted waitlist with a gap in positions; the first
    // mutation's audit must detect it and freeze the occurrence.
    one, three := 1, 3
    store.seed(model.Booking{TemplateID: tmpl.ID, StartsAt: testStart, MemberID: 201, Status: model.StatusWaitlisted, WaitlistPosition: &one})
    store.seed(model.Booking{TemplateID: tmpl.ID, StartsAt: testStart, MemberID: 202, Status: model.StatusWaitlisted, WaitlistPosition: &three})

    _, err := l.Book(ctx, tmpl, occ, 101, now)
    assert.ErrorIs(t, err, ErrLedgerCorrupted)

    // Poisoned: refused before touching the store, not re-audited.
    _, err = l.Book(ctx, tmpl, occ, 102, now)
    assert.ErrorIs(t, err, ErrLedgerCorrupted)

    // Other occurrences are unaffected.
    nextWeek := model.Occurrence{TemplateID: tmpl.ID, StartsAt: testStart.AddDate(0, 0, 7), EndsAt: testStart.AddDate(0, 0, 7).Add(time.Hour)}
    _, err = l.Book(ctx, tmpl, nextWeek, 102, now)
    assert.NoError(t, err)
}

func assertPositions(t *testing.T, store *memStore, tmpl *model.ClassTemplate, want map[uint64]int) {
    t.Helper()
    active, err := store.ActiveByOccurrence(context.Background(), tmpl.ID, testStart)
    require.NoError(t, err)
    got := map[uint64]int{}
    for _, b := range active {
        if b.Status == model.StatusWaitlisted {
            require.NotNil(t, b.WaitlistPosition)
            got[b.ID] = *b.WaitlistPosition
        }
    }
    assert.Equal(t, want, got)
}
