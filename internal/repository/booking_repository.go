package repository

import (
    "context"
    "database/sql"
    "errors"
    "time"

    "github.com/fitdesk/class-booking/internal/ledger"
    "github.com/fitdesk/class-booking/internal/model"
)

// BookingRepo persists bookings and implements ledger.Store.  The
// ledger calls the mutating methods only while holding the occurrence's
// exclusive section, so the queries here need no row locking of their
// own; each call is still atomic (single statement or one transaction)
// so a crash never leaves a half-applied promotion.  Waitlist positions
// are stored as a real column, not derived on read.
type BookingRepo struct {
    db *sql.DB
}

// NewBookingRepo returns a new BookingRepo bound to the given database.
func NewBookingRepo(db *sql.DB) *BookingRepo { return &BookingRepo{db: db} }

const bookingColumns = `id, template_id, starts_at, member_id, status,
    waitlist_position, created_at, cancelled_at, cancellation_reason`

// ActiveByOccurrence returns the CONFIRMED and WAITLISTED bookings for
// one occurrence.  Waitlisted entries come back in queue order.
func (r *BookingRepo) ActiveByOccurrence(ctx context.Context, templateID uint64, startsAt time.Time) ([]model.Booking, error) {
    const q = `SELECT ` + bookingColumns + `
               FROM bookings
               WHERE template_id = ? AND starts_at = ? AND status IN ('CONFIRMED', 'WAITLISTED')
               ORDER BY waitlist_position IS NULL DESC, waitlist_position, id`
    rows, err := r.db.QueryContext(ctx, q, templateID, startsAt.UTC())
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    out := make([]model.Booking, 0)
    for rows.Next() {
        b, err := scanBooking(rows)
        if err != nil {
            return nil, err
        }
        out = append(out, *b)
    }
    if err := rows.Err(); err != nil {
        return nil, err
    }
    return out, nil
}

// GetBooking returns a booking in any status, or ledger.ErrBookingNotFound.
func (r *BookingRepo) GetBooking(ctx context.Context, id uint64) (*model.Booking, error) {
    const q = `SELECT ` + bookingColumns + ` FROM bookings WHERE id = ?`
    b, err := scanBooking(r.db.QueryRowContext(ctx, q, id))
    if err != nil {
        if errors.Is(err, sql.ErrNoRows) {
            return nil, ledger.ErrBookingNotFound
        }
        return nil, err
    }
    return b, nil
}

// InsertBooking persists a new booking and populates its generated ID.
func (r *BookingRepo) InsertBooking(ctx context.Context, b *model.Booking) error {
    const q = `INSERT INTO bookings
        (template_id, starts_at, member_id, status, waitlist_position, created_at)
        VALUES (?, ?, ?, ?, ?, ?)`
    result, err := r.db.ExecContext(ctx, q,
        b.TemplateID, b.StartsAt.UTC(), b.MemberID, string(b.Status), b.WaitlistPosition, b.CreatedAt.UTC(),
    )
    if err != nil {
        return err
    }
    id, err := result.LastInsertId()
    if err != nil {
        return err
    }
    b.ID = uint64(id)
    return nil
}

// UpdateBookings applies status, position and cancellation changes for
// the given bookings in one transaction, so a cancellation and the
// waitlist promotion it triggers commit together or not at all.
func (r *BookingRepo) UpdateBookings(ctx context.Context, bs []*model.Booking) error {
    if len(bs) == 0 {
        return nil
    }
    tx, err := r.db.BeginTx(ctx, nil)
    if err != nil {
        return err
    }
    committed := false
    defer func() {
        if !committed {
            _ = tx.Rollback()
        }
    }()
    const q = `UPDATE bookings
               SET status = ?, waitlist_position = ?, cancelled_at = ?, cancellation_reason = ?
               WHERE id = ?`
    for _, b := range bs {
        var cancelledAt interface{}
        if b.CancelledAt != nil {
            cancelledAt = b.CancelledAt.UTC()
        }
        if _, err := tx.ExecContext(ctx, q,
            string(b.Status), b.WaitlistPosition, cancelledAt, b.CancellationReason, b.ID,
        ); err != nil {
            return err
        }
    }
    if err := tx.Commit(); err != nil {
        return err
    }
    committed = true
    return nil
}

// Occupancy holds the counts the UI needs for its "4/20 booked, +2
// waitlist" displays.
type Occupancy struct {
    ConfirmedCount int `json:"confirmed_count"`
    WaitlistCount  int `json:"waitlist_count"`
}

// CountByOccurrence returns confirmed and waitlist counts for one
// occurrence.  Read-only; it takes no occurrence lock.
func (r *BookingRepo) CountByOccurrence(ctx context.Context, templateID uint64, startsAt time.Time) (Occupancy, error) {
    const q = `SELECT
                 COALESCE(SUM(status = 'CONFIRMED'), 0),
                 COALESCE(SUM(status = 'WAITLISTED'), 0)
               FROM bookings WHERE template_id = ? AND starts_at = ?`
    var occ Occupancy
    err := r.db.QueryRowContext(ctx, q, templateID, startsAt.UTC()).Scan(&occ.ConfirmedCount, &occ.WaitlistCount)
    if err != nil {
        return Occupancy{}, err
    }
    return occ, nil
}

// BookingDetail is a booking joined with its class name for member
// facing listings.
type BookingDetail struct {
    model.Booking
    ClassName string
}

// ListByMember returns all bookings for the given member, newest first.
// When no bookings exist an empty slice is returned.
func (r *BookingRepo) ListByMember(ctx context.Context, memberID uint64) ([]BookingDetail, error) {
    const q = `SELECT b.id, b.template_id, b.starts_at, b.member_id, b.status,
                      b.waitlist_position, b.created_at, b.cancelled_at, b.cancellation_reason,
                      t.name
               FROM bookings b
               JOIN class_templates t ON t.id = b.template_id
               WHERE b.member_id = ?
               ORDER BY b.created_at DESC, b.id DESC`
    rows, err := r.db.QueryContext(ctx, q, memberID)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    out := make([]BookingDetail, 0)
    for rows.Next() {
        var d BookingDetail
        var pos sql.NullInt64
        var cancelledAt sql.NullTime
        var reason sql.NullString
        var status string
        if err := rows.Scan(
            &d.ID, &d.TemplateID, &d.StartsAt, &d.MemberID, &status,
            &pos, &d.CreatedAt, &cancelledAt, &reason, &d.ClassName,
        ); err != nil {
            return nil, err
        }
        d.Status = model.BookingStatus(status)
        applyNullable(&d.Booking, pos, cancelledAt, reason)
        out = append(out, d)
    }
    if err := rows.Err(); err != nil {
        return nil, err
    }
    return out, nil
}

// PastConfirmedOccurrences returns the distinct occurrences that still
// have CONFIRMED bookings and whose end time is at or before now.  The
// no-show sweep walks this list.
func (r *BookingRepo) PastConfirmedOccurrences(ctx context.Context, now time.Time) ([]model.Occurrence, error) {
    const q = `SELECT DISTINCT b.template_id, b.starts_at,
                      DATE_ADD(b.starts_at, INTERVAL (t.end_minute - t.start_minute) MINUTE)
               FROM bookings b
               JOIN class_templates t ON t.id = b.template_id
               WHERE b.status = 'CONFIRMED'
                 AND DATE_ADD(b.starts_at, INTERVAL (t.end_minute - t.start_minute) MINUTE) <= ?`
    rows, err := r.db.QueryContext(ctx, q, now.UTC())
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    out := make([]model.Occurrence, 0)
    for rows.Next() {
        var occ model.Occurrence
        if err := rows.Scan(&occ.TemplateID, &occ.StartsAt, &occ.EndsAt); err != nil {
            return nil, err
        }
        out = append(out, occ)
    }
    if err := rows.Err(); err != nil {
        return nil, err
    }
    return out, nil
}

func scanBooking(row rowScanner) (*model.Booking, error) {
    var b model.Booking
    var status string
    var pos sql.NullInt64
    var cancelledAt sql.NullTime
    var reason sql.NullString
    if err := row.Scan(
        &b.ID, &b.TemplateID, &b.StartsAt, &b.MemberID, &status,
        &pos, &b.CreatedAt, &cancelledAt, &reason,
    ); err != nil {
        return nil, err
    }
    b.Status = model.BookingStatus(status)
    applyNullable(&b, pos, cancelledAt, reason)
    return &b, nil
}

func applyNullable(b *model.Booking, pos sql.NullInt64, cancelledAt sql.NullTime, reason sql.NullString) {
    if pos.Valid {
        p := int(pos.Int64)
        b.WaitlistPosition = &p
    }
    if cancelledAt.Valid {
        t := cancelledAt.Time.UTC()
        b.CancelledAt = &t
    }
    if reason.Valid {
        s := reason.String
        b.CancellationReason = &s
    }
}
