package repository

import (
    "context"
    "database/sql"
    "errors"
    "time"

    "github.com/fitdesk/class-booking/internal/model"
)

// TemplateRepo provides CRUD operations for class templates.  Templates
// are written by the administrative collaborator and only read by the
// booking engine.  All timestamp columns are stored in UTC; recurrence
// columns are nullable per kind (day_of_week for WEEKLY, date for
// ONE_TIME).
type TemplateRepo struct {
    db *sql.DB
}

// NewTemplateRepo returns a new TemplateRepo bound to the given database.
func NewTemplateRepo(db *sql.DB) *TemplateRepo { return &TemplateRepo{db: db} }

// Create inserts a new class template and populates the generated ID
// and timestamps on the provided model.  The template must already be
// validated.
func (r *TemplateRepo) Create(ctx context.Context, t *model.ClassTemplate) error {
    const q = `INSERT INTO class_templates
        (name, capacity, waitlist_enabled, waitlist_capacity,
         recurrence_kind, day_of_week, date, start_minute, end_minute,
         booking_window_days, cancel_window_hours)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
    var day interface{}
    var date interface{}
    switch t.Recurrence.Kind {
    case model.RecurrenceWeekly:
        day = int(t.Recurrence.DayOfWeek)
    case model.RecurrenceOneTime:
        date = t.Recurrence.Date.UTC().Format("2006-01-02")
    }
    result, err := r.db.ExecContext(ctx, q,
        t.Name, t.Capacity, t.WaitlistEnabled, t.WaitlistCapacity,
        string(t.Recurrence.Kind), day, date, t.Recurrence.StartMinute, t.Recurrence.EndMinute,
        t.BookingWindowDays, t.CancelWindowHours,
    )
    if err != nil {
        return err
    }
    id, err := result.LastInsertId()
    if err != nil {
        return err
    }
    t.ID = uint64(id)
    // Query back the row to populate timestamps and defaults.
    got, err := r.GetByID(ctx, t.ID)
    if err != nil {
        return err
    }
    *t = *got
    return nil
}

// GetByID returns one template or ErrTemplateNotFound.
func (r *TemplateRepo) GetByID(ctx context.Context, id uint64) (*model.ClassTemplate, error) {
    const q = `SELECT id, name, capacity, waitlist_enabled, waitlist_capacity,
                      recurrence_kind, day_of_week, date, start_minute, end_minute,
                      booking_window_days, cancel_window_hours, created_at, updated_at
               FROM class_templates WHERE id = ?`
    t, err := scanTemplate(r.db.QueryRowContext(ctx, q, id))
    if err != nil {
        if errors.Is(err, sql.ErrNoRows) {
            return nil, ErrTemplateNotFound
        }
        return nil, err
    }
    return t, nil
}

// List returns all templates ordered by name for the browse endpoints.
func (r *TemplateRepo) List(ctx context.Context) ([]model.ClassTemplate, error) {
    const q = `SELECT id, name, capacity, waitlist_enabled, waitlist_capacity,
                      recurrence_kind, day_of_week, date, start_minute, end_minute,
                      booking_window_days, cancel_window_hours, created_at, updated_at
               FROM class_templates ORDER BY name, id`
    rows, err := r.db.QueryContext(ctx, q)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    out := make([]model.ClassTemplate, 0)
    for rows.Next() {
        t, err := scanTemplate(rows)
        if err != nil {
            return nil, err
        }
        out = append(out, *t)
    }
    if err := rows.Err(); err != nil {
        return nil, err
    }
    return out, nil
}

// Delete removes a template.  Bookings keep their template_id; history
// stays intact because bookings are never deleted, only transitioned.
func (r *TemplateRepo) Delete(ctx context.Context, id uint64) error {
    res, err := r.db.ExecContext(ctx, `DELETE FROM class_templates WHERE id = ?`, id)
    if err != nil {
        return err
    }
    n, err := res.RowsAffected()
    if err != nil {
        return err
    }
    if n == 0 {
        return ErrTemplateNotFound
    }
    return nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
    Scan(dest ...interface{}) error
}

func scanTemplate(row rowScanner) (*model.ClassTemplate, error) {
    var t model.ClassTemplate
    var kind string
    var day sql.NullInt64
    var date sql.NullTime
    if err := row.Scan(
        &t.ID, &t.Name, &t.Capacity, &t.WaitlistEnabled, &t.WaitlistCapacity,
        &kind, &day, &date, &t.Recurrence.StartMinute, &t.Recurrence.EndMinute,
        &t.BookingWindowDays, &t.CancelWindowHours, &t.CreatedAt, &t.UpdatedAt,
    ); err != nil {
        return nil, err
    }
    t.Recurrence.Kind = model.RecurrenceKind(kind)
    if day.Valid {
        t.Recurrence.DayOfWeek = time.Weekday(day.Int64)
    }
    if date.Valid {
        // parseTime=true with loc=UTC yields midnight UTC for DATE columns.
        t.Recurrence.Date = date.Time.UTC()
    }
    return &t, nil
}
