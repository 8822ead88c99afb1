// Package handler exposes the booking engine over HTTP.  Handlers do
// request parsing and response shaping only; timing rules live in the
// service and capacity rules in the ledger.  Domain failures are mapped
// to stable machine-readable error codes so the mobile app and the
// front-desk UI can branch without string matching.
package handler

import (
    "errors"
    "net/http"
    "strconv"
    "time"

    "github.com/labstack/echo/v4"

    "github.com/fitdesk/class-booking/internal/ledger"
    "github.com/fitdesk/class-booking/internal/model"
    "github.com/fitdesk/class-booking/internal/repository"
    "github.com/fitdesk/class-booking/internal/service"
)

// getMemberID extracts the member_id JWTAuth stored in the context and
// converts it to uint64.  The JWT sub claim decodes as float64 for
// numeric JSON, but tokens from older issuers carry it as a string.
func getMemberID(c echo.Context) (uint64, error) {
    v := c.Get("member_id")
    switch t := v.(type) {
    case uint64:
        return t, nil
    case int:
        return uint64(t), nil
    case int64:
        return uint64(t), nil
    case float64:
        return uint64(t), nil
    case string:
        if n, err := strconv.ParseUint(t, 10, 64); err == nil {
            return n, nil
        }
    }
    return 0, errors.New("invalid member_id in context")
}

// isAdmin reports whether the authenticated caller carries the ADMIN role.
func isAdmin(c echo.Context) bool {
    role, _ := c.Get("role").(string)
    return role == "ADMIN"
}

// domainError maps a domain failure to its HTTP status and stable error
// code.  Validation failures are 400, state and capacity conflicts 409,
// lock starvation 503 with a Retry-After hint, and everything unknown
// falls through to a plain 500.
func domainError(c echo.Context, err error) error {
    type mapping struct {
        target error
        status int
        code   string
    }
    mappings := []mapping{
        {service.ErrInvalidOccurrence, http.StatusBadRequest, "INVALID_OCCURRENCE"},
        {service.ErrOccurrenceInPast, http.StatusBadRequest, "OCCURRENCE_IN_PAST"},
        {service.ErrBookingWindowExceeded, http.StatusBadRequest, "BOOKING_WINDOW_EXCEEDED"},
        {service.ErrCancelWindowClosed, http.StatusConflict, "CANCEL_WINDOW_CLOSED"},
        {ledger.ErrClassFull, http.StatusConflict, "CLASS_FULL"},
        {ledger.ErrDuplicateBooking, http.StatusConflict, "DUPLICATE_BOOKING"},
        {ledger.ErrAlreadyCancelled, http.StatusConflict, "ALREADY_CANCELLED"},
        {ledger.ErrNotCancellable, http.StatusConflict, "NOT_CANCELLABLE"},
        {ledger.ErrNotConfirmed, http.StatusConflict, "NOT_CONFIRMED"},
        {ledger.ErrBookingNotFound, http.StatusNotFound, "BOOKING_NOT_FOUND"},
        {repository.ErrTemplateNotFound, http.StatusNotFound, "TEMPLATE_NOT_FOUND"},
        {ledger.ErrLedgerCorrupted, http.StatusInternalServerError, "LEDGER_CORRUPTED"},
    }
    for _, m := range mappings {
        if errors.Is(err, m.target) {
            return c.JSON(m.status, echo.Map{"error": m.code, "message": m.target.Error()})
        }
    }
    if errors.Is(err, ledger.ErrBusy) {
        c.Response().Header().Set("Retry-After", "1")
        return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "BUSY", "message": "occurrence busy, retry shortly"})
    }
    c.Logger().Errorf("unhandled domain error: %v", err)
    return c.JSON(http.StatusInternalServerError, echo.Map{"error": "INTERNAL", "message": "internal error"})
}

// bookingResponse is the wire shape of one booking.
type bookingResponse struct {
    ID               uint64  `json:"id"`
    TemplateID       uint64  `json:"class_template_id"`
    ClassName        string  `json:"class_name,omitempty"`
    MemberID         uint64  `json:"member_id"`
    StartsAt         string  `json:"starts_at"`
    Status           string  `json:"status"`
    WaitlistPosition *int    `json:"waitlist_position,omitempty"`
    CreatedAt        string  `json:"created_at"`
    CancelledAt      *string `json:"cancelled_at,omitempty"`
    Reason           *string `json:"cancellation_reason,omitempty"`
}

func toBookingResponse(b *model.Booking, className string) bookingResponse {
    resp := bookingResponse{
        ID:               b.ID,
        TemplateID:       b.TemplateID,
        ClassName:        className,
        MemberID:         b.MemberID,
        StartsAt:         b.StartsAt.UTC().Format(time.RFC3339),
        Status:           string(b.Status),
        WaitlistPosition: b.WaitlistPosition,
        CreatedAt:        b.CreatedAt.UTC().Format(time.RFC3339),
        Reason:           b.CancellationReason,
    }
    if b.CancelledAt != nil {
        s := b.CancelledAt.UTC().Format(time.RFC3339)
        resp.CancelledAt = &s
    }
    return resp
}

// parseID parses a positive uint64 path parameter.
func parseID(c echo.Context, name string) (uint64, bool) {
    id, err := strconv.ParseUint(c.Param(name), 10, 64)
    return id, err == nil && id > 0
}
