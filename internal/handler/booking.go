package handler

import (
    "net/http"
    "strconv"
    "strings"
    "time"

    "github.com/labstack/echo/v4"

    "github.com/fitdesk/class-booking/internal/repository"
    "github.com/fitdesk/class-booking/internal/service"
)

// BookingHandler serves the member-facing booking operations and the
// front-desk check-in.  JWT authentication and role checks have already
// run in middleware; methods return 401 only when the member ID cannot
// be extracted from the context.
type BookingHandler struct {
    Svc      *service.BookingService
    Bookings *repository.BookingRepo
}

// NewBookingHandler constructs a BookingHandler.  Both dependencies
// must be non-nil.
func NewBookingHandler(svc *service.BookingService, bookings *repository.BookingRepo) *BookingHandler {
    if svc == nil || bookings == nil {
        panic("nil dependency passed to NewBookingHandler")
    }
    return &BookingHandler{Svc: svc, Bookings: bookings}
}

// CreateBooking handles POST /v1/bookings.  The body names the class
// template and the occurrence start instant (RFC 3339, UTC).  On
// success it returns 201 with the created booking, which is either
// CONFIRMED or WAITLISTED with its queue position.
func (h *BookingHandler) CreateBooking(c echo.Context) error {
    memberID, err := getMemberID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    var body struct {
        TemplateID uint64 `json:"class_template_id"`
        StartsAt   string `json:"starts_at"`
    }
    if err := c.Bind(&body); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "INVALID_BODY", "message": "invalid request body"})
    }
    if body.TemplateID == 0 {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "INVALID_BODY", "message": "class_template_id is required"})
    }
    startsAt, err := time.Parse(time.RFC3339, body.StartsAt)
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "INVALID_BODY", "message": "starts_at must be RFC 3339"})
    }
    b, err := h.Svc.Book(c.Request().Context(), body.TemplateID, memberID, startsAt, time.Now().UTC())
    if err != nil {
        return domainError(c, err)
    }
    return c.JSON(http.StatusCreated, toBookingResponse(b, ""))
}

// CancelBooking handles PATCH /v1/bookings/:id.  The only supported
// action is "cancel"; an optional reason is recorded on the booking.
// admin_override skips the cancellation window and requires the ADMIN
// role, but state rules still apply: a booking that is already
// cancelled or attended stays that way even for admins.  When the
// cancellation promotes a waitlisted member the promoted booking is
// included in the response.
func (h *BookingHandler) CancelBooking(c echo.Context) error {
    memberID, err := getMemberID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    id, ok := parseID(c, "id")
    if !ok {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "INVALID_BODY", "message": "invalid booking id"})
    }
    var body struct {
        Action        string `json:"action"`
        Reason        string `json:"reason"`
        AdminOverride bool   `json:"admin_override"`
    }
    if err := c.Bind(&body); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "INVALID_BODY", "message": "invalid request body"})
    }
    if strings.ToLower(body.Action) != "cancel" {
        return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": "INVALID_BODY", "message": "unsupported action"})
    }
    admin := isAdmin(c)
    if body.AdminOverride && !admin {
        return c.JSON(http.StatusForbidden, echo.Map{"error": "FORBIDDEN", "message": "admin_override requires ADMIN role"})
    }
    ctx := c.Request().Context()
    // Members may only touch their own bookings; admins may touch any.
    existing, err := h.Bookings.GetBooking(ctx, id)
    if err != nil {
        return domainError(c, err)
    }
    if !admin && existing.MemberID != memberID {
        return c.JSON(http.StatusNotFound, echo.Map{"error": "BOOKING_NOT_FOUND", "message": "booking not found"})
    }
    cancelled, promoted, err := h.Svc.Cancel(ctx, id, time.Now().UTC(), body.Reason, body.AdminOverride)
    if err != nil {
        return domainError(c, err)
    }
    resp := echo.Map{"booking": toBookingResponse(cancelled, "")}
    if promoted != nil {
        resp["promoted"] = toBookingResponse(promoted, "")
    }
    return c.JSON(http.StatusOK, resp)
}

// CheckInBooking handles POST /v1/bookings/:id/check-in, used by the
// front desk when the member shows up.  Only CONFIRMED bookings can be
// checked in.
func (h *BookingHandler) CheckInBooking(c echo.Context) error {
    id, ok := parseID(c, "id")
    if !ok {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "INVALID_BODY", "message": "invalid booking id"})
    }
    b, err := h.Svc.CheckIn(c.Request().Context(), id, time.Now().UTC())
    if err != nil {
        return domainError(c, err)
    }
    return c.JSON(http.StatusOK, toBookingResponse(b, ""))
}

// GetOccupancy handles GET /v1/occupancy.  Query parameters name the
// template and the occurrence start instant; the response carries live
// confirmed/waitlist counts next to the template's limits.  Served
// read-only, so browsing never queues behind bookings.
func (h *BookingHandler) GetOccupancy(c echo.Context) error {
    templateID, err := strconv.ParseUint(c.QueryParam("class_template_id"), 10, 64)
    if err != nil || templateID == 0 {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "INVALID_BODY", "message": "class_template_id is required"})
    }
    startsAt, err := time.Parse(time.RFC3339, c.QueryParam("starts_at"))
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "INVALID_BODY", "message": "starts_at must be RFC 3339"})
    }
    view, err := h.Svc.Occupancy(c.Request().Context(), templateID, startsAt)
    if err != nil {
        return domainError(c, err)
    }
    return c.JSON(http.StatusOK, view)
}

// ListMyBookings handles GET /v1/my-bookings and returns the calling
// member's bookings, newest first, with class names attached.
func (h *BookingHandler) ListMyBookings(c echo.Context) error {
    memberID, err := getMemberID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    details, err := h.Bookings.ListByMember(c.Request().Context(), memberID)
    if err != nil {
        return domainError(c, err)
    }
    out := make([]bookingResponse, 0, len(details))
    for i := range details {
        out = append(out, toBookingResponse(&details[i].Booking, details[i].ClassName))
    }
    return c.JSON(http.StatusOK, echo.Map{"bookings": out})
}
