package handler

import (
    "net/http"
    "strings"
    "time"

    "github.com/labstack/echo/v4"

    "github.com/fitdesk/class-booking/internal/model"
    "github.com/fitdesk/class-booking/internal/repository"
    "github.com/fitdesk/class-booking/internal/service"
)

// TemplateHandler serves class template administration and the public
// schedule browse endpoints.
type TemplateHandler struct {
    Templates *repository.TemplateRepo
    Svc       *service.BookingService
}

// NewTemplateHandler constructs a TemplateHandler.  Both dependencies
// must be non-nil.
func NewTemplateHandler(templates *repository.TemplateRepo, svc *service.BookingService) *TemplateHandler {
    if templates == nil || svc == nil {
        panic("nil dependency passed to NewTemplateHandler")
    }
    return &TemplateHandler{Templates: templates, Svc: svc}
}

// templateRequest is the admin-facing create payload.  Times of day are
// "HH:MM" strings in UTC; weekday numbering follows Go (Sunday = 0).
type templateRequest struct {
    Name              string `json:"name"`
    Capacity          int    `json:"capacity"`
    WaitlistEnabled   *bool  `json:"waitlist_enabled"`
    WaitlistCapacity  int    `json:"waitlist_capacity"`
    RecurrenceKind    string `json:"recurrence_kind"`
    DayOfWeek         *int   `json:"day_of_week"`
    Date              string `json:"date"`
    StartTime         string `json:"start_time"`
    EndTime           string `json:"end_time"`
    BookingWindowDays int    `json:"booking_window_days"`
    CancelWindowHours int    `json:"cancel_window_hours"`
}

// templateResponse mirrors templateRequest with server-assigned fields.
type templateResponse struct {
    ID                uint64 `json:"id"`
    Name              string `json:"name"`
    Capacity          int    `json:"capacity"`
    WaitlistEnabled   bool   `json:"waitlist_enabled"`
    WaitlistCapacity  int    `json:"waitlist_capacity"`
    RecurrenceKind    string `json:"recurrence_kind"`
    DayOfWeek         *int   `json:"day_of_week,omitempty"`
    Date              string `json:"date,omitempty"`
    StartTime         string `json:"start_time"`
    EndTime           string `json:"end_time"`
    BookingWindowDays int    `json:"booking_window_days"`
    CancelWindowHours int    `json:"cancel_window_hours"`
    CreatedAt         string `json:"created_at"`
}

func toTemplateResponse(t *model.ClassTemplate) templateResponse {
    resp := templateResponse{
        ID:                t.ID,
        Name:              t.Name,
        Capacity:          t.Capacity,
        WaitlistEnabled:   t.WaitlistEnabled,
        WaitlistCapacity:  t.WaitlistCapacity,
        RecurrenceKind:    string(t.Recurrence.Kind),
        StartTime:         minuteToClock(t.Recurrence.StartMinute),
        EndTime:           minuteToClock(t.Recurrence.EndMinute),
        BookingWindowDays: t.BookingWindowDays,
        CancelWindowHours: t.CancelWindowHours,
        CreatedAt:         t.CreatedAt.UTC().Format(time.RFC3339),
    }
    switch t.Recurrence.Kind {
    case model.RecurrenceWeekly:
        d := int(t.Recurrence.DayOfWeek)
        resp.DayOfWeek = &d
    case model.RecurrenceOneTime:
        resp.Date = t.Recurrence.Date.UTC().Format("2006-01-02")
    }
    return resp
}

func minuteToClock(m int) string {
    return time.Date(0, 1, 1, 0, m, 0, 0, time.UTC).Format("15:04")
}

func clockToMinute(s string) (int, bool) {
    t, err := time.Parse("15:04", strings.TrimSpace(s))
    if err != nil {
        return 0, false
    }
    return t.Hour()*60 + t.Minute(), true
}

// CreateTemplate handles POST /v1/templates (admin only).  The template
// is validated before it is persisted; validation failures come back as
// 422 with the offending rule in the message.
func (h *TemplateHandler) CreateTemplate(c echo.Context) error {
    var body templateRequest
    if err := c.Bind(&body); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "INVALID_BODY", "message": "invalid request body"})
    }
    start, okStart := clockToMinute(body.StartTime)
    end, okEnd := clockToMinute(body.EndTime)
    if !okStart || !okEnd {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "INVALID_BODY", "message": "start_time and end_time must be HH:MM"})
    }
    t := model.ClassTemplate{
        Name:              strings.TrimSpace(body.Name),
        Capacity:          body.Capacity,
        WaitlistEnabled:   body.WaitlistEnabled == nil || *body.WaitlistEnabled,
        WaitlistCapacity:  body.WaitlistCapacity,
        BookingWindowDays: body.BookingWindowDays,
        CancelWindowHours: body.CancelWindowHours,
        Recurrence: model.Recurrence{
            Kind:        model.RecurrenceKind(strings.ToUpper(body.RecurrenceKind)),
            StartMinute: start,
            EndMinute:   end,
        },
    }
    if body.DayOfWeek != nil {
        t.Recurrence.DayOfWeek = time.Weekday(*body.DayOfWeek)
    }
    if body.Date != "" {
        d, err := time.Parse("2006-01-02", body.Date)
        if err != nil {
            return c.JSON(http.StatusBadRequest, echo.Map{"error": "INVALID_BODY", "message": "date must be YYYY-MM-DD"})
        }
        t.Recurrence.Date = d.UTC()
    }
    if err := t.Validate(); err != nil {
        return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": "INVALID_TEMPLATE", "message": err.Error()})
    }
    if err := h.Templates.Create(c.Request().Context(), &t); err != nil {
        return domainError(c, err)
    }
    return c.JSON(http.StatusCreated, toTemplateResponse(&t))
}

// ListTemplates handles GET /v1/templates, the public schedule browse.
func (h *TemplateHandler) ListTemplates(c echo.Context) error {
    templates, err := h.Templates.List(c.Request().Context())
    if err != nil {
        return domainError(c, err)
    }
    out := make([]templateResponse, 0, len(templates))
    for i := range templates {
        out = append(out, toTemplateResponse(&templates[i]))
    }
    return c.JSON(http.StatusOK, echo.Map{"templates": out})
}

// GetTemplate handles GET /v1/templates/:id.
func (h *TemplateHandler) GetTemplate(c echo.Context) error {
    id, ok := parseID(c, "id")
    if !ok {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "INVALID_BODY", "message": "invalid template id"})
    }
    t, err := h.Templates.GetByID(c.Request().Context(), id)
    if err != nil {
        return domainError(c, err)
    }
    return c.JSON(http.StatusOK, toTemplateResponse(t))
}

// DeleteTemplate handles DELETE /v1/templates/:id (admin only).
// Existing bookings are untouched; history is never deleted.
func (h *TemplateHandler) DeleteTemplate(c echo.Context) error {
    id, ok := parseID(c, "id")
    if !ok {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "INVALID_BODY", "message": "invalid template id"})
    }
    if err := h.Templates.Delete(c.Request().Context(), id); err != nil {
        return domainError(c, err)
    }
    return c.NoContent(http.StatusNoContent)
}

// NextOccurrence handles GET /v1/templates/:id/next and previews the
// template's next bookable occurrence.  A one-time class whose date has
// passed reports has_next=false rather than rolling over.
func (h *TemplateHandler) NextOccurrence(c echo.Context) error {
    id, ok := parseID(c, "id")
    if !ok {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "INVALID_BODY", "message": "invalid template id"})
    }
    occ, hasNext, err := h.Svc.NextOccurrence(c.Request().Context(), id, time.Now().UTC())
    if err != nil {
        return domainError(c, err)
    }
    if !hasNext {
        return c.JSON(http.StatusOK, echo.Map{"has_next": false})
    }
    return c.JSON(http.StatusOK, echo.Map{
        "has_next":  true,
        "starts_at": occ.StartsAt.UTC().Format(time.RFC3339),
        "ends_at":   occ.EndsAt.UTC().Format(time.RFC3339),
    })
}
