package router // package router defines how HTTP routes are registered for the API

import (
    "github.com/labstack/echo/v4"

    "github.com/fitdesk/class-booking/internal/handler"
    "github.com/fitdesk/class-booking/internal/middleware"
)

// RegisterRoutes registers routes that do not require authentication.
// Currently this is only the health check.
func RegisterRoutes(e *echo.Echo) {
    e.GET("/healthz", handler.Health)
}

// RegisterPublic registers the unauthenticated browse endpoints: the
// class schedule, per-template details with next-occurrence preview,
// and live occupancy.  Guests use these to decide before logging in to
// book, so no JWT or role middleware applies.
func RegisterPublic(e *echo.Echo, t *handler.TemplateHandler, b *handler.BookingHandler) {
    e.GET("/v1/templates", t.ListTemplates)
    e.GET("/v1/templates/:id", t.GetTemplate)
    e.GET("/v1/templates/:id/next", t.NextOccurrence)
    e.GET("/v1/occupancy", b.GetOccupancy)
}

// RegisterBooking registers the authenticated booking endpoints.
// Members book and cancel; the admin group adds template management,
// front-desk check-in and override cancellations.  Tokens come from the
// external auth service and are verified with the shared secret.
func RegisterBooking(e *echo.Echo, b *handler.BookingHandler, t *handler.TemplateHandler, jwtSecret string) {
    member := e.Group("/v1")
    member.Use(middleware.JWTAuth(jwtSecret))
    member.Use(middleware.RequireRole(middleware.RoleMember, middleware.RoleAdmin))
    member.POST("/bookings", b.CreateBooking)
    member.PATCH("/bookings/:id", b.CancelBooking)
    member.GET("/my-bookings", b.ListMyBookings)

    admin := e.Group("/v1/admin")
    admin.Use(middleware.JWTAuth(jwtSecret))
    admin.Use(middleware.RequireRole(middleware.RoleAdmin))
    admin.POST("/templates", t.CreateTemplate)
    admin.DELETE("/templates/:id", t.DeleteTemplate)
    admin.POST("/bookings/:id/check-in", b.CheckInBooking)
}
