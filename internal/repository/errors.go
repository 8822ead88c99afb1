// Package repository implements MySQL persistence for class templates
// and bookings. Sentinel errors defined here let higher layers such as
// the booking service and handlers distinguish failure scenarios with
// errors.Is instead of inspecting driver errors.
package repository

import "errors"

// ErrTemplateNotFound is returned when no class template exists with
// the requested ID. Handlers translate this into an HTTP 404 response.
var ErrTemplateNotFound = errors.New("class template not found")
