package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/aquadex/aquadex/internal/core/domain"
	"github.com/aquadex/aquadex/internal/pkg/logging"
)

// APIError is a structured error response.
type APIError struct {
	Status    int    `json:"status"`
	Code      string `json:"code"`    // Error code: bad_request, not_found, internal_error, etc.
	Message   string `json:"message"` // Human-readable message
	RequestID string `json:"request_id,omitempty"`
}

// newError builds a JSON error response with a request ID.
func newError(c *fiber.Ctx, status int, code string, message string) error {
	reqID, _ := c.Locals("requestid").(string)
	return c.Status(status).JSON(APIError{
		Status:    status,
		Code:      code,
		Message:   message,
		RequestID: reqID,
	})
}

// errBadRequest returns a 400 error.
func errBadRequest(c *fiber.Ctx, msg string) error {
	return newError(c, fiber.StatusBadRequest, "bad_request", msg)
}

// errNotFound returns a 404 error.
func errNotFound(c *fiber.Ctx, msg string) error {
	return newError(c, fiber.StatusNotFound, "not_found", msg)
}

// errInternal returns a 500 error.
func errInternal(c *fiber.Ctx, msg string) error {
	return newError(c, fiber.StatusInternalServerError, "internal_error", msg)
}

// errUnavailable returns a 503 error.
func errUnavailable(c *fiber.Ctx, msg string) error {
	return newError(c, fiber.StatusServiceUnavailable, "unavailable", msg)
}

// errFromService maps domain errors onto HTTP responses.
func errFromService(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, domain.ErrInvalidCoordinate):
		return newError(c, fiber.StatusBadRequest, "invalid_coordinate", err.Error())
	case errors.Is(err, domain.ErrInvalidRadius):
		return newError(c, fiber.StatusBadRequest, "invalid_radius", err.Error())
	case errors.Is(err, domain.ErrInvalidUnit):
		return newError(c, fiber.StatusBadRequest, "invalid_unit", err.Error())
	case errors.Is(err, domain.ErrInvalidQuery):
		return newError(c, fiber.StatusBadRequest, "invalid_query", err.Error())
	case errors.Is(err, domain.ErrInvalidStore):
		return newError(c, fiber.StatusBadRequest, "invalid_store", err.Error())
	case errors.Is(err, domain.ErrNotFound):
		return errNotFound(c, err.Error())
	default:
		logging.FromContext(c.UserContext()).Error("request failed", "path", c.Path(), "error", err)
		return errInternal(c, "internal error")
	}
}
