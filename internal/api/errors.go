package api

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"github.com/Veraticus/the-paperwork-must-flow/internal/common"
)

// errorResponse is the body of every failed request.
type errorResponse struct {
	Error             string `json:"error"`
	ExistingSessionID string `json:"existing_session_id,omitempty"`
}

// statusFor maps core errors onto HTTP status codes.
func statusFor(err error) int {
	var fiberErr *fiber.Error
	switch {
	case errors.As(err, &fiberErr):
		return fiberErr.Code
	case errors.Is(err, common.ErrUnauthenticated):
		return fiber.StatusUnauthorized
	case errors.Is(err, common.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, common.ErrForbidden):
		return fiber.StatusForbidden
	case errors.Is(err, common.ErrDuplicateEntry),
		errors.Is(err, common.ErrHasAssociatedEntries),
		errors.Is(err, common.ErrInvalidTransition):
		return fiber.StatusConflict
	case common.IsClientError(err), errors.Is(err, common.ErrParse):
		return fiber.StatusBadRequest
	default:
		return fiber.StatusInternalServerError
	}
}

func errorHandler(c *fiber.Ctx, err error) error {
	status := statusFor(err)
	body := errorResponse{Error: err.Error()}

	var dup *common.DuplicateUploadError
	if errors.As(err, &dup) {
		body.ExistingSessionID = dup.ExistingSessionID
	}
	if status == fiber.StatusInternalServerError {
		slog.Error("Request failed", "method", c.Method(), "path", c.Path(), "error", err)
		body.Error = "internal server error"
	}
	return c.Status(status).JSON(body)
}
