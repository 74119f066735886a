package middleware

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/fundstransfer/internal/validation"
)

type errorResponse struct {
	Message string                  `json:"message"`
	Details []validation.FieldError `json:"details,omitempty"`
}

// ErrorHandler renders handler errors as JSON. Unexpected errors are logged
// and hidden behind a generic message.
func ErrorHandler(logger *slog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var verr *validation.Error
		if errors.As(err, &verr) {
			return c.Status(fiber.StatusBadRequest).JSON(errorResponse{Message: "Invalid request data", Details: verr.Details})
		}
		var ferr *fiber.Error
		if errors.As(err, &ferr) {
			return c.Status(ferr.Code).JSON(errorResponse{Message: ferr.Message})
		}
		requestID, _ := c.Locals(requestIDHeader).(string)
		logger.Error("unhandled request error", "path", c.Path(), "request_id", requestID, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(errorResponse{Message: "internal server error"})
	}
}
