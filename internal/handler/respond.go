package handler

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v3"

	"github.com/arturoeanton/go-timesheet-mapper/internal/port"
)

// statusForCode maps the error taxonomy to HTTP status codes.
func statusForCode(code string) int {
	switch code {
	case port.CodeValidation, port.CodeIntegrity, port.CodePlatformAuth:
		return fiber.StatusBadRequest
	case port.CodePermission:
		return fiber.StatusForbidden
	case port.CodeNotFound, port.CodePlatformNotFound:
		return fiber.StatusNotFound
	case port.CodeConflict:
		return fiber.StatusConflict
	case port.CodePlatformRateLimit:
		return fiber.StatusTooManyRequests
	case port.CodePlatformTimeout, port.CodePlatformServer, port.CodePlatform:
		return fiber.StatusBadGateway
	}
	return fiber.StatusInternalServerError
}

// fail writes the error envelope. Untyped errors become an opaque 500 so
// internal details never leak to clients.
func fail(c fiber.Ctx, err error) error {
	var typed *port.Error
	if !errors.As(err, &typed) {
		slog.Error("request failed", "path", c.Path(), "error", err)
		typed = &port.Error{Code: "internal_error", Message: "internal server error"}
	}
	return c.Status(statusForCode(typed.Code)).JSON(fiber.Map{
		"success": false,
		"error":   fiber.Map{"code": typed.Code, "message": typed.Message},
	})
}

func unauthorized(c fiber.Ctx) error {
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
		"success": false,
		"error":   fiber.Map{"code": "unauthorized", "message": "unauthorized"},
	})
}
