package handler

import (
	"errors"

	"github.com/gofiber/fiber/v3"

	"github.com/arturoeanton/go-timesheet-mapper/internal/middleware"
	"github.com/arturoeanton/go-timesheet-mapper/internal/port"
)

// UserHandler exposes the authenticated user's profile.
type UserHandler struct {
	users port.UserStore
}

// NewUserHandler creates a new user handler.
func NewUserHandler(users port.UserStore) *UserHandler {
	return &UserHandler{users: users}
}

// Register sets up user routes.
func (h *UserHandler) Register(api fiber.Router) {
	api.Get("/me", h.Me)
}

// Me returns the stored user record for the authenticated caller. Users
// provisioned only in the token issuer fall back to their claims.
func (h *UserHandler) Me(c fiber.Ctx) error {
	uc := middleware.GetUserContext(c)
	if uc == nil {
		return unauthorized(c)
	}

	user, err := h.users.GetUser(c.Context(), uc.UserID)
	if errors.Is(err, port.ErrNotFound) {
		return c.JSON(fiber.Map{"success": true, "user": uc})
	}
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "user": user})
}
