package handler

import (
	"strconv"

	"github.com/gofiber/fiber/v3"

	"github.com/arturoeanton/go-timesheet-mapper/internal/adapter/store"
	"github.com/arturoeanton/go-timesheet-mapper/internal/middleware"
	"github.com/arturoeanton/go-timesheet-mapper/internal/port"
)

// AuditHandler exposes the audit trail to administrators.
type AuditHandler struct {
	store *store.PostgresStore
	authz port.Authorizer
}

// NewAuditHandler creates a new audit handler.
func NewAuditHandler(store *store.PostgresStore, authz port.Authorizer) *AuditHandler {
	return &AuditHandler{store: store, authz: authz}
}

// Register sets up audit routes.
func (h *AuditHandler) Register(api fiber.Router) {
	audit := api.Group("/audit")
	audit.Get("/logs", h.ListLogs)
}

// ListLogs returns recent audit logs, optionally filtered by action.
func (h *AuditHandler) ListLogs(c fiber.Ctx) error {
	uc := middleware.GetUserContext(c)
	if uc == nil {
		return unauthorized(c)
	}
	if !h.authz.HasCapability(uc, port.CapabilityRepositoryAdmin) {
		return fail(c, port.Permissionf("the audit trail requires the %s capability", port.CapabilityRepositoryAdmin))
	}

	limit, _ := strconv.Atoi(c.Query("limit", "100"))
	action := c.Query("action", "")

	logs, err := h.store.ListAuditLogs(c.Context(), limit, action)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"logs":    logs,
		"count":   len(logs),
	})
}
