package handler

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v3"

	"github.com/arturoeanton/go-timesheet-mapper/internal/domain"
	"github.com/arturoeanton/go-timesheet-mapper/internal/middleware"
	"github.com/arturoeanton/go-timesheet-mapper/internal/service"
)

// MappingHandler handles mapping lifecycle, suggestions, and timesheet
// lookups for the mapping workflow.
type MappingHandler struct {
	mappings    *service.MappingService
	suggestions *service.SuggestionService
}

// NewMappingHandler creates a new mapping handler.
func NewMappingHandler(mappings *service.MappingService, suggestions *service.SuggestionService) *MappingHandler {
	return &MappingHandler{mappings: mappings, suggestions: suggestions}
}

// Register sets up mapping and timesheet routes on a protected group.
func (h *MappingHandler) Register(api fiber.Router) {
	mappings := api.Group("/mappings")
	mappings.Post("/", h.Create)
	mappings.Post("/bulk", h.CreateBulk)
	mappings.Get("/", h.List)
	mappings.Get("/statistics", h.Statistics)
	mappings.Post("/suggest", h.Suggest)
	mappings.Post("/automap", h.AutoMap)
	mappings.Get("/:id/validate", h.Validate)
	mappings.Delete("/:id", h.Delete)

	api.Get("/timesheets", h.ListTimesheets)
	api.Get("/timesheets/:id/suggestions", h.TimesheetSuggestions)
}

// Create links one commit to one timesheet entry.
func (h *MappingHandler) Create(c fiber.Ctx) error {
	uc := middleware.GetUserContext(c)
	if uc == nil {
		return unauthorized(c)
	}

	var body service.CreateMappingInput
	if err := c.Bind().JSON(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   fiber.Map{"code": "validation_error", "message": "invalid body"},
		})
	}

	mapping, err := h.mappings.CreateMapping(c.Context(), uc, body)
	if err != nil {
		return fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "mapping": mapping})
}

// CreateBulk links many commits to one timesheet entry, reporting
// created, skipped, and failed commits individually.
func (h *MappingHandler) CreateBulk(c fiber.Ctx) error {
	uc := middleware.GetUserContext(c)
	if uc == nil {
		return unauthorized(c)
	}

	var body struct {
		CommitIDs        []string `json:"commit_ids"`
		TimesheetEntryID string   `json:"timesheet_entry_id"`
		Description      string   `json:"description"`
	}
	if err := c.Bind().JSON(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   fiber.Map{"code": "validation_error", "message": "invalid body"},
		})
	}

	result, err := h.mappings.CreateBulkMappings(c.Context(), uc, body.CommitIDs, body.TimesheetEntryID, body.Description)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "result": result})
}

// Delete removes a mapping and unmaps its commit.
func (h *MappingHandler) Delete(c fiber.Ctx) error {
	uc := middleware.GetUserContext(c)
	if uc == nil {
		return unauthorized(c)
	}

	if err := h.mappings.RemoveMapping(c.Context(), uc, c.Params("id")); err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"success": true})
}

// Validate recomputes the validity of a mapping.
func (h *MappingHandler) Validate(c fiber.Ctx) error {
	uc := middleware.GetUserContext(c)
	if uc == nil {
		return unauthorized(c)
	}

	validation, err := h.mappings.ValidateMapping(c.Context(), uc, c.Params("id"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "validation": validation})
}

// List returns the company's mappings matching the query filters.
func (h *MappingHandler) List(c fiber.Ctx) error {
	uc := middleware.GetUserContext(c)
	if uc == nil {
		return unauthorized(c)
	}

	mappings, err := h.mappings.ListMappings(c.Context(), uc, statsFilterFromQuery(c))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "mappings": mappings, "count": len(mappings)})
}

// Statistics aggregates mapping activity.
func (h *MappingHandler) Statistics(c fiber.Ctx) error {
	uc := middleware.GetUserContext(c)
	if uc == nil {
		return unauthorized(c)
	}

	stats, err := h.mappings.GetMappingStatistics(c.Context(), uc, statsFilterFromQuery(c))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "statistics": stats})
}

// Suggest builds per-commit ranked suggestion lists.
func (h *MappingHandler) Suggest(c fiber.Ctx) error {
	uc := middleware.GetUserContext(c)
	if uc == nil {
		return unauthorized(c)
	}

	var body struct {
		CommitIDs []string `json:"commit_ids"`
		Limit     int      `json:"limit"`
	}
	_ = c.Bind().JSON(&body)

	suggestions, err := h.suggestions.SuggestMappings(c.Context(), uc, body.CommitIDs, body.Limit)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "suggestions": suggestions, "count": len(suggestions)})
}

// AutoMap maps every unmapped commit whose top suggestion clears the
// confidence threshold.
func (h *MappingHandler) AutoMap(c fiber.Ctx) error {
	uc := middleware.GetUserContext(c)
	if uc == nil {
		return unauthorized(c)
	}

	var body struct {
		RepositoryID string `json:"repository_id"`
	}
	_ = c.Bind().JSON(&body)

	result, err := h.suggestions.AutoMapCommits(c.Context(), uc, body.RepositoryID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "result": result})
}

// ListTimesheets returns the company's timesheet entries for the mapping UI.
func (h *MappingHandler) ListTimesheets(c fiber.Ctx) error {
	uc := middleware.GetUserContext(c)
	if uc == nil {
		return unauthorized(c)
	}

	var from, to *time.Time
	if v := c.Query("date_from"); v != "" {
		if t, err := time.Parse("2006-01-02", v); err == nil {
			from = &t
		}
	}
	if v := c.Query("date_to"); v != "" {
		if t, err := time.Parse("2006-01-02", v); err == nil {
			end := t.Add(24*time.Hour - time.Second)
			to = &end
		}
	}

	entries, err := h.mappings.ListTimesheetEntries(c.Context(), uc, from, to)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "timesheets": entries, "count": len(entries)})
}

// TimesheetSuggestions returns ranked commit suggestions for one entry.
func (h *MappingHandler) TimesheetSuggestions(c fiber.Ctx) error {
	uc := middleware.GetUserContext(c)
	if uc == nil {
		return unauthorized(c)
	}

	limit, _ := strconv.Atoi(c.Query("limit", "5"))
	suggestions, err := h.suggestions.SuggestForTimesheet(c.Context(), uc, c.Params("id"), limit)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "suggestions": suggestions, "count": len(suggestions)})
}

// statsFilterFromQuery parses the mapping list/statistics filters.
func statsFilterFromQuery(c fiber.Ctx) domain.MappingStatsFilter {
	filter := domain.MappingStatsFilter{
		ProjectID: c.Query("project_id"),
		UserID:    c.Query("user_id"),
	}
	if v := c.Query("date_from"); v != "" {
		if t, err := time.Parse("2006-01-02", v); err == nil {
			filter.DateFrom = &t
		}
	}
	if v := c.Query("date_to"); v != "" {
		if t, err := time.Parse("2006-01-02", v); err == nil {
			end := t.Add(24*time.Hour - time.Second)
			filter.DateTo = &end
		}
	}
	return filter
}
