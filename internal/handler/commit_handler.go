package handler

import (
	"strconv"

	"github.com/gofiber/fiber/v3"

	"github.com/arturoeanton/go-timesheet-mapper/internal/middleware"
	"github.com/arturoeanton/go-timesheet-mapper/internal/service"
)

// CommitHandler serves stored commits, their diffs, and their suggestions.
type CommitHandler struct {
	repoService *service.RepositoryService
	suggestions *service.SuggestionService
}

// NewCommitHandler creates a new commit handler.
func NewCommitHandler(repoService *service.RepositoryService, suggestions *service.SuggestionService) *CommitHandler {
	return &CommitHandler{repoService: repoService, suggestions: suggestions}
}

// Register sets up commit routes on a protected group.
func (h *CommitHandler) Register(api fiber.Router) {
	commits := api.Group("/commits")
	commits.Get("/:id", h.Get)
	commits.Get("/:id/diff", h.Diff)
	commits.Get("/:id/suggestions", h.Suggestions)
}

// Get returns one stored commit.
func (h *CommitHandler) Get(c fiber.Ctx) error {
	uc := middleware.GetUserContext(c)
	if uc == nil {
		return unauthorized(c)
	}

	commit, err := h.repoService.GetCommit(c.Context(), uc, c.Params("id"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "commit": commit})
}

// Diff returns the remote file-level diff for a stored commit.
func (h *CommitHandler) Diff(c fiber.Ctx) error {
	uc := middleware.GetUserContext(c)
	if uc == nil {
		return unauthorized(c)
	}

	diff, err := h.repoService.GetCommitDiff(c.Context(), uc, c.Params("id"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "diff": diff})
}

// Suggestions returns ranked timesheet suggestions for a commit.
func (h *CommitHandler) Suggestions(c fiber.Ctx) error {
	uc := middleware.GetUserContext(c)
	if uc == nil {
		return unauthorized(c)
	}

	limit, _ := strconv.Atoi(c.Query("limit", "5"))
	suggestions, err := h.suggestions.SuggestForCommit(c.Context(), uc, c.Params("id"), limit)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "suggestions": suggestions, "count": len(suggestions)})
}
