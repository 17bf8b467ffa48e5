package handler

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v3"

	"github.com/arturoeanton/go-timesheet-mapper/internal/domain"
	"github.com/arturoeanton/go-timesheet-mapper/internal/middleware"
	"github.com/arturoeanton/go-timesheet-mapper/internal/service"
)

// RepositoryHandler handles repository CRUD, remote queries, and sync.
type RepositoryHandler struct {
	repoService *service.RepositoryService
	syncService *service.SyncService
}

// NewRepositoryHandler creates a new repository handler.
func NewRepositoryHandler(repoService *service.RepositoryService, syncService *service.SyncService) *RepositoryHandler {
	return &RepositoryHandler{repoService: repoService, syncService: syncService}
}

// Register sets up repository routes on a protected group.
func (h *RepositoryHandler) Register(api fiber.Router) {
	repos := api.Group("/repositories")
	repos.Post("/", h.Create)
	repos.Get("/", h.List)
	repos.Get("/:id", h.Get)
	repos.Put("/:id", h.Update)
	repos.Delete("/:id", h.Delete)
	repos.Post("/:id/test", h.TestConnection)
	repos.Get("/:id/branches", h.Branches)
	repos.Post("/:id/sync", h.Sync)
	repos.Get("/:id/info", h.Info)
	repos.Get("/:id/search", h.SearchRemote)
	repos.Get("/:id/commits", h.Commits)
	repos.Get("/:id/statistics", h.Statistics)
}

// Create registers a new repository.
func (h *RepositoryHandler) Create(c fiber.Ctx) error {
	uc := middleware.GetUserContext(c)
	if uc == nil {
		return unauthorized(c)
	}

	var body service.CreateRepositoryInput
	if err := c.Bind().JSON(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   fiber.Map{"code": "validation_error", "message": "invalid body"},
		})
	}

	repo, err := h.repoService.CreateRepository(c.Context(), uc, body)
	if err != nil {
		return fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "repository": repo})
}

// List returns the company's repositories with their commit rollups.
func (h *RepositoryHandler) List(c fiber.Ctx) error {
	uc := middleware.GetUserContext(c)
	if uc == nil {
		return unauthorized(c)
	}

	repos, err := h.repoService.ListRepositories(c.Context(), uc)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "repositories": repos, "count": len(repos)})
}

// Get returns one repository with its commit rollup.
func (h *RepositoryHandler) Get(c fiber.Ctx) error {
	uc := middleware.GetUserContext(c)
	if uc == nil {
		return unauthorized(c)
	}

	repo, err := h.repoService.GetRepository(c.Context(), uc, c.Params("id"))
	if err != nil {
		return fail(c, err)
	}
	stats, err := h.repoService.GetRepositoryStats(c.Context(), uc, repo.ID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "repository": repo, "stats": stats})
}

// Update changes a repository's settings.
func (h *RepositoryHandler) Update(c fiber.Ctx) error {
	uc := middleware.GetUserContext(c)
	if uc == nil {
		return unauthorized(c)
	}

	var body service.UpdateRepositoryInput
	if err := c.Bind().JSON(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   fiber.Map{"code": "validation_error", "message": "invalid body"},
		})
	}

	repo, err := h.repoService.UpdateRepository(c.Context(), uc, c.Params("id"), body)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "repository": repo})
}

// Delete removes a repository and its synced commits.
func (h *RepositoryHandler) Delete(c fiber.Ctx) error {
	uc := middleware.GetUserContext(c)
	if uc == nil {
		return unauthorized(c)
	}

	if err := h.repoService.DeleteRepository(c.Context(), uc, c.Params("id")); err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"success": true})
}

// TestConnection probes the remote platform.
func (h *RepositoryHandler) TestConnection(c fiber.Ctx) error {
	uc := middleware.GetUserContext(c)
	if uc == nil {
		return unauthorized(c)
	}

	info, err := h.repoService.TestConnection(c.Context(), uc, c.Params("id"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "connection": "connected", "remote": info})
}

// Branches lists the remote branches.
func (h *RepositoryHandler) Branches(c fiber.Ctx) error {
	uc := middleware.GetUserContext(c)
	if uc == nil {
		return unauthorized(c)
	}

	branches, err := h.repoService.ListBranches(c.Context(), uc, c.Params("id"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "branches": branches, "count": len(branches)})
}

// Sync pulls recent commits from the remote into the local store.
func (h *RepositoryHandler) Sync(c fiber.Ctx) error {
	uc := middleware.GetUserContext(c)
	if uc == nil {
		return unauthorized(c)
	}

	var body struct {
		Branch string `json:"branch"`
	}
	_ = c.Bind().JSON(&body)

	result, err := h.syncService.SyncRepositoryCommits(c.Context(), uc, c.Params("id"), body.Branch)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "result": result})
}

// Info returns rich remote metadata.
func (h *RepositoryHandler) Info(c fiber.Ctx) error {
	uc := middleware.GetUserContext(c)
	if uc == nil {
		return unauthorized(c)
	}

	info, err := h.repoService.GetRepositoryInfo(c.Context(), uc, c.Params("id"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "info": info})
}

// SearchRemote searches the platform for commits matching q.
func (h *RepositoryHandler) SearchRemote(c fiber.Ctx) error {
	uc := middleware.GetUserContext(c)
	if uc == nil {
		return unauthorized(c)
	}

	limit, _ := strconv.Atoi(c.Query("limit", "20"))
	commits, err := h.repoService.SearchRemoteCommits(c.Context(), uc, c.Params("id"), c.Query("q"), limit)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "commits": commits, "count": len(commits)})
}

// Commits searches the stored commits of a repository.
func (h *RepositoryHandler) Commits(c fiber.Ctx) error {
	uc := middleware.GetUserContext(c)
	if uc == nil {
		return unauthorized(c)
	}

	filter := commitFilterFromQuery(c)
	commits, err := h.repoService.SearchCommits(c.Context(), uc, c.Params("id"), filter)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "commits": commits, "count": len(commits)})
}

// Statistics aggregates the stored commits of a repository.
func (h *RepositoryHandler) Statistics(c fiber.Ctx) error {
	uc := middleware.GetUserContext(c)
	if uc == nil {
		return unauthorized(c)
	}

	filter := commitFilterFromQuery(c)
	stats, err := h.repoService.GetCommitStatistics(c.Context(), uc, c.Params("id"), filter)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "statistics": stats})
}

// commitFilterFromQuery parses the conjunctive commit filters.
func commitFilterFromQuery(c fiber.Ctx) domain.CommitFilter {
	filter := domain.CommitFilter{
		SearchTerm:   c.Query("q"),
		Branch:       c.Query("branch"),
		Author:       c.Query("author"),
		CommitType:   domain.CommitType(c.Query("type")),
		MappedStatus: c.Query("mapped"),
	}
	if from := c.Query("date_from"); from != "" {
		if t, err := time.Parse("2006-01-02", from); err == nil {
			filter.DateFrom = &t
		}
	}
	if to := c.Query("date_to"); to != "" {
		if t, err := time.Parse("2006-01-02", to); err == nil {
			end := t.Add(24*time.Hour - time.Second)
			filter.DateTo = &end
		}
	}
	return filter
}
