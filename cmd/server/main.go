package main

import (
	"log/slog"
	"os"
	"time"

	"github.com/arturoeanton/go-timesheet-mapper/internal/adapter/platform"
	"github.com/arturoeanton/go-timesheet-mapper/internal/adapter/store"
	"github.com/arturoeanton/go-timesheet-mapper/internal/handler"
	"github.com/arturoeanton/go-timesheet-mapper/internal/middleware"
	"github.com/arturoeanton/go-timesheet-mapper/internal/service"
	"github.com/arturoeanton/go-timesheet-mapper/pkg/config"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/joho/godotenv"
)

func main() {
	// ── Load .env file ───────────────────────────────────────────────────
	_ = godotenv.Load() // silently ignore if .env doesn't exist

	// ── Configuration ────────────────────────────────────────────────────
	cfg := config.Load()

	slog.Info("🚀 Starting Git Timesheet Mapper",
		"port", cfg.Port,
		"sync_limit", cfg.SyncCommitLimit,
		"automap_threshold", cfg.AutoMapThreshold,
	)

	// ── Database ─────────────────────────────────────────────────────────
	pgStore, err := store.NewPostgresStore(cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pgStore.Close()

	if err := pgStore.Migrate(); err != nil {
		slog.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	// ── Adapters ─────────────────────────────────────────────────────────
	github := platform.NewGitHubClient(cfg.HTTPTimeout, cfg.FetchWorkers)
	gitlab := platform.NewGitLabClient(cfg.HTTPTimeout, cfg.FetchWorkers)
	platforms := platform.NewResolver(github, gitlab)

	// ── Services ─────────────────────────────────────────────────────────
	policy := service.NewPolicy()
	repoService := service.NewRepositoryService(pgStore, pgStore, platforms, policy)
	syncService := service.NewSyncService(pgStore, pgStore, platforms, policy, cfg.SyncCommitLimit)
	mappingService := service.NewMappingService(pgStore, pgStore, pgStore, policy, cfg.MappingDateWindowDays)
	suggestionService := service.NewSuggestionService(pgStore, pgStore, pgStore, mappingService, policy, cfg.AutoMapThreshold)

	// ── Fiber App ────────────────────────────────────────────────────────
	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
	})

	// Global middleware
	app.Use(recover.New())
	app.Use(fiberlogger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: []string{cfg.FrontendURL},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", "Authorization"},
		AllowMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
	}))

	// Audit middleware (records mutating requests)
	app.Use(middleware.AuditMiddleware(pgStore))

	// Health check
	app.Get("/api/v1/health", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "healthy",
			"app":     cfg.AppName,
			"version": "1.0.0",
		})
	})

	// ── Protected Routes ─────────────────────────────────────────────────
	jwtMiddleware := middleware.JWTMiddleware(middleware.JWTConfig{
		Secret:    cfg.JWTSecret,
		Issuer:    cfg.JWTIssuer,
		ExpiresIn: time.Duration(cfg.JWTExpiration) * time.Hour,
	})

	api := app.Group("/api/v1", jwtMiddleware)

	repoHandler := handler.NewRepositoryHandler(repoService, syncService)
	repoHandler.Register(api)

	commitHandler := handler.NewCommitHandler(repoService, suggestionService)
	commitHandler.Register(api)

	mappingHandler := handler.NewMappingHandler(mappingService, suggestionService)
	mappingHandler.Register(api)

	auditHandler := handler.NewAuditHandler(pgStore, policy)
	auditHandler.Register(api)

	userHandler := handler.NewUserHandler(pgStore)
	userHandler.Register(api)

	// ── Start ────────────────────────────────────────────────────────────
	slog.Info("🌐 Fiber listening", "port", cfg.Port)
	if err := app.Listen(":" + cfg.Port); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}
