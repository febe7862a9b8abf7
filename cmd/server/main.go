package main

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"

	"github.com/hearthware/homeboard/internal/config"
	"github.com/hearthware/homeboard/internal/database"
	"github.com/hearthware/homeboard/internal/handlers"
	"github.com/hearthware/homeboard/internal/logger"
	"github.com/hearthware/homeboard/internal/middleware"
	"github.com/hearthware/homeboard/internal/services"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	if err := logger.Init(cfg.LogLevel, cfg.IsDevelopment()); err != nil {
		panic(err)
	}
	defer logger.Sync()
	log := logger.L()

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	if err := database.RunMigrations(db); err != nil {
		log.Fatal("failed to run migrations", zap.Error(err))
	}

	if err := database.EnsureAdminUser(db, cfg); err != nil {
		log.Warn("could not ensure admin user", zap.Error(err))
	}

	// Resumable import pointers live in Redis when available, in process
	// memory otherwise
	var pointers services.PointerStore
	if cfg.RedisAddr != "" {
		redisPointers, err := services.NewRedisPointerStore(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, 24*time.Hour)
		if err != nil {
			log.Fatal("failed to connect to redis", zap.Error(err))
		}
		defer redisPointers.Close()
		pointers = redisPointers
	} else {
		log.Info("REDIS_ADDR not set, tracking import pointers in memory")
		pointers = services.NewMemoryPointerStore()
	}

	var archiver services.Archiver
	if cfg.S3Enabled {
		s3, err := services.NewS3Archiver(context.Background(),
			cfg.S3Endpoint, cfg.S3AccessKey, cfg.S3SecretKey,
			cfg.S3Bucket, cfg.S3Region, cfg.S3UseSSL)
		if err != nil {
			log.Warn("failed to initialize import archive, continuing without it", zap.Error(err))
		} else {
			archiver = s3
		}
	}

	parser := services.NewHTTPParserClient(cfg.ParserBaseURL, cfg.ParserAPIKey, cfg.ParserTimeout)
	imports := services.NewImportService(db, pointers, parser, archiver, services.ImportConfig{
		Workers:      cfg.ImportWorkers,
		QueueSize:    cfg.ImportQueueSize,
		PollInterval: cfg.ParserPollInterval,
		PollTimeout:  cfg.ParserPollTimeout,
	})
	if err := imports.Start(context.Background()); err != nil {
		log.Fatal("failed to start import workers", zap.Error(err))
	}
	defer imports.Stop()

	reconciler := services.NewReconciler(db, db, services.NewPantryMatcher(), services.NewStoreRouter(db), db)

	app := fiber.New(fiber.Config{
		ErrorHandler: handlers.ErrorHandler,
	})

	app.Use(recover.New())
	app.Use(fiberlogger.New(fiberlogger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.AllowedOrigins,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET, POST, PUT, DELETE, OPTIONS",
	}))

	h := handlers.New(db, cfg, reconciler, imports)

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("/api")

	// Auth routes
	auth := api.Group("/auth")
	auth.Post("/register", h.Register)
	auth.Post("/login", h.Login)
	auth.Get("/me", middleware.AuthRequired(cfg), h.GetCurrentUser)
	auth.Post("/refresh", middleware.AuthRequired(cfg), h.RefreshToken)

	// Recipe routes
	recipes := api.Group("/recipes", middleware.AuthRequired(cfg))
	recipes.Get("/", h.ListRecipes)
	recipes.Post("/", h.CreateRecipe)
	recipes.Post("/check-pantry", h.CheckPantry)
	recipes.Post("/add-to-list", h.AddToList)
	recipes.Get("/:id", h.GetRecipe)
	recipes.Put("/:id", h.UpdateRecipe)
	recipes.Delete("/:id", h.DeleteRecipe)
	recipes.Post("/:id/ingredients", h.AddIngredient)
	recipes.Put("/:id/ingredients/:ingredientId", h.UpdateIngredient)
	recipes.Delete("/:id/ingredients/:ingredientId", h.DeleteIngredient)

	// Reconciliation event routes
	events := api.Group("/add-events", middleware.AuthRequired(cfg))
	events.Get("/", h.ListAddEvents)
	events.Get("/:id", h.GetAddEvent)
	events.Post("/:id/undo", h.UndoAddEvent)

	// Pantry routes
	pantry := api.Group("/pantry", middleware.AuthRequired(cfg))
	pantry.Get("/", h.ListPantry)
	pantry.Post("/", h.CreatePantryRecord)
	pantry.Post("/bulk", h.BulkCreatePantry)
	pantry.Put("/:id", h.UpdatePantryRecord)
	pantry.Delete("/:id", h.DeletePantryRecord)

	// Store routing defaults
	storeDefaults := api.Group("/store-defaults", middleware.AuthRequired(cfg))
	storeDefaults.Get("/", h.ListStoreDefaults)
	storeDefaults.Put("/", h.SetStoreDefault)
	storeDefaults.Delete("/:id", h.DeleteStoreDefault)

	// List routes
	lists := api.Group("/lists", middleware.AuthRequired(cfg))
	lists.Get("/", h.ListLists)
	lists.Get("/:id", h.GetList)
	lists.Put("/items/:itemId/check", h.CheckItem)
	lists.Delete("/items/:itemId", h.DeleteListItem)

	// Recipe import routes
	importsGroup := api.Group("/imports", middleware.AuthRequired(cfg))
	importsGroup.Post("/", h.CreateImport)
	importsGroup.Get("/current", h.GetCurrentImport)
	importsGroup.Get("/:id", h.GetImport)
	importsGroup.Post("/:id/confirm", h.ConfirmImport)
	importsGroup.Delete("/:id", h.CancelImport)

	// Admin ops
	admin := api.Group("/admin", middleware.AuthRequired(cfg), middleware.AdminRequired())
	admin.Get("/imports/pending", h.ListPendingImports)

	log.Info("server starting", zap.String("port", cfg.Port))
	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Fatal("server stopped", zap.Error(err))
	}
}
