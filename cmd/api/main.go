package main

import (
	"context"
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"

	"musegen_backend/internal/controller"
	"musegen_backend/internal/middleware"
	"musegen_backend/pkg/character"
	"musegen_backend/pkg/config"
	"musegen_backend/pkg/cron"
	"musegen_backend/pkg/database"
	"musegen_backend/pkg/entitlement"
	"musegen_backend/pkg/generation"
	"musegen_backend/pkg/store"
	"musegen_backend/pkg/utils/jwt"
)

type controllers struct {
	auth          *controller.AuthController
	characters    *controller.CharacterController
	generations   *controller.GenerationController
	subscriptions *controller.SubscriptionController
	repo          *character.Repository
}

func setupRoutes(app *fiber.App, c controllers) {
	api := app.Group("/api")

	// Auth Routes
	auth := api.Group("/auth")
	auth.Post("/register", c.auth.Register)
	auth.Post("/login", c.auth.Login)

	// Age gate: confirmed once per browser session
	api.Post("/age/confirm", middleware.ConfirmAge)

	// Subscription routes
	subscriptions := api.Group("/subscriptions")
	subscriptions.Get("/plans", c.subscriptions.ListPlans)

	subProtected := subscriptions.Use(middleware.AuthMiddleware())
	subProtected.Get("/my", c.subscriptions.GetMySubscription)
	subProtected.Post("/upgrade", c.subscriptions.Upgrade)

	// Character routes: authenticated and age-gated
	characters := api.Group("/characters", middleware.AuthMiddleware(), middleware.AgeGate())
	characters.Get("/", c.characters.ListMyCharacters)
	characters.Post("/", middleware.CheckCharacterLimit(c.repo), c.characters.CreateCharacter)
	characters.Put("/:id", c.characters.UpdateCharacter)
	characters.Delete("/:id", c.characters.DeleteCharacter)

	// Generation routes: every call consumes one daily unit
	characters.Post("/:id/images", c.generations.GenerateImages)
	characters.Post("/:id/chat", c.generations.Chat)
}

func main() {
	cfg := config.Load()

	if cfg.Database.URL == "" {
		log.Fatal("DATABASE_URL is not set in .env")
	}
	if cfg.Gemini.APIKey == "" {
		log.Fatal("GEMINI_API_KEY is not set in .env")
	}

	jwt.Init(cfg.JWT.Secret)

	db, err := database.InitDB(cfg.Database.URL)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	kv, err := store.New(db, cfg.Store.MaxBytes, nil)
	if err != nil {
		log.Fatal("Failed to initialize store:", err)
	}

	generator, err := generation.NewClient(context.Background(), cfg.Gemini.APIKey)
	if err != nil {
		log.Fatal("Failed to initialize generation client:", err)
	}
	defer generator.Close()

	entitlements := entitlement.NewManager(kv)
	repo := character.NewRepository(kv)

	cron.InitTrialExpiryCron(kv)

	app := fiber.New(fiber.Config{
		BodyLimit: 20 * 1024 * 1024, // generated images travel inline as data URLs
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			// Last-resort fault boundary: nothing below should let an
			// internal error escape as a panic or unhandled fault.
			log.Printf("Unhandled error: %v", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": err.Error(),
			})
		},
	})

	app.Use(logger.New())
	app.Use(cors.New())

	setupRoutes(app, controllers{
		auth:          controller.NewAuthController(kv),
		characters:    controller.NewCharacterController(repo, entitlements, generator),
		generations:   controller.NewGenerationController(repo, entitlements, generator),
		subscriptions: controller.NewSubscriptionController(entitlements),
		repo:          repo,
	})

	log.Printf("Server is running on port %s", cfg.Server.Port)
	log.Fatal(app.Listen(":" + cfg.Server.Port))
}
