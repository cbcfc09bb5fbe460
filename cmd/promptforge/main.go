package main

import (
	"os"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/ManuelReschke/PromptForge/app/controllers"
	apiv1 "github.com/ManuelReschke/PromptForge/internal/api/v1"
	"github.com/ManuelReschke/PromptForge/internal/pkg/billing"
	"github.com/ManuelReschke/PromptForge/internal/pkg/cache"
	"github.com/ManuelReschke/PromptForge/internal/pkg/config"
	"github.com/ManuelReschke/PromptForge/internal/pkg/database"
	"github.com/ManuelReschke/PromptForge/internal/pkg/entitlements"
	"github.com/ManuelReschke/PromptForge/internal/pkg/env"
	"github.com/ManuelReschke/PromptForge/internal/pkg/metrics"
	"github.com/ManuelReschke/PromptForge/internal/pkg/metrics/counter"
	"github.com/ManuelReschke/PromptForge/internal/pkg/router"
)

func main() {
	env.SetupEnvFile()
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	db, err := database.Connect(cfg.DB)
	if err != nil {
		log.Fatal(err)
	}
	if err := database.AutoMigrate(db); err != nil {
		log.Fatal(err)
	}
	redisClient := cache.New(cfg.Cache)

	app, err := NewApplication(cfg, db, redisClient)
	if err != nil {
		log.Fatal(err)
	}
	log.Fatal(app.Listen(cfg.ListenAddr()))
}

// NewApplication wires every component from already opened connections.
func NewApplication(cfg *config.Config, db *gorm.DB, redisClient *redis.Client) (*fiber.App, error) {
	catalog, err := entitlements.DefaultCatalog()
	if err != nil {
		return nil, err
	}
	prices, err := billing.DefaultPriceResolver(catalog)
	if err != nil {
		return nil, err
	}

	repo := billing.NewRepository(db)
	reader := entitlements.NewReader(catalog, repo, redisClient)
	counters := counter.New(redisClient)
	recorder := metrics.New(counters)

	service := billing.NewService(billing.Deps{
		Verifier:  billing.NewVerifier(cfg.StripeWebhookSecret, cfg.StripeWebhookTolerance),
		Guard:     billing.NewGuard(repo, redisClient),
		Projector: billing.NewProjector(prices, string(catalog.DefaultPlan)),
		Repo:      repo,
		Applier:   entitlements.NewApplier(catalog, repo, reader),
		Telemetry: recorder,
	})

	// init fiber app
	app := fiber.New(fiber.Config{
		BodyLimit: 1 << 20, // provider payloads stay well below 1 MiB
	})

	// recovery and logging
	app.Use(recover.New(), logger.New())

	// SWAGGER / OPENAPI
	if openAPIFile := findProjectFile(cfg.OpenAPIFile); openAPIFile != "" {
		app.Use(swagger.New(swagger.Config{
			BasePath: "/docs/api/",
			FilePath: openAPIFile,
			Path:     "v1",
		}))
	} else {
		log.Warnf("OpenAPI document %s not found, /docs/api/v1 disabled", cfg.OpenAPIFile)
	}

	// ROUTER
	router.InstallRouter(app,
		router.NewHttpRouter(
			controllers.NewBillingController(service, cfg.WebhookTimeout),
			controllers.NewHealthController(db, redisClient),
		),
		router.NewApiRouter(
			apiv1.NewAPIServer(controllers.NewEntitlementController(reader)),
			cfg.InternalAPIToken,
		),
		router.NewAdminRouter(
			controllers.NewAdminController(counters, repo),
			recorder.Handler(),
			cfg.MetricsUser,
			cfg.MetricsPassword,
		),
	)

	return app, nil
}

func findProjectFile(rel string) string {
	// Define possible base paths
	basePaths := []string{
		"./",        // Current directory
		"../../",    // From cmd/promptforge to project root
		"../../../", // Fallback
	}
	for _, path := range basePaths {
		if _, err := os.Stat(path + rel); err == nil {
			return path + rel
		}
	}
	return ""
}
