package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/streadway/amqp"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/bigyanadk07/BuyMeATea/internal/config"
	"github.com/bigyanadk07/BuyMeATea/internal/handlers"
	"github.com/bigyanadk07/BuyMeATea/internal/middleware"
	"github.com/bigyanadk07/BuyMeATea/internal/models"
	"github.com/bigyanadk07/BuyMeATea/internal/repositories"
	"github.com/bigyanadk07/BuyMeATea/internal/services"
	"github.com/bigyanadk07/BuyMeATea/pkg/esewa"
	"github.com/bigyanadk07/BuyMeATea/pkg/mediastore"
	"github.com/bigyanadk07/BuyMeATea/pkg/rabbitmq"
)

func main() {
	// --- Configuration ---
	cfg := config.Load()

	// --- Database ---
	db, err := openDatabase(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	if err := db.AutoMigrate(&models.User{}, &models.Activity{}, &models.Payment{}); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// --- RabbitMQ (optional) ---
	// The activity pipeline works without a broker; events are still persisted
	// to the database, only the fan-out is skipped.
	var mqClient *rabbitmq.Client
	if cfg.RabbitMQURL != "" {
		mqClient, err = rabbitmq.NewClient(rabbitmq.Config{URL: cfg.RabbitMQURL})
		if err != nil {
			log.Fatalf("Failed to initialize RabbitMQ client: %v", err)
		}
		defer mqClient.Close()
	}

	// --- Object storage (optional) ---
	var media services.MediaStore
	if cfg.S3AccessKey != "" {
		store, err := mediastore.New(context.Background(), mediastore.Config{
			Endpoint:  cfg.S3Endpoint,
			Region:    cfg.S3Region,
			Bucket:    cfg.S3Bucket,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
		})
		if err != nil {
			log.Fatalf("Failed to initialize media store: %v", err)
		}
		media = store
	} else {
		log.Println("S3 credentials not configured, profile picture uploads disabled")
	}

	// --- Initialize Repositories ---
	userRepo := repositories.NewGORMUserRepository(db)
	activityRepo := repositories.NewGORMActivityRepository(db)
	paymentRepo := repositories.NewGORMPaymentRepository(db)

	// --- Initialize Services ---
	activityService := services.NewActivityService(activityRepo, mqClient)
	defer activityService.Close()

	authService := services.NewAuthService(userRepo, activityRepo, paymentRepo, cfg.JWTSecret, cfg.JWTExpire)
	profileService := services.NewProfileService(userRepo, media)

	gateway := esewa.NewClient(esewa.Config{
		MerchantCode: cfg.EsewaMerchantID,
		BaseURL:      cfg.EsewaBaseURL,
	})
	paymentService := services.NewPaymentService(paymentRepo, userRepo, gateway, activityService,
		cfg.AppBaseURL, cfg.TeaUnitPrice, cfg.MinTipAmount)

	// --- Initialize Handlers ---
	authHandler := handlers.NewAuthHandler(authService, activityService)
	profileHandler := handlers.NewProfileHandler(profileService, activityService)
	activityHandler := handlers.NewActivityHandler(activityService)
	paymentHandler := handlers.NewPaymentHandler(paymentService)

	// --- Initialize Fiber App ---
	app := fiber.New()

	// --- Middleware ---
	app.Use(logger.New()) // Request logger
	app.Use(cors.New())

	authRequired := middleware.AuthRequired(authService)
	authOptional := middleware.AuthOptional(authService)

	// --- API Routes ---
	apiV1 := app.Group("/api/v1")

	authHandler.RegisterRoutes(apiV1, authRequired)
	profileHandler.RegisterRoutes(apiV1, authRequired)
	activityHandler.RegisterRoutes(apiV1, authRequired)
	paymentHandler.RegisterRoutes(apiV1, authOptional)

	// --- Health Check Endpoint ---
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	// --- Start RabbitMQ Consumer in a Goroutine ---
	// The consumer mirrors activity events off the queue; downstream systems
	// (analytics, notification senders) would hang off this handler.
	if mqClient != nil {
		go func() {
			log.Println("Starting RabbitMQ consumer for activity events...")
			messageHandler := func(msg amqp.Delivery) error {
				log.Printf("Received activity event (Tag: %d): %s", msg.DeliveryTag, string(msg.Body))
				return nil // Return nil to acknowledge
			}
			if consumerErr := mqClient.ConsumeActivityEvents(messageHandler); consumerErr != nil {
				log.Printf("Failed to start RabbitMQ consumer: %v", consumerErr)
			}
		}()
	}

	// --- Start HTTP Server ---
	log.Printf("Starting server on port %s", cfg.AppPort)

	// Graceful shutdown handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := app.Listen(cfg.AppPort); err != nil {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	<-quit
	log.Println("Shutting down server...")

	if err := app.Shutdown(); err != nil {
		log.Printf("Error during Fiber shutdown: %v", err)
	}

	// activityService.Close drains the pending event buffer before the
	// deferred RabbitMQ teardown runs.
	log.Println("Server gracefully stopped")
}

// openDatabase connects to Postgres when DATABASE_URL is set and falls back
// to a shared in-memory SQLite database for local development.
func openDatabase(databaseURL string) (*gorm.DB, error) {
	if databaseURL != "" {
		return gorm.Open(postgres.Open(databaseURL), &gorm.Config{})
	}
	log.Println("DATABASE_URL not set, using in-memory SQLite")
	return gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
}
