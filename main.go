package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"

	"bisik/internal/email"
	"bisik/internal/handlers"
	"bisik/internal/middleware"
	"bisik/internal/models"
	"bisik/internal/repositories"
	"bisik/internal/services"
	"bisik/pkg/mailqueue"

	"github.com/spf13/viper"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	// --- Configuration ---
	// Set up Viper to read configuration from environment variables
	viper.SetDefault("APP_PORT", ":8080")
	viper.SetDefault("JWT_SECRET", "change_me_in_production")
	viper.SetDefault("DATABASE_URL", "")
	viper.SetDefault("RABBITMQ_URL", "")
	viper.SetDefault("SMTP_ADDR", "localhost:25")
	viper.SetDefault("SMTP_FROM", "no-reply@bisik.local")
	viper.SetDefault("ACTIVITY_SWEEP_INTERVAL", "1h")
	viper.AutomaticEnv() // Load environment variables

	appPort := viper.GetString("APP_PORT")
	jwtSecret := viper.GetString("JWT_SECRET")
	databaseURL := viper.GetString("DATABASE_URL")
	rabbitMQURL := viper.GetString("RABBITMQ_URL")
	sweepInterval := viper.GetDuration("ACTIVITY_SWEEP_INTERVAL")

	// --- Initialize Repositories ---
	// With a DATABASE_URL we run on Postgres; without one the in-memory
	// repositories serve local development. A failed connect is fatal: the
	// process must not serve traffic without its store.
	var (
		userRepo     repositories.UserRepository
		messageRepo  repositories.MessageRepository
		activityRepo repositories.ActivityRepository
	)
	if databaseURL != "" {
		db, err := gorm.Open(postgres.Open(databaseURL), &gorm.Config{})
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		if err := db.AutoMigrate(&models.User{}, &models.Message{}, &models.ActivityLog{}, &models.ActivityEntry{}); err != nil {
			log.Fatalf("Failed to migrate database: %v", err)
		}
		userRepo = repositories.NewGORMUserRepository(db)
		messageRepo = repositories.NewGORMMessageRepository(db)
		activityRepo = repositories.NewGORMActivityRepository(db)
	} else {
		log.Println("DATABASE_URL not set, using in-memory repositories")
		userRepo = repositories.NewMockUserRepository()
		messageRepo = repositories.NewMockMessageRepository()
		activityRepo = repositories.NewMockActivityRepository()
	}

	// --- Initialize Email Delivery ---
	// The SMTP sender does the actual delivery. With a RABBITMQ_URL the
	// request path only enqueues jobs and a consumer goroutine delivers
	// them; without one delivery happens inline.
	smtpSender := email.NewSMTPSender(viper.GetString("SMTP_ADDR"), viper.GetString("SMTP_FROM"))

	var mailer email.Sender = smtpSender
	var mqClient *mailqueue.Client
	if rabbitMQURL != "" {
		var err error
		mqClient, err = mailqueue.NewClient(mailqueue.Config{URL: rabbitMQURL})
		if err != nil {
			log.Fatalf("Failed to initialize RabbitMQ client: %v", err)
		}
		defer mqClient.Close() // Ensure the connection is closed on exit
		mailer = mqClient

		log.Println("Starting RabbitMQ consumer for email jobs...")
		if consumerErr := mqClient.ConsumeEmailJobs(smtpSender.SendVerificationEmail); consumerErr != nil {
			log.Fatalf("Failed to start RabbitMQ consumer: %v", consumerErr)
		}
	} else {
		log.Println("RABBITMQ_URL not set, sending verification emails inline")
	}

	// --- Initialize Services ---
	accountService := services.NewAccountService(userRepo, mailer, jwtSecret)
	mailboxService := services.NewMailboxService(userRepo, messageRepo, activityRepo)
	activityService := services.NewActivityService(activityRepo)

	// --- Activity Retention Sweep ---
	// Stands in for storage-native TTL indexing: whole logs older than the
	// retention window are purged together.
	stopSweeper := activityService.StartSweeper(sweepInterval)
	defer stopSweeper()

	// --- Initialize Handlers ---
	accountHandler := handlers.NewAccountHandler(accountService)
	mailboxHandler := handlers.NewMailboxHandler(mailboxService, activityService)

	// --- Initialize Fiber App ---
	app := fiber.New()

	// --- Middleware ---
	app.Use(logger.New()) // Request logger

	// --- API Routes ---
	// Group routes under /api/v1
	apiV1 := app.Group("/api/v1")

	// Public routes: registration, verification, sign-in, anonymous send
	accountHandler.RegisterRoutes(apiV1)
	mailboxHandler.RegisterPublicRoutes(apiV1)

	// Protected routes (require JWT authentication)
	protectedRoutes := apiV1.Group("", middleware.AuthRequired(accountService))
	mailboxHandler.RegisterProtectedRoutes(protectedRoutes)

	// --- Health Check Endpoint ---
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	// --- Start HTTP Server ---
	log.Printf("Starting server on port %s", appPort)

	// Graceful shutdown handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := app.Listen(appPort); err != nil {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	<-quit
	log.Println("Shutting down server...")

	// Shutdown Fiber app
	if err := app.Shutdown(); err != nil {
		log.Printf("Error during Fiber shutdown: %v", err)
	}

	// RabbitMQ connection close is handled by defer in main
	log.Println("Server gracefully stopped")
}
