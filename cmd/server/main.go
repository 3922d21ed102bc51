package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Alu2004/swift-bus-bookings/internal/application"
	"github.com/Alu2004/swift-bus-bookings/internal/auth"
	"github.com/Alu2004/swift-bus-bookings/internal/config"
	"github.com/Alu2004/swift-bus-bookings/internal/database"
	"github.com/Alu2004/swift-bus-bookings/internal/events"
	"github.com/Alu2004/swift-bus-bookings/internal/handler"
	"github.com/Alu2004/swift-bus-bookings/internal/health"
	"github.com/Alu2004/swift-bus-bookings/internal/kafka"
	"github.com/Alu2004/swift-bus-bookings/internal/logger"
	"github.com/Alu2004/swift-bus-bookings/internal/middleware"
	"github.com/Alu2004/swift-bus-bookings/internal/notify"
	"github.com/Alu2004/swift-bus-bookings/internal/repository"
)

const tokenTTL = 24 * time.Hour

func main() {
	// Load configuration
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log, err := logger.NewNamed(cfg.AppEnv, "swift-bus-bookings")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	log.Info("starting swift-bus-bookings",
		zap.String("port", cfg.Port),
	)

	// Connect to database
	db, err := database.Connect(cfg.Database.DSN(), log)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}

	// Run database migrations
	if cfg.AppEnv == "development" {
		if err := db.AutoMigrate(&repository.TripModel{}, &repository.BookingModel{}, &repository.BookingSeatModel{}); err != nil {
			log.Fatal("failed to run auto-migration", zap.Error(err))
		}
		log.Info("database migration completed (dev auto-migrate)")
	}

	// Initialize JWT manager
	jwtManager := auth.NewJWTManager(cfg.Auth.JWTSecret, tokenTTL)

	// Initialize Kafka producer
	kafkaProducer := kafka.NewProducer(cfg.Kafka.Brokers, log)
	defer func() { _ = kafkaProducer.Close() }()

	// Initialize the one-time-code store
	otpStore, err := repository.NewRedisOTPStore(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		log.Fatal("failed to connect to Redis", zap.Error(err))
	}
	defer func() { _ = otpStore.Close() }()

	// Initialize the email notifier
	notifier, err := notify.NewEmailNotifier(
		cfg.SMTP.Host, cfg.SMTP.Port,
		cfg.SMTP.Username, cfg.SMTP.Password,
		cfg.SMTP.From,
		log,
	)
	if err != nil {
		log.Fatal("failed to create email notifier", zap.Error(err))
	}

	// Initialize repositories
	tripRepo := repository.NewGormTripRepository(db)
	bookingRepo := repository.NewGormBookingRepository(db)

	// Initialize application services
	authService := application.NewAuthService(
		otpStore,
		notifier,
		jwtManager,
		tokenTTL,
		cfg.Auth.AdminContactList(),
		log,
	)
	tripService := application.NewTripService(tripRepo, bookingRepo, log)
	bookingService := application.NewBookingService(
		tripRepo,
		tripRepo,
		bookingRepo,
		notifier,
		kafkaProducer,
		log,
	)

	// Initialize and start the notification consumer in a goroutine
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	groupID := cfg.Kafka.GroupPrefix + "notifications"
	notificationConsumer := events.NewNotificationConsumer(
		cfg.Kafka.Brokers,
		groupID,
		notifier,
		log,
	)
	defer func() { _ = notificationConsumer.Close() }()

	go func() {
		log.Info("starting notification consumer")
		if err := notificationConsumer.Start(ctx); err != nil && err != context.Canceled {
			log.Error("notification consumer error", zap.Error(err))
		}
	}()

	// Initialize HTTP handlers
	authHandler := handler.NewAuthHandler(authService)
	tripHandler := handler.NewTripHandler(tripService)
	bookingHandler := handler.NewBookingHandler(bookingService)
	adminHandler := handler.NewAdminHandler(tripService, bookingService)

	// Setup Gin router
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	// Apply global middleware
	router.Use(middleware.Recovery(log))
	router.Use(middleware.RequestLogger(log))
	router.Use(middleware.RequestID())
	router.Use(middleware.CORS())
	router.Use(middleware.SecurityHeaders())

	// Register health check routes
	healthHandler := health.NewHandler(db, "swift-bus-bookings")
	healthHandler.RegisterRoutes(router)

	// Register routes
	authHandler.RegisterRoutes(&router.RouterGroup)
	tripHandler.RegisterRoutes(&router.RouterGroup)
	bookingHandler.RegisterRoutes(&router.RouterGroup, jwtManager)
	adminHandler.RegisterRoutes(&router.RouterGroup, jwtManager)

	// Create HTTP server
	srv := &http.Server{
		Addr:         cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info("HTTP server starting", zap.String("addr", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down swift-bus-bookings...")

	// Cancel the consumer context
	cancel()

	// Shutdown HTTP server with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server forced shutdown", zap.Error(err))
	}

	log.Info("swift-bus-bookings stopped")
}
