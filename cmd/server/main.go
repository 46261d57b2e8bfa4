package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/islandtrails/excursion-backend/internal/config"
	"github.com/islandtrails/excursion-backend/internal/database"
	"github.com/islandtrails/excursion-backend/internal/handlers"
	"github.com/islandtrails/excursion-backend/internal/logger"
	"github.com/islandtrails/excursion-backend/internal/middleware"
	"github.com/islandtrails/excursion-backend/internal/services"
	"github.com/islandtrails/excursion-backend/pkg/jwt"
	"github.com/islandtrails/excursion-backend/pkg/sms"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

var (
	version   = "1.0.0"
	buildTime = "unknown"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	log.Info("Starting Island Trails excursion booking backend")
	log.Infof("Version: %s, Build Time: %s", version, buildTime)

	if err := run(cfg, log); err != nil {
		log.Fatalf("Server stopped with error: %v", err)
	}
	log.Info("Server exited successfully")
}

func run(cfg *config.Config, log *logrus.Logger) error {
	// Set Gin mode
	if cfg.Server.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize database connection
	log.Info("Connecting to database...")
	db, err := database.NewConnection(cfg.Database, log)
	if err != nil {
		return err
	}
	defer db.Close()
	log.Info("Database connection established")

	if cfg.Database.AutoMigrate {
		log.Info("Applying database migrations...")
		if err := database.Migrate(ctx, db.DB.DB); err != nil {
			return err
		}
	}

	// Repositories
	bookingRepo := database.NewBookingRepository(db)
	destinationRepo := database.NewDestinationRepository(db)

	// Services
	log.Info("Initializing services...")
	policy, err := services.ParseResourcePolicy(cfg.Booking.ResourcePolicy)
	if err != nil {
		return err
	}

	providers, err := notificationProviders(cfg, log)
	if err != nil {
		return err
	}
	dispatcher := services.NewNotificationDispatcher(services.DispatcherConfig{
		Workers:       cfg.Notification.Workers,
		QueueSize:     cfg.Notification.QueueSize,
		Timeout:       cfg.Notification.Timeout,
		RatePerSecond: cfg.Notification.RatePerSecond,
	}, log, providers...)

	bookingService := services.NewBookingService(
		bookingRepo,
		destinationRepo,
		services.NewPostgresApprovalLocker(bookingRepo),
		dispatcher,
		services.BookingServiceConfig{
			Policy:       policy,
			Location:     cfg.Booking.Location(),
			MaxRangeDays: cfg.Booking.MaxRangeDays,
		},
		log,
	)
	log.WithField("policy", policy).Info("Booking service initialized")

	retentionService := services.NewRetentionService(bookingRepo, cfg.Retention.WindowDays, log)
	cronService := services.NewCronService(retentionService, cfg.Retention.Schedule, cfg.Retention.InitialDelay, log)

	jwtService := jwt.NewService(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.AccessTokenExpiry)

	// Handlers
	bookingHandler := handlers.NewBookingHandler(bookingService, log)
	destinationHandler := handlers.NewDestinationHandler(bookingService, log)
	adminHandler := handlers.NewAdminHandler(bookingService, cronService, log)

	router := newRouter(cfg, log, db, jwtService, bookingHandler, destinationHandler, adminHandler)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Background workers
	workerCtx, cancelWorkers := context.WithCancel(context.Background())
	defer cancelWorkers()
	dispatcher.Start(workerCtx)

	if cfg.Retention.Enabled {
		if err := cronService.Start(); err != nil {
			dispatcher.Stop()
			return err
		}
	} else {
		log.Info("Retention job disabled")
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Infof("Server starting on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Errorf("Server forced to shutdown: %v", err)
		}

		if cfg.Retention.Enabled {
			log.Info("Stopping cron service...")
			cronService.Stop()
		}

		// Drain queued notices after the last request has finished
		dispatcher.Stop()
		return nil
	})

	return g.Wait()
}

// notificationProviders builds the delivery channels enabled by configuration
func notificationProviders(cfg *config.Config, log *logrus.Logger) ([]services.NotificationProvider, error) {
	var gateway sms.Gateway
	if cfg.Notification.SMSMode == "production" {
		gateway = sms.NewDialogGateway(sms.DialogConfig{
			APIURL:   cfg.Notification.SMSAPIURL,
			Username: cfg.Notification.SMSUsername,
			Password: cfg.Notification.SMSPassword,
			Mask:     cfg.Notification.SMSMask,
		}, log)
	} else {
		gateway = sms.NewLogGateway(log)
	}
	providers := []services.NotificationProvider{services.NewSMSProvider(gateway)}

	if cfg.Notification.TelegramToken != "" {
		telegram, err := services.NewTelegramProvider(cfg.Notification.TelegramToken, cfg.Notification.TelegramChatID)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize telegram notifications: %w", err)
		}
		providers = append(providers, telegram)
	}

	if cfg.Notification.WebhookURL != "" {
		providers = append(providers, services.NewWebhookProvider(cfg.Notification.WebhookURL))
	}

	return providers, nil
}

func newRouter(
	cfg *config.Config,
	log *logrus.Logger,
	db *database.PostgresDB,
	jwtService *jwt.Service,
	bookingHandler *handlers.BookingHandler,
	destinationHandler *handlers.DestinationHandler,
	adminHandler *handlers.AdminHandler,
) *gin.Engine {
	router := gin.New()

	// Middleware
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(log))

	// CORS configuration
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORS.AllowedOrigins,
		AllowMethods:     cfg.CORS.AllowedMethods,
		AllowHeaders:     cfg.CORS.AllowedHeaders,
		ExposeHeaders:    []string{"Content-Length", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// Health check endpoint
	router.GET("/health", handlers.HealthCheck(db, version))

	limiter := middleware.NewIPRateLimiter(cfg.RateLimit.RequestsPerMinute, cfg.RateLimit.Burst)

	v1 := router.Group("/api/v1")
	{
		// Public destination endpoints
		destinations := v1.Group("/destinations")
		destinations.Use(middleware.RateLimit(limiter))
		{
			destinations.GET("/:id", destinationHandler.GetDestination)
			destinations.GET("/:id/availability", destinationHandler.GetAvailability)
			destinations.GET("/:id/quote", destinationHandler.GetQuote)
		}

		// Traveller booking endpoints
		bookings := v1.Group("/bookings")
		bookings.Use(middleware.AuthMiddleware(jwtService))
		{
			bookings.POST("", bookingHandler.CreateBooking)
			bookings.GET("/my", bookingHandler.ListMyBookings)
			bookings.GET("/:id", bookingHandler.GetBooking)
			bookings.POST("/:id/cancel", bookingHandler.CancelBooking)
		}

		// Admin endpoints
		admin := v1.Group("/admin")
		admin.Use(middleware.AuthMiddleware(jwtService))
		admin.Use(middleware.RequireRole(jwt.RoleAdmin))
		{
			admin.GET("/bookings", adminHandler.ListBookings)
			admin.POST("/bookings/:id/approve", adminHandler.ApproveBooking)
			admin.POST("/bookings/:id/reject", adminHandler.RejectBooking)
			admin.POST("/bookings/:id/complete", adminHandler.CompleteBooking)

			admin.POST("/retention/run", adminHandler.RunRetention)
			admin.GET("/retention/status", adminHandler.RetentionStatus)
		}
	}

	return router
}
