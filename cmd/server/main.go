package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"

	"readyaid/internal/config"
	handlers "readyaid/internal/handlers/shared"
	"readyaid/internal/middleware"
	"readyaid/internal/repositories/mongodb"
	"readyaid/internal/services"
	"readyaid/internal/workers"
	"readyaid/pkg/database"
	"readyaid/pkg/geocode"
	"readyaid/pkg/localstore"
	"readyaid/pkg/location"
	"readyaid/pkg/logger"
	"readyaid/pkg/push"
	"readyaid/pkg/sms"
	"readyaid/pkg/websocket"
	"readyaid/routes"

	"github.com/gin-gonic/gin"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	appLogger, err := logger.NewLogger(&logger.Config{
		Level:  logger.LogLevel(cfg.App.LogLevel),
		Format: "json",
		Output: "stdout",
	})
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// MongoDB
	db, err := database.NewMongoDB(&database.DatabaseConfig{
		URI:            cfg.Database.URI,
		Database:       cfg.Database.Database,
		MaxPoolSize:    cfg.Database.MaxPoolSize,
		MinPoolSize:    cfg.Database.MinPoolSize,
		ConnectTimeout: cfg.Database.ConnectTimeout,
		SocketTimeout:  cfg.Database.SocketTimeout,
	})
	if err != nil {
		appLogger.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	defer db.Close()

	if err := database.NewMigrator(db.Database).Up(); err != nil {
		appLogger.Fatalf("Failed to run migrations: %v", err)
	}

	// Redis-backed local pointer store
	local, err := localstore.NewRedisStore(&localstore.RedisConfig{
		Host:         cfg.Redis.Host,
		Port:         cfg.Redis.Port,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
		DialTimeout:  cfg.Redis.DialTimeout,
		ReadTimeout:  cfg.Redis.ReadTimeout,
		WriteTimeout: cfg.Redis.WriteTimeout,
	})
	if err != nil {
		appLogger.Fatalf("Failed to connect to Redis: %v", err)
	}

	// Repositories
	sessionRepo := mongodb.NewSessionRepository(db)
	deliveryRepo := mongodb.NewDeliveryRepository(db)
	settingsRepo := mongodb.NewSettingsRepository(db)
	userRepo := mongodb.NewUserRepository(db)

	// Delivery channels
	composer := buildSMSComposer(cfg.SMS, appLogger)
	pushProvider := buildPushProvider(cfg.Push, appLogger)

	var geocoder geocode.Geocoder
	if cfg.Maps.GoogleMaps.APIKey != "" {
		geocoder, err = geocode.NewGoogleGeocoder(cfg.Maps.GoogleMaps.APIKey)
		if err != nil {
			appLogger.WithError(err).Warn("Geocoder unavailable; SMS will omit the address line")
			geocoder = nil
		}
	}

	// Websocket hub for the live viewer feed
	hub := websocket.NewHub()
	go hub.Run()

	// The server binary has no device GPS; the simulated provider keeps
	// the tracking pipeline runnable end to end. Mobile runtimes inject
	// their platform provider instead.
	simulated := location.NewSimulatedProvider()

	// Services
	tokens := services.NewTokenService(cfg.SOS.TokenReuseWindow)
	sessionStore := services.NewSessionStoreService(sessionRepo, local, tokens, appLogger)
	tracking := services.NewTrackingService(simulated, simulated, sessionStore, hub, services.TrackingOptions{
		DistanceMeters:   cfg.SOS.TrackingDistanceMeters,
		Interval:         cfg.SOS.TrackingInterval,
		BackgroundTaskID: cfg.SOS.BackgroundTaskID,
	}, appLogger)
	consent := services.NewConsentService()
	dispatch := services.NewDispatchService(deliveryRepo, userRepo, composer, geocoder, cfg.SOS.WebBaseURL, appLogger)
	sosService := services.NewSOSService(sessionStore, tracking, dispatch, consent, userRepo, settingsRepo, hub, appLogger)

	// Push dispatch worker
	if pushProvider != nil {
		worker := workers.NewDispatchWorker(deliveryRepo, pushProvider, cfg.SOS.DispatchInterval, int64(cfg.SOS.DispatchBatchSize), appLogger)
		go worker.Run(ctx)
	} else {
		appLogger.Warn("Push provider not configured; delivery records will not be drained")
	}

	// Initialize handlers
	sosHandler := handlers.NewSOSHandler(sosService, sessionStore, hub)

	// Initialize Gin router
	if !config.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	// Global middleware
	router.Use(gin.Recovery())
	router.Use(middleware.CORSMiddleware())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.LoggingMiddleware(appLogger))

	// API routes
	v1 := router.Group("/api/v1")
	{
		routes.SetupSOSRoutes(v1, sosHandler, cfg.Security.JWTSecret)
	}
	routes.SetupWebSocketRoutes(router, sosHandler)

	// Health check
	router.GET("/health", func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":  "degraded",
				"version": cfg.App.Version,
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"version": cfg.App.Version,
		})
	})

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.App.Port),
		Handler: router,
	}

	go func() {
		<-ctx.Done()
		appLogger.Info("Shutting down server")
		server.Shutdown(context.Background())
	}()

	appLogger.Infof("Starting server on port %d", cfg.App.Port)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		appLogger.Fatalf("Server failed: %v", err)
	}
}

func buildSMSComposer(cfg *config.SMSConfig, log *logger.Logger) sms.Composer {
	switch cfg.Provider {
	case "aws":
		composer, err := sms.NewAWSSNSComposer(cfg.AWS.Region)
		if err != nil {
			log.WithError(err).Warn("AWS SNS composer unavailable")
			return nil
		}
		return composer
	default:
		if cfg.Twilio.AccountSID == "" {
			log.Warn("Twilio not configured; SMS surface reports unavailable")
			return nil
		}
		return sms.NewTwilioComposer(cfg.Twilio.AccountSID, cfg.Twilio.AuthToken, cfg.Twilio.FromNumber)
	}
}

func buildPushProvider(cfg *config.PushConfig, log *logger.Logger) push.Provider {
	switch cfg.Provider {
	case "apns":
		provider, err := push.NewAPNSProvider(cfg.APNS.KeyFile, cfg.APNS.KeyID, cfg.APNS.TeamID, cfg.APNS.BundleID, cfg.APNS.Production)
		if err != nil {
			log.WithError(err).Warn("APNs provider unavailable")
			return nil
		}
		return provider
	default:
		if cfg.FCM.Credentials == "" {
			log.Warn("FCM not configured")
			return nil
		}
		provider, err := push.NewFCMProvider(cfg.FCM.Credentials)
		if err != nil {
			log.WithError(err).Warn("FCM provider unavailable")
			return nil
		}
		return provider
	}
}
