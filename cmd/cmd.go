package cmd

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cosnap-backend/internal/config"
	"cosnap-backend/internal/geo"
	"cosnap-backend/internal/handlers"
	"cosnap-backend/internal/middleware"
	"cosnap-backend/internal/notify"
	"cosnap-backend/internal/repository"
	"cosnap-backend/internal/services"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func Run() {
	// Load configuration (.env first so it can override secrets)
	_ = godotenv.Load()
	cfg, err := config.Load("config.yaml")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Setup logger
	setupLogger(cfg.Log.Level)

	// Connect to database
	db, err := pgxpool.New(context.Background(), cfg.Database.DSN())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()

	// Test database connection
	if err := db.Ping(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("Failed to ping database")
	}
	log.Info().Msg("Database connection established")

	// Redis backs the rate limiter; the service runs without it
	var rdb *redis.Client
	if cfg.Redis.Addr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			log.Warn().Err(err).Msg("Redis unreachable, rate limiting disabled")
			rdb = nil
		}
	}

	// Initialize repositories
	profileRepo := repository.NewProfileRepository(db)
	flagRepo := repository.NewFlagRepository(db)
	offerRepo := repository.NewOfferRepository(db)
	matchRepo := repository.NewMatchRepository(db)
	conversationRepo := repository.NewConversationRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)

	// Notification fan-out: the stored row is authoritative, push and
	// the realtime feed are best-effort extras
	var extraSinks []services.NotificationSink
	if cfg.APNs.CertPath != "" {
		pushSink, err := notify.NewPushSink(cfg.APNs.CertPath, cfg.APNs.CertPassword, cfg.APNs.Topic, cfg.APNs.Production, profileRepo)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create APNs sink")
		}
		extraSinks = append(extraSinks, pushSink)
	}
	if cfg.AMQP.URL != "" {
		feedSink, err := notify.NewFeedSink(cfg.AMQP.URL)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to notification feed broker")
		}
		defer feedSink.Close()
		extraSinks = append(extraSinks, feedSink)
	}
	notifier := notify.NewMultiSink(notify.NewStoreSink(notificationRepo), extraSinks...)

	// Initialize services
	displacer := geo.NewDisplacer(cfg.Geo.DisplacementRadiusKm, rand.NewSource(time.Now().UnixNano()))
	profileService := services.NewProfileService(profileRepo, cfg.Auth.JWTSecret)
	flagService := services.NewFlagService(flagRepo, displacer)
	offerService := services.NewOfferService(offerRepo, matchRepo, conversationRepo, profileRepo, notifier)

	// Initialize handlers
	profileHandler := handlers.NewProfileHandler(profileService)
	flagHandler := handlers.NewFlagHandler(flagService, profileService)
	offerHandler := handlers.NewOfferHandler(offerService)

	// Setup router
	r := chi.NewRouter()

	// Middleware
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(corsMiddleware)

	rateLimit := middleware.RateLimit(middleware.RateLimitConfig{
		Enabled: cfg.RateLimit.Enabled,
		Limit:   cfg.RateLimit.Limit,
		Window:  cfg.RateLimit.Window,
	}, rdb)

	// Routes
	r.Route("/api/v1", func(r chi.Router) {
		// Public routes
		r.Post("/profiles", profileHandler.CreateProfile)
		r.Get("/flags", flagHandler.ListFlags)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(middleware.AuthMiddleware(profileService))
			r.Use(rateLimit)
			r.Put("/profiles/push-token", profileHandler.RegisterPushToken)
			r.Post("/flags", flagHandler.CreateFlag)
			r.Patch("/flags/{flag_id}", flagHandler.UpdateFlag)
			r.Delete("/flags/{flag_id}", flagHandler.DeleteFlag)
			r.Post("/offers", offerHandler.CreateOffer)
			r.Post("/offers/{offer_id}/cancel", offerHandler.CancelOffer)
			r.Post("/offers/{offer_id}/decline", offerHandler.DeclineOffer)
			r.Post("/offers/{offer_id}/accept", offerHandler.AcceptOffer)
		})
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().
			Str("host", cfg.Server.Host).
			Int("port", cfg.Server.Port).
			Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	// Shutdown HTTP server
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}

// setupLogger configures zerolog logger
func setupLogger(level string) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}

// corsMiddleware handles CORS
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
