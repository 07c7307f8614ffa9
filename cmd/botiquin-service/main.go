package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	authhandler "github.com/botiquin/botiquin-backend/internal/auth/handler"
	"github.com/botiquin/botiquin-backend/internal/auth/jwt"
	authrepo "github.com/botiquin/botiquin-backend/internal/auth/repository"
	authservice "github.com/botiquin/botiquin-backend/internal/auth/service"
	"github.com/botiquin/botiquin-backend/internal/inventory/cache"
	"github.com/botiquin/botiquin-backend/internal/inventory/consumers"
	"github.com/botiquin/botiquin-backend/internal/inventory/events"
	"github.com/botiquin/botiquin-backend/internal/inventory/handler"
	"github.com/botiquin/botiquin-backend/internal/inventory/ingest"
	"github.com/botiquin/botiquin-backend/internal/inventory/metrics"
	"github.com/botiquin/botiquin-backend/internal/inventory/repository"
	"github.com/botiquin/botiquin-backend/internal/inventory/service"
	"github.com/botiquin/botiquin-backend/pkg/config"
	"github.com/botiquin/botiquin-backend/pkg/database"
	"github.com/botiquin/botiquin-backend/pkg/httputil"
	"github.com/botiquin/botiquin-backend/pkg/i18n"
	"github.com/botiquin/botiquin-backend/pkg/logger"
	"github.com/botiquin/botiquin-backend/pkg/messaging"
)

const serviceName = "botiquin-service"

func main() {
	// Load configuration with validation (fails fast in production if required config is missing)
	cfg, err := config.LoadWithValidation(serviceName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(serviceName, cfg.Server.Environment)
	log.SetLevel(cfg.Log.Level)
	log.Info().Msg("starting Botiquin Service")

	db, err := database.New(&cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Database.AutoMigrate {
		if err := db.Migrate(ctx); err != nil {
			log.Fatal().Err(err).Msg("failed to apply schema")
		}
	}

	// Redis is optional; a nil cache drops writes and misses reads
	var readingCache *cache.ReadingCache
	if cfg.Redis.Enabled {
		client := cache.NewClient(&cfg.Redis)
		defer client.Close()
		readingCache = cache.NewReadingCache(client, cfg.Redis.ReadingTTL, log.WithComponent("cache"))
	}

	// RabbitMQ is optional outside production; a nil publisher drops events
	var (
		rmq       *messaging.RabbitMQ
		publisher *events.InventoryEventPublisher
	)
	if cfg.RabbitMQ.Enabled {
		rmq, err = messaging.New(&cfg.RabbitMQ, log)
		if err != nil {
			if cfg.IsProductionLike() {
				log.Fatal().Err(err).Msg("failed to connect to RabbitMQ")
			}
			log.Warn().Err(err).Msg("RabbitMQ unavailable, events disabled")
		}
	}
	if rmq != nil {
		defer rmq.Close()

		publisher, err = events.NewInventoryEventPublisher(rmq, cfg.RabbitMQ.Exchange, log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create event publisher")
		}

		alertConsumer, err := consumers.NewAlertEventConsumer(rmq, cfg.RabbitMQ.Exchange, readingCache, log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create alert consumer")
		}
		if err := alertConsumer.Start(ctx); err != nil {
			log.Fatal().Err(err).Msg("failed to start alert consumer")
		}
	}

	m := metrics.New()

	// Initialize repositories
	companyRepo := repository.NewCompanyRepository(db)
	botiquinRepo := repository.NewBotiquinRepository(db)
	medicineRepo := repository.NewMedicineRepository(db)
	logRepo := repository.NewHardwareLogRepository(db)
	userRepo := authrepo.NewUserRepository(db)

	// Initialize services
	inventoryService := service.NewInventoryService(companyRepo, botiquinRepo, medicineRepo, readingCache, publisher, nil, log)
	sensorService := service.NewSensorService(db, companyRepo, botiquinRepo, medicineRepo, logRepo, readingCache, publisher, m, nil, log)
	authService := authservice.NewAuthService(userRepo, jwt.NewManager(&cfg.JWT), log)

	var sweeper *service.StatusSweeper
	if cfg.Sweep.Enabled {
		sweeper = service.NewStatusSweeper(cfg.Sweep.Schedule, medicineRepo, publisher, m, nil, log)
		if err := sweeper.Start(); err != nil {
			log.Fatal().Err(err).Msg("failed to start status sweeper")
		}
	}

	var subscriber *ingest.Subscriber
	if cfg.MQTT.Enabled {
		subscriber = ingest.NewSubscriber(&cfg.MQTT, sensorService, log)
		if err := subscriber.Start(); err != nil {
			if cfg.IsProductionLike() {
				log.Fatal().Err(err).Msg("failed to start MQTT subscriber")
			}
			log.Warn().Err(err).Msg("MQTT broker unavailable, push ingestion disabled")
			subscriber = nil
		}
	}

	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(httputil.RequestID)
	r.Use(httputil.Logger(log))
	r.Use(httputil.Recoverer(log))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID", "Accept-Language", handler.HardwareKeyHeader},
		ExposedHeaders:   []string{"X-Request-ID", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(i18n.Middleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		httputil.JSON(w, http.StatusOK, map[string]interface{}{
			"status":   "healthy",
			"service":  serviceName,
			"database": db.Health(r.Context()),
			"rabbitmq": rmq.Health(),
			"redis":    readingCache.Health(r.Context()),
			"mqtt":     subscriber.Health(),
		})
	})
	r.Handle("/metrics", m.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		authhandler.NewAuthHandler(authService, log).Mount(r)

		handler.Routes{
			Hardware:    handler.NewHardwareHandler(sensorService, log),
			Medicines:   handler.NewMedicineHandler(inventoryService, log),
			Botiquines:  handler.NewBotiquinHandler(inventoryService, log),
			RequireUser: authhandler.RequireUser(authService),
			HardwareKey: cfg.Hardware.APIKey,
		}.Mount(r)
	})

	addr := cfg.Server.Addr()
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	// stop inputs first so no batch starts during shutdown
	if subscriber != nil {
		subscriber.Stop()
	}
	if sweeper != nil {
		sweeper.Stop()
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}
