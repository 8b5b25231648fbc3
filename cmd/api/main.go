package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/vida-health/vida/internal/auth"
	"github.com/vida-health/vida/internal/background"
	"github.com/vida-health/vida/internal/cache"
	"github.com/vida-health/vida/internal/config"
	"github.com/vida-health/vida/internal/database"
	"github.com/vida-health/vida/internal/handlers"
	middlewareCustom "github.com/vida-health/vida/internal/middleware"
	"github.com/vida-health/vida/internal/models"
	"github.com/vida-health/vida/internal/registry"
	"github.com/vida-health/vida/internal/repositories"
	"github.com/vida-health/vida/internal/routes"
	"github.com/vida-health/vida/internal/security"
	"github.com/vida-health/vida/internal/services"
	pkghttp "github.com/vida-health/vida/pkg/http"
	pkglogger "github.com/vida-health/vida/pkg/logger"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("configuration loaded", slog.String("env", cfg.Server.Env))

	// Initialize database
	db, err := database.NewConnection(&cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	// Initialize cache backend: Redis when configured, otherwise a
	// process-local store with its own sweep goroutine.
	var cacheStore cache.Store
	var memStore *cache.MemoryStore
	if cfg.Redis.URL != "" {
		redisStore, err := cache.NewRedisStore(cfg.Redis.URL)
		if err != nil {
			logger.Error("failed to connect to redis", slog.Any("error", err))
			os.Exit(1)
		}
		defer redisStore.Close()
		cacheStore = redisStore
		logger.Info("using redis cache backend")
	} else {
		memStore = cache.NewMemoryStore(10 * time.Minute)
		cacheStore = memStore
		logger.Info("using in-memory cache backend")
	}

	// Initialize repositories
	patientRepo := repositories.NewPatientRepository(db)
	eventRepo := repositories.NewAccessEventRepository(db)

	// Security infrastructure
	metrics := security.NewMetrics()
	monitor := security.NewMonitor(security.MonitorConfig{
		Thresholds: map[security.EventCategory]int{
			security.EventFailedLogin:           cfg.Security.AlertThreshold,
			security.EventEmergencyAccessDenied: cfg.Security.AlertThreshold,
		},
	}, metrics, logger)

	tracker := security.NewFailedAttemptTracker(cfg.Security.FailureWindow, cfg.Security.FailureThreshold, monitor, logger)
	timingDelay := security.NewTimingDelay(security.TimingConfig{
		FloorMs:  int(cfg.Security.TimingFloor.Milliseconds()),
		JitterMs: int(cfg.Security.TimingJitter.Milliseconds()),
	})

	auditLogger := pkglogger.NewAuditLogger(logger)
	ipConfig := &pkghttp.IPConfig{TrustedProxies: cfg.Security.TrustedProxies}

	// Registry client with its verification cache namespace
	verifyCache := cache.NewNamespace(cacheStore, cache.PrefixLicenseVerify)
	registryClient := registry.NewClient(registry.Config{
		BaseURL:  cfg.Registry.BaseURL,
		Timeout:  cfg.Registry.Timeout,
		CacheTTL: cfg.Registry.CacheTTL,
		Enabled:  cfg.Registry.Enabled,
		OnLookup: func(source models.VerificationSource) {
			metrics.RegistryLookups.WithLabelValues(string(source)).Inc()
		},
	}, verifyCache, logger)

	// Token manager for patient sessions
	tokenManager := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenExpiry)

	// Representative notifications via SES, or log-only when disabled
	var notifier services.RepresentativeNotifier
	if cfg.Email.Enabled {
		notificationService, err := services.NewNotificationService(
			cfg.Email.Region,
			cfg.Email.FromAddress,
			patientRepo,
			eventRepo,
			logger,
		)
		if err != nil {
			logger.Error("failed to initialize notification service", slog.Any("error", err))
			os.Exit(1)
		}
		notifier = notificationService
	} else {
		notifier = services.NewNoopNotifier(logger)
	}

	// Initialize services
	trustService := services.NewTrustService(registryClient, logger)
	emergencyService := services.NewEmergencyService(
		trustService,
		patientRepo,
		eventRepo,
		notifier,
		tracker,
		timingDelay,
		monitor,
		metrics,
		services.EmergencyConfig{AccessTokenTTL: cfg.Security.AccessTokenLifetime},
		logger,
	)
	patientService := services.NewPatientService(patientRepo, tokenManager, timingDelay, monitor, cfg.Server.BaseURL, logger)
	mfaService := services.NewMFAService(patientRepo, cacheStore, monitor, logger)

	// Initialize handlers
	emergencyHandler := handlers.NewEmergencyHandler(emergencyService, auditLogger, ipConfig)
	patientHandler := handlers.NewPatientHandler(patientService, mfaService, eventRepo, auditLogger, ipConfig)

	// Setup CORS middleware
	corsConfig := middlewareCustom.DefaultCORSConfig(cfg.Server.AllowedOrigins)

	// Setup router
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: cfg.Server.Env}))
	router.Use(middlewareCustom.CORS(corsConfig))
	router.Use(middlewareCustom.SecureLogger(logger))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(60 * time.Second))

	// Register routes
	routes.RegisterRoutes(router, emergencyHandler, patientHandler, emergencyService, tokenManager, &cfg.Security, ipConfig)

	// Prometheus metrics
	router.Handle("/metrics", promhttp.Handler())

	// Health check with database
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := db.HealthCheck(ctx); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"unhealthy","database":"down"}`))
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy","database":"up"}`))
	})

	// Create server
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start background workers
	backgroundCtx, backgroundCancel := context.WithCancel(context.Background())
	defer backgroundCancel()

	cleanupManager := background.NewCleanupManager(eventRepo, tracker, logger, time.Hour, cfg.Security.EventRetention)
	go cleanupManager.Start(backgroundCtx)
	go monitor.Start(backgroundCtx)
	if memStore != nil {
		go memStore.Start(backgroundCtx)
	}

	// Start server
	go func() {
		logger.Info("starting server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received")

	backgroundCancel()
	cleanupManager.Stop()
	monitor.Stop()
	if memStore != nil {
		memStore.Stop()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("server stopped gracefully")
}
