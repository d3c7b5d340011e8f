// Package app provides application initialization and lifecycle management.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/inkwheel/pressroom/internal/bank"
	bankpostgres "github.com/inkwheel/pressroom/internal/bank/postgres"
	"github.com/inkwheel/pressroom/internal/config"
	"github.com/inkwheel/pressroom/internal/domain"
	generatorhttp "github.com/inkwheel/pressroom/internal/generator/http"
	"github.com/inkwheel/pressroom/internal/identity"
	"github.com/inkwheel/pressroom/internal/identity/jwt"
	identitypostgres "github.com/inkwheel/pressroom/internal/identity/postgres"
	"github.com/inkwheel/pressroom/internal/pkg/ctxlog"
	"github.com/inkwheel/pressroom/internal/pkg/httputil"
	"github.com/inkwheel/pressroom/internal/pkg/metrics"
	"github.com/inkwheel/pressroom/internal/pkg/postgres"
	publisherhttp "github.com/inkwheel/pressroom/internal/publisher/http"
	"github.com/inkwheel/pressroom/internal/queue"
	queuepostgres "github.com/inkwheel/pressroom/internal/queue/postgres"
	"github.com/inkwheel/pressroom/internal/quota"
	quotapostgres "github.com/inkwheel/pressroom/internal/quota/postgres"
	"github.com/inkwheel/pressroom/internal/trial"
	trialpostgres "github.com/inkwheel/pressroom/internal/trial/postgres"
	"github.com/inkwheel/pressroom/internal/version"
	voicehttp "github.com/inkwheel/pressroom/internal/voice/http"
)

// App represents the application instance.
type App struct {
	config         *config.Config
	logger         *slog.Logger
	db             *pgxpool.Pool
	server         *http.Server
	metricsServer  *http.Server
	metricsCancel  context.CancelFunc
	trialScheduler *trial.Scheduler
}

// New creates a new application instance.
func New(cfg *config.Config) (*App, error) {
	logger := initLogger(cfg.Log)

	connectCtx, connectCancel := context.WithTimeout(context.Background(), cfg.Database.ConnectTimeout)
	defer connectCancel()

	db, err := postgres.Connect(connectCtx, postgres.Config{
		URL:             cfg.Database.URL,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		ConnectAttempts: cfg.Database.ConnectAttempts,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	metricsCtx, metricsCancel := context.WithCancel(context.Background())

	app := &App{
		config:        cfg,
		logger:        logger,
		db:            db,
		metricsCancel: metricsCancel,
	}

	go app.collectDBMetrics(metricsCtx)

	router, trialScheduler, err := app.setupRouter(metricsCtx)
	if err != nil {
		db.Close()
		metricsCancel()
		return nil, fmt.Errorf("setup router: %w", err)
	}

	app.trialScheduler = trialScheduler

	app.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:           router,
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	// Metrics server on separate port
	metricsRouter := chi.NewRouter()
	metricsRouter.Handle("/metrics", promhttp.Handler())

	app.metricsServer = &http.Server{
		Addr:              fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.MetricsPort),
		Handler:           metricsRouter,
		ReadTimeout:       5 * time.Second,
		ReadHeaderTimeout: 2 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return app, nil
}

// Run starts the HTTP servers.
func (a *App) Run() error {
	// Start metrics server in background
	go func() {
		a.logger.Info("starting metrics server",
			"host", a.config.Server.Host,
			"port", a.config.Server.MetricsPort,
		)
		if err := a.metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.logger.Error("metrics server error", "error", err)
		}
	}()

	// Start main server
	a.logger.Info("starting server",
		"host", a.config.Server.Host,
		"port", a.config.Server.Port,
	)

	if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the application.
func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("shutting down servers")

	a.metricsCancel()

	// Stop trial scheduler first
	if a.trialScheduler != nil {
		a.trialScheduler.Stop()
	}

	// Shutdown both servers in parallel
	var wg sync.WaitGroup
	var errs []error
	var mu sync.Mutex

	wg.Add(2)

	go func() {
		defer wg.Done()
		if err := a.server.Shutdown(ctx); err != nil {
			mu.Lock()
			errs = append(errs, fmt.Errorf("shutdown server: %w", err))
			mu.Unlock()
		}
	}()

	go func() {
		defer wg.Done()
		if err := a.metricsServer.Shutdown(ctx); err != nil {
			mu.Lock()
			errs = append(errs, fmt.Errorf("shutdown metrics server: %w", err))
			mu.Unlock()
		}
	}()

	wg.Wait()

	a.db.Close()

	return errors.Join(errs...)
}

func (a *App) collectDBMetrics(ctx context.Context) {
	// Collect immediately on start
	metrics.RecordDBPoolMetrics(a.db)

	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			metrics.RecordDBPoolMetrics(a.db)
		case <-ctx.Done():
			return
		}
	}
}

func (a *App) collectQueueMetrics(ctx context.Context, service *queue.Service) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			stats, err := service.QueueStats(ctx)
			if err != nil {
				slog.Error("failed to get queue stats", "error", err)
				continue
			}
			for state, count := range stats {
				metrics.RecordQueueSize(string(state), count)
			}
		case <-ctx.Done():
			return
		}
	}
}

// Router returns the HTTP handler for testing.
func (a *App) Router() http.Handler {
	return a.server.Handler
}

// TrialScheduler returns the trial scheduler instance.
// Used in tests to access scheduler state. Returns nil if disabled.
func (a *App) TrialScheduler() *trial.Scheduler {
	return a.trialScheduler
}

func (a *App) setupRouter(ctx context.Context) (*chi.Mux, *trial.Scheduler, error) {
	r := chi.NewRouter()

	// Metrics middleware must be first to measure full request time
	r.Use(httputil.MetricsMiddleware)

	// CORS must be early to handle preflight requests before other middleware
	r.Use(httputil.CORSMiddleware(a.config.CORS.AllowedOrigins))
	r.Use(middleware.RequestID)
	r.Use(httputil.RequestLoggerMiddleware(a.logger))
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/healthz", a.healthzHandler)
	r.Get("/readyz", a.readyzHandler)
	r.Get("/version", a.versionHandler)

	r.Get("/api/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/x-yaml")
		http.ServeFile(w, r, "api/openapi/openapi.yaml")
	})

	caps := a.config.Platforms.Capabilities()

	gateway, err := publisherhttp.NewGateway(publisherhttp.Config{
		Enabled:   a.config.Publisher.Enabled,
		Endpoints: a.config.Publisher.Endpoints,
		RateLimit: a.config.Publisher.RateLimit,
		Timeout:   a.config.Publisher.Timeout,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("create publisher gateway: %w", err)
	}
	if !a.config.Publisher.Enabled {
		slog.Warn("publisher gateway is disabled: publish attempts will fail")
	}

	gen, err := generatorhttp.NewClient(generatorhttp.Config{
		Enabled: a.config.Generator.Enabled,
		BaseURL: a.config.Generator.BaseURL,
		Timeout: a.config.Generator.Timeout,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("create generator client: %w", err)
	}

	checker, err := voicehttp.NewClient(voicehttp.Config{
		Enabled: a.config.Voice.Enabled,
		BaseURL: a.config.Voice.BaseURL,
		Timeout: a.config.Voice.Timeout,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("create voice checker client: %w", err)
	}

	quotaRepo := quotapostgres.NewRepository(a.db)
	ledger := quota.NewLedger(quotaRepo, caps)
	quotaHandler := quota.NewHandler(ledger)

	trialRepo := trialpostgres.NewRepository(a.db)

	queueRepo := queuepostgres.NewRepository(a.db)
	queueService := queue.NewService(queueRepo, ledger, gateway, checker, caps, trialRepo)
	queueHandler := queue.NewHandler(queueService)

	bankRepo := bankpostgres.NewRepository(a.db)
	bankService := bank.NewService(bankRepo)
	bankHandler := bank.NewHandler(bankService)

	trialService := trial.NewService(trialRepo, queueService, bankService, gen, a.config.Trial.CandidatePlatforms())
	trialHandler := trial.NewHandler(trialService)

	var trialScheduler *trial.Scheduler
	if a.config.Trial.SchedulerEnabled {
		trialScheduler = trial.NewScheduler(trial.SchedulerConfig{
			TickInterval: a.config.Trial.TickInterval,
		}, trialService)
		trialScheduler.Start(ctx)
	}

	go a.collectQueueMetrics(ctx, queueService)

	identityRepo := identitypostgres.NewRepository(a.db)
	jwtAuth := jwt.NewAuthenticator(jwt.Config{
		SecretKey:           a.config.JWT.SecretKey,
		AccessTokenDuration: a.config.JWT.AccessTokenDuration,
	})
	identityService := identity.NewService(identityRepo, jwtAuth)
	identityHandler := identity.NewHandler(identityService)

	r.Route("/api/v1", func(r chi.Router) {
		identityHandler.RegisterRoutes(r)

		r.Group(func(r chi.Router) {
			r.Use(httputil.AuthMiddleware(identityService))

			r.Group(func(r chi.Router) {
				r.Use(httputil.RequireRole(domain.RoleOperator))
				queueHandler.RegisterRoutes(r)
				trialHandler.RegisterRoutes(r)
				bankHandler.RegisterRoutes(r)
				quotaHandler.RegisterRoutes(r)
			})

			r.Group(func(r chi.Router) {
				r.Use(httputil.RequireRole(domain.RoleAdmin))
				identityHandler.RegisterAdminRoutes(r)
			})
		})
	})

	return r, trialScheduler, nil
}

func (a *App) healthzHandler(w http.ResponseWriter, _ *http.Request) {
	httputil.Text(w, http.StatusOK, "OK")
}

func (a *App) readyzHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := a.db.Ping(ctx); err != nil {
		ctxlog.FromContext(r.Context()).Error("readiness check failed", "error", err)
		httputil.Text(w, http.StatusServiceUnavailable, "Database unavailable")
		return
	}

	httputil.Text(w, http.StatusOK, "OK")
}

func (a *App) versionHandler(w http.ResponseWriter, _ *http.Request) {
	httputil.JSON(w, http.StatusOK, map[string]string{
		"version":    version.Version,
		"commit":     version.GitCommit,
		"build_date": version.BuildDate,
	})
}

func initLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: level}

	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
