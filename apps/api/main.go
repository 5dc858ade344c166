package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"time"

	"cloud.google.com/go/storage"
	"github.com/caarlos0/env/v11"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	backupsarchive "github.com/luminapos/lumina-saas/domains/backups/be/archivestore"
	backupshandler "github.com/luminapos/lumina-saas/domains/backups/be/handler"
	backupsrepo "github.com/luminapos/lumina-saas/domains/backups/be/repo"
	backupsservice "github.com/luminapos/lumina-saas/domains/backups/be/service"
	tenantshandler "github.com/luminapos/lumina-saas/domains/tenants/be/handler"
	tenantsprov "github.com/luminapos/lumina-saas/domains/tenants/be/provisioning"
	tenantsrepo "github.com/luminapos/lumina-saas/domains/tenants/be/repo"
	tenantsservice "github.com/luminapos/lumina-saas/domains/tenants/be/service"
	platformauth "github.com/luminapos/lumina-saas/platform/go/auth"
	"github.com/luminapos/lumina-saas/platform/go/couch"
	platformlogging "github.com/luminapos/lumina-saas/platform/go/logging"
	platformmetrics "github.com/luminapos/lumina-saas/platform/go/metrics"
	platformmiddleware "github.com/luminapos/lumina-saas/platform/go/middleware"
	"github.com/luminapos/lumina-saas/platform/go/persistence"
)

type config struct {
	Port            string        `env:"PORT" envDefault:"3000"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	RequestTimeout  time.Duration `env:"REQUEST_TIMEOUT" envDefault:"60s"`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`
	DatabaseURL     string        `env:"DATABASE_URL,required"`
	AuthSecret      string        `env:"AUTH_SECRET,required"`

	CouchURL           string        `env:"COUCHDB_URL,required"`
	CouchAdminUser     string        `env:"COUCHDB_ADMIN_USER,required"`
	CouchAdminPassword string        `env:"COUCHDB_ADMIN_PASSWORD,required"`
	CouchTimeout       time.Duration `env:"COUCHDB_TIMEOUT" envDefault:"30s"`

	ArchiveBackend  string `env:"ARCHIVE_BACKEND" envDefault:"local"` // gcs | local
	ArchiveBucket   string `env:"ARCHIVE_BUCKET"`                     // required when ARCHIVE_BACKEND=gcs
	ArchivePrefix   string `env:"ARCHIVE_PREFIX" envDefault:"backups"`
	ArchiveLocalDir string `env:"ARCHIVE_LOCAL_DIR" envDefault:"./.data/backups"`
	BackupWorkDir   string `env:"BACKUP_WORK_DIR"` // defaults to the system temp dir
}

func main() {
	ctx := context.Background()

	// .env is optional and only a convenience for local development.
	_ = godotenv.Load()

	var cfg config
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, err := platformlogging.NewLogger(platformlogging.Config{
		Component: "api-server",
		Level:     cfg.LogLevel,
	})
	if err != nil {
		log.Fatalf("init zap logger: %v", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	pool, err := persistence.NewPool(ctx, persistence.PoolConfig{ConnString: cfg.DatabaseURL})
	if err != nil {
		logger.Fatal("init postgres pool", zap.Error(err))
	}
	defer persistence.ClosePool(pool)

	companyStore, err := persistence.NewCompanyStore(ctx, pool)
	if err != nil {
		logger.Fatal("init company store", zap.Error(err))
	}
	backupStore, err := persistence.NewBackupStore(ctx, pool)
	if err != nil {
		logger.Fatal("init backup store", zap.Error(err))
	}

	couchClient, err := couch.New(couch.Config{
		BaseURL:       cfg.CouchURL,
		AdminUser:     cfg.CouchAdminUser,
		AdminPassword: cfg.CouchAdminPassword,
		Timeout:       cfg.CouchTimeout,
	})
	if err != nil {
		logger.Fatal("init document store client", zap.Error(err))
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	m := platformmetrics.New(registry)

	tenantRepo := tenantsrepo.NewPostgresRepository(companyStore)
	seeder := tenantsprov.NewSeeder(couchClient)
	tenantService := tenantsservice.New(tenantRepo, couchClient, seeder, logger, m)
	tenantHTTPHandler := tenantshandler.New(tenantService, logger)

	archives := buildArchiveStore(ctx, cfg, logger)
	backupRepo := backupsrepo.NewPostgresRepository(backupStore)
	backupService := backupsservice.New(backupsservice.Config{
		Repo:     backupRepo,
		Store:    couchClient,
		Archives: archives,
		Resolver: backupsservice.ResolverFunc(func(ctx context.Context, databaseName string) (*uuid.UUID, error) {
			t, err := tenantRepo.FindByDatabaseName(ctx, databaseName)
			if errors.Is(err, tenantsservice.ErrNotFound) {
				return nil, nil
			}
			if err != nil {
				return nil, err
			}
			return &t.ID, nil
		}),
		Logger:  logger,
		Metrics: m,
		WorkDir: cfg.BackupWorkDir,
	})
	backupHTTPHandler := backupshandler.New(backupService, logger)

	verifier := platformauth.NewVerifier([]byte(cfg.AuthSecret))

	rootRouter := chi.NewRouter()
	rootRouter.Use(
		chimw.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		chimw.Timeout(cfg.RequestTimeout),
		platformmiddleware.DefaultCORS(),
	)
	rootRouter.Use(platformlogging.RequestLogger(logger))

	rootRouter.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	rootRouter.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if err := pool.Ping(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	rootRouter.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	apiRouter := chi.NewRouter()
	apiRouter.Use(platformauth.Middleware(verifier))
	apiRouter.Group(tenantHTTPHandler.Register)
	apiRouter.Group(backupHTTPHandler.Register)

	rootRouter.Mount("/api/v1", apiRouter)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      rootRouter,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  2 * time.Minute,
	}

	go func() {
		logger.Info("starting api server", zap.String("port", cfg.Port))
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server listen failed", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

func buildArchiveStore(ctx context.Context, cfg config, logger *zap.Logger) backupsarchive.Store {
	switch cfg.ArchiveBackend {
	case "gcs":
		if cfg.ArchiveBucket == "" {
			logger.Fatal("archive bucket required when ARCHIVE_BACKEND=gcs")
		}
		gcsClient, err := storage.NewClient(ctx)
		if err != nil {
			logger.Fatal("init gcs client", zap.Error(err))
		}
		return backupsarchive.NewGCS(gcsClient, cfg.ArchiveBucket, cfg.ArchivePrefix)
	case "local":
		store, err := backupsarchive.NewLocal(cfg.ArchiveLocalDir)
		if err != nil {
			logger.Fatal("init local archive store", zap.Error(err))
		}
		return store
	default:
		logger.Fatal("invalid ARCHIVE_BACKEND (use gcs or local)", zap.String("backend", cfg.ArchiveBackend))
		return nil
	}
}
