package main

import (
	"context"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"letterflow/db/migrations"
	"letterflow/internal/app"
	"letterflow/internal/artifacts"
	"letterflow/internal/config"
	"letterflow/internal/email"
	"letterflow/internal/export"
	"letterflow/internal/gitrepo"
	"letterflow/internal/logging"
	"letterflow/internal/search"
	"letterflow/internal/session"
	"letterflow/internal/store"
)

func main() {
	cfg := config.Load()
	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()
	ctx := context.Background()

	db, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("database connection failed", zap.Error(err))
	}
	defer db.Close()

	if err := store.ApplyMigrations(ctx, db, migrationsFS(cfg.MigrationsDir)); err != nil {
		logger.Fatal("migrations failed", zap.Error(err))
	}

	if err := os.MkdirAll(cfg.ReposDir, 0o755); err != nil {
		logger.Fatal("failed to create repos dir", zap.Error(err))
	}

	dataStore := store.NewPostgresStore(db)
	gitService := gitrepo.New(cfg.ReposDir)

	sessions, err := session.NewRedisStore(cfg.RedisURL)
	if err != nil {
		logger.Fatal("redis connection failed", zap.Error(err))
	}
	defer sessions.Close()

	storage, err := artifacts.New(cfg)
	if err != nil {
		logger.Fatal("artifact storage init failed", zap.Error(err))
	}
	if err := storage.EnsureBucket(ctx); err != nil {
		logger.Warn("artifact bucket unavailable", zap.String("bucket", cfg.S3Bucket), zap.Error(err))
	}

	renderer := export.NewService(export.Options{
		Institution:    cfg.Institution,
		PresidentTitle: cfg.PresidentTitle,
		ChromePath:     cfg.ChromePath,
		Timeout:        cfg.RenderTimeout,
		Logger:         logger.Named("export"),
	})

	pgfts := search.NewPgFTS(db)
	var meiliClient *search.Meili
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meiliClient = search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey, logger)
		defer meiliClient.Close()
	}
	searchService := search.NewService(meiliClient, pgfts, logger)
	go searchService.ReindexAllFromPG(ctx)

	mailer := email.NewService(email.Config{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
		FromName: cfg.SMTPFromName,
	})
	if !mailer.IsConfigured() {
		logger.Info("smtp not configured, transition notices disabled")
	}

	service := app.New(cfg, app.Deps{
		Store:     dataStore,
		Sessions:  sessions,
		Git:       gitService,
		Renderer:  renderer,
		Artifacts: storage,
		Search:    searchService,
		Mailer:    mailer,
		Logger:    logger.Named("app"),
	})
	if err := service.Bootstrap(ctx, cfg.SeedPassword); err != nil {
		logger.Warn("bootstrap error (will retry on next restart)", zap.Error(err))
	}

	httpServer := app.NewHTTPServer(service, cfg.CORSOrigin, logger.Named("http"))
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      cfg.RenderTimeout + 30*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("letterflow api listening", zap.String("addr", cfg.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", zap.Error(err))
	}
}

// migrationsFS prefers an on-disk migrations directory and falls back to the
// copy compiled into the binary.
func migrationsFS(dir string) fs.FS {
	if info, err := os.Stat(dir); err == nil && info.IsDir() {
		return os.DirFS(dir)
	}
	return migrations.FS
}
