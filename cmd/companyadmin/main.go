package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/odyssey-erp/companyadmin/internal/app"
	"github.com/odyssey-erp/companyadmin/internal/companies"
	companieshttp "github.com/odyssey-erp/companyadmin/internal/companies/http"
	"github.com/odyssey-erp/companyadmin/internal/companies/screen"
	"github.com/odyssey-erp/companyadmin/internal/observability"
	"github.com/odyssey-erp/companyadmin/internal/platform/cache"
	"github.com/odyssey-erp/companyadmin/internal/platform/db"
	"github.com/odyssey-erp/companyadmin/internal/shared"
	"github.com/odyssey-erp/companyadmin/internal/view"
)

const (
	sessionCookie = "companyadmin_session"
	dbMaxConns    = 10
)

func main() {
	_ = godotenv.Load()

	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := app.NewLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if len(os.Args) > 1 && os.Args[1] == "migrate" {
		if err := runMigrate(ctx, cfg, os.Args[2:]); err != nil {
			logger.Error("migrate", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("migrations applied")
		return
	}

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("companyadmin", slog.Any("error", err))
		os.Exit(1)
	}
}

func runMigrate(ctx context.Context, cfg *app.Config, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: companyadmin migrate up|down")
	}
	pool, err := db.New(ctx, cfg.PGDSN, 1)
	if err != nil {
		return err
	}
	defer pool.Close()
	return db.Migrate(pool, args[0])
}

func run(ctx context.Context, cfg *app.Config, logger *slog.Logger) error {
	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		return err
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	var (
		source     screen.Source
		apiHandler *companieshttp.APIHandler
		pool       *pgxpool.Pool
	)
	switch cfg.CompanySource {
	case app.SourceAPI:
		source = companies.NewAPIClient(cfg.CompanyAPIURL, cfg.CompanyAPITimeout)
		logger.Info("using remote company api", slog.String("url", cfg.CompanyAPIURL))
	default:
		pool, err = db.New(ctx, cfg.PGDSN, dbMaxConns)
		if err != nil {
			return err
		}
		defer pool.Close()
		service := companies.NewService(companies.NewRepository(pool), logger)
		source = service
		apiHandler = companieshttp.NewAPIHandler(logger, service)
	}

	templates, err := view.NewEngine()
	if err != nil {
		return fmt.Errorf("parse templates: %w", err)
	}
	metrics := observability.NewMetrics()
	sessionManager := shared.NewSessionManager(redisClient, sessionCookie, cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)
	store := screen.NewStore(redisClient, cfg.ScreenStateTTL)

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		SessionManager:   sessionManager,
		CSRFManager:      csrfManager,
		CompaniesHandler: companieshttp.NewHandler(logger, source, store, templates, csrfManager, metrics),
		APIHandler:       apiHandler,
		Metrics:          metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
	}
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	return nil
}
