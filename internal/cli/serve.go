package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/spf13/cobra"

	api "github.com/mind-engage/mindengage-coach/internal/api/http"
	auth "github.com/mind-engage/mindengage-coach/internal/auth/middleware"
	"github.com/mind-engage/mindengage-coach/internal/config"
	"github.com/mind-engage/mindengage-coach/internal/framework"
	"github.com/mind-engage/mindengage-coach/internal/report"
	"github.com/mind-engage/mindengage-coach/internal/session"
	"github.com/mind-engage/mindengage-coach/internal/storage"
	syncx "github.com/mind-engage/mindengage-coach/internal/sync"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE:  runServe,
	}
}

func openBlobStore(ctx context.Context, cfg config.Config) (storage.BlobStore, error) {
	switch cfg.BlobDriver {
	case "minio":
		return storage.NewMinioStore(ctx, cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket)
	default:
		return storage.NewFSStore(cfg.BlobBasePath)
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	appCtx, appCancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer appCancel()

	openCtx, cancel := context.WithTimeout(appCtx, 10*time.Second)
	defer cancel()
	e, err := openEnv(openCtx, cmd)
	if err != nil {
		return err
	}
	defer e.closer()
	cfg := e.cfg

	blobs, err := openBlobStore(openCtx, cfg)
	if err != nil {
		return fmt.Errorf("blob store: %w", err)
	}

	events := syncx.NewEventRepo(e.db)
	frameworks := framework.NewSQLStore(e.db)
	publisher := &report.Publisher{Blobs: blobs, Events: events, Log: e.log}
	if cfg.PDFBrowser != "" {
		publisher.PDF = &report.ChromeRenderer{Binary: cfg.PDFBrowser, Timeout: cfg.ReportTimeout}
	}
	svc := &session.Service{
		Sessions:   session.NewSQLStore(e.db),
		Frameworks: frameworks,
		Reports:    publisher,
		Log:        e.log,
	}

	router := api.NewRouter(api.Deps{
		DB:          e.db,
		Auth:        auth.NewAuthService(cfg.AuthHMACSecret, cfg.TokenTTL),
		Sessions:    svc,
		Frameworks:  frameworks,
		Events:      events,
		Blobs:       blobs,
		EnableLogin: cfg.EnableLogin,
		RoleFromDB:  cfg.RoleFromDB,
	})

	handler := middleware.Logger(router)
	handler = middleware.Timeout(cfg.ReportTimeout + 30*time.Second)(handler)
	handler = cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Origins(),
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	})(handler)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			e.log.Error("server failed", "error", err)
			appCancel()
		}
	}()
	e.log.Info("listening", "addr", cfg.HTTPAddr, "mode", cfg.Mode, "db", cfg.DBDriver, "blob", cfg.BlobDriver)
	<-appCtx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		e.log.Error("server shutdown", "error", err)
	}
	e.log.Info("server stopped")
	return nil
}
