// Package main boots the exhorto interchange engine: it loads configuration,
// opens the SQLite store, migrates the schema, seeds the INEGI catalogs,
// starts the background task runner and the POR ENVIAR cron sweep, and serves
// the HTTP surfaces (peer protocol plus operator API) with graceful shutdown.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/justicia-digital/exhorto-interchange/internal/config"
	"github.com/justicia-digital/exhorto-interchange/internal/domain"
	httpapi "github.com/justicia-digital/exhorto-interchange/internal/http"
	"github.com/justicia-digital/exhorto-interchange/internal/observability"
	"github.com/justicia-digital/exhorto-interchange/internal/outbound"
	"github.com/justicia-digital/exhorto-interchange/internal/repo"
	"github.com/justicia-digital/exhorto-interchange/internal/services"
	"github.com/justicia-digital/exhorto-interchange/internal/storage"
	"github.com/justicia-digital/exhorto-interchange/internal/sysutil"
	"github.com/justicia-digital/exhorto-interchange/internal/tasks"
)

// version is stamped at build time via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	// Local development convenience; a missing .env is not an error.
	_ = godotenv.Load()

	cfg := config.MustLoad()

	sysutil.SetLogLevel(cfg.LogLevel)
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	log.Info().Str("version", version).Str("estado", cfg.Interchange.EstadoClave).Msg("starting exhorto interchange engine")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		log.Fatal().Err(err).Msg("otel setup failed")
	}

	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("open database failed")
	}
	if err := repo.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("migrate failed")
	}
	if err := repo.SeedEstados(ctx, db, domain.EstadosInegi()); err != nil {
		log.Fatal().Err(err).Msg("seed estados failed")
	}
	if err := repo.SeedMaterias(ctx, db, domain.MateriasIniciales()); err != nil {
		log.Fatal().Err(err).Msg("seed materias failed")
	}

	store, err := storage.NewGCSStore(ctx, cfg.Storage.CredentialsFile)
	if err != nil {
		log.Fatal().Err(err).Msg("blob storage setup failed")
	}

	client := outbound.New(outbound.Options{
		Timeout:         cfg.Interchange.RequestTimeout,
		FileUploadPause: cfg.Interchange.FileUploadPause,
		PromocionPause:  cfg.Interchange.PromocionPause,
		Logger:          log.Logger,
	})
	outSvc := services.NewOutboundService(db, client, store, cfg.Interchange, log.Logger)

	// Background task runner: outbound flows execute off the request path.
	runner := tasks.NewRunner(db, cfg.Interchange.TaskWorkers, cfg.Interchange.TaskQueueCapacity, log.Logger)
	runner.Register(domain.ComandoEnviarExhorto, outSvc.EnviarExhorto)
	runner.Register(domain.ComandoConsultarExhorto, outSvc.ConsultarExhorto)
	runner.Register(domain.ComandoResponderExhorto, outSvc.EnviarRespuesta)
	runner.Register(domain.ComandoEnviarActualizacion, outSvc.EnviarActualizacion)
	runner.Register(domain.ComandoEnviarPromocion, outSvc.EnviarPromocion)
	// ConsultarMaterias receives the estado clave of the peer to refresh.
	runner.Register(domain.ComandoConsultarMaterias, outSvc.ConsultarMaterias)
	runner.Start(ctx)

	scheduler, err := tasks.NewScheduler(cfg.Interchange.ResendCronSpec, outSvc, log.Logger)
	if err != nil {
		log.Fatal().Err(err).Str("spec", cfg.Interchange.ResendCronSpec).Msg("cron setup failed")
	}
	scheduler.Start()

	gin.SetMode(cfg.GinMode)
	r := gin.New()
	httpapi.RegisterRoutes(r, db, store, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("http server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("http server failed")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown failed")
	}
	scheduler.Stop()
	runner.Stop()
	if err := store.Close(); err != nil {
		log.Error().Err(err).Msg("blob storage close failed")
	}
	if err := shutdownOTel(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("otel shutdown failed")
	}
	log.Info().Msg("stopped")
}
