package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"permit-service/internal/auth"
	"permit-service/internal/config"
	"permit-service/internal/db"
	httphandler "permit-service/internal/http"
	"permit-service/internal/logger"
	"permit-service/internal/repository"
	"permit-service/internal/service"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Environment)

	ctx := context.Background()
	database, err := db.Open(ctx, cfg.DB, cfg.Environment, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer func() {
		if err := db.Close(database); err != nil {
			log.Warn().Err(err).Msg("close database")
		}
	}()
	if err := db.Migrate(ctx, database); err != nil {
		log.Fatal().Err(err).Msg("failed to migrate database")
	}

	vehicleRepo := repository.NewVehicleRepository(database)
	zoneRepo := repository.NewZoneRepository(database)
	priceRepo := repository.NewPriceConfigRepository(database)
	permitRepo := repository.NewPermitRepository(database)
	fiscalRepo := repository.NewFiscalRepository(database)

	pricingService := service.NewPricingService(zoneRepo, priceRepo, log)
	zoneService := service.NewZoneService(zoneRepo, pricingService, log)
	vehicleService := service.NewVehicleService(vehicleRepo, log)
	ledgerService := service.NewLedgerService(permitRepo, log)
	permitService := service.NewPermitService(zoneRepo, vehicleService, pricingService, ledgerService, service.PermitOptions{
		TxCodePrefix:   cfg.Permit.TxCodePrefix,
		TxCodeAttempts: cfg.Permit.TxCodeAttempts,
	}, log)
	fiscalService := service.NewFiscalService(fiscalRepo, vehicleService, ledgerService, service.FiscalOptions{
		MaxEvidence: cfg.Fiscal.MaxEvidencePerInfringement,
	}, log)

	tokenParser := auth.NewParser(cfg.Auth.AccessSecret)

	handler := httphandler.NewHandler(zoneService, pricingService, ledgerService, permitService, vehicleService, fiscalService, log)
	router := httphandler.NewRouter(handler, tokenParser, httphandler.RouterConfig{
		Environment: cfg.Environment,
		CORSOrigins: cfg.HTTP.CORSOrigins,
		HealthCheck: func(ctx context.Context) error {
			return db.HealthCheck(ctx, database)
		},
	}, log)

	addr := fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("starting permit service")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server stopped")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Dur("timeout", shutdownTimeout).Msg("forced shutdown")
	}
	log.Info().Msg("server exited")
}
