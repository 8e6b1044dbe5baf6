package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/mamadbah2/cropwatch/internal/auth"
	"github.com/mamadbah2/cropwatch/internal/config"
	"github.com/mamadbah2/cropwatch/internal/repository/sheets"
	"github.com/mamadbah2/cropwatch/internal/repository/storage"
	"github.com/mamadbah2/cropwatch/internal/scheduler"
	"github.com/mamadbah2/cropwatch/internal/server/handlers"
	"github.com/mamadbah2/cropwatch/internal/server/router"
	"github.com/mamadbah2/cropwatch/internal/service/aggregation"
	"github.com/mamadbah2/cropwatch/internal/service/observations"
	"github.com/mamadbah2/cropwatch/internal/service/recommendations"
	"github.com/mamadbah2/cropwatch/internal/service/reporting"
	"github.com/mamadbah2/cropwatch/internal/service/scoring"
	"github.com/mamadbah2/cropwatch/internal/service/zones"
	"github.com/mamadbah2/cropwatch/internal/service/zonestatus"
	"github.com/mamadbah2/cropwatch/pkg/clients/blob"
	whatsappclient "github.com/mamadbah2/cropwatch/pkg/clients/whatsapp"
	"github.com/mamadbah2/cropwatch/pkg/logger"
)

func main() {
	envFile := flag.String("env", "", "optional path to an env file")
	flag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		panic(err)
	}

	baseLogger := logger.Must(logger.New(cfg.Server.LogLevel))
	defer func() { _ = baseLogger.Sync() }()

	zap.ReplaceGlobals(baseLogger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := storage.Open(ctx, cfg.Store, baseLogger.Named("repo"))
	if err != nil {
		baseLogger.Fatal("failed to open store", zap.String("driver", cfg.Store.Driver), zap.Error(err))
	}
	defer func() {
		if err := store.Close(context.Background()); err != nil {
			baseLogger.Error("failed to close store", zap.Error(err))
		}
	}()

	deriver := zonestatus.NewDeriver(cfg.Scoring.StressThreshold)
	zoneSvc := zones.NewService(store, cfg.Store.FarmID, baseLogger.Named("svc.zones"))
	recommendationSvc := recommendations.NewService(store, scoring.NewRandomScorer(), baseLogger.Named("svc.recommendations"))
	aggregationSvc := aggregation.NewService(store, deriver, cfg.Scoring.SummaryConcurrency, baseLogger.Named("svc.aggregation"))

	var blobs observations.BlobPutter
	if cfg.Blob.Enabled() {
		blobs = blob.NewClient(cfg.Blob)
	} else {
		baseLogger.Warn("blob store not configured, scan uploads disabled")
	}
	observationSvc := observations.NewService(store, blobs, baseLogger.Named("svc.observations"))

	reportOpts := []reporting.Option{}
	if loc, err := time.LoadLocation(cfg.Reporting.Timezone); err == nil {
		reportOpts = append(reportOpts, reporting.WithLocation(loc))
	}
	if cfg.Sheets.Enabled() {
		sheetsRepo, err := sheets.NewGoogleSheetRepository(ctx, cfg.Sheets, baseLogger.Named("repo.sheets"))
		if err != nil {
			baseLogger.Fatal("failed to init sheets repository", zap.Error(err))
		}
		reportOpts = append(reportOpts, reporting.WithSheet(sheetsRepo))
	}
	if cfg.WhatsApp.Enabled() {
		reportOpts = append(reportOpts, reporting.WithNotifier(whatsappclient.NewClient(cfg.WhatsApp), cfg.WhatsApp.RecipientID))
	}
	reportingSvc := reporting.NewService(aggregationSvc, store, baseLogger.Named("svc.reporting"), reportOpts...)

	sched, err := scheduler.NewScheduler(cfg.Reporting, reportingSvc, baseLogger.Named("scheduler"))
	if err != nil {
		baseLogger.Fatal("failed to init scheduler", zap.Error(err))
	}
	if err := sched.Start(); err != nil {
		baseLogger.Fatal("failed to start scheduler", zap.Error(err))
	}
	defer sched.Stop()

	sessions := auth.NewSessionManager(cfg.Auth.Passcode, cfg.Auth.SessionSecret, cfg.Auth.DemoID)
	engine := router.New(router.Handlers{
		Auth:            handlers.NewAuthHandler(sessions, cfg.Server.Production(), baseLogger.Named("handlers.auth")),
		Zones:           handlers.NewZoneHandler(zoneSvc, baseLogger.Named("handlers.zones")),
		Recommendations: handlers.NewRecommendationHandler(recommendationSvc, baseLogger.Named("handlers.recommendations")),
		Dashboard:       handlers.NewDashboardHandler(aggregationSvc, baseLogger.Named("handlers.dashboard")),
		Rover:           handlers.NewRoverHandler(observationSvc, baseLogger.Named("handlers.rover")),
	}, sessions, baseLogger.Named("router"))

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.Server.CORSAllowedOrigins,
		AllowCredentials: true,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Authorization", "X-Filename"},
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      corsHandler.Handler(engine),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		baseLogger.Info("server starting",
			zap.String("port", cfg.Server.Port),
			zap.String("store", cfg.Store.Driver),
			zap.Int("stress_threshold", deriver.Threshold()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			baseLogger.Fatal("http server crashed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	baseLogger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		baseLogger.Error("graceful shutdown failed", zap.Error(err))
	}
}
