package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	audithandler "supplytrail/internal/audit/handler"
	auditmetrics "supplytrail/internal/audit/metrics"
	auditservice "supplytrail/internal/audit/service"
	auditstore "supplytrail/internal/audit/store"
	"supplytrail/internal/catalog"
	"supplytrail/internal/db"
	"supplytrail/internal/objects"
	"supplytrail/internal/outcomes"
	"supplytrail/internal/platform/config"
	"supplytrail/internal/platform/httpserver"
	"supplytrail/internal/platform/logger"
)

// main wires the stores, services and HTTP surface. Business logic lives in
// the internal packages; this file only assembles them.
func main() {
	cfg := config.FromEnv()
	log := logger.New(cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	database, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error("database connection failed", "error", err)
		os.Exit(1)
	}
	defer database.Close()

	if cfg.Migrate {
		if err := db.RunMigrations(ctx, database); err != nil {
			log.Error("migrations failed", "error", err)
			os.Exit(1)
		}
		log.Info("migrations applied")
	}

	catalogStore := catalog.NewPostgres(database)
	outcomeStore := outcomes.NewPostgres(database)
	auditStore := auditstore.NewPostgres(database)

	resolvers := catalog.Resolvers(catalogStore)
	resolvers[objects.KindProcessOutcomes] = outcomes.Resolver(outcomeStore)
	registry := objects.NewRegistry(resolvers)

	metrics := auditmetrics.New(prometheus.DefaultRegisterer)
	auditSvc := auditservice.New(auditStore, newAuditPostgresTx(database), registry, metrics, log)
	outcomeSvc := outcomes.NewService(outcomeStore, newOutcomesPostgresTx(database), log)

	router := newRouter(cfg, log,
		audithandler.New(auditSvc, log),
		outcomes.NewHandler(outcomeSvc, log),
	)
	srv := httpserver.New(cfg.Addr, router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting supplytrail", "addr", cfg.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
	log.Info("shut down cleanly")
}
