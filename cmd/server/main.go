/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the warehouse system server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (.env, environment, flags)
  2. Initialize the zerolog logger
  3. Open the SQLite store (movements, activity, reconciliation runs)
  4. Build the catalog, rebuild the ledger from stored movements
  5. Restore the newest activity entries
  6. Create the waybill, invoice and expense components
  7. Seed the catalog, and opening stock when SEED=true
  8. Start the reconciliation scheduler
  9. Configure the HTTP router and serve

COMMAND-LINE FLAGS:
  -port    HTTP server port (default: PORT or 8080)
  -db      SQLite database path (default: DB_PATH or warehouse.db)
           Use ":memory:" for in-memory database

ENVIRONMENT:
  PORT, DB_PATH, STOCK_POLICY (permissive|strict), ACTIVITY_CAP,
  LOG_LEVEL, LOG_PRETTY, CORS_ALLOWED_ORIGINS, RECONCILE_INTERVAL, SEED.
  A .env file in the working directory is loaded first.

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Stop the scheduler
  4. Close database connection

SEE ALSO:
  - config/config.go: Settings and defaults
  - api/server.go: Router configuration
  - store/sqlite/sqlite.go: Database implementation
*/
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

	"github.com/rs/zerolog"

	"github.com/mellovesfromage/warehouse-system/api"
	"github.com/mellovesfromage/warehouse-system/audit"
	"github.com/mellovesfromage/warehouse-system/config"
	"github.com/mellovesfromage/warehouse-system/expense"
	"github.com/mellovesfromage/warehouse-system/identity"
	"github.com/mellovesfromage/warehouse-system/invoice"
	"github.com/mellovesfromage/warehouse-system/logging"
	"github.com/mellovesfromage/warehouse-system/stock"
	"github.com/mellovesfromage/warehouse-system/store/sqlite"
	"github.com/mellovesfromage/warehouse-system/waybill"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(2)
	}
	logger := logging.Init(cfg.LogLevel, cfg.LogPretty)

	if err := run(cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("server failed")
	}
}

func run(cfg config.Config, logger zerolog.Logger) error {
	ctx := context.Background()

	// Initialize store
	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer store.Close()

	// Core components
	catalog := stock.NewCatalog()
	seeded, err := api.SeedCatalog(catalog)
	if err != nil {
		return err
	}
	logger.Info().Int("warehouses", seeded.Warehouses).Int("products", seeded.Products).Msg("catalog ready")

	activity := audit.NewLog(audit.Options{Capacity: cfg.ActivityCap, Sink: store, Logger: logger})
	recent, err := store.RecentActivity(ctx, cfg.ActivityCap)
	if err != nil {
		return fmt.Errorf("failed to restore activity: %w", err)
	}
	activity.Restore(recent)

	ledger, err := stock.NewLedger(ctx, catalog, store, stock.Options{
		Policy:   cfg.StockPolicy,
		Activity: activity,
		Logger:   logger,
	})
	if err != nil {
		return err
	}
	if cfg.Seed {
		n, err := api.SeedStock(ctx, ledger)
		if err != nil {
			return err
		}
		if n > 0 {
			logger.Info().Int("movements", n).Msg("opening stock posted")
		}
	}

	scheduler := api.NewReconcileScheduler(ledger, store, cfg.ReconcileInterval, logger)
	handler := api.NewHandler(api.Services{
		DB:         store,
		Catalog:    catalog,
		Ledger:     ledger,
		Waybills:   waybill.NewRegistry(ledger, activity, waybill.Options{Logger: logger}),
		Invoices:   invoice.NewRegistry(ledger, activity, invoice.Options{Logger: logger}),
		Expenses:   expense.NewWorkflow(activity, expense.Options{Logger: logger}),
		Activity:   activity,
		Directory:  identity.NewDirectory(identity.DefaultUsers()...),
		Reconciler: scheduler,
	}, logger)

	// Create router
	router := api.NewRouter(handler, api.RouterOptions{
		AllowedOrigins: cfg.CORSAllowedOrigins,
		Logger:         logger,
	})

	// Create server
	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	scheduler.Start()
	defer scheduler.Stop()

	// Start server in goroutine
	serverErr := make(chan error, 1)
	go func() {
		logger.Info().
			Str("addr", server.Addr).
			Str("db", cfg.DBPath).
			Str("policy", string(ledger.Policy())).
			Msg("server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-serverErr:
		return err
	case sig := <-quit:
		logger.Info().Str("signal", sig.String()).Msg("shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info().Msg("server stopped")
	return nil
}
