// Package app wires configuration, storage, gateways and the HTTP surface
// into a runnable storefront.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"voucher-storefront/internal/config"
	"voucher-storefront/internal/handler"
	"voucher-storefront/internal/metrics"
	"voucher-storefront/internal/middleware"
	"voucher-storefront/internal/repository"
	"voucher-storefront/internal/scheduler"
	"voucher-storefront/internal/service"
	"voucher-storefront/pkg/logger"
)

const (
	metricsNamespace = "storefront"

	// scheduledSyncTimeout bounds one cron-triggered reconciliation
	scheduledSyncTimeout = 10 * time.Minute
)

// Application owns every long-lived component of the storefront
type Application struct {
	cfg    *config.Config
	logger *logger.Logger

	db       *sql.DB
	registry *prometheus.Registry

	products     *repository.ProductRepository
	transactions *repository.TransactionRepository

	catalog   *service.CatalogSyncService
	checkout  *service.TransactionService
	whatsapp  *service.WhatsAppService
	guard     *scheduler.Guard
	scheduler *scheduler.Scheduler

	server *http.Server
}

// New builds the application graph. Nothing talks to the network until Start.
func New(cfg *config.Config, log *logger.Logger) (*Application, error) {
	a := &Application{
		cfg:      cfg,
		logger:   log,
		registry: prometheus.NewRegistry(),
	}

	collector := metrics.NewPrometheusCollector(metricsNamespace)
	if err := collector.Register(a.registry); err != nil {
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}
	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	if err := ensureSQLiteDir(cfg.Database.Driver, cfg.Database.DSN); err != nil {
		return nil, err
	}
	db, err := repository.Open(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return nil, err
	}
	a.db = db
	a.products = repository.NewProductRepository(db, cfg.Database.Driver)
	a.transactions = repository.NewTransactionRepository(db, cfg.Database.Driver)

	breaker := service.BreakerSettings{
		MaxRequests:         cfg.Breaker.MaxRequests,
		Interval:            cfg.Breaker.Interval,
		Timeout:             cfg.Breaker.Timeout,
		ConsecutiveFailures: cfg.Breaker.ConsecutiveFailures,
	}
	digiflazz := service.NewDigiflazzService(&cfg.Digiflazz, breaker, collector, log)
	tokopay := service.NewTokoPayService(&cfg.TokoPay, breaker, collector, log)

	classifier := service.NewClassifier(service.PricingPolicy{
		MobileCreditMargin: cfg.Pricing.MobileCreditMargin,
		ElectricityMargin:  cfg.Pricing.ElectricityMargin,
		DataPackageMargin:  cfg.Pricing.DataPackageMargin,
		FloorPercent:       cfg.Pricing.FloorPercent,
	})
	a.catalog = service.NewCatalogSyncService(a.products, digiflazz, classifier, service.SyncOptions{
		BatchSize:   cfg.Sync.BatchSize,
		ItemTimeout: cfg.Sync.ItemTimeout,
	}, collector, log)

	a.checkout = service.NewTransactionService(a.products, a.transactions, tokopay, digiflazz, service.CheckoutOptions{
		DefaultMethod: cfg.Checkout.DefaultMethod,
		Expiry:        cfg.Checkout.QRValidity,
	}, collector, log)

	if cfg.WhatsApp.Enabled {
		wa, err := service.NewWhatsAppService(&cfg.WhatsApp, log)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to initialize WhatsApp notifier: %w", err)
		}
		a.whatsapp = wa
		a.catalog.SetNotifier(wa)
		a.checkout.SetNotifier(wa)
	}

	a.guard = scheduler.NewGuard(a.catalog)
	if cfg.Sync.Schedule != "" {
		s, err := scheduler.New(cfg.Sync.Schedule, a.guard, scheduledSyncTimeout, log)
		if err != nil {
			db.Close()
			return nil, err
		}
		a.scheduler = s
	}

	a.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:      a.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return a, nil
}

// Router builds the HTTP routes
func (a *Application) Router() http.Handler {
	var notifier handler.NotifierStatus
	if a.whatsapp != nil {
		notifier = a.whatsapp
	}

	health := handler.NewHealthHandler(a.db, map[string]handler.Counter{
		"products":     a.products,
		"transactions": a.transactions,
	}, notifier, a.guard, a.logger)
	catalog := handler.NewCatalogHandler(a.guard, a.products, a.logger)
	transactions := handler.NewTransactionHandler(a.checkout, a.logger)
	auth := middleware.NewAuthMiddleware(a.cfg.Security.APIKey, a.logger)

	r := mux.NewRouter()

	// Public routes
	r.HandleFunc("/health", health.CheckHealth).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	// Protected routes
	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(auth.Wrap)
	api.HandleFunc("/catalog/sync", catalog.Sync).Methods(http.MethodPost)
	api.HandleFunc("/products", catalog.ListProducts).Methods(http.MethodGet)
	api.HandleFunc("/checkout", transactions.Checkout).Methods(http.MethodPost)
	api.HandleFunc("/transactions", transactions.Recent).Methods(http.MethodGet)
	api.HandleFunc("/transactions/reference/{ref}", transactions.GetByReference).Methods(http.MethodGet)
	api.HandleFunc("/transactions/{id}", transactions.Get).Methods(http.MethodGet)
	api.HandleFunc("/transactions/{id}/refresh", transactions.Refresh).Methods(http.MethodPost)
	api.HandleFunc("/transactions/{id}/payment", transactions.Payment).Methods(http.MethodGet)
	api.HandleFunc("/transactions/{id}/qr.png", transactions.QRCode).Methods(http.MethodGet)

	return r
}

// Start seeds an empty catalog, connects the notifier, starts the sync
// schedule and begins serving HTTP. Serve errors are sent on the returned
// channel.
func (a *Application) Start(ctx context.Context) (<-chan error, error) {
	if path := a.cfg.Sync.BootstrapPath; path != "" {
		n, err := a.catalog.SeedIfEmpty(ctx, path)
		if err != nil {
			a.logger.Error("Catalog bootstrap failed", "error", err, "path", path)
		} else if n > 0 {
			a.logger.Info("Catalog bootstrapped from snapshot", "products", n, "path", path)
		}
	}

	if a.whatsapp != nil {
		if err := a.whatsapp.Connect(ctx); err != nil {
			return nil, fmt.Errorf("failed to connect to WhatsApp: %w", err)
		}
	}

	if a.scheduler != nil {
		a.scheduler.Start()
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server starting", "address", a.server.Addr)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	return errCh, nil
}

// Shutdown stops HTTP, the scheduler and the notifier, then closes the database
func (a *Application) Shutdown(ctx context.Context) error {
	err := a.server.Shutdown(ctx)

	if a.scheduler != nil {
		a.scheduler.Stop(ctx)
	}
	if a.whatsapp != nil {
		a.whatsapp.Disconnect()
	}
	if cerr := a.db.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}

// ensureSQLiteDir creates the parent directory of a file-backed sqlite DSN
func ensureSQLiteDir(driver, dsn string) error {
	if driver != repository.DriverSQLite {
		return nil
	}
	path := strings.TrimPrefix(dsn, "file:")
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	if path == "" || path == ":memory:" {
		return nil
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create database directory: %w", err)
	}
	return nil
}
