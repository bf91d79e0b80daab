package service

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"voucher-storefront/internal/metrics"
	"voucher-storefront/internal/model"
	"voucher-storefront/pkg/logger"
)

const (
	defaultSyncBatchSize   = 20
	defaultSyncItemTimeout = 10 * time.Second
)

// SyncOptions tunes the reconciliation fan-out
type SyncOptions struct {
	BatchSize   int
	ItemTimeout time.Duration
}

// CatalogSyncService reconciles the local product store with the remote
// price list
type CatalogSyncService struct {
	products    ProductStore
	source      CatalogSource
	classifier  *Classifier
	batchSize   int
	itemTimeout time.Duration
	metrics     metrics.Collector
	notifier    Notifier
	logger      *logger.Logger
}

// NewCatalogSyncService creates a new catalog sync service
func NewCatalogSyncService(products ProductStore, source CatalogSource, classifier *Classifier, opts SyncOptions, m metrics.Collector, log *logger.Logger) *CatalogSyncService {
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultSyncBatchSize
	}
	if opts.ItemTimeout <= 0 {
		opts.ItemTimeout = defaultSyncItemTimeout
	}
	if m == nil {
		m = metrics.NoOpCollector{}
	}
	return &CatalogSyncService{
		products:    products,
		source:      source,
		classifier:  classifier,
		batchSize:   opts.BatchSize,
		itemTimeout: opts.ItemTimeout,
		metrics:     m,
		notifier:    NopNotifier{},
		logger:      log,
	}
}

// SetNotifier sets where run summaries are sent
func (s *CatalogSyncService) SetNotifier(n Notifier) {
	if n != nil {
		s.notifier = n
	}
}

type syncCounters struct {
	added, updated, unchanged, errors, skipped atomic.Int64
}

func (c *syncCounters) record(outcome string) {
	switch outcome {
	case metrics.OutcomeAdded:
		c.added.Add(1)
	case metrics.OutcomeUpdated:
		c.updated.Add(1)
	case metrics.OutcomeUnchanged:
		c.unchanged.Add(1)
	case metrics.OutcomeSkipped:
		c.skipped.Add(1)
	default:
		c.errors.Add(1)
	}
}

func (c *syncCounters) stats(d time.Duration) model.SyncStats {
	return model.SyncStats{
		Added:     int(c.added.Load()),
		Updated:   int(c.updated.Load()),
		Unchanged: int(c.unchanged.Load()),
		Errors:    int(c.errors.Load()),
		Skipped:   int(c.skipped.Load()),
		Duration:  d,
	}
}

// Sync runs one reconciliation. A failed snapshot load or catalog fetch
// aborts before any write. Per-item failures are counted, never returned.
func (s *CatalogSyncService) Sync(ctx context.Context) (model.SyncStats, error) {
	start := time.Now()
	log := s.logger.WithRun(uuid.NewString())
	log.Info("Catalog sync started", "batch_size", s.batchSize)

	existing, err := s.products.ListAll(ctx)
	if err != nil {
		s.metrics.RecordSyncRun(false, time.Since(start))
		log.Error("Failed to load local products", "error", err)
		return model.SyncStats{}, persistenceError("sync", fmt.Errorf("failed to load products: %w", err))
	}
	snapshot := make(map[string]model.Product, len(existing))
	for _, p := range existing {
		snapshot[p.ID] = p
	}

	items, err := s.source.FetchCatalog(ctx)
	if err != nil {
		s.metrics.RecordSyncRun(false, time.Since(start))
		log.Error("Failed to fetch catalog, nothing changed", "error", err)
		return model.SyncStats{}, fmt.Errorf("fetch catalog: %w", err)
	}

	var counters syncCounters
	work := make([]model.CatalogItem, 0, len(items))
	seen := make(map[string]struct{}, len(items))
	for _, item := range items {
		if _, dup := seen[item.BuyerSKUCode]; dup && item.BuyerSKUCode != "" {
			outcome := s.duplicateOutcome(item)
			log.Warn("Duplicate SKU in catalog, keeping first", "sku", item.BuyerSKUCode, "outcome", outcome)
			counters.record(outcome)
			s.metrics.RecordSyncItem(outcome)
			continue
		}
		seen[item.BuyerSKUCode] = struct{}{}
		work = append(work, item)
	}

	// once writes start the run completes every batch; only the
	// per-item timeout bounds it
	runCtx := context.WithoutCancel(ctx)

	for i := 0; i < len(work); i += s.batchSize {
		batch := work[i:min(i+s.batchSize, len(work))]
		var g errgroup.Group
		for _, item := range batch {
			g.Go(func() error {
				outcome := s.syncItem(runCtx, log, item, snapshot)
				counters.record(outcome)
				s.metrics.RecordSyncItem(outcome)
				return nil
			})
		}
		_ = g.Wait()
	}

	stats := counters.stats(time.Since(start))
	s.metrics.RecordSyncRun(true, stats.Duration)
	log.Info("Catalog sync completed",
		"fetched", len(items),
		"added", stats.Added,
		"updated", stats.Updated,
		"unchanged", stats.Unchanged,
		"errors", stats.Errors,
		"skipped", stats.Skipped,
		"duration_ms", stats.Duration.Milliseconds(),
	)

	if stats.Added > 0 || stats.Updated > 0 || stats.Errors > 0 {
		text := fmt.Sprintf("Catalog sync: %d added, %d updated, %d unchanged, %d errors",
			stats.Added, stats.Updated, stats.Unchanged, stats.Errors)
		if err := s.notifier.Notify(runCtx, text); err != nil {
			log.Warn("Failed to send sync summary", "error", err)
		}
	}

	return stats, nil
}

// duplicateOutcome counts a repeated SKU: skipped when the classifier
// would skip it anyway, an error otherwise
func (s *CatalogSyncService) duplicateOutcome(item model.CatalogItem) string {
	if _, err := s.classifier.Classify(item); isSkip(err) {
		return metrics.OutcomeSkipped
	}
	return metrics.OutcomeError
}

// syncItem classifies one item and applies the insert or update it needs
func (s *CatalogSyncService) syncItem(ctx context.Context, log *logger.Logger, item model.CatalogItem, snapshot map[string]model.Product) string {
	ctx, cancel := context.WithTimeout(ctx, s.itemTimeout)
	defer cancel()

	log = log.WithSKU(item.BuyerSKUCode)

	product, err := s.classifier.Classify(item)
	switch {
	case isSkip(err):
		log.Debug("Catalog item skipped", "reason", err.Error())
		return metrics.OutcomeSkipped
	case err != nil:
		log.Warn("Catalog item rejected", "error", err)
		return metrics.OutcomeError
	}

	current, ok := snapshot[product.ID]
	if !ok {
		if err := s.products.Insert(ctx, product); err != nil {
			log.Error("Failed to insert product", "error", err)
			return metrics.OutcomeError
		}
		return metrics.OutcomeAdded
	}

	if !productChanged(current, product) {
		return metrics.OutcomeUnchanged
	}

	if err := s.products.Update(ctx, product); err != nil {
		log.Error("Failed to update product", "error", err)
		return metrics.OutcomeError
	}
	log.Debug("Product updated",
		"old_selling_price", current.SellingPrice,
		"new_selling_price", product.SellingPrice,
	)
	return metrics.OutcomeUpdated
}

// productChanged compares the tracked fields. Operator and amount are
// written on update but do not trigger one.
func productChanged(current, next model.Product) bool {
	return current.Name != next.Name ||
		current.BasePrice != next.BasePrice ||
		current.SellingPrice != next.SellingPrice ||
		current.Description != next.Description ||
		current.Details != next.Details ||
		current.Active != next.Active
}
