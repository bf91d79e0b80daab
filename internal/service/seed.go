package service

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"voucher-storefront/internal/model"
)

// SeedIfEmpty bulk-loads products from a price-list snapshot file when the
// product store holds nothing yet. It returns how many products were
// inserted; a non-empty store is left alone and yields 0.
func (s *CatalogSyncService) SeedIfEmpty(ctx context.Context, snapshotPath string) (int, error) {
	count, err := s.products.Count(ctx)
	if err != nil {
		return 0, persistenceError("seed", fmt.Errorf("failed to count products: %w", err))
	}
	if count > 0 {
		s.logger.Debug("Product store not empty, seeding skipped", "products", count)
		return 0, nil
	}

	items, err := readSnapshot(snapshotPath)
	if err != nil {
		return 0, validationError("seed", err)
	}

	products := make([]model.Product, 0, len(items))
	seen := make(map[string]struct{}, len(items))
	rejected := 0
	for _, item := range items {
		p, err := s.classifier.Classify(item)
		if err != nil {
			if !isSkip(err) {
				rejected++
				s.logger.WithSKU(item.BuyerSKUCode).Warn("Snapshot item rejected", "error", err)
			}
			continue
		}
		if _, dup := seen[p.ID]; dup {
			continue
		}
		seen[p.ID] = struct{}{}
		products = append(products, p)
	}

	if len(products) == 0 {
		s.logger.Warn("Snapshot contained no usable products", "path", snapshotPath, "items", len(items))
		return 0, nil
	}

	if err := s.products.InsertAll(ctx, products); err != nil {
		return 0, persistenceError("seed", fmt.Errorf("failed to insert snapshot: %w", err))
	}

	s.logger.Info("Product store seeded from snapshot",
		"path", snapshotPath,
		"inserted", len(products),
		"rejected", rejected,
	)
	return len(products), nil
}

// readSnapshot accepts either the price-list envelope or a bare item array
func readSnapshot(path string) ([]model.CatalogItem, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}

	data := json.RawMessage(raw)
	if !isJSONArray(data) {
		var envelope model.DigiflazzEnvelope
		if err := json.Unmarshal(raw, &envelope); err != nil {
			return nil, fmt.Errorf("failed to decode snapshot: %w", err)
		}
		data = envelope.Data
	}
	if !isJSONArray(data) {
		return nil, fmt.Errorf("snapshot %s has no item array", path)
	}

	var items []model.CatalogItem
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot items: %w", err)
	}
	return items, nil
}
