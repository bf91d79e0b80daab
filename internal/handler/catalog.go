package handler

import (
	"context"
	"net/http"

	"voucher-storefront/internal/model"
	"voucher-storefront/internal/service"
	"voucher-storefront/pkg/logger"
)

// CatalogSyncer runs a guarded catalog sync
type CatalogSyncer interface {
	Sync(ctx context.Context) (model.SyncStats, error)
}

// ProductLister lists sellable products
type ProductLister interface {
	ListActiveByType(ctx context.Context, t model.ProductType) ([]model.Product, error)
}

// CatalogHandler handles catalog sync and product listing
type CatalogHandler struct {
	syncer   CatalogSyncer
	products ProductLister
	logger   *logger.Logger
}

// NewCatalogHandler creates a new catalog handler
func NewCatalogHandler(syncer CatalogSyncer, products ProductLister, log *logger.Logger) *CatalogHandler {
	return &CatalogHandler{
		syncer:   syncer,
		products: products,
		logger:   log,
	}
}

// Sync handles POST /api/v1/catalog/sync
func (h *CatalogHandler) Sync(w http.ResponseWriter, r *http.Request) {
	stats, err := h.syncer.Sync(r.Context())
	if err != nil {
		code, status := mapError(err)
		if service.KindOf(err) == service.KindConflict {
			sendError(w, "ERR_SYNC_IN_PROGRESS", "Catalog sync already running", status)
			return
		}
		h.logger.Error("Catalog sync request failed", "error", err)
		sendError(w, code, "Catalog sync failed: "+err.Error(), status)
		return
	}

	sendSuccess(w, http.StatusOK, "Catalog synchronized", stats)
}

// ListProducts handles GET /api/v1/products?type=
func (h *CatalogHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	productType := model.ProductType(r.URL.Query().Get("type"))
	if !productType.Valid() {
		sendError(w, "ERR_INVALID_PARAMETER", "type must be one of mobile-credit, electricity, data-package", http.StatusBadRequest)
		return
	}

	products, err := h.products.ListActiveByType(r.Context(), productType)
	if err != nil {
		h.logger.Error("Failed to list products", "error", err, "type", productType)
		sendError(w, "ERR_STORAGE", "Failed to list products", http.StatusInternalServerError)
		return
	}

	sendSuccess(w, http.StatusOK, "Products retrieved", products)
}
