package service

import (
	"context"

	"voucher-storefront/internal/model"
)

// ProductStore persists catalog products. Get returns nil, nil for a
// missing product.
type ProductStore interface {
	ListAll(ctx context.Context) ([]model.Product, error)
	ListActiveByType(ctx context.Context, t model.ProductType) ([]model.Product, error)
	Get(ctx context.Context, id string) (*model.Product, error)
	Count(ctx context.Context) (int, error)
	Insert(ctx context.Context, p model.Product) error
	InsertAll(ctx context.Context, products []model.Product) error
	Update(ctx context.Context, p model.Product) error
}

// TransactionStore persists checkout transactions. Lookups return nil, nil
// for a missing record. UpdateStatus only touches pending records and
// reports whether it did.
type TransactionStore interface {
	Insert(ctx context.Context, t *model.Transaction) error
	Get(ctx context.Context, id string) (*model.Transaction, error)
	GetByReference(ctx context.Context, referenceID string) (*model.Transaction, error)
	UpdateStatus(ctx context.Context, id string, status model.TransactionStatus, details map[string]any) (bool, error)
	ListRecent(ctx context.Context, limit int) ([]model.Transaction, error)
}

// CatalogSource yields the remote price list
type CatalogSource interface {
	FetchCatalog(ctx context.Context) ([]model.CatalogItem, error)
}

// PaymentGateway creates and looks up payment orders
type PaymentGateway interface {
	CreateOrder(ctx context.Context, req PaymentRequest) (*PaymentOrder, error)
	PaymentStatus(ctx context.Context, referenceID string) (*PaymentState, error)
}

// FulfillmentGateway places voucher orders and reports their status
type FulfillmentGateway interface {
	PlaceOrder(ctx context.Context, req FulfillmentRequest) (*FulfillmentOrder, error)
	CheckStatus(ctx context.Context, gatewayTransactionID string) (*FulfillmentStatus, error)
}

// Notifier delivers operator notices. Failures never affect the caller.
type Notifier interface {
	Notify(ctx context.Context, text string) error
}

// NopNotifier drops every notice
type NopNotifier struct{}

func (NopNotifier) Notify(ctx context.Context, text string) error { return nil }
