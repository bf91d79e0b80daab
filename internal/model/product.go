package model

import (
	"encoding/json"
	"time"
)

// ProductType is one of the three sellable product categories
type ProductType string

const (
	ProductMobileCredit ProductType = "mobile-credit"
	ProductElectricity  ProductType = "electricity"
	ProductDataPackage  ProductType = "data-package"
)

// Valid reports whether t is a known product type
func (t ProductType) Valid() bool {
	switch t {
	case ProductMobileCredit, ProductElectricity, ProductDataPackage:
		return true
	}
	return false
}

// Product is a locally persisted catalog entry keyed by the buyer SKU code
type Product struct {
	ID           string      `json:"id"`
	Type         ProductType `json:"type"`
	Name         string      `json:"name"`
	Operator     *string     `json:"operator,omitempty"`
	Description  string      `json:"description"`
	Amount       *int64      `json:"amount,omitempty"`
	Details      string      `json:"details"`
	BasePrice    int64       `json:"base_price"`
	SellingPrice int64       `json:"selling_price"`
	Active       bool        `json:"active"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

// CatalogItem is one raw line of the remote Digiflazz price list
type CatalogItem struct {
	BuyerSKUCode       string      `json:"buyer_sku_code"`
	Category           string      `json:"category"`
	Brand              string      `json:"brand"`
	ProductName        string      `json:"product_name"`
	Price              PriceString `json:"price"`
	Desc               string      `json:"desc,omitempty"`
	BuyerProductStatus bool        `json:"buyer_product_status"`
}

// PriceString keeps the remote price as text. The feed sends either a
// JSON string or a JSON number; both are stored verbatim.
type PriceString string

// UnmarshalJSON accepts "10000", 10000 and null
func (p *PriceString) UnmarshalJSON(data []byte) error {
	s := string(data)
	switch {
	case s == "null":
		*p = ""
	case len(s) > 0 && s[0] == '"':
		var text string
		if err := json.Unmarshal(data, &text); err != nil {
			return err
		}
		*p = PriceString(text)
	default:
		*p = PriceString(s)
	}
	return nil
}

// SyncStats is the audit record of one reconciliation run
type SyncStats struct {
	Added     int           `json:"added"`
	Updated   int           `json:"updated"`
	Unchanged int           `json:"unchanged"`
	Errors    int           `json:"errors"`
	Skipped   int           `json:"skipped"`
	Duration  time.Duration `json:"duration_ns"`
}

// Processed is the number of items that reached classification outcome
// (added, updated, unchanged or error)
func (s SyncStats) Processed() int {
	return s.Added + s.Updated + s.Unchanged + s.Errors
}
