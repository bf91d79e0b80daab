package service

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"voucher-storefront/internal/model"
)

// Remote category tags
const (
	CategoryPulsa = "Pulsa"
	CategoryPLN   = "PLN"
	CategoryData  = "Data"
)

// PricingPolicy holds the per-category margin subtracted from the selling
// price and the lower bound of the base price as a percentage of it.
type PricingPolicy struct {
	MobileCreditMargin int64
	ElectricityMargin  int64
	DataPackageMargin  int64
	FloorPercent       int64
}

// DefaultPricingPolicy returns the stock margins (rupiah) and a 95% floor
func DefaultPricingPolicy() PricingPolicy {
	return PricingPolicy{
		MobileCreditMargin: 1000,
		ElectricityMargin:  2000,
		DataPackageMargin:  1500,
		FloorPercent:       95,
	}
}

// Margin returns the configured margin for a product type
func (p PricingPolicy) Margin(t model.ProductType) int64 {
	switch t {
	case model.ProductMobileCredit:
		return p.MobileCreditMargin
	case model.ProductElectricity:
		return p.ElectricityMargin
	default:
		return p.DataPackageMargin
	}
}

// BasePrice derives the cost price: selling minus margin, never below
// the floor and never above the selling price.
func (p PricingPolicy) BasePrice(t model.ProductType, selling int64) int64 {
	floor := decimal.NewFromInt(selling).
		Mul(decimal.NewFromInt(p.FloorPercent)).
		Div(decimal.NewFromInt(100)).
		Ceil().
		IntPart()

	base := selling - p.Margin(t)
	if base < floor {
		base = floor
	}
	if base > selling {
		base = selling
	}
	return base
}

var nonDigits = regexp.MustCompile(`\D`)

// Classifier maps raw catalog lines onto local products
type Classifier struct {
	pricing PricingPolicy
}

// NewClassifier creates a classifier using the given pricing policy
func NewClassifier(pricing PricingPolicy) *Classifier {
	return &Classifier{pricing: pricing}
}

// TypeOf maps a remote category tag onto a product type
func TypeOf(category string) (model.ProductType, bool) {
	switch category {
	case CategoryPulsa:
		return model.ProductMobileCredit, true
	case CategoryPLN:
		return model.ProductElectricity, true
	case CategoryData:
		return model.ProductDataPackage, true
	}
	return "", false
}

// Classify converts one catalog item. Inactive items return
// ErrInactiveItem, unknown categories ErrUnmappedCategory, and bad prices
// a validation error.
func (c *Classifier) Classify(item model.CatalogItem) (model.Product, error) {
	if !item.BuyerProductStatus {
		return model.Product{}, ErrInactiveItem
	}

	productType, ok := TypeOf(item.Category)
	if !ok {
		return model.Product{}, fmt.Errorf("%w: %q", ErrUnmappedCategory, item.Category)
	}

	if strings.TrimSpace(item.BuyerSKUCode) == "" {
		return model.Product{}, validationError("classify", errors.New("missing buyer_sku_code"))
	}

	selling, err := ParsePrice(string(item.Price))
	if err != nil {
		return model.Product{}, validationError("classify "+item.BuyerSKUCode, err)
	}

	product := model.Product{
		ID:           item.BuyerSKUCode,
		Type:         productType,
		Name:         item.ProductName,
		Description:  describe(item),
		Details:      item.Desc,
		BasePrice:    c.pricing.BasePrice(productType, selling),
		SellingPrice: selling,
		Active:       true,
	}
	if product.Details == "" {
		product.Details = item.ProductName
	}
	if item.Brand != "" {
		brand := item.Brand
		product.Operator = &brand
	}

	switch productType {
	case model.ProductMobileCredit:
		amount := firstNumber(item.ProductName, item.BuyerSKUCode)
		if amount == 0 {
			amount = selling
		}
		product.Amount = &amount
	case model.ProductElectricity:
		amount := firstNumber(item.ProductName)
		if amount == 0 {
			amount = selling
		}
		product.Amount = &amount
	}

	return product, nil
}

// ParsePrice parses a numeric rupiah price. Empty, non-numeric,
// fractional and non-positive values are rejected.
func ParsePrice(raw string) (int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, errors.New("price is missing")
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return 0, fmt.Errorf("price %q is not numeric", raw)
	}
	if !d.IsInteger() {
		return 0, fmt.Errorf("price %q is fractional", raw)
	}
	if !d.IsPositive() {
		return 0, fmt.Errorf("price %q must be positive", raw)
	}
	return d.IntPart(), nil
}

func describe(item model.CatalogItem) string {
	if item.Category == CategoryPLN {
		return "PLN Prepaid Token"
	}
	return strings.TrimSpace(item.Brand + " " + item.Category)
}

// firstNumber returns the digits of the first candidate that has any
func firstNumber(candidates ...string) int64 {
	for _, s := range candidates {
		digits := nonDigits.ReplaceAllString(s, "")
		if digits == "" {
			continue
		}
		n, err := strconv.ParseInt(digits, 10, 64)
		if err == nil && n > 0 {
			return n
		}
	}
	return 0
}
