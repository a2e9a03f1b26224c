package models

import (
	"math"
	"time"

	"gawangliliw/sellerhub/internal/utils"
)

// DiscountType is the shape of a promotion's discount.
type DiscountType string

const (
	DiscountPercentage DiscountType = "percentage"
	DiscountBundle     DiscountType = "bundle"
)

// PromoStatus is derived from the validity window, never set by clients.
type PromoStatus string

const (
	PromoUpcoming PromoStatus = "upcoming"
	PromoActive   PromoStatus = "active"
	PromoInactive PromoStatus = "inactive"
)

// Discount describes either a percentage off or a bundle price.
// Percentage uses Value; bundle uses BundleQuantity and BundlePrice.
type Discount struct {
	Type           DiscountType `bson:"type" json:"type"`
	Value          float64      `bson:"value,omitempty" json:"value,omitempty"`
	BundleQuantity int          `bson:"bundle_quantity,omitempty" json:"bundle_quantity,omitempty"`
	BundlePrice    float64      `bson:"bundle_price,omitempty" json:"bundle_price,omitempty"`
}

// Promotion is a time-bounded discount rule attached to a product.
type Promotion struct {
	Base        `bson:",inline"`
	SellerID    utils.SixID `bson:"seller_id" json:"seller_id"`
	ProductID   string      `bson:"product_id" json:"product_id"`
	ProductName string      `bson:"product_name" json:"product_name"`
	Title       string      `bson:"title" json:"title"`
	Discount    Discount    `bson:"discount" json:"discount"`
	StartsAt    time.Time   `bson:"starts_at" json:"starts_at"`
	EndsAt      time.Time   `bson:"ends_at" json:"ends_at"`
	Disabled    bool        `bson:"disabled" json:"disabled"`
	Status      PromoStatus `bson:"status" json:"status"`
	CreatedAt   time.Time   `bson:"created_at" json:"created_at"`
	UpdatedAt   time.Time   `bson:"updated_at" json:"updated_at"`
}

// StatusAt computes the promotion status at the given instant.
// The window is inclusive on both ends.
func (p *Promotion) StatusAt(now time.Time) PromoStatus {
	switch {
	case now.Before(p.StartsAt):
		return PromoUpcoming
	case p.Disabled || now.After(p.EndsAt):
		return PromoInactive
	default:
		return PromoActive
	}
}

// EffectivePrice returns the price for quantity units of a product listed at
// unitPrice. Bundle pricing applies per complete bundle; leftovers pay full price.
func (d Discount) EffectivePrice(unitPrice float64, quantity int) float64 {
	if quantity <= 0 {
		return 0
	}
	var total float64
	switch d.Type {
	case DiscountPercentage:
		total = unitPrice * float64(quantity) * (1 - d.Value/100)
	case DiscountBundle:
		if d.BundleQuantity <= 0 {
			total = unitPrice * float64(quantity)
			break
		}
		bundles := quantity / d.BundleQuantity
		rest := quantity % d.BundleQuantity
		total = float64(bundles)*d.BundlePrice + float64(rest)*unitPrice
	default:
		total = unitPrice * float64(quantity)
	}
	return math.Round(total*100) / 100
}
