package domain

import (
	"time"

	"github.com/google/uuid"
)

// Variant represents one purchasable variant of a catalog item, in the order
// reported by the upstream catalog.
type Variant struct {
	ExternalID     int64    `json:"external_id"`
	SKU            string   `json:"sku"`
	Price          float64  `json:"price"`
	CompareAtPrice *float64 `json:"compare_at_price,omitempty"`
	StockQuantity  int      `json:"stock_quantity"`
}

// CatalogItem represents one sellable product as cached from the external
// catalog. Items are written only by the sync engine and the webhook update
// path; the bundle selector reads them as an immutable snapshot.
type CatalogItem struct {
	ID             uuid.UUID `json:"id" db:"id"`
	TenantID       uuid.UUID `json:"tenant_id" db:"tenant_id"`
	ExternalID     int64     `json:"external_id" db:"external_id"`
	Title          string    `json:"title" db:"title"`
	Vendor         string    `json:"vendor" db:"vendor"`
	ProductType    string    `json:"product_type" db:"product_type"`
	Tags           []string  `json:"tags" db:"tags"`
	Price          float64   `json:"price" db:"price"`
	CompareAtPrice *float64  `json:"compare_at_price,omitempty" db:"compare_at_price"`
	StockQuantity  int       `json:"stock_quantity" db:"stock_quantity"`
	IsActive       bool      `json:"is_active" db:"is_active"`
	Variants       []Variant `json:"variants" db:"variants"`
	ImageURL       string    `json:"image_url" db:"image_url"`
	LastSyncedAt   time.Time `json:"last_synced_at" db:"last_synced_at"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time `json:"updated_at" db:"updated_at"`
}

// InStock reports whether the item can be placed into a bundle at all.
// Inactive items and items with no remaining stock are never eligible.
func (i *CatalogItem) InStock() bool {
	return i.IsActive && i.StockQuantity > 0
}

// SyncReport summarizes one catalog sync run. Per-item failures are counted
// in Errors rather than aborting the run; a page fetch that dies mid-run is
// counted separately in FailedPages.
type SyncReport struct {
	TotalFetched int           `json:"total_fetched"`
	Created      int           `json:"created"`
	Updated      int           `json:"updated"`
	Unchanged    int           `json:"unchanged"`
	Errors       int           `json:"errors"`
	Pages        int           `json:"pages"`
	FailedPages  int           `json:"failed_pages"`
	Truncated    bool          `json:"truncated"`
	Duration     time.Duration `json:"duration"`
}
