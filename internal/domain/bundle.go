package domain

import (
	"time"

	"github.com/google/uuid"
)

// BundleStatus tracks the lifecycle of a materialized bundle.
type BundleStatus string

const (
	BundleStatusDraft     BundleStatus = "draft"
	BundleStatusPublished BundleStatus = "published"
	BundleStatusSold      BundleStatus = "sold"
)

// BundleTemplate is a merchant-authored policy for generating mystery boxes:
// a value range, an item-count range, and tag/type inclusion-exclusion
// filters. Empty include lists mean "everything is allowed".
type BundleTemplate struct {
	ID           uuid.UUID `json:"id" db:"id"`
	TenantID     uuid.UUID `json:"tenant_id" db:"tenant_id"`
	Name         string    `json:"name" db:"name"`
	MinValue     float64   `json:"min_value" db:"min_value"`
	MaxValue     float64   `json:"max_value" db:"max_value"`
	MinItems     int       `json:"min_items" db:"min_items"`
	MaxItems     int       `json:"max_items" db:"max_items"`
	IncludeTags  []string  `json:"include_tags" db:"include_tags"`
	ExcludeTags  []string  `json:"exclude_tags" db:"exclude_tags"`
	IncludeTypes []string  `json:"include_types" db:"include_types"`
	ExcludeTypes []string  `json:"exclude_types" db:"exclude_types"`
	IsActive     bool      `json:"is_active" db:"is_active"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// SelectedItem is one line of a materialized bundle. PriceAtSelection is the
// catalog price at generation time; stock is not reserved, so fulfillment
// must re-check against the live catalog.
type SelectedItem struct {
	ExternalID        int64   `json:"external_id"`
	ExternalVariantID int64   `json:"external_variant_id"`
	Title             string  `json:"title"`
	PriceAtSelection  float64 `json:"price_at_selection"`
}

// BundleInstance is one concrete materialization of a template. Instances
// never mutate after creation except for status transitions.
type BundleInstance struct {
	ID            uuid.UUID      `json:"id" db:"id"`
	TemplateID    uuid.UUID      `json:"template_id" db:"template_id"`
	TenantID      uuid.UUID      `json:"tenant_id" db:"tenant_id"`
	SelectedItems []SelectedItem `json:"selected_items" db:"selected_items"`
	TotalValue    float64        `json:"total_value" db:"total_value"`
	ItemCount     int            `json:"item_count" db:"item_count"`
	Savings       float64        `json:"savings" db:"savings"`
	Status        BundleStatus   `json:"status" db:"status"`
	GeneratedAt   time.Time      `json:"generated_at" db:"generated_at"`
}

// TemplateStatistics aggregates all instances generated from one template.
// All fields are zero when the template has no instances yet.
type TemplateStatistics struct {
	Count      int     `json:"count"`
	AvgValue   float64 `json:"avg_value"`
	AvgItems   float64 `json:"avg_items"`
	TotalValue float64 `json:"total_value"`
	MinValue   float64 `json:"min_value"`
	MaxValue   float64 `json:"max_value"`
	MinItems   int     `json:"min_items"`
	MaxItems   int     `json:"max_items"`
}
