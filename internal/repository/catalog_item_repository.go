package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"mysterybox/internal/domain"

	"github.com/google/uuid"
)

var (
	ErrCatalogItemNotFound = errors.New("catalog item not found")
)

// UpsertOutcome reports what an Upsert actually did, so the sync engine can
// keep exact created/updated counts.
type UpsertOutcome int

const (
	UpsertCreated UpsertOutcome = iota
	UpsertUpdated
	UpsertUnchanged
)

// CatalogItemRepository defines data access for the catalog cache. Rows are
// keyed by (tenant_id, external_id); bulk sync and the webhook update path
// both write through Upsert.
type CatalogItemRepository interface {
	Upsert(ctx context.Context, item *domain.CatalogItem) (UpsertOutcome, error)
	FindByExternalID(ctx context.Context, tenantID uuid.UUID, externalID int64) (*domain.CatalogItem, error)
	ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]domain.CatalogItem, error)
	DeleteByExternalID(ctx context.Context, tenantID uuid.UUID, externalID int64) error
	DeleteByTenant(ctx context.Context, tenantID uuid.UUID) error
}

type catalogItemRepository struct {
	db *sql.DB
}

// NewCatalogItemRepository creates a new instance of CatalogItemRepository
func NewCatalogItemRepository(db *sql.DB) CatalogItemRepository {
	return &catalogItemRepository{db: db}
}

const catalogItemColumns = `id, tenant_id, external_id, title, vendor, product_type, tags,
		price, compare_at_price, stock_quantity, is_active, variants, image_url,
		last_synced_at, created_at, updated_at`

// Upsert inserts or updates an item keyed by (tenant_id, external_id). A row
// whose item-level fields are unchanged only gets its last_synced_at
// refreshed and is reported as UpsertUnchanged, which keeps re-running sync
// idempotent in the report counts.
func (r *catalogItemRepository) Upsert(ctx context.Context, item *domain.CatalogItem) (UpsertOutcome, error) {
	existing, err := r.FindByExternalID(ctx, item.TenantID, item.ExternalID)
	if err != nil && err != ErrCatalogItemNotFound {
		return UpsertUnchanged, fmt.Errorf("failed to load existing catalog item: %w", err)
	}

	tags, variants, err := marshalItemJSON(item)
	if err != nil {
		return UpsertUnchanged, err
	}

	now := time.Now()

	if existing == nil {
		query := `
			INSERT INTO catalog_items (` + catalogItemColumns + `)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		`
		_, err = r.db.ExecContext(ctx, query,
			item.ID, item.TenantID, item.ExternalID, item.Title, item.Vendor,
			item.ProductType, tags, item.Price, item.CompareAtPrice,
			item.StockQuantity, item.IsActive, variants, item.ImageURL,
			item.LastSyncedAt, now, now,
		)
		if err != nil {
			return UpsertUnchanged, fmt.Errorf("failed to insert catalog item: %w", err)
		}
		return UpsertCreated, nil
	}

	if itemFieldsEqual(existing, item) {
		query := `UPDATE catalog_items SET last_synced_at = $3 WHERE tenant_id = $1 AND external_id = $2`
		if _, err := r.db.ExecContext(ctx, query, item.TenantID, item.ExternalID, item.LastSyncedAt); err != nil {
			return UpsertUnchanged, fmt.Errorf("failed to touch catalog item: %w", err)
		}
		return UpsertUnchanged, nil
	}

	query := `
		UPDATE catalog_items
		SET title = $3, vendor = $4, product_type = $5, tags = $6, price = $7,
		    compare_at_price = $8, stock_quantity = $9, is_active = $10,
		    variants = $11, image_url = $12, last_synced_at = $13, updated_at = $14
		WHERE tenant_id = $1 AND external_id = $2
	`
	_, err = r.db.ExecContext(ctx, query,
		item.TenantID, item.ExternalID, item.Title, item.Vendor, item.ProductType,
		tags, item.Price, item.CompareAtPrice, item.StockQuantity, item.IsActive,
		variants, item.ImageURL, item.LastSyncedAt, now,
	)
	if err != nil {
		return UpsertUnchanged, fmt.Errorf("failed to update catalog item: %w", err)
	}
	return UpsertUpdated, nil
}

// FindByExternalID retrieves one item by its upsert key.
func (r *catalogItemRepository) FindByExternalID(ctx context.Context, tenantID uuid.UUID, externalID int64) (*domain.CatalogItem, error) {
	query := `
		SELECT ` + catalogItemColumns + `
		FROM catalog_items
		WHERE tenant_id = $1 AND external_id = $2
	`

	item, err := scanCatalogItem(r.db.QueryRowContext(ctx, query, tenantID, externalID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrCatalogItemNotFound
		}
		return nil, fmt.Errorf("failed to find catalog item: %w", err)
	}
	return item, nil
}

// ListByTenant returns the tenant's full catalog in a single read, which the
// selector uses as its point-in-time snapshot.
func (r *catalogItemRepository) ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]domain.CatalogItem, error) {
	query := `
		SELECT ` + catalogItemColumns + `
		FROM catalog_items
		WHERE tenant_id = $1
		ORDER BY external_id
	`

	rows, err := r.db.QueryContext(ctx, query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list catalog items: %w", err)
	}
	defer rows.Close()

	items := []domain.CatalogItem{}
	for rows.Next() {
		item, err := scanCatalogItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan catalog item: %w", err)
		}
		items = append(items, *item)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating catalog items: %w", err)
	}

	return items, nil
}

// DeleteByExternalID removes one item, used when the upstream catalog
// reports a deletion.
func (r *catalogItemRepository) DeleteByExternalID(ctx context.Context, tenantID uuid.UUID, externalID int64) error {
	query := `DELETE FROM catalog_items WHERE tenant_id = $1 AND external_id = $2`

	result, err := r.db.ExecContext(ctx, query, tenantID, externalID)
	if err != nil {
		return fmt.Errorf("failed to delete catalog item: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrCatalogItemNotFound
	}

	return nil
}

// DeleteByTenant drops the tenant's whole cached catalog, used on disconnect.
func (r *catalogItemRepository) DeleteByTenant(ctx context.Context, tenantID uuid.UUID) error {
	query := `DELETE FROM catalog_items WHERE tenant_id = $1`

	if _, err := r.db.ExecContext(ctx, query, tenantID); err != nil {
		return fmt.Errorf("failed to delete tenant catalog: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanCatalogItem decodes one row, parsing the JSONB tags and variants once
// at the storage boundary.
func scanCatalogItem(row rowScanner) (*domain.CatalogItem, error) {
	item := &domain.CatalogItem{}
	var tags, variants []byte

	err := row.Scan(
		&item.ID, &item.TenantID, &item.ExternalID, &item.Title, &item.Vendor,
		&item.ProductType, &tags, &item.Price, &item.CompareAtPrice,
		&item.StockQuantity, &item.IsActive, &variants, &item.ImageURL,
		&item.LastSyncedAt, &item.CreatedAt, &item.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(tags) > 0 {
		if err := json.Unmarshal(tags, &item.Tags); err != nil {
			return nil, fmt.Errorf("failed to decode tags: %w", err)
		}
	}
	if len(variants) > 0 {
		if err := json.Unmarshal(variants, &item.Variants); err != nil {
			return nil, fmt.Errorf("failed to decode variants: %w", err)
		}
	}

	return item, nil
}

func marshalItemJSON(item *domain.CatalogItem) (tags, variants []byte, err error) {
	tags, err = json.Marshal(item.Tags)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode tags: %w", err)
	}
	variants, err = json.Marshal(item.Variants)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode variants: %w", err)
	}
	return tags, variants, nil
}

// itemFieldsEqual compares the item-level fields that sync is allowed to
// change, ignoring timestamps.
func itemFieldsEqual(a, b *domain.CatalogItem) bool {
	if a.Title != b.Title || a.Vendor != b.Vendor || a.ProductType != b.ProductType {
		return false
	}
	if a.Price != b.Price || a.StockQuantity != b.StockQuantity || a.IsActive != b.IsActive {
		return false
	}
	if a.ImageURL != b.ImageURL {
		return false
	}
	if (a.CompareAtPrice == nil) != (b.CompareAtPrice == nil) {
		return false
	}
	if a.CompareAtPrice != nil && *a.CompareAtPrice != *b.CompareAtPrice {
		return false
	}
	if len(a.Tags) != len(b.Tags) {
		return false
	}
	for i := range a.Tags {
		if a.Tags[i] != b.Tags[i] {
			return false
		}
	}
	if len(a.Variants) != len(b.Variants) {
		return false
	}
	for i := range a.Variants {
		if !variantEqual(a.Variants[i], b.Variants[i]) {
			return false
		}
	}
	return true
}

func variantEqual(a, b domain.Variant) bool {
	if a.ExternalID != b.ExternalID || a.SKU != b.SKU {
		return false
	}
	if a.Price != b.Price || a.StockQuantity != b.StockQuantity {
		return false
	}
	if (a.CompareAtPrice == nil) != (b.CompareAtPrice == nil) {
		return false
	}
	return a.CompareAtPrice == nil || *a.CompareAtPrice == *b.CompareAtPrice
}
