package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"mysterybox/internal/domain"
	"mysterybox/internal/repository"
	"mysterybox/internal/shopify"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ProductFetcher is the slice of the catalog API client the sync engine
// needs; tests substitute a fake.
type ProductFetcher interface {
	FetchProducts(ctx context.Context, shopDomain, accessToken, cursor string) (*shopify.Page, error)
}

// SyncService pulls the full paginated catalog for a tenant into the local
// cache. Per-item failures are counted and logged, never fatal; only a
// failure to fetch the first page aborts the run.
type SyncService struct {
	fetcher  ProductFetcher
	items    repository.CatalogItemRepository
	maxPages int
	logger   *zap.Logger
}

// NewSyncService creates a new SyncService. maxPages is the hard page-count
// ceiling per run; hitting it truncates the sync and is reported, not an
// error.
func NewSyncService(fetcher ProductFetcher, items repository.CatalogItemRepository, maxPages int, logger *zap.Logger) *SyncService {
	return &SyncService{
		fetcher:  fetcher,
		items:    items,
		maxPages: maxPages,
		logger:   logger,
	}
}

// Sync fetches every catalog page for the tenant and upserts each item,
// returning exact counts of what changed. The run is cancellable between
// pages via ctx.
func (s *SyncService) Sync(ctx context.Context, tenant *domain.Tenant) (*domain.SyncReport, error) {
	start := time.Now()
	report := &domain.SyncReport{}
	cursor := ""

	for {
		if err := ctx.Err(); err != nil {
			report.Duration = time.Since(start)
			return report, fmt.Errorf("sync cancelled after page %d: %w", report.Pages, err)
		}

		if report.Pages >= s.maxPages {
			report.Truncated = true
			s.logger.Warn("Catalog sync truncated at page ceiling",
				zap.String("shop_domain", tenant.ShopDomain),
				zap.Int("max_pages", s.maxPages),
			)
			break
		}

		page, err := s.fetcher.FetchProducts(ctx, tenant.ShopDomain, tenant.AccessToken, cursor)
		if err != nil {
			if report.Pages == 0 {
				return nil, fmt.Errorf("failed to fetch first catalog page: %w", err)
			}
			// Mid-run fetch failures keep what was already synced.
			report.FailedPages++
			s.logger.Error("Catalog page fetch failed mid-run",
				zap.String("shop_domain", tenant.ShopDomain),
				zap.Int("page", report.Pages+1),
				zap.Error(err),
			)
			break
		}
		report.Pages++

		for i := range page.Products {
			report.TotalFetched++
			s.upsertProduct(ctx, tenant.ID, &page.Products[i], report)
		}

		if page.NextCursor == "" {
			break
		}
		cursor = page.NextCursor
	}

	report.Duration = time.Since(start)
	s.logger.Info("Catalog sync completed",
		zap.String("shop_domain", tenant.ShopDomain),
		zap.Int("total_fetched", report.TotalFetched),
		zap.Int("created", report.Created),
		zap.Int("updated", report.Updated),
		zap.Int("unchanged", report.Unchanged),
		zap.Int("errors", report.Errors),
		zap.Int("pages", report.Pages),
		zap.Int("failed_pages", report.FailedPages),
		zap.Bool("truncated", report.Truncated),
	)

	return report, nil
}

// ApplyProductUpdate handles a single created/updated webhook payload
// through the same normalize-and-upsert path as bulk sync.
func (s *SyncService) ApplyProductUpdate(ctx context.Context, tenantID uuid.UUID, product *shopify.Product) error {
	item, err := normalizeProduct(tenantID, product)
	if err != nil {
		return fmt.Errorf("failed to normalize product %d: %w", product.ID, err)
	}
	if _, err := s.items.Upsert(ctx, item); err != nil {
		return fmt.Errorf("failed to upsert product %d: %w", product.ID, err)
	}
	return nil
}

// ApplyProductDelete removes an item the upstream catalog deleted. A missing
// row is not an error; deletion is idempotent.
func (s *SyncService) ApplyProductDelete(ctx context.Context, tenantID uuid.UUID, externalID int64) error {
	err := s.items.DeleteByExternalID(ctx, tenantID, externalID)
	if err != nil && err != repository.ErrCatalogItemNotFound {
		return fmt.Errorf("failed to delete product %d: %w", externalID, err)
	}
	return nil
}

func (s *SyncService) upsertProduct(ctx context.Context, tenantID uuid.UUID, product *shopify.Product, report *domain.SyncReport) {
	item, err := normalizeProduct(tenantID, product)
	if err != nil {
		report.Errors++
		s.logger.Warn("Skipping malformed catalog item",
			zap.Int64("external_id", product.ID),
			zap.Error(err),
		)
		return
	}

	outcome, err := s.items.Upsert(ctx, item)
	if err != nil {
		report.Errors++
		s.logger.Error("Failed to store catalog item",
			zap.Int64("external_id", product.ID),
			zap.Error(err),
		)
		return
	}

	switch outcome {
	case repository.UpsertCreated:
		report.Created++
	case repository.UpsertUpdated:
		report.Updated++
	default:
		report.Unchanged++
	}
}

// normalizeProduct converts a raw API payload into a typed catalog item.
// Items with zero variants are rejected. Price is the first variant's price
// and stock is the sum across variants.
func normalizeProduct(tenantID uuid.UUID, product *shopify.Product) (*domain.CatalogItem, error) {
	if len(product.Variants) == 0 {
		return nil, fmt.Errorf("product %d has no variants", product.ID)
	}

	variants := make([]domain.Variant, 0, len(product.Variants))
	stock := 0
	for _, raw := range product.Variants {
		price, err := parsePrice(raw.Price)
		if err != nil {
			return nil, fmt.Errorf("variant %d has invalid price %q", raw.ID, raw.Price)
		}
		var compareAt *float64
		if raw.CompareAtPrice != nil && *raw.CompareAtPrice != "" {
			v, err := parsePrice(*raw.CompareAtPrice)
			if err != nil {
				return nil, fmt.Errorf("variant %d has invalid compare-at price %q", raw.ID, *raw.CompareAtPrice)
			}
			compareAt = &v
		}

		qty := raw.InventoryQuantity
		if qty < 0 {
			qty = 0
		}
		stock += qty

		variants = append(variants, domain.Variant{
			ExternalID:     raw.ID,
			SKU:            raw.SKU,
			Price:          price,
			CompareAtPrice: compareAt,
			StockQuantity:  qty,
		})
	}

	item := &domain.CatalogItem{
		ID:             uuid.New(),
		TenantID:       tenantID,
		ExternalID:     product.ID,
		Title:          product.Title,
		Vendor:         product.Vendor,
		ProductType:    product.ProductType,
		Tags:           parseTags(product.Tags),
		Price:          variants[0].Price,
		CompareAtPrice: variants[0].CompareAtPrice,
		StockQuantity:  stock,
		IsActive:       strings.EqualFold(product.Status, "active"),
		Variants:       variants,
		LastSyncedAt:   time.Now(),
	}
	if len(product.Images) > 0 {
		item.ImageURL = product.Images[0].Src
	}

	return item, nil
}

// parseTags splits the comma-separated tag string the API returns into a
// trimmed list, parsed once at the boundary.
func parseTags(raw string) []string {
	tags := []string{}
	for _, t := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(t); trimmed != "" {
			tags = append(tags, trimmed)
		}
	}
	return tags
}

func parsePrice(raw string) (float64, error) {
	price, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, err
	}
	if price < 0 {
		return 0, fmt.Errorf("negative price %f", price)
	}
	return price, nil
}
