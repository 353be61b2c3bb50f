package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"mysterybox/internal/domain"
	"mysterybox/internal/repository"
	"mysterybox/internal/selection"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrTemplateInactive  = errors.New("bundle template is inactive")
	ErrInvalidTransition = errors.New("invalid bundle status transition")
)

// BundleService materializes bundles from templates and serves bundle
// history and statistics. The catalog snapshot for each generation is a
// single point-in-time read; stock is not reserved, so concurrent
// generations may select overlapping inventory.
type BundleService struct {
	templates repository.BundleTemplateRepository
	items     repository.CatalogItemRepository
	bundles   repository.BundleInstanceRepository
	selector  *selection.Selector
	logger    *zap.Logger
}

// NewBundleService creates a new BundleService.
func NewBundleService(
	templates repository.BundleTemplateRepository,
	items repository.CatalogItemRepository,
	bundles repository.BundleInstanceRepository,
	selector *selection.Selector,
	logger *zap.Logger,
) *BundleService {
	return &BundleService{
		templates: templates,
		items:     items,
		bundles:   bundles,
		selector:  selector,
		logger:    logger,
	}
}

// Generate materializes one bundle from the template, persists it as a
// draft, and returns it. Selection failures pass through typed so the
// caller can distinguish "no inventory" from "inventory doesn't fit".
func (s *BundleService) Generate(ctx context.Context, templateID uuid.UUID) (*domain.BundleInstance, error) {
	tpl, err := s.templates.FindByID(ctx, templateID)
	if err != nil {
		return nil, err
	}
	if !tpl.IsActive {
		return nil, ErrTemplateInactive
	}

	snapshot, err := s.items.ListByTenant(ctx, tpl.TenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog snapshot: %w", err)
	}

	result, err := s.selector.Select(tpl, snapshot)
	if err != nil {
		return nil, err
	}

	instance := &domain.BundleInstance{
		ID:            uuid.New(),
		TemplateID:    tpl.ID,
		TenantID:      tpl.TenantID,
		SelectedItems: result.Items,
		TotalValue:    result.TotalValue,
		ItemCount:     len(result.Items),
		Savings:       result.Savings,
		Status:        domain.BundleStatusDraft,
		GeneratedAt:   time.Now(),
	}

	if err := s.bundles.Create(ctx, instance); err != nil {
		return nil, fmt.Errorf("failed to persist bundle instance: %w", err)
	}

	s.logger.Info("Bundle generated",
		zap.String("template_id", tpl.ID.String()),
		zap.String("bundle_id", instance.ID.String()),
		zap.Float64("total_value", instance.TotalValue),
		zap.Int("item_count", instance.ItemCount),
	)

	return instance, nil
}

// Statistics aggregates all instances of a template. A template with no
// instances yields all-zero statistics, not an error.
func (s *BundleService) Statistics(ctx context.Context, templateID uuid.UUID) (*domain.TemplateStatistics, error) {
	if _, err := s.templates.FindByID(ctx, templateID); err != nil {
		return nil, err
	}
	return s.bundles.Statistics(ctx, templateID)
}

// GetBundle retrieves one bundle instance.
func (s *BundleService) GetBundle(ctx context.Context, id uuid.UUID) (*domain.BundleInstance, error) {
	return s.bundles.FindByID(ctx, id)
}

// ListBundles returns a tenant's recent bundles.
func (s *BundleService) ListBundles(ctx context.Context, tenantID uuid.UUID, limit int) ([]domain.BundleInstance, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return s.bundles.ListByTenant(ctx, tenantID, limit)
}

// ListByTemplate returns the recent instances of one template.
func (s *BundleService) ListByTemplate(ctx context.Context, templateID uuid.UUID, limit int) ([]domain.BundleInstance, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return s.bundles.ListByTemplate(ctx, templateID, limit)
}

// UpdateStatus advances a bundle through draft -> published -> sold.
// Backward transitions are rejected.
func (s *BundleService) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.BundleStatus) (*domain.BundleInstance, error) {
	instance, err := s.bundles.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if !transitionAllowed(instance.Status, status) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, instance.Status, status)
	}

	if err := s.bundles.UpdateStatus(ctx, id, status); err != nil {
		return nil, err
	}
	instance.Status = status

	return instance, nil
}

func transitionAllowed(from, to domain.BundleStatus) bool {
	switch from {
	case domain.BundleStatusDraft:
		return to == domain.BundleStatusPublished
	case domain.BundleStatusPublished:
		return to == domain.BundleStatusSold
	default:
		return false
	}
}
