package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"mysterybox/internal/domain"
	"mysterybox/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ValidationError carries every violated rule of a template, not just the
// first, so the merchant can fix them all in one edit.
type ValidationError struct {
	Violations []string
}

func (e *ValidationError) Error() string {
	return "invalid bundle template: " + strings.Join(e.Violations, "; ")
}

// TemplateService owns the bundle template lifecycle. Invalid templates are
// rejected before any persistence.
type TemplateService struct {
	templates repository.BundleTemplateRepository
	logger    *zap.Logger
}

// NewTemplateService creates a new TemplateService.
func NewTemplateService(templates repository.BundleTemplateRepository, logger *zap.Logger) *TemplateService {
	return &TemplateService{templates: templates, logger: logger}
}

// Create validates and persists a new template.
func (s *TemplateService) Create(ctx context.Context, tpl *domain.BundleTemplate) (*domain.BundleTemplate, error) {
	if err := validateTemplate(tpl); err != nil {
		return nil, err
	}

	now := time.Now()
	tpl.ID = uuid.New()
	tpl.CreatedAt = now
	tpl.UpdatedAt = now

	if err := s.templates.Create(ctx, tpl); err != nil {
		return nil, fmt.Errorf("failed to create template: %w", err)
	}

	s.logger.Info("Bundle template created",
		zap.String("template_id", tpl.ID.String()),
		zap.String("name", tpl.Name),
	)

	return tpl, nil
}

// Update validates and replaces an existing template's attributes.
func (s *TemplateService) Update(ctx context.Context, id uuid.UUID, tpl *domain.BundleTemplate) (*domain.BundleTemplate, error) {
	existing, err := s.templates.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := validateTemplate(tpl); err != nil {
		return nil, err
	}

	tpl.ID = existing.ID
	tpl.TenantID = existing.TenantID
	tpl.CreatedAt = existing.CreatedAt
	tpl.UpdatedAt = time.Now()

	if err := s.templates.Update(ctx, tpl); err != nil {
		return nil, fmt.Errorf("failed to update template: %w", err)
	}

	return tpl, nil
}

// Delete removes a template.
func (s *TemplateService) Delete(ctx context.Context, id uuid.UUID) error {
	return s.templates.Delete(ctx, id)
}

// Get retrieves one template.
func (s *TemplateService) Get(ctx context.Context, id uuid.UUID) (*domain.BundleTemplate, error) {
	return s.templates.FindByID(ctx, id)
}

// List retrieves all templates for a tenant.
func (s *TemplateService) List(ctx context.Context, tenantID uuid.UUID) ([]domain.BundleTemplate, error) {
	return s.templates.ListByTenant(ctx, tenantID)
}

// validateTemplate collects every violated constraint.
func validateTemplate(tpl *domain.BundleTemplate) error {
	var violations []string

	if strings.TrimSpace(tpl.Name) == "" {
		violations = append(violations, "name is required")
	}
	if tpl.MinValue < 0 {
		violations = append(violations, "min_value must not be negative")
	}
	if tpl.MaxValue < 0 {
		violations = append(violations, "max_value must not be negative")
	}
	if tpl.MinValue > tpl.MaxValue {
		violations = append(violations, "min_value must not exceed max_value")
	}
	if tpl.MinItems < 1 {
		violations = append(violations, "min_items must be at least 1")
	}
	if tpl.MaxItems < 1 {
		violations = append(violations, "max_items must be at least 1")
	}
	if tpl.MinItems > tpl.MaxItems {
		violations = append(violations, "min_items must not exceed max_items")
	}

	if len(violations) > 0 {
		return &ValidationError{Violations: violations}
	}
	return nil
}
