package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"mysterybox/internal/domain"

	"github.com/google/uuid"
)

var (
	ErrTemplateNotFound = errors.New("bundle template not found")
)

// BundleTemplateRepository defines data access for merchant bundle templates.
type BundleTemplateRepository interface {
	Create(ctx context.Context, tpl *domain.BundleTemplate) error
	Update(ctx context.Context, tpl *domain.BundleTemplate) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.BundleTemplate, error)
	ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]domain.BundleTemplate, error)
}

type bundleTemplateRepository struct {
	db *sql.DB
}

// NewBundleTemplateRepository creates a new instance of BundleTemplateRepository
func NewBundleTemplateRepository(db *sql.DB) BundleTemplateRepository {
	return &bundleTemplateRepository{db: db}
}

const templateColumns = `id, tenant_id, name, min_value, max_value, min_items, max_items,
		include_tags, exclude_tags, include_types, exclude_types, is_active,
		created_at, updated_at`

// Create inserts a new template. Validation happens in the service layer
// before this is called.
func (r *bundleTemplateRepository) Create(ctx context.Context, tpl *domain.BundleTemplate) error {
	filters, err := marshalTemplateFilters(tpl)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO bundle_templates (` + templateColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`

	_, err = r.db.ExecContext(ctx, query,
		tpl.ID, tpl.TenantID, tpl.Name, tpl.MinValue, tpl.MaxValue,
		tpl.MinItems, tpl.MaxItems,
		filters[0], filters[1], filters[2], filters[3],
		tpl.IsActive, tpl.CreatedAt, tpl.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create bundle template: %w", err)
	}

	return nil
}

// Update replaces a template's attributes.
func (r *bundleTemplateRepository) Update(ctx context.Context, tpl *domain.BundleTemplate) error {
	filters, err := marshalTemplateFilters(tpl)
	if err != nil {
		return err
	}

	query := `
		UPDATE bundle_templates
		SET name = $2, min_value = $3, max_value = $4, min_items = $5, max_items = $6,
		    include_tags = $7, exclude_tags = $8, include_types = $9, exclude_types = $10,
		    is_active = $11, updated_at = $12
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query,
		tpl.ID, tpl.Name, tpl.MinValue, tpl.MaxValue, tpl.MinItems, tpl.MaxItems,
		filters[0], filters[1], filters[2], filters[3],
		tpl.IsActive, tpl.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update bundle template: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrTemplateNotFound
	}

	return nil
}

// Delete removes a template and, via cascade, its generated instances.
func (r *bundleTemplateRepository) Delete(ctx context.Context, id uuid.UUID) error {
	query := `DELETE FROM bundle_templates WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete bundle template: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrTemplateNotFound
	}

	return nil
}

// FindByID retrieves a template by ID.
func (r *bundleTemplateRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.BundleTemplate, error) {
	query := `
		SELECT ` + templateColumns + `
		FROM bundle_templates
		WHERE id = $1
	`

	tpl, err := scanTemplate(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrTemplateNotFound
		}
		return nil, fmt.Errorf("failed to find bundle template: %w", err)
	}
	return tpl, nil
}

// ListByTenant retrieves all templates belonging to one tenant.
func (r *bundleTemplateRepository) ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]domain.BundleTemplate, error) {
	query := `
		SELECT ` + templateColumns + `
		FROM bundle_templates
		WHERE tenant_id = $1
		ORDER BY created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list bundle templates: %w", err)
	}
	defer rows.Close()

	templates := []domain.BundleTemplate{}
	for rows.Next() {
		tpl, err := scanTemplate(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan bundle template: %w", err)
		}
		templates = append(templates, *tpl)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating bundle templates: %w", err)
	}

	return templates, nil
}

func scanTemplate(row rowScanner) (*domain.BundleTemplate, error) {
	tpl := &domain.BundleTemplate{}
	var includeTags, excludeTags, includeTypes, excludeTypes []byte

	err := row.Scan(
		&tpl.ID, &tpl.TenantID, &tpl.Name, &tpl.MinValue, &tpl.MaxValue,
		&tpl.MinItems, &tpl.MaxItems,
		&includeTags, &excludeTags, &includeTypes, &excludeTypes,
		&tpl.IsActive, &tpl.CreatedAt, &tpl.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	for _, pair := range []struct {
		raw []byte
		dst *[]string
	}{
		{includeTags, &tpl.IncludeTags},
		{excludeTags, &tpl.ExcludeTags},
		{includeTypes, &tpl.IncludeTypes},
		{excludeTypes, &tpl.ExcludeTypes},
	} {
		if len(pair.raw) == 0 {
			continue
		}
		if err := json.Unmarshal(pair.raw, pair.dst); err != nil {
			return nil, fmt.Errorf("failed to decode template filters: %w", err)
		}
	}

	return tpl, nil
}

func marshalTemplateFilters(tpl *domain.BundleTemplate) ([4][]byte, error) {
	var out [4][]byte
	for i, list := range [][]string{tpl.IncludeTags, tpl.ExcludeTags, tpl.IncludeTypes, tpl.ExcludeTypes} {
		if list == nil {
			list = []string{}
		}
		raw, err := json.Marshal(list)
		if err != nil {
			return out, fmt.Errorf("failed to encode template filters: %w", err)
		}
		out[i] = raw
	}
	return out, nil
}
