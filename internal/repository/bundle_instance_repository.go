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
	ErrBundleNotFound = errors.New("bundle instance not found")
)

// BundleInstanceRepository defines data access for materialized bundles and
// their per-template statistics.
type BundleInstanceRepository interface {
	Create(ctx context.Context, instance *domain.BundleInstance) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.BundleInstance, error)
	ListByTemplate(ctx context.Context, templateID uuid.UUID, limit int) ([]domain.BundleInstance, error)
	ListByTenant(ctx context.Context, tenantID uuid.UUID, limit int) ([]domain.BundleInstance, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.BundleStatus) error
	Statistics(ctx context.Context, templateID uuid.UUID) (*domain.TemplateStatistics, error)
}

type bundleInstanceRepository struct {
	db *sql.DB
}

// NewBundleInstanceRepository creates a new instance of BundleInstanceRepository
func NewBundleInstanceRepository(db *sql.DB) BundleInstanceRepository {
	return &bundleInstanceRepository{db: db}
}

const instanceColumns = `id, template_id, tenant_id, selected_items, total_value,
		item_count, savings, status, generated_at`

// Create persists a freshly generated bundle.
func (r *bundleInstanceRepository) Create(ctx context.Context, instance *domain.BundleInstance) error {
	items, err := json.Marshal(instance.SelectedItems)
	if err != nil {
		return fmt.Errorf("failed to encode selected items: %w", err)
	}

	query := `
		INSERT INTO bundle_instances (` + instanceColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err = r.db.ExecContext(ctx, query,
		instance.ID, instance.TemplateID, instance.TenantID, items,
		instance.TotalValue, instance.ItemCount, instance.Savings,
		instance.Status, instance.GeneratedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create bundle instance: %w", err)
	}

	return nil
}

// FindByID retrieves one bundle instance.
func (r *bundleInstanceRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.BundleInstance, error) {
	query := `
		SELECT ` + instanceColumns + `
		FROM bundle_instances
		WHERE id = $1
	`

	instance, err := scanInstance(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrBundleNotFound
		}
		return nil, fmt.Errorf("failed to find bundle instance: %w", err)
	}
	return instance, nil
}

// ListByTemplate returns the most recent instances of one template.
func (r *bundleInstanceRepository) ListByTemplate(ctx context.Context, templateID uuid.UUID, limit int) ([]domain.BundleInstance, error) {
	query := `
		SELECT ` + instanceColumns + `
		FROM bundle_instances
		WHERE template_id = $1
		ORDER BY generated_at DESC
		LIMIT $2
	`
	return r.list(ctx, query, templateID, limit)
}

// ListByTenant returns the most recent instances across all of a tenant's
// templates.
func (r *bundleInstanceRepository) ListByTenant(ctx context.Context, tenantID uuid.UUID, limit int) ([]domain.BundleInstance, error) {
	query := `
		SELECT ` + instanceColumns + `
		FROM bundle_instances
		WHERE tenant_id = $1
		ORDER BY generated_at DESC
		LIMIT $2
	`
	return r.list(ctx, query, tenantID, limit)
}

func (r *bundleInstanceRepository) list(ctx context.Context, query string, id uuid.UUID, limit int) ([]domain.BundleInstance, error) {
	rows, err := r.db.QueryContext(ctx, query, id, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list bundle instances: %w", err)
	}
	defer rows.Close()

	instances := []domain.BundleInstance{}
	for rows.Next() {
		instance, err := scanInstance(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan bundle instance: %w", err)
		}
		instances = append(instances, *instance)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating bundle instances: %w", err)
	}

	return instances, nil
}

// UpdateStatus advances a bundle's lifecycle status. Status is the only
// mutable field after creation.
func (r *bundleInstanceRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.BundleStatus) error {
	query := `UPDATE bundle_instances SET status = $2 WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id, status)
	if err != nil {
		return fmt.Errorf("failed to update bundle status: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrBundleNotFound
	}

	return nil
}

// Statistics aggregates all instances of a template in a single pass,
// returning zero values when no instances exist.
func (r *bundleInstanceRepository) Statistics(ctx context.Context, templateID uuid.UUID) (*domain.TemplateStatistics, error) {
	query := `
		SELECT COUNT(*),
		       COALESCE(AVG(total_value), 0),
		       COALESCE(AVG(item_count), 0),
		       COALESCE(SUM(total_value), 0),
		       COALESCE(MIN(total_value), 0),
		       COALESCE(MAX(total_value), 0),
		       COALESCE(MIN(item_count), 0),
		       COALESCE(MAX(item_count), 0)
		FROM bundle_instances
		WHERE template_id = $1
	`

	stats := &domain.TemplateStatistics{}
	err := r.db.QueryRowContext(ctx, query, templateID).Scan(
		&stats.Count, &stats.AvgValue, &stats.AvgItems, &stats.TotalValue,
		&stats.MinValue, &stats.MaxValue, &stats.MinItems, &stats.MaxItems,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate bundle statistics: %w", err)
	}

	return stats, nil
}

func scanInstance(row rowScanner) (*domain.BundleInstance, error) {
	instance := &domain.BundleInstance{}
	var items []byte
	var generatedAt time.Time

	err := row.Scan(
		&instance.ID, &instance.TemplateID, &instance.TenantID, &items,
		&instance.TotalValue, &instance.ItemCount, &instance.Savings,
		&instance.Status, &generatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(items) > 0 {
		if err := json.Unmarshal(items, &instance.SelectedItems); err != nil {
			return nil, fmt.Errorf("failed to decode selected items: %w", err)
		}
	}
	instance.GeneratedAt = generatedAt

	return instance, nil
}
