package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"mysterybox/internal/domain"

	"github.com/google/uuid"
)

var (
	ErrTenantNotFound = errors.New("tenant not found")
)

// TenantRepository stores merchant credentials handed over by the OAuth
// collaborator. Tokens are opaque to the core.
type TenantRepository interface {
	Upsert(ctx context.Context, tenant *domain.Tenant) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Tenant, error)
	FindByShopDomain(ctx context.Context, shopDomain string) (*domain.Tenant, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type tenantRepository struct {
	db *sql.DB
}

// NewTenantRepository creates a new instance of TenantRepository
func NewTenantRepository(db *sql.DB) TenantRepository {
	return &tenantRepository{db: db}
}

// Upsert inserts a tenant or refreshes its access token on reinstall.
func (r *tenantRepository) Upsert(ctx context.Context, tenant *domain.Tenant) error {
	query := `
		INSERT INTO tenants (id, shop_domain, access_token, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (shop_domain)
		DO UPDATE SET access_token = EXCLUDED.access_token, updated_at = EXCLUDED.updated_at
	`

	now := time.Now()
	_, err := r.db.ExecContext(ctx, query,
		tenant.ID, tenant.ShopDomain, tenant.AccessToken, now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert tenant: %w", err)
	}

	return nil
}

// FindByID retrieves a tenant by ID.
func (r *tenantRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Tenant, error) {
	query := `
		SELECT id, shop_domain, access_token, created_at, updated_at
		FROM tenants
		WHERE id = $1
	`
	return r.scanOne(r.db.QueryRowContext(ctx, query, id))
}

// FindByShopDomain retrieves a tenant by its shop domain.
func (r *tenantRepository) FindByShopDomain(ctx context.Context, shopDomain string) (*domain.Tenant, error) {
	query := `
		SELECT id, shop_domain, access_token, created_at, updated_at
		FROM tenants
		WHERE shop_domain = $1
	`
	return r.scanOne(r.db.QueryRowContext(ctx, query, shopDomain))
}

// Delete removes a tenant; the cached catalog and templates cascade.
func (r *tenantRepository) Delete(ctx context.Context, id uuid.UUID) error {
	query := `DELETE FROM tenants WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete tenant: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrTenantNotFound
	}

	return nil
}

func (r *tenantRepository) scanOne(row *sql.Row) (*domain.Tenant, error) {
	tenant := &domain.Tenant{}
	err := row.Scan(&tenant.ID, &tenant.ShopDomain, &tenant.AccessToken, &tenant.CreatedAt, &tenant.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrTenantNotFound
		}
		return nil, fmt.Errorf("failed to scan tenant: %w", err)
	}
	return tenant, nil
}
