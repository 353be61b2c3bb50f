package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"math/rand"
	"net/http/httptest"
	"testing"

	"mysterybox/internal/domain"
	"mysterybox/internal/middleware"
	"mysterybox/internal/repository"
	"mysterybox/internal/selection"
	"mysterybox/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// In-memory repositories backing the handlers under test.

type memTemplateRepo struct {
	templates map[uuid.UUID]*domain.BundleTemplate
}

func newMemTemplateRepo() *memTemplateRepo {
	return &memTemplateRepo{templates: make(map[uuid.UUID]*domain.BundleTemplate)}
}

func (m *memTemplateRepo) Create(ctx context.Context, tpl *domain.BundleTemplate) error {
	m.templates[tpl.ID] = tpl
	return nil
}

func (m *memTemplateRepo) Update(ctx context.Context, tpl *domain.BundleTemplate) error {
	if _, ok := m.templates[tpl.ID]; !ok {
		return repository.ErrTemplateNotFound
	}
	m.templates[tpl.ID] = tpl
	return nil
}

func (m *memTemplateRepo) Delete(ctx context.Context, id uuid.UUID) error {
	if _, ok := m.templates[id]; !ok {
		return repository.ErrTemplateNotFound
	}
	delete(m.templates, id)
	return nil
}

func (m *memTemplateRepo) FindByID(ctx context.Context, id uuid.UUID) (*domain.BundleTemplate, error) {
	tpl, ok := m.templates[id]
	if !ok {
		return nil, repository.ErrTemplateNotFound
	}
	return tpl, nil
}

func (m *memTemplateRepo) ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]domain.BundleTemplate, error) {
	var out []domain.BundleTemplate
	for _, tpl := range m.templates {
		if tpl.TenantID == tenantID {
			out = append(out, *tpl)
		}
	}
	return out, nil
}

type memCatalogRepo struct {
	items map[int64]*domain.CatalogItem
}

func newMemCatalogRepo() *memCatalogRepo {
	return &memCatalogRepo{items: make(map[int64]*domain.CatalogItem)}
}

func (m *memCatalogRepo) Upsert(ctx context.Context, item *domain.CatalogItem) (repository.UpsertOutcome, error) {
	if _, ok := m.items[item.ExternalID]; ok {
		m.items[item.ExternalID] = item
		return repository.UpsertUpdated, nil
	}
	m.items[item.ExternalID] = item
	return repository.UpsertCreated, nil
}

func (m *memCatalogRepo) FindByExternalID(ctx context.Context, tenantID uuid.UUID, externalID int64) (*domain.CatalogItem, error) {
	item, ok := m.items[externalID]
	if !ok {
		return nil, repository.ErrCatalogItemNotFound
	}
	return item, nil
}

func (m *memCatalogRepo) ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]domain.CatalogItem, error) {
	var out []domain.CatalogItem
	for _, item := range m.items {
		if item.TenantID == tenantID {
			out = append(out, *item)
		}
	}
	return out, nil
}

func (m *memCatalogRepo) DeleteByExternalID(ctx context.Context, tenantID uuid.UUID, externalID int64) error {
	if _, ok := m.items[externalID]; !ok {
		return repository.ErrCatalogItemNotFound
	}
	delete(m.items, externalID)
	return nil
}

func (m *memCatalogRepo) DeleteByTenant(ctx context.Context, tenantID uuid.UUID) error {
	m.items = make(map[int64]*domain.CatalogItem)
	return nil
}

type memBundleRepo struct {
	bundles map[uuid.UUID]*domain.BundleInstance
}

func newMemBundleRepo() *memBundleRepo {
	return &memBundleRepo{bundles: make(map[uuid.UUID]*domain.BundleInstance)}
}

func (m *memBundleRepo) Create(ctx context.Context, instance *domain.BundleInstance) error {
	m.bundles[instance.ID] = instance
	return nil
}

func (m *memBundleRepo) FindByID(ctx context.Context, id uuid.UUID) (*domain.BundleInstance, error) {
	instance, ok := m.bundles[id]
	if !ok {
		return nil, repository.ErrBundleNotFound
	}
	return instance, nil
}

func (m *memBundleRepo) ListByTemplate(ctx context.Context, templateID uuid.UUID, limit int) ([]domain.BundleInstance, error) {
	var out []domain.BundleInstance
	for _, b := range m.bundles {
		if b.TemplateID == templateID && len(out) < limit {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (m *memBundleRepo) ListByTenant(ctx context.Context, tenantID uuid.UUID, limit int) ([]domain.BundleInstance, error) {
	var out []domain.BundleInstance
	for _, b := range m.bundles {
		if b.TenantID == tenantID && len(out) < limit {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (m *memBundleRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.BundleStatus) error {
	instance, ok := m.bundles[id]
	if !ok {
		return repository.ErrBundleNotFound
	}
	instance.Status = status
	return nil
}

func (m *memBundleRepo) Statistics(ctx context.Context, templateID uuid.UUID) (*domain.TemplateStatistics, error) {
	stats := &domain.TemplateStatistics{}
	for _, b := range m.bundles {
		if b.TemplateID == templateID {
			stats.Count++
			stats.TotalValue += b.TotalValue
		}
	}
	if stats.Count > 0 {
		stats.AvgValue = stats.TotalValue / float64(stats.Count)
	}
	return stats, nil
}

type memTenantRepo struct {
	tenants map[string]*domain.Tenant
}

func newMemTenantRepo() *memTenantRepo {
	return &memTenantRepo{tenants: make(map[string]*domain.Tenant)}
}

func (m *memTenantRepo) Upsert(ctx context.Context, tenant *domain.Tenant) error {
	if existing, ok := m.tenants[tenant.ShopDomain]; ok {
		existing.AccessToken = tenant.AccessToken
		return nil
	}
	m.tenants[tenant.ShopDomain] = tenant
	return nil
}

func (m *memTenantRepo) FindByID(ctx context.Context, id uuid.UUID) (*domain.Tenant, error) {
	for _, t := range m.tenants {
		if t.ID == id {
			return t, nil
		}
	}
	return nil, repository.ErrTenantNotFound
}

func (m *memTenantRepo) FindByShopDomain(ctx context.Context, shopDomain string) (*domain.Tenant, error) {
	tenant, ok := m.tenants[shopDomain]
	if !ok {
		return nil, repository.ErrTenantNotFound
	}
	return tenant, nil
}

func (m *memTenantRepo) Delete(ctx context.Context, id uuid.UUID) error {
	return nil
}

// testEnv wires real services over in-memory repositories so handler tests
// exercise the full decode, service, and error-mapping path.
type testEnv struct {
	router    *chi.Mux
	tenant    *domain.Tenant
	templates *memTemplateRepo
	catalog   *memCatalogRepo
	bundles   *memBundleRepo
	tenants   *memTenantRepo
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	env := &testEnv{
		router:    chi.NewRouter(),
		templates: newMemTemplateRepo(),
		catalog:   newMemCatalogRepo(),
		bundles:   newMemBundleRepo(),
		tenants:   newMemTenantRepo(),
	}
	env.tenant = &domain.Tenant{
		ID:          uuid.New(),
		ShopDomain:  "box-shop.myshopify.com",
		AccessToken: "shpat_test",
	}
	env.tenants.tenants[env.tenant.ShopDomain] = env.tenant

	logger := zap.NewNop()
	selector := selection.New(rand.New(rand.NewSource(1)))

	templateService := service.NewTemplateService(env.templates, logger)
	bundleService := service.NewBundleService(env.templates, env.catalog, env.bundles, selector, logger)

	NewTemplateHandler(templateService, bundleService, logger).RegisterRoutes(env.router)
	NewBundleHandler(bundleService, logger).RegisterRoutes(env.router)

	return env
}

func (env *testEnv) seedCatalog(n int) {
	for i := 1; i <= n; i++ {
		id := int64(i)
		env.catalog.items[id] = &domain.CatalogItem{
			ID:            uuid.New(),
			TenantID:      env.tenant.ID,
			ExternalID:    id,
			Title:         "Item",
			Price:         float64(i) * 5,
			StockQuantity: 10,
			IsActive:      true,
			Variants:      []domain.Variant{{ExternalID: id * 100, StockQuantity: 10}},
		}
	}
}

func (env *testEnv) seedTemplate(tpl *domain.BundleTemplate) *domain.BundleTemplate {
	if tpl.ID == uuid.Nil {
		tpl.ID = uuid.New()
	}
	tpl.TenantID = env.tenant.ID
	env.templates.templates[tpl.ID] = tpl
	return tpl
}

// do runs a request through the router with the tenant already resolved, the
// way the tenant middleware would leave it.
func (env *testEnv) do(method, path string, body interface{}) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req = req.WithContext(context.WithValue(req.Context(), middleware.TenantKey, env.tenant))

	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), dst); err != nil {
		t.Fatalf("Failed to decode response body %q: %v", w.Body.String(), err)
	}
}
