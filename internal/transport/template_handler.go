package transport

import (
	"errors"
	"net/http"

	"mysterybox/internal/domain"
	"mysterybox/internal/middleware"
	"mysterybox/internal/repository"
	"mysterybox/internal/selection"
	"mysterybox/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// TemplateRequest represents the create/update template payload
type TemplateRequest struct {
	Name         string   `json:"name" validate:"required"`
	MinValue     float64  `json:"min_value" validate:"gte=0"`
	MaxValue     float64  `json:"max_value" validate:"gte=0"`
	MinItems     int      `json:"min_items" validate:"gte=1"`
	MaxItems     int      `json:"max_items" validate:"gte=1"`
	IncludeTags  []string `json:"include_tags"`
	ExcludeTags  []string `json:"exclude_tags"`
	IncludeTypes []string `json:"include_types"`
	ExcludeTypes []string `json:"exclude_types"`
	IsActive     *bool    `json:"is_active"`
}

// TemplateHandler handles HTTP requests for bundle templates and generation
type TemplateHandler struct {
	templateService *service.TemplateService
	bundleService   *service.BundleService
	logger          *zap.Logger
}

// NewTemplateHandler creates a new TemplateHandler
func NewTemplateHandler(templateService *service.TemplateService, bundleService *service.BundleService, logger *zap.Logger) *TemplateHandler {
	return &TemplateHandler{
		templateService: templateService,
		bundleService:   bundleService,
		logger:          logger,
	}
}

// RegisterRoutes registers all template routes
func (h *TemplateHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api/templates", func(r chi.Router) {
		r.Post("/", h.Create)
		r.Get("/", h.List)
		r.Get("/{id}", h.Get)
		r.Put("/{id}", h.Update)
		r.Delete("/{id}", h.Delete)
		r.Post("/{id}/generate", h.Generate)
		r.Get("/{id}/statistics", h.Statistics)
	})
}

// Create handles template creation
func (h *TemplateHandler) Create(w http.ResponseWriter, r *http.Request) {
	tenant, ok := middleware.GetTenant(r.Context())
	if !ok {
		middleware.RespondWithError(w, http.StatusUnauthorized, "tenant not resolved")
		return
	}

	req, ok := h.decodeTemplate(w, r)
	if !ok {
		return
	}

	tpl, err := h.templateService.Create(r.Context(), req.toDomain(tenant.ID))
	if err != nil {
		h.respondTemplateError(w, err, "failed to create template")
		return
	}

	middleware.RespondWithJSON(w, http.StatusCreated, tpl)
}

// Update handles template edits
func (h *TemplateHandler) Update(w http.ResponseWriter, r *http.Request) {
	tenant, ok := middleware.GetTenant(r.Context())
	if !ok {
		middleware.RespondWithError(w, http.StatusUnauthorized, "tenant not resolved")
		return
	}

	id, ok := h.parseID(w, r)
	if !ok {
		return
	}

	req, ok := h.decodeTemplate(w, r)
	if !ok {
		return
	}

	tpl, err := h.templateService.Update(r.Context(), id, req.toDomain(tenant.ID))
	if err != nil {
		h.respondTemplateError(w, err, "failed to update template")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, tpl)
}

// List returns all of the tenant's templates
func (h *TemplateHandler) List(w http.ResponseWriter, r *http.Request) {
	tenant, ok := middleware.GetTenant(r.Context())
	if !ok {
		middleware.RespondWithError(w, http.StatusUnauthorized, "tenant not resolved")
		return
	}

	templates, err := h.templateService.List(r.Context(), tenant.ID)
	if err != nil {
		h.logger.Error("Failed to list templates", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to list templates")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, templates)
}

// Get returns one template
func (h *TemplateHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}

	tpl, err := h.templateService.Get(r.Context(), id)
	if err != nil {
		h.respondTemplateError(w, err, "failed to get template")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, tpl)
}

// Delete removes a template
func (h *TemplateHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}

	if err := h.templateService.Delete(r.Context(), id); err != nil {
		h.respondTemplateError(w, err, "failed to delete template")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Generate materializes one bundle from the template. Selection failures
// carry enough detail for the merchant to tell "no inventory" apart from
// "inventory doesn't fit the constraints".
func (h *TemplateHandler) Generate(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}

	instance, err := h.bundleService.Generate(r.Context(), id)
	if err != nil {
		var unsat *selection.UnsatisfiableError
		switch {
		case errors.Is(err, repository.ErrTemplateNotFound):
			middleware.RespondWithError(w, http.StatusNotFound, "template not found")
		case errors.Is(err, service.ErrTemplateInactive):
			middleware.RespondWithError(w, http.StatusConflict, "template is inactive")
		case errors.Is(err, selection.ErrNoEligibleItems):
			middleware.RespondWithError(w, http.StatusUnprocessableEntity,
				"no catalog items match the template filters; adjust filters or sync the catalog")
		case errors.As(err, &unsat):
			middleware.RespondWithErrorDetails(w, http.StatusUnprocessableEntity,
				"eligible items cannot satisfy the value and count constraints",
				map[string]interface{}{
					"eligible_count":       unsat.EligibleCount,
					"cheapest_price":       unsat.CheapestPrice,
					"most_expensive_price": unsat.MostExpensivePrice,
				})
		default:
			h.logger.Error("Bundle generation failed", zap.Error(err))
			middleware.RespondWithError(w, http.StatusInternalServerError, "failed to generate bundle")
		}
		return
	}

	middleware.RespondWithJSON(w, http.StatusCreated, instance)
}

// Statistics returns the aggregate over all instances of a template
func (h *TemplateHandler) Statistics(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}

	stats, err := h.bundleService.Statistics(r.Context(), id)
	if err != nil {
		h.respondTemplateError(w, err, "failed to compute statistics")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, stats)
}

func (req *TemplateRequest) toDomain(tenantID uuid.UUID) *domain.BundleTemplate {
	isActive := true
	if req.IsActive != nil {
		isActive = *req.IsActive
	}
	return &domain.BundleTemplate{
		TenantID:     tenantID,
		Name:         req.Name,
		MinValue:     req.MinValue,
		MaxValue:     req.MaxValue,
		MinItems:     req.MinItems,
		MaxItems:     req.MaxItems,
		IncludeTags:  req.IncludeTags,
		ExcludeTags:  req.ExcludeTags,
		IncludeTypes: req.IncludeTypes,
		ExcludeTypes: req.ExcludeTypes,
		IsActive:     isActive,
	}
}

func (h *TemplateHandler) decodeTemplate(w http.ResponseWriter, r *http.Request) (*TemplateRequest, bool) {
	var req TemplateRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		h.logger.Debug("Template validation failed", zap.Error(err))

		if validationErrors := middleware.FormatValidationErrors(err); len(validationErrors) > 0 {
			middleware.RespondWithValidationErrors(w, validationErrors)
			return nil, false
		}

		middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return nil, false
	}
	return &req, true
}

func (h *TemplateHandler) parseID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid template id")
		return uuid.Nil, false
	}
	return id, true
}

func (h *TemplateHandler) respondTemplateError(w http.ResponseWriter, err error, fallback string) {
	var validationErr *service.ValidationError
	switch {
	case errors.Is(err, repository.ErrTemplateNotFound):
		middleware.RespondWithError(w, http.StatusNotFound, "template not found")
	case errors.As(err, &validationErr):
		middleware.RespondWithErrorDetails(w, http.StatusBadRequest, "invalid template",
			map[string]interface{}{"violations": validationErr.Violations})
	default:
		h.logger.Error(fallback, zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, fallback)
	}
}
