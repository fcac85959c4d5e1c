package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/vendorlane/api/internal/platform/httpx"
	"github.com/vendorlane/api/internal/services"
)

const maxVendorBodySize = 4 * 1024

type deactivateVendorRequest struct {
	ActorID string `json:"actor_id"`
}

// VendorHandlers exposes vendor company activation endpoints.
type VendorHandlers struct {
	vendors services.VendorService
}

// NewVendorHandlers constructs a new VendorHandlers instance.
func NewVendorHandlers(vendors services.VendorService) *VendorHandlers {
	return &VendorHandlers{vendors: vendors}
}

// Routes registers the /vendors endpoints.
func (h *VendorHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/{companyID}", h.getCompany)
	r.Post("/{companyID}/deactivate", h.deactivate)
	r.Post("/{companyID}/activate", h.activate)
	r.Post("/{companyID}/catalog/reactivate", h.reactivateCatalog)
}

func (h *VendorHandlers) getCompany(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	company, err := h.vendors.GetCompany(ctx, chi.URLParam(r, "companyID"))
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, company)
}

func (h *VendorHandlers) deactivate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req deactivateVendorRequest
	if !decodeJSON(ctx, w, r, maxVendorBodySize, &req) {
		return
	}

	result, err := h.vendors.Deactivate(ctx, services.DeactivateVendorCommand{
		CompanyID: chi.URLParam(r, "companyID"),
		ActorID:   req.ActorID,
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, result)
}

func (h *VendorHandlers) activate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	company, err := h.vendors.Activate(ctx, chi.URLParam(r, "companyID"))
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, company)
}

func (h *VendorHandlers) reactivateCatalog(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	result, err := h.vendors.ReactivateCatalog(ctx, chi.URLParam(r, "companyID"))
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, result)
}
