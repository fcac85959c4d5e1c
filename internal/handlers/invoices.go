package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/vendorlane/api/internal/platform/httpx"
	"github.com/vendorlane/api/internal/services"
)

const maxInvoiceBodySize = 16 * 1024

type createQuoteRequest struct {
	CartID    string `json:"cart_id"`
	ValidDays int    `json:"valid_days"`
	Notes     string `json:"notes"`
}

type generateInvoiceRequest struct {
	OrderID string `json:"order_id"`
	Notes   string `json:"notes"`
}

type cancelInvoiceRequest struct {
	Reason string `json:"reason"`
}

// InvoiceHandlers exposes the quote and invoice endpoints.
type InvoiceHandlers struct {
	invoices services.InvoiceService
}

// NewInvoiceHandlers constructs a new InvoiceHandlers instance.
func NewInvoiceHandlers(invoices services.InvoiceService) *InvoiceHandlers {
	return &InvoiceHandlers{invoices: invoices}
}

// Routes registers the /invoices endpoints.
func (h *InvoiceHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/quotes", h.createQuote)
	r.Post("/quotes/{quoteID}/convert", h.convertQuote)
	r.Post("/", h.generateInvoice)
	r.Get("/{invoiceID}", h.getInvoice)
	r.Post("/{invoiceID}/cancel", h.cancelInvoice)
}

// createQuote enforces the one-active-quote-per-cart rule before delegating.
func (h *InvoiceHandlers) createQuote(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req createQuoteRequest
	if !decodeJSON(ctx, w, r, maxInvoiceBodySize, &req) {
		return
	}

	active, err := h.invoices.HasActiveQuote(ctx, req.CartID)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	if active {
		httpx.WriteError(ctx, w, httpx.NewError("quote_already_active", "cart already has an active quote", http.StatusConflict))
		return
	}

	quote, err := h.invoices.CreateQuote(ctx, services.CreateQuoteCommand{
		CartID:    req.CartID,
		ValidDays: req.ValidDays,
		Notes:     req.Notes,
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, quote)
}

func (h *InvoiceHandlers) convertQuote(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	order, err := h.invoices.ConvertToOrder(ctx, chi.URLParam(r, "quoteID"))
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, order)
}

func (h *InvoiceHandlers) generateInvoice(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req generateInvoiceRequest
	if !decodeJSON(ctx, w, r, maxInvoiceBodySize, &req) {
		return
	}

	invoice, err := h.invoices.GenerateFromOrder(ctx, services.GenerateInvoiceCommand{
		OrderID: req.OrderID,
		Notes:   req.Notes,
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, invoice)
}

func (h *InvoiceHandlers) getInvoice(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	invoice, err := h.invoices.GetInvoice(ctx, chi.URLParam(r, "invoiceID"))
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, invoice)
}

func (h *InvoiceHandlers) cancelInvoice(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req cancelInvoiceRequest
	if !decodeJSON(ctx, w, r, maxInvoiceBodySize, &req) {
		return
	}

	invoice, err := h.invoices.CancelInvoice(ctx, services.CancelInvoiceCommand{
		InvoiceID: chi.URLParam(r, "invoiceID"),
		Reason:    req.Reason,
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, invoice)
}
