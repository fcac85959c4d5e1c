package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/vendorlane/api/internal/platform/httpx"
	"github.com/vendorlane/api/internal/services"
)

// statusMapping pairs a service sentinel with its HTTP representation.
type statusMapping struct {
	sentinel error
	code     string
	status   int
}

var serviceErrorMappings = []statusMapping{
	{services.ErrCartInvalidInput, "invalid_request", http.StatusBadRequest},
	{services.ErrCartClientNotFound, "client_not_found", http.StatusNotFound},
	{services.ErrCartNotFound, "cart_not_found", http.StatusNotFound},
	{services.ErrCartConflict, "cart_conflict", http.StatusConflict},
	{services.ErrCartUnavailable, "cart_unavailable", http.StatusServiceUnavailable},

	{services.ErrPriceInvalidInput, "invalid_request", http.StatusBadRequest},
	{services.ErrPriceNotFound, "price_not_found", http.StatusNotFound},
	{services.ErrPriceUnavailable, "pricing_unavailable", http.StatusServiceUnavailable},

	{services.ErrInvoiceInvalidInput, "invalid_request", http.StatusBadRequest},
	{services.ErrCartEmpty, "cart_empty", http.StatusUnprocessableEntity},
	{services.ErrQuoteMissingContact, "client_contact_missing", http.StatusUnprocessableEntity},
	{services.ErrInvoiceNotAQuote, "not_a_quote", http.StatusConflict},
	{services.ErrQuoteAlreadyConverted, "quote_already_converted", http.StatusConflict},
	{services.ErrQuoteExpired, "quote_expired", http.StatusConflict},
	{services.ErrOrderDuplicateInvoice, "order_already_invoiced", http.StatusConflict},
	{services.ErrInvoiceNotCancellable, "invoice_not_cancellable", http.StatusConflict},
	{services.ErrInvoiceNotFound, "invoice_not_found", http.StatusNotFound},
	{services.ErrInvoiceConflict, "invoice_conflict", http.StatusConflict},
	{services.ErrInvoiceUnavailable, "invoice_unavailable", http.StatusServiceUnavailable},

	{services.ErrOrderInvalidInput, "invalid_request", http.StatusBadRequest},
	{services.ErrOrderCartEmpty, "cart_empty", http.StatusUnprocessableEntity},
	{services.ErrOrderCancelReasonRequired, "cancel_reason_required", http.StatusBadRequest},
	{services.ErrOrderTerminal, "order_terminal", http.StatusConflict},
	{services.ErrOrderInvalidTransition, "invalid_transition", http.StatusConflict},
	{services.ErrOrderNoPriceForTier, "no_price_for_tier", http.StatusUnprocessableEntity},
	{services.ErrOrderNotFound, "order_not_found", http.StatusNotFound},
	{services.ErrOrderConflict, "order_conflict", http.StatusConflict},
	{services.ErrOrderUnavailable, "order_unavailable", http.StatusServiceUnavailable},

	{services.ErrVendorInvalidInput, "invalid_request", http.StatusBadRequest},
	{services.ErrVendorCompanyInactive, "company_inactive", http.StatusConflict},
	{services.ErrVendorNotFound, "company_not_found", http.StatusNotFound},
	{services.ErrVendorConflict, "company_conflict", http.StatusConflict},
	{services.ErrVendorUnavailable, "vendor_unavailable", http.StatusServiceUnavailable},

	{services.ErrNotificationInvalidInput, "invalid_request", http.StatusBadRequest},
	{services.ErrNotificationInvalidState, "notification_invalid_state", http.StatusConflict},
	{services.ErrNotificationNotFound, "notification_not_found", http.StatusNotFound},
	{services.ErrNotificationConflict, "notification_conflict", http.StatusConflict},
	{services.ErrNotificationUnavailable, "notification_unavailable", http.StatusServiceUnavailable},

	{services.ErrCounterInvalidInput, "invalid_request", http.StatusBadRequest},
}

// writeServiceError maps service sentinels to the JSON error envelope.
// Unmapped errors become opaque 500s so internals never leak to clients.
func writeServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	for _, mapping := range serviceErrorMappings {
		if errors.Is(err, mapping.sentinel) {
			httpx.WriteError(ctx, w, httpx.NewError(mapping.code, err.Error(), mapping.status))
			return
		}
	}
	httpx.WriteError(ctx, w, httpx.NewError("internal_server_error", "internal server error", http.StatusInternalServerError))
}
