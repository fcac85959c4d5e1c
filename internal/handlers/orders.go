package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/vendorlane/api/internal/domain"
	"github.com/vendorlane/api/internal/platform/httpx"
	"github.com/vendorlane/api/internal/services"
)

const (
	maxOrderBodySize     = 64 * 1024
	defaultOrderListSize = 20
	maxOrderListSize     = 100
)

type createOrderFromCartRequest struct {
	CartID    string `json:"cart_id"`
	StaffNote string `json:"staff_note"`
}

type manualOrderLineRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type createManualOrderRequest struct {
	ClientID  string                   `json:"client_id"`
	Lines     []manualOrderLineRequest `json:"lines"`
	StaffNote string                   `json:"staff_note"`
	CreatedBy string                   `json:"created_by"`
}

type updateOrderStatusRequest struct {
	Status  string `json:"status"`
	ActorID string `json:"actor_id"`
	Reason  string `json:"reason"`
}

type cancelOrderRequest struct {
	Reason  string `json:"reason"`
	ActorID string `json:"actor_id"`
}

// OrderHandlers exposes the order lifecycle endpoints.
type OrderHandlers struct {
	orders services.OrderService
}

// NewOrderHandlers constructs a new OrderHandlers instance.
func NewOrderHandlers(orders services.OrderService) *OrderHandlers {
	return &OrderHandlers{orders: orders}
}

// Routes registers the /orders endpoints.
func (h *OrderHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/", h.listOrders)
	r.Post("/", h.createFromCart)
	r.Post("/manual", h.createManual)
	r.Get("/{orderID}", h.getOrder)
	r.Put("/{orderID}/status", h.updateStatus)
	r.Post("/{orderID}/cancel", h.cancelOrder)
}

func (h *OrderHandlers) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	query := r.URL.Query()

	limit := defaultOrderListSize
	if raw := strings.TrimSpace(query.Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "limit must be a positive integer", http.StatusBadRequest))
			return
		}
		if parsed > maxOrderListSize {
			parsed = maxOrderListSize
		}
		limit = parsed
	}

	filter := services.OrderListFilter{
		ClientID: strings.TrimSpace(query.Get("client_id")),
		Status:   domain.OrderStatus(strings.TrimSpace(query.Get("status"))),
		Limit:    limit,
	}

	orders, err := h.orders.ListOrders(ctx, filter)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"orders": orders})
}

func (h *OrderHandlers) createFromCart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req createOrderFromCartRequest
	if !decodeJSON(ctx, w, r, maxOrderBodySize, &req) {
		return
	}

	order, err := h.orders.CreateFromCart(ctx, services.CreateOrderFromCartCommand{
		CartID:    req.CartID,
		StaffNote: req.StaffNote,
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, order)
}

func (h *OrderHandlers) createManual(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req createManualOrderRequest
	if !decodeJSON(ctx, w, r, maxOrderBodySize, &req) {
		return
	}

	lines := make([]services.ManualOrderLine, 0, len(req.Lines))
	for _, line := range req.Lines {
		lines = append(lines, services.ManualOrderLine{ProductID: line.ProductID, Quantity: line.Quantity})
	}

	order, err := h.orders.CreateManual(ctx, services.CreateManualOrderCommand{
		ClientID:  req.ClientID,
		Lines:     lines,
		StaffNote: req.StaffNote,
		CreatedBy: req.CreatedBy,
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, order)
}

func (h *OrderHandlers) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	order, err := h.orders.GetOrder(ctx, chi.URLParam(r, "orderID"))
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, order)
}

func (h *OrderHandlers) updateStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req updateOrderStatusRequest
	if !decodeJSON(ctx, w, r, maxOrderBodySize, &req) {
		return
	}

	order, err := h.orders.UpdateStatus(ctx, services.OrderStatusCommand{
		OrderID: chi.URLParam(r, "orderID"),
		Status:  domain.OrderStatus(strings.TrimSpace(req.Status)),
		ActorID: req.ActorID,
		Reason:  req.Reason,
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, order)
}

func (h *OrderHandlers) cancelOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req cancelOrderRequest
	if !decodeJSON(ctx, w, r, maxOrderBodySize, &req) {
		return
	}

	order, err := h.orders.Cancel(ctx, services.CancelOrderCommand{
		OrderID: chi.URLParam(r, "orderID"),
		Reason:  req.Reason,
		ActorID: req.ActorID,
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, order)
}
