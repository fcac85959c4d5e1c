package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/vendorlane/api/internal/platform/httpx"
	"github.com/vendorlane/api/internal/services"
)

const maxCartBodySize = 16 * 1024

type createCartRequest struct {
	ClientID string `json:"client_id"`
}

type addCartItemRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type updateCartItemRequest struct {
	Quantity int `json:"quantity"`
}

// CartHandlers exposes the cart ledger endpoints.
type CartHandlers struct {
	carts services.CartService
}

// NewCartHandlers constructs a new CartHandlers instance.
func NewCartHandlers(carts services.CartService) *CartHandlers {
	return &CartHandlers{carts: carts}
}

// Routes registers the /carts endpoints.
func (h *CartHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/", h.createCart)
	r.Get("/{cartID}", h.getCart)
	r.Delete("/{cartID}", h.deleteCart)
	r.Get("/{cartID}/total", h.cartTotal)
	r.Post("/{cartID}/items", h.addItem)
	r.Put("/{cartID}/items/{itemID}", h.updateItem)
	r.Delete("/{cartID}/items/{itemID}", h.removeItem)
}

func (h *CartHandlers) createCart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req createCartRequest
	if !decodeJSON(ctx, w, r, maxCartBodySize, &req) {
		return
	}

	cart, err := h.carts.CreateCart(ctx, req.ClientID)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, cart)
}

func (h *CartHandlers) getCart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	cart, err := h.carts.GetCart(ctx, chi.URLParam(r, "cartID"))
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, cart)
}

func (h *CartHandlers) deleteCart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := h.carts.ClearAndDelete(ctx, chi.URLParam(r, "cartID")); err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *CartHandlers) cartTotal(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	total, err := h.carts.Total(ctx, chi.URLParam(r, "cartID"))
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"total": total})
}

func (h *CartHandlers) addItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req addCartItemRequest
	if !decodeJSON(ctx, w, r, maxCartBodySize, &req) {
		return
	}

	cart, err := h.carts.AddItem(ctx, services.AddCartItemCommand{
		CartID:    chi.URLParam(r, "cartID"),
		ProductID: req.ProductID,
		Quantity:  req.Quantity,
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, cart)
}

func (h *CartHandlers) updateItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req updateCartItemRequest
	if !decodeJSON(ctx, w, r, maxCartBodySize, &req) {
		return
	}

	cart, err := h.carts.UpdateQuantity(ctx, services.UpdateCartQuantityCommand{
		CartID:   chi.URLParam(r, "cartID"),
		ItemID:   chi.URLParam(r, "itemID"),
		Quantity: req.Quantity,
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, cart)
}

func (h *CartHandlers) removeItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	cart, err := h.carts.RemoveItem(ctx, chi.URLParam(r, "cartID"), chi.URLParam(r, "itemID"))
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, cart)
}

// decodeJSON reads a bounded JSON body, writing the error response on failure.
func decodeJSON(ctx context.Context, w http.ResponseWriter, r *http.Request, limit int64, dst any) bool {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, limit))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body must be valid JSON", http.StatusBadRequest))
		return false
	}
	return true
}
