package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"fsanano/pharmacy-storefront/internal/model"
)

type cartView struct {
	Items       []model.CartItem `json:"items"`
	TotalItems  int              `json:"totalItems"`
	TotalAmount decimal.Decimal  `json:"totalAmount"`
	IsEmpty     bool             `json:"isEmpty"`
}

func (h *Handler) cartView() cartView {
	return cartView{
		Items:       h.cart.Items(),
		TotalItems:  h.cart.TotalItems(),
		TotalAmount: h.cart.TotalAmount(),
		IsEmpty:     h.cart.IsEmpty(),
	}
}

func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.cartView())
}

type AddItemRequest struct {
	MedicineID string `json:"medicineId"`
	Quantity   *int   `json:"quantity"` // Optional, defaults to 1
}

// AddCartItem looks the medicine up first so the stock check runs against
// current catalog data.
func (h *Handler) AddCartItem(w http.ResponseWriter, r *http.Request) {
	var req AddItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.MedicineID == "" {
		badRequest(w, "invalid request body")
		return
	}

	quantity := 1
	if req.Quantity != nil {
		quantity = *req.Quantity
	}

	medicine, err := h.api.GetMedicineByID(r.Context(), req.MedicineID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	if err := h.cart.AddItem(r.Context(), *medicine, quantity); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.cartView())
}

type UpdateItemRequest struct {
	Quantity int `json:"quantity"`
}

func (h *Handler) UpdateCartItem(w http.ResponseWriter, r *http.Request) {
	var req UpdateItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid request body")
		return
	}

	if err := h.cart.UpdateQuantity(r.Context(), chi.URLParam(r, "medicineID"), req.Quantity); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.cartView())
}

func (h *Handler) RemoveCartItem(w http.ResponseWriter, r *http.Request) {
	h.cart.RemoveItem(r.Context(), chi.URLParam(r, "medicineID"))
	writeJSON(w, http.StatusOK, h.cartView())
}

func (h *Handler) ClearCart(w http.ResponseWriter, r *http.Request) {
	h.cart.ClearCart(r.Context())
	writeJSON(w, http.StatusOK, h.cartView())
}
