package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gofrs/uuid"

	"github.com/platepilot/ordering/internal/cart"
	"github.com/platepilot/ordering/internal/metrics"
	"github.com/platepilot/ordering/internal/order"
)

// CartHandler exposes the chat front-end's draft carts over HTTP.
type CartHandler struct {
	store   *cart.Store
	svc     order.Service
	metrics *metrics.Metrics
}

func NewCartHandler(store *cart.Store, svc order.Service, m *metrics.Metrics) *CartHandler {
	return &CartHandler{store: store, svc: svc, metrics: m}
}

// GetDraft handles GET /cart/{conversationID}.
func (h *CartHandler) GetDraft(w http.ResponseWriter, r *http.Request) {
	d, err := h.store.Get(chi.URLParam(r, "conversationID"))
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	if d.OwnerID != callerFrom(r).ID {
		respondWithError(w, http.StatusForbidden, "draft cart belongs to another customer")
		return
	}
	respondWithJSON(w, http.StatusOK, d)
}

type addLineRequest struct {
	MenuItemID uuid.UUID   `json:"menu_item_id"`
	Quantity   int         `json:"quantity"`
	Notes      string      `json:"notes"`
	AddonIDs   []uuid.UUID `json:"addon_ids"`
}

// AddLine handles POST /cart/{conversationID}/items.
func (h *CartHandler) AddLine(w http.ResponseWriter, r *http.Request) {
	var req addLineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	d, err := h.store.AddLine(chi.URLParam(r, "conversationID"), callerFrom(r).ID, cart.DraftLine{
		MenuItemID: req.MenuItemID,
		Quantity:   req.Quantity,
		Notes:      req.Notes,
		AddonIDs:   req.AddonIDs,
	})
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, d)
}

// RemoveLine handles DELETE /cart/{conversationID}/items/{menuItemID}.
func (h *CartHandler) RemoveLine(w http.ResponseWriter, r *http.Request) {
	menuItemID, err := uuid.FromString(chi.URLParam(r, "menuItemID"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid menu item id")
		return
	}

	d, err := h.store.RemoveLine(chi.URLParam(r, "conversationID"), callerFrom(r).ID, menuItemID)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, d)
}

// DeleteDraft handles DELETE /cart/{conversationID}.
func (h *CartHandler) DeleteDraft(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "conversationID")

	d, err := h.store.Get(conversationID)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	if d.OwnerID != callerFrom(r).ID {
		respondWithError(w, http.StatusForbidden, "draft cart belongs to another customer")
		return
	}

	h.store.Delete(conversationID)
	w.WriteHeader(http.StatusNoContent)
}

type checkoutRequest struct {
	AddressID     uuid.UUID `json:"address_id"`
	PaymentMethod string    `json:"payment_method"`
	DeliveryType  string    `json:"delivery_type"`
	Notes         string    `json:"notes"`
}

// Checkout handles POST /cart/{conversationID}/checkout: the draft becomes
// a real order and is discarded on success.
func (h *CartHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	o, err := h.store.Checkout(r.Context(), h.svc, chi.URLParam(r, "conversationID"), cart.CheckoutInput{
		OwnerID:       callerFrom(r).ID,
		AddressID:     req.AddressID,
		PaymentMethod: req.PaymentMethod,
		DeliveryType:  req.DeliveryType,
		Notes:         req.Notes,
	})
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	h.metrics.OrdersCreated.Inc()
	respondWithJSON(w, http.StatusCreated, o)
}
