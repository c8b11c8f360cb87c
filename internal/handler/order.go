package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gofrs/uuid"

	"github.com/platepilot/ordering/internal/metrics"
	"github.com/platepilot/ordering/internal/order"
)

// OrderHandler exposes the order service over HTTP.
type OrderHandler struct {
	svc     order.Service
	metrics *metrics.Metrics
}

func NewOrderHandler(svc order.Service, m *metrics.Metrics) *OrderHandler {
	return &OrderHandler{svc: svc, metrics: m}
}

type createOrderRequest struct {
	AddressID     uuid.UUID         `json:"address_id"`
	PaymentMethod string            `json:"payment_method"`
	DeliveryType  string            `json:"delivery_type"`
	Notes         string            `json:"notes"`
	Lines         []createOrderLine `json:"lines"`
}

type createOrderLine struct {
	MenuItemID uuid.UUID   `json:"menu_item_id"`
	Quantity   int         `json:"quantity"`
	Notes      string      `json:"notes"`
	AddonIDs   []uuid.UUID `json:"addon_ids"`
}

// CreateOrder handles POST /orders.
func (h *OrderHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	caller := callerFrom(r)

	lines := make([]order.RequestedLine, 0, len(req.Lines))
	for _, l := range req.Lines {
		lines = append(lines, order.RequestedLine{
			MenuItemID: l.MenuItemID,
			Quantity:   l.Quantity,
			Notes:      l.Notes,
			AddonIDs:   l.AddonIDs,
		})
	}

	o, err := h.svc.CreateOrder(r.Context(), order.CreateOrderInput{
		OwnerID:       caller.ID,
		AddressID:     req.AddressID,
		PaymentMethod: req.PaymentMethod,
		DeliveryType:  req.DeliveryType,
		Notes:         req.Notes,
		Lines:         lines,
	})
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	h.metrics.OrdersCreated.Inc()
	respondWithJSON(w, http.StatusCreated, o)
}

// GetOrder handles GET /orders/{id} and GET /admin/orders/{id}; the
// service applies ownership scoping based on the caller's role.
func (h *OrderHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.FromString(chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid order id")
		return
	}

	o, err := h.svc.GetOrder(r.Context(), id, callerFrom(r))
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, o)
}

// ListOrders handles GET /orders and GET /admin/orders with an optional
// ?status= filter.
func (h *OrderHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	filter := order.ListFilter{Status: order.Status(r.URL.Query().Get("status"))}

	orders, err := h.svc.ListOrders(r.Context(), callerFrom(r), filter)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, orders)
}

// CancelOrder handles POST /orders/{id}/cancel.
func (h *OrderHandler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.FromString(chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid order id")
		return
	}

	o, err := h.svc.Cancel(r.Context(), id, callerFrom(r))
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	h.metrics.StatusTransitions.WithLabelValues(order.StatusCancelled.String()).Inc()
	respondWithJSON(w, http.StatusOK, o)
}

type setStatusRequest struct {
	Status order.Status `json:"status"`
}

// SetStatus handles PATCH /admin/orders/{id}/status.
func (h *OrderHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.FromString(chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid order id")
		return
	}

	var req setStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	o, err := h.svc.SetStatus(r.Context(), id, req.Status, callerFrom(r))
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	h.metrics.StatusTransitions.WithLabelValues(o.Status.String()).Inc()
	respondWithJSON(w, http.StatusOK, o)
}
