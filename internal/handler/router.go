package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/platepilot/ordering/internal/cart"
	"github.com/platepilot/ordering/internal/metrics"
	"github.com/platepilot/ordering/internal/order"
)

// NewRouter wires the HTTP surface: customer order routes, administrator
// routes, draft-cart routes for the chat front-end, plus health and
// metrics endpoints.
func NewRouter(svc order.Service, carts *cart.Store, m *metrics.Metrics) *chi.Mux {
	orders := NewOrderHandler(svc, m)
	drafts := NewCartHandler(carts, svc, m)

	r := chi.NewRouter()
	r.Use(withMetrics(m))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Group(func(r chi.Router) {
		r.Use(withIdentity)

		r.Post("/orders", orders.CreateOrder)
		r.Get("/orders", orders.ListOrders)
		r.Get("/orders/{id}", orders.GetOrder)
		r.Post("/orders/{id}/cancel", orders.CancelOrder)

		r.Route("/admin/orders", func(r chi.Router) {
			r.Use(requireAdmin)
			r.Get("/", orders.ListOrders)
			r.Get("/{id}", orders.GetOrder)
			r.Patch("/{id}/status", orders.SetStatus)
		})

		r.Route("/cart/{conversationID}", func(r chi.Router) {
			r.Get("/", drafts.GetDraft)
			r.Delete("/", drafts.DeleteDraft)
			r.Post("/items", drafts.AddLine)
			r.Delete("/items/{menuItemID}", drafts.RemoveLine)
			r.Post("/checkout", drafts.Checkout)
		})
	})

	return r
}
