package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gofrs/uuid"

	"github.com/platepilot/ordering/internal/metrics"
	"github.com/platepilot/ordering/internal/order"
)

type contextKey string

const callerKey contextKey = "caller"

// Identity headers set by the upstream gateway after authentication. The
// service trusts them; it must never be exposed without that gateway.
const (
	headerUserID   = "X-User-ID"
	headerUserRole = "X-User-Role"
)

// withIdentity extracts the caller identity from gateway headers and
// stores it on the request context. Requests without a valid identity are
// rejected with 401.
func withIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.FromString(r.Header.Get(headerUserID))
		if err != nil || id == uuid.Nil {
			respondWithError(w, http.StatusUnauthorized, "missing or invalid user identity")
			return
		}

		role := order.Role(r.Header.Get(headerUserRole))
		if role != order.RoleCustomer && role != order.RoleAdministrator {
			respondWithError(w, http.StatusUnauthorized, "missing or invalid user role")
			return
		}

		caller := order.Caller{ID: id, Role: role}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), callerKey, caller)))
	})
}

// requireAdmin gates administrator-only routes.
func requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !callerFrom(r).IsAdmin() {
			respondWithError(w, http.StatusForbidden, "administrator role required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func callerFrom(r *http.Request) order.Caller {
	caller, _ := r.Context().Value(callerKey).(order.Caller)
	return caller
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rec *statusRecorder) WriteHeader(code int) {
	rec.status = code
	rec.ResponseWriter.WriteHeader(code)
}

// withMetrics records request counts and latency per route pattern.
func withMetrics(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			start := time.Now()

			next.ServeHTTP(rec, r)

			route := chi.RouteContext(r.Context()).RoutePattern()
			if route == "" {
				route = "unmatched"
			}
			m.HTTPRequests.WithLabelValues(route, strconv.Itoa(rec.status)).Inc()
			m.HTTPLatency.WithLabelValues(route).Observe(time.Since(start).Seconds())
		})
	}
}
