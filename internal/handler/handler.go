// Package handler exposes the engine's operation surface over HTTP with
// JSON payloads. DTOs are identifier-keyed: responses never embed related
// entity graphs.
package handler

import (
	"net/http"

	"github.com/THAITHIENDAYYY/DoAnTotNghiep-sub002/internal/domain/order"
	"github.com/THAITHIENDAYYY/DoAnTotNghiep-sub002/internal/domain/table"
)

// Handler wires the HTTP routes to the domain services.
type Handler struct {
	orders *order.Service
	seats  *table.Coordinator
	tables table.Repository
}

// New constructs a Handler.
func New(orders *order.Service, seats *table.Coordinator, tables table.Repository) *Handler {
	return &Handler{
		orders: orders,
		seats:  seats,
		tables: tables,
	}
}

// Register mounts the API routes. Mutating operations additionally require
// an operator principal (admin or cashier), enforced by RequireOperator.
func (h *Handler) Register(mux *http.ServeMux) {
	operate := RequireOperator

	mux.Handle("POST /api/orders", operate(http.HandlerFunc(h.createOrder)))
	mux.Handle("POST /api/orders/{id}/status", operate(http.HandlerFunc(h.transitionOrder)))
	mux.Handle("POST /api/orders/{id}/discount", operate(http.HandlerFunc(h.applyDiscount)))
	mux.HandleFunc("GET /api/orders/{id}", h.getOrder)

	mux.Handle("POST /api/table-groups", operate(http.HandlerFunc(h.mergeTables)))
	mux.Handle("POST /api/table-groups/{id}/dissolve", operate(http.HandlerFunc(h.dissolveGroup)))
	mux.HandleFunc("GET /api/tables", h.listTables)
}
