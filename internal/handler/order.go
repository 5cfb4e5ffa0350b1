package handler

import (
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/THAITHIENDAYYY/DoAnTotNghiep-sub002/internal/domain/auth"
	"github.com/THAITHIENDAYYY/DoAnTotNghiep-sub002/internal/domain/order"
)

type orderItemRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type createOrderRequest struct {
	CustomerID   string             `json:"customer_id"`
	Channel      string             `json:"channel"`
	TableID      string             `json:"table_id,omitempty"`
	TableGroupID string             `json:"table_group_id,omitempty"`
	EmployeeID   string             `json:"employee_id,omitempty"`
	DiscountCode string             `json:"discount_code,omitempty"`
	Items        []orderItemRequest `json:"items"`
}

type transitionRequest struct {
	Status string `json:"status"`
}

type applyDiscountRequest struct {
	Code string `json:"code"`
}

type orderItemResponse struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	LineTotal decimal.Decimal `json:"line_total"`
}

type orderResponse struct {
	ID             string              `json:"id"`
	Number         string              `json:"number"`
	Status         string              `json:"status"`
	Channel        string              `json:"channel"`
	CustomerID     string              `json:"customer_id"`
	EmployeeID     string              `json:"employee_id,omitempty"`
	TableID        string              `json:"table_id,omitempty"`
	TableGroupID   string              `json:"table_group_id,omitempty"`
	DiscountCode   string              `json:"discount_code,omitempty"`
	Subtotal       decimal.Decimal     `json:"subtotal"`
	Tax            decimal.Decimal     `json:"tax"`
	DeliveryFee    decimal.Decimal     `json:"delivery_fee"`
	DiscountAmount decimal.Decimal     `json:"discount_amount"`
	Total          decimal.Decimal     `json:"total"`
	Items          []orderItemResponse `json:"items"`
	CreatedAt      time.Time           `json:"created_at"`
	ConfirmedAt    *time.Time          `json:"confirmed_at,omitempty"`
	PreparingAt    *time.Time          `json:"preparing_at,omitempty"`
	ReadyAt        *time.Time          `json:"ready_at,omitempty"`
	DeliveredAt    *time.Time          `json:"delivered_at,omitempty"`
	CancelledAt    *time.Time          `json:"cancelled_at,omitempty"`
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if !decodeBody(w, r, &req) {
		return
	}

	items := make([]order.ItemRequest, len(req.Items))
	for i, it := range req.Items {
		items[i] = order.ItemRequest{ProductID: it.ProductID, Quantity: it.Quantity}
	}

	// When the caller does not name an acting employee, the one linked to
	// the API key (if any) acts.
	employeeID := req.EmployeeID
	if employeeID == "" {
		if p, ok := auth.PrincipalFrom(r.Context()); ok {
			employeeID = p.EmployeeID
		}
	}

	o, err := h.orders.Create(r.Context(), order.CreateRequest{
		CustomerID:   req.CustomerID,
		Channel:      order.Channel(req.Channel),
		TableID:      req.TableID,
		TableGroupID: req.TableGroupID,
		EmployeeID:   employeeID,
		DiscountCode: req.DiscountCode,
		Items:        items,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toOrderResponse(o))
}

func (h *Handler) transitionOrder(w http.ResponseWriter, r *http.Request) {
	var req transitionRequest
	if !decodeBody(w, r, &req) {
		return
	}

	o, err := h.orders.Transition(r.Context(), r.PathValue("id"), order.Status(req.Status))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(o))
}

func (h *Handler) applyDiscount(w http.ResponseWriter, r *http.Request) {
	var req applyDiscountRequest
	if !decodeBody(w, r, &req) {
		return
	}

	o, err := h.orders.ApplyDiscount(r.Context(), r.PathValue("id"), req.Code)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(o))
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(o))
}

func toOrderResponse(o *order.Order) orderResponse {
	items := make([]orderItemResponse, len(o.Items))
	for i, it := range o.Items {
		items[i] = orderItemResponse{
			ProductID: it.ProductID,
			Name:      it.Name,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
			LineTotal: it.LineTotal,
		}
	}
	return orderResponse{
		ID:             o.ID,
		Number:         o.Number,
		Status:         string(o.Status),
		Channel:        string(o.Channel),
		CustomerID:     o.CustomerID,
		EmployeeID:     o.EmployeeID,
		TableID:        o.TableID,
		TableGroupID:   o.TableGroupID,
		DiscountCode:   o.DiscountCode,
		Subtotal:       o.Subtotal,
		Tax:            o.Tax,
		DeliveryFee:    o.DeliveryFee,
		DiscountAmount: o.DiscountAmount,
		Total:          o.Total,
		Items:          items,
		CreatedAt:      o.CreatedAt,
		ConfirmedAt:    o.ConfirmedAt,
		PreparingAt:    o.PreparingAt,
		ReadyAt:        o.ReadyAt,
		DeliveredAt:    o.DeliveredAt,
		CancelledAt:    o.CancelledAt,
	}
}
