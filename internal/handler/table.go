package handler

import (
	"net/http"
	"time"

	"github.com/THAITHIENDAYYY/DoAnTotNghiep-sub002/internal/domain/table"
)

type mergeTablesRequest struct {
	Name     string   `json:"name"`
	TableIDs []string `json:"table_ids"`
}

type tableGroupResponse struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Status      string     `json:"status"`
	TableIDs    []string   `json:"table_ids"`
	CreatedAt   time.Time  `json:"created_at"`
	DissolvedAt *time.Time `json:"dissolved_at,omitempty"`
}

type tableResponse struct {
	ID     string `json:"id"`
	Number int    `json:"number"`
	AreaID string `json:"area_id,omitempty"`
	Status string `json:"status"`
}

func (h *Handler) mergeTables(w http.ResponseWriter, r *http.Request) {
	var req mergeTablesRequest
	if !decodeBody(w, r, &req) {
		return
	}

	g, err := h.seats.MergeTables(r.Context(), req.TableIDs, req.Name)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toGroupResponse(g))
}

func (h *Handler) dissolveGroup(w http.ResponseWriter, r *http.Request) {
	if err := h.seats.DissolveGroup(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listTables(w http.ResponseWriter, r *http.Request) {
	tables, err := h.tables.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp := make([]tableResponse, len(tables))
	for i, t := range tables {
		resp[i] = tableResponse{
			ID:     t.ID,
			Number: t.Number,
			AreaID: t.AreaID,
			Status: string(t.Status),
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func toGroupResponse(g *table.Group) tableGroupResponse {
	return tableGroupResponse{
		ID:          g.ID,
		Name:        g.Name,
		Status:      string(g.Status),
		TableIDs:    g.TableIDs,
		CreatedAt:   g.CreatedAt,
		DissolvedAt: g.DissolvedAt,
	}
}
