package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/THAITHIENDAYYY/DoAnTotNghiep-sub002/internal/domain/fault"
)

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps the domain error taxonomy onto HTTP statuses. Unclassified
// errors are treated as store unavailability: logged and surfaced as 503 so
// the client retries with backoff.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := fault.KindOf(err)

	var status int
	switch kind {
	case fault.KindValidation:
		status = http.StatusBadRequest
	case fault.KindNotFound:
		status = http.StatusNotFound
	case fault.KindState, fault.KindNotApplicable:
		status = http.StatusUnprocessableEntity
	case fault.KindConflict:
		status = http.StatusConflict
	default:
		zctx.From(r.Context()).Error("request failed", zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{
			Code:    "unavailable",
			Message: "service temporarily unavailable",
		})
		return
	}

	writeJSON(w, status, errorResponse{Code: kind.String(), Message: err.Error()})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, r, fault.Validation("malformed request body: %s", err))
		return false
	}
	return true
}
