package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/THAITHIENDAYYY/DoAnTotNghiep-sub002/internal/domain/fault"
)

func TestWriteError_StatusMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{name: "validation", err: fault.Validation("bad input"), status: http.StatusBadRequest, code: "validation"},
		{name: "not found", err: fault.NotFound("no such order"), status: http.StatusNotFound, code: "not_found"},
		{name: "state", err: fault.State("wrong status"), status: http.StatusUnprocessableEntity, code: "state"},
		{name: "not applicable", err: fault.NotApplicable("expired"), status: http.StatusUnprocessableEntity, code: "not_applicable"},
		{name: "conflict", err: fault.Conflict("table busy"), status: http.StatusConflict, code: "conflict"},
		{name: "unclassified", err: assert.AnError, status: http.StatusServiceUnavailable, code: "unavailable"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			r := httptest.NewRequest(http.MethodGet, "/", nil)

			writeError(w, r, tt.err)

			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

			var body errorResponse
			require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
			assert.Equal(t, tt.code, body.Code)
			assert.NotEmpty(t, body.Message)
		})
	}
}

func TestWriteError_UnclassifiedHidesDetail(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)

	writeError(w, r, assert.AnError)

	var body errorResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.NotContains(t, body.Message, assert.AnError.Error())
}

func TestDecodeBody_RejectsUnknownFields(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"code":"X","bogus":1}`))

	var req applyDiscountRequest
	ok := decodeBody(w, r, &req)

	assert.False(t, ok)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDecodeBody_MalformedJSON(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{`))

	var req applyDiscountRequest
	ok := decodeBody(w, r, &req)

	assert.False(t, ok)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
