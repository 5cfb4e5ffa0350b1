package handler

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/http"

	"github.com/THAITHIENDAYYY/DoAnTotNghiep-sub002/internal/domain/auth"
)

// Security authenticates requests via HMAC-SHA256 hashed API keys and puts
// the resulting principal in the request context. The key travels in the
// api_key header.
func Security(apikeys auth.Repository, pepper []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("api_key")
			if key == "" {
				unauthorized(w)
				return
			}

			mac := hmac.New(sha256.New, pepper)
			mac.Write([]byte(key))
			hash := mac.Sum(nil)

			info, err := apikeys.FindByHash(r.Context(), hex.EncodeToString(hash))
			if err != nil {
				unauthorized(w)
				return
			}

			// Constant-time comparison guards against timing side-channels
			// even though the lookup already succeeded.
			stored, err := hex.DecodeString(info.KeyHash)
			if err != nil || subtle.ConstantTimeCompare(hash, stored) != 1 {
				unauthorized(w)
				return
			}

			ctx := auth.WithPrincipal(r.Context(), auth.Principal{
				KeyID:      info.ID,
				Role:       info.Role,
				EmployeeID: info.EmployeeID,
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireOperator rejects principals whose role may not invoke the mutating
// operations.
func RequireOperator(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := auth.PrincipalFrom(r.Context())
		if !ok {
			unauthorized(w)
			return
		}
		if !p.CanOperate() {
			writeJSON(w, http.StatusForbidden, errorResponse{
				Code:    "forbidden",
				Message: "role " + string(p.Role) + " may not perform this operation",
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func unauthorized(w http.ResponseWriter) {
	writeJSON(w, http.StatusUnauthorized, errorResponse{
		Code:    "unauthorized",
		Message: "a valid api_key header is required",
	})
}
