package server

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/curry-conqueror/NSTEM-Final/internal/party"
)

type ctxKey int

const ctxKeyCode ctxKey = iota

// partyMiddleware stores the normalized {code} in the request context.
// Codes that cannot exist are answered with 404 right away.
func partyMiddleware(repo *party.Repository) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			code := party.NormalizeCode(chi.URLParam(r, "code"))
			if !party.ValidCode(code) {
				writeNotFound(w, repo)
				return
			}

			ctx := context.WithValue(r.Context(), ctxKeyCode, code)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func partyCode(r *http.Request) string {
	return r.Context().Value(ctxKeyCode).(string)
}
