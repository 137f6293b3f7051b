package server

import (
	"net/http"

	"github.com/skip2/go-qrcode"
)

const qrSize = 320

// handleQR renders a PNG QR code of the join link so other devices can scan
// their way into the party.
func handleQR() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		png, err := qrcode.Encode(joinURL(r, partyCode(r)), qrcode.Medium, qrSize)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "qr generation failed")
			return
		}

		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Cache-Control", "public, max-age=86400")
		_, _ = w.Write(png)
	}
}

// joinURL is the SPA join link, respecting TLS and X-Forwarded-Proto.
func joinURL(r *http.Request, code string) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}
	return scheme + "://" + r.Host + "/join/" + code
}
