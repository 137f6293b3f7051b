package server

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/curry-conqueror/NSTEM-Final/internal/party"
)

// handleEvents streams party snapshots as Server-Sent Events. The event name
// is the PartyEvent type.
func handleEvents(logger *slog.Logger, repo *party.Repository, broker *Broker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code := partyCode(r)
		if _, err := repo.GetParty(r.Context(), code); err != nil {
			writeRepoError(w, logger, repo, err)
			return
		}

		flusher, ok := w.(http.Flusher)
		if !ok {
			writeError(w, http.StatusInternalServerError, "streaming not supported")
			return
		}

		ch, err := broker.Subscribe(code)
		if err != nil {
			writeRepoError(w, logger, repo, err)
			return
		}
		defer broker.Unsubscribe(code, ch)

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Accel-Buffering", "no")
		flusher.Flush()

		ping := time.NewTicker(30 * time.Second)
		defer ping.Stop()

		for {
			select {
			case <-r.Context().Done():
				return
			case data, ok := <-ch:
				if !ok {
					return
				}
				fmt.Fprintf(w, "event: %s\ndata: %s\n\n", eventType(data), data)
				flusher.Flush()
			case <-ping.C:
				fmt.Fprintf(w, ": ping\n\n")
				flusher.Flush()
			}
		}
	}
}
