package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/curry-conqueror/NSTEM-Final/internal/kvstore"
	"github.com/curry-conqueror/NSTEM-Final/internal/party"
)

// ErrorResponse is returned for all error responses.
type ErrorResponse struct {
	Error string `json:"error"`
	Hint  string `json:"hint,omitempty"`
}

const (
	msgTryAgain   = "failed, try again"
	localJoinHint = "This server keeps parties on its own disk. Joining from another device only works when the remote store is configured (REMOTE_URL, REMOTE_PROJECT_ID, REMOTE_API_KEY)."
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func readJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

// msgPartyNotFound is the user-facing text for party.ErrNotFound.
const msgPartyNotFound = "Party not found"

func writeNotFound(w http.ResponseWriter, repo *party.Repository) {
	resp := ErrorResponse{Error: msgPartyNotFound}
	if repo.StoreKind() == kvstore.KindLocal {
		resp.Hint = localJoinHint
	}
	writeJSON(w, http.StatusNotFound, resp)
}

// writeRepoError maps repository errors to responses. Anything unexpected is
// logged and reported generically.
func writeRepoError(w http.ResponseWriter, logger *slog.Logger, repo *party.Repository, err error) {
	switch {
	case errors.Is(err, party.ErrNotFound):
		writeNotFound(w, repo)
	case errors.Is(err, party.ErrInvalidConfig), errors.Is(err, party.ErrUnknownTeam):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, party.ErrPlayerNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, party.ErrNotStarted):
		writeError(w, http.StatusConflict, err.Error())
	default:
		logger.Error("party operation failed", "error", err, "transport", errors.Is(err, kvstore.ErrTransport))
		writeError(w, http.StatusInternalServerError, msgTryAgain)
	}
}
