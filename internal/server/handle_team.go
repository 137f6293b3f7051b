package server

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/curry-conqueror/NSTEM-Final/internal/party"
)

// AssignTeamRequest moves a player; an empty team sends them back to the
// unassigned list.
type AssignTeamRequest struct {
	Team string `json:"team"`
}

func handleAssignTeam(logger *slog.Logger, repo *party.Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req AssignTeamRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		p, err := repo.GetParty(r.Context(), partyCode(r))
		if err != nil {
			writeRepoError(w, logger, repo, err)
			return
		}
		if _, ok := memberSession(r, p); !ok {
			writeError(w, http.StatusForbidden, "only party members can assign teams")
			return
		}

		playerID := chi.URLParam(r, "playerID")
		if err := repo.AssignPlayerToTeam(r.Context(), p.Code, playerID, req.Team); err != nil {
			writeRepoError(w, logger, repo, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
