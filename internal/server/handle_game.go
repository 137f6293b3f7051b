package server

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/curry-conqueror/NSTEM-Final/internal/party"
)

// handleStart lets the host begin round 1. The body may carry extra fields to
// set along with the transition; an empty body is fine.
func handleStart(logger *slog.Logger, repo *party.Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var extra party.Updates
		if err := readJSON(r, &extra); err != nil && !errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		p, err := repo.GetParty(r.Context(), partyCode(r))
		if err != nil {
			writeRepoError(w, logger, repo, err)
			return
		}
		if !isHost(r, p) {
			writeError(w, http.StatusForbidden, "only the host can start the game")
			return
		}

		if err := repo.StartGame(r.Context(), p.Code, extra); err != nil {
			writeRepoError(w, logger, repo, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

type PlayAgainResponse struct {
	Code string `json:"code"`
}

func handlePlayAgain(logger *slog.Logger, repo *party.Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := repo.GetParty(r.Context(), partyCode(r))
		if err != nil {
			writeRepoError(w, logger, repo, err)
			return
		}
		sess, ok := memberSession(r, p)
		if !ok || sess.PlayerID != p.HostID {
			writeError(w, http.StatusForbidden, "only the host can start a new party")
			return
		}

		newCode, err := repo.PlayAgain(r.Context(), p.Code)
		if err != nil {
			writeRepoError(w, logger, repo, err)
			return
		}

		moveSession(w, p.Code, newCode, sess)
		writeJSON(w, http.StatusOK, PlayAgainResponse{Code: newCode})
	}
}

// handleFollow moves the caller's session to the party this one redirects
// to after Play Again.
func handleFollow(logger *slog.Logger, repo *party.Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := repo.GetParty(r.Context(), partyCode(r))
		if err != nil {
			writeRepoError(w, logger, repo, err)
			return
		}
		newCode, ok := p.Redirect()
		if !ok {
			writeError(w, http.StatusConflict, "party has not moved")
			return
		}

		if sess, ok := memberSession(r, p); ok {
			moveSession(w, p.Code, newCode, sess)
		}
		writeJSON(w, http.StatusOK, PlayAgainResponse{Code: newCode})
	}
}

type ResultsResponse struct {
	Code      string           `json:"code"`
	Mode      party.Mode       `json:"mode"`
	State     party.State      `json:"state"`
	Standings []party.Standing `json:"standings"`
	Podium    party.Podium     `json:"podium"`
}

func handleResults(logger *slog.Logger, repo *party.Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := repo.GetParty(r.Context(), partyCode(r))
		if err != nil {
			writeRepoError(w, logger, repo, err)
			return
		}

		standings := party.Standings(p)
		writeJSON(w, http.StatusOK, ResultsResponse{
			Code:      p.Code,
			Mode:      p.Mode,
			State:     p.State,
			Standings: standings,
			Podium:    party.NewPodium(standings),
		})
	}
}
