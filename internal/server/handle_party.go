package server

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/curry-conqueror/NSTEM-Final/internal/party"
)

type CreatePartyRequest struct {
	HostName     string     `json:"hostName"`
	Store        string     `json:"store"`
	Categories   []string   `json:"categories"`
	Mode         party.Mode `json:"mode"`
	Rounds       int        `json:"rounds"`
	TimePerRound int        `json:"timePerRound"`
	NumTeams     int        `json:"numTeams"`
}

type CreatePartyResponse struct {
	Code   string      `json:"code"`
	HostID string      `json:"hostId"`
	Party  party.Party `json:"party"`
}

func handleCreateParty(logger *slog.Logger, repo *party.Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreatePartyRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		created, err := repo.CreateParty(r.Context(), party.Config{
			HostName:     strings.TrimSpace(req.HostName),
			Store:        req.Store,
			Categories:   req.Categories,
			Mode:         req.Mode,
			Rounds:       req.Rounds,
			TimePerRound: req.TimePerRound,
			NumTeams:     req.NumTeams,
		})
		if err != nil {
			writeRepoError(w, logger, repo, err)
			return
		}

		host := created.Party.Players[created.HostID]
		setSession(w, created.Code, Session{PlayerID: host.ID, PlayerName: host.Name, IsHost: true})
		writeJSON(w, http.StatusCreated, CreatePartyResponse{
			Code:   created.Code,
			HostID: created.HostID,
			Party:  created.Party,
		})
	}
}

func handleGetParty(logger *slog.Logger, repo *party.Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := repo.GetParty(r.Context(), partyCode(r))
		if err != nil {
			writeRepoError(w, logger, repo, err)
			return
		}
		writeJSON(w, http.StatusOK, p)
	}
}

// handleUpdateParty applies a patch of top-level fields sent by a member,
// such as the playing and results transitions.
func handleUpdateParty(logger *slog.Logger, repo *party.Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var updates party.Updates
		if err := readJSON(r, &updates); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		p, err := repo.GetParty(r.Context(), partyCode(r))
		if err != nil {
			writeRepoError(w, logger, repo, err)
			return
		}
		if _, ok := memberSession(r, p); !ok {
			writeError(w, http.StatusForbidden, "only party members can update the party")
			return
		}

		if err := repo.UpdateParty(r.Context(), p.Code, updates); err != nil {
			writeRepoError(w, logger, repo, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

type JoinRequest struct {
	PlayerName string `json:"playerName"`
}

type JoinResponse struct {
	PlayerID string      `json:"playerId"`
	Party    party.Party `json:"party"`
}

func handleJoin(logger *slog.Logger, repo *party.Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req JoinRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		req.PlayerName = strings.TrimSpace(req.PlayerName)
		if req.PlayerName == "" {
			writeError(w, http.StatusBadRequest, "playerName is required")
			return
		}

		code := partyCode(r)
		joined, err := repo.JoinParty(r.Context(), code, req.PlayerName)
		if err != nil {
			writeRepoError(w, logger, repo, err)
			return
		}

		setSession(w, code, Session{PlayerID: joined.PlayerID, PlayerName: req.PlayerName})
		writeJSON(w, http.StatusOK, JoinResponse{
			PlayerID: joined.PlayerID,
			Party:    joined.Party,
		})
	}
}
