package server

import (
	"log/slog"
	"net/http"
	"sync"

	"golang.org/x/time/rate"

	"github.com/curry-conqueror/NSTEM-Final/internal/party"
)

type ScanRequest struct {
	TimeTaken float64 `json:"timeTaken"`
	Points    float64 `json:"points"`
}

type ScanResponse struct {
	Recorded bool `json:"recorded"`
}

// scanLimiter throttles scan submissions per party code.
type scanLimiter struct {
	limit rate.Limit
	burst int

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

func newScanLimiter(limit rate.Limit, burst int) *scanLimiter {
	if limit <= 0 {
		limit = rate.Inf
	}
	return &scanLimiter{limit: limit, burst: max(burst, 1), limiters: make(map[string]*rate.Limiter)}
}

func (s *scanLimiter) Allow(code string) bool {
	s.mu.Lock()
	l, ok := s.limiters[code]
	if !ok {
		l = rate.NewLimiter(s.limit, s.burst)
		s.limiters[code] = l
	}
	s.mu.Unlock()
	return l.Allow()
}

// handleScan records a find for the calling player. In team mode the result
// is credited to the player's team.
func handleScan(logger *slog.Logger, repo *party.Repository, limiter *scanLimiter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code := partyCode(r)
		if !limiter.Allow(code) {
			writeError(w, http.StatusTooManyRequests, "too many scans, slow down")
			return
		}

		var req ScanRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.TimeTaken < 0 {
			writeError(w, http.StatusBadRequest, "timeTaken must not be negative")
			return
		}

		p, err := repo.GetParty(r.Context(), code)
		if err != nil {
			writeRepoError(w, logger, repo, err)
			return
		}
		sess, ok := memberSession(r, p)
		if !ok {
			writeError(w, http.StatusForbidden, "join the party before scanning")
			return
		}

		scan := party.Scan{PlayerID: sess.PlayerID, TimeTaken: req.TimeTaken, Points: req.Points}
		if p.Mode == party.ModeTeams {
			scan.TeamKey = p.Players[sess.PlayerID].TeamKey()
			if scan.TeamKey == "" {
				writeError(w, http.StatusConflict, "player has no team")
				return
			}
		}

		recorded, err := repo.RecordScan(r.Context(), code, scan)
		if err != nil {
			writeRepoError(w, logger, repo, err)
			return
		}
		writeJSON(w, http.StatusOK, ScanResponse{Recorded: recorded})
	}
}
