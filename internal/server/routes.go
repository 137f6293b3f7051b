package server

import (
	"log/slog"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/swaggest/swgui/v5emb"
)

func addRoutes(r chi.Router, logger *slog.Logger, deps Deps, broker *Broker) {
	repo := deps.Repo
	scans := newScanLimiter(deps.ScanRate, deps.ScanBurst)

	r.Get("/openapi.json", handleOpenAPI())
	r.Mount("/docs", v5emb.New("Party API", "/openapi.json", "/docs"))

	r.Post("/api/parties", handleCreateParty(logger, repo))

	// {code} is normalized and validated by partyMiddleware.
	r.Route("/api/parties/{code}", func(r chi.Router) {
		r.Use(partyMiddleware(repo))
		r.Get("/", handleGetParty(logger, repo))
		r.Patch("/", handleUpdateParty(logger, repo))
		r.Post("/join", handleJoin(logger, repo))
		r.Put("/players/{playerID}/team", handleAssignTeam(logger, repo))
		r.Post("/start", handleStart(logger, repo))
		r.Post("/scans", handleScan(logger, repo, scans))
		r.Post("/play-again", handlePlayAgain(logger, repo))
		r.Post("/follow", handleFollow(logger, repo))
		r.Get("/results", handleResults(logger, repo))
		r.Get("/events", handleEvents(logger, repo, broker))
		r.Get("/ws", handleWS(logger, repo, broker))
		r.Get("/qr", handleQR())
	})

	if deps.SPADir != "" {
		if info, err := os.Stat(deps.SPADir); err == nil && info.IsDir() {
			logger.Info("serving SPA", "dir", deps.SPADir)
			r.NotFound(handleSPA(deps.SPADir))
		}
	}
}
