package server

import (
	"encoding/json"
	"net/http"

	openapi "github.com/swaggest/openapi-go"
	"github.com/swaggest/openapi-go/openapi3"

	"github.com/curry-conqueror/NSTEM-Final/internal/party"
)

// HealthResponse documents the /healthz body: one status per dependency.
type HealthResponse map[string]struct {
	Status string `json:"status"`
	Kind   string `json:"kind,omitempty"`
}

type PartyPathParams struct {
	Code string `path:"code" description:"Six character party code, case-insensitive."`
}

type AssignTeamParams struct {
	Code     string `path:"code"`
	PlayerID string `path:"playerID"`
	Team     string `json:"team"`
}

type JoinParams struct {
	Code       string `path:"code"`
	PlayerName string `json:"playerName"`
}

type ScanParams struct {
	Code      string  `path:"code"`
	TimeTaken float64 `json:"timeTaken"`
	Points    float64 `json:"points"`
}

func newOpenAPISpec() *openapi3.Spec {
	r := openapi3.NewReflector()
	r.Spec.Info.Title = "Party API"
	r.Spec.Info.Version = "0.1.0"
	r.Spec.Info.WithDescription("Lobby, team and scan synchronisation for the party game.")

	// GET /healthz
	getHealthz, _ := r.NewOperationContext(http.MethodGet, "/healthz")
	getHealthz.SetSummary("Health check")
	getHealthz.SetDescription("Reports whether the party store is reachable.")
	getHealthz.AddRespStructure(HealthResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	getHealthz.AddRespStructure(HealthResponse{}, openapi.WithHTTPStatus(http.StatusServiceUnavailable))
	_ = r.AddOperation(getHealthz)

	// POST /api/parties
	create, _ := r.NewOperationContext(http.MethodPost, "/api/parties")
	create.SetSummary("Create party")
	create.SetDescription("Creates a lobby with the caller as host. Sets the party_{code} session cookie.")
	create.AddReqStructure(CreatePartyRequest{})
	create.AddRespStructure(CreatePartyResponse{}, openapi.WithHTTPStatus(http.StatusCreated))
	create.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	_ = r.AddOperation(create)

	// GET /api/parties/{code}
	get, _ := r.NewOperationContext(http.MethodGet, "/api/parties/{code}")
	get.SetSummary("Get party")
	get.AddReqStructure(PartyPathParams{})
	get.AddRespStructure(party.Party{}, openapi.WithHTTPStatus(http.StatusOK))
	get.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	_ = r.AddOperation(get)

	// PATCH /api/parties/{code}
	update, _ := r.NewOperationContext(http.MethodPatch, "/api/parties/{code}")
	update.SetSummary("Update party fields")
	update.SetDescription("Merges top-level fields such as state and currentRound. code, hostId and mode are immutable. Members only.")
	update.AddReqStructure(PartyPathParams{})
	update.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusNoContent))
	update.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	update.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusForbidden))
	_ = r.AddOperation(update)

	// POST /api/parties/{code}/join
	join, _ := r.NewOperationContext(http.MethodPost, "/api/parties/{code}/join")
	join.SetSummary("Join party")
	join.SetDescription("Adds a player to the unassigned list. The 404 body carries a hint when the server runs on its local store.")
	join.AddReqStructure(JoinParams{})
	join.AddRespStructure(JoinResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	join.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	join.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	_ = r.AddOperation(join)

	// PUT /api/parties/{code}/players/{playerID}/team
	assign, _ := r.NewOperationContext(http.MethodPut, "/api/parties/{code}/players/{playerID}/team")
	assign.SetSummary("Assign team")
	assign.SetDescription("Moves a player to a team, or back to unassigned with an empty team.")
	assign.AddReqStructure(AssignTeamParams{})
	assign.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusNoContent))
	assign.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	assign.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	_ = r.AddOperation(assign)

	// POST /api/parties/{code}/start
	start, _ := r.NewOperationContext(http.MethodPost, "/api/parties/{code}/start")
	start.SetSummary("Start game")
	start.SetDescription("Host only. Moves the party to the round 1 countdown.")
	start.AddReqStructure(PartyPathParams{})
	start.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusNoContent))
	start.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusForbidden))
	_ = r.AddOperation(start)

	// POST /api/parties/{code}/scans
	scan, _ := r.NewOperationContext(http.MethodPost, "/api/parties/{code}/scans")
	scan.SetSummary("Record scan")
	scan.SetDescription("Records a find for the current round. Teams keep their fastest scan.")
	scan.AddReqStructure(ScanParams{})
	scan.AddRespStructure(ScanResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	scan.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusConflict))
	scan.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusTooManyRequests))
	_ = r.AddOperation(scan)

	// POST /api/parties/{code}/play-again
	again, _ := r.NewOperationContext(http.MethodPost, "/api/parties/{code}/play-again")
	again.SetSummary("Play again")
	again.SetDescription("Host only. Opens a new lobby with the same roster and redirects the old party to it.")
	again.AddReqStructure(PartyPathParams{})
	again.AddRespStructure(PlayAgainResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	again.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusForbidden))
	_ = r.AddOperation(again)

	// POST /api/parties/{code}/follow
	follow, _ := r.NewOperationContext(http.MethodPost, "/api/parties/{code}/follow")
	follow.SetSummary("Follow redirect")
	follow.SetDescription("Moves the caller's session cookie to the party this one redirects to.")
	follow.AddReqStructure(PartyPathParams{})
	follow.AddRespStructure(PlayAgainResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	follow.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusConflict))
	_ = r.AddOperation(follow)

	// GET /api/parties/{code}/results
	results, _ := r.NewOperationContext(http.MethodGet, "/api/parties/{code}/results")
	results.SetSummary("Standings")
	results.AddReqStructure(PartyPathParams{})
	results.AddRespStructure(ResultsResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	results.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	_ = r.AddOperation(results)

	// GET /api/parties/{code}/events
	events, _ := r.NewOperationContext(http.MethodGet, "/api/parties/{code}/events")
	events.SetSummary("SSE party feed")
	events.SetDescription("Server-Sent Events of party snapshots. Event names: snapshot, redirect, missing.")
	events.AddReqStructure(PartyPathParams{})
	events.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusOK),
		openapi.WithContentType("text/event-stream"))
	_ = r.AddOperation(events)

	// GET /api/parties/{code}/ws
	ws, _ := r.NewOperationContext(http.MethodGet, "/api/parties/{code}/ws")
	ws.SetSummary("WebSocket party feed")
	ws.SetDescription("Upgrades to a WebSocket that pushes the same events as the SSE feed.")
	ws.AddReqStructure(PartyPathParams{})
	ws.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusSwitchingProtocols),
		openapi.WithContentType("text/plain"))
	_ = r.AddOperation(ws)

	// GET /api/parties/{code}/qr
	qr, _ := r.NewOperationContext(http.MethodGet, "/api/parties/{code}/qr")
	qr.SetSummary("Join QR code")
	qr.AddReqStructure(PartyPathParams{})
	qr.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusOK),
		openapi.WithContentType("image/png"))
	_ = r.AddOperation(qr)

	return r.Spec
}

func handleOpenAPI() http.HandlerFunc {
	spec := newOpenAPISpec()
	data, _ := json.MarshalIndent(spec, "", "  ")

	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
	}
}
