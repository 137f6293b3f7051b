package party

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/curry-conqueror/NSTEM-Final/internal/kvstore"
)

const (
	defaultHostName = "Host"
	defaultNumTeams = 2
	defaultCategory = "All Categories"
)

// immutableFields cannot be changed through UpdateParty or StartGame.
var immutableFields = map[string]bool{"code": true, "hostId": true, "mode": true}

// Config is the host's choice when creating a party.
type Config struct {
	HostID       string
	HostName     string
	Store        string
	Categories   []string
	Mode         Mode
	Rounds       int
	TimePerRound int
	NumTeams     int
}

func (c Config) withDefaults() Config {
	if c.HostName == "" {
		c.HostName = defaultHostName
	}
	if len(c.Categories) == 0 {
		c.Categories = []string{defaultCategory}
	} else {
		c.Categories = slices.Clone(c.Categories)
	}
	if c.NumTeams == 0 {
		c.NumTeams = defaultNumTeams
	}
	return c
}

func (c Config) validate() error {
	switch {
	case !c.Mode.Valid():
		return fmt.Errorf("%w: mode must be solo or teams, got %q", ErrInvalidConfig, c.Mode)
	case c.Rounds < 1:
		return fmt.Errorf("%w: rounds must be at least 1", ErrInvalidConfig)
	case c.NumTeams < 1:
		return fmt.Errorf("%w: numTeams must be at least 1", ErrInvalidConfig)
	case c.TimePerRound < 0:
		return fmt.Errorf("%w: timePerRound must not be negative", ErrInvalidConfig)
	}
	return nil
}

type Created struct {
	Code   string
	Party  Party
	HostID string
}

type Joined struct {
	PlayerID string
	Party    Party
}

// Scan is one find reported by a player. TeamKey is set in team mode.
type Scan struct {
	PlayerID  string
	TimeTaken float64
	Points    float64
	TeamKey   string
}

// Repository performs every party operation as a read of parties/{code}
// followed by a write or patch. The pair is not atomic: two concurrent
// operations on the same party may lose one update.
type Repository struct {
	store  kvstore.Store
	ids    IDGenerator
	now    func() time.Time
	logger *slog.Logger
}

type Option func(*Repository)

func WithIDs(ids IDGenerator) Option {
	return func(r *Repository) { r.ids = ids }
}

func WithClock(now func() time.Time) Option {
	return func(r *Repository) { r.now = now }
}

func WithLogger(logger *slog.Logger) Option {
	return func(r *Repository) { r.logger = logger }
}

func NewRepository(store kvstore.Store, opts ...Option) *Repository {
	r := &Repository{
		store:  store,
		ids:    NewSeededIDs(),
		now:    time.Now,
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// StoreKind reports which backend the repository runs on.
func (r *Repository) StoreKind() string {
	return r.store.Kind()
}

// normalize returns the stored form of code. Codes that cannot exist are
// reported as ErrNotFound.
func normalize(code string) (string, error) {
	code = NormalizeCode(code)
	if !ValidCode(code) {
		return "", ErrNotFound
	}
	return code, nil
}

func (r *Repository) load(ctx context.Context, code string) (Party, error) {
	raw, err := r.store.Read(ctx, partyPath(code))
	if errors.Is(err, kvstore.ErrNotFound) {
		return Party{}, ErrNotFound
	}
	if err != nil {
		return Party{}, fmt.Errorf("reading party %s: %w", code, err)
	}
	var p Party
	if err := json.Unmarshal(raw, &p); err != nil {
		return Party{}, fmt.Errorf("decoding party %s: %w", code, err)
	}
	return p, nil
}

func (r *Repository) patch(ctx context.Context, code string, fields map[string]any) error {
	if err := r.store.Patch(ctx, partyPath(code), fields); err != nil {
		return fmt.Errorf("updating party %s: %w", code, err)
	}
	return nil
}

func (r *Repository) CreateParty(ctx context.Context, cfg Config) (Created, error) {
	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return Created{}, err
	}

	code := r.ids.PartyCode()
	hostID := cfg.HostID
	if hostID == "" {
		hostID = r.ids.PlayerID()
	}

	p := Party{
		Code:         code,
		HostID:       hostID,
		Store:        cfg.Store,
		Categories:   cfg.Categories,
		Mode:         cfg.Mode,
		Rounds:       cfg.Rounds,
		TimePerRound: cfg.TimePerRound,
		NumTeams:     cfg.NumTeams,
		Players: map[string]Player{
			hostID: {ID: hostID, Name: cfg.HostName},
		},
		Teams:        newTeams(cfg.Mode, cfg.NumTeams),
		Unassigned:   []string{hostID},
		State:        StateLobby,
		CurrentRound: 0,
		RoundResults: map[string]map[string]Result{},
		GameResults:  map[string]any{},
		CreatedAt:    r.now().UnixMilli(),
	}

	if err := r.store.Write(ctx, partyPath(code), p); err != nil {
		return Created{}, fmt.Errorf("creating party %s: %w", code, err)
	}
	r.logger.Info("party created", "code", code, "mode", p.Mode, "host_id", hostID)
	return Created{Code: code, Party: p, HostID: hostID}, nil
}

func newTeams(mode Mode, n int) map[string][]string {
	if mode != ModeTeams {
		return nil
	}
	teams := make(map[string][]string, n)
	for i := 1; i <= n; i++ {
		teams[TeamKey(i)] = []string{}
	}
	return teams
}

// JoinParty adds a new player to the party's unassigned list.
func (r *Repository) JoinParty(ctx context.Context, code, playerName string) (Joined, error) {
	code, err := normalize(code)
	if err != nil {
		return Joined{}, err
	}
	p, err := r.load(ctx, code)
	if err != nil {
		return Joined{}, err
	}

	playerID := r.ids.PlayerID()
	player := Player{ID: playerID, Name: playerName}
	unassigned := append(slices.Clone(nonNil(p.Unassigned)), playerID)

	err = r.patch(ctx, code, map[string]any{
		"players/" + playerID: player,
		"unassigned":          unassigned,
	})
	if err != nil {
		return Joined{}, err
	}

	if p.Players == nil {
		p.Players = make(map[string]Player)
	}
	p.Players[playerID] = player
	p.Unassigned = unassigned
	r.logger.Debug("player joined", "code", code, "player_id", playerID)
	return Joined{PlayerID: playerID, Party: p}, nil
}

func (r *Repository) GetParty(ctx context.Context, code string) (Party, error) {
	code, err := normalize(code)
	if err != nil {
		return Party{}, err
	}
	return r.load(ctx, code)
}

// UpdateParty patches top-level fields, typically state and currentRound
// transitions driven by the game screens. It returns ErrNotFound when the
// party does not exist.
func (r *Repository) UpdateParty(ctx context.Context, code string, updates Updates) error {
	code, err := normalize(code)
	if err != nil {
		return err
	}
	fields := make(map[string]any, len(updates))
	for k, v := range updates {
		if k == "" || strings.Contains(k, "/") {
			return fmt.Errorf("%w: %q is not a top-level field", ErrInvalidConfig, k)
		}
		if immutableFields[k] {
			return fmt.Errorf("%w: %s is immutable", ErrInvalidConfig, k)
		}
		fields[k] = v
	}
	if len(fields) == 0 {
		return nil
	}
	// A patch on an absent node would create a partial party.
	if _, err := r.load(ctx, code); err != nil {
		return err
	}
	return r.patch(ctx, code, fields)
}

// AssignPlayerToTeam moves playerID to teamKey, or back to unassigned when
// teamKey is empty. A missing party is ignored.
func (r *Repository) AssignPlayerToTeam(ctx context.Context, code, playerID, teamKey string) error {
	code, err := normalize(code)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	p, err := r.load(ctx, code)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	player, ok := p.Players[playerID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrPlayerNotFound, playerID)
	}
	if teamKey != "" {
		if _, ok := p.Teams[teamKey]; !ok {
			return fmt.Errorf("%w: %s", ErrUnknownTeam, teamKey)
		}
	}

	unassigned := without(p.Unassigned, playerID)
	var teams map[string][]string
	if p.Teams != nil {
		teams = make(map[string][]string, len(p.Teams))
		for k, members := range p.Teams {
			teams[k] = without(members, playerID)
		}
	}

	if teamKey != "" {
		teams[teamKey] = append(teams[teamKey], playerID)
		player.Team = &teamKey
	} else {
		unassigned = append(unassigned, playerID)
		player.Team = nil
	}
	players := maps.Clone(p.Players)
	players[playerID] = player

	fields := map[string]any{
		"players":    players,
		"unassigned": unassigned,
	}
	if teams != nil {
		fields["teams"] = teams
	}
	if err := r.patch(ctx, code, fields); err != nil {
		return err
	}
	r.logger.Debug("player assigned", "code", code, "player_id", playerID, "team", teamKey)
	return nil
}

// StartGame moves the party into the countdown of round 1. Extra fields are
// applied on top.
func (r *Repository) StartGame(ctx context.Context, code string, extra Updates) error {
	updates := Updates{
		"state":        StateCountdown,
		"currentRound": 1,
	}
	maps.Copy(updates, extra)
	if err := r.UpdateParty(ctx, code, updates); err != nil {
		return err
	}
	r.logger.Info("game started", "code", NormalizeCode(code))
	return nil
}

// RecordScan stores a scan result for the current round. In team mode only
// the fastest scan of each team is kept; in solo mode the last scan wins. It
// reports whether the result was written. A missing party is ignored.
func (r *Repository) RecordScan(ctx context.Context, code string, scan Scan) (bool, error) {
	code, err := normalize(code)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	p, err := r.load(ctx, code)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if p.CurrentRound < 1 {
		return false, ErrNotStarted
	}
	if _, ok := p.Players[scan.PlayerID]; !ok {
		return false, fmt.Errorf("%w: %s", ErrPlayerNotFound, scan.PlayerID)
	}

	roundKey := RoundKey(p.CurrentRound)
	scorer := scan.PlayerID
	if scan.TeamKey != "" {
		if _, ok := p.Teams[scan.TeamKey]; !ok {
			return false, fmt.Errorf("%w: %s", ErrUnknownTeam, scan.TeamKey)
		}
		scorer = scan.TeamKey
		if existing, ok := p.RoundResults[roundKey][scorer]; ok && scan.TimeTaken >= existing.Time {
			r.logger.Debug("slower team scan ignored", "code", code, "team", scorer, "time", scan.TimeTaken, "best", existing.Time)
			return false, nil
		}
	}

	err = r.patch(ctx, code, map[string]any{
		"roundResults/" + roundKey + "/" + scorer: Result{Time: scan.TimeTaken, Points: scan.Points},
	})
	if err != nil {
		return false, err
	}
	r.logger.Debug("scan recorded", "code", code, "round", roundKey, "scorer", scorer, "points", scan.Points)
	return true, nil
}

// PlayAgain opens a new lobby with the same settings and roster, then points
// the old party at it through redirectToCode.
func (r *Repository) PlayAgain(ctx context.Context, code string) (string, error) {
	code, err := normalize(code)
	if err != nil {
		return "", err
	}
	p, err := r.load(ctx, code)
	if err != nil {
		return "", err
	}

	newCode := r.ids.PartyCode()
	categories := slices.Clone(p.Categories)
	if len(categories) == 0 {
		categories = []string{defaultCategory}
	}
	numTeams := p.NumTeams
	if numTeams == 0 {
		numTeams = defaultNumTeams
	}
	var teams map[string][]string
	if p.Teams != nil {
		teams = make(map[string][]string, len(p.Teams))
		for k, members := range p.Teams {
			teams[k] = slices.Clone(nonNil(members))
		}
	}
	players := maps.Clone(p.Players)
	if players == nil {
		players = map[string]Player{}
	}

	next := Party{
		Code:         newCode,
		HostID:       p.HostID,
		Store:        p.Store,
		Categories:   categories,
		Mode:         p.Mode,
		Rounds:       p.Rounds,
		TimePerRound: p.TimePerRound,
		NumTeams:     numTeams,
		Players:      players,
		Teams:        teams,
		Unassigned:   slices.Clone(nonNil(p.Unassigned)),
		State:        StateLobby,
		CurrentRound: 0,
		RoundResults: map[string]map[string]Result{},
		GameResults:  map[string]any{},
		CreatedAt:    r.now().UnixMilli(),
	}

	if err := r.store.Write(ctx, partyPath(newCode), next); err != nil {
		return "", fmt.Errorf("creating party %s: %w", newCode, err)
	}
	if err := r.patch(ctx, code, map[string]any{"redirectToCode": newCode}); err != nil {
		return "", err
	}
	r.logger.Info("play again", "code", code, "new_code", newCode)
	return newCode, nil
}

func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}

// without returns a copy of ids with id removed. The result is never nil so
// it encodes as an empty list rather than removing the field.
func without(ids []string, id string) []string {
	out := make([]string, 0, len(ids))
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
