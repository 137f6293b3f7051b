// Package party implements the party aggregate of the scavenger-hunt game:
// creation, joining, team assignment, scan recording, play-again and the
// live feed, all as read-modify-write operations over a kvstore.Store.
package party

import (
	"fmt"
	"strings"
)

type Mode string

const (
	ModeSolo  Mode = "solo"
	ModeTeams Mode = "teams"
)

func (m Mode) Valid() bool { return m == ModeSolo || m == ModeTeams }

// State is persisted as-is; callers may set values beyond the ones below.
type State string

const (
	StateLobby     State = "lobby"
	StateCountdown State = "countdown"
	StatePlaying   State = "playing"
	StateResults   State = "results"
)

type Player struct {
	ID   string  `json:"id"`
	Name string  `json:"name"`
	Team *string `json:"team"`
}

// TeamKey returns the player's team or "" when unassigned.
func (p Player) TeamKey() string {
	if p.Team == nil {
		return ""
	}
	return *p.Team
}

type Result struct {
	Time   float64 `json:"time"`
	Points float64 `json:"points"`
}

// Party is the aggregate stored at parties/{code}.
type Party struct {
	Code         string                       `json:"code"`
	HostID       string                       `json:"hostId"`
	Store        string                       `json:"store"`
	Categories   []string                     `json:"categories"`
	Mode         Mode                         `json:"mode"`
	Rounds       int                          `json:"rounds"`
	TimePerRound int                          `json:"timePerRound"`
	NumTeams     int                          `json:"numTeams"`
	Players      map[string]Player            `json:"players"`
	Teams        map[string][]string          `json:"teams"`
	Unassigned   []string                     `json:"unassigned"`
	State        State                        `json:"state"`
	CurrentRound int                          `json:"currentRound"`
	RoundResults map[string]map[string]Result `json:"roundResults"`
	GameResults  map[string]any               `json:"gameResults"`
	// RedirectToCode tells every subscribed client to move to a new party.
	RedirectToCode string `json:"redirectToCode,omitempty"`
	CreatedAt      int64  `json:"createdAt"`
}

// RoundKey is the roundResults key of round n.
func RoundKey(n int) string {
	return fmt.Sprintf("round%d", n)
}

// TeamKey is the key of the n-th team, counting from 1.
func TeamKey(n int) string {
	return fmt.Sprintf("team%d", n)
}

// TeamName formats "team3" as "Team 3".
func TeamName(key string) string {
	return strings.Replace(key, "team", "Team ", 1)
}

// NormalizeCode turns a user-entered party code into its stored form.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func partyPath(code string) string {
	return "parties/" + code
}

// Updates is a patch of named top-level party fields.
type Updates map[string]any
