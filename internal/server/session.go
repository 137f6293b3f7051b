package server

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/curry-conqueror/NSTEM-Final/internal/party"
)

// Session is the per-client pointer to "who am I in this party". It is not
// authentication: anyone can forge it.
type Session struct {
	PlayerID   string `json:"playerId"`
	PlayerName string `json:"playerName"`
	IsHost     bool   `json:"isHost"`
}

const sessionMaxAge = 24 * time.Hour

var errNoSession = errors.New("no session for this party")

func sessionCookieName(code string) string {
	return "party_" + code
}

func setSession(w http.ResponseWriter, code string, s Session) {
	data, _ := json.Marshal(s)
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName(code),
		Value:    base64.URLEncoding.EncodeToString(data),
		Path:     "/",
		MaxAge:   int(sessionMaxAge.Seconds()),
		SameSite: http.SameSiteLaxMode,
	})
}

func clearSession(w http.ResponseWriter, code string) {
	http.SetCookie(w, &http.Cookie{
		Name:   sessionCookieName(code),
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})
}

// moveSession re-keys the pointer from one party code to another, as done
// after Play Again.
func moveSession(w http.ResponseWriter, from, to string, s Session) {
	setSession(w, to, s)
	clearSession(w, from)
}

func sessionFromRequest(r *http.Request, code string) (Session, error) {
	c, err := r.Cookie(sessionCookieName(code))
	if err != nil || c.Value == "" {
		return Session{}, errNoSession
	}
	data, err := base64.URLEncoding.DecodeString(c.Value)
	if err != nil {
		return Session{}, errNoSession
	}
	var s Session
	if err := json.Unmarshal(data, &s); err != nil || s.PlayerID == "" {
		return Session{}, errNoSession
	}
	return s, nil
}

// memberSession returns the caller's session when it names a player of p.
func memberSession(r *http.Request, p party.Party) (Session, bool) {
	s, err := sessionFromRequest(r, p.Code)
	if err != nil {
		return Session{}, false
	}
	if _, ok := p.Players[s.PlayerID]; !ok {
		return Session{}, false
	}
	return s, true
}

func isHost(r *http.Request, p party.Party) bool {
	s, ok := memberSession(r, p)
	return ok && s.PlayerID == p.HostID
}
