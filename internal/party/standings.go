package party

import (
	"cmp"
	"slices"
)

type Standing struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Points float64 `json:"points"`
}

// Standings sums points per scorer over rounds 1..max(rounds, 1), highest
// first. Ties go to the scorer who first scored in an earlier round, then to
// the lower id.
func Standings(p Party) []Standing {
	rounds := max(p.Rounds, 1)
	totals := make(map[string]float64)
	firstRound := make(map[string]int)

	for n := 1; n <= rounds; n++ {
		for scorer, res := range p.RoundResults[RoundKey(n)] {
			totals[scorer] += res.Points
			if _, seen := firstRound[scorer]; !seen {
				firstRound[scorer] = n
			}
		}
	}

	out := make([]Standing, 0, len(totals))
	for id, pts := range totals {
		out = append(out, Standing{ID: id, Name: p.scorerName(id), Points: pts})
	}
	slices.SortFunc(out, func(a, b Standing) int {
		if c := cmp.Compare(b.Points, a.Points); c != 0 {
			return c
		}
		if c := cmp.Compare(firstRound[a.ID], firstRound[b.ID]); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out
}

func (p Party) scorerName(id string) string {
	if p.Mode == ModeTeams {
		return TeamName(id)
	}
	if pl, ok := p.Players[id]; ok && pl.Name != "" {
		return pl.Name
	}
	return id
}

// Podium is the final results screen: the winner, the top three and
// everybody else.
type Podium struct {
	Winner *Standing  `json:"winner"`
	Top    []Standing `json:"top"`
	Rest   []Standing `json:"rest"`
}

func NewPodium(standings []Standing) Podium {
	pod := Podium{Top: []Standing{}, Rest: []Standing{}}
	if len(standings) == 0 {
		return pod
	}
	w := standings[0]
	pod.Winner = &w
	n := min(3, len(standings))
	pod.Top = append(pod.Top, standings[:n]...)
	pod.Rest = append(pod.Rest, standings[n:]...)
	return pod
}
