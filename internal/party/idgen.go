package party

import (
	"crypto/rand"
	mrand "math/rand/v2"
	"strings"
	"sync"
)

const (
	base36         = "0123456789abcdefghijklmnopqrstuvwxyz"
	CodeLength     = 6
	PlayerIDLength = 10
)

// IDGenerator produces party codes and player ids. No collision detection is
// done by the repository.
type IDGenerator interface {
	PartyCode() string
	PlayerID() string
}

func randomBase36(rng *mrand.Rand, n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = base36[rng.IntN(len(base36))]
	}
	return string(b)
}

// PartyCode returns a 6-character uppercase base-36 code drawn from rng.
func PartyCode(rng *mrand.Rand) string {
	return strings.ToUpper(randomBase36(rng, CodeLength))
}

// PlayerID returns a 10-character lowercase base-36 id drawn from rng.
func PlayerID(rng *mrand.Rand) string {
	return randomBase36(rng, PlayerIDLength)
}

// ValidCode reports whether code has the stored party code format.
func ValidCode(code string) bool {
	if len(code) != CodeLength {
		return false
	}
	for _, c := range code {
		if !(c >= '0' && c <= '9' || c >= 'A' && c <= 'Z') {
			return false
		}
	}
	return true
}

// RandomIDs is an IDGenerator safe for concurrent use.
type RandomIDs struct {
	mu  sync.Mutex
	rng *mrand.Rand
}

func NewRandomIDs(src mrand.Source) *RandomIDs {
	return &RandomIDs{rng: mrand.New(src)}
}

// NewSeededIDs seeds a ChaCha8 source from crypto/rand.
func NewSeededIDs() *RandomIDs {
	var seed [32]byte
	rand.Read(seed[:])
	return NewRandomIDs(mrand.NewChaCha8(seed))
}

func (g *RandomIDs) PartyCode() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return PartyCode(g.rng)
}

func (g *RandomIDs) PlayerID() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return PlayerID(g.rng)
}
