package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/curry-conqueror/NSTEM-Final/internal/kvstore"
	"github.com/curry-conqueror/NSTEM-Final/internal/party"
)

func nextEvent(t *testing.T, ch chan []byte) PartyEvent {
	t.Helper()
	select {
	case data, ok := <-ch:
		if !ok {
			t.Fatalf("feed closed")
		}
		var ev PartyEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			t.Fatalf("decode event: %v", err)
		}
		return ev
	case <-time.After(2 * time.Second):
		t.Fatalf("no event")
	}
	return PartyEvent{}
}

func TestBrokerSharesOneFeedPerParty(t *testing.T) {
	repo := newLocalRepo(t)
	b := NewBroker(repo, slog.Default())
	defer b.Close()

	created, err := repo.CreateParty(context.Background(), party.Config{Mode: party.ModeSolo, Rounds: 1})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	a, err := b.Subscribe(created.Code)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if ev := nextEvent(t, a); ev.Type != eventSnapshot || ev.Party.Code != created.Code {
		t.Fatalf("first event = %+v", ev)
	}

	// A late subscriber gets the latest snapshot right away.
	c, err := b.Subscribe(created.Code)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	select {
	case <-c:
	default:
		t.Fatalf("late subscriber got no replay")
	}
	if n := b.Feeds(); n != 1 {
		t.Fatalf("feeds = %d, want 1", n)
	}

	if _, err := repo.JoinParty(context.Background(), created.Code, "Ana"); err != nil {
		t.Fatalf("join: %v", err)
	}
	for _, ch := range []chan []byte{a, c} {
		if ev := nextEvent(t, ch); len(ev.Party.Players) != 2 {
			t.Errorf("players = %d, want 2", len(ev.Party.Players))
		}
	}

	b.Unsubscribe(created.Code, a)
	if n := b.Feeds(); n != 1 {
		t.Fatalf("feeds after first leave = %d, want 1", n)
	}
	b.Unsubscribe(created.Code, c)
	if n := b.Feeds(); n != 0 {
		t.Fatalf("feeds after last leave = %d, want 0", n)
	}
}

func TestBrokerSkipsUnchangedSnapshots(t *testing.T) {
	repo := newLocalRepo(t)
	b := NewBroker(repo, slog.Default())
	defer b.Close()

	created, err := repo.CreateParty(context.Background(), party.Config{Mode: party.ModeSolo, Rounds: 1})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	ch, err := b.Subscribe(created.Code)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	nextEvent(t, ch)

	// The local store polls every 10ms; nothing changed so nothing is sent.
	select {
	case data := <-ch:
		t.Fatalf("unexpected event %s", data)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestBrokerRedirectEvent(t *testing.T) {
	repo := newRemoteRepo(t)
	b := NewBroker(repo, slog.Default())
	defer b.Close()

	created, err := repo.CreateParty(context.Background(), party.Config{Mode: party.ModeSolo, Rounds: 1})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	ch, err := b.Subscribe(created.Code)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	nextEvent(t, ch)

	newCode, err := repo.PlayAgain(context.Background(), created.Code)
	if err != nil {
		t.Fatalf("play again: %v", err)
	}
	ev := nextEvent(t, ch)
	if ev.Type != eventRedirect || ev.RedirectToCode != newCode {
		t.Fatalf("event = %+v, want redirect to %s", ev, newCode)
	}
}

func TestBrokerCloseEndsSubscribers(t *testing.T) {
	repo := newLocalRepo(t)
	b := NewBroker(repo, slog.Default())

	ch, err := b.Subscribe("ZZZZZZ")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if ev := nextEvent(t, ch); ev.Type != eventMissing {
		t.Fatalf("event = %+v, want missing", ev)
	}

	b.Close()
	if _, ok := <-ch; ok {
		t.Fatalf("channel still open after Close")
	}
	b.Unsubscribe("ZZZZZZ", ch)
}

// gatedStore holds Subscribe on one path until release is closed.
type gatedStore struct {
	kvstore.Store
	path    string
	entered chan struct{}
	release chan struct{}
}

func (s *gatedStore) Subscribe(ctx context.Context, path string, fn func(json.RawMessage)) (*kvstore.Subscription, error) {
	if path == s.path {
		close(s.entered)
		<-s.release
	}
	return s.Store.Subscribe(ctx, path, fn)
}

func TestBrokerSlowSubscribeDoesNotBlockOtherParties(t *testing.T) {
	store := &gatedStore{
		Store:   newLocalStore(t),
		path:    "parties/SLOW01",
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	repo := party.NewRepository(store)
	b := NewBroker(repo, slog.Default())
	defer b.Close()

	created, err := repo.CreateParty(context.Background(), party.Config{Mode: party.ModeSolo, Rounds: 1})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	slow := make(chan chan []byte, 1)
	go func() {
		ch, err := b.Subscribe("SLOW01")
		if err != nil {
			t.Errorf("slow subscribe: %v", err)
		}
		slow <- ch
	}()
	<-store.entered

	fast := make(chan error, 1)
	go func() {
		_, err := b.Subscribe(created.Code)
		fast <- err
	}()
	select {
	case err := <-fast:
		if err != nil {
			t.Fatalf("subscribe: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("subscribe blocked behind another party's feed")
	}

	close(store.release)
	if ev := nextEvent(t, <-slow); ev.Type != eventMissing {
		t.Fatalf("slow feed event = %+v, want missing", ev)
	}
}

func TestBrokerSlowClientGetsLatestSnapshot(t *testing.T) {
	repo := newRemoteRepo(t)
	b := NewBroker(repo, slog.Default())
	defer b.Close()

	ctx := context.Background()
	created, err := repo.CreateParty(ctx, party.Config{Mode: party.ModeSolo, Rounds: 30})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	ch, err := b.Subscribe(created.Code)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	nextEvent(t, ch)

	// More updates than the client buffer holds, none of them read yet.
	const last = 25
	for round := 1; round <= last; round++ {
		if err := repo.UpdateParty(ctx, created.Code, party.Updates{"currentRound": round}); err != nil {
			t.Fatalf("update: %v", err)
		}
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		b.mu.Lock()
		data := b.feeds[created.Code].last
		b.mu.Unlock()
		var ev PartyEvent
		if data != nil && json.Unmarshal(data, &ev) == nil && ev.Party.CurrentRound == last {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("feed never saw round %d", last)
		}
		time.Sleep(10 * time.Millisecond)
	}

	var ev PartyEvent
	for len(ch) > 0 {
		ev = nextEvent(t, ch)
	}
	if ev.Party == nil || ev.Party.CurrentRound != last {
		t.Fatalf("last queued event = %+v, want round %d", ev, last)
	}
}
