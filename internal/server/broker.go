package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"

	"github.com/curry-conqueror/NSTEM-Final/internal/kvstore"
	"github.com/curry-conqueror/NSTEM-Final/internal/party"
)

// PartyEvent is the payload sent to live clients.
type PartyEvent struct {
	Type           string       `json:"type"`
	Party          *party.Party `json:"party,omitempty"`
	RedirectToCode string       `json:"redirectToCode,omitempty"`
}

const (
	eventSnapshot = "snapshot"
	eventRedirect = "redirect"
	eventMissing  = "missing"
)

func newPartyEvent(p *party.Party) PartyEvent {
	if p == nil {
		return PartyEvent{Type: eventMissing}
	}
	if code, ok := p.Redirect(); ok {
		return PartyEvent{Type: eventRedirect, Party: p, RedirectToCode: code}
	}
	return PartyEvent{Type: eventSnapshot, Party: p}
}

type feed struct {
	sub    *kvstore.Subscription
	subs   map[chan []byte]struct{}
	last   []byte
	closed bool
}

// add registers ch and replays the latest event to it.
func (f *feed) add(ch chan []byte) {
	if f.last != nil {
		ch <- f.last
	}
	f.subs[ch] = struct{}{}
}

var errBrokerClosed = errors.New("broker closed")

// Broker shares one store subscription per party code among every connected
// client. The subscription is opened by the first client and cancelled when
// the last one leaves.
type Broker struct {
	repo   *party.Repository
	logger *slog.Logger

	mu     sync.Mutex
	feeds  map[string]*feed
	closed bool
}

func NewBroker(repo *party.Repository, logger *slog.Logger) *Broker {
	return &Broker{
		repo:   repo,
		logger: logger,
		feeds:  make(map[string]*feed),
	}
}

// Subscribe returns a channel of JSON-encoded PartyEvents for code. A new
// subscriber immediately receives the latest event when one is known.
func (b *Broker) Subscribe(code string) (chan []byte, error) {
	ch := make(chan []byte, 16)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, errBrokerClosed
	}
	if f, ok := b.feeds[code]; ok {
		f.add(ch)
		b.mu.Unlock()
		return ch, nil
	}
	b.mu.Unlock()

	// The store subscription may take a network round trip, so it is opened
	// without holding mu. Events arriving before the feed is registered are
	// kept in f.last and replayed by add.
	f := &feed{subs: make(map[chan []byte]struct{})}
	sub, err := b.repo.SubscribeToParty(context.Background(), code, func(p *party.Party) {
		b.publish(code, f, p)
	})
	if err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if existing, ok := b.feeds[code]; ok || b.closed {
		f.closed = true
		sub.Unsubscribe()
		if b.closed {
			return nil, errBrokerClosed
		}
		existing.add(ch)
		return ch, nil
	}
	f.sub = sub
	b.feeds[code] = f
	f.add(ch)
	b.logger.Debug("party feed opened", "code", code)
	return ch, nil
}

// Unsubscribe removes ch and closes the feed when it was the last client.
func (b *Broker) Unsubscribe(code string, ch chan []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()

	f, ok := b.feeds[code]
	if !ok {
		return
	}
	delete(f.subs, ch)
	if len(f.subs) == 0 {
		f.closed = true
		f.sub.Unsubscribe()
		delete(b.feeds, code)
		b.logger.Debug("party feed closed", "code", code)
	}
}

// publish fans a snapshot out to the feed's clients. Unchanged snapshots,
// which the polling store delivers on every tick, are not repeated.
func (b *Broker) publish(code string, f *feed, p *party.Party) {
	data, err := json.Marshal(newPartyEvent(p))
	if err != nil {
		b.logger.Error("encoding party event", "code", code, "error", err)
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	// A late callback from a cancelled feed.
	if f.closed {
		return
	}
	if bytes.Equal(f.last, data) {
		return
	}
	f.last = data
	for ch := range f.subs {
		sendLatest(ch, data)
	}
}

// sendLatest queues data on ch without blocking. When a slow client's buffer
// is full the oldest queued event is dropped, so the newest one always gets
// through. Callers hold the broker lock, so no other sender can refill ch.
func sendLatest(ch chan []byte, data []byte) {
	select {
	case ch <- data:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- data:
	default:
	}
}

// Feeds reports how many party feeds are open.
func (b *Broker) Feeds() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.feeds)
}

// Close cancels every feed and closes all subscriber channels.
func (b *Broker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	for code, f := range b.feeds {
		f.closed = true
		f.sub.Unsubscribe()
		for ch := range f.subs {
			close(ch)
		}
		delete(b.feeds, code)
	}
}
