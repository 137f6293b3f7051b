// Package kvstore is a uniform key-value interface over either a remote
// replicated store with push notification (Redis) or a local persistent store
// that is polled (SQLite). Values are JSON documents addressed by
// slash-separated paths such as "parties/ABC123".
package kvstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
)

const (
	KindRemote = "remote"
	KindLocal  = "local"
)

var (
	// ErrNotFound is returned by Read when no value exists at the path.
	ErrNotFound = errors.New("not found")
	// ErrTransport wraps every failure of the underlying backend.
	ErrTransport = errors.New("store transport failure")
	// ErrInvalidPath is returned for empty paths or empty path segments.
	ErrInvalidPath = errors.New("invalid path")
)

// Store is implemented by RemoteStore and LocalStore.
//
// A path names one node. Reach deeper into it through Patch field keys, not
// through longer paths: LocalStore nests every path in one tree, so a parent
// path sees writes made below it, while RemoteStore keeps each path as its
// own key and does not. Callers read, patch and subscribe at the same path
// they write.
type Store interface {
	// Write overwrites the node at path with value.
	Write(ctx context.Context, path string, value any) error
	// Patch merges fields into the node at path without disturbing siblings.
	// Field keys may be sub-paths ("players/p1"); a nil value removes the field.
	Patch(ctx context.Context, path string, fields map[string]any) error
	// Read returns the JSON document at path or ErrNotFound.
	Read(ctx context.Context, path string) (json.RawMessage, error)
	// Subscribe invokes fn with a full snapshot of path (nil when absent)
	// until the returned subscription is cancelled.
	Subscribe(ctx context.Context, path string, fn func(json.RawMessage)) (*Subscription, error)

	Kind() string
	Ping(ctx context.Context) error
	Close() error
}

// Subscription is the cancellation handle of a live feed. Callbacks are
// delivered sequentially from a single goroutine.
type Subscription struct {
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

func startSubscription(parent context.Context, run func(ctx context.Context)) *Subscription {
	ctx, cancel := context.WithCancel(parent)
	s := &Subscription{cancel: cancel, done: make(chan struct{})}
	go func() {
		defer close(s.done)
		run(ctx)
	}()
	return s
}

// Unsubscribe stops the feed. It may be called any number of times, from any
// goroutine, including from inside the callback.
func (s *Subscription) Unsubscribe() {
	s.once.Do(s.cancel)
}

// Done is closed once no further callbacks will be delivered.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

func transportErr(op, path string, err error) error {
	return fmt.Errorf("%s %s: %w: %w", op, path, ErrTransport, err)
}
