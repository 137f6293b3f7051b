package kvstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/redis/go-redis/v9"
)

// RemoteStore keeps each node path as a Redis key holding its JSON document
// and announces every change on a per-path pub/sub channel carrying the new
// document.
type RemoteStore struct {
	rdb       *redis.Client
	namespace string
	logger    *slog.Logger
}

func NewRemoteStore(rdb *redis.Client, namespace string, logger *slog.Logger) *RemoteStore {
	return &RemoteStore{rdb: rdb, namespace: namespace, logger: logger}
}

func (s *RemoteStore) Kind() string { return KindRemote }

func (s *RemoteStore) Ping(ctx context.Context) error { return s.rdb.Ping(ctx).Err() }

func (s *RemoteStore) Close() error { return s.rdb.Close() }

// key maps a path to a flat Redis key. Paths do not nest; see Store.
func (s *RemoteStore) key(segs []string) string {
	return s.namespace + ":" + strings.Join(segs, "/")
}

func (s *RemoteStore) channel(segs []string) string {
	return s.namespace + ":watch:" + strings.Join(segs, "/")
}

func (s *RemoteStore) Read(ctx context.Context, path string) (json.RawMessage, error) {
	segs, err := splitPath(path)
	if err != nil {
		return nil, err
	}
	data, err := s.rdb.Get(ctx, s.key(segs)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, transportErr("read", path, err)
	}
	return json.RawMessage(data), nil
}

func (s *RemoteStore) Write(ctx context.Context, path string, value any) error {
	segs, err := splitPath(path)
	if err != nil {
		return err
	}
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encoding value: %w", err)
	}

	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.key(segs), data, 0)
		pipe.Publish(ctx, s.channel(segs), data)
		return nil
	})
	if err != nil {
		return transportErr("write", path, err)
	}
	return nil
}

// Patch merges fields under WATCH so a concurrent writer to the same key
// forces a re-read instead of being overwritten. A lost race is retried until
// ctx is done; every lost race means another patch committed.
func (s *RemoteStore) Patch(ctx context.Context, path string, fields map[string]any) error {
	segs, err := splitPath(path)
	if err != nil {
		return err
	}
	if err := validateFields(fields); err != nil {
		return err
	}
	key := s.key(segs)

	apply := func(tx *redis.Tx) error {
		var node any
		cur, err := tx.Get(ctx, key).Bytes()
		switch {
		case errors.Is(err, redis.Nil):
		case err != nil:
			return err
		default:
			if node, err = decodeTree(cur); err != nil {
				return err
			}
		}

		merged, err := merge(node, fields)
		if err != nil {
			return err
		}
		data, err := json.Marshal(merged)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			pipe.Publish(ctx, s.channel(segs), data)
			return nil
		})
		return err
	}

	for {
		err := s.rdb.Watch(ctx, apply, key)
		if errors.Is(err, redis.TxFailedErr) {
			if ctx.Err() != nil {
				return transportErr("patch", path, ctx.Err())
			}
			continue
		}
		if err != nil {
			return transportErr("patch", path, err)
		}
		return nil
	}
}

// Subscribe delivers the current value once the channel subscription is
// confirmed, then every published document. Intermediate states may be
// coalesced by a slow consumer.
func (s *RemoteStore) Subscribe(ctx context.Context, path string, fn func(json.RawMessage)) (*Subscription, error) {
	segs, err := splitPath(path)
	if err != nil {
		return nil, err
	}

	pubsub := s.rdb.Subscribe(ctx, s.channel(segs))
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, transportErr("subscribe", path, err)
	}

	return startSubscription(ctx, func(ctx context.Context) {
		defer pubsub.Close()

		raw, err := s.Read(ctx, path)
		switch {
		case errors.Is(err, ErrNotFound):
			fn(nil)
		case err != nil:
			s.logger.Warn("initial remote read failed", "path", path, "error", err)
		default:
			fn(raw)
		}

		msgs := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				fn(json.RawMessage(msg.Payload))
			}
		}
	}), nil
}
