package kvstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// DefaultPollInterval is the cadence at which local subscriptions re-read
// their path.
const DefaultPollInterval = 1500 * time.Millisecond

// LocalStore keeps one JSON document per top-level path segment in the slots
// table: the "parties" slot holds the whole mapping from party code to party.
// Every write is a read-modify-write of the slot inside one transaction.
type LocalStore struct {
	db       *sql.DB
	interval time.Duration
	logger   *slog.Logger

	// writeMu serializes slot transactions. Pooled connections would
	// otherwise race to upgrade to the write lock and fail with SQLITE_BUSY.
	writeMu sync.Mutex
}

// NewLocalStore takes ownership of db; Close closes it. The slots table must
// already exist (see migrations.Run).
func NewLocalStore(db *sql.DB, interval time.Duration, logger *slog.Logger) *LocalStore {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &LocalStore{db: db, interval: interval, logger: logger}
}

func (s *LocalStore) Kind() string { return KindLocal }

func (s *LocalStore) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *LocalStore) Close() error { return s.db.Close() }

type rowQueryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func loadSlot(ctx context.Context, q rowQueryer, name string) (any, error) {
	var data string
	err := q.QueryRowContext(ctx, `SELECT json(data) FROM slots WHERE name = ?`, name).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return decodeTree([]byte(data))
}

// modifySlot loads a slot, applies fn, and saves it in a transaction.
func (s *LocalStore) modifySlot(ctx context.Context, name string, fn func(root any) (any, error)) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback()

	root, err := loadSlot(ctx, tx, name)
	if err != nil {
		return err
	}
	if root, err = fn(root); err != nil {
		return err
	}

	data, err := json.Marshal(root)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO slots (name, data, updated_at)
		 VALUES (?, jsonb(?), strftime('%Y-%m-%dT%H:%M:%fZ', 'now'))
		 ON CONFLICT(name) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		name, string(data),
	)
	if err != nil {
		return err
	}

	return tx.Commit()
}

func (s *LocalStore) Read(ctx context.Context, path string) (json.RawMessage, error) {
	segs, err := splitPath(path)
	if err != nil {
		return nil, err
	}
	root, err := loadSlot(ctx, s.db, segs[0])
	if err != nil {
		return nil, transportErr("read", path, err)
	}
	node, ok := lookup(root, segs[1:])
	if !ok {
		return nil, ErrNotFound
	}
	return json.Marshal(node)
}

func (s *LocalStore) Write(ctx context.Context, path string, value any) error {
	segs, err := splitPath(path)
	if err != nil {
		return err
	}
	tv, err := toTree(value)
	if err != nil {
		return err
	}
	err = s.modifySlot(ctx, segs[0], func(root any) (any, error) {
		return assign(root, segs[1:], tv), nil
	})
	if err != nil {
		return transportErr("write", path, err)
	}
	return nil
}

func (s *LocalStore) Patch(ctx context.Context, path string, fields map[string]any) error {
	segs, err := splitPath(path)
	if err != nil {
		return err
	}
	if err := validateFields(fields); err != nil {
		return err
	}
	err = s.modifySlot(ctx, segs[0], func(root any) (any, error) {
		node, _ := lookup(root, segs[1:])
		merged, err := merge(node, fields)
		if err != nil {
			return nil, err
		}
		return assign(root, segs[1:], merged), nil
	})
	if err != nil {
		return transportErr("patch", path, err)
	}
	return nil
}

// Subscribe polls path every interval and invokes fn with the current value
// on every tick, changed or not.
func (s *LocalStore) Subscribe(ctx context.Context, path string, fn func(json.RawMessage)) (*Subscription, error) {
	if _, err := splitPath(path); err != nil {
		return nil, err
	}
	return startSubscription(ctx, func(ctx context.Context) {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}

			raw, err := s.Read(ctx, path)
			switch {
			case errors.Is(err, ErrNotFound):
				fn(nil)
			case err != nil:
				if ctx.Err() != nil {
					return
				}
				s.logger.Warn("polling local store", "path", path, "error", err)
			default:
				fn(raw)
			}
		}
	}), nil
}
