package kvstore

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/go-cmp/cmp"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/curry-conqueror/NSTEM-Final/internal/database"
	"github.com/curry-conqueror/NSTEM-Final/internal/migrations"
)

type testPlayer struct {
	ID   string  `json:"id"`
	Name string  `json:"name"`
	Team *string `json:"team"`
}

type testDoc struct {
	Code       string                `json:"code"`
	Players    map[string]testPlayer `json:"players"`
	Teams      map[string][]string   `json:"teams"`
	Unassigned []string              `json:"unassigned"`
	CreatedAt  int64                 `json:"createdAt"`
}

func newLocal(t *testing.T) *LocalStore {
	t.Helper()
	db, err := database.Open(context.Background(), filepath.Join(t.TempDir(), "kv.db"))
	require.NoError(t, err)
	require.NoError(t, migrations.Run(db))
	s := NewLocalStore(db, 10*time.Millisecond, slog.Default())
	t.Cleanup(func() { s.Close() })
	return s
}

func newRemote(t *testing.T) *RemoteStore {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	s := NewRemoteStore(rdb, "test", slog.Default())
	t.Cleanup(func() { s.Close() })
	return s
}

func backends(t *testing.T) map[string]Store {
	return map[string]Store{
		KindLocal:  newLocal(t),
		KindRemote: newRemote(t),
	}
}

func decodeMap(t *testing.T, raw json.RawMessage) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(raw, &m))
	return m
}

func TestWriteReadRoundTrip(t *testing.T) {
	team := "team1"
	want := testDoc{
		Code: "ABC123",
		Players: map[string]testPlayer{
			"host000001": {ID: "host000001", Name: "Host", Team: &team},
			"p000000002": {ID: "p000000002", Name: "Ana"},
		},
		Teams:      map[string][]string{"team1": {"host000001"}, "team2": {}},
		Unassigned: []string{"p000000002"},
		CreatedAt:  1760000000123,
	}

	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, s.Write(ctx, "parties/ABC123", want))

			raw, err := s.Read(ctx, "parties/ABC123")
			require.NoError(t, err)

			var got testDoc
			require.NoError(t, json.Unmarshal(raw, &got))
			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("round trip mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestReadMissing(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, err := s.Read(context.Background(), "parties/NOPE00")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestWriteOverwrites(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, s.Write(ctx, "parties/X", map[string]any{"a": 1, "b": 2}))
			require.NoError(t, s.Write(ctx, "parties/X", map[string]any{"c": 3}))

			raw, err := s.Read(ctx, "parties/X")
			require.NoError(t, err)
			assert.Equal(t, map[string]any{"c": float64(3)}, decodeMap(t, raw))
		})
	}
}

func TestPatchMergesFields(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, s.Write(ctx, "parties/X", map[string]any{
				"a": 1,
				"b": map[string]any{"c": 2, "d": 3},
			}))
			require.NoError(t, s.Patch(ctx, "parties/X", map[string]any{
				"b/c": 5,
				"e":   "x",
			}))

			raw, err := s.Read(ctx, "parties/X")
			require.NoError(t, err)
			assert.Equal(t, map[string]any{
				"a": float64(1),
				"b": map[string]any{"c": float64(5), "d": float64(3)},
				"e": "x",
			}, decodeMap(t, raw))
		})
	}
}

func TestConcurrentPatchesAllLand(t *testing.T) {
	const writers = 40
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, s.Write(ctx, "parties/X", map[string]any{"code": "X"}))

			errs := make([]error, writers)
			var wg sync.WaitGroup
			for i := range writers {
				wg.Add(1)
				go func() {
					defer wg.Done()
					errs[i] = s.Patch(ctx, "parties/X", map[string]any{
						fmt.Sprintf("scores/p%02d", i): i,
					})
				}()
			}
			wg.Wait()
			for i, err := range errs {
				require.NoError(t, err, "writer %d", i)
			}

			raw, err := s.Read(ctx, "parties/X")
			require.NoError(t, err)
			scores, ok := decodeMap(t, raw)["scores"].(map[string]any)
			require.True(t, ok)
			assert.Len(t, scores, writers)
		})
	}
}

func TestPatchNilRemovesField(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, s.Write(ctx, "parties/X", map[string]any{"a": 1, "b": 2}))
			require.NoError(t, s.Patch(ctx, "parties/X", map[string]any{"b": nil}))

			raw, err := s.Read(ctx, "parties/X")
			require.NoError(t, err)
			assert.Equal(t, map[string]any{"a": float64(1)}, decodeMap(t, raw))
		})
	}
}

func TestPatchCreatesMissingNode(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, s.Patch(ctx, "parties/NEW", map[string]any{"redirectToCode": "ZZZ999"}))

			raw, err := s.Read(ctx, "parties/NEW")
			require.NoError(t, err)
			assert.Equal(t, map[string]any{"redirectToCode": "ZZZ999"}, decodeMap(t, raw))
		})
	}
}

func TestInvalidPath(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			_, err := s.Read(ctx, "/")
			assert.ErrorIs(t, err, ErrInvalidPath)

			err = s.Patch(ctx, "parties/X", map[string]any{"a//b": 1})
			assert.ErrorIs(t, err, ErrInvalidPath)
		})
	}
}

func TestSubscribeDeliversSnapshots(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			got := make(chan json.RawMessage, 256)
			sub, err := s.Subscribe(ctx, "parties/LIVE01", func(raw json.RawMessage) {
				select {
				case got <- raw:
				default:
				}
			})
			require.NoError(t, err)

			// Absent value is delivered as nil.
			select {
			case raw := <-got:
				assert.Nil(t, raw)
			case <-time.After(2 * time.Second):
				t.Fatal("no initial snapshot")
			}

			require.NoError(t, s.Write(ctx, "parties/LIVE01", map[string]any{"state": "lobby"}))
			require.NoError(t, s.Patch(ctx, "parties/LIVE01", map[string]any{"state": "countdown"}))

			deadline := time.After(2 * time.Second)
			for {
				select {
				case raw := <-got:
					if raw != nil && decodeMap(t, raw)["state"] == "countdown" {
						sub.Unsubscribe()
						sub.Unsubscribe()
						select {
						case <-sub.Done():
						case <-time.After(2 * time.Second):
							t.Fatal("subscription did not stop")
						}
						return
					}
				case <-deadline:
					t.Fatal("patched snapshot never delivered")
				}
			}
		})
	}
}

func TestUnsubscribeFromCallback(t *testing.T) {
	s := newLocal(t)
	var sub *Subscription
	ready := make(chan struct{})
	sub, err := s.Subscribe(context.Background(), "parties/X", func(json.RawMessage) {
		<-ready
		sub.Unsubscribe()
	})
	require.NoError(t, err)
	close(ready)

	select {
	case <-sub.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("unsubscribe from inside the callback did not stop the feed")
	}
}

func TestLocalPollsEveryTick(t *testing.T) {
	s := newLocal(t)
	ctx := context.Background()
	require.NoError(t, s.Write(ctx, "parties/TICK01", map[string]any{"state": "lobby"}))

	ticks := make(chan struct{}, 64)
	sub, err := s.Subscribe(ctx, "parties/TICK01", func(json.RawMessage) {
		select {
		case ticks <- struct{}{}:
		default:
		}
	})
	require.NoError(t, err)
	defer sub.Unsubscribe()

	// Unchanged value is still delivered on every tick.
	for i := 0; i < 3; i++ {
		select {
		case <-ticks:
		case <-time.After(2 * time.Second):
			t.Fatalf("tick %d not delivered", i)
		}
	}
}

func TestLocalSlotHoldsMappingByCode(t *testing.T) {
	s := newLocal(t)
	ctx := context.Background()
	require.NoError(t, s.Write(ctx, "parties/AAA111", map[string]any{"code": "AAA111"}))
	require.NoError(t, s.Write(ctx, "parties/BBB222", map[string]any{"code": "BBB222"}))

	raw, err := s.Read(ctx, "parties")
	require.NoError(t, err)
	slot := decodeMap(t, raw)
	assert.Len(t, slot, 2)
	assert.Contains(t, slot, "AAA111")
	assert.Contains(t, slot, "BBB222")

	var count int
	require.NoError(t, s.db.QueryRow(`SELECT COUNT(*) FROM slots`).Scan(&count))
	assert.Equal(t, 1, count)
}

func TestLocalTransportFailure(t *testing.T) {
	s := newLocal(t)
	require.NoError(t, s.db.Close())

	_, err := s.Read(context.Background(), "parties/X")
	assert.ErrorIs(t, err, ErrTransport)
	err = s.Write(context.Background(), "parties/X", map[string]any{})
	assert.ErrorIs(t, err, ErrTransport)
}

func TestRemoteTransportFailure(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{
		Addr:        "localhost:1",
		DialTimeout: 10 * time.Millisecond,
		MaxRetries:  -1,
	})
	s := NewRemoteStore(rdb, "test", slog.Default())
	defer s.Close()

	_, err := s.Read(context.Background(), "parties/X")
	assert.ErrorIs(t, err, ErrTransport)
	err = s.Patch(context.Background(), "parties/X", map[string]any{"a": 1})
	assert.ErrorIs(t, err, ErrTransport)
}

func TestRemotePublishesDocument(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	s := NewRemoteStore(rdb, "proj", slog.Default())
	defer s.Close()

	ctx := context.Background()
	require.NoError(t, s.Write(ctx, "parties/PUB001", map[string]any{"state": "lobby"}))

	stored, err := mr.Get("proj:parties/PUB001")
	require.NoError(t, err)
	assert.JSONEq(t, `{"state":"lobby"}`, stored)
}

func TestRemoteKeysAreFlat(t *testing.T) {
	s := newRemote(t)
	ctx := context.Background()
	require.NoError(t, s.Write(ctx, "parties/X/players/p1", map[string]any{"name": "Ana"}))

	_, err := s.Read(ctx, "parties/X")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Write(ctx, "parties/X", map[string]any{"code": "X"}))
	require.NoError(t, s.Patch(ctx, "parties/X", map[string]any{"players/p1": map[string]any{"name": "Ana"}}))
	raw, err := s.Read(ctx, "parties/X")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"code":    "X",
		"players": map[string]any{"p1": map[string]any{"name": "Ana"}},
	}, decodeMap(t, raw))
}
