package kvstore

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/curry-conqueror/NSTEM-Final/internal/database"
	"github.com/curry-conqueror/NSTEM-Final/internal/migrations"
)

// RemoteOptions are the connection parameters of the replicated store.
type RemoteOptions struct {
	URL       string
	ProjectID string
	APIKey    string
}

// Complete reports whether every parameter needed to select the remote
// backend is present.
func (o RemoteOptions) Complete() bool {
	return o.URL != "" && o.ProjectID != "" && o.APIKey != ""
}

type Options struct {
	Remote       RemoteOptions
	LocalPath    string
	PollInterval time.Duration
}

// Open selects the backend once for the lifetime of the process: remote when
// its configuration is complete and valid, local otherwise. A skipped remote
// initialization is only logged.
func Open(ctx context.Context, opts Options, logger *slog.Logger) (Store, error) {
	if opts.Remote.Complete() {
		rdb, err := newRedisClient(opts.Remote)
		if err == nil {
			logger.Info("using remote store", "namespace", opts.Remote.ProjectID)
			return NewRemoteStore(rdb, opts.Remote.ProjectID, logger), nil
		}
		logger.Warn("remote store init skipped, using local store", "error", err)
	} else {
		logger.Info("remote store not configured, using local store (cross-device play needs REMOTE_URL, REMOTE_PROJECT_ID and REMOTE_API_KEY)")
	}

	db, err := database.Open(ctx, opts.LocalPath)
	if err != nil {
		return nil, fmt.Errorf("opening local store: %w", err)
	}
	if err := migrations.Run(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating local store: %w", err)
	}
	logger.Info("using local store", "path", opts.LocalPath, "poll_interval", opts.PollInterval)
	return NewLocalStore(db, opts.PollInterval, logger), nil
}

func newRedisClient(o RemoteOptions) (*redis.Client, error) {
	opt, err := redis.ParseURL(o.URL)
	if err != nil {
		return nil, fmt.Errorf("parsing remote url: %w", err)
	}
	opt.Password = o.APIKey
	return redis.NewClient(opt), nil
}
