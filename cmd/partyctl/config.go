package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/curry-conqueror/NSTEM-Final/internal/kvstore"
	"github.com/curry-conqueror/NSTEM-Final/internal/party"
)

type Config struct {
	dbPath          string
	pollInterval    time.Duration
	remoteURL       string
	remoteProjectID string
	remoteAPIKey    string
	verbose         bool
}

func (c *Config) validate() error {
	if c.pollInterval <= 0 {
		return errors.New("--poll-interval must be positive")
	}
	if c.dbPath == "" {
		return errors.New("--db-path must not be empty")
	}
	return nil
}

// openRepo opens the configured store. The returned func closes it.
func (c *Config) openRepo(ctx context.Context, stderr io.Writer) (*party.Repository, func(), error) {
	level := slog.LevelWarn
	if c.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	store, err := kvstore.Open(ctx, kvstore.Options{
		Remote: kvstore.RemoteOptions{
			URL:       c.remoteURL,
			ProjectID: c.remoteProjectID,
			APIKey:    c.remoteAPIKey,
		},
		LocalPath:    c.dbPath,
		PollInterval: c.pollInterval,
	}, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("opening party store: %w", err)
	}
	repo := party.NewRepository(store, party.WithLogger(logger))
	return repo, func() { store.Close() }, nil
}

func newRootCmd(cfg *Config, stdout, stderr io.Writer) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("PARTYCTL")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "partyctl",
		Short:         "Create, drive and watch game parties from the terminal.",
		Version:       releaseVersion,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return cfg.validate()
		},
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	fs := cmd.PersistentFlags()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVar(&cfg.dbPath, "db-path", "data/parties.db", "local store file (env: PARTYCTL_DB_PATH)")
	fs.DurationVar(&cfg.pollInterval, "poll-interval", party.PollInterval, "local store watch cadence (env: PARTYCTL_POLL_INTERVAL)")
	fs.StringVar(&cfg.remoteURL, "remote-url", "", "remote store URL, e.g. redis://host:6379/0 (env: PARTYCTL_REMOTE_URL)")
	fs.StringVar(&cfg.remoteProjectID, "remote-project-id", "", "remote store key namespace (env: PARTYCTL_REMOTE_PROJECT_ID)")
	fs.StringVar(&cfg.remoteAPIKey, "remote-api-key", "", "remote store password (env: PARTYCTL_REMOTE_API_KEY)")
	fs.BoolVarP(&cfg.verbose, "verbose", "v", false, "log store activity to stderr (env: PARTYCTL_VERBOSE)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.AddCommand(
		newCreateCmd(cfg),
		newJoinCmd(cfg),
		newShowCmd(cfg),
		newAssignCmd(cfg),
		newStartCmd(cfg),
		newScanCmd(cfg),
		newResultsCmd(cfg),
		newPlayAgainCmd(cfg),
		newWatchCmd(cfg),
		newQRCmd(),
	)

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("partyctl v{{.Version}}\n")

	return cmd
}
