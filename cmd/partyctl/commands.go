package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/skip2/go-qrcode"
	"github.com/spf13/cobra"

	"github.com/curry-conqueror/NSTEM-Final/internal/party"
)

// withRepo runs fn against a freshly opened repository.
func withRepo(cmd *cobra.Command, cfg *Config, fn func(ctx context.Context, repo *party.Repository) error) error {
	ctx := cmd.Context()
	repo, closeStore, err := cfg.openRepo(ctx, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer closeStore()
	return fn(ctx, repo)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newCreateCmd(cfg *Config) *cobra.Command {
	var (
		pc         party.Config
		mode       string
		categories string
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a party and print its code and host id",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			pc.Mode = party.Mode(mode)
			if categories != "" {
				pc.Categories = strings.Split(categories, ",")
			}
			return withRepo(cmd, cfg, func(ctx context.Context, repo *party.Repository) error {
				created, err := repo.CreateParty(ctx, pc)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), map[string]string{"code": created.Code, "hostId": created.HostID})
			})
		},
	}
	fs := cmd.Flags()
	fs.StringVar(&mode, "mode", string(party.ModeSolo), "solo or teams")
	fs.IntVar(&pc.Rounds, "rounds", 3, "number of rounds")
	fs.IntVar(&pc.TimePerRound, "time-per-round", 60, "seconds per round")
	fs.IntVar(&pc.NumTeams, "teams", 2, "number of teams in teams mode")
	fs.StringVar(&pc.HostName, "host-name", "", "host display name")
	fs.StringVar(&pc.Store, "store", "", "store the hunt takes place in")
	fs.StringVar(&categories, "categories", "", "comma-separated item categories")
	return cmd
}

func newJoinCmd(cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "join CODE NAME",
		Short: "Join a party and print the new player id",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd, cfg, func(ctx context.Context, repo *party.Repository) error {
				joined, err := repo.JoinParty(ctx, args[0], args[1])
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), map[string]string{"playerId": joined.PlayerID})
			})
		},
	}
}

func newShowCmd(cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "show CODE",
		Short: "Print the party document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd, cfg, func(ctx context.Context, repo *party.Repository) error {
				p, err := repo.GetParty(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), p)
			})
		},
	}
}

func newAssignCmd(cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "assign CODE PLAYER [TEAM]",
		Short: "Move a player to a team, or back to unassigned when TEAM is omitted",
		Args:  cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			team := ""
			if len(args) == 3 {
				team = args[2]
			}
			return withRepo(cmd, cfg, func(ctx context.Context, repo *party.Repository) error {
				return repo.AssignPlayerToTeam(ctx, args[0], args[1], team)
			})
		},
	}
}

func newStartCmd(cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "start CODE",
		Short: "Start round 1",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd, cfg, func(ctx context.Context, repo *party.Repository) error {
				return repo.StartGame(ctx, args[0], nil)
			})
		},
	}
}

func newScanCmd(cfg *Config) *cobra.Command {
	var scan party.Scan
	cmd := &cobra.Command{
		Use:   "scan CODE PLAYER",
		Short: "Record a scan for the current round",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			scan.PlayerID = args[1]
			return withRepo(cmd, cfg, func(ctx context.Context, repo *party.Repository) error {
				// In team mode the scan counts for the player's team.
				if scan.TeamKey == "" {
					p, err := repo.GetParty(ctx, args[0])
					if err != nil {
						return err
					}
					if p.Mode == party.ModeTeams {
						scan.TeamKey = p.Players[scan.PlayerID].TeamKey()
					}
				}
				recorded, err := repo.RecordScan(ctx, args[0], scan)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), map[string]bool{"recorded": recorded})
			})
		},
	}
	fs := cmd.Flags()
	fs.Float64Var(&scan.TimeTaken, "time", 0, "seconds taken to find the item")
	fs.Float64Var(&scan.Points, "points", 0, "points earned")
	fs.StringVar(&scan.TeamKey, "team", "", "credit a team explicitly")
	return cmd
}

func newResultsCmd(cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "results CODE",
		Short: "Print the ranked standings",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd, cfg, func(ctx context.Context, repo *party.Repository) error {
				p, err := repo.GetParty(ctx, args[0])
				if err != nil {
					return err
				}
				w := cmd.OutOrStdout()
				for i, s := range party.Standings(p) {
					fmt.Fprintf(w, "%d. %s %s\n", i+1, s.Name, strconv.FormatFloat(s.Points, 'f', -1, 64))
				}
				return nil
			})
		},
	}
}

func newPlayAgainCmd(cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "play-again CODE",
		Short: "Open a new lobby with the same roster and print its code",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd, cfg, func(ctx context.Context, repo *party.Repository) error {
				newCode, err := repo.PlayAgain(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), map[string]string{"code": newCode})
			})
		},
	}
}

func newWatchCmd(cfg *Config) *cobra.Command {
	var (
		follow    bool
		maxEvents int
	)
	cmd := &cobra.Command{
		Use:   "watch CODE",
		Short: "Print every change to a party as one JSON line",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd, cfg, func(ctx context.Context, repo *party.Repository) error {
				return watch(ctx, repo, cmd.OutOrStdout(), args[0], follow, maxEvents)
			})
		},
	}
	cmd.Flags().BoolVar(&follow, "follow", true, "switch to the new party after play-again")
	cmd.Flags().IntVar(&maxEvents, "max-events", 0, "exit after this many changes (0 = until interrupted)")
	return cmd
}

// watch prints distinct snapshots of code until ctx ends or maxEvents have
// been printed.
func watch(ctx context.Context, repo *party.Repository, w io.Writer, code string, follow bool, maxEvents int) error {
	printed := 0
	for {
		next, err := watchOne(ctx, repo, w, code, follow, maxEvents, &printed)
		if err != nil || next == "" {
			return err
		}
		code = next
	}
}

// watchOne watches a single party and returns the code it redirects to, if
// it should be followed.
func watchOne(ctx context.Context, repo *party.Repository, w io.Writer, code string, follow bool, maxEvents int, printed *int) (string, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	snapshots := make(chan *party.Party, 1)
	sub, err := repo.SubscribeToParty(ctx, code, func(p *party.Party) {
		select {
		case snapshots <- p:
		case <-ctx.Done():
		}
	})
	if err != nil {
		return "", err
	}
	defer sub.Unsubscribe()

	return printSnapshots(ctx, w, snapshots, follow, maxEvents, printed)
}

func printSnapshots(ctx context.Context, w io.Writer, snapshots <-chan *party.Party, follow bool, maxEvents int, printed *int) (string, error) {
	var last []byte
	for {
		select {
		case <-ctx.Done():
			return "", nil
		case p := <-snapshots:
			data, err := json.Marshal(p)
			if err != nil {
				return "", err
			}
			if bytes.Equal(data, last) {
				continue
			}
			last = data
			if _, err := fmt.Fprintf(w, "%s\n", data); err != nil {
				return "", err
			}
			*printed++
			if maxEvents > 0 && *printed >= maxEvents {
				return "", nil
			}
			if next, ok := p.Redirect(); ok && follow {
				return next, nil
			}
		}
	}
}

func newQRCmd() *cobra.Command {
	var (
		baseURL string
		out     string
		size    int
	)
	cmd := &cobra.Command{
		Use:   "qr CODE",
		Short: "Print the join QR code, or write it as PNG with --out",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			code := party.NormalizeCode(args[0])
			if !party.ValidCode(code) {
				return fmt.Errorf("%q is not a party code", args[0])
			}
			q, err := qrcode.New(strings.TrimSuffix(baseURL, "/")+"/join/"+code, qrcode.Medium)
			if err != nil {
				return fmt.Errorf("encoding qr code: %w", err)
			}
			if out != "" {
				return q.WriteFile(size, out)
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), q.ToString(false))
			return err
		},
	}
	cmd.Flags().StringVar(&baseURL, "base-url", "http://localhost:8080", "public URL of the server")
	cmd.Flags().StringVarP(&out, "out", "o", "", "write a PNG to this file")
	cmd.Flags().IntVar(&size, "size", 320, "PNG size in pixels")
	return cmd
}
