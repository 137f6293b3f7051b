// Command partyctl operates on parties directly through the same store the
// server uses: create and inspect lobbies, drive a game from a terminal, or
// watch a party live.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

const releaseVersion = "0.1.0"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg := &Config{}
	cmd := newRootCmd(cfg, os.Stdout, os.Stderr)
	cobra.CheckErr(cmd.ExecuteContext(ctx))
}
