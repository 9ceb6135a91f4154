package cli

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/albertocavalcante/modlens/cmd/modlens/internal/console"
	"github.com/albertocavalcante/modlens/internal/workspace"
)

var watchFlags struct {
	json    bool
	noColor bool
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Load resource caches and follow file changes",
	Long: `Loads every enabled resource cache, then watches the game and mod
directories and prints one line per resource change as the caches update.

Example output:

  $ modlens watch --game ~/hoi4 --mod ~/mods/mine

  modlens: game /home/me/hoi4
  modlens: mod  /home/me/mods/mine
  modlens: static_modifiers     41 files  (common/modifiers)
  modlens: buildings             3 files  (common/buildings)
  modlens: ready

  [14:32:15] ~ buildings /home/me/mods/mine/common/buildings/00_buildings.txt

Press Ctrl+C to stop watching.`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().BoolVar(&watchFlags.json, "json", false,
		"Stream JSON events (for tooling integration)")
	watchCmd.Flags().BoolVar(&watchFlags.noColor, "no-color", false,
		"Disable colored output")

	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	// Include SIGHUP to handle terminal hangup
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
	defer cancel()

	ws, err := workspace.Open(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = ws.Close() }()

	reporter := console.NewReporter(console.Config{
		Writer:  cmd.OutOrStdout(),
		NoColor: watchFlags.noColor,
		JSON:    watchFlags.json,
	})
	ws.Subscribe(func(kind, path string) {
		change := console.ChangeModified
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			change = console.ChangeDeleted
		}
		reporter.Changed(kind, path, change)
	})

	r := ws.Resolver()
	mod := ""
	if r.HasMod() {
		mod = r.ModRoot()
	}
	reporter.Ready(ws.Status(), r.BaseRoot(), mod)

	err = ws.Run(ctx)
	if err != nil {
		reporter.Error(err)
	}
	reporter.Shutdown()
	return err
}
