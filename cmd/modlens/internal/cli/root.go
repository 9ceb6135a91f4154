// Package cli implements the modlens command-line interface.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/albertocavalcante/modlens/internal/log"
	"github.com/albertocavalcante/modlens/pkg/config"
)

// Version information (set via ldflags)
var (
	Version   = "dev"
	GitCommit = "unknown"
)

// globalFlags holds persistent flags that apply to all commands
var globalFlags struct {
	verbosity  int
	logFormat  string
	game       string
	mod        string
	configPath string
}

// cfg is the effective configuration, resolved before each command runs.
var cfg *config.Config

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "modlens",
	Short: "Live, overlay-aware view of Paradox game data",
	Long: `Modlens loads game data files from a base game installation and a mod,
resolves which file wins for every path, and keeps the parsed result in step
with the disk while you edit.

Paths come from --game and --mod, the MODLENS_* environment, or a
modlens.toml / .modlens/config.toml project file.`,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
	// Default behavior: show help
	Run: func(cmd *cobra.Command, _ []string) {
		_ = cmd.Help()
	},
}

// versionCmd shows version information
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "modlens %s (%s)\n", Version, GitCommit)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)

	// Global flags (persistent across all commands)
	rootCmd.PersistentFlags().IntVarP(&globalFlags.verbosity, "verbosity", "v", 1,
		log.VerbosityHelp())
	rootCmd.PersistentFlags().StringVar(&globalFlags.logFormat, "log-format", "text",
		"Log format (text, json)")
	rootCmd.PersistentFlags().StringVar(&globalFlags.game, "game", "",
		"Base game directory (overrides game.root)")
	rootCmd.PersistentFlags().StringVar(&globalFlags.mod, "mod", "",
		"Mod directory (overrides mod.root)")
	rootCmd.PersistentFlags().StringVar(&globalFlags.configPath, "config", "",
		"Config file to use instead of the global and project files")
}

// loadConfig resolves every configuration layer and applies CLI flags on top.
// This runs after flags are parsed but before command execution.
func loadConfig(cmd *cobra.Command, _ []string) error {
	var err error
	if globalFlags.configPath != "" {
		if cfg, err = config.LoadFile(globalFlags.configPath); err != nil {
			return err
		}
	} else {
		cfg = config.Load()
	}

	flags := cmd.Flags()
	if flags.Changed("game") {
		cfg.Game.Root = globalFlags.game
	}
	if flags.Changed("mod") {
		cfg.Mod.Root = globalFlags.mod
	}
	if flags.Changed("verbosity") {
		v := globalFlags.verbosity
		cfg.Log.Verbosity = &v
	}
	if flags.Changed("log-format") {
		cfg.Log.Format = globalFlags.logFormat
	}

	log.Init(cfg.LogVerbosity(), cfg.Log.Format)
	return nil
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// RootCmd returns the root command for testing.
func RootCmd() *cobra.Command {
	return rootCmd
}

func outputJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
