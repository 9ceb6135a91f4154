package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/albertocavalcante/modlens/internal/log"
	"github.com/albertocavalcante/modlens/internal/workspace"
)

var statusFlags struct {
	json bool
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Load every resource cache once and print entry counts",
	Long: `Loads the enabled resource caches from the base game and the mod and
prints how many files each one holds, along with the paths the mod's
descriptor.mod replaces.

The --json flag outputs the result as JSON for scripting.`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().BoolVar(&statusFlags.json, "json", false,
		"Output as JSON")

	rootCmd.AddCommand(statusCmd)
}

// StatusOutput is the JSON output format for modlens status.
type StatusOutput struct {
	Game      string             `json:"game"`
	Mod       string             `json:"mod,omitempty"`
	Replaced  []string           `json:"replaced,omitempty"`
	Resources []workspace.Status `json:"resources"`
	LogLevel  string             `json:"log_level"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	ws, err := workspace.Open(context.Background(), cfg)
	if err != nil {
		return err
	}
	defer func() { _ = ws.Close() }()

	r := ws.Resolver()
	output := StatusOutput{
		Game:      r.BaseRoot(),
		Resources: ws.Status(),
		LogLevel:  log.VerbosityName(log.Verbosity()),
	}
	if r.HasMod() {
		output.Mod = r.ModRoot()
		output.Replaced = r.Descriptor().ReplacedPaths()
	}

	out := cmd.OutOrStdout()
	if statusFlags.json {
		return outputJSON(out, output)
	}

	fmt.Fprintf(out, "game: %s\n", output.Game)
	fmt.Fprintf(out, "log:  -v=%d (%s)\n", log.Verbosity(), output.LogLevel)
	if output.Mod != "" {
		fmt.Fprintf(out, "mod:  %s\n", output.Mod)
	}
	for _, p := range output.Replaced {
		fmt.Fprintf(out, "  replaces %s\n", p)
	}
	fmt.Fprintln(out)
	for _, s := range output.Resources {
		fmt.Fprintf(out, "%-18s %5d  %s\n", s.Kind, s.Entries, s.Root)
	}
	return nil
}
