package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/albertocavalcante/modlens/internal/overlay"
)

var resolveFlags struct {
	dir     bool
	pattern string
	recurse bool
	json    bool
}

var resolveCmd = &cobra.Command{
	Use:   "resolve <path>",
	Short: "Show which file wins for a game-relative path",
	Long: `Resolves a path relative to the game root against the mod.

With --dir the path names a directory, and every effective file under it is
listed with the tree it comes from. Mod files hide same-named base files, and base
files under a path the descriptor replaces are left out.

Example:

  $ modlens resolve common/buildings/00_buildings.txt
  mod   /mods/mine/common/buildings/00_buildings.txt

  $ modlens resolve --dir common/ideologies --pattern '*.txt'`,
	Args: cobra.ExactArgs(1),
	RunE: runResolve,
}

func init() {
	resolveCmd.Flags().BoolVar(&resolveFlags.dir, "dir", false,
		"Treat the path as a directory and list its effective files")
	resolveCmd.Flags().StringVar(&resolveFlags.pattern, "pattern", "*",
		"File pattern for --dir (doublestar glob)")
	resolveCmd.Flags().BoolVar(&resolveFlags.recurse, "recurse", false,
		"Include subdirectories with --dir")
	resolveCmd.Flags().BoolVar(&resolveFlags.json, "json", false,
		"Output as JSON")

	rootCmd.AddCommand(resolveCmd)
}

// ResolvedFile is the JSON output format for one resolved file.
type ResolvedFile struct {
	Tree string `json:"tree"`
	Path string `json:"path"`
}

func runResolve(cmd *cobra.Command, args []string) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	r, err := overlay.NewResolver(cfg.Game.Root, cfg.Mod.Root, cfg.Watch.Ignore...)
	if err != nil {
		return err
	}

	var files []string
	if resolveFlags.dir {
		files, err = r.EffectiveFilesForDirectory(args[0], resolveFlags.pattern, resolveFlags.recurse)
		if err != nil {
			return err
		}
	} else {
		p, err := r.EffectiveFileForPath(args[0])
		if errors.Is(err, overlay.ErrNotFound) {
			return fmt.Errorf("%s: not found in game or mod", args[0])
		}
		if err != nil {
			return err
		}
		files = []string{p}
	}

	resolved := make([]ResolvedFile, 0, len(files))
	for _, f := range files {
		_, tree := r.Locate(f)
		resolved = append(resolved, ResolvedFile{Tree: tree.String(), Path: f})
	}

	out := cmd.OutOrStdout()
	if resolveFlags.json {
		return outputJSON(out, resolved)
	}
	for _, f := range resolved {
		fmt.Fprintf(out, "%-5s %s\n", f.Tree, f.Path)
	}
	return nil
}
