package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/albertocavalcante/modlens/internal/log"
	"github.com/albertocavalcante/modlens/internal/modifier"
	"github.com/albertocavalcante/modlens/internal/overlay"
	"github.com/albertocavalcante/modlens/internal/rescache"
	"github.com/albertocavalcante/modlens/internal/resources"
)

var modifiersFlags struct {
	json bool
}

var modifiersCmd = &cobra.Command{
	Use:   "modifiers <static_modifier>...",
	Short: "Merge static modifiers and print the totals",
	Long: `Loads common/modifiers, looks up each named static modifier and prints
the sum of their values. Grouped modifiers are summed per group; tooltip
keys are listed verbatim.

Example:

  $ modlens modifiers war_support_boost stability_boost
  custom_modifier_tooltip = WS_TT
  stability_factor = 0.15
  war_support_factor = 0.1`,
	Args: cobra.MinimumNArgs(1),
	RunE: runModifiers,
}

func init() {
	modifiersCmd.Flags().BoolVar(&modifiersFlags.json, "json", false,
		"Output as JSON")

	rootCmd.AddCommand(modifiersCmd)
}

// ModifierOutput is the JSON output format for one merged modifier.
type ModifierOutput struct {
	Key    string           `json:"key"`
	Value  string           `json:"value,omitempty"`
	Leaves []ModifierOutput `json:"leaves,omitempty"`
}

// ModifiersOutput is the JSON output format for modlens modifiers.
type ModifiersOutput struct {
	Modifiers []ModifierOutput `json:"modifiers"`
	Missing   []string         `json:"missing,omitempty"`
}

func runModifiers(cmd *cobra.Command, args []string) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	r, err := overlay.NewResolver(cfg.Game.Root, cfg.Mod.Root, cfg.Watch.Ignore...)
	if err != nil {
		return err
	}
	opts := resources.Options{Ignore: cfg.Watch.Ignore}
	if !cfg.ParallelLoad() {
		opts.Load = rescache.LoadSequential
	}
	sm, err := resources.NewStaticModifiers(context.Background(), r, opts)
	if err != nil {
		return err
	}

	comp := resources.NewComposite(sm, args...)
	defer comp.Close()
	for _, name := range comp.Missing() {
		log.Warn("static modifier not defined", "name", name)
	}

	output := ModifiersOutput{Missing: comp.Missing()}
	for _, m := range comp.Merged() {
		output.Modifiers = append(output.Modifiers, toOutput(m))
	}

	out := cmd.OutOrStdout()
	if modifiersFlags.json {
		return outputJSON(out, output)
	}
	for _, m := range output.Modifiers {
		printModifier(cmd, m, 0)
	}
	return nil
}

func toOutput(m modifier.Modifier) ModifierOutput {
	if !m.IsGroup() {
		return ModifierOutput{Key: m.Key, Value: m.Raw}
	}
	o := ModifierOutput{Key: m.Key}
	for _, l := range m.Leaves {
		o.Leaves = append(o.Leaves, toOutput(l))
	}
	return o
}

func printModifier(cmd *cobra.Command, m ModifierOutput, depth int) {
	indent := strings.Repeat("\t", depth)
	out := cmd.OutOrStdout()
	if m.Leaves == nil {
		fmt.Fprintf(out, "%s%s = %s\n", indent, m.Key, m.Value)
		return
	}
	fmt.Fprintf(out, "%s%s = {\n", indent, m.Key)
	for _, l := range m.Leaves {
		printModifier(cmd, l, depth+1)
	}
	fmt.Fprintf(out, "%s}\n", indent)
}
