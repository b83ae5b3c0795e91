package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/gzhole/claudewatch/internal/approval"
	"github.com/gzhole/claudewatch/internal/engine"
)

var (
	vectorsOutput string
	assumeYes     bool
)

var generateVectorsCmd = &cobra.Command{
	Use:   "generate-vectors",
	Short: "Derive feature directions from the good and bad example sets",
	Long: `Extract feature activations for every good and bad example, contrast the
two sets and write the top discriminative features of each polarity to a
direction file.

The default output is data/vectors/discriminative_<good>_vs_<bad>_<model>.json,
which analyze picks up automatically. Activations are cached in the data
directory so regenerating after editing examples only extracts new texts.`,
	RunE: generateVectorsCommand,
}

func init() {
	generateVectorsCmd.Flags().StringVarP(&vectorsOutput, "output", "o", "", "Write the direction file here instead of the derived path")
	generateVectorsCmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "Overwrite existing files without asking")
	rootCmd.AddCommand(generateVectorsCmd)
}

func generateVectorsCommand(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	output := vectorsOutput
	if output == "" {
		output = cfg.Watch.DerivedVectorPath()
	}
	if !confirmOverwrite(output) {
		fmt.Fprintln(cmd.OutOrStdout(), "Aborted.")
		return nil
	}

	e, err := engine.Open(cfg.Watch, engine.Options{})
	if err != nil {
		return err
	}
	defer func() {
		if err := e.Close(); err != nil {
			warnf("%v", err)
		}
	}()

	set, path, err := e.GenerateVectors(cmd.Context(), output)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "\xe2\x9c\x85 Wrote %d directions to %s\n", set.Len(), path)
	fmt.Fprintf(out, "   Good (%s): %d\n", cfg.Watch.GoodLabel, len(set.Good))
	for _, d := range set.Good {
		fmt.Fprintf(out, "     %s  %s\n", d.ID, d.Label)
	}
	fmt.Fprintf(out, "   Bad (%s): %d\n", cfg.Watch.BadLabel, len(set.Bad))
	for _, d := range set.Bad {
		fmt.Fprintf(out, "     %s  %s\n", d.ID, d.Label)
	}
	return nil
}

func confirmOverwrite(path string) bool {
	if assumeYes {
		return true
	}
	if _, err := os.Stat(path); err != nil {
		return true
	}
	return approval.Overwrite(path).Approved
}
