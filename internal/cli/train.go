package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/gzhole/claudewatch/internal/classifier"
	"github.com/gzhole/claudewatch/internal/engine"
)

var (
	trainOutput string
	trainTop    int
)

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Train the logistic_regression classifier over the resolved directions",
	Long: `Fit a class-balanced, L2-regularized logistic regression that predicts
P(bad) from the activations of the resolved directions, using the good and
bad example sets as training data.

The model is written to model_path, or to
data/models/classifier_<good>_vs_<bad>_<model>.json by default. A report of
the class balance, the strongest coefficients and precision/recall at
thresholds 0.5 to 0.9 is printed afterwards.`,
	RunE: trainCommand,
}

func init() {
	trainCmd.Flags().StringVarP(&trainOutput, "output", "o", "", "Write the model here instead of the configured path")
	trainCmd.Flags().IntVar(&trainTop, "top", 10, "Number of coefficients to show")
	trainCmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "Overwrite existing files without asking")
	rootCmd.AddCommand(trainCmd)
}

func trainCommand(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	output := trainOutput
	if output == "" {
		output = cfg.Watch.ClassifierPath()
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

	_, report, err := e.Train(cmd.Context(), output)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "\xe2\x9c\x85 Model written to %s\n\n", output)
	printReport(cmd.OutOrStdout(), report, trainTop)
	return nil
}

func printReport(w io.Writer, r classifier.Report, top int) {
	fmt.Fprintln(w, "═══════════════════════════════════════════")
	fmt.Fprintln(w, "  Training Report")
	fmt.Fprintln(w, "═══════════════════════════════════════════")
	fmt.Fprintf(w, "  Good examples:   %d\n", r.GoodExamples)
	fmt.Fprintf(w, "  Bad examples:    %d\n", r.BadExamples)
	fmt.Fprintf(w, "  Train accuracy:  %.3f\n", r.Accuracy)
	fmt.Fprintln(w, "═══════════════════════════════════════════")

	if len(r.Ranking) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "  Coefficients (positive pushes toward bad):")
		ranking := r.Ranking
		if top > 0 && len(ranking) > top {
			ranking = ranking[:top]
		}
		for _, a := range ranking {
			fmt.Fprintf(w, "    %+8.3f  [%s] %s\n", a.Value, a.Polarity, a.Label)
		}
	}

	if len(r.Thresholds) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "  Threshold  Precision  Recall  Alerts")
		for _, t := range r.Thresholds {
			fmt.Fprintf(w, "  %9.2f  %9.3f  %6.3f  %6d\n", t.Threshold, t.Precision, t.Recall, t.Alerts)
		}
	}
	fmt.Fprintln(w)
}
