package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/ZanzyTHEbar/belief-engine/internal/bayes"
	"github.com/ZanzyTHEbar/belief-engine/internal/service"
	"github.com/spf13/cobra"
)

var (
	predictorName string
	tablePath     string
	featureArgs   []string
	priorFlag     float64
)

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Record a YAML feature table into a predictor",
	Long: `Load positive/total counts per (feature, value) from a YAML table and
store them under a predictor name. Without --table the bundled dating
compatibility table is used.`,
	RunE: runTrain,
}

var predictCmd = &cobra.Command{
	Use:   "predict",
	Short: "Predict the positive outcome probability from observed features",
	Example: `  forecaster predict --feature age=20-25 --feature smoking=no
  forecaster predict --name dating --feature children=2 --prior 0.3`,
	RunE: runPredict,
}

var importanceCmd = &cobra.Command{
	Use:   "importance <feature>",
	Short: "Show how each recorded value of a feature shifts the prior",
	Args:  cobra.ExactArgs(1),
	RunE:  runImportance,
}

func init() {
	for _, c := range []*cobra.Command{trainCmd, predictCmd, importanceCmd} {
		c.Flags().StringVar(&predictorName, "name", "dating", "Predictor name")
	}
	trainCmd.Flags().StringVarP(&tablePath, "table", "t", "", "YAML training table (default: bundled dating table)")
	predictCmd.Flags().StringArrayVarP(&featureArgs, "feature", "f", nil, "Observed feature as name=value; integers and true/false are typed")
	predictCmd.Flags().Float64Var(&priorFlag, "prior", 0, "Override the predictor's prior (0 keeps it)")
}

func loadTable(path string) (service.TrainingTable, error) {
	if path == "" {
		return service.DefaultTrainingTable(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return service.TrainingTable{}, err
	}
	defer f.Close()
	return service.LoadTrainingTable(f)
}

func runTrain(cmd *cobra.Command, args []string) error {
	table, err := loadTable(tablePath)
	if err != nil {
		return err
	}
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	name := predictorName
	if !cmd.Flags().Changed("name") && table.Name != "" {
		name = table.Name
	}
	n, err := a.PredictorService.Train(context.Background(), name, table)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s recorded %d rows into predictor %q\n", successStyle.Render("✓"), n, name)
	return nil
}

// parseFeature splits name=value. Integer and true/false values become
// typed values, everything else is a string.
func parseFeature(arg string) (bayes.FeatureInput, error) {
	name, raw, ok := strings.Cut(arg, "=")
	if !ok || strings.TrimSpace(name) == "" {
		return bayes.FeatureInput{}, fmt.Errorf("%w: feature %q is not name=value", bayes.ErrInvalidInput, arg)
	}
	name = strings.TrimSpace(name)
	raw = strings.TrimSpace(raw)
	if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return bayes.FeatureInput{Name: name, Value: bayes.Int(i)}, nil
	}
	switch raw {
	case "true":
		return bayes.FeatureInput{Name: name, Value: bayes.Bool(true)}, nil
	case "false":
		return bayes.FeatureInput{Name: name, Value: bayes.Bool(false)}, nil
	}
	return bayes.FeatureInput{Name: name, Value: bayes.String(raw)}, nil
}

func runPredict(cmd *cobra.Command, args []string) error {
	features := make([]bayes.FeatureInput, 0, len(featureArgs))
	for _, arg := range featureArgs {
		f, err := parseFeature(arg)
		if err != nil {
			return err
		}
		features = append(features, f)
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	var prior *float64
	if cmd.Flags().Changed("prior") {
		prior = &priorFlag
	}
	est, err := a.PredictorService.Predict(context.Background(), predictorName, features, prior)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if jsonOutput {
		return printJSON(out, est)
	}
	printEstimate(out, est)
	return nil
}

func printEstimate(out io.Writer, est bayes.Estimate) {
	fmt.Fprintln(out, titleStyle.Render("Trace"))
	for _, step := range est.Trace {
		label := fmt.Sprintf("%s=%s", step.Feature, step.Value)
		switch {
		case !step.Known:
			fmt.Fprintf(out, "  %s %s\n", labelStyle.Render(label), mutedStyle.Render("unknown, ignored"))
		case step.Absorbed:
			fmt.Fprintf(out, "  %s L=%.3f  %.4f (absorbed)\n", labelStyle.Render(label), step.Likelihood, step.After)
		default:
			fmt.Fprintf(out, "  %s L=%.3f  %.4f → %.4f\n", labelStyle.Render(label), step.Likelihood, step.Before, step.After)
		}
	}
	fmt.Fprintf(out, "\n%s %s %.1f%%\n", labelStyle.Render("Probability"), bar(est.Probability), est.Probability*100)
	fmt.Fprintf(out, "%s %d of %d features known (confidence %.0f%%)\n", labelStyle.Render("Confidence"), len(est.Used), len(est.Used)+len(est.Ignored), est.Confidence*100)
}

func runImportance(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	scores, err := a.PredictorService.Importance(context.Background(), predictorName, args[0])
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if jsonOutput {
		return printJSON(out, scores)
	}
	if len(scores) == 0 {
		fmt.Fprintf(out, "No values recorded for feature %q.\n", args[0])
		return nil
	}
	fmt.Fprintln(out, titleStyle.Render("Importance of "+args[0]))
	for _, s := range scores {
		fmt.Fprintf(out, "  %s likelihood %.3f  n=%-5d score %+.2f\n", labelStyle.Render(s.Value.String()), s.Likelihood, s.Total, s.Score)
	}
	return nil
}
