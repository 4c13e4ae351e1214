package main

import (
	"fmt"
	"io"
	"math/rand/v2"
	"strconv"

	"github.com/ZanzyTHEbar/belief-engine/internal/analysis"
	"github.com/ZanzyTHEbar/belief-engine/internal/bayes"
	"github.com/ZanzyTHEbar/belief-engine/internal/simulate"
	"github.com/spf13/cobra"
)

var (
	flipCount int
	flipBias  float64
	flipSeed  uint64
)

var coinflipCmd = &cobra.Command{
	Use:   "coinflip",
	Short: "Flip a coin and track the belief that it is fair",
	Long: `Flip a simulated coin that lands heads with probability --bias, then
update a Fair/Biased forecast after every flip. The biased hypothesis uses
the same bias as the simulated coin.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		seed := flipSeed
		if !cmd.Flags().Changed("seed") {
			seed = rand.Uint64()
		}
		return runCoinflip(cmd.OutOrStdout(), rand.New(rand.NewPCG(seed, seed)), flipCount, flipBias)
	},
}

var statsCmd = &cobra.Command{
	Use:     "stats <number>...",
	Short:   "Mean, median, mode and sample standard deviation",
	Example: "  forecaster stats 85 90 78 92 88 76 95 89 84 91",
	Args:    cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStats(cmd.OutOrStdout(), args)
	},
}

func init() {
	coinflipCmd.Flags().IntVarP(&flipCount, "flips", "n", 10, "Number of flips")
	coinflipCmd.Flags().Float64VarP(&flipBias, "bias", "b", 0.7, "Heads probability of the simulated coin")
	coinflipCmd.Flags().Uint64Var(&flipSeed, "seed", 0, "Random seed (default: random)")
}

func runCoinflip(out io.Writer, rng simulate.Rand, n int, bias float64) error {
	flips, err := simulate.CoinFlip(rng, n, bias)
	if err != nil {
		return err
	}
	res, err := simulate.FairnessForecast(flips.Sides, bias)
	if err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(out, map[string]interface{}{"flips": flips, "fairness": res})
	}

	fmt.Fprintln(out, titleStyle.Render(fmt.Sprintf("%d flips: %d heads, %d tails", n, flips.Heads, flips.Tails)))
	for i, side := range flips.Sides {
		fmt.Fprintf(out, "%4d %-6s P(fair) %s %5.1f%%\n", i+1, side, bar(res.FairHistory[i]), res.FairHistory[i]*100)
	}
	fmt.Fprintln(out)
	printDistribution(out, res.Distribution)
	return nil
}

func runStats(out io.Writer, args []string) error {
	xs := make([]float64, 0, len(args))
	for _, a := range args {
		v, err := strconv.ParseFloat(a, 64)
		if err != nil {
			return fmt.Errorf("%w: %q is not a number", bayes.ErrInvalidInput, a)
		}
		xs = append(xs, v)
	}

	mean, err := analysis.Mean(xs)
	if err != nil {
		return err
	}
	median, _ := analysis.Median(xs)
	mode, _ := analysis.Mode(xs)

	result := map[string]interface{}{"count": len(xs), "mean": mean, "median": median, "mode": mode}
	stddev, err := analysis.StdDev(xs)
	if err == nil {
		result["stddev"] = stddev
	}
	if jsonOutput {
		return printJSON(out, result)
	}

	fmt.Fprintf(out, "%s %d\n", labelStyle.Render("Count"), len(xs))
	fmt.Fprintf(out, "%s %.4g\n", labelStyle.Render("Mean"), mean)
	fmt.Fprintf(out, "%s %.4g\n", labelStyle.Render("Median"), median)
	fmt.Fprintf(out, "%s %.4g\n", labelStyle.Render("Mode"), mode)
	if err == nil {
		fmt.Fprintf(out, "%s %.4f\n", labelStyle.Render("Std deviation"), stddev)
	} else {
		fmt.Fprintf(out, "%s %s\n", labelStyle.Render("Std deviation"), mutedStyle.Render("needs at least two values"))
	}
	return nil
}
