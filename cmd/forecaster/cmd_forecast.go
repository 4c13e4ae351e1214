package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/ZanzyTHEbar/belief-engine/internal/bayes"
	"github.com/spf13/cobra"
)

var scenarioCount int

var interactiveCmd = &cobra.Command{
	Use:   "interactive",
	Short: "Build a forecast and update it with evidence interactively",
	Long: `Describe a situation, name the possible outcomes and weigh how likely
each one is. The weights are normalized into the starting distribution.

Then repeatedly enter evidence together with how likely that evidence would
be under each outcome, and watch the distribution move.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runInteractive(cmd.InOrStdin(), cmd.OutOrStdout(), scenarioCount)
	},
}

var weatherCmd = &cobra.Command{
	Use:   "weather",
	Short: "Sunny/Rainy/Cloudy forecast updated by one piece of evidence",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWeather(cmd.OutOrStdout())
	},
}

func init() {
	interactiveCmd.Flags().IntVarP(&scenarioCount, "scenarios", "n", 3, "Number of outcomes to forecast")
}

// errQuit ends the session when input runs out.
var errQuit = errors.New("quit")

type prompter struct {
	scanner *bufio.Scanner
	out     io.Writer
}

func (p *prompter) line(prompt string) (string, error) {
	fmt.Fprint(p.out, prompt)
	if !p.scanner.Scan() {
		if err := p.scanner.Err(); err != nil {
			return "", err
		}
		return "", errQuit
	}
	return strings.TrimSpace(p.scanner.Text()), nil
}

// number prompts until the answer parses as a number accepted by ok.
func (p *prompter) number(prompt string, ok func(float64) bool, hint string) (float64, error) {
	for {
		text, err := p.line(prompt)
		if err != nil {
			return 0, err
		}
		v, err := strconv.ParseFloat(text, 64)
		if err == nil && ok(v) {
			return v, nil
		}
		fmt.Fprintln(p.out, errorStyle.Render(hint))
	}
}

func nonNegative(v float64) bool { return v >= 0 }

func runInteractive(in io.Reader, out io.Writer, n int) error {
	if n < 1 {
		return fmt.Errorf("%w: need at least one scenario", bayes.ErrInvalidInput)
	}
	p := &prompter{scanner: bufio.NewScanner(in), out: out}

	fmt.Fprintln(out, titleStyle.Render("What situation do you want to forecast?"))
	situation, err := p.line("Situation: ")
	if err != nil {
		return ignoreQuit(err)
	}

	var f bayes.Forecaster
	for {
		scenarios := make([]string, 0, n)
		weights := make([]float64, 0, n)
		fmt.Fprintf(out, "\nEnter %d possible outcomes:\n", n)
		for i := 0; i < n; i++ {
			name, err := p.line(fmt.Sprintf("Scenario %d: ", i+1))
			if err != nil {
				return ignoreQuit(err)
			}
			w, err := p.number("How likely is this? (any non-negative weight): ", nonNegative, "Enter a number of at least 0.")
			if err != nil {
				return ignoreQuit(err)
			}
			scenarios = append(scenarios, name)
			weights = append(weights, w)
		}
		if err := f.InitializeNormalized(scenarios, weights); err != nil {
			fmt.Fprintln(out, errorStyle.Render(err.Error()))
			continue
		}
		break
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, titleStyle.Render(situation))
	printDistribution(out, f.Distribution())

	for {
		fmt.Fprintln(out, "\nOptions:\n  1. Add new evidence\n  2. See current probabilities\n  3. Quit")
		choice, err := p.line("Choice: ")
		if err != nil {
			return ignoreQuit(err)
		}
		switch choice {
		case "1":
			if err := addEvidence(p, &f); err != nil {
				return ignoreQuit(err)
			}
		case "2":
			printDistribution(out, f.Distribution())
			best, prob, _ := f.MostLikely()
			fmt.Fprintf(out, "\nMost likely: %s (%.1f%%)\n", successStyle.Render(best), prob*100)
		case "3", "q", "quit":
			return nil
		default:
			fmt.Fprintln(out, mutedStyle.Render("Pick 1, 2 or 3."))
		}
	}
}

func addEvidence(p *prompter, f *bayes.Forecaster) error {
	evidence, err := p.line("What new evidence do you have? ")
	if err != nil {
		return err
	}
	fmt.Fprintln(p.out, mutedStyle.Render("For each scenario, how likely is this evidence? (1.0 supports it, 0.0 contradicts it)"))

	likelihoods := make([]float64, 0, f.Len())
	for _, s := range f.Scenarios() {
		l, err := p.number(fmt.Sprintf("Evidence likelihood for '%s': ", s), nonNegative, "Enter a number of at least 0.")
		if err != nil {
			return err
		}
		likelihoods = append(likelihoods, l)
	}

	rec, err := f.Update(likelihoods)
	if err != nil {
		// the distribution is unchanged on rejection
		fmt.Fprintln(p.out, errorStyle.Render(err.Error()))
		return nil
	}
	fmt.Fprintf(p.out, "\nAfter %q (KL %.4f):\n", evidence, rec.KLDivergence)
	printDistribution(p.out, f.Distribution())
	return nil
}

func ignoreQuit(err error) error {
	if errors.Is(err, errQuit) {
		return nil
	}
	return err
}

func runWeather(out io.Writer) error {
	f, err := bayes.NewForecaster([]string{"Sunny", "Rainy", "Cloudy"}, []float64{0.4, 0.3, 0.3})
	if err != nil {
		return err
	}
	before := f.Distribution()

	rec, err := f.Update([]float64{0.1, 0.9, 0.5})
	if err != nil {
		return err
	}
	best, prob, err := f.MostLikely()
	if err != nil {
		return err
	}

	if jsonOutput {
		return printJSON(out, map[string]interface{}{
			"prior":       before,
			"evidence":    "dark clouds forming",
			"update":      rec,
			"most_likely": best,
			"probability": prob,
		})
	}

	fmt.Fprintln(out, titleStyle.Render("Prior"))
	printDistribution(out, before)
	fmt.Fprintln(out, titleStyle.Render("\nEvidence: dark clouds forming"))
	fmt.Fprintln(out, mutedStyle.Render("likelihoods Sunny 0.1, Rainy 0.9, Cloudy 0.5"))
	fmt.Fprintln(out, titleStyle.Render("\nPosterior"))
	printDistribution(out, f.Distribution())
	fmt.Fprintf(out, "\nMost likely: %s (%.1f%%), KL divergence %.4f\n", successStyle.Render(best), prob*100, rec.KLDivergence)
	return nil
}
