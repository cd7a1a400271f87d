package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"transcssr/adapters/dot"
	"transcssr/adapters/postgres"
	"transcssr/domain/core"
	"transcssr/domain/stream"
	"transcssr/internal/config"
	"transcssr/internal/filter"
	"transcssr/internal/infotheory"
	"transcssr/internal/reconstruct"
	"transcssr/internal/sweep"
	"transcssr/internal/testkit"
	"transcssr/internal/wordstats"
)

func main() {
	// Optional .env; absence is fine.
	godotenv.Load()

	rootCmd := &cobra.Command{
		Use:   "transcssr",
		Short: "Epsilon-machine and epsilon-transducer inference from symbol streams",
	}

	rootCmd.AddCommand(
		newInferCmd(),
		newFilterCmd(),
		newAnalyzeCmd(),
		newInspectCmd(),
		newSweepCmd(),
		newDemoCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadParams(cmd *cobra.Command) (core.Params, stream.Alphabet, stream.Alphabet, error) {
	cfg, err := config.Load()
	if err != nil {
		return core.Params{}, stream.Alphabet{}, stream.Alphabet{}, err
	}
	params, err := cfg.Params()
	if err != nil {
		return core.Params{}, stream.Alphabet{}, stream.Alphabet{}, err
	}
	inputs, outputs, err := cfg.Alphabets()
	if err != nil {
		return core.Params{}, stream.Alphabet{}, stream.Alphabet{}, err
	}

	if v, _ := cmd.Flags().GetFloat64("alpha"); v > 0 {
		params.Alpha = v
	}
	if v, _ := cmd.Flags().GetInt("l-max"); v > 0 {
		params.LMaxCSSR = v
		if params.LMaxWords < v {
			params.LMaxWords = v
		}
	}
	if v, _ := cmd.Flags().GetString("inputs"); v != "" {
		inputs, err = stream.ParseAlphabet(v)
		if err != nil {
			return core.Params{}, stream.Alphabet{}, stream.Alphabet{}, err
		}
	}
	if v, _ := cmd.Flags().GetString("outputs"); v != "" {
		outputs, err = stream.ParseAlphabet(v)
		if err != nil {
			return core.Params{}, stream.Alphabet{}, stream.Alphabet{}, err
		}
	}
	return params, inputs, outputs, nil
}

func addParamFlags(cmd *cobra.Command) {
	cmd.Flags().Float64("alpha", 0, "significance level for state splitting")
	cmd.Flags().Int("l-max", 0, "maximum history depth for state splitting")
	cmd.Flags().String("inputs", "", "input alphabet, e.g. \"01\"")
	cmd.Flags().String("outputs", "", "output alphabet, e.g. \"01\"")
	cmd.Flags().String("x", "", "input stream file (empty for output-only processes)")
}

func newInferCmd() *cobra.Command {
	var outPath string

	cmd := &cobra.Command{
		Use:   "infer [output-stream-file]",
		Short: "Reconstruct an epsilon-machine and write its DOT serialization",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			params, inputs, outputs, err := loadParams(cmd)
			if err != nil {
				return err
			}
			xPath, _ := cmd.Flags().GetString("x")
			ps, err := stream.LoadPaired(xPath, args[0], inputs, outputs)
			if err != nil {
				return err
			}

			tbl, err := wordstats.Estimate(ps, params.LMaxWords)
			if err != nil {
				return err
			}
			res, err := reconstruct.Reconstruct(tbl, params)
			if err != nil {
				return err
			}
			res.Machine.Name = machineName(xPath, args[0])

			if outPath == "" {
				outPath = res.Machine.Name + ".dot"
			}
			f, err := os.Create(outPath)
			if err != nil {
				return err
			}
			defer f.Close()
			if err := dot.Write(f, res.Machine); err != nil {
				return err
			}

			fmt.Printf("The epsilon-transducer has %d states (%d recurrent).\n",
				res.Machine.StateCount(), len(res.Machine.RecurrentStates()))
			fmt.Printf("Wrote %s\n", outPath)
			return nil
		},
	}
	addParamFlags(cmd)
	cmd.Flags().StringVar(&outPath, "out", "", "output DOT path")
	return cmd
}

func machineName(xPath, yPath string) string {
	y := strings.TrimSuffix(filepath.Base(yPath), filepath.Ext(yPath))
	if xPath == "" {
		return y
	}
	x := strings.TrimSuffix(filepath.Base(xPath), filepath.Ext(xPath))
	return x + "+" + y
}

func newFilterCmd() *cobra.Command {
	var failFast bool

	cmd := &cobra.Command{
		Use:   "filter [machine.dot] [output-stream-file]",
		Short: "Replay a stream through a machine and print its predictions",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			m, err := dot.Parse(data)
			if err != nil {
				return err
			}
			xPath, _ := cmd.Flags().GetString("x")
			ps, err := stream.LoadPaired(xPath, args[1], m.Inputs, m.Outputs)
			if err != nil {
				return err
			}

			res, err := filter.Replay(m, ps, filter.Options{FailFast: failFast})
			if err != nil {
				return err
			}

			var header []string
			for _, out := range m.Outputs.Symbols() {
				header = append(header, "P("+string(out)+")")
			}
			fmt.Printf("t\tstate\tpredicted\t%s\n", strings.Join(header, "\t"))
			for t := range res.Predictions {
				row := make([]string, len(res.Predictions[t]))
				for i, p := range res.Predictions[t] {
					row[i] = strconv.FormatFloat(p, 'f', 6, 64)
				}
				fmt.Printf("%d\t%d\t%s\t%s\n", t, res.States[t], res.Predicted[t], strings.Join(row, "\t"))
			}
			for _, v := range res.Violations {
				fmt.Fprintf(os.Stderr, "forbidden transition at step %d: state %d, pair %s\n", v.Step, v.State, v.Emission)
			}
			return nil
		},
	}
	cmd.Flags().String("x", "", "input stream file (empty for output-only processes)")
	cmd.Flags().BoolVar(&failFast, "fail-fast", false, "abort on the first forbidden transition")
	return cmd
}

func newAnalyzeCmd() *cobra.Command {
	var lMax int

	cmd := &cobra.Command{
		Use:   "analyze [machine.dot]",
		Short: "Compute information-theoretic measures of a machine",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			m, err := dot.Parse(data)
			if err != nil {
				return err
			}
			measures, err := infotheory.Analyze(m, infotheory.Options{LMax: lMax})
			if err != nil {
				return err
			}

			fmt.Printf("Cmu = %.6f bits\n", measures.Cmu)
			fmt.Printf("hmu = %.6f bits/symbol\n", measures.Hmu)
			fmt.Printf("E   = %.6f bits\n", measures.E)
			fmt.Printf("\nL\tH(L)\th(L)\tE(L)\n")
			for l := 1; l <= lMax; l++ {
				fmt.Printf("%d\t%.6f\t%.6f\t%.6f\n",
					l, measures.BlockEntropy[l-1], measures.CondEntropy[l-1], measures.ExcessEntropyL[l-1])
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&lMax, "l-max", 10, "lookback depth for finite-L measures")
	return cmd
}

func newInspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect [machine.dot]",
		Short: "Print each causal state's morph and transitions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			m, err := dot.Parse(data)
			if err != nil {
				return err
			}

			recurrent := make(map[int]bool)
			for _, id := range m.RecurrentStates() {
				recurrent[int(id)] = true
			}
			fmt.Printf("machine %s: %d states, start = %d\n", m.ID, m.StateCount(), m.Start)
			for _, st := range m.States {
				kind := "transient"
				if recurrent[int(st.ID)] {
					kind = "recurrent"
				}
				fmt.Printf("state %d (%s):\n", st.ID, kind)
				for _, e := range m.SortedEmissions(st.ID) {
					fmt.Printf("\t%s -> state %d\tP = %.6f\n", e, st.Next[e], st.Morph.Prob(e.In, e.Out))
				}
			}
			return nil
		},
	}
}

func newSweepCmd() *cobra.Command {
	var (
		alphasFlag string
		depthsFlag string
		workers    int
	)

	cmd := &cobra.Command{
		Use:   "sweep [output-stream-file]",
		Short: "Reconstruct machines over an (alpha, L) parameter grid in parallel",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			params, inputs, outputs, err := loadParams(cmd)
			if err != nil {
				return err
			}
			xPath, _ := cmd.Flags().GetString("x")
			ps, err := stream.LoadPaired(xPath, args[0], inputs, outputs)
			if err != nil {
				return err
			}

			alphas, err := parseFloats(alphasFlag)
			if err != nil {
				return err
			}
			depths, err := parseInts(depthsFlag)
			if err != nil {
				return err
			}

			points := sweep.Grid(alphas, depths)
			outcomes, err := sweep.Map(context.Background(), ps, points, sweep.Config{
				Params:  params,
				Workers: workers,
			})
			if err != nil {
				return err
			}

			fmt.Printf("alpha\tL\tstates\trecurrent\tCmu\thmu\tstatus\n")
			for _, o := range outcomes {
				if o.Err != nil {
					fmt.Printf("%g\t%d\t-\t-\t-\t-\t%v\n", o.Point.Alpha, o.Point.LMaxCSSR, o.Err)
					continue
				}
				fmt.Printf("%g\t%d\t%d\t%d\t%.4f\t%.4f\tok\n",
					o.Point.Alpha, o.Point.LMaxCSSR,
					o.Machine.StateCount(), len(o.Machine.RecurrentStates()),
					o.Measures.Cmu, o.Measures.Hmu)
			}

			report := sweep.Summarize(outcomes)
			fmt.Printf("\n%d runs: %d succeeded, %d forbidden, %d failed\n",
				report.Total, report.Succeeded, report.Forbidden, report.Failed)

			if url := os.Getenv("DATABASE_URL"); url != "" {
				db, err := postgres.Connect(url)
				if err != nil {
					return err
				}
				defer db.Close()
				if err := postgres.Migrate(db); err != nil {
					return err
				}
				repo := postgres.NewMachineRepository(db)
				id := core.SweepID(core.NewID())
				if err := repo.SaveSweepReport(context.Background(), id, report); err != nil {
					return err
				}
				fmt.Printf("saved sweep report %s\n", id)
			}
			return nil
		},
	}
	addParamFlags(cmd)
	cmd.Flags().StringVar(&alphasFlag, "alphas", "0.001", "comma-separated significance levels")
	// Depth 1 never yields a closed recurrent class, so it is not a
	// useful grid point.
	cmd.Flags().StringVar(&depthsFlag, "depths", "2,3", "comma-separated history depths (minimum useful depth is 2)")
	cmd.Flags().IntVar(&workers, "workers", 4, "concurrent reconstruction runs")
	return cmd
}

func newDemoCmd() *cobra.Command {
	var (
		process string
		n       int
		seed    int64
	)

	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Reconstruct a machine from a generated reference process",
		RunE: func(cmd *cobra.Command, args []string) error {
			params, _, _, err := loadParams(cmd)
			if err != nil {
				return err
			}

			var ys stream.Stream
			switch process {
			case "period2":
				ys = testkit.Periodic("01", n)
			case "even":
				ys = testkit.EvenProcess(n, seed)
			case "coinflip":
				ys = testkit.Coinflip(n, seed)
			case "golden-mean":
				ys = testkit.GoldenMean(n, seed)
			default:
				return fmt.Errorf("unknown process %q", process)
			}

			ps, err := testkit.OutputOnly(ys)
			if err != nil {
				return err
			}
			tbl, err := wordstats.Estimate(ps, params.LMaxWords)
			if err != nil {
				return err
			}
			res, err := reconstruct.Reconstruct(tbl, params)
			if err != nil {
				return err
			}
			measures, err := infotheory.Analyze(res.Machine, infotheory.Options{LMax: params.LMaxICT})
			if err != nil {
				return err
			}

			fmt.Printf("%s (n=%d): %d states (%d recurrent), Cmu = %.4f bits, hmu = %.4f bits/symbol, E = %.4f bits\n",
				process, n, res.Machine.StateCount(), len(res.Machine.RecurrentStates()),
				measures.Cmu, measures.Hmu, measures.E)
			return nil
		},
	}
	addParamFlags(cmd)
	cmd.Flags().StringVar(&process, "process", "even", "process to generate: period2, even, coinflip, golden-mean")
	cmd.Flags().IntVar(&n, "n", 100000, "stream length")
	cmd.Flags().Int64Var(&seed, "seed", 42, "generator seed")
	return cmd
}

func parseFloats(s string) ([]float64, error) {
	parts := strings.Split(s, ",")
	out := make([]float64, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("bad float %q: %w", p, err)
		}
		out = append(out, v)
	}
	return out, nil
}

func parseInts(s string) ([]int, error) {
	parts := strings.Split(s, ",")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("bad integer %q: %w", p, err)
		}
		out = append(out, v)
	}
	return out, nil
}
