// Package sweep runs independent reconstructions over a grid of
// (alpha, history depth) parameter points. Each point gets its own word
// statistics table and its own immutable machine; nothing is shared between
// runs, so the map is an explicit bounded parallel-map.
package sweep

import (
	"context"
	"errors"
	"math"

	"github.com/montanaflynn/stats"
	"golang.org/x/sync/errgroup"

	"transcssr/domain/core"
	"transcssr/domain/machine"
	"transcssr/domain/stream"
	"transcssr/internal/filter"
	"transcssr/internal/infotheory"
	"transcssr/internal/reconstruct"
	"transcssr/internal/wordstats"
	"transcssr/ports"
)

// Point is one parameter combination in the grid.
type Point struct {
	Alpha    float64
	LMaxCSSR int
}

// Grid builds the cross product of alphas and history depths.
func Grid(alphas []float64, depths []int) []Point {
	points := make([]Point, 0, len(alphas)*len(depths))
	for _, a := range alphas {
		for _, l := range depths {
			points = append(points, Point{Alpha: a, LMaxCSSR: l})
		}
	}
	return points
}

// Outcome is the explicit per-run result. Exactly one of the failure
// channels is populated on failure; a sentinel value is never substituted
// here - that decision belongs to the report layer.
type Outcome struct {
	Point     Point
	RunID     core.RunID
	Machine   *machine.Machine
	Measures  *infotheory.Measures
	Score     float64
	Scored    bool
	Forbidden bool
	Err       error
}

// Config configures a sweep.
type Config struct {
	// Params is the template; Alpha and LMaxCSSR are overridden per point.
	Params core.Params

	// Workers bounds concurrent runs. Zero means one worker per point.
	Workers int

	// Scorer and Test enable held-out scoring of each machine. The
	// filter runs fail-fast for scoring, so a forbidden transition marks
	// the outcome instead of producing a degenerate score.
	Scorer ports.Scorer
	Test   *stream.Paired
}

// Map reconstructs one machine per grid point over the training pair.
func Map(ctx context.Context, train stream.Paired, points []Point, cfg Config) ([]Outcome, error) {
	outcomes := make([]Outcome, len(points))

	g, ctx := errgroup.WithContext(ctx)
	if cfg.Workers > 0 {
		g.SetLimit(cfg.Workers)
	}
	for i, pt := range points {
		i, pt := i, pt
		g.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			outcomes[i] = run(train, pt, cfg)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return outcomes, err
	}
	return outcomes, nil
}

// run executes a single grid point. The word statistics table is scoped to
// this call; it dominates memory for long streams and is released as soon as
// the machine is built.
func run(train stream.Paired, pt Point, cfg Config) Outcome {
	out := Outcome{Point: pt, RunID: core.RunID(core.NewID())}

	params := cfg.Params
	params.Alpha = pt.Alpha
	params.LMaxCSSR = pt.LMaxCSSR
	if params.LMaxWords < pt.LMaxCSSR {
		params.LMaxWords = pt.LMaxCSSR
	}

	tbl, err := wordstats.Estimate(train, params.LMaxWords)
	if err != nil {
		out.Err = err
		return out
	}
	res, err := reconstruct.Reconstruct(tbl, params)
	if err != nil {
		out.Err = err
		return out
	}
	out.Machine = res.Machine

	measures, err := infotheory.Analyze(res.Machine, infotheory.Options{LMax: params.LMaxICT})
	if err != nil {
		out.Err = err
		return out
	}
	out.Measures = measures

	if cfg.Scorer != nil && cfg.Test != nil {
		replay, err := filter.Replay(res.Machine, *cfg.Test, filter.Options{FailFast: true})
		if err != nil {
			out.Forbidden = errors.Is(err, core.ErrForbiddenTransition)
			out.Err = err
			return out
		}
		score, err := cfg.Scorer.Score(replay.Predictions, observedOutputs(*cfg.Test), res.Machine.Outputs.Symbols())
		if err != nil {
			out.Err = err
			return out
		}
		out.Score = score
		out.Scored = true
	}
	return out
}

func observedOutputs(ps stream.Paired) []core.Symbol {
	obs := make([]core.Symbol, ps.Len())
	for i := range obs {
		obs[i] = ps.Y.At(i)
	}
	return obs
}

// Report aggregates a sweep. Score statistics are NaN when no run produced a
// score: that NaN is the documented sentinel substitution for failed runs,
// applied here and nowhere deeper.
type Report struct {
	Total     int
	Succeeded int
	Forbidden int
	Failed    int

	MeanScore   float64
	MedianScore float64
	StdDevScore float64
}

// Summarize folds outcomes into a report.
func Summarize(outcomes []Outcome) Report {
	r := Report{Total: len(outcomes)}
	var scores []float64
	for _, o := range outcomes {
		switch {
		case o.Err == nil:
			r.Succeeded++
			if o.Scored {
				scores = append(scores, o.Score)
			}
		case o.Forbidden:
			r.Forbidden++
		default:
			r.Failed++
		}
	}

	if len(scores) == 0 {
		r.MeanScore = math.NaN()
		r.MedianScore = math.NaN()
		r.StdDevScore = math.NaN()
		return r
	}
	r.MeanScore, _ = stats.Mean(scores)
	r.MedianScore, _ = stats.Median(scores)
	r.StdDevScore, _ = stats.StandardDeviation(scores)
	return r
}
