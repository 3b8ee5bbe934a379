package main

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"sync"

	"github.com/verdantlab/thicket/config"
	"github.com/verdantlab/thicket/grammar"
	"github.com/verdantlab/thicket/sim"
	"github.com/verdantlab/thicket/telemetry"
)

// FitnessEvaluator runs headless simulations and scores growth.
type FitnessEvaluator struct {
	params   *ParamVector
	rules    *grammar.Table
	maxTicks int
	seeds    []int64
	baseCfg  *config.Config

	mu          sync.Mutex
	bestFitness float64
	lastQuality float64
}

// NewFitnessEvaluator creates a new evaluator.
func NewFitnessEvaluator(params *ParamVector, rules *grammar.Table, maxTicks int, seeds []int64, baseCfg *config.Config) *FitnessEvaluator {
	return &FitnessEvaluator{
		params:      params,
		rules:       rules,
		maxTicks:    maxTicks,
		seeds:       seeds,
		baseCfg:     baseCfg,
		bestFitness: math.Inf(1),
	}
}

// LastQuality returns the quality score from the most recent evaluation.
func (fe *FitnessEvaluator) LastQuality() float64 {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	return fe.lastQuality
}

// runResult holds the outcome of a single simulation run.
type runResult struct {
	survivalTicks int
	windows       []telemetry.WindowStats
	failed        bool
}

// Evaluate computes fitness for a raw parameter vector (lower = better).
// Fitness rewards surviving the full run with many leaves and a stable
// reserve distribution.
func (fe *FitnessEvaluator) Evaluate(raw []float64) float64 {
	results := make([]runResult, len(fe.seeds))
	var wg sync.WaitGroup
	for i, seed := range fe.seeds {
		wg.Add(1)
		go func(idx int, s int64) {
			defer wg.Done()
			results[idx] = fe.runSimulation(raw, s)
		}(i, seed)
	}
	wg.Wait()

	var totalFitness, totalQuality float64
	for _, r := range results {
		q := fe.computeQuality(r.windows)
		totalFitness += fe.computeFitness(r, q)
		totalQuality += q
	}

	n := float64(len(fe.seeds))
	avg := totalFitness / n

	fe.mu.Lock()
	if avg < fe.bestFitness {
		fe.bestFitness = avg
	}
	fe.lastQuality = totalQuality / n
	fe.mu.Unlock()

	return avg
}

// runSimulation executes one headless run until plant death, a failed
// tick, or maxTicks.
func (fe *FitnessEvaluator) runSimulation(raw []float64, seed int64) runResult {
	cfg := *fe.baseCfg
	if err := fe.params.Apply(&cfg, raw); err != nil {
		// Bounds are enforced by Denormalize, so this only fires on a
		// misconfigured base config.
		return runResult{failed: true}
	}

	log := slog.New(slog.DiscardHandler)
	eng, err := sim.New(&cfg, fe.rules, sim.NewSeedGraph(&cfg), sim.NewField(&cfg, seed), seed, log)
	if err != nil {
		return runResult{failed: true}
	}
	defer eng.Close()

	collector := telemetry.NewCollector(cfg.Telemetry.WindowTicks)
	var result runResult
	ctx := context.Background()

	for t := 0; t < fe.maxTicks; t++ {
		res, err := eng.Advance(ctx)
		if err != nil {
			var cerr *sim.CommitError
			if errors.As(err, &cerr) {
				result.failed = true
			}
			result.survivalTicks = int(eng.Tick())
			return result
		}
		collector.RecordTick(res)
		if ws := collector.EndOfTick(eng.Tick(), eng.Graph(), eng.Field()); ws != nil {
			result.windows = append(result.windows, *ws)
		}
		if res.Nodes == 0 {
			result.survivalTicks = int(eng.Tick())
			return result
		}
	}
	result.survivalTicks = fe.maxTicks
	return result
}

// computeFitness calculates the scalar fitness (lower = better).
// Survival dominates; quality adds up to a 30% bonus to differentiate
// configs that survive equally long.
func (fe *FitnessEvaluator) computeFitness(r runResult, quality float64) float64 {
	if r.failed {
		return 0
	}
	survival := float64(r.survivalTicks)
	return -(survival * (1.0 + 0.3*quality))
}

// Quality component weights.
const (
	qualityWeightCanopy  = 0.45
	qualityWeightReserve = 0.35
	qualityWeightBalance = 0.20

	qualityWarmupWindows = 2
)

// computeQuality scores plant health in [0,1] from window stats.
func (fe *FitnessEvaluator) computeQuality(windows []telemetry.WindowStats) float64 {
	if len(windows) <= qualityWarmupWindows {
		return 0
	}
	valid := windows[qualityWarmupWindows:]

	var canopySum, reserveSum, balanceSum float64
	var count int
	for _, w := range valid {
		if w.Nodes == 0 {
			continue
		}
		count++

		// Canopy size: saturating score on leaf count.
		canopySum += 1.0 - math.Exp(-float64(w.Leaves)/20.0)

		// Reserve health: median near the transport surplus point is
		// healthy, starving or hoarding both score low.
		target := fe.baseCfg.Plant.Transport.Surplus
		reserveSum += math.Exp(-math.Pow((w.ReserveP50-target)/(target*0.75), 2))

		// Structural balance: leaves should neither vanish nor dominate.
		leafFrac := float64(w.Leaves) / float64(w.Nodes)
		balanceSum += math.Exp(-math.Pow((leafFrac-0.5)/0.3, 2))
	}
	if count == 0 {
		return 0
	}
	n := float64(count)
	q := qualityWeightCanopy*(canopySum/n) +
		qualityWeightReserve*(reserveSum/n) +
		qualityWeightBalance*(balanceSum/n)
	return clamp01(q)
}

// clamp01 clamps x to [0, 1].
func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
