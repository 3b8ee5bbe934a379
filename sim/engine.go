package sim

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/verdantlab/thicket/config"
	"github.com/verdantlab/thicket/field"
	"github.com/verdantlab/thicket/grammar"
	"github.com/verdantlab/thicket/plant"
	"github.com/verdantlab/thicket/systems"
)

// State is the scheduler's position in the tick cycle.
type State uint8

const (
	StateIdle State = iota
	StateSensing
	StateDeciding
	StateCommitting
	StateRelaxing
)

var stateNames = [...]string{"idle", "sensing", "deciding", "committing", "relaxing"}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", uint8(s))
}

// TickResult summarizes one committed tick for the driver.
type TickResult struct {
	Tick    int32
	Nodes   int // living nodes after commit
	Spawned int
	Pruned  int
	Faults  int // nodes skipped this tick due to stage panics
	Edits   int // pending edits merged
}

// Engine owns the committed snapshots and drives the tick cycle
// Idle -> Sensing -> Deciding -> Committing -> Relaxing -> Idle.
// It does not own pacing: the driver calls Advance.
//
// Between Advances, Graph() and Field() return the committed read-only
// snapshots. Consumers must copy what they keep: the buffers are swapped
// out at the next commit.
type Engine struct {
	cfg    *config.Config
	rules  *grammar.Table
	sensor *systems.Sensor
	pool   *workerPool
	log    *slog.Logger

	graph *plant.Graph // committed snapshot, read-only until next commit
	fld   *field.Field

	seed  int64
	tick  int32
	state State

	// Per-tick buffers, reused across ticks. Slot i belongs to the i-th
	// living node of the tick-start snapshot; workers write only to their
	// own slots.
	nodes   []plant.Node
	stimuli []systems.Stimulus
	faulted []bool
	edits   [][]Edit
	scratch [][]systems.Neighbor // one per worker
}

// New builds an engine over an initial graph and field. The initial
// condition is validated here: a malformed start is a startup fault, not
// a tick failure.
func New(cfg *config.Config, rules *grammar.Table, g *plant.Graph, f *field.Field, seed int64, log *slog.Logger) (*Engine, error) {
	if log == nil {
		log = slog.Default()
	}
	if err := g.Validate(); err != nil {
		return nil, fmt.Errorf("initial graph: %w", err)
	}
	if f.W != cfg.World.Width || f.H != cfg.World.Height || f.D != cfg.World.Depth {
		return nil, fmt.Errorf("field extent %dx%dx%d does not match configured world %dx%dx%d",
			f.W, f.H, f.D, cfg.World.Width, cfg.World.Height, cfg.World.Depth)
	}

	pool := newWorkerPool(cfg.Sim.Workers, cfg.Sim.ParallelThreshold)
	scratch := make([][]systems.Neighbor, pool.numWorkers)
	for i := range scratch {
		scratch[i] = make([]systems.Neighbor, 0, 64)
	}

	return &Engine{
		cfg:     cfg,
		rules:   rules,
		sensor:  systems.NewSensor(cfg),
		pool:    pool,
		log:     log,
		graph:   g,
		fld:     f,
		seed:    seed,
		scratch: scratch,
	}, nil
}

// Tick returns the number of committed ticks.
func (e *Engine) Tick() int32 { return e.tick }

// State returns the scheduler state; Idle between Advances.
func (e *Engine) State() State { return e.state }

// Graph returns the committed plant graph snapshot.
func (e *Engine) Graph() *plant.Graph { return e.graph }

// Field returns the committed environment field snapshot.
func (e *Engine) Field() *field.Field { return e.fld }

// Close stops the worker pool.
func (e *Engine) Close() {
	e.pool.stop()
}

// Advance runs one full tick. On success the new snapshots are committed
// and swapped in. ctx cancellation is honored up to the commit barrier;
// once committing starts the tick either completes or rolls back. On any
// error the committed snapshots are the pre-tick ones.
func (e *Engine) Advance(ctx context.Context) (TickResult, error) {
	tick := e.tick + 1

	e.state = StateSensing
	e.buildSnapshots()
	e.sensor.Rebuild(e.graph)
	n := len(e.nodes)
	e.pool.run(n, e.senseRange)

	e.state = StateDeciding
	e.pool.run(n, e.decideRange)

	// Nothing has been mutated yet; this is the last cancellation point.
	if err := ctx.Err(); err != nil {
		e.state = StateIdle
		return TickResult{Tick: tick}, fmt.Errorf("tick %d: %w", tick, ErrCanceled)
	}

	e.state = StateCommitting
	newGraph, newField, stats, cerr := e.commit(tick)
	if cerr != nil {
		// Rollback is keeping the old buffers: the new ones are discarded.
		e.state = StateIdle
		e.log.Error("tick failed", "tick", tick, "error", cerr)
		return TickResult{Tick: tick}, cerr
	}

	e.state = StateRelaxing
	newField = newField.Relax(field.RelaxParams{
		MoistureDiffusion: e.cfg.Field.MoistureDiffusion,
		Evaporation:       e.cfg.Field.Evaporation,
		TemperatureRelax:  e.cfg.Field.TemperatureRelax,
		DensityAbsorption: e.cfg.Field.DensityAbsorption,
	})

	// Atomic swap: the new buffers become the committed snapshots.
	e.graph = newGraph
	e.fld = newField
	e.tick = tick
	e.state = StateIdle

	res := TickResult{
		Tick:    tick,
		Nodes:   e.graph.Len(),
		Spawned: stats.spawned,
		Pruned:  stats.pruned,
		Faults:  countTrue(e.faulted),
		Edits:   stats.edits,
	}
	return res, nil
}

// AdvanceN runs up to n ticks, stopping at the first failure.
func (e *Engine) AdvanceN(ctx context.Context, n int) (TickResult, error) {
	var last TickResult
	for i := 0; i < n; i++ {
		res, err := e.Advance(ctx)
		if err != nil {
			return res, err
		}
		last = res
	}
	return last, nil
}

// buildSnapshots copies the living nodes into the per-tick slot buffers
// and resets the per-slot outputs.
func (e *Engine) buildSnapshots() {
	e.nodes = e.nodes[:0]
	e.graph.EachLive(func(n *plant.Node) {
		e.nodes = append(e.nodes, *n)
	})

	n := len(e.nodes)
	if cap(e.stimuli) < n {
		e.stimuli = make([]systems.Stimulus, n)
		e.faulted = make([]bool, n)
		e.edits = make([][]Edit, n)
	}
	e.stimuli = e.stimuli[:n]
	e.faulted = e.faulted[:n]
	e.edits = e.edits[:n]
	for i := range e.edits {
		e.edits[i] = e.edits[i][:0]
		e.faulted[i] = false
		e.stimuli[i] = systems.Stimulus{}
	}
}

// senseRange computes stimuli for a chunk of slots. A panic in one node's
// sensing is confined to that node: it is logged and the node is skipped
// for the tick.
func (e *Engine) senseRange(start, end, worker int) {
	for i := start; i < end; i++ {
		e.senseOne(i, worker)
	}
}

func (e *Engine) senseOne(i, worker int) {
	defer func() {
		if r := recover(); r != nil {
			e.faulted[i] = true
			e.log.Warn("sensing fault, node skipped",
				"node", e.nodes[i].ID, "kind", e.nodes[i].Kind.String(), "panic", r)
		}
	}()
	e.stimuli[i] = e.sensor.Sense(e.graph, e.fld, &e.nodes[i], e.scratch[worker])
}

// decideRange computes pending edits for a chunk of slots. Each slot
// writes only its own buffer; faults discard the slot's edits.
func (e *Engine) decideRange(start, end, worker int) {
	for i := start; i < end; i++ {
		if e.faulted[i] {
			continue
		}
		e.decideOne(i)
	}
}

func (e *Engine) decideOne(i int) {
	defer func() {
		if r := recover(); r != nil {
			e.faulted[i] = true
			e.edits[i] = e.edits[i][:0]
			e.log.Warn("deciding fault, node skipped",
				"node", e.nodes[i].ID, "kind", e.nodes[i].Kind.String(), "panic", r)
		}
	}()
	e.decideNode(i)
}

func countTrue(bs []bool) int {
	n := 0
	for _, b := range bs {
		if b {
			n++
		}
	}
	return n
}
