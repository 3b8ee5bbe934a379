// Package telemetry aggregates per-window simulation statistics and
// writes them as CSV for offline analysis.
package telemetry

import (
	"sort"

	"gonum.org/v1/gonum/stat"
)

// WindowStats holds aggregated statistics for a tick window.
type WindowStats struct {
	WindowEndTick int32 `csv:"window_end"`

	// Population at window end
	Nodes     int `csv:"nodes"`
	Seeds     int `csv:"seeds"`
	Stems     int `csv:"stems"`
	Branches  int `csv:"branches"`
	Leaves    int `csv:"leaves"`
	Meristems int `csv:"meristems"`

	// Events during window
	Spawned     int `csv:"spawned"`
	Pruned      int `csv:"pruned"`
	Faults      int `csv:"faults"`
	FailedTicks int `csv:"failed_ticks"`
	Edits       int `csv:"edits"`

	// Reserve distribution (sampled at window end)
	ReserveMean float64 `csv:"reserve_mean"`
	ReserveP10  float64 `csv:"reserve_p10"`
	ReserveP50  float64 `csv:"reserve_p50"`
	ReserveP90  float64 `csv:"reserve_p90"`

	// Field totals (for budget tracking)
	MoistureTotal float64 `csv:"moisture_total"`
	DensityTotal  float64 `csv:"density_total"`
	SunlightMean  float64 `csv:"sunlight_mean"`
}

// ReserveStats computes mean and percentiles of node reserves.
func ReserveStats(values []float64) (mean, p10, p50, p90 float64) {
	if len(values) == 0 {
		return 0, 0, 0, 0
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	mean = stat.Mean(sorted, nil)
	p10 = stat.Quantile(0.10, stat.Empirical, sorted, nil)
	p50 = stat.Quantile(0.50, stat.Empirical, sorted, nil)
	p90 = stat.Quantile(0.90, stat.Empirical, sorted, nil)
	return mean, p10, p50, p90
}
