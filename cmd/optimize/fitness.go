package main

import (
	"math"
	"sync"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/pthm-cable/flowfield/systems"
)

// FitnessEvaluator bakes candidate fields and scores them against a
// reference raster.
type FitnessEvaluator struct {
	params    *ParamVector
	builder   *systems.FieldBuilder
	surface   systems.Surface
	base      systems.Params
	reference *systems.FlowField
	field     *systems.FlowField

	mu          sync.Mutex
	bestFitness float64
	lastStats   systems.BuildStats
}

// NewFitnessEvaluator creates an evaluator. The reference resolution
// overrides the base parameters so the grids line up cell for cell.
func NewFitnessEvaluator(params *ParamVector, builder *systems.FieldBuilder, surface systems.Surface, base systems.Params, reference *systems.FlowField) *FitnessEvaluator {
	base.Resolution = reference.Resolution()
	return &FitnessEvaluator{
		params:      params,
		builder:     builder,
		surface:     surface,
		base:        base,
		reference:   reference,
		field:       &systems.FlowField{},
		bestFitness: math.Inf(1),
	}
}

// Evaluate bakes with raw parameter values and returns the mean squared
// error of decoded directions. Lower is better.
func (fe *FitnessEvaluator) Evaluate(raw []float64) float64 {
	fe.mu.Lock()
	defer fe.mu.Unlock()

	clamped := fe.params.Clamp(raw)
	p := fe.base
	p.Radius = clamped[0]
	p.Bias = r2.Vec{X: clamped[1], Y: clamped[2]}

	stats, err := fe.builder.Build(fe.field, fe.surface, p)
	if err != nil {
		return math.Inf(1)
	}
	fe.lastStats = stats

	fitness := RasterError(fe.field, fe.reference)
	if fitness < fe.bestFitness {
		fe.bestFitness = fitness
	}
	return fitness
}

// BestFitness returns the lowest error seen so far.
func (fe *FitnessEvaluator) BestFitness() float64 {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	return fe.bestFitness
}

// LastStats returns the build stats of the most recent evaluation.
func (fe *FitnessEvaluator) LastStats() systems.BuildStats {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	return fe.lastStats
}

// RasterError compares two fields the way a consumer of the raster sees
// them: both are run through the codec before differencing.
func RasterError(a, b *systems.FlowField) float64 {
	ra, rb := a.ExportRaster(), b.ExportRaster()
	if len(ra) != len(rb) || len(ra) == 0 {
		return math.Inf(1)
	}
	var sum float64
	for i := range ra {
		d := r2.Sub(systems.Decode(ra[i]), systems.Decode(rb[i]))
		sum += r2.Dot(d, d)
	}
	return sum / float64(len(ra))
}
