package main

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/optimize"
	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/flowfield/config"
	"github.com/pthm-cable/flowfield/systems"
)

func calibrationSetup(t *testing.T) (*systems.FieldBuilder, systems.Surface) {
	t.Helper()
	grid, err := systems.NewSpatialGrid(1, 5)
	if err != nil {
		t.Fatal(err)
	}
	for _, s := range []systems.Sphere{
		{Center: r3.Vec{X: -1.5, Z: 1}, Radius: 0.6},
		{Center: r3.Vec{X: 2, Z: -1}, Radius: 0.8},
	} {
		grid.Insert(systems.SolidObstacle(s), s.Bounds())
	}
	surface := systems.Surface{Width: 8, Depth: 8, Pose: systems.IdentityPose()}
	return systems.NewFieldBuilder(grid, 2), surface
}

func TestParamVectorNormalizeRoundTrip(t *testing.T) {
	pv := NewParamVector(nil)
	raw := []float64{3.3, -0.2, 0.45}
	back := pv.Denormalize(pv.Normalize(raw))
	for i := range raw {
		if math.Abs(back[i]-raw[i]) > 1e-12 {
			t.Errorf("param %s: %v -> %v", pv.Specs[i].Name, raw[i], back[i])
		}
	}
	clamped := pv.Clamp([]float64{100, -3, 3})
	if clamped[0] != 10 || clamped[1] != -0.5 || clamped[2] != 0.5 {
		t.Errorf("Clamp = %v", clamped)
	}
}

func TestApplyToConfig(t *testing.T) {
	cfg, err := config.Load("")
	if err != nil {
		t.Fatal(err)
	}
	pv := NewParamVector(cfg)
	if err := pv.ApplyToConfig(cfg, []float64{1.25, 0.1, -0.2}); err != nil {
		t.Fatal(err)
	}
	if cfg.Derived.Params.Radius != 1.25 || cfg.Derived.Params.Bias != (r2.Vec{X: 0.1, Y: -0.2}) {
		t.Errorf("derived params not refreshed: %+v", cfg.Derived.Params)
	}
	got := pv.ExtractFromConfig(cfg)
	if got[0] != 1.25 || got[1] != 0.1 || got[2] != -0.2 {
		t.Errorf("ExtractFromConfig = %v", got)
	}
}

func TestEvaluateZeroAtTruth(t *testing.T) {
	builder, surface := calibrationSetup(t)
	truth := systems.Params{Resolution: 32, Radius: 1.5, Bias: r2.Vec{X: 0.05, Y: -0.1}}
	reference := &systems.FlowField{}
	if _, err := builder.Build(reference, surface, truth); err != nil {
		t.Fatal(err)
	}

	pv := NewParamVector(nil)
	fe := NewFitnessEvaluator(pv, builder, surface, systems.Params{Resolution: 64, Radius: 1}, reference)

	if got := fe.Evaluate([]float64{1.5, 0.05, -0.1}); got > 1e-12 {
		t.Errorf("error at the true parameters = %v", got)
	}
	off := fe.Evaluate([]float64{0.5, 0.2, 0.1})
	if off <= 1e-6 {
		t.Errorf("wrong parameters scored %v", off)
	}
	if fe.BestFitness() > 1e-12 {
		t.Errorf("best fitness = %v", fe.BestFitness())
	}
}

func TestCalibrationRecoversBias(t *testing.T) {
	builder, surface := calibrationSetup(t)
	truth := systems.Params{Resolution: 32, Radius: 2, Bias: r2.Vec{X: 0.15, Y: -0.05}}
	reference := &systems.FlowField{}
	if _, err := builder.Build(reference, surface, truth); err != nil {
		t.Fatal(err)
	}

	pv := NewParamVector(nil)
	fe := NewFitnessEvaluator(pv, builder, surface, truth, reference)
	problem := optimize.Problem{
		Func: func(x []float64) float64 { return fe.Evaluate(pv.Denormalize(x)) },
	}
	start := pv.Normalize([]float64{2, 0, 0})
	if _, err := optimize.Minimize(problem, start, &optimize.Settings{FuncEvaluations: 300}, &optimize.NelderMead{}); err != nil {
		t.Logf("optimizer stopped: %v", err)
	}
	if fe.BestFitness() > 1e-3 {
		t.Errorf("calibration did not converge, best mse %v", fe.BestFitness())
	}
}

func TestRasterErrorMismatchedSize(t *testing.T) {
	a, _ := systems.NewFlowField(32, r2.Vec{})
	b, _ := systems.NewFlowField(64, r2.Vec{})
	if !math.IsInf(RasterError(a, b), 1) {
		t.Error("expected +Inf for mismatched resolutions")
	}
	if RasterError(a, a) != 0 {
		t.Error("expected zero error against itself")
	}
}
