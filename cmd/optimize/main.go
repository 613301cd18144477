// Calibration tool: fits influence radius and bias so a baked field matches a
// reference flow raster.
//
// Usage: go run ./cmd/optimize -reference target.png -output calib/
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/gocarina/gocsv"
	"gonum.org/v1/gonum/optimize"

	"github.com/pthm-cable/flowfield/config"
	"github.com/pthm-cable/flowfield/renderer"
	"github.com/pthm-cable/flowfield/scene"
	"github.com/pthm-cable/flowfield/systems"
)

// EvalRecord is one row of optimize_log.csv.
type EvalRecord struct {
	Eval       int     `csv:"eval"`
	Fitness    float64 `csv:"fitness"`
	Radius     float64 `csv:"radius"`
	BiasX      float64 `csv:"bias_x"`
	BiasY      float64 `csv:"bias_y"`
	EmptyCells int     `csv:"empty_cells"`
	ResolveUS  int64   `csv:"resolve_us"`
}

// formatDuration formats a duration as HH:MM:SS or MM:SS for shorter durations.
func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%dh%02dm%02ds", h, m, s)
	}
	return fmt.Sprintf("%dm%02ds", m, s)
}

func main() {
	configPath := flag.String("config", "", "Base config YAML file (empty = use defaults)")
	referencePath := flag.String("reference", "", "Reference flow raster PNG")
	maxEvals := flag.Int("max-evals", 200, "Maximum number of evaluations")
	methodName := flag.String("method", "nelder-mead", "Optimizer: nelder-mead or cmaes")
	population := flag.Int("population", 0, "CMA-ES population size (0 = auto)")
	outputDir := flag.String("output", "", "Output directory for results")
	flag.Parse()

	if *outputDir == "" || *referencePath == "" {
		log.Fatal("--reference and --output are required")
	}
	if err := os.MkdirAll(*outputDir, 0755); err != nil {
		log.Fatalf("failed to create output directory: %v", err)
	}

	if err := config.Init(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	baseCfg := config.Cfg()

	reference, err := renderer.LoadPNG(*referencePath, baseCfg.Derived.Params.Bias)
	if err != nil {
		log.Fatalf("failed to load reference: %v", err)
	}

	sc, err := scene.Load(baseCfg.Scene)
	if err != nil {
		log.Fatalf("failed to build scene: %v", err)
	}
	index, err := sc.Index(baseCfg.Query.CellSize, baseCfg.Query.MaxResults)
	if err != nil {
		log.Fatalf("failed to index scene: %v", err)
	}
	builder := systems.NewFieldBuilder(index, baseCfg.Build.Workers)

	params := NewParamVector(baseCfg)
	evaluator := NewFitnessEvaluator(params, builder, baseCfg.Derived.Surface, baseCfg.Derived.Params, reference)

	dim := params.Dim()
	initX := params.Normalize(params.DefaultVector())

	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			return evaluator.Evaluate(params.Denormalize(x))
		},
	}
	settings := &optimize.Settings{
		FuncEvaluations: *maxEvals,
		Concurrent:      0, // Builder already uses every core
	}

	var method optimize.Method
	switch *methodName {
	case "nelder-mead":
		method = &optimize.NelderMead{}
	case "cmaes":
		popSize := *population
		if popSize == 0 {
			popSize = 4 + int(3.0*float64(dim)/2.0)
		}
		method = &optimize.CmaEsChol{InitStepSize: 0.3, Population: popSize}
	default:
		log.Fatalf("unknown method %q", *methodName)
	}

	logPath := filepath.Join(*outputDir, "optimize_log.csv")
	logFile, err := os.Create(logPath)
	if err != nil {
		log.Fatalf("failed to create log file: %v", err)
	}
	defer logFile.Close()
	headerWritten := false

	evalCount := 0
	bestFitness := 1e9
	var bestParams []float64
	startTime := time.Now()

	originalFunc := problem.Func
	problem.Func = func(x []float64) float64 {
		fitness := originalFunc(x)
		evalCount++

		clamped := params.Clamp(params.Denormalize(x))
		if fitness < bestFitness {
			bestFitness = fitness
			bestParams = clamped
		}

		stats := evaluator.LastStats()
		rec := []EvalRecord{{
			Eval:       evalCount,
			Fitness:    fitness,
			Radius:     clamped[0],
			BiasX:      clamped[1],
			BiasY:      clamped[2],
			EmptyCells: stats.EmptyCells,
			ResolveUS:  stats.ResolveDuration.Microseconds(),
		}}
		if headerWritten {
			err = gocsv.MarshalWithoutHeaders(rec, logFile)
		} else {
			err = gocsv.Marshal(rec, logFile)
			headerWritten = true
		}
		if err != nil {
			log.Printf("failed to log evaluation: %v", err)
		}

		elapsed := time.Since(startTime)
		avgPerEval := elapsed / time.Duration(evalCount)
		remaining := time.Duration(*maxEvals-evalCount) * avgPerEval
		fmt.Printf("Eval %d/%d: mse=%.6f radius=%.3f bias=(%.3f, %.3f) (best=%.6f) | elapsed: %s, ETA: %s\n",
			evalCount, *maxEvals, fitness, clamped[0], clamped[1], clamped[2], bestFitness,
			formatDuration(elapsed), formatDuration(remaining))

		return fitness
	}

	fmt.Printf("Starting %s calibration with %d parameters, max_evals=%d, reference %dx%d\n",
		*methodName, dim, *maxEvals, reference.Resolution(), reference.Resolution())

	result, err := optimize.Minimize(problem, initX, settings, method)
	if err != nil {
		log.Printf("optimization ended: %v", err)
	}
	if bestParams == nil && result != nil {
		bestParams = params.Clamp(params.Denormalize(result.X))
	}
	if bestParams == nil {
		log.Fatal("no evaluations completed")
	}

	fmt.Printf("\nCalibration complete after %d evaluations in %s\n", evalCount, formatDuration(time.Since(startTime)))
	fmt.Printf("Best mse: %.6f\n", bestFitness)
	fmt.Println("\nBest parameters:")
	for i, spec := range params.Specs {
		fmt.Printf("  %s: %.6f\n", spec.Path, bestParams[i])
	}

	bestCfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to reload config: %v", err)
	}
	bestCfg.Field.Resolution = reference.Resolution()
	if err := params.ApplyToConfig(bestCfg, bestParams); err != nil {
		log.Fatalf("best parameters are invalid: %v", err)
	}

	configOutPath := filepath.Join(*outputDir, "best_config.yaml")
	if err := bestCfg.WriteYAML(configOutPath); err != nil {
		log.Printf("failed to write best config: %v", err)
	} else {
		fmt.Printf("\nBest config saved to: %s\n", configOutPath)
	}
}
