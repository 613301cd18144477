package telemetry

import (
	"log/slog"
	"time"

	"github.com/pthm-cable/flowfield/systems"
)

// Phase names for a bake.
const (
	PhaseScene   = "scene"
	PhaseIndex   = "index"
	PhaseResolve = "resolve"
	PhaseBlur    = "blur"
	PhaseExport  = "export"
)

// PerfSample holds timing data for a single build.
type PerfSample struct {
	BuildDuration time.Duration
	Phases        map[string]time.Duration
}

// PerfCollector tracks build timings over a rolling window.
type PerfCollector struct {
	windowSize    int
	samples       []PerfSample
	writeIndex    int
	sampleCount   int
	currentPhases map[string]time.Duration
	buildStart    time.Time
	phaseStart    time.Time
	lastPhase     string

	// Frame timing (for the preview window)
	lastFrameTime time.Time
	frameDuration time.Duration
}

// NewPerfCollector creates a new performance collector.
// windowSize: number of builds to average over.
func NewPerfCollector(windowSize int) *PerfCollector {
	if windowSize < 1 {
		windowSize = 32
	}
	return &PerfCollector{
		windowSize:    windowSize,
		samples:       make([]PerfSample, windowSize),
		currentPhases: make(map[string]time.Duration),
	}
}

// StartBuild begins timing a new bake.
func (p *PerfCollector) StartBuild() {
	p.buildStart = time.Now()
	p.currentPhases = make(map[string]time.Duration)
	p.lastPhase = ""
}

// StartPhase begins timing a specific phase, ending the previous one.
func (p *PerfCollector) StartPhase(phase string) {
	now := time.Now()
	if p.lastPhase != "" {
		p.currentPhases[p.lastPhase] += now.Sub(p.phaseStart)
	}
	p.phaseStart = now
	p.lastPhase = phase
}

// EndPhase closes the open phase without starting another.
func (p *PerfCollector) EndPhase() {
	if p.lastPhase != "" {
		p.currentPhases[p.lastPhase] += time.Since(p.phaseStart)
		p.lastPhase = ""
	}
}

// AddBuildStats folds the builder's own phase timings into the current bake.
func (p *PerfCollector) AddBuildStats(s systems.BuildStats) {
	p.currentPhases[PhaseResolve] += s.ResolveDuration
	if s.BlurDuration > 0 {
		p.currentPhases[PhaseBlur] += s.BlurDuration
	}
}

// EndBuild finishes timing the current bake and records the sample.
func (p *PerfCollector) EndBuild() {
	now := time.Now()
	if p.lastPhase != "" {
		p.currentPhases[p.lastPhase] += now.Sub(p.phaseStart)
	}

	p.samples[p.writeIndex] = PerfSample{
		BuildDuration: now.Sub(p.buildStart),
		Phases:        p.currentPhases,
	}
	p.writeIndex = (p.writeIndex + 1) % p.windowSize
	if p.sampleCount < p.windowSize {
		p.sampleCount++
	}
	p.lastPhase = ""
}

// RecordFrame records frame timing for the preview window.
func (p *PerfCollector) RecordFrame() {
	now := time.Now()
	if !p.lastFrameTime.IsZero() {
		p.frameDuration = now.Sub(p.lastFrameTime)
	}
	p.lastFrameTime = now
}

// PerfStats holds aggregated performance statistics.
type PerfStats struct {
	Builds           int
	AvgBuildDuration time.Duration
	MinBuildDuration time.Duration
	MaxBuildDuration time.Duration

	// Phase breakdown (average durations)
	PhaseAvg map[string]time.Duration

	// Phase percentages of total build time
	PhasePct map[string]float64

	// Frame timing (preview mode)
	FrameDuration time.Duration
	FPS           float64
}

// Stats computes aggregated statistics over the current window.
func (p *PerfCollector) Stats() PerfStats {
	var fps float64
	if p.frameDuration > 0 {
		fps = float64(time.Second) / float64(p.frameDuration)
	}

	if p.sampleCount == 0 {
		return PerfStats{
			PhaseAvg:      make(map[string]time.Duration),
			PhasePct:      make(map[string]float64),
			FrameDuration: p.frameDuration,
			FPS:           fps,
		}
	}

	var total, minBuild, maxBuild time.Duration
	phaseSum := make(map[string]time.Duration)

	for i := 0; i < p.sampleCount; i++ {
		s := p.samples[i]
		total += s.BuildDuration
		if i == 0 || s.BuildDuration < minBuild {
			minBuild = s.BuildDuration
		}
		if s.BuildDuration > maxBuild {
			maxBuild = s.BuildDuration
		}
		for phase, dur := range s.Phases {
			phaseSum[phase] += dur
		}
	}

	avg := total / time.Duration(p.sampleCount)

	phaseAvg := make(map[string]time.Duration)
	phasePct := make(map[string]float64)
	for phase, sum := range phaseSum {
		phaseAvg[phase] = sum / time.Duration(p.sampleCount)
		if avg > 0 {
			phasePct[phase] = float64(phaseAvg[phase]) / float64(avg) * 100
		}
	}

	return PerfStats{
		Builds:           p.sampleCount,
		AvgBuildDuration: avg,
		MinBuildDuration: minBuild,
		MaxBuildDuration: maxBuild,
		PhaseAvg:         phaseAvg,
		PhasePct:         phasePct,
		FrameDuration:    p.frameDuration,
		FPS:              fps,
	}
}

// LogValue implements slog.LogValuer for structured logging.
func (s PerfStats) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.Int("builds", s.Builds),
		slog.Int64("avg_build_us", s.AvgBuildDuration.Microseconds()),
		slog.Int64("min_build_us", s.MinBuildDuration.Microseconds()),
		slog.Int64("max_build_us", s.MaxBuildDuration.Microseconds()),
	}
	if s.FPS > 0 {
		attrs = append(attrs, slog.Float64("fps", s.FPS))
	}
	for _, phase := range []string{PhaseScene, PhaseIndex, PhaseResolve, PhaseBlur, PhaseExport} {
		if pct, ok := s.PhasePct[phase]; ok {
			attrs = append(attrs, slog.Float64(phase+"_pct", pct))
		}
	}
	return slog.GroupValue(attrs...)
}

// PerfStatsCSV is a flat struct for CSV export of performance stats.
type PerfStatsCSV struct {
	Builds     int     `csv:"builds"`
	AvgBuildUS int64   `csv:"avg_build_us"`
	MinBuildUS int64   `csv:"min_build_us"`
	MaxBuildUS int64   `csv:"max_build_us"`
	ScenePct   float64 `csv:"scene_pct"`
	IndexPct   float64 `csv:"index_pct"`
	ResolvePct float64 `csv:"resolve_pct"`
	BlurPct    float64 `csv:"blur_pct"`
	ExportPct  float64 `csv:"export_pct"`
}

// ToCSV converts PerfStats to a flat CSV-friendly struct.
func (s PerfStats) ToCSV() PerfStatsCSV {
	return PerfStatsCSV{
		Builds:     s.Builds,
		AvgBuildUS: s.AvgBuildDuration.Microseconds(),
		MinBuildUS: s.MinBuildDuration.Microseconds(),
		MaxBuildUS: s.MaxBuildDuration.Microseconds(),
		ScenePct:   s.PhasePct[PhaseScene],
		IndexPct:   s.PhasePct[PhaseIndex],
		ResolvePct: s.PhasePct[PhaseResolve],
		BlurPct:    s.PhasePct[PhaseBlur],
		ExportPct:  s.PhasePct[PhaseExport],
	}
}
