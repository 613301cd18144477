package telemetry

import (
	"log/slog"
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/stat"

	"github.com/pthm-cable/flowfield/systems"
)

// neutralEpsilon is the magnitude below which a cell counts as still water.
const neutralEpsilon = 1e-6

// FieldStats summarizes the directions stored in a field.
type FieldStats struct {
	Resolution int     `csv:"resolution" json:"resolution"`
	Cells      int     `csv:"cells" json:"cells"`
	MeanMag    float64 `csv:"mean_mag" json:"mean_mag"`
	StdMag     float64 `csv:"std_mag" json:"std_mag"`
	MinMag     float64 `csv:"min_mag" json:"min_mag"`
	MaxMag     float64 `csv:"max_mag" json:"max_mag"`
	P50Mag     float64 `csv:"p50_mag" json:"p50_mag"`
	P90Mag     float64 `csv:"p90_mag" json:"p90_mag"`
	MeanX      float64 `csv:"mean_x" json:"mean_x"`
	MeanY      float64 `csv:"mean_y" json:"mean_y"`
	Neutral    int     `csv:"neutral" json:"neutral"`     // Cells with no net direction
	Saturated  int     `csv:"saturated" json:"saturated"` // Cells the raster codec clamps
}

// ComputeFieldStats measures every cell of the field.
func ComputeFieldStats(field *systems.FlowField) FieldStats {
	cells := field.Cells()
	s := FieldStats{Resolution: field.Resolution(), Cells: len(cells)}
	if len(cells) == 0 {
		return s
	}

	mags := make([]float64, len(cells))
	xs := make([]float64, len(cells))
	ys := make([]float64, len(cells))
	for i, d := range cells {
		mags[i] = r2.Norm(d)
		xs[i] = d.X
		ys[i] = d.Y
		if mags[i] < neutralEpsilon {
			s.Neutral++
		}
		if math.Abs(d.X) > 0.5 || math.Abs(d.Y) > 0.5 {
			s.Saturated++
		}
	}

	s.MeanMag, s.StdMag = stat.MeanStdDev(mags, nil)
	s.MeanX = stat.Mean(xs, nil)
	s.MeanY = stat.Mean(ys, nil)

	sort.Float64s(mags)
	s.MinMag = mags[0]
	s.MaxMag = mags[len(mags)-1]
	s.P50Mag = stat.Quantile(0.5, stat.Empirical, mags, nil)
	s.P90Mag = stat.Quantile(0.9, stat.Empirical, mags, nil)
	if math.IsNaN(s.StdMag) {
		s.StdMag = 0
	}
	return s
}

// LogValue implements slog.LogValuer for structured logging.
func (s FieldStats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("resolution", s.Resolution),
		slog.Float64("mean_mag", s.MeanMag),
		slog.Float64("std_mag", s.StdMag),
		slog.Float64("max_mag", s.MaxMag),
		slog.Float64("p90_mag", s.P90Mag),
		slog.Int("neutral", s.Neutral),
		slog.Int("saturated", s.Saturated),
	)
}

// BuildRecord is one row of builds.csv.
type BuildRecord struct {
	Time            string  `csv:"time"`
	Resolution      int     `csv:"resolution"`
	Radius          float64 `csv:"radius"`
	BlurSize        int     `csv:"blur_size"`
	BiasX           float64 `csv:"bias_x"`
	BiasY           float64 `csv:"bias_y"`
	Obstacles       int     `csv:"obstacles"`
	ObstacleSamples int     `csv:"obstacle_samples"`
	EmptyCells      int     `csv:"empty_cells"`
	Degenerate      int     `csv:"degenerate"`
	ResolveUS       int64   `csv:"resolve_us"`
	BlurUS          int64   `csv:"blur_us"`
	TotalUS         int64   `csv:"total_us"`
	MeanMag         float64 `csv:"mean_mag"`
	StdMag          float64 `csv:"std_mag"`
	MaxMag          float64 `csv:"max_mag"`
	Neutral         int     `csv:"neutral"`
	Saturated       int     `csv:"saturated"`
}

// NewBuildRecord flattens one build for CSV export.
func NewBuildRecord(at time.Time, p systems.Params, obstacles int, bs systems.BuildStats, fs FieldStats) BuildRecord {
	return BuildRecord{
		Time:            at.UTC().Format(time.RFC3339),
		Resolution:      p.Resolution,
		Radius:          p.Radius,
		BlurSize:        p.BlurSize,
		BiasX:           p.Bias.X,
		BiasY:           p.Bias.Y,
		Obstacles:       obstacles,
		ObstacleSamples: bs.ObstacleSamples,
		EmptyCells:      bs.EmptyCells,
		Degenerate:      bs.Degenerate,
		ResolveUS:       bs.ResolveDuration.Microseconds(),
		BlurUS:          bs.BlurDuration.Microseconds(),
		TotalUS:         bs.TotalDuration.Microseconds(),
		MeanMag:         fs.MeanMag,
		StdMag:          fs.StdMag,
		MaxMag:          fs.MaxMag,
		Neutral:         fs.Neutral,
		Saturated:       fs.Saturated,
	}
}

// CellRecord is one row of cells.csv.
type CellRecord struct {
	X  int     `csv:"x"`
	Y  int     `csv:"y"`
	DX float64 `csv:"dx"`
	DY float64 `csv:"dy"`
	R  uint8   `csv:"r"`
	G  uint8   `csv:"g"`
}

// CellRecords lists every cell with its encoded pixel, row-major.
func CellRecords(field *systems.FlowField) []CellRecord {
	res := field.Resolution()
	raster := field.ExportRaster()
	out := make([]CellRecord, 0, len(raster))
	for i, d := range field.Cells() {
		px := raster[i].RGBA8()
		out = append(out, CellRecord{X: i % res, Y: i / res, DX: d.X, DY: d.Y, R: px.R, G: px.G})
	}
	return out
}
