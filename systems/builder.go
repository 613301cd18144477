package systems

import (
	"log/slog"
	"math"
	"runtime"
	"sync"
	"time"

	"gonum.org/v1/gonum/spatial/r2"
)

// Params are the recognized build options.
type Params struct {
	Resolution int     // One of Resolutions
	Radius     float64 // Influence radius in world units
	BlurSize   int     // Box blur radius in cells, 0 disables
	Bias       r2.Vec  // Global prevailing direction
}

// Validate fails fast on options the builder cannot honor.
func (p Params) Validate() error {
	if !ValidResolution(p.Resolution) {
		return preconditionf("resolution %d not in %v", p.Resolution, Resolutions)
	}
	if !(p.Radius > 0) || math.IsInf(p.Radius, 0) {
		return preconditionf("influence radius %v must be positive", p.Radius)
	}
	if p.BlurSize < 0 {
		return preconditionf("blur size %d is negative", p.BlurSize)
	}
	if math.IsNaN(p.Bias.X) || math.IsNaN(p.Bias.Y) {
		return preconditionf("bias %v is not a number", p.Bias)
	}
	return nil
}

// BuildStats summarizes one build.
type BuildStats struct {
	Resolution      int
	Cells           int
	ObstacleSamples int // Sum over cells of obstacles found
	EmptyCells      int // Cells with no obstacle in range
	Degenerate      int // Contributions that fell back to zero direction
	ResolveDuration time.Duration
	BlurDuration    time.Duration
	TotalDuration   time.Duration
}

// LogValue implements slog.LogValuer for structured logging.
func (s BuildStats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("resolution", s.Resolution),
		slog.Int("cells", s.Cells),
		slog.Int("obstacle_samples", s.ObstacleSamples),
		slog.Int("empty_cells", s.EmptyCells),
		slog.Int("degenerate", s.Degenerate),
		slog.Int64("resolve_us", s.ResolveDuration.Microseconds()),
		slog.Int64("blur_us", s.BlurDuration.Microseconds()),
		slog.Int64("total_us", s.TotalDuration.Microseconds()),
	)
}

// workerScratch holds per-worker reusable buffers.
type workerScratch struct {
	obstacles []Obstacle
	samples   int
	empty     int
	degen     int
}

// workChunk is a range of rows for a worker to resolve.
type workChunk struct {
	start, end int
}

// FieldBuilder fills a FlowField from a spatial index of obstacles.
// A builder is not safe for concurrent Build calls.
type FieldBuilder struct {
	query     ObstacleQuery
	workers   int
	scratches []workerScratch
	logger    *slog.Logger
}

// NewFieldBuilder creates a builder. workers < 1 means GOMAXPROCS; a nil
// query means no obstacles.
func NewFieldBuilder(query ObstacleQuery, workers int) *FieldBuilder {
	if query == nil {
		query = NoObstacles{}
	}
	if workers < 1 {
		workers = runtime.GOMAXPROCS(0)
	}
	scratches := make([]workerScratch, workers)
	for i := range scratches {
		scratches[i].obstacles = make([]Obstacle, 0, DefaultMaxResults)
	}
	return &FieldBuilder{
		query:     query,
		workers:   workers,
		scratches: scratches,
		logger:    slog.Default(),
	}
}

// SetLogger replaces the default logger.
func (b *FieldBuilder) SetLogger(l *slog.Logger) {
	if l != nil {
		b.logger = l
	}
}

// SetQuery swaps the obstacle index used by later builds.
func (b *FieldBuilder) SetQuery(q ObstacleQuery) {
	if q == nil {
		q = NoObstacles{}
	}
	b.query = q
}

// Build rebuilds field from scratch for the given surface and parameters.
// Each cell stores the mean obstacle influence plus bias, i.e. the resolved
// field value minus Center. A blur pass runs last when BlurSize > 0.
func (b *FieldBuilder) Build(field *FlowField, surface Surface, p Params) (BuildStats, error) {
	start := time.Now()
	if field == nil {
		return BuildStats{}, preconditionf("build into nil field")
	}
	if err := surface.Validate(); err != nil {
		return BuildStats{}, err
	}
	if err := p.Validate(); err != nil {
		return BuildStats{}, err
	}
	if err := field.Rebuild(p.Resolution, p.Bias); err != nil {
		return BuildStats{}, err
	}

	stats := BuildStats{Resolution: p.Resolution, Cells: p.Resolution * p.Resolution}

	b.resolveAll(field, surface, p)
	for i := range b.scratches {
		s := &b.scratches[i]
		stats.ObstacleSamples += s.samples
		stats.EmptyCells += s.empty
		stats.Degenerate += s.degen
	}
	stats.ResolveDuration = time.Since(start)

	if p.BlurSize > 0 {
		blurStart := time.Now()
		blurred, err := Blur(field, p.BlurSize)
		if err != nil {
			return BuildStats{}, err
		}
		copy(field.cells, blurred.cells)
		stats.BlurDuration = time.Since(blurStart)
	}

	stats.TotalDuration = time.Since(start)
	b.logger.Debug("flow field built", "stats", stats)
	return stats, nil
}

// resolveAll spreads rows over the workers. Cells are independent and each is
// written exactly once, so no locking is needed.
func (b *FieldBuilder) resolveAll(field *FlowField, surface Surface, p Params) {
	res := field.resolution
	workers := min(b.workers, res)

	rowsPerChunk := max(1, res/(workers*4))
	workChan := make(chan workChunk, workers)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		scratch := &b.scratches[w]
		scratch.samples, scratch.empty, scratch.degen = 0, 0, 0
		wg.Add(1)
		go func() {
			defer wg.Done()
			for chunk := range workChan {
				b.resolveChunk(field, surface, p, chunk, scratch)
			}
		}()
	}
	for w := workers; w < len(b.scratches); w++ {
		b.scratches[w].samples, b.scratches[w].empty, b.scratches[w].degen = 0, 0, 0
	}

	for y := 0; y < res; y += rowsPerChunk {
		workChan <- workChunk{start: y, end: min(y+rowsPerChunk, res)}
	}
	close(workChan)
	wg.Wait()
}

func (b *FieldBuilder) resolveChunk(field *FlowField, surface Surface, p Params, chunk workChunk, s *workerScratch) {
	res := field.resolution
	for y := chunk.start; y < chunk.end; y++ {
		for x := 0; x < res; x++ {
			point := GridToWorld(x, y, res, surface)
			s.obstacles = b.query.QueryNearby(s.obstacles[:0], point, p.Radius)

			mean, degenerate := Influence(point, s.obstacles, p.Radius)
			field.cells[y*res+x] = r2.Add(mean, p.Bias)

			s.samples += len(s.obstacles)
			s.degen += degenerate
			if len(s.obstacles) == 0 {
				s.empty++
			}
		}
	}
}
