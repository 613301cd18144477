package api

import (
	"errors"
	"sync"
	"time"

	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/flowfield/systems"
	"github.com/pthm-cable/flowfield/telemetry"
)

// ErrNotBuilt is returned when the field is read before the first build.
var ErrNotBuilt = errors.New("flow field not built")

// Engine owns the current field and serializes rebuilds against readers.
type Engine struct {
	mu sync.RWMutex

	builder    *systems.FieldBuilder
	query      systems.ObstacleQuery
	surface    systems.Surface
	footprints []systems.AABB
	metrics    *telemetry.Metrics

	field      *systems.FlowField
	params     systems.Params
	buildStats systems.BuildStats
	fieldStats telemetry.FieldStats
	builtAt    time.Time
	built      bool
}

// NewEngine wraps a builder whose obstacle index is query. footprints are
// drawn under quiver plots. metrics may be nil.
func NewEngine(query systems.ObstacleQuery, workers int, surface systems.Surface, footprints []systems.AABB, metrics *telemetry.Metrics) *Engine {
	if query == nil {
		query = systems.NoObstacles{}
	}
	return &Engine{
		builder:    systems.NewFieldBuilder(query, workers),
		query:      query,
		surface:    surface,
		footprints: footprints,
		metrics:    metrics,
		field:      &systems.FlowField{},
	}
}

// Rebuild bakes the field with p. On a validation error the previous field
// is kept.
func (e *Engine) Rebuild(p systems.Params) (Snapshot, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	bs, err := e.builder.Build(e.field, e.surface, p)
	if err != nil {
		e.metrics.ObserveError()
		return e.snapshotLocked(), err
	}
	fs := telemetry.ComputeFieldStats(e.field)
	e.metrics.ObserveBuild(bs, fs)

	e.params = p
	e.buildStats = bs
	e.fieldStats = fs
	e.builtAt = time.Now()
	e.built = true
	return e.snapshotLocked(), nil
}

// Params returns the parameters of the last successful build.
func (e *Engine) Params() systems.Params {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.params
}

// Surface returns the surface the field is baked over.
func (e *Engine) Surface() systems.Surface { return e.surface }

// Footprints returns the obstacle bounds in world space.
func (e *Engine) Footprints() []systems.AABB { return e.footprints }

// View calls fn with the current field under the read lock. fn must not
// retain the field.
func (e *Engine) View(fn func(*systems.FlowField) error) error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if !e.built {
		return ErrNotBuilt
	}
	return fn(e.field)
}

// Snapshot is a copy of the engine's build state.
type Snapshot struct {
	Params     systems.Params
	Build      systems.BuildStats
	Field      telemetry.FieldStats
	BuiltAt    time.Time
	Built      bool
	Footprints int
}

// Snapshot returns the current build state.
func (e *Engine) Snapshot() Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.snapshotLocked()
}

func (e *Engine) snapshotLocked() Snapshot {
	return Snapshot{
		Params:     e.params,
		Build:      e.buildStats,
		Field:      e.fieldStats,
		BuiltAt:    e.builtAt,
		Built:      e.built,
		Footprints: len(e.footprints),
	}
}

// Sample is a direct evaluation at a world position on the surface plane.
type Sample struct {
	Resolved   r2.Vec // Resolve output, Center-based
	Direction  r2.Vec // Resolved minus Center, as stored in cells
	Obstacles  int
	Degenerate int

	// Baked is the stored cell under the point, nil off the grid.
	Baked *r2.Vec
	GridX float64
	GridY float64
}

// SampleAt resolves the field at world (x, z) with the last build's radius
// and bias, and looks up the baked cell beneath it.
func (e *Engine) SampleAt(x, z float64) (Sample, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if !e.built {
		return Sample{}, ErrNotBuilt
	}

	point := r3.Vec{X: x, Y: e.surface.Pose.Position.Y, Z: z}
	buf := make([]systems.Obstacle, 0, systems.DefaultMaxResults)
	obstacles := e.query.QueryNearby(buf, point, e.params.Radius)

	mean, degen := systems.Influence(point, obstacles, e.params.Radius)
	resolved := r2.Add(r2.Add(mean, systems.Center), e.params.Bias)
	s := Sample{
		Resolved:   resolved,
		Direction:  r2.Sub(resolved, systems.Center),
		Obstacles:  len(obstacles),
		Degenerate: degen,
	}

	res := e.field.Resolution()
	s.GridX, s.GridY = systems.WorldToGrid(point, res, e.surface)
	cx, cy := int(s.GridX), int(s.GridY)
	if s.GridX >= 0 && s.GridY >= 0 {
		if v, err := e.field.Get(cx, cy); err == nil {
			s.Baked = &v
		}
	}
	return s, nil
}
