package systems

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// DefaultMaxResults caps the obstacles returned per sample.
// Density spikes beyond it are a tuning concern, not a correctness one.
const DefaultMaxResults = 5

// ObstacleQuery finds obstacles near a sample point. Implementations append
// to dst and return it, so callers can reuse one buffer across samples.
// Result order is unspecified.
type ObstacleQuery interface {
	QueryNearby(dst []Obstacle, point r3.Vec, radius float64) []Obstacle
}

// cellKey addresses one column of the XZ grid.
type cellKey struct {
	col, row int
}

type indexedObstacle struct {
	obstacle Obstacle
	bounds   AABB
	minCol   int
	minRow   int
}

// SpatialGrid buckets obstacle bounds into XZ cells. It is read-only once
// populated and safe for concurrent queries.
type SpatialGrid struct {
	cellSize   float64
	maxResults int
	obstacles  []indexedObstacle
	cells      map[cellKey][]int32

	// Occupied cell range over all inserted bounds.
	minCol, minRow int
	maxCol, maxRow int
}

// NewSpatialGrid creates an empty grid. maxResults < 1 means DefaultMaxResults.
func NewSpatialGrid(cellSize float64, maxResults int) (*SpatialGrid, error) {
	if !(cellSize > 0) {
		return nil, preconditionf("spatial grid cell size %v must be positive", cellSize)
	}
	if maxResults < 1 {
		maxResults = DefaultMaxResults
	}
	return &SpatialGrid{
		cellSize:   cellSize,
		maxResults: maxResults,
		cells:      make(map[cellKey][]int32),
	}, nil
}

// Insert adds an obstacle covering bounds.
func (g *SpatialGrid) Insert(o Obstacle, bounds AABB) {
	minCol, minRow := g.cellOf(bounds.Min.X, bounds.Min.Z)
	maxCol, maxRow := g.cellOf(bounds.Max.X, bounds.Max.Z)

	if len(g.obstacles) == 0 {
		g.minCol, g.minRow, g.maxCol, g.maxRow = minCol, minRow, maxCol, maxRow
	} else {
		g.minCol, g.minRow = min(g.minCol, minCol), min(g.minRow, minRow)
		g.maxCol, g.maxRow = max(g.maxCol, maxCol), max(g.maxRow, maxRow)
	}

	idx := int32(len(g.obstacles))
	g.obstacles = append(g.obstacles, indexedObstacle{
		obstacle: o,
		bounds:   bounds,
		minCol:   minCol,
		minRow:   minRow,
	})

	for row := minRow; row <= maxRow; row++ {
		for col := minCol; col <= maxCol; col++ {
			k := cellKey{col, row}
			g.cells[k] = append(g.cells[k], idx)
		}
	}
}

// Len returns the number of indexed obstacles.
func (g *SpatialGrid) Len() int { return len(g.obstacles) }

// MaxResults returns the per-query cap.
func (g *SpatialGrid) MaxResults() int { return g.maxResults }

// QueryNearby appends obstacles whose bounds lie within radius of point,
// up to MaxResults of them. The cells visited are limited to the occupied
// range, and a query covering more cells than there are obstacles scans
// the obstacles directly, so cost stays bounded for any radius.
func (g *SpatialGrid) QueryNearby(dst []Obstacle, point r3.Vec, radius float64) []Obstacle {
	if len(g.obstacles) == 0 {
		return dst
	}
	minCol, minRow, maxCol, maxRow, ok := g.queryRange(point, radius)
	if !ok {
		return dst
	}
	radiusSq := radius * radius

	cellCount := float64(maxCol-minCol+1) * float64(maxRow-minRow+1)
	if cellCount > float64(len(g.obstacles)) {
		found := 0
		for i := range g.obstacles {
			o := &g.obstacles[i]
			if o.bounds.DistanceSq(point) > radiusSq {
				continue
			}
			dst = append(dst, o.obstacle)
			found++
			if found >= g.maxResults {
				return dst
			}
		}
		return dst
	}

	found := 0
	for row := minRow; row <= maxRow; row++ {
		for col := minCol; col <= maxCol; col++ {
			for _, idx := range g.cells[cellKey{col, row}] {
				o := &g.obstacles[idx]
				// An obstacle spanning several cells is only reported from the
				// first cell shared by its range and the query range.
				if col != max(o.minCol, minCol) || row != max(o.minRow, minRow) {
					continue
				}
				if o.bounds.DistanceSq(point) > radiusSq {
					continue
				}
				dst = append(dst, o.obstacle)
				found++
				if found >= g.maxResults {
					return dst
				}
			}
		}
	}
	return dst
}

// queryRange returns the cells covered by the query square, clipped to the
// occupied range. ok is false when the two do not overlap. The clipping
// happens before the float to int conversion so huge radii cannot overflow.
func (g *SpatialGrid) queryRange(point r3.Vec, radius float64) (minCol, minRow, maxCol, maxRow int, ok bool) {
	loX := math.Floor((point.X - radius) / g.cellSize)
	hiX := math.Floor((point.X + radius) / g.cellSize)
	loZ := math.Floor((point.Z - radius) / g.cellSize)
	hiZ := math.Floor((point.Z + radius) / g.cellSize)
	// Negated comparisons also reject NaN.
	if !(hiX >= float64(g.minCol)) || !(loX <= float64(g.maxCol)) ||
		!(hiZ >= float64(g.minRow)) || !(loZ <= float64(g.maxRow)) {
		return 0, 0, 0, 0, false
	}
	minCol = clipCell(loX, g.minCol, g.maxCol)
	maxCol = clipCell(hiX, g.minCol, g.maxCol)
	minRow = clipCell(loZ, g.minRow, g.maxRow)
	maxRow = clipCell(hiZ, g.minRow, g.maxRow)
	return minCol, minRow, maxCol, maxRow, true
}

func clipCell(v float64, lo, hi int) int {
	if v <= float64(lo) {
		return lo
	}
	if v >= float64(hi) {
		return hi
	}
	return int(v)
}

func (g *SpatialGrid) cellOf(x, z float64) (col, row int) {
	return int(math.Floor(x / g.cellSize)), int(math.Floor(z / g.cellSize))
}

// NoObstacles is an ObstacleQuery that never finds anything.
type NoObstacles struct{}

// QueryNearby implements ObstacleQuery.
func (NoObstacles) QueryNearby(dst []Obstacle, _ r3.Vec, _ float64) []Obstacle {
	return dst
}
