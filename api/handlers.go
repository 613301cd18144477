package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/pthm-cable/flowfield/renderer"
	"github.com/pthm-cable/flowfield/systems"
	"github.com/pthm-cable/flowfield/telemetry"
)

type vecJSON struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type paramsJSON struct {
	Resolution int     `json:"resolution"`
	Radius     float64 `json:"radius"`
	BlurSize   int     `json:"blur_size"`
	Bias       vecJSON `json:"bias"`
}

type buildJSON struct {
	Cells           int     `json:"cells"`
	ObstacleSamples int     `json:"obstacle_samples"`
	EmptyCells      int     `json:"empty_cells"`
	Degenerate      int     `json:"degenerate"`
	ResolveMs       float64 `json:"resolve_ms"`
	BlurMs          float64 `json:"blur_ms"`
	TotalMs         float64 `json:"total_ms"`
}

type statsResponse struct {
	Built      bool                 `json:"built"`
	BuiltAt    *time.Time           `json:"built_at,omitempty"`
	Params     paramsJSON           `json:"params"`
	Build      buildJSON            `json:"build"`
	Field      telemetry.FieldStats `json:"field"`
	Footprints int                  `json:"footprints"`
}

type sampleResponse struct {
	X          float64  `json:"x"`
	Z          float64  `json:"z"`
	Resolved   vecJSON  `json:"resolved"`
	Direction  vecJSON  `json:"direction"`
	Baked      *vecJSON `json:"baked,omitempty"`
	GridX      float64  `json:"grid_x"`
	GridY      float64  `json:"grid_y"`
	Obstacles  int      `json:"obstacles"`
	Degenerate int      `json:"degenerate"`
}

func toStatsResponse(s Snapshot) statsResponse {
	resp := statsResponse{
		Built: s.Built,
		Params: paramsJSON{
			Resolution: s.Params.Resolution,
			Radius:     s.Params.Radius,
			BlurSize:   s.Params.BlurSize,
			Bias:       vecJSON{s.Params.Bias.X, s.Params.Bias.Y},
		},
		Build: buildJSON{
			Cells:           s.Build.Cells,
			ObstacleSamples: s.Build.ObstacleSamples,
			EmptyCells:      s.Build.EmptyCells,
			Degenerate:      s.Build.Degenerate,
			ResolveMs:       millis(s.Build.ResolveDuration),
			BlurMs:          millis(s.Build.BlurDuration),
			TotalMs:         millis(s.Build.TotalDuration),
		},
		Field:      s.Field,
		Footprints: s.Footprints,
	}
	if s.Built {
		at := s.BuiltAt
		resp.BuiltAt = &at
	}
	return resp
}

func millis(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}

func (h *routerHandlers) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{
		"status": "ok",
		"built":  h.engine.Snapshot().Built,
	})
}

func (h *routerHandlers) handleRaster(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	err := h.engine.View(func(f *systems.FlowField) error {
		return renderer.WritePNG(&buf, f)
	})
	writePNG(w, &buf, err)
}

func (h *routerHandlers) handleQuiver(w http.ResponseWriter, r *http.Request) {
	opts := renderer.DefaultQuiverOptions(h.engine.Surface())
	opts.Footprint = h.engine.Footprints()
	q := r.URL.Query()
	if v := q.Get("stride"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, "stride must be a positive integer", http.StatusBadRequest)
			return
		}
		opts.Stride = n
	}
	if v := q.Get("size"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 16 || n > 4096 {
			writeError(w, "size must be between 16 and 4096", http.StatusBadRequest)
			return
		}
		opts.Size = n
	}

	var buf bytes.Buffer
	err := h.engine.View(func(f *systems.FlowField) error {
		return renderer.WriteQuiver(&buf, f, opts)
	})
	writePNG(w, &buf, err)
}

func (h *routerHandlers) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, toStatsResponse(h.engine.Snapshot()))
}

func (h *routerHandlers) handleSample(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	x, errX := strconv.ParseFloat(q.Get("x"), 64)
	z, errZ := strconv.ParseFloat(q.Get("z"), 64)
	if errX != nil || errZ != nil {
		writeError(w, "x and z must be numbers", http.StatusBadRequest)
		return
	}

	s, err := h.engine.SampleAt(x, z)
	if errors.Is(err, ErrNotBuilt) {
		writeError(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	if err != nil {
		writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	resp := sampleResponse{
		X:          x,
		Z:          z,
		Resolved:   vecJSON{s.Resolved.X, s.Resolved.Y},
		Direction:  vecJSON{s.Direction.X, s.Direction.Y},
		GridX:      s.GridX,
		GridY:      s.GridY,
		Obstacles:  s.Obstacles,
		Degenerate: s.Degenerate,
	}
	if s.Baked != nil {
		resp.Baked = &vecJSON{s.Baked.X, s.Baked.Y}
	}
	writeJSON(w, resp)
}

// handleRebuild overrides the last build's parameters with any of the query
// params resolution, radius, blur, bias_x and bias_y.
func (h *routerHandlers) handleRebuild(w http.ResponseWriter, r *http.Request) {
	p, err := parseParams(r, h.engine.Params())
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	snap, err := h.engine.Rebuild(p)
	if errors.Is(err, systems.ErrPrecondition) {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err != nil {
		slog.Error("rebuild failed", "error", err)
		writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	slog.Info("field rebuilt", "build", snap.Build, "field", snap.Field)
	resp := toStatsResponse(snap)
	h.events.Broadcast(EventRebuilt, resp)
	writeJSON(w, resp)
}

func (h *routerHandlers) handleEvents(w http.ResponseWriter, r *http.Request) {
	h.events.Serve(w, r, toStatsResponse(h.engine.Snapshot()))
}

func parseParams(r *http.Request, p systems.Params) (systems.Params, error) {
	q := r.URL.Query()
	ints := []struct {
		name string
		dst  *int
	}{
		{"resolution", &p.Resolution},
		{"blur", &p.BlurSize},
	}
	for _, f := range ints {
		if v := q.Get(f.name); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return p, fmt.Errorf("%s: %q is not an integer", f.name, v)
			}
			*f.dst = n
		}
	}
	floats := []struct {
		name string
		dst  *float64
	}{
		{"radius", &p.Radius},
		{"bias_x", &p.Bias.X},
		{"bias_y", &p.Bias.Y},
	}
	for _, f := range floats {
		if v := q.Get(f.name); v != "" {
			x, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return p, fmt.Errorf("%s: %q is not a number", f.name, v)
			}
			*f.dst = x
		}
	}
	return p, nil
}

func writePNG(w http.ResponseWriter, buf *bytes.Buffer, err error) {
	if errors.Is(err, ErrNotBuilt) {
		writeError(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	if err != nil {
		writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.Write(buf.Bytes())
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, message string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
