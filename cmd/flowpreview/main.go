// Flow field preview tool - interactive bake with sliders.
//
// Usage: go run ./cmd/flowpreview [-config path]
package main

import (
	"flag"
	"fmt"
	"image/color"
	"log"
	"math"

	rl "github.com/gen2brain/raylib-go/raylib"
	gui "github.com/gen2brain/raylib-go/raygui"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/pthm-cable/flowfield/config"
	"github.com/pthm-cable/flowfield/scene"
	"github.com/pthm-cable/flowfield/systems"
	"github.com/pthm-cable/flowfield/telemetry"
)

const (
	windowWidth  = 1000
	windowHeight = 720
	previewSize  = 512
	panelWidth   = windowWidth - previewSize - 30
)

// PreviewParams holds the tunable build options.
type PreviewParams struct {
	ResolutionIdx int
	Radius        float32
	BlurSize      int
	BiasX         float32
	BiasY         float32
}

func (p PreviewParams) systemsParams() systems.Params {
	return systems.Params{
		Resolution: systems.Resolutions[p.ResolutionIdx],
		Radius:     float64(p.Radius),
		BlurSize:   p.BlurSize,
		Bias:       r2.Vec{X: float64(p.BiasX), Y: float64(p.BiasY)},
	}
}

func paramsFromConfig(cfg *config.Config) PreviewParams {
	idx := 0
	for i, r := range systems.Resolutions {
		if r == cfg.Field.Resolution {
			idx = i
		}
	}
	return PreviewParams{
		ResolutionIdx: idx,
		Radius:        float32(cfg.Field.Radius),
		BlurSize:      cfg.Field.BlurSize,
		BiasX:         float32(cfg.Field.Bias[0]),
		BiasY:         float32(cfg.Field.Bias[1]),
	}
}

func main() {
	configPath := flag.String("config", "", "Config YAML file (empty = use defaults)")
	flag.Parse()

	if err := config.Init(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	cfg := config.Cfg()

	sc, err := scene.Load(cfg.Scene)
	if err != nil {
		log.Fatalf("failed to build scene: %v", err)
	}
	index, err := sc.Index(cfg.Query.CellSize, cfg.Query.MaxResults)
	if err != nil {
		log.Fatalf("failed to index scene: %v", err)
	}
	builder := systems.NewFieldBuilder(index, cfg.Build.Workers)
	surface := cfg.Derived.Surface
	perf := telemetry.NewPerfCollector(cfg.Telemetry.PerfWindow)

	rl.InitWindow(windowWidth, windowHeight, "Flow Field Preview")
	defer rl.CloseWindow()
	rl.SetTargetFPS(30)

	defaults := paramsFromConfig(cfg)
	params := defaults
	field := &systems.FlowField{}
	var stats systems.BuildStats
	var fieldStats telemetry.FieldStats

	var texture rl.Texture2D
	textureRes := 0
	showArrows := true
	needsRebuild := true

	for !rl.WindowShouldClose() {
		perf.RecordFrame()

		if needsRebuild {
			perf.StartBuild()
			stats, err = builder.Build(field, surface, params.systemsParams())
			if err != nil {
				log.Fatalf("build failed: %v", err)
			}
			perf.AddBuildStats(stats)
			perf.StartPhase(telemetry.PhaseExport)
			if textureRes != field.Resolution() {
				if textureRes != 0 {
					rl.UnloadTexture(texture)
				}
				img := rl.GenImageColor(field.Resolution(), field.Resolution(), rl.Black)
				texture = rl.LoadTextureFromImage(img)
				rl.UnloadImage(img)
				textureRes = field.Resolution()
			}
			updateTexture(texture, field)
			fieldStats = telemetry.ComputeFieldStats(field)
			perf.EndBuild()
			needsRebuild = false
		}

		rl.BeginDrawing()
		rl.ClearBackground(rl.RayWhite)

		// Draw preview
		rl.DrawTexturePro(
			texture,
			rl.Rectangle{X: 0, Y: 0, Width: float32(textureRes), Height: float32(textureRes)},
			rl.Rectangle{X: 10, Y: 10, Width: previewSize, Height: previewSize},
			rl.Vector2{X: 0, Y: 0},
			0,
			rl.White,
		)
		if showArrows {
			drawArrows(field)
		}
		rl.DrawRectangleLines(10, 10, previewSize, previewSize, rl.DarkGray)

		// Stats and hover readout
		statsY := int32(previewSize + 25)
		rl.DrawText(fmt.Sprintf("Mean |d|: %.3f  Max |d|: %.3f  Neutral: %d  Saturated: %d",
			fieldStats.MeanMag, fieldStats.MaxMag, fieldStats.Neutral, fieldStats.Saturated), 15, statsY, 16, rl.DarkGray)
		rl.DrawText(fmt.Sprintf("Build: %.1fms  Empty cells: %d  Degenerate: %d  FPS: %.0f",
			float64(stats.TotalDuration.Microseconds())/1000, stats.EmptyCells, stats.Degenerate, perf.Stats().FPS), 15, statsY+20, 16, rl.DarkGray)

		mouse := rl.GetMousePosition()
		if mouse.X >= 10 && mouse.X < 10+previewSize && mouse.Y >= 10 && mouse.Y < 10+previewSize {
			res := field.Resolution()
			cx := int((mouse.X - 10) / previewSize * float32(res))
			cy := int((mouse.Y - 10) / previewSize * float32(res))
			if d, err := field.Get(cx, cy); err == nil {
				world := systems.GridToWorld(cx, cy, res, surface)
				rl.DrawText(fmt.Sprintf("Cell (%d, %d) world (%.2f, %.2f)  d = (%.3f, %.3f)",
					cx, cy, world.X, world.Z, d.X, d.Y), 15, statsY+40, 16, rl.DarkGray)
			}
		}

		// Control panel
		panelX := float32(previewSize + 20)
		panelY := float32(10)

		rl.DrawText("Flow Field Parameters", int32(panelX), int32(panelY), 20, rl.DarkGray)
		panelY += 35

		// Resolution slider
		rl.DrawText("Resolution (grid edge)", int32(panelX), int32(panelY), 14, rl.Gray)
		panelY += 18
		newRes := gui.SliderBar(
			rl.Rectangle{X: panelX, Y: panelY, Width: float32(panelWidth - 80), Height: 20},
			"32", "1024",
			float32(params.ResolutionIdx), 0, float32(len(systems.Resolutions)-1),
		)
		rl.DrawText(fmt.Sprintf("%d", systems.Resolutions[params.ResolutionIdx]), int32(panelX+float32(panelWidth-70)), int32(panelY+2), 16, rl.DarkGray)
		if idx := int(math.Round(float64(newRes))); idx != params.ResolutionIdx {
			params.ResolutionIdx = idx
			needsRebuild = true
		}
		panelY += 35

		// Radius slider
		rl.DrawText("Radius (obstacle influence, world units)", int32(panelX), int32(panelY), 14, rl.Gray)
		panelY += 18
		newRadius := gui.SliderBar(
			rl.Rectangle{X: panelX, Y: panelY, Width: float32(panelWidth - 80), Height: 20},
			"0.1", "10",
			params.Radius, 0.1, 10,
		)
		rl.DrawText(fmt.Sprintf("%.2f", params.Radius), int32(panelX+float32(panelWidth-70)), int32(panelY+2), 16, rl.DarkGray)
		if newRadius != params.Radius {
			params.Radius = newRadius
			needsRebuild = true
		}
		panelY += 35

		// Blur slider
		rl.DrawText("Blur (box radius in cells)", int32(panelX), int32(panelY), 14, rl.Gray)
		panelY += 18
		newBlur := gui.SliderBar(
			rl.Rectangle{X: panelX, Y: panelY, Width: float32(panelWidth - 80), Height: 20},
			"0", "8",
			float32(params.BlurSize), 0, 8,
		)
		rl.DrawText(fmt.Sprintf("%d", params.BlurSize), int32(panelX+float32(panelWidth-70)), int32(panelY+2), 16, rl.DarkGray)
		if int(newBlur) != params.BlurSize {
			params.BlurSize = int(newBlur)
			needsRebuild = true
		}
		panelY += 35

		rl.DrawLine(int32(panelX), int32(panelY), int32(panelX)+int32(panelWidth)-20, int32(panelY), rl.LightGray)
		panelY += 15

		// Bias section
		rl.DrawText("Bias (prevailing current)", int32(panelX), int32(panelY), 16, rl.DarkGray)
		panelY += 25

		rl.DrawText("Bias X", int32(panelX), int32(panelY), 14, rl.Gray)
		panelY += 18
		newBiasX := gui.SliderBar(
			rl.Rectangle{X: panelX, Y: panelY, Width: float32(panelWidth - 80), Height: 20},
			"-0.5", "0.5",
			params.BiasX, -0.5, 0.5,
		)
		rl.DrawText(fmt.Sprintf("%.3f", params.BiasX), int32(panelX+float32(panelWidth-70)), int32(panelY+2), 16, rl.DarkGray)
		if newBiasX != params.BiasX {
			params.BiasX = newBiasX
			needsRebuild = true
		}
		panelY += 35

		rl.DrawText("Bias Y", int32(panelX), int32(panelY), 14, rl.Gray)
		panelY += 18
		newBiasY := gui.SliderBar(
			rl.Rectangle{X: panelX, Y: panelY, Width: float32(panelWidth - 80), Height: 20},
			"-0.5", "0.5",
			params.BiasY, -0.5, 0.5,
		)
		rl.DrawText(fmt.Sprintf("%.3f", params.BiasY), int32(panelX+float32(panelWidth-70)), int32(panelY+2), 16, rl.DarkGray)
		if newBiasY != params.BiasY {
			params.BiasY = newBiasY
			needsRebuild = true
		}
		panelY += 45

		// Buttons
		if gui.Button(rl.Rectangle{X: panelX, Y: panelY, Width: 120, Height: 30}, toggleText(showArrows, "Hide Arrows", "Show Arrows")) {
			showArrows = !showArrows
		}
		if gui.Button(rl.Rectangle{X: panelX + 130, Y: panelY, Width: 120, Height: 30}, "Reset All") {
			params = defaults
			needsRebuild = true
		}
		panelY += 55

		// Output YAML
		rl.DrawText("YAML Config:", int32(panelX), int32(panelY), 16, rl.DarkGray)
		panelY += 25
		yaml := fieldYAML(params)
		for _, line := range splitLines(yaml) {
			rl.DrawText(line, int32(panelX), int32(panelY), 14, rl.Gray)
			panelY += 16
		}

		rl.DrawText("Press C to copy YAML to clipboard", int32(panelX), int32(windowHeight-30), 12, rl.LightGray)
		if rl.IsKeyPressed(rl.KeyC) {
			rl.SetClipboardText(yaml)
		}

		rl.EndDrawing()
	}

	if textureRes != 0 {
		rl.UnloadTexture(texture)
	}
}

func toggleText(cond bool, ifTrue, ifFalse string) string {
	if cond {
		return ifTrue
	}
	return ifFalse
}

func fieldYAML(p PreviewParams) string {
	return fmt.Sprintf(`field:
  resolution: %d
  radius: %.2f
  blur_size: %d
  bias: [%.3f, %.3f]`,
		systems.Resolutions[p.ResolutionIdx], p.Radius, p.BlurSize, p.BiasX, p.BiasY)
}

func splitLines(s string) []string {
	var lines []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			lines = append(lines, s[start:i])
			start = i + 1
		}
	}
	return append(lines, s[start:])
}

// updateTexture uploads the encoded raster.
func updateTexture(texture rl.Texture2D, field *systems.FlowField) {
	raster := field.ExportRaster()
	pixels := make([]color.RGBA, len(raster))
	for i, c := range raster {
		px := c.RGBA8()
		pixels[i] = color.RGBA{R: px.R, G: px.G, B: px.B, A: px.A}
	}
	rl.UpdateTexture(texture, pixels)
}

// drawArrows overlays one arrow per 16 preview pixels.
func drawArrows(field *systems.FlowField) {
	const spacing = 16
	res := float64(field.Resolution())
	for py := spacing / 2; py < previewSize; py += spacing {
		for px := spacing / 2; px < previewSize; px += spacing {
			gx := float64(px) / previewSize * res
			gy := float64(py) / previewSize * res
			d := field.Sample(gx, gy)
			mag := r2.Norm(d)
			if mag < 1e-3 {
				continue
			}
			length := math.Min(mag, 1) * spacing
			x0 := float32(10 + px)
			y0 := float32(10 + py)
			x1 := x0 + float32(d.X/mag*length)
			y1 := y0 + float32(d.Y/mag*length)
			rl.DrawLineEx(rl.Vector2{X: x0, Y: y0}, rl.Vector2{X: x1, Y: y1}, 1.5, rl.Black)
			rl.DrawCircleV(rl.Vector2{X: x1, Y: y1}, 2, rl.Black)
		}
	}
}
