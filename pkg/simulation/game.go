package simulation

import (
	"context"
	"fmt"
	"image/color"
	"math"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/vector"
	"github.com/lao-tseu-is-alive/go-flock-simulation/pkg/geometry"
	"github.com/lao-tseu-is-alive/go-flock-simulation/pkg/ui"
	"github.com/tochemey/goakt/v3/actor"
)

const (
	ScreenWidth  = 1000
	ScreenHeight = 700
	panelWidth   = 280
)

var (
	whiteImage   *ebiten.Image // source texture of the boid triangles
	flyingColor  = color.RGBA{R: 100, G: 200, B: 255, A: 255}
	perchedColor = color.RGBA{R: 255, G: 190, B: 60, A: 255}
	boxColor     = color.RGBA{R: 90, G: 90, B: 110, A: 255}
	spacingColor = color.RGBA{R: 255, G: 80, B: 80, A: 60}
)

// Game is the ebiten viewer: it drives the FlockActor with one tick per frame, feeds it the
// slider values and draws the last snapshot seen from above (x to the right, z downward).
type Game struct {
	ctx        context.Context
	System     actor.ActorSystem
	flockPID   *actor.PID
	snapshotCh chan *Snapshot
	lastState  *Snapshot
	paused     bool

	// UI Controls
	panel *ui.UIPanel

	// Widget references
	widgetSpacingRing  *ui.Checkbox
	widgetHeadingTrail *ui.Checkbox
	widgetPause        *ui.Button

	cfg *Config

	// Timing instrumentation
	lastUpdateDuration time.Duration
	lastDrawDuration   time.Duration
	updateAvg          float64 // Rolling average in ms
	drawAvg            float64 // Rolling average in ms
}

// GetNewGame spawns the flock actor in system and builds the control panel.
func GetNewGame(ctx context.Context, cfg *Config, system actor.ActorSystem) (*Game, error) {
	// 1. Create Channels for communication
	snapshotCh := make(chan *Snapshot, 10) // Buffer to avoid blocking

	// 2. Spawn Flock Actor
	flockActor, err := NewFlockActor(cfg, snapshotCh)
	if err != nil {
		return nil, err
	}
	flockPID, err := system.Spawn(ctx, "flock", flockActor)
	if err != nil {
		return nil, fmt.Errorf("failed to spawn flock: %w", err)
	}

	if whiteImage == nil {
		whiteImage = ebiten.NewImage(3, 3)
		whiteImage.Fill(color.White)
	}

	// 3. Initialize UI Panel with all configuration widgets
	panel := ui.NewUIPanel(10, 10, panelWidth, ScreenHeight-20)

	g := &Game{
		ctx:        ctx,
		System:     system,
		flockPID:   flockPID,
		snapshotCh: snapshotCh,
		lastState:  &Snapshot{}, // Avoid nil pointer
		panel:      panel,
		cfg:        cfg,
	}

	panel.AddSection("Boids Flocking")
	panel.AddSetting("centeringFactor", "Centering Factor", 0, 0.01, cfg.CenteringFactor)
	panel.AddSetting("repulsionFactor", "Repulsion Factor", 0, 0.2, cfg.RepulsionFactor)
	panel.AddSetting("matchingFactor", "Matching Factor", 0, 0.2, cfg.MatchingFactor)
	panel.AddSetting("spacing", "Spacing", 0, 10, cfg.Spacing)

	panel.AddSection("Physics")
	panel.AddSetting("speedLimit", "Speed Limit", 0.5, 20, cfg.SpeedLimit)
	panel.AddSetting("turnFactor", "Turn Factor", 0, 1, cfg.TurnFactor)
	panel.AddSetting("turnRate", "Heading Turn Rate", 0, 20, cfg.TurnRate)

	panel.AddSection("Visualization")
	g.widgetSpacingRing = panel.AddCheckbox("Show Spacing Circle", false)
	g.widgetHeadingTrail = panel.AddCheckbox("Show Velocity", false)
	g.widgetPause = panel.AddButton("Pause", g.togglePause)

	for _, name := range panel.SettingNames() {
		if _, ok := settings[name]; !ok {
			return nil, fmt.Errorf("%w: slider %q", ErrUnknownSetting, name)
		}
	}
	return g, nil
}

func (g *Game) togglePause() {
	g.paused = !g.paused
	if g.paused {
		g.widgetPause.SetLabel("Resume")
	} else {
		g.widgetPause.SetLabel("Pause")
	}
}

func (g *Game) Update() error {
	start := time.Now()
	defer func() {
		g.lastUpdateDuration = time.Since(start)
		// Rolling average (exponential moving average)
		g.updateAvg = g.updateAvg*0.95 + float64(g.lastUpdateDuration.Microseconds())/1000.0*0.05
	}()

	// 1. Update UI Panel
	g.panel.Update()

	// 2. Retrieve Latest State (Non-blocking)
	select {
	case snap := <-g.snapshotCh:
		g.lastState = snap
	default:
		// Use previous state if new one isn't ready
	}

	// 3. Send only the settings that moved
	if values := g.panel.Changes(); values != nil {
		if err := actor.Tell(g.ctx, g.flockPID, NewConfigUpdate(values)); err != nil {
			return fmt.Errorf("send config update: %w", err)
		}
	}

	// 4. Trigger Simulation Step
	if !g.paused {
		dt := time.Second / time.Duration(ebiten.TPS())
		if err := actor.Tell(g.ctx, g.flockPID, NewTick(dt)); err != nil {
			return fmt.Errorf("send tick: %w", err)
		}
	}
	return nil
}

// project maps world x/z onto the drawing area right of the panel, keeping the aspect ratio.
func (g *Game) project(p geometry.Vector3D) (float32, float32, float64) {
	lo, hi := g.cfg.MinBoundary, g.cfg.MaxBoundary
	areaX, areaY := float64(panelWidth+30), 30.0
	areaW, areaH := float64(ScreenWidth)-areaX-20, float64(ScreenHeight)-60
	scale := math.Min(areaW/(hi.X-lo.X), areaH/(hi.Z-lo.Z))
	return float32(areaX + (p.X-lo.X)*scale), float32(areaY + (p.Z-lo.Z)*scale), scale
}

func (g *Game) Draw(screen *ebiten.Image) {
	start := time.Now()
	defer func() {
		g.lastDrawDuration = time.Since(start)
		g.drawAvg = g.drawAvg*0.95 + float64(g.lastDrawDuration.Microseconds())/1000.0*0.05
	}()

	screen.Fill(color.RGBA{R: 10, G: 10, B: 30, A: 255})

	// 1. Bounding box, seen from above
	x0, y0, scale := g.project(g.cfg.MinBoundary)
	x1, y1, _ := g.project(g.cfg.MaxBoundary)
	vector.StrokeRect(screen, x0, y0, x1-x0, y1-y0, 1, boxColor, true)

	// 2. Draw all boids from the last known snapshot
	spacing := g.panel.Setting("spacing").Value
	for i := range g.lastState.Boids {
		b := &g.lastState.Boids[i]
		x, y, _ := g.project(b.Position)
		if g.widgetSpacingRing.Value {
			vector.StrokeCircle(screen, x, y, float32(spacing*scale), 1, spacingColor, true)
		}
		if g.widgetHeadingTrail.Value && !b.Perching {
			tip := b.Position.Add(b.Velocity.Mul(0.5))
			tx, ty, _ := g.project(tip)
			vector.StrokeLine(screen, x, y, tx, ty, 1, boxColor, true)
		}
		drawBoid(screen, b, x, y)
	}

	// 3. Draw UI Panel
	g.panel.Draw(screen)

	// 4. Stats
	msg := fmt.Sprintf("FPS: %.2f\nTPS: %.2f\n\nBoids:    %d\nPerching: %d\nTick:     %d\nSim time: %.1fs\nSpeed:    %.2f\n\nUpdate: %.2fms\nDraw:   %.2fms",
		ebiten.ActualFPS(),
		ebiten.ActualTPS(),
		len(g.lastState.Boids),
		g.lastState.Perching,
		g.lastState.Tick,
		g.lastState.Elapsed,
		g.lastState.MeanSpeed(),
		g.updateAvg,
		g.drawAvg)
	ebitenutil.DebugPrintAt(screen, msg, ScreenWidth-160, 10)
}

func (g *Game) Layout(w, h int) (int, int) { return ScreenWidth, ScreenHeight }

// drawBoid draws a triangle pointing along the smoothed heading, seen from above.
// Perching boids are drawn in a warm color.
func drawBoid(screen *ebiten.Image, b *BoidState, x, y float32) {
	// Yaw is measured from +Z toward +X; on screen +Z points down and +X right.
	angle := math.Pi/2 - b.Yaw

	// Visual geometry logic
	px, py := float64(x), float64(y)
	tipX := px + math.Cos(angle)*8
	tipY := py + math.Sin(angle)*8
	rightX := px + math.Cos(angle+2.5)*6
	rightY := py + math.Sin(angle+2.5)*6
	leftX := px + math.Cos(angle-2.5)*6
	leftY := py + math.Sin(angle-2.5)*6

	clr := flyingColor
	if b.Perching {
		clr = perchedColor
	}
	r, gr, bl := float32(clr.R)/255, float32(clr.G)/255, float32(clr.B)/255

	// Define the 3 vertices of the triangle
	vertices := []ebiten.Vertex{
		{DstX: float32(tipX), DstY: float32(tipY), SrcX: 1, SrcY: 1, ColorR: r, ColorG: gr, ColorB: bl, ColorA: 1},
		{DstX: float32(rightX), DstY: float32(rightY), SrcX: 1, SrcY: 1, ColorR: r, ColorG: gr, ColorB: bl, ColorA: 1},
		{DstX: float32(leftX), DstY: float32(leftY), SrcX: 1, SrcY: 1, ColorR: r, ColorG: gr, ColorB: bl, ColorA: 1},
	}
	indices := []uint16{0, 1, 2}

	screen.DrawTriangles(vertices, indices, whiteImage, &ebiten.DrawTrianglesOptions{})
}
