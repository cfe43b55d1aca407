package main

import (
	"errors"
	"image/color"
	"log"
	"math"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/hajimehoshi/ebiten/v2/vector"

	"github.com/olivierh59500/cosmo-lab/sim"
)

// View constants
const (
	MinZoom        = 0.1 // Limit zoom out to prevent excessive tiling
	MaxZoom        = 8.0
	EraseRadius    = 12.0
	GravityStep    = 1.25
	MinClusterSize = 5
	MaxClusterSize = 400
)

// Visualisation modes
const (
	VisParticles = iota
	VisTrails
	VisDensity
	numVisModes
)

var background = color.RGBA{5, 6, 16, 255}

// Game adapts a Simulation to ebiten: input, camera and drawing
type Game struct {
	sim        *sim.Simulation
	presetPath string

	Paused   bool
	StepOnce bool
	VisMode  int
	ShowGrid bool

	Zoom           float64
	CamX, CamY     float64 // Camera pan
	PrevMX, PrevMY float64 // Previous mouse position for drag

	ClusterSize   int
	ClusterSpread float64

	hud *hud
}

// NewGame wraps s. presetPath is where S and L save and load parameters.
func NewGame(s *sim.Simulation, presetPath string) *Game {
	g := &Game{
		sim:           s,
		presetPath:    presetPath,
		Zoom:          1.0,
		ClusterSize:   60,
		ClusterSpread: 40,
		hud:           newHUD(),
	}
	if s.Config().Trails {
		g.VisMode = VisTrails
	}
	return g
}

// Update is called each tick by Ebitengine
func (g *Game) Update() error {
	g.handleInput()

	if g.Paused && !g.StepOnce {
		return nil
	}
	g.StepOnce = false

	err := g.sim.Step()
	if errors.Is(err, sim.ErrDiverged) {
		log.Printf("%v; resetting", err)
		g.sim.Reset()
		return nil
	}
	return err
}

// Draw is called each frame by Ebitengine
func (g *Game) Draw(screen *ebiten.Image) {
	screen.Fill(background)

	screenWidth := float64(screen.Bounds().Dx())
	screenHeight := float64(screen.Bounds().Dy())

	for _, off := range g.tileOffsets(screenWidth, screenHeight) {
		if g.VisMode == VisDensity {
			g.drawDensity(screen, off)
		}
		if g.ShowGrid {
			g.drawGridLines(screen, off)
		}
		if g.VisMode == VisTrails {
			g.drawTrails(screen, off, screenWidth, screenHeight)
		}
		g.drawParticles(screen, off, screenWidth, screenHeight)
	}

	g.hud.draw(screen, g)
}

// Layout returns the screen size
func (g *Game) Layout(outsideWidth, outsideHeight int) (int, int) {
	return screenSize(g.sim.Config())
}

// screenSize is the window size that shows the whole domain at zoom 1
func screenSize(cfg sim.Config) (int, int) {
	return int(math.Ceil(cfg.Width)), int(math.Ceil(cfg.Height))
}

// handleInput processes keyboard and mouse input
func (g *Game) handleInput() {
	cfg := g.sim.Config()

	if inpututil.IsKeyJustPressed(ebiten.KeySpace) {
		g.Paused = !g.Paused
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyN) && g.Paused {
		g.StepOnce = true
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyR) {
		g.sim.Reset()
		log.Printf("reset with %d particles", g.sim.Len())
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyC) {
		g.sim.Clear()
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyT) {
		if err := g.sim.SetToroidal(!cfg.Toroidal); err != nil {
			log.Printf("toggle wrap: %v", err)
		}
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyB) {
		g.sim.SetBarnesHut(!cfg.BarnesHut)
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyM) {
		g.sim.SetMerge(!cfg.Merge)
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyH) {
		g.VisMode = (g.VisMode + 1) % numVisModes
		g.sim.SetTrails(g.VisMode == VisTrails)
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyG) {
		g.ShowGrid = !g.ShowGrid
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyArrowUp) {
		g.sim.ScaleGravity(GravityStep)
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyArrowDown) {
		g.sim.ScaleGravity(1 / GravityStep)
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyBracketRight) {
		g.ClusterSize = min(g.ClusterSize*2, MaxClusterSize)
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyBracketLeft) {
		g.ClusterSize = max(g.ClusterSize/2, MinClusterSize)
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyS) {
		g.savePreset()
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyL) {
		g.loadPreset()
	}

	// Zoom
	_, wheelY := ebiten.Wheel()
	g.Zoom = math.Max(MinZoom, math.Min(MaxZoom, g.Zoom+wheelY*0.1))

	mx, my := ebiten.CursorPosition()
	wx, wy := g.screenToWorld(float64(mx), float64(my))

	// Spawn or erase
	if ebiten.IsKeyPressed(ebiten.KeyX) && ebiten.IsMouseButtonPressed(ebiten.MouseButtonLeft) {
		g.sim.EraseAt(wx, wy, EraseRadius/g.Zoom)
	} else if inpututil.IsMouseButtonJustPressed(ebiten.MouseButtonLeft) {
		g.sim.SpawnCluster(wx, wy, g.ClusterSize, g.ClusterSpread/g.Zoom)
	}

	// Pan (drag)
	if ebiten.IsMouseButtonPressed(ebiten.MouseButtonRight) {
		g.CamX -= (float64(mx) - g.PrevMX) / g.Zoom
		g.CamY -= (float64(my) - g.PrevMY) / g.Zoom
	}
	g.PrevMX = float64(mx)
	g.PrevMY = float64(my)
}

func (g *Game) savePreset() {
	if err := sim.SaveConfig(g.presetPath, g.sim.Config()); err != nil {
		log.Printf("%v", err)
		return
	}
	log.Printf("saved preset to %s", g.presetPath)
}

func (g *Game) loadPreset() {
	cfg, err := sim.LoadConfig(g.presetPath)
	if err != nil {
		log.Printf("%v", err)
		return
	}
	if err := g.sim.Recreate(cfg); err != nil {
		log.Printf("%v", err)
		return
	}
	ebiten.SetWindowSize(screenSize(cfg))
	if cfg.Trails {
		g.VisMode = VisTrails
	}
	log.Printf("loaded preset from %s", g.presetPath)
}

// worldToScreen/screenToWorld for camera
func (g *Game) worldToScreen(wx, wy float64) (float64, float64) {
	return (wx - g.CamX) * g.Zoom, (wy - g.CamY) * g.Zoom
}

func (g *Game) screenToWorld(sx, sy float64) (float64, float64) {
	return sx/g.Zoom + g.CamX, sy/g.Zoom + g.CamY
}

type offset struct{ X, Y float64 }

// tileOffsets lists the copies of the domain the camera can see. A bounded
// domain is drawn once.
func (g *Game) tileOffsets(screenWidth, screenHeight float64) []offset {
	cfg := g.sim.Config()
	if !cfg.Toroidal {
		return []offset{{}}
	}

	visibleMinX := g.CamX
	visibleMaxX := g.CamX + screenWidth/g.Zoom
	visibleMinY := g.CamY
	visibleMaxY := g.CamY + screenHeight/g.Zoom

	dxFrom := math.Floor(visibleMinX / cfg.Width)
	dxTo := math.Ceil(visibleMaxX / cfg.Width)
	dyFrom := math.Floor(visibleMinY / cfg.Height)
	dyTo := math.Ceil(visibleMaxY / cfg.Height)

	var tiles []offset
	for dx := dxFrom; dx < dxTo; dx++ {
		for dy := dyFrom; dy < dyTo; dy++ {
			tiles = append(tiles, offset{dx * cfg.Width, dy * cfg.Height})
		}
	}
	return tiles
}

func (g *Game) drawParticles(screen *ebiten.Image, off offset, screenWidth, screenHeight float64) {
	maxMass := g.sim.Config().MaxMass
	for _, p := range g.sim.Particles() {
		sx, sy := g.worldToScreen(p.X+off.X, p.Y+off.Y)
		r := math.Max(p.Radius*g.Zoom, 0.75)
		if sx < -r || sx > screenWidth+r || sy < -r || sy > screenHeight+r {
			continue
		}
		vector.DrawFilledCircle(screen, float32(sx), float32(sy), float32(r), massColor(p.Mass, maxMass), true)
	}
}

func (g *Game) drawTrails(screen *ebiten.Image, off offset, screenWidth, screenHeight float64) {
	cfg := g.sim.Config()
	for _, p := range g.sim.Particles() {
		col := fade(massColor(p.Mass, cfg.MaxMass), 120)
		for i := 1; i < len(p.Trail); i++ {
			prev, curr := p.Trail[i-1], p.Trail[i]
			// Skip the segment that crosses a wrapped edge.
			if math.Abs(curr.X-prev.X) > cfg.Width/2 || math.Abs(curr.Y-prev.Y) > cfg.Height/2 {
				continue
			}
			prevSX, prevSY := g.worldToScreen(prev.X+off.X, prev.Y+off.Y)
			currSX, currSY := g.worldToScreen(curr.X+off.X, curr.Y+off.Y)
			if (prevSX >= -1 && prevSX <= screenWidth+1 && prevSY >= -1 && prevSY <= screenHeight+1) ||
				(currSX >= -1 && currSX <= screenWidth+1 && currSY >= -1 && currSY <= screenHeight+1) {
				vector.StrokeLine(screen, float32(prevSX), float32(prevSY), float32(currSX), float32(currSY), 1, col, true)
			}
		}
	}
}

func (g *Game) drawDensity(screen *ebiten.Image, off offset) {
	grid := g.sim.Grid()
	cw, ch := grid.CellSize()
	peak := 1
	grid.Occupancy(func(_, _, count int) { peak = max(peak, count) })
	grid.Occupancy(func(col, row, count int) {
		sx, sy := g.worldToScreen(float64(col)*cw+off.X, float64(row)*ch+off.Y)
		vector.DrawFilledRect(screen, float32(sx), float32(sy), float32(cw*g.Zoom), float32(ch*g.Zoom), densityColor(count, peak), false)
	})
}

func (g *Game) drawGridLines(screen *ebiten.Image, off offset) {
	grid := g.sim.Grid()
	cw, ch := grid.CellSize()
	w, h := grid.Bounds()
	line := color.RGBA{40, 50, 80, 255}

	for c := 0; c <= grid.Cols(); c++ {
		x := math.Min(float64(c)*cw, w)
		x0, y0 := g.worldToScreen(x+off.X, off.Y)
		x1, y1 := g.worldToScreen(x+off.X, h+off.Y)
		vector.StrokeLine(screen, float32(x0), float32(y0), float32(x1), float32(y1), 1, line, false)
	}
	for r := 0; r <= grid.Rows(); r++ {
		y := math.Min(float64(r)*ch, h)
		x0, y0 := g.worldToScreen(off.X, y+off.Y)
		x1, y1 := g.worldToScreen(w+off.X, y+off.Y)
		vector.StrokeLine(screen, float32(x0), float32(y0), float32(x1), float32(y1), 1, line, false)
	}
}
