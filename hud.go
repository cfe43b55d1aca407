package main

import (
	"fmt"
	"image/color"
	"strings"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/text/v2"
	"golang.org/x/image/font/basicfont"
)

var visNames = [numVisModes]string{"particles", "trails", "density"}

type hud struct {
	face text.Face
}

func newHUD() *hud {
	return &hud{face: text.NewGoXFace(basicfont.Face7x13)}
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

func (h *hud) draw(screen *ebiten.Image, g *Game) {
	cfg := g.sim.Config()
	st := g.sim.Stats()

	var sb strings.Builder
	fmt.Fprintf(&sb, "tps %.0f  fps %.0f  tick %d", ebiten.ActualTPS(), ebiten.ActualFPS(), st.Tick)
	if g.Paused {
		sb.WriteString("  [paused]")
	}
	fmt.Fprintf(&sb, "\nbodies %d  mass %.1f  heaviest %.1f", st.Count, st.TotalMass, st.MaxMass)
	fmt.Fprintf(&sb, "\nKE %.1f  PE %.1f  p (%.2f, %.2f)", st.Kinetic, st.Potential, st.MomentumX, st.MomentumY)
	fmt.Fprintf(&sb, "\nG %.2f  wrap %s  merge %s  barnes-hut %s", cfg.G, onOff(cfg.Toroidal), onOff(cfg.Merge), onOff(cfg.BarnesHut))
	fmt.Fprintf(&sb, "\nview %s  zoom %.2f  cluster %d", visNames[g.VisMode], g.Zoom, g.ClusterSize)
	sb.WriteString("\nclick spawn  X+click erase  space pause  H view  G grid  [ ] cluster")

	op := &text.DrawOptions{}
	op.GeoM.Translate(8, 8)
	op.LineSpacing = 16
	op.ColorScale.ScaleWithColor(color.RGBA{200, 210, 230, 255})
	text.Draw(screen, sb.String(), h.face, op)
}
