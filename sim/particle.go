package sim

import (
	"gonum.org/v1/gonum/spatial/r2"
)

// Point is a trail sample
type Point struct {
	X, Y float64
}

// Particle struct: a single body
type Particle struct {
	ID     int     // Stable handle, never reused within a Simulation
	X, Y   float64 // Position
	VX, VY float64 // Velocity
	Mass   float64
	Radius float64
	Trail  []Point // Last TrailLength positions
}

// GridID implements grid.Entity
func (p *Particle) GridID() int { return p.ID }

// Position implements grid.Entity
func (p *Particle) Position() (float64, float64) { return p.X, p.Y }

// body adapts a Particle to barneshut.Particle2. The Particle already
// has a Mass field so it cannot carry the Mass method itself.
type body struct {
	p *Particle
}

func (b *body) Coord2() r2.Vec { return r2.Vec{X: b.p.X, Y: b.p.Y} }
func (b *body) Mass() float64  { return b.p.Mass }

func (p *Particle) pushTrail(n int) {
	if n <= 0 {
		p.Trail = p.Trail[:0]
		return
	}
	p.Trail = append(p.Trail, Point{p.X, p.Y})
	if len(p.Trail) > n {
		p.Trail = p.Trail[len(p.Trail)-n:]
	}
}
