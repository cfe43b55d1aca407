// Package sim advances a 2D gravitational N-body system. Short-range forces
// and collisions are found through a uniform spatial grid; far-field gravity
// can optionally come from a Barnes-Hut tree.
package sim

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/aquilax/go-perlin"

	"github.com/olivierh59500/cosmo-lab/grid"
)

// ErrDiverged is returned by Step when an acceleration stops being finite.
// The step is not applied.
var ErrDiverged = errors.New("sim: integration diverged")

// Simulation struct: owns every particle and the grid that indexes them
type Simulation struct {
	cfg Config

	particles []*Particle
	slot      map[int]int // Particle ID -> index in particles
	nextID    int

	grid *grid.Grid[*Particle]

	ax, ay []float64 // Acceleration scratch, one entry per particle

	tick  int
	rng   *rand.Rand
	noise *perlin.Perlin
}

// New creates a simulation and seeds cfg.InitialParticles particles
func New(cfg Config) (*Simulation, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s := &Simulation{slot: make(map[int]int)}
	if err := s.configure(cfg); err != nil {
		return nil, err
	}
	s.seed()
	return s, nil
}

// configure installs cfg and builds a fresh grid and noise field.
// Existing particles are dropped.
func (s *Simulation) configure(cfg Config) error {
	g, err := buildGrid(cfg, cfg.Toroidal)
	if err != nil {
		return err
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	s.cfg = cfg
	s.grid = g
	s.rng = rand.New(rand.NewSource(seed))
	s.noise = perlin.NewPerlin(2, 2, 3, seed)
	s.particles = s.particles[:0]
	clear(s.slot)
	s.tick = 0
	return nil
}

// buildGrid sizes the index for cfg. A toroidal grid is tiled with
// floor(size/R) equal cells per axis, each at least InteractionRadius wide,
// so the 3x3 neighbourhood of a cell next to the seam reaches every body
// within R on the far side. A bounded grid uses square R cells.
func buildGrid(cfg Config, toroidal bool) (*grid.Grid[*Particle], error) {
	var (
		g   *grid.Grid[*Particle]
		err error
	)
	if toroidal {
		cols := max(1, int(math.Floor(cfg.Width/cfg.InteractionRadius)))
		rows := max(1, int(math.Floor(cfg.Height/cfg.InteractionRadius)))
		g, err = grid.NewTiled[*Particle](cfg.Width, cfg.Height, cols, rows, true)
	} else {
		g, err = grid.New[*Particle](cfg.Width, cfg.Height, cfg.InteractionRadius, false)
	}
	if err != nil {
		return nil, fmt.Errorf("build grid: %w", err)
	}
	return g, nil
}

// Config returns the active parameters
func (s *Simulation) Config() Config { return s.cfg }

// Grid exposes the spatial index for read-only use (density overlay, tests)
func (s *Simulation) Grid() *grid.Grid[*Particle] { return s.grid }

// Particles returns the live particles. The slice is owned by the
// simulation and is only valid until the next mutating call.
func (s *Simulation) Particles() []*Particle { return s.particles }

// Len is the number of live particles
func (s *Simulation) Len() int { return len(s.particles) }

// Tick counts completed steps since the last reset
func (s *Simulation) Tick() int { return s.tick }

// Particle looks up a live particle by ID
func (s *Simulation) Particle(id int) (*Particle, bool) {
	i, ok := s.slot[id]
	if !ok {
		return nil, false
	}
	return s.particles[i], true
}

// AddParticle copies p into the arena under a fresh ID and indexes it.
// Positions outside the domain are brought inside first; a missing mass
// or radius is filled from the config.
func (s *Simulation) AddParticle(p Particle) *Particle {
	s.nextID++
	np := &Particle{
		ID:     s.nextID,
		X:      p.X,
		Y:      p.Y,
		VX:     p.VX,
		VY:     p.VY,
		Mass:   p.Mass,
		Radius: p.Radius,
	}
	if np.Mass <= 0 {
		np.Mass = s.cfg.MinMass
	}
	if np.Radius <= 0 {
		np.Radius = s.radiusFor(np.Mass)
	}
	s.applyBounds(np)
	s.slot[np.ID] = len(s.particles)
	s.particles = append(s.particles, np)
	// IDs are fresh, so Add cannot report ErrAlreadyTracked here.
	_ = s.grid.Add(np)
	return np
}

// RemoveParticle drops a particle from the arena and the grid
func (s *Simulation) RemoveParticle(id int) bool {
	i, ok := s.slot[id]
	if !ok {
		return false
	}
	p := s.particles[i]
	s.grid.Remove(p)

	last := len(s.particles) - 1
	if i != last {
		moved := s.particles[last]
		s.particles[i] = moved
		s.slot[moved.ID] = i
	}
	s.particles[last] = nil
	s.particles = s.particles[:last]
	delete(s.slot, id)
	return true
}

// EraseAt removes every particle whose disc overlaps the circle at (x, y)
// and returns how many were removed. Any radius works; the grid is scanned
// over every cell the circle, padded by the largest body, touches.
func (s *Simulation) EraseAt(x, y, radius float64) int {
	reach := radius
	for _, p := range s.particles {
		reach = math.Max(reach, radius+p.Radius)
	}
	n := 0
	for _, p := range s.grid.Within(x, y, reach) {
		dx, dy := s.shortestDelta(p.X-x, p.Y-y)
		rr := radius + p.Radius
		if dx*dx+dy*dy <= rr*rr && s.RemoveParticle(p.ID) {
			n++
		}
	}
	return n
}

// Clear removes every particle
func (s *Simulation) Clear() {
	s.grid.Clear()
	for i := range s.particles {
		s.particles[i] = nil
	}
	s.particles = s.particles[:0]
	clear(s.slot)
	s.tick = 0
}

// Reset clears the domain and seeds a fresh initial population
func (s *Simulation) Reset() {
	s.Clear()
	s.seed()
}

// Recreate rebuilds the simulation with new parameters
func (s *Simulation) Recreate(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	s.grid.Clear()
	if err := s.configure(cfg); err != nil {
		return err
	}
	s.seed()
	return nil
}

// SetToroidal switches the domain topology. The grid is rebuilt with the
// new wrap mode and every particle re-indexed. On error the simulation is
// left unchanged.
func (s *Simulation) SetToroidal(on bool) error {
	if s.cfg.Toroidal == on {
		return nil
	}
	g, err := buildGrid(s.cfg, on)
	if err != nil {
		return err
	}
	s.cfg.Toroidal = on
	s.grid = g
	for _, p := range s.particles {
		s.applyBounds(p)
		_ = s.grid.Add(p)
	}
	return nil
}

// SetMerge toggles merging of overlapping bodies
func (s *Simulation) SetMerge(on bool) { s.cfg.Merge = on }

// SetBarnesHut toggles the far-field tree pass
func (s *Simulation) SetBarnesHut(on bool) { s.cfg.BarnesHut = on }

// SetTrails toggles trail recording. Turning trails off drops stored ones.
func (s *Simulation) SetTrails(on bool) {
	s.cfg.Trails = on
	if !on {
		for _, p := range s.particles {
			p.Trail = p.Trail[:0]
		}
	}
}

// ScaleGravity multiplies G by f
func (s *Simulation) ScaleGravity(f float64) {
	if f > 0 {
		s.cfg.G *= f
	}
}

// Step advances the system by one DT
func (s *Simulation) Step() error {
	if err := s.computeAccelerations(); err != nil {
		return err
	}

	dt := s.cfg.DT
	damp := 1 - s.cfg.Damping*dt
	for i, p := range s.particles {
		p.VX = (p.VX + s.ax[i]*dt) * damp
		p.VY = (p.VY + s.ay[i]*dt) * damp
		p.X += p.VX * dt
		p.Y += p.VY * dt

		s.applyBounds(p)
		s.grid.Update(p)

		if s.cfg.Trails {
			p.pushTrail(s.cfg.TrailLength)
		}
	}

	if s.cfg.Merge {
		s.mergeCollisions()
	}

	s.tick++
	return nil
}

// applyBounds wraps or reflects p into [0,Width)x[0,Height)
func (s *Simulation) applyBounds(p *Particle) {
	if s.cfg.Toroidal {
		p.X = wrap(p.X, s.cfg.Width)
		p.Y = wrap(p.Y, s.cfg.Height)
		return
	}
	p.X, p.VX = reflect(p.X, p.VX, s.cfg.Width, s.cfg.Restitution)
	p.Y, p.VY = reflect(p.Y, p.VY, s.cfg.Height, s.cfg.Restitution)
}

func wrap(v, size float64) float64 {
	v = math.Mod(v, size)
	if v < 0 {
		v += size
	}
	if v >= size {
		v = 0
	}
	return v
}

func reflect(v, vel, size, restitution float64) (float64, float64) {
	switch {
	case v < 0:
		v, vel = -v, -vel*restitution
	case v >= size:
		v, vel = 2*size-v, -vel*restitution
	}
	// Fast particles can overshoot a full width.
	if v < 0 {
		v = 0
	} else if v >= size {
		v = math.Nextafter(size, 0)
	}
	return v, vel
}

// shortestDelta computes delta with toroidal wrap
func (s *Simulation) shortestDelta(dx, dy float64) (float64, float64) {
	if !s.cfg.Toroidal {
		return dx, dy
	}
	w, h := s.cfg.Width, s.cfg.Height
	if dx > w/2 {
		dx -= w
	} else if dx < -w/2 {
		dx += w
	}
	if dy > h/2 {
		dy -= h
	} else if dy < -h/2 {
		dy += h
	}
	return dx, dy
}

func (s *Simulation) radiusFor(mass float64) float64 {
	return s.cfg.RadiusScale * math.Sqrt(math.Max(mass, 0))
}
