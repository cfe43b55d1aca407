package sim

import (
	"fmt"
	"math"
	"runtime"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/spatial/barneshut"
	"gonum.org/v1/gonum/spatial/r2"
)

// minChunk keeps tiny systems on a single goroutine
const minChunk = 64

// computeAccelerations fills s.ax/s.ay for every particle in parallel.
// Each worker owns a contiguous index range and writes only there; the
// grid and the particles are read-only for the duration of the pass.
func (s *Simulation) computeAccelerations() error {
	n := len(s.particles)
	if cap(s.ax) < n {
		s.ax = make([]float64, n)
		s.ay = make([]float64, n)
	}
	s.ax, s.ay = s.ax[:n], s.ay[:n]
	if n == 0 {
		return nil
	}

	accel := s.nearAcceleration
	if s.cfg.BarnesHut {
		// The plane cannot be built over coincident bodies; the grid pass
		// carries this step and merging usually separates them.
		if far, err := s.farField(); err == nil {
			accel = far
		}
	}

	workers := runtime.GOMAXPROCS(0)
	chunk := max((n+workers-1)/workers, minChunk)

	var g errgroup.Group
	g.SetLimit(workers)
	for start := 0; start < n; start += chunk {
		end := min(start+chunk, n)
		g.Go(func() error {
			for i := start; i < end; i++ {
				ax, ay := accel(i)
				if math.IsNaN(ax) || math.IsNaN(ay) || math.IsInf(ax, 0) || math.IsInf(ay, 0) {
					return fmt.Errorf("%w: particle %d", ErrDiverged, s.particles[i].ID)
				}
				s.ax[i], s.ay[i] = ax, ay
			}
			return nil
		})
	}
	return g.Wait()
}

// nearAcceleration sums softened gravity from grid neighbours that lie
// within the interaction radius.
func (s *Simulation) nearAcceleration(i int) (float64, float64) {
	p := s.particles[i]
	rMax2 := s.cfg.InteractionRadius * s.cfg.InteractionRadius
	eps2 := s.cfg.Softening * s.cfg.Softening

	var ax, ay float64
	for _, q := range s.grid.Nearby(p) {
		dx, dy := s.shortestDelta(q.X-p.X, q.Y-p.Y)
		r2 := dx*dx + dy*dy
		if r2 == 0 || r2 > rMax2 {
			continue
		}
		d2 := r2 + eps2
		f := s.cfg.G * q.Mass / (d2 * math.Sqrt(d2))
		ax += f * dx
		ay += f * dy
	}
	return ax, ay
}

// farField builds a Barnes-Hut plane over all particles and returns an
// acceleration function backed by it. The tree ignores toroidal wrap.
func (s *Simulation) farField() (func(i int) (float64, float64), error) {
	bodies := make([]barneshut.Particle2, len(s.particles))
	for i, p := range s.particles {
		bodies[i] = &body{p: p}
	}
	plane, err := barneshut.NewPlane(bodies)
	if err != nil {
		return nil, fmt.Errorf("build barnes-hut plane: %w", err)
	}

	theta := s.cfg.Theta
	force := s.softGravity
	return func(i int) (float64, float64) {
		b := bodies[i]
		f := plane.ForceOn(b, theta, force)
		m := s.particles[i].Mass
		return f.X / m, f.Y / m
	}, nil
}

// softGravity is barneshut.Gravity2 with Plummer softening. v points from
// the first mass to the second.
func (s *Simulation) softGravity(_, _ barneshut.Particle2, m1, m2 float64, v r2.Vec) r2.Vec {
	d2 := v.X*v.X + v.Y*v.Y
	if d2 == 0 {
		return r2.Vec{}
	}
	d2 += s.cfg.Softening * s.cfg.Softening
	f := s.cfg.G * m1 * m2 / (d2 * math.Sqrt(d2))
	return r2.Vec{X: v.X * f, Y: v.Y * f}
}
