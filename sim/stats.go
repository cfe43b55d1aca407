package sim

import "math"

// Stats summarises the current state for the HUD
type Stats struct {
	Count     int
	TotalMass float64
	Kinetic   float64
	Potential float64 // short range only, pairs within InteractionRadius
	MomentumX float64
	MomentumY float64
	CenterX   float64
	CenterY   float64
	MaxMass   float64
	Tick      int
}

// Energy is kinetic plus short-range potential
func (st Stats) Energy() float64 { return st.Kinetic + st.Potential }

// Stats computes totals over all live particles. The centre of mass is
// plain (not circular) on a toroidal domain.
func (s *Simulation) Stats() Stats {
	st := Stats{Count: len(s.particles), Tick: s.tick}
	rMax2 := s.cfg.InteractionRadius * s.cfg.InteractionRadius
	eps2 := s.cfg.Softening * s.cfg.Softening

	for _, p := range s.particles {
		st.TotalMass += p.Mass
		st.MomentumX += p.Mass * p.VX
		st.MomentumY += p.Mass * p.VY
		st.Kinetic += 0.5 * p.Mass * (p.VX*p.VX + p.VY*p.VY)
		st.CenterX += p.Mass * p.X
		st.CenterY += p.Mass * p.Y
		st.MaxMass = math.Max(st.MaxMass, p.Mass)

		for _, q := range s.grid.Nearby(p) {
			if q.ID <= p.ID {
				continue
			}
			dx, dy := s.shortestDelta(q.X-p.X, q.Y-p.Y)
			r2 := dx*dx + dy*dy
			if r2 > rMax2 {
				continue
			}
			st.Potential -= s.cfg.G * p.Mass * q.Mass / math.Sqrt(r2+eps2)
		}
	}
	if st.TotalMass > 0 {
		st.CenterX /= st.TotalMass
		st.CenterY /= st.TotalMass
	}
	return st
}
