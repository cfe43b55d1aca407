package sim

import "math"

// mergeCollisions coalesces overlapping pairs. The heavier particle of a
// pair absorbs the lighter one: mass adds, momentum is conserved, the
// survivor moves to the mass-weighted centre and its radius grows so the
// disc area is conserved. Returns the number of absorbed particles.
func (s *Simulation) mergeCollisions() int {
	dead := make(map[int]struct{})

	for i := 0; i < len(s.particles); i++ {
		p := s.particles[i]
		if _, gone := dead[p.ID]; gone {
			continue
		}
		for _, q := range s.grid.Nearby(p) {
			if _, gone := dead[q.ID]; gone {
				continue
			}
			dx, dy := s.shortestDelta(q.X-p.X, q.Y-p.Y)
			rr := p.Radius + q.Radius
			if dx*dx+dy*dy >= rr*rr {
				continue
			}

			winner, loser := p, q
			if q.Mass > p.Mass || (q.Mass == p.Mass && q.ID < p.ID) {
				winner, loser = q, p
				dx, dy = -dx, -dy
			}
			s.absorb(winner, loser, dx, dy)
			dead[loser.ID] = struct{}{}
			s.grid.Remove(loser)
			s.grid.Update(winner)

			if loser == p {
				break
			}
		}
	}

	if len(dead) == 0 {
		return 0
	}
	for id := range dead {
		s.RemoveParticle(id)
	}
	return len(dead)
}

// absorb folds loser into winner. (dx, dy) points from winner to loser.
func (s *Simulation) absorb(winner, loser *Particle, dx, dy float64) {
	m := winner.Mass + loser.Mass
	k := loser.Mass / m

	winner.VX = (winner.VX*winner.Mass + loser.VX*loser.Mass) / m
	winner.VY = (winner.VY*winner.Mass + loser.VY*loser.Mass) / m
	winner.X += dx * k
	winner.Y += dy * k
	winner.Mass = m
	winner.Radius = math.Hypot(winner.Radius, loser.Radius)
	s.applyBounds(winner)
}
