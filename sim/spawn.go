package sim

import "math"

// seed places cfg.InitialParticles particles. Positions are rejection
// sampled against the perlin field so the initial population forms
// filaments and voids instead of a uniform haze.
func (s *Simulation) seed() {
	n := s.cfg.InitialParticles
	maxAttempts := n * 50
	placed := 0
	for attempt := 0; placed < n; attempt++ {
		x := s.rng.Float64() * s.cfg.Width
		y := s.rng.Float64() * s.cfg.Height
		if attempt < maxAttempts && s.rng.Float64() > s.density(x, y) {
			continue
		}
		s.AddParticle(Particle{
			X:    x,
			Y:    y,
			VX:   s.rng.NormFloat64() * s.cfg.InitialSpeed,
			VY:   s.rng.NormFloat64() * s.cfg.InitialSpeed,
			Mass: s.randomMass(),
		})
		placed++
	}
}

// density maps the noise field at (x, y) into an acceptance probability.
// A floor keeps voids from being completely empty.
func (s *Simulation) density(x, y float64) float64 {
	v := s.noise.Noise2D(x*s.cfg.NoiseScale, y*s.cfg.NoiseScale)
	d := 0.1 + 0.9*(0.5+v)
	return math.Max(0, math.Min(1, d))
}

func (s *Simulation) randomMass() float64 {
	return s.cfg.MinMass + s.rng.Float64()*(s.cfg.MaxMass-s.cfg.MinMass)
}

// SpawnCluster adds n particles in a disc of radius spread around (x, y),
// denser towards the middle, orbiting the centre counter-clockwise at
// roughly circular speed for the mass enclosed at each radius.
func (s *Simulation) SpawnCluster(x, y float64, n int, spread float64) []*Particle {
	if n <= 0 {
		return nil
	}
	spread = math.Max(spread, 1)

	type seedPos struct{ r, theta, m float64 }
	seeds := make([]seedPos, n)
	total := 0.0
	for i := range seeds {
		r := math.Min(math.Abs(s.rng.NormFloat64())*spread/2, spread)
		m := s.randomMass()
		seeds[i] = seedPos{r: r, theta: s.rng.Float64() * 2 * math.Pi, m: m}
		total += m
	}

	out := make([]*Particle, 0, n)
	for _, sp := range seeds {
		frac := (sp.r / spread) * (sp.r / spread)
		enclosed := total * frac
		v := math.Sqrt(s.cfg.G * enclosed / math.Hypot(sp.r, s.cfg.Softening))
		sin, cos := math.Sincos(sp.theta)
		out = append(out, s.AddParticle(Particle{
			X:    x + sp.r*cos,
			Y:    y + sp.r*sin,
			VX:   -v * sin,
			VY:   v * cos,
			Mass: sp.m,
		}))
	}
	return out
}
