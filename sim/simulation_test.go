package sim

import (
	"errors"
	"math"
	"testing"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.InitialParticles = 0
	cfg.Seed = 1
	cfg.Damping = 0
	cfg.Merge = false
	return cfg
}

func newSim(t *testing.T, cfg Config) *Simulation {
	t.Helper()
	s, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

// checkIndexed verifies that every live particle is tracked in the cell of
// its current position and nothing else is tracked.
func checkIndexed(t *testing.T, s *Simulation) {
	t.Helper()
	g := s.Grid()
	if g.Len() != s.Len() {
		t.Fatalf("grid tracks %d particles, simulation has %d", g.Len(), s.Len())
	}
	for _, p := range s.Particles() {
		idx, ok := g.CellOf(p)
		if !ok {
			t.Fatalf("particle %d not tracked", p.ID)
		}
		col, row := g.CellCoordinates(p.X, p.Y)
		if idx != g.CellIndex(col, row) {
			t.Fatalf("particle %d at (%.2f,%.2f) recorded in cell %d, want %d", p.ID, p.X, p.Y, idx, g.CellIndex(col, row))
		}
		if q, ok := s.Particle(p.ID); !ok || q != p {
			t.Fatalf("particle %d lookup mismatch", p.ID)
		}
	}
}

func checkInBounds(t *testing.T, s *Simulation) {
	t.Helper()
	cfg := s.Config()
	for _, p := range s.Particles() {
		if math.IsNaN(p.X) || math.IsNaN(p.Y) || p.X < 0 || p.X >= cfg.Width || p.Y < 0 || p.Y >= cfg.Height {
			t.Fatalf("particle %d out of domain at (%v,%v)", p.ID, p.X, p.Y)
		}
	}
}

func TestNew_SeedsInitialParticles(t *testing.T) {
	cfg := testConfig()
	cfg.InitialParticles = 300
	s := newSim(t, cfg)

	if s.Len() != 300 {
		t.Fatalf("Len = %d, want 300", s.Len())
	}
	checkIndexed(t, s)
	checkInBounds(t, s)
	for _, p := range s.Particles() {
		if p.Mass < cfg.MinMass || p.Mass > cfg.MaxMass {
			t.Errorf("particle %d mass %v outside [%v,%v]", p.ID, p.Mass, cfg.MinMass, cfg.MaxMass)
		}
		if p.Radius <= 0 {
			t.Errorf("particle %d has radius %v", p.ID, p.Radius)
		}
	}
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.InteractionRadius = -1
	if _, err := New(cfg); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestAddRemoveParticle(t *testing.T) {
	s := newSim(t, testConfig())
	a := s.AddParticle(Particle{X: 10, Y: 10, Mass: 2})
	b := s.AddParticle(Particle{X: 20, Y: 10})
	c := s.AddParticle(Particle{X: 400, Y: 300, Mass: 1, Radius: 3})

	if a.ID == b.ID || b.ID == c.ID {
		t.Fatalf("IDs not unique: %d %d %d", a.ID, b.ID, c.ID)
	}
	if b.Mass != s.Config().MinMass {
		t.Errorf("missing mass not defaulted: %v", b.Mass)
	}
	if c.Radius != 3 {
		t.Errorf("explicit radius overwritten: %v", c.Radius)
	}
	checkIndexed(t, s)

	if !s.RemoveParticle(a.ID) {
		t.Fatalf("RemoveParticle returned false")
	}
	if s.RemoveParticle(a.ID) {
		t.Errorf("second RemoveParticle returned true")
	}
	if _, ok := s.Particle(a.ID); ok {
		t.Errorf("removed particle still found")
	}
	for _, q := range s.Grid().Nearby(b) {
		if q.ID == a.ID {
			t.Errorf("removed particle still in grid")
		}
	}
	checkIndexed(t, s)

	d := s.AddParticle(Particle{X: 1, Y: 1})
	if d.ID <= c.ID {
		t.Errorf("ID %d reused after removal", d.ID)
	}
}

func TestStep_KeepsGridConsistent(t *testing.T) {
	for _, toroidal := range []bool{true, false} {
		cfg := testConfig()
		cfg.InitialParticles = 400
		cfg.Toroidal = toroidal
		cfg.Merge = true
		cfg.InitialSpeed = 30
		s := newSim(t, cfg)

		for i := 0; i < 50; i++ {
			if err := s.Step(); err != nil {
				t.Fatalf("Step: %v", err)
			}
		}
		checkIndexed(t, s)
		checkInBounds(t, s)
		if s.Tick() != 50 {
			t.Errorf("Tick = %d, want 50", s.Tick())
		}
	}
}

func TestStep_ToroidalWrap(t *testing.T) {
	cfg := testConfig()
	cfg.G = 0
	s := newSim(t, cfg)
	p := s.AddParticle(Particle{X: 799, Y: 300, VX: 100, Mass: 1})

	if err := s.Step(); err != nil {
		t.Fatal(err)
	}
	if math.Abs(p.X-4) > 1e-9 {
		t.Errorf("X = %v, want 4", p.X)
	}
	if p.VX != 100 {
		t.Errorf("VX changed on wrap: %v", p.VX)
	}
	checkIndexed(t, s)
}

func TestStep_BoundedReflect(t *testing.T) {
	cfg := testConfig()
	cfg.G = 0
	cfg.Toroidal = false
	s := newSim(t, cfg)
	p := s.AddParticle(Particle{X: 1, Y: 300, VX: -100, Mass: 1})

	if err := s.Step(); err != nil {
		t.Fatal(err)
	}
	if math.Abs(p.X-4) > 1e-9 {
		t.Errorf("X = %v, want 4", p.X)
	}
	if math.Abs(p.VX-100*cfg.Restitution) > 1e-9 {
		t.Errorf("VX = %v, want %v", p.VX, 100*cfg.Restitution)
	}
	checkIndexed(t, s)
}

func TestNearAcceleration_Symmetric(t *testing.T) {
	s := newSim(t, testConfig())
	a := s.AddParticle(Particle{X: 100, Y: 100, Mass: 2})
	b := s.AddParticle(Particle{X: 130, Y: 110, Mass: 5})

	if err := s.computeAccelerations(); err != nil {
		t.Fatal(err)
	}
	ia, ib := s.slot[a.ID], s.slot[b.ID]
	fx := s.ax[ia]*a.Mass + s.ax[ib]*b.Mass
	fy := s.ay[ia]*a.Mass + s.ay[ib]*b.Mass
	if math.Abs(fx) > 1e-9 || math.Abs(fy) > 1e-9 {
		t.Errorf("net force (%v,%v), want zero", fx, fy)
	}
	if s.ax[ia] <= 0 {
		t.Errorf("a should be pulled towards b, ax=%v", s.ax[ia])
	}
}

func TestNearAcceleration_IgnoresBeyondRadius(t *testing.T) {
	s := newSim(t, testConfig())
	s.AddParticle(Particle{X: 100, Y: 100, Mass: 2})
	s.AddParticle(Particle{X: 100 + DefaultInteractionRadius + 10, Y: 100, Mass: 2})

	if err := s.computeAccelerations(); err != nil {
		t.Fatal(err)
	}
	for i := range s.ax {
		if s.ax[i] != 0 || s.ay[i] != 0 {
			t.Errorf("particle %d accelerated beyond interaction radius", i)
		}
	}
}

func TestNearAcceleration_AcrossToroidalSeam(t *testing.T) {
	cfg := testConfig()
	cfg.Toroidal = true
	s := newSim(t, cfg)
	a := s.AddParticle(Particle{X: 5, Y: 300, Mass: 2})
	b := s.AddParticle(Particle{X: 770, Y: 300, Mass: 2})

	cw, _ := s.Grid().CellSize()
	if cw < cfg.InteractionRadius {
		t.Fatalf("cell width %v below interaction radius %v", cw, cfg.InteractionRadius)
	}
	if err := s.computeAccelerations(); err != nil {
		t.Fatal(err)
	}
	ia, ib := s.slot[a.ID], s.slot[b.ID]
	if s.ax[ia] >= 0 {
		t.Errorf("a should be pulled left through the seam, ax=%v", s.ax[ia])
	}
	if s.ax[ib] <= 0 {
		t.Errorf("b should be pulled right through the seam, ax=%v", s.ax[ib])
	}
	if math.Abs(s.ax[ia]+s.ax[ib]) > 1e-9 {
		t.Errorf("equal masses should feel opposite forces: %v %v", s.ax[ia], s.ax[ib])
	}
}

func TestBarnesHut_ReachesFarParticles(t *testing.T) {
	cfg := testConfig()
	cfg.BarnesHut = true
	s := newSim(t, cfg)
	a := s.AddParticle(Particle{X: 200, Y: 300, Mass: 3})
	b := s.AddParticle(Particle{X: 400, Y: 300, Mass: 3})

	if err := s.Step(); err != nil {
		t.Fatalf("Step: %v", err)
	}
	if a.VX <= 0 || b.VX >= 0 {
		t.Errorf("particles should approach: a.VX=%v b.VX=%v", a.VX, b.VX)
	}
	if math.Abs(a.VX+b.VX) > 1e-9 {
		t.Errorf("equal masses should get opposite velocities: %v %v", a.VX, b.VX)
	}

	s.SetBarnesHut(false)
	a.VX, b.VX = 0, 0
	if err := s.Step(); err != nil {
		t.Fatal(err)
	}
	if a.VX != 0 || b.VX != 0 {
		t.Errorf("grid pass should not see particles %v apart", b.X-a.X)
	}
}

func TestBarnesHut_CoincidentBodiesFallBackToGrid(t *testing.T) {
	cfg := testConfig()
	cfg.BarnesHut = true
	s := newSim(t, cfg)
	a := s.AddParticle(Particle{X: 100, Y: 100, Mass: 2})
	s.AddParticle(Particle{X: 100, Y: 100, Mass: 2})
	c := s.AddParticle(Particle{X: 130, Y: 100, Mass: 2})

	if _, err := s.farField(); err == nil {
		t.Fatalf("farField accepted coincident bodies")
	}
	if err := s.Step(); err != nil {
		t.Fatalf("Step: %v", err)
	}
	if a.VX <= 0 || c.VX >= 0 {
		t.Errorf("grid pass should still attract: a.VX=%v c.VX=%v", a.VX, c.VX)
	}
	checkIndexed(t, s)
}

func TestStep_DivergedLeavesStateUntouched(t *testing.T) {
	s := newSim(t, testConfig())
	a := s.AddParticle(Particle{X: 100, Y: 100, Mass: math.Inf(1), Radius: 1})
	b := s.AddParticle(Particle{X: 110, Y: 100, Mass: 1})

	if err := s.Step(); !errors.Is(err, ErrDiverged) {
		t.Fatalf("expected ErrDiverged, got %v", err)
	}
	if a.X != 100 || b.X != 110 || s.Tick() != 0 {
		t.Errorf("diverged step was applied")
	}
}

func TestMerge_ConservesMassAndMomentum(t *testing.T) {
	cfg := testConfig()
	cfg.G = 0
	cfg.Merge = true
	s := newSim(t, cfg)
	heavy := s.AddParticle(Particle{X: 100, Y: 100, VX: 1, Mass: 2, Radius: 1})
	s.AddParticle(Particle{X: 101, Y: 100, VX: -1, VY: 3, Mass: 1, Radius: 1})
	s.AddParticle(Particle{X: 500, Y: 500, Mass: 1, Radius: 1})

	if err := s.Step(); err != nil {
		t.Fatal(err)
	}
	if s.Len() != 2 {
		t.Fatalf("Len = %d, want 2", s.Len())
	}
	survivor, ok := s.Particle(heavy.ID)
	if !ok {
		t.Fatalf("heavier particle did not survive")
	}
	if survivor.Mass != 3 {
		t.Errorf("Mass = %v, want 3", survivor.Mass)
	}
	if math.Abs(survivor.VX-1.0/3) > 1e-12 || math.Abs(survivor.VY-1) > 1e-12 {
		t.Errorf("velocity (%v,%v), want (1/3,1)", survivor.VX, survivor.VY)
	}
	if math.Abs(survivor.Radius-math.Sqrt2) > 1e-12 {
		t.Errorf("Radius = %v, want sqrt(2)", survivor.Radius)
	}
	checkIndexed(t, s)
}

func TestMerge_ChainAbsorbsIntoHeaviest(t *testing.T) {
	cfg := testConfig()
	cfg.G = 0
	cfg.Merge = true
	s := newSim(t, cfg)
	var total float64
	for i := 0; i < 10; i++ {
		p := s.AddParticle(Particle{X: 300 + float64(i)*0.5, Y: 300, Mass: float64(i + 1), Radius: 1})
		total += p.Mass
	}

	if err := s.Step(); err != nil {
		t.Fatal(err)
	}
	st := s.Stats()
	if math.Abs(st.TotalMass-total) > 1e-9 {
		t.Errorf("TotalMass = %v, want %v", st.TotalMass, total)
	}
	if s.Len() >= 10 {
		t.Errorf("no merges happened")
	}
	checkIndexed(t, s)
}

func TestSpawnCluster(t *testing.T) {
	cfg := testConfig()
	s := newSim(t, cfg)
	ps := s.SpawnCluster(400, 300, 80, 40)

	if len(ps) != 80 || s.Len() != 80 {
		t.Fatalf("spawned %d, Len %d, want 80", len(ps), s.Len())
	}
	var lz float64
	for _, p := range ps {
		dx, dy := p.X-400, p.Y-300
		if math.Hypot(dx, dy) > 40+1e-9 {
			t.Errorf("particle %d outside spread at (%v,%v)", p.ID, p.X, p.Y)
		}
		lz += p.Mass * (dx*p.VY - dy*p.VX)
	}
	if lz <= 0 {
		t.Errorf("cluster should rotate counter-clockwise, Lz=%v", lz)
	}
	if s.SpawnCluster(10, 10, 0, 5) != nil {
		t.Errorf("zero-sized cluster should spawn nothing")
	}
	checkIndexed(t, s)
}

func TestEraseAt(t *testing.T) {
	s := newSim(t, testConfig())
	s.AddParticle(Particle{X: 100, Y: 100, Radius: 1})
	s.AddParticle(Particle{X: 105, Y: 100, Radius: 1})
	keep := s.AddParticle(Particle{X: 160, Y: 100, Radius: 1})

	if n := s.EraseAt(102, 100, 10); n != 2 {
		t.Errorf("EraseAt removed %d, want 2", n)
	}
	if s.Len() != 1 {
		t.Fatalf("Len = %d, want 1", s.Len())
	}
	if _, ok := s.Particle(keep.ID); !ok {
		t.Errorf("distant particle erased")
	}
	checkIndexed(t, s)
}

func TestEraseAt_RadiusLargerThanCell(t *testing.T) {
	s := newSim(t, testConfig())
	s.AddParticle(Particle{X: 100, Y: 100, Radius: 1})
	s.AddParticle(Particle{X: 200, Y: 100, Radius: 1})
	s.AddParticle(Particle{X: 100, Y: 215, Radius: 1})
	keep := s.AddParticle(Particle{X: 400, Y: 100, Radius: 1})

	if n := s.EraseAt(100, 100, 120); n != 3 {
		t.Errorf("EraseAt removed %d, want 3", n)
	}
	if s.Len() != 1 {
		t.Fatalf("Len = %d, want 1", s.Len())
	}
	if _, ok := s.Particle(keep.ID); !ok {
		t.Errorf("distant particle erased")
	}
	checkIndexed(t, s)
}

func TestClearResetRecreate(t *testing.T) {
	cfg := testConfig()
	cfg.InitialParticles = 50
	s := newSim(t, cfg)
	s.SpawnCluster(200, 200, 20, 30)

	s.Clear()
	if s.Len() != 0 || s.Grid().Len() != 0 {
		t.Fatalf("Clear left %d particles, %d tracked", s.Len(), s.Grid().Len())
	}
	if near := s.Grid().NearbyPoint(200, 200); len(near) != 0 {
		t.Errorf("grid query after Clear returned %d", len(near))
	}

	s.Reset()
	if s.Len() != 50 {
		t.Errorf("Reset seeded %d, want 50", s.Len())
	}
	checkIndexed(t, s)

	next := cfg
	next.Width, next.Height = 400, 300
	next.InteractionRadius = 25
	next.InitialParticles = 10
	if err := s.Recreate(next); err != nil {
		t.Fatalf("Recreate: %v", err)
	}
	if s.Grid().Cols() != 16 || s.Grid().Rows() != 12 {
		t.Errorf("grid is %dx%d, want 16x12", s.Grid().Cols(), s.Grid().Rows())
	}
	if s.Len() != 10 {
		t.Errorf("Recreate seeded %d, want 10", s.Len())
	}
	checkIndexed(t, s)
	checkInBounds(t, s)

	bad := next
	bad.DT = 0
	if err := s.Recreate(bad); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestSetToroidal_RebuildsGrid(t *testing.T) {
	cfg := testConfig()
	cfg.InitialParticles = 100
	s := newSim(t, cfg)

	if err := s.SetToroidal(false); err != nil {
		t.Fatalf("SetToroidal: %v", err)
	}
	if s.Grid().Toroidal() || s.Config().Toroidal {
		t.Fatalf("still toroidal")
	}
	checkIndexed(t, s)

	left := s.AddParticle(Particle{X: 1, Y: 300})
	s.AddParticle(Particle{X: 799, Y: 300})
	for _, q := range s.Grid().Nearby(left) {
		if q.X > 700 {
			t.Errorf("bounded grid wrapped to particle at %v", q.X)
		}
	}
	if s.Grid().Cols() != 14 {
		t.Errorf("bounded grid has %d columns, want 14", s.Grid().Cols())
	}

	if err := s.SetToroidal(true); err != nil {
		t.Fatalf("SetToroidal: %v", err)
	}
	if err := s.SetToroidal(true); err != nil {
		t.Fatalf("repeated SetToroidal: %v", err)
	}
	if s.Grid().Cols() != 13 || s.Grid().Rows() != 10 {
		t.Errorf("toroidal grid is %dx%d, want 13x10", s.Grid().Cols(), s.Grid().Rows())
	}
	checkIndexed(t, s)
}

func TestTrails(t *testing.T) {
	cfg := testConfig()
	cfg.G = 0
	cfg.Trails = true
	cfg.TrailLength = 3
	s := newSim(t, cfg)
	p := s.AddParticle(Particle{X: 100, Y: 100, VX: 20})

	for i := 0; i < 5; i++ {
		if err := s.Step(); err != nil {
			t.Fatalf("Step %d: %v", i, err)
		}
	}
	if len(p.Trail) != 3 {
		t.Fatalf("trail length %d, want 3", len(p.Trail))
	}
	if last := p.Trail[len(p.Trail)-1]; last.X != p.X || last.Y != p.Y {
		t.Errorf("last trail point %v, want current position", last)
	}

	s.SetTrails(false)
	if len(p.Trail) != 0 {
		t.Errorf("trail kept after disabling")
	}
}

func TestStats(t *testing.T) {
	cfg := testConfig()
	s := newSim(t, cfg)
	s.AddParticle(Particle{X: 100, Y: 100, VX: 2, Mass: 1})
	s.AddParticle(Particle{X: 110, Y: 100, VY: -1, Mass: 3})

	st := s.Stats()
	if st.Count != 2 || st.TotalMass != 4 || st.MaxMass != 3 {
		t.Errorf("unexpected totals %+v", st)
	}
	if st.MomentumX != 2 || st.MomentumY != -3 {
		t.Errorf("momentum (%v,%v), want (2,-3)", st.MomentumX, st.MomentumY)
	}
	if math.Abs(st.Kinetic-3.5) > 1e-12 {
		t.Errorf("Kinetic = %v, want 3.5", st.Kinetic)
	}
	wantPot := -cfg.G * 3 / math.Sqrt(100+cfg.Softening*cfg.Softening)
	if math.Abs(st.Potential-wantPot) > 1e-9 {
		t.Errorf("Potential = %v, want %v", st.Potential, wantPot)
	}
	if math.Abs(st.CenterX-107.5) > 1e-12 || st.CenterY != 100 {
		t.Errorf("centre (%v,%v), want (107.5,100)", st.CenterX, st.CenterY)
	}
}

func BenchmarkStep(b *testing.B) {
	cfg := DefaultConfig()
	cfg.InitialParticles = 3000
	cfg.Seed = 1
	s, err := New(cfg)
	if err != nil {
		b.Fatal(err)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := s.Step(); err != nil {
			b.Fatal(err)
		}
	}
}
