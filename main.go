package main

import (
	"flag"
	"log"

	"github.com/hajimehoshi/ebiten/v2"

	"github.com/olivierh59500/cosmo-lab/sim"
)

func main() {
	log.SetPrefix("cosmo-lab: ")

	var (
		preset    = flag.String("preset", "", "load parameters from a JSON preset before applying flags")
		save      = flag.String("save", "preset.json", "file written by S and read by L")
		width     = flag.Float64("width", sim.DefaultWidth, "domain width")
		height    = flag.Float64("height", sim.DefaultHeight, "domain height")
		particles = flag.Int("particles", sim.DefaultParticles, "initial particle count")
		cell      = flag.Float64("cell", sim.DefaultInteractionRadius, "interaction radius and grid cell size")
		seed      = flag.Int64("seed", 0, "random seed, 0 for time based")
		toroidal  = flag.Bool("toroidal", true, "wrap the domain edges")
		barnesHut = flag.Bool("barneshut", false, "use a Barnes-Hut tree for far-field gravity")
		merge     = flag.Bool("merge", true, "merge colliding bodies")
		tps       = flag.Int("tps", 60, "simulation ticks per second")
	)
	flag.Parse()

	// Initialize simulation with default parameters
	cfg := sim.DefaultConfig()
	if *preset != "" {
		c, err := sim.LoadConfig(*preset)
		if err != nil {
			log.Fatal(err)
		}
		cfg = c
	}

	// Explicit flags override the preset
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "width":
			cfg.Width = *width
		case "height":
			cfg.Height = *height
		case "particles":
			cfg.InitialParticles = *particles
		case "cell":
			cfg.InteractionRadius = *cell
		case "seed":
			cfg.Seed = *seed
		case "toroidal":
			cfg.Toroidal = *toroidal
		case "barneshut":
			cfg.BarnesHut = *barnesHut
		case "merge":
			cfg.Merge = *merge
		}
	})

	s, err := sim.New(cfg)
	if err != nil {
		log.Fatal(err)
	}

	// Set up Ebitengine game
	ebiten.SetWindowSize(screenSize(cfg))
	ebiten.SetWindowTitle("Cosmo Lab")
	ebiten.SetTPS(*tps)

	// Run the game loop
	if err := ebiten.RunGame(NewGame(s, *save)); err != nil {
		log.Fatal(err)
	}
}
