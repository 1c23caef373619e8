package main

import (
	"context"
	"flag"
	"log"
	"os"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/lao-tseu-is-alive/go-flock-simulation/pkg/simulation"
	"github.com/tochemey/goakt/v3/actor"
	golog "github.com/tochemey/goakt/v3/log"
)

func main() {
	configFile := flag.String("config", "", "JSON or TOML configuration file (defaults when empty)")
	numBoids := flag.Int("boids", -1, "number of boids, overrides the configuration when >= 0")
	seed := flag.Uint64("seed", 0, "random seed, overrides the configuration when > 0")
	snapshot := flag.Bool("snapshot", false, "update every boid from a tick-start copy of the flock")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	cfg, err := loadConfig(*configFile)
	if err != nil {
		log.Fatal(err)
	}
	if *numBoids >= 0 {
		cfg.NumBoids = *numBoids
	}
	if *seed > 0 {
		cfg.Seed = *seed
	}
	if *snapshot {
		cfg.UpdateMode = simulation.SnapshotMode
	}

	level := golog.InfoLevel
	if *debug {
		level = golog.DebugLevel
	}

	ctx := context.Background()
	system, err := actor.NewActorSystem("FlockViewer",
		actor.WithLogger(golog.New(level, os.Stdout)),
		actor.WithActorInitMaxRetries(3))
	if err != nil {
		log.Fatal(err)
	}
	if err := system.Start(ctx); err != nil {
		log.Fatal(err)
	}
	defer system.Stop(ctx)

	game, err := simulation.GetNewGame(ctx, cfg, system)
	if err != nil {
		log.Fatal(err)
	}

	ebiten.SetWindowSize(simulation.ScreenWidth, simulation.ScreenHeight)
	ebiten.SetWindowTitle("Boids: flocking and perching")
	if err := ebiten.RunGame(game); err != nil {
		log.Fatal(err)
	}
}

func loadConfig(path string) (*simulation.Config, error) {
	if path == "" {
		return simulation.DefaultConfig(), nil
	}
	return simulation.LoadConfig(path)
}
