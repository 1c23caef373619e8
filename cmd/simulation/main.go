package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lao-tseu-is-alive/go-flock-simulation/pkg/simulation"
	"github.com/lao-tseu-is-alive/go-flock-simulation/pkg/stream"
	"github.com/tochemey/goakt/v3/actor"
	golog "github.com/tochemey/goakt/v3/log"
	"golang.org/x/sync/errgroup"
	"google.golang.org/protobuf/types/known/structpb"
)

func main() {
	configFile := flag.String("config", "", "JSON or TOML configuration file (defaults when empty)")
	numBoids := flag.Int("boids", -1, "number of boids, overrides the configuration when >= 0")
	seed := flag.Uint64("seed", 0, "random seed, overrides the configuration when > 0")
	tps := flag.Int("tps", 60, "ticks per second")
	steps := flag.Int("steps", 0, "stop after this many ticks, 0 runs until interrupted")
	addr := flag.String("addr", "", "serve the websocket snapshot stream on this address, e.g. :8080")
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
	if *tps <= 0 {
		log.Fatalf("tps must be positive, got %d", *tps)
	}

	level := golog.InfoLevel
	if *debug {
		level = golog.DebugLevel
	}
	logger := golog.New(level, os.Stdout)

	if err := run(cfg, logger, *tps, *steps, *addr); err != nil {
		log.Fatal(err)
	}
}

func loadConfig(path string) (*simulation.Config, error) {
	if path == "" {
		return simulation.DefaultConfig(), nil
	}
	return simulation.LoadConfig(path)
}

func run(cfg *simulation.Config, logger golog.Logger, tps, steps int, addr string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	system, err := actor.NewActorSystem("FlockSimulation", actor.WithLogger(logger))
	if err != nil {
		return err
	}
	if err := system.Start(ctx); err != nil {
		return err
	}
	defer system.Stop(context.Background())

	var snapshotCh chan *simulation.Snapshot
	if addr != "" {
		snapshotCh = make(chan *simulation.Snapshot, 4)
	}
	flockActor, err := simulation.NewFlockActor(cfg, snapshotCh)
	if err != nil {
		return err
	}
	flockPID, err := system.Spawn(ctx, "flock", flockActor)
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)

	// 1. Fixed rate tick driver
	g.Go(func() error {
		dt := time.Second / time.Duration(tps)
		ticker := time.NewTicker(dt)
		defer ticker.Stop()
		for n := 0; steps == 0 || n < steps; n++ {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
			}
			if err := actor.Tell(ctx, flockPID, simulation.NewTick(dt)); err != nil {
				return err
			}
		}
		return errDone
	})

	// 2. Optional websocket stream
	if addr != "" {
		hub := stream.NewHub(logger)
		srv := &http.Server{Addr: addr, Handler: hub, ReadHeaderTimeout: 5 * time.Second}
		g.Go(func() error { return hub.Run(ctx, snapshotCh) })
		g.Go(func() error {
			logger.Infof("streaming snapshots on ws://%s", addr)
			if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	err = g.Wait()
	if err != nil && !errors.Is(err, errDone) && !errors.Is(err, context.Canceled) {
		return err
	}
	summarize(logger, system, flockPID)
	return nil
}

// errDone ends the errgroup once the requested number of steps was sent.
var errDone = errors.New("all steps sent")

func summarize(logger golog.Logger, system actor.ActorSystem, pid *actor.PID) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	reply, err := actor.Ask(ctx, pid, simulation.NewSnapshotRequest(), 5*time.Second)
	if err != nil {
		logger.Errorf("failed to read final state: %v", err)
		return
	}
	summary, ok := reply.(*structpb.Struct)
	if !ok {
		logger.Errorf("unexpected reply %T", reply)
		return
	}
	f := summary.GetFields()
	logger.Infof("Flock %s on %s: %.0f ticks, %.1fs simulated, %.0f boids, %.0f perching, mean speed %.2f",
		f["runId"].GetStringValue(), system.Name(),
		f["tick"].GetNumberValue(), f["elapsed"].GetNumberValue(),
		f["boids"].GetNumberValue(), f["perching"].GetNumberValue(), f["meanSpeed"].GetNumberValue())
}
