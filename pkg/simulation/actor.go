package simulation

import (
	"time"

	"github.com/tochemey/goakt/v3/actor"
	"github.com/tochemey/goakt/v3/goaktpb"
	"google.golang.org/protobuf/types/known/durationpb"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// FlockActor owns a Flock and is its only writer. Ticks and config updates arrive in its
// mailbox and are processed one at a time, so the flock never sees two callers at once.
type FlockActor struct {
	flock *Flock
	// Communication with UI
	snapshotCh chan<- *Snapshot

	// --- Tick Stats ---
	tickCount   int
	dropCount   int
	lastLogTime time.Time
}

// NewFlockActor creates the flock described by cfg. After each tick a snapshot is offered
// on snapshotCh without blocking, snapshotCh may be nil.
func NewFlockActor(cfg *Config, snapshotCh chan<- *Snapshot) (*FlockActor, error) {
	flock, err := NewFlock(cfg)
	if err != nil {
		return nil, err
	}
	return &FlockActor{
		flock:       flock,
		snapshotCh:  snapshotCh,
		lastLogTime: time.Now(),
	}, nil
}

func (a *FlockActor) PreStart(ctx *actor.Context) error {
	cfg := a.flock.Config()
	ctx.ActorSystem().Logger().Infof("Flock %s: %d boids, %s update, seed %d",
		a.flock.RunID(), a.flock.Len(), cfg.UpdateMode, cfg.Seed)
	return nil
}

func (a *FlockActor) Receive(ctx *actor.ReceiveContext) {
	switch msg := ctx.Message().(type) {

	case *goaktpb.PostStart:
		ctx.Logger().Infof("%s started", ctx.Self().Name())

	// 1. The Main Simulation Step (Driven by Game Loop)
	case *durationpb.Duration:
		a.flock.Tick(msg.AsDuration().Seconds())
		a.tickCount++
		a.logStats(ctx)
		a.pushSnapshot()

	// 2. Dynamic slider updates from UI
	case *structpb.Struct:
		values, err := configValues(msg)
		if err == nil {
			err = a.flock.ApplyUpdates(values)
		}
		if err != nil {
			ctx.Logger().Warnf("config update rejected: %v", err)
			return
		}
		ctx.Logger().Debugf("config updated: %v", values)

	// 3. Snapshot request
	case *emptypb.Empty:
		ctx.Response(a.flock.Snapshot().Summary())

	default:
		ctx.Unhandled()
	}
}

func (a *FlockActor) logStats(ctx *actor.ReceiveContext) {
	if time.Since(a.lastLogTime) >= time.Second {
		ctx.Logger().Infof("📊 TICK RATE: %d/sec | Boids: %d | Perching: %d | Dropped frames: %d",
			a.tickCount, a.flock.Len(), a.flock.Perching(), a.dropCount)
		a.tickCount = 0
		a.dropCount = 0
		a.lastLogTime = time.Now()
	}
}

func (a *FlockActor) pushSnapshot() {
	if a.snapshotCh == nil {
		return
	}
	select {
	case a.snapshotCh <- a.flock.Snapshot():
	default:
		// UI busy, skip frame
		a.dropCount++
	}
}

func (a *FlockActor) PostStop(ctx *actor.Context) error {
	ctx.ActorSystem().Logger().Infof("Flock %s is shutdown after %d ticks", a.flock.RunID(), a.flock.Ticks())
	return nil
}
