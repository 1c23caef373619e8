package simulation

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/lao-tseu-is-alive/go-flock-simulation/pkg/behavior"
	"github.com/lao-tseu-is-alive/go-flock-simulation/pkg/geometry"
)

// Flock owns the boids of one simulation run together with the shared Settings.
// It is not safe for concurrent use: a single driver calls Tick, the setters and the
// readers in turn (the FlockActor serializes them through its mailbox).
type Flock struct {
	cfg   Config
	boids []behavior.Boid
	view  []behavior.Boid // tick-start copy, reused by the snapshot update
	rng   *rand.Rand

	runID   uuid.UUID
	ticks   uint64
	elapsed float64
}

// NewFlock validates cfg, seeds the random source and spawns cfg.NumBoids boids.
func NewFlock(cfg *Config) (*Flock, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	f := &Flock{runID: uuid.New()}
	if err := f.Initialize(cfg.NumBoids, cfg); err != nil {
		return nil, err
	}
	return f, nil
}

// Initialize replaces the whole population with count new boids built from cfg.
// Counters restart from zero, the run id is kept.
func (f *Flock) Initialize(count int, cfg *Config) error {
	c := *cfg
	c.NumBoids = count
	if err := c.Validate(); err != nil {
		return fmt.Errorf("cannot initialize flock: %w", err)
	}

	seed := c.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	f.cfg = c
	f.rng = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	f.boids = make([]behavior.Boid, count)
	f.view = make([]behavior.Boid, 0, count)
	f.ticks = 0
	f.elapsed = 0

	for i := range f.boids {
		switch c.Placement {
		case Edges:
			f.boids[i] = behavior.NewAt(f.edgePosition(i), &f.cfg.Settings, f.rng)
		default:
			f.boids[i] = behavior.New(&f.cfg.Settings, f.rng)
		}
	}
	return nil
}

// edgePosition places even boids near the x-max face and odd ones near the x-min face,
// at a random height and depth. Each axis keeps an inset of at most one unit from its faces.
func (f *Flock) edgePosition(i int) geometry.Vector3D {
	lo, hi := f.cfg.MinBoundary, f.cfg.MaxBoundary
	in := geometry.Vector3D{X: inset(lo.X, hi.X), Y: inset(lo.Y, hi.Y), Z: inset(lo.Z, hi.Z)}
	x := hi.X - in.X
	if i%2 == 1 {
		x = lo.X + in.X
	}
	return geometry.Vector3D{
		X: x,
		Y: behavior.Range{Min: lo.Y + 0.2*in.Y, Max: hi.Y - in.Y}.Draw(f.rng),
		Z: behavior.Range{Min: lo.Z + in.Z, Max: hi.Z - in.Z}.Draw(f.rng),
	}
}

func inset(lo, hi float64) float64 { return math.Min(1, (hi-lo)/4) }

// Tick advances the simulation by dt seconds. A non-positive dt runs the rules with a
// zero time step, so nothing moves and no perch timer advances.
// The blend factors are clamped first, then every boid is updated in index order.
// In Sequential mode later boids observe the already updated earlier ones, in Snapshot
// mode all rules read the flock as it was when the tick started.
func (f *Flock) Tick(dt float64) {
	dt = math.Max(dt, 0)
	s := &f.cfg.Settings
	s.Clamp()

	view := f.boids
	if f.cfg.UpdateMode == SnapshotMode {
		f.view = append(f.view[:0], f.boids...)
		view = f.view
	}
	for i := range f.boids {
		behavior.Update(f.boids, view, i, s, f.rng, dt)
	}

	f.ticks++
	f.elapsed += dt
}

// Boids returns the live boids. Callers must treat the slice as read-only.
func (f *Flock) Boids() []behavior.Boid { return f.boids }

// Len returns the number of boids.
func (f *Flock) Len() int { return len(f.boids) }

// Config returns a copy of the current configuration, including setter changes.
func (f *Flock) Config() Config { return f.cfg }

// RunID identifies this flock in logs and snapshots.
func (f *Flock) RunID() uuid.UUID { return f.runID }

// Ticks returns the number of ticks run since Initialize.
func (f *Flock) Ticks() uint64 { return f.ticks }

// Perching counts the boids currently resting on the ground.
func (f *Flock) Perching() int {
	n := 0
	for i := range f.boids {
		if f.boids[i].Perching {
			n++
		}
	}
	return n
}

// Setters take effect on the next Tick. Blend factors outside [0, 1] are clamped there.

func (f *Flock) SetCenteringFactor(v float64) { f.cfg.CenteringFactor = v }
func (f *Flock) SetRepulsionFactor(v float64) { f.cfg.RepulsionFactor = v }
func (f *Flock) SetMatchingFactor(v float64)  { f.cfg.MatchingFactor = v }
func (f *Flock) SetSpacing(v float64)         { f.cfg.Spacing = v }
func (f *Flock) SetTurnFactor(v float64)      { f.cfg.TurnFactor = v }
func (f *Flock) SetTurnRate(v float64)        { f.cfg.TurnRate = v }

// SetSpeedLimit also brings every boid faster than v down to v, perching ones included.
func (f *Flock) SetSpeedLimit(v float64) {
	f.cfg.SpeedLimit = v
	if v <= 0 {
		return
	}
	for i := range f.boids {
		f.boids[i].Velocity = behavior.ClampSpeed(f.boids[i].Velocity, v)
	}
}

type setting struct {
	set   func(f *Flock, v float64)
	valid func(v float64) bool
}

func finite(float64) bool        { return true }
func positive(v float64) bool    { return v > 0 }
func nonNegative(v float64) bool { return v >= 0 }

// settings lists the tunables reachable by name, keyed like the config file fields.
var settings = map[string]setting{
	"centeringFactor": {(*Flock).SetCenteringFactor, finite},
	"repulsionFactor": {(*Flock).SetRepulsionFactor, finite},
	"matchingFactor":  {(*Flock).SetMatchingFactor, finite},
	"spacing":         {(*Flock).SetSpacing, nonNegative},
	"speedLimit":      {(*Flock).SetSpeedLimit, positive},
	"turnFactor":      {(*Flock).SetTurnFactor, nonNegative},
	"turnRate":        {(*Flock).SetTurnRate, nonNegative},
}

// SettingNames returns the names accepted by ApplyUpdates, sorted.
func SettingNames() []string {
	names := make([]string, 0, len(settings))
	for name := range settings {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ApplyUpdates sets tunables by their config field name.
// Nothing is changed when any entry is unknown or out of its domain.
func (f *Flock) ApplyUpdates(values map[string]float64) error {
	for name, v := range values {
		st, ok := settings[name]
		if !ok {
			return fmt.Errorf("%w: %q", ErrUnknownSetting, name)
		}
		if math.IsNaN(v) || math.IsInf(v, 0) || !st.valid(v) {
			return fmt.Errorf("%w: %s=%v", ErrUnsupportedSetting, name, v)
		}
	}
	for name, v := range values {
		settings[name].set(f, v)
	}
	return nil
}
