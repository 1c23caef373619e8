package simulation

import (
	"github.com/lao-tseu-is-alive/go-flock-simulation/pkg/behavior"
	"github.com/lao-tseu-is-alive/go-flock-simulation/pkg/geometry"
	"google.golang.org/protobuf/types/known/structpb"
)

// BoidState is the read-only view of one boid handed to renderers after a tick.
type BoidState struct {
	Index      int               `json:"index"`
	Position   geometry.Vector3D `json:"position"`
	Velocity   geometry.Vector3D `json:"velocity"`
	Perching   bool              `json:"perching"`
	PerchTimer float64           `json:"perchTimer"`
	Heading    [4]float64        `json:"heading"` // w, x, y, z
	Yaw        float64           `json:"yaw"`
}

// Snapshot is a copy of the whole flock taken between two ticks.
type Snapshot struct {
	RunID    string      `json:"runId"`
	Tick     uint64      `json:"tick"`
	Elapsed  float64     `json:"elapsed"` // simulated seconds
	Perching int         `json:"perching"`
	Boids    []BoidState `json:"boids"`
}

func newBoidState(i int, b *behavior.Boid) BoidState {
	q := b.Heading
	return BoidState{
		Index:      i,
		Position:   b.Position,
		Velocity:   b.Velocity,
		Perching:   b.Perching,
		PerchTimer: b.PerchTimer,
		Heading:    [4]float64{q.W, q.V[0], q.V[1], q.V[2]},
		Yaw:        b.Yaw(),
	}
}

// Snapshot copies the current state of every boid.
func (f *Flock) Snapshot() *Snapshot {
	snap := &Snapshot{
		RunID:   f.runID.String(),
		Tick:    f.ticks,
		Elapsed: f.elapsed,
		Boids:   make([]BoidState, len(f.boids)),
	}
	for i := range f.boids {
		snap.Boids[i] = newBoidState(i, &f.boids[i])
		if f.boids[i].Perching {
			snap.Perching++
		}
	}
	return snap
}

// MeanSpeed returns the average speed of the flying boids, 0 when none is flying.
func (s *Snapshot) MeanSpeed() float64 {
	var sum float64
	n := 0
	for _, b := range s.Boids {
		if b.Perching {
			continue
		}
		sum += b.Velocity.Len()
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// Summary condenses the snapshot into the reply sent to a snapshot request.
func (s *Snapshot) Summary() *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"runId":     structpb.NewStringValue(s.RunID),
		"tick":      structpb.NewNumberValue(float64(s.Tick)),
		"elapsed":   structpb.NewNumberValue(s.Elapsed),
		"boids":     structpb.NewNumberValue(float64(len(s.Boids))),
		"perching":  structpb.NewNumberValue(float64(s.Perching)),
		"meanSpeed": structpb.NewNumberValue(s.MeanSpeed()),
	}}
}
