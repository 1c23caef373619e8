package behavior

import (
	"errors"
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/lao-tseu-is-alive/go-flock-simulation/pkg/geometry"
)

// Boid represents a single entity in the flock.
// Boids is an artificial life program, developed by Craig Reynolds in 1986,
// which simulates the flocking behaviour of birds, and related group motion.
// The name "boid" corresponds to a shortened version of "bird-oid object".
// https://en.wikipedia.org/wiki/Boids
//
// Fields are exported so renderers can read them after a tick.
type Boid struct {
	Position geometry.Vector3D
	Velocity geometry.Vector3D

	// Perching boids rest on the ground and skip steering until PerchTimer runs out.
	Perching   bool
	PerchTimer float64 // seconds

	// Heading is the smoothed facing, slerped toward the velocity direction.
	Heading mgl64.Quat
}

// Forward is the local axis a boid model faces along.
var Forward = mgl64.Vec3{0, 0, 1}

// FacingDirection returns the unit vector the boid currently faces.
func (b *Boid) FacingDirection() geometry.Vector3D {
	return geometry.FromMgl(heading(b).Rotate(Forward))
}

// Yaw returns the heading angle around the vertical axis in radians, 0 facing +Z.
func (b *Boid) Yaw() float64 {
	f := b.FacingDirection()
	return math.Atan2(f.X, f.Z)
}

// Rand draws uniformly distributed values in [0, 1).
// *rand.Rand from math/rand/v2 satisfies it.
type Rand interface {
	Float64() float64
}

// Range is a closed interval of seconds or units.
type Range struct {
	Min float64 `json:"min" toml:"min"`
	Max float64 `json:"max" toml:"max"`
}

// Draw returns a uniform value in the range.
func (r Range) Draw(rng Rand) float64 {
	return r.Min + rng.Float64()*(r.Max-r.Min)
}

// Bounds of the three blend weights, enforced by Settings.Clamp.
const (
	FactorMin = 0.0
	FactorMax = 1.0
)

var (
	ErrInvalidBoundary   = errors.New("minBoundary must be strictly below maxBoundary on every axis")
	ErrInvalidSpeedLimit = errors.New("speedLimit must be positive")
	ErrInvalidSpacing    = errors.New("spacing must not be negative")
	ErrInvalidPerchRange = errors.New("perchTimerRange must satisfy 0 <= min <= max")
)

// Settings controls the physics constants for the simulation.
// A single Settings value is shared by every boid and may be changed between ticks.
type Settings struct {
	CenteringFactor float64 `json:"centeringFactor" toml:"centeringFactor"` // Cohesion strength
	RepulsionFactor float64 `json:"repulsionFactor" toml:"repulsionFactor"` // Separation strength
	MatchingFactor  float64 `json:"matchingFactor" toml:"matchingFactor"`   // Alignment strength
	Spacing         float64 `json:"spacing" toml:"spacing"`                 // Personal space radius

	SpeedLimit float64 `json:"speedLimit" toml:"speedLimit"`

	MinBoundary geometry.Vector3D `json:"minBoundary" toml:"minBoundary"`
	MaxBoundary geometry.Vector3D `json:"maxBoundary" toml:"maxBoundary"`
	TurnFactor  float64           `json:"turnFactor" toml:"turnFactor"` // Edge turning strength

	PerchTimerRange Range   `json:"perchTimerRange" toml:"perchTimerRange"`
	GroundEpsilon   float64 `json:"groundEpsilon" toml:"groundEpsilon"`

	TurnRate float64 `json:"turnRate" toml:"turnRate"` // heading slerp rate per second
}

// GroundLevel is the altitude below which a boid lands and starts perching.
func (s *Settings) GroundLevel() float64 {
	return s.MinBoundary.Y - s.GroundEpsilon
}

// Clamp forces the three blend weights into [FactorMin, FactorMax].
func (s *Settings) Clamp() {
	s.CenteringFactor = clamp(s.CenteringFactor, FactorMin, FactorMax)
	s.RepulsionFactor = clamp(s.RepulsionFactor, FactorMin, FactorMax)
	s.MatchingFactor = clamp(s.MatchingFactor, FactorMin, FactorMax)
}

// Validate reports every structural problem that would make the flock meaningless.
func (s *Settings) Validate() error {
	var errs []error
	lo, hi := s.MinBoundary, s.MaxBoundary
	if lo.X >= hi.X || lo.Y >= hi.Y || lo.Z >= hi.Z {
		errs = append(errs, fmt.Errorf("%w: min %s, max %s", ErrInvalidBoundary, lo, hi))
	}
	if s.SpeedLimit <= 0 {
		errs = append(errs, fmt.Errorf("%w: got %v", ErrInvalidSpeedLimit, s.SpeedLimit))
	}
	if s.Spacing < 0 {
		errs = append(errs, fmt.Errorf("%w: got %v", ErrInvalidSpacing, s.Spacing))
	}
	if s.PerchTimerRange.Min < 0 || s.PerchTimerRange.Min > s.PerchTimerRange.Max {
		errs = append(errs, fmt.Errorf("%w: got [%v, %v]", ErrInvalidPerchRange,
			s.PerchTimerRange.Min, s.PerchTimerRange.Max))
	}
	return errors.Join(errs...)
}

// New creates a flying boid with random position inside the bounding box and a random
// velocity no faster than the speed limit. Its perch timer is drawn and held in reserve.
func New(s *Settings, rng Rand) Boid {
	pos := geometry.Vector3D{
		X: Range{s.MinBoundary.X, s.MaxBoundary.X}.Draw(rng),
		Y: Range{s.MinBoundary.Y, s.MaxBoundary.Y}.Draw(rng),
		Z: Range{s.MinBoundary.Z, s.MaxBoundary.Z}.Draw(rng),
	}
	return NewAt(pos, s, rng)
}

// NewAt creates a flying boid at pos with a random velocity.
func NewAt(pos geometry.Vector3D, s *Settings, rng Rand) Boid {
	vel := geometry.Vector3D{
		X: (rng.Float64() - 0.5) * 2,
		Y: (rng.Float64() - 0.5) * 2,
		Z: (rng.Float64() - 0.5) * 2,
	}
	b := Boid{
		Position:   pos,
		Velocity:   ClampSpeed(vel, s.SpeedLimit),
		PerchTimer: s.PerchTimerRange.Draw(rng),
		Heading:    mgl64.QuatIdent(),
	}
	if !b.Velocity.IsZero() {
		b.Heading = LookRotation(b.Velocity)
	}
	return b
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
