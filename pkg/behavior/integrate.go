package behavior

import (
	"github.com/go-gl/mathgl/mgl64"
	"github.com/lao-tseu-is-alive/go-flock-simulation/pkg/geometry"
)

// Offsets are the velocity changes produced by the four steering rules for one boid.
type Offsets struct {
	Cohesion   geometry.Vector3D
	Separation geometry.Vector3D
	Alignment  geometry.Vector3D
	Boundary   geometry.Vector3D
}

// Sum adds the four offsets.
func (o Offsets) Sum() geometry.Vector3D {
	return o.Cohesion.Add(o.Separation).Add(o.Alignment).Add(o.Boundary)
}

// ClampSpeed rescales v to exactly limit when it is faster. Slower velocities are untouched.
func ClampSpeed(v geometry.Vector3D, limit float64) geometry.Vector3D {
	return v.ClampLen(limit)
}

// LookRotation returns the rotation taking Forward onto dir.
// dir must not be the zero vector.
func LookRotation(dir geometry.Vector3D) mgl64.Quat {
	return mgl64.QuatBetweenVectors(Forward, dir.Normalize().Mgl())
}

// Integrate applies the steering offsets to b: velocity gets their sum and is clamped to the
// speed limit, then the position advances by velocity*dt unless b is perching. The heading
// turns toward the direction of travel at s.TurnRate per second.
func Integrate(b *Boid, o Offsets, s *Settings, dt float64) {
	b.Velocity = ClampSpeed(b.Velocity.Add(o.Sum()), s.SpeedLimit)
	if !b.Perching {
		b.Position = b.Position.Add(b.Velocity.Mul(dt))
	}
	turn(b, s.TurnRate*dt)
}

// turn slerps the heading toward the velocity direction by t in [0, 1].
// A zero velocity has no direction and leaves the heading alone.
func turn(b *Boid, t float64) {
	if b.Velocity.IsZero() {
		return
	}
	current := heading(b)
	target := LookRotation(b.Velocity)
	// q and -q are the same rotation, pick the one on the short arc.
	if current.Dot(target) < 0 {
		target = target.Scale(-1)
	}
	b.Heading = mgl64.QuatSlerp(current, target, clamp(t, 0, 1)).Normalize()
}

// heading returns b.Heading, treating the zero quaternion as identity.
func heading(b *Boid) mgl64.Quat {
	if b.Heading.Len() < geometry.Epsilon {
		return mgl64.QuatIdent()
	}
	return b.Heading
}

// Update runs one tick for flock[self].
// A perching boid whose timer has not run out only has its timer decreased; ok is false.
// Otherwise the four rules are evaluated against view and integrated into flock[self].
// view is flock itself for the sequential update, or a copy taken at tick start for the
// snapshot update.
func Update(flock, view []Boid, self int, s *Settings, rng Rand, dt float64) (o Offsets, ok bool) {
	b := &flock[self]
	if Rest(b, dt, s, rng) {
		return Offsets{}, false
	}

	o = Offsets{
		Cohesion:   Cohesion(view, self, s),
		Separation: Separation(view, self, s),
		Alignment:  Alignment(view, self, s),
		Boundary:   Boundary(b, s, rng),
	}
	Integrate(b, o, s, dt)
	return o, true
}
