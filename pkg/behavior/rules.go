package behavior

import "github.com/lao-tseu-is-alive/go-flock-simulation/pkg/geometry"

// Cohesion pulls flock[self] a fraction of the way toward the centroid of its flying flockmates.
func Cohesion(flock []Boid, self int, s *Settings) geometry.Vector3D {
	center, n := Average(flock, self, Position)
	if n == 0 {
		return geometry.Zero
	}
	return center.Sub(flock[self].Position).Mul(s.CenteringFactor)
}

// Separation pushes flock[self] away from every other boid closer than Spacing.
// Offsets are summed, not averaged: crowded boids get a stronger push.
func Separation(flock []Boid, self int, s *Settings) geometry.Vector3D {
	me := flock[self].Position
	var repulsion geometry.Vector3D
	for i := range flock {
		if i == self {
			continue
		}
		away := me.Sub(flock[i].Position)
		if away.Len() < s.Spacing {
			repulsion = repulsion.Add(away)
		}
	}
	return repulsion.Mul(s.RepulsionFactor)
}

// Alignment nudges the velocity of flock[self] toward the mean velocity of its flying flockmates.
func Alignment(flock []Boid, self int, s *Settings) geometry.Vector3D {
	heading, n := Average(flock, self, Velocity)
	if n == 0 {
		return geometry.Zero
	}
	return heading.Sub(flock[self].Velocity).Mul(s.MatchingFactor)
}

// Boundary steers b back inside the bounding box.
// Faces are tested in the order x-min, x-max, y-min, y-max, z-min, z-max and only the first
// violated face pushes, so a boid outside two faces is corrected on one axis per tick.
// Independently, a boid found below the ground level lands: it is pinned to the ground and
// starts perching.
func Boundary(b *Boid, s *Settings, rng Rand) geometry.Vector3D {
	var push geometry.Vector3D
	p, lo, hi := b.Position, s.MinBoundary, s.MaxBoundary

	switch {
	case p.X < lo.X:
		push.X = s.TurnFactor
	case p.X > hi.X:
		push.X = -s.TurnFactor
	case p.Y < lo.Y:
		push.Y = s.TurnFactor
	case p.Y > hi.Y:
		push.Y = -s.TurnFactor
	case p.Z < lo.Z:
		push.Z = s.TurnFactor
	case p.Z > hi.Z:
		push.Z = -s.TurnFactor
	}

	if p.Y < s.GroundLevel() {
		land(b, s, rng)
	}
	return push
}
